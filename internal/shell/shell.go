package shell

import (
	"fmt"
	"io"
	"os"
	"strings"

	sh "github.com/codeskyblue/go-sh"
	log "github.com/sirupsen/logrus"
)

// Command is one external program invocation.
type Command struct {
	Dir  string
	Env  map[string]string // added to the inherited environment
	Name string
	Args []string
}

// String renders the command line for logs and errors.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// CommandError reports a command that could not be started or exited
// with a non-zero status.
type CommandError struct {
	Command Command
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command '%s' in %s: %v", e.Command, e.Command.Dir, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Runner executes commands.
type Runner interface {
	Run(cmd Command) error
}

// SessionRunner runs each command in a fresh go-sh session attached to the
// given streams.
type SessionRunner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewSessionRunner creates a runner attached to the terminal.
func NewSessionRunner() *SessionRunner {
	return &SessionRunner{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run executes cmd and waits for it. Failures are returned as *CommandError.
func (r *SessionRunner) Run(cmd Command) error {
	log.WithField("dir", cmd.Dir).Debugf("Executing %s", cmd)

	sess := sh.NewSession()
	// NewSession only carries PATH over
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			sess.SetEnv(k, v)
		}
	}
	for k, v := range cmd.Env {
		sess.SetEnv(k, v)
	}
	sess.Stdin = r.Stdin
	sess.Stdout = r.Stdout
	sess.Stderr = r.Stderr
	if cmd.Dir != "" {
		sess.SetDir(cmd.Dir)
	}

	args := make([]interface{}, len(cmd.Args))
	for i, a := range cmd.Args {
		args[i] = a
	}

	if err := sess.Command(cmd.Name, args...).Run(); err != nil {
		return &CommandError{Command: cmd, Err: err}
	}
	return nil
}
