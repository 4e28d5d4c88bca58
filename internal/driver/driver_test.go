package driver

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/frederic-klein/makeall/internal/changelog"
	"github.com/frederic-klein/makeall/internal/config"
	"github.com/frederic-klein/makeall/internal/project"
	"github.com/frederic-klein/makeall/internal/shell"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// fakeRunner records commands instead of running them. onRun may simulate
// a command's effect on the filesystem.
type fakeRunner struct {
	cmds  []shell.Command
	onRun func(cmd shell.Command) error
}

func (f *fakeRunner) Run(cmd shell.Command) error {
	f.cmds = append(f.cmds, cmd)
	if f.onRun != nil {
		return f.onRun(cmd)
	}
	return nil
}

// lines renders the recorded commands as "dir: command" relative to root.
func (f *fakeRunner) lines(root string) []string {
	var out []string
	for _, c := range f.cmds {
		dir, _ := filepath.Rel(root, c.Dir)
		out = append(out, dir+": "+strings.ReplaceAll(c.String(), root+"/", ""))
	}
	return out
}

type testEnv struct {
	root     string
	layout   *config.Layout
	settings *config.Settings
	runner   *fakeRunner
	driver   *Driver
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	root := t.TempDir()
	env := &testEnv{
		root:     root,
		layout:   config.NewLayout(root, filepath.Join(root, "apt"), config.PbuilderSettings{}),
		settings: &config.Settings{},
		runner:   &fakeRunner{},
	}
	env.driver = New(env.layout, env.settings, env.runner, opts)
	env.driver.now = func() time.Time { return t0 }
	return env
}

func (e *testEnv) describe(t *testing.T, name string) *project.Descriptor {
	t.Helper()
	d, err := e.driver.resolver.Describe(name, filepath.Join(e.root, "checkouts", name))
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	return d
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// writeTarball writes files under a single top-level dir into a tar,
// gzip-compressed when path ends in .gz.
func writeTarball(t *testing.T, path string, files map[string]string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var w io.Writer = f
	var gw *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gw = gzip.NewWriter(f)
		w = gw
	}
	tw := tar.NewWriter(w)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0644, Size: int64(len(content)), ModTime: t0}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if gw != nil {
		if err := gw.Close(); err != nil {
			t.Fatal(err)
		}
	}
}

const fooControl = `Source: foo
Maintainer: Jane Doe <jane@example.org>
Section: libs
Priority: optional
Build-Depends: debhelper (>= 9)

Package: libfoo1
Architecture: any
Description: foo library
`

func writeDebianDir(t *testing.T, dir, name, version string) {
	t.Helper()
	writeFile(t, filepath.Join(dir, "changelog"), name+" ("+version+") unstable; urgency=low\n\n  * Initial release.\n")
	writeFile(t, filepath.Join(dir, "control"), strings.ReplaceAll(fooControl, "foo", name))
	writeFile(t, filepath.Join(dir, "rules"), "#!/usr/bin/make -f\n%:\n\tdh $@\n")
}

func TestDriver_Run_Build(t *testing.T) {
	// Arrange
	env := newTestEnv(t, Options{Check: true})
	src := filepath.Join(env.root, "checkouts", "foo")
	writeFile(t, filepath.Join(src, "CMakeLists.txt"), "project(foo)\n")
	env.runner.onRun = func(cmd shell.Command) error {
		if cmd.Name == "cmake" {
			writeFile(t, filepath.Join(cmd.Dir, "Makefile"), "all:\ncheck: all\n")
		}
		return nil
	}

	// Act
	err := env.driver.Run(project.ActionBuild, []string{"foo"})

	// Assert
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []string{
		"build/foo: cmake checkouts/foo",
		"build/foo: make all -j2",
		"build/foo: make check -j2",
	}
	if diff := cmp.Diff(want, env.runner.lines(env.root)); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestDriver_Run_WritesReport(t *testing.T) {
	env := newTestEnv(t, Options{})
	writeFile(t, filepath.Join(env.root, "checkouts", "foo", "README"), "")

	if err := env.driver.Run(project.ActionClean, []string{"foo"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	data, err := os.ReadFile(env.layout.LogFile("foo"))
	if err != nil {
		t.Fatalf("run log not written: %v", err)
	}
	for _, want := range []string{"run 2024-01-01T12:00:00Z", "action: clean", "backend: none", "result: ok"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("run log missing %q:\n%s", want, data)
		}
	}
}

func TestDriver_Run_ContinuesAfterProjectError(t *testing.T) {
	// Arrange: "bad" has a broken changelog, "good" packages fine
	env := newTestEnv(t, Options{})
	for _, name := range []string{"bad", "good"} {
		src := filepath.Join(env.root, "checkouts", name)
		writeFile(t, filepath.Join(src, "README"), "")
		if err := os.Mkdir(filepath.Join(src, ".git"), 0755); err != nil {
			t.Fatal(err)
		}
	}
	writeFile(t, filepath.Join(env.root, "checkouts", "bad", "debian", "changelog"), "not a changelog\n")
	writeDebianDir(t, filepath.Join(env.root, "checkouts", "good", "debian"), "good", "0.1-1")
	env.runner.onRun = simulateGitArchive(t)

	// Act
	err := env.driver.Run(project.ActionPackage, []string{"bad", "good"})

	// Assert
	if !errors.Is(err, changelog.ErrMalformedEntry) {
		t.Fatalf("Run() error = %v, want the changelog failure", err)
	}
	var debuilds int
	for _, c := range env.runner.cmds {
		if c.Name == "debuild" {
			debuilds++
		}
	}
	if debuilds != 1 {
		t.Errorf("debuild ran %d times, want 1", debuilds)
	}
}

func TestDriver_Run_CommandFailureAborts(t *testing.T) {
	env := newTestEnv(t, Options{})
	for _, name := range []string{"a", "b"} {
		writeFile(t, filepath.Join(env.root, "checkouts", name, "CMakeLists.txt"), "")
	}
	failure := &shell.CommandError{Command: shell.Command{Name: "cmake"}, Err: errors.New("exit status 1")}
	env.runner.onRun = func(cmd shell.Command) error { return failure }

	err := env.driver.Run(project.ActionBuild, []string{"a", "b"})

	var cmdErr *shell.CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("Run() error = %v, want *shell.CommandError", err)
	}
	if len(env.runner.cmds) != 1 {
		t.Errorf("ran %d commands after the failure, want 1", len(env.runner.cmds))
	}
}

func TestDriver_Run_Errors(t *testing.T) {
	env := newTestEnv(t, Options{})
	writeFile(t, filepath.Join(env.root, "checkouts", "foo", "README"), "")

	if err := env.driver.Run(project.ActionBuild, []string{"kicad"}); err == nil {
		t.Error("Run() with an unknown project should fail")
	}

	env.layout.UsePristine()
	if err := env.driver.Run(project.ActionBuild, []string{"foo"}); err == nil {
		t.Error("Run() of build in pristine mode should fail")
	}
	if len(env.runner.cmds) != 0 {
		t.Errorf("ran %v, want nothing", env.runner.cmds)
	}
}

func TestDriver_Available(t *testing.T) {
	env := newTestEnv(t, Options{})
	writeFile(t, filepath.Join(env.root, "checkouts", "foo", "README"), "")
	writeFile(t, filepath.Join(env.root, "mods", "bar", "README"), "")
	writeFile(t, filepath.Join(env.root, "checkouts_debian", "baz", "debian", "changelog"), "")

	got, err := env.driver.Available()
	if err != nil {
		t.Fatalf("Available() error = %v", err)
	}
	var names []string
	for _, e := range got {
		names = append(names, e.Name)
	}
	if diff := cmp.Diff([]string{"foo", "bar"}, names); diff != "" {
		t.Errorf("Available() mismatch (-want +got):\n%s", diff)
	}

	env.layout.UsePristine()
	got, err = env.driver.Available()
	if err != nil {
		t.Fatalf("Available() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "baz" {
		t.Errorf("Available() in pristine mode = %v, want baz", got)
	}
}
