package driver

import (
	"errors"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/frederic-klein/makeall/internal/config"
	"github.com/frederic-klein/makeall/internal/index"
	"github.com/frederic-klein/makeall/internal/project"
	"github.com/frederic-klein/makeall/internal/report"
	"github.com/frederic-klein/makeall/internal/resolver"
	"github.com/frederic-klein/makeall/internal/shell"
)

var (
	// ErrUnsupportedDist is returned when no way to produce a source
	// archive fits the project.
	ErrUnsupportedDist = errors.New("VCS and project type not supported")
	// ErrDebianDirCreated is returned after dh_make generated a debian
	// directory that has to be reviewed before packaging can continue.
	ErrDebianDirCreated = errors.New("debian directory created, please update it")
)

// BuildPathEnv carries the previous out-of-tree build directory to the
// debuild build hook.
const BuildPathEnv = "MAKEALL_BUILD_PATH"

// Options are the per-run switches taken from the command line.
type Options struct {
	Check       bool
	UsePbuilder bool
	// HookCommand is the program debuild runs as its build hook, with the
	// hook subdirectory appended. Empty disables the hook.
	HookCommand string
}

// Driver carries out actions on projects. It asks the resolver what needs
// doing and runs every external tool through the runner.
type Driver struct {
	layout   *config.Layout
	settings *config.Settings
	resolver *resolver.Resolver
	runner   shell.Runner
	opts     Options
	now      func() time.Time
}

// New creates a driver.
func New(layout *config.Layout, settings *config.Settings, runner shell.Runner, opts Options) *Driver {
	return &Driver{
		layout:   layout,
		settings: settings,
		resolver: resolver.NewResolver(layout, settings),
		runner:   runner,
		opts:     opts,
		now:      time.Now,
	}
}

// Available lists the projects that can be requested in the current mode.
func (dr *Driver) Available() ([]index.Entry, error) {
	idx := index.NewProjectIndex(dr.layout.SearchDirs()...)
	if err := idx.Load(); err != nil {
		return nil, err
	}
	return idx.Entries(), nil
}

// Run performs action on every project matching names. A failing external
// command aborts the run. Other failures stop only their project and are
// returned joined once every project has been tried.
func (dr *Driver) Run(action project.Action, names []string) error {
	if dr.layout.Pristine {
		switch action {
		case project.ActionClean, project.ActionFullClean, project.ActionBuild:
			return fmt.Errorf("pristine mode cannot be used with the %s action", action)
		}
	}

	idx := index.NewProjectIndex(dr.layout.SearchDirs()...)
	if err := idx.Load(); err != nil {
		return err
	}
	entries, err := idx.Match(names)
	if err != nil {
		return err
	}

	for _, e := range entries {
		log.Infof("Found project '%s' in directory '%s'", e.Name, e.Dir)
	}

	for _, dir := range []string{dr.layout.BuildRoot, dr.layout.OutputRoot()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	var errs []error
	for _, e := range entries {
		err := dr.runProject(action, e)
		if err == nil {
			continue
		}
		var cmdErr *shell.CommandError
		if errors.As(err, &cmdErr) {
			return err
		}
		log.WithField("project", e.Name).Error(err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (dr *Driver) runProject(action project.Action, e index.Entry) error {
	rec := &report.Record{
		Time:    dr.now(),
		Project: e.Name,
		Action:  action.String(),
		Result:  report.ResultOK,
	}

	d, err := dr.resolver.Describe(e.Name, e.Dir)
	if err == nil {
		rec.Backend = d.Backend.String()
		err = dr.perform(action, d, rec)
		rec.VersionDir = d.VersionDir()
	}
	if err != nil {
		rec.Result = err.Error()
	}

	if logErr := report.Append(dr.layout.LogFile(e.Name), rec); logErr != nil {
		log.WithField("project", e.Name).Warnf("Could not write run log: %v", logErr)
	}
	return err
}

func (dr *Driver) perform(action project.Action, d *project.Descriptor, rec *report.Record) error {
	switch action {
	case project.ActionClean:
		return dr.Clean(d)
	case project.ActionFullClean:
		return dr.FullClean(d)
	case project.ActionBuild:
		if err := dr.Build(d); err != nil {
			return err
		}
		return dr.Check(d)
	case project.ActionPackage:
		return dr.buildAndPackage(d, false, rec)
	case project.ActionPackageSource:
		return dr.buildAndPackage(d, true, rec)
	case project.ActionInstall:
		if err := dr.buildAndPackage(d, false, rec); err != nil {
			return err
		}
		if err := dr.Install(d); err != nil {
			return err
		}
		return dr.DebInstall(d)
	case project.ActionReinstall:
		if err := dr.Install(d); err != nil {
			return err
		}
		return dr.DebInstall(d)
	case project.ActionDebInstall:
		if err := dr.buildAndPackage(d, false, rec); err != nil {
			return err
		}
		return dr.DebInstall(d)
	case project.ActionDebReinstall:
		return dr.DebInstall(d)
	}
	return fmt.Errorf("unhandled action %v", action)
}

func (dr *Driver) buildAndPackage(d *project.Descriptor, source bool, rec *report.Record) error {
	var res *Packaged
	var err error

	if dr.layout.Pristine {
		res, err = dr.PackagePristine(d, source)
	} else {
		if err := dr.Build(d); err != nil {
			return err
		}
		if err := dr.Check(d); err != nil {
			return err
		}
		res, err = dr.Package(d, source)
	}

	if res != nil {
		rec.Name = res.Entry.Name
		rec.Version = res.Entry.Version
		rec.Revision = res.Entry.Revision
		rec.Archive = res.Archive
	}
	return err
}

func (dr *Driver) run(dir, name string, args ...string) error {
	return dr.runner.Run(shell.Command{Dir: dir, Name: name, Args: args})
}

func (dr *Driver) jobsArg(d *project.Descriptor) string {
	return fmt.Sprintf("-j%d", dr.settings.Jobs(d.Name))
}

func logFor(d *project.Descriptor) *log.Entry {
	return log.WithField("project", d.Name)
}
