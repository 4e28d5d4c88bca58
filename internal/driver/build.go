package driver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/frederic-klein/makeall/internal/project"
	"github.com/frederic-klein/makeall/internal/resolver"
)

// Build brings the out-of-tree build of a project up to date.
func (dr *Driver) Build(d *project.Descriptor) error {
	l := logFor(d)
	l.Infof("Configuring project '%s'", d.Name)
	l.Debugf("Code path: %s", d.SourceDir)
	l.Debugf("Build path: %s", d.BuildDir)
	l.Debugf("Package path: %s", d.OutputDir)

	v, err := dr.resolver.Staleness(d)
	if err != nil {
		return err
	}

	switch d.Backend {
	case project.BackendAutotools:
		return dr.buildAutotools(d, v)

	case project.BackendCMake:
		if err := dr.run(d.BuildDir, "cmake", d.SourceDir); err != nil {
			return err
		}
		l.Infof("Building project '%s'", d.Name)
		return dr.run(d.BuildDir, "make", "all", dr.jobsArg(d))

	case project.BackendQMake:
		// qmake only supports out-of-source builds from a sibling directory
		codeDir := "." + d.Name + "_codedir"
		link := filepath.Join(filepath.Dir(d.BuildDir), codeDir)
		if err := os.Remove(link); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("replacing %s: %w", link, err)
		}
		if err := os.Symlink(d.SourceDir, link); err != nil {
			return fmt.Errorf("linking %s: %w", link, err)
		}
		if err := dr.run(d.BuildDir, "qmake", filepath.Join("..", codeDir)); err != nil {
			return err
		}
		l.Infof("Building project '%s'", d.Name)
		return dr.run(d.BuildDir, "make", "all", dr.jobsArg(d))

	case project.BackendMakefile:
		if !v.Rebuild {
			l.Infof("Project '%s' is up to date", d.Name)
			return nil
		}
		l.Infof("Building project '%s'", d.Name)
		if err := os.RemoveAll(d.BuildDir); err != nil {
			return fmt.Errorf("cleaning build dir: %w", err)
		}
		if err := copyTree(d.SourceDir, d.BuildDir); err != nil {
			return fmt.Errorf("copying sources of %s: %w", d.Name, err)
		}
		return dr.run(d.BuildDir, "make", "all", dr.jobsArg(d))

	case project.BackendNone:
		// debian/rules is expected to know how to build it
		l.Info("... (no Makefile)")
		return nil
	}

	return fmt.Errorf("project %s: unhandled build backend %v", d.Name, d.Backend)
}

func (dr *Driver) buildAutotools(d *project.Descriptor, v resolver.Verdict) error {
	reconfigure := v.Reconfigure

	if v.RegenerateConfigure {
		if err := dr.run(d.SourceDir, "autoconf"); err != nil {
			return err
		}
		if err := dr.run(d.SourceDir, "automake"); err != nil {
			return err
		}
		again, err := dr.resolver.Staleness(d)
		if err != nil {
			return err
		}
		reconfigure = v.Created || again.Reconfigure
	}

	if reconfigure {
		if err := os.RemoveAll(d.BuildDir); err != nil {
			return fmt.Errorf("cleaning build dir: %w", err)
		}
		if err := os.MkdirAll(d.BuildDir, 0755); err != nil {
			return fmt.Errorf("creating build dir: %w", err)
		}
		configure := filepath.Join(d.SourceDir, "configure")
		if err := dr.run(d.BuildDir, configure, dr.settings.ConfigureArgs(d.Name)...); err != nil {
			return err
		}
	}

	logFor(d).Infof("Building project '%s'", d.Name)
	return dr.run(d.BuildDir, "make", "all", dr.jobsArg(d))
}

// Check runs the test suite when the build has a check rule.
func (dr *Driver) Check(d *project.Descriptor) error {
	if !dr.opts.Check {
		return nil
	}

	l := logFor(d)
	l.Infof("Checking project '%s'", d.Name)

	if d.Backend == project.BackendNone {
		l.Info("... (no Makefile)")
		return nil
	}

	hasCheck, err := resolver.HasCheckRule(filepath.Join(d.BuildDir, "Makefile"))
	if errors.Is(err, os.ErrNotExist) {
		l.Info("... (no Makefile)")
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading Makefile of %s: %w", d.Name, err)
	}
	if !hasCheck {
		l.Info("... (no check rule)")
		return nil
	}

	return dr.run(d.BuildDir, "make", "check", dr.jobsArg(d))
}

var packageOutputSuffixes = []string{".deb", ".changes", ".build", ".dsc"}

// Clean removes the build directory and the package files of a project.
func (dr *Driver) Clean(d *project.Descriptor) error {
	logFor(d).Infof("Cleaning project '%s'", d.Name)

	if err := os.RemoveAll(d.BuildDir); err != nil {
		return fmt.Errorf("removing build dir: %w", err)
	}

	entries, err := os.ReadDir(d.OutputDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("listing %s: %w", d.OutputDir, err)
	}

	for _, e := range entries {
		if e.IsDir() || !hasAnySuffix(e.Name(), packageOutputSuffixes) {
			continue
		}
		if err := os.Remove(filepath.Join(d.OutputDir, e.Name())); err != nil {
			return fmt.Errorf("removing package file: %w", err)
		}
	}
	return nil
}

// FullClean regenerates the build system in the source tree, then cleans.
func (dr *Driver) FullClean(d *project.Descriptor) error {
	logFor(d).Infof("Reconfiguring project '%s'", d.Name)

	switch d.Backend {
	case project.BackendAutotools:
		if err := dr.run(d.SourceDir, "autoreconf"); err != nil {
			return err
		}
	case project.BackendCMake:
		if err := dr.run(d.SourceDir, "cmake", "."); err != nil {
			return err
		}
	}

	return dr.Clean(d)
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}
