package resolver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/frederic-klein/makeall/internal/project"
)

// Verdict is the outcome of a staleness check.
type Verdict struct {
	Backend project.BuildBackend

	// Created is set when the build directory did not exist and was made.
	Created bool
	// RegenerateConfigure asks for autoconf/automake to be rerun.
	RegenerateConfigure bool
	// Reconfigure asks for a clean build directory and a fresh ./configure.
	Reconfigure bool
	// Rebuild asks for the build tool to be run.
	Rebuild bool
}

// Stale reports whether any work is needed.
func (v Verdict) Stale() bool {
	return v.Created || v.RegenerateConfigure || v.Reconfigure || v.Rebuild
}

// Staleness decides whether the project needs rebuilding. The build
// directory is created when missing.
func (r *Resolver) Staleness(d *project.Descriptor) (Verdict, error) {
	v := Verdict{Backend: d.Backend}

	if !isDir(d.BuildDir) {
		if err := os.MkdirAll(d.BuildDir, 0755); err != nil {
			return v, fmt.Errorf("creating build directory: %w", err)
		}
		v.Created = true
	}

	switch d.Backend {
	case project.BackendAutotools:
		configure := filepath.Join(d.SourceDir, "configure")
		acTime := modTime(filepath.Join(d.SourceDir, "configure.ac"))
		confTime := modTime(configure)
		v.RegenerateConfigure = confTime.Before(acTime)

		// A build dir that configure never completed in counts as the epoch
		buildTime := time.Time{}
		if !v.Created && exists(filepath.Join(d.BuildDir, "config.status")) {
			buildTime = modTime(d.BuildDir)
		}
		v.Reconfigure = v.Created || buildTime.Before(confTime)
		v.Rebuild = v.Reconfigure

	case project.BackendCMake, project.BackendQMake:
		v.Rebuild = true

	case project.BackendMakefile, project.BackendNone:
		if v.Created {
			v.Rebuild = true
			break
		}
		buildTime, err := LatestModTime(d.BuildDir)
		if err != nil {
			return v, fmt.Errorf("scanning build tree of %s: %w", d.Name, err)
		}
		srcTime, err := LatestModTime(d.SourceDir)
		if err != nil {
			return v, fmt.Errorf("scanning source tree of %s: %w", d.Name, err)
		}
		v.Rebuild = buildTime.Before(srcTime)

	default:
		return v, fmt.Errorf("project %s: unhandled build backend %v", d.Name, d.Backend)
	}

	return v, nil
}

// LatestModTime returns the newest file modification time below root,
// skipping .git directories. An empty or missing tree yields the zero time.
func LatestModTime(root string) (time.Time, error) {
	var latest time.Time
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return fs.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return latest, nil
}

// modTime returns the modification time of path, or the zero time if it
// cannot be read.
func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
