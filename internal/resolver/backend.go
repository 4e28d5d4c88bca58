package resolver

import (
	"path/filepath"

	"github.com/frederic-klein/makeall/internal/project"
)

// Classify returns the build backend of the source tree at dir. Markers are
// checked in priority order and the first match wins. A directory without
// markers, or no directory at all, is BackendNone.
func Classify(dir string) project.BuildBackend {
	if exists(filepath.Join(dir, "configure")) || exists(filepath.Join(dir, "configure.ac")) {
		return project.BackendAutotools
	}
	if pros, _ := filepath.Glob(filepath.Join(dir, "*.pro")); len(pros) > 0 {
		return project.BackendQMake
	}
	if exists(filepath.Join(dir, "CMakeLists.txt")) {
		return project.BackendCMake
	}
	if exists(filepath.Join(dir, "Makefile")) {
		return project.BackendMakefile
	}
	return project.BackendNone
}

// DetectVCS returns the version control system of the checkout at dir.
func DetectVCS(dir string) project.VcsKind {
	if isDir(filepath.Join(dir, ".git")) {
		return project.VcsGit
	}
	return project.VcsNone
}
