package project

import "fmt"

// BuildBackend identifies the build system a project uses.
type BuildBackend int

const (
	BackendNone BuildBackend = iota
	BackendAutotools
	BackendCMake
	BackendQMake
	BackendMakefile
)

func (b BuildBackend) String() string {
	switch b {
	case BackendNone:
		return "none"
	case BackendAutotools:
		return "autotools"
	case BackendCMake:
		return "cmake"
	case BackendQMake:
		return "qmake"
	case BackendMakefile:
		return "makefile"
	}
	return fmt.Sprintf("BuildBackend(%d)", int(b))
}

// VcsKind identifies the version control system of a checkout.
type VcsKind int

const (
	VcsNone VcsKind = iota
	VcsGit
)

func (v VcsKind) String() string {
	switch v {
	case VcsNone:
		return "none"
	case VcsGit:
		return "git"
	}
	return fmt.Sprintf("VcsKind(%d)", int(v))
}

// Action is the work requested for a batch of projects.
type Action int

const (
	ActionClean Action = iota
	ActionFullClean
	ActionBuild
	ActionPackage
	ActionPackageSource
	ActionInstall
	ActionReinstall
	ActionDebInstall
	ActionDebReinstall
)

var actionNames = map[Action]string{
	ActionClean:         "clean",
	ActionFullClean:     "full-clean",
	ActionBuild:         "build",
	ActionPackage:       "package",
	ActionPackageSource: "package-source",
	ActionInstall:       "install",
	ActionReinstall:     "reinstall",
	ActionDebInstall:    "debinstall",
	ActionDebReinstall:  "debreinstall",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction converts a command name back into an Action.
func ParseAction(s string) (Action, error) {
	for a, name := range actionNames {
		if name == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// Builds reports whether the action compiles the source tree first.
func (a Action) Builds() bool {
	switch a {
	case ActionBuild, ActionPackage, ActionPackageSource, ActionInstall, ActionDebInstall:
		return true
	}
	return false
}

// Packages reports whether the action produces Debian packages.
func (a Action) Packages() bool {
	switch a {
	case ActionPackage, ActionPackageSource, ActionInstall, ActionDebInstall:
		return true
	}
	return false
}

// Descriptor identifies one project and the directories derived from its name.
type Descriptor struct {
	Name         string // e.g., "libfoo" or "mods_libfoo"
	SourceDir    string // checkout being built
	BuildDir     string // out-of-tree build directory
	PackagingDir string // separate packaging checkout, may not exist
	OutputDir    string // where package versions are assembled
	LogFile      string
	Backend      BuildBackend
	VCS          VcsKind

	versionDir string
}

// VersionDir returns the package version directory, or "" until a version
// has been resolved.
func (d *Descriptor) VersionDir() string {
	return d.versionDir
}

// SetVersionDir records the directory the resolved version is packaged in.
func (d *Descriptor) SetVersionDir(dir string) {
	d.versionDir = dir
}
