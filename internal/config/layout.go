package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

const defaultMirror = "http://ftp.lt.debian.org/debian/"

var (
	projectDirNames  = []string{"checkouts", "local", "mods"}
	pristineDirNames = []string{"checkouts_debian", "mods_debian"}
)

// Layout is the directory layout of the checkout tree. It is built once
// at startup and passed to everything that needs a path.
type Layout struct {
	Root               string
	ArchiveDir         string // local apt archive
	BuildRoot          string // build/<project>
	PackageRoot        string // build_packaging/<project>/<version>
	PackagingCheckouts string
	LogDir             string
	ProjectDirs        []string

	Pristine     bool
	DebianBuild  string // build_debian, replaces PackageRoot for pristine builds
	PristineDirs []string

	Pbuilder Pbuilder
}

// Pbuilder holds the chroot paths and mirror options.
type Pbuilder struct {
	Root         string
	WorkDir      string
	CacheDir     string
	TgzDir       string
	BaseTgz      string
	Distribution string
	Suite        string
	Mirror       string
	OtherMirror  string // empty unless Suite differs from Distribution
	Architecture string
}

// NewLayout derives every directory from the checkout root and archive.
func NewLayout(root, archive string, pb PbuilderSettings) *Layout {
	l := &Layout{
		Root:               root,
		ArchiveDir:         archive,
		BuildRoot:          filepath.Join(root, "build"),
		PackageRoot:        filepath.Join(root, "build_packaging"),
		DebianBuild:        filepath.Join(root, "build_debian"),
		PackagingCheckouts: filepath.Join(root, "checkouts_packaging"),
		LogDir:             filepath.Join(root, "log"),
	}
	for _, fn := range projectDirNames {
		l.ProjectDirs = append(l.ProjectDirs, filepath.Join(root, fn))
	}
	for _, fn := range pristineDirNames {
		l.PristineDirs = append(l.PristineDirs, filepath.Join(root, fn))
	}

	mirror := pb.Mirror
	if mirror == "" {
		mirror = defaultMirror
	}
	dist := pb.Dist
	if dist == "" {
		dist = "unstable"
	}
	l.Pbuilder = Pbuilder{
		Root:         filepath.Join(root, "build_pbuilder"),
		Mirror:       mirror,
		Architecture: pb.Architecture,
	}
	l.Pbuilder.WorkDir = filepath.Join(l.Pbuilder.Root, "workdir")
	l.Pbuilder.CacheDir = filepath.Join(l.Pbuilder.Root, "aptcache")
	l.Pbuilder.TgzDir = filepath.Join(l.Pbuilder.Root, "base_tgzs")
	l.SetPbuilderDist(dist)
	return l
}

// SetPbuilderDist selects the pbuilder distribution. A value such as
// "sid-experimental" uses "sid" as the base and adds the full suite as an
// extra mirror.
func (l *Layout) SetPbuilderDist(dist string) {
	pb := &l.Pbuilder
	pb.Suite = dist
	pb.Distribution = dist
	if idx := strings.Index(dist, "-"); idx != -1 {
		pb.Distribution = dist[:idx]
	}

	pb.OtherMirror = ""
	if pb.Suite != pb.Distribution {
		pb.OtherMirror = fmt.Sprintf("deb %s %s main", pb.Mirror, pb.Suite)
	}

	base := "base_" + pb.Suite
	if pb.Architecture != "" {
		base += "_" + pb.Architecture
	}
	pb.BaseTgz = filepath.Join(pb.TgzDir, base+".tgz")
}

// UsePristine switches the layout to pristine Debian checkouts.
func (l *Layout) UsePristine() {
	l.Pristine = true
}

// SearchDirs returns the directories projects are looked up in.
func (l *Layout) SearchDirs() []string {
	if l.Pristine {
		return l.PristineDirs
	}
	return l.ProjectDirs
}

// BuildDir is the out-of-tree build directory of a project.
func (l *Layout) BuildDir(name string) string {
	return filepath.Join(l.BuildRoot, name)
}

// OutputDir is where package versions of a project are assembled.
func (l *Layout) OutputDir(name string) string {
	if l.Pristine {
		return filepath.Join(l.DebianBuild, name)
	}
	return filepath.Join(l.PackageRoot, name)
}

// PackagingDir is the separate packaging checkout of a project.
func (l *Layout) PackagingDir(name string) string {
	return filepath.Join(l.PackagingCheckouts, name)
}

// LogFile is the run log of a project.
func (l *Layout) LogFile(name string) string {
	return filepath.Join(l.LogDir, name)
}

// OutputRoot is the parent of all OutputDir values.
func (l *Layout) OutputRoot() string {
	if l.Pristine {
		return l.DebianBuild
	}
	return l.PackageRoot
}
