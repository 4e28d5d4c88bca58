package driver

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/frederic-klein/makeall/internal/changelog"
	"github.com/frederic-klein/makeall/internal/config"
	"github.com/frederic-klein/makeall/internal/extractor"
	"github.com/frederic-klein/makeall/internal/project"
	"github.com/frederic-klein/makeall/internal/resolver"
)

// path = some/dir
var submodulePathRe = regexp.MustCompile(`^\s*path\s*=\s*(.+?)\s*$`)

// distributable is a source archive ready to become the orig tarball.
type distributable struct {
	Path    string // archive file
	TarBase string // top-level directory inside the archive
	Ext     string // "tar.gz" or "tar.xz"
	Entry   changelog.Entry
}

// makeDistributable produces the upstream source archive of a project with
// make dist or git archive, whichever fits.
func (dr *Driver) makeDistributable(d *project.Descriptor) (*distributable, error) {
	switch method := dr.settings.DistMethod(d.Name); method {
	case config.DistMake:
		return dr.makeDist(d)
	case config.DistGit:
		if d.VCS != project.VcsGit {
			return nil, fmt.Errorf("project %s: %w: dist_method git on a checkout without git", d.Name, ErrUnsupportedDist)
		}
		return dr.gitArchive(d)
	case config.DistAuto:
	default:
		return nil, fmt.Errorf("project %s: unknown dist_method %q", d.Name, method)
	}

	if d.Backend == project.BackendAutotools {
		return dr.makeDist(d)
	}
	if d.Backend == project.BackendMakefile {
		hasDist, err := resolver.HasDistTarget(filepath.Join(d.SourceDir, "Makefile"))
		if err != nil {
			return nil, fmt.Errorf("reading Makefile of %s: %w", d.Name, err)
		}
		if hasDist {
			return dr.makeDist(d)
		}
	}
	if d.VCS == project.VcsGit {
		return dr.gitArchive(d)
	}
	return nil, fmt.Errorf("project %s: %w", d.Name, ErrUnsupportedDist)
}

func (dr *Driver) makeDist(d *project.Descriptor) (*distributable, error) {
	logFor(d).Info("Using make dist packager")

	if err := dr.run(d.BuildDir, "make", "dist"); err != nil {
		return nil, err
	}

	archive, err := resolver.FindArchive(d.Name, d.BuildDir)
	if err != nil {
		return nil, err
	}
	base, ext, err := resolver.ParseArchiveName(archive)
	if err != nil {
		return nil, err
	}

	entry, err := dr.entryFor(d)
	if errors.Is(err, resolver.ErrNoDebianDir) {
		// Packaging will be generated from the tarball later on
		entry = entryFromTarBase(base)
		logFor(d).Warnf("No debian directory yet, assuming %s %s", entry.Name, entry.Version)
	} else if err != nil {
		return nil, err
	}

	return &distributable{
		Path:    filepath.Join(d.BuildDir, archive),
		TarBase: base,
		Ext:     ext,
		Entry:   entry,
	}, nil
}

func (dr *Driver) gitArchive(d *project.Descriptor) (*distributable, error) {
	logFor(d).Info("Using git packager")

	entry, err := dr.entryFor(d)
	if err != nil {
		return nil, err
	}
	tarBase := entry.Name + "-" + entry.Version
	if err := os.MkdirAll(d.BuildDir, 0755); err != nil {
		return nil, fmt.Errorf("creating build dir: %w", err)
	}
	dist := filepath.Join(d.BuildDir, tarBase+".tar.gz")

	submodules, err := readSubmodulePaths(filepath.Join(d.SourceDir, ".gitmodules"))
	if err != nil {
		return nil, err
	}

	if len(submodules) == 0 {
		err := dr.run(d.SourceDir, "git", "archive", "--worktree-attributes",
			"--prefix="+tarBase+"/", "HEAD", "--format=tar.gz", "-o", dist)
		if err != nil {
			return nil, err
		}
	} else {
		if err := dr.archiveWithSubmodules(d, tarBase, submodules, dist); err != nil {
			return nil, err
		}
	}

	return &distributable{Path: dist, TarBase: tarBase, Ext: "tar.gz", Entry: entry}, nil
}

// archiveWithSubmodules archives the superproject and each submodule under
// its path, then joins the parts into one tarball.
func (dr *Driver) archiveWithSubmodules(d *project.Descriptor, tarBase string, submodules []string, dist string) error {
	partsDir, err := os.MkdirTemp(d.BuildDir, ".dist-parts-")
	if err != nil {
		return fmt.Errorf("creating archive parts dir: %w", err)
	}
	defer os.RemoveAll(partsDir)

	mainPart := filepath.Join(partsDir, "0.tar")
	err = dr.run(d.SourceDir, "git", "archive", "--worktree-attributes",
		"--prefix="+tarBase+"/", "HEAD", "--format=tar", "-o", mainPart)
	if err != nil {
		return err
	}
	parts := []string{mainPart}

	for i, sub := range submodules {
		part := filepath.Join(partsDir, fmt.Sprintf("%d.tar", i+1))
		err := dr.run(filepath.Join(d.SourceDir, sub), "git", "archive", "--worktree-attributes",
			"--prefix="+tarBase+"/"+sub+"/", "HEAD", "--format=tar", "-o", part)
		if err != nil {
			return err
		}
		parts = append(parts, part)
	}

	return extractor.Concatenate(dist, parts...)
}

// readSubmodulePaths lists the submodule paths in a .gitmodules file. A
// missing file means no submodules.
func readSubmodulePaths(path string) ([]string, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	var paths []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if m := submodulePathRe.FindStringSubmatch(scanner.Text()); m != nil {
			paths = append(paths, m[1])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return paths, nil
}

func (dr *Driver) entryFor(d *project.Descriptor) (changelog.Entry, error) {
	debianDir, err := dr.resolver.FindDebianDir(d)
	if err != nil {
		return changelog.Entry{}, err
	}
	return dr.resolver.ResolveEntry(debianDir)
}

// entryFromTarBase splits "name-version" at the last dash.
func entryFromTarBase(base string) changelog.Entry {
	idx := strings.LastIndex(base, "-")
	return changelog.Entry{Name: base[:idx], Version: base[idx+1:]}
}
