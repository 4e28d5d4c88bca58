package driver

import (
	"fmt"
	"os"
	"path/filepath"

	"pault.ag/go/debian/control"

	"github.com/frederic-klein/makeall/internal/changelog"
	"github.com/frederic-klein/makeall/internal/extractor"
	"github.com/frederic-klein/makeall/internal/project"
	"github.com/frederic-klein/makeall/internal/shell"
)

// Packaged describes the outcome of a packaging step.
type Packaged struct {
	Entry   changelog.Entry
	Archive string // orig tarball or .dsc the packages were built from
}

// Package creates the upstream archive of a built project, unpacks it as
// the orig tarball of the changelog version, adds the packaging and runs
// debuild. With source set only a source package is built.
func (dr *Driver) Package(d *project.Descriptor, source bool) (*Packaged, error) {
	l := logFor(d)
	l.Infof("Packaging project '%s'", d.Name)

	dist, err := dr.makeDistributable(d)
	if err != nil {
		return nil, err
	}
	entry := dist.Entry
	l.Infof("File: %s", dist.Path)
	l.Infof("Name: %s; version: %s", entry.Name, entry.Version)
	l.Debugf("Tar-dir: %s", dist.TarBase)

	versionDir := filepath.Join(d.OutputDir, entry.Version)
	if err := cleanDir(versionDir); err != nil {
		return nil, err
	}
	d.SetVersionDir(versionDir)

	origTarball := filepath.Join(versionDir, entry.OrigTarballName(dist.Ext))
	res := &Packaged{Entry: entry, Archive: origTarball}
	if err := moveFile(dist.Path, origTarball); err != nil {
		return res, fmt.Errorf("moving distributable: %w", err)
	}

	if _, err := extractor.Extract(origTarball, versionDir); err != nil {
		return res, err
	}
	tree := filepath.Join(versionDir, dist.TarBase)
	if !isDir(tree) {
		return res, fmt.Errorf("failed to extract distributable archive to %s", tree)
	}

	if err := dr.importDebianDir(d, origTarball, tree); err != nil {
		return res, err
	}
	dr.checkControl(d, tree, entry)

	return res, dr.debuild(d, tree, source)
}

// importDebianDir puts packaging into the unpacked tree, taking it from the
// packaging checkout or the code checkout. When neither has one and the
// archive does not ship one, dh_make generates a skeleton for review.
func (dr *Driver) importDebianDir(d *project.Descriptor, origTarball, tree string) error {
	l := logFor(d)
	treeDebian := filepath.Join(tree, "debian")

	candidates := []struct {
		repo string
		dir  string
	}{
		{"packaging", filepath.Join(d.PackagingDir, "debian")},
		{"code", filepath.Join(d.SourceDir, dr.settings.DebianDir(d.Name))},
	}
	for _, c := range candidates {
		if !isDir(c.dir) {
			continue
		}
		l.Infof("Debian dir in %s repo: %s", c.repo, c.dir)

		if _, err := os.Lstat(treeDebian); err == nil {
			l.Warn("Debian dir comes with source package too. Overwriting")
			if err := os.RemoveAll(treeDebian); err != nil {
				return fmt.Errorf("removing shipped debian dir: %w", err)
			}
		}
		if err := copyTree(c.dir, treeDebian); err != nil {
			return fmt.Errorf("importing debian dir: %w", err)
		}
		return nil
	}

	if isDir(treeDebian) {
		l.Warn("Debian dir is distributed with the source package")
		return nil
	}

	if err := dr.run(tree, "dh_make", "-f", origTarball); err != nil {
		return err
	}
	review := filepath.Join(d.OutputDir, "debian")
	if err := os.RemoveAll(review); err != nil {
		return fmt.Errorf("removing %s: %w", review, err)
	}
	if err := copyTree(treeDebian, review); err != nil {
		return fmt.Errorf("saving generated debian dir: %w", err)
	}
	return fmt.Errorf("project %s: %w at %s", d.Name, ErrDebianDirCreated, review)
}

// checkControl warns when debian/control names a different source package
// than the changelog.
func (dr *Driver) checkControl(d *project.Descriptor, tree string, entry changelog.Entry) {
	path := filepath.Join(tree, "debian", "control")
	con, err := control.ParseControlFile(path)
	if err != nil {
		logFor(d).Warnf("Could not parse %s: %v", path, err)
		return
	}
	if con.Source.Source != entry.Name {
		logFor(d).Warnf("debian/control names source '%s' but the changelog names '%s'", con.Source.Source, entry.Name)
	}
}

// keyArgs returns the signing arguments for the dpkg tools.
func (dr *Driver) keyArgs(d *project.Descriptor) []string {
	key := dr.settings.SignKey(d.Name)
	if key == "" {
		return []string{"-us", "-uc"}
	}
	return []string{"-k" + key}
}

func (dr *Driver) debuild(d *project.Descriptor, tree string, source bool) error {
	args := []string{
		fmt.Sprintf("-eDEB_BUILD_OPTIONS=parallel=%d", dr.settings.Jobs(d.Name)),
		"--no-lintian",
	}
	var env map[string]string

	if source {
		args = append(args, "-S", "-sa")
	} else {
		if sub := dr.settings.HookSubdir(d.Name); sub != "" && dr.opts.HookCommand != "" {
			args = append(args,
				fmt.Sprintf("--hook-build=%s %s", dr.opts.HookCommand, sub),
				"-e", BuildPathEnv)
			env = map[string]string{BuildPathEnv: d.BuildDir}
		}
		args = append(args, "-sa")
	}
	args = append(args, dr.keyArgs(d)...)

	logFor(d).Infof("Building packages of '%s'", d.Name)
	return dr.runner.Run(shell.Command{Dir: tree, Env: env, Name: "debuild", Args: args})
}
