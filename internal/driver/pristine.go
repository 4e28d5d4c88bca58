package driver

import (
	"fmt"
	"os"
	"path/filepath"

	"pault.ag/go/debian/control"

	"github.com/frederic-klein/makeall/internal/changelog"
	"github.com/frederic-klein/makeall/internal/project"
	"github.com/frederic-klein/makeall/internal/resolver"
)

// PackagePristine packages a Debian source checkout as is, with
// git-buildpackage from its pristine-tar branch, or with dpkg-source when
// an orig tarball lies next to the checkout. Source packages and pbuilder
// builds go through a .dsc in "<version>_source".
func (dr *Driver) PackagePristine(d *project.Descriptor, source bool) (*Packaged, error) {
	l := logFor(d)
	if dr.opts.UsePbuilder {
		l.Info("Packaging pristine sources with pbuilder")
	} else {
		l.Info("Packaging pristine sources")
	}

	debianDir := filepath.Join(d.SourceDir, "debian")
	if !isDir(debianDir) {
		return nil, fmt.Errorf("%w for project %s", resolver.ErrNoDebianDir, d.Name)
	}
	entry, err := dr.resolver.ResolveEntry(debianDir)
	if err != nil {
		return nil, err
	}
	res := &Packaged{Entry: entry}

	versionDir := filepath.Join(d.OutputDir, entry.Version)
	sourceDir := versionDir + "_source"

	if !source && !dr.opts.UsePbuilder {
		if err := cleanDir(versionDir); err != nil {
			return res, err
		}
		d.SetVersionDir(versionDir)
		args := append([]string{"buildpackage", "--git-pristine-tar",
			"--git-export-dir=" + versionDir, "-sa"}, dr.keyArgs(d)...)
		return res, dr.run(d.SourceDir, "gbp", args...)
	}

	if err := cleanDir(sourceDir); err != nil {
		return res, err
	}
	d.SetVersionDir(sourceDir)

	origs, err := filepath.Glob(filepath.Join(filepath.Dir(d.SourceDir),
		fmt.Sprintf("%s_%s.orig.tar.*", entry.Name, entry.Version)))
	if err != nil {
		return res, err
	}

	var dscPath string
	if len(origs) > 0 {
		l.Info("Packaging bare sources without VCS")
		if err := dr.run(d.SourceDir, "dpkg-source", "-b", "."); err != nil {
			return res, err
		}
		dscPath = filepath.Join(filepath.Dir(d.SourceDir), entry.DscName())
	} else {
		args := append([]string{"buildpackage", "--git-pristine-tar",
			"--git-export-dir=" + sourceDir, "-S", "-sa"}, dr.keyArgs(d)...)
		if err := dr.run(d.SourceDir, "gbp", args...); err != nil {
			return res, err
		}
		dscPath = filepath.Join(sourceDir, entry.DscName())
	}
	res.Archive = dscPath

	if !dr.opts.UsePbuilder {
		return res, nil
	}

	if err := cleanDir(versionDir); err != nil {
		return res, err
	}
	d.SetVersionDir(versionDir)

	l.Infof("Using dsc: '%s'", dscPath)
	if err := verifyDsc(dscPath, entry); err != nil {
		return res, err
	}
	return res, dr.pbuilderBuild(dscPath, versionDir)
}

// verifyDsc checks that the .dsc describes the changelog's source package
// and that every file it lists is present.
func verifyDsc(path string, entry changelog.Entry) error {
	dsc, err := control.ParseDscFile(path)
	if err != nil {
		return fmt.Errorf("could not read .dsc file: %w", err)
	}
	if dsc.Source != entry.Name {
		return fmt.Errorf("%s describes source '%s', expected '%s'", path, dsc.Source, entry.Name)
	}
	for _, f := range dsc.Files {
		p := filepath.Join(filepath.Dir(path), f.Filename)
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("file listed in %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}
