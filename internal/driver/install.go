package driver

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/frederic-klein/makeall/internal/project"
	"github.com/frederic-klein/makeall/internal/resolver"
)

// Install installs the .deb files of the project's package version into
// the local system.
func (dr *Driver) Install(d *project.Descriptor) error {
	debs, dir, err := dr.packages(d)
	if err != nil {
		return err
	}

	logFor(d).Infof("Installing project: '%s'", d.Name)
	install := dr.settings.Install()
	args := append(append([]string{}, install[1:]...), debs...)
	return dr.run(dir, install[0], args...)
}

// DebInstall copies the .deb files of the project's package version into
// the local archive and refreshes it.
func (dr *Driver) DebInstall(d *project.Descriptor) error {
	debs, _, err := dr.packages(d)
	if err != nil {
		return err
	}

	logFor(d).Infof("Adding project '%s' to %s", d.Name, dr.layout.ArchiveDir)
	if err := os.MkdirAll(dr.layout.ArchiveDir, 0755); err != nil {
		return fmt.Errorf("creating archive dir: %w", err)
	}
	for _, deb := range debs {
		dst := filepath.Join(dr.layout.ArchiveDir, filepath.Base(deb))
		if err := copyFile(deb, dst, 0644); err != nil {
			return fmt.Errorf("copying %s to the archive: %w", filepath.Base(deb), err)
		}
	}

	reload := dr.settings.Reload()
	return dr.run(dr.layout.ArchiveDir, reload[0], reload[1:]...)
}

// packages lists the .deb files of the version built in this run, or of
// the most recent one when nothing was built.
func (dr *Driver) packages(d *project.Descriptor) ([]string, string, error) {
	dir := d.VersionDir()
	if dir == "" {
		latest, err := resolver.LatestVersionDir(d.OutputDir)
		if err != nil {
			return nil, "", fmt.Errorf("project %s: %w", d.Name, err)
		}
		d.SetVersionDir(latest)
		dir = latest
	}

	debs, err := filepath.Glob(filepath.Join(dir, "*.deb"))
	if err != nil {
		return nil, "", err
	}
	if len(debs) == 0 {
		return nil, "", fmt.Errorf("project %s: no .deb files in %s", d.Name, dir)
	}
	return debs, dir, nil
}
