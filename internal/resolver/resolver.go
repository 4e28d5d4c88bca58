package resolver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/frederic-klein/makeall/internal/changelog"
	"github.com/frederic-klein/makeall/internal/config"
	"github.com/frederic-klein/makeall/internal/project"
)

var (
	// ErrNoProjectDir is returned when a requested project directory is missing.
	ErrNoProjectDir = errors.New("project directory does not exist")
	// ErrNoDebianDir is returned when no packaging directory can be found.
	ErrNoDebianDir = errors.New("debian directory could not be found")
)

// Resolver decides what has to happen to a project. It reads the
// filesystem on every call and never runs commands.
type Resolver struct {
	layout   *config.Layout
	settings *config.Settings
}

// NewResolver creates a resolver over the given layout and settings.
func NewResolver(layout *config.Layout, settings *config.Settings) *Resolver {
	return &Resolver{
		layout:   layout,
		settings: settings,
	}
}

// Describe builds the descriptor of the project checked out at dir.
func (r *Resolver) Describe(name, dir string) (*project.Descriptor, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s (project %s)", ErrNoProjectDir, dir, name)
	}
	if err != nil {
		return nil, fmt.Errorf("inspecting project %s: %w", name, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory (project %s)", ErrNoProjectDir, dir, name)
	}

	return &project.Descriptor{
		Name:         name,
		SourceDir:    dir,
		BuildDir:     r.layout.BuildDir(name),
		PackagingDir: r.layout.PackagingDir(name),
		OutputDir:    r.layout.OutputDir(name),
		LogFile:      r.layout.LogFile(name),
		Backend:      Classify(dir),
		VCS:          DetectVCS(dir),
	}, nil
}

// FindDebianDir returns the debian directory of a project, preferring the
// separate packaging checkout over the one embedded in the code checkout.
func (r *Resolver) FindDebianDir(d *project.Descriptor) (string, error) {
	candidates := []string{
		filepath.Join(d.PackagingDir, "debian"),
		filepath.Join(d.SourceDir, r.settings.DebianDir(d.Name)),
	}
	for _, dir := range candidates {
		if isDir(dir) {
			return dir, nil
		}
	}
	return "", fmt.Errorf("%w for project %s (searched %v)", ErrNoDebianDir, d.Name, candidates)
}

// ResolveEntry reads the top changelog entry of a debian directory.
func (r *Resolver) ResolveEntry(debianDir string) (changelog.Entry, error) {
	return changelog.ParseFile(filepath.Join(debianDir, "changelog"))
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
