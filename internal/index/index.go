package index

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoMatch is returned when none of the requested names matches a project.
var ErrNoMatch = errors.New("project not found")

// Entry is one buildable project found in the checkout tree.
type Entry struct {
	Name string // e.g., "glibmm" or "mods_glibmm"
	Dir  string
}

// ProjectIndex lists the projects available below a set of checkout dirs.
type ProjectIndex struct {
	dirs    []string
	entries []Entry
	byName  map[string]Entry
}

// NewProjectIndex creates an index over dirs. Call Load before use.
func NewProjectIndex(dirs ...string) *ProjectIndex {
	return &ProjectIndex{
		dirs:   dirs,
		byName: make(map[string]Entry),
	}
}

// Load scans the checkout dirs. Every subdirectory is a project, except
// that a subdirectory holding *.dsc files is a pristine source area whose
// children with a debian/ dir become projects named "<dir>_<child>".
// Checkout dirs that do not exist are skipped.
func (idx *ProjectIndex) Load() error {
	idx.entries = nil
	idx.byName = make(map[string]Entry)

	for _, d := range idx.dirs {
		entries, err := os.ReadDir(d)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("listing %s: %w", d, err)
		}

		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			found, err := projectsIn(filepath.Join(d, e.Name()), e.Name())
			if err != nil {
				return err
			}
			for _, p := range found {
				idx.add(p)
			}
		}
	}

	return nil
}

func (idx *ProjectIndex) add(e Entry) {
	idx.entries = append(idx.entries, e)
	if _, ok := idx.byName[e.Name]; !ok {
		idx.byName[e.Name] = e
	}
}

func projectsIn(path, name string) ([]Entry, error) {
	dscs, err := filepath.Glob(filepath.Join(path, "*.dsc"))
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	if len(dscs) == 0 {
		return []Entry{{Name: name, Dir: path}}, nil
	}

	children, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", path, err)
	}

	var found []Entry
	for _, c := range children {
		if !c.IsDir() {
			continue
		}
		childPath := filepath.Join(path, c.Name())
		if info, err := os.Stat(filepath.Join(childPath, "debian")); err != nil || !info.IsDir() {
			continue
		}
		found = append(found, Entry{Name: name + "_" + c.Name(), Dir: childPath})
	}
	return found, nil
}

// Entries returns every project found by Load, in scan order.
func (idx *ProjectIndex) Entries() []Entry {
	return idx.entries
}

// Lookup finds a project by its exact name.
func (idx *ProjectIndex) Lookup(name string) (Entry, bool) {
	e, ok := idx.byName[name]
	return e, ok
}

// Match resolves requested names to projects. A name that equals a project
// name selects only that project; otherwise it selects every project whose
// name contains it. The union is returned in scan order without duplicates.
func (idx *ProjectIndex) Match(names []string) ([]Entry, error) {
	selected := make(map[Entry]bool)

	for _, n := range names {
		if e, ok := idx.Lookup(n); ok {
			selected[e] = true
			continue
		}
		for _, e := range idx.entries {
			if strings.Contains(e.Name, n) {
				selected[e] = true
			}
		}
	}

	var matched []Entry
	for _, e := range idx.entries {
		if selected[e] {
			matched = append(matched, e)
			delete(selected, e)
		}
	}

	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMatch, strings.Join(names, ", "))
	}
	return matched, nil
}
