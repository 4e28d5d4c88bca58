package driver

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Objects copied into the package build are dated this far ahead so make
// treats them as up to date.
const hookTimeShift = 1040 * time.Second

var hookPatterns = []string{"*.o", "*.lo", "*.Plo"}

// CopyBuildFiles copies compiled objects and libtool dependency files from
// a previous out-of-tree build at src into target, recreating the directory
// structure, so a package build can reuse them. It returns the number of
// files copied.
func CopyBuildFiles(src, target string, now time.Time) (int, error) {
	stamp := now.Add(hookTimeShift)
	copied := 0

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(target, rel)

		if d.IsDir() {
			return os.MkdirAll(dst, 0755)
		}
		if !d.Type().IsRegular() || !matchesAny(d.Name(), hookPatterns) {
			return nil
		}

		if err := copyFile(path, dst, 0644); err != nil {
			return err
		}
		if err := os.Chtimes(dst, stamp, stamp); err != nil {
			return err
		}
		copied++
		return nil
	})
	if err != nil {
		return copied, fmt.Errorf("copying build files from %s: %w", src, err)
	}
	return copied, nil
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}
