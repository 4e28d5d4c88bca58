package resolver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pault.ag/go/debian/version"
)

// ErrNoVersionDir is returned when a project has never been packaged.
var ErrNoVersionDir = errors.New("no packaged version found")

// LatestVersionDir returns the most recently modified version directory
// below outputDir. Directories with equal times are ordered by Debian
// version. Source-only and generated debian directories are ignored.
func LatestVersionDir(outputDir string) (string, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return "", fmt.Errorf("listing %s: %w", outputDir, err)
	}

	var best os.FileInfo
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "debian" || strings.HasSuffix(e.Name(), "_source") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return "", err
		}
		if best == nil || newer(info, best) {
			best = info
		}
	}

	if best == nil {
		return "", fmt.Errorf("%w in %s", ErrNoVersionDir, outputDir)
	}
	return filepath.Join(outputDir, best.Name()), nil
}

func newer(a, b os.FileInfo) bool {
	if !a.ModTime().Equal(b.ModTime()) {
		return a.ModTime().After(b.ModTime())
	}
	va, errA := version.Parse(a.Name())
	vb, errB := version.Parse(b.Name())
	if errA != nil || errB != nil {
		return a.Name() > b.Name()
	}
	return version.Compare(va, vb) > 0
}
