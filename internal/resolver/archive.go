package resolver

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

var (
	// ErrNoArchive is returned when no distributable archive exists.
	ErrNoArchive = errors.New("no distributable archive found")
	// ErrAmbiguousArchive is returned when several archives exist and none
	// can be matched to the project name.
	ErrAmbiguousArchive = errors.New("cannot tell which archive belongs to the project")
)

var archiveSuffixes = []string{".tar.gz", ".tar.xz"}

var (
	tokenSplitRe  = regexp.MustCompile(`[-_ ]`)
	archiveNameRe = regexp.MustCompile(`(?i)^(.*-[^-]*)\.(tar\.(?:gz|xz))$`)
)

// FindArchive lists dir and selects the distributable archive of project.
func FindArchive(project, dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("listing %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}

	name, err := SelectArchive(project, files)
	if err != nil {
		return "", fmt.Errorf("project %s in %s: %w", project, dir, err)
	}
	return name, nil
}

// SelectArchive picks the distributable archive of project among files.
// Candidates are compressed tarballs. When there are several, each one is
// scored by the total length of the project name's words it contains and the
// highest score wins; ties go to the first name in sorted order.
func SelectArchive(project string, files []string) (string, error) {
	var candidates []string
	for _, f := range files {
		if archiveStem(f) != "" {
			candidates = append(candidates, f)
		}
	}
	sort.Strings(candidates)

	switch len(candidates) {
	case 0:
		return "", ErrNoArchive
	case 1:
		return candidates[0], nil
	}

	// Same archive offered in several formats
	if sameStem(candidates) {
		return candidates[0], nil
	}

	words := tokenSplitRe.Split(project, -1)
	best, bestScore := "", 0
	for _, c := range candidates {
		if score := Score(words, c); score > bestScore {
			best, bestScore = c, score
		}
	}

	if bestScore == 0 {
		return "", fmt.Errorf("%w: %s", ErrAmbiguousArchive, strings.Join(candidates, ", "))
	}
	return best, nil
}

// Score sums the lengths of the words that occur in filename.
func Score(words []string, filename string) int {
	score := 0
	for _, w := range words {
		if w != "" && strings.Contains(filename, w) {
			score += len(w)
		}
	}
	return score
}

// ParseArchiveName splits an archive file name into its base, which is the
// directory the archive unpacks to, and its extension.
func ParseArchiveName(filename string) (base, ext string, err error) {
	m := archiveNameRe.FindStringSubmatch(filename)
	if m == nil {
		return "", "", fmt.Errorf("could not parse the filename of archive %q", filename)
	}
	return m[1], m[2], nil
}

func archiveStem(name string) string {
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return ""
}

func sameStem(names []string) bool {
	stem := archiveStem(names[0])
	for _, n := range names[1:] {
		if archiveStem(n) != stem {
			return false
		}
	}
	return true
}
