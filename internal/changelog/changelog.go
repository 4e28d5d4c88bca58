package changelog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

var (
	// ErrNoEntry is returned when the changelog holds no entry line at all.
	ErrNoEntry = errors.New("no changelog entry found")
	// ErrMalformedEntry is returned when the first entry line does not parse.
	ErrMalformedEntry = errors.New("malformed changelog entry")
)

// name (version[-revision])
var entryRe = regexp.MustCompile(`^\s*([\w+\-.]+)\s*\(([\w.:+~]+)(?:-([\w.~+:]+))?\)`)

// Entry is the topmost entry of a Debian changelog.
type Entry struct {
	Name     string
	Version  string // upstream version, epoch stripped
	Revision string // Debian revision, empty for native packages
}

// IsNative reports whether the entry carries no Debian revision.
func (e Entry) IsNative() bool {
	return e.Revision == ""
}

// FullVersion returns version-revision, or just the version for native packages.
func (e Entry) FullVersion() string {
	if e.IsNative() {
		return e.Version
	}
	return e.Version + "-" + e.Revision
}

// DscName returns the file name of the source package description.
func (e Entry) DscName() string {
	return fmt.Sprintf("%s_%s.dsc", e.Name, e.FullVersion())
}

// OrigTarballName returns the upstream tarball name for the given
// extension, e.g. "tar.gz".
func (e Entry) OrigTarballName(ext string) string {
	return fmt.Sprintf("%s_%s.orig.%s", e.Name, e.Version, ext)
}

// ParseError reports a changelog that cannot yield an entry.
type ParseError struct {
	Path string
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s:%d: %v: %q", e.Path, e.Line, e.Err, e.Text)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseFile reads the first entry of the changelog at path.
func ParseFile(path string) (Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return Entry{}, fmt.Errorf("opening changelog: %w", err)
	}
	defer file.Close()

	return parse(file, path)
}

// Parse reads the first entry of changelog text.
func Parse(r io.Reader) (Entry, error) {
	return parse(r, "changelog")
}

func parse(r io.Reader, path string) (Entry, error) {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		// Only the first entry line counts
		matches := entryRe.FindStringSubmatch(line)
		if matches == nil {
			return Entry{}, &ParseError{Path: path, Line: lineNo, Text: line, Err: ErrMalformedEntry}
		}

		return Entry{
			Name:     matches[1],
			Version:  stripEpoch(matches[2]),
			Revision: matches[3],
		}, nil
	}

	if err := scanner.Err(); err != nil {
		return Entry{}, fmt.Errorf("reading changelog: %w", err)
	}

	return Entry{}, &ParseError{Path: path, Err: ErrNoEntry}
}

func stripEpoch(v string) string {
	if idx := strings.LastIndex(v, ":"); idx != -1 {
		return v[idx+1:]
	}
	return v
}
