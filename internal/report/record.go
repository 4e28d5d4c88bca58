package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ResultOK marks a project that was processed without error.
const ResultOK = "ok"

// Record describes one processed project in a batch run.
type Record struct {
	Time       time.Time
	Project    string
	Action     string
	Backend    string
	Name       string // source package name from the changelog
	Version    string
	Revision   string
	Archive    string
	VersionDir string
	Result     string
}

// Failed reports whether the run ended with an error.
func (r *Record) Failed() bool {
	return r.Result != ResultOK
}

// Append adds rec to the log file at path, creating it if needed.
func Append(path string, rec *Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	e := NewEmitter(f)
	if info.Size() == 0 {
		if err := e.EmitHeader(); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	if err := e.Emit(rec); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// ReadAll returns every record in the log file at path. A missing file
// holds no records.
func ReadAll(path string) ([]*Record, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	return NewParser(f).Parse()
}

// Latest returns the most recent record in the log file at path, or nil
// when there is none.
func Latest(path string) (*Record, error) {
	records, err := ReadAll(path)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[len(records)-1], nil
}
