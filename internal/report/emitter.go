package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const header = "# makeall run log: version 1.0\n"

// Emitter writes run records in the run log format.
type Emitter struct {
	w io.Writer
}

// NewEmitter creates a new run log emitter.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

// EmitHeader writes the format line that starts every log file.
func (e *Emitter) EmitHeader() error {
	_, err := fmt.Fprint(e.w, header)
	return err
}

// Emit writes records in order. Empty fields are omitted.
func (e *Emitter) Emit(records ...*Record) error {
	for _, r := range records {
		if err := e.emitRecord(r); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emitter) emitRecord(r *Record) error {
	if _, err := fmt.Fprintf(e.w, "run %s\n", r.Time.UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	fields := []struct {
		key, value string
	}{
		{"project", r.Project},
		{"action", r.Action},
		{"backend", r.Backend},
		{"name", r.Name},
		{"version", r.Version},
		{"revision", r.Revision},
		{"archive", r.Archive},
		{"version_dir", r.VersionDir},
		{"result", r.Result},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if _, err := fmt.Fprintf(e.w, "  %s: %s\n", f.key, singleLine(f.value)); err != nil {
			return err
		}
	}

	return nil
}

// singleLine folds joined error messages onto one line.
func singleLine(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\n", "; ")), " ")
}
