package report

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

var (
	runRe   = regexp.MustCompile(`^run (\S+)$`)
	fieldRe = regexp.MustCompile(`^  (\w+): (.*)$`)
)

// Parser reads run records in the run log format.
type Parser struct {
	r io.Reader
}

// NewParser creates a new run log parser.
func NewParser(r io.Reader) *Parser {
	return &Parser{r: r}
}

// Parse reads every record. Unknown fields are ignored.
func (p *Parser) Parse() ([]*Record, error) {
	var records []*Record
	var current *Record

	scanner := bufio.NewScanner(p.r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if matches := runRe.FindStringSubmatch(line); matches != nil {
			ts, err := time.Parse(time.RFC3339, matches[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: parsing run time: %w", lineNo, err)
			}
			current = &Record{Time: ts}
			records = append(records, current)
			continue
		}

		if current == nil {
			continue
		}

		matches := fieldRe.FindStringSubmatch(line)
		if matches == nil {
			continue
		}
		switch value := matches[2]; matches[1] {
		case "project":
			current.Project = value
		case "action":
			current.Action = value
		case "backend":
			current.Backend = value
		case "name":
			current.Name = value
		case "version":
			current.Version = value
		case "revision":
			current.Revision = value
		case "archive":
			current.Archive = value
		case "version_dir":
			current.VersionDir = value
		case "result":
			current.Result = value
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading run log: %w", err)
	}

	return records, nil
}
