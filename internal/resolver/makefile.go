package resolver

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var checkRuleRe = regexp.MustCompile(`\bcheck:`)

// HasCheckRule reports whether the Makefile at path defines a check rule.
func HasCheckRule(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return checkRuleRe.Match(data), nil
}

// HasDistTarget reports whether the Makefile at path has a line starting
// with a dist target.
func HasDistTarget(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "dist:") {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	return false, nil
}
