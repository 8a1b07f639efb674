package engine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// ErrFileIncomplete reports a file that ended before the configured
// header/unit/data rows were reached. No partial catalog entry is produced.
var ErrFileIncomplete = errors.New("file ended before the configured header rows")

// ResourceDescriptor is one retained column of a file source, as produced by
// the header/unit/group resolver. Descriptors are transient and rebuilt on
// every catalog build.
type ResourceDescriptor struct {
	// OriginalName is the raw column name from the header row.
	OriginalName string

	// ResourceID is the canonical identifier derived from OriginalName by
	// applying the rewrite rules and stripping invalid identifier characters.
	ResourceID string

	// Unit is the extracted unit string, empty when absent.
	Unit string

	// Group is the extracted group string, empty when absent. Callers apply
	// their configured default group to empty values.
	Group string
}

// ResolveStream reads header and unit rows from r and resolves them.
//
// Lines are consumed up to the row before the configured data row, capturing
// the header and unit lines on the way. Reaching end of stream earlier is
// fatal and reported as ErrFileIncomplete.
func (c *CompiledSource) ResolveStream(r io.Reader) ([]*ResourceDescriptor, error) {
	if c.headerRow == NoHeaderRow {
		return nil, fmt.Errorf("source has no header row; columns must be resolved externally")
	}

	scanner := newLineScanner(r)
	var headerLine, unitLine string

	need := max(c.headerRow, c.unitRow, c.dataRow) - 1
	for row := 0; row < need; row++ {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: wanted %d rows, got %d", ErrFileIncomplete, need, row)
		}
		if row == c.headerRow-1 {
			headerLine = scanner.Text()
		}
		if row == c.unitRow-1 {
			unitLine = scanner.Text()
		}
	}

	return c.ResolveLines(headerLine, unitLine), nil
}

// ResolveLines resolves a header line (and unit line, which may equal the
// header line when no distinct unit row is configured) into one descriptor
// per column. Dropped columns — skip-pattern matches and identifier
// validation failures — yield nil entries so that positions are preserved
// for the caller's own index bookkeeping.
//
// Header and unit rows are assumed field-simple: they are split plainly on
// the separator with no quote handling.
func (c *CompiledSource) ResolveLines(headerLine, unitLine string) []*ResourceDescriptor {
	cols := strings.Split(headerLine, string(c.sep))

	var units []string
	if unitLine != "" {
		units = strings.Split(unitLine, string(c.sep))
	}

	resources := make([]*ResourceDescriptor, len(cols))
	for i, col := range cols {
		name := strings.TrimSpace(col)

		if c.skipRe != nil && c.skipRe.MatchString(name) {
			continue
		}

		unitCell := name
		if i < len(units) {
			unitCell = strings.TrimSpace(units[i])
		}

		var unit string
		switch {
		case c.unitRe != nil:
			if m := c.unitRe.FindStringSubmatch(unitCell); len(m) >= 2 {
				unit = m[1]
			}
		case c.unitRow != c.headerRow:
			// Distinct unit row without a pattern: take the cell verbatim.
			unit = unitCell
		}

		var group string
		if c.groupRe != nil {
			if m := c.groupRe.FindStringSubmatch(name); len(m) >= 2 {
				group = m[1]
			}
		}

		id := name
		for _, rw := range c.rewrites {
			id = rw.re.ReplaceAllString(id, rw.repl)
		}
		id = SanitizeIdentifier(id)
		if !IsValidIdentifier(id) {
			continue
		}

		resources[i] = &ResourceDescriptor{
			OriginalName: name,
			ResourceID:   id,
			Unit:         unit,
			Group:        group,
		}
	}

	return resources
}

// SanitizeIdentifier strips characters that are invalid in a resource
// identifier: leading characters are dropped until a valid start character
// (letter or underscore) is found, and invalid interior characters are
// removed.
func SanitizeIdentifier(name string) string {
	var b strings.Builder
	started := false
	for _, r := range name {
		if !started {
			if isIdentStart(r) {
				b.WriteRune(r)
				started = true
			}
			continue
		}
		if isIdentPart(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidIdentifier reports whether s satisfies the resource identifier
// grammar: a letter or underscore followed by letters, digits, or
// underscores.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 {
			if !isIdentStart(r) {
				return false
			}
			continue
		}
		if !isIdentPart(r) {
			return false
		}
	}
	return true
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}

// newLineScanner wraps r with platform-agnostic line splitting and a line
// buffer large enough for wide sensor files.
func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return scanner
}
