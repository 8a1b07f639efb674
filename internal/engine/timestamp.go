package engine

import (
	"fmt"
	"strings"
	"time"
)

// translateTimePattern converts a yyyy-MM-dd HH:mm:ss style parse pattern to
// a Go reference layout. It returns whether the pattern carries explicit zone
// information; zone-less patterns are later interpreted at the file source's
// configured UTC offset.
//
// Supported tokens: yyyy yy MM M dd d HH H hh h mm m ss s f/F runs tt
// zzz zz z K, plus single-quoted literals. Non-letter characters pass
// through verbatim. Unrecognized format letters are configuration errors.
func translateTimePattern(pattern string) (layout string, hasZone bool, err error) {
	var b strings.Builder

	for i := 0; i < len(pattern); {
		ch := pattern[i]

		// Single-quoted literal text, .NET style.
		if ch == '\'' {
			end := strings.IndexByte(pattern[i+1:], '\'')
			if end < 0 {
				return "", false, fmt.Errorf("unterminated literal at offset %d", i)
			}
			b.WriteString(pattern[i+1 : i+1+end])
			i += end + 2
			continue
		}

		run := 1
		for i+run < len(pattern) && pattern[i+run] == ch {
			run++
		}

		switch ch {
		case 'y':
			if run >= 4 {
				b.WriteString("2006")
			} else {
				b.WriteString("06")
			}
		case 'M':
			if run >= 2 {
				b.WriteString("01")
			} else {
				b.WriteString("1")
			}
		case 'd':
			if run >= 2 {
				b.WriteString("02")
			} else {
				b.WriteString("2")
			}
		case 'H':
			b.WriteString("15")
		case 'h':
			if run >= 2 {
				b.WriteString("03")
			} else {
				b.WriteString("3")
			}
		case 'm':
			if run >= 2 {
				b.WriteString("04")
			} else {
				b.WriteString("4")
			}
		case 's':
			if run >= 2 {
				b.WriteString("05")
			} else {
				b.WriteString("5")
			}
		case 'f':
			// Fractional seconds. The literal dot precedes the run in the
			// source pattern; Go folds it into the layout token.
			stripTrailingDot(&b)
			b.WriteString("." + strings.Repeat("0", run))
		case 'F':
			stripTrailingDot(&b)
			b.WriteString("." + strings.Repeat("9", run))
		case 't':
			b.WriteString("PM")
		case 'z':
			switch {
			case run >= 3:
				b.WriteString("-07:00")
			case run == 2:
				b.WriteString("-07")
			default:
				b.WriteString("-7")
			}
			hasZone = true
		case 'K':
			b.WriteString("Z07:00")
			hasZone = true
		case 'T', ' ':
			b.WriteString(strings.Repeat(string(ch), run))
		default:
			if isASCIILetter(ch) {
				return "", false, fmt.Errorf("unsupported format token %q", strings.Repeat(string(ch), run))
			}
			b.WriteString(strings.Repeat(string(ch), run))
		}

		i += run
	}

	return b.String(), hasZone, nil
}

func stripTrailingDot(b *strings.Builder) {
	s := b.String()
	if strings.HasSuffix(s, ".") {
		b.Reset()
		b.WriteString(s[:len(s)-1])
	}
}

func isASCIILetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

// parseTimestamp parses one timestamp cell against the compiled layout and
// returns the absolute instant it names. Patterns without zone information
// are read as local wall-clock time at the source's UTC offset; the
// configured timestamp offset is subtracted before conversion.
func (c *CompiledSource) parseTimestamp(cell string) (time.Time, error) {
	raw := strings.TrimSpace(UnquoteCell(cell))

	t, err := time.Parse(c.tsLayout, raw)
	if err != nil {
		return time.Time{}, err
	}

	t = t.Add(-c.settings.DateTimeMode.Offset)
	if !c.tsHasZone {
		// time.Parse yielded the wall-clock values in UTC; shifting by the
		// source offset turns them into the absolute instant.
		t = t.Add(-c.settings.UTCOffset)
	}
	return t, nil
}
