package engine

import "strings"

// LocateCell returns the raw slice of the field at the given zero-based index
// within line, using sep as the field separator.
//
// Fields whose first character is a double quote are scanned RFC4180-style:
// two consecutive quotes inside a quoted region are an escaped literal quote,
// and the closing quote must be followed by the separator or end of line.
// The returned slice keeps the quote delimiters; unquoting is the caller's
// concern (see UnquoteCell). Numeric callers can pass the raw slice to
// DecodeCell directly since quote characters fail the numeric parse and
// decode to NaN.
//
// The second return value is false when the line has fewer fields than
// index+1, when a quoted field is never closed, or when a closing quote is
// followed by anything other than the separator or end of line.
func LocateCell(line string, index int, sep byte) (string, bool) {
	if index < 0 {
		return "", false
	}

	pos := 0
	for field := 0; ; field++ {
		start := pos
		var end int

		if pos < len(line) && line[pos] == '"' {
			// Quoted field: find the closing quote, skipping escaped pairs.
			i := pos + 1
			closed := false
			for i < len(line) {
				if line[i] != '"' {
					i++
					continue
				}
				if i+1 < len(line) && line[i+1] == '"' {
					i += 2
					continue
				}
				closed = true
				break
			}
			if !closed {
				return "", false
			}
			end = i + 1
			if end < len(line) && line[end] != sep {
				// Junk between the closing quote and the next separator.
				return "", false
			}
		} else {
			if i := strings.IndexByte(line[pos:], sep); i >= 0 {
				end = pos + i
			} else {
				end = len(line)
			}
		}

		if field == index {
			return line[start:end], true
		}
		if end >= len(line) {
			// Last field consumed before reaching the requested index.
			return "", false
		}
		pos = end + 1
	}
}

// UnquoteCell strips the enclosing double quotes from a quoted cell and
// collapses escaped quote pairs. Cells that are not fully quoted are
// returned unchanged.
func UnquoteCell(cell string) string {
	if len(cell) < 2 || cell[0] != '"' || cell[len(cell)-1] != '"' {
		return cell
	}
	inner := cell[1 : len(cell)-1]
	if !strings.Contains(inner, `"`) {
		return inner
	}
	return strings.ReplaceAll(inner, `""`, `"`)
}
