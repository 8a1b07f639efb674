package engine

import (
	"math"
	"strconv"
	"strings"
)

// DecodeCell converts the raw text of one cell into a float64.
//
// A cell that equals the configured invalid-value token (exact ordinal
// comparison, checked before anything else) decodes to NaN even when the
// token would parse as a number. Otherwise the cell is parsed as a
// locale-independent floating-point value with decimalSep as the fractional
// separator. Anything unparsable decodes to NaN: numeric garbage is a
// per-sample data-quality condition, never a structural error.
func DecodeCell(cell, invalidValue string, decimalSep byte) float64 {
	if invalidValue != "" && cell == invalidValue {
		return math.NaN()
	}

	cell = strings.TrimSpace(cell)
	if decimalSep != '.' {
		// With a non-dot fractional separator a literal dot is not a valid
		// character, so reject it instead of silently reinterpreting it.
		if strings.IndexByte(cell, '.') >= 0 {
			return math.NaN()
		}
		cell = strings.ReplaceAll(cell, string(decimalSep), ".")
	}

	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
