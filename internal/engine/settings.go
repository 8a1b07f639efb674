package engine

import (
	"fmt"
	"regexp"
	"time"
)

// NoHeaderRow disables header-based column resolution for a file source.
// Reads against such a source resolve column indices through the engine's
// index lookup callback instead.
const NoHeaderRow = -1

// RewriteRule is one regex-replace step applied while deriving the canonical
// resource identifier from an original column name. Rules run in list order.
type RewriteRule struct {
	Pattern     string
	Replacement string
}

// DateTimeModeOptions switches a file source into timestamp-keyed alignment:
// each row's grid slot is derived from an embedded timestamp column instead
// of the row's position in the file.
type DateTimeModeOptions struct {
	// Column is the 1-based index of the timestamp column.
	Column int

	// Pattern is the timestamp parse pattern in yyyy-MM-dd HH:mm:ss token
	// notation. Required when timestamp-keyed mode is configured.
	Pattern string

	// Offset is subtracted from every parsed timestamp before alignment.
	Offset time.Duration
}

// FileSourceSettings describes how one family of delimited text files is
// decoded. A settings value is immutable once handed to the engine; it is
// compiled exactly once at the read-operation or catalog-build boundary.
type FileSourceSettings struct {
	// Separator is the single field separator character. Defaults to ','.
	Separator byte

	// DecimalSeparator is the fractional separator used by numeric cells.
	// Defaults to '.'.
	DecimalSeparator byte

	// InvalidValue is an optional token; cells equal to it decode as NaN.
	InvalidValue string

	// CodePage names the text encoding of the files ("utf-8", "windows-1252",
	// "1252", ...). Empty means UTF-8.
	CodePage string

	// HeaderRow is the 1-based row holding column names, or NoHeaderRow when
	// columns are resolved externally. Zero defaults to row 1.
	HeaderRow int

	// UnitRow is the 1-based row holding unit strings. Zero defaults to the
	// header row.
	UnitRow int

	// DataRow is the 1-based first row containing values. Zero defaults to
	// the row after the header and unit rows.
	DataRow int

	// SamplePeriod is the duration between consecutive rows (sequential mode)
	// or between consecutive grid slots (timestamp-keyed mode).
	SamplePeriod time.Duration

	// UTCOffset is the zone offset at which zone-less timestamps are
	// interpreted in timestamp-keyed mode.
	UTCOffset time.Duration

	// SkipColumnPattern drops columns whose original name matches.
	SkipColumnPattern string

	// UnitPattern extracts capture group 1 from the unit-row cell (or the
	// header cell when no distinct unit row exists) as the unit string.
	UnitPattern string

	// GroupPattern extracts capture group 1 from the original column name as
	// the group string.
	GroupPattern string

	// DefaultGroup is assigned to resources whose group stays absent.
	DefaultGroup string

	// RewriteRules derive the canonical resource id from the original name.
	RewriteRules []RewriteRule

	// FilePaths is an optional explicit ordered list of source files,
	// bypassing discovery.
	FilePaths []string

	// FilePattern is a discovery glob used when FilePaths is empty.
	FilePattern string

	// DateTimeMode enables timestamp-keyed alignment when non-nil.
	DateTimeMode *DateTimeModeOptions
}

// CompiledSource is a FileSourceSettings with defaults applied, patterns
// compiled, and the timestamp pattern translated. All structural
// configuration errors surface here, before any file is touched.
type CompiledSource struct {
	settings *FileSourceSettings

	sep       byte
	decSep    byte
	headerRow int
	unitRow   int
	dataRow   int

	skipRe  *regexp.Regexp
	unitRe  *regexp.Regexp
	groupRe *regexp.Regexp

	rewrites []compiledRewrite

	tsLayout  string
	tsHasZone bool
}

type compiledRewrite struct {
	re   *regexp.Regexp
	repl string
}

// Compile resolves defaults, compiles every configured pattern, and
// validates the settings. Configuration-level failures (bad regex, missing
// timestamp pattern in datetime mode, non-positive sample period) are fatal
// and reported immediately.
func (s *FileSourceSettings) Compile() (*CompiledSource, error) {
	c := &CompiledSource{
		settings: s,
		sep:      s.Separator,
		decSep:   s.DecimalSeparator,
	}
	if c.sep == 0 {
		c.sep = ','
	}
	if c.decSep == 0 {
		c.decSep = '.'
	}

	c.headerRow = s.HeaderRow
	if c.headerRow == 0 {
		c.headerRow = 1
	}
	if c.headerRow < NoHeaderRow {
		return nil, fmt.Errorf("header row %d is not a valid row number", c.headerRow)
	}

	c.unitRow = s.UnitRow
	if c.unitRow == 0 {
		c.unitRow = c.headerRow
	}

	c.dataRow = s.DataRow
	if c.dataRow == 0 {
		if c.headerRow == NoHeaderRow {
			c.dataRow = 1
		} else {
			c.dataRow = max(c.headerRow, c.unitRow) + 1
		}
	}
	if c.dataRow < 1 {
		return nil, fmt.Errorf("data row %d is not a valid row number", c.dataRow)
	}

	var err error
	if s.SkipColumnPattern != "" {
		if c.skipRe, err = regexp.Compile(s.SkipColumnPattern); err != nil {
			return nil, fmt.Errorf("skip column pattern: %w", err)
		}
	}
	if s.UnitPattern != "" {
		if c.unitRe, err = regexp.Compile(s.UnitPattern); err != nil {
			return nil, fmt.Errorf("unit pattern: %w", err)
		}
	}
	if s.GroupPattern != "" {
		if c.groupRe, err = regexp.Compile(s.GroupPattern); err != nil {
			return nil, fmt.Errorf("group pattern: %w", err)
		}
	}

	for i, rule := range s.RewriteRules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rewrite rule %d: %w", i, err)
		}
		c.rewrites = append(c.rewrites, compiledRewrite{re: re, repl: rule.Replacement})
	}

	if dt := s.DateTimeMode; dt != nil {
		if dt.Pattern == "" {
			return nil, fmt.Errorf("timestamp mode configured without a parse pattern")
		}
		if dt.Column < 1 {
			return nil, fmt.Errorf("timestamp column %d is not a valid 1-based column", dt.Column)
		}
		if s.SamplePeriod <= 0 {
			return nil, fmt.Errorf("timestamp mode requires a positive sample period, got %v", s.SamplePeriod)
		}
		c.tsLayout, c.tsHasZone, err = translateTimePattern(dt.Pattern)
		if err != nil {
			return nil, fmt.Errorf("timestamp pattern %q: %w", dt.Pattern, err)
		}
	}

	return c, nil
}

// Settings returns the settings this source was compiled from.
func (c *CompiledSource) Settings() *FileSourceSettings { return c.settings }

// Separator returns the resolved field separator.
func (c *CompiledSource) Separator() byte { return c.sep }
