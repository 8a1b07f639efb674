// Package catalog turns file-source configurations into stored resource
// records and drives read operations against the decoding engine.
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/gridfeed/gridfeed/internal/engine"
)

// SourceDefinition is one named file-source bundle.
type SourceDefinition struct {
	Name     string
	Settings engine.FileSourceSettings
}

var (
	registry   = make(map[string]SourceDefinition)
	registryMu sync.RWMutex
)

// Register adds a source definition to the registry.
// Panics if a source with the same name is already registered.
func Register(def SourceDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Name]; exists {
		panic(fmt.Sprintf("source already registered: %s", def.Name))
	}
	registry[def.Name] = def
}

// Get returns a source definition by name.
// Returns false if not found.
func Get(name string) (SourceDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[name]
	return def, ok
}

// All returns all registered sources, sorted by name.
func All() []SourceDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]SourceDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// SourceCount returns the number of registered sources.
func SourceCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered sources.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]SourceDefinition)
}

// sourceConfig is the wire shape of one entry in the sources file.
type sourceConfig struct {
	Name              string        `json:"name"`
	Separator         string        `json:"separator,omitempty"`
	DecimalSeparator  string        `json:"decimalSeparator,omitempty"`
	InvalidValue      string        `json:"invalidValue,omitempty"`
	CodePage          string        `json:"codePage,omitempty"`
	HeaderRow         int           `json:"headerRow,omitempty"`
	UnitRow           int           `json:"unitRow,omitempty"`
	DataRow           int           `json:"dataRow,omitempty"`
	SamplePeriod      string        `json:"samplePeriod,omitempty"`
	UTCOffset         string        `json:"utcOffset,omitempty"`
	SkipColumnPattern string        `json:"skipColumnPattern,omitempty"`
	UnitPattern       string        `json:"unitPattern,omitempty"`
	GroupPattern      string        `json:"groupPattern,omitempty"`
	DefaultGroup      string        `json:"defaultGroup,omitempty"`
	RewriteRules      []rewriteRule `json:"rewriteRules,omitempty"`
	FilePaths         []string      `json:"filePaths,omitempty"`
	FilePattern       string        `json:"filePattern,omitempty"`
	DateTimeMode      *dateTimeMode `json:"dateTimeMode,omitempty"`
}

type rewriteRule struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
}

type dateTimeMode struct {
	Column  int    `json:"column"`
	Pattern string `json:"pattern"`
	Offset  string `json:"offset,omitempty"`
}

// LoadSources reads the sources file and registers every usable entry.
//
// A source missing required settings is skipped with a warning rather than
// failing the whole load; this is an intentional skip, not a crash. The
// return value is the number of sources registered.
func LoadSources(path string, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read sources file: %w", err)
	}

	var configs []sourceConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return 0, fmt.Errorf("parse sources file %s: %w", path, err)
	}

	registered := 0
	for i, sc := range configs {
		def, err := sc.toDefinition()
		if err != nil {
			logger.Warn("skipping file source with incomplete settings",
				"index", i, "name", sc.Name, "reason", err.Error())
			continue
		}
		if _, exists := Get(def.Name); exists {
			logger.Warn("skipping duplicate file source", "name", def.Name)
			continue
		}
		Register(def)
		registered++
	}
	return registered, nil
}

// toDefinition converts the wire shape into engine settings and validates
// that the entry is usable. The settings themselves get their structural
// validation later, at Compile time.
func (sc *sourceConfig) toDefinition() (SourceDefinition, error) {
	if sc.Name == "" {
		return SourceDefinition{}, fmt.Errorf("source has no name")
	}
	if len(sc.FilePaths) == 0 && sc.FilePattern == "" {
		return SourceDefinition{}, fmt.Errorf("source has neither filePaths nor filePattern")
	}

	settings := engine.FileSourceSettings{
		InvalidValue:      sc.InvalidValue,
		CodePage:          sc.CodePage,
		HeaderRow:         sc.HeaderRow,
		UnitRow:           sc.UnitRow,
		DataRow:           sc.DataRow,
		SkipColumnPattern: sc.SkipColumnPattern,
		UnitPattern:       sc.UnitPattern,
		GroupPattern:      sc.GroupPattern,
		DefaultGroup:      sc.DefaultGroup,
		FilePaths:         sc.FilePaths,
		FilePattern:       sc.FilePattern,
	}

	var err error
	if settings.Separator, err = singleChar(sc.Separator, "separator"); err != nil {
		return SourceDefinition{}, err
	}
	if settings.DecimalSeparator, err = singleChar(sc.DecimalSeparator, "decimalSeparator"); err != nil {
		return SourceDefinition{}, err
	}
	if settings.SamplePeriod, err = optionalDuration(sc.SamplePeriod, "samplePeriod"); err != nil {
		return SourceDefinition{}, err
	}
	if settings.UTCOffset, err = optionalDuration(sc.UTCOffset, "utcOffset"); err != nil {
		return SourceDefinition{}, err
	}

	for _, rule := range sc.RewriteRules {
		settings.RewriteRules = append(settings.RewriteRules, engine.RewriteRule{
			Pattern:     rule.Pattern,
			Replacement: rule.Replacement,
		})
	}

	if sc.DateTimeMode != nil {
		offset, err := optionalDuration(sc.DateTimeMode.Offset, "dateTimeMode.offset")
		if err != nil {
			return SourceDefinition{}, err
		}
		settings.DateTimeMode = &engine.DateTimeModeOptions{
			Column:  sc.DateTimeMode.Column,
			Pattern: sc.DateTimeMode.Pattern,
			Offset:  offset,
		}
	}

	return SourceDefinition{Name: sc.Name, Settings: settings}, nil
}

func singleChar(s, field string) (byte, error) {
	switch len(s) {
	case 0:
		return 0, nil
	case 1:
		return s[0], nil
	default:
		return 0, fmt.Errorf("%s must be a single character, got %q", field, s)
	}
}

func optionalDuration(s, field string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}
