// Package discover resolves which files a source configuration points at.
// The decoding engine only consumes whatever path list it receives.
package discover

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/gridfeed/gridfeed/internal/engine"
)

// Resolve returns the ordered file list for a source: an explicit path list
// passes through untouched, otherwise the configured glob pattern is
// expanded.
func Resolve(settings *engine.FileSourceSettings) ([]string, error) {
	if len(settings.FilePaths) > 0 {
		return settings.FilePaths, nil
	}
	if settings.FilePattern == "" {
		return nil, fmt.Errorf("source has neither file paths nor a file pattern")
	}
	return Matches(settings.FilePattern)
}

// Matches expands a glob pattern into a sorted path list.
func Matches(pattern string) ([]string, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("expand pattern %q: %w", pattern, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// FirstMatch returns the lexicographically first file matching the pattern.
// Catalog builds use it to pick one sample file per source.
func FirstMatch(pattern string) (string, error) {
	paths, err := Matches(pattern)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("no file matches %q", pattern)
	}
	return paths[0], nil
}

// Sample returns the file used for catalog resolution: the first explicit
// path when paths are configured, else the first pattern match.
func Sample(settings *engine.FileSourceSettings) (string, error) {
	if len(settings.FilePaths) > 0 {
		return settings.FilePaths[0], nil
	}
	if settings.FilePattern == "" {
		return "", fmt.Errorf("source has neither file paths nor a file pattern")
	}
	return FirstMatch(settings.FilePattern)
}
