package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"
)

// contextCheckInterval is how many decoded lines pass between cancellation
// polls.
const contextCheckInterval = 100

// statusValid marks a slot whose value was decoded and written. A status
// byte left at zero reads as "no data" to the caller.
const statusValid byte = 1

// ReadRequest names one column to decode and the caller-owned buffers the
// engine writes into. The engine never resizes or reallocates the buffers
// and never writes past the file block length.
type ReadRequest struct {
	// OriginalName is the raw column name to locate in the file header.
	OriginalName string

	// Values receives one decoded float64 per grid slot.
	Values []float64

	// Status receives statusValid for every slot that was written. It must
	// be zeroed by the caller before the read.
	Status []byte
}

// ReadInfo describes one file's contribution to a read operation.
type ReadInfo struct {
	// Path is the file to read. Ignored when Reader is set.
	Path string

	// Reader optionally supplies the byte stream directly.
	Reader io.Reader

	// FileOffset is the number of grid slots to skip from the start of this
	// file before the first requested sample.
	FileOffset int

	// FileBlock is the number of grid slots to fill from this file.
	FileBlock int

	// FileBegin is the beginning instant of the grid covered by this file.
	FileBegin time.Time

	// Settings is the owning file source configuration.
	Settings *FileSourceSettings
}

// IndexLookupFunc resolves column indices for read requests when header-based
// resolution is disabled (HeaderRow == NoHeaderRow). It returns one zero-based
// column index per request; a negative index means "no column found".
type IndexLookupFunc func(info ReadInfo, requests []ReadRequest) []int

// Engine drives read operations. It carries no per-read state; one Engine
// may serve many concurrent reads.
type Engine struct {
	logger *slog.Logger
	lookup IndexLookupFunc
}

// NewEngine returns an engine logging through logger. The lookup callback is
// consulted only for sources without a header row; passing nil installs the
// default, which finds no columns.
func NewEngine(logger *slog.Logger, lookup IndexLookupFunc) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if lookup == nil {
		lookup = func(_ ReadInfo, requests []ReadRequest) []int {
			indices := make([]int, len(requests))
			for i := range indices {
				indices[i] = -1
			}
			return indices
		}
	}
	return &Engine{logger: logger, lookup: lookup}
}

// Read decodes one file into the request buffers.
//
// Structural trouble inside the file (short lines, malformed quoting,
// premature end of file) stops the read and leaves the remaining status
// bytes at zero; it is logged, not returned. Configuration failures and
// unparsable timestamps in timestamp-keyed mode are returned as errors.
func (e *Engine) Read(ctx context.Context, info ReadInfo, requests []ReadRequest) error {
	if len(requests) == 0 || info.FileBlock <= 0 {
		return nil
	}
	for i, req := range requests {
		if len(req.Values) < info.FileBlock || len(req.Status) < info.FileBlock {
			return fmt.Errorf("request %d (%s): buffers shorter than file block %d",
				i, req.OriginalName, info.FileBlock)
		}
	}

	c, err := info.Settings.Compile()
	if err != nil {
		return err
	}

	r := info.Reader
	if r == nil {
		f, err := os.Open(info.Path)
		if err != nil {
			return fmt.Errorf("open %s: %w", info.Path, err)
		}
		defer f.Close()
		r = f
	}

	counter := &countingReader{reader: r}
	decoded, err := DecodeStream(counter, c.settings.CodePage)
	if err != nil {
		return err
	}
	scanner := newLineScanner(decoded)

	logger := e.logger.With("path", info.Path)

	// Consume the rows ahead of the data row, capturing the header line when
	// header resolution is enabled.
	var headerLine string
	for row := 0; row < c.dataRow-1; row++ {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			logger.Warn("incomplete file: ended before the data row",
				"data_row", c.dataRow, "rows_read", row)
			return nil
		}
		if c.headerRow != NoHeaderRow && row == c.headerRow-1 {
			headerLine = scanner.Text()
		}
	}

	indices := e.resolveIndices(c, headerLine, info, requests)

	if c.settings.DateTimeMode != nil {
		return e.readTimestamped(ctx, c, scanner, info, requests, indices, logger, counter)
	}
	return e.readSequential(ctx, c, scanner, info, requests, indices, logger, counter)
}

// resolveIndices maps each request to its zero-based column index, either by
// matching the header line or through the external lookup callback.
func (e *Engine) resolveIndices(c *CompiledSource, headerLine string, info ReadInfo, requests []ReadRequest) []int {
	indices := make([]int, len(requests))

	if c.headerRow == NoHeaderRow {
		looked := e.lookup(info, requests)
		for i := range indices {
			indices[i] = -1
			if i < len(looked) {
				indices[i] = looked[i]
			}
		}
		return indices
	}

	cols := strings.Split(headerLine, string(c.sep))
	for i, req := range requests {
		indices[i] = -1
		for col, cell := range cols {
			if strings.TrimSpace(cell) == req.OriginalName {
				indices[i] = col
				break
			}
		}
		if indices[i] < 0 {
			e.logger.Debug("requested column not present in header", "column", req.OriginalName)
		}
	}
	return indices
}

// readSequential maps one file row to one grid slot in row order. Status
// bytes for all fully decoded rows are marked in one pass at the end; a
// short or malformed file leaves exactly the trailing slots unset.
func (e *Engine) readSequential(ctx context.Context, c *CompiledSource, scanner lineSource,
	info ReadInfo, requests []ReadRequest, indices []int, logger *slog.Logger, counter *countingReader) error {

	for skipped := 0; skipped < info.FileOffset; skipped++ {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			logger.Warn("incomplete file: ended inside the file offset",
				"file_offset", info.FileOffset, "rows_skipped", skipped)
			return nil
		}
	}

	completed := 0
	for slot := 0; slot < info.FileBlock; slot++ {
		if slot%contextCheckInterval == 0 && ctx.Err() != nil {
			markValid(requests, indices, completed)
			logger.Debug("read cancelled", "slots_done", completed)
			return ctx.Err()
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			logger.Warn("incomplete file: fewer rows than requested",
				"wanted", info.FileBlock, "got", slot)
			break
		}
		line := scanner.Text()

		malformed := false
		for i, req := range requests {
			idx := indices[i]
			if idx < 0 {
				continue
			}
			cell, found := LocateCell(line, idx, c.sep)
			if !found {
				logger.Warn("malformed line", "slot", slot, "column_index", idx)
				malformed = true
				break
			}
			req.Values[slot] = DecodeCell(cell, c.settings.InvalidValue, c.decSep)
		}
		if malformed {
			break
		}
		completed = slot + 1
	}

	markValid(requests, indices, completed)
	logger.Debug("sequential read finished",
		"slots", completed, "block", info.FileBlock, "bytes_read", counter.bytesRead)
	return nil
}

// readTimestamped walks every line once and derives each row's slot from the
// timestamp column. Unlike sequential mode, validity is tracked per written
// sample: a slot is marked only when its value decoded to a real number,
// because timestamp-keyed files may carry gaps, duplicates, and out-of-order
// rows.
func (e *Engine) readTimestamped(ctx context.Context, c *CompiledSource, scanner lineSource,
	info ReadInfo, requests []ReadRequest, indices []int, logger *slog.Logger, counter *countingReader) error {

	dt := c.settings.DateTimeMode
	tsIndex := dt.Column - 1

	written := 0
	skipped := 0
	for lineNo := 0; ; lineNo++ {
		if lineNo%contextCheckInterval == 0 && ctx.Err() != nil {
			logger.Debug("read cancelled", "lines_read", lineNo)
			return ctx.Err()
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			break
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		cell, found := LocateCell(line, tsIndex, c.sep)
		if !found {
			logger.Warn("malformed line: timestamp column missing",
				"line", c.dataRow+lineNo, "column_index", tsIndex)
			break
		}

		// Timestamp parse failures are hard failures, unlike numeric cells.
		t, err := c.parseTimestamp(cell)
		if err != nil {
			return fmt.Errorf("parse timestamp on line %d: %w", c.dataRow+lineNo, err)
		}

		slot := slotIndex(t, info.FileBegin, c.settings.SamplePeriod) - info.FileOffset
		if slot < 0 || slot >= info.FileBlock {
			// Padding or out-of-window rows. Not an error.
			skipped++
			continue
		}

		malformed := false
		for i, req := range requests {
			idx := indices[i]
			if idx < 0 {
				continue
			}
			cell, found := LocateCell(line, idx, c.sep)
			if !found {
				logger.Warn("malformed line", "line", c.dataRow+lineNo, "column_index", idx)
				malformed = true
				break
			}
			v := DecodeCell(cell, c.settings.InvalidValue, c.decSep)
			req.Values[slot] = v
			if !math.IsNaN(v) {
				req.Status[slot] = statusValid
			}
		}
		if malformed {
			break
		}
		written++
	}

	logger.Debug("timestamp-keyed read finished",
		"rows_written", written, "rows_out_of_range", skipped, "bytes_read", counter.bytesRead)
	return nil
}

// markValid sets the status byte for the first n slots of every resolved
// request. Sequential mode treats the whole decoded block as valid; a NaN
// value with a set status byte means "present but not a number", which is
// distinct from "not written".
func markValid(requests []ReadRequest, indices []int, n int) {
	for i, req := range requests {
		if indices[i] < 0 {
			continue
		}
		for slot := 0; slot < n; slot++ {
			req.Status[slot] = statusValid
		}
	}
}

// slotIndex computes floor((t - begin) / period).
func slotIndex(t, begin time.Time, period time.Duration) int {
	d := t.Sub(begin)
	idx := d / period
	if d < 0 && d%period != 0 {
		idx--
	}
	return int(idx)
}

// lineSource is the slice of bufio.Scanner the read loops depend on.
type lineSource interface {
	Scan() bool
	Text() string
	Err() error
}
