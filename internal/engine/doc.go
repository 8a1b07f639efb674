// Package engine decodes delimited text files containing time-series
// measurements into fixed-size, caller-owned numeric buffers aligned to a
// uniform sample grid.
//
// The package is built from four pieces:
//
//   - LocateCell: a quote-aware cell tokenizer that extracts the Nth field
//     of a line without materializing the other fields.
//   - DecodeCell: a locale-independent numeric decoder that maps garbage and
//     configured invalid-value tokens to NaN instead of failing the read.
//   - CompiledSource.ResolveLines / ResolveStream: the header/unit/group
//     resolver that maps raw column names to canonical resource identifiers
//     using skip patterns, rewrite rules, and unit/group extraction patterns.
//   - Engine.Read: the alignment driver with two modes. Sequential mode maps
//     one file row to one grid slot in row order. Timestamp-keyed mode derives
//     each row's slot from an embedded timestamp column.
//
// A read operation is independent and stateless with respect to other read
// operations: it owns its file handle and writes only into the buffers of its
// own requests. Callers may run many read operations concurrently as long as
// no two of them share buffer regions.
//
// Partial files are not errors. When a file ends before the requested block
// is filled, the engine stops, logs the condition, and leaves the remaining
// status bytes at zero; a zero status byte means "no data" to the caller.
package engine
