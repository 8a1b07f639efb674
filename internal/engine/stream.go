package engine

// stream.go turns a raw file byte stream into clean UTF-8 text.
//
// The code page is caller-supplied configuration, not negotiated here. UTF-8
// input additionally gets a BOM strip (Windows tooling loves to prepend one)
// and invalid-sequence replacement so that a bad byte corrupts at most one
// cell instead of the whole read.

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DecodeStream wraps r so that reads yield UTF-8 text decoded from the
// configured code page. Unknown code pages are configuration errors.
func DecodeStream(r io.Reader, codePage string) (io.Reader, error) {
	enc, err := resolveEncoding(codePage)
	if err != nil {
		return nil, err
	}
	if enc != nil {
		return transform.NewReader(r, enc.NewDecoder()), nil
	}

	// UTF-8 path: strip the BOM if present, then replace invalid sequences.
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		br.Discard(3)
	}
	return transform.NewReader(br, unicode.UTF8.NewDecoder()), nil
}

// windowsCodePages maps the numeric code-page identifiers that show up in
// legacy logger configurations to their encodings.
var windowsCodePages = map[string]encoding.Encoding{
	"437":   charmap.CodePage437,
	"850":   charmap.CodePage850,
	"852":   charmap.CodePage852,
	"874":   charmap.Windows874,
	"1250":  charmap.Windows1250,
	"1251":  charmap.Windows1251,
	"1252":  charmap.Windows1252,
	"1253":  charmap.Windows1253,
	"1254":  charmap.Windows1254,
	"1255":  charmap.Windows1255,
	"1256":  charmap.Windows1256,
	"1257":  charmap.Windows1257,
	"1258":  charmap.Windows1258,
	"28591": charmap.ISO8859_1,
	"28592": charmap.ISO8859_2,
	"28595": charmap.ISO8859_5,
	"28605": charmap.ISO8859_15,
}

// resolveEncoding maps a code-page identifier to an encoding. A nil result
// with nil error means the input is already UTF-8.
func resolveEncoding(codePage string) (encoding.Encoding, error) {
	name := strings.ToLower(strings.TrimSpace(codePage))

	switch name {
	case "", "utf-8", "utf8", "65001":
		return nil, nil
	case "utf-16", "utf-16le", "1200":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	case "utf-16be", "1201":
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM), nil
	case "latin1", "latin-1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	}

	if enc, ok := windowsCodePages[name]; ok {
		return enc, nil
	}

	enc, err := ianaindex.IANA.Encoding(codePage)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unsupported code page %q", codePage)
	}
	return enc, nil
}

// countingReader tracks bytes consumed from a stream so that read
// diagnostics can report how far into a file the engine got.
type countingReader struct {
	reader    io.Reader
	bytesRead int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.bytesRead += int64(n)
	return n, err
}
