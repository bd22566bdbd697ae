package core

// streaming.go normalises raw CSV bytes before they reach the tokenizer.
//
// Exported files come from many tools, so every source is passed through:
//
//   - a BOM-aware decoder: a UTF-8 BOM is dropped, UTF-16 (LE/BE with BOM)
//     is transcoded to UTF-8, invalid UTF-8 becomes U+FFFD
//   - CarriageReturnStripper: removes every '\r' so CRLF files parse like LF
//   - CountingReader: tracks bytes read for logging and metrics
//
// Use NormalizeSource to apply all of them in the correct order.

import (
	"bytes"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CarriageReturnStripper wraps an io.Reader and drops every '\r' byte.
type CarriageReturnStripper struct {
	reader io.Reader
}

// NewCarriageReturnStripper creates a new stripping reader.
func NewCarriageReturnStripper(r io.Reader) *CarriageReturnStripper {
	return &CarriageReturnStripper{reader: r}
}

// Read implements io.Reader. It compacts the buffer in place, so a read may
// return fewer bytes than the underlying reader produced.
func (c *CarriageReturnStripper) Read(p []byte) (int, error) {
	for {
		n, err := c.reader.Read(p)
		if n > 0 && bytes.IndexByte(p[:n], '\r') >= 0 {
			write := 0
			for _, b := range p[:n] {
				if b != '\r' {
					p[write] = b
					write++
				}
			}
			n = write
		}
		// A chunk made only of '\r' must not look like an empty read.
		if n == 0 && err == nil {
			continue
		}
		return n, err
	}
}

// CountingReader wraps an io.Reader to track bytes read.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

// NewCountingReader creates a counting reader.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// NewDecodingReader strips a leading byte order mark and decodes the input
// to valid UTF-8. Without a BOM the input is treated as UTF-8.
func NewDecodingReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// NormalizeSource wraps r with decoding, carriage return removal and byte
// counting.
//
// The order matters:
// 1. Counting sits closest to the source so it reports raw bytes
// 2. The BOM must be handled before any other processing
// 3. Carriage returns are removed from the decoded text
func NormalizeSource(r io.Reader) (io.Reader, *CountingReader) {
	counter := NewCountingReader(r)
	return NewCarriageReturnStripper(NewDecodingReader(counter)), counter
}
