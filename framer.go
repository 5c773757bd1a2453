package serial

import (
	"bytes"
	"iter"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// DefaultMaxRecord caps how many bytes of an unterminated record a Framer keeps.
const DefaultMaxRecord = 4096

// Framer turns chunks of bytes into newline-terminated text records.
// It is not safe for concurrent use.
type Framer struct {
	buf       []byte
	max       int
	overflows int
	decoder   transform.Transformer
}

// NewFramer returns a Framer that discards an unterminated record once it grows
// past maxRecord bytes. A non-positive maxRecord uses DefaultMaxRecord.
func NewFramer(maxRecord int) *Framer {
	if maxRecord <= 0 {
		maxRecord = DefaultMaxRecord
	}
	return &Framer{
		max: maxRecord,
		// Non-ASCII and ill-formed bytes are dropped, never fatal.
		decoder: runes.Remove(runes.Predicate(func(r rune) bool {
			return r >= utf8.RuneSelf
		})),
	}
}

// Push appends a chunk read from the device. Empty chunks are ignored.
func (f *Framer) Push(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	f.buf = append(f.buf, chunk...)
}

// Records yields each complete record buffered so far, decoded and trimmed of
// surrounding whitespace. Yielded records are consumed; the trailing partial
// record stays buffered until its newline arrives.
func (f *Framer) Records() iter.Seq[string] {
	return func(yield func(string) bool) {
		start := 0
		defer func() {
			f.compact(start)
		}()
		for {
			idx := bytes.IndexByte(f.buf[start:], '\n')
			if idx < 0 {
				return
			}
			raw := f.buf[start : start+idx]
			start += idx + 1
			if !yield(f.decode(raw)) {
				return
			}
		}
	}
}

func (f *Framer) compact(consumed int) {
	f.buf = append(f.buf[:0], f.buf[consumed:]...)
	if len(f.buf) > f.max && bytes.IndexByte(f.buf, '\n') < 0 {
		f.buf = f.buf[:0]
		f.overflows++
	}
}

func (f *Framer) decode(raw []byte) string {
	out, _, err := transform.Bytes(f.decoder, raw)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// Buffered reports how many bytes of partial record are pending.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Overflows reports how many oversized partial records were discarded.
func (f *Framer) Overflows() int {
	return f.overflows
}

// Reset discards any partial record.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}
