package header

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/modfin/mimex/charset"
)

// ErrCharsetMismatch is returned when two builders with different charsets
// are merged.
var ErrCharsetMismatch = errors.New("invalid argument: charset mismatch")

// ByteBuilder accumulates raw header and parameter bytes. Text appended to it
// is encoded with the builder's charset, or mapped byte for byte when it has
// none.
type ByteBuilder struct {
	buf     []byte
	charset string
}

func NewByteBuilder(size int, cs string) *ByteBuilder {
	return &ByteBuilder{buf: make([]byte, 0, size), charset: cs}
}

func (b *ByteBuilder) Charset() string {
	return b.charset
}

func (b *ByteBuilder) AppendByte(c byte) *ByteBuilder {
	b.buf = append(b.buf, c)
	return b
}

func (b *ByteBuilder) Append(p []byte) *ByteBuilder {
	b.buf = append(b.buf, p...)
	return b
}

func (b *ByteBuilder) AppendString(s string) *ByteBuilder {
	if b.charset != "" {
		enc, _ := charset.Encode(nil, s, b.charset)
		b.buf = append(b.buf, enc...)
		return b
	}
	for _, r := range s {
		b.buf = append(b.buf, latin1Byte(r))
	}
	return b
}

func (b *ByteBuilder) AppendRune(r rune) *ByteBuilder {
	if b.charset == "" {
		b.buf = append(b.buf, latin1Byte(r))
		return b
	}
	var tmp [utf8.UTFMax]byte
	n := utf8.EncodeRune(tmp[:], r)
	return b.AppendString(string(tmp[:n]))
}

// AppendBuilder appends the contents of o. Both builders must share a
// charset unless one of them has none.
func (b *ByteBuilder) AppendBuilder(o *ByteBuilder) error {
	if o == nil {
		return nil
	}
	if b.charset != "" && o.charset != "" && !sameCharset(b.charset, o.charset) {
		return fmt.Errorf("%w: %s and %s", ErrCharsetMismatch, b.charset, o.charset)
	}
	b.buf = append(b.buf, o.buf...)
	return nil
}

// Pop removes and returns the last byte, or 0 when empty.
func (b *ByteBuilder) Pop() byte {
	if len(b.buf) == 0 {
		return 0
	}
	c := b.buf[len(b.buf)-1]
	b.buf = b.buf[:len(b.buf)-1]
	return c
}

func (b *ByteBuilder) StartsWith(c byte) bool {
	return len(b.buf) > 0 && b.buf[0] == c
}

func (b *ByteBuilder) EndsWith(c byte) bool {
	return len(b.buf) > 0 && b.buf[len(b.buf)-1] == c
}

func (b *ByteBuilder) ByteAt(i int) byte {
	return b.buf[i]
}

func (b *ByteBuilder) Len() int {
	return len(b.buf)
}

func (b *ByteBuilder) IsEmpty() bool {
	return len(b.buf) == 0
}

// String renders the contents using the builder's charset, or ISO-8859-1.
func (b *ByteBuilder) String() string {
	if b.charset == "" {
		return charset.Latin1(b.buf)
	}
	return charset.Decode(nil, b.buf, b.charset)
}

// Bytes returns a copy of the contents.
func (b *ByteBuilder) Bytes() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}

// Reset empties the builder but keeps its allocation.
func (b *ByteBuilder) Reset() {
	b.buf = b.buf[:0]
}

func latin1Byte(r rune) byte {
	if r > 0xFF {
		return '?'
	}
	return byte(r)
}

func sameCharset(a, b string) bool {
	return charset.Resolve(nil, a) == charset.Resolve(nil, b)
}
