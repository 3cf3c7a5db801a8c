package header

import (
	"bytes"
	"io"
	"net/textproto"
	"strings"
)

// Block is an ordered list of header fields, as found at the top of a
// message or body part.
type Block struct {
	headers []*Header
}

// Add appends h, or inserts it ahead of existing fields for trace fields
// such as Received that are prepended.
func (b *Block) Add(h *Header) {
	if h.Info().Prepend || h.Info().First {
		b.headers = append([]*Header{h}, b.headers...)
		return
	}
	b.headers = append(b.headers, h)
}

// Append adds h at the end regardless of its kind, keeping parse order.
func (b *Block) Append(h *Header) {
	b.headers = append(b.headers, h)
}

// Set replaces every field named like h with h, at the position of the
// first one.
func (b *Block) Set(h *Header) {
	at := -1
	kept := b.headers[:0]
	for _, o := range b.headers {
		if o.Is(h.Name()) {
			if at < 0 {
				at = len(kept)
				kept = append(kept, h)
			}
			continue
		}
		kept = append(kept, o)
	}
	b.headers = kept
	if at < 0 {
		b.Add(h)
	}
}

// Get returns the first field with the given name.
func (b *Block) Get(name string) *Header {
	for _, h := range b.headers {
		if h.Is(name) {
			return h
		}
	}
	return nil
}

func (b *Block) GetAll(name string) []*Header {
	var out []*Header
	for _, h := range b.headers {
		if h.Is(name) {
			out = append(out, h)
		}
	}
	return out
}

// Value returns the decoded value of the first field named name.
func (b *Block) Value(name, cs string) string {
	if h := b.Get(name); h != nil {
		return h.Decode(cs)
	}
	return ""
}

// Remove deletes every field with the given name.
func (b *Block) Remove(name string) {
	kept := b.headers[:0]
	for _, h := range b.headers {
		if !h.Is(name) {
			kept = append(kept, h)
		}
	}
	b.headers = kept
}

func (b *Block) Len() int {
	return len(b.headers)
}

func (b *Block) All() []*Header {
	return append([]*Header(nil), b.headers...)
}

// MIMEHeader converts the block to a textproto.MIMEHeader. Values are
// decoded when decode is set and otherwise unfolded only.
func (b *Block) MIMEHeader(cs string, decode bool) textproto.MIMEHeader {
	m := make(textproto.MIMEHeader, len(b.headers))
	for _, h := range b.headers {
		var v string
		if decode {
			v = h.Decode(cs)
		} else {
			v = Unfold(h.EncodedValue(cs))
		}
		key := textproto.CanonicalMIMEHeaderKey(h.Name())
		m[key] = append(m[key], strings.TrimSpace(v))
	}
	return m
}

// WriteTo writes every raw header line followed by the empty separator
// line.
func (b *Block) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, h := range b.headers {
		c, err := w.Write(h.Raw())
		n += int64(c)
		if err != nil {
			return n, err
		}
	}
	c, err := w.Write([]byte("\r\n"))
	return n + int64(c), err
}

func (b *Block) Bytes() []byte {
	var buf bytes.Buffer
	_, _ = b.WriteTo(&buf)
	return buf.Bytes()
}
