// Package header models RFC 5322 header fields: raw header lines with lazy
// RFC 2047 decoding, parameterized values such as Content-Type with RFC 2231
// support, and ordered header blocks.
package header

import (
	"bytes"
	"strings"

	"github.com/modfin/mimex/charset"
)

// Header is a single header field. The raw line is kept exactly as read
// until the value is changed, after which it is regenerated on demand.
type Header struct {
	name       string
	info       Info
	raw        []byte
	valueStart int
	// pending value, serialized into raw on the next read
	value []byte
}

// NewHeader wraps a pre-analyzed raw line. raw must include the name, the
// colon, the folded value and the line ending; valueStart is the offset of
// the value within raw.
func NewHeader(name string, raw []byte, valueStart int) *Header {
	return &Header{name: name, info: LookupInfo(name), raw: raw, valueStart: valueStart}
}

// ParseHeader splits a complete raw header line at its first colon.
func ParseHeader(line []byte) *Header {
	colon := bytes.IndexByte(line, ':')
	nameEnd, vstart := len(line), len(line)
	if colon >= 0 {
		nameEnd, vstart = colon, colon+1
		for vstart < len(line) {
			if c := line[vstart]; c != ' ' && c != '\t' && c != '\r' && c != '\n' {
				break
			}
			vstart++
		}
	}
	name := strings.TrimSpace(charset.Latin1(line[:nameEnd]))
	return &Header{name: name, info: LookupInfo(name), raw: line, valueStart: vstart}
}

// NewHeaderValue creates a header from text, RFC 2047 encoding whatever
// cannot be sent as plain ASCII. Encoded words use cs where it can
// represent the value and UTF-8 otherwise.
func NewHeaderValue(name, value, cs string) *Header {
	h := newDirty(name)
	h.value = []byte(Escape(value, cs, false))
	return h
}

// NewHeaderBytes creates a header whose value is copied verbatim.
func NewHeaderBytes(name string, value []byte) *Header {
	h := newDirty(name)
	h.value = append([]byte(nil), value...)
	return h
}

func newDirty(name string) *Header {
	info := LookupInfo(name)
	if info.Name != "" {
		name = info.Name
	}
	return &Header{name: name, info: info}
}

func (h *Header) Name() string {
	return h.name
}

func (h *Header) Info() Info {
	return h.info
}

// Is reports whether the header has the given name, ignoring case.
func (h *Header) Is(name string) bool {
	return strings.EqualFold(h.name, name)
}

// Raw returns the complete header line, CRLF terminated.
func (h *Header) Raw() []byte {
	if h.raw == nil {
		h.raw, h.valueStart = render(h.name, h.value)
		h.value = nil
	}
	return h.raw
}

func render(name string, value []byte) ([]byte, int) {
	buf := make([]byte, 0, len(name)+len(value)+4)
	buf = append(buf, name...)
	buf = append(buf, ':', ' ')
	buf = append(buf, value...)
	buf = append(buf, '\r', '\n')
	return buf, len(name) + 2
}

// SetValue replaces the value with text, encoding it as NewHeaderValue does.
func (h *Header) SetValue(value, cs string) {
	h.SetRawValue([]byte(Escape(value, cs, false)))
}

// SetRawValue replaces the value with b, copied verbatim.
func (h *Header) SetRawValue(b []byte) {
	h.value = append([]byte(nil), b...)
	h.raw = nil
}

// RawValue returns the undecoded value bytes without the trailing line
// ending. Folding is left intact.
func (h *Header) RawValue() []byte {
	raw := h.Raw()
	end := len(raw)
	for end > h.valueStart && (raw[end-1] == '\n' || raw[end-1] == '\r') {
		end--
	}
	if h.valueStart >= end {
		return nil
	}
	return raw[h.valueStart:end]
}

// Decode returns the unfolded value with RFC 2047 encoded-words decoded.
// Bytes outside encoded-words are read as cs, or the default charset when
// cs is empty.
func (h *Header) Decode(cs string) string {
	return Decode(h.RawValue(), cs)
}

// EncodedValue returns the value as text without decoding encoded-words or
// unfolding.
func (h *Header) EncodedValue(cs string) string {
	return charset.Decode(nil, h.RawValue(), cs)
}

func (h *Header) String() string {
	return h.EncodedValue("")
}

// Clone returns an independent copy of h.
func (h *Header) Clone() *Header {
	raw := h.Raw()
	return &Header{name: h.name, info: h.info, raw: append([]byte(nil), raw...), valueStart: h.valueStart}
}
