// Package transfer implements the MIME content-transfer-encodings (RFC 2045)
// and the B and Q sub-encodings used by RFC 2047 encoded-words.
package transfer

import (
	"bytes"
	"errors"
	"io"
	"strings"
)

// Encoding is a Content-Transfer-Encoding.
type Encoding int

const (
	SevenBit Encoding = iota
	EightBit
	Binary
	QuotedPrintable
	Base64
)

var (
	ErrUnknownEncoding = errors.New("unknown content-transfer-encoding")
	ErrInvalidBase64   = errors.New("invalid base64 data")
	ErrInvalidQ        = errors.New("invalid Q-encoded data")
)

var names = [...]string{
	SevenBit:        "7bit",
	EightBit:        "8bit",
	Binary:          "binary",
	QuotedPrintable: "quoted-printable",
	Base64:          "base64",
}

func (e Encoding) String() string {
	if e < 0 || int(e) >= len(names) {
		return "unknown"
	}
	return names[e]
}

// Identity reports whether the encoding leaves the body bytes untouched.
func (e Encoding) Identity() bool {
	return e == SevenBit || e == EightBit || e == Binary
}

// Parse reads a Content-Transfer-Encoding header value. Surrounding
// whitespace, quotes and trailing comments are ignored; an empty value is
// 7bit.
func Parse(s string) (Encoding, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t(;"); i >= 0 {
		s = s[:i]
	}
	s = strings.ToLower(strings.Trim(s, `"`))
	switch s {
	case "", "7bit":
		return SevenBit, nil
	case "8bit":
		return EightBit, nil
	case "binary":
		return Binary, nil
	case "quoted-printable":
		return QuotedPrintable, nil
	case "base64":
		return Base64, nil
	}
	return SevenBit, ErrUnknownEncoding
}

// NewDecoder wraps r so that reads return the decoded body.
func NewDecoder(enc Encoding, r io.Reader) io.Reader {
	switch enc {
	case QuotedPrintable:
		return NewQPDecoder(r, false)
	case Base64:
		return NewBase64Decoder(r)
	}
	return r
}

// NewEncoder returns a writer encoding everything written to it onto w.
// Close must be called to flush any buffered state; it does not close w.
// For quoted-printable, text enables line ending normalization.
func NewEncoder(enc Encoding, w io.Writer, text bool) io.WriteCloser {
	switch enc {
	case QuotedPrintable:
		return NewQPEncoder(w, QPOptions{Text: text, Fold: true})
	case Base64:
		return NewBase64Encoder(w, true)
	}
	return nopCloser{w}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// Decode decodes a complete body. Base64 input is checked strictly.
func Decode(enc Encoding, b []byte) ([]byte, error) {
	switch enc {
	case SevenBit, EightBit, Binary:
		return b, nil
	case Base64:
		return DecodeBase64Strict(b)
	case QuotedPrintable:
		return io.ReadAll(NewQPDecoder(bytes.NewReader(b), false))
	}
	return nil, ErrUnknownEncoding
}

// Encode encodes a complete body.
func Encode(enc Encoding, b []byte, text bool) []byte {
	var buf bytes.Buffer
	w := NewEncoder(enc, &buf, text)
	_, _ = w.Write(b)
	_ = w.Close()
	return buf.Bytes()
}

// Pick chooses the lightest encoding able to carry b through a 7-bit,
// line-length limited transport.
func Pick(b []byte) Encoding {
	var high, ctl, line, longest int
	for _, c := range b {
		switch {
		case c == '\n':
			if line > longest {
				longest = line
			}
			line = 0
			continue
		case c == '\r' || c == '\t':
		case c == 0 || c < 0x20 || c == 0x7F:
			ctl++
		case c >= 0x80:
			high++
		}
		line++
	}
	if line > longest {
		longest = line
	}
	switch {
	case ctl > 0 || high*3 > len(b):
		return Base64
	case high > 0 || longest > 998:
		return QuotedPrintable
	}
	return SevenBit
}
