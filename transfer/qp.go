package transfer

import (
	"bufio"
	"bytes"
	"io"
)

const hexDigits = "0123456789ABCDEF"

// qpLookahead bounds how much whitespace the decoder holds back while
// deciding whether it is line-end padding.
const qpLookahead = 1024

// QForceEncode lists the bytes that must always be escaped inside an
// RFC 2047 Q-encoded word.
var QForceEncode = func() *[256]bool {
	var t [256]bool
	for i := range t {
		t[i] = true
	}
	for _, c := range []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!*+-/ ") {
		t[c] = false
	}
	return &t
}()

// QPOptions tunes a quoted-printable encoder.
type QPOptions struct {
	// Text treats CR, LF and CRLF as hard line breaks and emits them as CRLF.
	Text bool
	// Fold inserts soft line breaks to keep lines within 76 columns.
	Fold bool
	// Word enables RFC 2047 Q mode, where a space is written as '_'.
	Word bool
	// ForceEncode marks bytes that must be escaped even when printable.
	ForceEncode *[256]bool
}

// QPEncoder writes quoted-printable output.
type QPEncoder struct {
	w    io.Writer
	opts QPOptions
	col  int
	ws   byte
	cr   bool
	out  []byte
	err  error
}

func NewQPEncoder(w io.Writer, opts QPOptions) *QPEncoder {
	return &QPEncoder{w: w, opts: opts, out: make([]byte, 0, 1024)}
}

// SetForceEncode replaces the set of always-escaped bytes.
func (e *QPEncoder) SetForceEncode(t *[256]bool) {
	e.opts.ForceEncode = t
}

func (e *QPEncoder) forced(c byte) bool {
	return e.opts.ForceEncode != nil && e.opts.ForceEncode[c]
}

func (e *QPEncoder) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	for _, c := range p {
		e.writeByte(c)
		if len(e.out) >= 1000 {
			e.flush()
		}
	}
	e.flush()
	if e.err != nil {
		return 0, e.err
	}
	return len(p), nil
}

func (e *QPEncoder) writeByte(c byte) {
	if e.opts.Text {
		if e.cr {
			e.cr = false
			e.hardBreak()
			if c == '\n' {
				return
			}
		}
		switch c {
		case '\r':
			e.cr = true
			return
		case '\n':
			e.hardBreak()
			return
		}
	}
	if (c == ' ' || c == '\t') && !e.opts.Word && !e.forced(c) {
		e.pendingWS(false)
		e.ws = c
		return
	}
	e.pendingWS(false)
	e.emit(c)
}

// pendingWS writes held-back whitespace, escaped if it ends a line.
func (e *QPEncoder) pendingWS(eol bool) {
	if e.ws == 0 {
		return
	}
	c := e.ws
	e.ws = 0
	if eol {
		e.token('=', hexDigits[c>>4], hexDigits[c&0x0F])
	} else {
		e.token(c)
	}
}

func (e *QPEncoder) emit(c byte) {
	switch {
	case e.opts.Word && c == ' ':
		e.token('_')
	case c >= 33 && c <= 126 && c != '=' && !e.forced(c):
		e.token(c)
	default:
		e.token('=', hexDigits[c>>4], hexDigits[c&0x0F])
	}
}

func (e *QPEncoder) token(t ...byte) {
	if e.opts.Fold && e.col+len(t) > MaxLineLength-1 {
		e.out = append(e.out, '=', '\r', '\n')
		e.col = 0
	}
	e.out = append(e.out, t...)
	e.col += len(t)
}

func (e *QPEncoder) hardBreak() {
	e.pendingWS(true)
	e.out = append(e.out, '\r', '\n')
	e.col = 0
}

// Close flushes pending whitespace and line endings. It does not close the
// underlying writer.
func (e *QPEncoder) Close() error {
	if e.err != nil {
		return e.err
	}
	if e.cr {
		e.cr = false
		e.hardBreak()
	}
	e.pendingWS(true)
	e.flush()
	return e.err
}

func (e *QPEncoder) flush() {
	if len(e.out) == 0 || e.err != nil {
		return
	}
	_, e.err = e.w.Write(e.out)
	e.out = e.out[:0]
}

// QPDecoder reads quoted-printable text and returns the decoded bytes.
type QPDecoder struct {
	r      *bufio.Reader
	keepWS bool
	ws     []byte
	out    []byte
	done   bool
	err    error
}

// NewQPDecoder returns a decoder reading from r. Unless keepTrailingWS is
// set, whitespace at the end of a line is dropped as transport padding.
func NewQPDecoder(r io.Reader, keepTrailingWS bool) *QPDecoder {
	return &QPDecoder{r: bufio.NewReader(r), keepWS: keepTrailingWS}
}

// KeepTrailingWhitespace toggles the RFC 2045 trailing whitespace rule.
func (d *QPDecoder) KeepTrailingWhitespace(keep bool) {
	d.keepWS = keep
}

func (d *QPDecoder) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(d.out) < len(p) && !d.done {
		d.step()
	}
	if len(d.out) > 0 {
		n := copy(p, d.out)
		d.out = d.out[n:]
		return n, nil
	}
	if d.err != nil {
		return 0, d.err
	}
	return 0, io.EOF
}

func (d *QPDecoder) step() {
	c, err := d.r.ReadByte()
	if err != nil {
		// whitespace at the end of input is line-end padding too
		d.ws = d.ws[:0]
		d.done = true
		if err != io.EOF {
			d.err = err
		}
		return
	}
	switch c {
	case ' ', '\t':
		if d.keepWS {
			d.out = append(d.out, c)
			return
		}
		d.ws = append(d.ws, c)
		if len(d.ws) > qpLookahead {
			d.flushWS()
		}
	case '\r', '\n':
		if !d.keepWS {
			d.ws = d.ws[:0]
		}
		d.out = append(d.out, c)
	case '=':
		d.flushWS()
		d.escape()
	default:
		d.flushWS()
		d.out = append(d.out, c)
	}
}

func (d *QPDecoder) flushWS() {
	if len(d.ws) > 0 {
		d.out = append(d.out, d.ws...)
		d.ws = d.ws[:0]
	}
}

// escape handles the bytes following an '='.
func (d *QPDecoder) escape() {
	next, err := d.r.Peek(2)
	if len(next) == 0 {
		// "=" at the very end is a soft break with nothing after it
		if err != nil && err != io.EOF {
			d.err = err
		}
		return
	}
	if len(next) == 2 {
		if hi, lo := unhex(next[0]), unhex(next[1]); hi >= 0 && lo >= 0 {
			_, _ = d.r.Discard(2)
			d.out = append(d.out, byte(hi<<4|lo))
			return
		}
	}
	switch next[0] {
	case '\n':
		_, _ = d.r.Discard(1)
		return
	case '\r':
		if len(next) == 2 && next[1] == '\n' {
			_, _ = d.r.Discard(2)
		} else {
			_, _ = d.r.Discard(1)
		}
		return
	case ' ', '\t':
		// soft break padded with whitespace before the line ending
		if n := softBreakPadding(d.r); n > 0 {
			_, _ = d.r.Discard(n)
			return
		}
	}
	d.out = append(d.out, '=')
}

// softBreakPadding returns how many bytes of whitespace plus line ending
// follow, or 0 if the whitespace is followed by something else.
func softBreakPadding(r *bufio.Reader) int {
	for n := 1; n <= 76; n++ {
		buf, _ := r.Peek(n)
		if len(buf) < n {
			// whitespace up to the end of input
			return len(buf)
		}
		switch buf[n-1] {
		case ' ', '\t':
			continue
		case '\n':
			return n
		case '\r':
			if more, _ := r.Peek(n + 1); len(more) == n+1 && more[n] == '\n' {
				return n + 1
			}
			return n
		}
		return 0
	}
	return 0
}

func unhex(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	}
	return -1
}

// EncodeQWord Q-encodes b for use inside an RFC 2047 encoded-word.
func EncodeQWord(b []byte) string {
	var buf bytes.Buffer
	e := NewQPEncoder(&buf, QPOptions{Word: true, ForceEncode: QForceEncode})
	_, _ = e.Write(b)
	_ = e.Close()
	return buf.String()
}

// DecodeQWord decodes the payload of a Q-encoded word.
func DecodeQWord(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '_':
			out = append(out, ' ')
		case '=':
			if i+2 >= len(s) {
				return nil, ErrInvalidQ
			}
			hi, lo := unhex(s[i+1]), unhex(s[i+2])
			if hi < 0 || lo < 0 {
				return nil, ErrInvalidQ
			}
			out = append(out, byte(hi<<4|lo))
			i += 2
		default:
			out = append(out, c)
		}
	}
	return out, nil
}

// EncodeBWord B-encodes b for use inside an RFC 2047 encoded-word.
func EncodeBWord(b []byte) string {
	return EncodeBase64(b)
}

// DecodeBWord decodes the payload of a B-encoded word.
func DecodeBWord(s string) ([]byte, error) {
	return DecodeBase64Strict([]byte(s))
}
