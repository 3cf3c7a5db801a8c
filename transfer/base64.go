package transfer

import (
	"bufio"
	"io"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// MaxLineLength is the longest encoded line emitted by the folding encoders,
// not counting the CRLF.
const MaxLineLength = 76

var decodeMap = func() [256]int8 {
	var m [256]int8
	for i := range m {
		m[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		m[alphabet[i]] = int8(i)
	}
	return m
}()

// Base64Encoder turns every 3 input bytes into 4 output characters.
type Base64Encoder struct {
	w    io.Writer
	fold bool
	buf  [3]byte
	n    int
	col  int
	out  []byte
	err  error
}

// NewBase64Encoder returns an encoder writing to w. With fold set, a CRLF is
// inserted after every 76 output characters.
func NewBase64Encoder(w io.Writer, fold bool) *Base64Encoder {
	return &Base64Encoder{w: w, fold: fold, out: make([]byte, 0, 1024)}
}

func (e *Base64Encoder) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	for _, c := range p {
		e.buf[e.n] = c
		e.n++
		if e.n == 3 {
			e.quantum(3)
		}
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

// Close writes the final, padded quantum.
func (e *Base64Encoder) Close() error {
	if e.err != nil {
		return e.err
	}
	if e.n > 0 {
		e.quantum(e.n)
	}
	e.flush()
	return e.err
}

func (e *Base64Encoder) quantum(n int) {
	b0, b1, b2 := e.buf[0], byte(0), byte(0)
	if n > 1 {
		b1 = e.buf[1]
	}
	if n > 2 {
		b2 = e.buf[2]
	}
	q := [4]byte{
		alphabet[b0>>2],
		alphabet[(b0&0x03)<<4|b1>>4],
		alphabet[(b1&0x0F)<<2|b2>>6],
		alphabet[b2&0x3F],
	}
	if n < 3 {
		q[3] = '='
	}
	if n < 2 {
		q[2] = '='
	}
	if e.fold && e.col+4 > MaxLineLength {
		e.out = append(e.out, '\r', '\n')
		e.col = 0
	}
	e.out = append(e.out, q[:]...)
	e.col += 4
	e.n = 0
}

func (e *Base64Encoder) flush() {
	if len(e.out) == 0 || e.err != nil {
		return
	}
	_, e.err = e.w.Write(e.out)
	e.out = e.out[:0]
}

// Base64Decoder reads base64 text and returns the decoded bytes. Bytes outside
// the alphabet are skipped and decoding stops at the first '=' padding
// character.
type Base64Decoder struct {
	r      *bufio.Reader
	strict bool
	quad   [4]byte
	n      int
	out    []byte
	done   bool
	err    error
}

// NewBase64Decoder returns a lenient decoder.
func NewBase64Decoder(r io.Reader) *Base64Decoder {
	return &Base64Decoder{r: bufio.NewReader(r)}
}

func (d *Base64Decoder) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(d.out) == 0 && !d.done {
		d.fill(len(p))
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

func (d *Base64Decoder) fill(want int) {
	for len(d.out) < want && !d.done {
		c, err := d.r.ReadByte()
		if err != nil {
			d.finish()
			if err != io.EOF {
				d.err = err
			}
			return
		}
		if c == '=' {
			d.finish()
			return
		}
		v := decodeMap[c]
		if v < 0 {
			if d.strict && c != '\r' && c != '\n' {
				d.err = ErrInvalidBase64
				d.done = true
			}
			continue
		}
		d.quad[d.n] = byte(v)
		d.n++
		if d.n == 4 {
			d.out = append(d.out, d.quad[0]<<2|d.quad[1]>>4, d.quad[1]<<4|d.quad[2]>>2, d.quad[2]<<6|d.quad[3])
			d.n = 0
		}
	}
}

// finish flushes a partial final quantum: two characters carry one byte,
// three carry two.
func (d *Base64Decoder) finish() {
	d.done = true
	switch d.n {
	case 1:
		if d.strict {
			d.err = ErrInvalidBase64
		}
	case 2:
		d.out = append(d.out, d.quad[0]<<2|d.quad[1]>>4)
	case 3:
		d.out = append(d.out, d.quad[0]<<2|d.quad[1]>>4, d.quad[1]<<4|d.quad[2]>>2)
	}
	d.n = 0
}

// EncodeBase64 encodes b without line folding.
func EncodeBase64(b []byte) string {
	out := make([]byte, 0, (len(b)+2)/3*4)
	e := &Base64Encoder{out: out}
	for _, c := range b {
		e.buf[e.n] = c
		e.n++
		if e.n == 3 {
			e.quantum(3)
		}
	}
	if e.n > 0 {
		e.quantum(e.n)
	}
	return string(e.out)
}

// DecodeBase64 decodes b leniently.
func DecodeBase64(b []byte) []byte {
	d := &Base64Decoder{}
	return d.decodeAll(b)
}

// DecodeBase64Strict decodes b, failing on anything other than alphabet
// characters, line breaks and trailing padding.
func DecodeBase64Strict(b []byte) ([]byte, error) {
	d := &Base64Decoder{strict: true}
	out := d.decodeAll(b)
	if d.err != nil {
		return nil, d.err
	}
	return out, nil
}

func (d *Base64Decoder) decodeAll(b []byte) []byte {
	out := make([]byte, 0, len(b)*3/4+3)
	for _, c := range b {
		if c == '=' {
			break
		}
		v := decodeMap[c]
		if v < 0 {
			if d.strict && c != '\r' && c != '\n' {
				d.err = ErrInvalidBase64
				return nil
			}
			continue
		}
		d.quad[d.n] = byte(v)
		d.n++
		if d.n == 4 {
			out = append(out, d.quad[0]<<2|d.quad[1]>>4, d.quad[1]<<4|d.quad[2]>>2, d.quad[2]<<6|d.quad[3])
			d.n = 0
		}
	}
	d.finish()
	return append(out, d.out...)
}
