package header

import (
	"bytes"
	"sort"
	"strings"

	"github.com/modfin/mimex/charset"
	"github.com/modfin/mimex/transfer"
)

type compoundState int

const (
	stParam compoundState = iota
	stEquals
	stValue
	stQValue
	stExtended
	stContinued
	stCharset
	stLang
	stComment
	stSlop
)

// Compound is a header value of the form "value; name=value; ...", such as
// Content-Type or Content-Disposition.
type Compound struct {
	name   string
	value  string
	params Params
	// Use2231 writes non-ASCII parameters as RFC 2231 extended values
	// instead of quoted RFC 2047 encoded-words.
	Use2231 bool
	charset string
	// serialized form, nil after a mutation
	header *Header
}

// NewCompound creates an empty compound header value.
func NewCompound(name, value string) *Compound {
	if info := LookupInfo(name); info.Name != "" {
		name = info.Name
	}
	return &Compound{name: name, value: value}
}

// ParseCompound parses the value of h. Raw 8-bit bytes and encoded values
// without a charset label are read as cs.
func ParseCompound(h *Header, cs string) *Compound {
	c := &Compound{name: h.Name(), charset: cs, header: h}
	p := &compoundParser{c: c, cs: cs, state: stValue, primary: true, index: -1}
	for _, b := range h.RawValue() {
		p.step(b)
	}
	p.end()
	return c
}

func (c *Compound) Name() string {
	return c.name
}

// Value returns the part before the first ';'.
func (c *Compound) Value() string {
	return c.value
}

func (c *Compound) SetValue(v string) {
	c.value = v
	c.header = nil
}

// Parameter returns the named parameter, or "" if absent.
func (c *Compound) Parameter(name string) string {
	v, _ := c.params.Get(name)
	return v
}

func (c *Compound) LookupParameter(name string) (string, bool) {
	return c.params.Get(name)
}

// SetParameter replaces any parameter of the same name. An empty value
// removes the parameter.
func (c *Compound) SetParameter(name, value string) {
	if value == "" {
		c.RemoveParameter(name)
		return
	}
	c.params.Set(name, value)
	c.header = nil
}

func (c *Compound) RemoveParameter(name string) {
	if c.params.Del(name) {
		c.header = nil
	}
}

func (c *Compound) Params() []Param {
	return c.params.All()
}

// Charset is used to read unlabeled 8-bit parameter bytes and to encode
// non-ASCII parameters on output.
func (c *Compound) Charset() string {
	return c.charset
}

func (c *Compound) SetCharset(cs string) {
	c.charset = cs
	c.header = nil
}

// Header returns the header line for this value. A parsed value returns the
// header it was parsed from until it is modified.
func (c *Compound) Header() *Header {
	if c.header == nil {
		c.header = NewHeaderBytes(c.name, []byte(c.encode(true)))
	}
	return c.header
}

// String returns the serialized value on a single line.
func (c *Compound) String() string {
	return c.encode(false)
}

func (c *Compound) encode(fold bool) string {
	var sb strings.Builder
	v := Escape(c.value, c.charset, false)
	sb.WriteString(v)
	col := len(c.name) + 2 + len(v)
	for _, p := range c.params.list {
		piece := c.encodeParam(p)
		sb.WriteByte(';')
		col++
		if fold && col+1+len(piece) > transfer.MaxLineLength {
			sb.WriteString("\r\n ")
			col = 1
		} else {
			sb.WriteByte(' ')
			col++
		}
		sb.WriteString(piece)
		col += len(piece)
	}
	return sb.String()
}

func (c *Compound) encodeParam(p Param) string {
	if isASCIIString(p.Value) {
		if needsQuoting(p.Value) {
			return p.Name + "=" + Quote(p.Value)
		}
		return p.Name + "=" + p.Value
	}
	cs := c.charset
	if cs == "" {
		cs = charset.UTF8
	}
	if c.Use2231 {
		b, used := charset.Encode(nil, p.Value, cs)
		return p.Name + "*=" + used + "''" + encodePercent(b)
	}
	return p.Name + "=" + Quote(EncodeWord(p.Value, cs))
}

func isASCIIString(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	for i := 0; i < len(s); i++ {
		if !isTokenChar(s[i]) {
			return true
		}
	}
	return false
}

// attribute-char from RFC 2231, the bytes that need no percent-encoding
func isAttrChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}

func encodePercent(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b) * 3)
	for _, c := range b {
		if isAttrChar(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte("0123456789ABCDEF"[c>>4])
		sb.WriteByte("0123456789ABCDEF"[c&0x0F])
	}
	return sb.String()
}

// decodePercent undoes RFC 2231 percent-encoding and converts the result
// from cs, or from fallback when cs is empty.
func decodePercent(b []byte, cs, fallback string) string {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] == '%' && i+2 < len(b) {
			if hi, lo := hexVal(b[i+1]), hexVal(b[i+2]); hi >= 0 && lo >= 0 {
				out = append(out, byte(hi<<4|lo))
				i += 2
				continue
			}
		}
		out = append(out, b[i])
	}
	if cs == "" {
		cs = fallback
	}
	return charset.Decode(nil, out, cs)
}

func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

// continuation is one "name*N" or "name*N*" piece of an RFC 2231 value.
type continuation struct {
	charset string
	encoded bool
	value   []byte
}

type continued struct {
	name  string
	parts map[int]continuation
}

type compoundParser struct {
	c       *Compound
	cs      string
	state   compoundState
	resume  compoundState
	depth   int
	escaped bool
	primary bool

	// the parameter being read
	name     []byte
	val      []byte
	pcharset []byte
	lang     []byte
	index    int
	encoded  bool
	hasValue bool
	quoted   bool

	conts    map[string]*continued
	order    []string
	extended map[string]bool
}

func (p *compoundParser) step(b byte) {
	// folding
	if b == '\r' || b == '\n' {
		return
	}
	if p.escaped {
		p.escaped = false
		if p.state == stQValue {
			p.val = append(p.val, b)
		}
		return
	}

	switch p.state {
	case stComment:
		switch b {
		case '\\':
			p.escaped = true
		case '(':
			p.depth++
		case ')':
			p.depth--
			if p.depth == 0 {
				p.state = p.resume
			}
		}
		return
	case stQValue:
		switch b {
		case '\\':
			p.escaped = true
		case '"':
			p.state = stSlop
		default:
			p.val = append(p.val, b)
		}
		return
	}

	if b == '(' {
		p.resume = p.state
		if p.state == stValue && len(p.val) > 0 {
			p.resume = stSlop
		}
		p.depth = 1
		p.state = stComment
		return
	}

	switch p.state {
	case stParam:
		switch {
		case b == ';':
			p.reset()
		case b == ' ' || b == '\t':
			if len(p.name) > 0 {
				p.state = stEquals
			}
		case b == '=':
			if len(p.name) == 0 {
				p.state = stSlop
			} else {
				p.startValue()
			}
		case b == '*':
			if len(p.name) == 0 {
				p.state = stSlop
			} else {
				p.state = stExtended
			}
		default:
			p.name = append(p.name, b)
		}
	case stEquals:
		switch b {
		case '=':
			p.startValue()
		case '*':
			p.state = stExtended
		case ';':
			p.reset()
			p.state = stParam
		case ' ', '\t':
		default:
			p.name = append(p.name[:0], b)
			p.state = stParam
		}
	case stExtended:
		switch {
		case b >= '0' && b <= '9':
			p.index = int(b - '0')
			p.state = stContinued
		case b == '=':
			p.encoded = true
			p.startValue()
		case b == ';':
			p.reset()
			p.state = stParam
		case b == ' ' || b == '\t':
		default:
			p.state = stSlop
		}
	case stContinued:
		switch {
		case b >= '0' && b <= '9':
			if p.index < 1<<20 {
				p.index = p.index*10 + int(b-'0')
			}
		case b == '*':
			p.encoded = true
		case b == '=':
			p.startValue()
		case b == ';':
			p.reset()
			p.state = stParam
		case b == ' ' || b == '\t':
		default:
			p.state = stSlop
		}
	case stCharset:
		switch {
		case b == '\'':
			p.state = stLang
		case b == ';':
			p.uncharset()
			p.finish()
			p.state = stParam
		case b == ' ' || b == '\t':
			if len(p.pcharset) > 0 {
				p.uncharset()
				p.state = stSlop
			}
		case b == '"' && len(p.pcharset) == 0:
			p.quoted = true
			p.state = stQValue
		default:
			p.pcharset = append(p.pcharset, b)
		}
	case stLang:
		switch b {
		case '\'':
			p.state = stValue
		case ';':
			p.finish()
			p.state = stParam
		default:
			p.lang = append(p.lang, b)
		}
	case stValue:
		switch {
		case b == ';':
			p.finish()
			p.state = stParam
		case b == ' ' || b == '\t':
			if len(p.val) > 0 {
				p.state = stSlop
			}
		case b == '"' && len(p.val) == 0:
			p.quoted = true
			p.state = stQValue
		default:
			p.val = append(p.val, b)
		}
	case stSlop:
		if b == ';' {
			p.finish()
			p.state = stParam
		}
	}
}

func (p *compoundParser) startValue() {
	p.hasValue = true
	if p.encoded && p.index <= 0 {
		p.state = stCharset
	} else {
		p.state = stValue
	}
}

// uncharset handles an extended value that never reached its first quote:
// what looked like the charset was the value.
func (p *compoundParser) uncharset() {
	p.val = append(p.val, p.pcharset...)
	p.pcharset = p.pcharset[:0]
}

func (p *compoundParser) reset() {
	p.name = p.name[:0]
	p.val = p.val[:0]
	p.pcharset = p.pcharset[:0]
	p.lang = p.lang[:0]
	p.index = -1
	p.encoded, p.hasValue, p.quoted = false, false, false
}

func (p *compoundParser) finish() {
	defer p.reset()
	if p.primary {
		p.primary = false
		p.c.value = strings.TrimSpace(p.text(p.val))
		return
	}
	if len(p.name) == 0 || !p.hasValue {
		return
	}
	name := string(p.name)
	cs := string(p.pcharset)
	val := p.val
	if p.encoded && p.index <= 0 && cs == "" && p.quoted {
		if parts := bytes.SplitN(val, []byte("'"), 3); len(parts) == 3 {
			cs, val = string(parts[0]), parts[2]
		}
	}
	if p.index >= 0 {
		p.addContinuation(name, continuation{charset: cs, encoded: p.encoded, value: append([]byte(nil), val...)})
		return
	}

	var v string
	if p.encoded {
		v = decodePercent(val, cs, p.cs)
	} else {
		v = p.text(val)
	}
	p.setDirect(name, v, p.encoded)
}

// text converts plain value bytes, decoding RFC 2047 encoded-words placed
// where they do not belong.
func (p *compoundParser) text(b []byte) string {
	if bytes.Contains(b, []byte("=?")) {
		return Decode(b, p.cs)
	}
	return charset.Decode(nil, b, p.cs)
}

// setDirect records a non-continued value. The first value for a name wins,
// except that an RFC 2231 extended value replaces a plain one.
func (p *compoundParser) setDirect(name, v string, extended bool) {
	lower := strings.ToLower(name)
	if i := p.c.params.index(name); i >= 0 {
		if extended && !p.extended[lower] {
			p.c.params.list[i].Value = v
			p.markExtended(lower)
		}
		return
	}
	p.c.params.Set(name, v)
	if extended {
		p.markExtended(lower)
	}
}

func (p *compoundParser) markExtended(lower string) {
	if p.extended == nil {
		p.extended = make(map[string]bool)
	}
	p.extended[lower] = true
}

func (p *compoundParser) addContinuation(name string, part continuation) {
	lower := strings.ToLower(name)
	if p.conts == nil {
		p.conts = make(map[string]*continued)
	}
	set, ok := p.conts[lower]
	if !ok {
		set = &continued{name: name, parts: make(map[int]continuation)}
		p.conts[lower] = set
		p.order = append(p.order, lower)
	}
	if _, dup := set.parts[p.index]; !dup {
		set.parts[p.index] = part
	}
}

func (p *compoundParser) end() {
	if p.state == stCharset {
		p.uncharset()
	}
	p.finish()
	p.assemble()
}

// assemble joins continuations in index order. Runs of encoded pieces are
// joined before percent-decoding since an encoded character may be split
// across pieces.
func (p *compoundParser) assemble() {
	for _, lower := range p.order {
		set := p.conts[lower]
		if _, ok := p.c.params.Get(set.name); ok {
			continue
		}
		indexes := make([]int, 0, len(set.parts))
		for i := range set.parts {
			indexes = append(indexes, i)
		}
		sort.Ints(indexes)

		var out strings.Builder
		var enc []byte
		cs := ""
		for _, i := range indexes {
			part := set.parts[i]
			if cs == "" {
				cs = part.charset
			}
			if part.encoded {
				enc = append(enc, part.value...)
				continue
			}
			if len(enc) > 0 {
				out.WriteString(decodePercent(enc, cs, p.cs))
				enc = enc[:0]
			}
			out.WriteString(charset.Decode(nil, part.value, p.cs))
		}
		if len(enc) > 0 {
			out.WriteString(decodePercent(enc, cs, p.cs))
		}
		p.c.params.Set(set.name, out.String())
	}
}
