// Package mime parses the structure of MIME messages in a single pass over
// their bytes, and writes MIME entities.
//
// The parser never fails on malformed input. Every byte belongs to some
// part, headers are recorded as read, and bodies are kept as offsets into
// the input so they can be read lazily.
package mime

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/modfin/mimex/header"
	"github.com/modfin/mimex/utils"
)

const (
	// DefaultMaxHeaderSize caps a single header field.
	DefaultMaxHeaderSize = 64 * 1024

	readChunk = 8 * 1024
)

var (
	ErrTerminated   = errors.New("mime: parser already terminated")
	ErrNotMultipart = errors.New("mime: not a multipart")
)

type state int

const (
	stateHeaderLineStart state = iota
	stateHeader
	stateHeaderCR
	stateBodyLineStart
	stateBody
	stateBodyCR
	stateTerminated
)

// partInfo tracks a part that is still open.
type partInfo struct {
	// idx points into the arena; preambles have no part of their own
	idx         int
	location    Location
	firstLine   int
	bodyStart   int64
	contentType *header.ContentType
	encoding    string
	boundary    string
	hasBoundary bool
}

type Option func(*Parser)

// WithLogger sets the logger receiving parse anomalies at debug level.
func WithLogger(log *slog.Logger) Option {
	return func(p *Parser) {
		if log != nil {
			p.log = log
		}
	}
}

// WithCharset sets the charset used for 8-bit header bytes that carry no
// charset of their own.
func WithCharset(cs string) Option {
	return func(p *Parser) {
		p.charset = cs
	}
}

// WithMaxHeaderSize caps the bytes kept for one header field.
func WithMaxHeaderSize(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxHeader = n
		}
	}
}

// WithQPTrailingWhitespace keeps whitespace at the end of quoted-printable
// lines when bodies are decoded.
func WithQPTrailingWhitespace(keep bool) Option {
	return func(p *Parser) {
		p.keepQPWS = keep
	}
}

// WithSource tells the parser that the bytes written to it are also
// available from s, so it does not need to keep its own copy.
func WithSource(s RangeStream) Option {
	return func(p *Parser) {
		p.source = s
	}
}

// Parser builds the part tree of a message from bytes written to it.
type Parser struct {
	log       *slog.Logger
	charset   string
	maxHeader int
	keepQPWS  bool
	source    RangeStream
	buf       *bytes.Buffer

	state      state
	parts      []Part
	stack      []partInfo
	boundaries []string

	position   int64
	lineStart  int64
	lineNumber int
	lastEnding lineEnding
	dashes     int
	checker    *boundaryChecker
	hb         *header.ByteBuilder
	truncated  bool
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{
		log:       utils.NoopLogger(),
		maxHeader: DefaultMaxHeaderSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.source == nil {
		p.buf = &bytes.Buffer{}
	}
	p.hb = header.NewByteBuilder(80, "")
	root := p.newPart(-1, true)
	p.stack = append(p.stack, partInfo{idx: root, bodyStart: -1})
	return p
}

// Parse reads the whole stream and returns its part tree.
func Parse(s RangeStream, opts ...Option) (*Message, error) {
	p := NewParser(append(opts, WithSource(s))...)
	return p.readFrom(s)
}

func ParseBytes(b []byte, opts ...Option) (*Message, error) {
	return Parse(NewBytesStream(b), opts...)
}

// ParseMultipart parses s as the body of a multipart with type ct, as when
// the multipart was itself transfer encoded.
func ParseMultipart(ct *header.ContentType, s RangeStream, opts ...Option) (*Message, error) {
	if ct == nil || !ct.IsMultipart() {
		return nil, ErrNotMultipart
	}
	p := NewParser(append(opts, WithSource(s))...)
	p.parts[0].message = false
	root := p.top()
	p.setContentType(root, ct)
	root.bodyStart = 0
	p.parts[0].contentType = ct
	p.parts[0].bodyStart = 0
	p.stack = append(p.stack, partInfo{idx: -1, location: LocationPreamble, bodyStart: -1})
	p.state = stateBodyLineStart
	p.bodyStart(0)
	return p.readFrom(s)
}

func (p *Parser) readFrom(s RangeStream) (*Message, error) {
	r := Reader(s)
	chunk := make([]byte, readChunk)
	for {
		n, err := r.Read(chunk)
		for _, b := range chunk[:n] {
			p.handleByte(b)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return p.Close()
}

// Write feeds message bytes to the parser.
func (p *Parser) Write(b []byte) (int, error) {
	if p.state == stateTerminated {
		return 0, ErrTerminated
	}
	if p.buf != nil {
		p.buf.Write(b)
	}
	for _, c := range b {
		p.handleByte(c)
	}
	return len(b), nil
}

func (p *Parser) WriteByte(c byte) error {
	if p.state == stateTerminated {
		return ErrTerminated
	}
	if p.buf != nil {
		p.buf.WriteByte(c)
	}
	p.handleByte(c)
	return nil
}

// Close ends the input, closes every open part and returns the tree.
func (p *Parser) Close() (*Message, error) {
	if p.state == stateTerminated {
		return nil, ErrTerminated
	}
	p.end()
	src := p.source
	if src == nil {
		src = NewBytesStream(p.buf.Bytes())
	}
	msg := &Message{parts: p.parts, stream: src, charset: p.charset, keepQPWS: p.keepQPWS}
	for i := range msg.parts {
		msg.parts[i].msg = msg
	}
	return msg, nil
}

func (p *Parser) top() *partInfo {
	return &p.stack[len(p.stack)-1]
}

func (p *Parser) newPart(parent int, message bool) int {
	idx := len(p.parts)
	p.parts = append(p.parts, Part{
		index:         idx,
		parent:        parent,
		message:       message,
		headerStart:   p.position,
		bodyStart:     -1,
		epilogueStart: -1,
	})
	if parent >= 0 {
		p.parts[parent].children = append(p.parts[parent].children, idx)
	}
	return idx
}

func (p *Parser) handleByte(b byte) {
	for {
		switch p.state {
		case stateHeaderCR:
			p.state = stateHeaderLineStart
			if b == '\n' {
				p.addHeaderByte(b)
				p.lastEnding = endingCRLF
				break
			}
			p.lastEnding = endingCR
			p.addHeaderByte('\n')
			fallthrough
		case stateHeaderLineStart:
			if p.processBoundary() {
				continue
			}
			if p.misencodedCRLF() {
				// a header line holding only "=0D" means the headers were
				// QP encoded along with the body; the blank line was lost
				p.log.Debug("treating QP encoded CRLF as end of headers", "offset", p.position)
				p.hb.Reset()
				p.state = stateBodyLineStart
				continue
			}
			p.newline()
			if b == ' ' || b == '\t' {
				p.addHeaderByte(b)
				p.state = stateHeader
				break
			}
			p.saveHeader()
			if b == '\n' {
				p.lastEnding = endingLF
				p.state = stateBodyLineStart
				break
			}
			if b == '\r' {
				p.state = stateBodyCR
				break
			}
			p.state = stateHeader
			fallthrough
		case stateHeader:
			p.addHeaderByte(b)
			if b == '\n' {
				p.lastEnding = endingLF
				p.fixBareLF()
				p.state = stateHeaderLineStart
			} else if b == '\r' {
				p.state = stateHeaderCR
			}
		case stateBodyCR:
			if b == '\n' {
				p.lastEnding = endingCRLF
				p.state = stateBodyLineStart
				break
			}
			p.lastEnding = endingCR
			fallthrough
		case stateBodyLineStart:
			if p.processBoundary() {
				continue
			}
			p.newline()
			p.state = stateBody
			if p.top().bodyStart < 0 && p.bodyStart(p.position) {
				continue
			}
			fallthrough
		case stateBody:
			if b == '\n' {
				p.lastEnding = endingLF
				p.state = stateBodyLineStart
			} else if b == '\r' {
				p.state = stateBodyCR
			}
		case stateTerminated:
			return
		}
		break
	}
	p.checkBoundary(b)
	p.position++
}

// fixBareLF rewrites a header line ending in a bare LF to end in CRLF.
func (p *Parser) fixBareLF() {
	n := p.hb.Len()
	if n == 0 || !p.hb.EndsWith('\n') || (n > 1 && p.hb.ByteAt(n-2) == '\r') {
		return
	}
	p.hb.Pop()
	p.hb.AppendByte('\r').AppendByte('\n')
}

func (p *Parser) addHeaderByte(b byte) {
	if p.hb.Len() <= p.maxHeader {
		p.hb.AppendByte(b)
		return
	}
	if !p.truncated {
		p.truncated = true
		p.log.Debug("truncating oversized header", "offset", p.position, "limit", p.maxHeader)
	}
	switch {
	case p.hb.EndsWith('\n'):
	case p.hb.EndsWith('\r'):
		p.hb.AppendByte('\n')
	default:
		p.hb.AppendByte('\r').AppendByte('\n')
	}
}

func (p *Parser) misencodedCRLF() bool {
	hb := p.hb
	return hb.Len() == 5 && hb.ByteAt(0) == '=' && hb.ByteAt(1) == '0' && hb.ByteAt(2) == 'D' &&
		p.top().encoding == "quoted-printable"
}

func (p *Parser) saveHeader() {
	if p.hb.IsEmpty() {
		return
	}
	h := header.ParseHeader(p.hb.Bytes())
	p.hb.Reset()
	p.truncated = false
	cur := p.top()
	if cur.idx >= 0 {
		p.parts[cur.idx].headers.Append(h)
	}
	switch {
	case h.Is(header.ContentTypeInfo.Name):
		p.setContentType(cur, header.ParseContentType(h, p.defaultContentType(), p.charset))
	case h.Is(header.ContentTransferEncoding.Name):
		if cur.encoding == "" {
			cur.encoding = strings.ToLower(strings.TrimSpace(h.Decode(p.charset)))
		}
	}
}

// setContentType records the first Content-Type of a part.
func (p *Parser) setContentType(pi *partInfo, ct *header.ContentType) {
	if pi.contentType != nil {
		return
	}
	pi.contentType = ct
	if ct.IsMultipart() {
		bnd, _ := ct.Boundary()
		pi.boundary, pi.hasBoundary = normalizeBoundary(bnd), true
		if pi.idx >= 0 {
			part := &p.parts[pi.idx]
			part.boundary, part.hasBoundary = pi.boundary, true
		}
		p.recalculateBoundaries()
	} else if pi.hasBoundary {
		pi.boundary, pi.hasBoundary = "", false
		p.recalculateBoundaries()
	}
}

func (p *Parser) defaultContentType() string {
	if len(p.stack) > 1 {
		cur, parent := p.stack[len(p.stack)-1], p.stack[len(p.stack)-2]
		if cur.location != LocationPreamble && parent.contentType != nil &&
			parent.contentType.BaseType() == header.MultipartDigest {
			return header.MessageRFC822
		}
	}
	return header.TextPlain
}

func (p *Parser) recalculateBoundaries() {
	p.boundaries = p.boundaries[:0]
	for _, pi := range p.stack {
		if pi.hasBoundary {
			p.boundaries = append(p.boundaries, pi.boundary)
		}
	}
}

// bodyStart marks the start of the body of the current part at pos. It
// returns true when the body is an encapsulated message whose headers must
// now be parsed.
func (p *Parser) bodyStart(pos int64) bool {
	for {
		cur := p.top()
		if cur.contentType == nil {
			cur.contentType = header.NewContentType(p.defaultContentType())
		}
		cur.bodyStart = pos
		cur.firstLine = p.lineNumber
		if cur.idx >= 0 {
			p.parts[cur.idx].contentType = cur.contentType
			p.parts[cur.idx].bodyStart = pos
		}
		switch {
		case cur.contentType.IsMultipart():
			p.stack = append(p.stack, partInfo{idx: -1, location: LocationPreamble, bodyStart: -1})
			continue
		case cur.contentType.IsRFC822():
			inner := p.newPart(cur.idx, true)
			p.stack = append(p.stack, partInfo{idx: inner, bodyStart: -1})
			p.state = stateHeaderLineStart
			return true
		}
		return false
	}
}

func (p *Parser) newline() {
	if p.lineStart == p.position {
		return
	}
	p.lineNumber++
	p.lineStart = p.position
	p.dashes = 0
	p.checker = nil
}

func (p *Parser) checkBoundary(b byte) {
	if len(p.boundaries) == 0 {
		return
	}
	if b == '-' && int64(p.dashes) == p.position-p.lineStart && p.dashes < 2 {
		p.dashes++
		if p.dashes == 2 {
			p.checker = newBoundaryChecker(p.boundaries, p.lineStart, p.lastEnding)
		}
		return
	}
	if p.dashes == 2 && p.checker != nil && b != '\r' && b != '\n' {
		if !p.checker.checkByte(b, int(p.position-p.lineStart-2)) {
			p.checker = nil
		}
	}
}

// processBoundary acts on the line just finished if it was a boundary.
func (p *Parser) processBoundary() bool {
	c := p.checker
	p.dashes = 0
	p.checker = nil
	if c == nil {
		return false
	}
	m, ok := c.match()
	if !ok {
		return false
	}
	bnd := m.boundary
	if bnd == "" {
		bnd = string(c.saved)
		if bnd == "" || strings.HasSuffix(bnd, "--") {
			return false
		}
	}
	p.boundary(bnd, m.trailers == 2, c.partEnd)
	return true
}

func (p *Parser) boundary(bnd string, isEnd bool, partEnd int64) {
	p.hb.Reset()
	if p.top().bodyStart < 0 {
		p.bodyStart(p.lineStart)
	}

	match := len(p.stack) - 1
	for ; match >= 0; match-- {
		pi := &p.stack[match]
		if !pi.hasBoundary {
			continue
		}
		if pi.boundary == bnd || (pi.boundary == "" && !p.isBoundary(bnd)) {
			break
		}
	}
	keep := max(match+1, 1)
	for len(p.stack) > keep {
		// lineNumber already counts the boundary line, so it is excluded
		p.endPart(partEnd, match == len(p.stack)-2, p.lineNumber)
	}

	cur := p.top()
	part := &p.parts[cur.idx]
	if cur.hasBoundary && cur.boundary == "" {
		cur.boundary = normalizeBoundary(bnd)
		part.boundary, part.implicitBoundary = cur.boundary, true
		p.log.Debug("learned multipart boundary from body", "boundary", cur.boundary, "offset", p.lineStart)
	}
	if isEnd {
		cur.boundary, cur.hasBoundary = "", false
		part.complete = true
		part.epilogueStart = p.position
		p.state = stateBodyLineStart
	} else {
		child := p.newPart(cur.idx, false)
		p.stack = append(p.stack, partInfo{idx: child, bodyStart: -1})
		p.state = stateHeaderLineStart
	}
	p.recalculateBoundaries()
}

func (p *Parser) isBoundary(bnd string) bool {
	for _, b := range p.boundaries {
		if b == bnd {
			return true
		}
	}
	return false
}

// endPart closes the innermost open part at end, with lastLine the number
// of the line following its body. clean is set when the part was closed by
// a boundary of its own parent.
func (p *Parser) endPart(end int64, clean bool, lastLine int) {
	pi := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	bodyEnd := max(pi.bodyStart, end)

	if pi.location != LocationPreamble {
		part := &p.parts[pi.idx]
		part.bodyStart = pi.bodyStart
		part.bodyEnd = bodyEnd
		part.lines = max(lastLine-pi.firstLine, 0)
		return
	}
	if len(p.stack) == 0 {
		return
	}
	parent := p.top()
	length := bodyEnd - pi.bodyStart
	if !clean && parent.encoding != "" && !rawEncoding(parent.encoding) {
		// the boundaries are hidden by the multipart's own encoding
		p.log.Debug("multipart body is transfer encoded", "encoding", parent.encoding)
		p.parts[parent.idx].deferred = true
		length = 0
	}
	if length > 0 {
		part := &p.parts[parent.idx]
		part.preambleStart = pi.bodyStart
		part.preambleEnd = pi.bodyStart + min(length, MaxPreamble)
	}
}

func rawEncoding(enc string) bool {
	switch enc {
	case "7bit", "8bit", "binary":
		return true
	}
	return false
}

func (p *Parser) end() {
	p.processBoundary()
	p.newline()
	if !p.hb.IsEmpty() {
		if p.hb.EndsWith('\r') {
			p.hb.AppendByte('\n')
		} else if !p.hb.EndsWith('\n') {
			p.hb.AppendByte('\r').AppendByte('\n')
		}
		p.saveHeader()
	}
	p.hb.Reset()
	for i := 0; i < 2 && p.top().bodyStart < 0; i++ {
		p.bodyStart(p.position)
	}
	for len(p.stack) > 0 {
		p.endPart(p.position, len(p.stack) == 1, p.lineNumber)
	}
	p.state = stateTerminated
}
