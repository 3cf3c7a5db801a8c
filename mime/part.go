package mime

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/modfin/mimex/charset"
	"github.com/modfin/mimex/header"
	"github.com/modfin/mimex/transfer"
)

// MaxPreamble caps how much of a multipart preamble is kept.
const MaxPreamble = 64 * 1024

// Location tells where in its parent a part was found.
type Location int

const (
	LocationContent Location = iota
	LocationPreamble
	LocationEpilogue
)

func (l Location) String() string {
	switch l {
	case LocationPreamble:
		return "preamble"
	case LocationEpilogue:
		return "epilogue"
	}
	return "content"
}

// Part is a node of a parsed message. Offsets refer to the stream the
// message was parsed from.
type Part struct {
	msg      *Message
	index    int
	parent   int
	children []int

	location    Location
	message     bool
	headers     header.Block
	contentType *header.ContentType

	boundary         string
	hasBoundary      bool
	implicitBoundary bool
	complete         bool
	deferred         bool

	headerStart   int64
	bodyStart     int64
	bodyEnd       int64
	lines         int
	preambleStart int64
	preambleEnd   int64
	epilogueStart int64
}

// Message is the result of a parse: an arena of parts over one stream.
type Message struct {
	parts    []Part
	stream   RangeStream
	charset  string
	keepQPWS bool
}

// Root returns the top-level part.
func (m *Message) Root() *Part {
	return &m.parts[0]
}

// Charset returns the charset 8-bit header bytes are read as, "" for the
// registry default.
func (m *Message) Charset() string {
	return m.charset
}

// Len returns the number of parts, including the root.
func (m *Message) Len() int {
	return len(m.parts)
}

// Stream returns the stream the message was parsed from.
func (m *Message) Stream() RangeStream {
	return m.stream
}

// Walk visits every part depth first, parents before children. Returning an
// error from fn stops the walk.
func (m *Message) Walk(fn func(p *Part, depth int) error) error {
	return m.walk(0, 0, fn)
}

func (m *Message) walk(idx, depth int, fn func(p *Part, depth int) error) error {
	p := &m.parts[idx]
	if err := fn(p, depth); err != nil {
		return err
	}
	for _, c := range p.children {
		if err := m.walk(c, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

// Part looks up a part by its IMAP section number, such as "1.2". The
// empty string is the root. The body of a single part message is "1" and
// the body of an encapsulated single part message is "<n>.1".
func (m *Message) Part(id string) *Part {
	var found *Part
	_ = m.Walk(func(p *Part, _ int) error {
		if found == nil && p.ID() == id {
			found = p
		}
		return nil
	})
	if found != nil {
		return found
	}
	parent, ok := strings.CutSuffix(id, "1")
	if !ok || (parent != "" && !strings.HasSuffix(parent, ".")) {
		return nil
	}
	var container *Part
	if parent == "" {
		container = m.Root()
	} else if container = m.Part(strings.TrimSuffix(parent, ".")); container == nil {
		return nil
	}
	if inner := container.Encapsulated(); inner != nil {
		container = inner
	}
	if !container.message || container.IsMultipart() {
		return nil
	}
	return container
}

// Index returns the position of p in the arena; the root is 0.
func (p *Part) Index() int {
	return p.index
}

// Parent returns the enclosing part, or nil for the root.
func (p *Part) Parent() *Part {
	if p.parent < 0 {
		return nil
	}
	return &p.msg.parts[p.parent]
}

// Children returns the parts of a multipart, or the encapsulated message
// of a message/rfc822 part.
func (p *Part) Children() []*Part {
	out := make([]*Part, 0, len(p.children))
	for _, c := range p.children {
		out = append(out, &p.msg.parts[c])
	}
	return out
}

// Encapsulated returns the message inside a message/rfc822 part.
func (p *Part) Encapsulated() *Part {
	for _, c := range p.children {
		if p.msg.parts[c].message {
			return &p.msg.parts[c]
		}
	}
	return nil
}

// ID returns the IMAP section number of p. An encapsulated message shares
// the number of the message/rfc822 part holding it.
func (p *Part) ID() string {
	if p.parent < 0 {
		return ""
	}
	parent := &p.msg.parts[p.parent]
	if p.message {
		return parent.ID()
	}
	n := 1
	for i, c := range parent.children {
		if c == p.index {
			n = i + 1
			break
		}
	}
	if base := parent.ID(); base != "" {
		return base + "." + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

func (p *Part) Location() Location {
	return p.location
}

// IsMessage reports whether p starts a message: the root, or the content of
// a message/rfc822 part.
func (p *Part) IsMessage() bool {
	return p.message
}

func (p *Part) IsMultipart() bool {
	return p.contentType != nil && p.contentType.IsMultipart()
}

func (p *Part) Headers() *header.Block {
	return &p.headers
}

// Header returns the decoded value of the first header called name.
func (p *Part) Header(name string) string {
	return p.headers.Value(name, p.msg.charset)
}

func (p *Part) ContentType() *header.ContentType {
	return p.contentType
}

// Disposition returns the parsed Content-Disposition, or nil if the part has
// none.
func (p *Part) Disposition() *header.ContentDisposition {
	h := p.headers.Get(header.ContentDispositionInfo.Name)
	if h == nil {
		return nil
	}
	return header.ParseContentDisposition(h, p.msg.charset)
}

// Filename returns the disposition filename, falling back to the
// Content-Type name parameter.
func (p *Part) Filename() string {
	if cd := p.Disposition(); cd != nil {
		if name := cd.Filename(); name != "" {
			return name
		}
	}
	if p.contentType != nil {
		return p.contentType.Parameter("name")
	}
	return ""
}

// Boundary returns the boundary of a multipart. For a multipart that did
// not declare one, it is the first boundary line seen in its body.
func (p *Part) Boundary() (string, bool) {
	return p.boundary, p.hasBoundary
}

// ImplicitBoundary reports whether the boundary was learned from the body.
func (p *Part) ImplicitBoundary() bool {
	return p.implicitBoundary
}

// Complete reports whether a multipart saw its closing boundary.
func (p *Part) Complete() bool {
	return p.complete
}

// Deferred reports whether a multipart is itself transfer encoded, so its
// children can only be found in the decoded body. See DecodeMultipart.
func (p *Part) Deferred() bool {
	return p.deferred
}

// HeaderOffset is the offset of the first header byte.
func (p *Part) HeaderOffset() int64 {
	return p.headerStart
}

// BodyRange returns the [start, end) offsets of the raw body.
func (p *Part) BodyRange() (int64, int64) {
	return p.bodyStart, p.bodyEnd
}

// Size is the length of the raw body.
func (p *Part) Size() int64 {
	return p.bodyEnd - p.bodyStart
}

// Lines is the number of lines in the raw body.
func (p *Part) Lines() int {
	return p.lines
}

// BodyStream returns the raw body as a substream.
func (p *Part) BodyStream() RangeStream {
	return p.msg.stream.Substream(p.bodyStart, p.bodyEnd)
}

// Body returns a reader over the raw, still encoded body.
func (p *Part) Body() io.Reader {
	return Reader(p.BodyStream())
}

// Raw returns a reader over the headers and body of p.
func (p *Part) Raw() io.Reader {
	return Reader(p.msg.stream.Substream(p.headerStart, p.bodyEnd))
}

// Encoding parses the Content-Transfer-Encoding header. A missing header is
// 7bit.
func (p *Part) Encoding() (transfer.Encoding, error) {
	return transfer.Parse(p.Header(header.ContentTransferEncoding.Name))
}

// DecodedBody returns the body with its transfer encoding removed. Bodies
// with an unknown encoding are returned as is.
func (p *Part) DecodedBody() io.Reader {
	enc, err := p.Encoding()
	switch {
	case err != nil:
		return p.Body()
	case enc == transfer.QuotedPrintable:
		return transfer.NewQPDecoder(p.Body(), p.msg.keepQPWS)
	}
	return transfer.NewDecoder(enc, p.Body())
}

// Text returns the decoded body converted from its charset to UTF-8.
func (p *Part) Text() (string, error) {
	b, err := io.ReadAll(p.DecodedBody())
	if err != nil {
		return "", err
	}
	cs := p.msg.charset
	if p.contentType != nil {
		if c := p.contentType.Charset(); c != "" {
			cs = c
		}
	}
	return charset.Decode(nil, b, cs), nil
}

// Preamble returns the text before the first boundary of a multipart, at
// most MaxPreamble bytes.
func (p *Part) Preamble() []byte {
	if p.preambleEnd <= p.preambleStart {
		return nil
	}
	return p.read(p.preambleStart, p.preambleEnd)
}

// Epilogue returns the text after the closing boundary of a multipart.
func (p *Part) Epilogue() []byte {
	if !p.complete || p.epilogueStart < 0 || p.epilogueStart >= p.bodyEnd {
		return nil
	}
	return p.read(p.epilogueStart, p.bodyEnd)
}

func (p *Part) read(start, end int64) []byte {
	b, err := ReadAll(p.msg.stream.Substream(start, end))
	if err != nil {
		return nil
	}
	return b
}

// DecodeMultipart parses the decoded body of a transfer encoded multipart.
func (p *Part) DecodeMultipart(opts ...Option) (*Message, error) {
	if !p.IsMultipart() {
		return nil, ErrNotMultipart
	}
	b, err := io.ReadAll(p.DecodedBody())
	if err != nil {
		return nil, err
	}
	return ParseMultipart(p.contentType, NewBytesStream(bytes.Clone(b)), opts...)
}
