package envelope

import (
	"errors"
	"fmt"
	stdmime "mime"
	"net/mail"
	"net/textproto"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/modfin/mimex/charset"
	"github.com/modfin/mimex/header"
	"github.com/modfin/mimex/mime"
	"github.com/modfin/mimex/transfer"
)

var (
	ErrNoHeaders     = errors.New("could not find headers")
	ErrNotAttachment = errors.New("content is not an attachment")
	ErrNotInline     = errors.New("content is not inline")
	ErrNotForm       = errors.New("content is not form-data")
	ErrNoFilename    = errors.New("no filename")
	ErrNoName        = errors.New("no form field name")
)

// Mail is a parsed message. RawHeaders and RawBody slice the message the
// mail was created from.
type Mail struct {
	UTF8 bool

	RawHeaders []byte
	RawBody    []byte

	msg *mime.Message
}

// NewMail parses raw. utf8 is set for messages received with SMTPUTF8, in
// which case 8bit header text is read as UTF-8. Otherwise it is read as the
// charset given with mime.WithCharset.
func NewMail(raw []byte, utf8 bool, opts ...mime.Option) (*Mail, error) {
	msg, err := mime.ParseBytes(raw, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not parse mail, err: %w", err)
	}
	start, _ := msg.Root().BodyRange()
	return &Mail{
		UTF8:       utf8,
		RawHeaders: raw[:start],
		RawBody:    raw[start:],
		msg:        msg,
	}, nil
}

// Message returns the part tree of the mail.
func (e *Mail) Message() *mime.Message {
	return e.msg
}

func (e *Mail) charset() string {
	if e.UTF8 || utf8.Valid(e.RawHeaders) {
		return charset.UTF8
	}
	return e.msg.Charset()
}

type headerOptions struct {
	literal bool
}

type HeaderOption func(*headerOptions)

// WithLiteral keeps header values as they were sent, only unfolded.
func WithLiteral() HeaderOption {
	return func(o *headerOptions) {
		o.literal = true
	}
}

// Headers returns the top level headers. Encoded words are decoded unless
// WithLiteral is given, and address fields are rendered with their display
// names quoted where needed.
func (e *Mail) Headers(opts ...HeaderOption) (Headers, error) {
	var o headerOptions
	for _, opt := range opts {
		opt(&o)
	}
	block := e.msg.Root().Headers()
	if block.Len() == 0 {
		return Headers{}, ErrNoHeaders
	}
	cs := e.charset()
	if o.literal {
		return Headers{MIMEHeader: block.MIMEHeader(cs, false)}, nil
	}

	h := make(textproto.MIMEHeader, block.Len())
	for _, f := range block.All() {
		key := textproto.CanonicalMIMEHeaderKey(f.Name())
		var v string
		if isAddressHeader(key) {
			v = decodeAddresses(f, cs)
		} else {
			v = strings.TrimSpace(f.Decode(cs))
		}
		h[key] = append(h[key], v)
	}
	return Headers{MIMEHeader: h}, nil
}

func isAddressHeader(key string) bool {
	switch key {
	case "From", "Sender", "Reply-To", "To", "Cc", "Bcc",
		"Resent-From", "Resent-Sender", "Resent-To", "Resent-Cc", "Resent-Bcc":
		return true
	}
	return false
}

var addressParser = &mail.AddressParser{
	WordDecoder: &stdmime.WordDecoder{CharsetReader: charset.NewReader},
}

// decodeAddresses parses an address field and renders every mailbox as
// `name <addr>`. Fields that do not parse are decoded as plain text.
func decodeAddresses(f *header.Header, cs string) string {
	raw := header.Unfold(strings.TrimSpace(charset.Decode(nil, f.RawValue(), cs)))
	list, err := addressParser.ParseList(raw)
	if err != nil || len(list) == 0 {
		return strings.TrimSpace(f.Decode(cs))
	}
	out := make([]string, 0, len(list))
	for _, a := range list {
		name := strings.TrimSpace(header.Decode([]byte(a.Name), charset.UTF8))
		if name == "" {
			out = append(out, "<"+a.Address+">")
			continue
		}
		out = append(out, header.QuotePhrase(name)+" <"+a.Address+">")
	}
	return strings.Join(out, ", ")
}

// Body returns the content tree of the mail.
func (e *Mail) Body() (*Content, error) {
	return newContent(e.msg.Root(), e.charset())
}

func newContent(p *mime.Part, cs string) (*Content, error) {
	c := &Content{
		Headers: p.Headers().MIMEHeader(cs, false),
		part:    p,
	}
	if p.IsMultipart() || p.Encapsulated() != nil {
		for _, child := range p.Children() {
			cc, err := newContent(child, cs)
			if err != nil {
				return nil, err
			}
			c.Children = append(c.Children, cc)
		}
		return c, nil
	}
	b, err := mime.ReadAll(p.BodyStream())
	if err != nil {
		return nil, fmt.Errorf("could not read part %q, err: %w", p.ID(), err)
	}
	c.Body = b
	return c, nil
}

// Content is a node of the body tree. Leaves carry their raw, still
// transfer encoded Body; multiparts and message/rfc822 parts carry Children.
// Header values are UTF-8.
type Content struct {
	Headers  textproto.MIMEHeader
	Body     []byte
	Children []*Content

	part *mime.Part
}

// Part returns the parsed part behind c, or nil for content that was built
// by hand.
func (c *Content) Part() *mime.Part {
	return c.part
}

// ContentType returns the parsed Content-Type, text/plain if missing.
func (c *Content) ContentType() *header.ContentType {
	v := c.Headers.Get(header.ContentTypeInfo.Name)
	return header.ParseContentType(header.NewHeaderBytes(header.ContentTypeInfo.Name, []byte(v)), header.TextPlain, charset.UTF8)
}

// disposition returns the raw Content-Disposition, without the
// inline/attachment normalization of header.ContentDisposition.
func (c *Content) disposition() *header.Compound {
	v := strings.TrimSpace(c.Headers.Get(header.ContentDispositionInfo.Name))
	if v == "" {
		return nil
	}
	return header.ParseCompound(header.NewHeaderBytes(header.ContentDispositionInfo.Name, []byte(v)), charset.UTF8)
}

func (c *Content) dispositionIs(value string) bool {
	d := c.disposition()
	return d != nil && strings.EqualFold(strings.TrimSpace(d.Value()), value)
}

func (c *Content) IsAttachment() bool {
	return c.dispositionIs(header.DispositionAttachment)
}

func (c *Content) IsInline() bool {
	return c.dispositionIs(header.DispositionInline)
}

func (c *Content) IsForm() bool {
	return c.dispositionIs("form-data")
}

func (c *Content) AsAttachment() (*AttachmentPart, error) {
	if !c.IsAttachment() {
		return nil, ErrNotAttachment
	}
	return &AttachmentPart{c: c}, nil
}

func (c *Content) AsInline() (*InlinePart, error) {
	if !c.IsInline() {
		return nil, ErrNotInline
	}
	return &InlinePart{c: c}, nil
}

func (c *Content) AsForm() (*FormPart, error) {
	if !c.IsForm() {
		return nil, ErrNotForm
	}
	return &FormPart{c: c}, nil
}

// Decode removes the transfer encoding of the body and converts text in a
// known charset to UTF-8. Unknown charsets are left as is.
func (c *Content) Decode() ([]byte, error) {
	enc, err := transfer.Parse(c.Headers.Get(header.ContentTransferEncoding.Name))
	if err != nil {
		return nil, err
	}
	b, err := transfer.Decode(enc, c.Body)
	if err != nil {
		return nil, err
	}
	cs := c.ContentType().Charset()
	if cs == "" {
		return b, nil
	}
	if _, _, ok := charset.Lookup(cs); !ok {
		return b, nil
	}
	return []byte(charset.Decode(nil, b, cs)), nil
}

// filename returns the disposition filename, falling back to the
// Content-Type name. Percent escapes left in plain values are removed.
func (c *Content) filename() (string, error) {
	var name string
	if d := c.disposition(); d != nil {
		name = d.Parameter("filename")
	}
	if name == "" {
		name = c.ContentType().Parameter("name")
	}
	if name == "" {
		return "", ErrNoFilename
	}
	if strings.Contains(name, "%") {
		if n, err := url.PathUnescape(name); err == nil {
			name = n
		}
	}
	return name, nil
}

type AttachmentPart struct {
	c *Content
}

func (a *AttachmentPart) Content() *Content {
	return a.c
}

func (a *AttachmentPart) Filename() (string, error) {
	return a.c.filename()
}

type InlinePart struct {
	c *Content
}

func (i *InlinePart) Content() *Content {
	return i.c
}

func (i *InlinePart) Filename() (string, error) {
	return i.c.filename()
}

// ContentID returns the Content-ID without its angle brackets.
func (i *InlinePart) ContentID() string {
	id := strings.TrimSpace(i.c.Headers.Get("Content-Id"))
	return strings.TrimSuffix(strings.TrimPrefix(id, "<"), ">")
}

type FormPart struct {
	c *Content
}

func (f *FormPart) Content() *Content {
	return f.c
}

// Name returns the form field name of a form-data part.
func (f *FormPart) Name() (string, error) {
	if !f.c.IsForm() {
		return "", ErrNotForm
	}
	name := f.c.disposition().Parameter("name")
	if name == "" {
		return "", ErrNoName
	}
	return name, nil
}

// Headers is a decoded header map with accessors for the common fields.
type Headers struct {
	textproto.MIMEHeader
}

func (h Headers) Subject() string {
	return h.Get(header.Subject.Name)
}

func (h Headers) From() (*mail.Address, error) {
	return addressParser.Parse(h.Get(header.From.Name))
}

func (h Headers) To() ([]*mail.Address, error) {
	return h.addressList(header.To.Name)
}

func (h Headers) Cc() ([]*mail.Address, error) {
	return h.addressList(header.Cc.Name)
}

func (h Headers) addressList(key string) ([]*mail.Address, error) {
	v := h.Get(key)
	if v == "" {
		return nil, nil
	}
	return addressParser.ParseList(v)
}

// Walk visits c and its descendants depth first.
func (c *Content) Walk(fn func(c *Content) error) error {
	if err := fn(c); err != nil {
		return err
	}
	for _, child := range c.Children {
		if err := child.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

var errFound = errors.New("found")

// Find returns the first leaf with the given media type that is not an
// attachment, or nil.
func (c *Content) Find(mediaType string) *Content {
	var found *Content
	_ = c.Walk(func(cc *Content) error {
		if len(cc.Children) > 0 || cc.IsAttachment() {
			return nil
		}
		if cc.ContentType().BaseType() == mediaType {
			found = cc
			return errFound
		}
		return nil
	})
	return found
}

// Attachments returns every leaf with an attachment disposition.
func (c *Content) Attachments() []*AttachmentPart {
	var out []*AttachmentPart
	_ = c.Walk(func(cc *Content) error {
		if len(cc.Children) == 0 && cc.IsAttachment() {
			out = append(out, &AttachmentPart{c: cc})
		}
		return nil
	})
	return out
}

// IsSigned reports whether c is a multipart/signed or multipart/encrypted
// container, whose children must not be rewritten.
func (c *Content) IsSigned() bool {
	switch c.ContentType().BaseType() {
	case MimeMultipartSigned, MimeMultipartEncrypted:
		return true
	}
	return false
}

// Text returns the decoded text/plain body of the mail, or "" if it has
// none.
func (e *Mail) Text() (string, error) {
	return e.bodyOf(MimeTextPlain)
}

// HTML returns the decoded text/html body of the mail, or "" if it has none.
func (e *Mail) HTML() (string, error) {
	return e.bodyOf(MimeTextHtml)
}

func (e *Mail) bodyOf(mediaType string) (string, error) {
	c, err := e.Body()
	if err != nil {
		return "", err
	}
	if c = c.Find(mediaType); c == nil {
		return "", nil
	}
	b, err := c.Decode()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
