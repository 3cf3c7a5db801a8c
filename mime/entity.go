package mime

import (
	"io"
	"strings"

	"github.com/modfin/mimex/header"
	"github.com/modfin/mimex/transfer"
)

// Entity is a MIME entity under construction: a leaf with a body, a
// multipart with children, or a message/rfc822 wrapping another entity.
type Entity struct {
	contentType *header.ContentType
	disposition *header.ContentDisposition
	headers     header.Block
	charset     string
	use2231     bool

	body        []byte
	encoding    transfer.Encoding
	encodingSet bool

	parts    []*Entity
	preamble []byte
	epilogue []byte
}

// NewLeaf creates a single part entity. The transfer encoding is picked
// from the body unless set explicitly.
func NewLeaf(contentType string, body []byte) *Entity {
	return &Entity{contentType: header.NewContentType(contentType), body: body}
}

// NewMultipart creates a multipart/<subtype> entity with a fresh boundary.
func NewMultipart(subtype string, parts ...*Entity) *Entity {
	ct := header.NewContentType("multipart/" + strings.ToLower(subtype))
	ct.SetParameter("boundary", NewBoundary())
	return &Entity{contentType: ct, parts: parts}
}

// NewMessagePart wraps inner as a message/rfc822 entity.
func NewMessagePart(inner *Entity) *Entity {
	return &Entity{contentType: header.NewContentType(header.MessageRFC822), parts: []*Entity{inner}}
}

func (e *Entity) ContentType() *header.ContentType {
	return e.contentType
}

// Headers holds every field other than the content headers, which are
// written from the entity's own state.
func (e *Entity) Headers() *header.Block {
	return &e.headers
}

// Add appends children to a multipart.
func (e *Entity) Add(parts ...*Entity) *Entity {
	e.parts = append(e.parts, parts...)
	return e
}

func (e *Entity) Parts() []*Entity {
	return e.parts
}

// SetHeader sets a field, encoding non-ASCII text as RFC 2047 words in the
// entity's charset. Content headers replace the entity's own values.
func (e *Entity) SetHeader(name, value string) *Entity {
	switch {
	case strings.EqualFold(name, header.ContentTypeInfo.Name):
		ct := header.NewContentType(value)
		if e.contentType.IsMultipart() && ct.IsMultipart() {
			if _, ok := ct.Boundary(); !ok {
				bnd, _ := e.contentType.Boundary()
				ct.SetParameter("boundary", bnd)
			}
		}
		e.contentType = ct
	case strings.EqualFold(name, header.ContentDispositionInfo.Name):
		e.disposition = header.NewContentDisposition(value)
	case strings.EqualFold(name, header.ContentTransferEncoding.Name):
		if enc, err := transfer.Parse(value); err == nil {
			e.SetEncoding(enc)
		}
	default:
		e.headers.Set(header.NewHeaderValue(name, value, e.charset))
	}
	return e
}

// SetCharset sets the charset of a text body and of encoded header words.
func (e *Entity) SetCharset(cs string) *Entity {
	e.charset = cs
	if e.contentType.PrimaryType() == "text" {
		e.contentType.SetParameter("charset", cs)
	}
	return e
}

// Use2231 selects RFC 2231 extended parameters for non-ASCII parameter
// values.
func (e *Entity) Use2231(on bool) *Entity {
	e.use2231 = on
	return e
}

// SetDisposition sets Content-Disposition to "inline" or "attachment",
// keeping a filename already set.
func (e *Entity) SetDisposition(disposition string) *Entity {
	if e.disposition == nil {
		e.disposition = header.NewContentDisposition(disposition)
	} else {
		e.disposition.SetValue(disposition)
	}
	return e
}

// SetFilename names the body, as the disposition filename and the
// Content-Type name parameter. An entity without disposition becomes an
// attachment.
func (e *Entity) SetFilename(name string) *Entity {
	if e.disposition == nil {
		e.disposition = header.NewContentDisposition(header.DispositionAttachment)
	}
	e.disposition.SetParameter("filename", name)
	e.contentType.SetParameter("name", name)
	return e
}

func (e *Entity) SetEncoding(enc transfer.Encoding) *Entity {
	e.encoding, e.encodingSet = enc, true
	return e
}

// SetPreamble and SetEpilogue set the text around the parts of a multipart.
func (e *Entity) SetPreamble(b []byte) *Entity {
	e.preamble = b
	return e
}

func (e *Entity) SetEpilogue(b []byte) *Entity {
	e.epilogue = b
	return e
}

// Encoding returns the transfer encoding the body is written with.
func (e *Entity) Encoding() transfer.Encoding {
	switch {
	case e.encodingSet:
		return e.encoding
	case e.contentType.IsMultipart() || e.contentType.IsMessage():
		return transfer.SevenBit
	}
	return transfer.Pick(e.body)
}

// WriteTo writes the entity with CRLF line endings.
func (e *Entity) WriteTo(w io.Writer) (int64, error) {
	cw := &countWriter{w: w}
	e.write(cw)
	return cw.n, cw.err
}

func (e *Entity) write(w *countWriter) {
	for _, h := range e.headers.All() {
		w.write(h.Raw())
	}
	e.contentType.Use2231 = e.use2231
	w.write(e.contentType.Header().Raw())
	if e.disposition != nil {
		e.disposition.Use2231 = e.use2231
		w.write(e.disposition.Header().Raw())
	}
	enc := e.Encoding()
	if enc != transfer.SevenBit || e.encodingSet {
		w.write(header.NewHeaderValue(header.ContentTransferEncoding.Name, enc.String(), "").Raw())
	}
	w.writeString("\r\n")

	switch {
	case e.contentType.IsMultipart():
		e.writeParts(w)
	case e.contentType.IsRFC822() && len(e.parts) > 0:
		e.parts[0].write(w)
	default:
		bw := transfer.NewEncoder(enc, w, e.contentType.PrimaryType() == "text")
		if _, err := bw.Write(e.body); err != nil {
			return
		}
		if err := bw.Close(); err != nil && w.err == nil {
			w.err = err
		}
	}
}

func (e *Entity) writeParts(w *countWriter) {
	bnd, _ := e.contentType.Boundary()
	if len(e.preamble) > 0 {
		w.write(e.preamble)
		w.writeString("\r\n")
	}
	for i, p := range e.parts {
		if i > 0 {
			w.writeString("\r\n")
		}
		w.writeString("--" + bnd + "\r\n")
		p.write(w)
	}
	w.writeString("\r\n--" + bnd + "--\r\n")
	w.write(e.epilogue)
}

type countWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}

func (c *countWriter) write(p []byte) {
	_, _ = c.Write(p)
}

func (c *countWriter) writeString(s string) {
	_, _ = c.Write([]byte(s))
}
