package header

import "strings"

const (
	TextPlain       = "text/plain"
	OctetStream     = "application/octet-stream"
	MessageRFC822   = "message/rfc822"
	MultipartMixed  = "multipart/mixed"
	MultipartDigest = "multipart/digest"

	DispositionAttachment = "attachment"
	DispositionInline     = "inline"
)

// Parameterized is implemented by header values that carry parameters.
type Parameterized interface {
	Value() string
	Parameter(name string) string
	SetParameter(name, value string)
	Params() []Param
	Header() *Header
}

var (
	_ Parameterized = (*Compound)(nil)
	_ Parameterized = (*ContentType)(nil)
	_ Parameterized = (*ContentDisposition)(nil)
)

// ContentType is a normalized Content-Type value.
type ContentType struct {
	*Compound
	primary string
	sub     string
}

// ParseContentType reads h, with raw 8-bit parameter bytes read as cs. When
// h is nil or empty the type def is used.
func ParseContentType(h *Header, def, cs string) *ContentType {
	if h == nil || len(h.RawValue()) == 0 {
		return NewContentType(def)
	}
	return newContentType(ParseCompound(h, cs), def)
}

// NewContentType parses value, which may include parameters.
func NewContentType(value string) *ContentType {
	c := ParseCompound(NewHeaderBytes(ContentTypeInfo.Name, []byte(value)), "")
	return newContentType(c, OctetStream)
}

func newContentType(c *Compound, def string) *ContentType {
	ct := &ContentType{Compound: c}
	ct.normalize(def)
	return ct
}

// normalize lower-cases the type and falls back to a safe default when it
// is malformed.
func (ct *ContentType) normalize(def string) {
	v := strings.ToLower(strings.TrimSpace(ct.Compound.Value()))
	primary, sub := splitType(v)
	if primary == "" && sub == "" && v == "" {
		primary, sub = splitType(strings.ToLower(def))
	}
	if primary == "" || sub == "" {
		if primary == "text" {
			primary, sub = "text", "plain"
		} else {
			primary, sub = "application", "octet-stream"
		}
	}
	ct.primary, ct.sub = primary, sub
	if base := primary + "/" + sub; base != ct.Compound.Value() {
		ct.Compound.SetValue(base)
	}
}

// splitType truncates each half of "type/subtype" at the first character
// that cannot appear in a media type name. Anything after a second '/' is
// dropped.
func splitType(v string) (string, string) {
	i := 0
	for i < len(v) && isTypeChar(v[i]) {
		i++
	}
	primary := v[:i]
	if i >= len(v) || v[i] != '/' {
		return primary, ""
	}
	rest := v[i+1:]
	j := 0
	for j < len(rest) && isTypeChar(rest[j]) {
		j++
	}
	return primary, rest[:j]
}

func isTypeChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&.+-^_", c) >= 0
}

// SetValue replaces the type, normalizing it as parsing does.
func (ct *ContentType) SetValue(v string) {
	ct.Compound.SetValue(v)
	ct.normalize(OctetStream)
}

func (ct *ContentType) PrimaryType() string {
	return ct.primary
}

func (ct *ContentType) SubType() string {
	return ct.sub
}

// BaseType returns "type/subtype".
func (ct *ContentType) BaseType() string {
	return ct.primary + "/" + ct.sub
}

func (ct *ContentType) Charset() string {
	return strings.TrimSpace(ct.Parameter("charset"))
}

// Boundary returns the boundary parameter and whether it is present.
func (ct *ContentType) Boundary() (string, bool) {
	return ct.LookupParameter("boundary")
}

func (ct *ContentType) IsMultipart() bool {
	return ct.primary == "multipart"
}

func (ct *ContentType) IsMessage() bool {
	return ct.primary == "message"
}

// IsRFC822 reports whether the part is an encapsulated message whose body
// is parsed as one.
func (ct *ContentType) IsRFC822() bool {
	return ct.BaseType() == MessageRFC822
}

// ContentDisposition is a Content-Disposition value, either "attachment" or
// "inline".
type ContentDisposition struct {
	*Compound
}

// ParseContentDisposition reads h, with raw 8-bit parameter bytes read as
// cs. A nil header, or any value other than "inline", is treated as
// "attachment".
func ParseContentDisposition(h *Header, cs string) *ContentDisposition {
	if h == nil {
		return NewContentDisposition(DispositionAttachment)
	}
	cd := &ContentDisposition{Compound: ParseCompound(h, cs)}
	cd.normalize()
	return cd
}

func NewContentDisposition(value string) *ContentDisposition {
	cd := &ContentDisposition{Compound: ParseCompound(NewHeaderBytes(ContentDispositionInfo.Name, []byte(value)), "")}
	cd.normalize()
	return cd
}

func (cd *ContentDisposition) normalize() {
	v := DispositionAttachment
	if strings.EqualFold(strings.TrimSpace(cd.Compound.Value()), DispositionInline) {
		v = DispositionInline
	}
	if v != cd.Compound.Value() {
		cd.Compound.SetValue(v)
	}
}

func (cd *ContentDisposition) SetValue(v string) {
	cd.Compound.SetValue(v)
	cd.normalize()
}

func (cd *ContentDisposition) IsInline() bool {
	return cd.Value() == DispositionInline
}

func (cd *ContentDisposition) Filename() string {
	return cd.Parameter("filename")
}
