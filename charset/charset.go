package charset

import (
	"io"
	"strings"
	"unicode/utf8"

	htmlcharset "golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Fallback is used whenever a charset is missing or cannot be resolved.
// Every byte maps to exactly one rune, so nothing is ever lost.
const Fallback = "iso-8859-1"

// UTF8 is the charset used when a requested charset cannot represent a value.
const UTF8 = "utf-8"

// Registry maps textual charset names to encodings.
type Registry interface {
	// Lookup resolves name to an encoding and its canonical (lower-case) name.
	Lookup(name string) (encoding.Encoding, string, bool)
	// Default is the canonical name of the charset used for unlabeled bytes.
	Default() string
}

// Table is the default Registry. It knows the charsets commonly seen in mail
// and falls back on the IANA and WHATWG indexes for everything else.
type Table struct {
	// DefaultCharset overrides Fallback when non-empty.
	DefaultCharset string
}

// Default is the registry used by the package level helpers.
var Default Registry = Table{}

func (t Table) Default() string {
	if t.DefaultCharset != "" {
		if _, name, ok := t.Lookup(t.DefaultCharset); ok {
			return name
		}
	}
	return Fallback
}

func (t Table) Lookup(name string) (encoding.Encoding, string, bool) {
	name = normalize(name)
	if name == "" {
		return nil, "", false
	}
	if m, ok := charsetEncodings[name]; ok {
		return m, name, true
	}
	if alias, ok := charsetAliases[name]; ok {
		if m, ok := charsetEncodings[alias]; ok {
			return m, alias, true
		}
	}
	if m, err := ianaindex.MIME.Encoding(name); err == nil && m != nil {
		return m, canonical(ianaindex.MIME, m, name), true
	}
	if m, err := ianaindex.IANA.Encoding(name); err == nil && m != nil {
		return m, canonical(ianaindex.IANA, m, name), true
	}
	if m, canon := htmlcharset.Lookup(name); m != nil {
		return m, strings.ToLower(canon), true
	}
	return nil, "", false
}

func canonical(idx *ianaindex.Index, m encoding.Encoding, name string) string {
	if n, err := idx.Name(m); err == nil && n != "" {
		return strings.ToLower(n)
	}
	return name
}

// normalize lower-cases and strips quoting, whitespace and an RFC 2231
// "*language" suffix from a charset label.
func normalize(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Trim(name, `"'`)
	if i := strings.IndexByte(name, '*'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(strings.TrimSpace(name))
}

// Lookup resolves name with the Default registry.
func Lookup(name string) (encoding.Encoding, string, bool) {
	return Default.Lookup(name)
}

// Resolve returns the canonical name for a charset, or the registry default
// if the name is unknown.
func Resolve(r Registry, name string) string {
	if r == nil {
		r = Default
	}
	if _, canon, ok := r.Lookup(name); ok {
		return canon
	}
	return r.Default()
}

// Decode converts b from the named charset to a UTF-8 string. Unknown
// charsets are decoded with the registry default.
func Decode(r Registry, b []byte, name string) string {
	if r == nil {
		r = Default
	}
	enc, canon, ok := r.Lookup(name)
	if !ok {
		enc, canon, _ = r.Lookup(r.Default())
	}
	if enc == nil {
		return Latin1(b)
	}
	if canon == UTF8 || (isASCII(b) && asciiCompatible(canon)) {
		if utf8.Valid(b) {
			return string(b)
		}
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), b)
	if err != nil {
		return Latin1(b)
	}
	return string(out)
}

// Encode converts s to the named charset. When the charset is unknown or
// cannot represent s, the value is encoded as UTF-8 instead. The name of the
// charset actually used is returned alongside the bytes.
func Encode(r Registry, s string, name string) ([]byte, string) {
	if r == nil {
		r = Default
	}
	enc, canon, ok := r.Lookup(name)
	if !ok || canon == UTF8 || enc == nil {
		return []byte(s), UTF8
	}
	if isASCII([]byte(s)) && asciiCompatible(canon) {
		return []byte(s), canon
	}
	out, _, err := transform.Bytes(enc.NewEncoder(), []byte(s))
	if err != nil {
		return []byte(s), UTF8
	}
	return out, canon
}

// NewReader returns a reader decoding input from the named charset. It is
// shaped to fit mime.WordDecoder.CharsetReader.
func NewReader(charset string, input io.Reader) (io.Reader, error) {
	if m, _, ok := Default.Lookup(charset); ok && m != nil {
		return transform.NewReader(input, m.NewDecoder()), nil
	}
	return input, nil
}

// Latin1 maps every byte to the rune of the same value.
func Latin1(b []byte) string {
	if isASCII(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b) + len(b)/2)
	for _, c := range b {
		sb.WriteRune(rune(c))
	}
	return sb.String()
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}

func asciiCompatible(canon string) bool {
	switch {
	case strings.HasPrefix(canon, "utf-16"), strings.HasPrefix(canon, "utf-32"),
		strings.HasPrefix(canon, "iso-2022"), canon == "utf-7":
		return false
	}
	return true
}

var charsetEncodings = map[string]encoding.Encoding{
	// ISO character sets
	"iso-8859-1":  charmap.ISO8859_1,
	"iso-8859-2":  charmap.ISO8859_2,
	"iso-8859-3":  charmap.ISO8859_3,
	"iso-8859-4":  charmap.ISO8859_4,
	"iso-8859-5":  charmap.ISO8859_5,
	"iso-8859-6":  charmap.ISO8859_6,
	"iso-8859-7":  charmap.ISO8859_7,
	"iso-8859-8":  charmap.ISO8859_8,
	"iso-8859-9":  charmap.ISO8859_9,
	"iso-8859-10": charmap.ISO8859_10,
	"iso-8859-13": charmap.ISO8859_13,
	"iso-8859-14": charmap.ISO8859_14,
	"iso-8859-15": charmap.ISO8859_15,
	"iso-8859-16": charmap.ISO8859_16,

	// Windows character sets
	"windows-1250": charmap.Windows1250,
	"windows-1251": charmap.Windows1251,
	"windows-1252": charmap.Windows1252,
	"windows-1253": charmap.Windows1253,
	"windows-1254": charmap.Windows1254,
	"windows-1255": charmap.Windows1255,
	"windows-1256": charmap.Windows1256,
	"windows-1257": charmap.Windows1257,
	"windows-1258": charmap.Windows1258,
	"windows-874":  charmap.Windows874,

	// DOS character sets
	"ibm437":    charmap.CodePage437,
	"ibm850":    charmap.CodePage850,
	"ibm852":    charmap.CodePage852,
	"ibm855":    charmap.CodePage855,
	"ibm858":    charmap.CodePage858,
	"ibm866":    charmap.CodePage866,
	"koi8-r":    charmap.KOI8R,
	"koi8-u":    charmap.KOI8U,
	"macintosh": charmap.Macintosh,

	// Japanese character sets
	"shift_jis":   japanese.ShiftJIS,
	"euc-jp":      japanese.EUCJP,
	"iso-2022-jp": japanese.ISO2022JP,

	// Korean character sets
	"euc-kr": korean.EUCKR,

	// Chinese character sets
	"gb2312":  simplifiedchinese.GB18030, // GB18030 is a superset of GB2312
	"gbk":     simplifiedchinese.GBK,
	"gb18030": simplifiedchinese.GB18030,
	"big5":    traditionalchinese.Big5,

	// Unicode encodings
	"utf-8":    unicode.UTF8,
	"utf-16be": unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
	"utf-16le": unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
	"utf-16":   unicode.UTF16(unicode.BigEndian, unicode.UseBOM),
}

// Alias mappings for non-standard charset names
var charsetAliases = map[string]string{
	"ascii":          "iso-8859-1", // ASCII is a subset of ISO-8859-1
	"us-ascii":       "iso-8859-1",
	"latin1":         "iso-8859-1",
	"latin2":         "iso-8859-2",
	"latin3":         "iso-8859-3",
	"latin4":         "iso-8859-4",
	"latin5":         "iso-8859-9",
	"latin6":         "iso-8859-10",
	"latin7":         "iso-8859-13",
	"latin8":         "iso-8859-14",
	"latin9":         "iso-8859-15",
	"latin10":        "iso-8859-16",
	"iso8859-1":      "iso-8859-1",
	"iso_8859-1":     "iso-8859-1",
	"cp1250":         "windows-1250",
	"cp1251":         "windows-1251",
	"cp1252":         "windows-1252",
	"cp1253":         "windows-1253",
	"cp1254":         "windows-1254",
	"cp1255":         "windows-1255",
	"cp1256":         "windows-1256",
	"cp1257":         "windows-1257",
	"cp1258":         "windows-1258",
	"cp874":          "windows-874",
	"ms874":          "windows-874",
	"tis-620":        "windows-874",
	"ms-ansi":        "windows-1252",
	"shift-jis":      "shift_jis",
	"sjis":           "shift_jis",
	"ms_kanji":       "shift_jis",
	"csshiftjis":     "shift_jis",
	"x-sjis":         "shift_jis",
	"ms932":          "shift_jis",
	"eucjp":          "euc-jp",
	"iso2022jp":      "iso-2022-jp",
	"euckr":          "euc-kr",
	"5601":           "euc-kr",
	"ks_c_5601":      "euc-kr",
	"ks_c_5601-1987": "euc-kr",
	"ansi936":        "gb2312",
	"cp936":          "gbk",
	"ms936":          "gbk",
	"big-5":          "big5",
	"ansi950":        "big5",
	"cp950":          "big5",
	"koi8r":          "koi8-r",
	"koi8u":          "koi8-u",
	"utf8":           "utf-8",
}
