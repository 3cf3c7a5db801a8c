package header

import (
	"strings"

	"github.com/modfin/mimex/charset"
	"github.com/modfin/mimex/transfer"
)

// atext holds the characters that can form an RFC 5322 atom.
var atext = func() [128]bool {
	var t [128]bool
	for _, c := range "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!#$%&'*+-/=?^_`{|}~" {
		t[c] = true
	}
	return t
}()

// Escape prepares text for use as a header value. Non-ASCII text becomes an
// RFC 2047 encoded-word covering only the words that need it. In a phrase,
// such as an address display name, text that is not a run of atoms is
// quoted.
func Escape(value, cs string, phrase bool) string {
	rs := []rune(value)
	n := len(rs)
	needsQuote, wsp := false, true
	needs2047, needsEscape, cleanTo, cleanFrom := 0, 0, 0, n
	for i, c := range rs {
		switch {
		case c > 0x7F || c == 0 || c == '\r' || c == '\n':
			needs2047++
			cleanFrom = n
		case !phrase:
			// quoting only exists in phrases
		case c == '"' || c == '\\':
			needsQuote = true
			needsEscape++
			cleanFrom = n
		case (c != ' ' && !atext[c]) || (c == ' ' && wsp):
			needsQuote = true
			cleanFrom = n
		}
		wsp = c == ' '
		if wsp {
			if !needsQuote && needs2047 == 0 && i != n-1 {
				cleanTo = i + 1
			} else if cleanFrom == n && i > cleanTo+1 {
				cleanFrom = i
			}
		}
	}
	if phrase {
		needsQuote = needsQuote || wsp
	}
	if wsp {
		cleanFrom = n
	}

	switch {
	case needs2047 > 0:
		return string(rs[:cleanTo]) + EncodeWord(string(rs[cleanTo:cleanFrom]), cs) + string(rs[cleanFrom:])
	case needsQuote && needsEscape > 0:
		return Quote(value)
	case needsQuote:
		return `"` + value + `"`
	}
	return value
}

// EncodeWord encodes value as a single RFC 2047 encoded-word. B encoding is
// used when more than a third of the bytes would need escaping in Q. When
// cs cannot represent value, UTF-8 is used instead.
func EncodeWord(value, cs string) string {
	if cs == "" {
		cs = charset.UTF8
	}
	b, used := charset.Encode(nil, value, cs)
	escaped := 0
	for _, c := range b {
		if transfer.QForceEncode[c] {
			escaped++
		}
	}

	var sb strings.Builder
	sb.Grow(len(b)*2 + len(used) + 8)
	sb.WriteString("=?")
	sb.WriteString(strings.ToLower(used))
	if escaped > len(b)/3 {
		sb.WriteString("?B?")
		sb.WriteString(transfer.EncodeBWord(b))
	} else {
		sb.WriteString("?Q?")
		sb.WriteString(transfer.EncodeQWord(b))
	}
	sb.WriteString("?=")
	return sb.String()
}

// Quote wraps value in double quotes, escaping quotes and backslashes.
func Quote(value string) string {
	var sb strings.Builder
	sb.Grow(len(value) + 2)
	sb.WriteByte('"')
	for _, c := range value {
		if c == '"' || c == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteRune(c)
	}
	sb.WriteByte('"')
	return sb.String()
}

// QuotePhrase quotes a display phrase if it contains anything other than
// atoms separated by single spaces. Non-ASCII text is left as is, which
// makes the result suitable for display but not for transport.
func QuotePhrase(value string) string {
	if value == "" {
		return value
	}
	prevSpace := true
	for _, c := range value {
		switch {
		case c >= 0x80:
		case c == ' ' && !prevSpace:
		case c != ' ' && atext[c]:
		default:
			return Quote(value)
		}
		prevSpace = c == ' '
	}
	if prevSpace {
		return Quote(value)
	}
	return value
}

// Unfold removes the CR and LF characters of folded header text. The
// whitespace that starts each continuation line is kept.
func Unfold(s string) string {
	i := strings.IndexAny(s, "\r\n")
	if i < 0 {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	sb.WriteString(s[:i])
	for ; i < len(s); i++ {
		if c := s[i]; c != '\r' && c != '\n' {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
