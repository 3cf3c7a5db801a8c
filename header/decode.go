package header

import (
	"strings"

	"github.com/modfin/mimex/charset"
	"github.com/modfin/mimex/transfer"
)

type tokenKind int

const (
	tokText tokenKind = iota
	tokLWS
	tokWord
)

// word parsing position inside "=?charset?encoding?text?="
type wordState int

const (
	wordNone wordState = iota
	wordCharset
	wordEncoding
	wordText
)

type token struct {
	kind     tokenKind
	text     []byte
	charset  string
	encoding string
}

type tokens []token

func (t *tokens) add(tok token) {
	if tok.kind != tokWord && len(tok.text) == 0 {
		return
	}
	n := len(*t)
	if n > 1 && tok.kind == tokWord && (*t)[n-1].kind == tokLWS && (*t)[n-2].kind == tokWord {
		// whitespace between two encoded-words is not part of the text
		(*t)[n-1] = tok
		return
	}
	*t = append(*t, tok)
}

// Decode unfolds a raw header value and decodes the RFC 2047 encoded-words
// in it. Encoded-words that fail to decode are kept as literal text. Other
// bytes are read as cs.
func Decode(content []byte, cs string) string {
	simple := true
	for i, c := range content {
		if c == 0 || c >= 0x7F || (c == '=' && i < len(content)-1 && content[i+1] == '?') {
			simple = false
			break
		}
	}
	if simple {
		return Unfold(charset.Decode(nil, content, cs))
	}

	toks, ok := tokenize(content)
	if !ok {
		return Unfold(charset.Decode(nil, content, cs))
	}

	var out, pending strings.Builder
	var prev *token
	for i := range toks {
		cur := &toks[i]
		prevWord := prev != nil && prev.kind == tokWord
		switch cur.kind {
		case tokText, tokLWS:
			if prevWord {
				flushWord(&pending, &out)
			}
			out.WriteString(charset.Decode(nil, cur.text, cs))
		case tokWord:
			switch {
			case prevWord && strings.EqualFold(prev.charset, cur.charset) && strings.EqualFold(prev.encoding, cur.encoding):
				p := pending.String()
				padded := len(p) > 2 && p[len(p)-1] == '='
				switch {
				case padded && strings.EqualFold(cur.encoding, "B"):
					flushWord(&pending, &out)
					startWord(&pending, cur)
				case padded && strings.EqualFold(cur.encoding, "Q"):
					// a Q word may not continue an escape into the next word
					out.WriteString(p + "?=")
					startWord(&pending, cur)
				default:
					pending.Write(cur.text)
				}
			case prevWord:
				flushWord(&pending, &out)
				startWord(&pending, cur)
			default:
				startWord(&pending, cur)
			}
		}
		prev = cur
	}
	if pending.Len() > 0 {
		flushWord(&pending, &out)
	}
	return out.String()
}

func startWord(pending *strings.Builder, t *token) {
	pending.Reset()
	pending.WriteString("=?")
	pending.WriteString(t.charset)
	pending.WriteByte('?')
	pending.WriteString(t.encoding)
	pending.WriteByte('?')
	pending.Write(t.text)
}

func flushWord(pending, out *strings.Builder) {
	if pending.Len() == 0 {
		return
	}
	w := pending.String() + "?="
	if s, ok := DecodeWord(w); ok {
		out.WriteString(s)
	} else {
		out.WriteString(w)
	}
	pending.Reset()
}

// tokenize splits a value into text, whitespace and encoded-word tokens.
// It fails when the value cannot be read as a sequence of those.
func tokenize(content []byte) (tokens, bool) {
	var toks tokens
	kind, ws := tokText, wordNone
	cur := token{kind: tokText}
	start := 0
	end := len(content)
	for pos := 0; pos < end; pos++ {
		c := content[pos]
		if c == '\r' || c == '\n' {
			continue
		}
		switch kind {
		case tokText:
			switch {
			case c == ' ' || c == '\t':
				toks.add(cur)
				kind = tokLWS
				cur = token{kind: tokLWS, text: []byte{c}}
			case c == '=' && pos < end-1 && content[pos+1] == '?':
				if !wordAhead(content, pos) {
					return nil, false
				}
				toks.add(cur)
				kind, start = tokWord, pos
				cur = token{kind: tokWord}
			default:
				cur.text = append(cur.text, c)
			}
		case tokWord:
			switch {
			case (c == ' ' || c == '\t') && !allowInvalidEncoding(cur.charset):
				return nil, false
			case ws == wordText && c == '?' && pos < end-1 && content[pos+1] == '=':
				pos++
				toks.add(cur)
				kind, ws = tokText, wordNone
				cur = token{kind: tokText}
			case c == '?':
				switch ws {
				case wordNone:
					ws = wordCharset
				case wordCharset:
					ws = wordEncoding
				case wordEncoding:
					ws = wordText
				default:
					ws = wordNone
				}
			default:
				switch ws {
				case wordCharset:
					cur.charset += string(c)
				case wordEncoding:
					cur.encoding += string(c)
				default:
					cur.text = append(cur.text, c)
				}
			}
		case tokLWS:
			switch {
			case c == ' ' || c == '\t':
				cur.text = append(cur.text, c)
			case c == '=' && pos < end-1 && content[pos+1] == '?':
				if !wordAhead(content, pos) {
					return nil, false
				}
				toks.add(cur)
				kind, start = tokWord, pos
				cur = token{kind: tokWord}
			default:
				toks.add(cur)
				kind = tokText
				cur = token{kind: tokText, text: []byte{c}}
			}
		}
	}
	if kind == tokWord {
		// an encoded-word still open at the end is plain text
		cur = token{kind: tokText}
		for _, c := range content[start:] {
			if c != '\r' && c != '\n' {
				cur.text = append(cur.text, c)
			}
		}
	}
	toks.add(cur)
	return toks, true
}

// wordAhead reports whether the "=?" at pos is followed by the three '?'
// an encoded-word needs.
func wordAhead(content []byte, pos int) bool {
	marks := 0
	for sub := pos + 2; sub < len(content) && marks < 3; sub++ {
		if content[sub] == '?' {
			marks++
		}
	}
	return marks == 3
}

// allowInvalidEncoding lists the charsets whose encoded-words are accepted
// even though they contain raw whitespace.
func allowInvalidEncoding(cs string) bool {
	return strings.EqualFold(cs, "iso-8859-1") || strings.EqualFold(cs, "us-ascii") || strings.EqualFold(cs, "utf-8")
}

// DecodeWord decodes a single "=?charset?encoding?text?=" encoded-word. The
// charset may carry an RFC 2231 "*language" suffix.
func DecodeWord(w string) (string, bool) {
	if len(w) < 8 || !strings.HasPrefix(w, "=?") || !strings.HasSuffix(w, "?=") {
		return "", false
	}
	inner := w[2 : len(w)-2]
	i := strings.IndexByte(inner, '?')
	if i <= 0 {
		return "", false
	}
	cs, rest := inner[:i], inner[i+1:]
	j := strings.IndexByte(rest, '?')
	if j != 1 {
		return "", false
	}
	enc, text := rest[:1], rest[2:]

	_, canon, ok := charset.Lookup(cs)
	if !ok {
		return "", false
	}
	var b []byte
	var err error
	switch enc {
	case "B", "b":
		b, err = transfer.DecodeBWord(text)
	case "Q", "q":
		b, err = transfer.DecodeQWord(text)
	default:
		return "", false
	}
	if err != nil {
		return "", false
	}
	return charset.Decode(nil, b, canon), true
}
