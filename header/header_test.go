package header

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeader(t *testing.T) {
	tests := []struct {
		line  string
		name  string
		value string
	}{
		{"Subject: hello\r\n", "Subject", "hello"},
		{"X-Foo:bar\r\n", "X-Foo", "bar"},
		{"Subject: a\r\n b\r\n", "Subject", "a b"},
		{"To:\r\n\tsomeone@example.com\n", "To", "someone@example.com"},
		{"Broken\r\n", "Broken", ""},
		{" Padded-Name : x\r\n", "Padded-Name", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := ParseHeader([]byte(tt.line))
			assert.Equal(t, tt.name, h.Name())
			assert.Equal(t, tt.value, h.Decode(""))
			assert.Equal(t, tt.line, string(h.Raw()))
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		cs   string
		want string
	}{
		{"plain", "hello world", "", "hello world"},
		{"q word", "=?utf-8?Q?Caf=C3=A9?=", "", "Café"},
		{"word then text", "=?ISO-8859-1?Q?Andr=E9?= Pirard <PIRARD@vm1.ulg.ac.be>", "", "André Pirard <PIRARD@vm1.ulg.ac.be>"},
		{"whitespace between words dropped", "=?utf-8?Q?a?=  \r\n =?utf-8?Q?b?=", "", "ab"},
		{"whitespace after word kept", "=?utf-8?Q?a?= b", "", "a b"},
		{"text before word", "Re: =?utf-8?B?Q2Fmw6k=?=", "", "Re: Café"},
		{"split character", "=?utf-8?Q?=E2=82?= =?utf-8?Q?=AC?=", "", "€"},
		{"different charsets", "=?iso-8859-1?Q?=E9?= =?utf-8?Q?=C3=A9?=", "", "éé"},
		{
			"padded b words",
			"=?utf-8?B?55So5oi34oCcRXBpZGVtaW9sb2d5IGluIG51cnNpbmcgYW5kIGg=?=  =?utf-8?B?ZWFsdGggY2FyZSBlQm9vayByZWFkL2F1ZGlvIGlkOm8=?=  =?utf-8?B?cTNqZWVr4oCd5Zyo572R56uZ4oCcU1BZ5Lit5paH5a6Y5pa5572R56uZ4oCd?=  =?utf-8?B?55qE5biQ5Y+36K+m5oOF?=",
			"",
			"用户“Epidemiology in nursing and health care eBook read/audio id:oq3jeek”在网站“SPY中文官方网站”的帐号详情",
		},
		{"dangling q escape kept literal", "=?utf-8?Q?a=?= =?utf-8?Q?3Db?=", "", "=?utf-8?Q?a=?=3Db"},
		{"unknown encoding literal", "=?utf-8?X?abc?=", "", "=?utf-8?X?abc?="},
		{"unknown charset literal", "=?x-no-such-charset?Q?abc?=", "", "=?x-no-such-charset?Q?abc?="},
		{"bad base64 literal", "=?utf-8?B?a b?=", "", "=?utf-8?B?a b?="},
		{"incomplete marker", "a =? b", "", "a =? b"},
		{"unterminated word after space", "x =?utf-8?Q?a", "", "x =?utf-8?Q?a"},
		{"unterminated word", "=?utf-8?Q?a?b", "", "=?utf-8?Q?a?b"},
		{"open word at end after text", "a =?utf-8?q?b?c", "", "a =?utf-8?q?b?c"},
		{"open word after decoded word", "=?utf-8?Q?a?= =?utf-8?q?b?c", "", "a =?utf-8?q?b?c"},
		{"stray marker after space", `Y_ > =?Y\.?"=`, "", `Y_ > =?Y\.?"=`},
		{"space in lenient charset", "=?utf-8?Q?hello world?=", "", "hello world"},
		{"space in strict charset", "=?iso-2022-jp?B?GyRC IVo?=", "", "=?iso-2022-jp?B?GyRC IVo?="},
		{"raw utf-8 with hint", "J\xc3\xb6hn", "utf-8", "Jöhn"},
		{"raw 8-bit without hint", "J\xf6hn", "", "Jöhn"},
		{"folded", "a\r\n b", "", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode([]byte(tt.in), tt.cs))
		})
	}
}

func TestDecodeWord(t *testing.T) {
	s, ok := DecodeWord("=?UTF-8*en?q?Caf=C3=A9?=")
	require.True(t, ok)
	assert.Equal(t, "Café", s)

	for _, w := range []string{"", "=?utf-8?Q?", "=??Q?abc?=", "=?utf-8?QQ?abc?=", "=?utf-8?Q?=Z?="} {
		_, ok := DecodeWord(w)
		assert.False(t, ok, w)
	}
}

func TestEscape(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		cs     string
		phrase bool
		want   string
	}{
		{"ascii", "hello", "", false, "hello"},
		{"only the dirty word", "Hello Wörld again", "utf-8", false, "Hello =?utf-8?Q?W=C3=B6rld?= again"},
		{"b when mostly escaped", "ö", "iso-8859-1", false, "=?iso-8859-1?B?9g==?="},
		{"unrepresentable falls back to utf-8", "€", "iso-8859-1", false, "=?utf-8?B?4oKs?="},
		{"phrase atoms", "John Doe", "", true, "John Doe"},
		{"phrase specials", "Doe, John", "", true, `"Doe, John"`},
		{"phrase escapes", `say "hi"`, "", true, `"say \"hi\""`},
		{"phrase leading space", " lead", "", true, `" lead"`},
		{"phrase trailing space", "trail ", "", true, `"trail "`},
		{"no quoting outside phrases", "a, b", "", false, "a, b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Escape(tt.in, tt.cs, tt.phrase))
		})
	}
}

func TestEncodeWordRoundTrip(t *testing.T) {
	for _, s := range []string{"Café", "日本語のテキスト", "a_b=c?d", "x y", "€uro ünd Ærø", ""} {
		t.Run(s, func(t *testing.T) {
			assert.Equal(t, s, Decode([]byte(EncodeWord(s, "utf-8")), ""))
			assert.Equal(t, s, Decode([]byte(Escape(s, "utf-8", false)), ""))
		})
	}
	assert.Equal(t, "Grüße", Decode([]byte(EncodeWord("Grüße", "iso-8859-1")), ""))
	for _, s := range []string{`Y_ > =?Y\.?"=`, "x =?utf-8?Q?a", "=?=?=?"} {
		assert.Equal(t, s, Decode([]byte(Escape(s, "utf-8", false)), ""), s)
	}
}

func TestQuotePhrase(t *testing.T) {
	assert.Equal(t, `"Lastname, ö"`, QuotePhrase("Lastname, ö"))
	assert.Equal(t, "John Doe", QuotePhrase("John Doe"))
	assert.Equal(t, `"J. Doe"`, QuotePhrase("J. Doe"))
	assert.Equal(t, "ö ä", QuotePhrase("ö ä"))
	assert.Equal(t, "", QuotePhrase(""))
	assert.Equal(t, `"a\\b"`, Quote(`a\b`))
}

func TestUnfold(t *testing.T) {
	assert.Equal(t, "a b", Unfold("a\r\n b"))
	assert.Equal(t, "a\tb", Unfold("a\n\tb"))
	assert.Equal(t, "plain", Unfold("plain"))
}

func TestHeaderRaw(t *testing.T) {
	h := NewHeaderValue("subject", "Café", "utf-8")
	assert.Equal(t, "Subject", h.Name())

	first := h.Raw()
	second := h.Raw()
	assert.Equal(t, "Subject: =?utf-8?B?Q2Fmw6k=?=\r\n", string(first))
	assert.Equal(t, first, second)
	assert.Equal(t, "Café", h.Decode(""))

	h.SetValue("plain", "")
	assert.Equal(t, "Subject: plain\r\n", string(h.Raw()))
	assert.Equal(t, "plain", h.String())

	b := NewHeaderBytes("X-Raw", []byte("=?not?decoded?="))
	assert.Equal(t, "X-Raw: =?not?decoded?=\r\n", string(b.Raw()))
	assert.Equal(t, "=?not?decoded?=", b.EncodedValue(""))

	c := h.Clone()
	h.SetValue("changed", "")
	assert.Equal(t, "plain", c.Decode(""))
}

func TestInfo(t *testing.T) {
	assert.Equal(t, "Message-ID", CanonicalName("message-id"))
	assert.Equal(t, "MIME-Version", CanonicalName("Mime-Version"))
	assert.Equal(t, "x-custom", CanonicalName("x-custom"))
	assert.True(t, LookupInfo("received").Prepend)
	assert.True(t, LookupInfo("Subject").Unique)
	assert.Equal(t, 30, LookupInfo("x-custom").Position)
}

func TestByteBuilder(t *testing.T) {
	b := NewByteBuilder(16, "")
	b.AppendString("é").AppendByte('x').AppendRune('ü')
	assert.Equal(t, []byte{0xE9, 'x', 0xFC}, b.Bytes())
	assert.Equal(t, "éxü", b.String())
	assert.True(t, b.StartsWith(0xE9))
	assert.True(t, b.EndsWith(0xFC))
	assert.Equal(t, byte('x'), b.ByteAt(1))

	assert.Equal(t, byte(0xFC), b.Pop())
	assert.Equal(t, 2, b.Len())
	b.Reset()
	assert.True(t, b.IsEmpty())
	assert.Equal(t, byte(0), b.Pop())

	u := NewByteBuilder(16, "utf-8")
	u.AppendString("é")
	assert.Equal(t, 2, u.Len())
	assert.Equal(t, "é", u.String())

	l := NewByteBuilder(4, "latin1")
	assert.ErrorIs(t, l.AppendBuilder(u), ErrCharsetMismatch)
	assert.NoError(t, l.AppendBuilder(NewByteBuilder(4, "iso-8859-1")))
	assert.NoError(t, l.AppendBuilder(NewByteBuilder(4, "")))
}

func TestBlock(t *testing.T) {
	var b Block
	b.Add(ParseHeader([]byte("Subject: one\r\n")))
	b.Add(ParseHeader([]byte("To: a@example.com\r\n")))
	b.Add(ParseHeader([]byte("Received: by relay\r\n")))
	b.Add(ParseHeader([]byte("to: b@example.com\r\n")))

	assert.Equal(t, 4, b.Len())
	assert.Equal(t, "Received", b.All()[0].Name())
	assert.Len(t, b.GetAll("TO"), 2)
	assert.Equal(t, "one", b.Value("subject", ""))

	b.Set(NewHeaderValue("To", "c@example.com", ""))
	require.Len(t, b.GetAll("to"), 1)
	assert.Equal(t, "c@example.com", b.Value("To", ""))

	b.Remove("received")
	assert.Nil(t, b.Get("Received"))
	assert.Equal(t, "Subject: one\r\nTo: c@example.com\r\n\r\n", string(b.Bytes()))

	m := b.MIMEHeader("", true)
	assert.Equal(t, "one", m.Get("Subject"))
}

func TestBlockMIMEHeaderDecoding(t *testing.T) {
	var b Block
	b.Append(ParseHeader([]byte("Subject: =?utf-8?Q?Caf=C3=A9?=\r\n")))
	assert.Equal(t, "Café", b.MIMEHeader("", true).Get("Subject"))
	assert.Equal(t, "=?utf-8?Q?Caf=C3=A9?=", b.MIMEHeader("", false).Get("Subject"))
	assert.True(t, strings.HasPrefix(string(b.Bytes()), "Subject:"))
}
