package transfer

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Encoding
		wantErr bool
	}{
		{"", SevenBit, false},
		{"7bit", SevenBit, false},
		{"Base64", Base64, false},
		{" quoted-printable (comment)", QuotedPrintable, false},
		{`"8bit"`, EightBit, false},
		{"BINARY", Binary, false},
		{"x-uuencode", SevenBit, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownEncoding)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQPEncode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		text bool
		want string
	}{
		{"utf8 text", "héllo wörld\r\n", true, "h=C3=A9llo w=C3=B6rld\r\n"},
		{"trailing space", "a \r\nb", true, "a=20\r\nb"},
		{"trailing space at end", "a ", true, "a=20"},
		{"inner space", "a b", true, "a b"},
		{"bare lf normalized", "a\nb", true, "a\r\nb"},
		{"bare cr normalized", "a\rb", true, "a\r\nb"},
		{"binary line endings", "a\r\nb", false, "a=0D=0Ab"},
		{"equals sign", "a=b", true, "a=3Db"},
		{"soft break", strings.Repeat("x", 100), true, strings.Repeat("x", 75) + "=\r\n" + strings.Repeat("x", 25)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(Encode(QuotedPrintable, []byte(tt.in), tt.text)))
		})
	}
}

func TestQPDecode(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		keepWS bool
		want   string
	}{
		{"soft break crlf", "line=\r\ncontinued", false, "linecontinued"},
		{"soft break lf", "line=\ncontinued", false, "linecontinued"},
		{"escaped", "a=3Db", false, "a=b"},
		{"lowercase hex", "x=c3=a9", false, "x\xc3\xa9"},
		{"trailing whitespace dropped", "trailing \t \r\nx", false, "trailing\r\nx"},
		{"trailing whitespace kept", "trailing \t \r\nx", true, "trailing \t \r\nx"},
		{"padded soft break", "soft= \t\r\nbreak", false, "softbreak"},
		{"invalid escape is literal", "bad=Zz", false, "bad=Zz"},
		{"dangling equals", "end=", false, "end"},
		{"inner whitespace kept", "a  b", false, "a  b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(NewQPDecoder(strings.NewReader(tt.in), tt.keepWS))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestQWord(t *testing.T) {
	assert.Equal(t, "Hello_World=3F", EncodeQWord([]byte("Hello World?")))
	assert.Equal(t, "=C3=A9t=C3=A9", EncodeQWord([]byte("été")))
	assert.Equal(t, "a=5Fb=3D", EncodeQWord([]byte("a_b=")))

	got, err := DecodeQWord("Hello_World=3F")
	require.NoError(t, err)
	assert.Equal(t, "Hello World?", string(got))

	_, err = DecodeQWord("abc=4")
	assert.ErrorIs(t, err, ErrInvalidQ)
	_, err = DecodeQWord("abc=ZZ")
	assert.ErrorIs(t, err, ErrInvalidQ)
}

func TestBase64(t *testing.T) {
	assert.Equal(t, "aGVsbG8=", EncodeBase64([]byte("hello")))
	assert.Equal(t, "aGVsbG8=", EncodeBWord([]byte("hello")))

	got, err := DecodeBase64Strict([]byte("aGVs\r\nbG8="))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	_, err = DecodeBase64Strict([]byte("aGV sbG8="))
	assert.ErrorIs(t, err, ErrInvalidBase64)
	assert.Equal(t, "hello", string(DecodeBase64([]byte("aGV sbG8="))))

	got, err = DecodeBWord("aGVsbG8")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	_, err = Decode(Base64, []byte("This is not a valid base64 encoded text"))
	assert.Error(t, err)
}

func TestBase64Fold(t *testing.T) {
	out := string(Encode(Base64, bytes.Repeat([]byte{'a'}, 60), false))
	lines := strings.Split(out, "\r\n")
	require.Len(t, lines, 2)
	assert.Len(t, lines[0], MaxLineLength)
	assert.Len(t, lines[1], 4)
}

func TestRoundTrip(t *testing.T) {
	var in []byte
	for i := 0; i < 4; i++ {
		for c := 0; c < 256; c++ {
			in = append(in, byte(c))
		}
		in = append(in, "  trailing  \r\n"...)
	}

	for _, enc := range []Encoding{QuotedPrintable, Base64, Binary} {
		t.Run(enc.String(), func(t *testing.T) {
			var buf bytes.Buffer
			w := NewEncoder(enc, &buf, false)
			for _, chunk := range [][]byte{in[:7], in[7:300], in[300:]} {
				_, err := w.Write(chunk)
				require.NoError(t, err)
			}
			require.NoError(t, w.Close())

			out, err := io.ReadAll(NewDecoder(enc, &buf))
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestPick(t *testing.T) {
	assert.Equal(t, SevenBit, Pick([]byte("hello\r\nworld\r\n")))
	assert.Equal(t, QuotedPrintable, Pick([]byte("héllo world")))
	assert.Equal(t, QuotedPrintable, Pick(bytes.Repeat([]byte{'x'}, 1000)))
	assert.Equal(t, Base64, Pick([]byte("\x00abc")))
	assert.Equal(t, Base64, Pick([]byte{0xff, 0xfe, 0xfd}))
}
