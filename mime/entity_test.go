package mime

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/emersion/go-message"
	"github.com/modfin/mimex/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntity() (*Entity, []byte) {
	bin := []byte{0x00, 0x01, 0xFF, 0xFE, 'z', '\r', '\n', 0x80}
	text := NewLeaf("text/plain", []byte("Grüße aus Köln\r\nzweite Zeile\r\n")).SetCharset("utf-8")
	att := NewLeaf("application/octet-stream", bin).SetFilename("€.txt").Use2231(true)
	m := NewMultipart("mixed", text, att).
		SetHeader("Subject", "Café").
		SetHeader("MIME-Version", "1.0")
	return m, bin
}

func TestEntityRoundTrip(t *testing.T) {
	m, bin := sampleEntity()
	var buf bytes.Buffer
	n, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	msg, err := ParseBytes(buf.Bytes())
	require.NoError(t, err)

	root := msg.Root()
	assert.Equal(t, "Café", root.Header("Subject"))
	assert.True(t, root.Complete())
	bnd, _ := root.Boundary()
	want, _ := m.ContentType().Boundary()
	assert.Equal(t, want, bnd)

	children := root.Children()
	require.Len(t, children, 2)

	text, err := children[0].Text()
	require.NoError(t, err)
	assert.Equal(t, "Grüße aus Köln\r\nzweite Zeile\r\n", text)

	assert.Equal(t, "€.txt", children[1].Filename())
	assert.Equal(t, "attachment", children[1].Disposition().Value())
	enc, err := children[1].Encoding()
	require.NoError(t, err)
	assert.Equal(t, transfer.Base64, enc)
	decoded, err := io.ReadAll(children[1].DecodedBody())
	require.NoError(t, err)
	assert.Equal(t, bin, decoded)

	for _, line := range strings.Split(buf.String(), "\r\n") {
		assert.LessOrEqual(t, len(line), 78, line)
	}
}

func TestEntityInterop(t *testing.T) {
	m, bin := sampleEntity()
	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)

	e, err := message.Read(&buf)
	require.NoError(t, err)
	subject, err := e.Header.Text("Subject")
	require.NoError(t, err)
	assert.Equal(t, "Café", subject)

	mr := e.MultipartReader()
	require.NotNil(t, mr)

	p, err := mr.NextPart()
	require.NoError(t, err)
	b, err := io.ReadAll(p.Body)
	require.NoError(t, err)
	assert.Equal(t, "Grüße aus Köln\r\nzweite Zeile\r\n", string(b))

	p, err = mr.NextPart()
	require.NoError(t, err)
	disp, params, err := p.Header.ContentDisposition()
	require.NoError(t, err)
	assert.Equal(t, "attachment", disp)
	assert.Equal(t, "€.txt", params["filename"])
	b, err = io.ReadAll(p.Body)
	require.NoError(t, err)
	assert.Equal(t, bin, b)

	_, err = mr.NextPart()
	assert.ErrorIs(t, err, io.EOF)
}

func TestEntityMessagePart(t *testing.T) {
	inner := NewLeaf("text/plain", []byte("inside")).SetHeader("Subject", "forwarded")
	outer := NewMultipart("mixed", NewLeaf("text/plain", []byte("see attached")), NewMessagePart(inner)).
		SetPreamble([]byte("This is a multi-part message in MIME format.")).
		SetEpilogue([]byte("bye\r\n"))

	var buf bytes.Buffer
	_, err := outer.WriteTo(&buf)
	require.NoError(t, err)

	msg, err := ParseBytes(buf.Bytes())
	require.NoError(t, err)

	root := msg.Root()
	assert.Equal(t, "This is a multi-part message in MIME format.", string(root.Preamble()))
	assert.Equal(t, "bye\r\n", string(root.Epilogue()))

	fwd := msg.Part("2.1")
	require.NotNil(t, fwd)
	assert.Equal(t, "forwarded", fwd.Header("Subject"))
	assert.Equal(t, "inside", body(t, fwd))
	assert.Equal(t, "see attached", body(t, msg.Part("1")))
}

func TestEntityHeaders(t *testing.T) {
	e := NewLeaf("text/plain", []byte("x")).
		SetHeader("Content-Type", "text/html; charset=utf-8").
		SetHeader("Content-Transfer-Encoding", "quoted-printable").
		SetHeader("Content-Disposition", "inline").
		SetHeader("X-Test", "yes")

	var buf bytes.Buffer
	_, err := e.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, "X-Test: yes\r\n"+
		"Content-Type: text/html; charset=utf-8\r\n"+
		"Content-Disposition: inline\r\n"+
		"Content-Transfer-Encoding: quoted-printable\r\n"+
		"\r\n"+
		"x", buf.String())
}

func TestNewBoundary(t *testing.T) {
	a, b := NewBoundary(), NewBoundary()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "=_"))
	assert.Len(t, a, 34)
}
