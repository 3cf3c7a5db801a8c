package middleware

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	"testing"

	"github.com/modfin/mimex/envelope"
	"github.com/stretchr/testify/assert"
)

func testEnvelope() *envelope.Envelope {
	e := envelope.NewEnvelope(&net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 12345}, 2)
	e.MailFrom = &mail.Address{Address: "sender@example.com"}
	e.RcptTo = []*mail.Address{{Address: "recipient@example.com"}}
	e.UTF8 = true
	e.Data.WriteString("Message-Id: <12345>\r\nTo: recipient@example.com\r\nFrom: sender@example.com\r\n\r\nHello World")
	return e
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	testLogger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	middleware := Logger(testLogger)

	mockNext := func(e *envelope.Envelope) error {
		return nil
	}

	handler := middleware(mockNext)
	err := handler(testEnvelope())
	assert.NoError(t, err)

	logOutput := buf.String()

	fmt.Println(logOutput)

	assert.Contains(t, logOutput, "Mail request")
	assert.Contains(t, logOutput, "client-id=2")
	assert.Contains(t, logOutput, "message-id=<12345>")
	assert.Contains(t, logOutput, "parts=1")
	assert.Contains(t, logOutput, "remote-ip=127.0.0.1:12345")
	assert.Contains(t, logOutput, "MAIL=sender@example.com")
	assert.Contains(t, logOutput, "RCPT=[recipient@example.com]")
	assert.Contains(t, logOutput, "UTF8=true")
	assert.Contains(t, logOutput, "Mail response")
	assert.Contains(t, logOutput, "duration=")
	assert.NotContains(t, logOutput, "level=ERROR")
}

func TestLoggerError(t *testing.T) {
	var buf bytes.Buffer
	testLogger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	middleware := Logger(testLogger, WithPreField(func(e *envelope.Envelope) (string, any) {
		return "custom", "yes"
	}))

	mockNext := func(e *envelope.Envelope) error {
		return errors.New("a error")
	}

	err := middleware(mockNext)(testEnvelope())
	assert.EqualError(t, err, "a error")

	logOutput := buf.String()

	assert.Contains(t, logOutput, "custom=yes")
	assert.Contains(t, logOutput, "level=ERROR")
	assert.Contains(t, logOutput, `err="a error"`)
}

func TestLoggerSkip(t *testing.T) {
	var buf bytes.Buffer
	testLogger := slog.New(slog.NewTextHandler(&buf, nil))

	middleware := Logger(testLogger, WithSkipper(func(e *envelope.Envelope) bool { return true }))
	called := false
	err := middleware(func(e *envelope.Envelope) error {
		called = true
		return nil
	})(testEnvelope())

	assert.NoError(t, err)
	assert.True(t, called)
	assert.Empty(t, buf.String())
}
