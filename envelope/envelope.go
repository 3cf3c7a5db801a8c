package envelope

import (
	"context"
	"fmt"
	"net"
	"net/mail"
	"net/textproto"

	"github.com/modfin/mimex/header"
	"github.com/modfin/mimex/mime"
	"github.com/modfin/mimex/utils"
)

// Envelope of Email represents a single SMTP message.
type Envelope struct {
	ctx context.Context

	// Remote IP address
	RemoteAddr net.Addr

	// Message sent in EHLO command
	Helo string

	// TLS is true if the email was received using a TLS connection
	TLS bool

	// ESMTP: true if EHLO was used
	ESMTP bool

	// UTF8: true if the sender asked for SMTPUTF8
	UTF8 bool

	// Sender
	MailFrom *mail.Address

	// Recipients
	RcptTo []*mail.Address

	// Data stores the header and message body
	Data *Data
}

type clientIDKey struct{}

func (e *Envelope) Context() context.Context {
	if e.ctx == nil {
		e.ctx = context.Background()
	}
	return e.ctx
}
func (e *Envelope) WithContext(ctx context.Context) {
	e.ctx = ctx
}

func (e *Envelope) ClientId() uint64 {
	ctx := e.Context()
	u, _ := ctx.Value(clientIDKey{}).(uint64)
	return u
}

func NewEnvelope(remoteAddr net.Addr, clientID uint64) *Envelope {
	return &Envelope{
		ctx:        context.WithValue(context.Background(), clientIDKey{}, clientID),
		RemoteAddr: remoteAddr,
		Data:       &Data{},
	}
}

// AddHeader adds a header to the envelope, operates on the Data buffer.
// Non-ASCII values are written as RFC 2047 encoded words.
func (e *Envelope) AddHeader(key, value string) error {
	h := header.NewHeaderValue(textproto.CanonicalMIMEHeaderKey(key), value, "")
	_, err := e.Data.Prepend(h.Raw())
	return err
}

// MessageID returns a new Message-ID value for the envelope, using the
// domain of the sender.
func (e *Envelope) MessageID() string {
	domain := utils.DomainOfEmail(e.MailFrom)
	if domain == "" {
		domain = "localhost"
	}
	return fmt.Sprintf("<%s@%s>", utils.XID(), domain)
}

// Mail parses the data of the envelope.
func (e *Envelope) Mail() (*Mail, error) {
	return NewMail(e.Data.Bytes(), e.UTF8)
}

// ParseHeaders parses the top level headers of the data, without decoding
// them.
func (e *Envelope) ParseHeaders() (textproto.MIMEHeader, error) {
	msg, err := mime.Parse(e.Data.Stream())
	if err != nil {
		return nil, err
	}
	block := msg.Root().Headers()
	if block.Len() == 0 {
		return nil, ErrNoHeaders
	}
	return block.MIMEHeader("", false), nil
}

func HeaderSubject(headers textproto.MIMEHeader) string {
	return header.Decode([]byte(headers.Get("Subject")), "")
}
func HeaderFrom(headers textproto.MIMEHeader) (*mail.Address, error) {
	from := headers.Get("From")
	return addressParser.Parse(from)
}
func HeaderTo(headers textproto.MIMEHeader) ([]*mail.Address, error) {
	from := headers.Get("To")
	return addressParser.ParseList(from)
}
func HeaderCc(headers textproto.MIMEHeader) ([]*mail.Address, error) {
	cc := headers.Get("Cc")
	return addressParser.ParseList(cc)
}
