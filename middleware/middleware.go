package middleware

import (
	"errors"
	"fmt"

	"github.com/modfin/mimex"
	"github.com/modfin/mimex/envelope"
	"github.com/modfin/mimex/mime"
)

var (
	ErrMissingHeader = errors.New("missing required header")
	ErrTooManyParts  = errors.New("too many parts")
	ErrUnterminated  = errors.New("unterminated multipart")
)

// AddMessageID adds a Message-ID header to mail that has none.
func AddMessageID(next mimex.HandlerFunc) mimex.HandlerFunc {
	return func(e *envelope.Envelope) error {
		headers, err := e.ParseHeaders()
		if err != nil && !errors.Is(err, envelope.ErrNoHeaders) {
			return err
		}
		if headers.Get("Message-Id") == "" {
			if err := e.AddHeader("Message-ID", e.MessageID()); err != nil {
				return err
			}
		}
		return next(e)
	}
}

// RequireHeaders rejects mail missing any of the named top level headers.
// Example usage: engine.Use(middleware.RequireHeaders("From", "Date"))
func RequireHeaders(names ...string) mimex.Middleware {
	return func(next mimex.HandlerFunc) mimex.HandlerFunc {
		return func(e *envelope.Envelope) error {
			headers, err := e.ParseHeaders()
			if err != nil && !errors.Is(err, envelope.ErrNoHeaders) {
				return err
			}
			for _, n := range names {
				if headers.Get(n) == "" {
					return fmt.Errorf("%w: %s", ErrMissingHeader, n)
				}
			}
			return next(e)
		}
	}
}

// Structure rejects mail with more than maxParts parts, and, when strict is
// set, mail with a multipart that never saw its closing boundary.
func Structure(maxParts int, strict bool) mimex.Middleware {
	return func(next mimex.HandlerFunc) mimex.HandlerFunc {
		return func(e *envelope.Envelope) error {
			msg, err := mime.Parse(e.Data.Stream())
			if err != nil {
				return err
			}
			if maxParts > 0 && msg.Len() > maxParts {
				return fmt.Errorf("%w: %d > %d", ErrTooManyParts, msg.Len(), maxParts)
			}
			if strict {
				err = msg.Walk(func(p *mime.Part, _ int) error {
					if p.IsMultipart() && !p.Deferred() && !p.Complete() {
						return fmt.Errorf("%w: part %q", ErrUnterminated, p.ID())
					}
					return nil
				})
				if err != nil {
					return err
				}
			}
			return next(e)
		}
	}
}
