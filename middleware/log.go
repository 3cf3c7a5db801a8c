package middleware

import (
	"log/slog"
	"time"

	"github.com/modfin/mimex"
	"github.com/modfin/mimex/envelope"
)

type Skipper func(*envelope.Envelope) bool

type LoggerSettings struct {
	Skip       Skipper
	PreFields  []func(*envelope.Envelope) (string, any)
	PostFields []func(*envelope.Envelope, error) (string, any)
}

type Option func(*LoggerSettings)

func WithSkipper(s Skipper) Option {
	return func(settings *LoggerSettings) {
		settings.Skip = s
	}
}

// WithPreField adds a field logged before the handler runs.
func WithPreField(f func(*envelope.Envelope) (string, any)) Option {
	return func(settings *LoggerSettings) {
		settings.PreFields = append(settings.PreFields, f)
	}
}

func Logger(logger *slog.Logger, opts ...Option) mimex.Middleware {
	var settings = &LoggerSettings{}

	settings.PreFields = []func(*envelope.Envelope) (string, any){
		func(e *envelope.Envelope) (string, any) { return "remote-ip", e.RemoteAddr },
		func(e *envelope.Envelope) (string, any) {
			if e.MailFrom == nil {
				return "MAIL", ""
			}
			return "MAIL", e.MailFrom.Address
		},
		func(e *envelope.Envelope) (string, any) {
			var tos []string
			for _, t := range e.RcptTo {
				tos = append(tos, t.Address)
			}
			return "RCPT", tos
		},
		func(e *envelope.Envelope) (string, any) { return "UTF8", e.UTF8 },
		func(e *envelope.Envelope) (string, any) { return "size", e.Data.Len() },
	}

	settings.PostFields = []func(*envelope.Envelope, error) (string, any){
		func(e *envelope.Envelope, err error) (string, any) {
			return "size", e.Data.Len()
		},
	}

	for _, o := range opts {
		if o == nil {
			continue
		}
		o(settings)
	}

	return func(next mimex.HandlerFunc) mimex.HandlerFunc {
		return func(e *envelope.Envelope) error {
			if logger == nil {
				return next(e)
			}

			if settings.Skip != nil && settings.Skip(e) {
				return next(e)
			}

			start := time.Now()
			lvl := slog.LevelInfo

			l := logger.With("client-id", e.ClientId())

			if m, _ := e.Mail(); m != nil {
				if h, err := m.Headers(); err == nil {
					l = l.With("message-id", h.Get("Message-Id"))
				}
				l = l.With("parts", m.Message().Len())
			}

			var args []any
			for _, f := range settings.PreFields {
				k, v := f(e)
				args = append(args, k, v)
			}
			l.Log(e.Context(), lvl, "Mail request", args...)

			err := next(e)

			elapsed := time.Since(start)
			args = append([]any{}, "duration", elapsed)
			for _, f := range settings.PostFields {
				k, v := f(e, err)
				args = append(args, k, v)
			}

			if err != nil {
				args = append(args, "err", err)
				lvl = slog.LevelError
			}
			l.Log(e.Context(), lvl, "Mail response", args...)
			return err
		}
	}
}
