// Package mimex ties the MIME parser, the header codecs and the envelope
// API together behind one configured Engine.
package mimex

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/modfin/mimex/envelope"
	"github.com/modfin/mimex/mime"
	"github.com/modfin/mimex/utils"
)

// HandlerFunc processes a received message.
type HandlerFunc func(e *envelope.Envelope) error

// Middleware wraps a HandlerFunc, the way http middleware wraps a handler.
type Middleware func(next HandlerFunc) HandlerFunc

// Engine parses and builds messages with one configuration.
type Engine struct {
	Config Config

	middlewares []Middleware
}

// New returns an Engine for cfg, filling in defaults for everything left
// empty.
func New(cfg Config) (*Engine, error) {
	if err := cfg.setDefaults(); err != nil {
		return nil, fmt.Errorf("invalid config, err: %w", err)
	}
	return &Engine{Config: cfg}, nil
}

func (g *Engine) log() *slog.Logger {
	if g.Config.Log == nil {
		return utils.NoopLogger()
	}
	return g.Config.Log
}

// Use adds middlewares, applied in order, to every Handle call.
func (g *Engine) Use(middlewares ...Middleware) {
	g.middlewares = append(g.middlewares, middlewares...)
}

func (g *Engine) options() []mime.Option {
	return []mime.Option{
		mime.WithLogger(g.log()),
		mime.WithCharset(g.Config.DefaultCharset),
		mime.WithMaxHeaderSize(g.Config.MaxHeaderSize),
		mime.WithQPTrailingWhitespace(g.Config.KeepQPTrailingWhitespace),
	}
}

// Parse builds the part tree of b.
func (g *Engine) Parse(b []byte) (*mime.Message, error) {
	if int64(len(b)) > g.Config.MaxSize {
		return nil, LimitError
	}
	return mime.ParseBytes(b, g.options()...)
}

// ParseStream builds the part tree of a message held by s.
func (g *Engine) ParseStream(s mime.RangeStream) (*mime.Message, error) {
	if s.Size() > g.Config.MaxSize {
		return nil, LimitError
	}
	return mime.Parse(s, g.options()...)
}

// ParseReader reads r to the end and parses it. Messages larger than
// MaxSize fail with LimitError.
func (g *Engine) ParseReader(r io.Reader) (*mime.Message, error) {
	b, err := readAll(r, g.Config.MaxSize)
	if err != nil {
		return nil, err
	}
	return g.Parse(b)
}

// NewMail parses raw into the envelope Mail API.
func (g *Engine) NewMail(raw []byte, utf8 bool) (*envelope.Mail, error) {
	if int64(len(raw)) > g.Config.MaxSize {
		return nil, LimitError
	}
	return envelope.NewMail(raw, utf8, g.options()...)
}

// NewLeaf returns a leaf entity using the engine's parameter encoding.
func (g *Engine) NewLeaf(contentType string, body []byte) *mime.Entity {
	return mime.NewLeaf(contentType, body).Use2231(g.Config.Use2231)
}

// Handle reads a message from r into a new envelope and passes it through
// the middlewares to h.
func (g *Engine) Handle(ctx context.Context, remote net.Addr, r io.Reader, h HandlerFunc) error {
	b, err := readAll(r, g.Config.MaxSize)
	if err != nil {
		return err
	}
	e := envelope.NewEnvelope(remote, 0)
	if ctx != nil {
		e.WithContext(ctx)
	}
	if _, err = e.Data.Write(b); err != nil {
		return err
	}
	return g.Chain(h)(e)
}

// Chain wraps h with the engine's middlewares.
func (g *Engine) Chain(h HandlerFunc) HandlerFunc {
	for i := len(g.middlewares) - 1; i >= 0; i-- {
		h = g.middlewares[i](h)
	}
	return h
}
