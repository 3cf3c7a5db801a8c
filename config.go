package mimex

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/modfin/mimex/charset"
	"github.com/modfin/mimex/utils"
)

// Config is the holder of the configuration of an Engine
type Config struct {
	Log *slog.Logger `json:"-"`

	// DefaultCharset is used for 8bit header and body text that carries no
	// charset label. Defaults to iso-8859-1
	DefaultCharset string `json:"default_charset"`
	// MaxHeaderSize is the longest header line kept while parsing, longer
	// lines are truncated. Defaults to 64 KiB
	MaxHeaderSize int `json:"max_header_size"`
	// MaxSize is the maximum size of a message read from an io.Reader.
	// Defaults to 10 Mebibytes
	MaxSize int64 `json:"max_size"`

	// Use2231 writes non-ASCII parameter values, such as filenames, as
	// RFC 2231 extended parameters instead of RFC 2047 encoded words
	Use2231 bool `json:"use_2231,omitempty"`
	// KeepQPTrailingWhitespace keeps whitespace at the end of quoted-printable
	// lines when decoding
	KeepQPTrailingWhitespace bool `json:"keep_qp_trailing_whitespace,omitempty"`
}

// setDefaults fills in default settings for values that were not configured
// The defaults are:
// * no logging
// * iso-8859-1 for unlabeled text
// * 64 KiB header lines
// * 10MB max message size
func (c *Config) setDefaults() error {
	if c.Log == nil {
		c.Log = utils.NoopLogger()
	}
	if c.DefaultCharset == "" {
		c.DefaultCharset = defaultCharset
	}
	if c.MaxHeaderSize == 0 {
		c.MaxHeaderSize = defaultMaxHeaderSize
	}
	if c.MaxSize == 0 {
		c.MaxSize = defaultMaxSize // 10 Mebibytes
	}
	return c.validate()
}

func (c *Config) validate() error {
	var err error
	if _, _, ok := charset.Lookup(c.DefaultCharset); !ok {
		err = errors.Join(err, fmt.Errorf("unknown default charset %q", c.DefaultCharset))
	}
	if c.MaxHeaderSize < 0 {
		err = errors.Join(err, fmt.Errorf("max header size must be positive, got %d", c.MaxHeaderSize))
	}
	if c.MaxSize < 0 {
		err = errors.Join(err, fmt.Errorf("max size must be positive, got %d", c.MaxSize))
	}
	return err
}
