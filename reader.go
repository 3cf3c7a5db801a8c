package mimex

import (
	"errors"
	"io"
)

type ReaderError string

func (e ReaderError) Error() string {
	return string(e)
}

const LimitError ReaderError = "read limit reached"

// Copy past from io.LimitReader, with limit error replaces
type limitedReader struct {
	R io.Reader // underlying reader
	N int64     // max bytes remaining
}

func (l *limitedReader) Read(p []byte) (n int, err error) {
	if l.N <= 0 {
		return 0, errors.Join(io.EOF, LimitError)
	}
	if int64(len(p)) > l.N {
		p = p[0:l.N]
	}
	n, err = l.R.Read(p)
	l.N -= int64(n)
	return
}

// readAll reads r to the end, failing with LimitError if r holds more
// than n bytes.
func readAll(r io.Reader, n int64) ([]byte, error) {
	// one extra byte tells a message of exactly n bytes from a longer one
	b, err := io.ReadAll(&limitedReader{R: r, N: n + 1})
	if err != nil && !errors.Is(err, LimitError) {
		return nil, err
	}
	if int64(len(b)) > n {
		return nil, LimitError
	}
	return b, nil
}
