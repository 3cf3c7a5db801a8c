package mime

import (
	"bytes"
	"io"
)

// RangeStream is random access, re-readable input. Parts keep offsets into
// the stream they were parsed from and read their bodies lazily through
// substreams.
type RangeStream interface {
	io.ReaderAt
	Size() int64
	// Substream returns the bytes in [start, end), clamped to the stream.
	Substream(start, end int64) RangeStream
}

type sectionStream struct {
	s *io.SectionReader
}

// NewStream exposes the first size bytes of r as a RangeStream.
func NewStream(r io.ReaderAt, size int64) RangeStream {
	return sectionStream{s: io.NewSectionReader(r, 0, size)}
}

// NewBytesStream returns a RangeStream over b. b must not be modified
// afterwards.
func NewBytesStream(b []byte) RangeStream {
	return NewStream(bytes.NewReader(b), int64(len(b)))
}

func (s sectionStream) ReadAt(p []byte, off int64) (int, error) {
	return s.s.ReadAt(p, off)
}

func (s sectionStream) Size() int64 {
	return s.s.Size()
}

func (s sectionStream) Substream(start, end int64) RangeStream {
	size := s.s.Size()
	start = min(max(start, 0), size)
	end = min(max(end, start), size)
	return sectionStream{s: io.NewSectionReader(s.s, start, end-start)}
}

// Reader returns a sequential reader over the whole stream.
func Reader(s RangeStream) io.Reader {
	return io.NewSectionReader(s, 0, s.Size())
}

// ReadAll returns the content of s.
func ReadAll(s RangeStream) ([]byte, error) {
	b := make([]byte, s.Size())
	n, err := s.ReadAt(b, 0)
	if err == io.EOF && int64(n) == s.Size() {
		err = nil
	}
	return b[:n], err
}
