package mime

import (
	"strings"

	"github.com/google/uuid"
)

type lineEnding int

const (
	endingLF lineEnding = iota
	endingCR
	endingCRLF
)

func (e lineEnding) len() int64 {
	if e == endingCRLF {
		return 2
	}
	return 1
}

// candidate is a boundary still matching the current line. trailers is -1
// until the whole boundary has been seen, then counts the dashes after it.
type candidate struct {
	boundary string
	trailers int
}

// boundaryChecker tests one "--" line against every active boundary at
// once. The empty boundary stands for a multipart that did not declare
// one; it matches any line and remembers the text after the dashes.
type boundaryChecker struct {
	candidates []candidate
	partEnd    int64
	blank      bool
	saved      []byte
}

func newBoundaryChecker(boundaries []string, lineStart int64, last lineEnding) *boundaryChecker {
	c := &boundaryChecker{partEnd: lineStart - last.len()}
outer:
	for _, b := range boundaries {
		for _, have := range c.candidates {
			if have.boundary == b {
				continue outer
			}
		}
		if b == "" {
			c.blank = true
			c.saved = make([]byte, 0, 80)
			c.candidates = append(c.candidates, candidate{trailers: 0})
			continue
		}
		c.candidates = append(c.candidates, candidate{boundary: b, trailers: -1})
	}
	return c
}

// checkByte feeds the byte at offset index after the leading dashes and
// reports whether any candidate still matches.
func (c *boundaryChecker) checkByte(b byte, index int) bool {
	kept := c.candidates[:0]
	for _, cand := range c.candidates {
		switch bnd := cand.boundary; {
		case bnd == "":
		case index >= len(bnd):
			if b == '-' && cand.trailers < 2 {
				cand.trailers++
			} else if b != ' ' && b != '\t' {
				continue
			}
		default:
			if bnd[index] != b {
				continue
			}
			if index == len(bnd)-1 {
				cand.trailers = 0
			}
		}
		kept = append(kept, cand)
	}
	c.candidates = kept
	if c.blank {
		c.saved = append(c.saved, b)
	}
	return len(kept) > 0
}

// match returns the candidate the line completed, if any. A declared
// boundary wins over the empty one, and inner boundaries over outer ones.
func (c *boundaryChecker) match() (candidate, bool) {
	var (
		found candidate
		ok    bool
	)
	for _, cand := range c.candidates {
		if cand.trailers != 0 && cand.trailers != 2 {
			continue
		}
		if cand.boundary != "" || !ok {
			found, ok = cand, true
		}
	}
	return found, ok
}

func normalizeBoundary(b string) string {
	return strings.TrimRight(b, " \t\r\n")
}

// NewBoundary returns a fresh multipart boundary.
func NewBoundary() string {
	return "=_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
