package imapclient

import (
	"math"
	"strconv"

	"github.com/driftmail/go-imap"
)

// tagGenerator produces the command tags of a single connection. Tags are
// monotonically increasing, never reused and never wrapped: when the
// counter reaches its ceiling the connection is done for and must be
// replaced.
type tagGenerator struct {
	n   uint64
	max uint64
}

func newTagGenerator() *tagGenerator {
	return &tagGenerator{max: math.MaxUint64}
}

// next returns the next tag, or imap.ErrTagsExhausted once the tag space
// is used up.
func (g *tagGenerator) next() (string, error) {
	if g.n >= g.max {
		return "", imap.ErrTagsExhausted
	}
	g.n++
	return "T" + strconv.FormatUint(g.n, 10), nil
}
