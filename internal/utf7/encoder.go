package utf7

import (
	"errors"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/transform"
)

// ErrInvalidUTF8 is returned when the encoder input is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("utf7: invalid UTF-8")

type encoder struct {
	transform.NopResetter
}

func (e *encoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for i := 0; i < len(src); {
		ch := src[i]

		if ch >= min && ch <= max {
			var out []byte
			if ch == '&' {
				out = []byte("&-")
			} else {
				out = []byte{ch}
			}
			if nDst+len(out) > len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			nDst += copy(dst[nDst:], out)
			nSrc = i + 1
			i++
			continue
		}

		// Collect the whole run of runes needing base64 so adjacent ones
		// share a single segment.
		var codes []uint16
		start := i
		for i < len(src) {
			if src[i] >= min && src[i] <= max {
				break
			}
			r, size := utf8.DecodeRune(src[i:])
			if r == utf8.RuneError && size <= 1 {
				if !atEOF {
					return nDst, nSrc, transform.ErrShortSrc
				}
				return nDst, nSrc, ErrInvalidUTF8
			}
			codes = utf16.AppendRune(codes, r)
			i += size
		}
		if i == len(src) && !atEOF {
			// The run may continue in the next chunk; wait so the segment
			// is emitted whole.
			return nDst, nSrc, transform.ErrShortSrc
		}

		raw := make([]byte, 0, len(codes)*2)
		for _, c := range codes {
			raw = append(raw, byte(c>>8), byte(c))
		}
		out := make([]byte, 0, b64.EncodedLen(len(raw))+2)
		out = append(out, '&')
		enc := make([]byte, b64.EncodedLen(len(raw)))
		b64.Encode(enc, raw)
		out = append(out, enc...)
		out = append(out, '-')

		if nDst+len(out) > len(dst) {
			i = start
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += copy(dst[nDst:], out)
		nSrc = i
	}
	return nDst, nSrc, nil
}
