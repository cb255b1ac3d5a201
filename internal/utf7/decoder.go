package utf7

import (
	"errors"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/transform"
)

// ErrInvalidUTF7 is returned when a transformer encounters bytes that are
// not valid modified UTF-7.
var ErrInvalidUTF7 = errors.New("utf7: invalid modified UTF-7")

type decoder struct {
	// ascii records whether the previous output was direct ASCII. A base64
	// segment may only follow direct ASCII: two adjacent segments would
	// never be produced by a conforming encoder.
	ascii bool
}

func (d *decoder) Reset() {
	d.ascii = true
}

func (d *decoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for i := 0; i < len(src); {
		ch := src[i]

		if ch < min || ch > max {
			// Only printable ASCII may appear outside a base64 segment.
			return nDst, nSrc, ErrInvalidUTF7
		}

		if ch != '&' {
			if nDst+1 > len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = ch
			nDst++
			nSrc = i + 1
			i++
			d.ascii = true
			continue
		}

		end := -1
		for j := i + 1; j < len(src); j++ {
			if src[j] == '-' {
				end = j
				break
			}
		}
		if end < 0 {
			if !atEOF {
				return nDst, nSrc, transform.ErrShortSrc
			}
			return nDst, nSrc, ErrInvalidUTF7
		}

		var out []byte
		asciiAfter := true
		if end == i+1 {
			// "&-" escapes a literal ampersand.
			out = []byte{'&'}
		} else {
			if !d.ascii {
				// Null shift: a segment directly after another segment.
				return nDst, nSrc, ErrInvalidUTF7
			}
			out = decodeSegment(src[i+1 : end])
			if out == nil {
				return nDst, nSrc, ErrInvalidUTF7
			}
			asciiAfter = false
		}

		// The state flips only once the output fits: on ErrShortDst the
		// transformer retries this segment against the same state.
		if nDst+len(out) > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += copy(dst[nDst:], out)
		d.ascii = asciiAfter
		nSrc = end + 1
		i = end + 1
	}
	return nDst, nSrc, nil
}

// decodeSegment decodes the base64 payload of a "&...-" segment. It
// returns nil when the payload is malformed: bytes outside the modified
// base64 alphabet, an odd number of UTF-16 bytes, broken surrogate pairs,
// or code points an encoder would have written as direct ASCII.
func decodeSegment(seg []byte) []byte {
	for _, ch := range seg {
		// The base64 decoder skips CR and LF, so screen the alphabet
		// ourselves.
		if !isBase64Char(ch) {
			return nil
		}
	}

	raw := make([]byte, b64.DecodedLen(len(seg)))
	n, err := b64.Decode(raw, seg)
	if err != nil || n%2 != 0 {
		return nil
	}
	raw = raw[:n]

	var out []byte
	for i := 0; i < len(raw); i += 2 {
		code := rune(raw[i])<<8 | rune(raw[i+1])
		if utf16.IsSurrogate(code) {
			if i+3 >= len(raw) {
				return nil
			}
			i += 2
			code2 := rune(raw[i])<<8 | rune(raw[i+1])
			r := utf16.DecodeRune(code, code2)
			if r == utf8.RuneError {
				return nil
			}
			out = utf8.AppendRune(out, r)
			continue
		}
		if code >= min && code <= max {
			// Printable ASCII must not be base64-encoded.
			return nil
		}
		out = utf8.AppendRune(out, code)
	}
	return out
}

func isBase64Char(ch byte) bool {
	return ch >= 'A' && ch <= 'Z' || ch >= 'a' && ch <= 'z' ||
		ch >= '0' && ch <= '9' || ch == '+' || ch == ','
}
