package imapwire

import (
	"bytes"
	"strconv"

	"github.com/driftmail/go-imap"
)

const (
	// MaxLineLength caps a single CRLF-terminated line.
	MaxLineLength = 1024 * 1024 // 1 MiB

	// MaxLiteralSize caps a single literal payload. The check runs against
	// the declared size in the header, before any payload buffer is
	// allocated.
	MaxLiteralSize = 100 * 1024 * 1024 // 100 MiB
)

// ScanResponse reports the length of the first complete response in buf: a
// CRLF-terminated line plus, for each line announcing a literal, the
// literal payload and its continuation line.
//
// It returns ErrShortInput when buf holds only a prefix of a response,
// *imap.LiteralTooLargeError when a declared literal exceeds
// MaxLiteralSize, and *imap.ProtocolError when a line exceeds
// MaxLineLength. ScanResponse never allocates: it only measures.
func ScanResponse(buf []byte) (int, error) {
	n := 0
	for {
		i := bytes.Index(buf[n:], []byte("\r\n"))
		if i < 0 {
			if len(buf)-n > MaxLineLength {
				return 0, &imap.ProtocolError{
					Offset:  int64(n),
					Message: "line exceeds " + strconv.Itoa(MaxLineLength) + " bytes",
				}
			}
			return 0, ErrShortInput
		}
		if i > MaxLineLength {
			return 0, &imap.ProtocolError{
				Offset:  int64(n),
				Message: "line exceeds " + strconv.Itoa(MaxLineLength) + " bytes",
			}
		}
		line := buf[n : n+i+2]
		n += i + 2

		size, ok := literalLength(line)
		if !ok {
			return n, nil
		}
		if size > MaxLiteralSize {
			return 0, &imap.LiteralTooLargeError{Size: size, Max: MaxLiteralSize}
		}
		if int64(len(buf)-n) < size {
			return 0, ErrShortInput
		}
		n += int(size)
		// Loop: the response continues with another line after the
		// literal.
	}
}

// literalLength extracts a trailing "{n}" or "{n+}" literal header from a
// CRLF-terminated line.
func literalLength(line []byte) (int64, bool) {
	line = bytes.TrimSuffix(line, []byte("\r\n"))
	if !bytes.HasSuffix(line, []byte("}")) {
		return 0, false
	}
	open := bytes.LastIndexByte(line, '{')
	if open < 0 {
		return 0, false
	}
	num := line[open+1 : len(line)-1]
	num = bytes.TrimSuffix(num, []byte("+"))
	if len(num) == 0 {
		return 0, false
	}
	size, err := strconv.ParseInt(string(num), 10, 64)
	if err != nil || size < 0 {
		return 0, false
	}
	return size, true
}
