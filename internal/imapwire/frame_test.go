package imapwire

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/driftmail/go-imap"
)

func TestScanResponseLine(t *testing.T) {
	buf := []byte("* OK ready\r\nA001 OK done\r\n")
	n, err := ScanResponse(buf)
	if err != nil {
		t.Fatalf("ScanResponse() = %v", err)
	}
	if want := len("* OK ready\r\n"); n != want {
		t.Fatalf("ScanResponse() = %v, want %v", n, want)
	}
}

func TestScanResponseWithLiteral(t *testing.T) {
	buf := []byte("* 1 FETCH (BODY {5}\r\nhello)\r\n")
	n, err := ScanResponse(buf)
	if err != nil {
		t.Fatalf("ScanResponse() = %v", err)
	}
	if n != len(buf) {
		t.Fatalf("ScanResponse() = %v, want %v", n, len(buf))
	}
}

func TestScanResponseMultipleLiterals(t *testing.T) {
	buf := []byte("* 1 FETCH (BODY[HEADER] {3}\r\nfoo BODY[TEXT] {3}\r\nbar)\r\n")
	n, err := ScanResponse(buf)
	if err != nil {
		t.Fatalf("ScanResponse() = %v", err)
	}
	if n != len(buf) {
		t.Fatalf("ScanResponse() = %v, want %v", n, len(buf))
	}
}

// Scanning must yield the same frames no matter how the bytes are chunked:
// every strict prefix of a response is "short input", never a frame or an
// error.
func TestScanResponseStreamingEquivalence(t *testing.T) {
	full := []byte("* 1 FETCH (BODY {5}\r\nhello)\r\n")
	for i := 0; i < len(full); i++ {
		n, err := ScanResponse(full[:i])
		if !errors.Is(err, ErrShortInput) {
			t.Fatalf("ScanResponse(%q) = %v, %v; want ErrShortInput", full[:i], n, err)
		}
	}
	n, err := ScanResponse(full)
	if err != nil || n != len(full) {
		t.Fatalf("ScanResponse(full) = %v, %v", n, err)
	}
}

func TestScanResponseLiteralCeiling(t *testing.T) {
	// The declared size alone must trigger the error: no payload follows.
	buf := []byte(fmt.Sprintf("* 1 FETCH (BODY {%d}\r\n", MaxLiteralSize+1))
	_, err := ScanResponse(buf)
	var tooLarge *imap.LiteralTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("ScanResponse() = %v, want *imap.LiteralTooLargeError", err)
	}
	if tooLarge.Size != int64(MaxLiteralSize)+1 {
		t.Fatalf("Size = %v, want %v", tooLarge.Size, int64(MaxLiteralSize)+1)
	}
}

func TestScanResponseLiteralAtCeiling(t *testing.T) {
	// Exactly MaxLiteralSize is allowed; the payload is just missing.
	buf := []byte(fmt.Sprintf("* 1 FETCH (BODY {%d}\r\n", MaxLiteralSize))
	_, err := ScanResponse(buf)
	if !errors.Is(err, ErrShortInput) {
		t.Fatalf("ScanResponse() = %v, want ErrShortInput", err)
	}
}

func TestScanResponseLineTooLong(t *testing.T) {
	buf := []byte(strings.Repeat("A", MaxLineLength+100))
	_, err := ScanResponse(buf)
	var protoErr *imap.ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("ScanResponse() = %v, want *imap.ProtocolError", err)
	}
}

func TestLiteralLength(t *testing.T) {
	tests := []struct {
		line string
		size int64
		ok   bool
	}{
		{"BODY {123}\r\n", 123, true},
		{"BODY {123+}\r\n", 123, true},
		{"{0}\r\n", 0, true},
		{"{999999}\r\n", 999999, true},
		{"no literal\r\n", 0, false},
		{"wrong {abc}\r\n", 0, false},
		{"empty {}\r\n", 0, false},
		{"trailing {12} text\r\n", 0, false},
	}
	for _, test := range tests {
		size, ok := literalLength([]byte(test.line))
		if size != test.size || ok != test.ok {
			t.Errorf("literalLength(%q) = %v, %v; want %v, %v",
				test.line, size, ok, test.size, test.ok)
		}
	}
}
