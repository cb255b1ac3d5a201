package imapwire

import (
	"bufio"
	"bytes"
	"testing"
)

func newTestEncoder() (*Encoder, *bytes.Buffer) {
	var buf bytes.Buffer
	enc := NewEncoder(bufio.NewWriter(&buf))
	enc.LiteralPlus = true
	return enc, &buf
}

func TestEncoderSimpleCommand(t *testing.T) {
	enc, buf := newTestEncoder()
	enc.Atom("A001").SP().Atom("NOOP")
	if err := enc.CRLF(); err != nil {
		t.Fatalf("CRLF() = %v", err)
	}
	if got, want := buf.String(), "A001 NOOP\r\n"; got != want {
		t.Fatalf("encoded %q, want %q", got, want)
	}
}

func TestEncoderQuoted(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"password", `"password"`},
		{"", `""`},
		{`pa"ss`, `"pa\"ss"`},
		{`pa\ss`, `"pa\\ss"`},
		{"with space", `"with space"`},
	}
	for _, test := range tests {
		enc, buf := newTestEncoder()
		enc.String(test.in)
		if err := enc.CRLF(); err != nil {
			t.Fatalf("CRLF() = %v", err)
		}
		if got := buf.String(); got != test.want+"\r\n" {
			t.Errorf("String(%q) encoded %q, want %q", test.in, got, test.want)
		}
	}
}

func TestEncoderStringUsesLiteralForCRLF(t *testing.T) {
	// A value with CRLF must never appear raw on the command line.
	enc, buf := newTestEncoder()
	enc.String("x\r\nA002 DELETE INBOX")
	if err := enc.CRLF(); err != nil {
		t.Fatalf("CRLF() = %v", err)
	}
	want := "{20+}\r\nx\r\nA002 DELETE INBOX\r\n"
	if got := buf.String(); got != want {
		t.Fatalf("encoded %q, want %q", got, want)
	}
}

// Any string argument must round-trip: lexing the encoded form yields the
// original value as a single string token, so hostile values cannot smuggle
// extra commands onto the line.
func TestEncoderRoundTrip(t *testing.T) {
	values := []string{
		"plain",
		`quo"te`,
		`back\slash`,
		"with space",
		"inject\r\nA002 NOOP",
		"nul\x00byte",
		"trèmà", // non-ASCII goes as a literal without QuotedUTF8
	}
	for _, v := range values {
		enc, buf := newTestEncoder()
		enc.String(v)
		if err := enc.CRLF(); err != nil {
			t.Fatalf("CRLF() = %v", err)
		}

		l := NewLexer(buf.Bytes())
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("lexing encoded %q: %v", v, err)
		}
		var got string
		switch tok.Kind {
		case TokenQuoted:
			got = tok.Value
		case TokenLiteral:
			data, err := l.Literal(tok.LiteralSize)
			if err != nil {
				t.Fatalf("lexing literal for %q: %v", v, err)
			}
			got = string(data)
		default:
			t.Fatalf("encoded %q lexed as %v, want string", v, tok.Kind)
		}
		if got != v {
			t.Errorf("round trip of %q = %q", v, got)
		}
		if tok, err := l.Next(); err != nil || tok.Kind != TokenCRLF {
			t.Errorf("trailing token after %q = %v, %v; want CRLF", v, tok.Kind, err)
		}
	}
}

func TestEncoderMailbox(t *testing.T) {
	tests := []struct {
		name string
		utf8 bool
		want string
	}{
		{"INBOX", false, "INBOX"},
		{"inbox", false, "INBOX"},
		{"Sent", false, `"Sent"`},
		{"Entwürfe", false, `"Entw&APw-rfe"`},
		{"Entwürfe", true, "{9+}\r\nEntwürfe"},
	}
	for _, test := range tests {
		enc, buf := newTestEncoder()
		enc.UTF8Mailboxes = test.utf8
		enc.Mailbox(test.name)
		if err := enc.CRLF(); err != nil {
			t.Fatalf("CRLF() = %v", err)
		}
		if got := buf.String(); got != test.want+"\r\n" {
			t.Errorf("Mailbox(%q) utf8=%v encoded %q, want %q",
				test.name, test.utf8, got, test.want)
		}
	}
}

func TestEncoderMailboxInboxCaseSensitive(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"INBOX", "INBOX"},
		{"inbox", `"inbox"`},
		{"InBox", `"InBox"`},
	}
	for _, test := range tests {
		enc, buf := newTestEncoder()
		enc.InboxCaseSensitive = true
		enc.Mailbox(test.name)
		if err := enc.CRLF(); err != nil {
			t.Fatalf("CRLF() = %v", err)
		}
		if got := buf.String(); got != test.want+"\r\n" {
			t.Errorf("Mailbox(%q) case-sensitive encoded %q, want %q",
				test.name, got, test.want)
		}
	}
}

func TestEncoderFlagValidation(t *testing.T) {
	enc, _ := newTestEncoder()
	enc.Flag("\\Seen")
	if err := enc.Err(); err != nil {
		t.Fatalf("Flag(\\Seen) = %v", err)
	}

	enc, _ = newTestEncoder()
	enc.Flag("\\Se en")
	if err := enc.CRLF(); err == nil {
		t.Fatal("Flag with space did not fail")
	}
}

func TestEncoderStickyError(t *testing.T) {
	enc, buf := newTestEncoder()
	enc.Atom("A001")
	wantErr := bytes.ErrTooLarge
	enc.SetErr(wantErr)
	enc.SP().Atom("NOOP")
	if err := enc.CRLF(); err != wantErr {
		t.Fatalf("CRLF() = %v, want %v", err, wantErr)
	}
	if buf.Len() != 0 {
		t.Fatalf("poisoned encoder flushed %q", buf.String())
	}
}
