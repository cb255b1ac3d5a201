package imapwire

import (
	"errors"
	"testing"

	"github.com/driftmail/go-imap"
)

func mustNext(t *testing.T, l *Lexer) Token {
	t.Helper()
	tok, err := l.Next()
	if err != nil {
		t.Fatalf("Next() = %v", err)
	}
	return tok
}

func expectKinds(t *testing.T, l *Lexer, kinds ...TokenKind) {
	t.Helper()
	for _, kind := range kinds {
		tok := mustNext(t, l)
		if tok.Kind != kind {
			t.Fatalf("Next() = %v, want %v", tok.Kind, kind)
		}
	}
}

func TestLexerTaggedResponse(t *testing.T) {
	l := NewLexer([]byte("A001 OK LOGIN completed\r\n"))

	want := []struct {
		kind  TokenKind
		value string
	}{
		{TokenAtom, "A001"},
		{TokenSP, ""},
		{TokenAtom, "OK"},
		{TokenSP, ""},
		{TokenAtom, "LOGIN"},
		{TokenSP, ""},
		{TokenAtom, "completed"},
		{TokenCRLF, ""},
		{TokenEOF, ""},
	}
	for _, w := range want {
		tok := mustNext(t, l)
		if tok.Kind != w.kind || tok.Value != w.value {
			t.Fatalf("Next() = %v %q, want %v %q", tok.Kind, tok.Value, w.kind, w.value)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	l := NewLexer([]byte("123 456\r\n"))

	tok := mustNext(t, l)
	if tok.Kind != TokenNumber || tok.Num != 123 {
		t.Fatalf("Next() = %v %v, want number 123", tok.Kind, tok.Num)
	}
	expectKinds(t, l, TokenSP)
	tok = mustNext(t, l)
	if tok.Kind != TokenNumber || tok.Num != 456 {
		t.Fatalf("Next() = %v %v, want number 456", tok.Kind, tok.Num)
	}
}

func TestLexerNumberOverflow(t *testing.T) {
	l := NewLexer([]byte("99999999999999999999 \r\n"))
	if _, err := l.Next(); err == nil {
		t.Fatal("Next() succeeded on out-of-range number")
	}
}

func TestLexerQuotedString(t *testing.T) {
	l := NewLexer([]byte(`"hello \"world\"" ` + "\r\n"))

	tok := mustNext(t, l)
	if tok.Kind != TokenQuoted || tok.Value != `hello "world"` {
		t.Fatalf("Next() = %v %q", tok.Kind, tok.Value)
	}
}

func TestLexerQuotedStringBadEscape(t *testing.T) {
	l := NewLexer([]byte(`"a\nb"` + "\r\n"))
	_, err := l.Next()
	var protoErr *imap.ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("Next() = %v, want *imap.ProtocolError", err)
	}
}

func TestLexerNIL(t *testing.T) {
	l := NewLexer([]byte("NIL nil Nil\r\n"))
	expectKinds(t, l, TokenNIL, TokenSP, TokenNIL, TokenSP, TokenNIL, TokenCRLF)
}

func TestLexerFlagsList(t *testing.T) {
	l := NewLexer([]byte("(\\Seen \\Flagged)\r\n"))

	expectKinds(t, l, TokenLParen)
	tok := mustNext(t, l)
	if tok.Kind != TokenAtom || tok.Value != "\\Seen" {
		t.Fatalf("Next() = %v %q, want atom \\Seen", tok.Kind, tok.Value)
	}
	expectKinds(t, l, TokenSP)
	tok = mustNext(t, l)
	if tok.Value != "\\Flagged" {
		t.Fatalf("Next() = %q, want \\Flagged", tok.Value)
	}
	expectKinds(t, l, TokenRParen, TokenCRLF)
}

func TestLexerRespCode(t *testing.T) {
	l := NewLexer([]byte("[UIDNEXT 100]\r\n"))

	expectKinds(t, l, TokenLBracket)
	tok := mustNext(t, l)
	if tok.Kind != TokenAtom || tok.Value != "UIDNEXT" {
		t.Fatalf("Next() = %v %q", tok.Kind, tok.Value)
	}
	expectKinds(t, l, TokenSP)
	tok = mustNext(t, l)
	if tok.Num != 100 {
		t.Fatalf("Next() = %v, want 100", tok.Num)
	}
	expectKinds(t, l, TokenRBracket, TokenCRLF)
}

func TestLexerLiteral(t *testing.T) {
	l := NewLexer([]byte("{5}\r\nhello)\r\n"))

	tok := mustNext(t, l)
	if tok.Kind != TokenLiteral || tok.LiteralSize != 5 || tok.NonSync {
		t.Fatalf("Next() = %v size=%v nonsync=%v", tok.Kind, tok.LiteralSize, tok.NonSync)
	}
	data, err := l.Literal(tok.LiteralSize)
	if err != nil {
		t.Fatalf("Literal() = %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("Literal() = %q", data)
	}
	expectKinds(t, l, TokenRParen, TokenCRLF)
}

func TestLexerNonSyncLiteral(t *testing.T) {
	l := NewLexer([]byte("{5+}\r\nhello\r\n"))

	tok := mustNext(t, l)
	if tok.Kind != TokenLiteral || !tok.NonSync {
		t.Fatalf("Next() = %v nonsync=%v", tok.Kind, tok.NonSync)
	}
}

func TestLexerContinuation(t *testing.T) {
	l := NewLexer([]byte("+ Ready\r\n"))
	expectKinds(t, l, TokenPlus, TokenSP)
	tok := mustNext(t, l)
	if tok.Value != "Ready" {
		t.Fatalf("Next() = %q", tok.Value)
	}
	expectKinds(t, l, TokenCRLF)
}

func TestLexerShortInput(t *testing.T) {
	for _, in := range []string{
		"* OK",      // atom may continue
		"\"unterm",  // quoted string never closed
		"{12",       // literal header cut short
		"{5}\r\nhe", // literal payload cut short
		"\r",        // CR without LF yet
	} {
		l := NewLexer([]byte(in))
		var err error
		for err == nil {
			var tok Token
			tok, err = l.Next()
			if err == nil && tok.Kind == TokenEOF {
				t.Errorf("lexing %q reached EOF, want ErrShortInput", in)
				break
			}
			if err == nil && tok.Kind == TokenLiteral {
				_, err = l.Literal(tok.LiteralSize)
			}
		}
		if err != nil && !errors.Is(err, ErrShortInput) {
			t.Errorf("lexing %q = %v, want ErrShortInput", in, err)
		}
	}
}

func TestLexerPositionInError(t *testing.T) {
	l := NewLexer([]byte("AB\x01\r\n"))
	_, err := l.Next() // consumes "AB"? no: atom stops at \x01
	var protoErr *imap.ProtocolError
	if err == nil {
		// first token is the atom "AB"
		_, err = l.Next()
	}
	if !errors.As(err, &protoErr) {
		t.Fatalf("err = %v, want *imap.ProtocolError", err)
	}
	if protoErr.Offset != 2 {
		t.Fatalf("Offset = %v, want 2", protoErr.Offset)
	}
}

func TestIsAtomChar(t *testing.T) {
	for _, ch := range []byte{'A', 'z', '0', ':', '\\', '+', '='} {
		if !IsAtomChar(ch) {
			t.Errorf("IsAtomChar(%q) = false", ch)
		}
	}
	for _, ch := range []byte{' ', '(', ')', '{', '%', '*', '"', '[', ']', 0x01, 0x7F} {
		if IsAtomChar(ch) {
			t.Errorf("IsAtomChar(%q) = true", ch)
		}
	}
}

// A bracket terminates an atom: fetch attributes like BODY[] must lex as
// the atom "BODY" followed by bracket tokens.
func TestLexerAtomStopsAtBracket(t *testing.T) {
	l := NewLexer([]byte("BODY[HEADER]\r\n"))

	tok, err := l.Next()
	if err != nil || tok.Kind != TokenAtom || tok.Value != "BODY" {
		t.Fatalf("Next() = %v (%v), %v, want atom BODY", tok.Value, tok.Kind, err)
	}
	tok, err = l.Next()
	if err != nil || tok.Kind != TokenLBracket {
		t.Fatalf("Next() = %v, %v, want LBracket", tok.Kind, err)
	}
	tok, err = l.Next()
	if err != nil || tok.Kind != TokenAtom || tok.Value != "HEADER" {
		t.Fatalf("Next() = %v (%v), %v, want atom HEADER", tok.Value, tok.Kind, err)
	}
	tok, err = l.Next()
	if err != nil || tok.Kind != TokenRBracket {
		t.Fatalf("Next() = %v, %v, want RBracket", tok.Kind, err)
	}
}
