package imapwire

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/driftmail/go-imap"
)

// ErrShortInput is returned when the input ends in the middle of a token.
// It means the caller must supply more bytes, as opposed to a protocol
// error which means the stream is corrupt.
var ErrShortInput = errors.New("imapwire: short input")

// TokenKind is the kind of a lexical token.
type TokenKind int

const (
	TokenAtom TokenKind = iota + 1
	TokenNumber
	TokenQuoted
	// TokenLiteral is a literal header "{n}" or "{n+}" and its trailing
	// CRLF. The payload is not consumed; use Lexer.Literal.
	TokenLiteral
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenStar
	TokenPlus
	TokenSP
	TokenCRLF
	TokenNIL
	TokenEOF
)

var tokenKindNames = map[TokenKind]string{
	TokenAtom:     "atom",
	TokenNumber:   "number",
	TokenQuoted:   "quoted string",
	TokenLiteral:  "literal",
	TokenLParen:   "'('",
	TokenRParen:   "')'",
	TokenLBracket: "'['",
	TokenRBracket: "']'",
	TokenStar:     "'*'",
	TokenPlus:     "'+'",
	TokenSP:       "SP",
	TokenCRLF:     "CRLF",
	TokenNIL:      "NIL",
	TokenEOF:      "EOF",
}

func (kind TokenKind) String() string {
	if name, ok := tokenKindNames[kind]; ok {
		return name
	}
	return "unknown"
}

// Token is a single lexical token.
type Token struct {
	Kind TokenKind

	// Value holds the text of an atom, the decoded contents of a quoted
	// string, or the digits of a number.
	Value string
	// Num is the parsed value of a number token, when it fits in 32 bits.
	// Num64 always holds the full value; callers in 32-bit contexts must
	// range-check via Num64.
	Num   uint32
	Num64 uint64
	// LiteralSize is the declared payload size of a literal token.
	LiteralSize int64
	// NonSync reports whether a literal token was non-synchronizing
	// ("{n+}").
	NonSync bool
}

// Lexer tokenizes a byte slice containing IMAP server responses. It
// performs no I/O: when the slice ends mid-token, Next returns
// ErrShortInput and the caller decides how to obtain more bytes.
type Lexer struct {
	input []byte
	pos   int
}

// NewLexer creates a lexer over input.
func NewLexer(input []byte) *Lexer {
	return &Lexer{input: input}
}

// Pos returns the current byte offset.
func (l *Lexer) Pos() int {
	return l.pos
}

func (l *Lexer) peek() (byte, bool) {
	if l.pos >= len(l.input) {
		return 0, false
	}
	return l.input[l.pos], true
}

func (l *Lexer) peekAt(off int) (byte, bool) {
	if l.pos+off >= len(l.input) {
		return 0, false
	}
	return l.input[l.pos+off], true
}

func (l *Lexer) protoErr(format string, args ...interface{}) error {
	return &imap.ProtocolError{
		Offset:  int64(l.pos),
		Message: fmt.Sprintf(format, args...),
	}
}

// Next reads the next token. At a clean end of input it returns a TokenEOF
// token; mid-token it returns ErrShortInput.
func (l *Lexer) Next() (Token, error) {
	ch, ok := l.peek()
	if !ok {
		return Token{Kind: TokenEOF}, nil
	}

	switch ch {
	case '\r':
		if _, ok := l.peekAt(1); !ok {
			return Token{}, ErrShortInput
		}
		if ch2, _ := l.peekAt(1); ch2 != '\n' {
			return Token{}, l.protoErr("expected LF after CR")
		}
		l.pos += 2
		return Token{Kind: TokenCRLF}, nil
	case ' ':
		l.pos++
		return Token{Kind: TokenSP}, nil
	case '(':
		l.pos++
		return Token{Kind: TokenLParen}, nil
	case ')':
		l.pos++
		return Token{Kind: TokenRParen}, nil
	case '[':
		l.pos++
		return Token{Kind: TokenLBracket}, nil
	case ']':
		l.pos++
		return Token{Kind: TokenRBracket}, nil
	case '*':
		l.pos++
		return Token{Kind: TokenStar}, nil
	case '+':
		l.pos++
		return Token{Kind: TokenPlus}, nil
	case '"':
		return l.readQuoted()
	case '{':
		return l.readLiteralHeader()
	}

	if !IsAtomChar(ch) {
		return Token{}, l.protoErr("unexpected character %#02x", ch)
	}
	return l.readAtom()
}

func (l *Lexer) readQuoted() (Token, error) {
	start := l.pos
	l.pos++ // opening quote

	var sb []byte
	for {
		ch, ok := l.peek()
		if !ok {
			l.pos = start
			return Token{}, ErrShortInput
		}
		l.pos++
		switch ch {
		case '"':
			return Token{Kind: TokenQuoted, Value: string(sb)}, nil
		case '\\':
			esc, ok := l.peek()
			if !ok {
				l.pos = start
				return Token{}, ErrShortInput
			}
			if esc != '"' && esc != '\\' {
				return Token{}, l.protoErr("invalid escape \\%c in quoted string", esc)
			}
			l.pos++
			sb = append(sb, esc)
		case '\r', '\n':
			return Token{}, l.protoErr("unescaped CR/LF in quoted string")
		default:
			sb = append(sb, ch)
		}
	}
}

func (l *Lexer) readLiteralHeader() (Token, error) {
	start := l.pos
	l.pos++ // opening brace

	numStart := l.pos
	nonSync := false
	for {
		ch, ok := l.peek()
		if !ok {
			l.pos = start
			return Token{}, ErrShortInput
		}
		if ch >= '0' && ch <= '9' {
			l.pos++
			continue
		}
		if ch == '+' && !nonSync {
			nonSync = true
			l.pos++
			continue
		}
		if ch == '}' {
			break
		}
		return Token{}, l.protoErr("invalid character %#02x in literal size", ch)
	}

	numEnd := l.pos
	if nonSync {
		numEnd--
	}
	if numEnd == numStart {
		return Token{}, l.protoErr("empty literal size")
	}
	size, err := strconv.ParseInt(string(l.input[numStart:numEnd]), 10, 64)
	if err != nil {
		return Token{}, l.protoErr("invalid literal size: %v", err)
	}
	l.pos++ // closing brace

	// The header line ends here; the payload starts after CRLF.
	if _, ok := l.peek(); !ok {
		l.pos = start
		return Token{}, ErrShortInput
	}
	if _, ok := l.peekAt(1); !ok {
		l.pos = start
		return Token{}, ErrShortInput
	}
	if l.input[l.pos] != '\r' || l.input[l.pos+1] != '\n' {
		return Token{}, l.protoErr("expected CRLF after literal size")
	}
	l.pos += 2

	return Token{Kind: TokenLiteral, LiteralSize: size, NonSync: nonSync}, nil
}

func (l *Lexer) readAtom() (Token, error) {
	start := l.pos
	allDigits := true
	for {
		ch, ok := l.peek()
		if !ok {
			// The atom may continue in bytes not yet seen.
			l.pos = start
			return Token{}, ErrShortInput
		}
		if !IsAtomChar(ch) {
			break
		}
		if ch < '0' || ch > '9' {
			allDigits = false
		}
		l.pos++
	}

	s := string(l.input[start:l.pos])
	if allDigits {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return Token{}, l.protoErr("number out of range: %q", s)
		}
		tok := Token{Kind: TokenNumber, Value: s, Num64: n}
		if n <= math.MaxUint32 {
			tok.Num = uint32(n)
		}
		return tok, nil
	}
	if equalsFoldASCII(s, "NIL") {
		return Token{Kind: TokenNIL, Value: s}, nil
	}
	return Token{Kind: TokenAtom, Value: s}, nil
}

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() (Token, error) {
	pos := l.pos
	tok, err := l.Next()
	l.pos = pos
	return tok, err
}

// Text consumes the rest of the current line up to and including CRLF and
// returns the text before it.
func (l *Lexer) Text() (string, error) {
	start := l.pos
	for l.pos < len(l.input) {
		if l.input[l.pos] == '\r' {
			if l.pos+1 >= len(l.input) {
				l.pos = start
				return "", ErrShortInput
			}
			if l.input[l.pos+1] != '\n' {
				return "", l.protoErr("expected LF after CR")
			}
			text := string(l.input[start:l.pos])
			l.pos += 2
			return text, nil
		}
		if l.input[l.pos] == '\n' {
			return "", l.protoErr("bare LF in text")
		}
		l.pos++
	}
	l.pos = start
	return "", ErrShortInput
}

// SkipUntil consumes bytes up to, but not including, the first occurrence
// of ch on the current line and returns them.
func (l *Lexer) SkipUntil(ch byte) (string, error) {
	start := l.pos
	for l.pos < len(l.input) {
		b := l.input[l.pos]
		if b == ch {
			return string(l.input[start:l.pos]), nil
		}
		if b == '\r' || b == '\n' {
			return "", l.protoErr("unexpected end of line, want %q", ch)
		}
		l.pos++
	}
	l.pos = start
	return "", ErrShortInput
}

// Literal consumes size payload bytes following a literal header token.
// The size ceiling has already been enforced when the frame was scanned;
// this re-check only guards against a caller bypassing the scanner.
func (l *Lexer) Literal(size int64) ([]byte, error) {
	if size > MaxLiteralSize {
		return nil, &imap.LiteralTooLargeError{Size: size, Max: MaxLiteralSize}
	}
	if int64(len(l.input)-l.pos) < size {
		return nil, ErrShortInput
	}
	end := l.pos + int(size)
	data := l.input[l.pos:end]
	l.pos = end
	return data, nil
}

func equalsFoldASCII(s, t string) bool {
	if len(s) != len(t) {
		return false
	}
	for i := 0; i < len(s); i++ {
		a, b := s[i], t[i]
		if a >= 'a' && a <= 'z' {
			a -= 'a' - 'A'
		}
		if b >= 'a' && b <= 'z' {
			b -= 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}

// IsAtomChar reports whether ch may appear in an atom. The backslash is
// included so flags like \Seen lex as single tokens. Both brackets are
// excluded so "BODY[" splits into an atom and a TokenLBracket.
func IsAtomChar(ch byte) bool {
	switch ch {
	case '(', ')', '{', ' ', '%', '*', '"', '[', ']':
		return false
	}
	return ch > 0x20 && ch < 0x7F
}
