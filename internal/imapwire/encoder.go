package imapwire

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/driftmail/go-imap"
	"github.com/driftmail/go-imap/internal/utf7"
)

// An Encoder writes IMAP commands.
//
// Most methods don't return an error, instead they defer error handling
// until CRLF is called. These methods return the Encoder so that calls can
// be chained.
type Encoder struct {
	// QuotedUTF8 allows non-ASCII strings to be encoded as quoted strings.
	// This requires IMAP4rev2.
	QuotedUTF8 bool
	// UTF8Mailboxes sends mailbox names as UTF-8 instead of modified
	// UTF-7. This requires IMAP4rev2 or UTF8=ACCEPT.
	UTF8Mailboxes bool
	// InboxCaseSensitive keeps the caller's spelling of "inbox" instead
	// of canonicalizing it to the INBOX atom.
	InboxCaseSensitive bool
	// LiteralMinus enables non-synchronizing literals for short payloads.
	// This requires IMAP4rev2 or LITERAL-.
	LiteralMinus bool
	// LiteralPlus enables non-synchronizing literals for all payloads.
	// This requires LITERAL+.
	LiteralPlus bool
	// NewContinuationRequest creates a new continuation request, for
	// synchronizing literals.
	NewContinuationRequest func() *ContinuationRequest

	w       writeFlusher
	err     error
	literal bool
}

type writeFlusher interface {
	io.Writer
	io.StringWriter
	Flush() error
}

// NewEncoder creates a new encoder writing to w.
func NewEncoder(w writeFlusher) *Encoder {
	return &Encoder{w: w}
}

// SetErr poisons the encoder: all subsequent writes are dropped and CRLF
// returns err. It is a no-op if the encoder already failed.
func (enc *Encoder) SetErr(err error) {
	if enc.err == nil {
		enc.err = err
	}
}

// Err returns the sticky error, if any.
func (enc *Encoder) Err() error {
	return enc.err
}

func (enc *Encoder) writeString(s string) *Encoder {
	if enc.err != nil {
		return enc
	}
	if enc.literal {
		enc.err = fmt.Errorf("imapwire: cannot encode while a literal is open")
		return enc
	}
	if _, err := enc.w.WriteString(s); err != nil {
		enc.err = err
	}
	return enc
}

// CRLF writes a "\r\n" sequence and flushes the underlying writer.
func (enc *Encoder) CRLF() error {
	enc.writeString("\r\n")
	if enc.err != nil {
		return enc.err
	}
	return enc.w.Flush()
}

func (enc *Encoder) Atom(s string) *Encoder {
	return enc.writeString(s)
}

func (enc *Encoder) SP() *Encoder {
	return enc.writeString(" ")
}

func (enc *Encoder) Special(ch byte) *Encoder {
	return enc.writeString(string(ch))
}

// Quoted writes a quoted string, escaping '"' and '\'. The caller must
// have checked that s contains no NUL, CR or LF.
func (enc *Encoder) Quoted(s string) *Encoder {
	var sb strings.Builder
	sb.Grow(2 + len(s))
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '"' || ch == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteByte(ch)
	}
	sb.WriteByte('"')
	return enc.writeString(sb.String())
}

// String writes s as a quoted string when possible, and as a literal
// otherwise. Values containing NUL, CR or LF always travel as literals, so
// no crafted value can terminate the command line early.
func (enc *Encoder) String(s string) *Encoder {
	if !enc.validQuoted(s) {
		enc.stringLiteral(s)
		return enc
	}
	return enc.Quoted(s)
}

func (enc *Encoder) validQuoted(s string) bool {
	if len(s) > 4096 {
		return false
	}

	for i := 0; i < len(s); i++ {
		ch := s[i]

		// NUL, CR and LF are never valid
		switch ch {
		case 0, '\r', '\n':
			return false
		}

		if !enc.QuotedUTF8 && ch > unicode.MaxASCII {
			return false
		}
	}
	return true
}

func (enc *Encoder) stringLiteral(s string) {
	var sync *ContinuationRequest
	if (!enc.LiteralMinus || len(s) > 4096) && !enc.LiteralPlus {
		if enc.NewContinuationRequest != nil {
			sync = enc.NewContinuationRequest()
		}
		if sync == nil {
			enc.SetErr(fmt.Errorf("imapwire: cannot send synchronizing literal"))
			return
		}
	}
	wc := enc.Literal(int64(len(s)), sync)
	_, writeErr := io.WriteString(wc, s)
	closeErr := wc.Close()
	if writeErr != nil {
		enc.SetErr(writeErr)
	} else if closeErr != nil {
		enc.SetErr(closeErr)
	}
}

// Mailbox writes a mailbox name, encoding it to modified UTF-7 unless the
// connection negotiated UTF-8 names.
func (enc *Encoder) Mailbox(name string) *Encoder {
	if name == "INBOX" || (!enc.InboxCaseSensitive && strings.EqualFold(name, "INBOX")) {
		return enc.Atom("INBOX")
	}
	if !enc.UTF8Mailboxes {
		encoded, err := utf7.Encoding.NewEncoder().String(name)
		if err != nil {
			enc.SetErr(fmt.Errorf("imapwire: cannot encode mailbox name: %v", err))
			return enc
		}
		name = encoded
	}
	return enc.String(name)
}

func (enc *Encoder) NumSet(numSet imap.NumSet) *Encoder {
	s := numSet.String()
	if s == "" {
		enc.SetErr(fmt.Errorf("imapwire: cannot encode empty sequence set"))
		return enc
	}
	return enc.writeString(s)
}

func (enc *Encoder) Flag(flag imap.Flag) *Encoder {
	if flag != imap.FlagWildcard && !isValidFlag(string(flag)) {
		enc.SetErr(fmt.Errorf("imapwire: invalid flag %q", flag))
		return enc
	}
	return enc.writeString(string(flag))
}

// isValidFlag checks whether the provided string satisfies
// flag-keyword / flag-extension.
func isValidFlag(s string) bool {
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '\\' {
			if i != 0 {
				return false
			}
		} else if !IsAtomChar(ch) {
			return false
		}
	}
	return len(s) > 0
}

func (enc *Encoder) Number(v uint32) *Encoder {
	return enc.writeString(strconv.FormatUint(uint64(v), 10))
}

func (enc *Encoder) Number64(v int64) *Encoder {
	if v < 0 {
		enc.SetErr(fmt.Errorf("imapwire: cannot encode negative number %v", v))
		return enc
	}
	return enc.writeString(strconv.FormatInt(v, 10))
}

func (enc *Encoder) ModSeq(v uint64) *Encoder {
	return enc.writeString(strconv.FormatUint(v, 10))
}

func (enc *Encoder) UID(uid imap.UID) *Encoder {
	return enc.Number(uint32(uid))
}

// List writes a parenthesized list.
func (enc *Encoder) List(n int, f func(i int)) *Encoder {
	enc.Special('(')
	for i := 0; i < n; i++ {
		if i > 0 {
			enc.SP()
		}
		f(i)
	}
	enc.Special(')')
	return enc
}

func (enc *Encoder) BeginList() *ListEncoder {
	enc.Special('(')
	return &ListEncoder{enc: enc}
}

func (enc *Encoder) NIL() *Encoder {
	return enc.Atom("NIL")
}

func (enc *Encoder) Text(s string) *Encoder {
	return enc.writeString(s)
}

// Literal writes a literal header.
//
// The caller must write exactly size bytes to the returned writer.
//
// If sync is non-nil, the literal is synchronizing: the encoder waits for
// the server's continuation request before the payload may be written. If
// the continuation is cancelled the literal is abandoned and the encoder
// poisoned.
func (enc *Encoder) Literal(size int64, sync *ContinuationRequest) io.WriteCloser {
	enc.writeString("{")
	enc.Number64(size)
	if sync == nil {
		enc.writeString("+")
	}
	enc.writeString("}")

	if sync == nil {
		enc.writeString("\r\n")
	} else {
		if err := enc.CRLF(); err != nil {
			return errorWriter{err}
		}
		if _, err := sync.Wait(); err != nil {
			enc.SetErr(err)
			return errorWriter{err}
		}
	}

	enc.literal = true
	return &literalWriter{
		enc: enc,
		n:   size,
	}
}

type errorWriter struct {
	err error
}

func (ew errorWriter) Write(b []byte) (int, error) {
	return 0, ew.err
}

func (ew errorWriter) Close() error {
	return ew.err
}

type literalWriter struct {
	enc *Encoder
	n   int64
}

func (lw *literalWriter) Write(b []byte) (int, error) {
	if lw.n-int64(len(b)) < 0 {
		return 0, fmt.Errorf("wrote too many bytes in literal")
	}
	n, err := lw.enc.w.Write(b)
	lw.n -= int64(n)
	return n, err
}

func (lw *literalWriter) Close() error {
	lw.enc.literal = false
	if lw.n != 0 {
		return fmt.Errorf("wrote too few bytes in literal (%v remaining)", lw.n)
	}
	return nil
}

type ListEncoder struct {
	enc *Encoder
	n   int
}

func (le *ListEncoder) Item() *Encoder {
	if le.n > 0 {
		le.enc.SP()
	}
	le.n++
	return le.enc
}

func (le *ListEncoder) End() {
	le.enc.Special(')')
	le.enc = nil
}
