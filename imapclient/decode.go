package imapclient

import (
	"errors"
	"fmt"
	"math"
	"net/mail"
	"strings"
	"time"

	"github.com/go-kit/kit/log/level"

	"github.com/driftmail/go-imap"
	"github.com/driftmail/go-imap/internal/imapwire"
	"github.com/driftmail/go-imap/internal/utf7"
)

// internalDateLayouts accepts both the RFC 3501 fixed-width day (space
// padded) and unpadded days seen in the wild. The layouts are tried in
// both dialects rather than switched on the quirk profile: servers mix
// the two forms regardless of the revision they advertise, and the forms
// are unambiguous, so strict per-dialect parsing would only reject mail.
var internalDateLayouts = []string{
	"_2-Jan-2006 15:04:05 -0700",
	"2-Jan-2006 15:04:05 -0700",
}

func decodeErr(l *imapwire.Lexer, format string, args ...interface{}) error {
	return &imap.ProtocolError{
		Offset:  int64(l.Pos()),
		Message: fmt.Sprintf(format, args...),
	}
}

func expect(l *imapwire.Lexer, kind imapwire.TokenKind) (imapwire.Token, error) {
	tok, err := l.Next()
	if err != nil {
		return tok, err
	}
	if tok.Kind != kind {
		return tok, decodeErr(l, "expected %v, got %v", kind, tok.Kind)
	}
	return tok, nil
}

func expectSP(l *imapwire.Lexer) error {
	_, err := expect(l, imapwire.TokenSP)
	return err
}

func expectCRLF(l *imapwire.Lexer) error {
	_, err := expect(l, imapwire.TokenCRLF)
	return err
}

// num32 converts a number token, rejecting values that exceed 32 bits.
func num32(l *imapwire.Lexer, tok imapwire.Token) (uint32, error) {
	if tok.Num64 > math.MaxUint32 {
		return 0, decodeErr(l, "number %v out of range", tok.Value)
	}
	return tok.Num, nil
}

// readAString reads an atom, a quoted string or a literal.
func readAString(l *imapwire.Lexer) (string, error) {
	tok, err := l.Next()
	if err != nil {
		return "", err
	}
	switch tok.Kind {
	case imapwire.TokenAtom, imapwire.TokenQuoted, imapwire.TokenNumber, imapwire.TokenNIL:
		return tok.Value, nil
	case imapwire.TokenLiteral:
		b, err := l.Literal(tok.LiteralSize)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", decodeErr(l, "expected string, got %v", tok.Kind)
	}
}

// readNString reads a quoted string, a literal or NIL. ok is false for NIL.
func readNString(l *imapwire.Lexer) (s string, ok bool, err error) {
	b, ok, err := readNStringBytes(l)
	return string(b), ok, err
}

func readNStringBytes(l *imapwire.Lexer) (b []byte, ok bool, err error) {
	tok, err := l.Next()
	if err != nil {
		return nil, false, err
	}
	switch tok.Kind {
	case imapwire.TokenNIL:
		return nil, false, nil
	case imapwire.TokenQuoted:
		return []byte(tok.Value), true, nil
	case imapwire.TokenLiteral:
		b, err := l.Literal(tok.LiteralSize)
		return b, true, err
	default:
		return nil, false, decodeErr(l, "expected NIL or string, got %v", tok.Kind)
	}
}

// skipValue consumes one value of any shape: an atom, a string, a literal
// or a parenthesized list, recursively. Unknown response extensions are
// skipped with it.
func skipValue(l *imapwire.Lexer) error {
	tok, err := l.Next()
	if err != nil {
		return err
	}
	switch tok.Kind {
	case imapwire.TokenAtom, imapwire.TokenNumber, imapwire.TokenQuoted, imapwire.TokenNIL, imapwire.TokenStar:
		return nil
	case imapwire.TokenLiteral:
		_, err := l.Literal(tok.LiteralSize)
		return err
	case imapwire.TokenLParen:
		depth := 1
		for depth > 0 {
			tok, err := l.Next()
			if err != nil {
				return err
			}
			switch tok.Kind {
			case imapwire.TokenLParen:
				depth++
			case imapwire.TokenRParen:
				depth--
			case imapwire.TokenLiteral:
				if _, err := l.Literal(tok.LiteralSize); err != nil {
					return err
				}
			case imapwire.TokenCRLF, imapwire.TokenEOF:
				return decodeErr(l, "unterminated list")
			}
		}
		return nil
	default:
		return decodeErr(l, "unexpected %v", tok.Kind)
	}
}

// handleFrame parses one complete response. The frame always contains a
// full response including all literal payloads, so ErrShortInput escaping
// from here indicates a scanner bug and is treated as fatal by the caller.
func (c *conn) handleFrame(frame []byte) error {
	l := imapwire.NewLexer(frame)
	tok, err := l.Next()
	if err != nil {
		return err
	}
	switch tok.Kind {
	case imapwire.TokenPlus:
		return c.readContinueReq(l)
	case imapwire.TokenStar:
		return c.readUntagged(l)
	case imapwire.TokenAtom, imapwire.TokenNumber:
		return c.readTagged(l, tok.Value)
	default:
		return decodeErr(l, "unexpected %v at start of response", tok.Kind)
	}
}

func (c *conn) readContinueReq(l *imapwire.Lexer) error {
	var text string
	tok, err := l.Peek()
	if err != nil {
		return err
	}
	if tok.Kind == imapwire.TokenSP {
		l.Next()
		if text, err = l.Text(); err != nil {
			return err
		}
	} else if err := expectCRLF(l); err != nil {
		return err
	}

	c.mutex.Lock()
	var cont *imapwire.ContinuationRequest
	if len(c.contReqs) > 0 {
		cont = c.contReqs[0].cont
		c.contReqs = append(c.contReqs[:0:0], c.contReqs[1:]...)
	}
	c.mutex.Unlock()

	if cont == nil {
		return &imap.ProtocolError{Offset: -1, Message: "unmatched continuation request"}
	}
	cont.Done(text)
	return nil
}

// respCode is a parsed resp-text-code together with its arguments.
type respCode struct {
	name string

	caps           imap.CapSet
	permanentFlags []imap.Flag
	uidNext        imap.UID
	uidValidity    uint32
	unseen         uint32
	highestModSeq  uint64
	appendData     *imap.AppendData
	copyData       *imap.CopyData
}

// readRespText parses resp-text: an optional bracketed code followed by
// human-readable text up to CRLF.
func (c *conn) readRespText(l *imapwire.Lexer) (*respCode, string, error) {
	var code *respCode
	tok, err := l.Peek()
	if err != nil {
		return nil, "", err
	}
	if tok.Kind == imapwire.TokenLBracket {
		l.Next()
		if code, err = c.readRespTextCode(l); err != nil {
			return nil, "", err
		}
		if _, err := expect(l, imapwire.TokenRBracket); err != nil {
			return nil, "", err
		}
		if tok, err := l.Peek(); err == nil && tok.Kind == imapwire.TokenSP {
			l.Next()
		}
	}
	text, err := l.Text()
	return code, text, err
}

func (c *conn) readRespTextCode(l *imapwire.Lexer) (*respCode, error) {
	tok, err := expect(l, imapwire.TokenAtom)
	if err != nil {
		return nil, err
	}
	code := &respCode{name: strings.ToUpper(tok.Value)}

	switch imap.ResponseCode(code.name) {
	case imap.ResponseCodeCapability:
		caps, err := readCaps(l)
		if err != nil {
			return nil, err
		}
		code.caps = caps
	case imap.ResponseCodePermanentFlags:
		if err := expectSP(l); err != nil {
			return nil, err
		}
		flags, err := readFlagList(l)
		if err != nil {
			return nil, err
		}
		code.permanentFlags = flags
	case imap.ResponseCodeUIDNext:
		n, err := readCodeNum32(l)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, decodeErr(l, "UIDNEXT must not be zero")
		}
		code.uidNext = imap.UID(n)
	case imap.ResponseCodeUIDValidity:
		n, err := readCodeNum32(l)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, decodeErr(l, "UIDVALIDITY must not be zero")
		}
		code.uidValidity = n
	case "UNSEEN":
		n, err := readCodeNum32(l)
		if err != nil {
			return nil, err
		}
		code.unseen = n
	case "HIGHESTMODSEQ":
		if err := expectSP(l); err != nil {
			return nil, err
		}
		tok, err := expect(l, imapwire.TokenNumber)
		if err != nil {
			return nil, err
		}
		code.highestModSeq = tok.Num64
	case "APPENDUID":
		uidValidity, err := readCodeNum32(l)
		if err != nil {
			return nil, err
		}
		if err := expectSP(l); err != nil {
			return nil, err
		}
		uids, err := readUIDSet(l)
		if err != nil {
			return nil, err
		}
		data := &imap.AppendData{UIDValidity: uidValidity}
		if nums := uids.Nums(); len(nums) > 0 {
			data.UID = nums[0]
		}
		code.appendData = data
	case "COPYUID":
		uidValidity, err := readCodeNum32(l)
		if err != nil {
			return nil, err
		}
		if err := expectSP(l); err != nil {
			return nil, err
		}
		src, err := readUIDSet(l)
		if err != nil {
			return nil, err
		}
		if err := expectSP(l); err != nil {
			return nil, err
		}
		dst, err := readUIDSet(l)
		if err != nil {
			return nil, err
		}
		code.copyData = &imap.CopyData{
			UIDValidity: uidValidity,
			SourceUIDs:  src,
			DestUIDs:    dst,
		}
	case imap.ResponseCodeReadOnly, imap.ResponseCodeReadWrite:
		// no arguments
	default:
		// Unknown codes are skipped up to the closing bracket.
		if _, err := l.SkipUntil(']'); err != nil {
			return nil, err
		}
	}
	return code, nil
}

func readCodeNum32(l *imapwire.Lexer) (uint32, error) {
	if err := expectSP(l); err != nil {
		return 0, err
	}
	tok, err := expect(l, imapwire.TokenNumber)
	if err != nil {
		return 0, err
	}
	return num32(l, tok)
}

// readUIDSet parses a UID set such as "5" or "3:5,9". A zero UID is a
// protocol violation.
func readUIDSet(l *imapwire.Lexer) (imap.UIDSet, error) {
	tok, err := l.Next()
	if err != nil {
		return imap.UIDSet{}, err
	}
	switch tok.Kind {
	case imapwire.TokenNumber:
		n, err := num32(l, tok)
		if err != nil {
			return imap.UIDSet{}, err
		}
		if n == 0 {
			return imap.UIDSet{}, decodeErr(l, "UID must not be zero")
		}
		return imap.UIDSetNum(imap.UID(n)), nil
	case imapwire.TokenAtom:
		set, err := imap.ParseUIDSet(tok.Value)
		if err != nil {
			return imap.UIDSet{}, decodeErr(l, "invalid UID set %q: %v", tok.Value, err)
		}
		return set, nil
	default:
		return imap.UIDSet{}, decodeErr(l, "expected UID set, got %v", tok.Kind)
	}
}

// readCaps reads space-separated capability atoms until the closing
// bracket or end of line.
func readCaps(l *imapwire.Lexer) (imap.CapSet, error) {
	caps := make(imap.CapSet)
	for {
		tok, err := l.Peek()
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case imapwire.TokenRBracket, imapwire.TokenCRLF, imapwire.TokenEOF:
			return caps, nil
		case imapwire.TokenSP:
			l.Next()
		case imapwire.TokenAtom, imapwire.TokenNumber, imapwire.TokenNIL:
			l.Next()
			caps[imap.Cap(tok.Value)] = struct{}{}
		default:
			return nil, decodeErr(l, "expected capability, got %v", tok.Kind)
		}
	}
}

// readFlag reads a single flag. "\*" lexes as a backslash atom followed by
// a star token.
func readFlag(l *imapwire.Lexer) (imap.Flag, error) {
	tok, err := l.Next()
	if err != nil {
		return "", err
	}
	switch tok.Kind {
	case imapwire.TokenAtom, imapwire.TokenNIL, imapwire.TokenNumber:
		if tok.Value == `\` {
			if _, err := expect(l, imapwire.TokenStar); err != nil {
				return "", err
			}
			return imap.FlagWildcard, nil
		}
		return imap.Flag(tok.Value), nil
	default:
		return "", decodeErr(l, "expected flag, got %v", tok.Kind)
	}
}

func readFlagList(l *imapwire.Lexer) ([]imap.Flag, error) {
	if _, err := expect(l, imapwire.TokenLParen); err != nil {
		return nil, err
	}
	var flags []imap.Flag
	for {
		tok, err := l.Peek()
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case imapwire.TokenRParen:
			l.Next()
			return flags, nil
		case imapwire.TokenSP:
			l.Next()
		default:
			flag, err := readFlag(l)
			if err != nil {
				return nil, err
			}
			flags = append(flags, flag)
		}
	}
}

func (c *conn) readTagged(l *imapwire.Lexer, tag string) error {
	if err := expectSP(l); err != nil {
		return err
	}
	tok, err := expect(l, imapwire.TokenAtom)
	if err != nil {
		return err
	}
	typ := imap.StatusResponseType(strings.ToUpper(tok.Value))
	switch typ {
	case imap.StatusOK, imap.StatusNo, imap.StatusBad:
	default:
		return decodeErr(l, "invalid tagged response type %q", tok.Value)
	}
	if err := expectSP(l); err != nil {
		return err
	}
	code, text, err := c.readRespText(l)
	if err != nil {
		return err
	}

	if code != nil && code.caps != nil {
		c.setCaps(code.caps)
	}

	cmd := c.deletePendingCmdByTag(tag)
	if cmd == nil {
		level.Warn(c.logger).Log("msg", "tagged response for unknown command", "tag", tag)
		return nil
	}

	var cmdErr error
	if typ != imap.StatusOK {
		statusErr := &imap.StatusError{Type: typ, Text: text}
		if code != nil {
			statusErr.Code = imap.ResponseCode(code.name)
		}
		cmdErr = statusErr
	} else if code != nil {
		switch cmd := cmd.(type) {
		case *SelectCommand:
			if code.name == string(imap.ResponseCodeReadOnly) {
				cmd.data.ReadOnly = true
			}
		case *AppendCommand:
			if code.appendData != nil {
				cmd.data = *code.appendData
			}
		case *CopyCommand:
			if code.copyData != nil {
				cmd.data = *code.copyData
			}
		}
	}

	c.completeCommand(cmd, cmdErr)
	return nil
}

// completeCommand delivers the completion result and cancels any
// continuation request the command still has outstanding.
func (c *conn) completeCommand(cmd command, err error) {
	base := cmd.base()

	cancelErr := err
	if cancelErr == nil {
		cancelErr = errors.New("imapclient: command completed")
	}
	c.mutex.Lock()
	filtered := c.contReqs[:0]
	var cancel []*imapwire.ContinuationRequest
	for _, contReq := range c.contReqs {
		if contReq.cmd == base {
			cancel = append(cancel, contReq.cont)
		} else {
			filtered = append(filtered, contReq)
		}
	}
	c.contReqs = filtered
	c.mutex.Unlock()
	for _, cont := range cancel {
		cont.Cancel(cancelErr)
	}

	base.done <- err
	close(base.done)
}

func (c *conn) readUntagged(l *imapwire.Lexer) error {
	if err := expectSP(l); err != nil {
		return err
	}
	tok, err := l.Next()
	if err != nil {
		return err
	}

	if tok.Kind == imapwire.TokenNumber {
		num, err := num32(l, tok)
		if err != nil {
			return err
		}
		return c.readUntaggedNumbered(l, num)
	}
	if tok.Kind != imapwire.TokenAtom {
		return decodeErr(l, "expected untagged response type, got %v", tok.Kind)
	}

	switch strings.ToUpper(tok.Value) {
	case "OK", "NO", "BAD", "PREAUTH", "BYE":
		return c.readUntaggedStatus(l, imap.StatusResponseType(strings.ToUpper(tok.Value)))
	case "CAPABILITY":
		caps, err := readCaps(l)
		if err != nil {
			return err
		}
		if err := expectCRLF(l); err != nil {
			return err
		}
		c.setCaps(caps)
		if cmd := findPendingCmdByType[*CapabilityCommand](c); cmd != nil {
			cmd.caps = caps
		}
		return nil
	case "FLAGS":
		if err := expectSP(l); err != nil {
			return err
		}
		flags, err := readFlagList(l)
		if err != nil {
			return err
		}
		if err := expectCRLF(l); err != nil {
			return err
		}
		if cmd := findPendingCmdByType[*SelectCommand](c); cmd != nil {
			cmd.data.Flags = flags
		}
		return nil
	case "LIST", "LSUB":
		return c.readList(l)
	case "STATUS":
		return c.readStatus(l)
	case "SEARCH":
		return c.readSearch(l)
	case "ESEARCH":
		return c.readESearch(l)
	case "ENABLED":
		_, err := l.Text()
		return err
	default:
		// Unknown untagged responses are logged and skipped; extensions the
		// client never asked for must not kill the connection.
		text, err := l.Text()
		if err != nil {
			return err
		}
		level.Debug(c.logger).Log("msg", "ignoring unknown untagged response", "type", tok.Value, "text", text)
		return nil
	}
}

// readUntaggedStatus handles untagged OK/NO/BAD/PREAUTH/BYE, including the
// greeting, which is the first response on a connection.
func (c *conn) readUntaggedStatus(l *imapwire.Lexer, typ imap.StatusResponseType) error {
	if err := expectSP(l); err != nil {
		return err
	}
	code, text, err := c.readRespText(l)
	if err != nil {
		return err
	}

	c.mutex.Lock()
	greeting := c.state == connStateGreeting
	c.mutex.Unlock()
	if greeting {
		return c.handleGreeting(typ, code, text)
	}

	if code != nil {
		if code.caps != nil {
			c.setCaps(code.caps)
		}
		switch code.name {
		case string(imap.ResponseCodeAlert):
			level.Warn(c.logger).Log("msg", "server alert", "text", text)
		case string(imap.ResponseCodePermanentFlags):
			if cmd := findPendingCmdByType[*SelectCommand](c); cmd != nil {
				cmd.data.PermanentFlags = code.permanentFlags
			}
		case string(imap.ResponseCodeUIDNext):
			if cmd := findPendingCmdByType[*SelectCommand](c); cmd != nil {
				cmd.data.UIDNext = code.uidNext
			}
		case string(imap.ResponseCodeUIDValidity):
			if cmd := findPendingCmdByType[*SelectCommand](c); cmd != nil {
				cmd.data.UIDValidity = code.uidValidity
			}
		case "HIGHESTMODSEQ":
			if cmd := findPendingCmdByType[*SelectCommand](c); cmd != nil {
				cmd.data.HighestModSeq = code.highestModSeq
			}
		}
	}

	switch typ {
	case imap.StatusBye:
		c.mutex.Lock()
		closing := c.closing
		c.mutex.Unlock()
		if !closing {
			level.Warn(c.logger).Log("msg", "server closed the connection", "text", text)
		}
	case imap.StatusNo, imap.StatusBad:
		level.Info(c.logger).Log("msg", "untagged status", "type", typ, "text", text)
	}
	return nil
}

func (c *conn) handleGreeting(typ imap.StatusResponseType, code *respCode, text string) error {
	c.mutex.Lock()
	c.greetingText = text
	switch typ {
	case imap.StatusOK:
		c.state = connStateNotAuthenticated
	case imap.StatusPreAuth:
		c.state = connStateAuthenticated
		c.preauth = true
	case imap.StatusBye:
		statusErr := &imap.StatusError{Type: typ, Text: text}
		if code != nil {
			statusErr.Code = imap.ResponseCode(code.name)
		}
		c.greetingErr = statusErr
		c.state = connStateClosed
	default:
		// flushPending delivers the fatal error to greeting waiters.
		c.mutex.Unlock()
		return &imap.ProtocolError{Offset: -1, Message: fmt.Sprintf("invalid greeting type %q", typ)}
	}
	c.greetingRecv = true
	c.mutex.Unlock()

	if code != nil && code.caps != nil {
		c.setCaps(code.caps)
	}
	close(c.greetingDone)
	return nil
}

// readUntaggedNumbered handles "* <n> EXISTS|RECENT|EXPUNGE|FETCH ...".
func (c *conn) readUntaggedNumbered(l *imapwire.Lexer, num uint32) error {
	if err := expectSP(l); err != nil {
		return err
	}
	tok, err := expect(l, imapwire.TokenAtom)
	if err != nil {
		return err
	}

	switch strings.ToUpper(tok.Value) {
	case "EXISTS":
		if err := expectCRLF(l); err != nil {
			return err
		}
		if cmd := findPendingCmdByType[*SelectCommand](c); cmd != nil {
			cmd.data.NumMessages = num
		} else {
			c.handleUnilateral(&imap.UnilateralDataExists{NumMessages: num})
		}
		return nil
	case "RECENT":
		if err := expectCRLF(l); err != nil {
			return err
		}
		if cmd := findPendingCmdByType[*SelectCommand](c); cmd != nil {
			cmd.data.NumRecent = num
		} else {
			c.handleUnilateral(&imap.UnilateralDataRecent{NumRecent: num})
		}
		return nil
	case "EXPUNGE":
		if num == 0 {
			return decodeErr(l, "EXPUNGE sequence number must not be zero")
		}
		if err := expectCRLF(l); err != nil {
			return err
		}
		if cmd := findPendingCmdByType[*ExpungeCommand](c); cmd != nil {
			cmd.seqNums = append(cmd.seqNums, imap.SeqNum(num))
		} else {
			c.handleUnilateral(&imap.UnilateralDataExpunge{SeqNum: imap.SeqNum(num)})
		}
		return nil
	case "FETCH":
		if num == 0 {
			return decodeErr(l, "FETCH sequence number must not be zero")
		}
		msg, err := c.readMsgAtt(l, imap.SeqNum(num))
		if err != nil {
			return err
		}
		if err := expectCRLF(l); err != nil {
			return err
		}
		if cmd := findPendingCmdByType[*FetchCommand](c); cmd != nil {
			cmd.msgs = append(cmd.msgs, *msg)
		} else {
			c.handleUnilateral(&imap.UnilateralDataFetch{Msg: msg})
		}
		return nil
	default:
		text, err := l.Text()
		if err != nil {
			return err
		}
		level.Debug(c.logger).Log("msg", "ignoring unknown numbered response", "type", tok.Value, "text", text)
		return nil
	}
}

func (c *conn) readList(l *imapwire.Lexer) error {
	if err := expectSP(l); err != nil {
		return err
	}

	var data imap.ListData
	if _, err := expect(l, imapwire.TokenLParen); err != nil {
		return err
	}
	for {
		tok, err := l.Next()
		if err != nil {
			return err
		}
		if tok.Kind == imapwire.TokenRParen {
			break
		}
		if tok.Kind == imapwire.TokenSP {
			continue
		}
		if tok.Kind != imapwire.TokenAtom && tok.Kind != imapwire.TokenNIL {
			return decodeErr(l, "expected mailbox attribute, got %v", tok.Kind)
		}
		data.Attrs = append(data.Attrs, imap.MailboxAttr(tok.Value))
	}

	if err := expectSP(l); err != nil {
		return err
	}
	tok, err := l.Next()
	if err != nil {
		return err
	}
	switch tok.Kind {
	case imapwire.TokenQuoted:
		delim := []rune(tok.Value)
		if len(delim) != 1 {
			return decodeErr(l, "hierarchy delimiter must be a single character")
		}
		data.Delim = delim[0]
	case imapwire.TokenNIL:
		data.Delim = 0
	default:
		return decodeErr(l, "expected delimiter, got %v", tok.Kind)
	}

	if err := expectSP(l); err != nil {
		return err
	}
	name, err := readAString(l)
	if err != nil {
		return err
	}
	data.Mailbox = c.decodeMailbox(name)

	// Skip any extended data items (RFC 9051 list-extended).
	for {
		tok, err := l.Peek()
		if err != nil {
			return err
		}
		if tok.Kind == imapwire.TokenCRLF || tok.Kind == imapwire.TokenEOF {
			break
		}
		if tok.Kind == imapwire.TokenSP {
			l.Next()
			continue
		}
		if err := skipValue(l); err != nil {
			return err
		}
	}
	if err := expectCRLF(l); err != nil {
		return err
	}

	if cmd := findPendingCmdByType[*ListCommand](c); cmd != nil {
		cmd.mailboxes = append(cmd.mailboxes, data)
	}
	return nil
}

func (c *conn) readStatus(l *imapwire.Lexer) error {
	if err := expectSP(l); err != nil {
		return err
	}
	name, err := readAString(l)
	if err != nil {
		return err
	}
	data := imap.StatusData{Mailbox: c.decodeMailbox(name)}

	if err := expectSP(l); err != nil {
		return err
	}
	if _, err := expect(l, imapwire.TokenLParen); err != nil {
		return err
	}
	for {
		tok, err := l.Next()
		if err != nil {
			return err
		}
		if tok.Kind == imapwire.TokenRParen {
			break
		}
		if tok.Kind == imapwire.TokenSP {
			continue
		}
		if tok.Kind != imapwire.TokenAtom {
			return decodeErr(l, "expected status item, got %v", tok.Kind)
		}
		item := strings.ToUpper(tok.Value)
		if err := expectSP(l); err != nil {
			return err
		}
		numTok, err := expect(l, imapwire.TokenNumber)
		if err != nil {
			return err
		}
		switch item {
		case "MESSAGES":
			n, err := num32(l, numTok)
			if err != nil {
				return err
			}
			data.NumMessages = &n
		case "RECENT":
			n, err := num32(l, numTok)
			if err != nil {
				return err
			}
			data.NumRecent = &n
		case "UNSEEN":
			n, err := num32(l, numTok)
			if err != nil {
				return err
			}
			data.NumUnseen = &n
		case "UIDNEXT":
			n, err := num32(l, numTok)
			if err != nil {
				return err
			}
			data.UIDNext = imap.UID(n)
		case "UIDVALIDITY":
			n, err := num32(l, numTok)
			if err != nil {
				return err
			}
			data.UIDValidity = n
		default:
			// e.g. HIGHESTMODSEQ, SIZE: accepted and dropped
		}
	}
	if err := expectCRLF(l); err != nil {
		return err
	}

	if cmd := findPendingCmdByType[*StatusCommand](c); cmd != nil {
		cmd.data = data
		return nil
	}
	// LIST (RETURN (STATUS ...)) delivers untagged STATUS responses paired
	// with the LIST lines.
	if cmd := findPendingCmdByType[*ListCommand](c); cmd != nil {
		for i := range cmd.mailboxes {
			if cmd.mailboxes[i].Mailbox == data.Mailbox {
				status := data
				cmd.mailboxes[i].Status = &status
				break
			}
		}
	}
	return nil
}

// readSearch handles the legacy "* SEARCH 2 84 882" form.
func (c *conn) readSearch(l *imapwire.Lexer) error {
	cmd := findPendingCmdByType[*SearchCommand](c)

	// Servers may split a large result over several SEARCH lines, so
	// accumulate into the set built so far.
	var seqSet imap.SeqSet
	var uidSet imap.UIDSet
	if cmd != nil {
		switch set := cmd.data.All.(type) {
		case imap.SeqSet:
			seqSet = set
		case imap.UIDSet:
			uidSet = set
		}
	}
	var count uint32
	for {
		tok, err := l.Next()
		if err != nil {
			return err
		}
		if tok.Kind == imapwire.TokenCRLF {
			break
		}
		if tok.Kind == imapwire.TokenSP {
			continue
		}
		if tok.Kind != imapwire.TokenNumber {
			return decodeErr(l, "expected number in SEARCH response, got %v", tok.Kind)
		}
		n, err := num32(l, tok)
		if err != nil {
			return err
		}
		if n == 0 {
			return decodeErr(l, "SEARCH result must not contain zero")
		}
		count++
		if cmd != nil && cmd.uid {
			uidSet.AddNum(imap.UID(n))
		} else {
			seqSet.AddNum(imap.SeqNum(n))
		}
	}

	if cmd == nil {
		return nil
	}
	cmd.data.Count += count
	if cmd.uid {
		cmd.data.All = uidSet
	} else {
		cmd.data.All = seqSet
	}
	return nil
}

// readESearch handles the extended search response (RFC 9051 section
// 7.3.4).
func (c *conn) readESearch(l *imapwire.Lexer) error {
	var (
		tag string
		uid bool
	)
	data := imap.SearchData{}

	tok, err := l.Peek()
	if err != nil {
		return err
	}
	if tok.Kind == imapwire.TokenSP {
		l.Next()
		tok, err = l.Peek()
		if err != nil {
			return err
		}
	}
	// Optional search correlator: (TAG "A282")
	if tok.Kind == imapwire.TokenLParen {
		l.Next()
		if _, err := expect(l, imapwire.TokenAtom); err != nil {
			return err
		}
		if err := expectSP(l); err != nil {
			return err
		}
		tagTok, err := expect(l, imapwire.TokenQuoted)
		if err != nil {
			return err
		}
		tag = tagTok.Value
		if _, err := expect(l, imapwire.TokenRParen); err != nil {
			return err
		}
	}

	var all imap.NumSet
	for {
		tok, err := l.Next()
		if err != nil {
			return err
		}
		if tok.Kind == imapwire.TokenCRLF {
			break
		}
		if tok.Kind == imapwire.TokenSP {
			continue
		}
		if tok.Kind != imapwire.TokenAtom {
			return decodeErr(l, "expected ESEARCH item, got %v", tok.Kind)
		}
		item := strings.ToUpper(tok.Value)
		if item == "UID" {
			uid = true
			continue
		}
		if err := expectSP(l); err != nil {
			return err
		}
		valTok, err := l.Next()
		if err != nil {
			return err
		}
		if valTok.Kind != imapwire.TokenNumber && valTok.Kind != imapwire.TokenAtom {
			return decodeErr(l, "expected ESEARCH value, got %v", valTok.Kind)
		}
		switch item {
		case "MIN":
			if data.Min, err = num32(l, valTok); err != nil {
				return err
			}
		case "MAX":
			if data.Max, err = num32(l, valTok); err != nil {
				return err
			}
		case "COUNT":
			if data.Count, err = num32(l, valTok); err != nil {
				return err
			}
		case "MODSEQ":
			// accepted and dropped
		case "ALL":
			if uid {
				set, err := imap.ParseUIDSet(valTok.Value)
				if err != nil {
					return decodeErr(l, "invalid ESEARCH set %q: %v", valTok.Value, err)
				}
				all = set
			} else {
				set, err := imap.ParseSeqSet(valTok.Value)
				if err != nil {
					return decodeErr(l, "invalid ESEARCH set %q: %v", valTok.Value, err)
				}
				all = set
			}
		}
	}

	var cmd *SearchCommand
	if tag != "" {
		if pending := c.findPendingCmdByTag(tag); pending != nil {
			cmd, _ = pending.(*SearchCommand)
		}
	} else {
		cmd = findPendingCmdByType[*SearchCommand](c)
	}
	if cmd == nil {
		return nil
	}

	if all == nil {
		if uid {
			all = imap.UIDSet{}
		} else {
			all = imap.SeqSet{}
		}
	}
	data.All = all
	cmd.data = data
	return nil
}

func (c *conn) findPendingCmdByTag(tag string) command {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, cmd := range c.pendingCmds {
		if cmd.base().tag == tag {
			return cmd
		}
	}
	return nil
}

// readMsgAtt parses the parenthesized attribute list of an untagged FETCH
// response.
func (c *conn) readMsgAtt(l *imapwire.Lexer, seqNum imap.SeqNum) (*imap.FetchMessageData, error) {
	if err := expectSP(l); err != nil {
		return nil, err
	}
	if _, err := expect(l, imapwire.TokenLParen); err != nil {
		return nil, err
	}

	msg := &imap.FetchMessageData{SeqNum: seqNum}
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == imapwire.TokenRParen {
			return msg, nil
		}
		if tok.Kind == imapwire.TokenSP {
			continue
		}
		if tok.Kind != imapwire.TokenAtom {
			return nil, decodeErr(l, "expected fetch attribute, got %v", tok.Kind)
		}

		switch attr := strings.ToUpper(tok.Value); attr {
		case "FLAGS":
			if err := expectSP(l); err != nil {
				return nil, err
			}
			if msg.Flags, err = readFlagList(l); err != nil {
				return nil, err
			}
		case "ENVELOPE":
			if err := expectSP(l); err != nil {
				return nil, err
			}
			if msg.Envelope, err = readEnvelope(l); err != nil {
				return nil, err
			}
		case "INTERNALDATE":
			if err := expectSP(l); err != nil {
				return nil, err
			}
			dateTok, err := expect(l, imapwire.TokenQuoted)
			if err != nil {
				return nil, err
			}
			t, err := parseInternalDate(dateTok.Value)
			if err != nil {
				return nil, decodeErr(l, "invalid INTERNALDATE %q", dateTok.Value)
			}
			msg.InternalDate = t
		case "RFC822.SIZE":
			if err := expectSP(l); err != nil {
				return nil, err
			}
			sizeTok, err := expect(l, imapwire.TokenNumber)
			if err != nil {
				return nil, err
			}
			if sizeTok.Num64 > math.MaxInt64 {
				return nil, decodeErr(l, "RFC822.SIZE out of range")
			}
			msg.RFC822Size = int64(sizeTok.Num64)
		case "UID":
			if err := expectSP(l); err != nil {
				return nil, err
			}
			uidTok, err := expect(l, imapwire.TokenNumber)
			if err != nil {
				return nil, err
			}
			n, err := num32(l, uidTok)
			if err != nil {
				return nil, err
			}
			if n == 0 {
				return nil, decodeErr(l, "UID must not be zero")
			}
			msg.UID = imap.UID(n)
		case "MODSEQ":
			if err := expectSP(l); err != nil {
				return nil, err
			}
			if _, err := expect(l, imapwire.TokenLParen); err != nil {
				return nil, err
			}
			modTok, err := expect(l, imapwire.TokenNumber)
			if err != nil {
				return nil, err
			}
			msg.ModSeq = modTok.Num64
			if _, err := expect(l, imapwire.TokenRParen); err != nil {
				return nil, err
			}
		case "BODY", "BINARY":
			next, err := l.Peek()
			if err != nil {
				return nil, err
			}
			if next.Kind != imapwire.TokenLBracket {
				// BODY without a section is the non-extensible
				// BODYSTRUCTURE variant.
				if err := expectSP(l); err != nil {
					return nil, err
				}
				if err := skipValue(l); err != nil {
					return nil, err
				}
				continue
			}
			key, err := readSectionKey(l, attr)
			if err != nil {
				return nil, err
			}
			if err := expectSP(l); err != nil {
				return nil, err
			}
			b, ok, err := readNStringBytes(l)
			if err != nil {
				return nil, err
			}
			if ok {
				if msg.BodySections == nil {
					msg.BodySections = make(map[string][]byte)
				}
				msg.BodySections[key] = b
			}
		case "BODYSTRUCTURE":
			if err := expectSP(l); err != nil {
				return nil, err
			}
			if err := skipValue(l); err != nil {
				return nil, err
			}
		default:
			// Unknown attribute with a value: skip it so extensions the
			// server volunteers cannot break the parse.
			if next, err := l.Peek(); err == nil && next.Kind == imapwire.TokenSP {
				l.Next()
				if err := skipValue(l); err != nil {
					return nil, err
				}
			}
		}
	}
}

// readSectionKey consumes "[<section>]" plus an optional "<origin>" suffix
// and returns the map key as written on the wire, e.g. "BODY[HEADER]".
func readSectionKey(l *imapwire.Lexer, attr string) (string, error) {
	if _, err := expect(l, imapwire.TokenLBracket); err != nil {
		return "", err
	}
	section, err := l.SkipUntil(']')
	if err != nil {
		return "", err
	}
	if _, err := expect(l, imapwire.TokenRBracket); err != nil {
		return "", err
	}
	key := attr + "[" + section + "]"

	// A partial fetch response carries the origin octet: BODY[]<0>
	next, err := l.Peek()
	if err != nil {
		return "", err
	}
	if next.Kind == imapwire.TokenAtom && strings.HasPrefix(next.Value, "<") {
		l.Next()
		key += next.Value
	}
	return key, nil
}

func parseInternalDate(s string) (time.Time, error) {
	var t time.Time
	var err error
	for _, layout := range internalDateLayouts {
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

func readEnvelope(l *imapwire.Lexer) (*imap.Envelope, error) {
	if _, err := expect(l, imapwire.TokenLParen); err != nil {
		return nil, err
	}

	env := &imap.Envelope{}

	date, hasDate, err := readEnvField(l)
	if err != nil {
		return nil, err
	}
	if hasDate {
		// The envelope date is copied verbatim from the message header,
		// so its format tracks the sender, not the server dialect. Sloppy
		// sender software makes strict parsing a losing game; an
		// unparsable date is left as the zero time.
		if t, err := mail.ParseDate(date); err == nil {
			env.Date = t
		}
	}

	if env.Subject, _, err = readEnvField(l); err != nil {
		return nil, err
	}
	if env.From, err = readEnvAddrList(l); err != nil {
		return nil, err
	}
	if env.Sender, err = readEnvAddrList(l); err != nil {
		return nil, err
	}
	if env.ReplyTo, err = readEnvAddrList(l); err != nil {
		return nil, err
	}
	if env.To, err = readEnvAddrList(l); err != nil {
		return nil, err
	}
	if env.Cc, err = readEnvAddrList(l); err != nil {
		return nil, err
	}
	if env.Bcc, err = readEnvAddrList(l); err != nil {
		return nil, err
	}

	inReplyTo, hasInReplyTo, err := readEnvField(l)
	if err != nil {
		return nil, err
	}
	if hasInReplyTo {
		env.InReplyTo = strings.Fields(inReplyTo)
	}
	if env.MessageID, _, err = readEnvField(l); err != nil {
		return nil, err
	}

	if _, err := expect(l, imapwire.TokenRParen); err != nil {
		return nil, err
	}
	return env, nil
}

// readEnvField consumes the SP separator then an nstring.
func readEnvField(l *imapwire.Lexer) (string, bool, error) {
	tok, err := l.Peek()
	if err != nil {
		return "", false, err
	}
	if tok.Kind == imapwire.TokenSP {
		l.Next()
	}
	return readNString(l)
}

func readEnvAddrList(l *imapwire.Lexer) ([]imap.Address, error) {
	tok, err := l.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == imapwire.TokenSP {
		l.Next()
		if tok, err = l.Peek(); err != nil {
			return nil, err
		}
	}
	if tok.Kind == imapwire.TokenNIL {
		l.Next()
		return nil, nil
	}
	if _, err := expect(l, imapwire.TokenLParen); err != nil {
		return nil, err
	}

	var addrs []imap.Address
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == imapwire.TokenRParen {
			return addrs, nil
		}
		if tok.Kind == imapwire.TokenSP {
			continue
		}
		if tok.Kind != imapwire.TokenLParen {
			return nil, decodeErr(l, "expected address, got %v", tok.Kind)
		}

		var addr imap.Address
		if addr.Name, _, err = readNString(l); err != nil {
			return nil, err
		}
		// The at-domain-list (source route) is obsolete and dropped.
		if _, _, err := readEnvField(l); err != nil {
			return nil, err
		}
		if addr.Mailbox, _, err = readEnvField(l); err != nil {
			return nil, err
		}
		if addr.Host, _, err = readEnvField(l); err != nil {
			return nil, err
		}
		if _, err := expect(l, imapwire.TokenRParen); err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
}

// decodeMailbox converts a mailbox name from its wire form: modified UTF-7
// unless the server speaks UTF-8 mailbox names.
func (c *conn) decodeMailbox(name string) string {
	if c.quirkProfile().UTF8Mailboxes || !strings.ContainsRune(name, '&') {
		return name
	}
	decoded, err := utf7.Encoding.NewDecoder().String(name)
	if err != nil {
		level.Debug(c.logger).Log("msg", "mailbox name is not valid modified UTF-7", "name", name, "err", err)
		return name
	}
	return decoded
}
