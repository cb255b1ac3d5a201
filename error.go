package imap

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// ErrTagsExhausted is returned when a connection's tag counter reaches its
// maximum. Tags are never reused or wrapped within a connection's lifetime:
// the connection must be torn down and replaced.
var ErrTagsExhausted = errors.New("imap: command tag space exhausted")

// ErrConnClosing is delivered to commands still pending when the connection
// is shut down (logout or transport teardown).
var ErrConnClosing = errors.New("imap: connection is closing")

// StatusResponseType is the condition of a status response: OK, NO, BAD,
// PREAUTH or BYE.
type StatusResponseType string

const (
	StatusOK      StatusResponseType = "OK"
	StatusNo      StatusResponseType = "NO"
	StatusBad     StatusResponseType = "BAD"
	StatusPreAuth StatusResponseType = "PREAUTH"
	StatusBye     StatusResponseType = "BYE"
)

// ResponseCode is a bracketed machine-readable code in a status response,
// e.g. "ALERT" or "TRYCREATE".
type ResponseCode string

const (
	ResponseCodeAlert          ResponseCode = "ALERT"
	ResponseCodeAlreadyExists  ResponseCode = "ALREADYEXISTS"
	ResponseCodeAuthFailed     ResponseCode = "AUTHENTICATIONFAILED"
	ResponseCodeCapability     ResponseCode = "CAPABILITY"
	ResponseCodeNonExistent    ResponseCode = "NONEXISTENT"
	ResponseCodePermanentFlags ResponseCode = "PERMANENTFLAGS"
	ResponseCodeReadOnly       ResponseCode = "READ-ONLY"
	ResponseCodeReadWrite      ResponseCode = "READ-WRITE"
	ResponseCodeTryCreate      ResponseCode = "TRYCREATE"
	ResponseCodeUIDNext        ResponseCode = "UIDNEXT"
	ResponseCodeUIDValidity    ResponseCode = "UIDVALIDITY"
	ResponseCodeUnavailable    ResponseCode = "UNAVAILABLE"
)

// StatusError is a tagged NO or BAD completion. It is not fatal: the
// connection and its state are unchanged and the caller may retry or issue
// a different command.
type StatusError struct {
	Type StatusResponseType
	Code ResponseCode
	Text string
}

func (err *StatusError) Error() string {
	if err.Code != "" {
		return fmt.Sprintf("imap: server responded %v [%v] %v", err.Type, err.Code, err.Text)
	}
	return fmt.Sprintf("imap: server responded %v %v", err.Type, err.Text)
}

// ProtocolError is a violation of the IMAP grammar or semantics: malformed
// syntax, an unexpected token, a UID or sequence number of zero. It is
// fatal: the stream position can no longer be trusted and the connection
// must be closed.
type ProtocolError struct {
	// Offset is the byte offset within the response where the violation was
	// detected, or -1 when not applicable.
	Offset  int64
	Message string
}

func (err *ProtocolError) Error() string {
	if err.Offset >= 0 {
		return fmt.Sprintf("imap: protocol error at offset %v: %v", err.Offset, err.Message)
	}
	return fmt.Sprintf("imap: protocol error: %v", err.Message)
}

// LiteralTooLargeError is returned when a server declares a literal longer
// than the permitted ceiling. The check happens on the declared length,
// before any buffer for the payload exists. Fatal: the connection is closed
// because resynchronizing past an unread literal is not possible.
type LiteralTooLargeError struct {
	Size int64
	Max  int64
}

func (err *LiteralTooLargeError) Error() string {
	return fmt.Sprintf("imap: literal of %s exceeds the %s ceiling",
		humanize.IBytes(uint64(err.Size)), humanize.IBytes(uint64(err.Max)))
}

// TimeoutError is returned when an operation exceeds its configured
// deadline, e.g. the IDLE DONE handshake. The operation is dead and the
// transport has been force-closed; the caller decides whether to retry on a
// fresh connection.
type TimeoutError struct {
	Op       string
	Duration time.Duration
}

func (err *TimeoutError) Error() string {
	return fmt.Sprintf("imap: %v timed out after %v", err.Op, err.Duration)
}
