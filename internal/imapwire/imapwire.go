// Package imapwire implements the client side of the IMAP wire protocol:
// a sans-I/O lexer and frame scanner for server responses, and a command
// encoder.
//
// The wire protocol is defined in RFC 9051 section 4. Nothing in this
// package performs I/O: the frame scanner measures complete responses in a
// caller-owned buffer and the encoder writes to a caller-supplied buffered
// writer.
package imapwire

import (
	"fmt"
)

// ContinuationRequest is a pending "+" continuation request.
//
// The read loop must call either Done or Cancel. The writer blocked on the
// literal calls Wait.
type ContinuationRequest struct {
	done chan struct{}
	err  error
	text string
}

func NewContinuationRequest() *ContinuationRequest {
	return &ContinuationRequest{done: make(chan struct{})}
}

func (cont *ContinuationRequest) Cancel(err error) {
	if err == nil {
		err = fmt.Errorf("imapwire: continuation request cancelled")
	}
	cont.err = err
	close(cont.done)
}

func (cont *ContinuationRequest) Done(text string) {
	cont.text = text
	close(cont.done)
}

func (cont *ContinuationRequest) Wait() (string, error) {
	<-cont.done
	return cont.text, cont.err
}
