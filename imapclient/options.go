package imapclient

import (
	"io"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"

	"github.com/driftmail/go-imap"
)

// defaultDoneTimeout bounds the IDLE DONE handshake. It sits well under
// the 29 minute idle cap common servers enforce.
const defaultDoneTimeout = 29 * time.Second

// Options contains options for Client.
type Options struct {
	// Raw ingress and egress data will be written to this writer, if any.
	DebugWriter io.Writer

	// Logger receives structured connection events. Nil discards them.
	Logger log.Logger

	// MetricsRegistry receives the connection counters. Nil discards them.
	MetricsRegistry prometheus.Registerer

	// UnilateralDataHandler is invoked from the read goroutine for server
	// data no command solicited. Nil discards the data. Handlers must not
	// block and must not issue commands.
	UnilateralDataHandler *UnilateralDataHandler

	// DoneTimeout bounds how long IdleCommand.Close waits for the server
	// to acknowledge DONE before force-closing the connection. Zero means
	// defaultDoneTimeout.
	DoneTimeout time.Duration
}

func (options *Options) wrapReadWriter(rw io.ReadWriter) io.ReadWriter {
	if options.DebugWriter == nil {
		return rw
	}
	return struct {
		io.Reader
		io.Writer
	}{
		Reader: io.TeeReader(rw, options.DebugWriter),
		Writer: io.MultiWriter(rw, options.DebugWriter),
	}
}

func (options *Options) logger() log.Logger {
	if options.Logger == nil {
		return log.NewNopLogger()
	}
	return log.With(options.Logger, "conn_id", xid.New().String())
}

func (options *Options) doneTimeout() time.Duration {
	if options.DoneTimeout <= 0 {
		return defaultDoneTimeout
	}
	return options.DoneTimeout
}

// UnilateralDataHandler holds the callbacks for unsolicited server data
// received between commands. During IDLE the same data is also delivered
// on the IdleCommand update stream.
type UnilateralDataHandler struct {
	Exists  func(numMessages uint32)
	Recent  func(numRecent uint32)
	Expunge func(seqNum imap.SeqNum)
	Fetch   func(msg *imap.FetchMessageData)
}

func (h *UnilateralDataHandler) dispatch(data imap.UnilateralData) {
	if h == nil {
		return
	}
	switch data := data.(type) {
	case *imap.UnilateralDataExists:
		if h.Exists != nil {
			h.Exists(data.NumMessages)
		}
	case *imap.UnilateralDataRecent:
		if h.Recent != nil {
			h.Recent(data.NumRecent)
		}
	case *imap.UnilateralDataExpunge:
		if h.Expunge != nil {
			h.Expunge(data.SeqNum)
		}
	case *imap.UnilateralDataFetch:
		if h.Fetch != nil {
			h.Fetch(data.Msg)
		}
	}
}
