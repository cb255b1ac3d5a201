package imapclient

import (
	"io"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
)

type connMetrics struct {
	Commands       metrics.Counter
	Responses      metrics.Counter
	ProtocolErrors metrics.Counter
	BytesRead      metrics.Counter
	BytesWritten   metrics.Counter
}

func newConnMetrics(reg prom.Registerer) *connMetrics {
	if reg == nil {
		return &connMetrics{
			Commands:       discard.NewCounter(),
			Responses:      discard.NewCounter(),
			ProtocolErrors: discard.NewCounter(),
			BytesRead:      discard.NewCounter(),
			BytesWritten:   discard.NewCounter(),
		}
	}

	newCounter := func(name, help string, labels []string) (*prom.CounterVec, metrics.Counter) {
		cv := prom.NewCounterVec(prom.CounterOpts{
			Namespace: "imap",
			Subsystem: "client",
			Name:      name,
			Help:      help,
		}, labels)
		return cv, kitprometheus.NewCounter(cv)
	}

	commandsVec, commands := newCounter("commands_total", "Number of commands sent", []string{"name"})
	responsesVec, responses := newCounter("responses_total", "Number of responses received", []string{"type"})
	protoErrVec, protoErrs := newCounter("protocol_errors_total", "Number of protocol violations observed", nil)
	readVec, bytesRead := newCounter("read_bytes_total", "Bytes read from the server", nil)
	writtenVec, bytesWritten := newCounter("written_bytes_total", "Bytes written to the server", nil)

	reg.MustRegister(commandsVec, responsesVec, protoErrVec, readVec, writtenVec)

	return &connMetrics{
		Commands:       commands,
		Responses:      responses,
		ProtocolErrors: protoErrs,
		BytesRead:      bytesRead,
		BytesWritten:   bytesWritten,
	}
}

// countingWriter feeds the written-bytes counter.
type countingWriter struct {
	w       io.Writer
	counter metrics.Counter
}

func (cw countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	if n > 0 {
		cw.counter.Add(float64(n))
	}
	return n, err
}
