package siomodem

import (
	"time"

	"github.com/nayarsystems/iotrace"
)

const (
	// Every chunk reaches the sniffer as it crosses the call, so nothing
	// is left buffered in the tracer when the call is closed.
	traceChunkSize    = 1
	traceFlushTimeout = time.Minute
)

// tracedConn hands the bytes that cross a call to the sniffer, as they
// appear on the wire.
type tracedConn struct {
	Conn
	tracer *iotrace.RWCTracer
}

func newTracedConn(c Conn, s Sniffer) *tracedConn {
	return &tracedConn{
		Conn:   c,
		tracer: iotrace.NewRWCTracer(c, traceChunkSize, traceFlushTimeout, s.DumpOutput, s.DumpInput),
	}
}

func (t *tracedConn) Read(p []byte) (int, error) {
	return t.tracer.Read(p)
}

func (t *tracedConn) Write(p []byte) (int, error) {
	return t.tracer.Write(p)
}

func (t *tracedConn) Close() error {
	return t.tracer.Close()
}
