// Package stream turns blocking byte sources (sockets, serial ports, ptys)
// into buffers that can be polled without blocking.
package stream

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"
)

// ErrTimeout is returned by ReadFull when the requested bytes did not arrive in time.
var ErrTimeout = errors.New("stream: read timeout")

// Buffer accumulates bytes written by a producer goroutine and hands them
// to a consumer that never blocks, except in ReadFull.
type Buffer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	err    error
	notify chan struct{}
}

// NewBuffer returns an empty, open buffer.
func NewBuffer() *Buffer {
	return &Buffer{notify: make(chan struct{}, 1)}
}

func (b *Buffer) signal() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Write appends p. It fails once the buffer has been closed.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	if b.err != nil {
		err := b.err
		b.mu.Unlock()
		return 0, err
	}
	n, _ := b.buf.Write(p)
	b.mu.Unlock()
	b.signal()
	return n, nil
}

// CloseWithError marks the producer side as finished. Buffered bytes stay
// readable; err is reported once they are drained. A nil err means io.EOF.
func (b *Buffer) CloseWithError(err error) {
	if err == nil {
		err = io.EOF
	}
	b.mu.Lock()
	if b.err == nil {
		b.err = err
	}
	b.mu.Unlock()
	b.signal()
}

// Available returns the number of buffered bytes.
func (b *Buffer) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

// Err returns the error the producer closed with, if any.
func (b *Buffer) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Read copies what is buffered right now into p. With nothing buffered it
// returns 0 and the close error (nil while the producer is alive).
func (b *Buffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf.Len() == 0 {
		return 0, b.err
	}
	return b.buf.Read(p)
}

// ReadFull waits up to timeout for len(p) bytes.
func (b *Buffer) ReadFull(p []byte, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		b.mu.Lock()
		if b.buf.Len() >= len(p) {
			_, _ = b.buf.Read(p)
			b.mu.Unlock()
			return nil
		}
		err := b.err
		b.mu.Unlock()
		if err != nil {
			return err
		}
		select {
		case <-b.notify:
		case <-deadline.C:
			return ErrTimeout
		}
	}
}

// Pump copies r into b until r fails, then closes b with that error.
// It is meant to run on its own goroutine.
func Pump(r io.Reader, b *Buffer, chunk int) {
	p := make([]byte, chunk)
	for {
		n, err := r.Read(p)
		if n > 0 {
			if _, werr := b.Write(p[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			b.CloseWithError(err)
			return
		}
	}
}
