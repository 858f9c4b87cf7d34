// Package sniffer records the traffic the modem relays during a call.
package sniffer

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/jaracil/nagle"
)

// Capture file writes are coalesced; a partial block is written after
// fileFlushTimeout of quiet or when the sniffer is closed.
const (
	fileBufferSize   = 4096
	fileFlushTimeout = 200 * time.Millisecond
)

// Sniffer writes a timestamped hex dump of each relayed chunk while enabled.
// It is safe for concurrent use.
type Sniffer struct {
	mu      sync.Mutex
	w       io.WriteCloser
	enabled bool
	now     func() time.Time
}

// New returns a sniffer writing to w. Close closes w.
func New(w io.WriteCloser, enabled bool) *Sniffer {
	return &Sniffer{w: w, enabled: enabled, now: time.Now}
}

// Create opens (or appends to) the capture file at path. Writes to the file
// are coalesced.
func Create(path string, enabled bool) (*Sniffer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening sniffer file: %w", err)
	}
	return New(nagle.NewNagleWrapper(f, fileBufferSize, fileFlushTimeout), enabled), nil
}

// DumpOutput records bytes sent from the Atari to the network.
func (s *Sniffer) DumpOutput(p []byte) {
	s.dump("OUT", p)
}

// DumpInput records bytes received from the network for the Atari.
func (s *Sniffer) DumpInput(p []byte) {
	s.dump("IN", p)
}

func (s *Sniffer) dump(dir string, p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled || s.w == nil || len(p) == 0 {
		return
	}
	fmt.Fprintf(s.w, "%s %s %d bytes\n", s.now().Format("15:04:05.000"), dir, len(p))
	io.WriteString(s.w, hex.Dump(p))
}

// SetEnable starts or stops recording.
func (s *Sniffer) SetEnable(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// Enabled reports whether the sniffer is recording.
func (s *Sniffer) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Close flushes and closes the capture. Later dumps are dropped.
func (s *Sniffer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return nil
	}
	err := s.w.Close()
	s.w = nil
	return err
}
