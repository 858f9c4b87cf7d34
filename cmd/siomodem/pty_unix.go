package main

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/jaracil/siomodem/internal/stream"
	"github.com/jaracil/siomodem/sio"
)

// UnixPty is a POSIX compliant Unix pseudo-terminal.
type UnixPty struct {
	master, slave *os.File
	closed        bool
}

// Close closes both ends.
func (p *UnixPty) Close() error {
	if p.closed {
		return nil
	}
	defer func() {
		p.closed = true
	}()
	return errors.Join(p.master.Close(), p.slave.Close())
}

// Name returns the path terminal programs open.
func (p *UnixPty) Name() string {
	return p.slave.Name()
}

func (p *UnixPty) Read(b []byte) (n int, err error) {
	return p.master.Read(b)
}

func (p *UnixPty) Write(b []byte) (n int, err error) {
	return p.master.Write(b)
}

func (p *UnixPty) Master() *os.File {
	return p.master
}

func (p *UnixPty) Fd() uintptr {
	return p.master.Fd()
}

// IsSlaveClosed checks if the slave end has no readers/writers.
func (p *UnixPty) IsSlaveClosed() (bool, error) {
	fds := []unix.PollFd{{
		Fd:     int32(p.master.Fd()),
		Events: unix.POLLOUT,
	}}

	_, err := unix.Poll(fds, 0) // No wait
	if err != nil {
		return false, err
	}

	// POLLHUP indicates that the slave has no processes with it open
	return (fds[0].Revents & unix.POLLHUP) != 0, nil
}

// NewPty creates a new UnixPty.
func NewPty() (*UnixPty, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, err
	}

	return &UnixPty{
		master: master,
		slave:  slave,
	}, nil
}

// PtyBus is a Bus without a SIO side: a terminal program on the pty types AT
// commands and sees the call data, which is enough to exercise the modem
// without Atari hardware. It never delivers command frames.
type PtyBus struct {
	pty *UnixPty
	rx  *stream.Buffer
	log *slog.Logger
}

// NewPtyBus opens a pseudo-terminal and starts pumping its input.
func NewPtyBus(logger *slog.Logger) (*PtyBus, error) {
	p, err := NewPty()
	if err != nil {
		return nil, err
	}
	b := &PtyBus{pty: p, rx: stream.NewBuffer(), log: logger}
	go stream.Pump(p, b.rx, 256)
	return b, nil
}

func (b *PtyBus) Name() string {
	return b.pty.Name()
}

func (b *PtyBus) Frame() (sio.CommandFrame, bool) {
	return sio.CommandFrame{}, false
}

func (b *PtyBus) Available() int {
	return b.rx.Available()
}

func (b *PtyBus) Read(p []byte) (int, error) {
	return b.rx.Read(p)
}

func (b *PtyBus) ReadFull(p []byte, timeout time.Duration) error {
	return b.rx.ReadFull(p, timeout)
}

// Write drops the output while no terminal has the pty open, so a full pty
// buffer cannot stall the modem.
func (b *PtyBus) Write(p []byte) (int, error) {
	if closed, err := b.pty.IsSlaveClosed(); err == nil && closed {
		return len(p), nil
	}
	return b.pty.Write(p)
}

func (b *PtyBus) SetBaud(baud int) error {
	b.log.Debug("Baud change ignored on pty", "baud", baud)
	return nil
}

func (b *PtyBus) Flush() error {
	return nil
}

func (b *PtyBus) Close() error {
	b.rx.CloseWithError(os.ErrClosed)
	return b.pty.Close()
}
