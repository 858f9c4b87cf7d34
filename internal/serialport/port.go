// Package serialport attaches the modem to a real SIO bus through a USB
// serial adapter. The adapter reports the SIO COMMAND line on one of its
// modem status inputs; bytes received while it is asserted form command
// frames, everything else is payload.
package serialport

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/jaracil/siomodem/internal/stream"
	"github.com/jaracil/siomodem/sio"
)

// CommandLine selects which modem status input carries the SIO COMMAND signal.
type CommandLine int

const (
	CommandRI CommandLine = iota
	CommandDSR
	CommandCTS
)

func (c CommandLine) String() string {
	switch c {
	case CommandRI:
		return "ri"
	case CommandDSR:
		return "dsr"
	case CommandCTS:
		return "cts"
	default:
		return fmt.Sprintf("CommandLine(%d)", int(c))
	}
}

// ParseCommandLine maps "ri", "dsr" or "cts" to a CommandLine.
func ParseCommandLine(s string) (CommandLine, error) {
	switch strings.ToLower(s) {
	case "", "ri":
		return CommandRI, nil
	case "dsr":
		return CommandDSR, nil
	case "cts":
		return CommandCTS, nil
	}
	return 0, fmt.Errorf("unknown command line %q", s)
}

func (c CommandLine) asserted(bits *serial.ModemStatusBits) bool {
	if bits == nil {
		return false
	}
	switch c {
	case CommandDSR:
		return bits.DSR
	case CommandCTS:
		return bits.CTS
	default:
		return bits.RI
	}
}

const (
	pollInterval = 5 * time.Millisecond
	frameQueue   = 8
	readChunk    = 256
)

// ErrClosed is returned by reads once the port has been closed.
var ErrClosed = errors.New("serialport: port closed")

// Port is a siomodem.Bus over a serial SIO adapter. A reader goroutine
// separates command frames, sent while the command line is asserted, from
// stream data.
type Port struct {
	port    serial.Port
	line    CommandLine
	log     *slog.Logger
	data    *stream.Buffer
	frames  chan sio.CommandFrame
	done    chan struct{}
	closeMu sync.Mutex
	closed  bool
	wg      sync.WaitGroup
}

// Open opens name at baud (8N1) and starts the receive pump.
func Open(name string, baud int, line CommandLine, logger *slog.Logger) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	sp, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", name, err)
	}
	if err := sp.SetReadTimeout(pollInterval); err != nil {
		sp.Close()
		return nil, fmt.Errorf("setting read timeout: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Serial port opened", "port", name, "baud", baud, "command_line", line)
	return newPort(sp, line, logger), nil
}

func newPort(sp serial.Port, line CommandLine, logger *slog.Logger) *Port {
	p := &Port{
		port:   sp,
		line:   line,
		log:    logger,
		data:   stream.NewBuffer(),
		frames: make(chan sio.CommandFrame, frameQueue),
		done:   make(chan struct{}),
	}
	p.wg.Add(1)
	go p.pump()
	return p
}

func (p *Port) pump() {
	defer p.wg.Done()
	buf := make([]byte, readChunk)
	var frame []byte
	for {
		select {
		case <-p.done:
			p.data.CloseWithError(ErrClosed)
			return
		default:
		}

		bits, err := p.port.GetModemStatusBits()
		if err != nil {
			p.log.Error("Reading modem status bits", "error", err)
			p.data.CloseWithError(err)
			return
		}
		command := p.line.asserted(bits)

		n, err := p.port.Read(buf)
		if err != nil {
			select {
			case <-p.done:
				p.data.CloseWithError(ErrClosed)
			default:
				p.log.Error("Reading serial port", "error", err)
				p.data.CloseWithError(err)
			}
			return
		}

		if !command {
			if len(frame) > 0 {
				p.log.Debug("Dropping partial command frame", "bytes", len(frame))
				frame = frame[:0]
			}
			if n > 0 {
				_, _ = p.data.Write(buf[:n])
			}
			continue
		}

		frame = append(frame, buf[:n]...)
		for len(frame) >= sio.FrameSize {
			f, err := sio.Decode(frame[:sio.FrameSize])
			if err != nil {
				p.log.Debug("Discarding command frame", "error", err, "frame", fmt.Sprintf("% X", frame[:sio.FrameSize]))
			} else {
				select {
				case p.frames <- f:
				default:
					p.log.Warn("Command frame queue full, dropping frame", "frame", f)
				}
			}
			frame = frame[sio.FrameSize:]
		}
	}
}

// Frame returns the next decoded command frame, if any.
func (p *Port) Frame() (sio.CommandFrame, bool) {
	select {
	case f := <-p.frames:
		return f, true
	default:
		return sio.CommandFrame{}, false
	}
}

func (p *Port) Available() int {
	return p.data.Available()
}

func (p *Port) Read(b []byte) (int, error) {
	return p.data.Read(b)
}

func (p *Port) ReadFull(b []byte, timeout time.Duration) error {
	return p.data.ReadFull(b, timeout)
}

func (p *Port) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// SetBaud changes the line rate, keeping 8N1.
func (p *Port) SetBaud(baud int) error {
	p.log.Debug("Changing serial baud rate", "baud", baud)
	return p.port.SetMode(&serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
}

// Flush waits until written bytes have left the adapter.
func (p *Port) Flush() error {
	return p.port.Drain()
}

func (p *Port) Close() error {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)
	p.closeMu.Unlock()
	err := p.port.Close()
	p.wg.Wait()
	return err
}
