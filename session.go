package siomodem

import (
	"context"
	"fmt"
	"time"

	"github.com/jaracil/siomodem/internal/telnet"
)

const idleInterval = time.Millisecond

// busyMessage is sent to callers that arrive while a call is active.
const busyMessage = "The MODEM is currently serving another caller. Please try again later.\r\n\x9b"

// telnetBridge routes Telnet engine events to the modem.
type telnetBridge struct {
	m *Modem
}

func (b telnetBridge) OnData(p []byte) {
	b.m.busWrite(p)
}

func (b telnetBridge) OnSend(p []byte) {
	b.m.connWrite(p)
}

// OnNegotiate tracks who echoes: a remote that will echo relieves us of it.
func (b telnetBridge) OnNegotiate(option, cmd byte) {
	if option != telnet.Echo {
		return
	}
	switch cmd {
	case telnet.WILL:
		b.m.localEcho = false
	case telnet.WONT:
		b.m.localEcho = true
	}
}

func (b telnetBridge) OnTerminalTypeRequest() string {
	return b.m.termType
}

// resetTelnet replaces the Telnet engine so no option state survives a call.
func (m *Modem) resetTelnet() {
	m.tn = telnet.New(telnetBridge{m}, telnet.DefaultPolicies, m.log)
	m.localEcho = false
}

// Run drives the modem until ctx is done or the bus fails.
func (m *Modem) Run(ctx context.Context) error {
	m.log.Info("Modem running", "baud", m.baud, "listen_port", m.listenPort, "telnet", m.useTelnet)
	idle := time.NewTicker(idleInterval)
	defer idle.Stop()
	for {
		if ctx.Err() != nil {
			return nil
		}
		busy, err := m.Step()
		if err != nil {
			return err
		}
		if busy {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-idle.C:
		}
	}
}

// Step dispatches one pending command frame or, when there is none, runs one
// tick of the session. It reports whether any work was done. An error means
// the bus is gone.
func (m *Modem) Step() (bool, error) {
	if f, ok := m.bus.Frame(); ok {
		m.Dispatch(f)
		return true, nil
	}
	return m.Tick()
}

// Tick runs one pass of the session: command text assembly or call relay,
// then escape expiry and carrier loss checks.
func (m *Modem) Tick() (bool, error) {
	var busy bool
	var err error
	if m.mode == CommandMode {
		busy, err = m.commandTick()
	} else {
		busy, err = m.connectedTick()
	}
	if err != nil {
		return busy, fmt.Errorf("bus read: %w", err)
	}

	if m.mode == ConnectedMode && m.escape.Expired(m.now()) {
		m.log.Info("Escape sequence, back to command mode")
		m.endCall(false)
		busy = true
	}
	if m.mode == ConnectedMode && !m.conn.Connected() {
		m.log.Info("Remote hung up")
		m.endCall(true)
		busy = true
	}
	return busy, nil
}

func (m *Modem) commandTick() (bool, error) {
	if m.answerHack {
		m.answerHack = false
		m.execute("ATA")
		return true, nil
	}

	if m.listener != nil && m.listener.HasClient() {
		if m.autoAnswer {
			m.answer()
			return true, nil
		}
		now := m.now()
		if m.lastRing.IsZero() || now.Sub(m.lastRing) >= m.ringInterval {
			m.printRetCode(RetCodeRing)
			m.lastRing = now
		}
	}

	var b [1]byte
	n, err := m.bus.Read(b[:])
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	m.metrics.BusRxBytes++
	m.commandByte(b[0])
	return true, nil
}

// commandByte adds one typed character to the command line.
func (m *Modem) commandByte(c byte) {
	switch {
	case c == asciiLF || c == asciiCR || c == atasciiEOL:
		m.eolAtascii = c == atasciiEOL
		line := string(m.cmdBuf)
		m.cmdBuf = m.cmdBuf[:0]
		m.execute(line)

	case c == asciiBS || c == asciiDEL:
		if len(m.cmdBuf) > 0 {
			m.cmdBuf = m.cmdBuf[:len(m.cmdBuf)-1]
			if m.echo {
				m.busWrite([]byte{asciiBS, ' ', asciiBS})
			}
		}

	case c == atasciiBS:
		if len(m.cmdBuf) > 0 {
			m.cmdBuf = m.cmdBuf[:len(m.cmdBuf)-1]
			if m.echo {
				m.busWrite([]byte{atasciiBS})
			}
		}

	case c == atasciiClear || (c >= atasciiCursorU && c <= atasciiCursorR):
		if m.echo {
			m.busWrite([]byte{c})
		}

	default:
		if len(m.cmdBuf) < maxCommandLength {
			m.cmdBuf = append(m.cmdBuf, c)
		}
		if m.echo {
			m.busWrite([]byte{c})
		}
	}
}

func (m *Modem) connectedTick() (bool, error) {
	var busy bool
	if m.listener != nil && m.listener.HasClient() {
		m.rejectCaller()
		busy = true
	}

	out, err := m.relayOut()
	if err != nil {
		return busy, err
	}
	in := m.relayIn()
	return busy || out || in, nil
}

// rejectCaller turns away a second caller.
func (m *Modem) rejectCaller() {
	c, err := m.listener.Accept()
	if err != nil {
		return
	}
	if _, err := c.Write([]byte(busyMessage)); err != nil {
		m.log.Debug("Writing busy message", "error", err)
	}
	c.Close()
	m.metrics.RejectedConns++
	m.log.Info("Rejected caller", "error", ErrBusy)
}

// relayOut moves up to one chunk from the bus to the call.
func (m *Modem) relayOut() (bool, error) {
	avail := m.bus.Available()
	if avail == 0 || !m.conn.Connected() {
		return false, nil
	}
	if avail > txChunkSize {
		avail = txChunkSize
	}
	buf := make([]byte, avail)
	n, err := m.bus.Read(buf)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	buf = buf[:n]
	m.metrics.BusRxBytes += n

	m.escape.Scan(buf, m.now())
	m.sendOutbound(buf)
	if m.useTelnet && m.localEcho {
		m.busWrite(buf)
	}
	return true, nil
}

// sendOutbound writes Atari data to the call. It never writes to the bus, so
// it is safe inside a bus transaction.
func (m *Modem) sendOutbound(p []byte) {
	if m.useTelnet {
		m.tn.Send(p)
	} else {
		m.connWrite(p)
	}
}

// relayIn moves everything the call has buffered to the bus.
func (m *Modem) relayIn() bool {
	var busy bool
	buf := make([]byte, rxChunkSize)
	for m.conn != nil && m.conn.Available() > 0 {
		n, err := m.conn.Read(buf)
		if n == 0 || err != nil {
			break
		}
		data := buf[:n]
		m.metrics.ConnRxBytes += n
		if m.useTelnet {
			m.tn.Recv(data)
		} else {
			m.busWrite(data)
		}
		busy = true
	}
	if busy {
		if err := m.bus.Flush(); err != nil {
			m.log.Debug("Bus flush failed", "error", err)
		}
	}
	return busy
}

func (m *Modem) connWrite(p []byte) {
	if m.conn == nil || len(p) == 0 {
		return
	}
	n, err := m.conn.Write(p)
	m.metrics.ConnTxBytes += n
	if err != nil {
		m.log.Debug("Call write failed", "error", err)
	}
}
