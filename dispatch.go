package siomodem

import (
	"github.com/jaracil/siomodem/sio"
)

type busHandler struct {
	// ack is sent by Dispatch before fn runs. Handlers without it signal
	// for themselves, or stay silent.
	ack bool
	fn  func(m *Modem, f sio.CommandFrame)
}

var busHandlers = map[sio.Command]busHandler{
	sio.CmdLoadRelocator: {fn: (*Modem).handleLoadRelocator},
	sio.CmdLoadHandler:   {fn: (*Modem).handleLoadHandler},
	sio.CmdType1Poll:     {fn: (*Modem).handleType1Poll},
	sio.CmdType3Poll:     {fn: (*Modem).handleType3Poll},
	sio.CmdControl:       {ack: true, fn: (*Modem).handleControl},
	sio.CmdConfigure:     {ack: true, fn: (*Modem).handleConfigure},
	sio.CmdSetDump:       {ack: true, fn: (*Modem).handleSetDump},
	sio.CmdListen:        {fn: (*Modem).handleListen},
	sio.CmdUnlisten:      {fn: (*Modem).handleUnlisten},
	sio.CmdBaudLock:      {fn: (*Modem).handleBaudLock},
	sio.CmdAutoAnswer:    {fn: (*Modem).handleAutoAnswer},
	sio.CmdStatus:        {ack: true, fn: (*Modem).handleStatus},
	sio.CmdWrite:         {ack: true, fn: (*Modem).handleWrite},
	sio.CmdStream:        {ack: true, fn: (*Modem).handleStream},
}

// streamTables holds the POKEY AUDF1/AUDF3 divisor bytes per baud rate.
var streamTables = map[int][2]byte{
	300:   {0xA0, 0x0B},
	600:   {0xCC, 0x05},
	1200:  {0xE3, 0x02},
	1800:  {0xEA, 0x01},
	2400:  {0x6E, 0x01},
	4800:  {0xB3, 0x00},
	9600:  {0x56, 0x00},
	19200: {0x28, 0x00},
}

// Dispatch handles one SIO command frame addressed to the bus. Frames for
// other devices are ignored. Unknown commands are answered with NAK and
// change nothing.
func (m *Modem) Dispatch(f sio.CommandFrame) {
	switch {
	case f.Device == sio.DeviceRS232:
	case f.Device == sio.DevicePoll && f.Command == sio.CmdType3Poll:
	default:
		return
	}
	m.metrics.Frames++
	m.log.Debug("SIO command", "frame", f)

	h, ok := busHandlers[f.Command]
	if !ok {
		m.log.Debug("Unknown SIO command", "cmd", f.Command)
		m.signal(sio.Nak)
		return
	}
	if h.ack {
		m.signal(sio.Ack)
	}
	h.fn(m, f)
}

func (m *Modem) signal(s sio.Signal) {
	if s == sio.Nak {
		m.metrics.Naks++
	}
	m.busWrite([]byte{byte(s)})
}

// sendToComputer completes a command with a data block and its checksum.
func (m *Modem) sendToComputer(data []byte) {
	m.busWrite(append([]byte{byte(sio.Complete)}, sio.AppendChecksum(data)...))
	if err := m.bus.Flush(); err != nil {
		m.log.Warn("Bus flush failed", "error", err)
	}
}

func (m *Modem) handleControl(f sio.CommandFrame) {
	if f.Aux1&0x02 != 0 {
		m.xmt = f.Aux1&0x01 != 0
	}
	if f.Aux1&0x20 != 0 {
		m.rts = f.Aux1&0x10 != 0
	}
	if f.Aux1&0x80 != 0 {
		m.dtr = f.Aux1&0x40 != 0
		if !m.dtr && m.callActive() {
			m.log.Info("DTR dropped, hanging up")
			m.endCall(false)
		}
	}
	m.log.Debug("Control lines", "dtr", m.dtr, "rts", m.rts, "xmt", m.xmt)
	m.signal(sio.Complete)
}

func (m *Modem) handleConfigure(f sio.CommandFrame) {
	m.signal(sio.Complete)
	if m.baudLock {
		return
	}
	nibble := f.Aux1 & 0x0F
	if nibble < 0x08 {
		m.metrics.BadBaudConfigs++
		m.log.Warn("Unexpected baud value, falling back to 300", "value", nibble)
		m.baud = 300
		return
	}
	m.baud = baudRates[nibble-0x08]
	m.log.Debug("Baud configured", "baud", m.baud)
}

func (m *Modem) handleSetDump(f sio.CommandFrame) {
	m.sniffer.SetEnable(f.Aux1 != 0)
	m.signal(sio.Complete)
}

func (m *Modem) handleListen(f sio.CommandFrame) {
	if m.listener != nil {
		m.dropConn()
	}
	m.stopListening()
	port := int(f.Aux())
	if port == 0 {
		m.signal(sio.Nak)
		return
	}
	m.signal(sio.Ack)
	if err := m.listen(port); err != nil {
		m.signal(sio.Error)
		return
	}
	m.signal(sio.Complete)
}

func (m *Modem) handleUnlisten(sio.CommandFrame) {
	m.signal(sio.Ack)
	m.dropConn()
	m.stopListening()
	m.signal(sio.Complete)
}

func (m *Modem) handleBaudLock(f sio.CommandFrame) {
	m.signal(sio.Ack)
	m.baudLock = f.Aux1 > 0
	m.log.Debug("Baud lock", "locked", m.baudLock)
	m.signal(sio.Complete)
}

func (m *Modem) handleAutoAnswer(f sio.CommandFrame) {
	m.signal(sio.Ack)
	m.autoAnswer = f.Aux1 > 0
	m.log.Debug("Auto answer", "enabled", m.autoAnswer)
	m.signal(sio.Complete)
}

// handleStatus reports the line state. Byte 1 bits 7-4 carry DSR and CTS
// (always high), bits 3-2 the connection and bit 0 pending receive data.
func (m *Modem) handleStatus(sio.CommandFrame) {
	status := [2]byte{0x00, 0xF0}
	if m.conn != nil && m.conn.Connected() {
		status[1] |= 0x0C
	}
	pending := m.listener != nil && m.listener.HasClient()
	if (m.conn != nil && m.conn.Available() > 0) || pending {
		status[1] |= 0x01
	}

	if m.autoAnswer && pending && !m.callActive() {
		m.active = true
		m.sleep(m.answerSettle)
		m.answer()
	}
	m.sendToComputer(status[:])
}

func (m *Modem) handleWrite(f sio.CommandFrame) {
	if f.Aux1 == 0 {
		m.signal(sio.Complete)
		return
	}

	buf := make([]byte, writePayloadSize+1)
	if err := m.bus.ReadFull(buf, m.payloadTimeout); err != nil {
		m.log.Warn("WRITE payload not received", "error", err)
		m.signal(sio.Error)
		return
	}
	payload := buf[:writePayloadSize]
	if sio.Checksum(payload) != buf[writePayloadSize] {
		m.metrics.ChecksumErrors++
		m.log.Warn("WRITE payload rejected", "error", ErrChecksum)
		m.signal(sio.Error)
		return
	}

	n := int(f.Aux1)
	if n > writePayloadSize {
		n = writePayloadSize
	}
	data := payload[:n]

	if m.mode == CommandMode {
		line := string(data)
		m.cmdOutput = false
		if line == "ATA\r" {
			m.answerHack = true
		} else {
			m.execute(line)
		}
		m.cmdOutput = true
	} else if m.conn != nil && m.conn.Connected() {
		m.sendOutbound(data)
	}
	m.signal(sio.Complete)
}

func (m *Modem) handleStream(sio.CommandFrame) {
	response := []byte{0x28, 0xA0, 0x00, 0xA0, 0x28, 0xA0, 0x00, 0xA0, 0x78}
	if t, ok := streamTables[m.baud]; ok {
		response[0], response[4] = t[0], t[0]
		response[2], response[6] = t[1], t[1]
	}
	m.sendToComputer(response)

	if err := m.bus.SetBaud(m.baud); err != nil {
		m.log.Warn("Changing bus baud rate", "baud", m.baud, "error", err)
	}
	m.active = true
	m.log.Info("Streaming", "baud", m.baud)
}

// listen replaces the listening socket.
func (m *Modem) listen(port int) error {
	m.stopListening()
	l, err := m.network.Listen(port)
	if err != nil {
		m.log.Warn("Listen failed", "port", port, "error", err)
		return err
	}
	m.listener = l
	m.listenPort = port
	m.log.Info("Listening for calls", "port", port)
	return nil
}

// stopListening closes the listening socket, if any.
func (m *Modem) stopListening() {
	if m.listener != nil {
		if err := m.listener.Close(); err != nil {
			m.log.Debug("Closing listener", "error", err)
		}
		m.listener = nil
	}
	m.listenPort = 0
}

// dropConn closes the current call. The loss of carrier is reported by the
// next tick, outside of any bus transaction.
func (m *Modem) dropConn() {
	if m.conn != nil {
		m.conn.Close()
	}
}
