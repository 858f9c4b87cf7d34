package siomodem

import (
	"fmt"

	"github.com/jaracil/siomodem/sio"
)

// Firmware image names requested from the FirmwareLoader.
const (
	FirmwareRelocator = "850relocator.bin"
	FirmwareHandler   = "850handler.bin"
)

const (
	type1PollThreshold = 16
	type3PollThreshold = 26
)

func (m *Modem) loadFirmware(name string) ([]byte, error) {
	img, err := m.firmware.LoadFirmware(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFirmwareUnavailable, name, err)
	}
	if len(img) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrFirmwareUnavailable, name)
	}
	return img, nil
}

func (m *Modem) handleLoadRelocator(sio.CommandFrame) {
	m.sendFirmware(FirmwareRelocator)
}

func (m *Modem) handleLoadHandler(sio.CommandFrame) {
	m.sendFirmware(FirmwareHandler)
}

// sendFirmware delivers a whole image. The control lines are released when
// the transfer ends.
func (m *Modem) sendFirmware(name string) {
	img, err := m.loadFirmware(name)
	if err != nil {
		m.log.Warn("Firmware download refused", "error", err)
		m.signal(sio.Nak)
		return
	}
	m.signal(sio.Ack)
	m.sleep(m.firmwareSettle)
	m.log.Info("Sending firmware", "name", name, "size", len(img))
	m.sendToComputer(img)

	m.dtr, m.xmt, m.rts = false, false, false
	m.firmwareSent = true
	m.metrics.FirmwareSent++
}

// handleType1Poll answers the boot ROM with a parameter block that makes it
// download the relocator to $0500.
func (m *Modem) handleType1Poll(f sio.CommandFrame) {
	m.type1Polls++
	if f.Aux1 != 1 && m.type1Polls != type1PollThreshold {
		return
	}

	img, err := m.loadFirmware(FirmwareRelocator)
	if err != nil {
		m.log.Debug("Type 1 poll ignored", "error", err)
		return
	}
	size := len(img)

	m.signal(sio.Ack)
	block := []byte{
		sio.DeviceRS232,            // DDEVIC
		0x01,                       // DUNIT
		byte(sio.CmdLoadRelocator), // DCOMND
		0x40,                       // DSTATS
		0x00, 0x05,                 // DBUFLO, DBUFHI
		0x08,                        // DTIMLO
		0x00,                        // unused
		byte(size), byte(size >> 8), // DBYTLO, DBYTHI
		0x00, // DAUX1
		0x00, // DAUX2
	}
	m.log.Debug("Answering type 1 poll", "relocator_size", size)
	m.sleep(m.firmwareSettle)
	m.sendToComputer(block)
}

func (m *Modem) resetPolls() {
	m.type1Polls = 0
	m.type3Polls = 0
}

// handleType3Poll implements the type 3 poll sub-protocol. Polls that are not
// addressed to this device get no answer at all.
func (m *Modem) handleType3Poll(f sio.CommandFrame) {
	switch {
	case f.Aux1 == 0 && f.Aux2 == 0:
		m.type3Polls++
		if m.type3Polls != type3PollThreshold {
			return
		}
	case f.Aux1 == 0x4F && f.Aux2 == 0x4F:
		m.log.Debug("Type 3 reset poll")
		m.resetPolls()
		m.firmwareSent = false
		return
	case f.Aux1 == 0x4E && f.Aux2 == 0x4E:
		m.log.Debug("Type 3 null poll")
		m.resetPolls()
		return
	case (f.Aux1 == 0x52 && f.Aux2 == 0x01) || f.Device == sio.DeviceRS232:
	default:
		return
	}

	img, err := m.loadFirmware(FirmwareHandler)
	if err != nil {
		m.log.Debug("Type 3 poll ignored", "error", err)
		return
	}
	size := len(img)

	m.signal(sio.Ack)
	m.log.Debug("Answering directed poll", "handler_size", size)
	m.sleep(m.firmwareSettle)
	m.sendToComputer([]byte{byte(size), byte(size >> 8), sio.DeviceRS232, 0x00})
}
