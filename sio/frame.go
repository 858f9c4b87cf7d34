// Package sio decodes command frames of the Atari SIO peripheral bus and
// implements the bus checksum used by both command frames and data payloads.
//
// A command frame is five bytes long: device id, command, aux1, aux2 and a
// checksum over the first four bytes. The peripheral answers every frame with
// one of four single byte signals (Ack, Nak, Complete, Error), optionally
// followed by a data block and its checksum.
package sio

import (
	"errors"
	"fmt"
)

var (
	// ErrShortFrame is returned when fewer than FrameSize bytes are decoded.
	ErrShortFrame = errors.New("sio: short command frame")
	// ErrBadChecksum is returned when a frame checksum does not match its content.
	ErrBadChecksum = errors.New("sio: bad frame checksum")
)

// FrameSize is the length of an encoded command frame, checksum included.
const FrameSize = 5

// Device ids relevant to the 850 interface emulation.
const (
	// DevicePoll is the device id used by type 3 polls.
	DevicePoll byte = 0x4F
	// DeviceRS232 is the R1: serial port of the 850 interface.
	DeviceRS232 byte = 0x50
)

// Signal is a one byte acknowledgement sent from the peripheral to the host.
type Signal byte

const (
	Ack      Signal = 'A'
	Nak      Signal = 'N'
	Complete Signal = 'C'
	Error    Signal = 'E'
)

func (s Signal) String() string {
	switch s {
	case Ack:
		return "ACK"
	case Nak:
		return "NAK"
	case Complete:
		return "COMPLETE"
	case Error:
		return "ERROR"
	default:
		return fmt.Sprintf("Signal(0x%02X)", byte(s))
	}
}

// Command is the command byte of a frame.
type Command byte

// Commands understood by the 850 interface.
const (
	CmdLoadRelocator Command = 0x21 // '!'
	CmdLoadHandler   Command = 0x26 // '&'
	CmdType1Poll     Command = 0x3F // '?'
	CmdType3Poll     Command = 0x40 // '@'
	CmdControl       Command = 0x41 // 'A'
	CmdConfigure     Command = 0x42 // 'B'
	CmdSetDump       Command = 0x44 // 'D'
	CmdListen        Command = 0x4C // 'L'
	CmdUnlisten      Command = 0x4D // 'M'
	CmdBaudLock      Command = 0x4E // 'N'
	CmdAutoAnswer    Command = 0x4F // 'O'
	CmdStatus        Command = 0x53 // 'S'
	CmdWrite         Command = 0x57 // 'W'
	CmdStream        Command = 0x58 // 'X'
)

var commandNames = map[Command]string{
	CmdLoadRelocator: "LOAD_RELOCATOR",
	CmdLoadHandler:   "LOAD_HANDLER",
	CmdType1Poll:     "TYPE1_POLL",
	CmdType3Poll:     "TYPE3_POLL",
	CmdControl:       "CONTROL",
	CmdConfigure:     "CONFIGURE",
	CmdSetDump:       "SET_DUMP",
	CmdListen:        "LISTEN",
	CmdUnlisten:      "UNLISTEN",
	CmdBaudLock:      "BAUDLOCK",
	CmdAutoAnswer:    "AUTOANSWER",
	CmdStatus:        "STATUS",
	CmdWrite:         "WRITE",
	CmdStream:        "STREAM",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(0x%02X)", byte(c))
}

// CommandFrame is one decoded bus command.
type CommandFrame struct {
	Device   byte
	Command  Command
	Aux1     byte
	Aux2     byte
	Checksum byte
}

// NewFrame builds a frame and fills in its checksum.
func NewFrame(device byte, cmd Command, aux1, aux2 byte) CommandFrame {
	f := CommandFrame{Device: device, Command: cmd, Aux1: aux1, Aux2: aux2}
	f.Checksum = Checksum(f.header())
	return f
}

// Decode parses the first FrameSize bytes of b and verifies the checksum.
func Decode(b []byte) (CommandFrame, error) {
	if len(b) < FrameSize {
		return CommandFrame{}, ErrShortFrame
	}
	f := CommandFrame{
		Device:   b[0],
		Command:  Command(b[1]),
		Aux1:     b[2],
		Aux2:     b[3],
		Checksum: b[4],
	}
	if !f.Valid() {
		return f, fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrBadChecksum, f.Checksum, Checksum(f.header()))
	}
	return f, nil
}

func (f CommandFrame) header() []byte {
	return []byte{f.Device, byte(f.Command), f.Aux1, f.Aux2}
}

// Valid reports whether the stored checksum matches the frame content.
func (f CommandFrame) Valid() bool {
	return Checksum(f.header()) == f.Checksum
}

// Bytes encodes the frame, checksum included.
func (f CommandFrame) Bytes() []byte {
	return append(f.header(), f.Checksum)
}

// Aux returns aux1/aux2 as a little-endian 16 bit value.
func (f CommandFrame) Aux() uint16 {
	return uint16(f.Aux2)<<8 | uint16(f.Aux1)
}

func (f CommandFrame) String() string {
	return fmt.Sprintf("dev=0x%02X cmd=%s aux1=0x%02X aux2=0x%02X", f.Device, f.Command, f.Aux1, f.Aux2)
}
