package siomodem

import (
	"strconv"
)

// RetCode is a Hayes result code. The numeric value is what ATV0 prints.
type RetCode int

const (
	// RetCodeOk indicates successful command execution
	RetCodeOk RetCode = 0
	// RetCodeConnect indicates a call was established
	RetCodeConnect RetCode = 1
	// RetCodeRing indicates an incoming call is waiting
	RetCodeRing RetCode = 2
	// RetCodeNoCarrier indicates the call failed or ended
	RetCodeNoCarrier RetCode = 3
	// RetCodeError indicates command execution failed
	RetCodeError RetCode = 4
)

func (r RetCode) String() string {
	switch r {
	case RetCodeOk:
		return "OK"
	case RetCodeConnect:
		return "CONNECT"
	case RetCodeRing:
		return "RING"
	case RetCodeNoCarrier:
		return "NO CARRIER"
	case RetCodeError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

const (
	asciiBS        = 0x08
	asciiLF        = 0x0A
	asciiCR        = 0x0D
	asciiDEL       = 0x7F
	atasciiEOL     = 0x9B
	atasciiBS      = 0x7E
	atasciiClear   = 0x7D
	atasciiCursorU = 0x1C
	atasciiCursorR = 0x1F
)

// connectCodes maps the baud rate to the numeric CONNECT code.
var connectCodes = map[int]int{
	300:   1,
	1200:  5,
	2400:  10,
	4800:  18,
	9600:  13,
	19200: 85,
}

func (m *Modem) busWrite(p []byte) {
	if len(p) == 0 {
		return
	}
	n, err := m.bus.Write(p)
	m.metrics.BusTxBytes += n
	if err != nil {
		m.log.Warn("Bus write failed", "error", err)
	}
}

func (m *Modem) eol() string {
	if m.eolAtascii {
		return string([]byte{atasciiEOL})
	}
	return "\r\n"
}

// print writes AT interpreter output unless it is suppressed for a WRITE
// sourced command.
func (m *Modem) print(s string) {
	if !m.cmdOutput {
		return
	}
	m.busWrite([]byte(s))
}

func (m *Modem) println(s string) {
	m.print(s + m.eol())
}

func (m *Modem) printRetCode(ret RetCode) {
	if m.numeric {
		m.print(strconv.Itoa(int(ret)) + "\r\n")
		return
	}
	m.println(ret.String())
}

// printConnect reports a new call. Numeric codes depend on the baud rate and
// end with a bare CR.
func (m *Modem) printConnect() {
	if m.numeric {
		code, ok := connectCodes[m.baud]
		if !ok {
			code = int(RetCodeConnect)
		}
		m.print(strconv.Itoa(code) + "\r")
		return
	}
	m.println("CONNECT " + strconv.Itoa(m.baud))
}
