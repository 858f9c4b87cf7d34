package siomodem

import (
	"strings"
)

type atCommand struct {
	prefix string
	fn     func(m *Modem, line string)
}

// atCommands is matched in order against the upper-cased command line and
// the first prefix that matches wins. An entry must never be a prefix of a
// later one, or the later one would be unreachable. Plain "AT" is matched
// exactly, before this table.
var atCommands = []atCommand{
	{"ATNET0", (*Modem).atNet0},
	{"ATNET1", (*Modem).atNet1},
	{"ATA", (*Modem).atAnswer},
	{"ATIP", (*Modem).atIP},
	{"AT?", (*Modem).atHelp},
	{"ATH2", (*Modem).atHangup},
	{"ATH", (*Modem).atHangup},
	{"+++ATH", (*Modem).atHangup},
	{"ATDT", (*Modem).atDial},
	{"ATDP", (*Modem).atDial},
	{"ATDI", (*Modem).atDial},
	{"ATWIFILIST", (*Modem).atWiFiList},
	{"ATWIFICONNECT", (*Modem).atWiFiConnect},
	{"ATGET", (*Modem).atGet},
	{"ATPORT", (*Modem).atPort},
	{"ATV0", (*Modem).atNumeric},
	{"ATV1", (*Modem).atVerbose},
	{"AT&F", (*Modem).atIgnored},
	{"ATS0=0", (*Modem).atAutoAnswerOff},
	{"ATS0=1", (*Modem).atAutoAnswerOn},
	{"ATS2=43", (*Modem).atIgnored},
	{"ATS5=8", (*Modem).atIgnored},
	{"ATS6=2", (*Modem).atIgnored},
	{"ATS7=30", (*Modem).atIgnored},
	{"ATS12=20", (*Modem).atIgnored},
	{"ATE0", (*Modem).atEchoOff},
	{"ATE1", (*Modem).atEchoOn},
	{"ATM0", (*Modem).atIgnored},
	{"ATM1", (*Modem).atIgnored},
	{"ATX1", (*Modem).atIgnored},
	{"AT&C1", (*Modem).atIgnored},
	{"AT&D2", (*Modem).atIgnored},
	{"AT&W", (*Modem).atIgnored},
	{"+++ATZ", (*Modem).atIgnored},
	{"ATS2=128 X1 M0", (*Modem).atIgnored},
	{"AT+SNIFF", (*Modem).atSniff},
	{"AT-SNIFF", (*Modem).atUnsniff},
	{"AT+TERM=VT52", termSetter("VT52")},
	{"AT+TERM=VT100", termSetter("VT100")},
	{"AT+TERM=ANSI", termSetter("ANSI")},
	{"AT+TERM=DUMB", termSetter("DUMB")},
}

func isCommandSpace(b byte) bool {
	switch b {
	case ' ', '\t', asciiCR, asciiLF, atasciiEOL:
		return true
	}
	return false
}

// trimCommand works on bytes; ATASCII EOL is not valid UTF-8.
func trimCommand(s string) string {
	for len(s) > 0 && isCommandSpace(s[0]) {
		s = s[1:]
	}
	for len(s) > 0 && isCommandSpace(s[len(s)-1]) {
		s = s[:len(s)-1]
	}
	return s
}

// upperCommand upper-cases ASCII letters only and turns ATASCII EOL into CR.
func upperCommand(s string) string {
	b := []byte(s)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z':
			b[i] = c - 'a' + 'A'
		case c == atasciiEOL:
			b[i] = asciiCR
		}
	}
	return string(b)
}

func matchCommand(upper string) (atCommand, bool) {
	for _, c := range atCommands {
		if strings.HasPrefix(upper, c.prefix) {
			return c, true
		}
	}
	return atCommand{}, false
}

// execute runs one assembled AT command line.
func (m *Modem) execute(line string) {
	line = trimCommand(line)
	if line == "" {
		return
	}
	upper := upperCommand(line)
	m.metrics.LastAtCmdTime = m.now()

	if m.echo {
		m.print(m.eol())
	}
	m.log.Debug("AT command", "cmd", upper)

	if upper == "AT" {
		m.printRetCode(RetCodeOk)
		return
	}
	c, ok := matchCommand(upper)
	if !ok {
		m.printRetCode(RetCodeError)
		return
	}
	c.fn(m, line)
}

func termSetter(name string) func(m *Modem, line string) {
	return func(m *Modem, _ string) {
		m.termType = name
		m.printRetCode(RetCodeOk)
	}
}

func (m *Modem) atIgnored(string) {
	m.printRetCode(RetCodeOk)
}

func (m *Modem) atNet0(string) {
	m.useTelnet = false
	m.printRetCode(RetCodeOk)
}

func (m *Modem) atNet1(string) {
	m.useTelnet = true
	m.printRetCode(RetCodeOk)
}

// atNumeric prints its own OK in the numeric form.
func (m *Modem) atNumeric(string) {
	m.numeric = true
	m.printRetCode(RetCodeOk)
}

func (m *Modem) atVerbose(string) {
	m.numeric = false
	m.printRetCode(RetCodeOk)
}

func (m *Modem) atAutoAnswerOff(string) {
	m.autoAnswer = false
	m.printRetCode(RetCodeOk)
}

func (m *Modem) atAutoAnswerOn(string) {
	m.autoAnswer = true
	m.printRetCode(RetCodeOk)
}

func (m *Modem) atEchoOff(string) {
	m.echo = false
	m.printRetCode(RetCodeOk)
}

func (m *Modem) atEchoOn(string) {
	m.echo = true
	m.printRetCode(RetCodeOk)
}

func (m *Modem) atSniff(string) {
	m.sniffer.SetEnable(true)
	m.printRetCode(RetCodeOk)
}

func (m *Modem) atUnsniff(string) {
	m.sniffer.SetEnable(false)
	m.printRetCode(RetCodeOk)
}
