// Package telnet implements the option negotiation engine used while the
// modem relays a Telnet call. The engine never touches a socket: received
// bytes are fed to Recv, outbound bytes to Send, and everything the engine
// produces is delivered synchronously through a Handler.
package telnet

import (
	"fmt"
	"log/slog"
)

// Handler receives the engine's events. All methods are invoked from within
// Recv or Send on the caller's goroutine.
type Handler interface {
	// OnData receives payload bytes from the remote, with Telnet commands removed.
	OnData(p []byte)
	// OnSend receives bytes that must be written to the remote as-is.
	OnSend(p []byte)
	// OnNegotiate is called when the remote changed the state of an option.
	// cmd is the WILL, WONT, DO or DONT that caused the change.
	OnNegotiate(option byte, cmd byte)
	// OnTerminalTypeRequest returns the terminal type to report to the remote.
	OnTerminalTypeRequest() string
}

// MaxSubnegotiation bounds the payload of one SB ... SE sequence. Longer
// sub-negotiations are dropped and the bytes that follow are read as data.
const MaxSubnegotiation = 256

type parseState int

const (
	stateData parseState = iota
	stateIAC
	stateOption // waiting for the option byte of WILL/WONT/DO/DONT
	stateSBOption
	stateSBData
	stateSBIAC
)

// Engine parses and negotiates one Telnet session. It is not safe for
// concurrent use.
type Engine struct {
	handler  Handler
	log      *slog.Logger
	policies map[byte]Policy

	us  map[byte]bool // options enabled on our side
	him map[byte]bool // options enabled on the remote side

	state    parseState
	verb     byte
	sbOption byte
	sbData   []byte
}

// New returns an engine reporting to handler and answering negotiation
// with policies. Options without a policy are refused.
func New(handler Handler, policies []Policy, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		handler:  handler,
		log:      logger,
		policies: make(map[byte]Policy, len(policies)),
		us:       make(map[byte]bool),
		him:      make(map[byte]bool),
	}
	for _, p := range policies {
		e.policies[p.Option] = p
	}
	return e
}

// IsLocalOptionEnabled reports whether we agreed to perform option.
func (e *Engine) IsLocalOptionEnabled(option byte) bool {
	return e.us[option]
}

// IsRemoteOptionEnabled reports whether the remote agreed to perform option.
func (e *Engine) IsRemoteOptionEnabled(option byte) bool {
	return e.him[option]
}

// Send escapes IAC bytes in p and hands the result to OnSend.
func (e *Engine) Send(p []byte) {
	if len(p) == 0 {
		return
	}
	out := make([]byte, 0, len(p)+len(p)/10)
	for _, b := range p {
		out = append(out, b)
		if b == IAC {
			out = append(out, IAC)
		}
	}
	e.handler.OnSend(out)
}

// Recv processes bytes received from the remote. Sequences split across
// calls are completed on the next call.
func (e *Engine) Recv(p []byte) {
	data := make([]byte, 0, len(p))
	flush := func() {
		if len(data) > 0 {
			e.handler.OnData(data)
			data = make([]byte, 0, len(p))
		}
	}

	for _, b := range p {
		switch e.state {
		case stateData:
			if b == IAC {
				e.state = stateIAC
			} else {
				data = append(data, b)
			}

		case stateIAC:
			switch b {
			case IAC:
				data = append(data, IAC)
				e.state = stateData
			case WILL, WONT, DO, DONT:
				e.verb = b
				e.state = stateOption
			case SB:
				e.state = stateSBOption
			default:
				e.log.Debug("Telnet command [IN]", "cmd", commandName(b))
				e.state = stateData
			}

		case stateOption:
			flush()
			e.negotiate(e.verb, b)
			e.state = stateData

		case stateSBOption:
			e.sbOption = b
			e.sbData = e.sbData[:0]
			e.state = stateSBData

		case stateSBData:
			switch {
			case b == IAC:
				e.state = stateSBIAC
			case len(e.sbData) >= MaxSubnegotiation:
				e.log.Debug("Telnet sub-negotiation too long, dropped", "opt", optionName(e.sbOption))
				e.sbData = nil
				e.state = stateData
			default:
				e.sbData = append(e.sbData, b)
			}

		case stateSBIAC:
			switch b {
			case SE:
				flush()
				e.subnegotiation(e.sbOption, e.sbData)
				e.state = stateData
			case IAC:
				e.sbData = append(e.sbData, IAC)
				e.state = stateSBData
			default:
				// Malformed sub-negotiation, drop it.
				e.log.Debug("Telnet sub-negotiation aborted", "opt", optionName(e.sbOption), "cmd", commandName(b))
				e.state = stateData
			}
		}
	}
	flush()
}

func (e *Engine) negotiate(verb, option byte) {
	e.log.Debug("Telnet command [IN]", "cmd", commandName(verb), "opt", optionName(option))
	policy, known := e.policies[option]

	switch verb {
	case WILL:
		if e.him[option] {
			return
		}
		if known && policy.Him == DO {
			e.him[option] = true
			e.sendCommand(DO, option)
			e.handler.OnNegotiate(option, WILL)
			return
		}
		e.sendCommand(DONT, option)

	case WONT:
		if !e.him[option] {
			return
		}
		e.him[option] = false
		e.sendCommand(DONT, option)
		e.handler.OnNegotiate(option, WONT)

	case DO:
		if e.us[option] {
			return
		}
		if known && policy.Us == WILL {
			e.us[option] = true
			e.sendCommand(WILL, option)
			e.handler.OnNegotiate(option, DO)
			return
		}
		e.sendCommand(WONT, option)

	case DONT:
		if !e.us[option] {
			return
		}
		e.us[option] = false
		e.sendCommand(WONT, option)
		e.handler.OnNegotiate(option, DONT)
	}
}

func (e *Engine) subnegotiation(option byte, data []byte) {
	e.log.Debug("Telnet sub-negotiation [IN]", "opt", optionName(option), "len", len(data))
	if option != TType || len(data) == 0 || data[0] != SEND {
		return
	}
	name := e.handler.OnTerminalTypeRequest()
	out := make([]byte, 0, len(name)+6)
	out = append(out, IAC, SB, TType, IS)
	for i := 0; i < len(name); i++ {
		out = append(out, name[i])
		if name[i] == IAC {
			out = append(out, IAC)
		}
	}
	out = append(out, IAC, SE)
	e.handler.OnSend(out)
}

func (e *Engine) sendCommand(verb, option byte) {
	e.log.Debug("Telnet command [OUT]", "cmd", commandName(verb), "opt", optionName(option))
	e.handler.OnSend([]byte{IAC, verb, option})
}

func commandName(b byte) string {
	if name, ok := CommandNames[b]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", b)
}

func optionName(b byte) string {
	if name, ok := OptionNames[b]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", b)
}
