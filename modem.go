// Package siomodem emulates an Atari 850 interface "R1:" port with a Hayes
// style modem behind it. The Atari talks to the emulator over the SIO bus;
// the emulator turns AT commands into TCP calls (raw or Telnet) and relays
// the call data in both directions.
//
// The core component is the Modem struct. It is driven by a single goroutine
// that alternates between dispatching SIO command frames and running one tick
// of the session: assembling AT command text in command mode, relaying bytes
// in connected mode. No state is shared with other goroutines.
//
// Example usage:
//
//	m, err := siomodem.NewModem(&siomodem.Config{
//		Id:       "R1",
//		Bus:      port,
//		Firmware: firmware.NewStore("/usr/share/siomodem", nil),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer m.Close()
//	err = m.Run(ctx)
package siomodem

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jaracil/siomodem/internal/telnet"
)

var (
	// ErrConfigRequired is returned when a required configuration parameter is missing
	ErrConfigRequired = errors.New("config required")
	// ErrNoCarrier is returned when no network connection can be established
	ErrNoCarrier = errors.New("no carrier")
	// ErrBusy is returned when a call is attempted while another one is active
	ErrBusy = errors.New("modem busy")
	// ErrChecksum is returned when a WRITE payload fails its checksum
	ErrChecksum = errors.New("payload checksum mismatch")
	// ErrFirmwareUnavailable is returned when a firmware image cannot be loaded
	ErrFirmwareUnavailable = errors.New("firmware unavailable")
	// ErrInvalidTarget is returned when a dial or fetch target cannot be parsed
	ErrInvalidTarget = errors.New("invalid target")
)

// Mode is the top level state of the session.
type Mode int

const (
	// CommandMode assembles AT commands from the stream
	CommandMode Mode = iota
	// ConnectedMode relays the stream to and from the active call
	ConnectedMode
)

// String returns a human-readable string representation of the mode.
func (md Mode) String() string {
	switch md {
	case CommandMode:
		return "Command"
	case ConnectedMode:
		return "Connected"
	default:
		return "Unknown"
	}
}

// Baud rates selectable with CONFIGURE.
var baudRates = []int{300, 600, 1200, 1800, 2400, 4800, 9600, 19200}

const (
	defaultBaud           = 300
	defaultTermType       = "dumb"
	defaultFirmwareSettle = 5 * time.Millisecond
	defaultAnswerSettle   = 2 * time.Second
	defaultRingInterval   = 3 * time.Second
	defaultEscapeGuard    = time.Second
	defaultFakeDialDelay  = 1300 * time.Millisecond
	defaultPayloadTimeout = 500 * time.Millisecond
	defaultDialTimeout    = 30 * time.Second
	defaultWiFiRetries    = 20
	defaultWiFiRetryDelay = time.Second

	maxCommandLength = 255
	writePayloadSize = 64
	txChunkSize      = 256
	rxChunkSize      = 1024
)

// ModeTransitionType defines a callback function that is called whenever the
// session changes mode. It receives the modem instance and both modes.
type ModeTransitionType func(m *Modem, prevMode Mode, newMode Mode)

// Config contains the configuration parameters for creating a new modem instance.
// Bus is required; every other field has a usable default.
type Config struct {
	// Id is a unique identifier for the modem instance, used in logs
	Id string
	// Bus is the SIO side of the modem (required)
	Bus Bus
	// Network creates outgoing calls and listeners (default: TCPNetwork)
	Network Network
	// Firmware provides the relocator and handler images (default: none, polls stay silent)
	Firmware FirmwareLoader
	// Sniffer records relayed traffic (default: discard)
	Sniffer Sniffer
	// WiFi is the network-interface manager (default: reports no network)
	WiFi WiFi
	// Logger receives the modem's log records (default: slog.Default())
	Logger *slog.Logger
	// ModeTransition is an optional callback for mode change notifications
	ModeTransition ModeTransitionType
	// Clock returns the current time (default: time.Now)
	Clock func() time.Time
	// Sleep pauses the driving goroutine for the fixed settle delays (default: time.Sleep)
	Sleep func(time.Duration)
	// TermType is reported through Telnet TTYPE (default: "dumb")
	TermType string
	// Baud is the initial stream baud rate (default: 300)
	Baud int
	// BaudLock keeps CONFIGURE from changing the baud rate
	BaudLock bool
	// AutoAnswer answers incoming calls without ATA
	AutoAnswer bool
	// RawTCP starts with Telnet negotiation disabled (ATNET0)
	RawTCP bool
	// ListenPort starts listening for incoming calls on this port when non zero
	ListenPort int
	// FirmwareSettle is the delay before firmware and poll replies (default: 5ms)
	FirmwareSettle time.Duration
	// AnswerSettle is the delay before answering from STATUS (default: 2s)
	AnswerSettle time.Duration
	// RingInterval is the minimum time between RING results (default: 3s)
	RingInterval time.Duration
	// EscapeGuard is the outbound silence after +++ that ends a call (default: 1s)
	EscapeGuard time.Duration
	// FakeDialDelay is the pause before the fake CONNECT of 5551234 (default: 1.3s)
	FakeDialDelay time.Duration
	// PayloadTimeout bounds the wait for a WRITE payload (default: 500ms)
	PayloadTimeout time.Duration
	// DialTimeout bounds outgoing connection attempts (default: 30s)
	DialTimeout time.Duration
	// WiFiRetries is the number of one second waits of ATWIFICONNECT (default: 20)
	WiFiRetries int
	// WiFiRetryDelay is the wait between ATWIFICONNECT checks (default: 1s)
	WiFiRetryDelay time.Duration
}

// Metrics contains runtime statistics of a modem instance.
// All counters are cumulative totals since the modem was created.
type Metrics struct {
	// Mode is the current session mode
	Mode Mode
	// Frames is the number of command frames dispatched
	Frames int
	// Naks is the number of NAK signals sent
	Naks int
	// ChecksumErrors is the number of WRITE payloads rejected
	ChecksumErrors int
	// BadBaudConfigs is the number of CONFIGURE commands with an unknown baud nibble
	BadBaudConfigs int
	// BusTxBytes is the total number of bytes sent to the Atari
	BusTxBytes int
	// BusRxBytes is the total number of stream bytes read from the Atari
	BusRxBytes int
	// ConnTxBytes is the total number of bytes sent to calls
	ConnTxBytes int
	// ConnRxBytes is the total number of bytes received from calls
	ConnRxBytes int
	// NumConns is the total number of calls handled
	NumConns int
	// NumInConns is the total number of answered calls
	NumInConns int
	// NumOutConns is the total number of dialed calls
	NumOutConns int
	// RejectedConns is the number of callers turned away while busy
	RejectedConns int
	// FirmwareSent is the number of firmware images delivered
	FirmwareSent int
	// LastAtCmdTime is the timestamp of the last AT command processed
	LastAtCmdTime time.Time
	// LastConnTime is the timestamp of the last connection establishment
	LastConnTime time.Time
}

// Modem is one emulated 850 R1: port with its modem session.
//
// Modem is not safe for concurrent use: Run (or Step) must be called from a
// single goroutine, and accessors should only be used from that goroutine or
// after Run returned.
type Modem struct {
	id             string
	bus            Bus
	network        Network
	firmware       FirmwareLoader
	sniffer        Sniffer
	wifi           WiFi
	log            *slog.Logger
	modeTransition ModeTransitionType
	now            func() time.Time
	sleep          func(time.Duration)

	mode     Mode
	carrier  bool
	dtr      bool
	rts      bool
	xmt      bool
	active   bool
	baud     int
	baudLock bool

	autoAnswer bool
	listenPort int
	listener   Listener
	conn       Conn

	numeric    bool
	echo       bool
	eolAtascii bool
	cmdOutput  bool
	answerHack bool
	cmdBuf     []byte

	escape       EscapeDetector
	type1Polls   int
	type3Polls   int
	firmwareSent bool
	lastRing     time.Time

	useTelnet bool
	termType  string
	localEcho bool
	tn        *telnet.Engine

	firmwareSettle time.Duration
	answerSettle   time.Duration
	ringInterval   time.Duration
	fakeDialDelay  time.Duration
	payloadTimeout time.Duration
	dialTimeout    time.Duration
	wifiRetries    int
	wifiRetryDelay time.Duration

	metrics Metrics
}

// NewModem creates a new modem instance with the specified configuration.
// The config parameter must not be nil and must contain at least Bus.
// The modem starts in CommandMode at the configured baud rate.
//
// Returns ErrConfigRequired if config is nil or required fields are missing.
func NewModem(config *Config) (*Modem, error) {
	if config == nil {
		return nil, ErrConfigRequired
	}
	if config.Bus == nil {
		return nil, ErrConfigRequired
	}

	m := &Modem{
		id:             config.Id,
		bus:            config.Bus,
		network:        config.Network,
		firmware:       config.Firmware,
		sniffer:        config.Sniffer,
		wifi:           config.WiFi,
		log:            config.Logger,
		modeTransition: config.ModeTransition,
		now:            config.Clock,
		sleep:          config.Sleep,
		mode:           CommandMode,
		baud:           config.Baud,
		baudLock:       config.BaudLock,
		autoAnswer:     config.AutoAnswer,
		useTelnet:      !config.RawTCP,
		termType:       config.TermType,
		echo:           true,
		cmdOutput:      true,
		cmdBuf:         make([]byte, 0, maxCommandLength),
		firmwareSettle: config.FirmwareSettle,
		answerSettle:   config.AnswerSettle,
		ringInterval:   config.RingInterval,
		fakeDialDelay:  config.FakeDialDelay,
		payloadTimeout: config.PayloadTimeout,
		dialTimeout:    config.DialTimeout,
		wifiRetries:    config.WiFiRetries,
		wifiRetryDelay: config.WiFiRetryDelay,
	}

	if m.log == nil {
		m.log = slog.Default()
	}
	m.log = m.log.With("modem", m.id)
	if m.network == nil {
		m.network = &TCPNetwork{Logger: m.log}
	}
	if m.firmware == nil {
		m.firmware = noFirmware{}
	}
	if m.sniffer == nil {
		m.sniffer = nopSniffer{}
	}
	if m.wifi == nil {
		m.wifi = noWiFi{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.sleep == nil {
		m.sleep = time.Sleep
	}
	if m.baud == 0 {
		m.baud = defaultBaud
	}
	if !validBaud(m.baud) {
		return nil, fmt.Errorf("unsupported baud rate %d", m.baud)
	}
	if m.termType == "" {
		m.termType = defaultTermType
	}
	if m.firmwareSettle == 0 {
		m.firmwareSettle = defaultFirmwareSettle
	}
	if m.answerSettle == 0 {
		m.answerSettle = defaultAnswerSettle
	}
	if m.ringInterval == 0 {
		m.ringInterval = defaultRingInterval
	}
	if m.fakeDialDelay == 0 {
		m.fakeDialDelay = defaultFakeDialDelay
	}
	if m.payloadTimeout == 0 {
		m.payloadTimeout = defaultPayloadTimeout
	}
	if m.dialTimeout == 0 {
		m.dialTimeout = defaultDialTimeout
	}
	if m.wifiRetries == 0 {
		m.wifiRetries = defaultWiFiRetries
	}
	if m.wifiRetryDelay == 0 {
		m.wifiRetryDelay = defaultWiFiRetryDelay
	}

	guard := config.EscapeGuard
	if guard == 0 {
		guard = defaultEscapeGuard
	}
	m.escape = EscapeDetector{Guard: guard}
	m.resetTelnet()

	if config.ListenPort != 0 {
		if err := m.listen(config.ListenPort); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func validBaud(baud int) bool {
	for _, b := range baudRates {
		if b == baud {
			return true
		}
	}
	return false
}

// Id returns the unique identifier of the modem instance.
func (m *Modem) Id() string {
	return m.id
}

// Mode returns the current session mode.
func (m *Modem) Mode() Mode {
	return m.mode
}

// Baud returns the current stream baud rate.
func (m *Modem) Baud() int {
	return m.baud
}

// Active reports whether the Atari has started streaming, either through
// STREAM or by a STATUS that answered a call.
func (m *Modem) Active() bool {
	return m.active
}

// FirmwareSent reports whether the R: handler has been delivered since the
// last boot poll reset.
func (m *Modem) FirmwareSent() bool {
	return m.firmwareSent
}

// Carrier reports the emulated carrier detect (CRX) line.
func (m *Modem) Carrier() bool {
	return m.carrier
}

// ListenPort returns the port incoming calls are accepted on, 0 when not listening.
func (m *Modem) ListenPort() int {
	return m.listenPort
}

// TermType returns the terminal type reported through Telnet.
func (m *Modem) TermType() string {
	return m.termType
}

// Metrics returns a copy of the current modem metrics.
func (m *Modem) Metrics() *Metrics {
	copy := m.metrics
	copy.Mode = m.mode
	return &copy
}

func (m *Modem) setMode(mode Mode) {
	prevMode := m.mode
	if prevMode == mode {
		return
	}
	m.mode = mode
	m.log.Debug("Mode transition", "from", prevMode, "to", mode)
	if m.modeTransition != nil {
		m.modeTransition(m, prevMode, mode)
	}
}

// Close hangs up any call, stops listening and closes the sniffer.
// The bus is owned by the caller and left open.
func (m *Modem) Close() error {
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.stopListening()
	m.carrier = false
	m.setMode(CommandMode)
	return m.sniffer.Close()
}
