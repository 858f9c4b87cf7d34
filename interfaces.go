package siomodem

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/jaracil/siomodem/sio"
)

// Bus is the SIO side of the modem. Command frames arrive already framed and
// header-checked; everything else the Atari sends is stream data.
//
// Implementations must never block in Frame, Available or Read. ReadFull is
// the only bounded wait and is used for WRITE payloads.
type Bus interface {
	// Frame returns the next pending command frame, if any.
	Frame() (sio.CommandFrame, bool)
	// Available returns the number of stream bytes ready to be read.
	Available() int
	// Read copies available stream bytes into p without waiting.
	Read(p []byte) (int, error)
	// ReadFull waits up to timeout for exactly len(p) bytes.
	ReadFull(p []byte, timeout time.Duration) error
	// Write sends bytes to the Atari.
	Write(p []byte) (int, error)
	// SetBaud changes the stream baud rate.
	SetBaud(baud int) error
	// Flush blocks until written bytes are on the wire.
	Flush() error
}

// Conn is one TCP call. Read never blocks: it returns what is buffered now.
type Conn interface {
	io.ReadWriteCloser
	// Available returns the number of received bytes ready to be read.
	Available() int
	// Connected reports whether the peer is still there or data is still buffered.
	Connected() bool
	// SetNoDelay disables send coalescing on the socket.
	SetNoDelay(noDelay bool) error
}

// Listener is a listening socket that holds at most one pending caller.
type Listener interface {
	// HasClient reports whether a caller is waiting to be accepted.
	HasClient() bool
	// Accept returns the waiting caller. It fails with ErrNoCaller when none is pending.
	Accept() (Conn, error)
	Close() error
}

// Network creates outgoing calls and listening sockets.
type Network interface {
	Dial(ctx context.Context, host string, port int) (Conn, error)
	Listen(port int) (Listener, error)
}

// FirmwareLoader returns the content of a named firmware image.
type FirmwareLoader interface {
	LoadFirmware(name string) ([]byte, error)
}

// Sniffer records relayed traffic.
type Sniffer interface {
	DumpOutput(p []byte)
	DumpInput(p []byte)
	SetEnable(enabled bool)
	Close() error
}

// ScanResult describes one network found by WiFi.ScanNetworks.
type ScanResult struct {
	SSID    string
	BSSID   string
	RSSI    int
	Channel int
	Open    bool
}

//go:generate go run go.uber.org/mock/mockgen@v0.5.0 -destination=mock_wifi_test.go -package=siomodem . WiFi

// WiFi is the network-interface manager used by ATWIFILIST, ATWIFICONNECT and ATIP.
type WiFi interface {
	Connected() bool
	Connect(ssid, key string) error
	ScanNetworks() (int, error)
	ScanResult(i int) (ScanResult, error)
	IPAddress() string
}

// ErrNoCaller is returned by Listener.Accept when nobody is waiting.
var ErrNoCaller = errors.New("no pending caller")

var errNoFirmware = errors.New("no firmware loader configured")

type noFirmware struct{}

func (noFirmware) LoadFirmware(string) ([]byte, error) { return nil, errNoFirmware }

type nopSniffer struct{}

func (nopSniffer) DumpOutput([]byte) {}
func (nopSniffer) DumpInput([]byte)  {}
func (nopSniffer) SetEnable(bool)    {}
func (nopSniffer) Close() error      { return nil }

type noWiFi struct{}

func (noWiFi) Connected() bool                    { return false }
func (noWiFi) Connect(string, string) error       { return errors.New("no network interface manager") }
func (noWiFi) ScanNetworks() (int, error)         { return 0, nil }
func (noWiFi) ScanResult(int) (ScanResult, error) { return ScanResult{}, errors.New("no scan results") }
func (noWiFi) IPAddress() string                  { return "" }
