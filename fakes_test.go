package siomodem

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/jaracil/siomodem/internal/stream"
	"github.com/jaracil/siomodem/sio"
)

// fakeBus is a scripted Bus. Frames and stream input are queued by the test,
// everything the modem writes is collected in out.
type fakeBus struct {
	frames  []sio.CommandFrame
	in      []byte
	out     []byte
	baud    int
	flushes int
	readErr error
}

func (b *fakeBus) Frame() (sio.CommandFrame, bool) {
	if len(b.frames) == 0 {
		return sio.CommandFrame{}, false
	}
	f := b.frames[0]
	b.frames = b.frames[1:]
	return f, true
}

func (b *fakeBus) Available() int {
	return len(b.in)
}

func (b *fakeBus) Read(p []byte) (int, error) {
	if len(b.in) == 0 {
		return 0, b.readErr
	}
	n := copy(p, b.in)
	b.in = b.in[n:]
	return n, nil
}

func (b *fakeBus) ReadFull(p []byte, _ time.Duration) error {
	if len(b.in) < len(p) {
		return stream.ErrTimeout
	}
	n := copy(p, b.in)
	b.in = b.in[n:]
	return nil
}

func (b *fakeBus) Write(p []byte) (int, error) {
	b.out = append(b.out, p...)
	return len(p), nil
}

func (b *fakeBus) SetBaud(baud int) error {
	b.baud = baud
	return nil
}

func (b *fakeBus) Flush() error {
	b.flushes++
	return nil
}

// Type queues stream input as if typed on the Atari.
func (b *fakeBus) Type(s string) {
	b.in = append(b.in, s...)
}

// Take returns everything written so far and clears it.
func (b *fakeBus) Take() string {
	s := string(b.out)
	b.out = nil
	return s
}

// fakeConn is an in-memory call. Data queued in in is what the remote sent.
type fakeConn struct {
	in         []byte
	out        []byte
	closed     bool
	remoteGone bool
	noDelay    bool
}

func (c *fakeConn) Read(p []byte) (int, error) {
	if len(c.in) == 0 {
		if c.closed || c.remoteGone {
			return 0, io.EOF
		}
		return 0, nil
	}
	n := copy(p, c.in)
	c.in = c.in[n:]
	return n, nil
}

func (c *fakeConn) Write(p []byte) (int, error) {
	if c.closed {
		return 0, io.ErrClosedPipe
	}
	c.out = append(c.out, p...)
	return len(p), nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConn) Available() int {
	return len(c.in)
}

func (c *fakeConn) Connected() bool {
	return len(c.in) > 0 || (!c.closed && !c.remoteGone)
}

func (c *fakeConn) SetNoDelay(noDelay bool) error {
	c.noDelay = noDelay
	return nil
}

type fakeListener struct {
	port    int
	pending []*fakeConn
	closed  bool
}

func (l *fakeListener) HasClient() bool {
	return len(l.pending) > 0
}

func (l *fakeListener) Accept() (Conn, error) {
	if len(l.pending) == 0 {
		return nil, ErrNoCaller
	}
	c := l.pending[0]
	l.pending = l.pending[1:]
	return c, nil
}

func (l *fakeListener) Close() error {
	l.closed = true
	return nil
}

// Ring queues a caller and returns its connection.
func (l *fakeListener) Ring() *fakeConn {
	c := &fakeConn{}
	l.pending = append(l.pending, c)
	return c
}

type fakeNetwork struct {
	dials     []string
	conn      *fakeConn
	dialErr   error
	listenErr error
	listeners []*fakeListener
}

func (n *fakeNetwork) Dial(_ context.Context, host string, port int) (Conn, error) {
	n.dials = append(n.dials, host+":"+strconv.Itoa(port))
	if n.dialErr != nil {
		return nil, n.dialErr
	}
	if n.conn == nil {
		n.conn = &fakeConn{}
	}
	return n.conn, nil
}

func (n *fakeNetwork) Listen(port int) (Listener, error) {
	if n.listenErr != nil {
		return nil, n.listenErr
	}
	l := &fakeListener{port: port}
	n.listeners = append(n.listeners, l)
	return l, nil
}

// Listener returns the most recent listener.
func (n *fakeNetwork) Listener() *fakeListener {
	if len(n.listeners) == 0 {
		return nil
	}
	return n.listeners[len(n.listeners)-1]
}

type fakeFirmware map[string][]byte

func (f fakeFirmware) LoadFirmware(name string) ([]byte, error) {
	img, ok := f[name]
	if !ok {
		return nil, errors.New("not found")
	}
	return img, nil
}

type fakeSniffer struct {
	enabled bool
	out     []byte
	in      []byte
	closed  bool
}

func (s *fakeSniffer) DumpOutput(p []byte) { s.out = append(s.out, p...) }
func (s *fakeSniffer) DumpInput(p []byte)  { s.in = append(s.in, p...) }
func (s *fakeSniffer) SetEnable(e bool)    { s.enabled = e }
func (s *fakeSniffer) Close() error        { s.closed = true; return nil }

// fakeClock is advanced by the test and by every Sleep.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

// testModem bundles a modem with the fakes behind it.
type testModem struct {
	*Modem
	bus     *fakeBus
	net     *fakeNetwork
	sniffer *fakeSniffer
	clock   *fakeClock
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestModem(t *testing.T, configure ...func(*Config)) *testModem {
	t.Helper()
	tm := &testModem{
		bus:     &fakeBus{},
		net:     &fakeNetwork{},
		sniffer: &fakeSniffer{},
		clock:   newFakeClock(),
	}
	config := &Config{
		Id:       "test",
		Bus:      tm.bus,
		Network:  tm.net,
		Sniffer:  tm.sniffer,
		Logger:   testLogger(),
		Clock:    tm.clock.Now,
		Sleep:    tm.clock.Sleep,
		Firmware: fakeFirmware{},
	}
	for _, fn := range configure {
		fn(config)
	}
	m, err := NewModem(config)
	if err != nil {
		t.Fatalf("NewModem() error = %v", err)
	}
	tm.Modem = m
	return tm
}

// Command types an AT command line followed by CR and runs ticks until the
// input is consumed. It returns the bus output.
func (tm *testModem) Command(cmd string) string {
	tm.bus.Type(cmd + "\r")
	tm.drain()
	return tm.bus.Take()
}

func (tm *testModem) drain() {
	for i := 0; i < 10000; i++ {
		busy, err := tm.Step()
		if err != nil || !busy {
			return
		}
	}
}

// connect puts the modem in a call on a fresh connection.
func (tm *testModem) connect(t *testing.T) *fakeConn {
	t.Helper()
	tm.net.conn = &fakeConn{}
	tm.Command("ATDTbbs.example.com")
	if tm.Mode() != ConnectedMode {
		t.Fatalf("Mode() = %v after dial, want Connected", tm.Mode())
	}
	tm.bus.Take()
	return tm.net.conn
}
