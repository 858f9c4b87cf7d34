package serialport

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.bug.st/serial"

	"github.com/jaracil/siomodem/sio"
)

type chunk struct {
	command bool
	data    []byte
}

// fakeSerial replays scripted chunks. Status bits report the command state
// of the chunk that the next Read will return.
type fakeSerial struct {
	mu      sync.Mutex
	chunks  []chunk
	written []byte
	mode    *serial.Mode
	drained int
	closed  bool
}

func (f *fakeSerial) push(command bool, data ...byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, chunk{command, data})
}

func (f *fakeSerial) SetMode(mode *serial.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode = mode
	return nil
}

func (f *fakeSerial) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0, errors.New("port closed")
	}
	if len(f.chunks) == 0 {
		f.mu.Unlock()
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	c := f.chunks[0]
	f.chunks = f.chunks[1:]
	f.mu.Unlock()
	return copy(p, c.data), nil
}

func (f *fakeSerial) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, p...)
	return len(p), nil
}

func (f *fakeSerial) Drain() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drained++
	return nil
}

func (f *fakeSerial) ResetInputBuffer() error  { return nil }
func (f *fakeSerial) ResetOutputBuffer() error { return nil }
func (f *fakeSerial) SetDTR(bool) error        { return nil }
func (f *fakeSerial) SetRTS(bool) error        { return nil }

func (f *fakeSerial) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	command := len(f.chunks) > 0 && f.chunks[0].command
	return &serial.ModemStatusBits{RI: command}, nil
}

func (f *fakeSerial) SetReadTimeout(time.Duration) error { return nil }

func (f *fakeSerial) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSerial) Break(time.Duration) error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFrame(t *testing.T, p *Port) sio.CommandFrame {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if f, ok := p.Frame(); ok {
			return f
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no command frame received")
	return sio.CommandFrame{}
}

func TestParseCommandLine(t *testing.T) {
	tests := []struct {
		in      string
		want    CommandLine
		wantErr bool
	}{
		{"", CommandRI, false},
		{"RI", CommandRI, false},
		{"dsr", CommandDSR, false},
		{"Cts", CommandCTS, false},
		{"dcd", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseCommandLine(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCommandLine(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCommandLine(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPortSeparatesFramesFromData(t *testing.T) {
	fake := &fakeSerial{}
	frame := sio.NewFrame(sio.DeviceRS232, sio.CmdStatus, 0, 0)
	fake.push(false, 'h', 'i')
	fake.push(true, frame.Bytes()[:3]...)
	fake.push(true, frame.Bytes()[3:]...)
	fake.push(false, '!')

	p := newPort(fake, CommandRI, testLogger())
	defer p.Close()

	got := waitFrame(t, p)
	if got != frame {
		t.Errorf("Frame() = %v, want %v", got, frame)
	}

	buf := make([]byte, 3)
	if err := p.ReadFull(buf, time.Second); err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	if string(buf) != "hi!" {
		t.Errorf("data = %q, want %q", buf, "hi!")
	}
}

func TestPortDropsBadChecksum(t *testing.T) {
	fake := &fakeSerial{}
	bad := sio.NewFrame(sio.DeviceRS232, sio.CmdStatus, 0, 0).Bytes()
	bad[4] ^= 0xFF
	good := sio.NewFrame(sio.DevicePoll, sio.CmdType3Poll, 0x4F, 0x4F)
	fake.push(true, bad...)
	fake.push(false)
	fake.push(true, good.Bytes()...)

	p := newPort(fake, CommandRI, testLogger())
	defer p.Close()

	if got := waitFrame(t, p); got != good {
		t.Errorf("Frame() = %v, want %v", got, good)
	}
	if _, ok := p.Frame(); ok {
		t.Error("Frame() returned an extra frame")
	}
}

func TestPortSetBaudAndFlush(t *testing.T) {
	fake := &fakeSerial{}
	p := newPort(fake, CommandRI, testLogger())
	defer p.Close()

	if err := p.SetBaud(1200); err != nil {
		t.Fatalf("SetBaud() error = %v", err)
	}
	if _, err := p.Write([]byte("OK")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := p.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.mode == nil || fake.mode.BaudRate != 1200 || fake.mode.DataBits != 8 {
		t.Errorf("mode = %+v, want 1200 8N1", fake.mode)
	}
	if string(fake.written) != "OK" {
		t.Errorf("written = %q, want %q", fake.written, "OK")
	}
	if fake.drained != 1 {
		t.Errorf("drained = %d, want 1", fake.drained)
	}
}

func TestPortCloseEndsData(t *testing.T) {
	fake := &fakeSerial{}
	p := newPort(fake, CommandRI, testLogger())
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := p.Read(make([]byte, 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("Read() after Close error = %v, want %v", err, ErrClosed)
	}
}
