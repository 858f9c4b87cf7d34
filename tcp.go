package siomodem

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/jaracil/siomodem/internal/stream"
)

// TCPNetwork is the Network used when none is configured: plain TCP sockets
// whose receive side is pumped into a buffer so reads never block.
type TCPNetwork struct {
	// Logger receives connection level records (default: slog.Default())
	Logger *slog.Logger
	// ListenAddress is the local address listeners bind to (default: all interfaces)
	ListenAddress string
	// Dialer is used for outgoing calls
	Dialer net.Dialer
}

func (n *TCPNetwork) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.Default()
	}
	return n.Logger
}

// Dial opens an outgoing call.
func (n *TCPNetwork) Dial(ctx context.Context, host string, port int) (Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	c, err := n.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoCarrier, err)
	}
	n.logger().Debug("TCP connected", "remote", c.RemoteAddr())
	return newTCPConn(c), nil
}

// Listen binds a listener on port. Port 0 picks a free port.
func (n *TCPNetwork) Listen(port int) (Listener, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(n.ListenAddress, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("listening on port %d: %w", port, err)
	}
	l := &tcpListener{
		ln:   ln,
		log:  n.logger(),
		slot: make(chan net.Conn, 1),
		done: make(chan struct{}),
	}
	l.wg.Add(1)
	go l.acceptLoop()
	return l, nil
}

type tcpConn struct {
	conn net.Conn
	rx   *stream.Buffer
}

func newTCPConn(c net.Conn) *tcpConn {
	t := &tcpConn{conn: c, rx: stream.NewBuffer()}
	go stream.Pump(c, t.rx, rxChunkSize)
	return t
}

func (t *tcpConn) Read(p []byte) (int, error) {
	return t.rx.Read(p)
}

func (t *tcpConn) Write(p []byte) (int, error) {
	return t.conn.Write(p)
}

func (t *tcpConn) Available() int {
	return t.rx.Available()
}

// Connected stays true while received data is still buffered.
func (t *tcpConn) Connected() bool {
	return t.rx.Available() > 0 || t.rx.Err() == nil
}

func (t *tcpConn) SetNoDelay(noDelay bool) error {
	if tc, ok := t.conn.(*net.TCPConn); ok {
		return tc.SetNoDelay(noDelay)
	}
	return nil
}

func (t *tcpConn) Close() error {
	t.rx.CloseWithError(net.ErrClosed)
	return t.conn.Close()
}

// tcpListener accepts one caller at a time into a single pending slot.
// Further callers wait in the kernel backlog until the slot is taken.
type tcpListener struct {
	ln   net.Listener
	log  *slog.Logger
	slot chan net.Conn
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func (l *tcpListener) acceptLoop() {
	defer l.wg.Done()
	for {
		c, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.done:
			default:
				l.log.Warn("Accept failed", "error", err)
			}
			return
		}
		l.log.Debug("Incoming caller", "remote", c.RemoteAddr())
		select {
		case l.slot <- c:
		case <-l.done:
			c.Close()
			return
		}
	}
}

func (l *tcpListener) HasClient() bool {
	return len(l.slot) > 0
}

func (l *tcpListener) Accept() (Conn, error) {
	select {
	case c := <-l.slot:
		return newTCPConn(c), nil
	default:
		return nil, ErrNoCaller
	}
}

func (l *tcpListener) Addr() net.Addr {
	return l.ln.Addr()
}

func (l *tcpListener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		err = l.ln.Close()
		l.wg.Wait()
		select {
		case c := <-l.slot:
			c.Close()
		default:
		}
	})
	return err
}
