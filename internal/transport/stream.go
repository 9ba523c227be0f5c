package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	ncerr "echonet/internal/errors"
	"echonet/internal/metrics"
	"echonet/util"
)

// StreamEndpoint is a TCP connection speaking the message contract.
type StreamEndpoint struct {
	conn    *net.TCPConn
	raw     syscall.RawConn
	addr    string
	timeout time.Duration
	logger  *util.Logger
	metrics *metrics.Collector

	// retryOnTimeout enables the wait-then-read-once-more pattern on
	// Receive.  Client endpoints use it; server peers already know the
	// socket is readable when they read.
	retryOnTimeout bool

	closeOnce sync.Once
	closed    atomic.Bool
}

// DialStream connects to addr over TCP.  The connect itself is bounded
// only by ctx; opts.Timeout applies to every later read and write.
func DialStream(ctx context.Context, addr string, opts Options) (*StreamEndpoint, error) {
	if opts.Timeout <= 0 {
		return nil, ncerr.Wrap("dial", addr, ncerr.ErrInvalidTimeout)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp4", addr)
	if err != nil {
		return nil, ncerr.Wrap("dial", addr, err)
	}

	ep, err := newStreamEndpoint(conn.(*net.TCPConn), opts, true)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ep, nil
}

func newStreamEndpoint(conn *net.TCPConn, opts Options, retryOnTimeout bool) (*StreamEndpoint, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return nil, ncerr.Wrap("init", conn.RemoteAddr().String(), err)
	}
	return &StreamEndpoint{
		conn:           conn,
		raw:            raw,
		addr:           conn.RemoteAddr().String(),
		timeout:        opts.Timeout,
		logger:         opts.logger(),
		metrics:        opts.Metrics,
		retryOnTimeout: retryOnTimeout,
	}, nil
}

// Send writes msg in one operation, truncated to MaxMessageSize.
func (e *StreamEndpoint) Send(msg []byte) error {
	if e.closed.Load() {
		return ncerr.Wrap("send", e.addr, ncerr.ErrClosed)
	}
	if len(msg) == 0 {
		return ncerr.ErrEmptyMessage
	}
	msg = Truncate(msg, e.logger, e.metrics)

	if err := e.conn.SetWriteDeadline(time.Now().Add(e.timeout)); err != nil {
		return ncerr.Wrap("send", e.addr, err)
	}
	n, err := e.conn.Write(msg)
	e.metrics.BytesSent(int64(n))
	if err != nil {
		return ncerr.Wrap("send", e.addr, err)
	}
	if n != len(msg) {
		return ncerr.Wrap("send", e.addr, ncerr.ErrShortWrite)
	}
	return nil
}

// Receive reads at most MaxMessageSize bytes.  A clean remote close
// yields ErrPeerClosed.
//
// On client endpoints a timed-out read is followed by one unbounded
// wait for readability and exactly one more read.
func (e *StreamEndpoint) Receive() ([]byte, error) {
	if e.closed.Load() {
		return nil, ncerr.Wrap("receive", e.addr, ncerr.ErrClosed)
	}

	bufp := getBuf()
	defer putBuf(bufp)
	buf := *bufp

	n, err := e.readOnce(buf)
	if err != nil && e.retryOnTimeout && ncerr.IsTimeout(err) {
		e.logger.Debug("receive from %s timed out, waiting for data", e.addr)
		if werr := e.waitReadable(); werr != nil {
			err = werr
		} else {
			n, err = e.readOnce(buf)
		}
	}

	if n > 0 {
		e.metrics.BytesReceived(int64(n))
		return copyOut(buf, n), nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = ncerr.ErrPeerClosed
	}
	return nil, ncerr.Wrap("receive", e.addr, err)
}

func (e *StreamEndpoint) readOnce(buf []byte) (int, error) {
	if err := e.conn.SetReadDeadline(time.Now().Add(e.timeout)); err != nil {
		return 0, err
	}
	return e.conn.Read(buf)
}

// waitReadable blocks, without a deadline, until the socket becomes
// readable or is closed.
func (e *StreamEndpoint) waitReadable() error {
	if err := e.conn.SetReadDeadline(time.Time{}); err != nil {
		return err
	}
	waited := false
	return e.raw.Read(func(uintptr) bool {
		if waited {
			return true
		}
		waited = true
		return false
	})
}

// FD returns the socket descriptor for readiness polling.
func (e *StreamEndpoint) FD() (int, error) { return fdOf(e.conn) }

// RemoteAddr returns the peer's address.
func (e *StreamEndpoint) RemoteAddr() net.Addr { return e.conn.RemoteAddr() }

// LocalAddr returns the local socket address.
func (e *StreamEndpoint) LocalAddr() net.Addr { return e.conn.LocalAddr() }

// Close shuts down both directions and releases the socket.
func (e *StreamEndpoint) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		err = e.conn.Close()
	})
	return err
}

// ── Listener ─────────────────────────────────────────────────────────

// StreamListener is a bound, listening TCP socket.
type StreamListener struct {
	ln   *net.TCPListener
	opts Options

	closeOnce sync.Once
}

// ListenStream binds every IPv4 interface on port (0 picks an ephemeral
// port) and listens with the given pending-connection backlog.
func ListenStream(port, backlog int, opts Options) (*StreamListener, error) {
	addr := util.ListenAddr(port)
	if opts.Timeout <= 0 {
		return nil, ncerr.Wrap("listen", addr, ncerr.ErrInvalidTimeout)
	}
	if backlog <= 0 {
		return nil, ncerr.Wrap("listen", addr, errors.New("backlog must be a positive value"))
	}

	ln, err := listenStream(port, backlog)
	if err != nil {
		return nil, ncerr.Wrap("listen", addr, err)
	}
	return &StreamListener{ln: ln, opts: opts}, nil
}

// Accept takes one pending connection.  The wait is bounded by the
// endpoint timeout so a connection that vanished between readiness and
// accept cannot stall the caller.
func (l *StreamListener) Accept() (*StreamEndpoint, error) {
	addr := l.ln.Addr().String()
	if err := l.ln.SetDeadline(time.Now().Add(l.opts.Timeout)); err != nil {
		return nil, ncerr.Wrap("accept", addr, err)
	}
	conn, err := l.ln.AcceptTCP()
	if err != nil {
		return nil, ncerr.Wrap("accept", addr, err)
	}
	ep, err := newStreamEndpoint(conn, l.opts, false)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ep, nil
}

// Addr returns the bound address.
func (l *StreamListener) Addr() net.Addr { return l.ln.Addr() }

// FD returns the listening descriptor for readiness polling.
func (l *StreamListener) FD() (int, error) { return fdOf(l.ln) }

// Close stops listening.  Only the first call has an effect.
func (l *StreamListener) Close() error {
	var err error
	l.closeOnce.Do(func() { err = l.ln.Close() })
	return err
}
