package transport

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	ncerr "echonet/internal/errors"
	"echonet/internal/metrics"
	"echonet/util"
)

// DatagramEndpoint is a UDP socket speaking the message contract.  A
// dialled endpoint has a fixed peer; a listening endpoint answers
// whoever wrote to it via ReceiveFrom / SendTo.
type DatagramEndpoint struct {
	conn    *net.UDPConn
	peer    *net.UDPAddr
	addr    string
	timeout time.Duration
	logger  *util.Logger
	metrics *metrics.Collector

	closeOnce sync.Once
	closed    atomic.Bool
}

// DialDatagram prepares a UDP socket aimed at addr.  No local listener
// is bound beyond the ephemeral source port; opts.Timeout bounds reads
// only, writes never wait.
func DialDatagram(ctx context.Context, addr string, opts Options) (*DatagramEndpoint, error) {
	if opts.Timeout <= 0 {
		return nil, ncerr.Wrap("dial", addr, ncerr.ErrInvalidTimeout)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp4", addr)
	if err != nil {
		return nil, ncerr.Wrap("dial", addr, err)
	}
	uc := conn.(*net.UDPConn)

	return &DatagramEndpoint{
		conn:    uc,
		peer:    uc.RemoteAddr().(*net.UDPAddr),
		addr:    addr,
		timeout: opts.Timeout,
		logger:  opts.logger(),
		metrics: opts.Metrics,
	}, nil
}

// ListenDatagram binds every IPv4 interface on port.  Reads on a
// listening endpoint block until a datagram arrives unless opts.Timeout
// is positive.
func ListenDatagram(ctx context.Context, port int, opts Options) (*DatagramEndpoint, error) {
	addr := util.ListenAddr(port)
	lc := net.ListenConfig{Control: reuseControl}
	pc, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		return nil, ncerr.Wrap("listen", addr, err)
	}
	uc := pc.(*net.UDPConn)

	return &DatagramEndpoint{
		conn:    uc,
		addr:    uc.LocalAddr().String(),
		timeout: opts.Timeout,
		logger:  opts.logger(),
		metrics: opts.Metrics,
	}, nil
}

// Send transmits msg to the dialled peer.
func (e *DatagramEndpoint) Send(msg []byte) error {
	if e.peer == nil {
		return ncerr.Wrap("send", e.addr, ncerr.ErrNoPeer)
	}
	return e.write(msg, nil)
}

// SendTo transmits msg to an explicit peer, typically the source of the
// datagram being answered.
func (e *DatagramEndpoint) SendTo(msg []byte, to *net.UDPAddr) error {
	if to == nil {
		return ncerr.Wrap("send", e.addr, ncerr.ErrNoPeer)
	}
	return e.write(msg, to)
}

// write issues one non-blocking send.  Failure is reported, never
// retried here.
func (e *DatagramEndpoint) write(msg []byte, to *net.UDPAddr) error {
	dst := e.addr
	if to != nil {
		dst = to.String()
	}
	if e.closed.Load() {
		return ncerr.Wrap("send", dst, ncerr.ErrClosed)
	}
	if len(msg) == 0 {
		return ncerr.ErrEmptyMessage
	}
	msg = Truncate(msg, e.logger, e.metrics)

	n, err := sendNonBlocking(e.conn, msg, to)
	e.metrics.BytesSent(int64(n))
	if err != nil {
		return ncerr.Wrap("send", dst, err)
	}
	if n != len(msg) {
		return ncerr.Wrap("send", dst, ncerr.ErrShortWrite)
	}
	return nil
}

// Receive reads one datagram.
func (e *DatagramEndpoint) Receive() ([]byte, error) {
	msg, _, err := e.ReceiveFrom()
	return msg, err
}

// ReceiveFrom reads one datagram and reports who sent it.  A zero-length
// datagram is reported as ErrEmptyMessage.
func (e *DatagramEndpoint) ReceiveFrom() ([]byte, *net.UDPAddr, error) {
	if e.closed.Load() {
		return nil, nil, ncerr.Wrap("receive", e.addr, ncerr.ErrClosed)
	}

	var deadline time.Time
	if e.timeout > 0 {
		deadline = time.Now().Add(e.timeout)
	}
	if err := e.conn.SetReadDeadline(deadline); err != nil {
		return nil, nil, ncerr.Wrap("receive", e.addr, err)
	}

	bufp := getBuf()
	defer putBuf(bufp)
	buf := *bufp

	n, from, err := e.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, from, ncerr.Wrap("receive", e.addr, err)
	}
	if n == 0 {
		return nil, from, ncerr.Wrap("receive", from.String(), ncerr.ErrEmptyMessage)
	}
	e.metrics.BytesReceived(int64(n))
	return copyOut(buf, n), from, nil
}

// Drain discards datagrams that are already queued, typically replies
// that arrived after their request gave up.  It never waits and reports
// how many were dropped.
func (e *DatagramEndpoint) Drain() (int, error) {
	if e.closed.Load() {
		return 0, ncerr.Wrap("drain", e.addr, ncerr.ErrClosed)
	}

	bufp := getBuf()
	defer putBuf(bufp)

	n, err := drainNonBlocking(e.conn, *bufp)
	if err != nil {
		return n, ncerr.Wrap("drain", e.addr, err)
	}
	return n, nil
}

// LocalAddr returns the bound address.
func (e *DatagramEndpoint) LocalAddr() net.Addr { return e.conn.LocalAddr() }

// Peer returns the dialled peer, or nil for a listening endpoint.
func (e *DatagramEndpoint) Peer() *net.UDPAddr { return e.peer }

// Close releases the socket.  Only the first call has an effect.
func (e *DatagramEndpoint) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		err = e.conn.Close()
	})
	return err
}
