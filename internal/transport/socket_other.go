//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package transport

import (
	"context"
	"net"
	"syscall"
	"time"

	"echonet/util"
)

// listenStream falls back to the net package; the backlog is left to
// the operating system default.
func listenStream(port, _ int) (*net.TCPListener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp4", util.ListenAddr(port))
	if err != nil {
		return nil, err
	}
	return ln.(*net.TCPListener), nil
}

func reuseControl(_, _ string, _ syscall.RawConn) error { return nil }

func sendNonBlocking(conn *net.UDPConn, p []byte, to *net.UDPAddr) (int, error) {
	if to == nil {
		return conn.Write(p)
	}
	return conn.WriteToUDP(p, to)
}

// drainNonBlocking approximates a non-blocking read with a deadline
// just ahead of now.
func drainNonBlocking(conn *net.UDPConn, buf []byte) (int, error) {
	defer conn.SetReadDeadline(time.Time{}) //nolint:errcheck

	drained := 0
	for {
		if err := conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
			return drained, err
		}
		if _, _, err := conn.ReadFromUDP(buf); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return drained, nil
			}
			return drained, err
		}
		drained++
	}
}
