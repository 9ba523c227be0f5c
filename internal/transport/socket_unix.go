//go:build linux || darwin || freebsd || netbsd || openbsd

package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// listenStream builds the listening socket by hand because the net
// package offers no way to choose the listen(2) backlog.
func listenStream(port, backlog int) (*net.TCPListener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	unix.CloseOnExec(fd)

	fail := func(op string, err error) (*net.TCPListener, error) {
		unix.Close(fd) //nolint:errcheck
		return nil, os.NewSyscallError(op, err)
	}

	if err := setReuse(fd); err != nil {
		return fail("setsockopt", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		return fail("bind", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return fail("listen", err)
	}

	// FileListener dups the descriptor; the original is closed here.
	f := os.NewFile(uintptr(fd), fmt.Sprintf("tcp4-listener:%d", port))
	defer f.Close()

	ln, err := net.FileListener(f)
	if err != nil {
		return nil, err
	}
	tl, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return nil, fmt.Errorf("unexpected listener type %T", ln)
	}
	return tl, nil
}

// setReuse enables quick server restarts on the same port.
func setReuse(fd int) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return err
	}
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
}

// reuseControl is a net.ListenConfig hook applying setReuse.
func reuseControl(_, _ string, c syscall.RawConn) error {
	var serr error
	if err := c.Control(func(fd uintptr) { serr = setReuse(int(fd)) }); err != nil {
		return err
	}
	if serr != nil {
		return os.NewSyscallError("setsockopt", serr)
	}
	return nil
}

// sendNonBlocking issues a single MSG_DONTWAIT send.  When the socket
// buffer is full the send fails instead of parking the goroutine.
func sendNonBlocking(conn *net.UDPConn, p []byte, to *net.UDPAddr) (int, error) {
	var sa unix.Sockaddr
	if to != nil {
		ip4 := to.IP.To4()
		if ip4 == nil {
			return 0, errors.New("peer is not an IPv4 address")
		}
		sin := &unix.SockaddrInet4{Port: to.Port}
		copy(sin.Addr[:], ip4)
		sa = sin
	}

	rc, err := conn.SyscallConn()
	if err != nil {
		return 0, err
	}

	var (
		n    int
		serr error
	)
	if err := rc.Write(func(fd uintptr) bool {
		n, serr = unix.SendmsgN(int(fd), p, nil, sa, unix.MSG_DONTWAIT)
		return true
	}); err != nil {
		return 0, err
	}
	if serr != nil {
		return 0, os.NewSyscallError("sendmsg", serr)
	}
	return n, nil
}

// drainNonBlocking discards every datagram already queued on conn
// without waiting for more.
func drainNonBlocking(conn *net.UDPConn, buf []byte) (int, error) {
	rc, err := conn.SyscallConn()
	if err != nil {
		return 0, err
	}

	drained := 0
	for {
		var rerr error
		if err := rc.Read(func(fd uintptr) bool {
			_, _, rerr = unix.Recvfrom(int(fd), buf, unix.MSG_DONTWAIT)
			return true
		}); err != nil {
			return drained, err
		}
		if errors.Is(rerr, unix.EAGAIN) {
			return drained, nil
		}
		if rerr != nil {
			return drained, os.NewSyscallError("recvfrom", rerr)
		}
		drained++
	}
}
