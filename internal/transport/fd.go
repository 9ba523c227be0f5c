package transport

import (
	"fmt"
	"syscall"
)

// fdOf returns the OS descriptor behind a socket.  The descriptor stays
// valid until the owning connection is closed.
func fdOf(c syscall.Conn) (int, error) {
	rc, err := c.SyscallConn()
	if err != nil {
		return -1, fmt.Errorf("syscall conn: %w", err)
	}
	fd := -1
	if err := rc.Control(func(s uintptr) { fd = int(s) }); err != nil {
		return -1, fmt.Errorf("control: %w", err)
	}
	return fd, nil
}
