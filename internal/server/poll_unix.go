//go:build linux || darwin || freebsd || netbsd || openbsd

package server

import (
	"os"

	"golang.org/x/sys/unix"
)

const readyMask = unix.POLLIN | unix.POLLHUP | unix.POLLERR | unix.POLLNVAL

// pollReadable blocks until at least one of fds is readable, hung up or
// in error, and reports which.  EINTR is retried: the Go runtime
// interrupts system calls with its own signals.
func pollReadable(fds []int) ([]bool, error) {
	pfds := make([]unix.PollFd, len(fds))
	for i, fd := range fds {
		pfds[i] = unix.PollFd{Fd: int32(fd), Events: unix.POLLIN}
	}

	for {
		_, err := unix.Poll(pfds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, os.NewSyscallError("poll", err)
		}
		break
	}

	ready := make([]bool, len(fds))
	for i := range pfds {
		ready[i] = pfds[i].Revents&readyMask != 0
	}
	return ready, nil
}
