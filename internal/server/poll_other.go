//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package server

import "errors"

func pollReadable([]int) ([]bool, error) {
	return nil, errors.New("poll(2) is not available on this platform")
}
