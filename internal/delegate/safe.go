package delegate

import (
	"runtime/debug"

	"echonet/util"
)

// Safe wraps d so that a panic inside Process is logged and turned into
// an empty reply instead of unwinding the server loop.
func Safe(d Delegate, logger *util.Logger) Delegate {
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &safe{next: d, logger: logger}
}

type safe struct {
	next   Delegate
	logger *util.Logger
}

func (s *safe) Process(msg []byte) (reply []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("delegate panicked: %v", r)
			s.logger.Debug("%s", debug.Stack())
			reply = nil
		}
	}()
	return s.next.Process(msg)
}
