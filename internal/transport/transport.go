// Package transport provides the two message endpoints echonet speaks:
// a TCP stream endpoint and a UDP datagram endpoint.  Both honour the
// same contract: one Send transmits at most MaxMessageSize bytes in a
// single operation, and one Receive performs a single read of up to
// MaxMessageSize bytes.  Payload interpretation is someone else's job.
package transport

import (
	"time"

	"echonet/internal/metrics"
	"echonet/util"
)

// MaxMessageSize bounds every application message.  65507 is the
// largest payload of a single IPv4 UDP datagram; TCP has no such limit
// but uses the same bound so both protocols behave identically.
const MaxMessageSize = 65507

// Endpoint is one open communication channel.
type Endpoint interface {
	// Send transmits msg, truncated to MaxMessageSize.  Empty input is
	// rejected with ErrEmptyMessage and nothing is sent.
	Send(msg []byte) error

	// Receive performs one bounded read and returns the bytes read.
	Receive() ([]byte, error)

	// Close releases the channel.  Only the first call has an effect.
	Close() error
}

// Options carries the knobs shared by every endpoint constructor.
type Options struct {
	// Timeout bounds each read and write.  Constructors that require a
	// timeout reject non-positive values with ErrInvalidTimeout.
	Timeout time.Duration
	Logger  *util.Logger
	Metrics *metrics.Collector
}

func (o Options) logger() *util.Logger {
	if o.Logger == nil {
		return util.NewLogger(0)
	}
	return o.Logger
}

// Truncate caps msg at MaxMessageSize.  Oversized input is not an
// error; it is cut and a warning is logged.
func Truncate(msg []byte, logger *util.Logger, m *metrics.Collector) []byte {
	if len(msg) <= MaxMessageSize {
		return msg
	}
	if logger != nil {
		logger.Warn("message is too long (%d bytes), it will be truncated to %d bytes",
			len(msg), MaxMessageSize)
	}
	m.MessageTruncated()
	return msg[:MaxMessageSize]
}
