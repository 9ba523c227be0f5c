package client

import (
	"context"
	"fmt"

	ncerr "echonet/internal/errors"
	"echonet/internal/metrics"
	"echonet/internal/retry"
	"echonet/internal/transport"
	"echonet/util"
)

// DatagramClient talks to a datagram server.  There is no delivery
// guarantee underneath, so Request resends until a reply arrives.
type DatagramClient struct {
	ep       transport.Endpoint
	addr     string
	maxTries int
	policy   *retry.Backoff
	logger   *util.Logger
	metrics  *metrics.Collector
}

// DialDatagram prepares a UDP socket aimed at addr.  opts.Timeout bounds
// each receive; opts.MaxTries must be positive.
func DialDatagram(ctx context.Context, addr string, opts Options) (*DatagramClient, error) {
	if opts.MaxTries <= 0 {
		return nil, fmt.Errorf("max tries must be a positive value, got %d", opts.MaxTries)
	}
	ep, err := transport.DialDatagram(ctx, addr, opts.transport())
	if err != nil {
		return nil, err
	}
	opts.logger().Verbose("sending to %s (udp)", addr)
	return NewDatagram(ep, addr, opts), nil
}

// NewDatagram wraps an existing endpoint.  A non-positive MaxTries is
// treated as one.
func NewDatagram(ep transport.Endpoint, addr string, opts Options) *DatagramClient {
	tries := opts.MaxTries
	if tries <= 0 {
		tries = 1
	}
	c := &DatagramClient{
		ep:       ep,
		addr:     addr,
		maxTries: tries,
		logger:   opts.logger(),
		metrics:  opts.Metrics,
	}
	c.policy = newPolicy(opts, tries)
	c.policy.OnRetry = func(attempt int, err error) {
		c.logger.Verbose("no reply from %s (attempt %d/%d): %v", c.addr, attempt, c.maxTries, err)
		c.metrics.Resend()
	}
	return c
}

func newPolicy(opts Options, tries int) *retry.Backoff {
	if !opts.Backoff {
		return retry.Constant(opts.RetryDelay, tries)
	}
	b := retry.DefaultBackoff()
	b.MaxAttempts = tries
	if opts.RetryDelay > 0 {
		b.InitialDelay = opts.RetryDelay
	}
	if opts.Timeout > 0 && opts.Timeout >= b.InitialDelay {
		b.MaxDelay = opts.Timeout
	}
	return b
}

// drainer is implemented by endpoints that can drop queued datagrams.
type drainer interface {
	Drain() (int, error)
}

// Send transmits one datagram.  A failed or partial send is reported,
// never retried here.
func (c *DatagramClient) Send(msg []byte) error {
	if err := c.ep.Send(msg); err != nil {
		return err
	}
	c.metrics.MessageSent()
	return nil
}

// Receive waits up to the timeout for one datagram.
func (c *DatagramClient) Receive() ([]byte, error) {
	msg, err := c.ep.Receive()
	if err != nil {
		return nil, err
	}
	c.metrics.MessageReceived()
	return msg, nil
}

// Request sends msg and waits for a reply, up to MaxTries times.  Each
// attempt makes one send and one receive; the first reply received wins.
// When every attempt fails, exactly MaxTries sends and MaxTries receives
// have been made.
func (c *DatagramClient) Request(ctx context.Context, msg []byte) ([]byte, error) {
	if len(msg) == 0 {
		return nil, ncerr.ErrEmptyMessage
	}

	// Replies to a request that already gave up would otherwise be read
	// as the answer to this one.
	if d, ok := c.ep.(drainer); ok {
		if n, err := d.Drain(); err != nil {
			c.logger.Debug("drain %s: %v", c.addr, err)
		} else if n > 0 {
			c.logger.Verbose("discarded %d stale replies from %s", n, c.addr)
		}
	}

	var reply []byte
	err := c.policy.Do(ctx, func(attempt int) error {
		if err := c.Send(msg); err != nil {
			if ncerr.IsClosed(err) {
				return retry.Permanent(err)
			}
			// A reply to an earlier attempt may still be on its way.
			c.logger.Debug("send to %s failed on attempt %d: %v", c.addr, attempt, err)
		}
		r, err := c.Receive()
		if err != nil {
			if ncerr.IsClosed(err) {
				return retry.Permanent(err)
			}
			return err
		}
		reply = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("request to %s: %w", c.addr, err)
	}
	return reply, nil
}

// Close releases the socket.
func (c *DatagramClient) Close() error { return c.ep.Close() }
