package client

import (
	"context"

	"echonet/internal/metrics"
	"echonet/internal/transport"
	"echonet/util"
)

// StreamClient talks to a stream server over one TCP connection.
type StreamClient struct {
	ep      transport.Endpoint
	addr    string
	logger  *util.Logger
	metrics *metrics.Collector
}

// DialStream connects to addr.  opts.Timeout must be positive and bounds
// every later send and receive.
func DialStream(ctx context.Context, addr string, opts Options) (*StreamClient, error) {
	ep, err := transport.DialStream(ctx, addr, opts.transport())
	if err != nil {
		return nil, err
	}
	logger := opts.logger()
	logger.Verbose("connected to %s (tcp)", ep.RemoteAddr())
	return &StreamClient{ep: ep, addr: addr, logger: logger, metrics: opts.Metrics}, nil
}

// Send transmits msg, truncated to the message size bound.
func (c *StreamClient) Send(msg []byte) error {
	if err := c.ep.Send(msg); err != nil {
		return err
	}
	c.metrics.MessageSent()
	return nil
}

// Receive reads one reply.  A read that times out is followed by one
// unbounded wait and one more read.
func (c *StreamClient) Receive() ([]byte, error) {
	msg, err := c.ep.Receive()
	if err != nil {
		return nil, err
	}
	c.metrics.MessageReceived()
	return msg, nil
}

// Request sends msg and reads one reply.
func (c *StreamClient) Request(ctx context.Context, msg []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.Send(msg); err != nil {
		return nil, err
	}
	return c.Receive()
}

// Close releases the connection.
func (c *StreamClient) Close() error { return c.ep.Close() }
