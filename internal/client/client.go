// Package client implements the two message clients.  A StreamClient
// keeps one TCP connection; a DatagramClient sends over UDP and resends
// a request until a reply arrives or its attempt budget is spent.
package client

import (
	"context"
	"time"

	"echonet/internal/metrics"
	"echonet/internal/transport"
	"echonet/util"
)

// Client is a request/reply channel to one server.
type Client interface {
	transport.Endpoint

	// Request sends msg and returns the server's reply.
	Request(ctx context.Context, msg []byte) ([]byte, error)
}

// Options configures both client kinds.  MaxTries, RetryDelay and
// Backoff are used by DatagramClient only.
type Options struct {
	Timeout    time.Duration
	MaxTries   int
	RetryDelay time.Duration
	// Backoff grows the pause between attempts exponentially from
	// RetryDelay, capped at Timeout.
	Backoff bool
	Logger  *util.Logger
	Metrics *metrics.Collector
}

func (o Options) transport() transport.Options {
	return transport.Options{Timeout: o.Timeout, Logger: o.logger(), Metrics: o.Metrics}
}

func (o Options) logger() *util.Logger {
	if o.Logger == nil {
		return util.NewLogger(0)
	}
	return o.Logger
}
