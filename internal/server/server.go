// Package server runs the two message servers: a single-goroutine,
// poll-driven TCP server that multiplexes every connected client, and
// a UDP server answering each datagram where it came from.  Both hand
// every message to a delegate.Delegate and send back whatever it
// returns.
package server

import (
	"context"
	"net"
	"time"

	"echonet/internal/metrics"
	"echonet/util"
)

// Server is the common surface of StreamServer and DatagramServer.
type Server interface {
	// Serve runs the server loop until ctx is cancelled or Close is
	// called.  A clean shutdown returns nil.
	Serve(ctx context.Context) error

	// Addr returns the bound local address.
	Addr() net.Addr

	// State reports where the server is in its lifecycle.
	State() State

	// Close stops the server and releases every socket it owns.
	Close() error
}

// State is a server lifecycle state.
type State int32

const (
	Listening State = iota
	Failed
	ShutDown
)

func (s State) String() string {
	switch s {
	case Listening:
		return "listening"
	case Failed:
		return "failed"
	case ShutDown:
		return "shut down"
	}
	return "unknown"
}

// Config holds the parameters shared by both servers.  Backlog applies
// to the stream server only.  Timeout bounds each peer read, peer write
// and accept on the stream server; the datagram server blocks on reads.
type Config struct {
	Port    int
	Backlog int
	Timeout time.Duration
	Logger  *util.Logger
	Metrics *metrics.Collector
}

func (c Config) logger(name string) *util.Logger {
	l := c.Logger
	if l == nil {
		l = util.NewLogger(0)
	}
	return l.Named(name)
}
