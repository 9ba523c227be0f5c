package server

import (
	"context"
	"net"
	"sync/atomic"

	"echonet/internal/delegate"
	ncerr "echonet/internal/errors"
	"echonet/internal/metrics"
	"echonet/internal/transport"
	"echonet/util"
)

// DatagramServer answers UDP datagrams one at a time.  Each reply goes
// to the address the request came from, on a best-effort basis.
type DatagramServer struct {
	ep       *transport.DatagramEndpoint
	delegate delegate.Delegate
	logger   *util.Logger
	metrics  *metrics.Collector

	state atomic.Int32
}

// NewDatagramServer binds cfg.Port on every IPv4 interface.
func NewDatagramServer(cfg Config, d delegate.Delegate) (*DatagramServer, error) {
	logger := cfg.logger("udp")
	ep, err := transport.ListenDatagram(context.Background(), cfg.Port, transport.Options{
		Logger:  logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Listening on %s", ep.LocalAddr())
	return &DatagramServer{
		ep:       ep,
		delegate: delegate.Safe(d, logger),
		logger:   logger,
		metrics:  cfg.Metrics,
	}, nil
}

// Addr returns the bound address.
func (s *DatagramServer) Addr() net.Addr { return s.ep.LocalAddr() }

// State returns the current lifecycle state.
func (s *DatagramServer) State() State { return State(s.state.Load()) }

// Serve reads datagrams until ctx is cancelled or Close is called.
// Cancellation closes the socket, which unblocks the pending read.
func (s *DatagramServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.ep.Close() })
	defer stop()

	for {
		msg, from, err := s.ep.ReceiveFrom()
		if err != nil {
			if ctx.Err() != nil || ncerr.IsClosed(err) {
				s.ep.Close() //nolint:errcheck
				s.state.Store(int32(ShutDown))
				s.logger.Info("Shut down")
				return nil
			}
			if ncerr.Is(err, ncerr.ErrEmptyMessage) {
				s.logger.Verbose("Message is empty (from %s)", from)
			} else {
				s.logger.Warn("Cannot read message: %v", err)
				s.metrics.RecordError(err.Error())
			}
			continue
		}

		s.metrics.MessageReceived()
		s.logger.Verbose("Received message from %s (%d bytes)", from, len(msg))
		s.logger.Debug("%s: %q", from, msg)

		reply := s.delegate.Process(msg)
		if len(reply) == 0 {
			continue
		}
		if err := s.ep.SendTo(reply, from); err != nil {
			s.logger.Warn("Cannot send message to %s: %v", from, err)
			s.metrics.RecordError(err.Error())
			continue
		}
		s.metrics.MessageSent()
	}
}

// Close releases the socket.  A running Serve returns nil.
func (s *DatagramServer) Close() error {
	err := s.ep.Close()
	s.state.Store(int32(ShutDown))
	return err
}
