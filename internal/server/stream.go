package server

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"echonet/internal/delegate"
	ncerr "echonet/internal/errors"
	"echonet/internal/metrics"
	"echonet/internal/transport"
	"echonet/util"
)

// StreamServer serves any number of TCP clients from one goroutine.
// Each loop iteration polls the listener and every peer, accepts at most
// one new connection, and gives each readable peer exactly one receive.
// Delegate calls are strictly sequential.
type StreamServer struct {
	ln       *transport.StreamListener
	delegate delegate.Delegate
	logger   *util.Logger
	metrics  *metrics.Collector

	state atomic.Int32

	mu        sync.Mutex
	serving   bool
	stop      chan struct{}
	closeOnce sync.Once
}

// NewStreamServer binds and listens on cfg.Port with cfg.Backlog.
// Construction fails on a non-positive timeout or backlog, or if the
// port cannot be bound.
func NewStreamServer(cfg Config, d delegate.Delegate) (*StreamServer, error) {
	logger := cfg.logger("tcp")
	ln, err := transport.ListenStream(cfg.Port, cfg.Backlog, transport.Options{
		Timeout: cfg.Timeout,
		Logger:  logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Listening on %s (backlog %d)", ln.Addr(), cfg.Backlog)
	return &StreamServer{
		ln:       ln,
		delegate: delegate.Safe(d, logger),
		logger:   logger,
		metrics:  cfg.Metrics,
		stop:     make(chan struct{}),
	}, nil
}

// Addr returns the listening address.
func (s *StreamServer) Addr() net.Addr { return s.ln.Addr() }

// State returns the current lifecycle state.
func (s *StreamServer) State() State { return State(s.state.Load()) }

// Serve runs the poll loop.  It returns nil after ctx is cancelled or
// Close is called, with every endpoint closed.  A polling failure is
// fatal: the server moves to Failed and the error wraps ErrPollFailed.
func (s *StreamServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.serving {
		s.mu.Unlock()
		return fmt.Errorf("stream server on %s is already serving", s.ln.Addr())
	}
	s.serving = true
	s.mu.Unlock()

	select {
	case <-s.stop:
		s.shutdown(newConnSet(-1))
		return nil
	default:
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	if ctx.Err() != nil {
		s.shutdown(newConnSet(-1))
		return nil
	}

	lnFD, err := s.ln.FD()
	if err != nil {
		s.fail(newConnSet(-1))
		return ncerr.Wrap("poll", s.ln.Addr().String(), fmt.Errorf("%w: %v", ncerr.ErrPollFailed, err))
	}

	// Closing the write end makes the read end readable, which wakes a
	// blocked poll when ctx is cancelled.
	wakeR, wakeW, err := os.Pipe()
	if err != nil {
		s.fail(newConnSet(-1))
		return fmt.Errorf("wake pipe: %w", err)
	}
	defer wakeR.Close()
	stopWake := context.AfterFunc(ctx, func() { wakeW.Close() })
	defer func() {
		if stopWake() {
			wakeW.Close()
		}
	}()
	wakeFD := int(wakeR.Fd())

	conns := newConnSet(lnFD)
	for {
		if ctx.Err() != nil {
			s.shutdown(conns)
			return nil
		}

		fds := conns.pollFDs(wakeFD)
		ready, err := pollReadable(fds)
		if err != nil {
			s.logger.Error("Polling failed: %v", err)
			s.fail(conns)
			return ncerr.Wrap("poll", s.ln.Addr().String(), fmt.Errorf("%w: %v", ncerr.ErrPollFailed, err))
		}
		if ready[len(ready)-1] {
			continue
		}

		var fresh *transport.StreamEndpoint
		if ready[0] {
			fresh = s.accept()
		}

		if n := conns.len(); n > 0 {
			keep := make([]bool, n)
			for i, ep := range conns.peers {
				keep[i] = !ready[i+1] || s.handle(ep)
			}
			conns.retain(keep)
		}

		if fresh != nil {
			if err := conns.add(fresh); err != nil {
				s.logger.Warn("Cannot track connection from %s: %v", fresh.RemoteAddr(), err)
				fresh.Close() //nolint:errcheck
				s.metrics.ConnectionClosed()
			}
		}
	}
}

// accept takes one pending connection.  Failures are logged and the
// loop carries on.
func (s *StreamServer) accept() *transport.StreamEndpoint {
	ep, err := s.ln.Accept()
	if err != nil {
		s.logger.Warn("Cannot accept connection: %v", err)
		s.metrics.RecordError(err.Error())
		return nil
	}
	s.metrics.ConnectionOpened()
	s.logger.Info("Accepted connection from %s", ep.RemoteAddr())
	return ep
}

// handle performs one receive on a readable peer and answers it.  It
// returns false when the peer was closed and must leave the set.
func (s *StreamServer) handle(ep *transport.StreamEndpoint) bool {
	peer := ep.RemoteAddr().String()

	msg, err := ep.Receive()
	if err != nil {
		if ncerr.Is(err, ncerr.ErrPeerClosed) {
			s.logger.Info("Disconnected %s", peer)
		} else {
			s.logger.Warn("Cannot read message from %s: %v", peer, err)
			s.metrics.RecordError(err.Error())
		}
		ep.Close() //nolint:errcheck
		s.metrics.ConnectionClosed()
		return false
	}

	s.metrics.MessageReceived()
	s.logger.Verbose("Received message from %s (%d bytes)", peer, len(msg))
	s.logger.Debug("%s: %q", peer, msg)

	reply := s.delegate.Process(msg)
	if len(reply) == 0 {
		return true
	}
	if err := ep.Send(reply); err != nil {
		s.logger.Warn("Cannot send message to %s: %v", peer, err)
		s.metrics.RecordError(err.Error())
		return true
	}
	s.metrics.MessageSent()
	return true
}

func (s *StreamServer) shutdown(conns *connSet) {
	for i := conns.drain(); i > 0; i-- {
		s.metrics.ConnectionClosed()
	}
	s.ln.Close() //nolint:errcheck
	s.state.Store(int32(ShutDown))
	s.logger.Info("Shut down")
}

func (s *StreamServer) fail(conns *connSet) {
	for i := conns.drain(); i > 0; i-- {
		s.metrics.ConnectionClosed()
	}
	s.ln.Close() //nolint:errcheck
	s.state.Store(int32(Failed))
}

// Close stops a running Serve loop, or releases the listener of a
// server that was never served.
func (s *StreamServer) Close() error {
	s.closeOnce.Do(func() { close(s.stop) })

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.serving {
		return nil
	}
	s.state.Store(int32(ShutDown))
	return s.ln.Close()
}
