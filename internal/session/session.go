// Package session runs the interactive client loop: read a line, send
// it as one request, print the reply.
//
// A Session does not know which protocol carries its requests; it
// drives any client.Client, and reads and writes whatever Reader and
// Writer it was given, which keeps it testable without a terminal.
package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"echonet/internal/client"
	ncerr "echonet/internal/errors"
	"echonet/internal/retry"
	"echonet/internal/transport"
	"echonet/util"
)

const prompt = "Enter your message: "

// Session binds a client to a pair of local I/O streams.
type Session struct {
	Client  client.Client
	Stdin   io.Reader
	Stdout  io.Writer
	Logger  *util.Logger
	Breaker *retry.Breaker

	// Prompt prints "Enter your message: " before each read.  New
	// enables it when Stdin is a terminal.
	Prompt bool
}

// New creates a Session.  Requests pass through a circuit breaker with
// default settings.
func New(c client.Client, stdin io.Reader, stdout io.Writer, logger *util.Logger) *Session {
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &Session{
		Client:  c,
		Stdin:   stdin,
		Stdout:  stdout,
		Logger:  logger,
		Breaker: retry.NewBreaker(retry.BreakerConfig{}),
		Prompt:  isTerminal(stdin),
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Run reads lines until EOF or ctx is cancelled.  Empty lines are
// skipped.  A failed request is reported and the loop continues, except
// when a stream server has closed the connection.
func (s *Session) Run(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(s.Stdin)
		sc.Buffer(make([]byte, 4096), 4*transport.MaxMessageSize)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		if s.Prompt {
			fmt.Fprint(s.Stdout, prompt)
		}

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			select {
			case err := <-scanErr:
				if err != nil {
					return fmt.Errorf("read input: %w", err)
				}
			default:
			}
			return nil
		}
		if line == "" {
			continue
		}

		reply, err := s.request(ctx, []byte(line))
		if err != nil {
			if ncerr.Is(err, ncerr.ErrPeerClosed) {
				return fmt.Errorf("server went away: %w", err)
			}
			fmt.Fprintln(s.Stdout, "Error receiving response from server")
			s.Logger.Verbose("request failed: %v", err)
			continue
		}
		fmt.Fprintf(s.Stdout, "%s\n", reply)
	}
}

func (s *Session) request(ctx context.Context, msg []byte) ([]byte, error) {
	var reply []byte
	err := s.Breaker.Do(func() error {
		var err error
		reply, err = s.Client.Request(ctx, msg)
		return err
	})
	return reply, err
}
