package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"echonet/internal/delegate"
	"echonet/internal/metrics"
	"echonet/internal/transport"
	"echonet/util"
)

// smokeAlphabet mixes digits, a letter, a minus sign and spaces so the
// sum delegate sees numbers, words, and malformed tokens.
const smokeAlphabet = "0123456789a -"

// SmokeMode opens Connections clients at once, sends one random
// message on each and checks every reply against Expect.  Any missing
// or wrong reply fails the run.
type SmokeMode struct {
	Dial        DialFunc
	Address     string
	Connections int
	MessageSize int
	Expect      delegate.Delegate
	Metrics     *metrics.Collector
	Logger      *util.Logger

	// Stdout defaults to os.Stdout when nil.
	Stdout io.Writer
}

// Run executes the smoke test and prints "OK!" on success.
func (m *SmokeMode) Run(ctx context.Context) error {
	m.Logger.Verbose("smoke: %d connections to %s", m.Connections, m.Address)

	var passed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < m.Connections; i++ {
		id := i
		g.Go(func() error {
			if err := m.exchange(gctx, id); err != nil {
				return fmt.Errorf("connection %d: %w", id, err)
			}
			passed.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.Logger.Error("smoke: %d/%d passed", passed.Load(), m.Connections)
		return err
	}

	fmt.Fprintln(m.stdout(), "OK!")
	m.Logger.Verbose("smoke: metrics:\n%s", m.Metrics.JSON())
	return nil
}

func (m *SmokeMode) exchange(ctx context.Context, id int) error {
	c, err := m.Dial(ctx, m.Address)
	if err != nil {
		return err
	}
	defer c.Close()

	msg := randomMessage(rand.New(rand.NewSource(int64(id)+1)), m.MessageSize)
	reply, err := c.Request(ctx, msg)
	if err != nil {
		return fmt.Errorf("cannot receive message: %w", err)
	}
	// The server only ever sees what survived truncation.
	if want := m.Expect.Process(transport.Truncate(msg, nil, nil)); !bytes.Equal(reply, want) {
		return fmt.Errorf("invalid response: got %d bytes, want %d", len(reply), len(want))
	}
	return nil
}

func (m *SmokeMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// randomMessage returns 1..maxLen bytes from smokeAlphabet.  It never
// returns an empty message, which the transport would reject.
func randomMessage(r *rand.Rand, maxLen int) []byte {
	n := 1 + r.Intn(maxLen)
	msg := make([]byte, n)
	for i := range msg {
		msg[i] = smokeAlphabet[r.Intn(len(smokeAlphabet))]
	}
	return msg
}
