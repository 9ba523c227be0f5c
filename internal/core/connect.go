package core

import (
	"context"
	"io"
	"os"

	"echonet/internal/metrics"
	"echonet/internal/session"
	"echonet/util"
)

// ConnectMode dials a server and runs the interactive session on the
// resulting client. This is the default mode.
type ConnectMode struct {
	Dial    DialFunc
	Address string
	Network string
	Metrics *metrics.Collector
	Logger  *util.Logger

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	// Override in tests for deterministic I/O.
	Stdin  io.Reader
	Stdout io.Writer
}

func (m *ConnectMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *ConnectMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run dials the server and reads requests until input ends or ctx is
// cancelled.  The client is closed when Run returns.
func (m *ConnectMode) Run(ctx context.Context) error {
	m.Logger.Verbose("connecting to %s (%s)", m.Address, m.Network)

	c, err := m.Dial(ctx, m.Address)
	if err != nil {
		return err
	}
	defer c.Close()

	err = session.New(c, m.stdin(), m.stdout(), m.Logger).Run(ctx)
	m.Logger.Debug("final metrics:\n%s", m.Metrics.JSON())
	return err
}
