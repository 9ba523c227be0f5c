package core

import (
	"context"
	"fmt"

	"echonet/config"
	"echonet/internal/client"
	"echonet/internal/delegate"
	"echonet/internal/metrics"
	"echonet/internal/server"
	"echonet/util"
)

// Build constructs the appropriate Mode from the given configuration.
// No socket is opened until the mode runs.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	m := metrics.New()
	switch {
	case cfg.Listen:
		return buildServe(cfg, logger, m)
	case cfg.Smoke:
		return buildSmoke(cfg, logger, m)
	default:
		return buildConnect(cfg, logger, m)
	}
}

// ── mode builders ────────────────────────────────────────────────────

func buildServe(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	d, err := buildDelegate(cfg, logger)
	if err != nil {
		return nil, err
	}
	scfg := server.Config{
		Port:    cfg.LocalPort,
		Backlog: cfg.Backlog,
		Timeout: cfg.Timeout,
		Logger:  logger.Named("server"),
		Metrics: m,
	}

	var newServer func() (server.Server, error)
	if cfg.UDP {
		newServer = func() (server.Server, error) { return server.NewDatagramServer(scfg, d) }
	} else {
		newServer = func() (server.Server, error) { return server.NewStreamServer(scfg, d) }
	}

	return &ServeMode{
		NewServer:   newServer,
		MetricsAddr: cfg.MetricsAddr,
		Metrics:     m,
		Logger:      logger,
	}, nil
}

func buildConnect(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	address, err := util.ResolveAddr(cfg.Host, cfg.Port, cfg.NoDNS)
	if err != nil {
		return nil, err
	}
	return &ConnectMode{
		Dial:    dialer(cfg, logger.Named("client"), m),
		Address: address,
		Network: cfg.Network(),
		Metrics: m,
		Logger:  logger,
	}, nil
}

func buildSmoke(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	address, err := util.ResolveAddr(cfg.Host, cfg.Port, cfg.NoDNS)
	if err != nil {
		return nil, err
	}
	d, err := buildDelegate(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &SmokeMode{
		Dial:        dialer(cfg, logger.Named("smoke"), m),
		Address:     address,
		Connections: cfg.Connections,
		MessageSize: cfg.MessageSize,
		Expect:      d,
		Metrics:     m,
		Logger:      logger,
	}, nil
}

// ── shared ───────────────────────────────────────────────────────────

// buildDelegate selects the message processor: -e wins over -d.
func buildDelegate(cfg *config.Config, logger *util.Logger) (delegate.Delegate, error) {
	if cfg.Exec != "" {
		return &delegate.Exec{
			Command: cfg.Exec,
			Timeout: cfg.Timeout,
			Logger:  logger.Named("exec"),
		}, nil
	}
	return delegate.ByName(cfg.Delegate)
}

// DialFunc opens a client to address.
type DialFunc func(ctx context.Context, address string) (client.Client, error)

func dialer(cfg *config.Config, logger *util.Logger, m *metrics.Collector) DialFunc {
	opts := client.Options{
		Timeout:    cfg.Timeout,
		MaxTries:   cfg.MaxTries,
		RetryDelay: cfg.RetryDelay,
		Backoff:    cfg.RetryBackoff,
		Logger:     logger,
		Metrics:    m,
	}
	if cfg.UDP {
		return func(ctx context.Context, address string) (client.Client, error) {
			return client.DialDatagram(ctx, address, opts)
		}
	}
	return func(ctx context.Context, address string) (client.Client, error) {
		c, err := client.DialStream(ctx, address, opts)
		if err != nil {
			return nil, fmt.Errorf("connect to %s: %w", address, err)
		}
		return c, nil
	}
}
