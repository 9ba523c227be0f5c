package core

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"echonet/internal/metrics"
	"echonet/internal/server"
	"echonet/util"
)

// ServeMode runs one server until the context is cancelled.  With
// MetricsAddr set it also serves Prometheus metrics over HTTP; a failure
// of either stops both.
type ServeMode struct {
	NewServer   func() (server.Server, error)
	MetricsAddr string
	Metrics     *metrics.Collector
	Logger      *util.Logger

	// ready, if set, receives the server once it is bound.  Tests use it
	// to learn the ephemeral port.
	ready chan<- server.Server
}

// Run binds the server and serves until ctx is cancelled.
func (m *ServeMode) Run(ctx context.Context) error {
	srv, err := m.NewServer()
	if err != nil {
		return err
	}
	if m.ready != nil {
		m.ready <- srv
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx)
	})

	if m.MetricsAddr != "" {
		hs := &http.Server{
			Addr:              m.MetricsAddr,
			Handler:           m.metricsMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			m.Logger.Info("metrics: serving on http://%s/metrics", m.MetricsAddr)
			if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return hs.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	m.Logger.Verbose("final metrics:\n%s", m.Metrics.JSON())
	return err
}

func (m *ServeMode) metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(m.Metrics))
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(m.Metrics.JSON())) //nolint:errcheck
	})
	return mux
}
