package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loykin/focuspilot/internal/config"
	"github.com/loykin/focuspilot/internal/engine"
	"github.com/loykin/focuspilot/internal/metrics"
	"github.com/loykin/focuspilot/internal/server"
	"github.com/prometheus/client_golang/prometheus"
)

const shutdownTimeout = 5 * time.Second

// runServe loads the config, starts the engine and the HTTP servers, then
// blocks in wait until it is time to shut down.
func runServe(ctx context.Context, flags *ServeFlags, wait func(context.Context)) error {
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logger := cfg.Log.NewSlogger()
	slog.SetDefault(logger)

	if flags.PidFile != "" {
		defer func() { _ = removePidFile(flags.PidFile) }()
	}

	eng, err := engine.New(cfg, engine.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Warn("engine close", "error", err)
		}
	}()
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	apiMetrics := false
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		if err := eng.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
			logger.Warn("failed to register metrics", "error", err)
		}
		if cfg.Metrics.Listen != "" {
			metricsSrv, err = serveMetrics(cfg.Metrics.Listen)
			if err != nil {
				return fmt.Errorf("failed to start metrics server: %w", err)
			}
			logger.Info("metrics listening", "addr", metricsSrv.Addr)
		} else {
			apiMetrics = true
		}
	}

	srv, err := server.NewTLSServer(cfg.Server, eng, apiMetrics)
	if err != nil {
		if metricsSrv != nil {
			_ = metricsSrv.Close()
		}
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}
	logger.Info("focuspilot listening", "addr", srv.Addr, "base_path", cfg.Server.BasePath, "tls", cfg.Server.TLS.Enabled)

	wait(ctx)

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		// reminder streams stay open until their client leaves
		errs = append(errs, srv.Close())
	}
	if metricsSrv != nil {
		errs = append(errs, metricsSrv.Shutdown(shutdownCtx))
	}
	return errors.Join(errs...)
}

// serveMetrics exposes /metrics on its own listener.
func serveMetrics(addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() { _ = srv.Serve(ln) }()
	return srv, nil
}

func waitForSignal(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
}
