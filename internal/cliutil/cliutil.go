// Package cliutil holds the setup code shared by the fragmenter,
// reassembler, and checker entry points: logger construction, signal-driven
// shutdown context, and the optional metrics HTTP server.
package cliutil

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kstaniek/cia613-gw/internal/logging"
	"github.com/kstaniek/cia613-gw/internal/metrics"
)

// SetupLogger builds and installs the process-wide logger.
func SetupLogger(app, format, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	l := logging.New(format, lvl, os.Stderr).With("app", app)
	logging.Set(l)
	return l
}

// ShutdownContext returns a context canceled on SIGINT/SIGTERM, plus the
// function that cancels it directly.
func ShutdownContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}
		cancel()
	}()
	return ctx, cancel
}

// StartMetrics, if addr is non-empty, sets the build info gauge and starts
// the Prometheus/readiness HTTP server; with an empty addr it does neither.
// The returned func shuts the server down.
func StartMetrics(addr, version, commit, date string) func() {
	if addr == "" {
		return func() {}
	}
	metrics.InitBuildInfo(version, commit, date)
	srv := metrics.StartHTTP(addr)
	return func() { _ = srv.Close() }
}
