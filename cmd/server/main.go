// Command server runs the login gate as an HTTP service.
//
// Usage:
//
//	go run ./cmd/server
//
// Configuration comes from the environment (and a .env file when present);
// see internal/config.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lumina/login-gate/internal/api"
	"lumina/login-gate/internal/audit"
	"lumina/login-gate/internal/config"
	"lumina/login-gate/internal/logging"
	"lumina/login-gate/internal/orchestrator"
	"lumina/login-gate/internal/store"
	"lumina/login-gate/internal/traces"
)

func main() {
	if err := run(); err != nil {
		slog.Error("login gate failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTraces, err := traces.Init(ctx, cfg.OTLPEndpoint, logger)
	if err != nil {
		return err
	}

	// ── Wire dependencies ─────────────────────────────────────────────────────
	decisions, err := store.New(cfg.DecisionLogSize)
	if err != nil {
		return err
	}

	var sinks []audit.Sink
	var natsSink *audit.NATS
	if cfg.NATSURL != "" {
		natsSink, err = audit.NewNATS(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			// the gate works without its audit stream
			logger.Warn("nats sink disabled", "error", err)
		} else {
			sinks = append(sinks, natsSink)
		}
	}
	if cfg.DecisionWebhookURL != "" {
		sinks = append(sinks, audit.NewWebhook(cfg.DecisionWebhookURL))
	}

	gate := orchestrator.New(
		orchestrator.WithHTTPClient(&http.Client{Timeout: cfg.HTTPClientTimeout}),
		orchestrator.WithRiskBaseURL(cfg.RiskAPIBaseURL),
	)
	handler := api.NewHandler(gate, decisions, audit.NewFanout(sinks...))
	router := api.NewRouter(handler, cfg.JWTSecret, logger)

	// ── Start HTTP server ─────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			"port", cfg.Port,
			"env", cfg.Env,
			"auth", cfg.JWTSecret != "",
			"audit_sinks", len(sinks),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	handler.Wait()
	if natsSink != nil {
		natsSink.Close()
	}
	if err := shutdownTraces(shutdownCtx); err != nil {
		logger.Error("trace shutdown error", "error", err)
	}
	logger.Info("server stopped")
	return nil
}
