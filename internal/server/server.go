// Package server provides the service lifecycle runner.
// cmd/ binaries delegate to server.Run for signal handling,
// config loading, observability init, health checks, and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/technotrac/authcore/internal/config"
	"github.com/technotrac/authcore/internal/domain"
	"github.com/technotrac/authcore/internal/observability"
)

// Version is reported to telemetry and Sentry. Overridden at build time
// with -ldflags "-X github.com/technotrac/authcore/internal/server.Version=...".
var Version = "0.1.0"

// SetupFunc wires a service's dependencies and mounts its routes on r.
// It runs before the listener starts serving. The returned cleanup, if
// non-nil, runs after the HTTP server has drained.
type SetupFunc func(ctx context.Context, cfg *config.Config, logger *slog.Logger, r chi.Router) (cleanup func(), err error)

// Params configures a service's lifecycle runner.
type Params struct {
	// Name identifies the service (e.g. "authsvc").
	Name string

	// PortFromConfig extracts the HTTP port for this service from config.
	PortFromConfig func(cfg *config.Config) int

	// Setup is the service's composition root. Nil serves only /healthz.
	Setup SetupFunc
}

// Run executes the full service lifecycle: signal handling, config loading,
// observability initialization, dependency setup, HTTP server with health
// checks, and graceful shutdown. If ln is non-nil, it is used instead of
// creating a new listener from config (enables port-0 testing).
func Run(ctx context.Context, p Params, ln net.Listener) error {
	// Signal-based cancellation: ctx.Done() closes on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Structured logging with secret redaction and phone masking
	logger := observability.InitLogger(observability.LogConfig{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: p.Name,
		Environment: cfg.Environment,
	})

	// --- Startup order: telemetry -> sentry -> dependencies -> HTTP server ---

	telemetry, err := observability.InitTelemetry(ctx, observability.TelemetryConfig{
		ServiceName:    p.Name,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTEL.Endpoint,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	shutdownTelemetry := func() {
		otelCtx, otelCancel := context.WithTimeout(context.Background(), domain.ShutdownOTELTimeout)
		defer otelCancel()
		if shutdownErr := telemetry.Shutdown(otelCtx); shutdownErr != nil {
			logger.Error("failed to shutdown telemetry", slog.String("error", shutdownErr.Error()))
		}
	}

	if err := observability.InitSentry(observability.SentryConfig{
		DSN:         cfg.Sentry.DSN,
		Environment: cfg.Environment,
		Release:     p.Name + "@" + Version,
	}); err != nil {
		shutdownTelemetry()
		return fmt.Errorf("initialize sentry: %w", err)
	}
	defer observability.FlushSentry()

	router := chi.NewRouter()

	cleanup := func() {}
	if p.Setup != nil {
		c, setupErr := p.Setup(ctx, cfg, logger, router)
		if setupErr != nil {
			shutdownTelemetry()
			return fmt.Errorf("setup %s: %w", p.Name, setupErr)
		}
		if c != nil {
			cleanup = c
		}
	}

	// Health check shutdown coordination via atomic flag.
	var shuttingDown atomic.Bool

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if shuttingDown.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"shutting_down","service":%q}`, p.Name)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","service":%q}`, p.Name)
	})

	// Bind listener (use injected listener or create from config).
	if ln == nil {
		ln, err = (&net.ListenConfig{}).Listen(ctx, "tcp", fmt.Sprintf(":%d", p.PortFromConfig(cfg)))
		if err != nil {
			cleanup()
			shutdownTelemetry()
			return fmt.Errorf("listen: %w", err)
		}
	}

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Covers synchronous SMS delivery on /auth/otp/request.
		WriteTimeout: domain.DeliveryTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Structured concurrency via errgroup ---
	g, ctx := errgroup.WithContext(ctx)

	// Goroutine 1: Serve HTTP
	g.Go(func() error {
		logger.Info("starting HTTP server",
			slog.String("addr", ln.Addr().String()),
			slog.String("environment", cfg.Environment),
		)
		if serveErr := server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return serveErr
		}
		return nil
	})

	// Goroutine 2: Shutdown trigger. Waits for context cancellation, then drains.
	// Shutdown order is explicit reverse of startup: HTTP server -> dependencies -> telemetry.
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("received shutdown signal, starting graceful shutdown")

		// 1. Mark shutting down so health checks return 503
		shuttingDown.Store(true)

		// 2. Drain delay to let the load balancer propagate endpoint removal
		time.Sleep(domain.ShutdownDrainDelay)

		// 3. Drain HTTP server
		httpCtx, httpCancel := context.WithTimeout(context.Background(), domain.ShutdownHTTPTimeout)
		defer httpCancel()
		if shutdownErr := server.Shutdown(httpCtx); shutdownErr != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", shutdownErr.Error()))
		}

		// 4. Close stores and producers opened by Setup
		cleanup()

		// 5. Flush OTEL
		shutdownTelemetry()

		logger.Info("shutdown complete")
		return nil
	})

	return g.Wait()
}
