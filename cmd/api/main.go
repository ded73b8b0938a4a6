// Package main is the entry point for the glucogate API server.
//
// It loads configuration, opens the shared store handle, assembles the HTTP
// gateway (pipeline, error boundary, route registry and the domain handler
// groups), and hands control to the lifecycle manager, which serves until
// SIGINT or SIGTERM and then drains requests and closes the store.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"glucogate/internal/api/handlers"
	"glucogate/internal/config"
	"glucogate/internal/core"
	"glucogate/internal/db"
	"glucogate/internal/lifecycle"
	"glucogate/internal/store"
	"glucogate/internal/telemetry"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("glucogate API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	st, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	srv, err := buildServer(cfg, logger, st, func(s *core.Server) error {
		return configureMetrics(ctx, cfg.Observability, s, logger)
	})
	if err != nil {
		return errors.Join(err, st.Close())
	}

	var wg sync.WaitGroup
	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	if cw, ok := srv.Metrics.(*telemetry.CloudWatchCollector); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cw.Run(metricsCtx)
		}()
	}

	mgr := lifecycle.New(srv.Handler(), st, logger, lifecycle.Options{
		Addr:            cfg.Server.Addr(),
		Environment:     cfg.Environment,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		WriteTimeout:    cfg.Server.RequestTimeout + writeTimeoutMargin,
	})
	err = mgr.Run(ctx)

	stopMetrics()
	wg.Wait()
	return err
}

// writeTimeoutMargin leaves room to write the timeout response after the
// request deadline fires.
const writeTimeoutMargin = 5 * time.Second

// storeHandle is what the composition root needs from the store: repository
// access, debug inspection and a readiness probe.
type storeHandle interface {
	db.DBTX
	handlers.StoreInspector
	core.HealthProbe
}

// configureMetrics attaches the selected metrics backend to s.
func configureMetrics(ctx context.Context, obs config.ObservabilityConfig, s *core.Server, logger *slog.Logger) error {
	switch obs.MetricsExporter {
	case "cloudwatch":
		client, err := telemetry.NewCloudWatchClient(ctx, obs.AWSRegion, obs.AWSEndpointURL)
		if err != nil {
			return fmt.Errorf("creating metrics client: %w", err)
		}
		s.Metrics = telemetry.NewCloudWatchCollector(client, obs.MetricNamespace, logger)
	case "prometheus":
		pc := telemetry.NewPrometheusCollector()
		s.Metrics = pc
		s.MetricsHandler = pc.Handler()
	}
	if obs.MetricsExporter != "" && obs.MetricsExporter != "none" {
		logger.Info("request metrics enabled", "exporter", obs.MetricsExporter)
	}
	return nil
}

// buildServer assembles the gateway and mounts every route group. Group
// prefixes are registered in a fixed order and never overlap. Each option
// runs after construction and before routes are mounted.
func buildServer(cfg *config.Config, logger *slog.Logger, st storeHandle, opts ...func(*core.Server) error) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = []core.HealthProbe{st}
	for _, opt := range opts {
		if err := opt(srv); err != nil {
			return nil, err
		}
	}

	users := db.NewUserRepository(st)
	records := db.NewRecordRepository(st)

	groups := []struct {
		prefix string
		routes interface {
			Routes(b *core.ErrorBoundary) http.Handler
		}
	}{
		{"/api/debug", handlers.NewDebugHandler(st)},
		{"/api/users", handlers.NewUserHandler(users, srv.Validator, logger)},
		{"/api/glucose", handlers.NewRecordHandler(handlers.GlucoseSpec, records, srv.Validator, logger)},
		{"/api/activities", handlers.NewRecordHandler(handlers.ActivitySpec, records, srv.Validator, logger)},
		{"/api/insulin", handlers.NewRecordHandler(handlers.InsulinSpec, records, srv.Validator, logger)},
		{"/api/food", handlers.NewRecordHandler(handlers.FoodSpec, records, srv.Validator, logger)},
	}
	for _, g := range groups {
		if err := srv.Routes.Register(g.prefix, g.routes.Routes(srv.Boundary)); err != nil {
			return nil, fmt.Errorf("registering %s: %w", g.prefix, err)
		}
	}

	if err := srv.MountRoutes(); err != nil {
		return nil, fmt.Errorf("mounting routes: %w", err)
	}
	return srv, nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
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

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
