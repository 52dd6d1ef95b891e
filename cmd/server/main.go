// Command main is the entry point for the ScholarHub backend server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scholarhub/internal/bootstrap"
	"scholarhub/internal/config"
	"scholarhub/internal/observability"
	"scholarhub/internal/server"
)

// @title ScholarHub API
// @version 1.0
// @description Scholarship portal API: catalogue search, applications, moderation, payments and reviews
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@scholarhub.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8375
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const (
	serviceVersion  = "1.0.0"
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "scholarhub-api",
		ServiceVersion: serviceVersion,
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   1.0,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Init(ctx, cfg, bootstrap.Options{SeedCatalog: cfg.Env == "development"})
	if err != nil {
		return fmt.Errorf("init runtime: %w", err)
	}
	defer func() { _ = rt.Close() }()

	srv, err := server.NewServerWithDeps(cfg, rt.DB, rt.Redis)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", slog.String("error", err.Error()))
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Error("tracing shutdown error", slog.String("error", err.Error()))
		}
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
