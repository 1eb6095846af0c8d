// Package main provides the entrypoint for the ComasLimpio notification API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/comaslimpio/notification-api/internal/api"
	"github.com/comaslimpio/notification-api/internal/api/middleware"
	"github.com/comaslimpio/notification-api/internal/app"
	"github.com/comaslimpio/notification-api/internal/config"
	"github.com/comaslimpio/notification-api/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load("notification-api")
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("failed to load configuration")
	}
	if Version != "dev" {
		cfg.App.Version = Version
	}

	log := app.NewLogger(cfg, "api")
	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.App.Env).
		Msg("starting notification API")

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("notification API stopped with error")
	}
	log.Info().Msg("server stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.FromConfig(cfg, "api"))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()
	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		return err
	}

	pipeline, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := pipeline.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close backends")
		}
	}()

	router := api.NewRouter(api.RouterConfig{
		Version:         cfg.App.Version,
		Logger:          log,
		ServiceName:     cfg.App.Service,
		Metrics:         metrics,
		RateLimit:       cfg.Server.RateLimit,
		Processor:       pipeline.Engine,
		Users:           pipeline.Directory,
		Sender:          pipeline.Dispatcher,
		FeatureFlags:    pipeline.Flags,
		Registry:        pipeline.Registry,
		ReadinessChecks: pipeline.Checks,
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
