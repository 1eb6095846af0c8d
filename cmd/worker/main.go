// Package main provides the entrypoint for the location-update worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/comaslimpio/notification-api/internal/api/handler"
	"github.com/comaslimpio/notification-api/internal/app"
	"github.com/comaslimpio/notification-api/internal/config"
	"github.com/comaslimpio/notification-api/internal/telemetry"
	"github.com/comaslimpio/notification-api/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// consumer is a broker subscription feeding the message handler.
type consumer interface {
	Start(ctx context.Context) error
	Close() error
}

func main() {
	cfg, err := config.Load("notification-api")
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("failed to load configuration")
	}
	if Version != "dev" {
		cfg.App.Version = Version
	}

	log := app.NewLogger(cfg, "worker")
	log.Info().
		Str("build_time", BuildTime).
		Str("transport", cfg.Worker.Transport).
		Msg("starting location worker")

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("worker stopped with error")
	}
	log.Info().Msg("worker stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.FromConfig(cfg, "worker"))
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

	pipeline, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := pipeline.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close backends")
		}
	}()

	msgHandler := worker.NewHandler(worker.HandlerConfig{
		Processor: pipeline.Engine,
		Timeout:   cfg.Worker.MessageTimeout,
		Logger:    log,
	})

	workerCfg := cfg.Worker
	if workerCfg.PubSubProjectID == "" {
		workerCfg.PubSubProjectID = cfg.Firebase.ProjectID
	}
	sub, err := newConsumer(ctx, workerCfg, msgHandler, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := sub.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close consumer")
		}
	}()

	// Cloud Run requires the worker to answer health checks.
	ops := handler.NewOpsHandler(cfg.App.Version, pipeline.Registry, pipeline.Flags, pipeline.Checks)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", ops.HealthCheck)
	mux.HandleFunc("/ops/ready", ops.ReadinessCheck)
	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	consumeErr := sub.Start(ctx)

	log.Info().Msg("shutting down worker")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	if consumeErr != nil && !errors.Is(consumeErr, context.Canceled) {
		return consumeErr
	}
	return nil
}

func newConsumer(ctx context.Context, cfg config.WorkerConfig, h *worker.Handler, log zerolog.Logger) (consumer, error) {
	switch cfg.Transport {
	case config.TransportNATS:
		return worker.NewNATSConsumer(worker.NATSConfig{
			URL:        cfg.NATSURL,
			Subject:    cfg.Subject,
			QueueGroup: cfg.QueueGroup,
			Handler:    h,
			Logger:     log,
		})
	case config.TransportPubSub:
		return worker.NewPubSubConsumer(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProjectID,
			SubscriptionName: cfg.Subscription,
			MaxOutstanding:   cfg.MaxOutstanding,
			Handler:          h,
			Logger:           log,
		})
	default:
		return nil, fmt.Errorf("unknown worker transport %q", cfg.Transport)
	}
}
