// Package app wires the notification pipeline from configuration. It is shared
// by the API server and the location-update worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/comaslimpio/notification-api/internal/api/handler"
	"github.com/comaslimpio/notification-api/internal/config"
	"github.com/comaslimpio/notification-api/internal/database"
	"github.com/comaslimpio/notification-api/internal/directory"
	"github.com/comaslimpio/notification-api/internal/featureflags"
	"github.com/comaslimpio/notification-api/internal/firebase"
	"github.com/comaslimpio/notification-api/internal/notification"
	"github.com/comaslimpio/notification-api/internal/provider/resilience"
	"github.com/comaslimpio/notification-api/internal/proximity"
	"github.com/comaslimpio/notification-api/internal/push"
	"github.com/comaslimpio/notification-api/internal/telemetry"
	"github.com/comaslimpio/notification-api/internal/throttle"
)

// fallbackZone is used when the configured timezone cannot be loaded, e.g. on
// images without tzdata. Peru has no daylight saving time.
var fallbackZone = time.FixedZone("PET", -5*60*60)

// App holds the wired components of the notification pipeline.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Registry   *resilience.Registry
	Directory  *directory.Gateway
	Dispatcher *notification.Dispatcher
	Flags      *featureflags.Service
	Engine     *proximity.Engine
	Checks     []handler.DependencyCheck

	closers []func() error
}

// NewLogger returns the process logger with service and version fields.
func NewLogger(cfg *config.Config, process string) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.App.Env == "development" {
		level = zerolog.DebugLevel
	}
	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.App.Service+"-"+process).
		Str("version", cfg.App.Version).
		Logger()
}

// New connects to the configured backends and builds the pipeline. On error
// every connection opened so far is closed.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (_ *App, err error) {
	a := &App{
		Config:   cfg,
		Logger:   log,
		Registry: resilience.NewRegistry(),
	}
	defer func() {
		if err != nil {
			_ = a.Close() //nolint:errcheck // best effort cleanup
		}
	}()

	var pool *pgxpool.Pool
	if cfg.NeedsDatabase() {
		pool, err = database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		a.Checks = append(a.Checks, handler.DependencyCheck{Name: "database", Check: pool.Ping})
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")
	}

	var fbApp *firebase.App
	if cfg.Firebase.HasCredentials() {
		fbApp, err = firebase.NewApp(ctx, cfg.Firebase)
		if err != nil {
			return nil, err
		}
	}

	store, err := a.newStore(ctx, fbApp, pool)
	if err != nil {
		return nil, err
	}
	a.Directory = directory.NewGateway(directory.GatewayConfig{Store: store, Logger: log})

	sender, err := a.newSender(ctx, fbApp)
	if err != nil {
		return nil, err
	}
	a.Dispatcher = notification.NewDispatcher(notification.DispatcherConfig{
		Sender:    sender,
		Records:   a.Directory,
		Templates: templatesFromConfig(cfg.Notification),
		Logger:    log,
	})

	a.Flags = featureflags.NewService(featureflags.ServiceConfig{
		Repository: newFlagRepository(cfg.FeatureFlags, pool),
		Logger:     log,
		CacheTTL:   cfg.FeatureFlags.CacheTTL,
	})

	policy := throttle.NewPolicy(throttle.PolicyConfig{
		Reader: a.Directory,
		Window: cfg.Notification.ThrottleWindow(),
		Cache:  a.newThrottleCache(),
		Bypass: a.Flags,
		Logger: log,
	})

	metrics, err := telemetry.NewNotificationMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("notification metrics disabled")
	}

	a.Engine = proximity.NewEngine(proximity.EngineConfig{
		Directory:         a.Directory,
		Dispatcher:        a.Dispatcher,
		Throttle:          policy,
		Flags:             a.Flags,
		DistanceThreshold: cfg.Notification.DistanceThreshold,
		Concurrency:       cfg.Notification.Concurrency,
		Location:          loadLocation(cfg.Notification.Timezone, log),
		Metrics:           metrics,
		Logger:            log,
	})

	log.Info().
		Str("directory", cfg.Directory.Backend).
		Float64("distance_threshold", cfg.Notification.DistanceThreshold).
		Dur("throttle_window", cfg.Notification.ThrottleWindow()).
		Int("concurrency", cfg.Notification.Concurrency).
		Msg("notification pipeline initialized")

	return a, nil
}

// Close releases every backend connection, most recent first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) newStore(ctx context.Context, fbApp *firebase.App, pool *pgxpool.Pool) (directory.Store, error) {
	switch a.Config.Directory.Backend {
	case config.BackendFirestore:
		client, err := fbApp.Firestore(ctx)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return directory.NewFirestoreStore(client), nil
	case config.BackendPostgres:
		return directory.NewPostgresStore(pool), nil
	default:
		a.Logger.Warn().Msg("using in-memory directory, data is not persisted")
		return directory.NewMemoryStore(), nil
	}
}

func (a *App) newSender(ctx context.Context, fbApp *firebase.App) (push.Sender, error) {
	if fbApp == nil {
		a.Logger.Warn().Msg("firebase credentials not configured, push messages are only logged")
		return push.NewLogSender(a.Logger), nil
	}

	client, err := fbApp.Messaging(ctx)
	if err != nil {
		return nil, err
	}
	return push.NewFCMSender(push.FCMSenderConfig{
		Client:   client,
		Executor: push.NewFCMExecutor(a.Registry),
		Logger:   a.Logger,
	}), nil
}

// newThrottleCache returns the Redis throttle cache, or nil when Redis is not
// configured.
func (a *App) newThrottleCache() throttle.Cache {
	cfg := a.Config.Redis
	if !cfg.Enabled() {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	a.closers = append(a.closers, client.Close)
	a.Checks = append(a.Checks, handler.DependencyCheck{
		Name:  "redis",
		Check: func(ctx context.Context) error { return client.Ping(ctx).Err() },
	})
	a.Logger.Info().Str("addr", cfg.Addr).Msg("redis throttle cache enabled")
	return throttle.NewRedisCache(client)
}

func newFlagRepository(cfg config.FeatureFlagsConfig, pool *pgxpool.Pool) featureflags.Repository {
	if cfg.Backend == config.BackendPostgres {
		return featureflags.NewPostgresRepository(pool)
	}
	return featureflags.NewInMemoryRepository()
}

func templatesFromConfig(cfg config.NotificationConfig) notification.Templates {
	t := notification.DefaultTemplates()
	if cfg.Title != "" {
		t.Title = cfg.Title
	}
	if cfg.BodyTemplate != "" {
		t.BodyTemplate = cfg.BodyTemplate
	}
	if cfg.AndroidChannelID != "" {
		t.ChannelID = cfg.AndroidChannelID
	}
	if cfg.AndroidIcon != "" {
		t.Icon = cfg.AndroidIcon
	}
	if cfg.ClickAction != "" {
		t.ClickAction = cfg.ClickAction
	}
	return t
}

func loadLocation(name string, log zerolog.Logger) *time.Location {
	if name == "" {
		return fallbackZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Warn().Err(err).Str("timezone", name).Msg("unknown timezone, using UTC-5")
		return fallbackZone
	}
	return loc
}
