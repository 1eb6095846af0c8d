// Package config loads the service configuration from .env files, an optional
// config.yaml and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/comaslimpio/notification-api/internal/database"
)

// Directory backends.
const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"
)

// Worker transports.
const (
	TransportPubSub = "pubsub"
	TransportNATS   = "nats"
)

// Config holds all application configuration. It is built once at startup
// and never mutated afterwards.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Server       ServerConfig       `mapstructure:"server"`
	Notification NotificationConfig `mapstructure:"notification"`
	Firebase     FirebaseConfig     `mapstructure:"firebase"`
	Directory    DirectoryConfig    `mapstructure:"directory"`
	Database     database.Config    `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	FeatureFlags FeatureFlagsConfig `mapstructure:"feature_flags"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
	Worker       WorkerConfig       `mapstructure:"worker"`
}

// AppConfig identifies the running deployment.
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Service string `mapstructure:"service"`
	Version string `mapstructure:"version"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       int           `mapstructure:"rate_limit"`
}

// NotificationConfig controls proximity detection and message content.
type NotificationConfig struct {
	// DistanceThreshold is the maximum truck-to-citizen distance in meters.
	DistanceThreshold float64 `mapstructure:"distance_threshold"`

	// ThrottleMinutes is the minimum gap between two notifications for
	// the same citizen and route.
	ThrottleMinutes int `mapstructure:"throttle_minutes"`

	// Concurrency bounds the per-citizen fan-out of one location update.
	Concurrency int `mapstructure:"concurrency"`

	// Timezone is the IANA zone used to evaluate citizen alert windows.
	Timezone string `mapstructure:"timezone"`

	Title            string `mapstructure:"title"`
	BodyTemplate     string `mapstructure:"body_template"`
	AndroidChannelID string `mapstructure:"android_channel_id"`
	AndroidIcon      string `mapstructure:"android_icon"`
	ClickAction      string `mapstructure:"click_action"`
}

// ThrottleWindow returns the throttle window as a duration.
func (n NotificationConfig) ThrottleWindow() time.Duration {
	return time.Duration(n.ThrottleMinutes) * time.Minute
}

// FirebaseConfig holds the service account used for Firestore and FCM.
type FirebaseConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	ClientEmail     string `mapstructure:"client_email"`
	PrivateKey      string `mapstructure:"private_key"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// HasCredentials reports whether inline or file credentials are configured.
func (f FirebaseConfig) HasCredentials() bool {
	return f.CredentialsFile != "" || (f.ClientEmail != "" && f.PrivateKey != "")
}

// DirectoryConfig selects the user/truck/route store.
type DirectoryConfig struct {
	Backend string `mapstructure:"backend"`
}

// RedisConfig configures the optional throttle cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// FeatureFlagsConfig configures the feature flag store.
type FeatureFlagsConfig struct {
	Backend  string        `mapstructure:"backend"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// WorkerConfig configures the location-update consumer.
type WorkerConfig struct {
	Transport       string        `mapstructure:"transport"`
	PubSubProjectID string        `mapstructure:"pubsub_project_id"`
	Subscription    string        `mapstructure:"subscription"`
	NATSURL         string        `mapstructure:"nats_url"`
	Subject         string        `mapstructure:"subject"`
	QueueGroup      string        `mapstructure:"queue_group"`
	MaxOutstanding  int           `mapstructure:"max_outstanding"`
	MessageTimeout  time.Duration `mapstructure:"message_timeout"`
}

// envAliases maps config keys to the environment variable names used by
// existing deployments, in addition to the automatic NOTIFICATION_* style names.
var envAliases = map[string][]string{
	"app.env":                   {"APP_ENV", "NODE_ENV"},
	"server.port":               {"PORT", "APP_PORT", "SERVER_PORT"},
	"database.host":             {"DB_HOST", "DATABASE_HOST"},
	"database.port":             {"DB_PORT", "DATABASE_PORT"},
	"database.user":             {"DB_USER", "DATABASE_USER"},
	"database.password":         {"DB_PASSWORD", "DATABASE_PASSWORD"},
	"database.name":             {"DB_NAME", "DATABASE_NAME"},
	"database.ssl_mode":         {"DB_SSL_MODE", "DATABASE_SSL_MODE"},
	"firebase.credentials_file": {"GOOGLE_APPLICATION_CREDENTIALS", "FIREBASE_CREDENTIALS_FILE"},
	"telemetry.enabled":         {"OTEL_ENABLED", "TELEMETRY_ENABLED"},
	"telemetry.otlp_endpoint":   {"OTEL_EXPORTER_OTLP_ENDPOINT", "TELEMETRY_OTLP_ENDPOINT"},
	"worker.pubsub_project_id":  {"PUBSUB_PROJECT_ID", "WORKER_PUBSUB_PROJECT_ID"},
	"worker.nats_url":           {"NATS_URL", "WORKER_NATS_URL"},
}

// Load reads .env files, then config.yaml (optional), then environment variables.
// Later sources win.
func Load(service string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, service)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	// NOTIFICATION_DISTANCE_THRESHOLD -> notification.distance_threshold
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Service account keys are usually stored on one line with escaped newlines.
	cfg.Firebase.PrivateKey = strings.ReplaceAll(cfg.Firebase.PrivateKey, `\n`, "\n")
	cfg.Directory.Backend = strings.ToLower(cfg.Directory.Backend)
	cfg.Worker.Transport = strings.ToLower(cfg.Worker.Transport)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDotEnv loads .env and then .env.<env>, the latter overriding the former.
// Missing files are ignored.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = os.Getenv("NODE_ENV")
	}
	if env == "" {
		return nil
	}

	if err := godotenv.Overload(".env." + env); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env.%s: %w", env, err)
	}
	return nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.service", service)
	v.SetDefault("app.version", "1.0.0")

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.rate_limit", 120)

	v.SetDefault("notification.distance_threshold", 200.0)
	v.SetDefault("notification.throttle_minutes", 3)
	v.SetDefault("notification.concurrency", 4)
	v.SetDefault("notification.timezone", "America/Lima")
	v.SetDefault("notification.title", "🚛 ComasLimpio - ¡Camión Cerca!")
	v.SetDefault("notification.body_template", "El camión de basura está a %d metros de tu ubicación.")
	v.SetDefault("notification.android_channel_id", "comaslimpio_notifications")
	v.SetDefault("notification.android_icon", "truck_icon")
	v.SetDefault("notification.click_action", "FLUTTER_NOTIFICATION_CLICK")

	v.SetDefault("firebase.project_id", "")
	v.SetDefault("firebase.client_email", "")
	v.SetDefault("firebase.private_key", "")
	v.SetDefault("firebase.credentials_file", "")

	v.SetDefault("directory.backend", BackendFirestore)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "comaslimpio")
	v.SetDefault("database.password", "localdev")
	v.SetDefault("database.name", "comaslimpio")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("feature_flags.backend", BackendMemory)
	v.SetDefault("feature_flags.cache_ttl", time.Minute)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")

	v.SetDefault("worker.transport", TransportPubSub)
	v.SetDefault("worker.pubsub_project_id", "")
	v.SetDefault("worker.subscription", "truck-location-updates")
	v.SetDefault("worker.nats_url", "nats://localhost:4222")
	v.SetDefault("worker.subject", "trucks.location")
	v.SetDefault("worker.queue_group", "notification-worker")
	v.SetDefault("worker.max_outstanding", 10)
	v.SetDefault("worker.message_timeout", 30*time.Second)
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Notification.DistanceThreshold <= 0 {
		errs = append(errs, "notification.distance_threshold must be positive")
	}
	if c.Notification.ThrottleMinutes < 0 {
		errs = append(errs, "notification.throttle_minutes must not be negative")
	}
	if c.Notification.Concurrency <= 0 {
		errs = append(errs, "notification.concurrency must be positive")
	}
	if !strings.Contains(c.Notification.BodyTemplate, "%d") {
		errs = append(errs, "notification.body_template must contain %d for the distance")
	}

	switch c.Directory.Backend {
	case BackendFirestore:
		if !c.Firebase.HasCredentials() {
			errs = append(errs, "firebase credentials are required for the firestore directory")
		}
	case BackendPostgres, BackendMemory:
	default:
		errs = append(errs, fmt.Sprintf("directory.backend must be firestore, postgres or memory, got %q", c.Directory.Backend))
	}

	if c.App.Env == "production" && !c.Firebase.HasCredentials() {
		errs = append(errs, "firebase credentials are required in production for push delivery")
	}

	switch c.FeatureFlags.Backend {
	case BackendPostgres, BackendMemory:
	default:
		errs = append(errs, fmt.Sprintf("feature_flags.backend must be postgres or memory, got %q", c.FeatureFlags.Backend))
	}

	switch c.Worker.Transport {
	case TransportPubSub, TransportNATS:
	default:
		errs = append(errs, fmt.Sprintf("worker.transport must be pubsub or nats, got %q", c.Worker.Transport))
	}
	if c.Worker.MaxOutstanding <= 0 {
		errs = append(errs, "worker.max_outstanding must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// NeedsDatabase reports whether any component is backed by PostgreSQL.
func (c *Config) NeedsDatabase() bool {
	return c.Directory.Backend == BackendPostgres || c.FeatureFlags.Backend == BackendPostgres
}
