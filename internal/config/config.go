// Package config loads the client and backend settings from the environment
// and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/konect/konect/internal/database"
	"github.com/konect/konect/internal/device"
	"github.com/konect/konect/internal/telemetry"
)

// Push transports a client can subscribe to.
const (
	TransportNone   = "none"
	TransportPubSub = "pubsub"
	TransportRedis  = "redis"
)

// Push senders the backend can deliver alerts with.
const (
	SenderLog    = "log"
	SenderPubSub = "pubsub"
	SenderRedis  = "redis"
	SenderFCM    = "fcm"
)

// Session stores of the backend.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Shared holds the settings every binary reads.
type Shared struct {
	Env          string `mapstructure:"APP_ENV"`
	LogLevel     string `mapstructure:"LOG_LEVEL"`
	LogPretty    bool   `mapstructure:"KONECT_LOG_PRETTY"`
	OTELEnabled  bool   `mapstructure:"OTEL_ENABLED"`
	OTELEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	PubSubProjectID string `mapstructure:"PUBSUB_PROJECT_ID"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
}

// Level parses LogLevel, falling back to info.
func (s Shared) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(s.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Telemetry returns the telemetry settings for the named service.
func (s Shared) Telemetry(service, version string) telemetry.Config {
	return telemetry.Config{
		ServiceName:    service,
		ServiceVersion: version,
		Environment:    s.Env,
		OTLPEndpoint:   s.OTELEndpoint,
		Enabled:        s.OTELEnabled,
	}
}

// Client holds the settings of the paired device: the CLI and the
// background worker.
type Client struct {
	Shared `mapstructure:",squash"`

	BackendURL             string        `mapstructure:"KONECT_BACKEND_URL"`
	DeviceToken            string        `mapstructure:"KONECT_DEVICE_TOKEN"`
	Platform               string        `mapstructure:"KONECT_PLATFORM"`
	NotificationPermission string        `mapstructure:"KONECT_NOTIFICATION_PERMISSION"`
	PushTransport          string        `mapstructure:"KONECT_PUSH_TRANSPORT"`
	PubSubSubscription     string        `mapstructure:"PUBSUB_SUBSCRIPTION"`
	SoundFile              string        `mapstructure:"KONECT_SOUND_FILE"`
	SoundDir               string        `mapstructure:"KONECT_SOUND_DIR"`
	SoundCommand           string        `mapstructure:"KONECT_SOUND_COMMAND"`
	OpenCommand            string        `mapstructure:"KONECT_OPEN_COMMAND"`
	NotifyCommand          string        `mapstructure:"KONECT_NOTIFY_COMMAND"`
	DeepLink               string        `mapstructure:"KONECT_DEEP_LINK"`
	RetryMax               int           `mapstructure:"KONECT_RETRY_MAX"`
	CircuitBreaker         bool          `mapstructure:"KONECT_CIRCUIT_BREAKER"`
	RequestTimeout         time.Duration `mapstructure:"KONECT_REQUEST_TIMEOUT"`

	// WorkerHealthPort serves the background worker's /health; 0 disables it.
	WorkerHealthPort int `mapstructure:"WORKER_HEALTH_PORT"`
}

// Resilient reports whether backend calls go through retries or a breaker.
func (c *Client) Resilient() bool {
	return c.RetryMax > 0 || c.CircuitBreaker
}

// Permission returns the configured notification permission. An empty value
// means the user is asked.
func (c *Client) Permission() (device.PermissionStatus, bool) {
	if c.NotificationPermission == "" {
		return device.StatusNotDetermined, false
	}
	status, err := device.ParsePermissionStatus(c.NotificationPermission)
	if err != nil {
		return device.StatusNotDetermined, false
	}
	return status, true
}

// Backend holds the settings of the reference backend.
type Backend struct {
	Shared `mapstructure:",squash"`

	Port         int    `mapstructure:"APP_PORT"`
	SessionStore string `mapstructure:"SESSION_STORE"`
	PushSender   string `mapstructure:"PUSH_SENDER"`
	PubSubTopic  string `mapstructure:"PUBSUB_TOPIC"`
	RequireTLS   bool   `mapstructure:"REQUIRE_TLS"`

	FirebaseProjectID          string `mapstructure:"FIREBASE_PROJECT_ID"`
	FirebaseServiceAccountPath string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_PATH"`

	DBHost            string        `mapstructure:"DB_HOST"`
	DBPort            int           `mapstructure:"DB_PORT"`
	DBUser            string        `mapstructure:"DB_USER"`
	DBPassword        string        `mapstructure:"DB_PASSWORD"`
	DBName            string        `mapstructure:"DB_NAME"`
	DBSSLMode         string        `mapstructure:"DB_SSL_MODE"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`
	DBAutoMigrate     bool          `mapstructure:"DB_AUTO_MIGRATE"`
}

// Database returns the connection settings of the session store.
func (b *Backend) Database() database.Config {
	return database.Config{
		Host:            b.DBHost,
		Port:            b.DBPort,
		User:            b.DBUser,
		Password:        b.DBPassword,
		Database:        b.DBName,
		SSLMode:         b.DBSSLMode,
		MaxOpenConns:    b.DBMaxOpenConns,
		MaxIdleConns:    b.DBMaxIdleConns,
		ConnMaxLifetime: b.DBConnMaxLifetime,
		AutoMigrate:     b.DBAutoMigrate,
	}
}

// Addr returns the listen address.
func (b *Backend) Addr() string {
	return fmt.Sprintf(":%d", b.Port)
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("KONECT_LOG_PRETTY", false)
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("PUBSUB_PROJECT_ID", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	return v
}

// LoadClient reads .env (if present) and the environment into a Client.
func LoadClient() (*Client, error) {
	v := newViper()

	v.SetDefault("KONECT_BACKEND_URL", "https://konect-backend.onrender.com")
	v.SetDefault("KONECT_DEVICE_TOKEN", "")
	v.SetDefault("KONECT_PLATFORM", "")
	v.SetDefault("KONECT_NOTIFICATION_PERMISSION", "")
	v.SetDefault("KONECT_PUSH_TRANSPORT", TransportNone)
	v.SetDefault("PUBSUB_SUBSCRIPTION", "")
	v.SetDefault("KONECT_SOUND_FILE", "sound_2.mp3")
	v.SetDefault("KONECT_SOUND_DIR", "")
	v.SetDefault("KONECT_SOUND_COMMAND", "")
	v.SetDefault("KONECT_OPEN_COMMAND", "")
	v.SetDefault("KONECT_NOTIFY_COMMAND", "")
	v.SetDefault("KONECT_DEEP_LINK", "myapp://notification")
	v.SetDefault("KONECT_RETRY_MAX", 0)
	v.SetDefault("KONECT_CIRCUIT_BREAKER", false)
	v.SetDefault("KONECT_REQUEST_TIMEOUT", "0s")
	v.SetDefault("WORKER_HEALTH_PORT", 0)

	var cfg Client
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Client) validate() error {
	if c.BackendURL == "" {
		return errors.New("config: KONECT_BACKEND_URL must be set")
	}
	if c.RetryMax < 0 {
		return errors.New("config: KONECT_RETRY_MAX must not be negative")
	}
	if c.RequestTimeout < 0 {
		return errors.New("config: KONECT_REQUEST_TIMEOUT must not be negative")
	}
	if c.WorkerHealthPort < 0 || c.WorkerHealthPort > 65535 {
		return fmt.Errorf("config: WORKER_HEALTH_PORT %d out of range", c.WorkerHealthPort)
	}
	if c.NotificationPermission != "" {
		if _, err := device.ParsePermissionStatus(c.NotificationPermission); err != nil {
			return fmt.Errorf("config: KONECT_NOTIFICATION_PERMISSION: %w", err)
		}
	}

	switch c.PushTransport {
	case TransportNone, TransportRedis:
	case TransportPubSub:
		if c.PubSubProjectID == "" || c.PubSubSubscription == "" {
			return errors.New("config: PUBSUB_PROJECT_ID and PUBSUB_SUBSCRIPTION must be set for the pubsub transport")
		}
	default:
		return fmt.Errorf("config: unknown KONECT_PUSH_TRANSPORT %q", c.PushTransport)
	}
	return nil
}

// LoadBackend reads .env (if present) and the environment into a Backend.
func LoadBackend() (*Backend, error) {
	v := newViper()

	v.SetDefault("APP_PORT", 8080)
	v.SetDefault("SESSION_STORE", StoreMemory)
	v.SetDefault("PUSH_SENDER", SenderLog)
	v.SetDefault("PUBSUB_TOPIC", "konect-push")
	v.SetDefault("REQUIRE_TLS", false)
	v.SetDefault("FIREBASE_PROJECT_ID", "")
	v.SetDefault("FIREBASE_SERVICE_ACCOUNT_PATH", "")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "konect")
	v.SetDefault("DB_PASSWORD", "localdev")
	v.SetDefault("DB_NAME", "konect")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")
	v.SetDefault("DB_AUTO_MIGRATE", true)

	var cfg Backend
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (b *Backend) validate() error {
	if b.Port <= 0 || b.Port > 65535 {
		return fmt.Errorf("config: APP_PORT %d out of range", b.Port)
	}

	switch b.SessionStore {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("config: unknown SESSION_STORE %q", b.SessionStore)
	}

	switch b.PushSender {
	case SenderLog, SenderRedis:
	case SenderPubSub:
		if b.PubSubProjectID == "" || b.PubSubTopic == "" {
			return errors.New("config: PUBSUB_PROJECT_ID and PUBSUB_TOPIC must be set for the pubsub sender")
		}
	case SenderFCM:
		if b.FirebaseProjectID == "" && b.FirebaseServiceAccountPath == "" {
			return errors.New("config: FIREBASE_PROJECT_ID or FIREBASE_SERVICE_ACCOUNT_PATH must be set for the fcm sender")
		}
	default:
		return fmt.Errorf("config: unknown PUSH_SENDER %q", b.PushSender)
	}
	return nil
}
