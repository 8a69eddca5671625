package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konect/konect/internal/device"
)

func TestLoadClient_Defaults(t *testing.T) {
	cfg, err := LoadClient()
	require.NoError(t, err)

	assert.Equal(t, "https://konect-backend.onrender.com", cfg.BackendURL)
	assert.Equal(t, TransportNone, cfg.PushTransport)
	assert.Equal(t, "sound_2.mp3", cfg.SoundFile)
	assert.Equal(t, "myapp://notification", cfg.DeepLink)
	assert.Equal(t, 0, cfg.RetryMax)
	assert.False(t, cfg.CircuitBreaker)
	assert.Zero(t, cfg.RequestTimeout)
	assert.False(t, cfg.Resilient())
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())

	_, ok := cfg.Permission()
	assert.False(t, ok)
}

func TestLoadClient_EnvOverride(t *testing.T) {
	t.Setenv("KONECT_BACKEND_URL", "http://localhost:8080")
	t.Setenv("KONECT_DEVICE_TOKEN", "tok-1")
	t.Setenv("KONECT_PUSH_TRANSPORT", "redis")
	t.Setenv("KONECT_RETRY_MAX", "3")
	t.Setenv("KONECT_REQUEST_TIMEOUT", "10s")
	t.Setenv("KONECT_NOTIFICATION_PERMISSION", "authorized")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_DB", "2")

	cfg, err := LoadClient()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.BackendURL)
	assert.Equal(t, "tok-1", cfg.DeviceToken)
	assert.Equal(t, TransportRedis, cfg.PushTransport)
	assert.Equal(t, 3, cfg.RetryMax)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.Resilient())
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
	assert.Equal(t, 2, cfg.RedisDB)

	status, ok := cfg.Permission()
	assert.True(t, ok)
	assert.Equal(t, device.StatusAuthorized, status)
}

func TestLoadClient_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown transport", map[string]string{"KONECT_PUSH_TRANSPORT": "carrier-pigeon"}},
		{"pubsub without subscription", map[string]string{"KONECT_PUSH_TRANSPORT": "pubsub", "PUBSUB_PROJECT_ID": "p"}},
		{"negative retries", map[string]string{"KONECT_RETRY_MAX": "-1"}},
		{"bad permission", map[string]string{"KONECT_NOTIFICATION_PERMISSION": "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadClient()
			assert.Error(t, err)
		})
	}
}

func TestLoadBackend_Defaults(t *testing.T) {
	cfg, err := LoadBackend()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, StoreMemory, cfg.SessionStore)
	assert.Equal(t, SenderLog, cfg.PushSender)
	assert.Equal(t, "konect-push", cfg.PubSubTopic)

	db := cfg.Database()
	assert.Equal(t, "localhost", db.Host)
	assert.Equal(t, 5432, db.Port)
	assert.Equal(t, "konect", db.User)
	assert.Equal(t, "konect", db.Database)
	assert.Equal(t, "disable", db.SSLMode)
	assert.Equal(t, 10, db.MaxOpenConns)
	assert.Equal(t, 5, db.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, db.ConnMaxLifetime)
	assert.True(t, db.AutoMigrate)
}

func TestLoadBackend_EnvOverride(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("SESSION_STORE", "postgres")
	t.Setenv("PUSH_SENDER", "fcm")
	t.Setenv("FIREBASE_PROJECT_ID", "konect-dev")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_CONN_MAX_LIFETIME", "1m")
	t.Setenv("OTEL_ENABLED", "true")

	cfg, err := LoadBackend()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, StorePostgres, cfg.SessionStore)
	assert.Equal(t, SenderFCM, cfg.PushSender)
	assert.Equal(t, "db.internal", cfg.Database().Host)
	assert.Equal(t, time.Minute, cfg.Database().ConnMaxLifetime)

	tc := cfg.Telemetry("konect-api", "1.0.0")
	assert.True(t, tc.Enabled)
	assert.Equal(t, "konect-api", tc.ServiceName)
	assert.Equal(t, "localhost:4317", tc.OTLPEndpoint)
}

func TestLoadBackend_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad port", map[string]string{"APP_PORT": "70000"}},
		{"unknown store", map[string]string{"SESSION_STORE": "sqlite"}},
		{"unknown sender", map[string]string{"PUSH_SENDER": "sms"}},
		{"fcm without project", map[string]string{"PUSH_SENDER": "fcm"}},
		{"pubsub without project", map[string]string{"PUSH_SENDER": "pubsub"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadBackend()
			assert.Error(t, err)
		})
	}
}

func TestShared_LevelFallback(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, Shared{LogLevel: "loud"}.Level())
	assert.Equal(t, zerolog.WarnLevel, Shared{LogLevel: "WARN"}.Level())
}
