package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9000\n"))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "emotion.db", cfg.Database.Path)
	assert.Equal(t, 100*time.Millisecond, cfg.Relay.PollInterval)
	assert.Equal(t, "Entrance Camera", cfg.Dashboard.DeviceName)
	assert.Equal(t, "jetson_1", cfg.Dashboard.DefaultDevice)
	assert.Len(t, cfg.Server.AllowedOrigins, 2)
	assert.Equal(t, "emotion", cfg.MQTT.TopicPrefix)
}

func TestLoad_YAMLValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
relay:
  poll_interval: 250ms
dashboard:
  cache_ttl: 2s
  device_name: Lobby
server:
  allowed_origins: ["http://example.test"]
`))
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Relay.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.Dashboard.CacheTTL)
	assert.Equal(t, "Lobby", cfg.Dashboard.DeviceName)
	assert.Equal(t, []string{"http://example.test"}, cfg.Server.AllowedOrigins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("EMO_DB_PATH", "/tmp/other.db")
	t.Setenv("EMO_ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("EMO_RELAY_POLL_INTERVAL", "50ms")
	t.Setenv("PORT", "7777")

	cfg, err := Load(writeConfig(t, "logging:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 50*time.Millisecond, cfg.Relay.PollInterval)
	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown driver", "database:\n  driver: mongo\n"},
		{"postgres without host", "database:\n  driver: postgres\n"},
		{"negative poll interval", "relay:\n  poll_interval: -1s\n"},
		{"bad yaml", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: 5432, Name: "emotion"}
	assert.Equal(t, "postgres://u:p@db:5432/emotion?sslmode=disable", d.DSN())
}
