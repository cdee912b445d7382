package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"STORE_BACKEND", "DB_DSN", "HTTP_ADDR", "PORT", "NATS_URL", "NATS_SUBJECT_PREFIX",
	"GEOFENCE_FILE", "GEOFENCE_TIMEOUT", "DIRECTORY_FILE", "RATE_LIMIT_PER_SEC",
	"RATE_LIMIT_BURST", "LOG_LEVEL", "LOG_FORMAT", "DB_CONNECT_ATTEMPTS", "DB_CONNECT_DELAY",
}

// clearEnv blanks every variable Load reads. Empty values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DSN", "host=localhost dbname=fleet")

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "fleet.events", cfg.NATSSubjectPrefix)
	assert.Equal(t, 2*time.Second, cfg.GeofenceTimeout)
	assert.Equal(t, 5.0, cfg.RateLimitPerSec)
	assert.Equal(t, 10, cfg.RateLimitBurst)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10, cfg.DBConnectAttempts)
	assert.Equal(t, 2*time.Second, cfg.DBConnectDelay)
}

func TestLoad_RequiresDSNForSQLBackends(t *testing.T) {
	clearEnv(t)

	_, err := Load(noEnvFile(t))
	require.Error(t, err)

	t.Setenv("STORE_BACKEND", "memory")
	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.StoreBackend)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("DB_DSN", "file:fleet.db")
	t.Setenv("PORT", "9090")
	t.Setenv("GEOFENCE_TIMEOUT", "250ms")
	t.Setenv("RATE_LIMIT_PER_SEC", "0.5")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 250*time.Millisecond, cfg.GeofenceTimeout)
	assert.Equal(t, 0.5, cfg.RateLimitPerSec)
	assert.Equal(t, "text", cfg.LogFormat)

	t.Setenv("HTTP_ADDR", "127.0.0.1:7000")
	cfg, err = Load(noEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.HTTPAddr)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"STORE_BACKEND":      "mongodb",
		"GEOFENCE_TIMEOUT":   "soon",
		"RATE_LIMIT_BURST":   "many",
		"RATE_LIMIT_PER_SEC": "0",
		"LOG_LEVEL":          "verbose",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("DB_DSN", "file:fleet.db")
			t.Setenv(key, val)

			_, err := Load(noEnvFile(t))
			require.Error(t, err)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	for _, k := range []string{"STORE_BACKEND", "DIRECTORY_FILE"} {
		require.NoError(t, os.Unsetenv(k))
	}

	path := filepath.Join(t.TempDir(), "fleet.env")
	require.NoError(t, os.WriteFile(path, []byte("STORE_BACKEND=memory\nDIRECTORY_FILE=/etc/fleet/directory.yaml\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, "/etc/fleet/directory.yaml", cfg.DirectoryFile)
}
