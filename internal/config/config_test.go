package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/api/v1", cfg.API.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, filepath.Join(Dir(), "session.json"), cfg.Storage.Path)
	assert.True(t, cfg.Session.VerifyOnStart)
	assert.False(t, cfg.Session.CoalesceInFlight)
	assert.True(t, cfg.Session.RemoteProfileUpdate)
	assert.Equal(t, "canonical", cfg.Session.Dialect)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://nauru.example.org/api/v1
  timeout: 30s
session:
  dialect: legacy
  coalesce_in_flight: true
logging:
  level: debug
`), 0o600))

	t.Setenv("NAURU_LOGGING_FORMAT", "json")
	t.Setenv("NAURU_PASSPHRASE", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://nauru.example.org/api/v1", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, "legacy", cfg.Session.Dialect)
	assert.True(t, cfg.Session.CoalesceInFlight)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "from-env", cfg.Storage.Passphrase)
}

func TestLoadAPIURLEnvAlias(t *testing.T) {
	t.Setenv("NAURU_API_URL", "http://10.0.0.5:8000/api/v1")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8000/api/v1", cfg.API.BaseURL)
}

func TestLoadExpandsHome(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  path: ~/custom/session.json\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "custom", "session.json"), cfg.Storage.Path)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad url scheme", "api:\n  base_url: ftp://x\n"},
		{"negative timeout", "api:\n  timeout: -1s\n"},
		{"unknown dialect", "session:\n  dialect: klingon\n"},
		{"malformed yaml", "api: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.API.BaseURL = "https://nauru.example.org/api/v1"
	cfg.Session.Dialect = "legacy"
	cfg.Storage.Passphrase = "secret"
	cfg.Metrics.Addr = "127.0.0.1:9464"

	require.NoError(t, Save(cfg, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.API, loaded.API)
	assert.Equal(t, "legacy", loaded.Session.Dialect)
	assert.Equal(t, "127.0.0.1:9464", loaded.Metrics.Addr)
	assert.Empty(t, loaded.Storage.Passphrase)
}
