// Package config loads client configuration using Viper: defaults, then
// the YAML config file, then NAURU_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nauru-yvy/nauru/internal/gateway"
)

// EnvPrefix is prepended to environment variable names.
const EnvPrefix = "NAURU"

// Config holds the client configuration.
type Config struct {
	API       APIConfig       `mapstructure:"api" yaml:"api" json:"api"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage" json:"storage"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session" json:"session"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging" json:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry" json:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// APIConfig locates the backend.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

// StorageConfig locates the encrypted session store.
type StorageConfig struct {
	Path       string `mapstructure:"path" yaml:"path" json:"path"`
	Passphrase string `mapstructure:"passphrase" yaml:"-" json:"-"`
}

// SessionConfig tunes the session manager.
type SessionConfig struct {
	VerifyOnStart       bool   `mapstructure:"verify_on_start" yaml:"verify_on_start" json:"verify_on_start"`
	CoalesceInFlight    bool   `mapstructure:"coalesce_in_flight" yaml:"coalesce_in_flight" json:"coalesce_in_flight"`
	RemoteProfileUpdate bool   `mapstructure:"remote_profile_update" yaml:"remote_profile_update" json:"remote_profile_update"`
	Dialect             string `mapstructure:"dialect" yaml:"dialect" json:"dialect"`
}

// LoggingConfig selects log level and format.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
}

// MetricsConfig sets the status endpoint address. Empty disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr" json:"addr"`
}

// Dir returns the directory holding the config file and session store.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nauru"
	}
	return filepath.Join(home, ".nauru")
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// envBindings maps short environment names onto config keys in addition to
// the automatic NAURU_SECTION_KEY form.
var envBindings = map[string]string{
	"api.base_url":       "NAURU_API_URL",
	"storage.passphrase": "NAURU_PASSPHRASE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", gateway.DefaultBaseURL)
	v.SetDefault("api.timeout", gateway.DefaultTimeout)
	v.SetDefault("storage.path", filepath.Join(Dir(), "session.json"))
	v.SetDefault("storage.passphrase", "")
	v.SetDefault("session.verify_on_start", true)
	v.SetDefault("session.coalesce_in_flight", false)
	v.SetDefault("session.remote_profile_update", true)
	v.SetDefault("session.dialect", "canonical")
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("metrics.addr", "")
}

// Load reads configuration from path, or from DefaultPath when path is
// empty. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(Dir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, "NAURU_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(path != "" && errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Storage.Path = expandHome(cfg.Storage.Path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url must not be empty")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url %q must start with http:// or https://", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout)
	}
	switch c.Session.Dialect {
	case "", "canonical", "legacy":
	default:
		return fmt.Errorf("session.dialect %q must be canonical or legacy", c.Session.Dialect)
	}
	return nil
}

// Save writes cfg to path as YAML. The passphrase is never written.
func Save(cfg *Config, path string) error {
	v := viper.New()

	v.Set("api.base_url", cfg.API.BaseURL)
	v.Set("api.timeout", cfg.API.Timeout.String())
	v.Set("storage.path", cfg.Storage.Path)
	v.Set("session.verify_on_start", cfg.Session.VerifyOnStart)
	v.Set("session.coalesce_in_flight", cfg.Session.CoalesceInFlight)
	v.Set("session.remote_profile_update", cfg.Session.RemoteProfileUpdate)
	v.Set("session.dialect", cfg.Session.Dialect)
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.format", cfg.Logging.Format)
	v.Set("telemetry.enabled", cfg.Telemetry.Enabled)
	v.Set("telemetry.endpoint", cfg.Telemetry.Endpoint)
	v.Set("metrics.addr", cfg.Metrics.Addr)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
