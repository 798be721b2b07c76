// Package config loads rwamarket settings from defaults, an optional config
// file, and RWAMARKET_ environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: database.path is read from
// RWAMARKET_DATABASE_PATH.
const EnvPrefix = "RWAMARKET"

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DispatchConfig tunes the outbox dispatcher.
type DispatchConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	BatchSize   int           `mapstructure:"batch_size"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	// Output is a JSON-lines file receiving transfers. Empty logs them instead.
	Output string `mapstructure:"output"`
}

// MetricsConfig holds the Prometheus listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Path: "rwamarket.db"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Dispatch: DispatchConfig{
			Interval:    2 * time.Second,
			BatchSize:   50,
			MaxAttempts: 5,
		},
	}
}

// Load reads configuration. When path is non-empty the file must exist; its
// format follows the extension (yaml, toml, json).
func Load(path string) (Config, error) {
	v := viper.New()

	d := Default()
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("dispatch.interval", d.Dispatch.Interval)
	v.SetDefault("dispatch.batch_size", d.Dispatch.BatchSize)
	v.SetDefault("dispatch.max_attempts", d.Dispatch.MaxAttempts)
	v.SetDefault("dispatch.output", d.Dispatch.Output)
	v.SetDefault("metrics.addr", d.Metrics.Addr)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var result *multierror.Error

	if strings.TrimSpace(c.Database.Path) == "" {
		result = multierror.Append(result, errors.New("database.path must not be empty"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		result = multierror.Append(result, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		result = multierror.Append(result, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Dispatch.Interval <= 0 {
		result = multierror.Append(result, fmt.Errorf("dispatch.interval must be positive, got %s", c.Dispatch.Interval))
	}
	if c.Dispatch.BatchSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("dispatch.batch_size must be positive, got %d", c.Dispatch.BatchSize))
	}
	if c.Dispatch.MaxAttempts <= 0 {
		result = multierror.Append(result, fmt.Errorf("dispatch.max_attempts must be positive, got %d", c.Dispatch.MaxAttempts))
	}

	return result.ErrorOrNil()
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q: must be debug, info, warn or error", s)
	}
	return l, nil
}
