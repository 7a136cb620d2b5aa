// Package config loads runtime configuration from an optional yaml file and
// ACTR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/codewandler/actr-go/core/actor"
)

// EnvPrefix is prepended to every environment variable, e.g.
// ACTR_SYSTEM_THROUGHPUT overrides system.throughput.
const EnvPrefix = "ACTR"

type SystemConfig struct {
	Name           string `mapstructure:"name"`
	MaxConcurrency int    `mapstructure:"max_concurrency"`
	Throughput     int    `mapstructure:"throughput"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// BenchConfig drives the load generator.
type BenchConfig struct {
	Clients  int           `mapstructure:"clients"`
	Requests int           `mapstructure:"requests"`
	Fanout   int           `mapstructure:"fanout"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Delay    time.Duration `mapstructure:"delay"`
}

type Config struct {
	System  SystemConfig  `mapstructure:"system"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Bench   BenchConfig   `mapstructure:"bench"`
}

// Load reads configuration from path. An empty path looks for actr.yaml in the
// working directory and ./configs; a missing file is not an error then.
// Environment variables take precedence over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("actr")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("system.name", "")
	v.SetDefault("system.max_concurrency", 32)
	v.SetDefault("system.throughput", 64)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("bench.clients", 8)
	v.SetDefault("bench.requests", 10_000)
	v.SetDefault("bench.fanout", 4)
	v.SetDefault("bench.timeout", time.Second)
	v.SetDefault("bench.delay", 10*time.Millisecond)
}

func (c *Config) Validate() error {
	if c.System.Throughput <= 0 {
		return fmt.Errorf("system.throughput must be positive")
	}
	if _, err := c.level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}
	if c.Bench.Clients <= 0 || c.Bench.Requests < 0 || c.Bench.Fanout < 0 {
		return fmt.Errorf("bench: clients must be positive, requests and fanout non-negative")
	}
	return nil
}

func (c *Config) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// Logger builds the configured logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	lvl, _ := c.level()
	opts := &slog.HandlerOptions{Level: lvl}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Options maps the system section onto actor.Options. Logger, metrics and
// context are left to the caller.
func (c *Config) Options() actor.Options {
	return actor.Options{
		Name:           c.System.Name,
		MaxConcurrency: c.System.MaxConcurrency,
		Throughput:     c.System.Throughput,
	}
}
