// Package sampleconfig loads the sample CLI configuration from defaults, an
// optional YAML file, OWNID_* environment variables and command-line flags.
package sampleconfig

import (
	"errors"
	"fmt"
	"time"

	ownid "github.com/ownid/ownid-go"
	"github.com/ownid/ownid-go/backend"
)

// Config is the full sample configuration.
type Config struct {
	Flow    FlowConfig    `mapstructure:"flow" yaml:"flow"`
	Redis   RedisConfig   `mapstructure:"redis" yaml:"redis"`
	Link    LinkConfig    `mapstructure:"link" yaml:"link"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Audit   AuditConfig   `mapstructure:"audit" yaml:"audit"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

type FlowConfig struct {
	Locale       string        `mapstructure:"locale" yaml:"locale"`
	DisplayName  string        `mapstructure:"display-name" yaml:"display-name"`
	AwaitTimeout time.Duration `mapstructure:"await-timeout" yaml:"await-timeout"`
}

// RedisConfig selects the store. An empty Addr runs an in-process miniredis.
type RedisConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	Password  string `mapstructure:"password" yaml:"password"`
	DB        int    `mapstructure:"db" yaml:"db"`
	KeyPrefix string `mapstructure:"key-prefix" yaml:"key-prefix"`
}

type LinkConfig struct {
	MaxAttempts int           `mapstructure:"max-attempts" yaml:"max-attempts"`
	Window      time.Duration `mapstructure:"window" yaml:"window"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Latency bool `mapstructure:"latency" yaml:"latency"`
}

type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled" yaml:"enabled"`
	BufferSize int  `mapstructure:"buffer-size" yaml:"buffer-size"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig mirrors the library and backend defaults.
func DefaultConfig() Config {
	client := ownid.DefaultConfig()
	be := backend.DefaultConfig()
	return Config{
		Flow: FlowConfig{
			Locale:       client.Flow.Locale,
			DisplayName:  client.Flow.DisplayName,
			AwaitTimeout: 30 * time.Second,
		},
		Redis:   RedisConfig{KeyPrefix: be.KeyPrefix},
		Link:    LinkConfig{MaxAttempts: be.LinkMaxAttempts, Window: be.LinkWindow},
		Metrics: MetricsConfig{Enabled: client.Metrics.Enabled},
		Audit:   AuditConfig{Enabled: false, BufferSize: client.Audit.BufferSize},
		Logging: LoggingConfig{Level: "warn", Format: client.Logging.Format},
	}
}

// Client converts the sample configuration to a client configuration.
func (c Config) Client() ownid.Config {
	cfg := ownid.DefaultConfig()
	cfg.Flow.Locale = c.Flow.Locale
	cfg.Flow.DisplayName = c.Flow.DisplayName
	cfg.Flow.AwaitTimeout = c.Flow.AwaitTimeout
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Enabled && c.Metrics.Latency
	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Audit.BufferSize = c.Audit.BufferSize
	cfg.Logging.Level = c.Logging.Level
	cfg.Logging.Format = c.Logging.Format
	return cfg
}

// Backend applies the sample configuration to backend defaults. The
// assertion key is filled in by the caller.
func (c Config) Backend() backend.Config {
	cfg := backend.DefaultConfig()
	if c.Redis.KeyPrefix != "" {
		cfg.KeyPrefix = c.Redis.KeyPrefix
	}
	cfg.LinkMaxAttempts = c.Link.MaxAttempts
	cfg.LinkWindow = c.Link.Window
	return cfg
}

// Validate reports every problem in c at once.
func (c Config) Validate() error {
	var errs []error
	client := c.Client()
	if err := client.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Redis.DB < 0 {
		errs = append(errs, errors.New("redis db must be >= 0"))
	}
	if c.Link.MaxAttempts < 0 {
		errs = append(errs, errors.New("link max-attempts must be >= 0"))
	}
	if c.Link.MaxAttempts > 0 && c.Link.Window <= 0 {
		errs = append(errs, fmt.Errorf("link window must be > 0, got %s", c.Link.Window))
	}
	return errors.Join(errs...)
}
