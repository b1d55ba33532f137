package ownid

import (
	"errors"
	"strings"
	"time"
)

// Config configures a [Client] and its [Dispatcher].
//
// Config values are copied at Build time; later changes to the caller's copy
// have no effect.
type Config struct {
	Flow    FlowConfig
	Audit   AuditConfig
	Metrics MetricsConfig
	Logging LoggingConfig
}

/*
====================================
FLOW CONFIG
====================================
*/

// FlowConfig controls how flows are started.
type FlowConfig struct {
	// Locale is passed to the SDK when intents are created.
	Locale string
	// DisplayName is the default display name used for registration.
	DisplayName string
	// AwaitTimeout bounds Client.Await when the caller's context has no deadline.
	// Zero waits for the callback indefinitely.
	AwaitTimeout time.Duration
}

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// LoggingConfig selects the structured logger's level and encoding.
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Flow: FlowConfig{
			Locale:      "en",
			DisplayName: "Sample Name",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultConfig returns the configuration the sample host runs with.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	return cfg
}

// Validate checks cfg for values the client cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Flow.Locale) == "" {
		return errors.New("Flow Locale must be set")
	}
	if c.Flow.AwaitTimeout < 0 {
		return errors.New("Flow AwaitTimeout must be >= 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.New("Logging Level must be one of debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return errors.New("Logging Format must be text or json")
	}
	return nil
}
