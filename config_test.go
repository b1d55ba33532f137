package ownid

import (
	"strings"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Flow.Locale != "en" || cfg.Flow.DisplayName != "Sample Name" {
		t.Fatalf("unexpected flow defaults: %+v", cfg.Flow)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := map[string]struct {
		mutate func(*Config)
		want   string
	}{
		"empty locale":       {func(c *Config) { c.Flow.Locale = " " }, "Locale"},
		"negative timeout":   {func(c *Config) { c.Flow.AwaitTimeout = -1 }, "AwaitTimeout"},
		"audit buffer":       {func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }, "BufferSize"},
		"latency without on": {func(c *Config) { c.Metrics.Enabled = false; c.Metrics.EnableLatencyHistograms = true }, "EnableLatencyHistograms"},
		"log level":          {func(c *Config) { c.Logging.Level = "trace" }, "Level"},
		"log format":         {func(c *Config) { c.Logging.Format = "xml" }, "Format"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Flow.Locale = ""
	if _, err := New().WithConfig(cfg).WithSDK(&fakeSDK{}).WithBackend(&fakeBackend{}).Build(); err == nil {
		t.Fatal("expected build to reject invalid config")
	}
}

func TestBuildCopiesConfig(t *testing.T) {
	cfg := DefaultConfig()
	b := New().WithConfig(cfg).WithSDK(&fakeSDK{}).WithBackend(&fakeBackend{}).WithLogger(discardLogger())
	cfg.Flow.Locale = "fr"

	client, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer client.Close()
	if client.cfg.Flow.Locale != "en" {
		t.Fatalf("expected config copied at WithConfig, got %q", client.cfg.Flow.Locale)
	}
}
