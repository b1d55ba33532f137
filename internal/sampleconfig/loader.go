package sampleconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// LoadOptions controls configuration loading.
type LoadOptions struct {
	ConfigFile  string
	ConfigFiles []string
	Flags       *pflag.FlagSet
}

// LoadResult is the merged configuration and the file it came from.
type LoadResult struct {
	Config         Config
	ConfigFileUsed string
}

// Load merges defaults, file, env and flags, in increasing precedence.
func Load(opts LoadOptions) (LoadResult, error) {
	v := viper.New()
	setDefaults(v)
	configureEnv(v)

	if opts.Flags != nil {
		if err := BindFlags(v, opts.Flags); err != nil {
			return LoadResult{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	path, err := resolveConfigFile(opts)
	if err != nil {
		return LoadResult{}, err
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return LoadResult{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return LoadResult{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return LoadResult{Config: cfg, ConfigFileUsed: v.ConfigFileUsed()}, fmt.Errorf("invalid configuration: %w", err)
	}
	return LoadResult{Config: cfg, ConfigFileUsed: v.ConfigFileUsed()}, nil
}

// BindFlags binds the CLI flags that override configuration keys.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	bindings := map[string]string{
		"locale":     "flow.locale",
		"redis-addr": "redis.addr",
		"log-level":  "logging.level",
		"log-format": "logging.format",
		"metrics":    "metrics.enabled",
		"audit":      "audit.enabled",
	}
	for flag, key := range bindings {
		f := flags.Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", flag, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("flow.locale", d.Flow.Locale)
	v.SetDefault("flow.display-name", d.Flow.DisplayName)
	v.SetDefault("flow.await-timeout", d.Flow.AwaitTimeout)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.key-prefix", d.Redis.KeyPrefix)

	v.SetDefault("link.max-attempts", d.Link.MaxAttempts)
	v.SetDefault("link.window", d.Link.Window)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.latency", d.Metrics.Latency)

	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.buffer-size", d.Audit.BufferSize)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

func configureEnv(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.SetEnvPrefix("OWNID")
	v.AutomaticEnv()
}

func resolveConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFile != "" {
		if _, err := os.Stat(opts.ConfigFile); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("config file not found: %s", opts.ConfigFile)
			}
			return "", fmt.Errorf("config file error: %w", err)
		}
		return opts.ConfigFile, nil
	}

	candidates := opts.ConfigFiles
	if candidates == nil {
		candidates = defaultConfigFiles()
	}
	for _, c := range candidates {
		info, err := os.Stat(c)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf("config file error: %w", err)
		}
		if !info.IsDir() {
			return c, nil
		}
	}
	return "", nil
}

func defaultConfigFiles() []string {
	files := []string{"./ownid-sample.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		files = append(files, filepath.Join(home, ".config", "ownid", "sample.yaml"))
	}
	return files
}
