// Package config loads proddeps settings from defaults, an optional config
// file and PRODDEPS_* environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "proddeps"
	// EnvPrefix prefixes environment overrides, e.g. PRODDEPS_PROCESS_TIMEOUT.
	EnvPrefix = "PRODDEPS"

	SourceTool     = "tool"
	SourceRegistry = "registry"
)

// Config holds all settings.
type Config struct {
	Process  ProcessConfig  `mapstructure:"process"`
	Latest   LatestConfig   `mapstructure:"latest"`
	Registry RegistryConfig `mapstructure:"registry"`
	Yarn     YarnConfig     `mapstructure:"yarn"`
}

// ProcessConfig controls package manager invocations.
type ProcessConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxOutputBytes int64         `mapstructure:"max_output_bytes"`
	KillSignal     string        `mapstructure:"kill_signal"`
}

// LatestConfig selects where published versions are looked up.
type LatestConfig struct {
	Source string `mapstructure:"source"` // "tool" or "registry"
}

// RegistryConfig configures the npm registry client.
type RegistryConfig struct {
	URL        string `mapstructure:"url"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// YarnConfig configures yarn project detection.
type YarnConfig struct {
	Lockfile string `mapstructure:"lockfile"`
}

// LoadOptions defines explicit configuration loading inputs.
type LoadOptions struct {
	// ConfigFilePath forces loading from a specific config file when set.
	ConfigFilePath string
	// SearchDirs are searched for proddeps.{yaml,json,toml} when no file is forced.
	SearchDirs []string
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Process: ProcessConfig{
			Timeout:        5 * time.Minute,
			MaxOutputBytes: 200 * 1024 * 1024,
			KillSignal:     "SIGTERM",
		},
		Latest:   LatestConfig{Source: SourceTool},
		Registry: RegistryConfig{URL: "https://registry.npmjs.org", MaxRetries: 3},
		Yarn:     YarnConfig{Lockfile: "yarn.lock"},
	}
}

// Load reads configuration. A missing config file is not an error unless
// it was requested explicitly.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("process.timeout", defaults.Process.Timeout)
	v.SetDefault("process.max_output_bytes", defaults.Process.MaxOutputBytes)
	v.SetDefault("process.kill_signal", defaults.Process.KillSignal)
	v.SetDefault("latest.source", defaults.Latest.Source)
	v.SetDefault("registry.url", defaults.Registry.URL)
	v.SetDefault("registry.max_retries", defaults.Registry.MaxRetries)
	v.SetDefault("yarn.lockfile", defaults.Yarn.Lockfile)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFilePath != "" {
		v.SetConfigFile(opts.ConfigFilePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFilePath, err)
		}
	} else if len(opts.SearchDirs) > 0 {
		v.SetConfigName(AppName)
		for _, dir := range opts.SearchDirs {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that cannot be expressed as defaults.
func (c *Config) Validate() error {
	switch c.Latest.Source {
	case SourceTool, SourceRegistry:
	default:
		return fmt.Errorf("invalid latest.source %q: must be %q or %q", c.Latest.Source, SourceTool, SourceRegistry)
	}
	if c.Process.Timeout < 0 {
		return fmt.Errorf("invalid process.timeout %s", c.Process.Timeout)
	}
	if c.Process.MaxOutputBytes < 0 {
		return fmt.Errorf("invalid process.max_output_bytes %d", c.Process.MaxOutputBytes)
	}
	if _, err := c.Process.Signal(); err != nil {
		return err
	}
	return nil
}

var signals = map[string]syscall.Signal{
	"SIGTERM": syscall.SIGTERM,
	"SIGKILL": syscall.SIGKILL,
	"SIGINT":  syscall.SIGINT,
}

// Signal returns the configured kill signal.
func (p ProcessConfig) Signal() (syscall.Signal, error) {
	name := strings.ToUpper(strings.TrimSpace(p.KillSignal))
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	sig, ok := signals[name]
	if !ok {
		return 0, fmt.Errorf("unsupported process.kill_signal %q", p.KillSignal)
	}
	return sig, nil
}
