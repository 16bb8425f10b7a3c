// Package config handles CLI configuration loading and management.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Borahm/modelfusion/core"
	"github.com/Borahm/modelfusion/middleware"
)

// Config represents the CLI configuration.
type Config struct {
	DefaultProvider string                    `yaml:"default_provider"`
	DefaultModel    string                    `yaml:"default_model"`
	Providers       map[string]ProviderConfig `yaml:"providers"`

	Retry          RetryConfig                      `yaml:"retry"`
	Throttle       ThrottleConfig                   `yaml:"throttle"`
	Logging        LoggingConfig                    `yaml:"logging"`
	Tracing        TracingConfig                    `yaml:"tracing"`
	CircuitBreaker *middleware.CircuitBreakerConfig `yaml:"circuit_breaker,omitempty"`
}

// ProviderConfig holds configuration for a specific provider.
type ProviderConfig struct {
	APIKeyRef string `yaml:"api_key_ref"`
	BaseURL   string `yaml:"base_url,omitempty"`
	Model     string `yaml:"model,omitempty"`
}

// RetryConfig configures retries of backend calls. MaxRetries 0 disables retrying.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
	Jitter     float64       `yaml:"jitter"`
}

// ThrottleConfig limits backend calls. A zero value means no throttle.
type ThrottleConfig struct {
	MaxConcurrency int     `yaml:"max_concurrency"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
	Burst          int     `yaml:"burst"`
}

// LoggingConfig configures the CLI logger and function-call logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	Calls  string `yaml:"calls"`  // off, basic-text, detailed-object
}

// TracingConfig selects an OpenTelemetry exporter: none or stdout.
type TracingConfig struct {
	Exporter string `yaml:"exporter"`
}

// DefaultConfigPath returns the default configuration file path for the current platform.
// - macOS/Linux: ~/.modelfusion/config.yaml
// - Windows: %USERPROFILE%\.modelfusion\config.yaml
func DefaultConfigPath() string {
	var homeDir string

	if runtime.GOOS == "windows" {
		homeDir = os.Getenv("USERPROFILE")
	} else {
		homeDir = os.Getenv("HOME")
	}

	if homeDir == "" {
		// Fallback to current directory
		return "config.yaml"
	}

	return filepath.Join(homeDir, ".modelfusion", "config.yaml")
}

// LoadConfig loads configuration from the specified path.
// If the file doesn't exist, returns an empty config without error.
// Returns an error only if the file exists but cannot be read, parsed or
// validated.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Providers: make(map[string]ProviderConfig),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Missing config file is not an error
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// Ensure Providers map is initialized
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Retry.MaxRetries < 0:
		return fmt.Errorf("retry.max_retries must not be negative")
	case c.Retry.Jitter < 0 || c.Retry.Jitter > 1:
		return fmt.Errorf("retry.jitter must be between 0 and 1")
	case c.Throttle.MaxConcurrency < 0:
		return fmt.Errorf("throttle.max_concurrency must not be negative")
	case c.Throttle.RatePerSecond < 0:
		return fmt.Errorf("throttle.rate_per_second must not be negative")
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Calls {
	case "", "off", "basic-text", "detailed-object":
	default:
		return fmt.Errorf("logging.calls must be off, basic-text or detailed-object, got %q", c.Logging.Calls)
	}
	return nil
}

// GetProvider returns the provider config for the given ID.
// Returns nil if the provider is not configured.
func (c *Config) GetProvider(id string) *ProviderConfig {
	if c.Providers == nil {
		return nil
	}
	if pc, ok := c.Providers[id]; ok {
		return &pc
	}
	return nil
}

// RetryPolicy returns the configured retry policy, or nil when retrying is off.
func (c *Config) RetryPolicy() core.RetryPolicy {
	if c.Retry.MaxRetries == 0 {
		return nil
	}
	return core.NewRetryPolicy(core.RetryConfig{
		MaxRetries: c.Retry.MaxRetries,
		BaseDelay:  c.Retry.BaseDelay,
		MaxDelay:   c.Retry.MaxDelay,
		Jitter:     c.Retry.Jitter,
	})
}

// ThrottlePolicy returns the configured throttle, or nil when none is set.
// A rate limit takes precedence over a concurrency limit.
func (c *Config) ThrottlePolicy() core.ThrottlePolicy {
	switch {
	case c.Throttle.RatePerSecond > 0:
		return core.ThrottleRateLimit(c.Throttle.RatePerSecond, c.Throttle.Burst)
	case c.Throttle.MaxConcurrency > 0:
		return core.ThrottleMaxConcurrency(c.Throttle.MaxConcurrency)
	}
	return nil
}

// Settings returns the model settings derived from the retry and throttle sections.
func (c *Config) Settings() core.Settings {
	var s core.Settings
	if r := c.RetryPolicy(); r != nil {
		s = s.WithRetry(r)
	}
	if t := c.ThrottlePolicy(); t != nil {
		s = s.WithThrottle(t)
	}
	return s
}

// NewLogger builds an slog logger writing to w from the logging section.
// verbose forces the debug level.
func (c *Config) NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := parseLevel(c.Logging.Level)
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
