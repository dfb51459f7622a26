// ABOUTME: Configuration loading and parsing for quickfix-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete quickfix-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	AdminToken    string        `yaml:"admin_token"`
	LookupTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	LookupTimeoutRaw string `yaml:"lookup_timeout"`
}

// RealtimeConfig holds connection lifecycle and rate limit configuration
type RealtimeConfig struct {
	RateWindow    time.Duration `yaml:"-"`
	RateThreshold int           `yaml:"rate_threshold"`
	MaxIdle       time.Duration `yaml:"-"`
	SweepInterval time.Duration `yaml:"-"`

	// ExemptPaths lists URL path prefixes that skip the connection rate
	// limit. Empty by default; internal dashboards that open many
	// concurrent connections can be listed here.
	ExemptPaths []string `yaml:"exempt_paths"`

	// Raw string values for YAML unmarshaling
	RateWindowRaw    string `yaml:"rate_window"`
	MaxIdleRaw       string `yaml:"max_idle"`
	SweepIntervalRaw string `yaml:"sweep_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults applied when the config omits optional fields.
const (
	DefaultRateThreshold = 10
	DefaultRateWindow    = time.Minute
	DefaultMaxIdle       = time.Hour
	DefaultSweepInterval = time.Minute
	DefaultLookupTimeout = 5 * time.Second
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in zero-valued optional fields.
func (c *Config) applyDefaults() {
	if c.Auth.LookupTimeout == 0 {
		c.Auth.LookupTimeout = DefaultLookupTimeout
	}
	if c.Realtime.RateThreshold == 0 {
		c.Realtime.RateThreshold = DefaultRateThreshold
	}
	if c.Realtime.RateWindow == 0 {
		c.Realtime.RateWindow = DefaultRateWindow
	}
	if c.Realtime.MaxIdle == 0 {
		c.Realtime.MaxIdle = DefaultMaxIdle
	}
	if c.Realtime.SweepInterval == 0 {
		c.Realtime.SweepInterval = DefaultSweepInterval
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if c.Realtime.RateThreshold < 0 {
		return fmt.Errorf("realtime.rate_threshold must not be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.LookupTimeoutRaw != "" {
		cfg.Auth.LookupTimeout, err = time.ParseDuration(cfg.Auth.LookupTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing lookup_timeout %q: %w", cfg.Auth.LookupTimeoutRaw, err)
		}
	}

	if cfg.Realtime.RateWindowRaw != "" {
		cfg.Realtime.RateWindow, err = time.ParseDuration(cfg.Realtime.RateWindowRaw)
		if err != nil {
			return fmt.Errorf("parsing rate_window %q: %w", cfg.Realtime.RateWindowRaw, err)
		}
	}

	if cfg.Realtime.MaxIdleRaw != "" {
		cfg.Realtime.MaxIdle, err = time.ParseDuration(cfg.Realtime.MaxIdleRaw)
		if err != nil {
			return fmt.Errorf("parsing max_idle %q: %w", cfg.Realtime.MaxIdleRaw, err)
		}
	}

	if cfg.Realtime.SweepIntervalRaw != "" {
		cfg.Realtime.SweepInterval, err = time.ParseDuration(cfg.Realtime.SweepIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing sweep_interval %q: %w", cfg.Realtime.SweepIntervalRaw, err)
		}
	}

	return nil
}
