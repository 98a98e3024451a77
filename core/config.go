package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the adapter binding layer.
// It supports three-layer configuration priority:
//  1. Default values (lowest priority)
//  2. Environment variables (medium priority)
//  3. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := core.NewConfig(
//	    core.WithName("adapterd"),
//	    core.WithHealthInterval(30*time.Second),
//	)
type Config struct {
	// Name identifies the service in logs and metrics.
	Name string `yaml:"name"`

	// Health configures the health check monitor.
	Health HealthConfig `yaml:"health"`

	// Resilience configures circuit breaking, retries and timeouts.
	Resilience ResilienceConfig `yaml:"resilience"`

	// Redis configures the optional Redis alert sink.
	Redis RedisConfig `yaml:"redis"`

	// HTTP configures the ops HTTP surface.
	HTTP HTTPConfig `yaml:"http"`

	// Logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Development configuration.
	Development DevelopmentConfig `yaml:"development"`

	// Adapters carries per-adapter configuration sections, keyed by
	// adapter id. Consumed through the ConfigSource built from this Config.
	Adapters map[string]*AdapterConfig `yaml:"adapters"`
}

// HealthConfig contains health monitor configuration.
type HealthConfig struct {
	Interval     time.Duration `yaml:"interval"`
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// ResilienceConfig contains fault tolerance configuration.
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Retry          RetryConfig          `yaml:"retry"`
	Timeout        TimeoutConfig        `yaml:"timeout"`
}

// CircuitBreakerConfig defines circuit breaker settings. The breaker opens
// after Threshold consecutive failures and probes recovery after
// ResetTimeout.
type CircuitBreakerConfig struct {
	Threshold    int           `yaml:"threshold"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// RetryConfig defines retry settings with exponential backoff.
type RetryConfig struct {
	MaxAttempts   int           `yaml:"max_attempts"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

// TimeoutConfig defines timeout bounds for invocations.
type TimeoutConfig struct {
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	MaxTimeout     time.Duration `yaml:"max_timeout"`
}

// RedisConfig configures the Redis pub/sub alert sink. Alerting through
// Redis is optional; when URL is empty alerts go to the logger only.
type RedisConfig struct {
	URL          string `yaml:"url"`
	Namespace    string `yaml:"namespace"`
	AlertChannel string `yaml:"alert_channel"`
}

// HTTPConfig contains ops HTTP server configuration.
type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig contains logging configuration.
// Supports structured (JSON) and human-readable (text) formats.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	TimeFormat string `yaml:"time_format"`
}

// DevelopmentConfig contains settings for local development and testing.
type DevelopmentConfig struct {
	Enabled      bool `yaml:"enabled"`
	DebugLogging bool `yaml:"debug_logging"`
	PrettyLogs   bool `yaml:"pretty_logs"`
}

// Option is a functional option for configuring the layer.
// Options are applied in order and can return an error if invalid.
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name: "adapterkit",
		Health: HealthConfig{
			Interval:     60 * time.Second,
			CheckTimeout: 10 * time.Second,
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Threshold:    5,
				ResetTimeout: 30 * time.Second,
			},
			Retry: RetryConfig{
				MaxAttempts:   3,
				InitialDelay:  100 * time.Millisecond,
				MaxDelay:      5 * time.Second,
				BackoffFactor: 2.0,
			},
			Timeout: TimeoutConfig{
				DefaultTimeout: 30 * time.Second,
				MaxTimeout:     5 * time.Minute,
			},
		},
		Redis: RedisConfig{
			Namespace:    "adapterkit",
			AlertChannel: "adapterkit:alerts",
		},
		HTTP: HTTPConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			TimeFormat: time.RFC3339Nano,
		},
	}
}

// NewConfig builds a configuration by layering environment variables and
// functional options over the defaults.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()
	cfg.applyEnvironment()

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvironment overlays ADAPTERKIT_* environment variables.
func (c *Config) applyEnvironment() {
	if v := os.Getenv("ADAPTERKIT_NAME"); v != "" {
		c.Name = v
	}
	if v := os.Getenv("ADAPTERKIT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ADAPTERKIT_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("ADAPTERKIT_REDIS_URL"); v != "" {
		c.Redis.URL = v
	} else if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("ADAPTERKIT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HTTP.Port = port
		}
	}
	if v := os.Getenv("ADAPTERKIT_HEALTH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Health.Interval = d
		}
	}
	if v := os.Getenv("ADAPTERKIT_CB_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Resilience.CircuitBreaker.Threshold = n
		}
	}
	if v := os.Getenv("ADAPTERKIT_CB_RESET_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Resilience.CircuitBreaker.ResetTimeout = d
		}
	}
	if v := os.Getenv("ADAPTERKIT_DEV_MODE"); v == "true" || v == "1" {
		c.Development.Enabled = true
	}
	if v := os.Getenv("ADAPTERKIT_DEBUG"); v == "true" || v == "1" {
		c.Development.DebugLogging = true
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("service name is required: %w", ErrMissingConfiguration)
	}
	if c.Health.Interval <= 0 {
		return fmt.Errorf("health interval must be positive, got %v: %w", c.Health.Interval, ErrInvalidConfiguration)
	}
	if c.Health.CheckTimeout <= 0 {
		return fmt.Errorf("health check timeout must be positive, got %v: %w", c.Health.CheckTimeout, ErrInvalidConfiguration)
	}
	if c.Resilience.CircuitBreaker.Threshold < 1 {
		return fmt.Errorf("circuit breaker threshold must be at least 1, got %d: %w", c.Resilience.CircuitBreaker.Threshold, ErrInvalidConfiguration)
	}
	if c.Resilience.CircuitBreaker.ResetTimeout <= 0 {
		return fmt.Errorf("circuit breaker reset timeout must be positive, got %v: %w", c.Resilience.CircuitBreaker.ResetTimeout, ErrInvalidConfiguration)
	}
	if c.Resilience.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1, got %d: %w", c.Resilience.Retry.MaxAttempts, ErrInvalidConfiguration)
	}
	if c.Resilience.Timeout.DefaultTimeout > c.Resilience.Timeout.MaxTimeout {
		return fmt.Errorf("default timeout %v exceeds max timeout %v: %w", c.Resilience.Timeout.DefaultTimeout, c.Resilience.Timeout.MaxTimeout, ErrInvalidConfiguration)
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid port %d: %w", c.HTTP.Port, ErrInvalidConfiguration)
	}
	return nil
}

// LoadConfigFile reads a YAML configuration file over cfg in place.
func (c *Config) LoadConfigFile(path string) error {
	ext := filepath.Ext(path)
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %q: %w", ext, ErrInvalidConfiguration)
	}

	data, err := os.ReadFile(path) // #nosec G304 - path is operator supplied
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return nil
}

// WithName sets the service name.
func WithName(name string) Option {
	return func(c *Config) error {
		if name == "" {
			return fmt.Errorf("name cannot be empty: %w", ErrInvalidConfiguration)
		}
		c.Name = name
		return nil
	}
}

// WithConfigFile loads a YAML configuration file. Values from the file
// override environment variables but not later options.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		return c.LoadConfigFile(path)
	}
}

// WithLogLevel sets the logging level (debug, info, warn, error).
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithHealthInterval sets the health poll interval.
func WithHealthInterval(interval time.Duration) Option {
	return func(c *Config) error {
		if interval <= 0 {
			return fmt.Errorf("health interval must be positive: %w", ErrInvalidConfiguration)
		}
		c.Health.Interval = interval
		return nil
	}
}

// WithCircuitBreaker sets the breaker threshold and reset timeout.
func WithCircuitBreaker(threshold int, resetTimeout time.Duration) Option {
	return func(c *Config) error {
		if threshold < 1 {
			return fmt.Errorf("threshold must be at least 1: %w", ErrInvalidConfiguration)
		}
		if resetTimeout <= 0 {
			return fmt.Errorf("reset timeout must be positive: %w", ErrInvalidConfiguration)
		}
		c.Resilience.CircuitBreaker.Threshold = threshold
		c.Resilience.CircuitBreaker.ResetTimeout = resetTimeout
		return nil
	}
}

// WithRedisURL enables the Redis alert sink.
func WithRedisURL(url string) Option {
	return func(c *Config) error {
		c.Redis.URL = url
		return nil
	}
}

// WithPort sets the ops HTTP port.
func WithPort(port int) Option {
	return func(c *Config) error {
		if port < 0 || port > 65535 {
			return fmt.Errorf("invalid port %d: %w", port, ErrInvalidConfiguration)
		}
		c.HTTP.Port = port
		return nil
	}
}
