package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/slidesmith/slidesmith/internal/resilience"
)

const (
	EnvEngineWorkers          = "SLIDESMITH_ENGINE_WORKERS"
	EnvEngineNodeTimeout      = "SLIDESMITH_ENGINE_NODE_TIMEOUT"
	EnvRetryMaxAttempts       = "SLIDESMITH_RETRY_MAX_ATTEMPTS"
	EnvRetryInitialDelay      = "SLIDESMITH_RETRY_INITIAL_DELAY"
	EnvRetryMultiplier        = "SLIDESMITH_RETRY_MULTIPLIER"
	EnvRetryMaxDelay          = "SLIDESMITH_RETRY_MAX_DELAY"
	EnvBreakerThreshold       = "SLIDESMITH_BREAKER_FAILURE_THRESHOLD"
	EnvBreakerRecoveryTimeout = "SLIDESMITH_BREAKER_RECOVERY_TIMEOUT"
)

// EngineConfig holds workflow engine and resilience tuning.
type EngineConfig struct {
	Workers     int    `toml:"workers"`
	NodeTimeout string `toml:"node_timeout"`

	Retry   RetryConfig   `toml:"retry"`
	Breaker BreakerConfig `toml:"breaker"`
}

// RetryConfig holds the retry policy applied around external calls.
type RetryConfig struct {
	MaxAttempts  int     `toml:"max_attempts"`
	InitialDelay string  `toml:"initial_delay"`
	Multiplier   float64 `toml:"multiplier"`
	MaxDelay     string  `toml:"max_delay"`
}

// BreakerConfig holds circuit breaker thresholds.
type BreakerConfig struct {
	FailureThreshold int    `toml:"failure_threshold"`
	RecoveryTimeout  string `toml:"recovery_timeout"`
}

// NodeTimeoutDuration returns NodeTimeout as a time.Duration.
func (c *EngineConfig) NodeTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.NodeTimeout)
	return d
}

// RetryPolicy converts the retry section to the resilience policy,
// keeping the default retryable kind set.
func (c *EngineConfig) RetryPolicy() resilience.RetryPolicy {
	policy := resilience.DefaultRetryPolicy()
	policy.MaxAttempts = c.Retry.MaxAttempts
	policy.Multiplier = c.Retry.Multiplier

	if d, err := time.ParseDuration(c.Retry.InitialDelay); err == nil {
		policy.InitialDelay = d
	}
	if d, err := time.ParseDuration(c.Retry.MaxDelay); err == nil {
		policy.MaxDelay = d
	}

	return policy
}

// BreakerSettings converts the breaker section to the resilience config.
func (c *EngineConfig) BreakerSettings() resilience.BreakerConfig {
	cfg := resilience.DefaultBreakerConfig()
	cfg.FailureThreshold = c.Breaker.FailureThreshold

	if d, err := time.ParseDuration(c.Breaker.RecoveryTimeout); err == nil {
		cfg.RecoveryTimeout = d
	}

	return cfg
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *EngineConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *EngineConfig) Merge(overlay *EngineConfig) {
	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
	if overlay.NodeTimeout != "" {
		c.NodeTimeout = overlay.NodeTimeout
	}
	if overlay.Retry.MaxAttempts != 0 {
		c.Retry.MaxAttempts = overlay.Retry.MaxAttempts
	}
	if overlay.Retry.InitialDelay != "" {
		c.Retry.InitialDelay = overlay.Retry.InitialDelay
	}
	if overlay.Retry.Multiplier != 0 {
		c.Retry.Multiplier = overlay.Retry.Multiplier
	}
	if overlay.Retry.MaxDelay != "" {
		c.Retry.MaxDelay = overlay.Retry.MaxDelay
	}
	if overlay.Breaker.FailureThreshold != 0 {
		c.Breaker.FailureThreshold = overlay.Breaker.FailureThreshold
	}
	if overlay.Breaker.RecoveryTimeout != "" {
		c.Breaker.RecoveryTimeout = overlay.Breaker.RecoveryTimeout
	}
}

func (c *EngineConfig) loadDefaults() {
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.NodeTimeout == "" {
		c.NodeTimeout = "2m"
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialDelay == "" {
		c.Retry.InitialDelay = "1s"
	}
	if c.Retry.Multiplier == 0 {
		c.Retry.Multiplier = 2.0
	}
	if c.Retry.MaxDelay == "" {
		c.Retry.MaxDelay = "1m"
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 5
	}
	if c.Breaker.RecoveryTimeout == "" {
		c.Breaker.RecoveryTimeout = "60s"
	}
}

func (c *EngineConfig) loadEnv() {
	if v := os.Getenv(EnvEngineWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Workers = n
		}
	}
	if v := os.Getenv(EnvEngineNodeTimeout); v != "" {
		c.NodeTimeout = v
	}
	if v := os.Getenv(EnvRetryMaxAttempts); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Retry.MaxAttempts = n
		}
	}
	if v := os.Getenv(EnvRetryInitialDelay); v != "" {
		c.Retry.InitialDelay = v
	}
	if v := os.Getenv(EnvRetryMultiplier); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 1 {
			c.Retry.Multiplier = f
		}
	}
	if v := os.Getenv(EnvRetryMaxDelay); v != "" {
		c.Retry.MaxDelay = v
	}
	if v := os.Getenv(EnvBreakerThreshold); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Breaker.FailureThreshold = n
		}
	}
	if v := os.Getenv(EnvBreakerRecoveryTimeout); v != "" {
		c.Breaker.RecoveryTimeout = v
	}
}

func (c *EngineConfig) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive")
	}
	if _, err := time.ParseDuration(c.NodeTimeout); err != nil {
		return fmt.Errorf("invalid node_timeout: %w", err)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be positive")
	}
	if _, err := time.ParseDuration(c.Retry.InitialDelay); err != nil {
		return fmt.Errorf("invalid retry initial_delay: %w", err)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry multiplier must be at least 1")
	}
	if _, err := time.ParseDuration(c.Retry.MaxDelay); err != nil {
		return fmt.Errorf("invalid retry max_delay: %w", err)
	}
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("breaker failure_threshold must be positive")
	}
	if _, err := time.ParseDuration(c.Breaker.RecoveryTimeout); err != nil {
		return fmt.Errorf("invalid breaker recovery_timeout: %w", err)
	}
	return nil
}
