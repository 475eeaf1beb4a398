package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/slidesmith/slidesmith/internal/config"
)

func TestEngineFinalizeDefaults(t *testing.T) {
	cfg := config.EngineConfig{}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"workers", cfg.Workers, 4},
		{"node_timeout", cfg.NodeTimeout, "2m"},
		{"retry max_attempts", cfg.Retry.MaxAttempts, 3},
		{"retry initial_delay", cfg.Retry.InitialDelay, "1s"},
		{"retry multiplier", cfg.Retry.Multiplier, 2.0},
		{"retry max_delay", cfg.Retry.MaxDelay, "1m"},
		{"breaker failure_threshold", cfg.Breaker.FailureThreshold, 5},
		{"breaker recovery_timeout", cfg.Breaker.RecoveryTimeout, "60s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %v, want %v", tt.got, tt.expected)
			}
		})
	}
}

func TestEngineFinalizeEnvOverrides(t *testing.T) {
	t.Setenv(config.EnvEngineWorkers, "8")
	t.Setenv(config.EnvEngineNodeTimeout, "5m")
	t.Setenv(config.EnvRetryMaxAttempts, "5")
	t.Setenv(config.EnvRetryInitialDelay, "500ms")
	t.Setenv(config.EnvRetryMultiplier, "1.5")
	t.Setenv(config.EnvRetryMaxDelay, "2m")
	t.Setenv(config.EnvBreakerThreshold, "10")
	t.Setenv(config.EnvBreakerRecoveryTimeout, "30s")

	cfg := config.EngineConfig{}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"workers", cfg.Workers, 8},
		{"node_timeout", cfg.NodeTimeout, "5m"},
		{"retry max_attempts", cfg.Retry.MaxAttempts, 5},
		{"retry initial_delay", cfg.Retry.InitialDelay, "500ms"},
		{"retry multiplier", cfg.Retry.Multiplier, 1.5},
		{"retry max_delay", cfg.Retry.MaxDelay, "2m"},
		{"breaker failure_threshold", cfg.Breaker.FailureThreshold, 10},
		{"breaker recovery_timeout", cfg.Breaker.RecoveryTimeout, "30s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %v, want %v", tt.got, tt.expected)
			}
		})
	}
}

func TestEngineFinalizeValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.EngineConfig)
		wantErr string
	}{
		{
			name:    "invalid node_timeout",
			mutate:  func(c *config.EngineConfig) { c.NodeTimeout = "bad" },
			wantErr: "invalid node_timeout",
		},
		{
			name:    "invalid retry initial_delay",
			mutate:  func(c *config.EngineConfig) { c.Retry.InitialDelay = "bad" },
			wantErr: "invalid retry initial_delay",
		},
		{
			name:    "multiplier below one",
			mutate:  func(c *config.EngineConfig) { c.Retry.Multiplier = 0.5 },
			wantErr: "multiplier must be at least 1",
		},
		{
			name:    "invalid breaker recovery_timeout",
			mutate:  func(c *config.EngineConfig) { c.Breaker.RecoveryTimeout = "bad" },
			wantErr: "invalid breaker recovery_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.EngineConfig{}
			tt.mutate(&cfg)

			err := cfg.Finalize()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestEngineMerge(t *testing.T) {
	base := config.EngineConfig{Workers: 4, NodeTimeout: "2m"}
	base.Retry.MaxAttempts = 3

	overlay := config.EngineConfig{Workers: 16}
	overlay.Retry.InitialDelay = "250ms"
	base.Merge(&overlay)

	if base.Workers != 16 {
		t.Errorf("workers: got %d, want 16", base.Workers)
	}
	if base.NodeTimeout != "2m" {
		t.Errorf("node_timeout should remain 2m, got %s", base.NodeTimeout)
	}
	if base.Retry.MaxAttempts != 3 {
		t.Errorf("retry max_attempts should remain 3, got %d", base.Retry.MaxAttempts)
	}
	if base.Retry.InitialDelay != "250ms" {
		t.Errorf("retry initial_delay: got %s, want 250ms", base.Retry.InitialDelay)
	}
}

func TestEngineResilienceConversion(t *testing.T) {
	cfg := config.EngineConfig{}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	policy := cfg.RetryPolicy()
	if policy.MaxAttempts != 3 || policy.InitialDelay != time.Second || policy.MaxDelay != time.Minute {
		t.Errorf("retry policy = %+v, want defaults 3/1s/1m", policy)
	}
	if len(policy.RetryableKinds) != 0 {
		t.Error("retry policy should defer to the fault classifier's retryable class")
	}

	breaker := cfg.BreakerSettings()
	if breaker.FailureThreshold != 5 || breaker.RecoveryTimeout != time.Minute {
		t.Errorf("breaker settings = %+v, want defaults 5/60s", breaker)
	}

	if cfg.NodeTimeoutDuration() != 2*time.Minute {
		t.Errorf("node timeout = %v, want 2m", cfg.NodeTimeoutDuration())
	}
}
