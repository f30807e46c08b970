package rpc

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}
	if err := cfg.applyDefaults(); err != nil {
		t.Fatalf("applyDefaults = %v", err)
	}

	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.Host != "localhost" {
		t.Errorf("Host = %q, want localhost", cfg.Host)
	}
	if cfg.Resilience.Timeout.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.Resilience.Timeout.RequestTimeout)
	}
	if cfg.Resilience.Timeout.ConnectionTimeout != 5*time.Second {
		t.Errorf("ConnectionTimeout = %v, want 5s", cfg.Resilience.Timeout.ConnectionTimeout)
	}
	if cfg.Resilience.CircuitBreaker.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cfg.Resilience.CircuitBreaker.FailureThreshold)
	}
	if cfg.Resilience.CircuitBreaker.RecoveryTimeout != 60*time.Second {
		t.Errorf("RecoveryTimeout = %v, want 60s", cfg.Resilience.CircuitBreaker.RecoveryTimeout)
	}
	if cfg.Resilience.CircuitBreaker.SuccessThreshold != 3 {
		t.Errorf("SuccessThreshold = %d, want 3", cfg.Resilience.CircuitBreaker.SuccessThreshold)
	}

	retry := cfg.Resilience.Retry
	if retry.MaxRetries != 3 || retry.InitialDelay != 500*time.Millisecond ||
		retry.MaxDelay != 10*time.Second || retry.BackoffFactor != 2 {
		t.Errorf("retry defaults = %+v", retry)
	}
	if len(retry.RetryOn) != 4 {
		t.Errorf("RetryOn = %v, want 500/502/503/504", retry.RetryOn)
	}

	if !containsPath(cfg.ExcludedPaths, HealthCheckPath) {
		t.Error("ExcludedPaths missing health-check")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate(defaults) = %v", err)
	}
}

func TestConfig_HealthCheckAlwaysExcluded(t *testing.T) {
	cfg := Config{ExcludedPaths: []string{"login"}}
	if err := cfg.applyDefaults(); err != nil {
		t.Fatalf("applyDefaults = %v", err)
	}
	if !containsPath(cfg.ExcludedPaths, "login") || !containsPath(cfg.ExcludedPaths, HealthCheckPath) {
		t.Errorf("ExcludedPaths = %v", cfg.ExcludedPaths)
	}
}

func TestConfig_PartialRetryKeepsLiteralMaxRetries(t *testing.T) {
	cfg := Config{Resilience: ResilienceConfig{Retry: RetryPolicy{MaxRetries: 0, InitialDelay: 50 * time.Millisecond}}}
	if err := cfg.applyDefaults(); err != nil {
		t.Fatalf("applyDefaults = %v", err)
	}

	if cfg.Resilience.Retry.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want literal 0", cfg.Resilience.Retry.MaxRetries)
	}
	if cfg.Resilience.Retry.MaxDelay != 10*time.Second {
		t.Errorf("MaxDelay = %v, want default filled", cfg.Resilience.Retry.MaxDelay)
	}
}

func TestConfig_LegacyRetryOptionsWin(t *testing.T) {
	cfg := Config{
		Resilience: ResilienceConfig{Retry: RetryPolicy{MaxRetries: 5, InitialDelay: time.Second}},
		RetryOptions: &RetryPolicy{
			MaxRetries:   1,
			InitialDelay: 100 * time.Millisecond,
		},
	}
	if err := cfg.applyDefaults(); err != nil {
		t.Fatalf("applyDefaults = %v", err)
	}

	if cfg.Resilience.Retry.MaxRetries != 1 {
		t.Errorf("MaxRetries = %d, want legacy 1", cfg.Resilience.Retry.MaxRetries)
	}
	if cfg.Resilience.Retry.InitialDelay != 100*time.Millisecond {
		t.Errorf("InitialDelay = %v, want legacy 100ms", cfg.Resilience.Retry.InitialDelay)
	}
	if cfg.Resilience.Retry.MaxDelay != 10*time.Second {
		t.Errorf("MaxDelay = %v, want default preserved", cfg.Resilience.Retry.MaxDelay)
	}
}

func TestConfig_EnvExpansion(t *testing.T) {
	t.Setenv("RPCMESH_CFG_HOST", "0.0.0.0")

	cfg := Config{Host: "${RPCMESH_CFG_HOST}"}
	if err := cfg.applyDefaults(); err != nil {
		t.Fatalf("applyDefaults = %v", err)
	}
	if cfg.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want expanded", cfg.Host)
	}
}

func TestConfig_EnvExpansionMissingVariable(t *testing.T) {
	cfg := Config{Host: "${RPCMESH_CFG_NOPE}"}
	err := cfg.applyDefaults()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("applyDefaults = %v, want ErrInvalidConfig", err)
	}
}

func TestConfig_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"port too large", Config{Port: 70000}},
		{"jwt without key", Config{JWTAuth: true}},
		{"jwt with both key sources", Config{JWTAuth: true, JWTPublicKey: "pem", JWKSURL: "http://keys"}},
		{"tls missing key file", Config{TLSCertFile: "cert.pem"}},
		{"backoff factor below one", Config{Resilience: ResilienceConfig{Retry: RetryPolicy{MaxRetries: 1, BackoffFactor: 0.5}}}},
		{"initial above max delay", Config{Resilience: ResilienceConfig{Retry: RetryPolicy{MaxRetries: 1, InitialDelay: time.Minute, MaxDelay: time.Second}}}},
		{"retryOn bogus status", Config{Resilience: ResilienceConfig{Retry: RetryPolicy{MaxRetries: 1, RetryOn: []int{42}}}}},
		{"method name with slash", Config{Methods: map[string]Handler{"a/b": func(ctx context.Context, p map[string]any) (any, error) { return nil, nil }}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			if err := cfg.applyDefaults(); err != nil {
				if errors.Is(err, ErrInvalidConfig) {
					return
				}
				t.Fatalf("applyDefaults = %v", err)
			}
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
