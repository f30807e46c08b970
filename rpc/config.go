package rpc

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/rpcmesh/observe"
	"github.com/jonwraymond/rpcmesh/resilience"
	"github.com/jonwraymond/rpcmesh/secret"
)

// ErrInvalidConfig classifies endpoint configuration failures. All
// validation errors wrap this sentinel.
var ErrInvalidConfig = errors.New("rpc: invalid configuration")

// HealthCheckPath is the reserved method name served by the endpoint
// itself. It always bypasses authentication.
const HealthCheckPath = "health-check"

// MaxRequestSize is the largest accepted request body, in bytes.
const MaxRequestSize = 1 << 20 // 1 MiB

// CORSOptions configures the CORS response headers.
type CORSOptions struct {
	// Origin is the allowed origin. Default: "*"
	Origin string

	// Methods is the allowed methods header value. Default: "POST, GET, OPTIONS"
	Methods string

	// Headers is the allowed request headers value.
	// Default: "Content-Type, Authorization"
	Headers string
}

// TimeoutPolicy bounds outbound attempts.
type TimeoutPolicy struct {
	// RequestTimeout bounds one full attempt (send + receive).
	// Default: 30s
	RequestTimeout time.Duration

	// ConnectionTimeout bounds session establishment.
	// Default: 5s
	ConnectionTimeout time.Duration

	// Disabled turns both bounds off.
	Disabled bool
}

// CircuitBreakerPolicy configures the per-target breakers.
type CircuitBreakerPolicy struct {
	// Disabled turns circuit breaking off.
	Disabled bool

	// FailureThreshold is consecutive failures before opening.
	// Default: 5
	FailureThreshold int

	// RecoveryTimeout is the open-state cool-off.
	// Default: 60s
	RecoveryTimeout time.Duration

	// SuccessThreshold is consecutive half-open successes before closing.
	// Default: 3
	SuccessThreshold int
}

// RetryPolicy configures the outbound retry loop.
//
// A zero-valued policy takes full defaults. In a partially set policy
// MaxRetries is taken literally, so MaxRetries: 0 disables retries.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// InitialDelay is the delay before the first retry. Default: 500ms
	InitialDelay time.Duration

	// MaxDelay caps the backoff. Default: 10s
	MaxDelay time.Duration

	// BackoffFactor multiplies the delay each attempt. Default: 2
	BackoffFactor float64

	// RetryOn lists upstream HTTP statuses that retry.
	// Default: 500, 502, 503, 504
	RetryOn []int

	// RetryOnCodes lists transport/timeout codes that retry.
	// Default: the transport error classes plus TIMEOUT.
	RetryOnCodes []Code

	// DisableJitter turns off the +/-25% delay randomization.
	DisableJitter bool
}

// ResilienceConfig groups the outbound pipeline policies.
type ResilienceConfig struct {
	Timeout        TimeoutPolicy
	CircuitBreaker CircuitBreakerPolicy
	Retry          RetryPolicy
}

// Config is the endpoint constructor option set. Every option is
// validated eagerly by New; invalid shapes fail with an error wrapping
// ErrInvalidConfig. String values may reference environment variables
// with ${VAR} syntax.
type Config struct {
	// Port is the listen port. Default: 3000
	Port int

	// Host is the listen host. Default: "localhost"
	Host string

	// StartServer binds the listener at construction. Supplying any
	// Methods implies it.
	StartServer bool

	// TLSCertFile/TLSKeyFile switch the listener from h2c to TLS HTTP/2.
	TLSCertFile string
	TLSKeyFile  string

	// CORS enables the CORS headers per CORSOptions.
	CORS        bool
	CORSOptions CORSOptions

	// JWTAuth requires a bearer JWT (RS256) on non-excluded methods.
	JWTAuth bool

	// JWTPublicKey is the PEM-encoded RSA public key. Mutually
	// exclusive with JWKSURL.
	JWTPublicKey string

	// JWKSURL fetches verification keys from a JWKS endpoint instead of
	// a static key.
	JWKSURL string

	// JWTIssuer/JWTAudience pin the iss/aud claims when non-empty.
	JWTIssuer   string
	JWTAudience string

	// ExcludedPaths lists method names that bypass authentication.
	// HealthCheckPath is always included.
	ExcludedPaths []string

	// Resilience configures the outbound pipeline.
	Resilience ResilienceConfig

	// RetryOptions is the legacy retry alias; its set fields override
	// Resilience.Retry.
	RetryOptions *RetryPolicy

	// Methods is the initial method registration map.
	Methods map[string]Handler

	// MethodDefaults is the bulkhead config applied to methods without
	// a per-method override.
	MethodDefaults resilience.BulkheadConfig

	// DisableBulkheads turns per-method admission control off.
	DisableBulkheads bool

	// HandleSignals installs SIGINT/SIGTERM graceful-stop handlers at
	// Start. Suppressed when the RPCMESH_TEST environment variable is set.
	HandleSignals bool

	// ShutdownTimeout bounds graceful Stop before force-close.
	// Default: 5s
	ShutdownTimeout time.Duration

	// Logger receives endpoint logs. Default: JSON logger at info.
	Logger observe.Logger

	// Observer supplies the meter and tracer. Optional.
	Observer observe.Observer
}

// defaultRetryPolicy returns the fully populated default policy.
func defaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2,
		RetryOn:       []int{500, 502, 503, 504},
		RetryOnCodes:  append([]Code(nil), defaultRetryableCodes...),
	}
}

func retryPolicyIsZero(p RetryPolicy) bool {
	return p.MaxRetries == 0 && p.InitialDelay == 0 && p.MaxDelay == 0 &&
		p.BackoffFactor == 0 && p.RetryOn == nil && p.RetryOnCodes == nil &&
		!p.DisableJitter
}

// fillRetryPolicy completes the unset fields of p from the defaults.
// MaxRetries is taken literally.
func fillRetryPolicy(p RetryPolicy) RetryPolicy {
	def := defaultRetryPolicy()
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.BackoffFactor <= 0 {
		p.BackoffFactor = def.BackoffFactor
	}
	if p.RetryOn == nil {
		p.RetryOn = def.RetryOn
	}
	if p.RetryOnCodes == nil {
		p.RetryOnCodes = def.RetryOnCodes
	}
	return p
}

// overlayRetryPolicy applies the set fields of over onto base.
// MaxRetries is always taken from over.
func overlayRetryPolicy(base RetryPolicy, over *RetryPolicy) RetryPolicy {
	if over == nil {
		return base
	}
	out := base
	out.MaxRetries = over.MaxRetries
	if over.InitialDelay > 0 {
		out.InitialDelay = over.InitialDelay
	}
	if over.MaxDelay > 0 {
		out.MaxDelay = over.MaxDelay
	}
	if over.BackoffFactor > 0 {
		out.BackoffFactor = over.BackoffFactor
	}
	if over.RetryOn != nil {
		out.RetryOn = over.RetryOn
	}
	if over.RetryOnCodes != nil {
		out.RetryOnCodes = over.RetryOnCodes
	}
	if over.DisableJitter {
		out.DisableJitter = true
	}
	return out
}

// applyDefaults normalizes the config in place, expanding ${ENV}
// references in string options.
func (c *Config) applyDefaults() error {
	var err error
	expand := func(s string) string {
		if err != nil || s == "" {
			return s
		}
		var out string
		if out, err = secret.ExpandEnvStrict(s); err != nil {
			return s
		}
		return out
	}

	c.Host = expand(c.Host)
	c.JWTPublicKey = expand(c.JWTPublicKey)
	c.JWKSURL = expand(c.JWKSURL)
	c.JWTIssuer = expand(c.JWTIssuer)
	c.JWTAudience = expand(c.JWTAudience)
	c.CORSOptions.Origin = expand(c.CORSOptions.Origin)
	c.CORSOptions.Methods = expand(c.CORSOptions.Methods)
	c.CORSOptions.Headers = expand(c.CORSOptions.Headers)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.Port == 0 {
		c.Port = 3000
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}

	if c.CORSOptions.Origin == "" {
		c.CORSOptions.Origin = "*"
	}
	if c.CORSOptions.Methods == "" {
		c.CORSOptions.Methods = "POST, GET, OPTIONS"
	}
	if c.CORSOptions.Headers == "" {
		c.CORSOptions.Headers = "Content-Type, Authorization"
	}

	if c.Resilience.Timeout.RequestTimeout <= 0 {
		c.Resilience.Timeout.RequestTimeout = 30 * time.Second
	}
	if c.Resilience.Timeout.ConnectionTimeout <= 0 {
		c.Resilience.Timeout.ConnectionTimeout = 5 * time.Second
	}

	if c.Resilience.CircuitBreaker.FailureThreshold <= 0 {
		c.Resilience.CircuitBreaker.FailureThreshold = 5
	}
	if c.Resilience.CircuitBreaker.RecoveryTimeout <= 0 {
		c.Resilience.CircuitBreaker.RecoveryTimeout = 60 * time.Second
	}
	if c.Resilience.CircuitBreaker.SuccessThreshold <= 0 {
		c.Resilience.CircuitBreaker.SuccessThreshold = 3
	}

	if retryPolicyIsZero(c.Resilience.Retry) {
		c.Resilience.Retry = defaultRetryPolicy()
	} else {
		c.Resilience.Retry = fillRetryPolicy(c.Resilience.Retry)
	}
	// Legacy alias wins over the structured section.
	c.Resilience.Retry = overlayRetryPolicy(c.Resilience.Retry, c.RetryOptions)

	if !containsPath(c.ExcludedPaths, HealthCheckPath) {
		c.ExcludedPaths = append(c.ExcludedPaths, HealthCheckPath)
	}

	return nil
}

// Validate checks the normalized config. Every violation wraps
// ErrInvalidConfig.
func (c *Config) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if c.Port < 1 || c.Port > 65535 {
		return fail("port %d out of range 1..65535", c.Port)
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fail("TLS requires both cert and key files")
	}

	if c.JWTAuth {
		if c.JWTPublicKey == "" && c.JWKSURL == "" {
			return fail("jwtAuth requires jwtPublicKey or jwksURL")
		}
		if c.JWTPublicKey != "" && c.JWKSURL != "" {
			return fail("jwtPublicKey and jwksURL are mutually exclusive")
		}
	}

	if c.Resilience.Retry.MaxRetries < 0 {
		return fail("maxRetries must be >= 0")
	}
	if c.Resilience.Retry.BackoffFactor < 1 {
		return fail("backoffFactor must be >= 1")
	}
	if c.Resilience.Retry.InitialDelay > c.Resilience.Retry.MaxDelay {
		return fail("initialDelay exceeds maxDelay")
	}
	for _, s := range c.Resilience.Retry.RetryOn {
		if s < 100 || s > 599 {
			return fail("retryOn status %d is not a valid HTTP status", s)
		}
	}

	if c.MethodDefaults.MaxConcurrent < 0 || c.MethodDefaults.MaxQueue < 0 {
		return fail("bulkhead limits must be positive")
	}

	for name := range c.Methods {
		if err := validateMethodName(name); err != nil {
			return fail("method %q: %v", name, err)
		}
	}

	return nil
}

func containsPath(paths []string, target string) bool {
	for _, p := range paths {
		if p == target {
			return true
		}
	}
	return false
}
