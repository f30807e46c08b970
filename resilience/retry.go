package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt, so
	// an operation runs at most MaxRetries+1 times.
	// Default: 3, applied only when negative; zero means no retries.
	MaxRetries int

	// InitialDelay is the delay before the first retry.
	// Default: 500ms
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries.
	// Default: 10s
	MaxDelay time.Duration

	// BackoffFactor multiplies the delay after each attempt.
	// Default: 2.0
	BackoffFactor float64

	// Jitter randomizes each delay by +/-25% to avoid synchronized
	// retry storms.
	// Default: true (DisableJitter turns it off)
	DisableJitter bool

	// RetryIf determines if an error should trigger a retry.
	// Default: all non-nil errors trigger retry.
	RetryIf func(err error) bool

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry implements a bounded retry loop with exponential backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	// Apply defaults
	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 500 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 10 * time.Second
	}
	if config.BackoffFactor <= 0 {
		config.BackoffFactor = 2.0
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool { return err != nil }
	}

	return &Retry{config: config}
}

// Execute runs the operation, retrying failed attempts until success,
// a non-retryable error, exhaustion, or context cancellation. The last
// captured error is surfaced on exhaustion.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	schedule := r.schedule()

	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !r.config.RetryIf(err) {
			return err
		}
		if attempt == r.config.MaxRetries {
			break
		}

		delay, stopErr := schedule.NextBackOff()
		if stopErr != nil {
			// The schedule refused to produce another delay; surface the
			// operation's error rather than the scheduler's.
			break
		}
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt+1, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// schedule builds the backoff source for one Execute run. The
// exponential schedule with RandomizationFactor 0.25 yields delays in
// [0.75, 1.25] x min(InitialDelay*BackoffFactor^k, MaxDelay).
func (r *Retry) schedule() *backoff.ExponentialBackOff {
	randomization := 0.25
	if r.config.DisableJitter {
		randomization = 0
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     r.config.InitialDelay,
		RandomizationFactor: randomization,
		Multiplier:          r.config.BackoffFactor,
		MaxInterval:         r.config.MaxDelay,
	}
	b.Reset()
	return b
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}
