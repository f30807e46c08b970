package observe

import (
	"sync"
	"sync/atomic"
	"time"
)

// Aggregator accumulates the endpoint-level counters exposed by the
// health report. Counters are monotonic and updated lock-free; the
// running mean of response time is updated under a mutex.
type Aggregator struct {
	startedAt time.Time

	requests           atomic.Int64
	errors             atomic.Int64
	retries            atomic.Int64
	authFailures       atomic.Int64
	timeouts           atomic.Int64
	breakerTrips       atomic.Int64
	bulkheadRejections atomic.Int64

	mu      sync.Mutex
	samples int64
	meanMs  float64
}

// NewAggregator creates an aggregator; uptime counts from now.
func NewAggregator() *Aggregator {
	return &Aggregator{startedAt: time.Now()}
}

// IncRequests increments the request counter.
func (a *Aggregator) IncRequests() { a.requests.Add(1) }

// IncErrors increments the error counter.
func (a *Aggregator) IncErrors() { a.errors.Add(1) }

// IncRetries increments the retry counter.
func (a *Aggregator) IncRetries() { a.retries.Add(1) }

// IncAuthFailures increments the auth-failure counter.
func (a *Aggregator) IncAuthFailures() { a.authFailures.Add(1) }

// IncTimeouts increments the timeout counter.
func (a *Aggregator) IncTimeouts() { a.timeouts.Add(1) }

// IncBreakerTrips increments the circuit-breaker trip counter.
func (a *Aggregator) IncBreakerTrips() { a.breakerTrips.Add(1) }

// IncBulkheadRejections increments the bulkhead rejection counter.
func (a *Aggregator) IncBulkheadRejections() { a.bulkheadRejections.Add(1) }

// ObserveResponseTime folds one response time sample into the running
// mean: mean = mean*(n-1)/n + sample/n.
func (a *Aggregator) ObserveResponseTime(d time.Duration) {
	sample := float64(d) / float64(time.Millisecond)

	a.mu.Lock()
	a.samples++
	n := float64(a.samples)
	a.meanMs = a.meanMs*(n-1)/n + sample/n
	a.mu.Unlock()
}

// Uptime returns the time since construction.
func (a *Aggregator) Uptime() time.Duration {
	return time.Since(a.startedAt)
}

// Snapshot returns the current counter values. The per-target and
// per-method maps are filled in by the endpoint, which owns the
// breaker and bulkhead registries.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	meanMs := a.meanMs
	a.mu.Unlock()

	return Snapshot{
		RequestCount:        a.requests.Load(),
		ErrorCount:          a.errors.Load(),
		RetryCount:          a.retries.Load(),
		AuthFailures:        a.authFailures.Load(),
		TimeoutCount:        a.timeouts.Load(),
		CircuitBreakerTrips: a.breakerTrips.Load(),
		BulkheadRejections:  a.bulkheadRejections.Load(),
		AvgResponseTimeMs:   meanMs,
		UptimeMs:            a.Uptime().Milliseconds(),
	}
}

// Snapshot is a point-in-time view of endpoint metrics.
type Snapshot struct {
	RequestCount        int64   `json:"requestCount"`
	ErrorCount          int64   `json:"errorCount"`
	RetryCount          int64   `json:"retryCount"`
	AuthFailures        int64   `json:"authFailures"`
	TimeoutCount        int64   `json:"timeoutCount"`
	CircuitBreakerTrips int64   `json:"circuitBreakerTrips"`
	BulkheadRejections  int64   `json:"bulkheadRejections"`
	AvgResponseTimeMs   float64 `json:"avgResponseTime"`
	UptimeMs            int64   `json:"uptime"`

	// CircuitBreakers is per-target breaker state, keyed by service URL.
	CircuitBreakers map[string]CircuitSnapshot `json:"circuitBreakers,omitempty"`

	// Bulkheads is per-method bulkhead state, keyed by method name.
	Bulkheads map[string]BulkheadSnapshot `json:"bulkheads,omitempty"`
}

// CircuitSnapshot is the reported state of one circuit breaker.
type CircuitSnapshot struct {
	State       string `json:"state"`
	Failures    int    `json:"failureCount"`
	Successes   int    `json:"successCount"`
	LastFailure string `json:"lastFailureAt,omitempty"`
	NextAttempt string `json:"nextAttemptAt,omitempty"`
}

// BulkheadSnapshot is the reported state of one method bulkhead.
type BulkheadSnapshot struct {
	Active        int   `json:"active"`
	Queued        int   `json:"queued"`
	MaxConcurrent int   `json:"maxConcurrent"`
	MaxQueue      int   `json:"maxQueue"`
	Rejected      int64 `json:"rejectedTotal"`
	QueueTimeouts int64 `json:"queueTimeouts"`
}
