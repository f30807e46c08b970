package resilience

import "sync"

// Registry holds one circuit breaker per downstream target, created on
// first use. All breakers share the same configuration; the state machine
// of each entry is independent.
type Registry struct {
	config CircuitBreakerConfig

	// OnStateChange receives per-target transitions. It supplements (not
	// replaces) any callback in the shared config.
	onStateChange func(target string, from, to State)

	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates a breaker registry with the given shared config.
func NewRegistry(config CircuitBreakerConfig, onStateChange func(target string, from, to State)) *Registry {
	return &Registry{
		config:        config,
		onStateChange: onStateChange,
		breakers:      make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for target, creating it if necessary.
func (r *Registry) Get(target string) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[target]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[target]; ok {
		return cb
	}

	cfg := r.config
	if r.onStateChange != nil {
		base := cfg.OnStateChange
		cfg.OnStateChange = func(from, to State) {
			if base != nil {
				base(from, to)
			}
			r.onStateChange(target, from, to)
		}
	}
	cb = NewCircuitBreaker(cfg)
	r.breakers[target] = cb
	return cb
}

// Reset forces the breaker for target to closed with zeroed counters.
// Resetting an unknown target creates its entry so subsequent metrics
// observe a closed breaker.
func (r *Registry) Reset(target string) {
	r.Get(target).Reset()
}

// ResetAll resets every known breaker.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	r.mu.RUnlock()

	for _, cb := range breakers {
		cb.Reset()
	}
}

// Snapshot returns per-target breaker metrics.
func (r *Registry) Snapshot() map[string]CircuitBreakerMetrics {
	r.mu.RLock()
	breakers := make(map[string]*CircuitBreaker, len(r.breakers))
	for target, cb := range r.breakers {
		breakers[target] = cb
	}
	r.mu.RUnlock()

	out := make(map[string]CircuitBreakerMetrics, len(breakers))
	for target, cb := range breakers {
		out[target] = cb.Metrics()
	}
	return out
}
