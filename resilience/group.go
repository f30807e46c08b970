package resilience

import "sync"

// Group holds one bulkhead per method name. Methods not explicitly
// configured get the group's default config on first use.
type Group struct {
	defaults BulkheadConfig

	mu       sync.RWMutex
	buckets  map[string]*Bulkhead
	configs  map[string]BulkheadConfig
	disabled bool
}

// NewGroup creates a bulkhead group with the given per-method defaults.
func NewGroup(defaults BulkheadConfig) *Group {
	return &Group{
		defaults: defaults.withDefaults(),
		buckets:  make(map[string]*Bulkhead),
		configs:  make(map[string]BulkheadConfig),
	}
}

// Disable turns the group into a pass-through: Get returns nil and
// callers admit immediately.
func (g *Group) Disable() {
	g.mu.Lock()
	g.disabled = true
	g.mu.Unlock()
}

// Configure sets a method-specific bulkhead config. It replaces any
// existing bulkhead for the method; in-flight permits on the old
// bulkhead drain against the old instance.
func (g *Group) Configure(method string, config BulkheadConfig) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.configs[method] = config.withDefaults()
	delete(g.buckets, method)
}

// Get returns the bulkhead for method, creating it if necessary.
// Returns nil when the group is disabled.
func (g *Group) Get(method string) *Bulkhead {
	g.mu.RLock()
	if g.disabled {
		g.mu.RUnlock()
		return nil
	}
	b, ok := g.buckets[method]
	g.mu.RUnlock()
	if ok {
		return b
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if b, ok := g.buckets[method]; ok {
		return b
	}
	cfg, ok := g.configs[method]
	if !ok {
		cfg = g.defaults
	}
	b = NewBulkhead(method, cfg)
	g.buckets[method] = b
	return b
}

// Snapshot returns per-method bulkhead metrics.
func (g *Group) Snapshot() map[string]BulkheadMetrics {
	g.mu.RLock()
	buckets := make(map[string]*Bulkhead, len(g.buckets))
	for method, b := range g.buckets {
		buckets[method] = b
	}
	g.mu.RUnlock()

	out := make(map[string]BulkheadMetrics, len(buckets))
	for method, b := range buckets {
		out[method] = b.Metrics()
	}
	return out
}
