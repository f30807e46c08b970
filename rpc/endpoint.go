package rpc

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonwraymond/rpcmesh/auth"
	"github.com/jonwraymond/rpcmesh/health"
	"github.com/jonwraymond/rpcmesh/observe"
	"github.com/jonwraymond/rpcmesh/resilience"
)

// Endpoint is the process-wide RPC surface: a server dispatching
// registered methods and a client invoking methods on peers, both
// wrapped in the resilience pipeline.
type Endpoint struct {
	cfg Config

	log     observe.Logger
	metrics observe.Metrics
	tracer  observe.Tracer
	agg     *observe.Aggregator

	methods   *registry
	breakers  *resilience.Registry
	bulkheads *resilience.Group
	verifier  *auth.Verifier
	excluded  map[string]bool
	checks    *health.Aggregator

	lifecycle lifecycle
}

// MethodOption tunes a single method registration.
type MethodOption func(*methodSettings)

type methodSettings struct {
	bulkhead *resilience.BulkheadConfig
}

// WithBulkhead sets a method-specific bulkhead config.
func WithBulkhead(cfg resilience.BulkheadConfig) MethodOption {
	return func(s *methodSettings) {
		s.bulkhead = &cfg
	}
}

// New validates the configuration and constructs the endpoint. When
// StartServer is set or initial methods are supplied, the listener is
// bound before New returns; a bind failure fails construction.
func New(cfg Config) (*Endpoint, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Endpoint{
		cfg:     cfg,
		methods: newRegistry(),
		agg:     observe.NewAggregator(),
	}

	e.log = cfg.Logger
	if e.log == nil {
		e.log = observe.NewLogger("info")
	}
	e.log = e.log.WithFields(observe.F("component", "rpc"))

	e.metrics = observe.NopMetrics()
	e.tracer = observe.NewNoopTracer()
	if cfg.Observer != nil {
		m, err := observe.NewMetrics(cfg.Observer.Meter())
		if err != nil {
			return nil, fmt.Errorf("rpc: building metrics instruments: %w", err)
		}
		e.metrics = m
		e.tracer = observe.NewTracer(cfg.Observer.Tracer())
	}

	e.excluded = make(map[string]bool, len(cfg.ExcludedPaths))
	for _, p := range cfg.ExcludedPaths {
		e.excluded[p] = true
	}

	e.breakers = resilience.NewRegistry(resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.Resilience.CircuitBreaker.FailureThreshold,
		RecoveryTimeout:  cfg.Resilience.CircuitBreaker.RecoveryTimeout,
		SuccessThreshold: cfg.Resilience.CircuitBreaker.SuccessThreshold,
	}, e.onBreakerTransition)

	e.bulkheads = resilience.NewGroup(cfg.MethodDefaults)
	if cfg.DisableBulkheads {
		e.bulkheads.Disable()
	}

	if cfg.JWTAuth {
		keys, err := buildKeyProvider(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: jwt public key: %v", ErrInvalidConfig, err)
		}
		e.verifier = auth.NewVerifier(auth.VerifierConfig{
			Keys:     keys,
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
		})
	}

	e.registerHealthChecks()

	for name, handler := range cfg.Methods {
		if err := e.AddMethod(name, handler); err != nil {
			return nil, err
		}
	}

	if cfg.StartServer || len(cfg.Methods) > 0 {
		if err := e.Start(context.Background()); err != nil {
			return nil, err
		}
	}

	return e, nil
}

func buildKeyProvider(cfg Config) (auth.KeyProvider, error) {
	if cfg.JWKSURL != "" {
		return auth.NewJWKSKeyProvider(auth.JWKSConfig{URL: cfg.JWKSURL}), nil
	}
	return auth.NewStaticKeyProvider([]byte(cfg.JWTPublicKey))
}

// onBreakerTransition logs breaker movements and counts trips.
func (e *Endpoint) onBreakerTransition(target string, from, to resilience.State) {
	ctx := context.Background()
	e.log.Warn(ctx, "circuit breaker state change",
		observe.F("target", target),
		observe.F("from", from.String()),
		observe.F("to", to.String()),
	)
	if to == resilience.StateOpen {
		e.agg.IncBreakerTrips()
		e.metrics.RecordBreakerTrip(ctx, target)
	}
}

// AddMethod registers (or replaces) a method handler. Replacement is
// last-write-wins with a warning log.
func (e *Endpoint) AddMethod(name string, handler Handler, opts ...MethodOption) error {
	if err := validateMethodName(name); err != nil {
		return fmt.Errorf("%w: method %q: %v", ErrInvalidConfig, name, err)
	}
	if handler == nil {
		return fmt.Errorf("%w: method %q: handler must be non-nil", ErrInvalidConfig, name)
	}

	var settings methodSettings
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.bulkhead != nil {
		e.bulkheads.Configure(name, *settings.bulkhead)
	}

	if replaced := e.methods.register(name, handler); replaced {
		e.log.Warn(context.Background(), "method overridden",
			observe.F("method", name),
		)
	}
	return nil
}

// Methods returns the sorted names of registered methods.
func (e *Endpoint) Methods() []string {
	return e.methods.names()
}

// HealthChecks exposes the endpoint's health aggregator so callers can
// register additional subsystem checkers.
func (e *Endpoint) HealthChecks() *health.Aggregator {
	return e.checks
}

// ResetCircuitBreaker forces the breaker for serviceURL back to closed
// with zeroed counters.
func (e *Endpoint) ResetCircuitBreaker(serviceURL string) {
	e.breakers.Reset(serviceURL)
	e.log.Info(context.Background(), "circuit breaker reset",
		observe.F("target", serviceURL),
	)
}

// MetricsSnapshot returns the endpoint counters plus the per-target
// breaker and per-method bulkhead state.
func (e *Endpoint) MetricsSnapshot() observe.Snapshot {
	snap := e.agg.Snapshot()

	circuits := e.breakers.Snapshot()
	if len(circuits) > 0 {
		snap.CircuitBreakers = make(map[string]observe.CircuitSnapshot, len(circuits))
		for target, m := range circuits {
			cs := observe.CircuitSnapshot{
				State:     m.State.String(),
				Failures:  m.Failures,
				Successes: m.Successes,
			}
			if !m.LastFailure.IsZero() {
				cs.LastFailure = m.LastFailure.UTC().Format(time.RFC3339)
			}
			if !m.NextAttempt.IsZero() {
				cs.NextAttempt = m.NextAttempt.UTC().Format(time.RFC3339)
			}
			snap.CircuitBreakers[target] = cs
		}
	}

	bulkheads := e.bulkheads.Snapshot()
	if len(bulkheads) > 0 {
		snap.Bulkheads = make(map[string]observe.BulkheadSnapshot, len(bulkheads))
		for method, m := range bulkheads {
			snap.Bulkheads[method] = observe.BulkheadSnapshot{
				Active:        m.Active,
				Queued:        m.Queued,
				MaxConcurrent: m.MaxConcurrent,
				MaxQueue:      m.MaxQueue,
				Rejected:      m.Rejected,
				QueueTimeouts: m.QueueTimeouts,
			}
		}
	}

	return snap
}

// registerHealthChecks wires the built-in subsystem checkers.
func (e *Endpoint) registerHealthChecks() {
	e.checks = health.NewAggregator()

	e.checks.Register("listener", func(ctx context.Context) health.Result {
		listening := e.Listening()
		switch {
		case listening:
			return health.Healthy("listening on " + e.Addr())
		case e.methods.size() > 0:
			return health.Unhealthy("methods registered but server not listening", nil)
		default:
			return health.Healthy("client-only endpoint")
		}
	})

	e.checks.Register("circuit-breakers", func(ctx context.Context) health.Result {
		open := 0
		snapshot := e.breakers.Snapshot()
		for _, m := range snapshot {
			if m.State == resilience.StateOpen {
				open++
			}
		}
		if open > 0 {
			return health.Degraded(fmt.Sprintf("%d of %d breakers open", open, len(snapshot)))
		}
		return health.Healthy(fmt.Sprintf("%d breakers closed", len(snapshot)))
	})

	e.checks.Register("bulkheads", func(ctx context.Context) health.Result {
		saturated := 0
		snapshot := e.bulkheads.Snapshot()
		for _, m := range snapshot {
			if m.Queued >= m.MaxQueue {
				saturated++
			}
		}
		if saturated > 0 {
			return health.Degraded(fmt.Sprintf("%d methods with a full queue", saturated))
		}
		return health.Healthy("admission queues draining")
	})
}

// lifecycle holds the mutable server state guarded by its own mutex.
type lifecycle struct {
	mu       sync.Mutex
	server   *http.Server
	addr     string
	started  bool
	stopOnce func()
}
