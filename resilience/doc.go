// Package resilience provides the reliability patterns the RPC endpoint
// composes around every request.
//
// Outbound calls run through a per-target circuit breaker gating a retry
// loop of timeout-wrapped attempts; inbound dispatches are admitted by a
// per-method bulkhead:
//
//	outbound:  CircuitBreaker ──▶ Retry ──▶ Timeout ──▶ transport
//	inbound:   Bulkhead ──▶ handler
//
// # Patterns
//
//   - [CircuitBreaker]: per-target CLOSED/OPEN/HALF_OPEN state machine.
//     FailureThreshold consecutive failures open the circuit; after
//     RecoveryTimeout the next gate check half-opens it, and
//     SuccessThreshold consecutive successes close it again. All probes
//     are admitted in half-open; a single failed probe re-opens.
//     [Registry] maps service URLs to breakers.
//
//   - [Bulkhead]: per-method admission control with a concurrency cap
//     and a bounded FIFO wait queue. Queue overflow rejects with reason
//     "capacity"; a waiter whose deadline fires is removed and rejected
//     with reason "queue_timeout". [Group] maps method names to
//     bulkheads.
//
//   - [Retry]: bounded retry with exponential backoff and +/-25% jitter,
//     delegating the delay schedule to cenkalti/backoff. The RetryIf
//     classifier decides retryability; non-retryable errors
//     short-circuit immediately.
//
//   - [Timeout]: context-deadline wrapper returning ErrTimeout.
//
// # Quick Start
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    FailureThreshold: 5,
//	    RecoveryTimeout:  time.Minute,
//	})
//
//	err := cb.Execute(ctx, func(ctx context.Context) error {
//	    return callPeer(ctx)
//	})
//
// All types are safe for concurrent use. State transitions within one
// breaker or bulkhead are serialized by its own mutex; there is no
// cross-entry ordering.
package resilience
