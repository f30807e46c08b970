package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrBulkheadFull is returned when a bulkhead rejects an admission request.
	// Use errors.Is against this sentinel; the concrete error is a
	// *BulkheadError carrying the rejection reason.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("resilience: operation timed out")
)

// Rejection reasons carried by BulkheadError.
const (
	// ReasonCapacity means both the concurrency limit and the wait queue
	// were full at admission time.
	ReasonCapacity = "capacity"

	// ReasonQueueTimeout means the request waited in the queue until its
	// deadline elapsed.
	ReasonQueueTimeout = "queue_timeout"
)

// BulkheadError is the rejection returned by Bulkhead.Acquire.
type BulkheadError struct {
	// Method is the method the bulkhead guards.
	Method string

	// Reason is ReasonCapacity or ReasonQueueTimeout.
	Reason string
}

// Error implements the error interface.
func (e *BulkheadError) Error() string {
	return "resilience: bulkhead rejected " + e.Method + " (" + e.Reason + ")"
}

// Is reports whether target is ErrBulkheadFull, so callers can match the
// rejection class without inspecting the reason.
func (e *BulkheadError) Is(target error) bool {
	return target == ErrBulkheadFull
}
