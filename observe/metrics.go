package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records per-request telemetry for the RPC endpoint.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordRequest records a completed RPC flow with duration and error status.
	RecordRequest(ctx context.Context, meta CallMeta, duration time.Duration, err error)

	// RecordRetry records one retry of an outbound call.
	RecordRetry(ctx context.Context, meta CallMeta)

	// RecordTimeout records a connection or request timeout.
	RecordTimeout(ctx context.Context, meta CallMeta)

	// RecordAuthFailure records a rejected bearer token, labeled by reason.
	RecordAuthFailure(ctx context.Context, reason string)

	// RecordBreakerTrip records a circuit breaker opening for a target.
	RecordBreakerTrip(ctx context.Context, target string)

	// RecordBulkheadRejection records a bulkhead rejection, labeled by reason.
	RecordBulkheadRejection(ctx context.Context, method, reason string)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter              metric.Meter
	requestCount       metric.Int64Counter
	errorCount         metric.Int64Counter
	durationHist       metric.Float64Histogram
	retryCount         metric.Int64Counter
	timeoutCount       metric.Int64Counter
	authFailures       metric.Int64Counter
	breakerTrips       metric.Int64Counter
	bulkheadRejections metric.Int64Counter
}

// NewMetrics creates a Metrics instance with the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{meter: meter}

	var err error
	if m.requestCount, err = meter.Int64Counter(
		"rpc.requests.total",
		metric.WithDescription("Total number of RPC requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}

	if m.errorCount, err = meter.Int64Counter(
		"rpc.errors.total",
		metric.WithDescription("Total number of RPC request errors"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}

	if m.durationHist, err = meter.Float64Histogram(
		"rpc.request.duration_ms",
		metric.WithDescription("RPC request duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.retryCount, err = meter.Int64Counter(
		"rpc.retries.total",
		metric.WithDescription("Total number of outbound retries"),
		metric.WithUnit("{retry}"),
	); err != nil {
		return nil, err
	}

	if m.timeoutCount, err = meter.Int64Counter(
		"rpc.timeouts.total",
		metric.WithDescription("Total number of connection and request timeouts"),
		metric.WithUnit("{timeout}"),
	); err != nil {
		return nil, err
	}

	if m.authFailures, err = meter.Int64Counter(
		"rpc.auth.failures.total",
		metric.WithDescription("Total number of rejected bearer tokens"),
		metric.WithUnit("{failure}"),
	); err != nil {
		return nil, err
	}

	if m.breakerTrips, err = meter.Int64Counter(
		"rpc.circuit.trips.total",
		metric.WithDescription("Total number of circuit breaker trips"),
		metric.WithUnit("{trip}"),
	); err != nil {
		return nil, err
	}

	if m.bulkheadRejections, err = meter.Int64Counter(
		"rpc.bulkhead.rejections.total",
		metric.WithDescription("Total number of bulkhead rejections"),
		metric.WithUnit("{rejection}"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func callAttrs(meta CallMeta) metric.MeasurementOption {
	attrs := []attribute.KeyValue{
		attribute.String("rpc.method", meta.Method),
		attribute.String("rpc.direction", string(meta.Direction)),
	}
	if meta.Target != "" {
		attrs = append(attrs, attribute.String("rpc.target", meta.Target))
	}
	return metric.WithAttributes(attrs...)
}

func (m *metricsImpl) RecordRequest(ctx context.Context, meta CallMeta, duration time.Duration, err error) {
	opt := callAttrs(meta)

	m.requestCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordRetry(ctx context.Context, meta CallMeta) {
	m.retryCount.Add(ctx, 1, callAttrs(meta))
}

func (m *metricsImpl) RecordTimeout(ctx context.Context, meta CallMeta) {
	m.timeoutCount.Add(ctx, 1, callAttrs(meta))
}

func (m *metricsImpl) RecordAuthFailure(ctx context.Context, reason string) {
	m.authFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *metricsImpl) RecordBreakerTrip(ctx context.Context, target string) {
	m.breakerTrips.Add(ctx, 1, metric.WithAttributes(attribute.String("rpc.target", target)))
}

func (m *metricsImpl) RecordBulkheadRejection(ctx context.Context, method, reason string) {
	m.bulkheadRejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("rpc.method", method),
		attribute.String("reason", reason),
	))
}

// NopMetrics returns a Metrics implementation that does nothing.
func NopMetrics() Metrics {
	return &noopMetrics{}
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordRequest(context.Context, CallMeta, time.Duration, error) {}
func (m *noopMetrics) RecordRetry(context.Context, CallMeta)                         {}
func (m *noopMetrics) RecordTimeout(context.Context, CallMeta)                       {}
func (m *noopMetrics) RecordAuthFailure(context.Context, string)                     {}
func (m *noopMetrics) RecordBreakerTrip(context.Context, string)                     {}
func (m *noopMetrics) RecordBulkheadRejection(context.Context, string, string)       {}
