package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Direction distinguishes inbound dispatches from outbound calls.
type Direction string

const (
	// DirectionInbound marks a dispatch of a locally registered method.
	DirectionInbound Direction = "inbound"
	// DirectionOutbound marks a call to a peer endpoint.
	DirectionOutbound Direction = "outbound"
)

// CallMeta identifies one RPC flow for telemetry purposes.
type CallMeta struct {
	Direction Direction // inbound or outbound
	Method    string    // RPC method name (required)
	Target    string    // peer service URL (outbound only)
}

// SpanName returns the deterministic span name for this flow.
// Format: rpc.dispatch.<method> inbound, rpc.call.<method> outbound.
func (m CallMeta) SpanName() string {
	if m.Direction == DirectionOutbound {
		return "rpc.call." + m.Method
	}
	return "rpc.dispatch." + m.Method
}

// Tracer wraps OpenTelemetry tracing with RPC span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for an RPC flow.
	StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with RPC metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("rpc.method", meta.Method),
		attribute.String("rpc.direction", string(meta.Direction)),
	}
	if meta.Target != "" {
		attrs = append(attrs, attribute.String("rpc.target", meta.Target))
	}

	kind := trace.SpanKindServer
	if meta.Direction == DirectionOutbound {
		kind = trace.SpanKindClient
	}

	ctx, span := t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(kind),
	)

	return ctx, span
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopSpanTracer is a tracer that does nothing.
type noopSpanTracer struct {
	noop trace.Tracer
}

// NewNoopTracer creates a no-op tracer.
func NewNoopTracer() Tracer {
	return &noopSpanTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopSpanTracer) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopSpanTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
