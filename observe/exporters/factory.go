// Package exporters resolves exporter names from the observe config
// into OpenTelemetry readers and span exporters for the RPC endpoint's
// telemetry (the rpc.* instrument set and rpc.dispatch/rpc.call spans).
package exporters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Target names an exporter destination.
type Target string

const (
	// TargetStdout writes telemetry to stdout, for development runs.
	TargetStdout Target = "stdout"
	// TargetOTLP ships telemetry over OTLP gRPC to the endpoint named
	// by the OTEL_EXPORTER_OTLP_* environment variables.
	TargetOTLP Target = "otlp"
	// TargetPrometheus serves metrics from a Prometheus scrape registry.
	// Metrics only.
	TargetPrometheus Target = "prometheus"
	// TargetNone discards telemetry. The empty name means the same.
	TargetNone Target = "none"
)

// Errors for exporter configuration.
var (
	// ErrEndpointNotConfigured indicates the OTLP endpoint environment
	// variable for the requested signal is not set.
	ErrEndpointNotConfigured = errors.New("exporters: endpoint not configured")

	// ErrInvalidExporter indicates an unknown exporter name.
	ErrInvalidExporter = errors.New("exporters: invalid exporter")
)

// otlpEndpoint resolves the OTLP endpoint for a signal, preferring the
// shared variable over the signal-specific one.
func otlpEndpoint(signalVar string) (string, error) {
	if ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); ep != "" {
		return ep, nil
	}
	if ep := os.Getenv(signalVar); ep != "" {
		return ep, nil
	}
	return "", fmt.Errorf("%w: set OTEL_EXPORTER_OTLP_ENDPOINT or %s", ErrEndpointNotConfigured, signalVar)
}

// NewTracingExporter builds the span exporter for rpc.dispatch and
// rpc.call spans. Supported targets: stdout, otlp, none/"".
func NewTracingExporter(ctx context.Context, name string) (sdktrace.SpanExporter, error) {
	switch Target(name) {
	case TargetStdout:
		return stdouttrace.New(stdouttrace.WithWriter(os.Stdout))

	case TargetOTLP:
		if _, err := otlpEndpoint("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); err != nil {
			return nil, err
		}
		return otlptracegrpc.New(ctx)

	case TargetNone, "":
		// Spans are still created (the dispatcher reads span context);
		// they just go nowhere.
		return stdouttrace.New(stdouttrace.WithWriter(io.Discard))

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidExporter, name)
	}
}

// NewMetricsReader builds the reader behind the rpc.* instrument set
// (request totals, durations, retries, breaker trips, bulkhead
// rejections). Supported targets: stdout, otlp, prometheus, none/"".
func NewMetricsReader(ctx context.Context, name string) (sdkmetric.Reader, error) {
	switch Target(name) {
	case TargetStdout:
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stdout))
		if err != nil {
			return nil, fmt.Errorf("stdout metrics exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	case TargetOTLP:
		if _, err := otlpEndpoint("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); err != nil {
			return nil, err
		}
		exp, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("OTLP metrics exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	case TargetPrometheus:
		// The exporter registers into the default Prometheus registry;
		// the embedding application owns the scrape handler.
		exp, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("prometheus exporter: %w", err)
		}
		return exp, nil

	case TargetNone, "":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(io.Discard))
		if err != nil {
			return nil, err
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidExporter, name)
	}
}
