// Package observe provides the telemetry surface of the RPC endpoint:
// structured logging, OpenTelemetry metrics and tracing, and the
// snapshot aggregator reported by the health check.
//
// # Components
//
//   - [Logger]: minimal leveled interface with key-value [Field]s. The
//     default implementation writes one JSON object per line and
//     redacts credential-bearing keys (token, authorization, ...).
//
//   - [Metrics]: OpenTelemetry instruments for request totals, errors,
//     durations, retries, timeouts, auth failures, breaker trips and
//     bulkhead rejections.
//
//   - [Aggregator]: process-local monotonic counters plus a running
//     mean of response time, snapshotted into the health report. The
//     aggregator mirrors what the OTel instruments export, in a shape
//     the health endpoint can embed directly.
//
//   - [Tracer]: span-per-flow tracing with rpc.method / rpc.target /
//     rpc.direction attributes.
//
//   - [Observer]: bundles tracer, meter and logger behind one
//     lifecycle; exporters (stdout, OTLP gRPC, Prometheus) are chosen
//     by name through the exporters subpackage.
//
// # Quick Start
//
//	obs, err := observe.NewObserver(ctx, observe.Config{
//	    ServiceName: "rpcmesh",
//	    Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	    Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
//	})
//	if err != nil {
//	    return err
//	}
//	defer obs.Shutdown(ctx)
package observe
