// Package health provides subsystem health checks for the RPC endpoint.
//
// A [Check] is a plain function probing one subsystem (the listener,
// the circuit breaker registry, the method bulkheads), registered by
// name on the [Aggregator]. The aggregator fans registered checks out
// in parallel under a shared deadline and folds the results into the
// worst observed [Status]. The endpoint embeds the per-check results
// into its /health-check report.
package health
