// Package rpc implements a lightweight bidirectional RPC endpoint over
// HTTP/2.
//
// One [Endpoint] serves both directions. Inbound, it dispatches POSTed
// JSON bodies to registered method handlers; outbound, it invokes
// methods on peer endpoints. Every request crosses the resilience
// pipeline:
//
//	inbound:   auth ──▶ bulkhead admission ──▶ handler ──▶ envelope
//	outbound:  circuit breaker ──▶ retry ──▶ timeout ──▶ HTTP/2 attempt
//
// Responses use a two-shape JSON envelope: {"data": ...} on success,
// {"error": CODE, "message": ..., ...} on failure, with stable codes
// (UNAUTHORIZED, METHOD_NOT_FOUND, METHOD_BULKHEAD_EXCEEDED,
// CIRCUIT_OPEN, TIMEOUT, HTTP_<status>, ...).
//
// # Server
//
//	endpoint, err := rpc.New(rpc.Config{
//	    Port: 4000,
//	    Methods: map[string]rpc.Handler{
//	        "echo": func(ctx context.Context, params map[string]any) (any, error) {
//	            return params, nil
//	        },
//	    },
//	})
//
// Supplying methods binds the HTTP/2 listener (h2c; TLS with cert/key
// files) before New returns. GET /health-check answers liveness,
// uptime, registered methods and the full metrics snapshot, and never
// requires authentication.
//
// # Client
//
//	data, err := endpoint.Call(ctx, "http://peer:4000", "echo",
//	    map[string]any{"m": "hi"}, nil)
//
// Each call is gated by a per-target circuit breaker and retried with
// exponential backoff and jitter; each attempt opens its own HTTP/2
// session under the connection timeout and runs under the request
// timeout. Transport failures are classified into the error taxonomy
// before they reach the retry policy.
package rpc
