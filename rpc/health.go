package rpc

import (
	"context"
	"fmt"
	"time"
)

// healthReport builds the /health-check response payload.
func (e *Endpoint) healthReport(ctx context.Context) map[string]any {
	names := e.methods.names()
	listening := e.Listening()

	var rpcSection map[string]any
	switch {
	case len(names) > 0 && listening:
		rpcSection = map[string]any{
			"status":  "ok",
			"mode":    "server",
			"details": fmt.Sprintf("%d methods registered, listening on %s", len(names), e.Addr()),
		}
	case len(names) > 0:
		rpcSection = map[string]any{
			"status":   "error",
			"error":    "methods registered but server not listening",
			"details":  fmt.Sprintf("%d methods registered", len(names)),
			"critical": true,
		}
	default:
		rpcSection = map[string]any{
			"status":  "ok",
			"mode":    "client-only",
			"details": "no methods registered",
		}
	}

	authMode := "disabled"
	if e.cfg.JWTAuth {
		authMode = "JWT RS256"
	}

	checks := make(map[string]any)
	for name, result := range e.checks.CheckAll(ctx) {
		entry := map[string]any{
			"status":  string(result.Status),
			"message": result.Message,
		}
		if result.Err != nil {
			entry["error"] = result.Err.Error()
		}
		checks[name] = entry
	}

	return map[string]any{
		"status":    "ok",
		"uptime":    e.agg.Uptime().Milliseconds(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"rpc":       rpcSection,
		"metrics":   e.MetricsSnapshot(),
		"methods":   names,
		"auth":      authMode,
		"checks":    checks,
	}
}
