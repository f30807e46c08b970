package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/jonwraymond/rpcmesh/auth"
	"github.com/jonwraymond/rpcmesh/observe"
	"github.com/jonwraymond/rpcmesh/resilience"
)

// httpHandler builds the inbound request chain: CORS (when enabled)
// wrapping the dispatcher.
func (e *Endpoint) httpHandler() http.Handler {
	var handler http.Handler = http.HandlerFunc(e.dispatch)

	if e.cfg.CORS {
		c := cors.New(cors.Options{
			AllowedOrigins:       splitHeaderList(e.cfg.CORSOptions.Origin),
			AllowedMethods:       splitHeaderList(e.cfg.CORSOptions.Methods),
			AllowedHeaders:       splitHeaderList(e.cfg.CORSOptions.Headers),
			OptionsSuccessStatus: http.StatusOK,
		})
		handler = c.Handler(handler)
	}

	return handler
}

func splitHeaderList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// dispatch runs the inbound lifecycle: auth, body decode, method
// lookup, bulkhead admission, handler invocation, envelope. Exactly
// one envelope is written and one metrics update performed per request.
func (e *Endpoint) dispatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method == http.MethodOptions {
		// Preflight with CORS disabled: acknowledge and stop.
		w.WriteHeader(http.StatusOK)
		return
	}

	methodName := strings.TrimPrefix(r.URL.Path, "/")
	meta := observe.CallMeta{Direction: observe.DirectionInbound, Method: methodName}

	ctx, span := e.tracer.StartSpan(r.Context(), meta)
	r = r.WithContext(ctx)

	env, status := e.serve(w, r, methodName)

	elapsed := time.Since(start)
	e.agg.IncRequests()
	if status >= 300 {
		e.agg.IncErrors()
	}
	e.agg.ObserveResponseTime(elapsed)
	e.metrics.RecordRequest(ctx, meta, elapsed, envelopeError(env))
	e.tracer.EndSpan(span, envelopeError(env))

	writeEnvelope(w, status, env)
}

func envelopeError(env Envelope) error {
	if env.Err != nil {
		return env.Err
	}
	return nil
}

// serve produces the response envelope and status for one request.
func (e *Endpoint) serve(w http.ResponseWriter, r *http.Request, methodName string) (Envelope, int) {
	ctx := r.Context()
	requestID := uuid.NewString()

	if methodName == HealthCheckPath {
		return Success(e.healthReport(ctx)), http.StatusOK
	}

	claims, authErr := e.authenticate(r, methodName)
	if authErr != nil {
		reason := authFailureReason(authErr)
		e.agg.IncAuthFailures()
		e.metrics.RecordAuthFailure(ctx, reason)
		e.log.Warn(ctx, "authentication failed",
			observe.F("requestId", requestID),
			observe.F("method", methodName),
			observe.F("reason", reason),
		)
		return Failure(authErr), authErr.Status
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestSize)
	params, bodyErr := decodeParams(r)
	if bodyErr != nil {
		if bodyErr.Code == CodePayloadTooLarge {
			e.log.Warn(ctx, "request body over limit",
				observe.F("requestId", requestID),
				observe.F("method", methodName),
			)
		}
		return Failure(bodyErr), bodyErr.Status
	}

	handler, ok := e.methods.get(methodName)
	if !ok {
		notFound := NewError(CodeMethodNotFound, "Method not found").
			WithStatus(http.StatusNotFound).
			WithExtra("method", methodName).
			WithExtra("availableMethods", e.methods.names())
		return Failure(notFound), notFound.Status
	}

	if claims != nil {
		params["_user"] = claims
	}

	release := func() {}
	if bh := e.bulkheads.Get(methodName); bh != nil {
		if admitErr := bh.Acquire(ctx); admitErr != nil {
			rejection := e.bulkheadRejection(ctx, methodName, admitErr)
			return Failure(rejection), rejection.Status
		}
		// The permit must be returned exactly once on every exit path.
		release = sync.OnceFunc(bh.Release)
	}
	defer release()

	result, handlerErr := invokeHandler(ctx, handler, params)
	if handlerErr != nil {
		e.log.Error(ctx, "handler failed",
			observe.F("requestId", requestID),
			observe.F("method", methodName),
			observe.F("error", handlerErr.Error()),
		)
		internal := NewError(CodeInternalError, "Internal server error").
			WithStatus(http.StatusInternalServerError).
			WithExtra("details", handlerErr.Error()).
			WithCause(handlerErr)
		return Failure(internal), internal.Status
	}

	return Success(result), http.StatusOK
}

// authenticate enforces bearer JWT auth for non-excluded methods.
// It returns the verified claims for injection under params._user.
func (e *Endpoint) authenticate(r *http.Request, methodName string) (map[string]any, *Error) {
	if !e.cfg.JWTAuth || e.excluded[methodName] {
		return nil, nil
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return nil, NewError(CodeUnauthorized, "Missing bearer token").
			WithStatus(http.StatusUnauthorized)
	}

	identity, err := e.verifier.Verify(r.Context(), token)
	if err != nil {
		return nil, NewError(CodeUnauthorized, "Invalid token: "+auth.Reason(err)).
			WithStatus(http.StatusUnauthorized).
			WithCause(err)
	}
	return identity.Claims, nil
}

// authFailureReason distinguishes a missing header from a failed check.
func authFailureReason(authErr *Error) string {
	if authErr.Cause != nil {
		return auth.Reason(authErr.Cause)
	}
	return "missing_token"
}

// decodeParams reads and decodes the request body. Empty bodies decode
// to an empty mapping.
func decodeParams(r *http.Request) (map[string]any, *Error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, NewError(CodePayloadTooLarge, fmt.Sprintf("Request body exceeds %d bytes", MaxRequestSize)).
				WithStatus(http.StatusRequestEntityTooLarge)
		}
		return nil, NewError(CodeBadRequest, "Reading request body failed").
			WithStatus(http.StatusBadRequest).
			WithCause(err)
	}
	if len(raw) == 0 {
		return map[string]any{}, nil
	}

	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, NewError(CodeInvalidJSON, "Request body is not a JSON object").
			WithStatus(http.StatusBadRequest).
			WithCause(err)
	}
	if params == nil {
		params = map[string]any{}
	}
	return params, nil
}

// bulkheadRejection shapes an admission failure and counts it. A
// caller cancellation while queued is surfaced as such, not as a
// capacity rejection.
func (e *Endpoint) bulkheadRejection(ctx context.Context, methodName string, admitErr error) *Error {
	var reason string
	var be *resilience.BulkheadError
	switch {
	case errors.As(admitErr, &be):
		reason = be.Reason
		e.agg.IncBulkheadRejections()
		e.metrics.RecordBulkheadRejection(ctx, methodName, reason)
	case errors.Is(admitErr, context.Canceled), errors.Is(admitErr, context.DeadlineExceeded):
		reason = "cancelled"
	default:
		reason = resilience.ReasonCapacity
		e.agg.IncBulkheadRejections()
		e.metrics.RecordBulkheadRejection(ctx, methodName, reason)
	}
	e.log.Warn(ctx, "bulkhead rejected request",
		observe.F("method", methodName),
		observe.F("reason", reason),
	)

	return NewError(CodeBulkheadExceeded, "Method concurrency limit exceeded").
		WithStatus(http.StatusServiceUnavailable).
		WithExtra("method", methodName).
		WithExtra("reason", reason).
		WithCause(admitErr)
}

// invokeHandler runs the handler with a panic guard, so a panicking
// method surfaces as INTERNAL_ERROR instead of tearing the stream down.
func invokeHandler(ctx context.Context, h Handler, params map[string]any) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h(ctx, params)
}

// writeEnvelope writes the single response envelope for the request.
func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	data, err := json.Marshal(env)
	if err != nil {
		// Encoding failed after the status went out; emit a minimal
		// internal-error body on a best-effort basis.
		data, _ = json.Marshal(Failure(NewError(CodeInternalError, "response encoding failed")))
	}
	_, _ = w.Write(data)
}
