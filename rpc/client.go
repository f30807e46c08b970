package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonwraymond/rpcmesh/observe"
	"github.com/jonwraymond/rpcmesh/resilience"
)

// CallOptions tunes a single outbound call. The effective retry policy
// is merged endpoint defaults <- RetryOptions <- the top-level fields
// here, later sources winning.
type CallOptions struct {
	// Token is sent as "Authorization: Bearer <token>" when non-empty.
	Token string

	// RetryOptions overrides the endpoint retry policy for this call.
	RetryOptions *RetryPolicy

	// MaxRetries overrides the retry count when non-nil. Zero means no
	// retries.
	MaxRetries *int

	// InitialDelay, MaxDelay and BackoffFactor override the backoff
	// schedule when set.
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64

	// DisableJitter turns off delay randomization for this call.
	DisableJitter bool

	// RequestTimeout and ConnectionTimeout override the endpoint
	// timeout policy when set.
	RequestTimeout    time.Duration
	ConnectionTimeout time.Duration
}

// Call invokes method on the peer endpoint at serviceURL with the given
// parameters and returns the decoded "data" value.
//
// The call is gated by the per-target circuit breaker, then wrapped in
// the retry loop; each attempt opens its own HTTP/2 session bounded by
// the connection timeout and runs under the request timeout. Breaker
// state is updated from every attempt outcome.
func (e *Endpoint) Call(ctx context.Context, serviceURL, method string, params map[string]any, opts *CallOptions) (any, error) {
	if opts == nil {
		opts = &CallOptions{}
	}

	u, err := url.Parse(serviceURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, NewError(CodeBadRequest, fmt.Sprintf("invalid service URL %q", serviceURL))
	}
	if method == "" {
		return nil, NewError(CodeBadRequest, "method name must be non-empty")
	}
	if params == nil {
		params = map[string]any{}
	}

	policy := e.effectiveRetryPolicy(opts)
	timeouts := e.effectiveTimeouts(opts)
	meta := observe.CallMeta{Direction: observe.DirectionOutbound, Method: method, Target: serviceURL}

	ctx, span := e.tracer.StartSpan(ctx, meta)
	start := time.Now()

	var breaker *resilience.CircuitBreaker
	if !e.cfg.Resilience.CircuitBreaker.Disabled {
		breaker = e.breakers.Get(serviceURL)
		if gateErr := breaker.Allow(); gateErr != nil {
			err := NewError(CodeCircuitOpen, "circuit breaker open for "+serviceURL).WithCause(gateErr)
			e.recordCall(ctx, meta, time.Since(start), err)
			e.tracer.EndSpan(span, err)
			return nil, err
		}
	}

	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxRetries:    policy.MaxRetries,
		InitialDelay:  policy.InitialDelay,
		MaxDelay:      policy.MaxDelay,
		BackoffFactor: policy.BackoffFactor,
		DisableJitter: policy.DisableJitter,
		RetryIf: func(err error) bool {
			return shouldRetry(err, policy)
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			e.agg.IncRetries()
			e.metrics.RecordRetry(ctx, meta)
			e.log.Debug(ctx, "retrying call",
				observe.F("method", method),
				observe.F("target", serviceURL),
				observe.F("attempt", attempt),
				observe.F("delay", delay.String()),
				observe.F("cause", err.Error()),
			)
		},
	})

	var result any
	callErr := retry.Execute(ctx, func(ctx context.Context) error {
		data, attemptErr := e.attempt(ctx, u, method, params, opts.Token, timeouts, meta)
		if attemptErr != nil {
			if breaker != nil {
				breaker.RecordFailure()
			}
			return attemptErr
		}
		if breaker != nil {
			breaker.RecordSuccess()
		}
		result = data
		return nil
	})

	e.recordCall(ctx, meta, time.Since(start), callErr)
	e.tracer.EndSpan(span, callErr)

	if callErr != nil {
		return nil, callErr
	}
	return result, nil
}

// attempt performs one request on a fresh HTTP/2 session. The full
// send+receive exchange runs through the resilience timeout wrapper;
// returning from the wrapper closes the session, aborting any exchange
// still in flight.
func (e *Endpoint) attempt(ctx context.Context, u *url.URL, method string, params map[string]any, token string, timeouts TimeoutPolicy, meta observe.CallMeta) (any, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, NewError(CodeBadRequest, "parameters are not JSON-encodable").WithCause(err)
	}

	connectTimeout := timeouts.ConnectionTimeout
	requestTimeout := timeouts.RequestTimeout
	if timeouts.Disabled {
		connectTimeout, requestTimeout = 0, 0
	}

	sess, dialErr := dialSession(ctx, u, connectTimeout)
	if dialErr != nil {
		if dialErr.Code == CodeConnectTimeout {
			e.agg.IncTimeouts()
			e.metrics.RecordTimeout(ctx, meta)
		}
		return nil, dialErr
	}
	defer sess.Close()

	reqURL := *u
	reqURL.Path = strings.TrimSuffix(u.Path, "/") + "/" + method

	var data any
	exchange := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), bytes.NewReader(body))
		if err != nil {
			return NewError(CodeBadRequest, "building request failed").WithCause(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := sess.roundTrip(req)
		if err != nil {
			return classifyTransportError(err)
		}
		defer func() { _ = resp.Body.Close() }()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return classifyTransportError(err)
		}

		if resp.StatusCode >= 400 {
			// An envelope error body names the failure better than the
			// bare status.
			if _, envErr, decErr := decodeEnvelope(raw); decErr == nil && envErr != nil {
				return envErr.WithStatus(resp.StatusCode)
			}
			return NewError(HTTPCode(resp.StatusCode), http.StatusText(resp.StatusCode)).
				WithStatus(resp.StatusCode)
		}

		d, envErr, decErr := decodeEnvelope(raw)
		if decErr != nil {
			return NewError(CodeParseError, "response body is not a valid envelope").WithCause(decErr)
		}
		if envErr != nil {
			return envErr
		}
		data = d
		return nil
	}

	if requestTimeout > 0 {
		err = resilience.ExecuteWithTimeout(ctx, requestTimeout, exchange)
	} else {
		err = exchange(ctx)
	}
	if err != nil {
		return nil, e.classifyAttemptError(ctx, err, meta)
	}
	return data, nil
}

// classifyAttemptError maps an exchange failure, counting timeouts.
func (e *Endpoint) classifyAttemptError(ctx context.Context, err error, meta observe.CallMeta) error {
	var rpcErr *Error
	switch {
	case errors.Is(err, resilience.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		e.agg.IncTimeouts()
		e.metrics.RecordTimeout(ctx, meta)
		return NewError(CodeTimeout, "request timed out").WithCause(err)
	case errors.As(err, &rpcErr) && rpcErr.Code == CodeTimeout:
		e.agg.IncTimeouts()
		e.metrics.RecordTimeout(ctx, meta)
		return rpcErr
	default:
		return err
	}
}

// recordCall folds one outbound call into the counters.
func (e *Endpoint) recordCall(ctx context.Context, meta observe.CallMeta, elapsed time.Duration, err error) {
	e.agg.IncRequests()
	if err != nil {
		e.agg.IncErrors()
	}
	e.agg.ObserveResponseTime(elapsed)
	e.metrics.RecordRequest(ctx, meta, elapsed, err)
}

// effectiveRetryPolicy merges endpoint defaults, per-call RetryOptions,
// and per-call top-level overrides.
func (e *Endpoint) effectiveRetryPolicy(opts *CallOptions) RetryPolicy {
	policy := e.cfg.Resilience.Retry
	policy = overlayRetryPolicy(policy, opts.RetryOptions)

	if opts.MaxRetries != nil {
		policy.MaxRetries = *opts.MaxRetries
	}
	if opts.InitialDelay > 0 {
		policy.InitialDelay = opts.InitialDelay
	}
	if opts.MaxDelay > 0 {
		policy.MaxDelay = opts.MaxDelay
	}
	if opts.BackoffFactor > 0 {
		policy.BackoffFactor = opts.BackoffFactor
	}
	if opts.DisableJitter {
		policy.DisableJitter = true
	}
	return policy
}

// effectiveTimeouts merges the endpoint timeout policy with per-call
// overrides.
func (e *Endpoint) effectiveTimeouts(opts *CallOptions) TimeoutPolicy {
	timeouts := e.cfg.Resilience.Timeout
	if opts.RequestTimeout > 0 {
		timeouts.RequestTimeout = opts.RequestTimeout
	}
	if opts.ConnectionTimeout > 0 {
		timeouts.ConnectionTimeout = opts.ConnectionTimeout
	}
	return timeouts
}
