package rpc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/jonwraymond/rpcmesh/observe"
)

// testEnvVar suppresses signal handler installation when set, so test
// runs never mutate process-wide signal state.
const testEnvVar = "RPCMESH_TEST"

// Start binds the listener and begins serving HTTP/2 (h2c, or TLS when
// cert and key files are configured). It returns once the endpoint is
// listening; bind failures are returned directly. Starting a started
// endpoint is a no-op.
func (e *Endpoint) Start(ctx context.Context) error {
	e.lifecycle.mu.Lock()
	defer e.lifecycle.mu.Unlock()

	if e.lifecycle.started {
		return nil
	}

	addr := net.JoinHostPort(e.cfg.Host, fmt.Sprintf("%d", e.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc: bind %s: %w", addr, err)
	}

	h2s := &http2.Server{}
	srv := &http.Server{
		Handler: h2c.NewHandler(e.httpHandler(), h2s),
	}

	useTLS := e.cfg.TLSCertFile != ""
	if useTLS {
		srv.Handler = e.httpHandler()
		srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		if err := http2.ConfigureServer(srv, h2s); err != nil {
			_ = ln.Close()
			return fmt.Errorf("rpc: configuring http2: %w", err)
		}
	}

	e.lifecycle.server = srv
	e.lifecycle.addr = ln.Addr().String()
	e.lifecycle.started = true

	go func() {
		var serveErr error
		if useTLS {
			serveErr = srv.ServeTLS(ln, e.cfg.TLSCertFile, e.cfg.TLSKeyFile)
		} else {
			serveErr = srv.Serve(ln)
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			e.log.Error(context.Background(), "server terminated",
				observe.F("error", serveErr.Error()),
			)
		}
	}()

	e.log.Info(ctx, "server listening",
		observe.F("addr", e.lifecycle.addr),
		observe.F("tls", useTLS),
	)

	if e.cfg.HandleSignals && os.Getenv(testEnvVar) == "" {
		e.installSignalHandlers()
	}

	return nil
}

// Stop gracefully drains the server, force-closing after the
// configured shutdown timeout. Stopping a never-started endpoint
// succeeds silently.
func (e *Endpoint) Stop(ctx context.Context) error {
	e.lifecycle.mu.Lock()
	srv := e.lifecycle.server
	started := e.lifecycle.started
	stopSignals := e.lifecycle.stopOnce
	e.lifecycle.server = nil
	e.lifecycle.started = false
	e.lifecycle.stopOnce = nil
	e.lifecycle.mu.Unlock()

	if !started || srv == nil {
		return nil
	}
	if stopSignals != nil {
		stopSignals()
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ShutdownTimeout)
		defer cancel()
	}

	if err := srv.Shutdown(ctx); err != nil {
		// Drain window elapsed; drop remaining connections.
		closeErr := srv.Close()
		e.log.Warn(context.Background(), "graceful stop timed out, forced close",
			observe.F("error", err.Error()),
		)
		return errors.Join(err, closeErr)
	}

	e.log.Info(context.Background(), "server stopped")
	return nil
}

// Listening reports whether the endpoint currently has a bound listener.
func (e *Endpoint) Listening() bool {
	e.lifecycle.mu.Lock()
	defer e.lifecycle.mu.Unlock()
	return e.lifecycle.started
}

// Addr returns the bound listen address, or "" before Start.
func (e *Endpoint) Addr() string {
	e.lifecycle.mu.Lock()
	defer e.lifecycle.mu.Unlock()
	if !e.lifecycle.started {
		return ""
	}
	return e.lifecycle.addr
}

// URL returns the endpoint's base URL, or "" before Start.
func (e *Endpoint) URL() string {
	addr := e.Addr()
	if addr == "" {
		return ""
	}
	scheme := "http"
	if e.cfg.TLSCertFile != "" {
		scheme = "https"
	}
	return scheme + "://" + addr
}

// installSignalHandlers wires SIGINT/SIGTERM to a graceful stop.
// Caller holds the lifecycle mutex.
func (e *Endpoint) installSignalHandlers() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	e.lifecycle.stopOnce = stop

	go func() {
		<-ctx.Done()
		stop()
		if e.Listening() {
			e.log.Info(context.Background(), "termination signal received")
			_ = e.Stop(context.Background())
		}
	}()
}
