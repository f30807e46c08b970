package rpc

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http2"
)

// session is one HTTP/2 client connection, scoped to a single outbound
// attempt. Close is safe on every exit path.
type session struct {
	conn net.Conn
	cc   *http2.ClientConn
}

// dialSession establishes an HTTP/2 session to the origin of u within
// connectTimeout: plain TCP with h2c for http URLs, TLS with h2 ALPN
// for https. Failures come back already classified.
func dialSession(ctx context.Context, u *url.URL, connectTimeout time.Duration) (*session, *Error) {
	addr := originAddr(u)

	dialCtx := ctx
	if connectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, connectTimeout)
		defer cancel()
	}

	var conn net.Conn
	var err error
	switch u.Scheme {
	case "https":
		d := &tls.Dialer{
			NetDialer: &net.Dialer{Timeout: connectTimeout},
			Config: &tls.Config{
				ServerName: u.Hostname(),
				NextProtos: []string{http2.NextProtoTLS},
				MinVersion: tls.VersionTLS12,
			},
		}
		conn, err = d.DialContext(dialCtx, "tcp", addr)
	default:
		d := &net.Dialer{Timeout: connectTimeout}
		conn, err = d.DialContext(dialCtx, "tcp", addr)
	}
	if err != nil {
		terr := classifyTransportError(err)
		if terr.Code == CodeTimeout {
			// A deadline during dial is a connection timeout, not a
			// request timeout.
			terr = NewError(CodeConnectTimeout, "connection timed out").WithCause(err)
		}
		return nil, terr
	}

	t := &http2.Transport{AllowHTTP: u.Scheme != "https"}
	cc, err := t.NewClientConn(conn)
	if err != nil {
		_ = conn.Close()
		return nil, classifyTransportError(err)
	}

	return &session{conn: conn, cc: cc}, nil
}

// roundTrip sends the request over this session.
func (s *session) roundTrip(req *http.Request) (*http.Response, error) {
	return s.cc.RoundTrip(req)
}

// Close tears the session down.
func (s *session) Close() {
	_ = s.cc.Close()
	_ = s.conn.Close()
}

// originAddr returns host:port for the URL, defaulting the port by scheme.
func originAddr(u *url.URL) string {
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	return net.JoinHostPort(host, port)
}
