package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func jwksServer(t *testing.T, hits *atomic.Int64, fail *atomic.Bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		pub := testKey.PublicKey
		doc := jwksDocument{Keys: []jwkEntry{{
			Kty: "RSA",
			Kid: "key-1",
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}))
}

func TestJWKSKeyProvider_FetchAndCache(t *testing.T) {
	var hits atomic.Int64
	var fail atomic.Bool
	srv := jwksServer(t, &hits, &fail)
	defer srv.Close()

	p := NewJWKSKeyProvider(JWKSConfig{URL: srv.URL, RefreshTTL: time.Hour})

	key, err := p.GetKey(context.Background(), "key-1")
	if err != nil {
		t.Fatalf("GetKey = %v", err)
	}
	if key.N.Cmp(testKey.PublicKey.N) != 0 {
		t.Error("fetched key does not match the published key")
	}

	// Cached: no second fetch.
	if _, err := p.GetKey(context.Background(), "key-1"); err != nil {
		t.Fatalf("cached GetKey = %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("endpoint hits = %d, want 1 (cache)", hits.Load())
	}
}

func TestJWKSKeyProvider_EmptyKeyIDSelectsSoleKey(t *testing.T) {
	var hits atomic.Int64
	var fail atomic.Bool
	srv := jwksServer(t, &hits, &fail)
	defer srv.Close()

	p := NewJWKSKeyProvider(JWKSConfig{URL: srv.URL})
	if _, err := p.GetKey(context.Background(), ""); err != nil {
		t.Fatalf("GetKey(\"\") = %v, want sole key", err)
	}
}

func TestJWKSKeyProvider_UnknownKeyID(t *testing.T) {
	var hits atomic.Int64
	var fail atomic.Bool
	srv := jwksServer(t, &hits, &fail)
	defer srv.Close()

	p := NewJWKSKeyProvider(JWKSConfig{URL: srv.URL})
	if _, err := p.GetKey(context.Background(), "nope"); err == nil {
		t.Fatal("GetKey(nope) succeeded, want ErrKeyNotFound")
	}
}

func TestJWKSKeyProvider_ServesStaleOnRefreshFailure(t *testing.T) {
	var hits atomic.Int64
	var fail atomic.Bool
	srv := jwksServer(t, &hits, &fail)
	defer srv.Close()

	p := NewJWKSKeyProvider(JWKSConfig{URL: srv.URL, RefreshTTL: time.Nanosecond})

	if _, err := p.GetKey(context.Background(), "key-1"); err != nil {
		t.Fatalf("initial GetKey = %v", err)
	}

	fail.Store(true)
	time.Sleep(time.Millisecond) // let the TTL lapse

	if _, err := p.GetKey(context.Background(), "key-1"); err != nil {
		t.Fatalf("GetKey during outage = %v, want stale key served", err)
	}
}
