package auth

import (
	"context"
	"crypto/rsa"

	"github.com/golang-jwt/jwt/v5"
)

// KeyProvider retrieves RSA public keys for token verification.
type KeyProvider interface {
	// GetKey returns the key for the given key ID. An empty keyID selects
	// the provider's default key.
	GetKey(ctx context.Context, keyID string) (*rsa.PublicKey, error)
}

// StaticKeyProvider serves a single key parsed from PEM at construction.
type StaticKeyProvider struct {
	key *rsa.PublicKey
}

// NewStaticKeyProvider parses a PEM-encoded RSA public key.
func NewStaticKeyProvider(pemData []byte) (*StaticKeyProvider, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(pemData)
	if err != nil {
		return nil, err
	}
	return &StaticKeyProvider{key: key}, nil
}

// NewStaticKeyProviderFromKey wraps an already-parsed key.
func NewStaticKeyProviderFromKey(key *rsa.PublicKey) *StaticKeyProvider {
	return &StaticKeyProvider{key: key}
}

// GetKey returns the static key regardless of keyID.
func (p *StaticKeyProvider) GetKey(_ context.Context, _ string) (*rsa.PublicKey, error) {
	if p.key == nil {
		return nil, ErrKeyNotFound
	}
	return p.key, nil
}

// Ensure StaticKeyProvider implements KeyProvider
var _ KeyProvider = (*StaticKeyProvider)(nil)
