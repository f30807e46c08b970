package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VerifierConfig configures the token verifier.
type VerifierConfig struct {
	// Keys resolves the RSA public key used for signature verification.
	Keys KeyProvider

	// Issuer is the expected iss claim. Empty disables the check.
	Issuer string

	// Audience is the expected aud claim. Empty disables the check.
	Audience string

	// Leeway is the clock skew tolerated on exp/nbf comparisons.
	// Default: 0
	Leeway time.Duration
}

// Verifier validates RS256 bearer tokens.
//
// Checks run in a fixed order and short-circuit on the first failure:
// format, algorithm, signature, expiration, not-before, issuer,
// audience. Each failure is a distinct sentinel error mapped to a
// stable reason string by Reason. The verifier holds no per-token
// state and is safe for concurrent use.
type Verifier struct {
	config VerifierConfig
}

// NewVerifier creates a new token verifier.
func NewVerifier(config VerifierConfig) *Verifier {
	return &Verifier{config: config}
}

type tokenHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	Typ string `json:"typ"`
}

// Verify validates the compact-form token and returns the authenticated
// identity.
func (v *Verifier) Verify(ctx context.Context, token string) (*Identity, error) {
	// Format: three dot-separated base64url segments.
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, ErrMalformedToken
	}

	headerRaw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrMalformedToken
	}
	var header tokenHeader
	if err := json.Unmarshal(headerRaw, &header); err != nil {
		return nil, ErrMalformedToken
	}

	// Algorithm: RS256 only; reject alg confusion before touching keys.
	if header.Alg != jwt.SigningMethodRS256.Alg() {
		return nil, ErrUnexpectedAlgorithm
	}

	// Signature over header.payload with the configured RSA public key.
	if v.config.Keys == nil {
		return nil, ErrKeyNotFound
	}
	key, err := v.config.Keys.GetKey(ctx, header.Kid)
	if err != nil {
		return nil, ErrKeyNotFound
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, ErrMalformedToken
	}
	if err := jwt.SigningMethodRS256.Verify(parts[0]+"."+parts[1], sig, key); err != nil {
		return nil, ErrBadSignature
	}

	payloadRaw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrMalformedToken
	}
	var claims map[string]any
	if err := json.Unmarshal(payloadRaw, &claims); err != nil {
		return nil, ErrMalformedToken
	}

	now := time.Now()

	// Expiration (exp), seconds since epoch.
	if exp, ok := numericClaim(claims, "exp"); ok {
		if now.Add(-v.config.Leeway).Unix() >= int64(exp) {
			return nil, ErrTokenExpired
		}
	}

	// Not-before (nbf).
	if nbf, ok := numericClaim(claims, "nbf"); ok {
		if now.Add(v.config.Leeway).Unix() < int64(nbf) {
			return nil, ErrTokenNotYetValid
		}
	}

	// Issuer.
	if v.config.Issuer != "" {
		iss, _ := claims["iss"].(string)
		if iss != v.config.Issuer {
			return nil, ErrIssuerMismatch
		}
	}

	// Audience.
	audience := audienceClaim(claims)
	if v.config.Audience != "" {
		if !containsString(audience, v.config.Audience) {
			return nil, ErrAudienceMismatch
		}
	}

	return buildIdentity(claims, audience), nil
}

func buildIdentity(claims map[string]any, audience []string) *Identity {
	id := &Identity{
		Audience: audience,
		Claims:   claims,
	}
	if sub, ok := claims["sub"].(string); ok {
		id.Principal = sub
	}
	if iss, ok := claims["iss"].(string); ok {
		id.Issuer = iss
	}
	if exp, ok := numericClaim(claims, "exp"); ok {
		id.ExpiresAt = time.Unix(int64(exp), 0)
	}
	if iat, ok := numericClaim(claims, "iat"); ok {
		id.IssuedAt = time.Unix(int64(iat), 0)
	}
	return id
}

func numericClaim(claims map[string]any, name string) (float64, bool) {
	switch v := claims[name].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func audienceClaim(claims map[string]any) []string {
	switch v := claims["aud"].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, a := range v {
			if s, ok := a.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
