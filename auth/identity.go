package auth

import "time"

// Identity represents an authenticated principal extracted from a
// verified token.
type Identity struct {
	// Principal is the unique identifier (the sub claim).
	Principal string

	// Issuer is the iss claim.
	Issuer string

	// Audience is the aud claim, normalized to a slice.
	Audience []string

	// Claims contains the raw claims from the token payload.
	Claims map[string]any

	// ExpiresAt is when the token expires (zero when no exp claim).
	ExpiresAt time.Time

	// IssuedAt is when the token was issued (zero when no iat claim).
	IssuedAt time.Time
}

// IsExpired checks if the identity has expired.
func (id *Identity) IsExpired() bool {
	if id.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(id.ExpiresAt)
}

// HasAudience checks if the identity's audience contains target.
func (id *Identity) HasAudience(target string) bool {
	for _, aud := range id.Audience {
		if aud == target {
			return true
		}
	}
	return false
}
