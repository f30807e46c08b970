package auth

import "errors"

// Sentinel errors for token verification. Each maps to a stable reason
// string via Reason, so callers can surface which check failed without
// string-matching error text.
var (
	// ErrMalformedToken indicates the token is not three base64url
	// segments separated by dots.
	ErrMalformedToken = errors.New("auth: malformed token")

	// ErrUnexpectedAlgorithm indicates the token header algorithm is not RS256.
	ErrUnexpectedAlgorithm = errors.New("auth: unexpected signing algorithm")

	// ErrBadSignature indicates the RSA-SHA256 signature does not verify.
	ErrBadSignature = errors.New("auth: invalid signature")

	// ErrTokenExpired indicates the exp claim is in the past.
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrTokenNotYetValid indicates the nbf claim is in the future.
	ErrTokenNotYetValid = errors.New("auth: token not yet valid")

	// ErrIssuerMismatch indicates the iss claim does not match the
	// configured issuer.
	ErrIssuerMismatch = errors.New("auth: issuer mismatch")

	// ErrAudienceMismatch indicates the aud claim does not contain the
	// configured audience.
	ErrAudienceMismatch = errors.New("auth: audience mismatch")

	// ErrKeyNotFound indicates the verification key could not be resolved.
	ErrKeyNotFound = errors.New("auth: verification key not found")
)

// Reason strings, one per verification step.
const (
	ReasonFormat    = "format"
	ReasonAlgorithm = "algorithm"
	ReasonSignature = "signature"
	ReasonExpired   = "expired"
	ReasonNotBefore = "not_before"
	ReasonIssuer    = "issuer"
	ReasonAudience  = "audience"
	ReasonKey       = "key"
	ReasonUnknown   = "unknown"
)

// Reason maps a verification error to its stable reason string.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMalformedToken):
		return ReasonFormat
	case errors.Is(err, ErrUnexpectedAlgorithm):
		return ReasonAlgorithm
	case errors.Is(err, ErrBadSignature):
		return ReasonSignature
	case errors.Is(err, ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, ErrTokenNotYetValid):
		return ReasonNotBefore
	case errors.Is(err, ErrIssuerMismatch):
		return ReasonIssuer
	case errors.Is(err, ErrAudienceMismatch):
		return ReasonAudience
	case errors.Is(err, ErrKeyNotFound):
		return ReasonKey
	default:
		return ReasonUnknown
	}
}
