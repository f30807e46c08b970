// Package auth validates RS256 bearer tokens for the RPC endpoint.
//
// The [Verifier] runs a fixed, short-circuiting sequence of checks —
// format, algorithm, signature, expiration, not-before, issuer,
// audience — and fails each with a distinct sentinel error. [Reason]
// maps those errors to the stable reason strings logged and counted by
// the dispatcher.
//
// Verification keys come from a [KeyProvider]: [StaticKeyProvider] for
// a PEM-configured key, or [JWKSKeyProvider] for keys published at a
// JWKS endpoint (cached with TTL, refreshes deduplicated through
// singleflight, stale keys served while the endpoint is unavailable).
//
// The verifier is stateless; a verified token yields an [Identity]
// that the dispatcher injects into handler parameters.
package auth
