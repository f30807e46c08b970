// Package secret resolves sensitive configuration values from the
// process environment.
//
// Endpoint configuration strings (the JWT public key PEM, listen host,
// issuer and audience values) may reference environment variables with
// `${VAR}` syntax. ExpandEnvStrict performs the substitution and fails
// loudly when a referenced variable is absent, so misconfiguration is
// caught at construction time rather than on the first request.
package secret
