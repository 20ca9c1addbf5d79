// Package auth provides bearer-token authentication for the monitor API.
//
// Tokens are HS256-signed JWTs verified against a shared secret from
// configuration. When no secret is configured the monitor API is served
// unauthenticated; health endpoints are always open so external monitors
// can poll them without credentials.
package auth
