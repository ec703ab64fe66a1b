// Package jwt issues and verifies the short-lived access tokens handed to
// clients after login.
//
// Tokens carry sub, iss, aud, iat, exp and a random jti. They are signed with
// an asymmetric key (Ed25519 or RSA); the key pair is supplied by a
// [KeyProvider] injected at construction, so the codec itself holds no
// process-wide state. Verification is pure: it does not consult the access
// ledger, which is the caller's job.
package jwt
