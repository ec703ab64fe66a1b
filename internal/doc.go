// Package internal contains helpers private to accesshub: random identifiers,
// refresh secrets and OTP codes.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: step logic for every Engine operation, driven through Deps structs
//   - httpapi: chi handlers exposing the Engine over HTTP
//   - metrics: lock-free counters and latency histograms
//   - rate: Redis-backed fixed-window rate limits
//   - security: security posture report assembly
//   - stores: the Redis access, refresh and OTP ledgers
//
// # What this package must NOT do
//
//   - Export types that appear in the public accesshub API.
//   - Be imported by any package outside the accesshub module.
package internal
