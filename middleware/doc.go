// Package middleware adapts accesshub to net/http.
//
//   - [Guard] verifies the bearer access token and stores the result in the
//     request context.
//   - [ClientMeta] records the caller's IP and User-Agent for engine calls.
//
// Authentication decisions are delegated to the engine.
package middleware
