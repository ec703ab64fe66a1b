// Package stores provides the Redis-backed ledgers behind token issuance:
// access-token records, refresh-token rotation chains and one-time passcodes.
//
// # Design
//
// Every secret is stored only as an argon2id hash. Lookups therefore scan an
// owner's live records and hash-verify each one; the per-owner indexes keep
// those scans small. State changes that must not race (refresh rotation,
// refresh revocation, OTP consumption) are single Lua scripts that check
// the current state before writing, so the loser of a concurrent call sees
// the already-updated record and fails cleanly. Keys carry the owner id as a
// Redis Cluster hash tag so each script touches one slot.
//
// Expiry is enforced when a record is read. Redis key TTLs only reclaim
// space.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control for ledger records.
// It does NOT decide what a failure means to a caller, enforce rate limits, or
// emit audit events. Those belong to the engine and internal/flows.
//
// # What this package must NOT do
//
//   - Import the accesshub root package.
//   - Log or expose plaintext secrets.
//   - Persist a raw secret, code or token identifier.
package stores
