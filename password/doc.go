// Package password implements the argon2id secret hasher used for passwords,
// refresh-token secrets, access-token identifiers and OTP codes.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters so the
// caller can re-hash a password on the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve secrets. Callers supply plaintext and receive hashes.
//   - Enforce password policy. Minimum lengths live in the engine.
//   - Import any other accesshub package.
package password
