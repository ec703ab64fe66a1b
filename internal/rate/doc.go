// Package rate provides the Redis-backed fixed-window limits applied around
// login, OTP verification, OTP resend and refresh.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key layout
// under the configured prefix:
//   - rl:login:<email>  failed logins per account
//   - rl:ip:<ip>        failed logins per client IP
//   - rl:otp:<user>     failed OTP verifications
//   - rl:resend:<user>  OTP resends
//   - rl:refresh:<user> refresh calls
//
// # What this package must NOT do
//
//   - Decide what a limit hit means to the caller; the engine maps it.
//   - Be imported outside the accesshub module.
package rate
