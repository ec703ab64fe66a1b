// Package flows contains pure-function orchestrators for every Engine
// operation.
//
// Each flow function (RunRegister, RunLogin, RunRefresh, etc.) accepts a
// typed dependency struct and returns a result carrying a failure kind. The
// root engine maps failure kinds onto its public error taxonomy, metrics and
// audit events, which keeps this package free of presentation concerns and
// testable with in-memory fakes.
//
// # Architecture boundaries
//
// Flow functions coordinate the credential store, the three ledgers, the
// rate limiter and the mailer. They do NOT own any of these resources;
// ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import accesshub (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency interfaces.
package flows
