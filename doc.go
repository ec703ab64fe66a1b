// Package accesshub is a credential and session authentication engine.
//
// An [Engine] registers users against a [CredentialStore], checks passwords
// with argon2id, optionally gates login behind an emailed one-time passcode,
// and issues short-lived signed access tokens together with opaque refresh
// tokens that rotate on every use. Every issued credential is recorded in
// Redis, so access tokens can be revoked before they expire and a rotated
// refresh token is rejected if it is presented again.
//
// Build an engine with [New]:
//
//	engine, err := accesshub.New().
//		WithConfig(accesshub.DefaultConfig()).
//		WithRedis(rdb).
//		WithCredentialStore(users).
//		WithMailer(mailer).
//		Build()
//
// Engine methods are safe for concurrent use. Failures surface as one of the
// exported sentinel errors ([ErrInvalidInput], [ErrInvalidCredentials],
// [ErrUnauthorized], [ErrConflict], [ErrDeliveryFailed], [ErrNotFound],
// [ErrRateLimited], [ErrUnavailable]); match them with errors.Is.
package accesshub
