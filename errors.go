package accesshub

import (
	"errors"
	"strings"
)

// Public error taxonomy. Every engine operation returns one of these
// (possibly wrapped); match with errors.Is.
var (
	// ErrInvalidInput means the request failed validation. The concrete
	// error is usually a *ValidationError.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials is returned by Login for an unknown email or a
	// wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized covers every rejected token, code or unknown caller.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict is returned by Register when the email is already taken.
	ErrConflict = errors.New("conflict")
	// ErrDeliveryFailed means an OTP was issued but the mailer failed.
	ErrDeliveryFailed = errors.New("otp delivery failed")
	// ErrNotFound is returned by ResendOTP for an unknown user.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited means a login, OTP or refresh budget is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrEngineNotReady is returned by methods of a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrUnavailable means a backing store could not be reached.
	ErrUnavailable = errors.New("backend unavailable")
)

// Credential store sentinels. CredentialStore implementations return these
// so the engine can tell "absent" from "broken".
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

var (
	errBuilderUsed   = errors.New("builder already used")
	errRedisRequired = errors.New("redis client required")
	errStoreRequired = errors.New("credential store required")
	errMailerMissing = errors.New("OTP enabled but no mailer configured")
)

// FieldError is one failed validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError lists the fields that failed validation. It matches
// ErrInvalidInput under errors.Is.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrInvalidInput.Error()
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = "field '" + f.Field + "' " + f.Message
	}
	return ErrInvalidInput.Error() + ": " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
