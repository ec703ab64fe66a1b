package flows

import (
	"context"
	"time"
)

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Register RegisterDeps
	Login    LoginDeps
	OTP      OTPDeps
	Refresh  RefreshDeps
	Logout   LogoutDeps
	Events   EventsDeps
	Validate ValidateDeps
}

// User is the subset of a credential record the flows read.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
}

// NewUser is the input for [Users.Create].
type NewUser struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
}

// Users is the credential store seen from the flows. Sentinel errors for
// "not found" and "already exists" are supplied separately in each deps set.
type Users interface {
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	Create(ctx context.Context, u NewUser) (User, error)
}

// ClientMeta is request metadata recorded on refresh records.
type ClientMeta struct {
	UserAgent string
	IP        string
}

// TokenPair is an access token plus the refresh secret issued alongside it.
type TokenPair struct {
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    string
}

// WarnFunc reports a non-fatal failure the flow recovered from.
type WarnFunc func(ctx context.Context, msg string, args ...any)

// TokenIssuer mints a fresh access + refresh pair for userID.
type TokenIssuer func(ctx context.Context, userID string, meta ClientMeta) (TokenPair, error)
