package accesshub

import (
	"context"
	"time"
)

// UserRecord is a stored account as returned by a [CredentialStore].
// Email is stored lower-cased.
type UserRecord struct {
	UserID       string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// NewUser is the input to [CredentialStore.Create]. The engine assigns the
// id and hashes the password before calling the store.
type NewUser struct {
	UserID       string
	Email        string
	Name         string
	PasswordHash string
}

// CredentialStore is the user persistence collaborator. Implementations
// must return [ErrUserNotFound] for absent users and [ErrUserExists] when
// Create hits a duplicate email; any other error is treated as the store
// being unavailable.
//
//	Adapters: userstore/postgres, userstore/memory
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (UserRecord, error)
	FindByID(ctx context.Context, userID string) (UserRecord, error)
	Create(ctx context.Context, u NewUser) (UserRecord, error)
}

// PasswordHashUpdater is optionally implemented by a [CredentialStore] to
// let the engine re-hash passwords stored with outdated argon2 parameters.
type PasswordHashUpdater interface {
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
}

// Mailer delivers one-time passcodes out of band.
//
//	Adapters: notify.KafkaMailer, notify.LogMailer, notify.BreakerMailer
type Mailer interface {
	SendOTP(ctx context.Context, address, code string) error
}

// ClientMeta is request metadata recorded with refresh tokens and audit
// events.
type ClientMeta struct {
	UserAgent string
	IP        string
}

// RegisterRequest is the input to [Engine.Register]. Password length limits
// come from Config.Account and Config.Password.
type RegisterRequest struct {
	Name      string `json:"name" validate:"max=200"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required"`
	UserAgent string `json:"-"`
	IP        string `json:"-"`
}

// RegisterResult carries the new account's identity and an initial access
// token. No refresh token is issued at registration.
type RegisterResult struct {
	Identity        Identity
	AccessToken     string
	AccessExpiresAt time.Time
}

// LoginRequest is the input to [Engine.Login].
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required"`
	UserAgent string `json:"-"`
	IP        string `json:"-"`
}

// LoginState is where a login ended up.
type LoginState int

const (
	// LoginAuthenticated means tokens were issued.
	LoginAuthenticated LoginState = iota
	// LoginAwaitingOTP means a code was sent and [Engine.VerifyOTP] must
	// be called to finish.
	LoginAwaitingOTP
)

func (s LoginState) String() string {
	switch s {
	case LoginAuthenticated:
		return "authenticated"
	case LoginAwaitingOTP:
		return "awaiting_otp"
	default:
		return "unknown"
	}
}

// TokenPair is a signed access token and the opaque refresh secret issued
// with it.
type TokenPair struct {
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    string
}

// LoginResult is returned by [Engine.Login] and [Engine.VerifyOTP]. Tokens
// and Identity are populated only when State is LoginAuthenticated.
type LoginResult struct {
	State    LoginState
	UserID   string
	Identity Identity
	Tokens   TokenPair
}

// OTPChallenge describes a freshly sent code.
type OTPChallenge struct {
	UserID    string
	ExpiresAt time.Time
}

// RefreshResult is returned by [Engine.Refresh].
type RefreshResult struct {
	UserID string
	Tokens TokenPair
}

// LogoutAllResult reports how many records LogoutAll revoked.
type LogoutAllResult struct {
	RefreshRevoked int
	AccessRevoked  int
}

// Identity is the public view of an account.
type Identity struct {
	UserID string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// SecurityEventType labels entries returned by [Engine.SecurityEvents].
type SecurityEventType string

const (
	SecurityEventIssued  SecurityEventType = "Refresh token issued"
	SecurityEventRevoked SecurityEventType = "Session revoked"
	SecurityEventRotated SecurityEventType = "Token rotated"
)

// SecurityEvent is one derived session-history entry.
type SecurityEvent struct {
	Type      SecurityEventType `json:"type"`
	At        time.Time         `json:"at"`
	UserAgent string            `json:"userAgent,omitempty"`
	IP        string            `json:"ip,omitempty"`
}

// AuthResult is returned by [Engine.VerifyAccessToken].
type AuthResult struct {
	UserID    string
	ExpiresAt time.Time
}
