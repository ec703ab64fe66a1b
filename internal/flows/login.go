package flows

import (
	"context"
	"errors"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureValidate
	LoginFailureRateLimited
	LoginFailureUserNotFound
	LoginFailurePasswordMismatch
	LoginFailureLookup
	LoginFailureIssueOTP
	LoginFailureDelivery
	LoginFailureIssueTokens
)

// LoginInput is the normalized login request.
type LoginInput struct {
	Email     string
	Password  string
	UserAgent string
	IP        string
}

// LoginResult carries either the issued tokens, the pending-OTP marker, or
// failure metadata.
type LoginResult struct {
	Failure     LoginFailureKind
	Err         error
	User        User
	AwaitingOTP bool
	Tokens      TokenPair
}

// LoginRateLimiter is the failed-login budget.
type LoginRateLimiter interface {
	CheckLogin(ctx context.Context, email, ip string) error
	IncrementLogin(ctx context.Context, email, ip string) error
	ResetLogin(ctx context.Context, email, ip string) error
}

// LoginDeps captures login dependencies. When OTPEnabled is set the OTP deps
// passed to [RunLogin] are used to issue and send the second factor.
type LoginDeps struct {
	OTPEnabled             bool
	PasswordUpgradeOnLogin bool

	Validate             func(LoginInput) error
	Users                Users
	UserNotFound         error
	VerifyPassword       func(password, encoded string) bool
	PasswordNeedsUpgrade func(string) (bool, error)
	HashPassword         func(string) (string, error)
	UpdatePasswordHash   func(ctx context.Context, userID, hash string) error
	RateLimiter          LoginRateLimiter
	IssueTokens          TokenIssuer
	Warn                 WarnFunc
}

// RunLogin checks credentials and then either issues tokens or starts the
// OTP step. Unknown users and wrong passwords are reported with distinct
// failure kinds so the caller can audit them, but both carry the same public
// meaning.
func RunLogin(ctx context.Context, in LoginInput, deps LoginDeps, otp OTPDeps) LoginResult {
	if deps.Warn == nil {
		deps.Warn = func(context.Context, string, ...any) {}
	}
	if deps.Validate != nil {
		if err := deps.Validate(in); err != nil {
			return LoginResult{Failure: LoginFailureValidate, Err: err}
		}
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckLogin(ctx, in.Email, in.IP); err != nil {
			if isRateLimited(err) {
				return LoginResult{Failure: LoginFailureRateLimited, Err: err}
			}
			return LoginResult{Failure: LoginFailureLookup, Err: err}
		}
	}

	user, err := deps.Users.FindByEmail(ctx, in.Email)
	if err != nil {
		if deps.UserNotFound != nil && !errors.Is(err, deps.UserNotFound) {
			return LoginResult{Failure: LoginFailureLookup, Err: err}
		}
		if limited := recordLoginFailure(ctx, in, deps); limited != nil {
			return LoginResult{Failure: LoginFailureRateLimited, Err: limited}
		}
		return LoginResult{Failure: LoginFailureUserNotFound, Err: err}
	}

	if !deps.VerifyPassword(in.Password, user.PasswordHash) {
		if limited := recordLoginFailure(ctx, in, deps); limited != nil {
			return LoginResult{Failure: LoginFailureRateLimited, Err: limited, User: user}
		}
		return LoginResult{Failure: LoginFailurePasswordMismatch, User: user}
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.ResetLogin(ctx, in.Email, in.IP); err != nil {
			deps.Warn(ctx, "accesshub: login limiter reset failed", "error", err)
		}
	}

	if deps.PasswordUpgradeOnLogin && deps.UpdatePasswordHash != nil {
		upgradePasswordHash(ctx, user, in.Password, deps)
	}

	if deps.OTPEnabled {
		kind, err := issueAndSendOTP(ctx, user, otp)
		if err != nil {
			switch kind {
			case ResendFailureDelivery:
				return LoginResult{Failure: LoginFailureDelivery, Err: err, User: user}
			default:
				return LoginResult{Failure: LoginFailureIssueOTP, Err: err, User: user}
			}
		}
		return LoginResult{User: user, AwaitingOTP: true}
	}

	tokens, err := deps.IssueTokens(ctx, user.ID, ClientMeta{UserAgent: in.UserAgent, IP: in.IP})
	if err != nil {
		return LoginResult{Failure: LoginFailureIssueTokens, Err: err, User: user}
	}
	return LoginResult{User: user, Tokens: tokens}
}

// recordLoginFailure bumps the limiter and returns a non-nil error only when
// the failure pushed the caller over budget.
func recordLoginFailure(ctx context.Context, in LoginInput, deps LoginDeps) error {
	if deps.RateLimiter == nil {
		return nil
	}
	err := deps.RateLimiter.IncrementLogin(ctx, in.Email, in.IP)
	if err == nil {
		return nil
	}
	if isRateLimited(err) {
		return err
	}
	deps.Warn(ctx, "accesshub: login limiter increment failed", "error", err)
	return nil
}

func upgradePasswordHash(ctx context.Context, user User, password string, deps LoginDeps) {
	needsUpgrade, err := deps.PasswordNeedsUpgrade(user.PasswordHash)
	if err != nil || !needsUpgrade {
		return
	}
	upgraded, err := deps.HashPassword(password)
	if err != nil {
		deps.Warn(ctx, "accesshub: password hash upgrade generation failed", "user_id", user.ID)
		return
	}
	if err := deps.UpdatePasswordHash(ctx, user.ID, upgraded); err != nil {
		deps.Warn(ctx, "accesshub: password hash upgrade update failed", "user_id", user.ID)
	}
}
