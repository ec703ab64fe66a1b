package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/accesshub/internal/rate"
	"github.com/MrEthical07/accesshub/internal/stores"
)

// VerifyOTPFailureKind classifies OTP verification failures.
type VerifyOTPFailureKind int

const (
	VerifyOTPFailureNone VerifyOTPFailureKind = iota
	VerifyOTPFailureValidate
	VerifyOTPFailureRateLimited
	VerifyOTPFailureNotFound
	VerifyOTPFailureExpired
	VerifyOTPFailureMismatch
	VerifyOTPFailureBackend
	VerifyOTPFailureIssueTokens
)

// ResendFailureKind classifies OTP issue/resend failures.
type ResendFailureKind int

const (
	ResendFailureNone ResendFailureKind = iota
	ResendFailureValidate
	ResendFailureUserNotFound
	ResendFailureLookup
	ResendFailureRateLimited
	ResendFailureIssue
	ResendFailureDelivery
)

// VerifyOTPInput is the OTP verification request.
type VerifyOTPInput struct {
	UserID    string
	Code      string
	UserAgent string
	IP        string
}

// VerifyOTPResult carries the issued tokens or failure metadata.
type VerifyOTPResult struct {
	Failure VerifyOTPFailureKind
	Err     error
	Tokens  TokenPair
}

// ResendOTPResult reports the outcome of an explicit resend.
type ResendOTPResult struct {
	Failure   ResendFailureKind
	Err       error
	ExpiresAt time.Time
}

// OTPLedger is the subset of [stores.OTPLedger] the flows use.
type OTPLedger interface {
	Issue(ctx context.Context, ownerID string, ch stores.Channel, ttl time.Duration) (stores.IssuedOTP, error)
	Verify(ctx context.Context, ownerID string, ch stores.Channel, code string) error
}

// OTPRateLimiter bounds failed verifications and resends per user.
type OTPRateLimiter interface {
	CheckOTP(ctx context.Context, userID string) error
	IncrementOTP(ctx context.Context, userID string) error
	ResetOTP(ctx context.Context, userID string) error
	CheckResend(ctx context.Context, userID string) error
}

// OTPDeps captures OTP issue, delivery and verification dependencies.
type OTPDeps struct {
	Ledger       OTPLedger
	Channel      stores.Channel
	TTL          time.Duration
	Users        Users
	UserNotFound error
	Send         func(ctx context.Context, address, code string) error
	RateLimiter  OTPRateLimiter
	IssueTokens  TokenIssuer
	Warn         WarnFunc
}

// RunVerifyOTP checks code against the newest unconsumed OTP for the user
// and issues tokens on success.
func RunVerifyOTP(ctx context.Context, in VerifyOTPInput, deps OTPDeps) VerifyOTPResult {
	if deps.Warn == nil {
		deps.Warn = func(context.Context, string, ...any) {}
	}
	if in.UserID == "" || in.Code == "" {
		return VerifyOTPResult{Failure: VerifyOTPFailureValidate}
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckOTP(ctx, in.UserID); err != nil {
			if isRateLimited(err) {
				return VerifyOTPResult{Failure: VerifyOTPFailureRateLimited, Err: err}
			}
			return VerifyOTPResult{Failure: VerifyOTPFailureBackend, Err: err}
		}
	}

	if err := deps.Ledger.Verify(ctx, in.UserID, deps.Channel, in.Code); err != nil {
		kind := VerifyOTPFailureBackend
		switch {
		case errors.Is(err, stores.ErrNotFound):
			kind = VerifyOTPFailureNotFound
		case errors.Is(err, stores.ErrExpired):
			kind = VerifyOTPFailureExpired
		case errors.Is(err, stores.ErrMismatch):
			kind = VerifyOTPFailureMismatch
		}
		if kind != VerifyOTPFailureBackend && deps.RateLimiter != nil {
			if ierr := deps.RateLimiter.IncrementOTP(ctx, in.UserID); ierr != nil {
				deps.Warn(ctx, "accesshub: otp limiter increment failed", "error", ierr)
			}
		}
		return VerifyOTPResult{Failure: kind, Err: err}
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.ResetOTP(ctx, in.UserID); err != nil {
			deps.Warn(ctx, "accesshub: otp limiter reset failed", "error", err)
		}
	}

	tokens, err := deps.IssueTokens(ctx, in.UserID, ClientMeta{UserAgent: in.UserAgent, IP: in.IP})
	if err != nil {
		return VerifyOTPResult{Failure: VerifyOTPFailureIssueTokens, Err: err}
	}
	return VerifyOTPResult{Tokens: tokens}
}

// RunResendOTP issues and sends a fresh code. Earlier codes stay stored but
// only the newest is ever checked.
func RunResendOTP(ctx context.Context, userID string, deps OTPDeps) ResendOTPResult {
	if userID == "" {
		return ResendOTPResult{Failure: ResendFailureValidate}
	}

	user, err := deps.Users.FindByID(ctx, userID)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			return ResendOTPResult{Failure: ResendFailureUserNotFound, Err: err}
		}
		return ResendOTPResult{Failure: ResendFailureLookup, Err: err}
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckResend(ctx, userID); err != nil {
			if isRateLimited(err) {
				return ResendOTPResult{Failure: ResendFailureRateLimited, Err: err}
			}
			return ResendOTPResult{Failure: ResendFailureIssue, Err: err}
		}
	}

	issued, kind, err := issueAndSend(ctx, user, deps)
	if err != nil {
		return ResendOTPResult{Failure: kind, Err: err}
	}
	return ResendOTPResult{ExpiresAt: issued.ExpiresAt}
}

func issueAndSendOTP(ctx context.Context, user User, deps OTPDeps) (ResendFailureKind, error) {
	_, kind, err := issueAndSend(ctx, user, deps)
	return kind, err
}

// issueAndSend stores a new code before delivery, so a failed send leaves
// the record in place.
func issueAndSend(ctx context.Context, user User, deps OTPDeps) (stores.IssuedOTP, ResendFailureKind, error) {
	issued, err := deps.Ledger.Issue(ctx, user.ID, deps.Channel, deps.TTL)
	if err != nil {
		return stores.IssuedOTP{}, ResendFailureIssue, err
	}
	if err := deps.Send(ctx, user.Email, issued.Code); err != nil {
		return stores.IssuedOTP{}, ResendFailureDelivery, err
	}
	return issued, ResendFailureNone, nil
}

func isRateLimited(err error) bool {
	return errors.Is(err, rate.ErrRateLimited)
}
