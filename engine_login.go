package accesshub

import (
	"context"
	"strings"

	"github.com/MrEthical07/accesshub/internal/flows"
)

// Login checks credentials. With OTP disabled it returns tokens directly;
// with OTP enabled it sends a code and returns State LoginAwaitingOTP, and
// the caller finishes with [Engine.VerifyOTP].
//
// Unknown emails and wrong passwords both yield ErrInvalidCredentials.
// ErrDeliveryFailed means the code was stored but could not be sent; a
// [Engine.ResendOTP] may succeed later.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (result LoginResult, err error) {
	if !e.ready() {
		return LoginResult{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Login")
	defer func() { endSpan(span, err) }()

	meta := metaFrom(ctx, ClientMeta{UserAgent: req.UserAgent, IP: req.IP})
	email := normalizeEmail(req.Email)

	res := e.flows.Login(ctx, flows.LoginInput{
		Email:     email,
		Password:  req.Password,
		UserAgent: meta.UserAgent,
		IP:        meta.IP,
	})

	fields := auditFields{
		userID: res.User.ID,
		meta:   meta,
		metadata: func() map[string]string {
			return map[string]string{"identifier": email}
		},
	}

	switch res.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureValidate:
		return LoginResult{}, res.Err
	case flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, AuditLoginRateLimited, false, fields, ErrRateLimited)
		return LoginResult{}, ErrRateLimited
	case flows.LoginFailureUserNotFound, flows.LoginFailurePasswordMismatch:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditLoginFailure, false, fields, ErrInvalidCredentials)
		return LoginResult{}, ErrInvalidCredentials
	case flows.LoginFailureDelivery:
		e.metricInc(MetricOTPIssued)
		e.metricInc(MetricOTPDeliveryFailed)
		e.logger.WarnContext(ctx, "accesshub: otp delivery failed",
			"op", "login", "user_id", res.User.ID, "error", res.Err)
		e.emitAudit(ctx, AuditOTPDeliveryFailed, false, fields, ErrDeliveryFailed)
		return LoginResult{}, ErrDeliveryFailed
	default:
		return LoginResult{}, e.unavailable(ctx, "login", res.Err)
	}

	if res.AwaitingOTP {
		e.metricInc(MetricOTPIssued)
		e.metricInc(MetricLoginOTPRequired)
		e.emitAudit(ctx, AuditOTPSent, true, fields, nil)
		return LoginResult{State: LoginAwaitingOTP, UserID: res.User.ID}, nil
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, AuditLoginSuccess, true, fields, nil)
	return LoginResult{
		State:    LoginAuthenticated,
		UserID:   res.User.ID,
		Identity: identityOf(res.User),
		Tokens:   tokensOf(res.Tokens),
	}, nil
}

// VerifyOTP completes a login that stopped at LoginAwaitingOTP. Only the
// most recently issued unconsumed code for the user is accepted, and only
// once. Every rejected code yields ErrUnauthorized.
func (e *Engine) VerifyOTP(ctx context.Context, userID, code string, meta ClientMeta) (result LoginResult, err error) {
	if !e.ready() {
		return LoginResult{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "VerifyOTP")
	defer func() { endSpan(span, err) }()

	if !e.config.OTP.Enabled {
		return LoginResult{}, ErrUnauthorized
	}
	userID = strings.TrimSpace(userID)
	code = strings.TrimSpace(code)
	if err := e.validator.required("userId", userID, "code", code); err != nil {
		return LoginResult{}, err
	}
	meta = metaFrom(ctx, meta)

	res := e.flows.VerifyOTP(ctx, flows.VerifyOTPInput{
		UserID:    userID,
		Code:      code,
		UserAgent: meta.UserAgent,
		IP:        meta.IP,
	})
	fields := auditFields{userID: userID, meta: meta}

	switch res.Failure {
	case flows.VerifyOTPFailureNone:
	case flows.VerifyOTPFailureRateLimited:
		e.metricInc(MetricOTPRateLimited)
		e.emitAudit(ctx, AuditOTPRateLimited, false, fields, ErrRateLimited)
		return LoginResult{}, ErrRateLimited
	case flows.VerifyOTPFailureValidate,
		flows.VerifyOTPFailureNotFound,
		flows.VerifyOTPFailureExpired,
		flows.VerifyOTPFailureMismatch:
		e.metricInc(MetricOTPVerifyFailure)
		e.emitAudit(ctx, AuditOTPVerifyFailure, false, fields, ErrUnauthorized)
		return LoginResult{}, ErrUnauthorized
	default:
		return LoginResult{}, e.unavailable(ctx, "verify_otp", res.Err)
	}

	e.metricInc(MetricOTPVerifySuccess)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, AuditOTPVerifySuccess, true, fields, nil)

	identity := Identity{UserID: userID}
	if rec, err := e.store.FindByID(ctx, userID); err == nil {
		identity = identityOf(userOf(rec))
	} else {
		e.logger.WarnContext(ctx, "accesshub: identity lookup after otp failed",
			"user_id", userID, "error", err)
	}

	return LoginResult{
		State:    LoginAuthenticated,
		UserID:   userID,
		Identity: identity,
		Tokens:   tokensOf(res.Tokens),
	}, nil
}

// ResendOTP issues and sends a fresh code for userID. Earlier codes are not
// deleted but stop being accepted because only the newest is checked.
//
// Errors: ErrNotFound for an unknown user, ErrDeliveryFailed when the
// mailer fails, ErrRateLimited when the resend budget is spent.
func (e *Engine) ResendOTP(ctx context.Context, userID string) (challenge OTPChallenge, err error) {
	if !e.ready() {
		return OTPChallenge{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "ResendOTP")
	defer func() { endSpan(span, err) }()

	if !e.config.OTP.Enabled {
		return OTPChallenge{}, ErrUnauthorized
	}
	userID = strings.TrimSpace(userID)
	if err := e.validator.required("userId", userID); err != nil {
		return OTPChallenge{}, err
	}

	res := e.flows.ResendOTP(ctx, userID)
	fields := auditFields{userID: userID, meta: metaFrom(ctx, ClientMeta{})}

	switch res.Failure {
	case flows.ResendFailureNone:
	case flows.ResendFailureValidate:
		return OTPChallenge{}, ErrInvalidInput
	case flows.ResendFailureUserNotFound:
		return OTPChallenge{}, ErrNotFound
	case flows.ResendFailureRateLimited:
		e.metricInc(MetricOTPRateLimited)
		e.emitAudit(ctx, AuditOTPRateLimited, false, fields, ErrRateLimited)
		return OTPChallenge{}, ErrRateLimited
	case flows.ResendFailureDelivery:
		e.metricInc(MetricOTPIssued)
		e.metricInc(MetricOTPDeliveryFailed)
		e.logger.WarnContext(ctx, "accesshub: otp delivery failed",
			"op", "resend_otp", "user_id", userID, "error", res.Err)
		e.emitAudit(ctx, AuditOTPDeliveryFailed, false, fields, ErrDeliveryFailed)
		return OTPChallenge{}, ErrDeliveryFailed
	default:
		return OTPChallenge{}, e.unavailable(ctx, "resend_otp", res.Err)
	}

	e.metricInc(MetricOTPIssued)
	e.metricInc(MetricOTPResend)
	e.emitAudit(ctx, AuditOTPSent, true, fields, nil)
	return OTPChallenge{UserID: userID, ExpiresAt: res.ExpiresAt}, nil
}
