package accesshub

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/accesshub/internal/flows"
)

// Refresh rotates refreshToken and issues a new access token. The presented
// refresh token stops working once rotation commits; when two requests race
// on the same token exactly one succeeds.
//
// Every rejected token yields ErrUnauthorized, including one that was
// already rotated away (reuse is audited and counted).
func (e *Engine) Refresh(ctx context.Context, userID, refreshToken string, meta ClientMeta) (result RefreshResult, err error) {
	if !e.ready() {
		return RefreshResult{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Refresh")
	defer func() { endSpan(span, err) }()

	meta = metaFrom(ctx, meta)
	userID = strings.TrimSpace(userID)

	res := e.flows.Refresh(ctx, flows.RefreshInput{
		UserID:       userID,
		RefreshToken: refreshToken,
		UserAgent:    meta.UserAgent,
		IP:           meta.IP,
	})
	fields := auditFields{userID: userID, meta: meta}

	switch res.Failure {
	case flows.RefreshFailureNone:
	case flows.RefreshFailureRateLimited:
		e.metricInc(MetricRefreshRateLimited)
		e.emitAudit(ctx, AuditRefreshRateLimited, false, fields, ErrRateLimited)
		return RefreshResult{}, ErrRateLimited
	case flows.RefreshFailureReuse:
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricRefreshReuseDetected)
		e.logger.WarnContext(ctx, "accesshub: rotated refresh token presented again", "user_id", userID)
		e.emitAudit(ctx, AuditRefreshReuseDetected, false, fields, errRefreshReuse)
		return RefreshResult{}, ErrUnauthorized
	case flows.RefreshFailureValidate, flows.RefreshFailureInvalid:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditRefreshInvalid, false, fields, ErrUnauthorized)
		return RefreshResult{}, ErrUnauthorized
	default:
		e.metricInc(MetricRefreshFailure)
		return RefreshResult{}, e.unavailable(ctx, "refresh", res.Err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, AuditRefreshSuccess, true, fields, nil)
	return RefreshResult{UserID: res.UserID, Tokens: tokensOf(res.Tokens)}, nil
}

// Logout revokes one refresh token. Unknown, foreign and already revoked
// tokens succeed, so the call is idempotent; only missing fields fail.
// The access token issued alongside stays valid until it expires; use
// LogoutSession to drop it as well.
func (e *Engine) Logout(ctx context.Context, userID, refreshToken string) error {
	return e.LogoutSession(ctx, userID, refreshToken, "")
}

// LogoutSession is Logout that also revokes accessToken when it is non-empty
// and belongs to userID. Invalid or foreign access tokens are ignored.
func (e *Engine) LogoutSession(ctx context.Context, userID, refreshToken, accessToken string) (err error) {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Logout")
	defer func() { endSpan(span, err) }()

	userID = strings.TrimSpace(userID)
	if err := e.validator.required("userId", userID, "refreshToken", refreshToken); err != nil {
		return err
	}
	if err := e.flows.Logout(ctx, flows.LogoutInput{
		UserID:       userID,
		RefreshToken: refreshToken,
		AccessToken:  strings.TrimSpace(accessToken),
	}); err != nil {
		return ErrInvalidInput
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, AuditLogout, true, auditFields{userID: userID, meta: metaFrom(ctx, ClientMeta{})}, nil)
	return nil
}

// LogoutAll revokes every refresh token and every access token of userID.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (result LogoutAllResult, err error) {
	if !e.ready() {
		return LogoutAllResult{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "LogoutAll")
	defer func() { endSpan(span, err) }()

	userID = strings.TrimSpace(userID)
	if err := e.validator.required("userId", userID); err != nil {
		return LogoutAllResult{}, err
	}

	res, ferr := e.flows.LogoutAll(ctx, userID)
	if ferr != nil {
		if errors.Is(ferr, flows.ErrMissingFields) {
			return LogoutAllResult{}, ErrInvalidInput
		}
		return LogoutAllResult{}, e.unavailable(ctx, "logout_all", ferr)
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, AuditLogoutAll, true, auditFields{
		userID: userID,
		meta:   metaFrom(ctx, ClientMeta{}),
		metadata: func() map[string]string {
			return map[string]string{
				"refresh_revoked": itoa(res.RefreshRevoked),
				"access_revoked":  itoa(res.AccessRevoked),
			}
		},
	}, nil)
	return LogoutAllResult{RefreshRevoked: res.RefreshRevoked, AccessRevoked: res.AccessRevoked}, nil
}
