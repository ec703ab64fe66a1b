package accesshub

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/accesshub/internal/flows"
)

// VerifyAccessToken checks an access token's signature and claims and
// confirms a live ledger record backs it. Any rejection yields
// ErrUnauthorized.
func (e *Engine) VerifyAccessToken(ctx context.Context, token string) (result AuthResult, err error) {
	if !e.ready() {
		return AuthResult{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "VerifyAccessToken")
	defer func() { endSpan(span, err) }()

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	res := e.flows.Validate(ctx, strings.TrimSpace(token))
	switch res.Failure {
	case flows.ValidateFailureNone:
	case flows.ValidateFailureBackend:
		e.metricInc(MetricAccessVerifyFailure)
		return AuthResult{}, e.unavailable(ctx, "verify_access", res.Err)
	default:
		e.metricInc(MetricAccessVerifyFailure)
		return AuthResult{}, ErrUnauthorized
	}

	e.metricInc(MetricAccessVerifySuccess)
	return AuthResult{UserID: res.UserID, ExpiresAt: res.ExpiresAt}, nil
}

// SecurityEvents derives a session history for userID from its newest
// refresh records: one "issued" entry per record plus "revoked" and
// "rotated" entries where they apply, newest first and capped at
// Config.Events.Limit.
func (e *Engine) SecurityEvents(ctx context.Context, userID string) (events []SecurityEvent, err error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "SecurityEvents")
	defer func() { endSpan(span, err) }()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUnauthorized
	}

	raw, ferr := e.flows.SecurityEvents(ctx, userID)
	if ferr != nil {
		return nil, e.unavailable(ctx, "security_events", ferr)
	}

	out := make([]SecurityEvent, len(raw))
	for i, ev := range raw {
		out[i] = SecurityEvent{
			Type:      SecurityEventType(ev.Kind),
			At:        ev.At,
			UserAgent: ev.UserAgent,
			IP:        ev.IP,
		}
	}
	return out, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
