package accesshub

import (
	"context"
	"errors"
)

// AuditErrorCode is the stable error label written into AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrRefreshReuse       AuditErrorCode = "refresh_reuse"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrDeliveryFailed     AuditErrorCode = "delivery_failed"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// errRefreshReuse is only used to label audit events; callers see
// ErrUnauthorized.
var errRefreshReuse = errors.New("refresh token reuse")

type auditFields struct {
	userID   string
	recordID string
	meta     ClientMeta
	metadata func() map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, f auditFields, err error) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    f.userID,
		RecordID:  f.recordID,
		IP:        f.meta.IP,
		UserAgent: f.meta.UserAgent,
		Success:   success,
	}
	if f.metadata != nil {
		event.Metadata = f.metadata()
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, errRefreshReuse):
		return auditErrRefreshReuse
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrConflict):
		return auditErrDuplicate
	case errors.Is(err, ErrDeliveryFailed):
		return auditErrDeliveryFailed
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	default:
		return auditErrInternal
	}
}
