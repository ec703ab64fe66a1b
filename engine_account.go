package accesshub

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/accesshub/internal/flows"
	"github.com/MrEthical07/accesshub/password"
)

// Register creates an account and returns its identity with an initial
// access token. The email is stored lower-cased.
//
// Errors: a *ValidationError (matching ErrInvalidInput), ErrConflict when
// the email is taken, ErrUnavailable for store or ledger failures.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (result RegisterResult, err error) {
	if !e.ready() {
		return RegisterResult{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Register")
	defer func() { endSpan(span, err) }()

	meta := metaFrom(ctx, ClientMeta{UserAgent: req.UserAgent, IP: req.IP})
	email := normalizeEmail(req.Email)

	res := e.flows.Register(ctx, flows.RegisterInput{
		Name:      strings.TrimSpace(req.Name),
		Email:     email,
		Password:  req.Password,
		UserAgent: meta.UserAgent,
		IP:        meta.IP,
	})

	switch res.Failure {
	case flows.RegisterFailureNone:
	case flows.RegisterFailureValidate:
		return RegisterResult{}, res.Err
	case flows.RegisterFailureDuplicate:
		e.metricInc(MetricRegisterDuplicate)
		e.emitAudit(ctx, AuditRegisterDuplicate, false, auditFields{meta: meta}, ErrConflict)
		return RegisterResult{}, ErrConflict
	case flows.RegisterFailureHash:
		if verr := passwordHashFieldError(res.Err); verr != nil {
			return RegisterResult{}, verr
		}
		return RegisterResult{}, e.unavailable(ctx, "register.hash", res.Err)
	default:
		err := e.unavailable(ctx, "register", res.Err)
		e.emitAudit(ctx, AuditRegisterFailure, false, auditFields{userID: res.User.ID, meta: meta}, err)
		return RegisterResult{}, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, AuditRegisterSuccess, true, auditFields{userID: res.User.ID, meta: meta}, nil)

	return RegisterResult{
		Identity:        identityOf(res.User),
		AccessToken:     res.AccessToken,
		AccessExpiresAt: res.AccessExpiresAt,
	}, nil
}

// passwordHashFieldError reports hasher input rejections as field errors,
// or nil when err is not one.
func passwordHashFieldError(err error) *ValidationError {
	switch {
	case errors.Is(err, password.ErrSecretEmpty):
		return &ValidationError{Fields: []FieldError{{Field: "password", Rule: "required", Message: "is required"}}}
	case errors.Is(err, password.ErrSecretTooLong):
		return &ValidationError{Fields: []FieldError{{Field: "password", Rule: "max", Message: "is too long"}}}
	default:
		return nil
	}
}

// WhoAmI returns the identity of userID, typically the subject of a
// verified access token. Unknown users yield ErrUnauthorized.
func (e *Engine) WhoAmI(ctx context.Context, userID string) (identity Identity, err error) {
	if !e.ready() {
		return Identity{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "WhoAmI")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(userID) == "" {
		return Identity{}, ErrUnauthorized
	}
	rec, err := e.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Identity{}, ErrUnauthorized
		}
		return Identity{}, e.unavailable(ctx, "whoami", err)
	}
	return identityOf(userOf(rec)), nil
}
