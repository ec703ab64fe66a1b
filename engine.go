package accesshub

import (
	"context"
	"log/slog"
	"strings"
	"time"

	internalaudit "github.com/MrEthical07/accesshub/internal/audit"
	"github.com/MrEthical07/accesshub/internal/flows"
	"github.com/MrEthical07/accesshub/internal/rate"
	"github.com/MrEthical07/accesshub/internal/stores"
	"github.com/MrEthical07/accesshub/jwt"
	"github.com/MrEthical07/accesshub/password"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Engine runs the session lifecycle: registration, login with an optional
// OTP step, access verification, refresh rotation and logout.
//
// Engine is safe for concurrent use. All cross-request coordination happens
// in Redis; the engine holds no per-user state in memory.
type Engine struct {
	config Config
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time

	redis  redis.UniversalClient
	store  CredentialStore
	mailer Mailer

	keys      jwt.KeyProvider
	keySource jwt.KeySource
	codec     *jwt.Codec

	passwordHash *password.Argon2
	secretHash   *password.Argon2

	access      *stores.AccessLedger
	refresh     *stores.RefreshLedger
	otp         *stores.OTPLedger
	rateLimiter *rate.Limiter

	validator *requestValidator
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	flows     flows.Service
}

// Close drains the audit dispatcher. It does not close the Redis client or
// the credential store.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports events discarded because the audit buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the in-process counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.flows.Initialized()
}

func (e *Engine) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return e.tracer.Start(ctx, "accesshub."+name)
}

// endSpan records the public outcome of an operation on span. Only
// taxonomy errors are attached; backend detail stays in the logs.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("accesshub.outcome", string(auditErrorCode(err))))
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.String("accesshub.outcome", "ok"))
	}
	span.End()
}

// unavailable logs the underlying failure and returns the public error.
func (e *Engine) unavailable(ctx context.Context, op string, err error) error {
	e.logger.WarnContext(ctx, "accesshub: backend failure",
		slog.String("op", op),
		slog.Any("error", err),
	)
	return ErrUnavailable
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// identityOf builds the public identity. A missing name falls back to the
// local part of the email address.
func identityOf(u flows.User) Identity {
	name := strings.TrimSpace(u.Name)
	if name == "" {
		name = u.Email
		if at := strings.IndexByte(name, '@'); at >= 0 {
			name = name[:at]
		}
	}
	return Identity{UserID: u.ID, Name: name, Email: u.Email}
}

func tokensOf(t flows.TokenPair) TokenPair {
	return TokenPair{
		AccessToken:     t.AccessToken,
		AccessExpiresAt: t.AccessExpiresAt,
		RefreshToken:    t.RefreshToken,
	}
}
