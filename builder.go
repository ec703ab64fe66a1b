package accesshub

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	internalaudit "github.com/MrEthical07/accesshub/internal/audit"
	"github.com/MrEthical07/accesshub/internal/flows"
	"github.com/MrEthical07/accesshub/internal/rate"
	"github.com/MrEthical07/accesshub/internal/stores"
	"github.com/MrEthical07/accesshub/jwt"
	"github.com/MrEthical07/accesshub/password"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrEthical07/accesshub"

// Builder assembles an [Engine]. Configure it once, call Build, and discard
// it; a Builder cannot be reused.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store          CredentialStore
	mailer         Mailer
	keys           jwt.KeyProvider
	logger         *slog.Logger
	auditSink      AuditSink
	tracerProvider trace.TracerProvider
	now            func() time.Time

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration. cfg is deep-copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing every ledger and rate limiter. Any
// go-redis client works: single node, cluster, sentinel or ring.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the user persistence collaborator.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithMailer sets OTP delivery. Required when Config.OTP.Enabled is true.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithKeyProvider injects signing keys, taking precedence over
// Config.JWT.PrivateKey. The provider's Method must match
// Config.JWT.SigningMethod.
func (b *Builder) WithKeyProvider(p jwt.KeyProvider) *Builder {
	b.keys = p
	return b
}

// WithLogger sets the logger for non-fatal backend failures. Defaults to
// slog.Default().
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets where audit events go when Config.Audit.Enabled is
// set. Defaults to a [SlogSink] on the engine logger.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithTracerProvider sets the OpenTelemetry provider for engine spans.
// Defaults to the global provider.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithClock overrides the time source for token issuance, ledger expiry and
// audit timestamps. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the access-verification latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errRedisRequired
	}
	if b.store == nil {
		return nil, errStoreRequired
	}
	if cfg.OTP.Enabled && b.mailer == nil {
		return nil, errMailerMissing
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	// -------- HASHERS --------
	passwordHash, err := password.NewArgon2(password.Config{
		Memory:         cfg.Password.Memory,
		Time:           cfg.Password.Time,
		Parallelism:    cfg.Password.Parallelism,
		SaltLength:     cfg.Password.SaltLength,
		KeyLength:      cfg.Password.KeyLength,
		MaxSecretBytes: cfg.Password.MaxBytes,
	})
	if err != nil {
		return nil, err
	}
	secretHash, err := password.NewArgon2(password.Config{
		Memory:      cfg.Secret.Memory,
		Time:        cfg.Secret.Time,
		Parallelism: cfg.Secret.Parallelism,
		SaltLength:  cfg.Secret.SaltLength,
		KeyLength:   cfg.Secret.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	// -------- SIGNING KEYS --------
	keys, keySource, err := b.resolveKeys(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Security.ProductionMode && keySource == jwt.KeySourceGenerated {
		return nil, errors.New("ProductionMode requires configured signing keys")
	}
	codec, err := jwt.NewCodec(jwt.Config{
		Issuer:       cfg.JWT.Issuer,
		Audience:     cfg.JWT.Audience,
		Leeway:       cfg.JWT.Leeway,
		RequireIAT:   cfg.JWT.RequireIAT,
		MaxFutureIAT: cfg.JWT.MaxFutureIAT,
		Now:          now,
	}, keys)
	if err != nil {
		return nil, err
	}

	// -------- LEDGERS --------
	opts := stores.Options{Prefix: cfg.Storage.RedisPrefix, Now: now}
	accessLedger := stores.NewAccessLedger(b.redis, codec, secretHash, opts)
	refreshLedger := stores.NewRefreshLedger(b.redis, secretHash, stores.RefreshConfig{
		Options:          opts,
		HistoryRetention: cfg.Refresh.HistoryRetention,
		DetectReuse:      cfg.Refresh.DetectReuse,
	})
	otpLedger := stores.NewOTPLedger(b.redis, secretHash, stores.OTPConfig{
		Options: opts,
		Digits:  cfg.OTP.Digits,
	})

	limiter := rate.New(b.redis, rate.Config{
		Prefix:             cfg.Storage.RedisPrefix,
		EnableIPThrottle:   cfg.RateLimit.EnableIPThrottle,
		MaxLoginAttempts:   cfg.RateLimit.MaxLoginAttempts,
		LoginWindow:        cfg.RateLimit.LoginCooldown,
		MaxOTPAttempts:     cfg.RateLimit.MaxOTPAttempts,
		OTPAttemptWindow:   cfg.RateLimit.OTPAttemptWindow,
		MaxOTPResends:      cfg.RateLimit.MaxOTPResends,
		OTPResendWindow:    cfg.RateLimit.OTPResendWindow,
		MaxRefreshAttempts: cfg.RateLimit.MaxRefreshAttempts,
		RefreshWindow:      cfg.RateLimit.RefreshWindow,
	})

	sink := b.auditSink
	if sink == nil {
		sink = NewSlogSink(logger)
	}

	engine := &Engine{
		config:       cloneConfig(cfg),
		logger:       logger,
		tracer:       tp.Tracer(tracerName),
		now:          now,
		redis:        b.redis,
		store:        b.store,
		mailer:       b.mailer,
		keys:         keys,
		keySource:    keySource,
		codec:        codec,
		passwordHash: passwordHash,
		secretHash:   secretHash,
		access:       accessLedger,
		refresh:      refreshLedger,
		otp:          otpLedger,
		rateLimiter:  limiter,
		validator:    newRequestValidator(cfg),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			Logger:     logger,
		}, sink),
		metrics: NewMetrics(cfg.Metrics),
	}
	engine.flows = flows.New(engine.buildFlowDeps())

	b.built = true
	return engine, nil
}

func (b *Builder) resolveKeys(cfg Config) (jwt.KeyProvider, jwt.KeySource, error) {
	method := jwt.SigningMethod(strings.ToLower(cfg.JWT.SigningMethod))
	if b.keys != nil {
		if b.keys.Method() != method {
			return nil, "", errors.New("key provider method does not match JWT SigningMethod")
		}
		if ks, ok := b.keys.(*jwt.KeySet); ok {
			return ks, ks.Source(), nil
		}
		return b.keys, jwt.KeySourceConfigured, nil
	}
	if len(cfg.JWT.PrivateKey) > 0 {
		ks, err := jwt.LoadKeySet(method, cfg.JWT.KeyID, cfg.JWT.PrivateKey, cfg.JWT.VerifyKeys)
		if err != nil {
			return nil, "", err
		}
		return ks, jwt.KeySourceConfigured, nil
	}
	ks, err := jwt.GenerateKeySet(method, cfg.JWT.KeyID)
	if err != nil {
		return nil, "", err
	}
	return ks, jwt.KeySourceGenerated, nil
}

func (e *Engine) buildFlowDeps() flows.Deps {
	users := credentialUsers{store: e.store}
	warn := func(ctx context.Context, msg string, args ...any) {
		e.logger.WarnContext(ctx, msg, args...)
	}

	issueAccess := func(ctx context.Context, userID string) (string, time.Time, error) {
		issued, err := e.access.Issue(ctx, userID, e.config.JWT.AccessTTL)
		if err != nil {
			return "", time.Time{}, err
		}
		return issued.Token, issued.ExpiresAt, nil
	}
	issueTokens := flows.NewTokenIssuer(issueAccess, e.refresh, e.config.Refresh.TTL)

	var send func(ctx context.Context, address, code string) error
	if e.mailer != nil {
		send = e.mailer.SendOTP
	}

	var updateHash func(ctx context.Context, userID, hash string) error
	if updater, ok := e.store.(PasswordHashUpdater); ok {
		updateHash = updater.UpdatePasswordHash
	}

	otpDeps := flows.OTPDeps{
		Ledger:       e.otp,
		Channel:      stores.ChannelEmail,
		TTL:          e.config.OTP.TTL,
		Users:        users,
		UserNotFound: ErrUserNotFound,
		Send:         send,
		RateLimiter:  e.rateLimiter,
		IssueTokens:  issueTokens,
		Warn:         warn,
	}

	return flows.Deps{
		Register: flows.RegisterDeps{
			Validate: func(in flows.RegisterInput) error {
				return e.validator.register(RegisterRequest{
					Name:     in.Name,
					Email:    in.Email,
					Password: in.Password,
				})
			},
			HashPassword: e.passwordHash.Hash,
			NewUserID:    uuid.NewString,
			Users:        users,
			UserExists:   ErrUserExists,
			IssueAccess:  issueAccess,
		},
		Login: flows.LoginDeps{
			OTPEnabled:             e.config.OTP.Enabled,
			PasswordUpgradeOnLogin: e.config.Password.UpgradeOnLogin,
			Validate: func(in flows.LoginInput) error {
				return e.validator.login(LoginRequest{Email: in.Email, Password: in.Password})
			},
			Users:                users,
			UserNotFound:         ErrUserNotFound,
			VerifyPassword:       e.passwordHash.Matches,
			PasswordNeedsUpgrade: e.passwordHash.NeedsUpgrade,
			HashPassword:         e.passwordHash.Hash,
			UpdatePasswordHash:   updateHash,
			RateLimiter:          e.rateLimiter,
			IssueTokens:          issueTokens,
			Warn:                 warn,
		},
		OTP: otpDeps,
		Refresh: flows.RefreshDeps{
			Ledger:      e.refresh,
			TTL:         e.config.Refresh.TTL,
			RateLimiter: e.rateLimiter,
			IssueAccess: issueAccess,
		},
		Logout: flows.LogoutDeps{
			Refresh: e.refresh,
			Access:  e.access,
			Warn:    warn,
		},
		Events: flows.EventsDeps{
			Ledger: e.refresh,
			Limit:  e.config.Events.Limit,
		},
		Validate: flows.ValidateDeps{
			Ledger: e.access,
		},
	}
}
