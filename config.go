package accesshub

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the complete engine configuration. Start from [DefaultConfig]
// and override fields; [Builder.Build] validates and deep-copies it.
type Config struct {
	JWT       JWTConfig
	Password  PasswordConfig
	Secret    SecretHashConfig
	Refresh   RefreshConfig
	OTP       OTPConfig
	Account   AccountConfig
	RateLimit RateLimitConfig
	Events    EventsConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Storage   StorageConfig
	Security  SecurityConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access token signing and verification.
//
// When PrivateKey is empty and no key provider is supplied to the builder,
// a key pair is generated at build time. Generated keys are process-local:
// tokens minted by one instance do not verify on another.
type JWTConfig struct {
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	SigningMethod string // "ed25519" (default) or "rs256"
	KeyID         string
	PrivateKey    []byte            // PEM (PKCS#8 / PKCS#1) or raw ed25519
	VerifyKeys    map[string][]byte // retired public keys by kid, for roll-over
	Leeway        time.Duration
	RequireIAT    bool
	MaxFutureIAT  time.Duration
}

/*
====================================
HASHING CONFIG
====================================
*/

// PasswordConfig tunes the argon2id parameters used for user passwords.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MaxBytes       int
	UpgradeOnLogin bool
}

// SecretHashConfig tunes the argon2id parameters used for token identifiers,
// refresh secrets and OTP codes. These are hashed and compared on every
// request, so the defaults are lighter than PasswordConfig.
type SecretHashConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

/*
====================================
SESSION CONFIG
====================================
*/

// RefreshConfig controls refresh token lifetime and rotation behavior.
type RefreshConfig struct {
	TTL              time.Duration
	DetectReuse      bool
	HistoryRetention time.Duration
}

// OTPConfig controls the second-factor step between password check and
// token issuance.
type OTPConfig struct {
	Enabled bool
	TTL     time.Duration
	Digits  int
}

// AccountConfig controls registration policy.
type AccountConfig struct {
	MinPasswordLength int
	RequireName       bool
}

// RateLimitConfig sets fixed-window budgets. A zero Max* disables that
// limiter.
type RateLimitConfig struct {
	EnableIPThrottle   bool
	MaxLoginAttempts   int
	LoginCooldown      time.Duration
	MaxOTPAttempts     int
	OTPAttemptWindow   time.Duration
	MaxOTPResends      int
	OTPResendWindow    time.Duration
	MaxRefreshAttempts int
	RefreshWindow      time.Duration
}

// EventsConfig bounds SecurityEvents output.
type EventsConfig struct {
	Limit int
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// StorageConfig controls the Redis key layout.
type StorageConfig struct {
	RedisPrefix string
}

// SecurityConfig holds posture switches.
type SecurityConfig struct {
	ProductionMode bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a development-friendly configuration: generated
// signing keys, OTP disabled, audit and metrics off.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			Issuer:        "https://auth.local",
			Audience:      "https://api.local",
			AccessTTL:     time.Hour,
			SigningMethod: "ed25519",
			KeyID:         "default",
			MaxFutureIAT:  10 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MaxBytes:       1024,
			UpgradeOnLogin: true,
		},
		Secret: SecretHashConfig{
			Memory:      16 * 1024,
			Time:        1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		},
		Refresh: RefreshConfig{
			TTL:              7 * 24 * time.Hour,
			DetectReuse:      true,
			HistoryRetention: 30 * 24 * time.Hour,
		},
		OTP: OTPConfig{
			Enabled: false,
			TTL:     5 * time.Minute,
			Digits:  6,
		},
		Account: AccountConfig{
			MinPasswordLength: 6,
			RequireName:       true,
		},
		RateLimit: RateLimitConfig{
			EnableIPThrottle:   false,
			MaxLoginAttempts:   5,
			LoginCooldown:      15 * time.Minute,
			MaxOTPAttempts:     5,
			OTPAttemptWindow:   10 * time.Minute,
			MaxOTPResends:      3,
			OTPResendWindow:    10 * time.Minute,
			MaxRefreshAttempts: 20,
			RefreshWindow:      time.Minute,
		},
		Events: EventsConfig{
			Limit: 20,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Storage: StorageConfig{
			RedisPrefix: "ah",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	// JWT
	if strings.TrimSpace(c.JWT.Issuer) == "" {
		return errors.New("JWT Issuer must not be empty")
	}
	if strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be empty")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	switch c.JWT.SigningMethod {
	case "ed25519", "rs256":
	default:
		return fmt.Errorf("unsupported JWT signing method %q", c.JWT.SigningMethod)
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.MaxFutureIAT < 0 || c.JWT.MaxFutureIAT > 24*time.Hour {
		return errors.New("JWT MaxFutureIAT must be between 0 and 24h")
	}
	if len(c.JWT.VerifyKeys) > 0 && len(c.JWT.PrivateKey) == 0 {
		return errors.New("JWT VerifyKeys require a configured PrivateKey")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxBytes <= 0 {
		return errors.New("Password MaxBytes must be > 0")
	}

	// Secret hashing
	if c.Secret.Memory < 8*1024 {
		return errors.New("Secret Memory must be >= 8192 KB")
	}
	if c.Secret.Time < 1 || c.Secret.Parallelism < 1 {
		return errors.New("Secret Time and Parallelism must be >= 1")
	}
	if c.Secret.SaltLength < 16 || c.Secret.KeyLength < 16 {
		return errors.New("Secret SaltLength and KeyLength must be >= 16")
	}

	// Refresh
	if c.Refresh.TTL <= 0 {
		return errors.New("Refresh TTL must be > 0")
	}
	if c.Refresh.HistoryRetention < 0 {
		return errors.New("Refresh HistoryRetention must be >= 0")
	}

	// OTP
	if c.OTP.Enabled {
		if c.OTP.TTL <= 0 {
			return errors.New("OTP TTL must be > 0")
		}
		if c.OTP.TTL > time.Hour {
			return errors.New("OTP TTL must be <= 1h")
		}
		if c.OTP.Digits < 6 || c.OTP.Digits > 10 {
			return errors.New("OTP Digits must be between 6 and 10")
		}
	}

	// Account
	if c.Account.MinPasswordLength < 1 {
		return errors.New("Account MinPasswordLength must be >= 1")
	}
	if c.Account.MinPasswordLength > c.Password.MaxBytes {
		return errors.New("Account MinPasswordLength must be <= Password MaxBytes")
	}

	// Rate limits
	if err := validateWindow("login", c.RateLimit.MaxLoginAttempts, c.RateLimit.LoginCooldown); err != nil {
		return err
	}
	if err := validateWindow("otp", c.RateLimit.MaxOTPAttempts, c.RateLimit.OTPAttemptWindow); err != nil {
		return err
	}
	if err := validateWindow("otp resend", c.RateLimit.MaxOTPResends, c.RateLimit.OTPResendWindow); err != nil {
		return err
	}
	if err := validateWindow("refresh", c.RateLimit.MaxRefreshAttempts, c.RateLimit.RefreshWindow); err != nil {
		return err
	}

	// Events
	if c.Events.Limit <= 0 {
		return errors.New("Events Limit must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Storage
	if strings.TrimSpace(c.Storage.RedisPrefix) == "" {
		return errors.New("Storage RedisPrefix must not be empty")
	}
	if strings.ContainsAny(c.Storage.RedisPrefix, "{}") {
		return errors.New("Storage RedisPrefix must not contain hash-tag braces")
	}

	// Production posture
	if c.Security.ProductionMode {
		if c.Password.Memory < 64*1024 {
			return errors.New("ProductionMode requires Password Memory >= 65536 KB")
		}
		if c.Password.Time < 2 {
			return errors.New("ProductionMode requires Password Time >= 2")
		}
		if c.RateLimit.MaxLoginAttempts == 0 {
			return errors.New("ProductionMode requires login rate limiting")
		}
	}

	return nil
}

func validateWindow(name string, max int, window time.Duration) error {
	if max < 0 {
		return fmt.Errorf("RateLimit %s max must be >= 0", name)
	}
	if max > 0 && window <= 0 {
		return fmt.Errorf("RateLimit %s window must be > 0 when limit is enabled", name)
	}
	return nil
}
