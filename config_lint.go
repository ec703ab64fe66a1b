package accesshub

import (
	"fmt"
	"strings"
	"time"
)

// LintSeverity ranks a configuration warning.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("LintSeverity(%d)", int(s))
	}
}

// LintWarning is one finding from [Config.Lint]. Unlike Validate, lint
// findings describe legal but questionable settings.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of findings.
type LintResult []LintWarning

// Codes returns the finding codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, len(r))
	for i, w := range r {
		out[i] = w.Code
	}
	return out
}

// BySeverity returns findings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError returns a single error listing every finding at or above min, or
// nil if there are none.
func (r LintResult) AsError(min LintSeverity) error {
	hits := r.BySeverity(min)
	if len(hits) == 0 {
		return nil
	}
	parts := make([]string, len(hits))
	for i, w := range hits {
		parts[i] = w.Severity.String() + " " + w.Code + ": " + w.Message
	}
	return fmt.Errorf("config lint: %s", strings.Join(parts, "; "))
}

// HighSecurityConfig returns DefaultConfig tightened for production-like
// deployments. Signing keys still need to be supplied.
func HighSecurityConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessTTL = 5 * time.Minute
	cfg.JWT.RequireIAT = true
	cfg.Refresh.TTL = 24 * time.Hour
	cfg.OTP.Enabled = true
	cfg.Account.MinPasswordLength = 12
	cfg.RateLimit.EnableIPThrottle = true
	cfg.RateLimit.MaxLoginAttempts = 5
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	cfg.Security.ProductionMode = true
	return cfg
}

// Lint reports legal but risky settings.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, format string, args ...any) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	if c.JWT.Leeway > time.Minute {
		add("leeway_large", LintWarn, "JWT leeway %v exceeds 1m", c.JWT.Leeway)
	}
	if c.JWT.AccessTTL > time.Hour {
		add("access_ttl_long", LintWarn, "access TTL %v exceeds 1h", c.JWT.AccessTTL)
	}
	if c.Refresh.TTL > 30*24*time.Hour {
		add("refresh_ttl_long", LintWarn, "refresh TTL %v exceeds 30d", c.Refresh.TTL)
	}
	if c.RateLimit.MaxLoginAttempts == 0 &&
		c.RateLimit.MaxOTPAttempts == 0 &&
		c.RateLimit.MaxRefreshAttempts == 0 {
		add("rate_limits_disabled", LintHigh, "every rate limiter is disabled")
	}
	if c.OTP.Enabled && c.RateLimit.MaxOTPAttempts == 0 {
		add("otp_unthrottled", LintHigh, "OTP is enabled without an attempt limit; 6-digit codes are guessable")
	}
	if !c.RateLimit.EnableIPThrottle {
		add("ip_throttle_disabled", LintInfo, "login attempts are only limited per account")
	}
	if !c.Refresh.DetectReuse {
		add("refresh_reuse_detection_off", LintWarn, "rotated refresh tokens presented again will not be flagged")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "audit events are not emitted")
	}
	if len(c.JWT.PrivateKey) == 0 {
		add("generated_signing_key", LintWarn, "signing keys are generated per process; tokens do not survive restarts or cross instances")
	}
	if c.Password.Memory < 64*1024 {
		add("argon2_memory_low", LintWarn, "password argon2 memory %d KB is below 64 MB", c.Password.Memory)
	}
	if c.Account.MinPasswordLength < 8 {
		add("password_min_short", LintInfo, "minimum password length %d is below 8", c.Account.MinPasswordLength)
	}

	return ws
}
