package accesshub

import (
	"strings"
	"testing"
	"time"
)

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

func TestLintDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	codes := cfg.Lint().Codes()

	for _, want := range []string{"generated_signing_key", "ip_throttle_disabled", "audit_disabled"} {
		if !containsCode(codes, want) {
			t.Errorf("expected %q for default config, got %v", want, codes)
		}
	}
	if containsCode(codes, "rate_limits_disabled") {
		t.Error("default config should not report rate_limits_disabled")
	}
	if high := cfg.Lint().BySeverity(LintHigh); len(high) != 0 {
		t.Fatalf("default config should have no high findings, got %v", high.Codes())
	}
}

func TestLintHighSecurityConfig(t *testing.T) {
	cfg := HighSecurityConfig()
	cfg.JWT.PrivateKey = make([]byte, 64)
	codes := cfg.Lint().Codes()

	unwanted := []string{
		"leeway_large",
		"access_ttl_long",
		"refresh_ttl_long",
		"rate_limits_disabled",
		"otp_unthrottled",
		"ip_throttle_disabled",
		"audit_disabled",
		"generated_signing_key",
		"argon2_memory_low",
		"password_min_short",
	}
	for _, code := range unwanted {
		if containsCode(codes, code) {
			t.Errorf("HighSecurityConfig should not produce %q", code)
		}
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("HighSecurityConfig should validate: %v", err)
	}
}

func TestLintFindings(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		code     string
		severity LintSeverity
	}{
		{"leeway", func(c *Config) { c.JWT.Leeway = 90 * time.Second }, "leeway_large", LintWarn},
		{"access ttl", func(c *Config) { c.JWT.AccessTTL = 2 * time.Hour }, "access_ttl_long", LintWarn},
		{"refresh ttl", func(c *Config) { c.Refresh.TTL = 60 * 24 * time.Hour }, "refresh_ttl_long", LintWarn},
		{"all limiters off", func(c *Config) {
			c.RateLimit.MaxLoginAttempts = 0
			c.RateLimit.MaxOTPAttempts = 0
			c.RateLimit.MaxRefreshAttempts = 0
		}, "rate_limits_disabled", LintHigh},
		{"otp unthrottled", func(c *Config) {
			c.OTP.Enabled = true
			c.RateLimit.MaxOTPAttempts = 0
		}, "otp_unthrottled", LintHigh},
		{"reuse detection", func(c *Config) { c.Refresh.DetectReuse = false }, "refresh_reuse_detection_off", LintWarn},
		{"short password", func(c *Config) { c.Account.MinPasswordLength = 4 }, "password_min_short", LintInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			var found *LintWarning
			for _, w := range cfg.Lint() {
				if w.Code == tt.code {
					w := w
					found = &w
				}
			}
			if found == nil {
				t.Fatalf("expected %q finding", tt.code)
			}
			if found.Severity != tt.severity {
				t.Fatalf("expected severity %s, got %s", tt.severity, found.Severity)
			}
		})
	}
}

func TestLintAsError(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Lint().AsError(LintHigh); err != nil {
		t.Fatalf("expected no high findings, got %v", err)
	}

	cfg.RateLimit.MaxLoginAttempts = 0
	cfg.RateLimit.MaxOTPAttempts = 0
	cfg.RateLimit.MaxRefreshAttempts = 0
	err := cfg.Lint().AsError(LintHigh)
	if err == nil {
		t.Fatal("expected an error for disabled limiters")
	}
	if !strings.Contains(err.Error(), "rate_limits_disabled") {
		t.Fatalf("expected code in error, got %v", err)
	}
}
