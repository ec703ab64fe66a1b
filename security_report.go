package accesshub

import (
	"github.com/MrEthical07/accesshub/internal/security"
)

// SecurityReport is a point-in-time summary of the engine's security
// posture, intended for startup logs and health endpoints.
type SecurityReport = security.Report

// PasswordConfigReport summarises one argon2id parameter set.
type PasswordConfigReport = security.PasswordReport

// SecurityReport derives the posture of e from its frozen configuration.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	cfg := e.config
	return security.BuildReport(security.ReportInput{
		ProductionMode:   cfg.Security.ProductionMode,
		SigningAlgorithm: e.codec.Algorithm(),
		KeySource:        string(e.keySource),
		AccessTTL:        cfg.JWT.AccessTTL,
		RefreshTTL:       cfg.Refresh.TTL,
		OTPEnabled:       cfg.OTP.Enabled,
		OTPTTL:           cfg.OTP.TTL,
		Password: security.PasswordReport{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		},
		Secret: security.PasswordReport{
			Memory:      cfg.Secret.Memory,
			Time:        cfg.Secret.Time,
			Parallelism: cfg.Secret.Parallelism,
			SaltLength:  cfg.Secret.SaltLength,
			KeyLength:   cfg.Secret.KeyLength,
		},
		DetectReuse:        cfg.Refresh.DetectReuse,
		EnableIPThrottle:   cfg.RateLimit.EnableIPThrottle,
		MaxLoginAttempts:   cfg.RateLimit.MaxLoginAttempts,
		LoginCooldown:      cfg.RateLimit.LoginCooldown,
		MaxOTPAttempts:     cfg.RateLimit.MaxOTPAttempts,
		MaxRefreshAttempts: cfg.RateLimit.MaxRefreshAttempts,
		AuditEnabled:       cfg.Audit.Enabled,
		MetricsEnabled:     cfg.Metrics.Enabled,
	})
}
