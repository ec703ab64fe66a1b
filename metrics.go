package accesshub

import (
	internalmetrics "github.com/MrEthical07/accesshub/internal/metrics"
)

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
type MetricID = internalmetrics.MetricID

const (
	// MetricLoginSuccess counts logins that issued tokens.
	MetricLoginSuccess = internalmetrics.MetricLoginSuccess
	// MetricLoginFailure counts logins rejected for bad credentials.
	MetricLoginFailure = internalmetrics.MetricLoginFailure
	// MetricLoginRateLimited counts logins refused by the attempt limiter.
	MetricLoginRateLimited = internalmetrics.MetricLoginRateLimited
	// MetricLoginOTPRequired counts logins that stopped at the OTP step.
	MetricLoginOTPRequired = internalmetrics.MetricLoginOTPRequired
	// MetricOTPIssued counts OTP codes issued.
	MetricOTPIssued = internalmetrics.MetricOTPIssued
	// MetricOTPResend counts explicit OTP resends.
	MetricOTPResend = internalmetrics.MetricOTPResend
	// MetricOTPVerifySuccess counts accepted OTP codes.
	MetricOTPVerifySuccess = internalmetrics.MetricOTPVerifySuccess
	// MetricOTPVerifyFailure counts rejected OTP codes.
	MetricOTPVerifyFailure = internalmetrics.MetricOTPVerifyFailure
	// MetricOTPRateLimited counts OTP verifications or resends refused by a limiter.
	MetricOTPRateLimited = internalmetrics.MetricOTPRateLimited
	// MetricOTPDeliveryFailed counts mailer failures.
	MetricOTPDeliveryFailed = internalmetrics.MetricOTPDeliveryFailed
	// MetricRefreshSuccess counts successful rotations.
	MetricRefreshSuccess = internalmetrics.MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refresh attempts.
	MetricRefreshFailure = internalmetrics.MetricRefreshFailure
	// MetricRefreshReuseDetected counts presentations of already-rotated refresh tokens.
	MetricRefreshReuseDetected = internalmetrics.MetricRefreshReuseDetected
	// MetricRefreshRateLimited counts refreshes refused by the limiter.
	MetricRefreshRateLimited = internalmetrics.MetricRefreshRateLimited
	// MetricLogout counts single-session logouts.
	MetricLogout = internalmetrics.MetricLogout
	// MetricLogoutAll counts logout-everywhere calls.
	MetricLogoutAll = internalmetrics.MetricLogoutAll
	// MetricRegisterSuccess counts created accounts.
	MetricRegisterSuccess = internalmetrics.MetricRegisterSuccess
	// MetricRegisterDuplicate counts registrations rejected for an existing email.
	MetricRegisterDuplicate = internalmetrics.MetricRegisterDuplicate
	// MetricAccessVerifySuccess counts accepted access tokens.
	MetricAccessVerifySuccess = internalmetrics.MetricAccessVerifySuccess
	// MetricAccessVerifyFailure counts rejected access tokens.
	MetricAccessVerifyFailure = internalmetrics.MetricAccessVerifyFailure
	// MetricValidateLatency is the access-verification latency histogram.
	MetricValidateLatency = internalmetrics.MetricValidateLatency
)

// Metrics holds atomic counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a new [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
