package internaldefs

import (
	"github.com/MrEthical07/accesshub"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   accesshub.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   accesshub.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: accesshub.MetricLoginSuccess, Name: "accesshub_login_success_total", Help: "Logins that issued tokens."},
	{ID: accesshub.MetricLoginFailure, Name: "accesshub_login_failure_total", Help: "Logins rejected for invalid credentials."},
	{ID: accesshub.MetricLoginRateLimited, Name: "accesshub_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: accesshub.MetricLoginOTPRequired, Name: "accesshub_login_otp_required_total", Help: "Logins that require an OTP step."},
	{ID: accesshub.MetricOTPIssued, Name: "accesshub_otp_issued_total", Help: "One-time passcodes issued."},
	{ID: accesshub.MetricOTPResend, Name: "accesshub_otp_resend_total", Help: "One-time passcode resends."},
	{ID: accesshub.MetricOTPVerifySuccess, Name: "accesshub_otp_verify_success_total", Help: "Accepted one-time passcodes."},
	{ID: accesshub.MetricOTPVerifyFailure, Name: "accesshub_otp_verify_failure_total", Help: "Rejected one-time passcodes."},
	{ID: accesshub.MetricOTPRateLimited, Name: "accesshub_otp_rate_limited_total", Help: "Rate-limited OTP verifications and resends."},
	{ID: accesshub.MetricOTPDeliveryFailed, Name: "accesshub_otp_delivery_failed_total", Help: "One-time passcodes the mailer failed to deliver."},
	{ID: accesshub.MetricRefreshSuccess, Name: "accesshub_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: accesshub.MetricRefreshFailure, Name: "accesshub_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: accesshub.MetricRefreshReuseDetected, Name: "accesshub_refresh_reuse_detected_total", Help: "Presentations of already-rotated refresh tokens."},
	{ID: accesshub.MetricRefreshRateLimited, Name: "accesshub_refresh_rate_limited_total", Help: "Rate-limited refresh attempts."},
	{ID: accesshub.MetricLogout, Name: "accesshub_logout_total", Help: "Single-session logouts."},
	{ID: accesshub.MetricLogoutAll, Name: "accesshub_logout_all_total", Help: "Logout-everywhere operations."},
	{ID: accesshub.MetricRegisterSuccess, Name: "accesshub_register_success_total", Help: "Created accounts."},
	{ID: accesshub.MetricRegisterDuplicate, Name: "accesshub_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: accesshub.MetricAccessVerifySuccess, Name: "accesshub_access_verify_success_total", Help: "Accepted access tokens."},
	{ID: accesshub.MetricAccessVerifyFailure, Name: "accesshub_access_verify_failure_total", Help: "Rejected access tokens."},
}

// HistogramDefs lists every histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: accesshub.MetricValidateLatency, Name: "accesshub_access_verify_latency_seconds", Help: "Access token verification latency."},
}

// HistogramUpperBounds are the bucket bounds in seconds, excluding +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, including +Inf, for exporters
// that cannot carry labels.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
