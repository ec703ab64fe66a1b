package accesshub

import (
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/accesshub/internal/audit"
)

// AuditEvent is one security-relevant occurrence emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink discards every event.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink forwards events into a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes newline-delimited JSON events.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink logs events through a *slog.Logger.
type SlogSink = internalaudit.SlogSink

// MultiSink fans each event out to several sinks.
type MultiSink = internalaudit.MultiSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}

// Audit event types.
const (
	AuditRegisterSuccess      = "register_success"
	AuditRegisterDuplicate    = "register_duplicate"
	AuditRegisterFailure      = "register_failure"
	AuditLoginSuccess         = "login_success"
	AuditLoginFailure         = "login_failure"
	AuditLoginRateLimited     = "login_rate_limited"
	AuditOTPSent              = "otp_sent"
	AuditOTPDeliveryFailed    = "otp_delivery_failed"
	AuditOTPVerifySuccess     = "otp_verify_success"
	AuditOTPVerifyFailure     = "otp_verify_failure"
	AuditOTPRateLimited       = "otp_rate_limited"
	AuditRefreshSuccess       = "refresh_success"
	AuditRefreshInvalid       = "refresh_invalid"
	AuditRefreshReuseDetected = "refresh_reuse_detected"
	AuditRefreshRateLimited   = "refresh_rate_limited"
	AuditLogout               = "logout"
	AuditLogoutAll            = "logout_all"
)
