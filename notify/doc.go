// Package notify delivers one-time passcodes on behalf of the engine.
//
// [KafkaMailer] publishes an otp.requested event for a downstream
// notification service, [LogMailer] writes the code to a slog logger for
// local development, and [BreakerMailer] wraps either one in a circuit
// breaker so a failing transport fails fast.
package notify
