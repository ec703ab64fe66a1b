package accesshub

import (
	"context"
	"time"
)

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	RedisAvailable bool
	RedisLatency   time.Duration
}

// Health pings Redis and reports the round-trip time.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.redis == nil {
		return HealthStatus{}
	}

	start := time.Now()
	err := e.redis.Ping(ctx).Err()
	return HealthStatus{
		RedisAvailable: err == nil,
		RedisLatency:   time.Since(start),
	}
}

// LoginAttempts returns the failed-login counter for email within the
// current cooldown window.
func (e *Engine) LoginAttempts(ctx context.Context, email string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	email = normalizeEmail(email)
	if email == "" {
		return 0, nil
	}
	n, err := e.rateLimiter.GetLoginAttempts(ctx, email)
	if err != nil {
		return 0, e.unavailable(ctx, "login_attempts", err)
	}
	return n, nil
}
