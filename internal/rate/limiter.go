package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters. A zero Max* disables the
// corresponding limit.
type Config struct {
	Prefix string

	EnableIPThrottle bool
	MaxLoginAttempts int
	LoginWindow      time.Duration

	MaxOTPAttempts   int
	OTPAttemptWindow time.Duration

	MaxOTPResends   int
	OTPResendWindow time.Duration

	MaxRefreshAttempts int
	RefreshWindow      time.Duration
}

// Limiter enforces fixed-window limits on login failures, OTP failures,
// OTP resends and refresh calls using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if strings.TrimSpace(cfg.Prefix) == "" {
		cfg.Prefix = "ah"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *Limiter) loginUserKey(email string) string {
	return l.config.Prefix + ":rl:login:" + strings.ToLower(email)
}

func (l *Limiter) loginIPKey(ip string) string {
	return l.config.Prefix + ":rl:ip:" + ip
}

func (l *Limiter) otpKey(userID string) string {
	return l.config.Prefix + ":rl:otp:" + userID
}

func (l *Limiter) resendKey(userID string) string {
	return l.config.Prefix + ":rl:resend:" + userID
}

func (l *Limiter) refreshKey(userID string) string {
	return l.config.Prefix + ":rl:refresh:" + userID
}

// CheckLogin checks whether the email+IP pair is within the failed-login
// budget. Returns ErrRateLimited if not.
func (l *Limiter) CheckLogin(ctx context.Context, email, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	if err := l.checkCounter(ctx, l.loginUserKey(email), l.config.MaxLoginAttempts); err != nil {
		return err
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, l.loginIPKey(ip), l.config.MaxLoginAttempts); err != nil {
			return err
		}
	}

	return nil
}

// IncrementLogin records a failed login attempt for the email+IP pair.
func (l *Limiter) IncrementLogin(ctx context.Context, email, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, l.loginUserKey(email), l.config.LoginWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxLoginAttempts) {
		return ErrRateLimited
	}

	if l.config.EnableIPThrottle && ip != "" {
		count, err = l.incrementWithTTL(ctx, l.loginIPKey(ip), l.config.LoginWindow)
		if err != nil {
			return err
		}
		if count > int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}

	return nil
}

// ResetLogin clears the failed-login counters after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, email, ip string) error {
	keys := []string{l.loginUserKey(email)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, l.loginIPKey(ip))
	}

	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// CheckOTP reports ErrRateLimited once a user has exhausted their failed
// OTP verification budget.
func (l *Limiter) CheckOTP(ctx context.Context, userID string) error {
	if l.config.MaxOTPAttempts <= 0 {
		return nil
	}
	return l.checkCounter(ctx, l.otpKey(userID), l.config.MaxOTPAttempts-1)
}

// IncrementOTP records a failed OTP verification.
func (l *Limiter) IncrementOTP(ctx context.Context, userID string) error {
	if l.config.MaxOTPAttempts <= 0 {
		return nil
	}
	_, err := l.incrementWithTTL(ctx, l.otpKey(userID), l.config.OTPAttemptWindow)
	return err
}

// ResetOTP clears the failed OTP counter after a successful verification.
func (l *Limiter) ResetOTP(ctx context.Context, userID string) error {
	if err := l.redis.Del(ctx, l.otpKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// CheckResend counts an OTP resend and reports ErrRateLimited when the
// window budget is exceeded.
func (l *Limiter) CheckResend(ctx context.Context, userID string) error {
	if l.config.MaxOTPResends <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, l.resendKey(userID), l.config.OTPResendWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxOTPResends) {
		return ErrRateLimited
	}
	return nil
}

// CheckRefresh counts a refresh call and reports ErrRateLimited when the
// window budget is exceeded.
func (l *Limiter) CheckRefresh(ctx context.Context, userID string) error {
	if l.config.MaxRefreshAttempts <= 0 {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, l.refreshKey(userID), l.config.RefreshWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRefreshAttempts) {
		return ErrRateLimited
	}

	return nil
}

// GetLoginAttempts returns the current failed-login counter for an email.
// Missing keys return zero and do not reveal account existence.
func (l *Limiter) GetLoginAttempts(ctx context.Context, email string) (int, error) {
	count, err := l.redis.Get(ctx, l.loginUserKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count > int64(maxAttempts) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
