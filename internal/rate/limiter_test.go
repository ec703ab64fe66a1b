package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*miniredis.Miniredis, *Limiter) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, New(rdb, cfg)
}

func TestLoginLimitBlocksAfterBudget(t *testing.T) {
	_, l := newTestLimiter(t, Config{MaxLoginAttempts: 3, LoginWindow: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "a@example.com", ""); err != nil {
			t.Fatalf("attempt %d: unexpected %v", i, err)
		}
		if err := l.IncrementLogin(ctx, "a@example.com", ""); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}
	if err := l.IncrementLogin(ctx, "a@example.com", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckLogin(ctx, "a@example.com", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected check to fail, got %v", err)
	}

	n, err := l.GetLoginAttempts(ctx, "A@example.com")
	if err != nil || n != 4 {
		t.Fatalf("expected 4 attempts, got %d (%v)", n, err)
	}
}

func TestLoginLimitResetAndWindowExpiry(t *testing.T) {
	mr, l := newTestLimiter(t, Config{MaxLoginAttempts: 1, LoginWindow: time.Minute, EnableIPThrottle: true})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "a@example.com", "10.0.0.1")
	_ = l.IncrementLogin(ctx, "a@example.com", "10.0.0.1")
	if err := l.CheckLogin(ctx, "a@example.com", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limit, got %v", err)
	}
	if err := l.ResetLogin(ctx, "a@example.com", "10.0.0.1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := l.CheckLogin(ctx, "a@example.com", "10.0.0.1"); err != nil {
		t.Fatalf("expected reset to clear limit, got %v", err)
	}

	_ = l.IncrementLogin(ctx, "b@example.com", "10.0.0.2")
	_ = l.IncrementLogin(ctx, "b@example.com", "10.0.0.2")
	mr.FastForward(2 * time.Minute)
	if err := l.CheckLogin(ctx, "b@example.com", "10.0.0.2"); err != nil {
		t.Fatalf("expected window expiry to clear limit, got %v", err)
	}
}

func TestIPThrottleSpansAccounts(t *testing.T) {
	_, l := newTestLimiter(t, Config{MaxLoginAttempts: 2, LoginWindow: time.Minute, EnableIPThrottle: true})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "a@example.com", "10.0.0.9")
	_ = l.IncrementLogin(ctx, "b@example.com", "10.0.0.9")
	_ = l.IncrementLogin(ctx, "c@example.com", "10.0.0.9")

	if err := l.CheckLogin(ctx, "d@example.com", "10.0.0.9"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ip throttle, got %v", err)
	}
	if err := l.CheckLogin(ctx, "d@example.com", "10.0.0.10"); err != nil {
		t.Fatalf("other ip should pass, got %v", err)
	}
}

func TestOTPAttemptLimit(t *testing.T) {
	_, l := newTestLimiter(t, Config{MaxOTPAttempts: 2, OTPAttemptWindow: time.Minute})
	ctx := context.Background()

	if err := l.CheckOTP(ctx, "u1"); err != nil {
		t.Fatalf("fresh user limited: %v", err)
	}
	_ = l.IncrementOTP(ctx, "u1")
	if err := l.CheckOTP(ctx, "u1"); err != nil {
		t.Fatalf("one failure should pass: %v", err)
	}
	_ = l.IncrementOTP(ctx, "u1")
	if err := l.CheckOTP(ctx, "u1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limit after budget, got %v", err)
	}
	if err := l.ResetOTP(ctx, "u1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := l.CheckOTP(ctx, "u1"); err != nil {
		t.Fatalf("expected reset, got %v", err)
	}
}

func TestResendAndRefreshBudgets(t *testing.T) {
	_, l := newTestLimiter(t, Config{
		MaxOTPResends:      2,
		OTPResendWindow:    time.Minute,
		MaxRefreshAttempts: 1,
		RefreshWindow:      time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.CheckResend(ctx, "u1"); err != nil {
			t.Fatalf("resend %d: %v", i, err)
		}
	}
	if err := l.CheckResend(ctx, "u1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected resend limit, got %v", err)
	}

	if err := l.CheckRefresh(ctx, "u1"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := l.CheckRefresh(ctx, "u1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected refresh limit, got %v", err)
	}
}

func TestDisabledLimitsNeverTouchRedis(t *testing.T) {
	mr, l := newTestLimiter(t, Config{})
	ctx := context.Background()
	mr.SetError("down")

	if err := l.IncrementLogin(ctx, "a@example.com", "1.1.1.1"); err != nil {
		t.Fatalf("disabled login limit: %v", err)
	}
	if err := l.CheckResend(ctx, "u1"); err != nil {
		t.Fatalf("disabled resend limit: %v", err)
	}
	if err := l.CheckRefresh(ctx, "u1"); err != nil {
		t.Fatalf("disabled refresh limit: %v", err)
	}
}

func TestBackendFailureIsWrapped(t *testing.T) {
	mr, l := newTestLimiter(t, Config{MaxLoginAttempts: 1, LoginWindow: time.Minute})
	mr.SetError("down")

	err := l.CheckLogin(context.Background(), "a@example.com", "")
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
