package accesshub

import (
	"context"
	"testing"
)

func TestHealthReportsRedisState(t *testing.T) {
	env := newTestEnv(t, testConfig())

	if h := env.engine.Health(context.Background()); !h.RedisAvailable {
		t.Fatal("expected redis to be available")
	}

	env.mr.Close()
	if h := env.engine.Health(context.Background()); h.RedisAvailable {
		t.Fatal("expected redis to be reported unavailable")
	}
}

func TestLoginAttemptsCountsFailures(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	env.register(t, "Alice", "alice@example.com", "secret-pass")

	for i := 0; i < 2; i++ {
		_, _ = env.engine.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "wrong-pass"})
	}

	n, err := env.engine.LoginAttempts(ctx, "Alice@Example.com")
	if err != nil {
		t.Fatalf("LoginAttempts failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}
}
