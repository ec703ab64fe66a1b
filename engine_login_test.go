package accesshub

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/accesshub/password"
)

func TestLoginWithoutOTPIssuesTokens(t *testing.T) {
	env := newTestEnv(t, testConfig())
	reg := env.register(t, "Alice", "alice@example.com", "secret-pass")

	res := env.login(t, "ALICE@example.com", "secret-pass")
	if res.State != LoginAuthenticated {
		t.Fatalf("expected authenticated, got %v", res.State)
	}
	if res.UserID != reg.Identity.UserID || res.Identity != reg.Identity {
		t.Fatalf("unexpected identity %+v", res.Identity)
	}
	if res.Tokens.AccessToken == "" || res.Tokens.RefreshToken == "" {
		t.Fatal("expected access and refresh tokens")
	}
	if !res.Tokens.AccessExpiresAt.Equal(env.clock.Now().Add(testConfig().JWT.AccessTTL)) {
		t.Fatalf("unexpected access expiry %v", res.Tokens.AccessExpiresAt)
	}

	auth, err := env.engine.VerifyAccessToken(context.Background(), res.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccessToken failed: %v", err)
	}
	if auth.UserID != reg.Identity.UserID {
		t.Fatalf("expected subject %s, got %s", reg.Identity.UserID, auth.UserID)
	}
}

func TestLoginInvalidCredentialsIndistinguishable(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.register(t, "Alice", "alice@example.com", "secret-pass")

	_, errUnknown := env.engine.Login(context.Background(), LoginRequest{Email: "nobody@example.com", Password: "secret-pass"})
	_, errWrong := env.engine.Login(context.Background(), LoginRequest{Email: "alice@example.com", Password: "wrong-pass"})

	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v / %v", errUnknown, errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Fatalf("expected identical messages, got %q / %q", errUnknown, errWrong)
	}
}

func TestLoginRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.MaxLoginAttempts = 2
	env := newTestEnv(t, cfg)
	env.register(t, "Alice", "alice@example.com", "secret-pass")

	ctx := context.Background()
	bad := LoginRequest{Email: "alice@example.com", Password: "wrong-pass"}
	for i := 0; i < 2; i++ {
		if _, err := env.engine.Login(ctx, bad); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}
	if _, err := env.engine.Login(ctx, bad); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if _, err := env.engine.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "secret-pass"}); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected correct password to stay limited, got %v", err)
	}
}

func TestLoginValidation(t *testing.T) {
	env := newTestEnv(t, testConfig())

	_, err := env.engine.Login(context.Background(), LoginRequest{Email: "bad", Password: ""})
	var verr *ValidationError
	if !errors.As(err, &verr) || !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(verr.Fields) != 2 {
		t.Fatalf("expected two field errors, got %+v", verr.Fields)
	}
}

func TestLoginUpgradesWeakPasswordHash(t *testing.T) {
	env := newTestEnv(t, testConfig())

	weak, err := password.NewArgon2(password.Config{
		Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	hash, err := weak.Hash("secret-pass")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if _, err := env.store.Create(context.Background(), NewUser{
		UserID: "u1", Email: "old@example.com", Name: "Old", PasswordHash: hash,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	env.login(t, "old@example.com", "secret-pass")

	upgraded, ok := env.store.updates["u1"]
	if !ok {
		t.Fatal("expected password hash to be upgraded")
	}
	if upgraded == hash {
		t.Fatal("expected a new hash")
	}
	if need, err := env.engine.passwordHash.NeedsUpgrade(upgraded); err != nil || need {
		t.Fatalf("expected upgraded hash to match current params, need=%v err=%v", need, err)
	}
}

func TestLoginStoreFailureIsUnavailable(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.store.failAll = errors.New("db down")

	_, err := env.engine.Login(context.Background(), LoginRequest{Email: "a@example.com", Password: "secret-pass"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
