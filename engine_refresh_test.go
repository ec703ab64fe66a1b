package accesshub

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func TestRefreshRotatesAndInvalidatesOld(t *testing.T) {
	env := newTestEnv(t, testConfig())
	reg := env.register(t, "Alice", "alice@example.com", "secret-pass")
	first := env.login(t, "alice@example.com", "secret-pass")

	env.clock.Advance(time.Second)
	rotated, err := env.engine.Refresh(context.Background(), reg.Identity.UserID, first.Tokens.RefreshToken, ClientMeta{UserAgent: "ua-2", IP: "10.0.0.2"})
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if rotated.UserID != reg.Identity.UserID {
		t.Fatalf("expected user id %s, got %s", reg.Identity.UserID, rotated.UserID)
	}
	if rotated.Tokens.RefreshToken == "" || rotated.Tokens.RefreshToken == first.Tokens.RefreshToken {
		t.Fatal("expected a new refresh token")
	}
	if _, err := env.engine.VerifyAccessToken(context.Background(), rotated.Tokens.AccessToken); err != nil {
		t.Fatalf("new access token rejected: %v", err)
	}

	_, err = env.engine.Refresh(context.Background(), reg.Identity.UserID, first.Tokens.RefreshToken, ClientMeta{})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected rotated-away token to be rejected, got %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricRefreshReuseDetected]; got != 1 {
		t.Fatalf("expected reuse counter 1, got %d", got)
	}

	if _, err := env.engine.Refresh(context.Background(), reg.Identity.UserID, rotated.Tokens.RefreshToken, ClientMeta{}); err != nil {
		t.Fatalf("expected replacement token to rotate, got %v", err)
	}
}

func TestRefreshRejectsForeignOwnerAndGarbage(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.register(t, "Alice", "alice@example.com", "secret-pass")
	bob := env.register(t, "Bob", "bob@example.com", "secret-pass")
	alice := env.login(t, "alice@example.com", "secret-pass")

	ctx := context.Background()
	if _, err := env.engine.Refresh(ctx, bob.Identity.UserID, alice.Tokens.RefreshToken, ClientMeta{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for foreign token, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, alice.UserID, "not-a-token", ClientMeta{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for garbage, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, alice.UserID, "", ClientMeta{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for empty token, got %v", err)
	}
}

func TestRefreshExpires(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.register(t, "Alice", "alice@example.com", "secret-pass")
	res := env.login(t, "alice@example.com", "secret-pass")

	env.clock.Advance(testConfig().Refresh.TTL + time.Second)
	if _, err := env.engine.Refresh(context.Background(), res.UserID, res.Tokens.RefreshToken, ClientMeta{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected expired refresh token to be rejected, got %v", err)
	}
}

func TestRefreshConcurrencySingleWinner(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.MaxRefreshAttempts = 0
	env := newTestEnv(t, cfg)
	env.register(t, "Alice", "alice@example.com", "secret-pass")
	res := env.login(t, "alice@example.com", "secret-pass")

	const n = 16
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.engine.Refresh(context.Background(), res.UserID, res.Tokens.RefreshToken, ClientMeta{})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success, fail := 0, 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if errors.Is(err, ErrUnauthorized) {
			fail++
			continue
		}
		t.Fatalf("unexpected refresh error: %v", err)
	}
	if success != 1 {
		t.Fatalf("expected exactly one refresh success, got %d", success)
	}
	if fail != n-1 {
		t.Fatalf("expected %d refresh failures, got %d", n-1, fail)
	}
}

func TestAccessTokenExpiry(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.register(t, "Alice", "alice@example.com", "secret-pass")
	res := env.login(t, "alice@example.com", "secret-pass")

	env.clock.Advance(testConfig().JWT.AccessTTL - time.Second)
	if _, err := env.engine.VerifyAccessToken(context.Background(), res.Tokens.AccessToken); err != nil {
		t.Fatalf("expected token valid just before expiry, got %v", err)
	}

	env.clock.Advance(2 * time.Second)
	if _, err := env.engine.VerifyAccessToken(context.Background(), res.Tokens.AccessToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestVerifyAccessTokenRejectsTampered(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.register(t, "Alice", "alice@example.com", "secret-pass")
	res := env.login(t, "alice@example.com", "secret-pass")

	tok := res.Tokens.AccessToken
	tampered := tok[:len(tok)-2] + "xx"
	for _, bad := range []string{"", "garbage", tampered} {
		if _, err := env.engine.VerifyAccessToken(context.Background(), bad); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized for %q, got %v", bad, err)
		}
	}
}

func TestLogoutIdempotent(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.register(t, "Alice", "alice@example.com", "secret-pass")
	res := env.login(t, "alice@example.com", "secret-pass")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := env.engine.Logout(ctx, res.UserID, res.Tokens.RefreshToken); err != nil {
			t.Fatalf("logout %d failed: %v", i+1, err)
		}
	}
	if err := env.engine.Logout(ctx, res.UserID, "never-issued"); err != nil {
		t.Fatalf("logout with unknown token failed: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, res.UserID, res.Tokens.RefreshToken, ClientMeta{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected refresh after logout to fail, got %v", err)
	}
	if err := env.engine.Logout(ctx, "", res.Tokens.RefreshToken); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing user id, got %v", err)
	}
	if err := env.engine.Logout(ctx, res.UserID, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing token, got %v", err)
	}
}

func TestLogoutSurvivesBackendOutage(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.register(t, "Alice", "alice@example.com", "secret-pass")
	res := env.login(t, "alice@example.com", "secret-pass")

	env.mr.Close()
	if err := env.engine.Logout(context.Background(), res.UserID, res.Tokens.RefreshToken); err != nil {
		t.Fatalf("expected logout to swallow backend errors, got %v", err)
	}
}

func TestLogoutSessionRevokesAccessToken(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.register(t, "Alice", "alice@example.com", "secret-pass")
	env.register(t, "Bob", "bob@example.com", "secret-pass")
	a := env.login(t, "alice@example.com", "secret-pass")
	b := env.login(t, "alice@example.com", "secret-pass")
	bob := env.login(t, "bob@example.com", "secret-pass")
	ctx := context.Background()

	if err := env.engine.LogoutSession(ctx, a.UserID, a.Tokens.RefreshToken, bob.Tokens.AccessToken); err != nil {
		t.Fatalf("LogoutSession with foreign access token failed: %v", err)
	}
	if _, err := env.engine.VerifyAccessToken(ctx, bob.Tokens.AccessToken); err != nil {
		t.Fatalf("expected foreign access token to survive: %v", err)
	}

	if err := env.engine.LogoutSession(ctx, b.UserID, b.Tokens.RefreshToken, b.Tokens.AccessToken); err != nil {
		t.Fatalf("LogoutSession failed: %v", err)
	}
	if _, err := env.engine.VerifyAccessToken(ctx, b.Tokens.AccessToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected access token revoked, got %v", err)
	}
	if _, err := env.engine.VerifyAccessToken(ctx, a.Tokens.AccessToken); err != nil {
		t.Fatalf("expected sibling session access token to survive: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, b.UserID, b.Tokens.RefreshToken, ClientMeta{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected refresh token revoked, got %v", err)
	}
	if err := env.engine.LogoutSession(ctx, b.UserID, b.Tokens.RefreshToken, "not-a-jwt"); err != nil {
		t.Fatalf("expected malformed access token to be ignored, got %v", err)
	}
}

type requestIDKey struct{}

// contextHandler records the request id carried by the context of each
// record it handles.
type contextHandler struct {
	mu   sync.Mutex
	seen map[string]string
}

func (h *contextHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	id, _ := ctx.Value(requestIDKey{}).(string)
	h.mu.Lock()
	h.seen[r.Message] = id
	h.mu.Unlock()
	return nil
}

func (h *contextHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *contextHandler) WithGroup(string) slog.Handler { return h }

func (h *contextHandler) requestID(msg string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.seen[msg]
	return id, ok
}

func TestFlowWarningsCarryRequestContext(t *testing.T) {
	handler := &contextHandler{seen: map[string]string{}}
	env := newTestEnv(t, testConfig(), func(b *Builder) { b.WithLogger(slog.New(handler)) })
	env.register(t, "Alice", "alice@example.com", "secret-pass")
	res := env.login(t, "alice@example.com", "secret-pass")

	env.mr.Close()
	ctx := context.WithValue(context.Background(), requestIDKey{}, "req-42")
	if err := env.engine.Logout(ctx, res.UserID, res.Tokens.RefreshToken); err != nil {
		t.Fatalf("expected logout to swallow backend errors, got %v", err)
	}

	id, ok := handler.requestID("accesshub: refresh revoke failed")
	if !ok {
		t.Fatal("expected refresh revoke warning")
	}
	if id != "req-42" {
		t.Fatalf("expected warning logged with the request context, got %q", id)
	}
}

func TestLogoutAllRevokesEverything(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.register(t, "Alice", "alice@example.com", "secret-pass")
	a := env.login(t, "alice@example.com", "secret-pass")
	b := env.login(t, "alice@example.com", "secret-pass")
	ctx := context.Background()

	out, err := env.engine.LogoutAll(ctx, a.UserID)
	if err != nil {
		t.Fatalf("LogoutAll failed: %v", err)
	}
	// the registration token counts as a third access record
	if out.RefreshRevoked != 2 || out.AccessRevoked != 3 {
		t.Fatalf("expected 2 refresh and 3 access revoked, got %+v", out)
	}
	for _, tok := range []string{a.Tokens.AccessToken, b.Tokens.AccessToken} {
		if _, err := env.engine.VerifyAccessToken(ctx, tok); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected access token revoked, got %v", err)
		}
	}
	for _, tok := range []string{a.Tokens.RefreshToken, b.Tokens.RefreshToken} {
		if _, err := env.engine.Refresh(ctx, a.UserID, tok, ClientMeta{}); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected refresh token revoked, got %v", err)
		}
	}
}

func TestSecurityEventsHistory(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.register(t, "Alice", "alice@example.com", "secret-pass")
	ctx := context.Background()

	res := env.login(t, "alice@example.com", "secret-pass")
	env.clock.Advance(time.Minute)
	rotated, err := env.engine.Refresh(ctx, res.UserID, res.Tokens.RefreshToken, ClientMeta{UserAgent: "ua-2", IP: "10.0.0.2"})
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	env.clock.Advance(time.Minute)
	if err := env.engine.Logout(ctx, res.UserID, rotated.Tokens.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	events, err := env.engine.SecurityEvents(ctx, res.UserID)
	if err != nil {
		t.Fatalf("SecurityEvents failed: %v", err)
	}

	counts := map[SecurityEventType]int{}
	for i, ev := range events {
		counts[ev.Type]++
		if i > 0 && ev.At.After(events[i-1].At) {
			t.Fatalf("events not sorted newest first at %d: %v after %v", i, ev.At, events[i-1].At)
		}
	}
	if counts[SecurityEventIssued] != 2 {
		t.Fatalf("expected 2 issued events, got %d (%+v)", counts[SecurityEventIssued], events)
	}
	if counts[SecurityEventRotated] != 1 {
		t.Fatalf("expected 1 rotated event, got %d", counts[SecurityEventRotated])
	}
	if counts[SecurityEventRevoked] != 2 {
		t.Fatalf("expected 2 revoked events, got %d", counts[SecurityEventRevoked])
	}
	if events[0].Type != SecurityEventRevoked || events[0].UserAgent != "ua-2" {
		t.Fatalf("expected newest event to be the logout of the rotated session, got %+v", events[0])
	}
}

func TestSecurityEventsCapped(t *testing.T) {
	cfg := testConfig()
	cfg.Events.Limit = 3
	env := newTestEnv(t, cfg)
	env.register(t, "Alice", "alice@example.com", "secret-pass")

	var userID string
	for i := 0; i < 5; i++ {
		userID = env.login(t, "alice@example.com", "secret-pass").UserID
		env.clock.Advance(time.Second)
	}
	events, err := env.engine.SecurityEvents(context.Background(), userID)
	if err != nil {
		t.Fatalf("SecurityEvents failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
}
