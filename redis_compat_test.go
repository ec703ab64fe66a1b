//go:build integration
// +build integration

package accesshub

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// redisMode describes which Redis backend the compatibility suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) redis.UniversalClient
}

// redisModes returns the set of Redis backends to test. miniredis is always
// available; REDIS_ADDR adds a standalone server and REDIS_CLUSTER_ADDRS
// (comma-separated) a cluster.
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				mr := miniredis.RunT(t)
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() { _ = rdb.Close() })
				return rdb
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				pingOrSkip(t, rdb, addr)
				rdb.FlushDB(context.Background())
				t.Cleanup(func() { rdb.FlushDB(context.Background()); _ = rdb.Close() })
				return rdb
			},
		})
	}

	if addrs := os.Getenv("REDIS_CLUSTER_ADDRS"); addrs != "" {
		modes = append(modes, redisMode{
			name: "cluster",
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				rdb := redis.NewClusterClient(&redis.ClusterOptions{Addrs: strings.Split(addrs, ",")})
				pingOrSkip(t, rdb, addrs)
				t.Cleanup(func() { _ = rdb.Close() })
				return rdb
			},
		})
	}

	return modes
}

func pingOrSkip(t *testing.T, rdb redis.UniversalClient, addr string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("cannot connect to Redis at %s: %v", addr, err)
	}
}

func compatEngine(t *testing.T, rdb redis.UniversalClient, otp bool) (*Engine, *testMailer) {
	t.Helper()
	cfg := testConfig()
	cfg.OTP.Enabled = otp
	// A unique prefix keeps runs against a shared server apart.
	cfg.Storage.RedisPrefix = "compat" + strings.ReplaceAll(t.Name(), "/", "-")

	mailer := newTestMailer()
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(newTestUserStore()).
		WithMailer(mailer).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, mailer
}

func TestRedisCompatSessionLifecycle(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			ctx := context.Background()
			engine, _ := compatEngine(t, mode.setup(t), false)

			if _, err := engine.Register(ctx, RegisterRequest{Name: "Compat", Email: "compat@example.com", Password: "compat-password"}); err != nil {
				t.Fatalf("Register: %v", err)
			}
			login, err := engine.Login(ctx, LoginRequest{Email: "compat@example.com", Password: "compat-password"})
			if err != nil {
				t.Fatalf("Login: %v", err)
			}
			if _, err := engine.VerifyAccessToken(ctx, login.Tokens.AccessToken); err != nil {
				t.Fatalf("VerifyAccessToken: %v", err)
			}

			rotated, err := engine.Refresh(ctx, login.UserID, login.Tokens.RefreshToken, ClientMeta{})
			if err != nil {
				t.Fatalf("Refresh: %v", err)
			}
			if _, err := engine.Refresh(ctx, login.UserID, login.Tokens.RefreshToken, ClientMeta{}); !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("reused refresh token: expected ErrUnauthorized, got %v", err)
			}

			events, err := engine.SecurityEvents(ctx, login.UserID)
			if err != nil {
				t.Fatalf("SecurityEvents: %v", err)
			}
			if len(events) == 0 {
				t.Fatal("expected session history")
			}

			if _, err := engine.LogoutAll(ctx, login.UserID); err != nil {
				t.Fatalf("LogoutAll: %v", err)
			}
			if _, err := engine.VerifyAccessToken(ctx, rotated.Tokens.AccessToken); !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("access after LogoutAll: expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestRedisCompatRefreshRaceSingleWinner(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			ctx := context.Background()
			engine, _ := compatEngine(t, mode.setup(t), false)

			if _, err := engine.Register(ctx, RegisterRequest{Name: "Race", Email: "race@example.com", Password: "race-password"}); err != nil {
				t.Fatalf("Register: %v", err)
			}
			login, err := engine.Login(ctx, LoginRequest{Email: "race@example.com", Password: "race-password"})
			if err != nil {
				t.Fatalf("Login: %v", err)
			}

			const workers = 16
			start := make(chan struct{})
			results := make(chan error, workers)
			var wg sync.WaitGroup
			wg.Add(workers)
			for i := 0; i < workers; i++ {
				go func() {
					defer wg.Done()
					<-start
					_, err := engine.Refresh(ctx, login.UserID, login.Tokens.RefreshToken, ClientMeta{})
					results <- err
				}()
			}
			close(start)
			wg.Wait()
			close(results)

			success := 0
			for err := range results {
				switch {
				case err == nil:
					success++
				case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrRateLimited):
				default:
					t.Fatalf("unexpected refresh error: %v", err)
				}
			}
			if success != 1 {
				t.Fatalf("expected exactly one winner, got %d", success)
			}
		})
	}
}

func TestRedisCompatOTP(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			ctx := context.Background()
			engine, mailer := compatEngine(t, mode.setup(t), true)

			if _, err := engine.Register(ctx, RegisterRequest{Name: "Otp", Email: "otp@example.com", Password: "otp-password"}); err != nil {
				t.Fatalf("Register: %v", err)
			}
			login, err := engine.Login(ctx, LoginRequest{Email: "otp@example.com", Password: "otp-password"})
			if err != nil {
				t.Fatalf("Login: %v", err)
			}
			if login.State != LoginAwaitingOTP {
				t.Fatalf("expected awaiting OTP, got %s", login.State)
			}

			code := mailer.last("otp@example.com")
			res, err := engine.VerifyOTP(ctx, login.UserID, code, ClientMeta{})
			if err != nil {
				t.Fatalf("VerifyOTP: %v", err)
			}
			if res.Tokens.RefreshToken == "" {
				t.Fatal("expected refresh token after OTP")
			}
			if _, err := engine.VerifyOTP(ctx, login.UserID, code, ClientMeta{}); !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("second use of code: expected ErrUnauthorized, got %v", err)
			}
		})
	}
}
