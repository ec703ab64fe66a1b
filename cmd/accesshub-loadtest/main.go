// Command accesshub-loadtest drives concurrent access-token verification
// and refresh rotation against a Redis-backed engine and reports latency
// percentiles per phase.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/accesshub"
	"github.com/MrEthical07/accesshub/userstore/memory"
)

type userState struct {
	userID  string
	access  string
	refresh string
	mu      sync.Mutex
}

func main() {
	var (
		users       = flag.Int("users", 1000, "number of accounts to register and log in")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase (verify + refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "ahlt", "redis key prefix")
		contenders  = flag.Int("contenders", 8, "goroutines racing on one refresh token in the contention phase")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 || *contenders <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, ops and contenders must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	engine, err := newEngine(client, *prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeding %d users...\n", *users)
	startSeed := time.Now()
	states, err := seed(ctx, engine, *users)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	verifyStats := runVerifyPhase(ctx, engine, states, *ops, *concurrency)
	refreshStats := runRefreshPhase(ctx, engine, states, *ops, *concurrency)
	winners, losers := runContentionPhase(ctx, engine, &states[0], *contenders)

	fmt.Println("---- results ----")
	printStats("verify", verifyStats)
	printStats("refresh", refreshStats)
	fmt.Printf("contention: winners=%d rejected=%d\n", winners, losers)
	if winners != 1 {
		fmt.Fprintln(os.Stderr, "expected exactly one refresh to win")
		os.Exit(1)
	}
}

// newEngine builds an engine with cheap hashing and no rate limits so that
// the phases measure ledger round trips rather than argon2 or throttling.
func newEngine(client redis.UniversalClient, prefix string) (*accesshub.Engine, error) {
	cfg := accesshub.DefaultConfig()
	cfg.Storage.RedisPrefix = prefix
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Secret.Memory = 8 * 1024
	cfg.RateLimit.MaxLoginAttempts = 0
	cfg.RateLimit.MaxRefreshAttempts = 0

	return accesshub.New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(memory.New()).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
}

func seed(ctx context.Context, engine *accesshub.Engine, n int) ([]userState, error) {
	states := make([]userState, n)
	for i := 0; i < n; i++ {
		email := fmt.Sprintf("load-%d@example.com", i)
		password := fmt.Sprintf("load-password-%d", i)
		if _, err := engine.Register(ctx, accesshub.RegisterRequest{
			Name:     fmt.Sprintf("load %d", i),
			Email:    email,
			Password: password,
		}); err != nil {
			return nil, fmt.Errorf("register %s: %w", email, err)
		}
		res, err := engine.Login(ctx, accesshub.LoginRequest{Email: email, Password: password})
		if err != nil {
			return nil, fmt.Errorf("login %s: %w", email, err)
		}
		states[i] = userState{
			userID:  res.UserID,
			access:  res.Tokens.AccessToken,
			refresh: res.Tokens.RefreshToken,
		}
	}
	return states, nil
}

func runVerifyPhase(ctx context.Context, engine *accesshub.Engine, states []userState, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.Intn(len(states))]
				state.mu.Lock()
				token := state.access
				state.mu.Unlock()

				t0 := time.Now()
				_, err := engine.VerifyAccessToken(ctx, token)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

func runRefreshPhase(ctx context.Context, engine *accesshub.Engine, states []userState, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.Intn(len(states))]

				state.mu.Lock()
				t0 := time.Now()
				res, err := engine.Refresh(ctx, state.userID, state.refresh, accesshub.ClientMeta{})
				d := time.Since(t0)
				if err == nil {
					state.access = res.Tokens.AccessToken
					state.refresh = res.Tokens.RefreshToken
				} else {
					atomic.AddInt64(&failures, 1)
				}
				state.mu.Unlock()

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

// runContentionPhase presents one refresh token from several goroutines at
// once. Rotation is atomic, so exactly one caller may win.
func runContentionPhase(ctx context.Context, engine *accesshub.Engine, state *userState, contenders int) (winners, rejected int64) {
	state.mu.Lock()
	defer state.mu.Unlock()

	var (
		wg      sync.WaitGroup
		startCh = make(chan struct{})
		winner  accesshub.RefreshResult
		wmu     sync.Mutex
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-startCh
			res, err := engine.Refresh(ctx, state.userID, state.refresh, accesshub.ClientMeta{})
			switch {
			case err == nil:
				atomic.AddInt64(&winners, 1)
				wmu.Lock()
				winner = res
				wmu.Unlock()
			case errors.Is(err, accesshub.ErrUnauthorized):
				atomic.AddInt64(&rejected, 1)
			}
		}()
	}
	close(startCh)
	wg.Wait()

	if winners == 1 {
		state.access = winner.Tokens.AccessToken
		state.refresh = winner.Tokens.RefreshToken
	}
	return winners, rejected
}
