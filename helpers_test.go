package accesshub

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

// testConfig is DefaultConfig with cheap argon2 parameters.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Secret.Memory = 8 * 1024
	cfg.Secret.Time = 1
	cfg.Secret.Parallelism = 1
	cfg.Metrics.Enabled = true
	return cfg
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testUserStore struct {
	mu      sync.Mutex
	byID    map[string]UserRecord
	byEmail map[string]string
	creates int
	updates map[string]string
	failAll error
}

func newTestUserStore() *testUserStore {
	return &testUserStore{
		byID:    map[string]UserRecord{},
		byEmail: map[string]string{},
		updates: map[string]string{},
	}
}

func (s *testUserStore) FindByEmail(_ context.Context, email string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return UserRecord{}, s.failAll
	}
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return s.byID[id], nil
}

func (s *testUserStore) FindByID(_ context.Context, id string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return UserRecord{}, s.failAll
	}
	u, ok := s.byID[id]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (s *testUserStore) Create(_ context.Context, nu NewUser) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return UserRecord{}, s.failAll
	}
	if _, ok := s.byEmail[nu.Email]; ok {
		return UserRecord{}, ErrUserExists
	}
	rec := UserRecord{
		UserID:       nu.UserID,
		Email:        nu.Email,
		Name:         nu.Name,
		PasswordHash: nu.PasswordHash,
		CreatedAt:    time.Now(),
	}
	s.byID[rec.UserID] = rec
	s.byEmail[rec.Email] = rec.UserID
	s.creates++
	return rec, nil
}

func (s *testUserStore) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	s.byID[userID] = u
	s.updates[userID] = hash
	return nil
}

func (s *testUserStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// testMailer records every code it is asked to send, including ones whose
// delivery it then fails.
type testMailer struct {
	mu    sync.Mutex
	codes map[string][]string
	fail  bool
}

func newTestMailer() *testMailer {
	return &testMailer{codes: map[string][]string{}}
}

func (m *testMailer) SendOTP(_ context.Context, address, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[address] = append(m.codes[address], code)
	if m.fail {
		return errors.New("smtp down")
	}
	return nil
}

func (m *testMailer) last(address string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.codes[address]
	if len(c) == 0 {
		return ""
	}
	return c[len(c)-1]
}

func (m *testMailer) setFail(v bool) {
	m.mu.Lock()
	m.fail = v
	m.mu.Unlock()
}

type testEnv struct {
	engine *Engine
	store  *testUserStore
	mailer *testMailer
	clock  *testClock
	mr     *miniredis.Miniredis
	rdb    *redis.Client
}

func newTestEnv(t testing.TB, cfg Config, opts ...func(*Builder)) *testEnv {
	t.Helper()

	mr, rdb := newTestRedis(t)
	env := &testEnv{
		store:  newTestUserStore(),
		mailer: newTestMailer(),
		clock:  newTestClock(),
		mr:     mr,
		rdb:    rdb,
	}

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(env.store).
		WithMailer(env.mailer).
		WithClock(env.clock.Now)
	for _, o := range opts {
		o(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

func (env *testEnv) register(t testing.TB, name, email, password string) RegisterResult {
	t.Helper()

	res, err := env.engine.Register(context.Background(), RegisterRequest{
		Name:     name,
		Email:    email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return res
}

func (env *testEnv) login(t testing.TB, email, password string) LoginResult {
	t.Helper()

	res, err := env.engine.Login(context.Background(), LoginRequest{
		Email:     email,
		Password:  password,
		UserAgent: "test-agent",
		IP:        "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("Login(%s) failed: %v", email, err)
	}
	return res
}
