package stores

import (
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/accesshub/jwt"
	"github.com/MrEthical07/accesshub/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
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

func newTestHasher(t *testing.T) *password.Argon2 {
	t.Helper()

	h, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	return h
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

func newTestCodec(t *testing.T, clock *testClock) *jwt.Codec {
	t.Helper()

	keys, err := jwt.GenerateKeySet(jwt.MethodEd25519, "test")
	if err != nil {
		t.Fatalf("GenerateKeySet failed: %v", err)
	}
	codec, err := jwt.NewCodec(jwt.Config{
		Issuer:   "https://auth.local",
		Audience: "https://api.local",
		Now:      clock.Now,
	}, keys)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return codec
}
