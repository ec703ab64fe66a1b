package stores

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestOTPLedger(t *testing.T) (*OTPLedger, *testClock) {
	t.Helper()
	_, rdb := newTestRedis(t)
	clock := newTestClock()
	return NewOTPLedger(rdb, newTestHasher(t), OTPConfig{Options: Options{Now: clock.Now}}), clock
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestOTPIssueVerifySingleUse(t *testing.T) {
	ledger, _ := newTestOTPLedger(t)
	ctx := context.Background()

	issued, err := ledger.Issue(ctx, "u1", ChannelEmail, 5*time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if len(issued.Code) != DefaultOTPDigits {
		t.Fatalf("expected %d digit code, got %q", DefaultOTPDigits, issued.Code)
	}

	if err := ledger.Verify(ctx, "u1", ChannelEmail, wrongCode(issued.Code)); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}
	if err := ledger.Verify(ctx, "u1", ChannelEmail, issued.Code); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if err := ledger.Verify(ctx, "u1", ChannelEmail, issued.Code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected consumed code to be rejected with ErrNotFound, got %v", err)
	}
}

func TestOTPOnlyLatestValidates(t *testing.T) {
	ledger, _ := newTestOTPLedger(t)
	ctx := context.Background()

	first, err := ledger.Issue(ctx, "u1", ChannelEmail, 5*time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	second, err := ledger.Issue(ctx, "u1", ChannelEmail, 5*time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if first.Code != second.Code {
		if err := ledger.Verify(ctx, "u1", ChannelEmail, first.Code); !errors.Is(err, ErrMismatch) {
			t.Fatalf("expected superseded code to fail, got %v", err)
		}
	}
	if err := ledger.Verify(ctx, "u1", ChannelEmail, second.Code); err != nil {
		t.Fatalf("expected latest code to verify: %v", err)
	}

	// Consuming the latest retires the older code too.
	if err := ledger.Verify(ctx, "u1", ChannelEmail, first.Code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected older code to be retired, got %v", err)
	}
}

func TestOTPExpired(t *testing.T) {
	ledger, clock := newTestOTPLedger(t)
	ctx := context.Background()

	issued, err := ledger.Issue(ctx, "u1", ChannelEmail, time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	clock.Advance(time.Minute)

	if err := ledger.Verify(ctx, "u1", ChannelEmail, issued.Code); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestOTPNotFound(t *testing.T) {
	ledger, _ := newTestOTPLedger(t)
	if err := ledger.Verify(context.Background(), "nobody", ChannelEmail, "123456"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOTPMalformedCandidateIsMismatch(t *testing.T) {
	ledger, _ := newTestOTPLedger(t)
	ctx := context.Background()

	if _, err := ledger.Issue(ctx, "u1", ChannelEmail, time.Minute); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	for _, bad := range []string{"", "12345", "abcdef", "1234567"} {
		if err := ledger.Verify(ctx, "u1", ChannelEmail, bad); !errors.Is(err, ErrMismatch) {
			t.Fatalf("expected %q to mismatch, got %v", bad, err)
		}
	}
}

func TestOTPConcurrentVerifySingleWinner(t *testing.T) {
	ledger, _ := newTestOTPLedger(t)
	ctx := context.Background()

	issued, err := ledger.Issue(ctx, "u1", ChannelEmail, time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	const n = 8
	var wg sync.WaitGroup
	results := make(chan error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			results <- ledger.Verify(ctx, "u1", ChannelEmail, issued.Code)
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("unexpected verify error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one successful verification, got %d", success)
	}
}
