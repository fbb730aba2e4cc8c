package rate

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	redrepo "github.com/ebuka-odih/nyem-backend/internal/repo/redis"
)

func newLimiterForTest(t *testing.T, perMinute, per10Sec int) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redrepo.NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })

	return NewLimiter(redrepo.NewRateRepo(client), perMinute, per10Sec), mr
}

func TestAllowSendWithinLimits(t *testing.T) {
	limiter, _ := newLimiterForTest(t, 10, 5)

	for i := 0; i < 5; i++ {
		retryAfter, allowed, err := limiter.AllowSend(context.Background(), 77)
		if err != nil {
			t.Fatalf("allow send: %v", err)
		}
		if !allowed {
			t.Fatalf("send %d unexpectedly blocked", i+1)
		}
		if retryAfter != 0 {
			t.Fatalf("expected zero retry-after, got %d", retryAfter)
		}
	}
}

func TestAllowSendBlocksBurst(t *testing.T) {
	limiter, _ := newLimiterForTest(t, 100, 3)

	for i := 0; i < 3; i++ {
		if _, allowed, err := limiter.AllowSend(context.Background(), 42); err != nil || !allowed {
			t.Fatalf("send %d: allowed=%v err=%v", i+1, allowed, err)
		}
	}

	retryAfter, allowed, err := limiter.AllowSend(context.Background(), 42)
	if err != nil {
		t.Fatalf("allow send: %v", err)
	}
	if allowed {
		t.Fatal("expected burst send to be blocked")
	}
	if retryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %d", retryAfter)
	}
}

func TestAllowSendIsPerUser(t *testing.T) {
	limiter, _ := newLimiterForTest(t, 100, 1)

	if _, allowed, err := limiter.AllowSend(context.Background(), 1); err != nil || !allowed {
		t.Fatalf("first user first send: allowed=%v err=%v", allowed, err)
	}
	if _, allowed, err := limiter.AllowSend(context.Background(), 2); err != nil || !allowed {
		t.Fatalf("second user should have a fresh window: allowed=%v err=%v", allowed, err)
	}
}
