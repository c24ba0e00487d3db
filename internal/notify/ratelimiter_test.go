package notify

import (
	"context"
	"testing"
	"time"

	"github.com/Abdul07in/supplychainx/internal/clock"
	"github.com/Abdul07in/supplychainx/internal/events"
)

func stockAlert(productID string) Notice {
	n := testNotice()
	n.Topic = productID
	return n
}

func TestRateLimiter_BudgetPerRecord(t *testing.T) {
	client, _ := setupTestRedis(t)
	rl := NewRateLimiter(client, 2, testLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if !rl.Allow(ctx, stockAlert("p-1")) {
			t.Fatalf("alert %d should be allowed", i+1)
		}
	}
	if rl.Allow(ctx, stockAlert("p-1")) {
		t.Error("a third alert about p-1 should be throttled")
	}
	if !rl.Allow(ctx, stockAlert("p-2")) {
		t.Error("alerts about p-2 have their own budget")
	}

	sales := stockAlert("p-1")
	sales.To = "sales@company.com"
	if !rl.Allow(ctx, sales) {
		t.Error("another recipient has its own budget")
	}
	created := stockAlert("p-1")
	created.Kind = events.ProductCreated
	if !rl.Allow(ctx, created) {
		t.Error("another kind has its own budget")
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	client, _ := setupTestRedis(t)
	clk := clock.NewManual(emitted)
	rl := NewRateLimiter(client, 1, testLogger(), WithWindow(10*time.Second), WithLimiterClock(clk))
	ctx := context.Background()

	if !rl.Allow(ctx, stockAlert("p-1")) {
		t.Fatal("first alert should be allowed")
	}
	clk.Advance(9 * time.Second)
	if rl.Allow(ctx, stockAlert("p-1")) {
		t.Error("the window has not passed yet")
	}
	clk.Advance(2 * time.Second)
	if !rl.Allow(ctx, stockAlert("p-1")) {
		t.Error("the budget refills once the window has passed")
	}
}

func TestRateLimiter_ZeroLimitAllowsAll(t *testing.T) {
	client, _ := setupTestRedis(t)
	rl := NewRateLimiter(client, 0, testLogger())
	for i := 0; i < 10; i++ {
		if !rl.Allow(context.Background(), stockAlert("p-1")) {
			t.Fatal("a zero limit disables throttling")
		}
	}
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	client, mr := setupTestRedis(t)
	rl := NewRateLimiter(client, 1, testLogger())
	mr.Close()

	if !rl.Allow(context.Background(), stockAlert("p-1")) {
		t.Error("limiter should allow when Redis is unreachable")
	}
}
