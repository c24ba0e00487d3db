package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Abdul07in/supplychainx/internal/clock"
)

// DefaultRateWindow is the span a notice budget covers.
const DefaultRateWindow = time.Minute

// RateLimiter damps notice storms. StockLow fires on every qualifying stock
// update, so a product adjusted repeatedly below the threshold would alert
// procurement each time. A budget of limit notices per window is kept for
// every (recipient, kind, record) triple: repeats about one product are
// throttled while alerts about other products still go out. Budgets are
// Redis sorted sets of send times, shared by every server process.
type RateLimiter struct {
	rdb    *redis.Client
	logger *slog.Logger
	clock  clock.Clock
	limit  int
	window time.Duration
}

type RateLimiterOption func(*RateLimiter)

func WithWindow(d time.Duration) RateLimiterOption {
	return func(rl *RateLimiter) {
		if d > 0 {
			rl.window = d
		}
	}
}

func WithLimiterClock(c clock.Clock) RateLimiterOption {
	return func(rl *RateLimiter) { rl.clock = c }
}

// NewRateLimiter allows limit notices per budget and window. A limit of zero
// or less disables limiting.
func NewRateLimiter(rdb *redis.Client, limit int, logger *slog.Logger, opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		rdb:    rdb,
		logger: logger,
		clock:  clock.System{},
		limit:  limit,
		window: DefaultRateWindow,
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// budgetScript spends one unit of a sliding-window budget if any is left.
// KEYS[1] budget set. ARGV: now (ms), window (ms), limit, member.
var budgetScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
	return 0
end
redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], window)
return 1
`)

// budgetKey names the budget n draws from. Notices that are not about a
// single record share one budget per recipient and kind.
func budgetKey(n Notice) string {
	topic := n.Topic
	if topic == "" {
		topic = "*"
	}
	return "supplychainx:notice-rate:" + n.To + ":" + string(n.Kind) + ":" + topic
}

// Allow reports whether n fits its budget and spends one unit if so.
// Redis errors let the notice through.
func (rl *RateLimiter) Allow(ctx context.Context, n Notice) bool {
	if rl.limit <= 0 {
		return true
	}

	ok, err := budgetScript.Run(ctx, rl.rdb, []string{budgetKey(n)},
		rl.clock.Now().UnixMilli(), rl.window.Milliseconds(), rl.limit, uuid.NewString(),
	).Bool()
	if err != nil {
		rl.logger.Error("rate limiter script failed", "recipient", n.To, "kind", n.Kind, "error", err)
		return true
	}
	if !ok {
		rl.logger.Debug("notice over budget",
			"recipient", n.To,
			"kind", n.Kind,
			"topic", n.Topic,
			"limit", rl.limit,
			"window", rl.window,
		)
	}
	return ok
}
