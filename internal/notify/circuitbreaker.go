package notify

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Abdul07in/supplychainx/internal/clock"
)

// Circuit states of a notice recipient.
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

const (
	DefaultFailureThreshold = 5
	DefaultCooldown         = 30 * time.Second
)

// CircuitBreaker stops sending notices to a mailbox or webhook that keeps
// rejecting them. Each recipient has a Redis hash, shared by every server
// process, holding its state, consecutive failures and the times of the
// last failure and of the last half-open trial.
//
// After the cooldown one trial notice is let through. Its outcome closes or
// reopens the circuit. Notices arriving while the trial is outstanding are
// skipped; a trial with no recorded outcome expires after another cooldown.
type CircuitBreaker struct {
	rdb       *redis.Client
	logger    *slog.Logger
	clock     clock.Clock
	threshold int
	cooldown  time.Duration
}

type BreakerOption func(*CircuitBreaker)

// WithFailureThreshold opens the circuit after n consecutive failures.
func WithFailureThreshold(n int) BreakerOption {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.threshold = n
		}
	}
}

// WithCooldown sets how long an open circuit skips notices.
func WithCooldown(d time.Duration) BreakerOption {
	return func(cb *CircuitBreaker) {
		if d > 0 {
			cb.cooldown = d
		}
	}
}

func WithBreakerClock(c clock.Clock) BreakerOption {
	return func(cb *CircuitBreaker) { cb.clock = c }
}

// BreakerState is a recipient's circuit as the dashboard reports it.
type BreakerState struct {
	State        string     `json:"state"`
	Failures     int        `json:"failures"`
	LastFailedAt *time.Time `json:"last_failed_at,omitempty"`
}

func NewCircuitBreaker(rdb *redis.Client, logger *slog.Logger, opts ...BreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		rdb:       rdb,
		logger:    logger,
		clock:     clock.System{},
		threshold: DefaultFailureThreshold,
		cooldown:  DefaultCooldown,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

func circuitKey(recipient string) string {
	return "supplychainx:notice-circuit:" + recipient
}

// admitScript decides whether a notice may go out and moves a cooled-down
// circuit to half-open, claiming its trial.
// KEYS[1] circuit hash. ARGV: now (ms), cooldown (ms).
var admitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local cooldown = tonumber(ARGV[2])
local state = redis.call('HGET', KEYS[1], 'state')

if state == 'open' then
	local failed = tonumber(redis.call('HGET', KEYS[1], 'last_failed_at') or '0')
	if now - failed < cooldown then
		return {'open', 0}
	end
	redis.call('HSET', KEYS[1], 'state', 'half-open', 'trial_at', now)
	return {'half-open', 1}
end

if state == 'half-open' then
	local trial = tonumber(redis.call('HGET', KEYS[1], 'trial_at') or '0')
	if now - trial < cooldown then
		return {'half-open', 0}
	end
	redis.call('HSET', KEYS[1], 'trial_at', now)
	return {'half-open', 1}
end

return {'closed', 1}
`)

// failureScript counts a failed send. It returns the failure count and
// 1 when the circuit opened, 2 when a half-open trial failed, 0 otherwise.
// KEYS[1] circuit hash. ARGV: now (ms), threshold.
var failureScript = redis.NewScript(`
local failures = redis.call('HINCRBY', KEYS[1], 'failures', 1)
redis.call('HSET', KEYS[1], 'last_failed_at', ARGV[1])
local state = redis.call('HGET', KEYS[1], 'state')

if state == 'half-open' then
	redis.call('HSET', KEYS[1], 'state', 'open')
	redis.call('HDEL', KEYS[1], 'trial_at')
	return {failures, 2}
end
if state ~= 'open' and failures >= tonumber(ARGV[2]) then
	redis.call('HSET', KEYS[1], 'state', 'open')
	return {failures, 1}
end
if not state then
	redis.call('HSET', KEYS[1], 'state', 'closed')
end
return {failures, 0}
`)

// AllowRequest reports the recipient's state and whether a notice may be
// sent now. Redis errors leave the circuit closed.
func (cb *CircuitBreaker) AllowRequest(ctx context.Context, recipient string) (string, bool) {
	res, err := admitScript.Run(ctx, cb.rdb, []string{circuitKey(recipient)},
		cb.now(), cb.cooldown.Milliseconds(),
	).Slice()
	if err != nil || len(res) != 2 {
		if err != nil {
			cb.logger.Error("circuit breaker check failed", "recipient", recipient, "error", err)
		}
		return StateClosed, true
	}

	state, _ := res[0].(string)
	allowed, _ := res[1].(int64)
	if state == StateHalfOpen && allowed == 1 {
		cb.logger.Info("circuit breaker half-open, sending trial notice", "recipient", recipient)
	}
	return state, allowed == 1
}

// RecordSuccess closes the circuit and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess(ctx context.Context, recipient string) {
	key := circuitKey(recipient)

	var prev *redis.StringCmd
	_, err := cb.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		prev = p.HGet(ctx, key, "state")
		p.HSet(ctx, key, "state", StateClosed, "failures", 0)
		p.HDel(ctx, key, "trial_at")
		return nil
	})
	if err != nil && err != redis.Nil {
		cb.logger.Error("failed to record circuit breaker success", "recipient", recipient, "error", err)
		return
	}
	if prev.Val() == StateHalfOpen {
		cb.logger.Info("circuit breaker closed, recipient recovered", "recipient", recipient)
	}
}

// RecordFailure counts a failed send and opens the circuit at the threshold,
// or at once when a half-open trial fails.
func (cb *CircuitBreaker) RecordFailure(ctx context.Context, recipient string) {
	res, err := failureScript.Run(ctx, cb.rdb, []string{circuitKey(recipient)},
		cb.now(), cb.threshold,
	).Int64Slice()
	if err != nil || len(res) != 2 {
		cb.logger.Error("failed to record circuit breaker failure", "recipient", recipient, "error", err)
		return
	}

	switch res[1] {
	case 1:
		cb.logger.Warn("circuit breaker opened",
			"recipient", recipient,
			"failures", res[0],
			"threshold", cb.threshold,
		)
	case 2:
		cb.logger.Warn("circuit breaker reopened, trial notice failed", "recipient", recipient)
	}
}

// GetState returns the recipient's circuit, reporting an open circuit whose
// cooldown has elapsed as half-open.
func (cb *CircuitBreaker) GetState(ctx context.Context, recipient string) BreakerState {
	data, err := cb.rdb.HGetAll(ctx, circuitKey(recipient)).Result()
	if err != nil || len(data) == 0 {
		return BreakerState{State: StateClosed}
	}

	out := BreakerState{State: data["state"]}
	out.Failures, _ = strconv.Atoi(data["failures"])
	if out.State == "" {
		out.State = StateClosed
	}

	failed, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)
	if failed > 0 {
		at := time.UnixMilli(failed).UTC()
		out.LastFailedAt = &at
		if out.State == StateOpen && cb.now()-failed >= cb.cooldown.Milliseconds() {
			out.State = StateHalfOpen
		}
	}
	return out
}

func (cb *CircuitBreaker) now() int64 {
	return cb.clock.Now().UnixMilli()
}
