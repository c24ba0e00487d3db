package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Delivery results, also used as the "result" metric label.
const (
	ResultSent        = "sent"
	ResultFailed      = "failed"
	ResultCircuitOpen = "circuit_open"
	ResultRateLimited = "rate_limited"
)

// Deliverer sends one notice through the configured Sender, guarded by the
// optional circuit breaker and rate limiter. Failures are logged and counted,
// never returned to the event path.
type Deliverer struct {
	sender  Sender
	breaker *CircuitBreaker
	limiter *RateLimiter
	notices *prometheus.CounterVec
	logger  *slog.Logger
}

// DelivererOption configures a Deliverer.
type DelivererOption func(*Deliverer)

// WithCircuitBreaker skips recipients whose circuit is open.
func WithCircuitBreaker(cb *CircuitBreaker) DelivererOption {
	return func(d *Deliverer) { d.breaker = cb }
}

// WithRateLimit skips notices over their rate budget.
func WithRateLimit(rl *RateLimiter) DelivererOption {
	return func(d *Deliverer) { d.limiter = rl }
}

// WithRegisterer registers the notice counter with r.
func WithRegisterer(r prometheus.Registerer) DelivererOption {
	return func(d *Deliverer) { r.MustRegister(d.notices) }
}

func NewDeliverer(sender Sender, logger *slog.Logger, opts ...DelivererOption) *Deliverer {
	d := &Deliverer{
		sender: sender,
		logger: logger,
		notices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supplychainx",
			Subsystem: "notify",
			Name:      "notices_total",
			Help:      "Outbound notices by event kind and result.",
		}, []string{"kind", "result"}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deliver sends n and returns the result label.
func (d *Deliverer) Deliver(ctx context.Context, n Notice) string {
	if d.breaker != nil {
		if state, ok := d.breaker.AllowRequest(ctx, n.To); !ok {
			d.logger.Warn("notice skipped, circuit open",
				"notice_id", n.ID,
				"recipient", n.To,
				"state", state,
			)
			return d.count(n, ResultCircuitOpen)
		}
	}

	if d.limiter != nil && !d.limiter.Allow(ctx, n) {
		d.logger.Info("notice skipped, rate limited",
			"notice_id", n.ID,
			"kind", n.Kind,
			"recipient", n.To,
			"topic", n.Topic,
		)
		return d.count(n, ResultRateLimited)
	}

	start := time.Now()
	err := d.sender.Send(ctx, n)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		if d.breaker != nil {
			d.breaker.RecordFailure(ctx, n.To)
		}
		d.logger.Warn("notice delivery failed",
			"notice_id", n.ID,
			"kind", n.Kind,
			"recipient", n.To,
			"error", err,
			"response_time_ms", elapsed,
		)
		return d.count(n, ResultFailed)
	}

	if d.breaker != nil {
		d.breaker.RecordSuccess(ctx, n.To)
	}
	d.logger.Info("notice delivered",
		"notice_id", n.ID,
		"kind", n.Kind,
		"recipient", n.To,
		"response_time_ms", elapsed,
	)
	return d.count(n, ResultSent)
}

func (d *Deliverer) count(n Notice, result string) string {
	d.notices.WithLabelValues(string(n.Kind), result).Inc()
	return result
}
