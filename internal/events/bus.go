package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Abdul07in/supplychainx/internal/clock"
	"github.com/prometheus/client_golang/prometheus"
)

// Handler reacts to one event. A returned error or a panic is logged at the
// bus boundary and never reaches the publisher or other handlers.
type Handler func(ctx context.Context, e Event) error

// Publisher is the publishing half of the bus.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Registrar is the subscribing half of the bus.
type Registrar interface {
	Subscribe(kind Kind, name string, h Handler) (Registration, error)
}

// Registration identifies one subscription and is used to cancel it.
type Registration struct {
	kind Kind
	id   uint64
}

func (r Registration) Kind() Kind { return r.kind }

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("event bus closed")

type subscriber struct {
	id     uint64
	name   string
	handle Handler
}

type delivery struct {
	event Event
	sub   subscriber
}

// Bus is an in-process publish/subscribe router.
//
// Publish only enqueues; a single Run loop invokes handlers, so handlers for
// one kind run in registration order and one publish is delivered in full
// before the next. Handlers that need to do slow I/O should hand the work off
// (see notify.Pool) rather than block the loop.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Kind][]subscriber
	nextID uint64

	queue   *queue
	pending sync.WaitGroup

	clock      clock.Clock
	logger     *slog.Logger
	deliveries *prometheus.CounterVec
}

// Option configures a Bus.
type Option func(*Bus)

// WithClock sets the clock used to stamp events published without a time.
func WithClock(c clock.Clock) Option {
	return func(b *Bus) { b.clock = c }
}

// WithRegisterer registers the bus metrics with r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(b *Bus) { r.MustRegister(b.deliveries) }
}

func NewBus(logger *slog.Logger, opts ...Option) *Bus {
	b := &Bus{
		subs:   make(map[Kind][]subscriber),
		queue:  newQueue(),
		clock:  clock.System{},
		logger: logger,
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supplychainx",
			Subsystem: "bus",
			Name:      "deliveries_total",
			Help:      "Event deliveries to subscribers by kind and result.",
		}, []string{"kind", "result"}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h for kind. Handlers registered earlier are invoked
// earlier.
func (b *Bus) Subscribe(kind Kind, name string, h Handler) (Registration, error) {
	if !kind.Known() {
		return Registration{}, fmt.Errorf("subscribing %s: unknown kind %q", name, kind)
	}
	if h == nil {
		return Registration{}, fmt.Errorf("subscribing %s: nil handler", name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	// Copy on write: publishes in flight keep the slice they captured.
	subs := make([]subscriber, len(b.subs[kind]), len(b.subs[kind])+1)
	copy(subs, b.subs[kind])
	b.subs[kind] = append(subs, subscriber{id: b.nextID, name: name, handle: h})

	b.logger.Debug("subscriber registered", "kind", kind, "subscriber", name)
	return Registration{kind: kind, id: b.nextID}, nil
}

// Unsubscribe cancels a registration. Deliveries already scheduled still run.
// It reports whether the registration was active.
func (b *Bus) Unsubscribe(r Registration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.subs[r.kind]
	for i, s := range current {
		if s.id != r.id {
			continue
		}
		subs := make([]subscriber, 0, len(current)-1)
		subs = append(subs, current[:i]...)
		subs = append(subs, current[i+1:]...)
		b.subs[r.kind] = subs
		return true
	}
	return false
}

// Publish schedules e for every subscriber of its kind and returns without
// waiting for them. It fails only for malformed events or a closed bus.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if e.EmittedAt.IsZero() {
		e.EmittedAt = b.clock.Now()
	}
	if err := e.Validate(); err != nil {
		return err
	}

	b.mu.RLock()
	subs := b.subs[e.Kind]
	b.mu.RUnlock()

	if len(subs) == 0 {
		b.logger.Debug("no subscribers", "kind", e.Kind)
		return nil
	}

	batch := make([]delivery, len(subs))
	for i, s := range subs {
		batch[i] = delivery{event: e, sub: s}
	}

	b.pending.Add(len(batch))
	if !b.queue.push(batch...) {
		b.pending.Add(-len(batch))
		return ErrClosed
	}
	return nil
}

// Run invokes handlers until ctx is cancelled, or until Close has been called
// and the queue is empty. It is usually run in its own goroutine.
func (b *Bus) Run(ctx context.Context) {
	b.logger.Info("event bus started")
	for {
		d, ok := b.queue.pop(ctx)
		if !ok {
			b.logger.Info("event bus stopped")
			return
		}
		b.deliver(ctx, d)
	}
}

// Close stops accepting events. Run returns once the backlog is delivered.
func (b *Bus) Close() {
	b.queue.close()
}

// Shutdown delivers the backlog, including events that handlers publish
// while it drains, then closes the bus.
func (b *Bus) Shutdown(ctx context.Context) error {
	err := b.Drain(ctx)
	b.Close()
	return err
}

// Drain blocks until every scheduled delivery has run or ctx is done.
func (b *Bus) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) deliver(ctx context.Context, d delivery) {
	defer b.pending.Done()

	if err := invoke(ctx, d); err != nil {
		b.deliveries.WithLabelValues(string(d.event.Kind), "failed").Inc()
		b.logger.Error("subscriber failed",
			"kind", d.event.Kind,
			"subscriber", d.sub.name,
			"error", err,
		)
		return
	}
	b.deliveries.WithLabelValues(string(d.event.Kind), "ok").Inc()
}

func invoke(ctx context.Context, d delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return d.sub.handle(ctx, d.event)
}
