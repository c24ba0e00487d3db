// Package coordinator runs mutations optimistically against the query cache:
// snapshot the affected keys, apply the expected result, commit, then either
// invalidate the keys or restore the snapshots.
package coordinator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Abdul07in/supplychainx/internal/cache"
	"github.com/Abdul07in/supplychainx/internal/clock"
	"github.com/Abdul07in/supplychainx/internal/events"
)

// Outcome is the settlement state of a mutation.
type Outcome int

const (
	Pending Outcome = iota
	Committed
	RolledBack
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled_back"
	}
	return "unknown"
}

// Record tracks one in-flight mutation. Its fields are guarded by the
// coordinator and should only be inspected once the mutation has settled.
type Record struct {
	ID   uint64
	Name string

	keys      []cache.Key
	snapshots map[string]cache.Entry
	changed   map[string]bool
	// guessed marks snapshots that were themselves speculative values.
	guessed   map[string]bool
	apply     func(cache.Key, []byte) ([]byte, bool)
	release   []func()
	outcome   Outcome
	err       error
}

func (r *Record) Outcome() Outcome        { return r.outcome }
func (r *Record) Err() error              { return r.err }
func (r *Record) TargetKeys() []cache.Key { return r.keys }

// Snapshot returns the cache entry captured for key when the mutation began.
func (r *Record) Snapshot(key cache.Key) (cache.Entry, bool) {
	e, ok := r.snapshots[key.ID()]
	return e, ok
}

// Applied reports whether the mutation changed any cached value.
func (r *Record) Applied() bool { return len(r.changed) > 0 }

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithClock(c clock.Clock) Option { return func(co *Coordinator) { co.clock = c } }

// WithPublisher sets where committed mutations publish their events.
func WithPublisher(p events.Publisher) Option {
	return func(co *Coordinator) { co.publisher = p }
}

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(co *Coordinator) { co.registerer = reg }
}

// Coordinator serialises speculative writes per cache key. Mutations that
// overlap on a key form a stack in start order; invalidation of a key is
// deferred until its stack is empty so a refetch never clobbers speculation
// that is still pending. Once a key is quiet, a speculative value left in it
// is discarded rather than marked stale, so it is never served again.
type Coordinator struct {
	cache      *cache.Cache
	publisher  events.Publisher
	clock      clock.Clock
	registerer prometheus.Registerer
	settled    *prometheus.CounterVec
	logger     *slog.Logger

	mu      sync.Mutex
	seq     uint64
	pending map[string][]*Record
	dirty   map[string]cache.Key
	guessed map[string]bool // keys currently holding a speculative value
}

func New(c *cache.Cache, logger *slog.Logger, opts ...Option) *Coordinator {
	co := &Coordinator{
		cache:   c,
		clock:   clock.System{},
		logger:  logger,
		pending: make(map[string][]*Record),
		dirty:   make(map[string]cache.Key),
		guessed: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(co)
	}
	co.settled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "supplychainx",
		Subsystem: "coordinator",
		Name:      "mutations_total",
		Help:      "Settled mutations by name and outcome.",
	}, []string{"mutation", "outcome"})
	if co.registerer != nil {
		co.registerer.MustRegister(co.settled)
	}
	return co
}

// Cache returns the cache the coordinator writes to.
func (co *Coordinator) Cache() *cache.Cache { return co.cache }

// Pending returns the number of unsettled mutations touching key.
func (co *Coordinator) Pending(key cache.Key) int {
	co.mu.Lock()
	defer co.mu.Unlock()
	return len(co.pending[key.ID()])
}

func (co *Coordinator) begin(name string, keys []cache.Key, apply func(cache.Key, []byte) ([]byte, bool)) *Record {
	co.mu.Lock()
	defer co.mu.Unlock()

	co.seq++
	rec := &Record{
		ID:        co.seq,
		Name:      name,
		snapshots: make(map[string]cache.Entry, len(keys)),
		changed:   make(map[string]bool),
		guessed:   make(map[string]bool),
		apply:     apply,
	}

	for _, key := range keys {
		id := key.ID()
		if _, seen := rec.snapshots[id]; seen {
			continue
		}
		rec.keys = append(rec.keys, key)
		rec.release = append(rec.release, co.cache.Observe(key))

		snap, _ := co.cache.Read(key)
		rec.snapshots[id] = snap
		rec.guessed[id] = co.guessed[id]
		if apply != nil {
			if next, ok := apply(key, snap.Value); ok {
				co.cache.Write(key, next)
				rec.changed[id] = true
				co.guessed[id] = true
			}
		}
		co.pending[id] = append(co.pending[id], rec)
	}

	co.logger.Debug("mutation started", "mutation", name, "id", rec.ID, "keys", len(rec.keys), "applied", rec.Applied())
	return rec
}

// Commit settles rec as committed: once no other mutation is pending on its
// keys, speculative values are discarded and the rest invalidated; the extra
// prefixes are invalidated and the payloads are published. Settling an
// already settled record does nothing.
func (co *Coordinator) Commit(ctx context.Context, rec *Record, prefixes []cache.Key, payloads []events.Payload) {
	co.mu.Lock()
	if rec.outcome != Pending {
		co.mu.Unlock()
		return
	}
	rec.outcome = Committed

	co.finish(rec)
	for _, key := range rec.keys {
		id := key.ID()
		co.dirty[id] = key
		if co.pop(id, rec) {
			co.settleKey(key)
		}
	}
	for _, prefix := range prefixes {
		co.invalidatePrefixLocked(prefix)
	}
	co.mu.Unlock()

	co.publish(ctx, rec, payloads)
}

// Rollback settles rec as rolled back, restoring every key it changed to the
// value it held before rec began while preserving the speculation of any
// mutation that started later and is still pending. Rolling back an already
// settled record does nothing.
func (co *Coordinator) Rollback(rec *Record, cause error) {
	co.mu.Lock()
	defer co.mu.Unlock()

	if rec.outcome != Pending {
		return
	}
	rec.outcome = RolledBack
	rec.err = cause

	co.finish(rec)
	for _, key := range rec.keys {
		id := key.ID()
		if rec.changed[id] {
			co.rebase(key, rec)
		}
		if co.pop(id, rec) {
			if _, ok := co.dirty[id]; ok {
				co.settleKey(key)
			} else {
				delete(co.guessed, id)
			}
		}
	}
	co.logger.Warn("mutation rolled back", "mutation", rec.Name, "id", rec.ID, "error", cause)
}

// rebase rewrites key as if rec had never applied: its snapshot is taken as
// the base and every later pending mutation re-applies on top of it.
// Caller holds mu.
func (co *Coordinator) rebase(key cache.Key, rec *Record) {
	id := key.ID()
	stack := co.pending[id]

	at := -1
	for i, r := range stack {
		if r == rec {
			at = i
			break
		}
	}
	if at < 0 {
		return
	}

	base := rec.snapshots[id]
	guessed := rec.guessed[id]
	written := false
	for _, later := range stack[at+1:] {
		later.snapshots[id] = base
		later.guessed[id] = guessed
		if later.apply == nil {
			delete(later.changed, id)
			continue
		}
		next, ok := later.apply(key, base.Value)
		if !ok {
			delete(later.changed, id)
			continue
		}
		later.changed[id] = true
		guessed = true
		base = cache.Entry{
			Key:        key,
			Value:      next,
			FetchedAt:  co.clock.Now(),
			StaleAfter: base.StaleAfter,
			State:      cache.Fresh,
		}
		written = true
	}

	co.guessed[id] = guessed
	if written {
		co.cache.Write(key, base.Value)
		return
	}
	co.cache.Restore(base)
}

// settleKey runs the deferred invalidation of a key whose stack just
// emptied. Caller holds mu.
func (co *Coordinator) settleKey(key cache.Key) {
	id := key.ID()
	if co.guessed[id] {
		co.cache.Discard(key)
	} else {
		co.cache.Invalidate(key)
	}
	delete(co.guessed, id)
	delete(co.dirty, id)
}

// pop removes rec from the stack for id and reports whether the stack is
// now empty. Caller holds mu.
func (co *Coordinator) pop(id string, rec *Record) bool {
	stack := co.pending[id]
	for i, r := range stack {
		if r == rec {
			stack = append(stack[:i:i], stack[i+1:]...)
			break
		}
	}
	if len(stack) == 0 {
		delete(co.pending, id)
		return true
	}
	co.pending[id] = stack
	return false
}

// invalidatePrefixLocked invalidates keys under prefix, deferring those with
// pending mutations. Caller holds mu.
func (co *Coordinator) invalidatePrefixLocked(prefix cache.Key) {
	for _, key := range co.cache.Keys(prefix) {
		id := key.ID()
		if len(co.pending[id]) > 0 {
			co.dirty[id] = key
			continue
		}
		co.cache.Invalidate(key)
	}
}

func (co *Coordinator) finish(rec *Record) {
	for _, release := range rec.release {
		release()
	}
	rec.release = nil
	co.settled.WithLabelValues(rec.Name, rec.outcome.String()).Inc()
}

func (co *Coordinator) publish(ctx context.Context, rec *Record, payloads []events.Payload) {
	if co.publisher == nil {
		return
	}
	now := co.clock.Now()
	for _, p := range payloads {
		if err := co.publisher.Publish(ctx, events.New(p, now)); err != nil {
			co.logger.Error("failed to publish event", "mutation", rec.Name, "kind", p.Kind(), "error", err)
		}
	}
}
