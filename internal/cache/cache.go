// Package cache is the client-side store of query results: a keyed map of
// JSON-encoded values with a freshness policy, stale-while-revalidate
// read-through, and snapshot/restore support for optimistic mutations.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Abdul07in/supplychainx/internal/clock"
)

const (
	DefaultStaleAfter = 3 * time.Minute
	DefaultRetention  = 10 * time.Minute
)

// Fetcher loads the authoritative value for a key.
type Fetcher func(ctx context.Context) ([]byte, error)

// Scheduler runs background refetches. The default starts a goroutine;
// tests inject a queue they drain by hand.
type Scheduler func(task func())

// Option configures a Cache.
type Option func(*Cache)

func WithClock(c clock.Clock) Option        { return func(k *Cache) { k.clock = c } }
func WithStaleAfter(d time.Duration) Option { return func(k *Cache) { k.staleAfter = d } }
func WithRetention(d time.Duration) Option  { return func(k *Cache) { k.retention = d } }
func WithScheduler(s Scheduler) Option      { return func(k *Cache) { k.schedule = s } }

// WithRegisterer registers the cache's counters with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(k *Cache) { k.registerer = reg }
}

// Cache is safe for concurrent use. All state transitions of an entry happen
// under one mutex, so per-key access is linearizable.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	gen     uint64

	clock      clock.Clock
	staleAfter time.Duration
	retention  time.Duration
	schedule   Scheduler
	registerer prometheus.Registerer
	metrics    *metrics
	logger     *slog.Logger
}

func New(logger *slog.Logger, opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]*entry),
		clock:      clock.System{},
		staleAfter: DefaultStaleAfter,
		retention:  DefaultRetention,
		schedule:   func(task func()) { go task() },
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.metrics = newMetrics(c.registerer)
	return c
}

// QueryOption adjusts a single Query call.
type QueryOption func(*queryOptions)

type queryOptions struct {
	staleAfter time.Duration
}

// StaleAfter overrides the freshness window for the queried entry.
func StaleAfter(d time.Duration) QueryOption {
	return func(o *queryOptions) { o.staleAfter = d }
}

// Read returns a copy of the entry for key without triggering a fetch.
func (c *Cache) Read(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.id]
	if !ok || e.placeholder() {
		return Entry{Key: key}, false
	}
	e.expire(c.clock.Now())
	return e.snapshot(), true
}

// Write replaces the value for key and marks it fresh. Any fetch in flight
// for key is superseded and its result will be discarded.
func (c *Cache) Write(key Key, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.lookup(key)
	e.Value = clone(value)
	if e.Value == nil {
		e.Value = []byte{}
	}
	e.FetchedAt = c.clock.Now()
	e.State = Fresh
	e.Err = nil
	e.gen = c.next()
	e.signal()
}

// Restore puts a previously read entry back verbatim. An absent snapshot
// removes the key. A snapshot taken mid-fetch is restored as stale.
func (c *Cache) Restore(snap Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !snap.Present() {
		c.remove(snap.Key)
		return
	}
	e := c.lookup(snap.Key)
	e.Value = clone(snap.Value)
	e.FetchedAt = snap.FetchedAt
	e.StaleAfter = snap.StaleAfter
	e.State = snap.State
	e.Err = snap.Err
	if e.State == Fetching {
		e.State = Stale
	}
	e.gen = c.next()
	e.signal()
}

// Remove drops key from the cache. It reports whether the key was present.
func (c *Cache) Remove(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remove(key)
}

// Invalidate marks the given keys stale so the next read refetches. An entry
// that is already fetching gets a superseding fetch, since the fetch in flight
// may predate the mutation that caused the invalidation. It returns the number
// of keys that were cached.
func (c *Cache) Invalidate(keys ...Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, key := range keys {
		if e, ok := c.entries[key.id]; ok {
			c.invalidate(e)
			n++
		}
	}
	return n
}

// Discard drops the values held for keys, so the next Query waits for a
// fetch instead of serving what was cached. A fetch in flight is superseded.
// Entries nobody observes are removed. It returns the number of keys that
// were cached.
func (c *Cache) Discard(keys ...Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, key := range keys {
		e, ok := c.entries[key.id]
		if !ok {
			continue
		}
		n++
		e.Value = nil
		e.Err = nil
		switch {
		case e.State == Fetching && e.fetch != nil:
			c.metrics.refetches.Inc()
			c.startBackground(context.Background(), e)
		case e.readers == 0 && e.State != Fetching:
			c.remove(key)
		default:
			e.State = Stale
			e.gen = c.next()
			e.signal()
		}
	}
	return n
}

// InvalidatePrefix invalidates every cached key that starts with prefix.
func (c *Cache) InvalidatePrefix(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, e := range c.entries {
		if e.Key.HasPrefix(prefix) {
			c.invalidate(e)
			n++
		}
	}
	return n
}

// Keys lists the cached keys starting with prefix.
func (c *Cache) Keys(prefix Key) []Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Key
	for _, e := range c.entries {
		if e.Key.HasPrefix(prefix) {
			out = append(out, e.Key)
		}
	}
	return out
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Observe registers a reader of key. Observed entries are never garbage
// collected. The returned func releases the reader and is safe to call twice;
// releasing the last reader of a key that never got a value forgets the key.
func (c *Cache) Observe(key Key) func() {
	c.mu.Lock()
	c.lookup(key).readers++
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			e, ok := c.entries[key.id]
			if !ok || e.readers == 0 {
				return
			}
			e.readers--
			if e.readers == 0 && e.placeholder() {
				delete(c.entries, key.id)
			}
		})
	}
}

// GarbageCollect evicts entries without readers once FetchedAt plus the
// retention window lies before now. Entries with a fetch in flight are kept.
func (c *Cache) GarbageCollect(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for id, e := range c.entries {
		if e.readers > 0 || e.State == Fetching {
			continue
		}
		if !now.After(e.FetchedAt.Add(c.retention)) {
			continue
		}
		delete(c.entries, id)
		e.signal()
		n++
	}
	if n > 0 {
		c.metrics.evictions.Add(float64(n))
	}
	return n
}

// Query is the read-through path. A fresh entry is returned as is. A stale
// or failed entry that still has a value is returned immediately while one
// background refetch is scheduled. An absent value is fetched in the caller's
// goroutine; concurrent callers for the same key share that fetch.
func (c *Cache) Query(ctx context.Context, key Key, fetch Fetcher, opts ...QueryOption) (Entry, error) {
	var qo queryOptions
	for _, opt := range opts {
		opt(&qo)
	}

	waited := false
	for {
		c.mu.Lock()
		e := c.lookup(key)
		e.fetch = fetch
		if qo.staleAfter > 0 {
			e.StaleAfter = qo.staleAfter
		}
		e.expire(c.clock.Now())

		if e.Present() {
			switch e.State {
			case Fresh, Fetching:
				c.metrics.hits.Inc()
			case Stale, Error:
				c.metrics.refetches.Inc()
				c.startBackground(ctx, e)
			}
			out := e.snapshot()
			c.mu.Unlock()
			return out, nil
		}

		if e.State == Error && waited {
			out := e.snapshot()
			c.mu.Unlock()
			return out, out.Err
		}

		if e.State != Fetching {
			c.metrics.misses.Inc()
			gen := c.begin(e)
			c.mu.Unlock()

			value, err := fetch(ctx)
			c.complete(key, gen, value, err)
			waited = true
			continue
		}

		settled := e.settled
		c.mu.Unlock()
		select {
		case <-settled:
			waited = true
		case <-ctx.Done():
			return Entry{Key: key}, ctx.Err()
		}
	}
}

// lookup returns the entry for key, creating an empty stale one. Caller holds mu.
func (c *Cache) lookup(key Key) *entry {
	e, ok := c.entries[key.id]
	if !ok {
		e = &entry{
			Entry:   Entry{Key: key, StaleAfter: c.staleAfter, State: Stale},
			settled: make(chan struct{}),
		}
		c.entries[key.id] = e
	}
	return e
}

func (c *Cache) remove(key Key) bool {
	e, ok := c.entries[key.id]
	if !ok {
		return false
	}
	delete(c.entries, key.id)
	e.signal()
	return true
}

func (c *Cache) invalidate(e *entry) {
	switch e.State {
	case Fresh:
		e.State = Stale
	case Fetching:
		if e.fetch != nil {
			c.metrics.refetches.Inc()
			c.startBackground(context.Background(), e)
		}
	}
}

func (c *Cache) next() uint64 {
	c.gen++
	return c.gen
}

// begin moves e to Fetching under a new generation. Caller holds mu.
func (c *Cache) begin(e *entry) uint64 {
	e.State = Fetching
	e.gen = c.next()
	return e.gen
}

// startBackground schedules a refetch of e that outlives the caller's
// context. Caller holds mu.
func (c *Cache) startBackground(ctx context.Context, e *entry) {
	gen := c.begin(e)
	key, fetch := e.Key, e.fetch
	bg := context.WithoutCancel(ctx)
	c.schedule(func() {
		value, err := fetch(bg)
		c.complete(key, gen, value, err)
	})
}

// complete applies a fetch result if its generation still owns the entry.
func (c *Cache) complete(key Key, gen uint64, value []byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.id]
	if !ok || e.gen != gen {
		c.metrics.discarded.Inc()
		c.logger.Debug("discarding superseded fetch", "key", key)
		return
	}
	now := c.clock.Now()
	if err != nil {
		e.State = Error
		e.Err = err
		if !e.Present() {
			e.FetchedAt = now
		}
		c.logger.Warn("fetch failed", "key", key, "error", err)
	} else {
		e.Value = clone(value)
		if e.Value == nil {
			e.Value = []byte{}
		}
		e.FetchedAt = now
		e.State = Fresh
		e.Err = nil
	}
	e.signal()
}
