package coordinator

import (
	"context"

	"github.com/Abdul07in/supplychainx/internal/cache"
	"github.com/Abdul07in/supplychainx/internal/events"
)

// Mutation describes one kind of write: which cached queries it touches,
// how it changes them speculatively, and how it is committed.
type Mutation[In, Out any] struct {
	// Name labels the mutation in logs and metrics.
	Name string

	// Validate rejects malformed input before anything is applied. Optional.
	Validate func(in In) error

	// Targets resolves the cache keys the mutation affects.
	Targets func(c *cache.Cache, in In) []cache.Key

	// Apply computes the speculative value for one target key. current is nil
	// when the key is absent. It reports false to leave the key untouched.
	Apply func(key cache.Key, current []byte, in In) ([]byte, bool)

	// Commit performs the authoritative write.
	Commit func(ctx context.Context, in In) (Out, error)

	// Invalidate returns key prefixes to invalidate after a successful commit,
	// in addition to the target keys. Optional.
	Invalidate func(in In, out Out) []cache.Key

	// Events returns the domain events describing the committed change. Optional.
	Events func(in In, out Out) []events.Payload
}

// Run executes m for in through the optimistic protocol. On failure the
// speculative changes are rolled back and the commit error is returned.
func Run[In, Out any](ctx context.Context, c *Coordinator, m Mutation[In, Out], in In) (Out, error) {
	var zero Out

	rec, err := Begin(c, m, in)
	if err != nil {
		return zero, err
	}

	out, err := m.Commit(ctx, in)
	if err != nil {
		c.Rollback(rec, err)
		return zero, err
	}

	var prefixes []cache.Key
	if m.Invalidate != nil {
		prefixes = m.Invalidate(in, out)
	}
	var payloads []events.Payload
	if m.Events != nil {
		payloads = m.Events(in, out)
	}
	c.Commit(ctx, rec, prefixes, payloads)
	return out, nil
}

// Begin validates in, snapshots every target key and applies the
// speculative change. The returned record must be settled with Commit or
// Rollback.
func Begin[In, Out any](c *Coordinator, m Mutation[In, Out], in In) (*Record, error) {
	if m.Validate != nil {
		if err := m.Validate(in); err != nil {
			return nil, err
		}
	}

	var keys []cache.Key
	if m.Targets != nil {
		keys = m.Targets(c.cache, in)
	}

	var apply func(cache.Key, []byte) ([]byte, bool)
	if m.Apply != nil {
		apply = func(key cache.Key, current []byte) ([]byte, bool) {
			return m.Apply(key, current, in)
		}
	}
	return c.begin(m.Name, keys, apply), nil
}
