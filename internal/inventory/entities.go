package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Abdul07in/supplychainx/internal/cache"
	"github.com/Abdul07in/supplychainx/internal/clock"
	"github.com/Abdul07in/supplychainx/internal/coordinator"
	"github.com/Abdul07in/supplychainx/internal/domain"
	"github.com/Abdul07in/supplychainx/internal/events"
	"github.com/Abdul07in/supplychainx/internal/retry"
	"github.com/Abdul07in/supplychainx/internal/store"
)

// Hooks derive the domain events of committed mutations.
type Hooks[T domain.Entity] struct {
	Created func(ctx context.Context, v T) []events.Payload
	Updated func(prev, next T, patch domain.Patch) []events.Payload
	Deleted func(v T) []events.Payload
}

// Options tune reads and commits.
type Options struct {
	Retry            retry.Policy
	ListStaleAfter   time.Duration
	DetailStaleAfter time.Duration
	Clock            clock.Clock
}

// DefaultOptions mirrors the freshness windows of the web client: lists go
// stale after three minutes, single records after five.
func DefaultOptions() Options {
	return Options{
		Retry:            retry.DefaultPolicy(),
		ListStaleAfter:   3 * time.Minute,
		DetailStaleAfter: 5 * time.Minute,
		Clock:            clock.System{},
	}
}

type committed[T any] struct {
	value  T
	events []events.Payload
}

type createInput[T any] struct {
	value T
	row   placeholder
}

type updateInput struct {
	id    string
	patch domain.Patch
}

// Entities reads one collection through the cache and writes it through
// the coordinator.
type Entities[T domain.Entity] struct {
	records store.Records[T]
	coord   *coordinator.Coordinator
	cache   *cache.Cache
	keys    Keys
	hooks   Hooks[T]
	opts    Options
	logger  *slog.Logger

	create coordinator.Mutation[createInput[T], committed[T]]
	update coordinator.Mutation[updateInput, committed[T]]
	remove coordinator.Mutation[string, committed[T]]
}

func NewEntities[T domain.Entity](records store.Records[T], co *coordinator.Coordinator, hooks Hooks[T], opts Options, logger *slog.Logger) *Entities[T] {
	var zero T
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	e := &Entities[T]{
		records: records,
		coord:   co,
		cache:   co.Cache(),
		keys:    KeysFor(zero.Collection()),
		hooks:   hooks,
		opts:    opts,
		logger:  logger,
	}
	e.create = e.createMutation()
	e.update = e.updateMutation()
	e.remove = e.removeMutation()
	return e
}

func (e *Entities[T]) Keys() Keys { return e.keys }

// List returns one page, served from the cache when possible.
func (e *Entities[T]) List(ctx context.Context, p domain.ListParams) (domain.Page[T], error) {
	p, err := p.Normalize(e.keys.collection)
	if err != nil {
		return domain.Page[T]{}, err
	}

	entry, err := e.cache.Query(ctx, e.keys.List(p), func(ctx context.Context) ([]byte, error) {
		e.logger.Debug("fetching list", "collection", e.keys.collection, "page", p.Page, "search", p.Search)
		var page domain.Page[T]
		err := retry.Do(ctx, e.opts.Retry, func(ctx context.Context) error {
			var err error
			page, err = e.records.List(ctx, p)
			return err
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(page)
	}, cache.StaleAfter(e.opts.ListStaleAfter))
	if err != nil {
		return domain.Page[T]{}, err
	}

	var page domain.Page[T]
	if err := json.Unmarshal(entry.Value, &page); err != nil {
		return domain.Page[T]{}, fmt.Errorf("decoding cached %s page: %w", e.keys.collection, err)
	}
	return page, nil
}

// Get returns one record, served from the cache when possible.
func (e *Entities[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	entry, err := e.cache.Query(ctx, e.keys.Detail(id), func(ctx context.Context) ([]byte, error) {
		e.logger.Debug("fetching record", "collection", e.keys.collection, "id", id)
		var v T
		err := retry.Do(ctx, e.opts.Retry, func(ctx context.Context) error {
			var err error
			v, err = e.records.Get(ctx, id)
			return err
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}, cache.StaleAfter(e.opts.DetailStaleAfter))
	if err != nil {
		return zero, err
	}

	var v T
	if err := json.Unmarshal(entry.Value, &v); err != nil {
		return zero, fmt.Errorf("decoding cached %s %s: %w", e.keys.collection, id, err)
	}
	return v, nil
}

// Create inserts v. Cached pages the new record would appear on show a
// placeholder row until the commit settles.
func (e *Entities[T]) Create(ctx context.Context, v T) (T, error) {
	var zero T
	row, err := newPlaceholder(domain.WithDefaults(v), e.now())
	if err != nil {
		return zero, fmt.Errorf("rendering placeholder: %w", err)
	}
	out, err := coordinator.Run(ctx, e.coord, e.create, createInput[T]{value: v, row: row})
	if err != nil {
		return zero, err
	}
	return out.value, nil
}

// Update merges patch into the record. Cached copies show the merged
// fields until the commit settles.
func (e *Entities[T]) Update(ctx context.Context, id string, patch domain.Patch) (T, error) {
	out, err := coordinator.Run(ctx, e.coord, e.update, updateInput{id: id, patch: patch.Clone()})
	if err != nil {
		var zero T
		return zero, err
	}
	return out.value, nil
}

// Delete removes the record. Cached lists drop its row until the commit settles.
func (e *Entities[T]) Delete(ctx context.Context, id string) (T, error) {
	out, err := coordinator.Run(ctx, e.coord, e.remove, id)
	if err != nil {
		var zero T
		return zero, err
	}
	e.cache.Remove(e.keys.Detail(id))
	return out.value, nil
}

func (e *Entities[T]) createMutation() coordinator.Mutation[createInput[T], committed[T]] {
	return coordinator.Mutation[createInput[T], committed[T]]{
		Name: string(e.keys.collection) + ".create",
		Validate: func(in createInput[T]) error {
			return domain.WithDefaults(in.value).Validate()
		},
		Targets: func(c *cache.Cache, in createInput[T]) []cache.Key {
			var keys []cache.Key
			for _, key := range c.Keys(e.keys.Lists()) {
				p, ok := e.keys.ListParams(key)
				if ok && domain.MatchesSearch(in.row.fields, e.keys.collection.SearchFields(), p.Search) {
					keys = append(keys, key)
				}
			}
			return keys
		},
		Apply: func(key cache.Key, cur []byte, in createInput[T]) ([]byte, bool) {
			p, ok := e.keys.ListParams(key)
			if !ok {
				return nil, false
			}
			return insertRow(cur, in.row, p)
		},
		Commit: func(ctx context.Context, in createInput[T]) (committed[T], error) {
			var out committed[T]
			err := retry.Do(ctx, e.opts.Retry, func(ctx context.Context) error {
				var err error
				out.value, err = e.records.Create(ctx, in.value)
				return err
			})
			if err != nil {
				return out, err
			}
			if e.hooks.Created != nil {
				out.events = e.hooks.Created(ctx, out.value)
			}
			return out, nil
		},
		Invalidate: func(createInput[T], committed[T]) []cache.Key {
			return []cache.Key{e.keys.Lists(), OverviewKey}
		},
		Events: func(_ createInput[T], out committed[T]) []events.Payload {
			return out.events
		},
	}
}

func (e *Entities[T]) updateMutation() coordinator.Mutation[updateInput, committed[T]] {
	return coordinator.Mutation[updateInput, committed[T]]{
		Name: string(e.keys.collection) + ".update",
		Validate: func(in updateInput) error {
			if in.id == "" {
				return domain.Invalid("id is required")
			}
			return domain.ValidatePatch[T](in.patch)
		},
		Targets: func(c *cache.Cache, in updateInput) []cache.Key {
			return append([]cache.Key{e.keys.Detail(in.id)}, c.Keys(e.keys.Lists())...)
		},
		Apply: func(key cache.Key, cur []byte, in updateInput) ([]byte, bool) {
			if key.Equal(e.keys.Detail(in.id)) {
				return mergeFields(cur, in.patch)
			}
			return mergeRow(cur, in.id, in.patch)
		},
		Commit: func(ctx context.Context, in updateInput) (committed[T], error) {
			var (
				out  committed[T]
				prev T
			)
			err := retry.Do(ctx, e.opts.Retry, func(ctx context.Context) error {
				var err error
				if prev, err = e.records.Get(ctx, in.id); err != nil {
					return err
				}
				out.value, err = e.records.Update(ctx, in.id, in.patch)
				return err
			})
			if err != nil {
				return out, err
			}
			if e.hooks.Updated != nil {
				out.events = e.hooks.Updated(prev, out.value, in.patch)
			}
			return out, nil
		},
		Invalidate: func(updateInput, committed[T]) []cache.Key {
			return []cache.Key{e.keys.Lists()}
		},
		Events: func(_ updateInput, out committed[T]) []events.Payload {
			return out.events
		},
	}
}

func (e *Entities[T]) removeMutation() coordinator.Mutation[string, committed[T]] {
	return coordinator.Mutation[string, committed[T]]{
		Name: string(e.keys.collection) + ".delete",
		Validate: func(id string) error {
			if id == "" {
				return domain.Invalid("id is required")
			}
			return nil
		},
		Targets: func(c *cache.Cache, _ string) []cache.Key {
			return c.Keys(e.keys.Lists())
		},
		Apply: func(_ cache.Key, cur []byte, id string) ([]byte, bool) {
			return removeRow(cur, id)
		},
		Commit: func(ctx context.Context, id string) (committed[T], error) {
			var out committed[T]
			err := retry.Do(ctx, e.opts.Retry, func(ctx context.Context) error {
				var err error
				out.value, err = e.records.Delete(ctx, id)
				return err
			})
			if err != nil {
				return out, err
			}
			if e.hooks.Deleted != nil {
				out.events = e.hooks.Deleted(out.value)
			}
			return out, nil
		},
		Invalidate: func(string, committed[T]) []cache.Key {
			return []cache.Key{e.keys.Lists(), OverviewKey}
		},
		Events: func(_ string, out committed[T]) []events.Payload {
			return out.events
		},
	}
}

func (e *Entities[T]) now() time.Time {
	return e.opts.Clock.Now().UTC()
}
