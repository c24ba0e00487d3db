package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Abdul07in/supplychainx/internal/clock"
	"github.com/Abdul07in/supplychainx/internal/domain"
)

// Records is the record-store contract for one entity type. It is
// implemented locally by Collection and remotely by client.Remote.
type Records[T domain.Entity] interface {
	Create(ctx context.Context, v T) (T, error)
	Get(ctx context.Context, id string) (T, error)
	List(ctx context.Context, p domain.ListParams) (domain.Page[T], error)
	Update(ctx context.Context, id string, patch domain.Patch) (T, error)
	Delete(ctx context.Context, id string) (T, error)
}

// Document is a stored record: its JSON form plus the columns the backends
// index on.
type Document struct {
	ID        string
	Data      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Query selects documents of one collection.
type Query struct {
	Search       string
	SearchFields []string
	SortField    string
	Descending   bool
	Offset       int
	Limit        int
}

// Backend persists documents. Implementations return domain.ErrNotFound for
// missing ids and wrap infrastructure faults with domain.Transient.
type Backend interface {
	Insert(ctx context.Context, c domain.Collection, doc Document) error
	Fetch(ctx context.Context, c domain.Collection, id string) (Document, error)
	// Modify atomically replaces a document with the result of fn.
	Modify(ctx context.Context, c domain.Collection, id string, fn func(Document) (Document, error)) (Document, error)
	Remove(ctx context.Context, c domain.Collection, id string) (Document, error)
	Query(ctx context.Context, c domain.Collection, q Query) ([]Document, int, error)
	Count(ctx context.Context, c domain.Collection) (int, error)
	Close() error
}

// Collection stores records of type T in a Backend. It owns record identity
// and timestamps.
type Collection[T domain.Entity] struct {
	backend Backend
	name    domain.Collection
	clock   clock.Clock
}

func NewCollection[T domain.Entity](b Backend, clk clock.Clock) *Collection[T] {
	var zero T
	if clk == nil {
		clk = clock.System{}
	}
	return &Collection[T]{backend: b, name: zero.Collection(), clock: clk}
}

func (s *Collection[T]) Name() domain.Collection { return s.name }

func (s *Collection[T]) Create(ctx context.Context, v T) (T, error) {
	var zero T
	v = domain.WithDefaults(v)
	if err := v.Validate(); err != nil {
		return zero, err
	}

	now := s.now()
	doc, out, err := encode(v, uuid.NewString(), now, now)
	if err != nil {
		return zero, err
	}
	if err := s.backend.Insert(ctx, s.name, doc); err != nil {
		return zero, fmt.Errorf("creating %s: %w", s.name, err)
	}
	return out, nil
}

func (s *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	doc, err := s.backend.Fetch(ctx, s.name, id)
	if err != nil {
		return zero, err
	}
	return decode[T](doc)
}

func (s *Collection[T]) List(ctx context.Context, p domain.ListParams) (domain.Page[T], error) {
	p, err := p.Normalize(s.name)
	if err != nil {
		return domain.Page[T]{}, err
	}
	docs, total, err := s.backend.Query(ctx, s.name, Query{
		Search:       p.Search,
		SearchFields: s.name.SearchFields(),
		SortField:    p.SortBy,
		Descending:   p.Descending(),
		Offset:       p.Offset(),
		Limit:        p.Limit,
	})
	if err != nil {
		return domain.Page[T]{}, fmt.Errorf("listing %s: %w", s.name, err)
	}

	items := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := decode[T](d)
		if err != nil {
			return domain.Page[T]{}, err
		}
		items = append(items, v)
	}
	return domain.NewPage(items, total, p), nil
}

func (s *Collection[T]) Update(ctx context.Context, id string, patch domain.Patch) (T, error) {
	var out T
	_, err := s.backend.Modify(ctx, s.name, id, func(cur Document) (Document, error) {
		v, err := decode[T](cur)
		if err != nil {
			return Document{}, err
		}
		v, err = domain.ApplyPatch(v, patch)
		if err != nil {
			return Document{}, err
		}
		doc, updated, err := encode(v, cur.ID, cur.CreatedAt, s.now())
		if err != nil {
			return Document{}, err
		}
		out = updated
		return doc, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func (s *Collection[T]) Delete(ctx context.Context, id string) (T, error) {
	var zero T
	doc, err := s.backend.Remove(ctx, s.name, id)
	if err != nil {
		return zero, err
	}
	return decode[T](doc)
}

// Count returns the number of stored records.
func (s *Collection[T]) Count(ctx context.Context) (int, error) {
	return s.backend.Count(ctx, s.name)
}

func (s *Collection[T]) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Microsecond)
}

// encode stamps identity and timestamps onto v and returns both the stored
// document and the stamped record.
func encode[T domain.Entity](v T, id string, created, updated time.Time) (Document, T, error) {
	var zero T
	raw, err := json.Marshal(v)
	if err != nil {
		return Document{}, zero, fmt.Errorf("encoding %s: %w", v.Collection(), err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Document{}, zero, fmt.Errorf("encoding %s: %w", v.Collection(), err)
	}
	fields[domain.FieldID] = id
	fields[domain.FieldCreatedAt] = created
	fields[domain.FieldUpdatedAt] = updated

	data, err := json.Marshal(fields)
	if err != nil {
		return Document{}, zero, fmt.Errorf("encoding %s: %w", v.Collection(), err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return Document{}, zero, fmt.Errorf("encoding %s: %w", v.Collection(), err)
	}
	return Document{ID: id, Data: data, CreatedAt: created, UpdatedAt: updated}, out, nil
}

func decode[T domain.Entity](d Document) (T, error) {
	var v T
	if err := json.Unmarshal(d.Data, &v); err != nil {
		return v, fmt.Errorf("decoding %s %s: %w", v.Collection(), d.ID, err)
	}
	return v, nil
}
