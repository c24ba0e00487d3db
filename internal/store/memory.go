package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/Abdul07in/supplychainx/internal/domain"
)

// Memory is a Backend held entirely in process memory.
type Memory struct {
	mu   sync.RWMutex
	seq  int64
	data map[domain.Collection]map[string]*memDoc
}

type memDoc struct {
	Document
	seq    int64
	fields map[string]any
}

func NewMemory() *Memory {
	return &Memory{data: make(map[domain.Collection]map[string]*memDoc)}
}

func (m *Memory) Insert(ctx context.Context, c domain.Collection, doc Document) error {
	md, err := newMemDoc(doc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docs := m.data[c]
	if docs == nil {
		docs = make(map[string]*memDoc)
		m.data[c] = docs
	}
	if _, exists := docs[doc.ID]; exists {
		return domain.Invalid("%s %q already exists", c, doc.ID)
	}
	m.seq++
	md.seq = m.seq
	docs[doc.ID] = md
	return nil
}

func (m *Memory) Fetch(ctx context.Context, c domain.Collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	md, ok := m.data[c][id]
	if !ok {
		return Document{}, domain.NotFound(c, id)
	}
	return md.copy(), nil
}

func (m *Memory) Modify(ctx context.Context, c domain.Collection, id string, fn func(Document) (Document, error)) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.data[c][id]
	if !ok {
		return Document{}, domain.NotFound(c, id)
	}
	next, err := fn(cur.copy())
	if err != nil {
		return Document{}, err
	}
	md, err := newMemDoc(next)
	if err != nil {
		return Document{}, err
	}
	md.seq = cur.seq
	m.data[c][id] = md
	return md.copy(), nil
}

func (m *Memory) Remove(ctx context.Context, c domain.Collection, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	md, ok := m.data[c][id]
	if !ok {
		return Document{}, domain.NotFound(c, id)
	}
	delete(m.data[c], id)
	return md.copy(), nil
}

func (m *Memory) Query(ctx context.Context, c domain.Collection, q Query) ([]Document, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*memDoc
	for _, md := range m.data[c] {
		if domain.MatchesSearch(md.fields, q.SearchFields, q.Search) {
			matched = append(matched, md)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		cmp := domain.CompareValues(a.sortValue(q.SortField), b.sortValue(q.SortField))
		if cmp == 0 {
			cmp = compareInt(a.seq, b.seq)
		}
		if q.Descending {
			return cmp > 0
		}
		return cmp < 0
	})

	total := len(matched)
	if q.Offset >= total {
		return []Document{}, total, nil
	}
	end := total
	if q.Limit > 0 && q.Offset+q.Limit < end {
		end = q.Offset + q.Limit
	}
	out := make([]Document, 0, end-q.Offset)
	for _, md := range matched[q.Offset:end] {
		out = append(out, md.copy())
	}
	return out, total, nil
}

func (m *Memory) Count(ctx context.Context, c domain.Collection) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[c]), nil
}

func (m *Memory) Close() error { return nil }

func newMemDoc(doc Document) (*memDoc, error) {
	fields := map[string]any{}
	if err := json.Unmarshal(doc.Data, &fields); err != nil {
		return nil, domain.Invalid("document %s is not an object: %v", doc.ID, err)
	}
	doc.Data = append(json.RawMessage{}, doc.Data...)
	return &memDoc{Document: doc, fields: fields}, nil
}

func (d *memDoc) copy() Document {
	out := d.Document
	out.Data = append(json.RawMessage{}, d.Data...)
	return out
}

func (d *memDoc) sortValue(field string) any {
	switch field {
	case "", domain.FieldCreatedAt:
		return d.CreatedAt
	case domain.FieldUpdatedAt:
		return d.UpdatedAt
	}
	return d.fields[field]
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
