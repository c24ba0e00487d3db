package inventory

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Abdul07in/supplychainx/internal/domain"
)

// The functions below compute optimistic cache values. They work on the
// cached JSON directly so one implementation serves every entity type.
// Each reports false when the cached value is absent or does not contain
// the record, leaving the key untouched.

type rawPage = domain.Page[json.RawMessage]

// placeholder is a record that has not been committed yet, rendered as a
// list row with a temporary id.
type placeholder struct {
	row    json.RawMessage
	fields map[string]any
}

func newPlaceholder[T domain.Entity](v T, now time.Time) (placeholder, error) {
	fields, err := toFields(v)
	if err != nil {
		return placeholder{}, err
	}
	fields[domain.FieldID] = "tmp-" + uuid.NewString()
	fields[domain.FieldCreatedAt] = now
	fields[domain.FieldUpdatedAt] = now
	row, err := json.Marshal(fields)
	if err != nil {
		return placeholder{}, err
	}
	return placeholder{row: row, fields: fields}, nil
}

// insertRow counts the new row on the page and, when the row sorts into
// this page, inserts it there and trims the page back to its limit.
func insertRow(cur []byte, ph placeholder, p domain.ListParams) ([]byte, bool) {
	page, ok := decodePage(cur)
	if !ok {
		return nil, false
	}
	page.TotalCount++
	if at, ok := insertAt(page, ph.fields, p); ok {
		items := make([]json.RawMessage, 0, len(page.Items)+1)
		items = append(items, page.Items[:at]...)
		items = append(items, ph.row)
		items = append(items, page.Items[at:]...)
		if page.Limit > 0 && len(items) > page.Limit {
			items = items[:page.Limit]
		}
		page.Items = items
	}
	return encodePage(page)
}

// insertAt returns the index a new row takes on page, or false when it lands
// on another page. The new record is the newest, and ties between equal sort
// values list newer records first when descending and last when ascending.
func insertAt(page rawPage, fields map[string]any, p domain.ListParams) (int, bool) {
	switch p.SortBy {
	case "", domain.FieldCreatedAt, domain.FieldUpdatedAt:
		if p.Descending() {
			return 0, page.Page <= 1
		}
		return len(page.Items), hasRoom(page)
	}

	v := fields[p.SortBy]
	for i, item := range page.Items {
		cmp := domain.CompareValues(v, rowField(item, p.SortBy))
		if (p.Descending() && cmp >= 0) || (!p.Descending() && cmp < 0) {
			if i == 0 && page.Page > 1 {
				return 0, false
			}
			return i, true
		}
	}
	return len(page.Items), hasRoom(page)
}

// hasRoom reports whether page is the last page and not yet full.
func hasRoom(page rawPage) bool {
	return page.Limit <= 0 || len(page.Items) < page.Limit
}

// mergeRow applies patch to the row with the given id, if the page holds it.
func mergeRow(cur []byte, id string, patch domain.Patch) ([]byte, bool) {
	page, ok := decodePage(cur)
	if !ok {
		return nil, false
	}
	found := false
	for i, item := range page.Items {
		if rowID(item) != id {
			continue
		}
		merged, ok := mergeFields(item, patch)
		if !ok {
			return nil, false
		}
		page.Items[i] = merged
		found = true
	}
	if !found {
		return nil, false
	}
	return encodePage(page)
}

// removeRow drops the row with the given id and uncounts it.
func removeRow(cur []byte, id string) ([]byte, bool) {
	page, ok := decodePage(cur)
	if !ok {
		return nil, false
	}
	kept := page.Items[:0:0]
	for _, item := range page.Items {
		if rowID(item) != id {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(page.Items) {
		return nil, false
	}
	page.Items = kept
	if page.TotalCount > 0 {
		page.TotalCount--
	}
	return encodePage(page)
}

// mergeFields applies patch to a single record document.
func mergeFields(cur []byte, patch domain.Patch) ([]byte, bool) {
	if cur == nil {
		return nil, false
	}
	fields := map[string]any{}
	if err := json.Unmarshal(cur, &fields); err != nil {
		return nil, false
	}
	for k, v := range patch {
		fields[k] = v
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, false
	}
	return out, true
}

func decodePage(cur []byte) (rawPage, bool) {
	var page rawPage
	if cur == nil {
		return page, false
	}
	if err := json.Unmarshal(cur, &page); err != nil {
		return page, false
	}
	return page, true
}

func encodePage(page rawPage) ([]byte, bool) {
	if page.Items == nil {
		page.Items = []json.RawMessage{}
	}
	page.TotalPages = 0
	if page.Limit > 0 {
		page.TotalPages = (page.TotalCount + page.Limit - 1) / page.Limit
	}
	out, err := json.Marshal(page)
	if err != nil {
		return nil, false
	}
	return out, true
}

func rowField(row json.RawMessage, field string) any {
	fields := map[string]any{}
	if err := json.Unmarshal(row, &fields); err != nil {
		return nil
	}
	return fields[field]
}

func rowID(row json.RawMessage) string {
	var r struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(row, &r)
	return r.ID
}

func toFields(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
