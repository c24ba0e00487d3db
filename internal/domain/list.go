package domain

import (
	"strings"
	"time"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ListParams selects a page of records. The zero value lists the first page
// sorted by creation time, newest first.
type ListParams struct {
	Search    string `json:"search,omitempty"`
	SortBy    string `json:"sort_by,omitempty"`
	SortOrder string `json:"sort_order,omitempty"`
	Page      int    `json:"page,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// Normalize fills defaults and rejects sort keys the collection does not allow.
func (p ListParams) Normalize(c Collection) (ListParams, error) {
	p.Search = strings.TrimSpace(p.Search)
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.SortBy == "" {
		p.SortBy = FieldCreatedAt
	}
	if !c.Sortable(p.SortBy) {
		return p, Invalid("cannot sort %s by %q", c, p.SortBy)
	}
	switch strings.ToLower(p.SortOrder) {
	case "", "desc":
		p.SortOrder = "desc"
	case "asc":
		p.SortOrder = "asc"
	default:
		return p, Invalid("sort_order must be asc or desc")
	}
	return p, nil
}

// Descending reports whether the normalized params sort newest/largest first.
func (p ListParams) Descending() bool { return p.SortOrder != "asc" }

// Offset returns the number of records skipped before this page.
func (p ListParams) Offset() int { return (p.Page - 1) * p.Limit }

// Page is one page of a list query.
type Page[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"total_count"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

// NewPage assembles a page and computes the page count.
func NewPage[T any](items []T, total int, p ListParams) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Page[T]{Items: items, TotalCount: total, Page: p.Page, Limit: p.Limit, TotalPages: pages}
}

// MatchesSearch reports whether any of the named string fields of doc
// contains search, ignoring case. An empty search matches everything.
func MatchesSearch(doc map[string]any, fields []string, search string) bool {
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return true
	}
	for _, f := range fields {
		if s, ok := doc[f].(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

// CompareValues orders JSON values: missing first, then numbers, strings
// and times by their natural order.
func CompareValues(a, b any) int {
	switch av := a.(type) {
	case nil:
		if b == nil {
			return 0
		}
		return -1
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			}
			return 1
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	}
	if b == nil {
		return 1
	}
	return 0
}
