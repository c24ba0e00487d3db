package inventory

import (
	"github.com/Abdul07in/supplychainx/internal/cache"
	"github.com/Abdul07in/supplychainx/internal/domain"
)

// OverviewKey caches the dashboard record counts.
var OverviewKey = cache.NewKey("dashboard", "overview")

// Keys builds the query keys of one collection:
//
//	[c]                  everything cached for c
//	[c, "list"]          every list page
//	[c, "list", params]  one list page
//	[c, "detail", id]    one record
type Keys struct {
	collection domain.Collection
}

func KeysFor(c domain.Collection) Keys { return Keys{collection: c} }

func (k Keys) All() cache.Key                     { return cache.NewKey(string(k.collection)) }
func (k Keys) Lists() cache.Key                   { return k.All().Append("list") }
func (k Keys) List(p domain.ListParams) cache.Key { return k.Lists().Append(p) }
func (k Keys) Detail(id string) cache.Key         { return k.All().Append("detail", id) }

// ListParams recovers the params of a key built by List.
func (k Keys) ListParams(key cache.Key) (domain.ListParams, bool) {
	var p domain.ListParams
	if key.Len() != 3 || !key.HasPrefix(k.Lists()) {
		return p, false
	}
	if err := key.Decode(2, &p); err != nil {
		return p, false
	}
	return p, true
}
