package client

import (
	"context"
	"net/http"

	"github.com/Abdul07in/supplychainx/internal/domain"
)

// Remote is the record store of one collection, reached over REST.
type Remote[T domain.Entity] struct {
	client *Client
	name   domain.Collection
}

func NewRemote[T domain.Entity](c *Client) *Remote[T] {
	var zero T
	return &Remote[T]{client: c, name: zero.Collection()}
}

func (r *Remote[T]) Create(ctx context.Context, v T) (T, error) {
	var out T
	err := r.client.do(ctx, http.MethodPost, path(r.name), nil, v, &out)
	return out, err
}

func (r *Remote[T]) Get(ctx context.Context, id string) (T, error) {
	var out T
	err := r.client.do(ctx, http.MethodGet, path(r.name, id), nil, nil, &out)
	return out, err
}

func (r *Remote[T]) List(ctx context.Context, p domain.ListParams) (domain.Page[T], error) {
	var out domain.Page[T]
	err := r.client.do(ctx, http.MethodGet, path(r.name), listQuery(p), nil, &out)
	return out, err
}

func (r *Remote[T]) Update(ctx context.Context, id string, patch domain.Patch) (T, error) {
	var out T
	err := r.client.do(ctx, http.MethodPatch, path(r.name, id), nil, patch, &out)
	return out, err
}

func (r *Remote[T]) Delete(ctx context.Context, id string) (T, error) {
	var out T
	err := r.client.do(ctx, http.MethodDelete, path(r.name, id), nil, nil, &out)
	return out, err
}
