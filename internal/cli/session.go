package cli

import (
	"context"
	"fmt"

	"github.com/Abdul07in/supplychainx/internal/cache"
	"github.com/Abdul07in/supplychainx/internal/client"
	"github.com/Abdul07in/supplychainx/internal/coordinator"
	"github.com/Abdul07in/supplychainx/internal/domain"
	"github.com/Abdul07in/supplychainx/internal/inventory"
)

// session is one CLI invocation's view of the server. Events are published
// by the server, so the local coordinator has no publisher.
type session struct {
	client  *client.Client
	service *inventory.Service
}

func newSession(opts *RootOptions) *session {
	logger := opts.logger()
	c := client.New(opts.Server)

	invOpts := inventory.DefaultOptions()
	invOpts.Retry.MaxAttempts = opts.Retries

	coord := coordinator.New(cache.New(logger), logger)
	svc := inventory.NewService(inventory.Backends{
		Products:       client.NewRemote[domain.Product](c),
		Suppliers:      client.NewRemote[domain.Supplier](c),
		PurchaseOrders: client.NewRemote[domain.PurchaseOrder](c),
		SalesOrders:    client.NewRemote[domain.SalesOrder](c),
		Shipments:      client.NewRemote[domain.Shipment](c),
		Overview:       c.Overview,
	}, coord, invOpts, logger)

	return &session{client: c, service: svc}
}

// records is the untyped face of one collection, for commands that take the
// collection name as an argument.
type records interface {
	List(ctx context.Context, p domain.ListParams) (any, error)
	Get(ctx context.Context, id string) (any, error)
	Create(ctx context.Context, data []byte) (any, error)
	Update(ctx context.Context, id string, patch domain.Patch) (any, error)
	Delete(ctx context.Context, id string) (any, error)
}

type entityRecords[T domain.Entity] struct {
	entities *inventory.Entities[T]
}

func (r entityRecords[T]) List(ctx context.Context, p domain.ListParams) (any, error) {
	return r.entities.List(ctx, p)
}

func (r entityRecords[T]) Get(ctx context.Context, id string) (any, error) {
	return r.entities.Get(ctx, id)
}

func (r entityRecords[T]) Create(ctx context.Context, data []byte) (any, error) {
	v, err := domain.DecodeEntity[T](data)
	if err != nil {
		return nil, err
	}
	return r.entities.Create(ctx, v)
}

func (r entityRecords[T]) Update(ctx context.Context, id string, patch domain.Patch) (any, error) {
	return r.entities.Update(ctx, id, patch)
}

func (r entityRecords[T]) Delete(ctx context.Context, id string) (any, error) {
	return r.entities.Delete(ctx, id)
}

func (s *session) collection(name string) (records, error) {
	switch domain.Collection(name) {
	case domain.Products:
		return entityRecords[domain.Product]{s.service.Products.Entities}, nil
	case domain.Suppliers:
		return entityRecords[domain.Supplier]{s.service.Suppliers}, nil
	case domain.PurchaseOrders:
		return entityRecords[domain.PurchaseOrder]{s.service.PurchaseOrders}, nil
	case domain.SalesOrders:
		return entityRecords[domain.SalesOrder]{s.service.SalesOrders}, nil
	case domain.Shipments:
		return entityRecords[domain.Shipment]{s.service.Shipments}, nil
	}
	return nil, fmt.Errorf("unknown collection %q: must be one of %v", name, domain.Collections)
}
