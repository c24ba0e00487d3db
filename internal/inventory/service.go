// Package inventory is the application layer: it reads collections through
// the query cache and runs every write through the optimistic coordinator,
// attaching the domain events each committed write produces.
package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Abdul07in/supplychainx/internal/cache"
	"github.com/Abdul07in/supplychainx/internal/coordinator"
	"github.com/Abdul07in/supplychainx/internal/domain"
	"github.com/Abdul07in/supplychainx/internal/events"
	"github.com/Abdul07in/supplychainx/internal/retry"
	"github.com/Abdul07in/supplychainx/internal/store"
)

// Backends are the record stores the service writes to. They are either
// local collections (server) or REST remotes (CLI).
type Backends struct {
	Products       store.Records[domain.Product]
	Suppliers      store.Records[domain.Supplier]
	PurchaseOrders store.Records[domain.PurchaseOrder]
	SalesOrders    store.Records[domain.SalesOrder]
	Shipments      store.Records[domain.Shipment]

	// Overview returns record counts per collection.
	Overview func(ctx context.Context) (map[domain.Collection]int, error)
}

// Products adds stock operations to the product collection.
type Products struct {
	*Entities[domain.Product]
}

// SetStock sets a product's stock quantity.
func (p *Products) SetStock(ctx context.Context, id string, quantity int) (domain.Product, error) {
	if quantity < 0 {
		return domain.Product{}, domain.Invalid("stock_quantity must not be negative")
	}
	return p.Update(ctx, id, domain.Patch{"stock_quantity": quantity})
}

type Service struct {
	Products       *Products
	Suppliers      *Entities[domain.Supplier]
	PurchaseOrders *Entities[domain.PurchaseOrder]
	SalesOrders    *Entities[domain.SalesOrder]
	Shipments      *Entities[domain.Shipment]

	overview func(ctx context.Context) (map[domain.Collection]int, error)
	cache    *cache.Cache
	opts     Options
	logger   *slog.Logger
}

func NewService(b Backends, co *coordinator.Coordinator, opts Options, logger *slog.Logger) *Service {
	s := &Service{
		overview: b.Overview,
		cache:    co.Cache(),
		opts:     opts,
		logger:   logger,
	}
	s.Products = &Products{NewEntities(b.Products, co, productHooks(), opts, logger)}
	s.Suppliers = NewEntities(b.Suppliers, co, supplierHooks(), opts, logger)
	s.PurchaseOrders = NewEntities(b.PurchaseOrders, co, purchaseOrderHooks(b.Suppliers, logger), opts, logger)
	s.SalesOrders = NewEntities(b.SalesOrders, co, salesOrderHooks(), opts, logger)
	s.Shipments = NewEntities(b.Shipments, co, shipmentHooks(), opts, logger)
	return s
}

func (s *Service) Cache() *cache.Cache { return s.cache }

// Overview returns cached record counts per collection.
func (s *Service) Overview(ctx context.Context) (map[domain.Collection]int, error) {
	if s.overview == nil {
		return nil, fmt.Errorf("overview is not available")
	}
	entry, err := s.cache.Query(ctx, OverviewKey, func(ctx context.Context) ([]byte, error) {
		var counts map[domain.Collection]int
		err := retry.Do(ctx, s.opts.Retry, func(ctx context.Context) error {
			var err error
			counts, err = s.overview(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(counts)
	}, cache.StaleAfter(s.opts.ListStaleAfter))
	if err != nil {
		return nil, err
	}

	counts := map[domain.Collection]int{}
	if err := json.Unmarshal(entry.Value, &counts); err != nil {
		return nil, fmt.Errorf("decoding cached overview: %w", err)
	}
	return counts, nil
}

func productHooks() Hooks[domain.Product] {
	return Hooks[domain.Product]{
		Created: func(_ context.Context, p domain.Product) []events.Payload {
			return []events.Payload{events.ProductCreatedPayload{Product: p}}
		},
		Updated: func(prev, next domain.Product, patch domain.Patch) []events.Payload {
			out := []events.Payload{events.ProductUpdatedPayload{Product: next, Fields: fields(patch)}}
			if patch.Has("stock_quantity") {
				out = append(out, events.StockUpdatedPayload{Product: next, PreviousQuantity: prev.StockQuantity})
			}
			return out
		},
		Deleted: func(p domain.Product) []events.Payload {
			return []events.Payload{events.ProductDeletedPayload{Product: p}}
		},
	}
}

func supplierHooks() Hooks[domain.Supplier] {
	return Hooks[domain.Supplier]{
		Created: func(_ context.Context, s domain.Supplier) []events.Payload {
			return []events.Payload{events.SupplierCreatedPayload{Supplier: s}}
		},
		Updated: func(_, next domain.Supplier, _ domain.Patch) []events.Payload {
			return []events.Payload{events.SupplierUpdatedPayload{Supplier: next}}
		},
		Deleted: func(s domain.Supplier) []events.Payload {
			return []events.Payload{events.SupplierDeletedPayload{Supplier: s}}
		},
	}
}

// purchaseOrderHooks resolves the ordering supplier so the notice can reach it.
func purchaseOrderHooks(suppliers store.Records[domain.Supplier], logger *slog.Logger) Hooks[domain.PurchaseOrder] {
	return Hooks[domain.PurchaseOrder]{
		Created: func(ctx context.Context, o domain.PurchaseOrder) []events.Payload {
			payload := events.PurchaseOrderCreatedPayload{Order: o}
			if suppliers != nil && o.SupplierID != "" {
				sup, err := suppliers.Get(ctx, o.SupplierID)
				switch {
				case err == nil:
					payload.Supplier = &sup
				case !domain.IsNotFound(err):
					logger.Warn("failed to resolve supplier for purchase order",
						"order_id", o.ID, "supplier_id", o.SupplierID, "error", err)
				}
			}
			return []events.Payload{payload}
		},
	}
}

func salesOrderHooks() Hooks[domain.SalesOrder] {
	return Hooks[domain.SalesOrder]{
		Created: func(_ context.Context, o domain.SalesOrder) []events.Payload {
			return []events.Payload{events.SalesOrderCreatedPayload{Order: o}}
		},
	}
}

func shipmentHooks() Hooks[domain.Shipment] {
	return Hooks[domain.Shipment]{
		Updated: func(prev, next domain.Shipment, patch domain.Patch) []events.Payload {
			if !patch.Has("status") {
				return nil
			}
			return []events.Payload{events.ShipmentStatusChangedPayload{Shipment: next, PreviousStatus: prev.Status}}
		},
	}
}

func fields(p domain.Patch) []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
