package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/Abdul07in/supplychainx/internal/clock"
	"github.com/Abdul07in/supplychainx/internal/domain"
)

// Open picks a backend from a database URL:
//
//	postgres://... or postgresql://...   PostgreSQL
//	sqlite:<path>                        SQLite file
//	memory:                              in-process map
func Open(ctx context.Context, databaseURL string) (Backend, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return NewPostgres(ctx, databaseURL)
	case strings.HasPrefix(databaseURL, "sqlite:"):
		return NewSQLite(ctx, strings.TrimPrefix(databaseURL, "sqlite:"))
	case databaseURL == "memory:":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unsupported database URL %q", databaseURL)
}

// Stores bundles one typed collection per entity over a shared backend.
type Stores struct {
	Backend        Backend
	Products       *Collection[domain.Product]
	Suppliers      *Collection[domain.Supplier]
	PurchaseOrders *Collection[domain.PurchaseOrder]
	SalesOrders    *Collection[domain.SalesOrder]
	Shipments      *Collection[domain.Shipment]

	clock clock.Clock
}

func NewStores(b Backend, clk clock.Clock) *Stores {
	if clk == nil {
		clk = clock.System{}
	}
	return &Stores{
		clock:          clk,
		Backend:        b,
		Products:       NewCollection[domain.Product](b, clk),
		Suppliers:      NewCollection[domain.Supplier](b, clk),
		PurchaseOrders: NewCollection[domain.PurchaseOrder](b, clk),
		SalesOrders:    NewCollection[domain.SalesOrder](b, clk),
		Shipments:      NewCollection[domain.Shipment](b, clk),
	}
}

// Counts returns the number of records in every collection.
func (s *Stores) Counts(ctx context.Context) (map[domain.Collection]int, error) {
	out := make(map[domain.Collection]int, len(domain.Collections))
	for _, c := range domain.Collections {
		n, err := s.Backend.Count(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("counting %s: %w", c, err)
		}
		out[c] = n
	}
	return out, nil
}
