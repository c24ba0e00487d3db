package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/Abdul07in/supplychainx/internal/domain"
)

// Each calls fn for every record, oldest first, reading one page at a time.
func (s *Collection[T]) Each(ctx context.Context, fn func(T) error) error {
	p := domain.ListParams{SortBy: domain.FieldCreatedAt, SortOrder: "asc", Limit: domain.MaxPageSize}
	for p.Page = 1; ; p.Page++ {
		page, err := s.List(ctx, p)
		if err != nil {
			return err
		}
		for _, v := range page.Items {
			if err := fn(v); err != nil {
				return err
			}
		}
		if p.Page >= page.TotalPages {
			return nil
		}
	}
}

// Metrics computes the dashboard figures. Products with a quantity strictly
// below threshold count as low on stock.
func (s *Stores) Metrics(ctx context.Context, threshold int) (domain.Metrics, error) {
	var m domain.Metrics
	err := s.Products.Each(ctx, func(p domain.Product) error {
		m.TotalProducts++
		if p.StockQuantity < threshold {
			m.LowStockItems++
		}
		return nil
	})
	if err != nil {
		return m, fmt.Errorf("scanning products: %w", err)
	}

	err = s.Suppliers.Each(ctx, func(sup domain.Supplier) error {
		if strings.EqualFold(sup.Status, domain.DefaultSupplierStatus) {
			m.ActiveSuppliers++
		}
		return nil
	})
	if err != nil {
		return m, fmt.Errorf("scanning suppliers: %w", err)
	}

	err = s.PurchaseOrders.Each(ctx, func(o domain.PurchaseOrder) error {
		if strings.EqualFold(o.Status, domain.StatusPending) {
			m.PendingOrders++
		}
		return nil
	})
	if err != nil {
		return m, fmt.Errorf("scanning purchase orders: %w", err)
	}

	err = s.SalesOrders.Each(ctx, func(o domain.SalesOrder) error {
		if strings.EqualFold(o.Status, domain.StatusPending) {
			m.PendingOrders++
		}
		return nil
	})
	if err != nil {
		return m, fmt.Errorf("scanning sales orders: %w", err)
	}
	return m, nil
}

// InventoryReport lists the products below threshold.
func (s *Stores) InventoryReport(ctx context.Context, threshold int) (domain.InventoryReport, error) {
	r := domain.InventoryReport{
		Threshold:   threshold,
		GeneratedAt: s.clock.Now().UTC(),
		LowStock:    []domain.Product{},
	}
	err := s.Products.Each(ctx, func(p domain.Product) error {
		r.Add(p)
		return nil
	})
	if err != nil {
		return r, fmt.Errorf("scanning products: %w", err)
	}
	r.Sort()
	return r, nil
}
