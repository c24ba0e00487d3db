// Package monitor derives threshold events from committed mutations.
package monitor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Abdul07in/supplychainx/internal/domain"
	"github.com/Abdul07in/supplychainx/internal/events"
)

// DefaultStockThreshold is the quantity below which a product is low on stock.
const DefaultStockThreshold = 20

// StockMonitor publishes StockLow whenever a stock mutation leaves a product
// strictly below the threshold. It fires on every qualifying mutation, so a
// product that stays low alerts again on each update; throttling belongs to
// the notice path (notify.RateLimiter).
type StockMonitor struct {
	publisher events.Publisher
	threshold int
	logger    *slog.Logger
}

func NewStockMonitor(publisher events.Publisher, threshold int, logger *slog.Logger) *StockMonitor {
	if threshold <= 0 {
		threshold = DefaultStockThreshold
	}
	return &StockMonitor{publisher: publisher, threshold: threshold, logger: logger}
}

// Register subscribes the monitor to stock mutations. It never listens to
// StockLow itself.
func (m *StockMonitor) Register(r events.Registrar) error {
	if _, err := r.Subscribe(events.StockUpdated, "stock-monitor", m.handle); err != nil {
		return fmt.Errorf("registering stock monitor: %w", err)
	}
	return nil
}

// Low reports whether p is below the threshold.
func (m *StockMonitor) Low(p domain.Product) bool {
	return p.StockQuantity < m.threshold
}

func (m *StockMonitor) handle(ctx context.Context, e events.Event) error {
	p, ok := e.Payload.(events.StockUpdatedPayload)
	if !ok {
		return fmt.Errorf("stock monitor: unexpected payload %T", e.Payload)
	}
	if !m.Low(p.Product) {
		return nil
	}

	m.logger.Warn("stock below threshold",
		"product_id", p.Product.ID,
		"name", p.Product.Name,
		"stock_quantity", p.Product.StockQuantity,
		"threshold", m.threshold,
	)
	return m.publisher.Publish(ctx, events.New(events.StockLowPayload{Product: p.Product}, e.EmittedAt))
}
