package domain

import (
	"sort"
	"time"
)

// StatusPending marks purchase and sales orders that have not been processed.
const StatusPending = "Pending"

// Metrics are the headline figures of the dashboard.
type Metrics struct {
	TotalProducts   int `json:"total_products"`
	ActiveSuppliers int `json:"active_suppliers"`
	PendingOrders   int `json:"pending_orders"`
	LowStockItems   int `json:"low_stock_items"`
}

// InventoryReport lists the products whose stock is strictly below
// Threshold, lowest quantity first.
type InventoryReport struct {
	Threshold     int       `json:"threshold"`
	GeneratedAt   time.Time `json:"generated_at"`
	TotalProducts int       `json:"total_products"`
	StockValue    float64   `json:"stock_value"`
	LowStock      []Product `json:"low_stock"`
}

// Add accounts for one product.
func (r *InventoryReport) Add(p Product) {
	r.TotalProducts++
	r.StockValue += p.Price * float64(p.StockQuantity)
	if p.StockQuantity < r.Threshold {
		r.LowStock = append(r.LowStock, p)
	}
}

// Sort orders LowStock by quantity, then name.
func (r *InventoryReport) Sort() {
	sort.SliceStable(r.LowStock, func(i, j int) bool {
		a, b := r.LowStock[i], r.LowStock[j]
		if a.StockQuantity != b.StockQuantity {
			return a.StockQuantity < b.StockQuantity
		}
		return a.Name < b.Name
	})
}
