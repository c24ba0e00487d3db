package domain

import (
	"strings"
	"time"
)

// Field names shared by every stored record.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// Entity is implemented by every record type held in the record store.
type Entity interface {
	Collection() Collection
	RecordID() string
	Validate() error
	rules() []rule
}

// rule is one constraint on one JSON field of a record.
type rule struct {
	field  string
	broken bool
	msg    string
}

// check returns the first broken rule. With a non-nil patch only the rules of
// patched fields count.
func check(rules []rule, only Patch) error {
	for _, r := range rules {
		if only != nil && !only.Has(r.field) {
			continue
		}
		if r.broken {
			return Invalid("%s", r.msg)
		}
	}
	return nil
}

type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	SKU           string    `json:"sku"`
	Category      string    `json:"category"`
	Price         float64   `json:"price"`
	StockQuantity int       `json:"stock_quantity"`
	Description   string    `json:"description"`
	SupplierID    string    `json:"supplier_id,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Product) Collection() Collection { return Products }
func (p Product) RecordID() string     { return p.ID }

func (p Product) Validate() error { return check(p.rules(), nil) }

func (p Product) rules() []rule {
	return []rule{
		{"name", blank(p.Name), "name is required"},
		{"sku", blank(p.SKU), "sku is required"},
		{"category", blank(p.Category), "category is required"},
		{"price", p.Price < 0, "price must not be negative"},
		{"stock_quantity", p.StockQuantity < 0, "stock_quantity must not be negative"},
	}
}

type Supplier struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contact_person"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Address       string    `json:"address"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DefaultSupplierStatus is applied when a supplier is created without one.
const DefaultSupplierStatus = "Active"

func (Supplier) Collection() Collection { return Suppliers }
func (s Supplier) RecordID() string     { return s.ID }

func (s Supplier) Validate() error { return check(s.rules(), nil) }

func (s Supplier) rules() []rule {
	return []rule{
		{"name", blank(s.Name), "name is required"},
		{"contact_person", blank(s.ContactPerson), "contact_person is required"},
		{"email", !strings.Contains(s.Email, "@"), "email must be a valid address"},
		{"phone", blank(s.Phone), "phone is required"},
		{"address", blank(s.Address), "address is required"},
	}
}

type PurchaseOrder struct {
	ID           string    `json:"id"`
	OrderNumber  string    `json:"order_number"`
	SupplierID   string    `json:"supplier_id"`
	SupplierName string    `json:"supplier_name,omitempty"`
	OrderDate    string    `json:"order_date,omitempty"`
	DeliveryDate string    `json:"delivery_date,omitempty"`
	Status       string    `json:"status"`
	TotalAmount  float64   `json:"total_amount"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (PurchaseOrder) Collection() Collection { return PurchaseOrders }
func (o PurchaseOrder) RecordID() string     { return o.ID }

func (o PurchaseOrder) Validate() error { return check(o.rules(), nil) }

func (o PurchaseOrder) rules() []rule {
	return []rule{
		{"order_number", blank(o.OrderNumber), "order_number is required"},
		{"supplier_id", blank(o.SupplierID), "supplier_id is required"},
		{"total_amount", o.TotalAmount < 0, "total_amount must not be negative"},
	}
}

type SalesOrder struct {
	ID           string    `json:"id"`
	OrderNumber  string    `json:"order_number"`
	CustomerID   string    `json:"customer_id,omitempty"`
	CustomerName string    `json:"customer_name"`
	OrderDate    string    `json:"order_date,omitempty"`
	DeliveryDate string    `json:"delivery_date,omitempty"`
	Status       string    `json:"status"`
	TotalAmount  float64   `json:"total_amount"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (SalesOrder) Collection() Collection { return SalesOrders }
func (o SalesOrder) RecordID() string     { return o.ID }

func (o SalesOrder) Validate() error { return check(o.rules(), nil) }

func (o SalesOrder) rules() []rule {
	return []rule{
		{"order_number", blank(o.OrderNumber), "order_number is required"},
		{"customer_name", blank(o.CustomerName), "customer_name is required"},
		{"total_amount", o.TotalAmount < 0, "total_amount must not be negative"},
	}
}

type Shipment struct {
	ID                string    `json:"id"`
	TrackingNumber    string    `json:"tracking_number"`
	Carrier           string    `json:"carrier"`
	Origin            string    `json:"origin"`
	Destination       string    `json:"destination"`
	Status            string    `json:"status"`
	EstimatedDelivery string    `json:"estimated_delivery,omitempty"`
	OrderID           string    `json:"order_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (Shipment) Collection() Collection { return Shipments }
func (s Shipment) RecordID() string     { return s.ID }

func (s Shipment) Validate() error { return check(s.rules(), nil) }

func (s Shipment) rules() []rule {
	return []rule{
		{"tracking_number", blank(s.TrackingNumber), "tracking_number is required"},
		{"carrier", blank(s.Carrier), "carrier is required"},
		{"status", blank(s.Status), "status is required"},
	}
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// WithDefaults fills the fields a record gets when created without them.
func WithDefaults[T Entity](v T) T {
	switch r := any(v).(type) {
	case Supplier:
		if blank(r.Status) {
			r.Status = DefaultSupplierStatus
			return any(r).(T)
		}
	}
	return v
}
