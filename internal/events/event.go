// Package events carries domain mutation notifications from the code that
// performs a mutation to independent in-process subscribers.
package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/Abdul07in/supplychainx/internal/domain"
)

// Kind tags an event. The set of kinds is closed.
type Kind string

const (
	ProductCreated        Kind = "product.created"
	ProductUpdated        Kind = "product.updated"
	ProductDeleted        Kind = "product.deleted"
	StockUpdated          Kind = "stock.updated"
	StockLow              Kind = "stock.low"
	SupplierCreated       Kind = "supplier.created"
	SupplierUpdated       Kind = "supplier.updated"
	SupplierDeleted       Kind = "supplier.deleted"
	PurchaseOrderCreated  Kind = "purchase-order.created"
	SalesOrderCreated     Kind = "sales-order.created"
	ShipmentStatusChanged Kind = "shipment.status.updated"
)

// Kinds lists every kind in a stable order.
var Kinds = []Kind{
	ProductCreated, ProductUpdated, ProductDeleted, StockUpdated, StockLow,
	SupplierCreated, SupplierUpdated, SupplierDeleted,
	PurchaseOrderCreated, SalesOrderCreated, ShipmentStatusChanged,
}

// Known reports whether k is one of the declared kinds.
func (k Kind) Known() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ErrMalformed is returned when publishing an event whose kind is unknown or
// does not match its payload.
var ErrMalformed = errors.New("malformed event")

// Event is an immutable notification that a mutation was committed.
type Event struct {
	Kind      Kind      `json:"kind"`
	Payload   Payload   `json:"payload"`
	EmittedAt time.Time `json:"emitted_at"`
}

// New wraps p in an event stamped at t.
func New(p Payload, t time.Time) Event {
	return Event{Kind: p.Kind(), Payload: p, EmittedAt: t}
}

// Validate checks that the event is well formed.
func (e Event) Validate() error {
	if !e.Kind.Known() {
		return fmt.Errorf("%w: unknown kind %q", ErrMalformed, e.Kind)
	}
	if e.Payload == nil {
		return fmt.Errorf("%w: %s has no payload", ErrMalformed, e.Kind)
	}
	if e.Payload.Kind() != e.Kind {
		return fmt.Errorf("%w: %s carries a %s payload", ErrMalformed, e.Kind, e.Payload.Kind())
	}
	return nil
}

// Payload is the closed union of event bodies. Only types in this package
// implement it; consumers switch on the concrete type.
type Payload interface {
	Kind() Kind
	payload()
}

type ProductCreatedPayload struct {
	Product domain.Product `json:"product"`
}

type ProductUpdatedPayload struct {
	Product domain.Product `json:"product"`
	Fields  []string       `json:"fields"`
}

type ProductDeletedPayload struct {
	Product domain.Product `json:"product"`
}

// StockUpdatedPayload is emitted by every mutation that sets a product's
// stock quantity. Product holds the post-mutation state.
type StockUpdatedPayload struct {
	Product          domain.Product `json:"product"`
	PreviousQuantity int            `json:"previous_quantity"`
}

type StockLowPayload struct {
	Product domain.Product `json:"product"`
}

type SupplierCreatedPayload struct {
	Supplier domain.Supplier `json:"supplier"`
}

type SupplierUpdatedPayload struct {
	Supplier domain.Supplier `json:"supplier"`
}

type SupplierDeletedPayload struct {
	Supplier domain.Supplier `json:"supplier"`
}

// PurchaseOrderCreatedPayload carries the ordering supplier when it could be
// resolved.
type PurchaseOrderCreatedPayload struct {
	Order    domain.PurchaseOrder `json:"order"`
	Supplier *domain.Supplier     `json:"supplier,omitempty"`
}

type SalesOrderCreatedPayload struct {
	Order domain.SalesOrder `json:"order"`
}

type ShipmentStatusChangedPayload struct {
	Shipment       domain.Shipment `json:"shipment"`
	PreviousStatus string          `json:"previous_status,omitempty"`
}

func (ProductCreatedPayload) Kind() Kind        { return ProductCreated }
func (ProductUpdatedPayload) Kind() Kind        { return ProductUpdated }
func (ProductDeletedPayload) Kind() Kind        { return ProductDeleted }
func (StockUpdatedPayload) Kind() Kind          { return StockUpdated }
func (StockLowPayload) Kind() Kind              { return StockLow }
func (SupplierCreatedPayload) Kind() Kind       { return SupplierCreated }
func (SupplierUpdatedPayload) Kind() Kind       { return SupplierUpdated }
func (SupplierDeletedPayload) Kind() Kind       { return SupplierDeleted }
func (PurchaseOrderCreatedPayload) Kind() Kind  { return PurchaseOrderCreated }
func (SalesOrderCreatedPayload) Kind() Kind     { return SalesOrderCreated }
func (ShipmentStatusChangedPayload) Kind() Kind { return ShipmentStatusChanged }

func (ProductCreatedPayload) payload()        {}
func (ProductUpdatedPayload) payload()        {}
func (ProductDeletedPayload) payload()        {}
func (StockUpdatedPayload) payload()          {}
func (StockLowPayload) payload()              {}
func (SupplierCreatedPayload) payload()       {}
func (SupplierUpdatedPayload) payload()       {}
func (SupplierDeletedPayload) payload()       {}
func (PurchaseOrderCreatedPayload) payload()  {}
func (SalesOrderCreatedPayload) payload()     {}
func (ShipmentStatusChangedPayload) payload() {}
