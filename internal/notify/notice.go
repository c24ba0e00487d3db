// Package notify turns domain events into outbound notices and delivers them
// off the event bus loop.
package notify

import (
	"fmt"
	"time"

	"github.com/Abdul07in/supplychainx/internal/events"
)

// Notice is one outbound message addressed to a single recipient.
type Notice struct {
	ID        string      `json:"id"`
	Kind      events.Kind `json:"kind"`
	To        string      `json:"to"`
	Topic     string      `json:"topic,omitempty"` // id of the record the notice is about
	Subject   string      `json:"subject"`
	Body      string      `json:"body"`
	CreatedAt time.Time   `json:"created_at"`
}

// Recipients are the mailboxes that receive notices for each department.
// Purchase orders go to the supplier's own address instead.
type Recipients struct {
	Inventory   string `yaml:"inventory" json:"inventory"`
	Procurement string `yaml:"procurement" json:"procurement"`
	Sales       string `yaml:"sales" json:"sales"`
	Logistics   string `yaml:"logistics" json:"logistics"`
}

func DefaultRecipients() Recipients {
	return Recipients{
		Inventory:   "inventory@company.com",
		Procurement: "procurement@company.com",
		Sales:       "sales@company.com",
		Logistics:   "logistics@company.com",
	}
}

// Merge returns r with blank fields taken from d.
func (r Recipients) Merge(d Recipients) Recipients {
	if r.Inventory == "" {
		r.Inventory = d.Inventory
	}
	if r.Procurement == "" {
		r.Procurement = d.Procurement
	}
	if r.Sales == "" {
		r.Sales = d.Sales
	}
	if r.Logistics == "" {
		r.Logistics = d.Logistics
	}
	return r
}

// Compose formats the notice for e. It reports false for kinds that do not
// notify anyone and for purchase orders whose supplier has no address.
func (r Recipients) Compose(e events.Event) (Notice, bool) {
	n := Notice{Kind: e.Kind, CreatedAt: e.EmittedAt}

	switch p := e.Payload.(type) {
	case events.ProductCreatedPayload:
		n.To = r.Inventory
		n.Topic = p.Product.ID
		n.Subject = "New Product Added"
		n.Body = fmt.Sprintf("A new product \"%s\" has been added to the inventory.", p.Product.Name)
	case events.StockLowPayload:
		n.To = r.Procurement
		n.Topic = p.Product.ID
		n.Subject = "Low Stock Alert"
		n.Body = fmt.Sprintf("Product \"%s\" is running low on stock. Current quantity: %d",
			p.Product.Name, p.Product.StockQuantity)
	case events.PurchaseOrderCreatedPayload:
		if p.Supplier == nil || p.Supplier.Email == "" {
			return Notice{}, false
		}
		n.To = p.Supplier.Email
		n.Topic = p.Order.ID
		n.Subject = "New Purchase Order"
		n.Body = fmt.Sprintf("You have received a new purchase order: %s", p.Order.OrderNumber)
	case events.SalesOrderCreatedPayload:
		n.To = r.Sales
		n.Topic = p.Order.ID
		n.Subject = "New Sales Order"
		n.Body = fmt.Sprintf("A new sales order has been created: %s", p.Order.OrderNumber)
	case events.ShipmentStatusChangedPayload:
		n.To = r.Logistics
		n.Topic = p.Shipment.ID
		n.Subject = "Shipment Status Update"
		n.Body = fmt.Sprintf("Shipment %s status has been updated to: %s",
			p.Shipment.TrackingNumber, p.Shipment.Status)
	case events.ProductUpdatedPayload, events.ProductDeletedPayload, events.StockUpdatedPayload,
		events.SupplierCreatedPayload, events.SupplierUpdatedPayload, events.SupplierDeletedPayload:
		return Notice{}, false
	default:
		return Notice{}, false
	}

	if n.To == "" {
		return Notice{}, false
	}
	return n, true
}

// NoticeKinds are the event kinds Compose turns into notices.
var NoticeKinds = []events.Kind{
	events.ProductCreated,
	events.StockLow,
	events.PurchaseOrderCreated,
	events.SalesOrderCreated,
	events.ShipmentStatusChanged,
}
