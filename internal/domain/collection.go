package domain

// Collection names an entity type in the record store. The value doubles as
// the REST path segment.
type Collection string

const (
	Products       Collection = "products"
	Suppliers      Collection = "suppliers"
	PurchaseOrders Collection = "purchase-orders"
	SalesOrders    Collection = "sales-orders"
	Shipments      Collection = "shipments"
)

// Collections lists every known collection.
var Collections = []Collection{Products, Suppliers, PurchaseOrders, SalesOrders, Shipments}

var searchFields = map[Collection][]string{
	Products:       {"name", "sku", "category"},
	Suppliers:      {"name", "contact_person", "email"},
	PurchaseOrders: {"order_number", "supplier_name", "status"},
	SalesOrders:    {"order_number", "customer_name", "status"},
	Shipments:      {"tracking_number", "carrier", "status"},
}

var sortFields = map[Collection][]string{
	Products:       {"name", "sku", "price", "stock_quantity"},
	Suppliers:      {"name", "status"},
	PurchaseOrders: {"order_number", "total_amount"},
	SalesOrders:    {"order_number", "total_amount"},
	Shipments:      {"tracking_number", "status"},
}

// Valid reports whether c is a known collection.
func (c Collection) Valid() bool {
	_, ok := searchFields[c]
	return ok
}

// SearchFields returns the text fields matched by a list search.
func (c Collection) SearchFields() []string {
	return searchFields[c]
}

// Sortable reports whether field may be used as a list sort key.
func (c Collection) Sortable(field string) bool {
	if field == FieldCreatedAt || field == FieldUpdatedAt {
		return true
	}
	for _, f := range sortFields[c] {
		if f == field {
			return true
		}
	}
	return false
}

func (c Collection) String() string { return string(c) }
