package notify

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Abdul07in/supplychainx/internal/domain"
	"github.com/Abdul07in/supplychainx/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

var emitted = time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)

func TestRecipients_Compose(t *testing.T) {
	r := DefaultRecipients()
	supplier := &domain.Supplier{Name: "Acme", Email: "orders@acme.test"}

	tests := []struct {
		name        string
		payload     events.Payload
		wantOK      bool
		wantTo      string
		wantSubject string
		wantBody    string
	}{
		{
			name:        "product created",
			payload:     events.ProductCreatedPayload{Product: domain.Product{Name: "Widget"}},
			wantOK:      true,
			wantTo:      "inventory@company.com",
			wantSubject: "New Product Added",
			wantBody:    `A new product "Widget" has been added to the inventory.`,
		},
		{
			name:        "stock low",
			payload:     events.StockLowPayload{Product: domain.Product{Name: "Widget", StockQuantity: 15}},
			wantOK:      true,
			wantTo:      "procurement@company.com",
			wantSubject: "Low Stock Alert",
			wantBody:    `Product "Widget" is running low on stock. Current quantity: 15`,
		},
		{
			name: "purchase order with supplier",
			payload: events.PurchaseOrderCreatedPayload{
				Order:    domain.PurchaseOrder{OrderNumber: "PO-1001"},
				Supplier: supplier,
			},
			wantOK:      true,
			wantTo:      "orders@acme.test",
			wantSubject: "New Purchase Order",
			wantBody:    "You have received a new purchase order: PO-1001",
		},
		{
			name:    "purchase order without supplier",
			payload: events.PurchaseOrderCreatedPayload{Order: domain.PurchaseOrder{OrderNumber: "PO-1002"}},
			wantOK:  false,
		},
		{
			name: "purchase order supplier without email",
			payload: events.PurchaseOrderCreatedPayload{
				Order:    domain.PurchaseOrder{OrderNumber: "PO-1003"},
				Supplier: &domain.Supplier{Name: "Quiet"},
			},
			wantOK: false,
		},
		{
			name:        "sales order",
			payload:     events.SalesOrderCreatedPayload{Order: domain.SalesOrder{OrderNumber: "SO-7"}},
			wantOK:      true,
			wantTo:      "sales@company.com",
			wantSubject: "New Sales Order",
			wantBody:    "A new sales order has been created: SO-7",
		},
		{
			name: "shipment status",
			payload: events.ShipmentStatusChangedPayload{
				Shipment: domain.Shipment{TrackingNumber: "TRK-9", Status: "In Transit"},
			},
			wantOK:      true,
			wantTo:      "logistics@company.com",
			wantSubject: "Shipment Status Update",
			wantBody:    "Shipment TRK-9 status has been updated to: In Transit",
		},
		{
			name:    "stock updated is silent",
			payload: events.StockUpdatedPayload{Product: domain.Product{Name: "Widget", StockQuantity: 3}},
			wantOK:  false,
		},
		{
			name:    "supplier created is silent",
			payload: events.SupplierCreatedPayload{Supplier: *supplier},
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := r.Compose(events.New(tt.payload, emitted))
			if ok != tt.wantOK {
				t.Fatalf("Compose ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if n.To != tt.wantTo {
				t.Errorf("To = %q, want %q", n.To, tt.wantTo)
			}
			if n.Subject != tt.wantSubject {
				t.Errorf("Subject = %q, want %q", n.Subject, tt.wantSubject)
			}
			if n.Body != tt.wantBody {
				t.Errorf("Body = %q, want %q", n.Body, tt.wantBody)
			}
			if n.Kind != tt.payload.Kind() {
				t.Errorf("Kind = %q, want %q", n.Kind, tt.payload.Kind())
			}
			if !n.CreatedAt.Equal(emitted) {
				t.Errorf("CreatedAt = %v, want %v", n.CreatedAt, emitted)
			}
		})
	}
}

func TestRecipients_Merge(t *testing.T) {
	r := Recipients{Procurement: "buyers@example.test"}.Merge(DefaultRecipients())

	if r.Procurement != "buyers@example.test" {
		t.Errorf("Procurement = %q, override lost", r.Procurement)
	}
	if r.Inventory != "inventory@company.com" {
		t.Errorf("Inventory = %q, want default", r.Inventory)
	}
}

// captureQueue records submitted notices.
type captureQueue struct {
	mu      sync.Mutex
	notices []Notice
	err     error
}

func (q *captureQueue) Submit(ctx context.Context, n Notice) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.notices = append(q.notices, n)
	return nil
}

func (q *captureQueue) all() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Notice(nil), q.notices...)
}

func setupTestBus(t *testing.T) *events.Bus {
	t.Helper()
	bus := events.NewBus(testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		bus.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return bus
}

func drain(t *testing.T, bus *events.Bus) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := bus.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
}

func TestDispatcher_QueuesNoticesFromBus(t *testing.T) {
	bus := setupTestBus(t)
	queue := &captureQueue{}
	d := NewDispatcher(queue, Recipients{}, testLogger())
	if err := d.Register(bus); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx := context.Background()
	low := domain.Product{ID: "p-1", Name: "Widget", StockQuantity: 15}
	for _, p := range []events.Payload{
		events.StockUpdatedPayload{Product: low, PreviousQuantity: 25},
		events.StockLowPayload{Product: low},
		events.SalesOrderCreatedPayload{Order: domain.SalesOrder{OrderNumber: "SO-1"}},
	} {
		if err := bus.Publish(ctx, events.New(p, emitted)); err != nil {
			t.Fatalf("Publish %s: %v", p.Kind(), err)
		}
	}
	drain(t, bus)

	got := queue.all()
	if len(got) != 2 {
		t.Fatalf("expected 2 notices, got %d", len(got))
	}
	if got[0].Kind != events.StockLow || got[0].To != "procurement@company.com" {
		t.Errorf("first notice = %+v, want StockLow to procurement", got[0])
	}
	if got[1].Kind != events.SalesOrderCreated {
		t.Errorf("second notice kind = %q, want %q", got[1].Kind, events.SalesOrderCreated)
	}
	if got[0].ID == "" || got[0].ID == got[1].ID {
		t.Errorf("notices need distinct ids, got %q and %q", got[0].ID, got[1].ID)
	}
}

func TestDispatcher_SwallowsQueueFailures(t *testing.T) {
	queue := &captureQueue{err: errors.New("queue full")}
	d := NewDispatcher(queue, Recipients{}, testLogger())

	e := events.New(events.ProductCreatedPayload{Product: domain.Product{Name: "Widget"}}, emitted)
	if err := d.handle(context.Background(), e); err != nil {
		t.Errorf("handle should swallow queue errors, got %v", err)
	}
}

func TestRecipients_ComposeSetsTopic(t *testing.T) {
	r := DefaultRecipients()
	n, ok := r.Compose(events.New(events.StockLowPayload{Product: domain.Product{ID: "p-9", Name: "Widget"}}, emitted))
	if !ok {
		t.Fatal("stock low should notify")
	}
	if n.Topic != "p-9" {
		t.Errorf("topic = %q, want the product id", n.Topic)
	}
}
