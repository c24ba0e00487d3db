package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdul07in/supplychainx/internal/cache"
	"github.com/Abdul07in/supplychainx/internal/clock"
	"github.com/Abdul07in/supplychainx/internal/coordinator"
	"github.com/Abdul07in/supplychainx/internal/domain"
	"github.com/Abdul07in/supplychainx/internal/events"
	"github.com/Abdul07in/supplychainx/internal/monitor"
	"github.com/Abdul07in/supplychainx/internal/retry"
	"github.com/Abdul07in/supplychainx/internal/store"
)

// gated wraps a record store so tests can observe the cache mid-commit and
// inject failures.
type gated[T domain.Entity] struct {
	store.Records[T]

	onWrite    func()
	failWrites error
	writeCalls int
}

func (g *gated[T]) write() error {
	g.writeCalls++
	if g.onWrite != nil {
		g.onWrite()
	}
	return g.failWrites
}

func (g *gated[T]) Create(ctx context.Context, v T) (T, error) {
	if err := g.write(); err != nil {
		var zero T
		return zero, err
	}
	return g.Records.Create(ctx, v)
}

func (g *gated[T]) Update(ctx context.Context, id string, p domain.Patch) (T, error) {
	if err := g.write(); err != nil {
		var zero T
		return zero, err
	}
	return g.Records.Update(ctx, id, p)
}

func (g *gated[T]) Delete(ctx context.Context, id string) (T, error) {
	if err := g.write(); err != nil {
		var zero T
		return zero, err
	}
	return g.Records.Delete(ctx, id)
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) handle(ctx context.Context, e events.Event) error {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
	return nil
}

func (l *eventLog) all() []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]events.Event(nil), l.events...)
}

func (l *eventLog) kinds() []events.Kind {
	var out []events.Kind
	for _, e := range l.all() {
		out = append(out, e.Kind)
	}
	return out
}

type taskQueue struct {
	mu    sync.Mutex
	tasks []func()
}

func (q *taskQueue) schedule(task func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
}

func (q *taskQueue) runAll() {
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()
		task()
	}
}

type testEnv struct {
	svc      *Service
	stores   *store.Stores
	cache    *cache.Cache
	bus      *events.Bus
	log      *eventLog
	sched    *taskQueue
	products *gated[domain.Product]
}

func setupTestService(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	clk := clock.NewManual(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))

	bus := events.NewBus(logger, events.WithClock(clk))
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

	log := &eventLog{}
	for _, k := range events.Kinds {
		_, err := bus.Subscribe(k, "recorder", log.handle)
		require.NoError(t, err)
	}
	require.NoError(t, monitor.NewStockMonitor(bus, monitor.DefaultStockThreshold, logger).Register(bus))

	sched := &taskQueue{}
	c := cache.New(logger, cache.WithClock(clk), cache.WithScheduler(sched.schedule))
	co := coordinator.New(c, logger, coordinator.WithClock(clk), coordinator.WithPublisher(bus))

	stores := store.NewStores(store.NewMemory(), clk)
	products := &gated[domain.Product]{Records: stores.Products}

	opts := DefaultOptions()
	opts.Clock = clk
	opts.Retry.Sleep = func(ctx context.Context, d time.Duration) error { return nil }

	svc := NewService(Backends{
		Products:       products,
		Suppliers:      stores.Suppliers,
		PurchaseOrders: stores.PurchaseOrders,
		SalesOrders:    stores.SalesOrders,
		Shipments:      stores.Shipments,
		Overview:       stores.Counts,
	}, co, opts, logger)

	return &testEnv{svc: svc, stores: stores, cache: c, bus: bus, log: log, sched: sched, products: products}
}

func (env *testEnv) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, env.bus.Drain(ctx))
}

func cachedProduct(t *testing.T, c *cache.Cache, key cache.Key) domain.Product {
	t.Helper()
	e, ok := c.Read(key)
	require.True(t, ok, "%s not cached", key)
	var p domain.Product
	require.NoError(t, json.Unmarshal(e.Value, &p))
	return p
}

func cachedPage(t *testing.T, c *cache.Cache, key cache.Key) domain.Page[domain.Product] {
	t.Helper()
	e, ok := c.Read(key)
	require.True(t, ok, "%s not cached", key)
	var p domain.Page[domain.Product]
	require.NoError(t, json.Unmarshal(e.Value, &p))
	return p
}

func widget() domain.Product {
	return domain.Product{Name: "Widget", SKU: "W-1", Category: "Parts", Price: 4, StockQuantity: 25, IsActive: true}
}

func TestService_StockScenario(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	w, err := env.svc.Products.Create(ctx, widget())
	require.NoError(t, err)
	env.drain(t)
	assert.Equal(t, []events.Kind{events.ProductCreated}, env.log.kinds(), "creating at 25 is not low stock")

	detail := env.svc.Products.Keys().Detail(w.ID)
	_, err = env.svc.Products.Get(ctx, w.ID)
	require.NoError(t, err)

	env.products.onWrite = func() {
		assert.Equal(t, 15, cachedProduct(t, env.cache, detail).StockQuantity, "optimistic value visible during commit")
	}
	updated, err := env.svc.Products.Update(ctx, w.ID, domain.Patch{"stock_quantity": 15})
	require.NoError(t, err)
	assert.Equal(t, 15, updated.StockQuantity)
	env.drain(t)

	assert.Equal(t, []events.Kind{
		events.ProductCreated, events.ProductUpdated, events.StockUpdated, events.StockLow,
	}, env.log.kinds())
	all := env.log.all()
	low, ok := all[3].Payload.(events.StockLowPayload)
	require.True(t, ok)
	assert.Equal(t, "Widget", low.Product.Name)
	assert.Equal(t, 15, low.Product.StockQuantity)
	stock := all[2].Payload.(events.StockUpdatedPayload)
	assert.Equal(t, 25, stock.PreviousQuantity)

	// Refresh the detail entry so the failing update starts from server state.
	_, err = env.svc.Products.Get(ctx, w.ID)
	require.NoError(t, err)
	env.sched.runAll()
	before, ok := env.cache.Read(detail)
	require.True(t, ok)
	require.Equal(t, cache.Fresh, before.State)

	env.products.onWrite = func() {
		assert.Equal(t, 10, cachedProduct(t, env.cache, detail).StockQuantity)
	}
	env.products.failWrites = domain.Transient(errors.New("database unavailable"))
	env.products.writeCalls = 0

	_, err = env.svc.Products.Update(ctx, w.ID, domain.Patch{"stock_quantity": 10})
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
	assert.Equal(t, retry.DefaultMaxAttempts, env.products.writeCalls, "transient failures are retried")

	after, ok := env.cache.Read(detail)
	require.True(t, ok)
	assert.Equal(t, before.Value, after.Value, "cache reverts to the pre-mutation bytes")
	assert.Equal(t, 15, cachedProduct(t, env.cache, detail).StockQuantity)

	env.drain(t)
	assert.Len(t, env.log.all(), 4, "a failed mutation publishes nothing")

	stored, err := env.stores.Products.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, stored.StockQuantity)
}

func TestService_NotFoundIsNotRetried(t *testing.T) {
	env := setupTestService(t)
	_, err := env.svc.Products.Update(context.Background(), "missing", domain.Patch{"name": "x"})
	assert.True(t, domain.IsNotFound(err))
	assert.Zero(t, env.products.writeCalls)
}

func TestService_SetStock(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	w, err := env.svc.Products.Create(ctx, widget())
	require.NoError(t, err)

	p, err := env.svc.Products.SetStock(ctx, w.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, p.StockQuantity)
	env.drain(t)
	assert.Contains(t, env.log.kinds(), events.StockLow)

	_, err = env.svc.Products.SetStock(ctx, w.ID, -1)
	assert.True(t, domain.IsValidation(err))
}

func TestService_OptimisticCreateInList(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	_, err := env.stores.Products.Create(ctx, domain.Product{Name: "Gadget", SKU: "G-1", Category: "Tools"})
	require.NoError(t, err)

	params := domain.ListParams{Limit: 10}
	page, err := env.svc.Products.List(ctx, params)
	require.NoError(t, err)
	require.Equal(t, 1, page.TotalCount)

	norm, err := params.Normalize(domain.Products)
	require.NoError(t, err)
	listKey := env.svc.Products.Keys().List(norm)

	env.products.onWrite = func() {
		speculative := cachedPage(t, env.cache, listKey)
		require.Len(t, speculative.Items, 2)
		assert.Equal(t, "Widget", speculative.Items[0].Name)
		assert.True(t, strings.HasPrefix(speculative.Items[0].ID, "tmp-"))
		assert.Equal(t, 2, speculative.TotalCount)
	}
	created, err := env.svc.Products.Create(ctx, widget())
	require.NoError(t, err)

	_, ok := env.cache.Read(listKey)
	assert.False(t, ok, "the page holding the placeholder is dropped after commit")

	page, err = env.svc.Products.List(ctx, params)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, created.ID, page.Items[0].ID, "the first read after commit shows the real id")
	assert.Empty(t, env.sched.tasks)
}

func TestService_CreateSkipsListsItCannotAppearIn(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	_, err := env.stores.Products.Create(ctx, domain.Product{Name: "Gadget", SKU: "G-1", Category: "Tools"})
	require.NoError(t, err)

	gadgets := domain.ListParams{Search: "gadget"}
	_, err = env.svc.Products.List(ctx, gadgets)
	require.NoError(t, err)
	norm, _ := gadgets.Normalize(domain.Products)
	gadgetKey := env.svc.Products.Keys().List(norm)
	before, _ := env.cache.Read(gadgetKey)

	all := domain.ListParams{}
	_, err = env.svc.Products.List(ctx, all)
	require.NoError(t, err)
	norm, _ = all.Normalize(domain.Products)
	allKey := env.svc.Products.Keys().List(norm)

	env.products.onWrite = func() {
		during, _ := env.cache.Read(gadgetKey)
		assert.Equal(t, before.Value, during.Value, "a widget does not match the gadget search")
		assert.Len(t, cachedPage(t, env.cache, allKey).Items, 2)
	}
	_, err = env.svc.Products.Create(ctx, widget())
	require.NoError(t, err)
	assert.Equal(t, 1, env.products.writeCalls)
}

func TestService_InvalidPatchAppliesNothing(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	w, err := env.stores.Products.Create(ctx, widget())
	require.NoError(t, err)
	_, err = env.svc.Products.Get(ctx, w.ID)
	require.NoError(t, err)
	_, err = env.svc.Products.List(ctx, domain.ListParams{})
	require.NoError(t, err)
	env.sched.runAll()
	detail := env.svc.Products.Keys().Detail(w.ID)
	norm, _ := domain.ListParams{}.Normalize(domain.Products)
	listKey := env.svc.Products.Keys().List(norm)
	detailBefore, _ := env.cache.Read(detail)
	listBefore, _ := env.cache.Read(listKey)

	for _, patch := range []domain.Patch{
		{"stock_quantity": -5},
		{"bogus": "x"},
		{"price": "cheap"},
		{"name": ""},
		{"id": "other"},
		{},
	} {
		_, err := env.svc.Products.Update(ctx, w.ID, patch)
		assert.True(t, domain.IsValidation(err), "%v: %v", patch, err)
	}
	assert.Zero(t, env.products.writeCalls, "invalid patches never reach the store")

	detailAfter, ok := env.cache.Read(detail)
	require.True(t, ok)
	assert.Equal(t, detailBefore.Value, detailAfter.Value)
	assert.Equal(t, cache.Fresh, detailAfter.State)
	listAfter, ok := env.cache.Read(listKey)
	require.True(t, ok)
	assert.Equal(t, listBefore.Value, listAfter.Value)

	env.drain(t)
	assert.Empty(t, env.log.kinds())
}

func TestService_FailedCreateRemovesPlaceholder(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	params := domain.ListParams{}
	_, err := env.svc.Products.List(ctx, params)
	require.NoError(t, err)
	norm, _ := params.Normalize(domain.Products)
	listKey := env.svc.Products.Keys().List(norm)
	before, _ := env.cache.Read(listKey)

	env.products.failWrites = domain.Invalid("sku already exists")
	_, err = env.svc.Products.Create(ctx, widget())
	require.Error(t, err)
	assert.Equal(t, 1, env.products.writeCalls, "validation failures are not retried")

	after, _ := env.cache.Read(listKey)
	assert.Equal(t, before.Value, after.Value)
	env.drain(t)
	assert.Empty(t, env.log.kinds())
}

func TestService_CreateValidationAppliesNothing(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	_, err := env.svc.Suppliers.Create(ctx, domain.Supplier{
		Name: "Acme", ContactPerson: "Ada", Email: "not-an-email", Phone: "1", Address: "x",
	})
	assert.True(t, domain.IsValidation(err))

	n, err := env.stores.Suppliers.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	env.drain(t)
	assert.Empty(t, env.log.kinds())
}

func TestService_OptimisticDelete(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	keep, err := env.stores.Products.Create(ctx, domain.Product{Name: "Gadget", SKU: "G-1", Category: "Tools"})
	require.NoError(t, err)
	gone, err := env.stores.Products.Create(ctx, widget())
	require.NoError(t, err)

	params := domain.ListParams{}
	_, err = env.svc.Products.List(ctx, params)
	require.NoError(t, err)
	_, err = env.svc.Products.Get(ctx, gone.ID)
	require.NoError(t, err)
	norm, _ := params.Normalize(domain.Products)
	listKey := env.svc.Products.Keys().List(norm)

	env.products.onWrite = func() {
		page := cachedPage(t, env.cache, listKey)
		require.Len(t, page.Items, 1)
		assert.Equal(t, keep.ID, page.Items[0].ID)
		assert.Equal(t, 1, page.TotalCount)
	}
	deleted, err := env.svc.Products.Delete(ctx, gone.ID)
	require.NoError(t, err)
	assert.Equal(t, gone.ID, deleted.ID)

	_, ok := env.cache.Read(env.svc.Products.Keys().Detail(gone.ID))
	assert.False(t, ok, "detail entry is dropped after delete")

	env.drain(t)
	assert.Equal(t, []events.Kind{events.ProductDeleted}, env.log.kinds())
}

func TestService_UpdateMergesIntoListRows(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	w, err := env.stores.Products.Create(ctx, widget())
	require.NoError(t, err)
	_, err = env.svc.Products.List(ctx, domain.ListParams{})
	require.NoError(t, err)
	norm, _ := domain.ListParams{}.Normalize(domain.Products)
	listKey := env.svc.Products.Keys().List(norm)

	env.products.onWrite = func() {
		page := cachedPage(t, env.cache, listKey)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "Widget Pro", page.Items[0].Name)
		assert.Equal(t, 25, page.Items[0].StockQuantity)
	}
	_, err = env.svc.Products.Update(ctx, w.ID, domain.Patch{"name": "Widget Pro"})
	require.NoError(t, err)

	env.drain(t)
	all := env.log.all()
	require.Len(t, all, 1)
	assert.Equal(t, []string{"name"}, all[0].Payload.(events.ProductUpdatedPayload).Fields)
}

func TestService_PurchaseOrderCarriesSupplier(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	sup, err := env.svc.Suppliers.Create(ctx, domain.Supplier{
		Name: "Acme", ContactPerson: "Ada", Email: "ada@acme.test", Phone: "1", Address: "x",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSupplierStatus, sup.Status)

	_, err = env.svc.PurchaseOrders.Create(ctx, domain.PurchaseOrder{
		OrderNumber: "PO-1", SupplierID: sup.ID, Status: "Pending", TotalAmount: 120,
	})
	require.NoError(t, err)
	_, err = env.svc.PurchaseOrders.Create(ctx, domain.PurchaseOrder{
		OrderNumber: "PO-2", SupplierID: "unknown", Status: "Pending",
	})
	require.NoError(t, err)
	env.drain(t)

	var orders []events.PurchaseOrderCreatedPayload
	for _, e := range env.log.all() {
		if p, ok := e.Payload.(events.PurchaseOrderCreatedPayload); ok {
			orders = append(orders, p)
		}
	}
	require.Len(t, orders, 2)
	require.NotNil(t, orders[0].Supplier)
	assert.Equal(t, "ada@acme.test", orders[0].Supplier.Email)
	assert.Nil(t, orders[1].Supplier)
}

func TestService_ShipmentStatusChange(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	s, err := env.svc.Shipments.Create(ctx, domain.Shipment{
		TrackingNumber: "TRK-1", Carrier: "DHL", Origin: "A", Destination: "B", Status: "Pending",
	})
	require.NoError(t, err)

	_, err = env.svc.Shipments.Update(ctx, s.ID, domain.Patch{"carrier": "UPS"})
	require.NoError(t, err)
	_, err = env.svc.Shipments.Update(ctx, s.ID, domain.Patch{"status": "In Transit"})
	require.NoError(t, err)
	env.drain(t)

	all := env.log.all()
	require.Len(t, all, 1, "only status changes are announced")
	changed := all[0].Payload.(events.ShipmentStatusChangedPayload)
	assert.Equal(t, "In Transit", changed.Shipment.Status)
	assert.Equal(t, "Pending", changed.PreviousStatus)
}

func TestService_Overview(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	counts, err := env.svc.Overview(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts[domain.Products])

	_, err = env.svc.Products.Create(ctx, widget())
	require.NoError(t, err)
	e, _ := env.cache.Read(OverviewKey)
	assert.Equal(t, cache.Stale, e.State, "creates invalidate the overview")

	_, err = env.svc.Overview(ctx)
	require.NoError(t, err)
	env.sched.runAll()
	counts, err = env.svc.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.Products])
}
