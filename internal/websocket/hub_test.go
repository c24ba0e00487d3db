package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Abdul07in/supplychainx/internal/domain"
	"github.com/Abdul07in/supplychainx/internal/events"
	"github.com/gorilla/websocket"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func connectWS(t *testing.T, hub *Hub) (*websocket.Conn, func()) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	dialer := websocket.Dialer{}
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect WebSocket: %v", err)
	}

	cleanup := func() {
		conn.Close()
		server.Close()
	}

	return conn, cleanup
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", want, hub.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func stockLow() events.Event {
	return events.New(events.StockLowPayload{
		Product: domain.Product{ID: "p-1", Name: "Widget", StockQuantity: 15},
	}, time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC))
}

func TestHub_ClientConnects(t *testing.T) {
	hub := setupTestHub(t)

	conn, cleanup := connectWS(t, hub)
	defer cleanup()

	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHub_BroadcastReachesClient(t *testing.T) {
	hub := setupTestHub(t)

	conn, cleanup := connectWS(t, hub)
	defer cleanup()
	waitForClients(t, hub, 1)

	hub.Broadcast(stockLow())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}

	var got struct {
		Kind    string `json:"kind"`
		Payload struct {
			Product domain.Product `json:"product"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(message, &got); err != nil {
		t.Fatalf("message is not JSON: %v", err)
	}
	if got.Kind != string(events.StockLow) {
		t.Errorf("kind = %q, want %q", got.Kind, events.StockLow)
	}
	if got.Payload.Product.StockQuantity != 15 {
		t.Errorf("stock_quantity = %d, want 15", got.Payload.Product.StockQuantity)
	}
}

func TestHub_MultipleClients(t *testing.T) {
	hub := setupTestHub(t)

	conn1, cleanup1 := connectWS(t, hub)
	defer cleanup1()
	conn2, cleanup2 := connectWS(t, hub)
	defer cleanup2()

	waitForClients(t, hub, 2)

	hub.Broadcast(stockLow())

	for i, conn := range []*websocket.Conn{conn1, conn2} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, message, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("client %d failed to read: %v", i+1, err)
		}
		if !strings.Contains(string(message), `"stock.low"`) {
			t.Errorf("client %d didn't receive broadcast: %s", i+1, message)
		}
	}
}

func TestHub_ForwardsBusEvents(t *testing.T) {
	hub := setupTestHub(t)

	bus := events.NewBus(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	if err := hub.Register(bus); err != nil {
		t.Fatalf("Register: %v", err)
	}

	conn, cleanup := connectWS(t, hub)
	defer cleanup()
	waitForClients(t, hub, 1)

	order := events.New(events.SalesOrderCreatedPayload{
		Order: domain.SalesOrder{ID: "so-1", OrderNumber: "SO-1", CustomerName: "Jo"},
	}, time.Now())
	if err := bus.Publish(context.Background(), order); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	if !strings.Contains(string(message), "SO-1") {
		t.Errorf("expected the sales order in the feed, got: %s", message)
	}
}

func TestHub_ClientCountStartsAtZero(t *testing.T) {
	hub := setupTestHub(t)

	if count := hub.ClientCount(); count != 0 {
		t.Errorf("expected 0 clients initially, got %d", count)
	}
}
