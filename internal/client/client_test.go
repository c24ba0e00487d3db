package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Abdul07in/supplychainx/internal/domain"
	"github.com/Abdul07in/supplychainx/internal/retry"
)

func setupTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestRemote_List(t *testing.T) {
	var gotPath, gotQuery string
	c := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(domain.Page[domain.Product]{
			Items:      []domain.Product{{ID: "p-1", Name: "Widget"}},
			TotalCount: 11, Page: 2, Limit: 5, TotalPages: 3,
		})
	})

	page, err := NewRemote[domain.Product](c).List(context.Background(), domain.ListParams{
		Search: "wid get", Page: 2, Limit: 5, SortBy: "name", SortOrder: "asc",
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if gotPath != "/api/v1/products" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotQuery != "limit=5&page=2&search=wid+get&sort_by=name&sort_order=asc" {
		t.Errorf("unexpected query %q", gotQuery)
	}
	if page.TotalCount != 11 || len(page.Items) != 1 || page.Items[0].Name != "Widget" {
		t.Errorf("unexpected page %+v", page)
	}
}

func TestRemote_UpdateSendsPatch(t *testing.T) {
	c := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/api/v1/shipments/s-1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"status":"Delivered"}` {
			t.Errorf("unexpected body %s", body)
		}
		json.NewEncoder(w).Encode(domain.Shipment{ID: "s-1", Status: "Delivered"})
	})

	s, err := NewRemote[domain.Shipment](c).Update(context.Background(), "s-1", domain.Patch{"status": "Delivered"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if s.Status != "Delivered" {
		t.Errorf("unexpected shipment %+v", s)
	}
}

func TestRemote_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantErr   error
		retryable bool
	}{
		{"not found", http.StatusNotFound, domain.ErrNotFound, false},
		{"bad request", http.StatusBadRequest, domain.ErrValidation, false},
		{"conflict", http.StatusConflict, nil, false},
		{"server error", http.StatusInternalServerError, domain.ErrTransient, true},
		{"unavailable", http.StatusServiceUnavailable, domain.ErrTransient, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":"boom"}`))
			})

			_, err := NewRemote[domain.Product](c).Get(context.Background(), "p-1")
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("expected StatusError, got %v", err)
			}
			if se.Status != tt.status || se.Message != "boom" {
				t.Errorf("unexpected status error %+v", se)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v in chain, got %v", tt.wantErr, err)
			}
			if got := retry.Retryable(err); got != tt.retryable {
				t.Errorf("Retryable = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestClient_TransportFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewRemote[domain.Product](New(url)).Get(context.Background(), "p-1")
	if !domain.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestClient_Overview(t *testing.T) {
	c := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/dashboard/overview" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"counts":{"products":4,"suppliers":1}}`))
	})

	counts, err := c.Overview(context.Background())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if counts[domain.Products] != 4 || counts[domain.Suppliers] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestClient_InventoryReport(t *testing.T) {
	c := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/reports/inventory" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"threshold":20,"total_products":3,"low_stock":[{"id":"p-1","name":"Bolt","stock_quantity":4}]}`))
	})

	r, err := c.InventoryReport(context.Background())
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if r.Threshold != 20 || r.TotalProducts != 3 || len(r.LowStock) != 1 || r.LowStock[0].Name != "Bolt" {
		t.Errorf("unexpected report %+v", r)
	}
}
