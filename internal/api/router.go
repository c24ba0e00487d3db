package api

import (
	"net/http"

	"github.com/Abdul07in/supplychainx/internal/domain"
	"github.com/Abdul07in/supplychainx/internal/inventory"
	ws "github.com/Abdul07in/supplychainx/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates and configures the HTTP router. hub may be nil.
func NewRouter(svc *inventory.Service, dash *DashboardHandler, hub *ws.Hub, gatherer prometheus.Gatherer, checks ...HealthCheck) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// CORS for dashboard
	r.Use(corsMiddleware)

	stockHandler := NewStockHandler(svc.Products)

	if hub != nil {
		r.Get("/ws", hub.HandleWebSocket)
	}
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler(checks...))

		r.Route("/"+string(domain.Products), func(r chi.Router) {
			NewRecordHandler(svc.Products.Entities).Routes(r)
			r.Patch("/{id}/stock", stockHandler.SetStock)
		})
		r.Route("/"+string(domain.Suppliers), NewRecordHandler(svc.Suppliers).Routes)
		r.Route("/"+string(domain.PurchaseOrders), NewRecordHandler(svc.PurchaseOrders).Routes)
		r.Route("/"+string(domain.SalesOrders), NewRecordHandler(svc.SalesOrders).Routes)
		r.Route("/"+string(domain.Shipments), NewRecordHandler(svc.Shipments).Routes)

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/overview", dash.Overview)
			r.Get("/notices", dash.Notices)
		})
		r.Get("/reports/{kind}", dash.Report)
	})

	return r
}

// corsMiddleware adds CORS headers for dashboard development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
