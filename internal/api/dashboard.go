package api

import (
	"context"
	"net/http"

	"github.com/Abdul07in/supplychainx/internal/domain"
	"github.com/Abdul07in/supplychainx/internal/inventory"
	"github.com/Abdul07in/supplychainx/internal/notify"
	ws "github.com/Abdul07in/supplychainx/internal/websocket"
	"github.com/go-chi/chi/v5"
)

// Reporter computes figures over the whole record store.
type Reporter interface {
	Metrics(ctx context.Context, threshold int) (domain.Metrics, error)
	InventoryReport(ctx context.Context, threshold int) (domain.InventoryReport, error)
}

type DashboardHandler struct {
	service    *inventory.Service
	reports    Reporter
	threshold  int
	cb         *notify.CircuitBreaker
	recipients notify.Recipients
	hub        *ws.Hub
}

// NewDashboardHandler builds the dashboard and report endpoints. Products
// below threshold count as low on stock. cb may be nil when notices run
// without Redis.
func NewDashboardHandler(s *inventory.Service, reports Reporter, threshold int, cb *notify.CircuitBreaker, recipients notify.Recipients, hub *ws.Hub) *DashboardHandler {
	return &DashboardHandler{
		service:    s,
		reports:    reports,
		threshold:  threshold,
		cb:         cb,
		recipients: recipients,
		hub:        hub,
	}
}

type overviewResponse struct {
	Metrics          domain.Metrics            `json:"metrics"`
	Counts           map[domain.Collection]int `json:"counts"`
	CachedQueries    int                       `json:"cached_queries"`
	WebSocketClients int                       `json:"websocket_clients"`
}

// Overview returns the dashboard metrics and record counts per collection.
func (h *DashboardHandler) Overview(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.Overview(r.Context())
	if err != nil {
		respondServiceError(w, err, "failed to get overview")
		return
	}
	metrics, err := h.reports.Metrics(r.Context(), h.threshold)
	if err != nil {
		respondServiceError(w, err, "failed to compute metrics")
		return
	}

	resp := overviewResponse{
		Metrics:       metrics,
		Counts:        counts,
		CachedQueries: h.service.Cache().Len(),
	}
	if h.hub != nil {
		resp.WebSocketClients = h.hub.ClientCount()
	}
	respondJSON(w, http.StatusOK, resp)
}

type recipientHealth struct {
	Recipient      string              `json:"recipient"`
	CircuitBreaker notify.BreakerState `json:"circuit_breaker"`
}

// Notices returns the circuit breaker state of every department recipient.
func (h *DashboardHandler) Notices(w http.ResponseWriter, r *http.Request) {
	recipients := []string{
		h.recipients.Inventory,
		h.recipients.Procurement,
		h.recipients.Sales,
		h.recipients.Logistics,
	}

	result := make([]recipientHealth, 0, len(recipients))
	for _, to := range recipients {
		state := notify.BreakerState{State: notify.StateClosed}
		if h.cb != nil {
			state = h.cb.GetState(r.Context(), to)
		}
		result = append(result, recipientHealth{Recipient: to, CircuitBreaker: state})
	}
	respondJSON(w, http.StatusOK, result)
}

// Report renders the report named in the URL. Only the inventory report
// exists.
func (h *DashboardHandler) Report(w http.ResponseWriter, r *http.Request) {
	switch kind := chi.URLParam(r, "kind"); kind {
	case "inventory":
		report, err := h.reports.InventoryReport(r.Context(), h.threshold)
		if err != nil {
			respondServiceError(w, err, "failed to build inventory report")
			return
		}
		respondJSON(w, http.StatusOK, report)
	default:
		respondError(w, http.StatusNotFound, "unknown report: "+kind)
	}
}
