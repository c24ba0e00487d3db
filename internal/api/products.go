package api

import (
	"encoding/json"
	"net/http"

	"github.com/Abdul07in/supplychainx/internal/inventory"
	"github.com/go-chi/chi/v5"
)

type StockHandler struct {
	products *inventory.Products
}

func NewStockHandler(p *inventory.Products) *StockHandler {
	return &StockHandler{products: p}
}

type setStockRequest struct {
	Quantity *int `json:"quantity"`
}

// SetStock handles PATCH /products/{id}/stock.
func (h *StockHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	var req setStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "quantity is required")
		return
	}

	p, err := h.products.SetStock(r.Context(), chi.URLParam(r, "id"), *req.Quantity)
	if err != nil {
		respondServiceError(w, err, "failed to update stock")
		return
	}
	respondJSON(w, http.StatusOK, p)
}
