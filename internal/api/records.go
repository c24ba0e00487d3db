package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Abdul07in/supplychainx/internal/domain"
	"github.com/Abdul07in/supplychainx/internal/inventory"
	"github.com/go-chi/chi/v5"
)

// RecordHandler serves CRUD for one collection through the inventory service,
// so every write is a coordinated mutation that publishes its events.
type RecordHandler[T domain.Entity] struct {
	entities *inventory.Entities[T]
	name     domain.Collection
}

func NewRecordHandler[T domain.Entity](e *inventory.Entities[T]) *RecordHandler[T] {
	var zero T
	return &RecordHandler[T]{entities: e, name: zero.Collection()}
}

// Routes mounts the collection endpoints on r.
func (h *RecordHandler[T]) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

func (h *RecordHandler[T]) Create(w http.ResponseWriter, r *http.Request) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.entities.Create(r.Context(), v)
	if err != nil {
		respondServiceError(w, err, fmt.Sprintf("failed to create %s record", h.name))
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *RecordHandler[T]) List(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.entities.List(r.Context(), params)
	if err != nil {
		respondServiceError(w, err, fmt.Sprintf("failed to list %s", h.name))
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *RecordHandler[T]) Get(w http.ResponseWriter, r *http.Request) {
	v, err := h.entities.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, fmt.Sprintf("failed to get %s record", h.name))
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func (h *RecordHandler[T]) Update(w http.ResponseWriter, r *http.Request) {
	var patch domain.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(patch) == 0 {
		respondError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	v, err := h.entities.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		respondServiceError(w, err, fmt.Sprintf("failed to update %s record", h.name))
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func (h *RecordHandler[T]) Delete(w http.ResponseWriter, r *http.Request) {
	v, err := h.entities.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, fmt.Sprintf("failed to delete %s record", h.name))
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func parseListParams(r *http.Request) (domain.ListParams, error) {
	q := r.URL.Query()
	p := domain.ListParams{
		Search:    q.Get("search"),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}

	var err error
	if p.Page, err = queryInt(q.Get("page")); err != nil {
		return p, fmt.Errorf("page must be a number")
	}
	if p.Limit, err = queryInt(q.Get("limit")); err != nil {
		return p, fmt.Errorf("limit must be a number")
	}
	return p, nil
}

func queryInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
