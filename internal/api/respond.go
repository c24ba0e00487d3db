package api

import (
	"encoding/json"
	"net/http"

	"github.com/Abdul07in/supplychainx/internal/domain"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps the domain error taxonomy onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case domain.IsNotFound(err):
		respondError(w, http.StatusNotFound, err.Error())
	case domain.IsValidation(err):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, fallback)
	}
}
