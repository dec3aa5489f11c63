// Package api provides HTTP handlers for the Career Dojo API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/okonev/careerdojo/internal/store"
)

// Handler provides common handler utilities.
type Handler struct {
	repo store.Repository
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository) *Handler {
	return &Handler{repo: repo}
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"success":false,"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Success writes the `{success:true, data}` envelope.
func Success(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, envelope{Success: true, Data: data})
}

// Fail writes the `{success:false, error}` envelope.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, envelope{Success: false, Error: message})
}

// Health reports service and database liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		Fail(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	Success(w, http.StatusOK, map[string]string{"status": "ok"})
}
