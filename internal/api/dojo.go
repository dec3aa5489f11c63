package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okonev/careerdojo/internal/dojo"
	"github.com/okonev/careerdojo/internal/domain"
	"github.com/okonev/careerdojo/internal/identity"
	"github.com/okonev/careerdojo/internal/sim"
)

// DojoHandler handles the simulation endpoints.
type DojoHandler struct {
	*Handler
	svc *dojo.Service
}

// NewDojoHandler creates a new dojo handler.
func NewDojoHandler(base *Handler, svc *dojo.Service) *DojoHandler {
	return &DojoHandler{Handler: base, svc: svc}
}

// RegisterRoutes registers the dojo routes.
func (h *DojoHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/dojo", func(r chi.Router) {
		r.Post("/start", h.Start)
		r.Post("/respond", h.Respond)
		r.Post("/next", h.Next)
		r.Post("/finalize", h.Finalize)
		r.Get("/session/{id}", h.GetSession)
		r.Get("/roles", h.Roles)
		r.Get("/roles/stats", h.RoleStats)
		r.Get("/reports", h.Reports)
	})
	r.Get("/api/health", h.Health)
}

// Start begins a new three-scenario journey for the chosen role.
func (h *DojoHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := identity.UserIDFromContext(r.Context())
	session, err := h.svc.Start(r.Context(), userID, req.Role)
	if err != nil {
		if errors.Is(err, dojo.ErrInvalidRole) {
			Fail(w, http.StatusBadRequest, "Valid role is required")
			return
		}
		slog.Error("start session failed", "error", err, "user_id", userID)
		Fail(w, http.StatusInternalServerError, "Failed to start dojo session")
		return
	}

	Success(w, http.StatusCreated, session)
}

// Respond handles one user interaction: a free-text message, a structured
// choice, or a choice probe when both are absent.
func (h *DojoHandler) Respond(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string          `json:"sessionId"`
		Message   string          `json:"message"`
		MCQChoice *dojo.MCQChoice `json:"mcqChoice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.Respond(r.Context(), req.SessionID, req.Message, req.MCQChoice)
	if err != nil {
		if errors.Is(err, dojo.ErrSessionNotFound) {
			Fail(w, http.StatusNotFound, "Session not found")
			return
		}
		slog.Error("respond failed", "error", err, "session_id", req.SessionID)
		Fail(w, http.StatusInternalServerError, "Internal system error")
		return
	}

	Success(w, http.StatusOK, result)
}

// Next advances past the current scenario, or completes the session on the
// last one.
func (h *DojoHandler) Next(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
		Reason    string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.Advance(r.Context(), req.SessionID, req.Reason)
	if err != nil {
		if errors.Is(err, dojo.ErrSessionNotFound) {
			Fail(w, http.StatusNotFound, "Session not found")
			return
		}
		slog.Error("advance failed", "error", err, "session_id", req.SessionID)
		Fail(w, http.StatusInternalServerError, "Failed to advance simulation")
		return
	}

	Success(w, http.StatusOK, result)
}

// Finalize compiles the final report for a session.
func (h *DojoHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	report, err := h.svc.Finalize(r.Context(), req.SessionID)
	if err != nil {
		if errors.Is(err, dojo.ErrSessionNotFound) {
			Fail(w, http.StatusNotFound, "Session not found")
			return
		}
		if errors.Is(err, dojo.ErrSessionAbandoned) {
			Fail(w, http.StatusConflict, "Session was abandoned")
			return
		}
		slog.Error("finalize failed", "error", err, "session_id", req.SessionID)
		Fail(w, http.StatusInternalServerError, "Failed to generate comprehensive report")
		return
	}

	Success(w, http.StatusOK, report)
}

// GetSession fetches a session by ID.
func (h *DojoHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	session, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, dojo.ErrSessionNotFound) {
			Fail(w, http.StatusNotFound, "Session not found")
			return
		}
		slog.Error("get session failed", "error", err, "session_id", id)
		Fail(w, http.StatusInternalServerError, "Data retrieval error")
		return
	}

	Success(w, http.StatusOK, session)
}

// Roles lists the available role archetypes.
func (h *DojoHandler) Roles(w http.ResponseWriter, r *http.Request) {
	Success(w, http.StatusOK, map[string]interface{}{"roles": sim.Roles()})
}

// RoleStats summarizes the user's completed sessions per role: the most
// recent grade and the best grade ever achieved.
func (h *DojoHandler) RoleStats(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	sessions, err := h.svc.CompletedSessions(r.Context(), userID)
	if err != nil {
		slog.Error("role stats failed", "error", err, "user_id", userID)
		Fail(w, http.StatusInternalServerError, "Failed to load role statistics")
		return
	}

	Success(w, http.StatusOK, map[string]interface{}{"stats": aggregateRoleStats(sessions)})
}

// aggregateRoleStats folds completed sessions into per-role recent and best
// grades. The input must be ordered most recently completed first; the first
// grade seen per role wins the recent slot.
func aggregateRoleStats(sessions []*domain.Session) map[string]*domain.RoleStats {
	stats := make(map[string]*domain.RoleStats)
	for _, s := range sessions {
		grade := s.FinalReport.OverallGrade
		entry, ok := stats[s.Role]
		if !ok {
			stats[s.Role] = &domain.RoleStats{Recent: grade, Best: grade}
			continue
		}
		if domain.GradeRank[grade] > domain.GradeRank[entry.Best] {
			entry.Best = grade
		}
	}
	return stats
}

// Reports lists the user's completed sessions with their final reports, most
// recently completed first.
func (h *DojoHandler) Reports(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	sessions, err := h.svc.CompletedSessions(r.Context(), userID)
	if err != nil {
		slog.Error("reports listing failed", "error", err, "user_id", userID)
		Fail(w, http.StatusInternalServerError, "Failed to load reports")
		return
	}

	Success(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}
