// Package handler exposes the attendance gate over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/service"
	"rollcall/internal/geofence"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

// Service defines the gate operations the handler depends on.
type Service interface {
	CheckIn(ctx context.Context, employeeID id.EmployeeID, sample string, loc geofence.Coordinate) (*models.Session, error)
	CheckOut(ctx context.Context, employeeID id.EmployeeID, sample string, loc geofence.Coordinate) (*models.Session, error)
	ForceCheckOut(ctx context.Context, employeeID id.EmployeeID, reason string) (*models.Session, error)
	CurrentStatus(ctx context.Context, employeeID id.EmployeeID) (*models.Session, error)
	History(ctx context.Context, employeeID id.EmployeeID, from, to time.Time) ([]*models.Session, error)
	Summarize(ctx context.Context, employeeID id.EmployeeID, from, to time.Time) (service.Summary, error)
	CurrentlyPresent(ctx context.Context) ([]service.PresentEmployee, error)
}

// Handler handles attendance endpoints.
type Handler struct {
	gate   Service
	logger *slog.Logger
}

// New creates an attendance Handler.
func New(gate Service, logger *slog.Logger) *Handler {
	return &Handler{gate: gate, logger: logger}
}

// Register mounts employee routes behind requireAuth and administrative
// routes behind requireAdmin.
func (h *Handler) Register(r chi.Router, requireAuth, requireAdmin func(http.Handler) http.Handler) {
	r.Route("/attendance", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/check-in", h.handleCheckIn)
		r.Post("/check-out", h.handleCheckOut)
		r.Get("/status", h.handleStatus)
		r.Get("/history", h.handleHistory)
		r.Get("/summary", h.handleSummary)
	})
	r.Route("/admin/attendance", func(r chi.Router) {
		r.Use(requireAdmin)
		r.Get("/present", h.handlePresent)
		r.Post("/{employeeID}/force-check-out", h.handleForceCheckOut)
	})
}

type transitionRequest struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Sample string  `json:"sample,omitempty"`
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.gate.CheckIn)
}

func (h *Handler) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.gate.CheckOut)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request,
	transition func(context.Context, id.EmployeeID, string, geofence.Coordinate) (*models.Session, error)) {
	ctx := r.Context()
	employeeID, ok := h.authenticatedEmployee(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeJSON[transitionRequest](w, r, h.logger)
	if !ok {
		return
	}

	session, err := transition(ctx, employeeID, req.Sample, geofence.Coordinate{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := h.authenticatedEmployee(w, r)
	if !ok {
		return
	}

	session, err := h.gate.CurrentStatus(r.Context(), employeeID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, statusResponse{
		CheckedIn: session != nil,
		Session:   session,
	})
}

type statusResponse struct {
	CheckedIn bool            `json:"checked_in"`
	Session   *models.Session `json:"session,omitempty"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := h.authenticatedEmployee(w, r)
	if !ok {
		return
	}
	from, to, err := parseRange(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	sessions, err := h.gate.History(r.Context(), employeeID, from, to)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, historyResponse{Sessions: sessions})
}

type historyResponse struct {
	Sessions []*models.Session `json:"sessions"`
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := h.authenticatedEmployee(w, r)
	if !ok {
		return
	}
	from, to, err := parseRange(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	summary, err := h.gate.Summarize(r.Context(), employeeID, from, to)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) handlePresent(w http.ResponseWriter, r *http.Request) {
	present, err := h.gate.CurrentlyPresent(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, presentResponse{Present: present})
}

type presentResponse struct {
	Present []service.PresentEmployee `json:"present"`
}

type forceCheckOutRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleForceCheckOut(w http.ResponseWriter, r *http.Request) {
	employeeID, err := id.ParseEmployeeID(chi.URLParam(r, "employeeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeJSON[forceCheckOutRequest](w, r, h.logger)
	if !ok {
		return
	}

	session, err := h.gate.ForceCheckOut(r.Context(), employeeID, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

// authenticatedEmployee pulls the caller's ID set by the auth middleware.
func (h *Handler) authenticatedEmployee(w http.ResponseWriter, r *http.Request) (id.EmployeeID, bool) {
	employeeID := requestcontext.EmployeeID(r.Context())
	if employeeID.IsNil() {
		h.logger.ErrorContext(r.Context(), "employee ID missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return id.EmployeeID{}, false
	}
	return employeeID, true
}

// parseRange reads optional RFC 3339 "from" and "to" query bounds.
func parseRange(r *http.Request) (time.Time, time.Time, error) {
	var from, to time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, dErrors.New(dErrors.CodeBadRequest, "'from' must be RFC 3339")
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, dErrors.New(dErrors.CodeBadRequest, "'to' must be RFC 3339")
		}
		to = parsed
	}
	return from, to, nil
}
