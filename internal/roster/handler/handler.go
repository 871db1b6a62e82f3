// Package handler exposes roster administration and employee login over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/roster/models"
	"rollcall/internal/roster/service"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/httputil"
)

// Service defines the roster operations the handler depends on.
type Service interface {
	Register(ctx context.Context, req service.RegisterRequest) (*models.Employee, error)
	Get(ctx context.Context, employeeID id.EmployeeID) (*models.Employee, error)
	List(ctx context.Context) ([]*models.Employee, error)
	Deactivate(ctx context.Context, employeeID id.EmployeeID) error
	Reactivate(ctx context.Context, employeeID id.EmployeeID) error
	ResetEncoding(ctx context.Context, employeeID id.EmployeeID) error
	Authenticate(ctx context.Context, email, password string) (*models.Employee, error)
}

// TokenIssuer signs access tokens for authenticated employees.
type TokenIssuer interface {
	GenerateAccessToken(employeeID id.EmployeeID) (string, time.Time, error)
}

// Handler handles roster and login endpoints.
type Handler struct {
	roster Service
	tokens TokenIssuer
	logger *slog.Logger
}

// New creates a roster Handler.
func New(roster Service, tokens TokenIssuer, logger *slog.Logger) *Handler {
	return &Handler{roster: roster, tokens: tokens, logger: logger}
}

// Register mounts the public login route and the admin roster routes.
func (h *Handler) Register(r chi.Router, requireAdmin func(http.Handler) http.Handler) {
	r.Post("/auth/login", h.handleLogin)

	r.Route("/admin/employees", func(r chi.Router) {
		r.Use(requireAdmin)
		r.Post("/", h.handleRegister)
		r.Get("/", h.handleList)
		r.Get("/{employeeID}", h.handleGet)
		r.Post("/{employeeID}/deactivate", h.handleDeactivate)
		r.Post("/{employeeID}/reactivate", h.handleReactivate)
		r.Post("/{employeeID}/encoding/reset", h.handleResetEncoding)
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	EmployeeID  string    `json:"employee_id"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[loginRequest](w, r, h.logger)
	if !ok {
		return
	}

	employee, err := h.roster.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	token, expiresAt, err := h.tokens.GenerateAccessToken(employee.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to sign access token", "error", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to issue token"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		EmployeeID:  employee.ID.String(),
	})
}

type registerRequest struct {
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	Department string `json:"department,omitempty"`
	Position   string `json:"position,omitempty"`
	Password   string `json:"password"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[registerRequest](w, r, h.logger)
	if !ok {
		return
	}

	employee, err := h.roster.Register(r.Context(), service.RegisterRequest{
		Email:      req.Email,
		FullName:   req.FullName,
		Department: req.Department,
		Position:   req.Position,
		Password:   req.Password,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, employee)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	employees, err := h.roster.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Employees: employees})
}

type listResponse struct {
	Employees []*models.Employee `json:"employees"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	employeeID, err := id.ParseEmployeeID(chi.URLParam(r, "employeeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	employee, err := h.roster.Get(r.Context(), employeeID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, employee)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.roster.Deactivate)
}

func (h *Handler) handleReactivate(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.roster.Reactivate)
}

func (h *Handler) handleResetEncoding(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.roster.ResetEncoding)
}

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, op func(context.Context, id.EmployeeID) error) {
	employeeID, err := id.ParseEmployeeID(chi.URLParam(r, "employeeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := op(r.Context(), employeeID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
