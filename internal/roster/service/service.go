// Package service manages the employee roster: registration, lifecycle and
// credential checks.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"rollcall/internal/biometric"
	"rollcall/internal/roster/models"
	"rollcall/internal/roster/store"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/email"
	"rollcall/pkg/platform/audit"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/requestcontext"
)

const minPasswordLength = 8

// dummyHash keeps the password comparison cost constant when the email is
// unknown, so response timing does not reveal roster membership.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Service orchestrates roster management.
type Service struct {
	store   store.Store
	logger  *slog.Logger
	emitter audit.Emitter
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditEmitter(emitter audit.Emitter) Option {
	return func(s *Service) {
		s.emitter = emitter
	}
}

// New constructs a Service.
func New(st store.Store, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("roster service requires a store")
	}
	s := &Service{store: st, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RegisterRequest carries the fields of a new roster entry.
type RegisterRequest struct {
	Email      string
	FullName   string
	Department string
	Position   string
	Password   string
}

func (r *RegisterRequest) normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FullName = strings.TrimSpace(r.FullName)
	r.Department = strings.TrimSpace(r.Department)
	r.Position = strings.TrimSpace(r.Position)
	if r.FullName == "" && r.Email != "" {
		r.FullName = email.DeriveFullName(r.Email)
	}
}

func (r *RegisterRequest) validate() error {
	if r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return dErrors.New(dErrors.CodeValidation, "email is not a valid address")
	}
	if r.FullName == "" {
		return dErrors.New(dErrors.CodeValidation, "full name is required")
	}
	if len(r.Password) < minPasswordLength {
		return dErrors.Newf(dErrors.CodeValidation, "password must be at least %d characters", minPasswordLength)
	}
	return nil
}

// Register creates a new active employee with a hashed password. The
// biometric encoding starts empty; it is written by bootstrap enrollment on
// the first check-in that carries a sample.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.Employee, error) {
	req.normalize()
	if err := req.validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	now := time.Now().UTC()
	employee := &models.Employee{
		ID:           id.NewEmployeeID(),
		Email:        req.Email,
		FullName:     req.FullName,
		Department:   req.Department,
		Position:     req.Position,
		Active:       true,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Create(ctx, employee); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create employee")
	}

	audit.Log(ctx, s.logger, s.emitter, audit.Event{
		Timestamp:  now,
		EmployeeID: employee.ID,
		Action:     audit.EventEmployeeRegistered,
		RequestID:  requestcontext.RequestID(ctx),
		ActorID:    actorID(ctx),
	})
	return employee, nil
}

// Get loads one employee.
func (s *Service) Get(ctx context.Context, employeeID id.EmployeeID) (*models.Employee, error) {
	employee, err := s.store.FindByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "employee not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load employee")
	}
	return employee, nil
}

// List returns the roster ordered by full name.
func (s *Service) List(ctx context.Context) ([]*models.Employee, error) {
	employees, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list employees")
	}
	return employees, nil
}

// Deactivate disables the employee; subsequent check-ins and logins are
// rejected until reactivation.
func (s *Service) Deactivate(ctx context.Context, employeeID id.EmployeeID) error {
	return s.setActive(ctx, employeeID, false, audit.EventEmployeeDeactivated)
}

// Reactivate re-enables a previously deactivated employee.
func (s *Service) Reactivate(ctx context.Context, employeeID id.EmployeeID) error {
	return s.setActive(ctx, employeeID, true, audit.EventEmployeeReactivated)
}

func (s *Service) setActive(ctx context.Context, employeeID id.EmployeeID, active bool, action audit.AuditEvent) error {
	if err := s.store.SetActive(ctx, employeeID, active); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "employee not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update employee")
	}
	audit.Log(ctx, s.logger, s.emitter, audit.Event{
		Timestamp:  time.Now().UTC(),
		EmployeeID: employeeID,
		Action:     action,
		RequestID:  requestcontext.RequestID(ctx),
		ActorID:    actorID(ctx),
	})
	return nil
}

// ResetEncoding clears the stored biometric encoding so the next check-in
// with a sample re-enrolls the employee.
func (s *Service) ResetEncoding(ctx context.Context, employeeID id.EmployeeID) error {
	if err := s.store.SaveEncoding(ctx, employeeID, biometric.Encoding{}); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "employee not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset encoding")
	}
	audit.Log(ctx, s.logger, s.emitter, audit.Event{
		Timestamp:  time.Now().UTC(),
		EmployeeID: employeeID,
		Action:     audit.EventEncodingReset,
		RequestID:  requestcontext.RequestID(ctx),
		ActorID:    actorID(ctx),
	})
	return nil
}

// Authenticate checks email and password. The response is uniform for
// unknown emails and wrong passwords so callers cannot probe the roster.
// Disabled employees authenticate with their real code so the UI can say so.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.Employee, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	employee, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, s.loginFailed(ctx, id.EmployeeID{}, "unknown email")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load employee")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(employee.PasswordHash), []byte(password)); err != nil {
		return nil, s.loginFailed(ctx, employee.ID, "wrong password")
	}
	if !employee.Active {
		s.logAudit(ctx, employee.ID, audit.EventLoginFailed, "employee disabled")
		return nil, dErrors.New(dErrors.CodeSubjectDisabled, "employee account is disabled")
	}

	s.logAudit(ctx, employee.ID, audit.EventLoginSucceeded, "")
	return employee, nil
}

func (s *Service) loginFailed(ctx context.Context, employeeID id.EmployeeID, reason string) error {
	s.logAudit(ctx, employeeID, audit.EventLoginFailed, reason)
	return dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
}

func (s *Service) logAudit(ctx context.Context, employeeID id.EmployeeID, action audit.AuditEvent, reason string) {
	audit.Log(ctx, s.logger, s.emitter, audit.Event{
		Timestamp:  time.Now().UTC(),
		EmployeeID: employeeID,
		Action:     action,
		Reason:     reason,
		RequestID:  requestcontext.RequestID(ctx),
		DeviceName: requestcontext.DeviceName(ctx),
	})
}

func actorID(ctx context.Context) string {
	actor := requestcontext.EmployeeID(ctx)
	if actor.IsNil() {
		return ""
	}
	return actor.String()
}
