// Package store persists the employee roster.
package store

import (
	"context"

	"rollcall/internal/biometric"
	"rollcall/internal/roster/models"
	id "rollcall/pkg/domain"
)

// Store is the roster persistence port. Implementations return sentinel
// errors (ErrNotFound, ErrConflict) which the service translates to domain
// codes.
type Store interface {
	// Create persists a new employee. Fails with sentinel.ErrConflict when
	// the email is already registered.
	Create(ctx context.Context, employee *models.Employee) error

	// FindByID loads an employee. Fails with sentinel.ErrNotFound.
	FindByID(ctx context.Context, employeeID id.EmployeeID) (*models.Employee, error)

	// FindByEmail loads an employee by email. Fails with sentinel.ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*models.Employee, error)

	// List returns all employees ordered by full name.
	List(ctx context.Context) ([]*models.Employee, error)

	// SetActive toggles the employee's active flag.
	SetActive(ctx context.Context, employeeID id.EmployeeID, active bool) error

	// SaveEncoding writes the stored biometric encoding. A zero encoding
	// clears it (administrative re-enrollment reset).
	SaveEncoding(ctx context.Context, employeeID id.EmployeeID, enc biometric.Encoding) error
}
