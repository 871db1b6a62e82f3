// Package ledger enforces the single-active-session invariant and owns
// session persistence. Implementations must make Open an atomic per-subject
// check-and-create: under concurrent check-in attempts for one employee,
// exactly one Open succeeds and the rest fail with sentinel.ErrConflict.
// Verification is the gate's job, not the ledger's.
package ledger

import (
	"context"
	"time"

	"rollcall/internal/attendance/models"
	"rollcall/internal/geofence"
	id "rollcall/pkg/domain"
)

// Ledger is the session store port.
type Ledger interface {
	// Open records a new OPEN session. Fails with sentinel.ErrConflict when
	// the employee already has one; the check-and-create is atomic with
	// respect to concurrent callers for the same employee.
	Open(ctx context.Context, session *models.Session) error

	// Close closes the employee's open session at the given time and
	// location, deriving the working hours. Fails with sentinel.ErrNotFound
	// when no session is open.
	Close(ctx context.Context, employeeID id.EmployeeID, at time.Time, loc geofence.Coordinate) (*models.Session, error)

	// ForceClose is the administrative close: identical semantics to Close,
	// but loc may be nil, in which case the session's check-in location is
	// reused, and reason is recorded as audit metadata.
	ForceClose(ctx context.Context, employeeID id.EmployeeID, at time.Time, loc *geofence.Coordinate, reason string) (*models.Session, error)

	// Active returns the employee's open session, or nil when none exists.
	Active(ctx context.Context, employeeID id.EmployeeID) (*models.Session, error)

	// AllActive returns every open session, ordered by check-in time descending.
	AllActive(ctx context.Context) ([]*models.Session, error)

	// History returns the employee's sessions with check-in time within
	// [from, to], most recent first. Zero bounds are unbounded.
	History(ctx context.Context, employeeID id.EmployeeID, from, to time.Time) ([]*models.Session, error)
}

// inRange reports whether ts falls within the (possibly unbounded) range.
func inRange(ts, from, to time.Time) bool {
	if !from.IsZero() && ts.Before(from) {
		return false
	}
	if !to.IsZero() && ts.After(to) {
		return false
	}
	return true
}
