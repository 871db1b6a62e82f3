// Package models holds the attendance domain entities.
package models

import (
	"time"

	"rollcall/internal/geofence"
	id "rollcall/pkg/domain"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	return s == StatusOpen || s == StatusClosed
}

// Session is one check-in/check-out pair for a subject.
//
// Lifecycle: created OPEN by a successful check-in; transitions to CLOSED
// exactly once by a successful check-out or an administrative forced close;
// immutable afterward except for audit metadata.
//
// Invariant: per employee at most one session is OPEN at any time. The ledger
// guarantees this, not the entity.
type Session struct {
	ID         id.SessionID   `json:"id"`
	EmployeeID id.EmployeeID  `json:"employee_id"`

	CheckInAt       time.Time           `json:"check_in_at"`
	CheckInLocation geofence.Coordinate `json:"check_in_location"`

	CheckOutAt       *time.Time           `json:"check_out_at,omitempty"`
	CheckOutLocation *geofence.Coordinate `json:"check_out_location,omitempty"`

	Status Status `json:"status"`

	// WorkingHours is derived from the two timestamps; nil until closed.
	WorkingHours *float64 `json:"working_hours,omitempty"`

	// Audit metadata.
	ForceCloseReason string    `json:"force_close_reason,omitempty"`
	DeviceName       string    `json:"device_name,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewSession opens a session for the employee at the given time and location.
func NewSession(employeeID id.EmployeeID, at time.Time, loc geofence.Coordinate) *Session {
	return &Session{
		ID:              id.NewSessionID(),
		EmployeeID:      employeeID,
		CheckInAt:       at,
		CheckInLocation: loc,
		Status:          StatusOpen,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
}

// IsOpen reports whether the session is still open.
func (s *Session) IsOpen() bool { return s.Status == StatusOpen }

// Close marks the session CLOSED at the given time and location and derives
// the working hours.
func (s *Session) Close(at time.Time, loc geofence.Coordinate) {
	closeLoc := loc
	s.CheckOutAt = &at
	s.CheckOutLocation = &closeLoc
	s.Status = StatusClosed
	s.UpdatedAt = at
	s.RecomputeWorkingHours()
}

// RecomputeWorkingHours derives the duration in fractional hours from the two
// timestamps. Idempotent: the same pair of stamps always yields the same value.
func (s *Session) RecomputeWorkingHours() {
	if s.CheckOutAt == nil {
		s.WorkingHours = nil
		return
	}
	hours := s.CheckOutAt.Sub(s.CheckInAt).Hours()
	s.WorkingHours = &hours
}

// Clone returns a deep copy so stores can hand out sessions without aliasing
// their internal state.
func (s *Session) Clone() *Session {
	out := *s
	if s.CheckOutAt != nil {
		at := *s.CheckOutAt
		out.CheckOutAt = &at
	}
	if s.CheckOutLocation != nil {
		loc := *s.CheckOutLocation
		out.CheckOutLocation = &loc
	}
	if s.WorkingHours != nil {
		h := *s.WorkingHours
		out.WorkingHours = &h
	}
	return &out
}
