// Package models holds the roster domain entities.
package models

import (
	"time"

	"rollcall/internal/biometric"
	id "rollcall/pkg/domain"
)

// Employee is the subject whose presence is recorded.
//
// Encoding is written at most once automatically (bootstrap enrollment during
// the first check-in with a sample) or reset explicitly by an administrator.
type Employee struct {
	ID         id.EmployeeID `json:"id"`
	Email      string        `json:"email"`
	FullName   string        `json:"full_name"`
	Department string        `json:"department,omitempty"`
	Position   string        `json:"position,omitempty"`
	Active     bool          `json:"active"`

	// PasswordHash is the bcrypt hash used by login; never serialized.
	PasswordHash string `json:"-"`

	// Encoding is the stored biometric encoding; zero when never enrolled.
	Encoding biometric.Encoding `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Enrolled reports whether the employee has a stored biometric encoding.
func (e *Employee) Enrolled() bool {
	return !e.Encoding.IsZero()
}

// Clone returns a copy so stores can hand out employees without aliasing
// their internal state.
func (e *Employee) Clone() *Employee {
	out := *e
	out.Encoding = biometric.Encoding{
		Version: e.Encoding.Version,
		Values:  append([]float64(nil), e.Encoding.Values...),
	}
	return &out
}
