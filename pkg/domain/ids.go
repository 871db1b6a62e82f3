// Package domain holds value types shared across modules: typed identifiers
// parsed at trust boundaries so services never handle raw strings.
package domain

import (
	"github.com/google/uuid"

	dErrors "rollcall/pkg/domain-errors"
)

// EmployeeID identifies the subject whose presence is recorded.
// Invariant: a valid, non-nil UUID.
type EmployeeID uuid.UUID

// SessionID identifies one attendance session (a check-in/check-out pair).
// Invariant: a valid, non-nil UUID.
type SessionID uuid.UUID

// ParseEmployeeID constructs an EmployeeID from external input.
//
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil UUID.
func ParseEmployeeID(s string) (EmployeeID, error) {
	u, err := parseUUID(s, "employee id")
	return EmployeeID(u), err
}

// ParseSessionID constructs a SessionID from external input.
//
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil UUID.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session id")
	return SessionID(u), err
}

// NewEmployeeID returns a fresh random EmployeeID.
func NewEmployeeID() EmployeeID { return EmployeeID(uuid.New()) }

// NewSessionID returns a fresh random SessionID.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

func (id EmployeeID) String() string { return uuid.UUID(id).String() }
func (id EmployeeID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id SessionID) String() string { return uuid.UUID(id).String() }
func (id SessionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// MarshalText renders the ID as its canonical UUID string, so IDs serialize
// readably in JSON bodies and store payloads.
func (id EmployeeID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *EmployeeID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = EmployeeID(u)
	return nil
}

// MarshalText renders the ID as its canonical UUID string.
func (id SessionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *SessionID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = SessionID(u)
	return nil
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", what)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be the nil UUID", what)
	}
	return u, nil
}
