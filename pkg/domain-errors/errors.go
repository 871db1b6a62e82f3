// Package domainerrors defines the closed set of tagged errors the attendance
// domain returns. Services construct these directly or translate sentinel
// errors from stores; the HTTP layer maps codes to statuses. Callers assert on
// codes via HasCode rather than matching message text.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the kind of domain failure. Every rejection the gate can
// produce has exactly one code so callers and tests can assert on cause.
type Code string

const (
	// Generic codes shared across modules.
	CodeInvalidInput Code = "invalid_input"
	CodeValidation   Code = "validation"
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal_error"

	// Attendance state machine.
	CodeAlreadyCheckedIn Code = "already_checked_in"
	CodeNotCheckedIn     Code = "not_checked_in"

	// Geofence.
	CodeOutOfRange Code = "out_of_range"

	// Biometric verification.
	CodeSampleRequired      Code = "sample_required"
	CodeNoSubjectDetected   Code = "no_subject_detected"
	CodeAmbiguousSample     Code = "ambiguous_sample"
	CodeBiometricMismatch   Code = "biometric_mismatch"
	CodeVerificationTimeout Code = "verification_timeout"

	// Subject resolution.
	CodeSubjectDisabled Code = "subject_disabled"
)

// Error is a tagged domain error. Message is safe to surface to callers
// except for CodeInternal, which the HTTP layer redacts.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and human-readable reason.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted reason. Use it when the reason
// carries a measured value (distance, threshold) the caller should see.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/errors.As while presenting the domain reason.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err is (or wraps) a domain error with the code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the domain code from err. Unrecognized errors are reported
// as CodeInternal so they never leak details to callers.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
