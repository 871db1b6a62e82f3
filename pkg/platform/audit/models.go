// Package audit captures key attendance and roster actions for later review.
// Events are emitted from domain logic and fanned out to stores (in-memory
// for a single process, Kafka for the pipeline deployment).
package audit

import (
	"context"
	"log/slog"
	"time"

	id "rollcall/pkg/domain"
)

// Event is emitted from domain logic. Keep it transport-agnostic so stores
// and sinks can fan out.
type Event struct {
	Timestamp  time.Time
	EmployeeID id.EmployeeID
	SessionID  id.SessionID
	Action     AuditEvent
	// Reason carries the rejection reason or the administrative reason text.
	Reason string
	// DistanceKm is the measured geofence distance; zero when not applicable.
	DistanceKm float64
	// RequestID is the correlation ID from the HTTP request context.
	RequestID string
	// ActorID tracks who performed the action when different from the
	// employee (admin force check-out, roster changes).
	ActorID string
	// DeviceName is the parsed User-Agent description of the caller device.
	DeviceName string
}

// AuditEvent names a recordable action.
type AuditEvent string

const (
	// Attendance events.
	EventCheckedIn        AuditEvent = "checked_in"
	EventCheckedOut       AuditEvent = "checked_out"
	EventForceCheckedOut  AuditEvent = "force_checked_out"
	EventCheckInRejected  AuditEvent = "check_in_rejected"
	EventCheckOutRejected AuditEvent = "check_out_rejected"

	// Biometric events.
	EventEncodingEnrolled AuditEvent = "encoding_enrolled"
	EventEncodingReset    AuditEvent = "encoding_reset"

	// Roster events.
	EventEmployeeRegistered  AuditEvent = "employee_registered"
	EventEmployeeDeactivated AuditEvent = "employee_deactivated"
	EventEmployeeReactivated AuditEvent = "employee_reactivated"

	// Auth events.
	EventLoginSucceeded AuditEvent = "login_succeeded"
	EventLoginFailed    AuditEvent = "login_failed"
)

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Emitter is the narrow interface services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Log emits an event and mirrors it to the structured log; a nil emitter
// degrades to log-only so services can run without the pipeline wired.
func Log(ctx context.Context, logger *slog.Logger, emitter Emitter, event Event) {
	if logger != nil {
		logger.InfoContext(ctx, "audit event",
			"action", event.Action,
			"employee_id", event.EmployeeID,
			"reason", event.Reason,
			"request_id", event.RequestID,
		)
	}
	if emitter == nil {
		return
	}
	if err := emitter.Emit(ctx, event); err != nil && logger != nil {
		logger.ErrorContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
