// Package service is the attendance gate: it decides whether a check-in or
// check-out is accepted, and commits the resulting session transition.
//
// Every operation walks the same corridor: resolve the subject, check the
// session state, check the geofence, check the biometric, then write to the
// ledger. Verification happens strictly before any mutation, so a failed
// step leaves no trace beyond an audit event.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"rollcall/internal/attendance/ledger"
	"rollcall/internal/attendance/metrics"
	"rollcall/internal/attendance/models"
	"rollcall/internal/biometric"
	"rollcall/internal/geofence"
	rostermodels "rollcall/internal/roster/models"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/audit"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/requestcontext"
)

// DefaultVerifyTimeout bounds a single biometric enroll or verify call.
const DefaultVerifyTimeout = 5 * time.Second

const (
	opCheckIn       = "check_in"
	opCheckOut      = "check_out"
	opForceCheckOut = "force_check_out"

	outcomeAccepted = "accepted"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// SubjectDirectory is the slice of the roster the gate needs.
type SubjectDirectory interface {
	FindByID(ctx context.Context, employeeID id.EmployeeID) (*rostermodels.Employee, error)
	SaveEncoding(ctx context.Context, employeeID id.EmployeeID, enc biometric.Encoding) error
}

// Service orchestrates check-in and check-out.
type Service struct {
	subjects SubjectDirectory
	ledger   ledger.Ledger
	zone     *geofence.Validator
	matcher  biometric.Matcher

	verifyTimeout time.Duration
	logger        *slog.Logger
	emitter       audit.Emitter
	metrics       *metrics.Metrics
	tracer        trace.Tracer
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithVerifyTimeout bounds biometric work per request.
func WithVerifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.verifyTimeout = d
		}
	}
}

// New constructs the gate. All four collaborators are required.
func New(subjects SubjectDirectory, ldg ledger.Ledger, zone *geofence.Validator, matcher biometric.Matcher, opts ...Option) (*Service, error) {
	if subjects == nil {
		return nil, errors.New("attendance gate requires a subject directory")
	}
	if ldg == nil {
		return nil, errors.New("attendance gate requires a ledger")
	}
	if zone == nil {
		return nil, errors.New("attendance gate requires a geofence validator")
	}
	if matcher == nil {
		return nil, errors.New("attendance gate requires a biometric matcher")
	}
	s := &Service{
		subjects:      subjects,
		ledger:        ldg,
		zone:          zone,
		matcher:       matcher,
		verifyTimeout: DefaultVerifyTimeout,
		logger:        slog.Default(),
		tracer:        otel.Tracer("rollcall/attendance"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CheckIn opens a session for the employee after the subject, state,
// geofence and biometric checks all pass.
func (s *Service) CheckIn(ctx context.Context, employeeID id.EmployeeID, sample string, loc geofence.Coordinate) (*models.Session, error) {
	ctx, span := s.tracer.Start(ctx, "attendance.check_in",
		trace.WithAttributes(attribute.String("employee_id", employeeID.String())))
	defer span.End()
	started := time.Now()

	session, err := s.checkIn(ctx, employeeID, sample, loc)
	s.finish(ctx, span, opCheckIn, started, employeeID, err)
	if err != nil {
		return nil, err
	}

	s.metrics.SessionOpened()
	audit.Log(ctx, s.logger, s.emitter, s.event(ctx, audit.EventCheckedIn, employeeID, session.ID, ""))
	return session, nil
}

func (s *Service) checkIn(ctx context.Context, employeeID id.EmployeeID, sample string, loc geofence.Coordinate) (*models.Session, error) {
	employee, active, err := s.resolve(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if !employee.Active {
		return nil, dErrors.New(dErrors.CodeSubjectDisabled, "employee account is disabled")
	}
	if active != nil {
		return nil, dErrors.New(dErrors.CodeAlreadyCheckedIn, "an open session already exists")
	}
	if err := s.checkLocation(ctx, loc); err != nil {
		return nil, err
	}

	switch {
	case employee.Enrolled():
		if err := s.verifySample(ctx, sample, employee.Encoding); err != nil {
			return nil, err
		}
	case sample != "":
		// Bootstrap enrollment: the first provided sample becomes the
		// stored encoding.
		if err := s.enroll(ctx, employeeID, sample); err != nil {
			return nil, err
		}
	default:
		// Never enrolled and no sample: the first-ever session is ungated.
	}

	session := models.NewSession(employeeID, requestcontext.Now(ctx), loc)
	session.DeviceName = requestcontext.DeviceName(ctx)
	if err := s.ledger.Open(ctx, session); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost the race against a concurrent check-in.
			return nil, dErrors.New(dErrors.CodeAlreadyCheckedIn, "an open session already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to open session")
	}
	return session, nil
}

// CheckOut closes the employee's open session after the same location check,
// and a biometric check when an encoding is on file.
func (s *Service) CheckOut(ctx context.Context, employeeID id.EmployeeID, sample string, loc geofence.Coordinate) (*models.Session, error) {
	ctx, span := s.tracer.Start(ctx, "attendance.check_out",
		trace.WithAttributes(attribute.String("employee_id", employeeID.String())))
	defer span.End()
	started := time.Now()

	session, err := s.checkOut(ctx, employeeID, sample, loc)
	s.finish(ctx, span, opCheckOut, started, employeeID, err)
	if err != nil {
		return nil, err
	}

	s.metrics.SessionClosed()
	audit.Log(ctx, s.logger, s.emitter, s.event(ctx, audit.EventCheckedOut, employeeID, session.ID, ""))
	return session, nil
}

func (s *Service) checkOut(ctx context.Context, employeeID id.EmployeeID, sample string, loc geofence.Coordinate) (*models.Session, error) {
	employee, active, err := s.resolve(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if !employee.Active {
		return nil, dErrors.New(dErrors.CodeSubjectDisabled, "employee account is disabled")
	}
	if active == nil {
		return nil, dErrors.New(dErrors.CodeNotCheckedIn, "no open session to close")
	}
	if err := s.checkLocation(ctx, loc); err != nil {
		return nil, err
	}
	if employee.Enrolled() {
		if err := s.verifySample(ctx, sample, employee.Encoding); err != nil {
			return nil, err
		}
	}

	session, err := s.ledger.Close(ctx, employeeID, requestcontext.Now(ctx), loc)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotCheckedIn, "no open session to close")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to close session")
	}
	return session, nil
}

// ForceCheckOut is the administrative close: it bypasses the geofence and
// biometric checks and reuses the check-in location when none is known.
func (s *Service) ForceCheckOut(ctx context.Context, employeeID id.EmployeeID, reason string) (*models.Session, error) {
	ctx, span := s.tracer.Start(ctx, "attendance.force_check_out",
		trace.WithAttributes(attribute.String("employee_id", employeeID.String())))
	defer span.End()
	started := time.Now()

	session, err := s.forceCheckOut(ctx, employeeID, reason)
	s.finish(ctx, span, opForceCheckOut, started, employeeID, err)
	if err != nil {
		return nil, err
	}

	s.metrics.SessionClosed()
	audit.Log(ctx, s.logger, s.emitter, s.event(ctx, audit.EventForceCheckedOut, employeeID, session.ID, reason))
	return session, nil
}

func (s *Service) forceCheckOut(ctx context.Context, employeeID id.EmployeeID, reason string) (*models.Session, error) {
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "a reason is required")
	}
	if _, err := s.subjects.FindByID(ctx, employeeID); err != nil {
		return nil, s.subjectError(err)
	}

	session, err := s.ledger.ForceClose(ctx, employeeID, requestcontext.Now(ctx), nil, reason)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotCheckedIn, "no open session to close")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to force close session")
	}
	return session, nil
}

// CurrentStatus returns the employee's open session, or nil when absent.
func (s *Service) CurrentStatus(ctx context.Context, employeeID id.EmployeeID) (*models.Session, error) {
	session, err := s.ledger.Active(ctx, employeeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load active session")
	}
	return session, nil
}

// History lists the employee's sessions within [from, to], most recent first.
func (s *Service) History(ctx context.Context, employeeID id.EmployeeID, from, to time.Time) ([]*models.Session, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	sessions, err := s.ledger.History(ctx, employeeID, from, to)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load history")
	}
	return sessions, nil
}

// Summary aggregates the closed sessions in a range.
type Summary struct {
	Sessions     int     `json:"sessions"`
	TotalHours   float64 `json:"total_hours"`
	AverageHours float64 `json:"average_hours"`
}

// Summarize computes session count and total and average hours over the
// employee's closed sessions within [from, to]. Open sessions are excluded
// until they close.
func (s *Service) Summarize(ctx context.Context, employeeID id.EmployeeID, from, to time.Time) (Summary, error) {
	sessions, err := s.History(ctx, employeeID, from, to)
	if err != nil {
		return Summary{}, err
	}

	var out Summary
	for _, session := range sessions {
		if session.IsOpen() || session.WorkingHours == nil {
			continue
		}
		out.Sessions++
		out.TotalHours += *session.WorkingHours
	}
	if out.Sessions > 0 {
		out.AverageHours = out.TotalHours / float64(out.Sessions)
	}
	return out, nil
}

// PresentEmployee pairs an open session with its owner for the
// currently-present listing.
type PresentEmployee struct {
	Session  *models.Session        `json:"session"`
	Employee *rostermodels.Employee `json:"employee"`
}

// CurrentlyPresent lists everyone with an open session, most recent first.
func (s *Service) CurrentlyPresent(ctx context.Context) ([]PresentEmployee, error) {
	sessions, err := s.ledger.AllActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list open sessions")
	}

	out := make([]PresentEmployee, 0, len(sessions))
	for _, session := range sessions {
		employee, err := s.subjects.FindByID(ctx, session.EmployeeID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				// Session outlived its roster entry; list it without one.
				out = append(out, PresentEmployee{Session: session})
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load employee")
		}
		out = append(out, PresentEmployee{Session: session, Employee: employee})
	}
	return out, nil
}

// resolve fetches the subject and the active session concurrently. Both are
// needed by every gated operation, and neither depends on the other.
func (s *Service) resolve(ctx context.Context, employeeID id.EmployeeID) (*rostermodels.Employee, *models.Session, error) {
	var (
		employee *rostermodels.Employee
		active   *models.Session
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		employee, err = s.subjects.FindByID(gctx, employeeID)
		if err != nil {
			return s.subjectError(err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		active, err = s.ledger.Active(gctx, employeeID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load active session")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return employee, active, nil
}

func (s *Service) subjectError(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "employee not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load employee")
}

func (s *Service) checkLocation(ctx context.Context, loc geofence.Coordinate) error {
	result, err := s.zone.Classify(loc)
	if err != nil {
		return err
	}
	if !result.Inside {
		return dErrors.Newf(dErrors.CodeOutOfRange,
			"location is %.2f km from the authorized zone (tolerance %.2f km)",
			result.DistanceKm, s.zone.Zone().ToleranceKm)
	}
	return nil
}

// verifySample runs the matcher against the stored encoding under the
// verification timeout.
func (s *Service) verifySample(ctx context.Context, sample string, stored biometric.Encoding) error {
	if sample == "" {
		return dErrors.New(dErrors.CodeSampleRequired, "a biometric sample is required")
	}

	vctx, cancel := context.WithTimeout(ctx, s.verifyTimeout)
	defer cancel()

	started := time.Now()
	match, err := s.matcher.Verify(vctx, sample, stored)
	if err != nil {
		s.metrics.ObserveVerifyLatency("timeout", time.Since(started))
		if errors.Is(err, context.DeadlineExceeded) {
			return dErrors.New(dErrors.CodeVerificationTimeout, "biometric verification timed out")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "biometric verification failed")
	}
	if !match {
		s.metrics.ObserveVerifyLatency("mismatch", time.Since(started))
		return dErrors.New(dErrors.CodeBiometricMismatch, "biometric sample does not match the enrolled encoding")
	}
	s.metrics.ObserveVerifyLatency("match", time.Since(started))
	return nil
}

// enroll derives and persists the employee's first encoding (bootstrap
// path). Enrollment failures keep their precise cause, unlike Verify.
func (s *Service) enroll(ctx context.Context, employeeID id.EmployeeID, sample string) error {
	ectx, cancel := context.WithTimeout(ctx, s.verifyTimeout)
	defer cancel()

	encoding, err := s.matcher.Enroll(ectx, sample)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return dErrors.New(dErrors.CodeVerificationTimeout, "biometric enrollment timed out")
		}
		switch dErrors.CodeOf(err) {
		case dErrors.CodeNoSubjectDetected, dErrors.CodeAmbiguousSample, dErrors.CodeInvalidInput:
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "biometric enrollment failed")
	}

	if err := s.subjects.SaveEncoding(ctx, employeeID, encoding); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist encoding")
	}
	s.metrics.IncrementEnrollments()
	audit.Log(ctx, s.logger, s.emitter, s.event(ctx, audit.EventEncodingEnrolled, employeeID, id.SessionID{}, ""))
	return nil
}

// finish records the outcome of a gated operation: metrics, span status and
// the rejection audit trail.
func (s *Service) finish(ctx context.Context, span trace.Span, operation string, started time.Time, employeeID id.EmployeeID, err error) {
	s.metrics.ObserveGateLatency(operation, time.Since(started))

	switch {
	case err == nil:
		s.metrics.IncrementAttempt(operation, outcomeAccepted)
		span.SetAttributes(attribute.String("outcome", outcomeAccepted))
	case isRejection(err):
		s.metrics.IncrementAttempt(operation, outcomeRejected)
		span.SetAttributes(
			attribute.String("outcome", outcomeRejected),
			attribute.String("reason", string(dErrors.CodeOf(err))),
		)
		action := audit.EventCheckInRejected
		if operation != opCheckIn {
			action = audit.EventCheckOutRejected
		}
		audit.Log(ctx, s.logger, s.emitter, s.event(ctx, action, employeeID, id.SessionID{}, err.Error()))
	default:
		s.metrics.IncrementAttempt(operation, outcomeError)
		span.RecordError(err)
		s.logger.ErrorContext(ctx, "gate operation failed",
			"operation", operation,
			"employee_id", employeeID,
			"error", err,
		)
	}
}

func (s *Service) event(ctx context.Context, action audit.AuditEvent, employeeID id.EmployeeID, sessionID id.SessionID, reason string) audit.Event {
	return audit.Event{
		Timestamp:  requestcontext.Now(ctx),
		EmployeeID: employeeID,
		SessionID:  sessionID,
		Action:     action,
		Reason:     reason,
		RequestID:  requestcontext.RequestID(ctx),
		DeviceName: requestcontext.DeviceName(ctx),
	}
}

// isRejection separates user-facing verification rejections from internal
// failures for metrics and audit purposes.
func isRejection(err error) bool {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeNotFound,
		dErrors.CodeSubjectDisabled, dErrors.CodeAlreadyCheckedIn, dErrors.CodeNotCheckedIn,
		dErrors.CodeOutOfRange, dErrors.CodeSampleRequired, dErrors.CodeNoSubjectDetected,
		dErrors.CodeAmbiguousSample, dErrors.CodeBiometricMismatch, dErrors.CodeVerificationTimeout:
		return true
	}
	return false
}

func validateRange(from, to time.Time) error {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("range end %s precedes start %s", to.Format(time.RFC3339), from.Format(time.RFC3339)))
	}
	return nil
}
