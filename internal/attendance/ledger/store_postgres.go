package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"rollcall/internal/attendance/models"
	"rollcall/internal/geofence"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

// PostgresStore implements Ledger on Postgres. The single-active-session
// invariant is a storage constraint, not application logic: a partial unique
// index allows at most one OPEN row per employee, so concurrent inserts race
// at the database and the loser gets a unique violation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres-backed ledger.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const sessionsSchema = `
CREATE TABLE IF NOT EXISTS attendance_sessions (
	id                 UUID PRIMARY KEY,
	employee_id        UUID NOT NULL,
	check_in_at        TIMESTAMPTZ NOT NULL,
	check_in_lat       DOUBLE PRECISION NOT NULL,
	check_in_lng       DOUBLE PRECISION NOT NULL,
	check_out_at       TIMESTAMPTZ,
	check_out_lat      DOUBLE PRECISION,
	check_out_lng      DOUBLE PRECISION,
	status             TEXT NOT NULL,
	working_hours      DOUBLE PRECISION,
	force_close_reason TEXT NOT NULL DEFAULT '',
	device_name        TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS attendance_sessions_one_open
	ON attendance_sessions (employee_id) WHERE status = 'OPEN';

CREATE INDEX IF NOT EXISTS attendance_sessions_history
	ON attendance_sessions (employee_id, check_in_at DESC);
`

// Migrate applies the sessions schema. Idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, sessionsSchema); err != nil {
		return fmt.Errorf("migrate attendance sessions: %w", err)
	}
	return nil
}

const sessionColumns = `id, employee_id, check_in_at, check_in_lat, check_in_lng,
	check_out_at, check_out_lat, check_out_lng, status, working_hours,
	force_close_reason, device_name, created_at, updated_at`

func (s *PostgresStore) Open(ctx context.Context, session *models.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO attendance_sessions (
			id, employee_id, check_in_at, check_in_lat, check_in_lng,
			status, force_close_reason, device_name, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(session.ID), uuid.UUID(session.EmployeeID),
		session.CheckInAt, session.CheckInLocation.Lat, session.CheckInLocation.Lng,
		string(session.Status), session.ForceCloseReason, session.DeviceName,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("open session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close(ctx context.Context, employeeID id.EmployeeID, at time.Time, loc geofence.Coordinate) (*models.Session, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE attendance_sessions SET
			check_out_at = $2,
			check_out_lat = $3,
			check_out_lng = $4,
			status = 'CLOSED',
			working_hours = EXTRACT(EPOCH FROM ($2::timestamptz - check_in_at)) / 3600.0,
			updated_at = $2
		WHERE employee_id = $1 AND status = 'OPEN'
		RETURNING `+sessionColumns,
		uuid.UUID(employeeID), at, loc.Lat, loc.Lng,
	)
	return scanSession(row)
}

func (s *PostgresStore) ForceClose(ctx context.Context, employeeID id.EmployeeID, at time.Time, loc *geofence.Coordinate, reason string) (*models.Session, error) {
	var lat, lng *float64
	if loc != nil {
		lat, lng = &loc.Lat, &loc.Lng
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE attendance_sessions SET
			check_out_at = $2,
			check_out_lat = COALESCE($3, check_in_lat),
			check_out_lng = COALESCE($4, check_in_lng),
			status = 'CLOSED',
			working_hours = EXTRACT(EPOCH FROM ($2::timestamptz - check_in_at)) / 3600.0,
			force_close_reason = $5,
			updated_at = $2
		WHERE employee_id = $1 AND status = 'OPEN'
		RETURNING `+sessionColumns,
		uuid.UUID(employeeID), at, lat, lng, reason,
	)
	return scanSession(row)
}

func (s *PostgresStore) Active(ctx context.Context, employeeID id.EmployeeID) (*models.Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM attendance_sessions
		WHERE employee_id = $1 AND status = 'OPEN'`,
		uuid.UUID(employeeID),
	)
	session, err := scanSession(row)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	return session, err
}

func (s *PostgresStore) AllActive(ctx context.Context) ([]*models.Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM attendance_sessions
		WHERE status = 'OPEN'
		ORDER BY check_in_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

func (s *PostgresStore) History(ctx context.Context, employeeID id.EmployeeID, from, to time.Time) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM attendance_sessions
		WHERE employee_id = $1`
	args := []any{uuid.UUID(employeeID)}
	if !from.IsZero() {
		args = append(args, from)
		query += fmt.Sprintf(" AND check_in_at >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += fmt.Sprintf(" AND check_in_at <= $%d", len(args))
	}
	query += " ORDER BY check_in_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load session history: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var (
		session    models.Session
		sessionID  uuid.UUID
		employeeID uuid.UUID
		outLat     *float64
		outLng     *float64
		status     string
	)
	err := row.Scan(
		&sessionID, &employeeID, &session.CheckInAt,
		&session.CheckInLocation.Lat, &session.CheckInLocation.Lng,
		&session.CheckOutAt, &outLat, &outLng, &status, &session.WorkingHours,
		&session.ForceCloseReason, &session.DeviceName,
		&session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	session.ID = id.SessionID(sessionID)
	session.EmployeeID = id.EmployeeID(employeeID)
	session.Status = models.Status(status)
	if outLat != nil && outLng != nil {
		session.CheckOutLocation = &geofence.Coordinate{Lat: *outLat, Lng: *outLng}
	}
	return &session, nil
}

func scanSessions(rows pgx.Rows) ([]*models.Session, error) {
	var out []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}
