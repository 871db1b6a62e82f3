package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"rollcall/internal/biometric"
	"rollcall/internal/roster/models"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

// PostgresStore implements Store on Postgres via database/sql and lib/pq.
// The encoding is persisted in its text form; parse failures on read are
// reported rather than silently treating the employee as unenrolled.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a Postgres-backed roster store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const employeesSchema = `
CREATE TABLE IF NOT EXISTS employees (
	id            UUID PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	full_name     TEXT NOT NULL,
	department    TEXT NOT NULL DEFAULT '',
	position      TEXT NOT NULL DEFAULT '',
	active        BOOLEAN NOT NULL DEFAULT TRUE,
	password_hash TEXT NOT NULL,
	encoding      TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
`

// Migrate applies the employees schema. Idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, employeesSchema); err != nil {
		return fmt.Errorf("migrate employees: %w", err)
	}
	return nil
}

const employeeColumns = `id, email, full_name, department, position, active,
	password_hash, encoding, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, employee *models.Employee) error {
	encoding := ""
	if employee.Enrolled() {
		encoding = employee.Encoding.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, email, full_name, department, position, active,
			password_hash, encoding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(employee.ID), normalizeEmail(employee.Email), employee.FullName,
		employee.Department, employee.Position, employee.Active,
		employee.PasswordHash, encoding, employee.CreatedAt, employee.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create employee: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, employeeID id.EmployeeID) (*models.Employee, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+employeeColumns+` FROM employees WHERE id = $1`,
		uuid.UUID(employeeID),
	)
	return scanEmployee(row)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Employee, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+employeeColumns+` FROM employees WHERE email = $1`,
		normalizeEmail(email),
	)
	return scanEmployee(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Employee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+employeeColumns+` FROM employees ORDER BY full_name`)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	var out []*models.Employee
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, employee)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employees: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SetActive(ctx context.Context, employeeID id.EmployeeID, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE employees SET active = $2, updated_at = NOW() WHERE id = $1`,
		uuid.UUID(employeeID), active,
	)
	if err != nil {
		return fmt.Errorf("set employee active: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) SaveEncoding(ctx context.Context, employeeID id.EmployeeID, enc biometric.Encoding) error {
	encoding := ""
	if !enc.IsZero() {
		encoding = enc.String()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE employees SET encoding = $2, updated_at = NOW() WHERE id = $1`,
		uuid.UUID(employeeID), encoding,
	)
	if err != nil {
		return fmt.Errorf("save encoding: %w", err)
	}
	return requireRow(res)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEmployee(row scannable) (*models.Employee, error) {
	var (
		employee   models.Employee
		employeeID uuid.UUID
		encoding   string
	)
	err := row.Scan(
		&employeeID, &employee.Email, &employee.FullName,
		&employee.Department, &employee.Position, &employee.Active,
		&employee.PasswordHash, &encoding,
		&employee.CreatedAt, &employee.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan employee: %w", err)
	}
	employee.ID = id.EmployeeID(employeeID)
	if encoding != "" {
		enc, err := biometric.ParseEncoding(encoding)
		if err != nil {
			return nil, fmt.Errorf("stored encoding for %s: %w", employee.ID, err)
		}
		employee.Encoding = enc
	}
	return &employee, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
