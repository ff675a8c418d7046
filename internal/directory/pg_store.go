package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the store needs; pgxmock satisfies it
// in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgStore struct {
	pool PgxPool
}

func NewPgStore(pool PgxPool) *PgStore {
	return &PgStore{pool: pool}
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Specialization,
		&d.DepartmentID,
		&d.Department,
		&d.ConsultationFee,
		&d.IsActive,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.Gender,
		&p.DateOfBirth,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func (s *PgStore) GetDoctor(ctx context.Context, id int64) (*Doctor, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT d.id, d.name, d.specialization, d.department_id, dep.name,
		       d.consultation_fee, d.is_active, d.created_at, d.updated_at
		FROM doctors d
		JOIN departments dep ON dep.id = d.department_id
		WHERE d.id = $1
	`, id)
	return scanDoctor(row)
}

func (s *PgStore) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT d.id, d.name, d.specialization, d.department_id, dep.name,
		       d.consultation_fee, d.is_active, d.created_at, d.updated_at
		FROM doctors d
		JOIN departments dep ON dep.id = d.department_id
		WHERE d.is_active
		ORDER BY d.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *PgStore) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, email, gender, date_of_birth, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (s *PgStore) GetDepartment(ctx context.Context, id int64) (*Department, error) {
	var dep Department
	err := s.pool.QueryRow(ctx, `
		SELECT id, name
		FROM departments
		WHERE id = $1
	`, id).Scan(&dep.ID, &dep.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDepartmentNotFound
		}
		return nil, err
	}
	return &dep, nil
}
