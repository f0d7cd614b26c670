package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/enrollhub/enrollment-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const studentColumns = `
	id, account_id, name, email, national_id, birth_date,
	phone, gender, city, state, postal_code, photo_url,
	active, created_at, updated_at
`

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	q Querier
}

// NewStudentRepository creates a repository backed by the connection pool.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{q: conn}
}

// NewStudentRepositoryWithQuerier creates a repository bound to an explicit
// querier, typically a transaction.
func NewStudentRepositoryWithQuerier(q Querier) *StudentRepository {
	return &StudentRepository{q: q}
}

// Create creates a new student. The insert is conflict-aware: a concurrent
// registration with the same id or email surfaces as ErrStudentAlreadyExists
// instead of a raw constraint error.
func (r *StudentRepository) Create(ctx context.Context, s *student.Student) error {
	query := `
		INSERT INTO students (
			id, account_id, name, email, national_id, birth_date,
			phone, gender, city, state, postal_code, photo_url,
			active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.q.Exec(ctx, query,
		s.ID,
		s.AccountID,
		s.Name,
		s.Email.String(),
		s.NationalID.String(),
		s.BirthDate,
		s.Contact.Phone,
		s.Contact.Gender,
		s.Contact.City,
		s.Contact.State,
		s.Contact.PostalCode,
		s.Contact.PhotoURL,
		s.Active,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return student.ErrStudentAlreadyExists
		}
		return fmt.Errorf("failed to create student: %w", err)
	}

	return nil
}

// GetByID returns a student by internal ID.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*student.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`

	row := r.q.QueryRow(ctx, query, id)
	return r.scanStudent(row)
}

// GetByEmail returns a student by normalized email.
func (r *StudentRepository) GetByEmail(ctx context.Context, email student.Email) (*student.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE email = $1`

	row := r.q.QueryRow(ctx, query, email.Normalized().String())
	return r.scanStudent(row)
}

// Update updates a student.
func (r *StudentRepository) Update(ctx context.Context, s *student.Student) error {
	query := `
		UPDATE students SET
			name = $1,
			email = $2,
			national_id = $3,
			birth_date = $4,
			phone = $5,
			gender = $6,
			city = $7,
			state = $8,
			postal_code = $9,
			photo_url = $10,
			active = $11,
			updated_at = $12
		WHERE id = $13
	`

	result, err := r.q.Exec(ctx, query,
		s.Name,
		s.Email.String(),
		s.NationalID.String(),
		s.BirthDate,
		s.Contact.Phone,
		s.Contact.Gender,
		s.Contact.City,
		s.Contact.State,
		s.Contact.PostalCode,
		s.Contact.PhotoURL,
		s.Active,
		time.Now().UTC(),
		s.ID,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return student.ErrStudentAlreadyExists
		}
		return fmt.Errorf("failed to update student: %w", err)
	}

	if result.RowsAffected() == 0 {
		return student.ErrStudentNotFound
	}

	return nil
}

// Exists reports whether a student with the given ID exists.
func (r *StudentRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM students WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check student existence: %w", err)
	}
	return exists, nil
}

// ExistsByEmail reports whether a student with the given email exists.
func (r *StudentRepository) ExistsByEmail(ctx context.Context, email student.Email) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM students WHERE email = $1)`,
		email.Normalized().String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check student email existence: %w", err)
	}
	return exists, nil
}

// scanStudent scans a single student row.
func (r *StudentRepository) scanStudent(row pgx.Row) (*student.Student, error) {
	var s student.Student
	var email, nationalID string

	err := row.Scan(
		&s.ID,
		&s.AccountID,
		&s.Name,
		&email,
		&nationalID,
		&s.BirthDate,
		&s.Contact.Phone,
		&s.Contact.Gender,
		&s.Contact.City,
		&s.Contact.State,
		&s.Contact.PostalCode,
		&s.Contact.PhotoURL,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, student.ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to scan student: %w", err)
	}

	s.Email = student.Email(email)
	s.NationalID = student.NationalID(nationalID)
	return &s, nil
}
