package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/enrollhub/enrollment-hub/internal/domain/enrollment"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT REPOSITORY IMPLEMENTATION
// The aggregate spans three tables: enrollments, enrollment_progress and
// certificates. Loads always return the full aggregate; updates upsert the
// progress records by (enrollment, lesson) key.
// ══════════════════════════════════════════════════════════════════════════════

const enrollmentColumns = `
	id, student_id, course_id, course_name, price, note, status,
	enrolled_at, payment_confirmed_at, completed_at, updated_at
`

// EnrollmentRepository implements enrollment.Repository for PostgreSQL.
type EnrollmentRepository struct {
	q Querier
}

// NewEnrollmentRepository creates a repository backed by the connection pool.
func NewEnrollmentRepository(conn *Connection) *EnrollmentRepository {
	return &EnrollmentRepository{q: conn}
}

// NewEnrollmentRepositoryWithQuerier creates a repository bound to an explicit
// querier, typically a transaction.
func NewEnrollmentRepositoryWithQuerier(q Querier) *EnrollmentRepository {
	return &EnrollmentRepository{q: q}
}

// Create persists a new enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, e *enrollment.Enrollment) error {
	query := `
		INSERT INTO enrollments (
			id, student_id, course_id, course_name, price, note, status,
			enrolled_at, payment_confirmed_at, completed_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.q.Exec(ctx, query,
		e.ID,
		e.StudentID,
		e.CourseID,
		e.CourseName,
		e.Price,
		e.Note,
		string(e.Status),
		e.EnrolledAt,
		e.PaymentConfirmedAt,
		e.CompletedAt,
		e.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return enrollment.ErrEnrollmentAlreadyExists
		}
		return fmt.Errorf("failed to create enrollment: %w", err)
	}

	return nil
}

// GetByID returns an enrollment with its progress and certificate.
func (r *EnrollmentRepository) GetByID(ctx context.Context, id string) (*enrollment.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`

	e, err := r.scanEnrollment(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return r.loadAggregate(ctx, e)
}

// GetByStudentAndCourse returns the student's enrollment in a course.
func (r *EnrollmentRepository) GetByStudentAndCourse(ctx context.Context, studentID, courseID string) (*enrollment.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 AND course_id = $2`

	e, err := r.scanEnrollment(r.q.QueryRow(ctx, query, studentID, courseID))
	if err != nil {
		return nil, err
	}
	return r.loadAggregate(ctx, e)
}

// ListByStudent returns all enrollments owned by a student.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]*enrollment.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 ORDER BY enrolled_at`

	rows, err := r.q.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []*enrollment.Enrollment
	for rows.Next() {
		e, err := r.scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate enrollments: %w", err)
	}

	for _, e := range enrollments {
		if _, err := r.loadAggregate(ctx, e); err != nil {
			return nil, err
		}
	}

	return enrollments, nil
}

// Update persists aggregate changes: the enrollment row, the progress records
// and the certificate.
func (r *EnrollmentRepository) Update(ctx context.Context, e *enrollment.Enrollment) error {
	query := `
		UPDATE enrollments SET
			course_name = $1,
			price = $2,
			note = $3,
			status = $4,
			payment_confirmed_at = $5,
			completed_at = $6,
			updated_at = $7
		WHERE id = $8
	`

	result, err := r.q.Exec(ctx, query,
		e.CourseName,
		e.Price,
		e.Note,
		string(e.Status),
		e.PaymentConfirmedAt,
		e.CompletedAt,
		time.Now().UTC(),
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update enrollment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return enrollment.ErrEnrollmentNotFound
	}

	if e.Progress != nil {
		if err := r.upsertProgress(ctx, e); err != nil {
			return err
		}
	}

	if e.Certificate != nil {
		if err := r.upsertCertificate(ctx, e.Certificate); err != nil {
			return err
		}
	}

	return nil
}

// upsertProgress writes all progress records with keyed overwrite.
func (r *EnrollmentRepository) upsertProgress(ctx context.Context, e *enrollment.Enrollment) error {
	query := `
		INSERT INTO enrollment_progress (
			enrollment_id, course_id, lesson_id, lesson_name,
			duration_seconds, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (enrollment_id, lesson_id) DO UPDATE SET
			lesson_name = EXCLUDED.lesson_name,
			duration_seconds = EXCLUDED.duration_seconds,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at
	`

	for _, record := range e.Progress.All() {
		_, err := r.q.Exec(ctx, query,
			record.EnrollmentID,
			record.CourseID,
			record.LessonID,
			record.LessonName,
			int64(record.Duration/time.Second),
			record.StartedAt,
			record.CompletedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert progress record %s: %w", record.LessonID, err)
		}
	}

	return nil
}

// upsertCertificate writes the certificate, keeping one per enrollment.
func (r *EnrollmentRepository) upsertCertificate(ctx context.Context, c *enrollment.Certificate) error {
	query := `
		INSERT INTO certificates (
			id, enrollment_id, course_name, instructor_name, workload,
			requested_at, issued_at, storage_path
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (enrollment_id) DO UPDATE SET
			issued_at = EXCLUDED.issued_at,
			storage_path = EXCLUDED.storage_path
	`

	_, err := r.q.Exec(ctx, query,
		c.ID,
		c.EnrollmentID,
		c.CourseName,
		c.InstructorName,
		c.Workload,
		c.RequestedAt,
		c.IssuedAt,
		c.StoragePath,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert certificate: %w", err)
	}

	return nil
}

// loadAggregate attaches progress records and the certificate to an
// already-scanned enrollment row.
func (r *EnrollmentRepository) loadAggregate(ctx context.Context, e *enrollment.Enrollment) (*enrollment.Enrollment, error) {
	records, err := r.loadProgress(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	ledger := enrollment.NewProgressLedger()
	ledger.Restore(records)
	e.Progress = ledger

	cert, err := r.loadCertificate(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	e.Certificate = cert

	return e, nil
}

// loadProgress returns all progress records of an enrollment.
func (r *EnrollmentRepository) loadProgress(ctx context.Context, enrollmentID string) ([]enrollment.ProgressRecord, error) {
	query := `
		SELECT enrollment_id, course_id, lesson_id, lesson_name,
		       duration_seconds, started_at, completed_at
		FROM enrollment_progress
		WHERE enrollment_id = $1
	`

	rows, err := r.q.Query(ctx, query, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	defer rows.Close()

	var records []enrollment.ProgressRecord
	for rows.Next() {
		var record enrollment.ProgressRecord
		var durationSeconds int64

		err := rows.Scan(
			&record.EnrollmentID,
			&record.CourseID,
			&record.LessonID,
			&record.LessonName,
			&durationSeconds,
			&record.StartedAt,
			&record.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress record: %w", err)
		}

		record.Duration = time.Duration(durationSeconds) * time.Second
		records = append(records, record)
	}

	return records, rows.Err()
}

// loadCertificate returns the enrollment's certificate, or nil when none was
// requested yet.
func (r *EnrollmentRepository) loadCertificate(ctx context.Context, enrollmentID string) (*enrollment.Certificate, error) {
	query := `
		SELECT id, enrollment_id, course_name, instructor_name, workload,
		       requested_at, issued_at, storage_path
		FROM certificates
		WHERE enrollment_id = $1
	`

	var c enrollment.Certificate
	err := r.q.QueryRow(ctx, query, enrollmentID).Scan(
		&c.ID,
		&c.EnrollmentID,
		&c.CourseName,
		&c.InstructorName,
		&c.Workload,
		&c.RequestedAt,
		&c.IssuedAt,
		&c.StoragePath,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan certificate: %w", err)
	}

	return &c, nil
}

// scanEnrollment scans a single enrollment row.
func (r *EnrollmentRepository) scanEnrollment(row pgx.Row) (*enrollment.Enrollment, error) {
	var e enrollment.Enrollment
	var status string

	err := row.Scan(
		&e.ID,
		&e.StudentID,
		&e.CourseID,
		&e.CourseName,
		&e.Price,
		&e.Note,
		&status,
		&e.EnrolledAt,
		&e.PaymentConfirmedAt,
		&e.CompletedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, enrollment.ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("failed to scan enrollment: %w", err)
	}

	e.Status = enrollment.Status(status)
	return &e, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CertificateRepository implements enrollment.CertificateRepository for the
// asynchronous issuance worker.
type CertificateRepository struct {
	q Querier
}

// NewCertificateRepository creates a repository backed by the connection pool.
func NewCertificateRepository(conn *Connection) *CertificateRepository {
	return &CertificateRepository{q: conn}
}

// ListUnissued returns certificates awaiting file generation, oldest first.
func (r *CertificateRepository) ListUnissued(ctx context.Context, limit int) ([]*enrollment.Certificate, error) {
	query := `
		SELECT id, enrollment_id, course_name, instructor_name, workload,
		       requested_at, issued_at, storage_path
		FROM certificates
		WHERE issued_at IS NULL
		ORDER BY requested_at
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unissued certificates: %w", err)
	}
	defer rows.Close()

	var certs []*enrollment.Certificate
	for rows.Next() {
		var c enrollment.Certificate
		err := rows.Scan(
			&c.ID,
			&c.EnrollmentID,
			&c.CourseName,
			&c.InstructorName,
			&c.Workload,
			&c.RequestedAt,
			&c.IssuedAt,
			&c.StoragePath,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan certificate: %w", err)
		}
		certs = append(certs, &c)
	}

	return certs, rows.Err()
}

// MarkIssued records the generated file for a certificate. Already-issued
// certificates are left untouched so the worker can safely re-process.
func (r *CertificateRepository) MarkIssued(ctx context.Context, certificateID, storagePath string) error {
	query := `
		UPDATE certificates
		SET issued_at = $1, storage_path = $2
		WHERE id = $3 AND issued_at IS NULL
	`

	_, err := r.q.Exec(ctx, query, time.Now().UTC(), storagePath, certificateID)
	if err != nil {
		return fmt.Errorf("failed to mark certificate issued: %w", err)
	}

	return nil
}
