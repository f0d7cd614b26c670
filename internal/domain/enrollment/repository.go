package enrollment

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines the storage contract for enrollments.
// Progress records and the certificate are persisted together with the
// aggregate; progress is stored with keyed overwrite per (enrollment, lesson).
type Repository interface {
	// Create persists a new enrollment.
	// Returns ErrEnrollmentAlreadyExists when the student already has an
	// enrollment for the same course.
	Create(ctx context.Context, enrollment *Enrollment) error

	// GetByID returns an enrollment with its progress and certificate.
	// Returns ErrEnrollmentNotFound if no such enrollment exists.
	GetByID(ctx context.Context, id string) (*Enrollment, error)

	// GetByStudentAndCourse returns the student's enrollment in a course.
	// Returns ErrEnrollmentNotFound if no such enrollment exists.
	GetByStudentAndCourse(ctx context.Context, studentID, courseID string) (*Enrollment, error)

	// ListByStudent returns all enrollments owned by a student.
	ListByStudent(ctx context.Context, studentID string) ([]*Enrollment, error)

	// Update persists aggregate changes: status, timestamps, progress
	// records (upsert by lesson id) and the certificate.
	Update(ctx context.Context, enrollment *Enrollment) error
}

// CertificateRepository provides access to certificates independent of their
// enrollment, for the asynchronous issuance worker.
type CertificateRepository interface {
	// ListUnissued returns certificates awaiting file generation.
	ListUnissued(ctx context.Context, limit int) ([]*Certificate, error)

	// MarkIssued records the generated file for a certificate.
	MarkIssued(ctx context.Context, certificateID, storagePath string) error
}
