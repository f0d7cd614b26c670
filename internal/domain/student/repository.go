package student

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines the storage contract for students.
type Repository interface {
	// Create persists a new student.
	// Returns ErrStudentAlreadyExists if a student with the same id or
	// email already exists; uniqueness is backed by storage constraints so
	// concurrent duplicate registrations cannot both commit.
	Create(ctx context.Context, student *Student) error

	// GetByID returns a student by internal ID.
	// Returns ErrStudentNotFound if no such student exists.
	GetByID(ctx context.Context, id string) (*Student, error)

	// GetByEmail returns a student by normalized email.
	// Returns ErrStudentNotFound if no such student exists.
	GetByEmail(ctx context.Context, email Email) (*Student, error)

	// Update persists changes to an existing student.
	// Returns ErrStudentNotFound if no such student exists.
	Update(ctx context.Context, student *Student) error

	// Exists reports whether a student with the given ID exists.
	Exists(ctx context.Context, id string) (bool, error)

	// ExistsByEmail reports whether a student with the given email exists.
	ExistsByEmail(ctx context.Context, email Email) (bool, error)
}
