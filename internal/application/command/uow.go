// Package command contains the write operations of the enrollment service.
// Each handler opens a fresh unit of work, mutates the aggregates and commits
// one storage transaction; no mutable state is shared across concurrent
// executions.
package command

import (
	"context"

	"github.com/google/uuid"

	"github.com/enrollhub/enrollment-hub/internal/domain/enrollment"
	"github.com/enrollhub/enrollment-hub/internal/domain/student"
)

// UnitOfWork scopes repository access to one storage transaction.
type UnitOfWork interface {
	// Students returns the student repository bound to this transaction.
	Students() student.Repository

	// Enrollments returns the enrollment repository bound to this transaction.
	Enrollments() enrollment.Repository

	// Commit commits the transaction.
	Commit(ctx context.Context) error

	// Rollback aborts the transaction. Safe to call after Commit.
	Rollback(ctx context.Context) error
}

// UnitOfWorkFactory opens units of work.
type UnitOfWorkFactory interface {
	// Begin starts a new transaction-scoped unit of work.
	Begin(ctx context.Context) (UnitOfWork, error)
}

// CourseSnapshotProvider supplies the catalog's read-only course view used by
// completion checks and certificate requests.
type CourseSnapshotProvider interface {
	// GetCourseSnapshot returns the current snapshot of a course.
	GetCourseSnapshot(ctx context.Context, courseID string) (enrollment.CourseSnapshot, error)
}

// IDGenerator generates unique identifiers for new aggregates.
type IDGenerator interface {
	// GenerateID generates a new unique ID.
	GenerateID() string
}

// UUIDGenerator implements IDGenerator with random UUIDs.
type UUIDGenerator struct{}

// GenerateID returns a new random UUID string.
func (UUIDGenerator) GenerateID() string {
	return uuid.NewString()
}
