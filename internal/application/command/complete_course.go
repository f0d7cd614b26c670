package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/enrollhub/enrollment-hub/internal/domain/enrollment"
	"github.com/enrollhub/enrollment-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE COURSE COMMAND
// Finishes an enrollment after checking the progress ledger against the
// catalog's current active lessons.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteCourseCommand contains the data to complete a course.
type CompleteCourseCommand struct {
	// EnrollmentID is the enrollment to complete.
	EnrollmentID string `validate:"required"`
}

// CompleteCourseResult contains the outcome of the completion.
type CompleteCourseResult struct {
	// Completed reports whether the enrollment is (now) completed.
	Completed bool

	// Validation collects the expected failures, in order.
	Validation shared.ValidationResult
}

// CompleteCourseHandler handles CompleteCourseCommand.
type CompleteCourseHandler struct {
	uowFactory UnitOfWorkFactory
	snapshots  CourseSnapshotProvider
}

// NewCompleteCourseHandler creates a new CompleteCourseHandler.
func NewCompleteCourseHandler(uowFactory UnitOfWorkFactory, snapshots CourseSnapshotProvider) *CompleteCourseHandler {
	return &CompleteCourseHandler{uowFactory: uowFactory, snapshots: snapshots}
}

// Handle completes the enrollment inside one transaction.
// The course snapshot is fetched before the transaction opens; the completion
// rule runs against that frozen view, never against a live catalog query.
func (h *CompleteCourseHandler) Handle(ctx context.Context, cmd CompleteCourseCommand) (*CompleteCourseResult, error) {
	result := &CompleteCourseResult{}

	runValidation(cmd, &result.Validation)
	if !result.Validation.Valid() {
		return result, nil
	}

	uow, err := h.uowFactory.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("complete_course: begin: %w", err)
	}
	defer uow.Rollback(ctx)

	e, err := uow.Enrollments().GetByID(ctx, cmd.EnrollmentID)
	if err != nil {
		if errors.Is(err, enrollment.ErrEnrollmentNotFound) {
			return result, nil
		}
		return nil, fmt.Errorf("complete_course: load enrollment: %w", err)
	}

	snapshot, err := h.snapshots.GetCourseSnapshot(ctx, e.CourseID)
	if err != nil {
		return nil, fmt.Errorf("complete_course: course snapshot: %w", err)
	}

	if err := e.Complete(snapshot); err != nil {
		var pending *enrollment.PendingLessonsError
		var missing *enrollment.MissingLessonsError
		switch {
		case errors.As(err, &pending), errors.As(err, &missing):
			result.Validation.AddError("Progress", err.Error())
		case errors.Is(err, enrollment.ErrPaymentNotConfirmed):
			result.Validation.AddError("EnrollmentID", "payment is not confirmed for this enrollment")
		default:
			result.Validation.AddError("Enrollment", err.Error())
		}
		return result, nil
	}

	if err := uow.Enrollments().Update(ctx, e); err != nil {
		return nil, fmt.Errorf("complete_course: update: %w", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("complete_course: commit: %w", err)
	}

	result.Completed = true
	return result, nil
}
