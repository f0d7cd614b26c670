package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/enrollhub/enrollment-hub/internal/domain/enrollment"
	"github.com/enrollhub/enrollment-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD LESSON PROGRESS COMMAND
// Upserts one lesson's progress record on an enrollment. Recording the same
// lesson twice keeps the earliest start and the latest completion.
// ══════════════════════════════════════════════════════════════════════════════

// RecordLessonProgressCommand contains the data to record lesson progress.
type RecordLessonProgressCommand struct {
	// EnrollmentID is the enrollment being progressed.
	EnrollmentID string `validate:"required"`

	// LessonID is the catalog id of the lesson.
	LessonID string `validate:"required"`

	// LessonName is the lesson title snapshot.
	LessonName string `validate:"required,max=300"`

	// DurationMinutes is the lesson duration in minutes.
	DurationMinutes int `validate:"gte=0"`

	// CompletedAt marks the lesson finished; nil records it as started.
	CompletedAt *time.Time
}

// RecordLessonProgressResult contains the outcome of the recording.
type RecordLessonProgressResult struct {
	// Recorded reports whether a matching enrollment was found and updated.
	Recorded bool

	// Validation collects the expected failures, in order.
	Validation shared.ValidationResult
}

// RecordLessonProgressHandler handles RecordLessonProgressCommand.
type RecordLessonProgressHandler struct {
	uowFactory UnitOfWorkFactory
}

// NewRecordLessonProgressHandler creates a new handler.
func NewRecordLessonProgressHandler(uowFactory UnitOfWorkFactory) *RecordLessonProgressHandler {
	return &RecordLessonProgressHandler{uowFactory: uowFactory}
}

// Handle records the progress inside one transaction.
func (h *RecordLessonProgressHandler) Handle(ctx context.Context, cmd RecordLessonProgressCommand) (*RecordLessonProgressResult, error) {
	result := &RecordLessonProgressResult{}

	runValidation(cmd, &result.Validation)
	if !result.Validation.Valid() {
		return result, nil
	}

	uow, err := h.uowFactory.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("record_progress: begin: %w", err)
	}
	defer uow.Rollback(ctx)

	e, err := uow.Enrollments().GetByID(ctx, cmd.EnrollmentID)
	if err != nil {
		if errors.Is(err, enrollment.ErrEnrollmentNotFound) {
			return result, nil
		}
		return nil, fmt.Errorf("record_progress: load enrollment: %w", err)
	}

	duration := time.Duration(cmd.DurationMinutes) * time.Minute
	if err := e.RecordProgress(cmd.LessonID, cmd.LessonName, duration, cmd.CompletedAt); err != nil {
		if errors.Is(err, enrollment.ErrPaymentNotConfirmed) {
			result.Validation.AddError("EnrollmentID", "payment is not confirmed for this enrollment")
			return result, nil
		}
		result.Validation.AddError("Progress", err.Error())
		return result, nil
	}

	if err := uow.Enrollments().Update(ctx, e); err != nil {
		return nil, fmt.Errorf("record_progress: update: %w", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("record_progress: commit: %w", err)
	}

	result.Recorded = true
	return result, nil
}
