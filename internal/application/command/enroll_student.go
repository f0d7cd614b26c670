package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/enrollhub/enrollment-hub/internal/domain/enrollment"
	"github.com/enrollhub/enrollment-hub/internal/domain/shared"
	"github.com/enrollhub/enrollment-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLL STUDENT COMMAND
// Creates a pending-payment enrollment of a student in a course. The course
// name and price are snapshots taken at enrollment time.
// ══════════════════════════════════════════════════════════════════════════════

// EnrollStudentCommand contains the data to enroll a student.
type EnrollStudentCommand struct {
	// StudentID is the enrolling student.
	StudentID string `validate:"required"`

	// CourseID is the catalog id of the course.
	CourseID string `validate:"required"`

	// CourseName is the course title snapshot.
	CourseName string `validate:"required,max=300"`

	// Price is the agreed price.
	Price float64 `validate:"gte=0"`

	// Note is an optional free-form note.
	Note string `validate:"max=500"`
}

// EnrollStudentResult contains the outcome of the enrollment.
type EnrollStudentResult struct {
	// EnrollmentID is the id of the created enrollment, empty on failure.
	EnrollmentID string

	// Validation collects the expected failures, in order.
	Validation shared.ValidationResult
}

// EnrollStudentHandler handles EnrollStudentCommand.
type EnrollStudentHandler struct {
	uowFactory  UnitOfWorkFactory
	idGenerator IDGenerator
}

// NewEnrollStudentHandler creates a new EnrollStudentHandler.
func NewEnrollStudentHandler(uowFactory UnitOfWorkFactory, idGenerator IDGenerator) *EnrollStudentHandler {
	return &EnrollStudentHandler{uowFactory: uowFactory, idGenerator: idGenerator}
}

// Handle enrolls the student inside one transaction.
func (h *EnrollStudentHandler) Handle(ctx context.Context, cmd EnrollStudentCommand) (*EnrollStudentResult, error) {
	result := &EnrollStudentResult{}

	runValidation(cmd, &result.Validation)
	if !result.Validation.Valid() {
		return result, nil
	}

	uow, err := h.uowFactory.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("enroll_student: begin: %w", err)
	}
	defer uow.Rollback(ctx)

	s, err := uow.Students().GetByID(ctx, cmd.StudentID)
	if err != nil {
		if errors.Is(err, student.ErrStudentNotFound) {
			// Unknown student is a soft outcome: the caller checks for
			// the absent enrollment id, not for an error flag.
			return result, nil
		}
		return nil, fmt.Errorf("enroll_student: load student: %w", err)
	}

	if !s.Active {
		result.Validation.AddError("StudentID", "student is not active")
		return result, nil
	}

	e, err := enrollment.NewEnrollment(enrollment.NewEnrollmentParams{
		ID:         h.idGenerator.GenerateID(),
		StudentID:  s.ID,
		CourseID:   cmd.CourseID,
		CourseName: cmd.CourseName,
		Price:      cmd.Price,
		Note:       cmd.Note,
	})
	if err != nil {
		result.Validation.AddError("Enrollment", err.Error())
		return result, nil
	}

	if err := uow.Enrollments().Create(ctx, e); err != nil {
		if errors.Is(err, enrollment.ErrEnrollmentAlreadyExists) {
			result.Validation.AddError("CourseID", "student is already enrolled in this course")
			return result, nil
		}
		return nil, fmt.Errorf("enroll_student: create: %w", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("enroll_student: commit: %w", err)
	}

	result.EnrollmentID = e.ID
	return result, nil
}
