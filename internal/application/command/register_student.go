package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/enrollhub/enrollment-hub/internal/domain/shared"
	"github.com/enrollhub/enrollment-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER STUDENT COMMAND
// Creates the student record matching an identity-service account. The id is
// supplied by the caller so both services share the same identifier.
// ══════════════════════════════════════════════════════════════════════════════

// RegisterStudentCommand contains the data to register a student.
type RegisterStudentCommand struct {
	// ID is the identifier shared with the identity-service account.
	ID string `validate:"required"`

	// Name is the student's full name.
	Name string `validate:"required,max=200"`

	// Email must be unique across students.
	Email string `validate:"required,email"`

	// NationalID is the national identity document number.
	NationalID string `validate:"required,min=5,max=30"`

	// BirthDate is the student's date of birth.
	BirthDate time.Time `validate:"required"`

	// Contact and address fields.
	Phone      string
	Gender     string
	City       string
	State      string
	PostalCode string
	PhotoURL   string
}

// RegisterStudentResult contains the outcome of the registration.
type RegisterStudentResult struct {
	// StudentID is the id of the created student, empty on failure.
	StudentID string

	// Validation collects the expected failures, in order.
	Validation shared.ValidationResult
}

// RegisterStudentHandler handles RegisterStudentCommand.
type RegisterStudentHandler struct {
	uowFactory UnitOfWorkFactory
}

// NewRegisterStudentHandler creates a new RegisterStudentHandler.
func NewRegisterStudentHandler(uowFactory UnitOfWorkFactory) *RegisterStudentHandler {
	return &RegisterStudentHandler{uowFactory: uowFactory}
}

// Handle registers the student inside one transaction.
// The duplicate check is backed by the storage unique constraints: two
// concurrent registrations with the same email cannot both commit, the loser
// gets a validation failure instead of a second row.
func (h *RegisterStudentHandler) Handle(ctx context.Context, cmd RegisterStudentCommand) (*RegisterStudentResult, error) {
	result := &RegisterStudentResult{}

	runValidation(cmd, &result.Validation)
	if !result.Validation.Valid() {
		return result, nil
	}

	s, err := student.NewStudent(student.NewStudentParams{
		ID:         cmd.ID,
		AccountID:  cmd.ID,
		Name:       cmd.Name,
		Email:      student.Email(cmd.Email),
		NationalID: student.NationalID(cmd.NationalID),
		BirthDate:  cmd.BirthDate,
		Contact: student.Contact{
			Phone:      cmd.Phone,
			Gender:     cmd.Gender,
			City:       cmd.City,
			State:      cmd.State,
			PostalCode: cmd.PostalCode,
			PhotoURL:   cmd.PhotoURL,
		},
	})
	if err != nil {
		result.Validation.AddError("Student", err.Error())
		return result, nil
	}

	// Students are usable right away; deactivation is an explicit
	// administrative action.
	s.Activate()

	uow, err := h.uowFactory.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("register_student: begin: %w", err)
	}
	defer uow.Rollback(ctx)

	if err := uow.Students().Create(ctx, s); err != nil {
		if errors.Is(err, student.ErrStudentAlreadyExists) {
			result.Validation.AddError("Email", "a student with this id or email is already registered")
			return result, nil
		}
		return nil, fmt.Errorf("register_student: create: %w", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("register_student: commit: %w", err)
	}

	result.StudentID = s.ID
	return result, nil
}
