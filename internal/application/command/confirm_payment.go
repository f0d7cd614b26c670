package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/enrollhub/enrollment-hub/internal/domain/enrollment"
	"github.com/enrollhub/enrollment-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIRM ENROLLMENT PAYMENT COMMAND
// Marks the student's enrollment in a course as paid. Addressed by
// (student, course) because that is what the payment service knows.
// ══════════════════════════════════════════════════════════════════════════════

// ConfirmEnrollmentPaymentCommand contains the data to confirm a payment.
type ConfirmEnrollmentPaymentCommand struct {
	// StudentID is the paying student.
	StudentID string `validate:"required"`

	// CourseID is the course whose enrollment was paid.
	CourseID string `validate:"required"`
}

// ConfirmEnrollmentPaymentResult contains the outcome of the confirmation.
type ConfirmEnrollmentPaymentResult struct {
	// EnrollmentID is the confirmed enrollment, empty when none was found.
	EnrollmentID string

	// Validation collects the expected failures, in order.
	Validation shared.ValidationResult
}

// ConfirmEnrollmentPaymentHandler handles ConfirmEnrollmentPaymentCommand.
type ConfirmEnrollmentPaymentHandler struct {
	uowFactory UnitOfWorkFactory
}

// NewConfirmEnrollmentPaymentHandler creates a new handler.
func NewConfirmEnrollmentPaymentHandler(uowFactory UnitOfWorkFactory) *ConfirmEnrollmentPaymentHandler {
	return &ConfirmEnrollmentPaymentHandler{uowFactory: uowFactory}
}

// Handle confirms the payment inside one transaction.
// A second confirmation for the same enrollment is rejected: the payment
// service must see that it double-charged instead of getting a silent ok.
func (h *ConfirmEnrollmentPaymentHandler) Handle(ctx context.Context, cmd ConfirmEnrollmentPaymentCommand) (*ConfirmEnrollmentPaymentResult, error) {
	result := &ConfirmEnrollmentPaymentResult{}

	runValidation(cmd, &result.Validation)
	if !result.Validation.Valid() {
		return result, nil
	}

	uow, err := h.uowFactory.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("confirm_payment: begin: %w", err)
	}
	defer uow.Rollback(ctx)

	e, err := uow.Enrollments().GetByStudentAndCourse(ctx, cmd.StudentID, cmd.CourseID)
	if err != nil {
		if errors.Is(err, enrollment.ErrEnrollmentNotFound) {
			// Soft outcome: valid-but-empty reply, the caller checks the
			// absent enrollment id.
			return result, nil
		}
		return nil, fmt.Errorf("confirm_payment: load enrollment: %w", err)
	}

	if err := e.ConfirmPayment(); err != nil {
		if errors.Is(err, enrollment.ErrPaymentAlreadyConfirmed) {
			result.Validation.AddError("Payment", "payment for this enrollment is already confirmed")
			return result, nil
		}
		result.Validation.AddError("Payment", err.Error())
		return result, nil
	}

	if err := uow.Enrollments().Update(ctx, e); err != nil {
		return nil, fmt.Errorf("confirm_payment: update: %w", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("confirm_payment: commit: %w", err)
	}

	result.EnrollmentID = e.ID
	return result, nil
}
