package responder

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/enrollhub/enrollment-hub/internal/application/command"
	"github.com/enrollhub/enrollment-hub/internal/infrastructure/messaging"
	"github.com/enrollhub/enrollment-hub/internal/integration"
)

// ══════════════════════════════════════════════════════════════════════════════
// PAYMENT CONFIRMED RESPONDER
// ══════════════════════════════════════════════════════════════════════════════

// PaymentConfirmedResponder answers integration.EventEnrollmentPaymentConfirmed
// by marking the matching enrollment as paid.
type PaymentConfirmedResponder struct {
	handler *command.ConfirmEnrollmentPaymentHandler
	logger  *slog.Logger
}

// NewPaymentConfirmedResponder creates the responder.
func NewPaymentConfirmedResponder(handler *command.ConfirmEnrollmentPaymentHandler, logger *slog.Logger) *PaymentConfirmedResponder {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentConfirmedResponder{handler: handler, logger: logger}
}

// EventType returns the event type this responder is bound to.
func (r *PaymentConfirmedResponder) EventType() integration.EventType {
	return integration.EventEnrollmentPaymentConfirmed
}

// Handle processes one delivery.
func (r *PaymentConfirmedResponder) Handle(ctx context.Context, payload []byte) (out []byte, outErr error) {
	correlationID := messaging.CorrelationID(ctx)
	defer recoverToReply(r.logger, correlationID, r.EventType(), &out, &outErr)

	var event integration.EnrollmentPaymentConfirmed
	if err := json.Unmarshal(payload, &event); err != nil {
		r.logger.Warn("malformed event",
			"event_type", r.EventType(),
			"correlation_id", correlationID,
			"error", err,
		)
		return replyBytes(integration.Fail("Event", "malformed payment confirmed event"))
	}

	result, err := r.handler.Handle(ctx, command.ConfirmEnrollmentPaymentCommand{
		StudentID: event.StudentID,
		CourseID:  event.CourseID,
	})
	if err != nil {
		r.logger.Error("confirm payment failed",
			"event_type", r.EventType(),
			"correlation_id", correlationID,
			"student_id", event.StudentID,
			"course_id", event.CourseID,
			"error", err,
		)
		return replyBytes(integration.Exception(err))
	}

	r.logger.Info("enrollment payment confirmed",
		"correlation_id", correlationID,
		"student_id", event.StudentID,
		"course_id", event.CourseID,
		"enrollment_id", result.EnrollmentID,
		"valid", result.Validation.Valid(),
	)
	return replyBytes(fromValidation(result.Validation))
}
