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
// STUDENT REGISTERED RESPONDER
// ══════════════════════════════════════════════════════════════════════════════

// StudentRegisteredResponder answers integration.EventStudentRegistered by
// creating the matching student record.
type StudentRegisteredResponder struct {
	handler *command.RegisterStudentHandler
	logger  *slog.Logger
}

// NewStudentRegisteredResponder creates the responder.
func NewStudentRegisteredResponder(handler *command.RegisterStudentHandler, logger *slog.Logger) *StudentRegisteredResponder {
	if logger == nil {
		logger = slog.Default()
	}
	return &StudentRegisteredResponder{handler: handler, logger: logger}
}

// EventType returns the event type this responder is bound to.
func (r *StudentRegisteredResponder) EventType() integration.EventType {
	return integration.EventStudentRegistered
}

// Handle processes one delivery.
func (r *StudentRegisteredResponder) Handle(ctx context.Context, payload []byte) (out []byte, outErr error) {
	correlationID := messaging.CorrelationID(ctx)
	defer recoverToReply(r.logger, correlationID, r.EventType(), &out, &outErr)

	var event integration.StudentRegistered
	if err := json.Unmarshal(payload, &event); err != nil {
		r.logger.Warn("malformed event",
			"event_type", r.EventType(),
			"correlation_id", correlationID,
			"error", err,
		)
		return replyBytes(integration.Fail("Event", "malformed student registered event"))
	}

	result, err := r.handler.Handle(ctx, command.RegisterStudentCommand{
		ID:         event.ID,
		Name:       event.Name,
		Email:      event.Email,
		NationalID: event.NationalID,
		BirthDate:  event.BirthDate,
		Phone:      event.Phone,
		Gender:     event.Gender,
		City:       event.City,
		State:      event.State,
		PostalCode: event.PostalCode,
		PhotoURL:   event.PhotoURL,
	})
	if err != nil {
		// Infrastructure fault: contained into the reply so the caller's
		// conversation still completes.
		r.logger.Error("register student failed",
			"event_type", r.EventType(),
			"correlation_id", correlationID,
			"student_id", event.ID,
			"error", err,
		)
		return replyBytes(integration.Exception(err))
	}

	r.logger.Info("student registered",
		"correlation_id", correlationID,
		"student_id", event.ID,
		"valid", result.Validation.Valid(),
	)
	return replyBytes(fromValidation(result.Validation))
}
