// Package responder contains the enrollment service's bridge responders: one
// per integration event type. A responder deserializes the event, maps it 1:1
// onto the internal command, executes it in a fresh unit of work and replies
// with the command's validation outcome.
//
// Fault containment: anything unexpected - a panic, a storage failure - is
// caught here, logged with the delivery's correlation id and converted into a
// single synthetic "Exception" validation failure. The round trip always
// completes for business-level faults; only broker unavailability surfaces as
// a transport failure to the caller.
package responder

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/enrollhub/enrollment-hub/internal/domain/shared"
	"github.com/enrollhub/enrollment-hub/internal/integration"
)

// replyBytes serializes a reply envelope. Marshalling a Response cannot
// realistically fail; a failure here is reported as a transport error.
func replyBytes(resp integration.Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("responder: marshal reply: %w", err)
	}
	return data, nil
}

// fromValidation converts a command's validation result into a reply.
func fromValidation(v shared.ValidationResult) integration.Response {
	if v.Valid() {
		return integration.OK()
	}

	errs := make([]integration.FieldError, 0, len(v.Errors()))
	for _, fe := range v.Errors() {
		errs = append(errs, integration.FieldError{Field: fe.Field, Message: fe.Message})
	}
	return integration.Failed(errs)
}

// recoverToReply converts a panic into the synthetic exception reply.
// Used as a deferred closure around every responder body.
func recoverToReply(logger *slog.Logger, correlationID string, eventType integration.EventType, out *[]byte, outErr *error) {
	r := recover()
	if r == nil {
		return
	}

	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("%v", r)
	}

	logger.Error("responder panicked",
		"event_type", eventType,
		"correlation_id", correlationID,
		"panic", err,
	)

	*out, *outErr = replyBytes(integration.Exception(err))
}
