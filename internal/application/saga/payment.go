package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/enrollhub/enrollment-hub/internal/domain/shared"
	"github.com/enrollhub/enrollment-hub/internal/infrastructure/messaging"
	"github.com/enrollhub/enrollment-hub/internal/integration"
)

// ══════════════════════════════════════════════════════════════════════════════
// PAYMENT SAGA
// Flow: Validate → Publish Attempt → Settle Charge → Confirm Enrollment (via
// the bridge) → Complete
//
// The charge is the point of no return: once the gateway accepted it there is
// no automated refund, so a failed confirmation is surfaced for the operator
// instead of compensated.
// ══════════════════════════════════════════════════════════════════════════════

// Charge describes one payment attempt against the gateway.
type Charge struct {
	// StudentID - the paying student.
	StudentID string

	// CourseID - the course being paid for.
	CourseID string

	// Amount - charge amount in the platform currency.
	Amount float64

	// CardToken - opaque payment instrument token.
	CardToken string
}

// SettlementResult is the gateway's verdict on a charge.
type SettlementResult struct {
	// Accepted - whether the gateway accepted the charge.
	Accepted bool

	// TransactionID - gateway-side reference, set when accepted.
	TransactionID string

	// Reason - human-readable rejection reason, set when declined.
	Reason string
}

// PaymentGateway settles charges with the external payment provider.
type PaymentGateway interface {
	// Settle submits the charge and returns the gateway's verdict.
	// An error means the gateway could not be reached, not a decline.
	Settle(ctx context.Context, charge Charge) (*SettlementResult, error)
}

// PaymentInput contains all data required to process a payment.
type PaymentInput struct {
	// StudentID - the paying student (required).
	StudentID string

	// CourseID - the course being paid for (required).
	CourseID string

	// Amount - charge amount, must be positive.
	Amount float64

	// CardToken - payment instrument token (required).
	CardToken string
}

// Validate checks if the input can start a payment.
func (i PaymentInput) Validate() error {
	if i.StudentID == "" {
		return errors.New("payment: student id is required")
	}
	if i.CourseID == "" {
		return errors.New("payment: course id is required")
	}
	if i.Amount <= 0 {
		return errors.New("payment: amount must be positive")
	}
	if i.CardToken == "" {
		return errors.New("payment: card token is required")
	}
	return nil
}

// PaymentResult contains the result of a successful payment.
type PaymentResult struct {
	// TransactionID - gateway-side reference for the accepted charge.
	TransactionID string

	// ConfirmationReply - the enrollment service's reply.
	ConfirmationReply *integration.Response

	// PaidAt - timestamp of the accepted charge.
	PaidAt time.Time
}

// PaymentStep represents a step in the payment process.
type PaymentStep string

const (
	StepValidatePaymentInput PaymentStep = "validate_input"
	StepPublishAttempt       PaymentStep = "publish_attempt"
	StepSettleCharge         PaymentStep = "settle_charge"
	StepConfirmEnrollment    PaymentStep = "confirm_enrollment"
	StepPaymentComplete      PaymentStep = "complete"
)

// PaymentState tracks the current state of the payment saga.
type PaymentState struct {
	CurrentStep PaymentStep
	Input       PaymentInput
	Settlement  *SettlementResult
	Reply       *integration.Response
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       error
	FailedStep  PaymentStep
}

// PaymentAttemptedEvent is published before the charge is submitted so the
// attempt is visible even when the gateway call never returns.
type PaymentAttemptedEvent struct {
	shared.BaseEvent
	StudentID string
	CourseID  string
	Amount    float64
}

// PaymentAcceptedEvent is published after the gateway accepted the charge.
type PaymentAcceptedEvent struct {
	shared.BaseEvent
	StudentID     string
	CourseID      string
	Amount        float64
	TransactionID string
}

// PaymentRejectedEvent is published after the gateway declined the charge.
type PaymentRejectedEvent struct {
	shared.BaseEvent
	StudentID string
	CourseID  string
	Reason    string
}

// ══════════════════════════════════════════════════════════════════════════════
// PAYMENT SAGA IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// PaymentSaga orchestrates a charge against the gateway and the matching
// enrollment confirmation on the enrollment service.
type PaymentSaga struct {
	gateway  PaymentGateway
	broker   messaging.Broker
	eventBus shared.EventPublisher
	logger   *slog.Logger
}

// NewPaymentSaga creates a new payment saga with all dependencies.
func NewPaymentSaga(
	gateway PaymentGateway,
	broker messaging.Broker,
	eventBus shared.EventPublisher,
	logger *slog.Logger,
) *PaymentSaga {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentSaga{
		gateway:  gateway,
		broker:   broker,
		eventBus: eventBus,
		logger:   logger,
	}
}

// Execute runs the complete payment process.
func (s *PaymentSaga) Execute(ctx context.Context, input PaymentInput) (*PaymentResult, error) {
	state := &PaymentState{
		CurrentStep: StepValidatePaymentInput,
		Input:       input,
		StartedAt:   time.Now().UTC(),
	}

	// Step 1: Validate input
	if err := state.Input.Validate(); err != nil {
		state.FailedStep = StepValidatePaymentInput
		state.Error = err
		return nil, s.wrapError(state, err)
	}

	// Step 2: Publish the attempt. Non-critical: a lost attempt event does
	// not block the charge.
	state.CurrentStep = StepPublishAttempt
	s.publishAttempt(state)

	// Step 3: Settle the charge with the gateway
	state.CurrentStep = StepSettleCharge
	if err := s.stepSettleCharge(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 4: Confirm the enrollment on the enrollment service
	state.CurrentStep = StepConfirmEnrollment
	if err := s.stepConfirmEnrollment(ctx, state); err != nil {
		// The charge went through. Surface the inconsistency loudly
		// instead of pretending the payment failed.
		s.logger.Error("charge accepted but enrollment confirmation failed",
			"student_id", state.Input.StudentID,
			"course_id", state.Input.CourseID,
			"transaction_id", state.Settlement.TransactionID,
			"error", err,
		)
		return nil, s.wrapError(state, err)
	}

	// Complete
	state.CurrentStep = StepPaymentComplete
	now := time.Now().UTC()
	state.CompletedAt = &now

	return &PaymentResult{
		TransactionID:     state.Settlement.TransactionID,
		ConfirmationReply: state.Reply,
		PaidAt:            now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA STEPS
// ══════════════════════════════════════════════════════════════════════════════

// publishAttempt records the payment attempt as a domain event.
func (s *PaymentSaga) publishAttempt(state *PaymentState) {
	if s.eventBus == nil {
		return
	}
	event := PaymentAttemptedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventPaymentAttempted, state.Input.StudentID),
		StudentID: state.Input.StudentID,
		CourseID:  state.Input.CourseID,
		Amount:    state.Input.Amount,
	}
	if err := s.eventBus.Publish(event); err != nil {
		s.logger.Warn("failed to publish payment attempt",
			"student_id", state.Input.StudentID,
			"course_id", state.Input.CourseID,
			"error", err,
		)
	}
}

// publishVerdict records the gateway's verdict. Like the attempt event, a
// publish failure never blocks the payment flow.
func (s *PaymentSaga) publishVerdict(state *PaymentState) {
	if s.eventBus == nil || state.Settlement == nil {
		return
	}

	var event shared.Event
	if state.Settlement.Accepted {
		event = PaymentAcceptedEvent{
			BaseEvent:     shared.NewBaseEvent(shared.EventPaymentAccepted, state.Input.StudentID),
			StudentID:     state.Input.StudentID,
			CourseID:      state.Input.CourseID,
			Amount:        state.Input.Amount,
			TransactionID: state.Settlement.TransactionID,
		}
	} else {
		event = PaymentRejectedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventPaymentRejected, state.Input.StudentID),
			StudentID: state.Input.StudentID,
			CourseID:  state.Input.CourseID,
			Reason:    state.Settlement.Reason,
		}
	}

	if err := s.eventBus.Publish(event); err != nil {
		s.logger.Warn("failed to publish payment verdict",
			"student_id", state.Input.StudentID,
			"course_id", state.Input.CourseID,
			"error", err,
		)
	}
}

// stepSettleCharge submits the charge and interprets the verdict.
func (s *PaymentSaga) stepSettleCharge(ctx context.Context, state *PaymentState) error {
	settlement, err := s.gateway.Settle(ctx, Charge{
		StudentID: state.Input.StudentID,
		CourseID:  state.Input.CourseID,
		Amount:    state.Input.Amount,
		CardToken: state.Input.CardToken,
	})
	if err != nil {
		state.FailedStep = StepSettleCharge
		state.Error = fmt.Errorf("gateway unavailable: %w", err)
		return state.Error
	}

	state.Settlement = settlement
	s.publishVerdict(state)

	if !settlement.Accepted {
		state.FailedStep = StepSettleCharge
		state.Error = fmt.Errorf("%w: %s", ErrChargeDeclined, settlement.Reason)
		return state.Error
	}

	return nil
}

// stepConfirmEnrollment asks the enrollment service to mark the enrollment as
// paid and waits for the reply.
func (s *PaymentSaga) stepConfirmEnrollment(ctx context.Context, state *PaymentState) error {
	payload, err := json.Marshal(integration.EnrollmentPaymentConfirmed{
		StudentID: state.Input.StudentID,
		CourseID:  state.Input.CourseID,
	})
	if err != nil {
		state.FailedStep = StepConfirmEnrollment
		state.Error = fmt.Errorf("failed to marshal payment confirmed event: %w", err)
		return state.Error
	}

	replyPayload, err := s.broker.Request(ctx, integration.EventEnrollmentPaymentConfirmed, payload)
	if err != nil {
		state.FailedStep = StepConfirmEnrollment
		state.Error = fmt.Errorf("enrollment confirmation request failed: %w", err)
		return state.Error
	}

	var reply integration.Response
	if err := json.Unmarshal(replyPayload, &reply); err != nil {
		state.FailedStep = StepConfirmEnrollment
		state.Error = fmt.Errorf("failed to decode enrollment confirmation reply: %w", err)
		return state.Error
	}
	state.Reply = &reply

	if !reply.Valid {
		state.FailedStep = StepConfirmEnrollment
		state.Error = ErrConfirmationRejected
		return state.Error
	}

	return nil
}

// wrapError wraps an error with saga context.
func (s *PaymentSaga) wrapError(state *PaymentState, err error) error {
	return &PaymentError{
		Step:    state.FailedStep,
		Reply:   state.Reply,
		Cause:   err,
		Message: fmt.Sprintf("payment failed at step '%s': %v", state.FailedStep, err),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// PaymentError represents an error during the payment process.
type PaymentError struct {
	Step    PaymentStep
	Reply   *integration.Response
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *PaymentError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *PaymentError) Unwrap() error {
	return e.Cause
}

// ChargeAccepted reports whether money moved before the failure.
func (e *PaymentError) ChargeAccepted() bool {
	return e.Step == StepConfirmEnrollment
}

// Saga-specific errors.
var (
	// ErrChargeDeclined - the gateway declined the charge.
	ErrChargeDeclined = errors.New("payment: charge declined")

	// ErrConfirmationRejected - the enrollment service rejected the
	// confirmation; details are in the reply.
	ErrConfirmationRejected = errors.New("payment: enrollment confirmation rejected")
)
