// Package saga contains the cross-service business processes that coordinate
// multiple operations and compensate on failure. The signup saga spans the
// identity and enrollment services; the payment saga spans the payment
// gateway and the enrollment service.
package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/enrollhub/enrollment-hub/internal/domain/account"
	"github.com/enrollhub/enrollment-hub/internal/infrastructure/messaging"
	"github.com/enrollhub/enrollment-hub/internal/integration"
	"github.com/enrollhub/enrollment-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// SIGNUP SAGA
// Flow: Validate → Check Existence → Create Account → Register Student (via
// the bridge, student accounts only) → Complete
//
// If the enrollment service rejects the student record, the local account is
// deleted again so a later signup attempt with the same email can succeed.
// ══════════════════════════════════════════════════════════════════════════════

// SignupInput contains all data required to sign up a new user.
type SignupInput struct {
	// Name - full display name (required).
	Name string

	// Email - unique login email (required).
	Email string

	// Password - plain-text password, hashed before storage (required).
	Password string

	// Role - requested account role (required).
	Role account.Role

	// NationalID - government-issued identifier (required for students).
	NationalID string

	// BirthDate - date of birth (required for students).
	BirthDate time.Time

	// Contact details forwarded to the student record (all optional).
	Phone      string
	Gender     string
	City       string
	State      string
	PostalCode string
	PhotoURL   string
}

// Validate checks if the input can start a signup.
func (i SignupInput) Validate() error {
	if i.Name == "" {
		return errors.New("signup: name is required")
	}
	if i.Email == "" {
		return errors.New("signup: email is required")
	}
	if i.Password == "" {
		return errors.New("signup: password is required")
	}
	if !i.Role.IsValid() {
		return errors.New("signup: role is invalid")
	}
	if i.Role == account.RoleStudent {
		if i.NationalID == "" {
			return errors.New("signup: national id is required for students")
		}
		if i.BirthDate.IsZero() {
			return errors.New("signup: birth date is required for students")
		}
	}
	return nil
}

// SignupResult contains the result of a successful signup.
type SignupResult struct {
	// Account - the newly created account.
	Account *account.Account

	// StudentReply - the enrollment service's reply, nil for non-student
	// roles.
	StudentReply *integration.Response

	// SignedUpAt - timestamp of successful signup.
	SignedUpAt time.Time
}

// SignupStep represents a step in the signup process.
type SignupStep string

const (
	StepValidateSignupInput SignupStep = "validate_input"
	StepCheckAccountExists  SignupStep = "check_existence"
	StepCreateAccount       SignupStep = "create_account"
	StepRegisterStudent     SignupStep = "register_student"
	StepSignupComplete      SignupStep = "complete"
)

// SignupState tracks the current state of the signup saga.
type SignupState struct {
	CurrentStep SignupStep
	Input       SignupInput
	Account     *account.Account
	Reply       *integration.Response
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       error
	FailedStep  SignupStep
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	// GenerateID generates a new unique ID.
	GenerateID() string
}

// ══════════════════════════════════════════════════════════════════════════════
// SIGNUP SAGA IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SignupSaga orchestrates account creation together with the downstream
// student registration. The account is the local transaction; the student
// record is the remote one, reached over the request/reply bridge.
type SignupSaga struct {
	accountRepo account.Repository
	broker      messaging.Broker
	idGenerator IDGenerator
	logger      *slog.Logger

	compensationAttempts int
	compensationDelay    time.Duration
}

// SignupSagaConfig contains configuration for the signup saga.
type SignupSagaConfig struct {
	// CompensationAttempts - how many times the compensating account
	// delete is tried before giving up.
	CompensationAttempts int

	// CompensationDelay - fixed delay between compensation attempts.
	CompensationDelay time.Duration
}

// DefaultSignupConfig returns default configuration.
func DefaultSignupConfig() SignupSagaConfig {
	return SignupSagaConfig{
		CompensationAttempts: 3,
		CompensationDelay:    500 * time.Millisecond,
	}
}

// NewSignupSaga creates a new signup saga with all dependencies.
func NewSignupSaga(
	accountRepo account.Repository,
	broker messaging.Broker,
	idGenerator IDGenerator,
	logger *slog.Logger,
	config SignupSagaConfig,
) *SignupSaga {
	if logger == nil {
		logger = slog.Default()
	}
	if config.CompensationAttempts <= 0 {
		config.CompensationAttempts = DefaultSignupConfig().CompensationAttempts
	}
	if config.CompensationDelay <= 0 {
		config.CompensationDelay = DefaultSignupConfig().CompensationDelay
	}
	return &SignupSaga{
		accountRepo:          accountRepo,
		broker:               broker,
		idGenerator:          idGenerator,
		logger:               logger,
		compensationAttempts: config.CompensationAttempts,
		compensationDelay:    config.CompensationDelay,
	}
}

// Execute runs the complete signup process.
func (s *SignupSaga) Execute(ctx context.Context, input SignupInput) (*SignupResult, error) {
	state := &SignupState{
		CurrentStep: StepValidateSignupInput,
		Input:       input,
		StartedAt:   time.Now().UTC(),
	}

	// Step 1: Validate input
	if err := s.stepValidateInput(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 2: Check if the email is already taken
	state.CurrentStep = StepCheckAccountExists
	if err := s.stepCheckExistence(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 3: Create the local account
	state.CurrentStep = StepCreateAccount
	if err := s.stepCreateAccount(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 4: Register the student record on the enrollment service.
	// Only student accounts have a matching student.
	if state.Account.IsStudent() {
		state.CurrentStep = StepRegisterStudent
		if err := s.stepRegisterStudent(ctx, state); err != nil {
			s.compensateAccountCreation(ctx, state)
			return nil, s.wrapError(state, err)
		}
	}

	// Complete
	state.CurrentStep = StepSignupComplete
	now := time.Now().UTC()
	state.CompletedAt = &now

	return &SignupResult{
		Account:      state.Account,
		StudentReply: state.Reply,
		SignedUpAt:   now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA STEPS
// ══════════════════════════════════════════════════════════════════════════════

// stepValidateInput validates all input parameters.
func (s *SignupSaga) stepValidateInput(ctx context.Context, state *SignupState) error {
	if err := state.Input.Validate(); err != nil {
		state.FailedStep = StepValidateSignupInput
		state.Error = err
		return err
	}
	return nil
}

// stepCheckExistence verifies the email is free. The storage unique
// constraint still backs this up against concurrent signups.
func (s *SignupSaga) stepCheckExistence(ctx context.Context, state *SignupState) error {
	_, err := s.accountRepo.GetByEmail(ctx, state.Input.Email)
	if err == nil {
		state.FailedStep = StepCheckAccountExists
		state.Error = ErrEmailTaken
		return state.Error
	}
	if !errors.Is(err, account.ErrAccountNotFound) {
		state.FailedStep = StepCheckAccountExists
		state.Error = fmt.Errorf("failed to check email existence: %w", err)
		return state.Error
	}
	return nil
}

// stepCreateAccount hashes the password and persists the account.
func (s *SignupSaga) stepCreateAccount(ctx context.Context, state *SignupState) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(state.Input.Password), bcrypt.DefaultCost)
	if err != nil {
		state.FailedStep = StepCreateAccount
		state.Error = fmt.Errorf("failed to hash password: %w", err)
		return state.Error
	}

	acc, err := account.NewAccount(
		s.idGenerator.GenerateID(),
		state.Input.Email,
		string(hash),
		state.Input.Role,
	)
	if err != nil {
		state.FailedStep = StepCreateAccount
		state.Error = fmt.Errorf("failed to create account entity: %w", err)
		return state.Error
	}

	if err := s.accountRepo.Create(ctx, acc); err != nil {
		state.FailedStep = StepCreateAccount
		if errors.Is(err, account.ErrAccountAlreadyExists) {
			state.Error = ErrEmailTaken
		} else {
			state.Error = fmt.Errorf("failed to persist account: %w", err)
		}
		return state.Error
	}

	state.Account = acc
	return nil
}

// stepRegisterStudent asks the enrollment service to create the matching
// student record and waits for the reply. The student shares the account id.
func (s *SignupSaga) stepRegisterStudent(ctx context.Context, state *SignupState) error {
	event := integration.StudentRegistered{
		ID:         state.Account.ID,
		Name:       state.Input.Name,
		Email:      state.Account.Email,
		NationalID: state.Input.NationalID,
		BirthDate:  state.Input.BirthDate,
		Phone:      state.Input.Phone,
		Gender:     state.Input.Gender,
		City:       state.Input.City,
		State:      state.Input.State,
		PostalCode: state.Input.PostalCode,
		PhotoURL:   state.Input.PhotoURL,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		state.FailedStep = StepRegisterStudent
		state.Error = fmt.Errorf("failed to marshal student registered event: %w", err)
		return state.Error
	}

	replyPayload, err := s.broker.Request(ctx, integration.EventStudentRegistered, payload)
	if err != nil {
		state.FailedStep = StepRegisterStudent
		state.Error = fmt.Errorf("student registration request failed: %w", err)
		return state.Error
	}

	var reply integration.Response
	if err := json.Unmarshal(replyPayload, &reply); err != nil {
		state.FailedStep = StepRegisterStudent
		state.Error = fmt.Errorf("failed to decode student registration reply: %w", err)
		return state.Error
	}
	state.Reply = &reply

	if !reply.Valid {
		state.FailedStep = StepRegisterStudent
		state.Error = ErrStudentRegistrationRejected
		return state.Error
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPENSATION
// ══════════════════════════════════════════════════════════════════════════════

// compensateAccountCreation deletes the account created earlier in this run.
// The delete is retried a few times; if it still fails the orphaned account
// is logged and left for manual cleanup.
func (s *SignupSaga) compensateAccountCreation(ctx context.Context, state *SignupState) {
	if state.Account == nil {
		return
	}

	accountID := state.Account.ID
	err := retry.Do(ctx, func(ctx context.Context) error {
		err := s.accountRepo.Delete(ctx, accountID)
		if errors.Is(err, account.ErrAccountNotFound) {
			return nil
		}
		return err
	},
		retry.WithMaxAttempts(s.compensationAttempts),
		retry.WithFixedDelay(s.compensationDelay),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			s.logger.Warn("signup compensation retrying",
				"account_id", accountID,
				"attempt", attempt,
				"delay", delay,
				"error", err,
			)
		}),
	)
	if err != nil {
		s.logger.Error("signup compensation failed, account orphaned",
			"account_id", accountID,
			"email", state.Account.Email,
			"error", err,
		)
		return
	}

	s.logger.Info("signup compensated, account deleted",
		"account_id", accountID,
	)
}

// wrapError wraps an error with saga context.
func (s *SignupSaga) wrapError(state *SignupState, err error) error {
	return &SignupError{
		Step:    state.FailedStep,
		Reply:   state.Reply,
		Cause:   err,
		Message: fmt.Sprintf("signup failed at step '%s': %v", state.FailedStep, err),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// SignupError represents an error during the signup process.
type SignupError struct {
	Step    SignupStep
	Reply   *integration.Response
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *SignupError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *SignupError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns true if the caller may retry the whole signup.
func (e *SignupError) IsRetryable() bool {
	// Validation and taken-email failures will fail again identically.
	if e.Step == StepValidateSignupInput || e.Step == StepCheckAccountExists {
		return false
	}
	// A rejected student record means the input is bad, not the transport.
	if errors.Is(e.Cause, ErrStudentRegistrationRejected) {
		return false
	}
	return true
}

// Saga-specific errors.
var (
	// ErrEmailTaken - an account with this email already exists.
	ErrEmailTaken = errors.New("signup: email already registered")

	// ErrStudentRegistrationRejected - the enrollment service rejected the
	// student record; details are in the reply.
	ErrStudentRegistrationRejected = errors.New("signup: student registration rejected")
)
