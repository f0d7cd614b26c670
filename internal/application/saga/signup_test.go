package saga

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/enrollhub/enrollment-hub/internal/domain/account"
	"github.com/enrollhub/enrollment-hub/internal/infrastructure/messaging"
	"github.com/enrollhub/enrollment-hub/internal/integration"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEST DOUBLES
// ══════════════════════════════════════════════════════════════════════════════

type fakeAccountRepo struct {
	byID       map[string]*account.Account
	createErr  error
	deleteErr  error
	deleteLeft int // fail Delete this many times before succeeding
	deletes    int
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{byID: make(map[string]*account.Account)}
}

func (r *fakeAccountRepo) Create(_ context.Context, acc *account.Account) error {
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.byID {
		if existing.Email == acc.Email {
			return account.ErrAccountAlreadyExists
		}
	}
	r.byID[acc.ID] = acc
	return nil
}

func (r *fakeAccountRepo) GetByID(_ context.Context, id string) (*account.Account, error) {
	acc, ok := r.byID[id]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	return acc, nil
}

func (r *fakeAccountRepo) GetByEmail(_ context.Context, email string) (*account.Account, error) {
	for _, acc := range r.byID {
		if acc.Email == email {
			return acc, nil
		}
	}
	return nil, account.ErrAccountNotFound
}

func (r *fakeAccountRepo) Delete(_ context.Context, id string) error {
	r.deletes++
	if r.deleteLeft > 0 {
		r.deleteLeft--
		return errors.New("storage temporarily unavailable")
	}
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.byID[id]; !ok {
		return account.ErrAccountNotFound
	}
	delete(r.byID, id)
	return nil
}

// scriptedBroker replies with a fixed response or error.
type scriptedBroker struct {
	reply    integration.Response
	rawReply []byte
	err      error
	requests int
	lastType integration.EventType
}

func (b *scriptedBroker) Request(_ context.Context, eventType integration.EventType, _ []byte) ([]byte, error) {
	b.requests++
	b.lastType = eventType
	if b.err != nil {
		return nil, b.err
	}
	if b.rawReply != nil {
		return b.rawReply, nil
	}
	return json.Marshal(b.reply)
}

func (b *scriptedBroker) Respond(integration.EventType, messaging.HandlerFunc) error {
	return nil
}

func (b *scriptedBroker) ConnectNotifications() <-chan struct{} { return nil }
func (b *scriptedBroker) Close() error                          { return nil }

type fixedIDGen struct{ id string }

func (g fixedIDGen) GenerateID() string { return g.id }

func fastConfig() SignupSagaConfig {
	return SignupSagaConfig{CompensationAttempts: 3, CompensationDelay: time.Millisecond}
}

func studentInput() SignupInput {
	return SignupInput{
		Name:       "Ada Lovelace",
		Email:      "ada@example.com",
		Password:   "s3cret",
		Role:       account.RoleStudent,
		NationalID: "12345678",
		BirthDate:  time.Date(1995, 12, 10, 0, 0, 0, 0, time.UTC),
		City:       "London",
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestSignupSaga_StudentHappyPath(t *testing.T) {
	repo := newFakeAccountRepo()
	broker := &scriptedBroker{reply: integration.OK()}
	saga := NewSignupSaga(repo, broker, fixedIDGen{"acc-1"}, nil, fastConfig())

	result, err := saga.Execute(context.Background(), studentInput())
	require.NoError(t, err)

	assert.Equal(t, "acc-1", result.Account.ID)
	assert.Equal(t, "ada@example.com", result.Account.Email)
	require.NotNil(t, result.StudentReply)
	assert.True(t, result.StudentReply.Valid)

	// The password is stored hashed, never in the clear.
	assert.NoError(t, bcrypt.CompareHashAndPassword(
		[]byte(result.Account.PasswordHash), []byte("s3cret")))

	assert.Equal(t, integration.EventStudentRegistered, broker.lastType)
	_, err = repo.GetByID(context.Background(), "acc-1")
	assert.NoError(t, err)
}

func TestSignupSaga_NonStudentSkipsBridge(t *testing.T) {
	repo := newFakeAccountRepo()
	broker := &scriptedBroker{}
	saga := NewSignupSaga(repo, broker, fixedIDGen{"acc-1"}, nil, fastConfig())

	input := studentInput()
	input.Role = account.RoleInstructor
	input.NationalID = ""
	input.BirthDate = time.Time{}

	result, err := saga.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Nil(t, result.StudentReply)
	assert.Equal(t, 0, broker.requests)
}

func TestSignupSaga_ValidationFailure(t *testing.T) {
	saga := NewSignupSaga(newFakeAccountRepo(), &scriptedBroker{}, fixedIDGen{"acc-1"}, nil, fastConfig())

	input := studentInput()
	input.NationalID = ""

	_, err := saga.Execute(context.Background(), input)
	var signupErr *SignupError
	require.ErrorAs(t, err, &signupErr)
	assert.Equal(t, StepValidateSignupInput, signupErr.Step)
	assert.False(t, signupErr.IsRetryable())
}

func TestSignupSaga_EmailTaken(t *testing.T) {
	repo := newFakeAccountRepo()
	existing, err := account.NewAccount("acc-0", "ada@example.com", "hash", account.RoleStudent)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), existing))

	saga := NewSignupSaga(repo, &scriptedBroker{}, fixedIDGen{"acc-1"}, nil, fastConfig())

	_, err = saga.Execute(context.Background(), studentInput())
	assert.ErrorIs(t, err, ErrEmailTaken)

	var signupErr *SignupError
	require.ErrorAs(t, err, &signupErr)
	assert.Equal(t, StepCheckAccountExists, signupErr.Step)
	assert.False(t, signupErr.IsRetryable())
}

func TestSignupSaga_RejectedRegistrationCompensates(t *testing.T) {
	repo := newFakeAccountRepo()
	broker := &scriptedBroker{reply: integration.Fail("Email", "a student with this id or email is already registered")}
	saga := NewSignupSaga(repo, broker, fixedIDGen{"acc-1"}, nil, fastConfig())

	_, err := saga.Execute(context.Background(), studentInput())
	assert.ErrorIs(t, err, ErrStudentRegistrationRejected)

	var signupErr *SignupError
	require.ErrorAs(t, err, &signupErr)
	assert.Equal(t, StepRegisterStudent, signupErr.Step)
	assert.False(t, signupErr.IsRetryable())
	require.NotNil(t, signupErr.Reply)
	require.Len(t, signupErr.Reply.Errors, 1)
	assert.Equal(t, "Email", signupErr.Reply.Errors[0].Field)

	// The account was rolled back; the email is free again.
	_, err = repo.GetByEmail(context.Background(), "ada@example.com")
	assert.ErrorIs(t, err, account.ErrAccountNotFound)
}

func TestSignupSaga_TransportFailureCompensatesAndIsRetryable(t *testing.T) {
	repo := newFakeAccountRepo()
	broker := &scriptedBroker{err: errors.New("request timed out")}
	saga := NewSignupSaga(repo, broker, fixedIDGen{"acc-1"}, nil, fastConfig())

	_, err := saga.Execute(context.Background(), studentInput())
	var signupErr *SignupError
	require.ErrorAs(t, err, &signupErr)
	assert.Equal(t, StepRegisterStudent, signupErr.Step)
	assert.True(t, signupErr.IsRetryable())

	assert.Empty(t, repo.byID)
}

func TestSignupSaga_CompensationRetriesTransientFailures(t *testing.T) {
	repo := newFakeAccountRepo()
	repo.deleteLeft = 2 // first two deletes fail, third succeeds
	broker := &scriptedBroker{reply: integration.Fail("Email", "taken")}
	saga := NewSignupSaga(repo, broker, fixedIDGen{"acc-1"}, nil, fastConfig())

	_, err := saga.Execute(context.Background(), studentInput())
	assert.ErrorIs(t, err, ErrStudentRegistrationRejected)

	assert.Equal(t, 3, repo.deletes)
	assert.Empty(t, repo.byID)
}

func TestSignupSaga_CompensationExhaustionLeavesOrphan(t *testing.T) {
	repo := newFakeAccountRepo()
	repo.deleteLeft = 100 // never succeeds within the bounded retries
	broker := &scriptedBroker{reply: integration.Fail("Email", "taken")}
	saga := NewSignupSaga(repo, broker, fixedIDGen{"acc-1"}, nil, fastConfig())

	_, err := saga.Execute(context.Background(), studentInput())
	// The original failure is still what the caller sees.
	assert.ErrorIs(t, err, ErrStudentRegistrationRejected)

	assert.Equal(t, 3, repo.deletes)
	// The orphaned account remains for manual cleanup.
	assert.Len(t, repo.byID, 1)
}

func TestSignupInput_Validate(t *testing.T) {
	assert.NoError(t, studentInput().Validate())

	input := studentInput()
	input.Email = ""
	assert.Error(t, input.Validate())

	input = studentInput()
	input.Role = account.Role("superuser")
	assert.Error(t, input.Validate())

	// Non-students do not need the student-only fields.
	input = studentInput()
	input.Role = account.RoleAdmin
	input.NationalID = ""
	input.BirthDate = time.Time{}
	assert.NoError(t, input.Validate())
}
