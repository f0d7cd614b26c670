package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollhub/enrollment-hub/internal/domain/shared"
)

func TestNewAccount(t *testing.T) {
	acc, err := NewAccount("acc-1", "  Ada@Example.COM ", "$2a$10$hash", RoleStudent)
	require.NoError(t, err)

	assert.Equal(t, "acc-1", acc.ID)
	assert.Equal(t, "ada@example.com", acc.Email)
	assert.True(t, acc.IsStudent())
	assert.False(t, acc.CreatedAt.IsZero())
}

func TestNewAccount_Validation(t *testing.T) {
	_, err := NewAccount("", "a@b.com", "hash", RoleStudent)
	assert.ErrorIs(t, err, ErrInvalidAccountID)

	_, err = NewAccount("acc-1", "not-an-email", "hash", RoleStudent)
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = NewAccount("acc-1", "a@b.com", "", RoleStudent)
	assert.ErrorIs(t, err, ErrInvalidPasswordHash)

	_, err = NewAccount("acc-1", "a@b.com", "hash", Role("superuser"))
	assert.ErrorIs(t, err, ErrInvalidRole)
}

// Callers outside the package branch on the shared base kinds.
func TestSentinelErrorsCarryBaseKinds(t *testing.T) {
	assert.ErrorIs(t, ErrAccountNotFound, shared.ErrNotFound)
	assert.ErrorIs(t, ErrAccountAlreadyExists, shared.ErrAlreadyExists)
	assert.ErrorIs(t, ErrInvalidAccountID, shared.ErrInvalidID)
	assert.ErrorIs(t, ErrInvalidEmail, shared.ErrValidation)
	assert.ErrorIs(t, ErrInvalidRole, shared.ErrValidation)
}

func TestRole(t *testing.T) {
	assert.True(t, RoleStudent.IsValid())
	assert.True(t, RoleInstructor.IsValid())
	assert.True(t, RoleAdmin.IsValid())
	assert.False(t, Role("").IsValid())

	acc, err := NewAccount("acc-1", "a@b.com", "hash", RoleInstructor)
	require.NoError(t, err)
	assert.False(t, acc.IsStudent())
}
