// Package account contains the identity service's local account entity.
// Accounts hold credentials and a role; when the role is "student" the
// signup orchestration creates a matching Student sharing the same id.
package account

import (
	"fmt"
	"strings"
	"time"

	"github.com/enrollhub/enrollment-hub/internal/domain/shared"
)

// Role is the access role assigned to an account.
type Role string

const (
	// RoleStudent - the account belongs to a learner.
	RoleStudent Role = "student"
	// RoleInstructor - the account belongs to an instructor.
	RoleInstructor Role = "instructor"
	// RoleAdmin - administrative account.
	RoleAdmin Role = "admin"
)

// IsValid reports whether the role is known.
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return true
	default:
		return false
	}
}

// Each sentinel wraps a shared base kind so callers can branch on the
// category with errors.Is.
var (
	// ErrInvalidAccountID - the account id is missing.
	ErrInvalidAccountID = fmt.Errorf("invalid account id: must not be empty: %w", shared.ErrInvalidID)

	// ErrInvalidEmail - the email is missing.
	ErrInvalidEmail = fmt.Errorf("invalid account email: %w", shared.ErrValidation)

	// ErrInvalidPasswordHash - the password hash is missing.
	ErrInvalidPasswordHash = fmt.Errorf("invalid password hash: %w", shared.ErrValidation)

	// ErrInvalidRole - the role is unknown.
	ErrInvalidRole = fmt.Errorf("invalid account role: %w", shared.ErrValidation)

	// ErrAccountNotFound - no account with the given id exists.
	ErrAccountNotFound = fmt.Errorf("account not found: %w", shared.ErrNotFound)

	// ErrAccountAlreadyExists - an account with the same email exists.
	ErrAccountAlreadyExists = fmt.Errorf("account already exists: %w", shared.ErrAlreadyExists)
)

// Account is a local identity-service account.
type Account struct {
	// ID - unique identifier (UUID in string form), shared with the
	// Student record for student accounts.
	ID string

	// Email - unique login email.
	Email string

	// PasswordHash - bcrypt hash of the password.
	PasswordHash string

	// Role - assigned access role.
	Role Role

	// CreatedAt - record creation time.
	CreatedAt time.Time
}

// NewAccount creates an account with an already-hashed password.
func NewAccount(id, email, passwordHash string, role Role) (*Account, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidAccountID
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}

	if passwordHash == "" {
		return nil, ErrInvalidPasswordHash
	}

	if !role.IsValid() {
		return nil, ErrInvalidRole
	}

	return &Account{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// IsStudent reports whether the account carries the student role.
func (a *Account) IsStudent() bool {
	return a.Role == RoleStudent
}
