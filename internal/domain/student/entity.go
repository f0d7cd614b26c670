// Package student contains the student aggregate of the enrollment service.
// This is the core of the business logic - there are no external dependencies here.
package student

import (
	"fmt"
	"strings"
	"time"

	"github.com/enrollhub/enrollment-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Email represents a student's email address.
type Email string

// IsValid performs a structural check on the email.
// Full format validation happens upstream, at the service surface.
func (e Email) IsValid() bool {
	s := string(e)
	at := strings.IndexByte(s, '@')
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t\n\r")
}

// Normalized returns the lowercased, trimmed form used for uniqueness checks.
func (e Email) Normalized() Email {
	return Email(strings.ToLower(strings.TrimSpace(string(e))))
}

// String returns the string form of the email.
func (e Email) String() string {
	return string(e)
}

// NationalID represents a student's national identity document number.
type NationalID string

// IsValid checks that the national id is present and within bounds.
func (n NationalID) IsValid() bool {
	s := strings.TrimSpace(string(n))
	return len(s) >= 5 && len(s) <= 30
}

// String returns the string form of the national id.
func (n NationalID) String() string {
	return string(n)
}

// Contact holds the student's contact and address fields.
type Contact struct {
	Phone      string
	Gender     string
	City       string
	State      string
	PostalCode string
	PhotoURL   string
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// Each sentinel wraps a shared base kind so callers can branch on the
// category with errors.Is.
var (
	// ErrInvalidStudentID - the student id is missing or malformed.
	ErrInvalidStudentID = fmt.Errorf("invalid student id: must not be empty: %w", shared.ErrInvalidID)

	// ErrInvalidAccountID - the linked account id is missing.
	ErrInvalidAccountID = fmt.Errorf("invalid account id: must not be empty: %w", shared.ErrInvalidID)

	// ErrInvalidName - the student name is missing or too long.
	ErrInvalidName = fmt.Errorf("invalid name: must be 1-200 chars: %w", shared.ErrValidation)

	// ErrInvalidEmail - the email is structurally malformed.
	ErrInvalidEmail = fmt.Errorf("invalid email: %w", shared.ErrValidation)

	// ErrInvalidNationalID - the national id is malformed.
	ErrInvalidNationalID = fmt.Errorf("invalid national id: must be 5-30 chars: %w", shared.ErrValidation)

	// ErrInvalidBirthDate - the birth date is missing or in the future.
	ErrInvalidBirthDate = fmt.Errorf("invalid birth date: %w", shared.ErrValidation)

	// ErrStudentNotFound - no student with the given id or email exists.
	ErrStudentNotFound = fmt.Errorf("student not found: %w", shared.ErrNotFound)

	// ErrStudentAlreadyExists - a student with the same id or email exists.
	ErrStudentAlreadyExists = fmt.Errorf("student already exists: %w", shared.ErrAlreadyExists)

	// ErrStudentInactive - the operation requires an active student.
	ErrStudentInactive = fmt.Errorf("student is not active: %w", shared.ErrInvalidState)
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student is the aggregate root representing a learner.
// It is created when the identity service registers an account with the
// "student" role; the student shares the account's identifier.
type Student struct {
	// ID - internal unique identifier (UUID in string form).
	ID string

	// AccountID - identifier of the account in the identity service.
	// Equal to ID for students created through signup.
	AccountID string

	// Name - full display name.
	Name string

	// Email - unique across students.
	Email Email

	// NationalID - national identity document number.
	NationalID NationalID

	// BirthDate - date of birth.
	BirthDate time.Time

	// Contact - phone, gender and address fields.
	Contact Contact

	// Active - whether the student may enroll and record progress.
	// Students are inactive by default until explicitly activated.
	Active bool

	// CreatedAt - record creation time.
	CreatedAt time.Time

	// UpdatedAt - last modification time.
	UpdatedAt time.Time
}

// NewStudentParams contains parameters for registering a new student.
type NewStudentParams struct {
	ID         string
	AccountID  string
	Name       string
	Email      Email
	NationalID NationalID
	BirthDate  time.Time
	Contact    Contact
}

// NewStudent registers a new, inactive student.
// Only structural invariants are enforced here; field-level validation
// (formats, lengths) is the caller's responsibility.
func NewStudent(params NewStudentParams) (*Student, error) {
	if strings.TrimSpace(params.ID) == "" {
		return nil, ErrInvalidStudentID
	}

	accountID := params.AccountID
	if strings.TrimSpace(accountID) == "" {
		accountID = params.ID
	}

	name := strings.TrimSpace(params.Name)
	if len(name) == 0 || len(name) > 200 {
		return nil, ErrInvalidName
	}

	if !params.Email.IsValid() {
		return nil, ErrInvalidEmail
	}

	if !params.NationalID.IsValid() {
		return nil, ErrInvalidNationalID
	}

	if params.BirthDate.IsZero() || params.BirthDate.After(time.Now().UTC()) {
		return nil, ErrInvalidBirthDate
	}

	now := time.Now().UTC()

	return &Student{
		ID:         params.ID,
		AccountID:  accountID,
		Name:       name,
		Email:      params.Email.Normalized(),
		NationalID: params.NationalID,
		BirthDate:  params.BirthDate,
		Contact:    params.Contact,
		Active:     false,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// Activate marks the student as active.
func (s *Student) Activate() {
	s.Active = true
	s.UpdatedAt = time.Now().UTC()
}

// Deactivate marks the student as inactive.
func (s *Student) Deactivate() {
	s.Active = false
	s.UpdatedAt = time.Now().UTC()
}

// String returns a short representation for logging.
func (s *Student) String() string {
	return fmt.Sprintf("Student{ID: %s, Email: %s, Active: %t}", s.ID, s.Email, s.Active)
}

// Clone creates a copy of the student.
func (s *Student) Clone() *Student {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}
