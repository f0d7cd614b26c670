// Package enrollment contains the enrollment aggregate: the per-course
// lifecycle of a student's registration, its lesson progress ledger and the
// certificate issued on completion.
//
// Enrollment is modeled as its own aggregate root with a studentID index in
// the repository, rather than a child collection inside Student. This keeps
// the service boundary clean: payment confirmation and progress recording
// address an enrollment directly without loading the whole student.
package enrollment

import (
	"fmt"
	"strings"
	"time"

	"github.com/enrollhub/enrollment-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the explicit lifecycle state of an enrollment.
// It is stored as a tag, not derived from timestamp presence, so that illegal
// states are unrepresentable and every transition is checked in one place.
type Status string

const (
	// StatusPendingPayment - enrolled, payment not confirmed yet.
	StatusPendingPayment Status = "pending_payment"
	// StatusPaymentConfirmed - payment confirmed, course in progress.
	StatusPaymentConfirmed Status = "payment_confirmed"
	// StatusCompleted - all lessons finished. Terminal.
	StatusCompleted Status = "completed"
)

// IsValid reports whether the status is one of the known states.
func (s Status) IsValid() bool {
	switch s {
	case StatusPendingPayment, StatusPaymentConfirmed, StatusCompleted:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether a transition to the target state is legal.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPendingPayment:
		return target == StatusPaymentConfirmed
	case StatusPaymentConfirmed:
		return target == StatusCompleted
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// Each sentinel wraps a shared base kind so callers can branch on the
// category with errors.Is.
var (
	// ErrInvalidEnrollmentID - the enrollment id is missing.
	ErrInvalidEnrollmentID = fmt.Errorf("invalid enrollment id: must not be empty: %w", shared.ErrInvalidID)

	// ErrInvalidStudentID - the owning student id is missing.
	ErrInvalidStudentID = fmt.Errorf("invalid student id: must not be empty: %w", shared.ErrInvalidID)

	// ErrInvalidCourseID - the course id is missing.
	ErrInvalidCourseID = fmt.Errorf("invalid course id: must not be empty: %w", shared.ErrInvalidID)

	// ErrInvalidPrice - the price is negative.
	ErrInvalidPrice = fmt.Errorf("invalid price: must not be negative: %w", shared.ErrNegativeValue)

	// ErrEnrollmentNotFound - no enrollment with the given id exists.
	ErrEnrollmentNotFound = fmt.Errorf("enrollment not found: %w", shared.ErrNotFound)

	// ErrEnrollmentAlreadyExists - the student is already enrolled in the course.
	ErrEnrollmentAlreadyExists = fmt.Errorf("student is already enrolled in this course: %w", shared.ErrAlreadyExists)

	// ErrPaymentAlreadyConfirmed - ConfirmPayment was already applied.
	ErrPaymentAlreadyConfirmed = fmt.Errorf("enrollment payment is already confirmed: %w", shared.ErrStateTransition)

	// ErrPaymentNotConfirmed - the operation requires a paid enrollment.
	ErrPaymentNotConfirmed = fmt.Errorf("enrollment payment is not confirmed: %w", shared.ErrInvalidState)

	// ErrNotCompleted - the operation requires a completed enrollment.
	ErrNotCompleted = fmt.Errorf("enrollment is not completed: %w", shared.ErrInvalidState)

	// ErrCertificateAlreadyRequested - a certificate already exists.
	ErrCertificateAlreadyRequested = fmt.Errorf("certificate already requested for this enrollment: %w", shared.ErrAlreadyExists)
)

// PendingLessonsError is returned by Complete when progress records are still
// open. The message carries the exact pending count for the caller's reply.
type PendingLessonsError struct {
	Pending int
}

func (e *PendingLessonsError) Error() string {
	return fmt.Sprintf("cannot complete enrollment: %d lesson(s) still pending", e.Pending)
}

// MissingLessonsError is returned by Complete when fewer lessons were recorded
// than the course currently requires.
type MissingLessonsError struct {
	Recorded int
	Required int
}

func (e *MissingLessonsError) Error() string {
	return fmt.Sprintf("cannot complete enrollment: %d of %d required lesson(s) recorded",
		e.Recorded, e.Required)
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSE SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// CourseSnapshot is a read-only view of the course supplied by the catalog
// service at completion-check and certificate-request time. The aggregate
// never queries the catalog itself.
type CourseSnapshot struct {
	// CourseID - catalog identifier of the course.
	CourseID string

	// CourseName - course title at snapshot time.
	CourseName string

	// InstructorName - instructor at snapshot time.
	InstructorName string

	// Workload - total course workload in hours.
	Workload int

	// ActiveLessonIDs - ordered ids of the currently active lessons.
	ActiveLessonIDs []string
}

// ActiveLessonCount returns the number of active lessons in the snapshot.
func (cs CourseSnapshot) ActiveLessonCount() int {
	return len(cs.ActiveLessonIDs)
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: ENROLLMENT
// ══════════════════════════════════════════════════════════════════════════════

// Enrollment represents a student's registration in one course.
type Enrollment struct {
	// ID - unique identifier (UUID in string form).
	ID string

	// StudentID - owning student.
	StudentID string

	// CourseID - catalog identifier of the course.
	CourseID string

	// CourseName - name snapshot taken at enrollment time.
	CourseName string

	// Price - agreed price at enrollment time.
	Price float64

	// Note - optional free-form note.
	Note string

	// Status - explicit lifecycle state.
	Status Status

	// EnrolledAt - when the enrollment was created.
	EnrolledAt time.Time

	// PaymentConfirmedAt - when payment was confirmed (nil while pending).
	PaymentConfirmedAt *time.Time

	// CompletedAt - when the course was completed (nil until then).
	CompletedAt *time.Time

	// Progress - per-lesson progress ledger.
	Progress *ProgressLedger

	// Certificate - issued certificate snapshot, nil until requested.
	Certificate *Certificate

	// UpdatedAt - last modification time.
	UpdatedAt time.Time
}

// NewEnrollmentParams contains parameters for creating an enrollment.
type NewEnrollmentParams struct {
	ID         string
	StudentID  string
	CourseID   string
	CourseName string
	Price      float64
	Note       string
}

// NewEnrollment creates a pending-payment enrollment.
func NewEnrollment(params NewEnrollmentParams) (*Enrollment, error) {
	if strings.TrimSpace(params.ID) == "" {
		return nil, ErrInvalidEnrollmentID
	}
	if strings.TrimSpace(params.StudentID) == "" {
		return nil, ErrInvalidStudentID
	}
	if strings.TrimSpace(params.CourseID) == "" {
		return nil, ErrInvalidCourseID
	}
	if params.Price < 0 {
		return nil, ErrInvalidPrice
	}

	now := time.Now().UTC()

	return &Enrollment{
		ID:         params.ID,
		StudentID:  params.StudentID,
		CourseID:   params.CourseID,
		CourseName: strings.TrimSpace(params.CourseName),
		Price:      params.Price,
		Note:       strings.TrimSpace(params.Note),
		Status:     StatusPendingPayment,
		EnrolledAt: now,
		Progress:   NewProgressLedger(),
		UpdatedAt:  now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATE MACHINE
// ══════════════════════════════════════════════════════════════════════════════

// transition applies a checked state change.
func (e *Enrollment) transition(target Status) error {
	if !e.Status.CanTransitionTo(target) {
		return fmt.Errorf("enrollment %s: illegal transition %s -> %s", e.ID, e.Status, target)
	}
	e.Status = target
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// ConfirmPayment marks the enrollment as paid.
// A second confirmation is rejected with ErrPaymentAlreadyConfirmed: double
// charges must be visible to the caller, not silently absorbed.
func (e *Enrollment) ConfirmPayment() error {
	if e.Status != StatusPendingPayment {
		return ErrPaymentAlreadyConfirmed
	}

	if err := e.transition(StatusPaymentConfirmed); err != nil {
		return err
	}

	now := time.Now().UTC()
	e.PaymentConfirmedAt = &now
	return nil
}

// RecordProgress upserts the progress record for a lesson.
// Progress can only be recorded once payment is confirmed.
func (e *Enrollment) RecordProgress(lessonID, lessonName string, duration time.Duration, completedAt *time.Time) error {
	if e.Status == StatusPendingPayment {
		return ErrPaymentNotConfirmed
	}

	return e.Progress.Upsert(ProgressRecord{
		EnrollmentID: e.ID,
		CourseID:     e.CourseID,
		LessonID:     lessonID,
		LessonName:   lessonName,
		Duration:     duration,
		StartedAt:    time.Now().UTC(),
		CompletedAt:  completedAt,
	})
}

// Complete finishes the enrollment.
//
// It succeeds only when no progress record is still pending and the number of
// distinct recorded lessons covers the course's active lessons, as seen in the
// caller-supplied snapshot. Completing an already-completed enrollment is a
// no-op so the operation can be retried safely.
func (e *Enrollment) Complete(snapshot CourseSnapshot) error {
	if e.Status == StatusCompleted {
		return nil
	}
	if e.Status != StatusPaymentConfirmed {
		return ErrPaymentNotConfirmed
	}

	if pending := e.Progress.CountPending(); pending > 0 {
		return &PendingLessonsError{Pending: pending}
	}

	recorded := e.Progress.CountRecorded()
	if required := snapshot.ActiveLessonCount(); recorded < required {
		return &MissingLessonsError{Recorded: recorded, Required: required}
	}

	if err := e.transition(StatusCompleted); err != nil {
		return err
	}

	now := time.Now().UTC()
	e.CompletedAt = &now
	return nil
}

// RequestCertificate creates the certificate snapshot for a completed
// enrollment. Snapshot values are frozen at this instant so later catalog
// edits cannot retroactively alter issued certificates. A repeated request
// returns the existing certificate.
func (e *Enrollment) RequestCertificate(certificateID string, snapshot CourseSnapshot) (*Certificate, error) {
	if e.Status != StatusCompleted {
		return nil, ErrNotCompleted
	}

	if e.Certificate != nil {
		return e.Certificate, nil
	}

	cert, err := NewCertificate(NewCertificateParams{
		ID:             certificateID,
		EnrollmentID:   e.ID,
		CourseName:     snapshot.CourseName,
		InstructorName: snapshot.InstructorName,
		Workload:       snapshot.Workload,
	})
	if err != nil {
		return nil, err
	}

	e.Certificate = cert
	e.UpdatedAt = time.Now().UTC()
	return cert, nil
}

// String returns a short representation for logging.
func (e *Enrollment) String() string {
	return fmt.Sprintf("Enrollment{ID: %s, Student: %s, Course: %s, Status: %s}",
		e.ID, e.StudentID, e.CourseID, e.Status)
}

// Clone creates a deep copy of the enrollment.
func (e *Enrollment) Clone() *Enrollment {
	if e == nil {
		return nil
	}

	clone := *e
	if e.PaymentConfirmedAt != nil {
		t := *e.PaymentConfirmedAt
		clone.PaymentConfirmedAt = &t
	}
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		clone.CompletedAt = &t
	}
	clone.Progress = e.Progress.Clone()
	if e.Certificate != nil {
		c := *e.Certificate
		clone.Certificate = &c
	}
	return &clone
}
