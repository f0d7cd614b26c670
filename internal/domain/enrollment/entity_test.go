package enrollment

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollhub/enrollment-hub/internal/domain/shared"
)

func validParams() NewEnrollmentParams {
	return NewEnrollmentParams{
		ID:         "enr-1",
		StudentID:  "stu-1",
		CourseID:   "crs-1",
		CourseName: "Go Fundamentals",
		Price:      149.90,
	}
}

func paidEnrollment(t *testing.T) *Enrollment {
	t.Helper()
	e, err := NewEnrollment(validParams())
	require.NoError(t, err)
	require.NoError(t, e.ConfirmPayment())
	return e
}

func TestNewEnrollment(t *testing.T) {
	e, err := NewEnrollment(validParams())
	require.NoError(t, err)

	assert.Equal(t, StatusPendingPayment, e.Status)
	assert.Nil(t, e.PaymentConfirmedAt)
	assert.Nil(t, e.CompletedAt)
	assert.Nil(t, e.Certificate)
	assert.Equal(t, 0, e.Progress.CountRecorded())
	assert.False(t, e.EnrolledAt.IsZero())
}

func TestNewEnrollment_Validation(t *testing.T) {
	params := validParams()
	params.ID = "  "
	_, err := NewEnrollment(params)
	assert.ErrorIs(t, err, ErrInvalidEnrollmentID)

	params = validParams()
	params.StudentID = ""
	_, err = NewEnrollment(params)
	assert.ErrorIs(t, err, ErrInvalidStudentID)

	params = validParams()
	params.CourseID = ""
	_, err = NewEnrollment(params)
	assert.ErrorIs(t, err, ErrInvalidCourseID)

	params = validParams()
	params.Price = -1
	_, err = NewEnrollment(params)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	// Free courses are allowed.
	params = validParams()
	params.Price = 0
	_, err = NewEnrollment(params)
	assert.NoError(t, err)
}

func TestConfirmPayment(t *testing.T) {
	e, err := NewEnrollment(validParams())
	require.NoError(t, err)

	require.NoError(t, e.ConfirmPayment())
	assert.Equal(t, StatusPaymentConfirmed, e.Status)
	require.NotNil(t, e.PaymentConfirmedAt)

	// A second confirmation is a visible error, not a no-op: the caller
	// may have charged twice.
	err = e.ConfirmPayment()
	assert.ErrorIs(t, err, ErrPaymentAlreadyConfirmed)
}

func TestRecordProgress_RequiresConfirmedPayment(t *testing.T) {
	e, err := NewEnrollment(validParams())
	require.NoError(t, err)

	err = e.RecordProgress("l1", "Intro", 30*time.Minute, nil)
	assert.ErrorIs(t, err, ErrPaymentNotConfirmed)
}

func TestComplete(t *testing.T) {
	e := paidEnrollment(t)
	snapshot := CourseSnapshot{
		CourseID:        "crs-1",
		CourseName:      "Go Fundamentals",
		ActiveLessonIDs: []string{"l1", "l2"},
	}

	// Nothing recorded yet.
	err := e.Complete(snapshot)
	var missing *MissingLessonsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, 0, missing.Recorded)
	assert.Equal(t, 2, missing.Required)

	// One lesson recorded but still pending.
	require.NoError(t, e.RecordProgress("l1", "Intro", 30*time.Minute, nil))
	require.NoError(t, e.RecordProgress("l2", "Types", 45*time.Minute, completedNow()))

	err = e.Complete(snapshot)
	var pending *PendingLessonsError
	require.ErrorAs(t, err, &pending)
	assert.Equal(t, 1, pending.Pending)

	// Finish the pending lesson.
	require.NoError(t, e.RecordProgress("l1", "Intro", 30*time.Minute, completedNow()))
	require.NoError(t, e.Complete(snapshot))
	assert.Equal(t, StatusCompleted, e.Status)
	require.NotNil(t, e.CompletedAt)

	// Completing again is an idempotent no-op.
	before := *e.CompletedAt
	require.NoError(t, e.Complete(snapshot))
	assert.Equal(t, before, *e.CompletedAt)
}

func TestComplete_RequiresConfirmedPayment(t *testing.T) {
	e, err := NewEnrollment(validParams())
	require.NoError(t, err)

	err = e.Complete(CourseSnapshot{})
	assert.ErrorIs(t, err, ErrPaymentNotConfirmed)
}

func TestComplete_ExtraRecordedLessonsAllowed(t *testing.T) {
	// Lessons deactivated in the catalog after being recorded do not block
	// completion: recorded >= required is enough.
	e := paidEnrollment(t)
	require.NoError(t, e.RecordProgress("l1", "Intro", 30*time.Minute, completedNow()))
	require.NoError(t, e.RecordProgress("l2", "Types", 30*time.Minute, completedNow()))

	snapshot := CourseSnapshot{ActiveLessonIDs: []string{"l1"}}
	assert.NoError(t, e.Complete(snapshot))
}

func TestRequestCertificate(t *testing.T) {
	e := paidEnrollment(t)
	snapshot := CourseSnapshot{
		CourseName:      "Go Fundamentals",
		InstructorName:  "R. Pike",
		Workload:        40,
		ActiveLessonIDs: []string{"l1"},
	}

	// Not completed yet.
	_, err := e.RequestCertificate("cert-1", snapshot)
	assert.ErrorIs(t, err, ErrNotCompleted)

	require.NoError(t, e.RecordProgress("l1", "Intro", 30*time.Minute, completedNow()))
	require.NoError(t, e.Complete(snapshot))

	cert, err := e.RequestCertificate("cert-1", snapshot)
	require.NoError(t, err)
	assert.Equal(t, "cert-1", cert.ID)
	assert.Equal(t, e.ID, cert.EnrollmentID)
	assert.Equal(t, "Go Fundamentals", cert.CourseName)
	assert.Equal(t, "R. Pike", cert.InstructorName)
	assert.Equal(t, 40, cert.Workload)
	assert.False(t, cert.Issued())

	// A repeated request returns the existing certificate, even with a
	// different snapshot: issued values are frozen.
	again, err := e.RequestCertificate("cert-2", CourseSnapshot{CourseName: "Renamed"})
	require.NoError(t, err)
	assert.Same(t, cert, again)
	assert.Equal(t, "Go Fundamentals", again.CourseName)
}

func TestCertificate_MarkIssued(t *testing.T) {
	cert, err := NewCertificate(NewCertificateParams{
		ID:           "cert-1",
		EnrollmentID: "enr-1",
		CourseName:   "Go Fundamentals",
	})
	require.NoError(t, err)

	require.NoError(t, cert.MarkIssued("/certs/cert-1.txt"))
	assert.True(t, cert.Issued())
	assert.Equal(t, "/certs/cert-1.txt", cert.StoragePath)

	err = cert.MarkIssued("/certs/other.txt")
	assert.ErrorIs(t, err, ErrCertificateAlreadyIssued)
	assert.Equal(t, "/certs/cert-1.txt", cert.StoragePath)
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusPendingPayment.CanTransitionTo(StatusPaymentConfirmed))
	assert.True(t, StatusPaymentConfirmed.CanTransitionTo(StatusCompleted))

	assert.False(t, StatusPendingPayment.CanTransitionTo(StatusCompleted))
	assert.False(t, StatusCompleted.CanTransitionTo(StatusPendingPayment))
	assert.False(t, StatusCompleted.CanTransitionTo(StatusPaymentConfirmed))
	assert.False(t, Status("bogus").IsValid())
}

func TestClone_IsDeep(t *testing.T) {
	e := paidEnrollment(t)
	require.NoError(t, e.RecordProgress("l1", "Intro", 30*time.Minute, nil))

	clone := e.Clone()
	require.NoError(t, clone.RecordProgress("l2", "Types", 30*time.Minute, nil))

	assert.Equal(t, 1, e.Progress.CountRecorded())
	assert.Equal(t, 2, clone.Progress.CountRecorded())

	*clone.PaymentConfirmedAt = clone.PaymentConfirmedAt.Add(time.Hour)
	assert.NotEqual(t, *e.PaymentConfirmedAt, *clone.PaymentConfirmedAt)
}

func completedNow() *time.Time {
	now := time.Now().UTC()
	return &now
}

// Guards that the sentinel errors stay distinct: callers branch on them.
func TestSentinelErrorsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrEnrollmentNotFound,
		ErrEnrollmentAlreadyExists,
		ErrPaymentAlreadyConfirmed,
		ErrPaymentNotConfirmed,
		ErrNotCompleted,
		ErrCertificateAlreadyRequested,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				assert.False(t, errors.Is(a, b))
			}
		}
	}
}

// Callers outside the package branch on the shared base kinds.
func TestSentinelErrorsCarryBaseKinds(t *testing.T) {
	assert.ErrorIs(t, ErrEnrollmentNotFound, shared.ErrNotFound)
	assert.ErrorIs(t, ErrEnrollmentAlreadyExists, shared.ErrAlreadyExists)
	assert.ErrorIs(t, ErrCertificateAlreadyRequested, shared.ErrAlreadyExists)
	assert.ErrorIs(t, ErrPaymentAlreadyConfirmed, shared.ErrStateTransition)
	assert.ErrorIs(t, ErrCertificateAlreadyIssued, shared.ErrStateTransition)
	assert.ErrorIs(t, ErrPaymentNotConfirmed, shared.ErrInvalidState)
	assert.ErrorIs(t, ErrNotCompleted, shared.ErrInvalidState)
	assert.ErrorIs(t, ErrInvalidEnrollmentID, shared.ErrInvalidID)
	assert.ErrorIs(t, ErrInvalidLessonID, shared.ErrInvalidID)
	assert.ErrorIs(t, ErrInvalidPrice, shared.ErrNegativeValue)
}
