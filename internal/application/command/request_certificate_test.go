package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollhub/enrollment-hub/internal/domain/enrollment"
)

func TestRequestCertificate(t *testing.T) {
	factory := newFakeUowFactory()
	paidEnrollmentWithProgress(t, factory, map[string]bool{"l1": true})

	snapshots := stubSnapshots{snapshot: enrollment.CourseSnapshot{
		CourseName:      "Go Fundamentals",
		InstructorName:  "R. Pike",
		Workload:        40,
		ActiveLessonIDs: []string{"l1"},
	}}

	complete := NewCompleteCourseHandler(factory, snapshots)
	_, err := complete.Handle(context.Background(), CompleteCourseCommand{EnrollmentID: "enr-1"})
	require.NoError(t, err)

	h := NewRequestCertificateHandler(factory, snapshots, &seqIDGen{})

	result, err := h.Handle(context.Background(), RequestCertificateCommand{EnrollmentID: "enr-1"})
	require.NoError(t, err)
	assert.True(t, result.Validation.Valid())
	require.NotEmpty(t, result.CertificateID)

	stored, err := factory.enrollments.GetByID(context.Background(), "enr-1")
	require.NoError(t, err)
	require.NotNil(t, stored.Certificate)
	assert.Equal(t, "Go Fundamentals", stored.Certificate.CourseName)
	assert.Equal(t, "R. Pike", stored.Certificate.InstructorName)
	assert.False(t, stored.Certificate.Issued())

	// A repeated request returns the same certificate id.
	again, err := h.Handle(context.Background(), RequestCertificateCommand{EnrollmentID: "enr-1"})
	require.NoError(t, err)
	assert.Equal(t, result.CertificateID, again.CertificateID)
}

func TestRequestCertificate_NotCompleted(t *testing.T) {
	factory := newFakeUowFactory()
	paidEnrollmentWithProgress(t, factory, map[string]bool{"l1": false})

	h := NewRequestCertificateHandler(factory, stubSnapshots{}, &seqIDGen{})

	result, err := h.Handle(context.Background(), RequestCertificateCommand{EnrollmentID: "enr-1"})
	require.NoError(t, err)
	require.False(t, result.Validation.Valid())
	assert.Equal(t, "EnrollmentID", result.Validation.Errors()[0].Field)
	assert.Empty(t, result.CertificateID)
}

func TestRequestCertificate_UnknownEnrollment(t *testing.T) {
	h := NewRequestCertificateHandler(newFakeUowFactory(), stubSnapshots{}, &seqIDGen{})

	result, err := h.Handle(context.Background(), RequestCertificateCommand{EnrollmentID: "nope"})
	require.NoError(t, err)
	assert.True(t, result.Validation.Valid())
	assert.Empty(t, result.CertificateID)
}
