package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollhub/enrollment-hub/internal/domain/enrollment"
)

func paidEnrollmentWithProgress(t *testing.T, factory *fakeUowFactory, lessons map[string]bool) {
	t.Helper()
	e := seedEnrollment(t, factory.enrollments, "enr-1", "stu-1", "crs-1")
	require.NoError(t, e.ConfirmPayment())
	for lessonID, completed := range lessons {
		var doneAt *time.Time
		if completed {
			now := time.Now().UTC()
			doneAt = &now
		}
		require.NoError(t, e.RecordProgress(lessonID, "Lesson "+lessonID, 30*time.Minute, doneAt))
	}
	require.NoError(t, factory.enrollments.Update(context.Background(), e))
}

func TestCompleteCourse(t *testing.T) {
	factory := newFakeUowFactory()
	paidEnrollmentWithProgress(t, factory, map[string]bool{"l1": true, "l2": true})

	h := NewCompleteCourseHandler(factory, stubSnapshots{
		snapshot: enrollment.CourseSnapshot{ActiveLessonIDs: []string{"l1", "l2"}},
	})

	result, err := h.Handle(context.Background(), CompleteCourseCommand{EnrollmentID: "enr-1"})
	require.NoError(t, err)
	assert.True(t, result.Validation.Valid())
	assert.True(t, result.Completed)

	stored, err := factory.enrollments.GetByID(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusCompleted, stored.Status)

	// Retrying is safe.
	result, err = h.Handle(context.Background(), CompleteCourseCommand{EnrollmentID: "enr-1"})
	require.NoError(t, err)
	assert.True(t, result.Completed)
}

func TestCompleteCourse_PendingLessons(t *testing.T) {
	factory := newFakeUowFactory()
	paidEnrollmentWithProgress(t, factory, map[string]bool{"l1": true, "l2": false})

	h := NewCompleteCourseHandler(factory, stubSnapshots{
		snapshot: enrollment.CourseSnapshot{ActiveLessonIDs: []string{"l1", "l2"}},
	})

	result, err := h.Handle(context.Background(), CompleteCourseCommand{EnrollmentID: "enr-1"})
	require.NoError(t, err)
	require.False(t, result.Validation.Valid())
	assert.Equal(t, "Progress", result.Validation.Errors()[0].Field)
	assert.Contains(t, result.Validation.Errors()[0].Message, "1 lesson(s) still pending")
	assert.False(t, result.Completed)
}

func TestCompleteCourse_MissingLessons(t *testing.T) {
	factory := newFakeUowFactory()
	paidEnrollmentWithProgress(t, factory, map[string]bool{"l1": true})

	h := NewCompleteCourseHandler(factory, stubSnapshots{
		snapshot: enrollment.CourseSnapshot{ActiveLessonIDs: []string{"l1", "l2", "l3"}},
	})

	result, err := h.Handle(context.Background(), CompleteCourseCommand{EnrollmentID: "enr-1"})
	require.NoError(t, err)
	require.False(t, result.Validation.Valid())
	assert.Contains(t, result.Validation.Errors()[0].Message, "1 of 3 required lesson(s) recorded")
}

func TestCompleteCourse_SnapshotFailureIsInfrastructure(t *testing.T) {
	factory := newFakeUowFactory()
	paidEnrollmentWithProgress(t, factory, map[string]bool{"l1": true})

	h := NewCompleteCourseHandler(factory, stubSnapshots{err: errors.New("catalog down")})

	_, err := h.Handle(context.Background(), CompleteCourseCommand{EnrollmentID: "enr-1"})
	assert.Error(t, err)
}

func TestCompleteCourse_UnknownEnrollment(t *testing.T) {
	h := NewCompleteCourseHandler(newFakeUowFactory(), stubSnapshots{})

	result, err := h.Handle(context.Background(), CompleteCourseCommand{EnrollmentID: "nope"})
	require.NoError(t, err)
	assert.True(t, result.Validation.Valid())
	assert.False(t, result.Completed)
}
