package enrollment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressLedger_Upsert(t *testing.T) {
	l := NewProgressLedger()

	err := l.Upsert(ProgressRecord{LessonID: ""})
	assert.ErrorIs(t, err, ErrInvalidLessonID)

	require.NoError(t, l.Upsert(ProgressRecord{
		LessonID:   "l1",
		LessonName: "Intro",
		Duration:   30 * time.Minute,
		StartedAt:  time.Now().UTC(),
	}))
	assert.Equal(t, 1, l.CountRecorded())
	assert.Equal(t, 1, l.CountPending())
}

func TestProgressLedger_UpsertKeepsEarliestStart(t *testing.T) {
	l := NewProgressLedger()
	early := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	late := early.Add(2 * time.Hour)

	require.NoError(t, l.Upsert(ProgressRecord{LessonID: "l1", StartedAt: early}))
	require.NoError(t, l.Upsert(ProgressRecord{LessonID: "l1", LessonName: "Renamed", StartedAt: late}))

	r, ok := l.Get("l1")
	require.True(t, ok)
	assert.Equal(t, early, r.StartedAt)
	// Name snapshot follows the latest write.
	assert.Equal(t, "Renamed", r.LessonName)
}

func TestProgressLedger_UpsertCompletionRules(t *testing.T) {
	l := NewProgressLedger()
	start := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	first := start.Add(time.Hour)
	second := start.Add(2 * time.Hour)

	// A nil completion never clears an existing one.
	require.NoError(t, l.Upsert(ProgressRecord{LessonID: "l1", StartedAt: start, CompletedAt: &first}))
	require.NoError(t, l.Upsert(ProgressRecord{LessonID: "l1", StartedAt: start, CompletedAt: nil}))

	r, _ := l.Get("l1")
	require.NotNil(t, r.CompletedAt)
	assert.Equal(t, first, *r.CompletedAt)
	assert.Equal(t, 0, l.CountPending())

	// The latest completion wins.
	require.NoError(t, l.Upsert(ProgressRecord{LessonID: "l1", StartedAt: start, CompletedAt: &second}))
	r, _ = l.Get("l1")
	assert.Equal(t, second, *r.CompletedAt)

	// An older completion does not roll it back.
	require.NoError(t, l.Upsert(ProgressRecord{LessonID: "l1", StartedAt: start, CompletedAt: &first}))
	r, _ = l.Get("l1")
	assert.Equal(t, second, *r.CompletedAt)
}

func TestProgressLedger_AllIsDeterministic(t *testing.T) {
	l := NewProgressLedger()
	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, l.Upsert(ProgressRecord{LessonID: "b", StartedAt: base.Add(time.Hour)}))
	require.NoError(t, l.Upsert(ProgressRecord{LessonID: "c", StartedAt: base}))
	require.NoError(t, l.Upsert(ProgressRecord{LessonID: "a", StartedAt: base}))

	records := l.All()
	require.Len(t, records, 3)
	// Ordered by start time, ties broken by lesson id.
	assert.Equal(t, "a", records[0].LessonID)
	assert.Equal(t, "c", records[1].LessonID)
	assert.Equal(t, "b", records[2].LessonID)
}

func TestProgressLedger_Restore(t *testing.T) {
	l := NewProgressLedger()
	done := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	l.Restore([]ProgressRecord{
		{LessonID: "l1", StartedAt: done.Add(-time.Hour), CompletedAt: &done},
		{LessonID: "l2", StartedAt: done.Add(-time.Hour)},
		{LessonID: ""}, // dropped
	})

	assert.Equal(t, 2, l.CountRecorded())
	assert.Equal(t, 1, l.CountPending())
}
