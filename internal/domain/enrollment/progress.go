package enrollment

import (
	"fmt"
	"sort"
	"time"

	"github.com/enrollhub/enrollment-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRecord tracks a single lesson's start and completion for an
// enrollment. Records are unique per (enrollment, lesson) and are replaced as
// a whole on update rather than mutated field by field.
type ProgressRecord struct {
	// EnrollmentID - owning enrollment.
	EnrollmentID string

	// CourseID - catalog course the lesson belongs to.
	CourseID string

	// LessonID - catalog identifier of the lesson.
	LessonID string

	// LessonName - name snapshot taken at recording time.
	LessonName string

	// Duration - lesson duration.
	Duration time.Duration

	// StartedAt - when the lesson was first started.
	StartedAt time.Time

	// CompletedAt - when the lesson was finished, nil while in progress.
	CompletedAt *time.Time
}

// Pending reports whether the lesson has not been completed yet.
func (r ProgressRecord) Pending() bool {
	return r.CompletedAt == nil
}

// ErrInvalidLessonID - the lesson id is missing.
var ErrInvalidLessonID = fmt.Errorf("invalid lesson id: must not be empty: %w", shared.ErrInvalidID)

// ProgressLedger is the set of progress records of one enrollment, keyed by
// lesson id. Its pending and recorded counts are the sole inputs to the
// completion rule.
type ProgressLedger struct {
	records map[string]ProgressRecord
}

// NewProgressLedger creates an empty ledger.
func NewProgressLedger() *ProgressLedger {
	return &ProgressLedger{records: make(map[string]ProgressRecord)}
}

// Upsert inserts or replaces the record for the lesson.
//
// When a record already exists the replacement keeps the earliest start time
// seen and the latest non-nil completion time supplied; everything else
// (name snapshot, duration) comes from the new record.
func (l *ProgressLedger) Upsert(record ProgressRecord) error {
	if record.LessonID == "" {
		return ErrInvalidLessonID
	}

	if existing, ok := l.records[record.LessonID]; ok {
		if existing.StartedAt.Before(record.StartedAt) {
			record.StartedAt = existing.StartedAt
		}
		if record.CompletedAt == nil {
			record.CompletedAt = existing.CompletedAt
		} else if existing.CompletedAt != nil && existing.CompletedAt.After(*record.CompletedAt) {
			record.CompletedAt = existing.CompletedAt
		}
	}

	l.records[record.LessonID] = record
	return nil
}

// Get returns the record for the lesson, if present.
func (l *ProgressLedger) Get(lessonID string) (ProgressRecord, bool) {
	r, ok := l.records[lessonID]
	return r, ok
}

// CountPending returns the number of records without a completion time.
func (l *ProgressLedger) CountPending() int {
	pending := 0
	for _, r := range l.records {
		if r.Pending() {
			pending++
		}
	}
	return pending
}

// CountRecorded returns the number of distinct recorded lessons.
func (l *ProgressLedger) CountRecorded() int {
	return len(l.records)
}

// All returns the records ordered by start time, then lesson id, so
// iteration is deterministic for persistence and replies.
func (l *ProgressLedger) All() []ProgressRecord {
	out := make([]ProgressRecord, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].LessonID < out[j].LessonID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Restore rebuilds a ledger from persisted records, bypassing the merge rule.
func (l *ProgressLedger) Restore(records []ProgressRecord) {
	for _, r := range records {
		if r.LessonID == "" {
			continue
		}
		l.records[r.LessonID] = r
	}
}

// Clone creates a deep copy of the ledger.
func (l *ProgressLedger) Clone() *ProgressLedger {
	if l == nil {
		return nil
	}

	clone := NewProgressLedger()
	for id, r := range l.records {
		if r.CompletedAt != nil {
			t := *r.CompletedAt
			r.CompletedAt = &t
		}
		clone.records[id] = r
	}
	return clone
}
