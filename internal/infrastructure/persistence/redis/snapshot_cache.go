package redis

import (
	"context"
	"errors"
	"time"

	"github.com/enrollhub/enrollment-hub/internal/domain/enrollment"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE SNAPSHOT CACHE
// ══════════════════════════════════════════════════════════════════════════════

// CourseSnapshotCache caches catalog course snapshots. A stale snapshot only
// delays a completion check, it never corrupts the enrollment, so the TTL
// trades freshness against catalog load.
type CourseSnapshotCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewCourseSnapshotCache creates the snapshot cache. A non-positive ttl falls
// back to TTLCourseSnapshot.
func NewCourseSnapshotCache(cache *Cache, ttl time.Duration) *CourseSnapshotCache {
	if ttl <= 0 {
		ttl = TTLCourseSnapshot
	}
	return &CourseSnapshotCache{cache: cache, ttl: ttl}
}

// cachedSnapshot is the stored form of a course snapshot.
type cachedSnapshot struct {
	CourseID        string   `json:"course_id"`
	CourseName      string   `json:"course_name"`
	InstructorName  string   `json:"instructor_name"`
	Workload        int      `json:"workload"`
	ActiveLessonIDs []string `json:"active_lesson_ids"`
}

// Get returns the cached snapshot for a course.
// Returns ErrCacheMiss when the snapshot is absent or expired.
func (c *CourseSnapshotCache) Get(ctx context.Context, courseID string) (enrollment.CourseSnapshot, error) {
	var stored cachedSnapshot
	err := c.cache.Get(ctx, c.key(courseID), &stored)
	if err != nil {
		return enrollment.CourseSnapshot{}, err
	}

	return enrollment.CourseSnapshot{
		CourseID:        stored.CourseID,
		CourseName:      stored.CourseName,
		InstructorName:  stored.InstructorName,
		Workload:        stored.Workload,
		ActiveLessonIDs: stored.ActiveLessonIDs,
	}, nil
}

// Set stores the snapshot for a course.
func (c *CourseSnapshotCache) Set(ctx context.Context, snapshot enrollment.CourseSnapshot) error {
	if snapshot.CourseID == "" {
		return ErrCacheKeyEmpty
	}

	return c.cache.Set(ctx, c.key(snapshot.CourseID), cachedSnapshot{
		CourseID:        snapshot.CourseID,
		CourseName:      snapshot.CourseName,
		InstructorName:  snapshot.InstructorName,
		Workload:        snapshot.Workload,
		ActiveLessonIDs: snapshot.ActiveLessonIDs,
	}, c.ttl)
}

// Invalidate drops the cached snapshot for a course.
func (c *CourseSnapshotCache) Invalidate(ctx context.Context, courseID string) error {
	return c.cache.Delete(ctx, c.key(courseID))
}

// IsMiss reports whether the error is a cache miss.
func IsMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

func (c *CourseSnapshotCache) key(courseID string) string {
	return PrefixCourse + "snapshot:" + courseID
}
