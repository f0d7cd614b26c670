// Package catalog implements the HTTP client of the course catalog service.
// The catalog owns course data; the enrollment service only ever reads
// point-in-time snapshots from it.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/enrollhub/enrollment-hub/internal/domain/enrollment"
	"github.com/enrollhub/enrollment-hub/internal/domain/shared"
	cache "github.com/enrollhub/enrollment-hub/internal/infrastructure/persistence/redis"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrCourseNotFound - the catalog has no course with the given id.
	ErrCourseNotFound = fmt.Errorf("catalog: course not found: %w", shared.ErrNotFound)

	// ErrCatalogUnavailable - the catalog service could not be reached.
	ErrCatalogUnavailable = fmt.Errorf("catalog: %w", shared.ErrServiceUnavailable)
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds catalog client configuration.
type Config struct {
	// BaseURL is the catalog service base URL.
	BaseURL string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// RetryCount is the number of transport-level retries.
	RetryCount int
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:    10 * time.Second,
		RetryCount: 2,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// courseDTO is the catalog's wire representation of a course.
type courseDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Instructor string `json:"instructor"`
	Workload   int    `json:"workload"`
	Lessons    []struct {
		ID     string `json:"id"`
		Active bool   `json:"active"`
	} `json:"lessons"`
}

// Client fetches course snapshots from the catalog service, with a Redis
// cache in front. It implements command.CourseSnapshotProvider.
type Client struct {
	http   *resty.Client
	cache  *cache.CourseSnapshotCache
	logger *slog.Logger
}

// NewClient creates the catalog client. The cache is optional; a nil cache
// sends every lookup to the catalog.
func NewClient(cfg Config, snapshots *cache.CourseSnapshotCache, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetHeader("Accept", "application/json")

	return &Client{
		http:   httpClient,
		cache:  snapshots,
		logger: logger,
	}
}

// GetCourseSnapshot returns the current snapshot of a course, served from
// cache when fresh.
func (c *Client) GetCourseSnapshot(ctx context.Context, courseID string) (enrollment.CourseSnapshot, error) {
	if c.cache != nil {
		snapshot, err := c.cache.Get(ctx, courseID)
		if err == nil {
			return snapshot, nil
		}
		if !cache.IsMiss(err) {
			// Cache trouble is not a reason to fail the lookup.
			c.logger.Warn("course snapshot cache read failed",
				"course_id", courseID,
				"error", err,
			)
		}
	}

	snapshot, err := c.fetchSnapshot(ctx, courseID)
	if err != nil {
		return enrollment.CourseSnapshot{}, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, snapshot); err != nil {
			c.logger.Warn("course snapshot cache write failed",
				"course_id", courseID,
				"error", err,
			)
		}
	}

	return snapshot, nil
}

// fetchSnapshot performs the actual catalog request.
func (c *Client) fetchSnapshot(ctx context.Context, courseID string) (enrollment.CourseSnapshot, error) {
	var course courseDTO

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&course).
		SetPathParam("courseID", courseID).
		Get("/courses/{courseID}")
	if err != nil {
		return enrollment.CourseSnapshot{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		// fall through to mapping
	case http.StatusNotFound:
		return enrollment.CourseSnapshot{}, ErrCourseNotFound
	default:
		return enrollment.CourseSnapshot{}, shared.NewDomainError(
			"catalog", "GetCourseSnapshot", shared.ErrExternalService,
			fmt.Sprintf("unexpected catalog status %d", resp.StatusCode()),
		)
	}

	snapshot := enrollment.CourseSnapshot{
		CourseID:       course.ID,
		CourseName:     course.Name,
		InstructorName: course.Instructor,
		Workload:       course.Workload,
	}
	for _, lesson := range course.Lessons {
		if lesson.Active {
			snapshot.ActiveLessonIDs = append(snapshot.ActiveLessonIDs, lesson.ID)
		}
	}

	return snapshot, nil
}
