// Package certissuer implements the asynchronous certificate issuance
// worker. Certificate requests are recorded synchronously by the enrollment
// service; this worker periodically picks up unissued certificates, renders
// the certificate file and records its location.
package certissuer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/enrollhub/enrollment-hub/internal/domain/enrollment"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds issuance worker configuration.
type Config struct {
	// Schedule is the cron spec for issuance runs.
	Schedule string

	// BatchSize is the maximum number of certificates issued per run.
	BatchSize int

	// RunTimeout bounds the duration of a single run.
	RunTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Schedule:   "@every 1m",
		BatchSize:  50,
		RunTimeout: 30 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RENDERER
// ══════════════════════════════════════════════════════════════════════════════

// Renderer generates the certificate artifact and returns its storage path.
type Renderer interface {
	Render(ctx context.Context, cert *enrollment.Certificate) (string, error)
}

// FileRenderer renders certificates as files under a storage directory.
type FileRenderer struct {
	dir string
}

// NewFileRenderer creates a renderer writing into dir.
func NewFileRenderer(dir string) (*FileRenderer, error) {
	if dir == "" {
		return nil, errors.New("certissuer: storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("certissuer: failed to create storage directory: %w", err)
	}
	return &FileRenderer{dir: dir}, nil
}

// Render writes the certificate document and returns its path.
func (r *FileRenderer) Render(_ context.Context, cert *enrollment.Certificate) (string, error) {
	path := filepath.Join(r.dir, cert.ID+".txt")

	content := fmt.Sprintf(
		"CERTIFICATE OF COMPLETION\n\nCourse: %s\nInstructor: %s\nWorkload: %d hours\nRequested: %s\nIssued: %s\n",
		cert.CourseName,
		cert.InstructorName,
		cert.Workload,
		cert.RequestedAt.Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
	)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("certissuer: failed to write certificate file: %w", err)
	}

	return path, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ISSUANCE WORKER
// ══════════════════════════════════════════════════════════════════════════════

// Issuer is the scheduled worker that turns requested certificates into
// issued ones. Failures are per-certificate: one bad certificate does not
// block the rest of the batch, and failed ones are retried on the next run.
type Issuer struct {
	certs    enrollment.CertificateRepository
	renderer Renderer
	logger   *slog.Logger
	config   Config

	cron    *cron.Cron
	entryID cron.EntryID
}

// NewIssuer creates the issuance worker.
func NewIssuer(certs enrollment.CertificateRepository, renderer Renderer, logger *slog.Logger, config Config) *Issuer {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Schedule == "" {
		config.Schedule = DefaultConfig().Schedule
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = DefaultConfig().RunTimeout
	}

	return &Issuer{
		certs:    certs,
		renderer: renderer,
		logger:   logger,
		config:   config,
		cron:     cron.New(),
	}
}

// Start schedules the worker and begins running it.
func (i *Issuer) Start() error {
	entryID, err := i.cron.AddFunc(i.config.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), i.config.RunTimeout)
		defer cancel()

		if err := i.RunOnce(ctx); err != nil {
			i.logger.Error("certificate issuance run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("certissuer: failed to schedule issuance: %w", err)
	}

	i.entryID = entryID
	i.cron.Start()
	i.logger.Info("certificate issuer started", "schedule", i.config.Schedule)
	return nil
}

// Stop stops the worker and waits for a running issuance to finish.
func (i *Issuer) Stop() {
	ctx := i.cron.Stop()
	<-ctx.Done()
	i.logger.Info("certificate issuer stopped")
}

// RunOnce issues one batch of pending certificates.
func (i *Issuer) RunOnce(ctx context.Context) error {
	pending, err := i.certs.ListUnissued(ctx, i.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list unissued certificates: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	issued := 0
	for _, cert := range pending {
		if err := i.issueOne(ctx, cert); err != nil {
			i.logger.Error("failed to issue certificate",
				"certificate_id", cert.ID,
				"enrollment_id", cert.EnrollmentID,
				"error", err,
			)
			continue
		}
		issued++
	}

	i.logger.Info("certificate issuance run finished",
		"pending", len(pending),
		"issued", issued,
	)
	return nil
}

// issueOne renders and records a single certificate.
func (i *Issuer) issueOne(ctx context.Context, cert *enrollment.Certificate) error {
	path, err := i.renderer.Render(ctx, cert)
	if err != nil {
		return err
	}

	if err := i.certs.MarkIssued(ctx, cert.ID, path); err != nil {
		return fmt.Errorf("failed to mark certificate issued: %w", err)
	}

	return nil
}
