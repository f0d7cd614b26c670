package enrollment

import (
	"fmt"
	"strings"
	"time"

	"github.com/enrollhub/enrollment-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATE
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidCertificateID - the certificate id is missing.
	ErrInvalidCertificateID = fmt.Errorf("invalid certificate id: must not be empty: %w", shared.ErrInvalidID)

	// ErrCertificateAlreadyIssued - the certificate file was already generated.
	ErrCertificateAlreadyIssued = fmt.Errorf("certificate already issued: %w", shared.ErrStateTransition)
)

// Certificate is an immutable snapshot issued once an enrollment completes.
// Course and instructor names are frozen at request time; later catalog edits
// never alter an issued certificate. Actual file generation is asynchronous:
// IssuedAt and StoragePath stay empty until the issuance worker fills them.
type Certificate struct {
	// ID - unique identifier (UUID in string form).
	ID string

	// EnrollmentID - the completed enrollment this certifies.
	EnrollmentID string

	// CourseName - course title frozen at request time.
	CourseName string

	// InstructorName - instructor frozen at request time.
	InstructorName string

	// Workload - course workload in hours, frozen at request time.
	Workload int

	// RequestedAt - when the certificate was requested.
	RequestedAt time.Time

	// IssuedAt - when the certificate file was generated, nil until then.
	IssuedAt *time.Time

	// StoragePath - location of the generated file, empty until issued.
	StoragePath string
}

// NewCertificateParams contains parameters for requesting a certificate.
type NewCertificateParams struct {
	ID             string
	EnrollmentID   string
	CourseName     string
	InstructorName string
	Workload       int
}

// NewCertificate creates a requested, not-yet-issued certificate.
func NewCertificate(params NewCertificateParams) (*Certificate, error) {
	if strings.TrimSpace(params.ID) == "" {
		return nil, ErrInvalidCertificateID
	}
	if strings.TrimSpace(params.EnrollmentID) == "" {
		return nil, ErrInvalidEnrollmentID
	}

	return &Certificate{
		ID:             params.ID,
		EnrollmentID:   params.EnrollmentID,
		CourseName:     strings.TrimSpace(params.CourseName),
		InstructorName: strings.TrimSpace(params.InstructorName),
		Workload:       params.Workload,
		RequestedAt:    time.Now().UTC(),
	}, nil
}

// Issued reports whether the certificate file has been generated.
func (c *Certificate) Issued() bool {
	return c.IssuedAt != nil
}

// MarkIssued records the generated file. Issuance happens exactly once.
func (c *Certificate) MarkIssued(storagePath string) error {
	if c.Issued() {
		return ErrCertificateAlreadyIssued
	}

	now := time.Now().UTC()
	c.IssuedAt = &now
	c.StoragePath = storagePath
	return nil
}
