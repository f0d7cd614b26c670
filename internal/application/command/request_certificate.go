package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/enrollhub/enrollment-hub/internal/domain/enrollment"
	"github.com/enrollhub/enrollment-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST CERTIFICATE COMMAND
// Creates the certificate snapshot for a completed enrollment. File
// generation happens later, in the issuance worker.
// ══════════════════════════════════════════════════════════════════════════════

// RequestCertificateCommand contains the data to request a certificate.
type RequestCertificateCommand struct {
	// EnrollmentID is the completed enrollment.
	EnrollmentID string `validate:"required"`
}

// RequestCertificateResult contains the outcome of the request.
type RequestCertificateResult struct {
	// CertificateID is the requested certificate, empty on failure.
	CertificateID string

	// Validation collects the expected failures, in order.
	Validation shared.ValidationResult
}

// RequestCertificateHandler handles RequestCertificateCommand.
type RequestCertificateHandler struct {
	uowFactory  UnitOfWorkFactory
	snapshots   CourseSnapshotProvider
	idGenerator IDGenerator
}

// NewRequestCertificateHandler creates a new RequestCertificateHandler.
func NewRequestCertificateHandler(uowFactory UnitOfWorkFactory, snapshots CourseSnapshotProvider, idGenerator IDGenerator) *RequestCertificateHandler {
	return &RequestCertificateHandler{uowFactory: uowFactory, snapshots: snapshots, idGenerator: idGenerator}
}

// Handle requests the certificate inside one transaction.
// Course and instructor names are frozen into the certificate at this
// instant; a repeated request returns the existing certificate id.
func (h *RequestCertificateHandler) Handle(ctx context.Context, cmd RequestCertificateCommand) (*RequestCertificateResult, error) {
	result := &RequestCertificateResult{}

	runValidation(cmd, &result.Validation)
	if !result.Validation.Valid() {
		return result, nil
	}

	uow, err := h.uowFactory.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("request_certificate: begin: %w", err)
	}
	defer uow.Rollback(ctx)

	e, err := uow.Enrollments().GetByID(ctx, cmd.EnrollmentID)
	if err != nil {
		if errors.Is(err, enrollment.ErrEnrollmentNotFound) {
			return result, nil
		}
		return nil, fmt.Errorf("request_certificate: load enrollment: %w", err)
	}

	snapshot, err := h.snapshots.GetCourseSnapshot(ctx, e.CourseID)
	if err != nil {
		return nil, fmt.Errorf("request_certificate: course snapshot: %w", err)
	}

	cert, err := e.RequestCertificate(h.idGenerator.GenerateID(), snapshot)
	if err != nil {
		if errors.Is(err, enrollment.ErrNotCompleted) {
			result.Validation.AddError("EnrollmentID", "enrollment is not completed")
			return result, nil
		}
		result.Validation.AddError("Certificate", err.Error())
		return result, nil
	}

	if err := uow.Enrollments().Update(ctx, e); err != nil {
		return nil, fmt.Errorf("request_certificate: update: %w", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("request_certificate: commit: %w", err)
	}

	result.CertificateID = cert.ID
	return result, nil
}
