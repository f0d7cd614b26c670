package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/enrollhub/enrollment-hub/internal/application/command"
	"github.com/enrollhub/enrollment-hub/internal/application/saga"
	"github.com/enrollhub/enrollment-hub/internal/domain/account"
	"github.com/enrollhub/enrollment-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleLive always reports the process as alive.
func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleHealth checks backing services when a checker is wired.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		if err := s.deps.HealthChecker.Check(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// validationBody converts recorded failures into the uniform error body.
func validationBody(v shared.ValidationResult) map[string]interface{} {
	return map[string]interface{}{"valid": false, "errors": v.Errors()}
}

// handleEnroll creates an enrollment for a student.
func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StudentID  string  `json:"student_id"`
		CourseID   string  `json:"course_id"`
		CourseName string  `json:"course_name"`
		Price      float64 `json:"price"`
		Note       string  `json:"note"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	result, err := s.deps.EnrollStudent.Handle(r.Context(), command.EnrollStudentCommand{
		StudentID:  req.StudentID,
		CourseID:   req.CourseID,
		CourseName: req.CourseName,
		Price:      req.Price,
		Note:       req.Note,
	})
	if err != nil {
		s.logger.Error("enroll student failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !result.Validation.Valid() {
		writeJSON(w, http.StatusUnprocessableEntity, validationBody(result.Validation))
		return
	}
	if result.EnrollmentID == "" {
		writeError(w, http.StatusNotFound, "student not found")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"enrollment_id": result.EnrollmentID})
}

// handleRecordProgress records lesson progress on an enrollment.
func (s *Server) handleRecordProgress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LessonID        string     `json:"lesson_id"`
		LessonName      string     `json:"lesson_name"`
		DurationMinutes int        `json:"duration_minutes"`
		CompletedAt     *time.Time `json:"completed_at"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	result, err := s.deps.RecordProgress.Handle(r.Context(), command.RecordLessonProgressCommand{
		EnrollmentID:    r.PathValue("id"),
		LessonID:        req.LessonID,
		LessonName:      req.LessonName,
		DurationMinutes: req.DurationMinutes,
		CompletedAt:     req.CompletedAt,
	})
	if err != nil {
		s.logger.Error("record progress failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !result.Validation.Valid() {
		writeJSON(w, http.StatusUnprocessableEntity, validationBody(result.Validation))
		return
	}
	if !result.Recorded {
		writeError(w, http.StatusNotFound, "enrollment not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"recorded": true})
}

// handleCompleteCourse marks an enrollment as completed.
func (s *Server) handleCompleteCourse(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.CompleteCourse.Handle(r.Context(), command.CompleteCourseCommand{
		EnrollmentID: r.PathValue("id"),
	})
	if err != nil {
		s.logger.Error("complete course failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !result.Validation.Valid() {
		writeJSON(w, http.StatusUnprocessableEntity, validationBody(result.Validation))
		return
	}
	if !result.Completed {
		writeError(w, http.StatusNotFound, "enrollment not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"completed": true})
}

// handleRequestCertificate requests a certificate for a completed enrollment.
func (s *Server) handleRequestCertificate(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.RequestCertificate.Handle(r.Context(), command.RequestCertificateCommand{
		EnrollmentID: r.PathValue("id"),
	})
	if err != nil {
		s.logger.Error("request certificate failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !result.Validation.Valid() {
		writeJSON(w, http.StatusUnprocessableEntity, validationBody(result.Validation))
		return
	}
	if result.CertificateID == "" {
		writeError(w, http.StatusNotFound, "enrollment not found")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"certificate_id": result.CertificateID})
}

// ══════════════════════════════════════════════════════════════════════════════
// IDENTITY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleSignup creates an account and, for students, the matching student
// record on the enrollment service.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string    `json:"name"`
		Email      string    `json:"email"`
		Password   string    `json:"password"`
		Role       string    `json:"role"`
		NationalID string    `json:"national_id"`
		BirthDate  time.Time `json:"birth_date"`
		Phone      string    `json:"phone"`
		Gender     string    `json:"gender"`
		City       string    `json:"city"`
		State      string    `json:"state"`
		PostalCode string    `json:"postal_code"`
		PhotoURL   string    `json:"photo_url"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	role := account.Role(req.Role)
	if req.Role == "" {
		role = account.RoleStudent
	}

	result, err := s.deps.Signup.Execute(r.Context(), saga.SignupInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Role:       role,
		NationalID: req.NationalID,
		BirthDate:  req.BirthDate,
		Phone:      req.Phone,
		Gender:     req.Gender,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		PhotoURL:   req.PhotoURL,
	})
	if err != nil {
		s.writeSignupError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"account_id": result.Account.ID,
		"role":       string(result.Account.Role),
	})
}

// writeSignupError maps signup failures to HTTP statuses.
func (s *Server) writeSignupError(w http.ResponseWriter, err error) {
	var signupErr *saga.SignupError
	if errors.As(err, &signupErr) {
		switch {
		case errors.Is(err, saga.ErrEmailTaken):
			writeError(w, http.StatusConflict, "email already registered")
		case signupErr.Step == saga.StepValidateSignupInput:
			writeError(w, http.StatusBadRequest, signupErr.Cause.Error())
		case errors.Is(err, saga.ErrStudentRegistrationRejected) && signupErr.Reply != nil:
			writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"valid":  false,
				"errors": signupErr.Reply.Errors,
			})
		default:
			s.logger.Error("signup failed", "step", signupErr.Step, "error", err)
			writeError(w, http.StatusBadGateway, "signup could not be completed")
		}
		return
	}

	s.logger.Error("signup failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// ══════════════════════════════════════════════════════════════════════════════
// PAYMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handlePayment charges a course and confirms the enrollment.
func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StudentID string  `json:"student_id"`
		CourseID  string  `json:"course_id"`
		Amount    float64 `json:"amount"`
		CardToken string  `json:"card_token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	result, err := s.deps.Payment.Execute(r.Context(), saga.PaymentInput{
		StudentID: req.StudentID,
		CourseID:  req.CourseID,
		Amount:    req.Amount,
		CardToken: req.CardToken,
	})
	if err != nil {
		s.writePaymentError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"transaction_id": result.TransactionID,
	})
}

// writePaymentError maps payment failures to HTTP statuses.
func (s *Server) writePaymentError(w http.ResponseWriter, err error) {
	var paymentErr *saga.PaymentError
	if errors.As(err, &paymentErr) {
		switch {
		case paymentErr.Step == saga.StepValidatePaymentInput:
			writeError(w, http.StatusBadRequest, paymentErr.Cause.Error())
		case errors.Is(err, saga.ErrChargeDeclined):
			writeError(w, http.StatusPaymentRequired, paymentErr.Cause.Error())
		case paymentErr.ChargeAccepted():
			// Money moved but the enrollment was not confirmed. The
			// operator has to reconcile; the client must not retry.
			s.logger.Error("payment inconsistent", "error", err)
			writeError(w, http.StatusInternalServerError, "payment accepted but confirmation failed")
		default:
			s.logger.Error("payment failed", "step", paymentErr.Step, "error", err)
			writeError(w, http.StatusBadGateway, "payment could not be processed")
		}
		return
	}

	s.logger.Error("payment failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
