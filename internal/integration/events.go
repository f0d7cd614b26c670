// Package integration defines the messages exchanged between the identity,
// enrollment and payment services over the request/reply bridge, and the
// common reply envelope. These shapes are the wire contract: changes must be
// backward compatible.
package integration

import "time"

// EventType identifies an integration event on the bridge. Exactly one
// responder is bound per event type.
type EventType string

const (
	// EventStudentRegistered - identity service asks the enrollment service
	// to create the matching student record.
	EventStudentRegistered EventType = "student.registered"

	// EventEnrollmentPaymentConfirmed - payment service asks the enrollment
	// service to mark the matching enrollment as paid.
	EventEnrollmentPaymentConfirmed EventType = "enrollment.payment_confirmed"
)

// StudentRegistered is sent after an account with the student role is
// created. The student record shares the account's id.
type StudentRegistered struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	NationalID string    `json:"national_id"`
	BirthDate  time.Time `json:"birth_date"`
	Phone      string    `json:"phone"`
	Gender     string    `json:"gender"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	PostalCode string    `json:"postal_code"`
	PhotoURL   string    `json:"photo_url"`
}

// EnrollmentPaymentConfirmed is sent after the payment gateway accepted the
// charge for a course.
type EnrollmentPaymentConfirmed struct {
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id"`
}

// FieldError is one human-readable validation failure in a reply.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ExceptionField is the synthetic field key used when a responder converts an
// unexpected fault into a validation failure so the round trip still
// completes.
const ExceptionField = "Exception"

// Response is the reply envelope of every bridge conversation. Errors keep
// the order in which they were recorded.
type Response struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
}

// OK returns a success reply.
func OK() Response {
	return Response{Valid: true}
}

// Failed returns a failure reply carrying the given errors.
func Failed(errs []FieldError) Response {
	return Response{Valid: false, Errors: errs}
}

// Fail returns a failure reply with a single error.
func Fail(field, message string) Response {
	return Failed([]FieldError{{Field: field, Message: message}})
}

// Exception returns the synthetic failure reply for an unexpected fault.
func Exception(err error) Response {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Fail(ExceptionField, msg)
}

// HasError reports whether the reply carries a failure for the field.
func (r Response) HasError(field string) bool {
	for _, e := range r.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}
