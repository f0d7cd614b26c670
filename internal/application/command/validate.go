package command

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/enrollhub/enrollment-hub/internal/domain/shared"
)

// validate is the shared struct validator. Commands declare their field rules
// with `validate` tags; failures are collected as ordered field errors, never
// raised as panics or transport faults.
var validate = validator.New(validator.WithRequiredStructEnabled())

// runValidation validates the command struct and records one message per
// failed field, in declaration order.
func runValidation(cmd interface{}, result *shared.ValidationResult) {
	err := validate.Struct(cmd)
	if err == nil {
		return
	}

	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		result.AddError("Command", err.Error())
		return
	}

	for _, fe := range errs {
		result.AddError(fe.Field(), fieldMessage(fe))
	}
}

// fieldMessage renders a human-readable message for one failed rule.
func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
