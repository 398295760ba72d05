package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a business validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

// ToValidationErrors converts validator/v10 struct errors to domain errors
func ToValidationErrors(err error) ValidationErrors {
	var errors ValidationErrors

	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, verr := range verrs {
			errors = append(errors, ValidationError{
				Field:   verr.Field(),
				Message: messageForTag(verr),
				Value:   verr.Value(),
				Rule:    verr.Tag(),
			})
		}
		return errors
	}

	errors = append(errors, ValidationError{
		Field:   "request",
		Message: err.Error(),
		Rule:    "struct",
	})
	return errors
}

func messageForTag(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", err.Param())
	case "variation_count":
		return "must be between 1 and 50"
	case "passing_score":
		return "must be between 0 and 10"
	case "difficulty_level":
		return "must be one of: easy, medium, hard"
	case "future_date":
		return "must be in the future"
	default:
		return fmt.Sprintf("failed %s validation", err.Tag())
	}
}
