package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/examforge/variation-engine/internal/models"
)

// Sentinel errors shared across services
var (
	ErrExamNotFound      = errors.New("exam not found")
	ErrVariationNotFound = errors.New("variation not found")
	ErrQuestionNotFound  = errors.New("question not found")
	ErrResultNotFound    = errors.New("result not found")
	ErrExamPublished     = errors.New("exam is published and cannot be regenerated")
	ErrExamExpired       = errors.New("exam has expired")
)

// ValidationError represents a single-field validation failure
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

// NewValidationError creates a validation error for a field
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// InsufficientQuestionsError reports a pool shortfall per difficulty,
// with redistribution suggestions the caller can apply directly.
type InsufficientQuestionsError struct {
	Required    map[models.DifficultyLevel]int `json:"required"`
	Available   map[models.DifficultyLevel]int `json:"available"`
	Missing     map[models.DifficultyLevel]int `json:"missing"`
	Suggestions map[models.DifficultyLevel]int `json:"suggestions,omitempty"`
}

func (e *InsufficientQuestionsError) Error() string {
	var parts []string
	for _, level := range models.Difficulties {
		if e.Missing[level] > 0 {
			parts = append(parts, fmt.Sprintf("%s: need %d, have %d", level, e.Required[level], e.Available[level]))
		}
	}
	return fmt.Sprintf("insufficient questions (%s)", strings.Join(parts, "; "))
}

// AnswerCountMismatchError rejects a submission whose answer sequence
// does not match the variation's question count.
type AnswerCountMismatchError struct {
	Expected int `json:"expected"`
	Got      int `json:"got"`
}

func (e *AnswerCountMismatchError) Error() string {
	return fmt.Sprintf("answer count mismatch: expected %d answers, got %d", e.Expected, e.Got)
}

// GenerationTimeoutError signals the generation wall-clock budget was
// exceeded. The transaction rolled back, so a retry starts clean.
type GenerationTimeoutError struct {
	ExamID  uint   `json:"exam_id"`
	Elapsed string `json:"elapsed"`
}

func (e *GenerationTimeoutError) Error() string {
	return fmt.Sprintf("variation generation for exam %d exceeded time budget after %s", e.ExamID, e.Elapsed)
}

// IsInsufficientQuestions reports whether err is a pool shortfall
func IsInsufficientQuestions(err error) bool {
	var target *InsufficientQuestionsError
	return errors.As(err, &target)
}

// IsAnswerCountMismatch reports whether err is a submission shape rejection
func IsAnswerCountMismatch(err error) bool {
	var target *AnswerCountMismatchError
	return errors.As(err, &target)
}

// IsGenerationTimeout reports whether err is a retryable generation timeout
func IsGenerationTimeout(err error) bool {
	var target *GenerationTimeoutError
	return errors.As(err, &target)
}

// IsValidationError reports whether err is a field validation failure
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
