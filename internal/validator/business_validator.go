package validator

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/examforge/variation-engine/internal/models"
)

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

// Validator is the name services use for the shared validator instance
type Validator = BusinessValidator

// New creates a new business validator
func New() *BusinessValidator {
	return NewBusinessValidator()
}

// NewBusinessValidator creates a new business validator
func NewBusinessValidator() *BusinessValidator {
	validate := validator.New()

	bv := &BusinessValidator{validate: validate}
	bv.registerBusinessRules()

	return bv
}

// Validate validates business rules for any struct
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	err := bv.validate.Struct(s)
	if err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateExamCreate validates exam creation business rules
func (bv *BusinessValidator) ValidateExamCreate(req *ExamCreateRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)
	errors = append(errors, bv.validateDistribution(req.TotalQuestions, req.EasyCount, req.MediumCount, req.HardCount)...)

	return errors
}

// ValidateExamUpdate validates exam update business rules
func (bv *BusinessValidator) ValidateExamUpdate(req *ExamUpdateRequest, existing *models.Exam) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	if existing.Status == models.ExamPublished {
		if req.TotalQuestions != nil || req.EasyCount != nil || req.MediumCount != nil || req.HardCount != nil || req.TotalVariations != nil {
			errors = append(errors, ValidationError{
				Field:   "distribution",
				Message: "cannot be changed for published exams",
				Rule:    "business_logic",
			})
		}
		if req.PassingScore != nil && *req.PassingScore != existing.PassingScore {
			errors = append(errors, ValidationError{
				Field:   "passing_score",
				Message: "cannot be changed for published exams",
				Value:   *req.PassingScore,
				Rule:    "business_logic",
			})
		}
	}

	// Distribution must stay consistent when partially updated
	total := existing.TotalQuestions
	easy := existing.EasyCount
	medium := existing.MediumCount
	hard := existing.HardCount
	if req.TotalQuestions != nil {
		total = *req.TotalQuestions
	}
	if req.EasyCount != nil {
		easy = *req.EasyCount
	}
	if req.MediumCount != nil {
		medium = *req.MediumCount
	}
	if req.HardCount != nil {
		hard = *req.HardCount
	}
	errors = append(errors, bv.validateDistribution(total, easy, medium, hard)...)

	return errors
}

// ValidateQuestionCreate validates question creation business rules
func (bv *BusinessValidator) ValidateQuestionCreate(req *QuestionCreateRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	if req.CorrectIndex >= len(req.Alternatives) {
		errors = append(errors, ValidationError{
			Field:   "correct_index",
			Message: fmt.Sprintf("must reference one of the %d alternatives", len(req.Alternatives)),
			Value:   req.CorrectIndex,
			Rule:    "business_logic",
		})
	}

	seen := make(map[string]bool, len(req.Alternatives))
	for i, alt := range req.Alternatives {
		normalized := strings.ToLower(strings.TrimSpace(alt.Text))
		if seen[normalized] {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("alternatives[%d]", i),
				Message: "duplicate alternative text",
				Value:   alt.Text,
				Rule:    "business_logic",
			})
		}
		seen[normalized] = true
	}

	return errors
}

// ValidateStatusTransition validates exam lifecycle transitions
func (bv *BusinessValidator) ValidateStatusTransition(currentStatus, newStatus models.ExamStatus, variationCount int) ValidationErrors {
	var errors ValidationErrors

	allowedTransitions := map[models.ExamStatus][]models.ExamStatus{
		models.ExamDraft:       {models.ExamPublished, models.ExamArchived},
		models.ExamPublished:   {models.ExamUnpublished, models.ExamArchived},
		models.ExamUnpublished: {models.ExamPublished, models.ExamArchived},
		models.ExamArchived:    {}, // No transitions from archived
	}

	allowed := false
	for _, allowedStatus := range allowedTransitions[currentStatus] {
		if newStatus == allowedStatus {
			allowed = true
			break
		}
	}

	if !allowed {
		errors = append(errors, ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("cannot transition from %s to %s", currentStatus, newStatus),
			Value:   newStatus,
			Rule:    "status_transition",
		})
	}

	// Publishing requires generated variations
	if newStatus == models.ExamPublished && variationCount == 0 {
		errors = append(errors, ValidationError{
			Field:   "variations",
			Message: "exam must have generated variations before publishing",
			Value:   variationCount,
			Rule:    "business_logic",
		})
	}

	return errors
}

// ValidateDeletePermission validates if an exam can be deleted
func (bv *BusinessValidator) ValidateDeletePermission(hasResults bool, status models.ExamStatus) ValidationErrors {
	var errors ValidationErrors

	if hasResults {
		errors = append(errors, ValidationError{
			Field:   "results",
			Message: "cannot delete exam with scored submissions",
			Value:   hasResults,
			Rule:    "business_logic",
		})
	}

	if status == models.ExamPublished {
		errors = append(errors, ValidationError{
			Field:   "status",
			Message: "cannot delete published exam",
			Value:   status,
			Rule:    "business_logic",
		})
	}

	return errors
}

// validateDistribution checks the difficulty counts add up to the requested total
func (bv *BusinessValidator) validateDistribution(total, easy, medium, hard int) ValidationErrors {
	var errors ValidationErrors

	if easy+medium+hard != total {
		errors = append(errors, ValidationError{
			Field:   "distribution",
			Message: fmt.Sprintf("difficulty counts sum to %d, expected %d", easy+medium+hard, total),
			Value:   easy + medium + hard,
			Rule:    "distribution_sum",
		})
	}

	return errors
}

// registerBusinessRules registers custom business rule validators
func (bv *BusinessValidator) registerBusinessRules() {
	// Variation count validation (1-50)
	bv.validate.RegisterValidation("variation_count", func(fl validator.FieldLevel) bool {
		count := fl.Field().Int()
		return count >= 1 && count <= 50
	})

	// Passing score validation (0-10 scale)
	bv.validate.RegisterValidation("passing_score", func(fl validator.FieldLevel) bool {
		score := fl.Field().Float()
		return score >= 0 && score <= 10
	})

	// Title validation (1-200 characters)
	bv.validate.RegisterValidation("exam_title", func(fl validator.FieldLevel) bool {
		title := strings.TrimSpace(fl.Field().String())
		return len(title) >= 1 && len(title) <= 200
	})

	// Description validation (max 1000 characters)
	bv.validate.RegisterValidation("exam_description", func(fl validator.FieldLevel) bool {
		desc := fl.Field().String()
		return len(desc) <= 1000
	})

	// Expiry validation (must be in future)
	bv.validate.RegisterValidation("future_date", func(fl validator.FieldLevel) bool {
		field := fl.Field()

		if field.Kind() == reflect.Ptr && field.IsNil() {
			return true // Optional field
		}

		var expiry time.Time
		if field.Kind() == reflect.Ptr {
			expiry = field.Elem().Interface().(time.Time)
		} else {
			expiry = field.Interface().(time.Time)
		}

		return expiry.After(time.Now())
	})

	// Points range validation
	bv.validate.RegisterValidation("points_range", func(fl validator.FieldLevel) bool {
		points := fl.Field().Int()
		return points >= 1 && points <= 100
	})

	// difficulty level validation
	bv.validate.RegisterValidation("difficulty_level", func(fl validator.FieldLevel) bool {
		level := fl.Field().String()
		for _, vl := range models.Difficulties {
			if models.DifficultyLevel(level) == vl {
				return true
			}
		}
		return false
	})
}
