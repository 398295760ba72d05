package validator

import (
	"time"

	"github.com/examforge/variation-engine/internal/models"
)

// ExamCreateRequest represents the request structure for creating exams
type ExamCreateRequest struct {
	Title                 string     `json:"title" validate:"required,exam_title"`
	Description           *string    `json:"description" validate:"omitempty,exam_description"`
	SubjectIDs            []uint     `json:"subject_ids" validate:"required,min=1,dive,required"`
	TotalQuestions        int        `json:"total_questions" validate:"required,min=1,max=100"`
	EasyCount             int        `json:"easy_count" validate:"min=0"`
	MediumCount           int        `json:"medium_count" validate:"min=0"`
	HardCount             int        `json:"hard_count" validate:"min=0"`
	TotalVariations       int        `json:"total_variations" validate:"required,variation_count"`
	PassingScore          *float64   `json:"passing_score" validate:"omitempty,passing_score"`
	RandomizeQuestions    bool       `json:"randomize_questions"`
	RandomizeAlternatives bool       `json:"randomize_alternatives"`
	ExpiresAt             *time.Time `json:"expires_at" validate:"omitempty,future_date"`
}

// ExamUpdateRequest represents the request structure for updating exams
type ExamUpdateRequest struct {
	Title                 *string    `json:"title" validate:"omitempty,exam_title"`
	Description           *string    `json:"description" validate:"omitempty,exam_description"`
	TotalQuestions        *int       `json:"total_questions" validate:"omitempty,min=1,max=100"`
	EasyCount             *int       `json:"easy_count" validate:"omitempty,min=0"`
	MediumCount           *int       `json:"medium_count" validate:"omitempty,min=0"`
	HardCount             *int       `json:"hard_count" validate:"omitempty,min=0"`
	TotalVariations       *int       `json:"total_variations" validate:"omitempty,variation_count"`
	PassingScore          *float64   `json:"passing_score" validate:"omitempty,passing_score"`
	RandomizeQuestions    *bool      `json:"randomize_questions"`
	RandomizeAlternatives *bool      `json:"randomize_alternatives"`
	ExpiresAt             *time.Time `json:"expires_at" validate:"omitempty,future_date"`
}

// QuestionCreateRequest represents the request structure for creating questions
type QuestionCreateRequest struct {
	Text         string                 `json:"text" validate:"required,min=1,max=2000"`
	Alternatives []AlternativeRequest   `json:"alternatives" validate:"required,min=2,max=6,dive"`
	CorrectIndex int                    `json:"correct_index" validate:"min=0"`
	Difficulty   models.DifficultyLevel `json:"difficulty" validate:"required,difficulty_level"`
	Points       *int                   `json:"points" validate:"omitempty,points_range"`
	SubjectID    uint                   `json:"subject_id" validate:"required"`
}

// AlternativeRequest is one answer alternative of a question
type AlternativeRequest struct {
	Text        string  `json:"text" validate:"required,min=1,max=500"`
	Explanation *string `json:"explanation" validate:"omitempty,max=1000"`
}

// ScoreSubmissionRequest represents a submission to be scored
type ScoreSubmissionRequest struct {
	VariationID uint   `json:"variation_id" validate:"required"`
	StudentID   string `json:"student_id" validate:"required,max=255"`
	Answers     []int  `json:"answers" validate:"required,min=1"`
	TimeSpent   int    `json:"time_spent" validate:"min=0"`
}
