package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// AnswerDetail is the per-question outcome of a scored submission.
type AnswerDetail struct {
	QuestionID      uint            `json:"question_id"`
	SubmittedAnswer int             `json:"submitted_answer"`
	IsCorrect       bool            `json:"is_correct"`
	Difficulty      DifficultyLevel `json:"difficulty"`
}

// Result is one scored submission against one variation. Created once,
// never mutated by the scoring path.
type Result struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	ExamID      uint   `json:"exam_id" gorm:"not null;index"`
	VariationID uint   `json:"variation_id" gorm:"not null;index"`
	StudentID   string `json:"student_id" gorm:"index;size:255"`

	// SubmissionKey deduplicates concurrent scoring of the same submission.
	SubmissionKey string `json:"submission_key" gorm:"uniqueIndex;size:64"`

	// Answers holds the submitted alternative indices in answer-key order.
	Answers datatypes.JSON `json:"answers" gorm:"type:jsonb"`
	Details datatypes.JSON `json:"details" gorm:"type:jsonb"`

	CorrectCount   int     `json:"correct_count" gorm:"not null"`
	TotalQuestions int     `json:"total_questions" gorm:"not null"`
	Score          float64 `json:"score" gorm:"not null"`      // 0-10 scale
	Percentage     float64 `json:"percentage" gorm:"not null"` // derived, 0-100
	Passed         bool    `json:"passed" gorm:"not null"`

	TimeSpent int `json:"time_spent"` // seconds

	CreatedAt time.Time `json:"created_at"`

	// Relations
	Variation Variation `json:"variation" gorm:"foreignKey:VariationID"`
}

// AnswerDetails unmarshals the JSONB per-question detail list.
func (r *Result) AnswerDetails() ([]AnswerDetail, error) {
	var details []AnswerDetail
	if len(r.Details) == 0 {
		return details, nil
	}
	if err := json.Unmarshal(r.Details, &details); err != nil {
		return nil, err
	}
	return details, nil
}

// SubmittedAnswers unmarshals the JSONB answer index sequence.
func (r *Result) SubmittedAnswers() ([]int, error) {
	var answers []int
	if len(r.Answers) == 0 {
		return answers, nil
	}
	if err := json.Unmarshal(r.Answers, &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

func (Result) TableName() string {
	return "results"
}
