package repositories

import (
	"time"

	"github.com/examforge/variation-engine/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type ExamFilters struct {
	Status    *models.ExamStatus `json:"status"`
	SubjectID *uint              `json:"subject_id"`
	CreatedBy *string            `json:"created_by"`
	DateFrom  *time.Time         `json:"date_from"`
	DateTo    *time.Time         `json:"date_to"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
	SortBy    string             `json:"sort_by"`    // "created_at", "title"
	SortOrder string             `json:"sort_order"` // "asc", "desc"
}

type QuestionFilters struct {
	Difficulty *models.DifficultyLevel `json:"difficulty"`
	SubjectID  *uint                   `json:"subject_id"`
	CreatedBy  *string                 `json:"created_by"`
	Active     *bool                   `json:"active"`
	Limit      int                     `json:"limit"`
	Offset     int                     `json:"offset"`
	SortBy     string                  `json:"sort_by"`
	SortOrder  string                  `json:"sort_order"`
}

type ResultFilters struct {
	Passed    *bool      `json:"passed"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	SortBy    string     `json:"sort_by"`
	SortOrder string     `json:"sort_order"`
}

// ===== SHARED HELPER STRUCTS =====

// QuestionOutcome carries one scored answer back to the question's
// running average. Applied in bulk after a submission is scored.
type QuestionOutcome struct {
	QuestionID uint    `json:"question_id"`
	Score      float64 `json:"score"` // 1 if correct, 0 otherwise
}

// ===== SHARED STATISTICS STRUCTS =====

type QuestionUsageStats struct {
	TotalQuestions    int                            `json:"total_questions"`
	QuestionsByDiff   map[models.DifficultyLevel]int `json:"questions_by_difficulty"`
	MostUsedQuestions []*QuestionUsageStat           `json:"most_used_questions"`
}

type QuestionUsageStat struct {
	QuestionID uint    `json:"question_id"`
	Text       string  `json:"text"`
	UsageCount int     `json:"usage_count"`
	AvgScore   float64 `json:"avg_score"`
}
