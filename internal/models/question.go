package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
)

// Difficulties lists all levels in canonical order (easy, medium, hard).
var Difficulties = []DifficultyLevel{DifficultyEasy, DifficultyMedium, DifficultyHard}

// DefaultPoints returns the fallback point value for a question of this
// difficulty when the question itself carries none.
func (d DifficultyLevel) DefaultPoints() int {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyMedium:
		return 2
	case DifficultyHard:
		return 3
	}
	return 1
}

func (d DifficultyLevel) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// Alternative is one answer option of a multiple-choice question.
type Alternative struct {
	Text        string  `json:"text" validate:"required"`
	Explanation *string `json:"explanation,omitempty"`
}

type Question struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Text string `json:"text" gorm:"type:text;not null" validate:"required"`

	// Alternatives stored as JSONB ([]Alternative); CorrectIndex points into it.
	Alternatives datatypes.JSON `json:"alternatives" gorm:"type:jsonb;not null"`
	CorrectIndex int            `json:"correct_index" gorm:"not null"`

	Difficulty DifficultyLevel `json:"difficulty" gorm:"default:medium;index"`
	Points     int             `json:"points" gorm:"default:0"` // 0 means "use difficulty default"

	SubjectID uint `json:"subject_id" gorm:"not null;index"`

	// TimesUsed counts how many persisted variations currently include this
	// question; incremented in batch by the generation transaction and used
	// only as a soft selection-balancing hint.
	TimesUsed int  `json:"times_used" gorm:"default:0;index"`
	Active    bool `json:"active" gorm:"default:true;index"`

	CreatedBy string    `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Running per-question performance statistic, updated after scoring.
	AvgScore float64 `json:"avg_score" gorm:"default:0"`
	Answered int     `json:"answered" gorm:"default:0"`

	// Relations
	Subject Subject `json:"subject" gorm:"foreignKey:SubjectID"`
}

// AlternativeList unmarshals the JSONB alternatives column.
func (q *Question) AlternativeList() ([]Alternative, error) {
	var alts []Alternative
	if len(q.Alternatives) == 0 {
		return alts, nil
	}
	if err := json.Unmarshal(q.Alternatives, &alts); err != nil {
		return nil, err
	}
	return alts, nil
}

// ResolvedPoints returns the question's own point value, falling back to the
// difficulty-based default when unset.
func (q *Question) ResolvedPoints() int {
	if q.Points > 0 {
		return q.Points
	}
	return q.Difficulty.DefaultPoints()
}

type Subject struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null;size:200" validate:"required,max=200"`
	CreatedBy string    `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

func (Subject) TableName() string {
	return "subjects"
}
