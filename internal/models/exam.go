package models

import (
	"time"

	"gorm.io/gorm"
)

type ExamStatus string

const (
	ExamDraft       ExamStatus = "draft"
	ExamPublished   ExamStatus = "published"
	ExamUnpublished ExamStatus = "unpublished"
	ExamArchived    ExamStatus = "archived"
)

// Distribution is the target question count per difficulty for an exam.
type Distribution struct {
	Easy   int `json:"easy" validate:"min=0"`
	Medium int `json:"medium" validate:"min=0"`
	Hard   int `json:"hard" validate:"min=0"`
}

// Total returns the sum across all difficulties.
func (d Distribution) Total() int {
	return d.Easy + d.Medium + d.Hard
}

// Count returns the target count for one difficulty.
func (d Distribution) Count(level DifficultyLevel) int {
	switch level {
	case DifficultyEasy:
		return d.Easy
	case DifficultyMedium:
		return d.Medium
	case DifficultyHard:
		return d.Hard
	}
	return 0
}

// WithCount returns a copy with one difficulty's count replaced.
func (d Distribution) WithCount(level DifficultyLevel, count int) Distribution {
	switch level {
	case DifficultyEasy:
		d.Easy = count
	case DifficultyMedium:
		d.Medium = count
	case DifficultyHard:
		d.Hard = count
	}
	return d
}

type Exam struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Title       string     `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description *string    `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	Status      ExamStatus `json:"status" gorm:"default:draft;index" validate:"omitempty,oneof=draft published unpublished archived"`

	TotalQuestions int `json:"total_questions" gorm:"not null" validate:"required,min=1"`
	EasyCount      int `json:"easy_count" gorm:"not null"`
	MediumCount    int `json:"medium_count" gorm:"not null"`
	HardCount      int `json:"hard_count" gorm:"not null"`

	TotalVariations int `json:"total_variations" gorm:"not null" validate:"required,min=1,max=50"`

	// PassingScore is on the 0-10 score scale.
	PassingScore float64 `json:"passing_score" gorm:"not null;default:6" validate:"min=0,max=10"`

	RandomizeQuestions    bool `json:"randomize_questions" gorm:"not null;default:false"`
	RandomizeAlternatives bool `json:"randomize_alternatives" gorm:"not null;default:false"`

	ExpiresAt *time.Time `json:"expires_at"`

	// Metadata
	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Subjects   []Subject   `json:"subjects" gorm:"many2many:exam_subjects"`
	Variations []Variation `json:"variations" gorm:"foreignKey:ExamID"`
}

// Distribution returns the exam's target counts as a value object.
func (e *Exam) Distribution() Distribution {
	return Distribution{Easy: e.EasyCount, Medium: e.MediumCount, Hard: e.HardCount}
}

// SubjectIDs returns the ids of the exam's subject set.
func (e *Exam) SubjectIDs() []uint {
	ids := make([]uint, len(e.Subjects))
	for i, s := range e.Subjects {
		ids[i] = s.ID
	}
	return ids
}

// CanRegenerate reports whether the variation set may be rebuilt. Published
// exams keep their variations immutable.
func (e *Exam) CanRegenerate() bool {
	return e.Status == ExamDraft || e.Status == ExamUnpublished
}

func (Exam) TableName() string {
	return "exams"
}
