package repositories

import (
	"context"

	"github.com/examforge/variation-engine/internal/models"
	"gorm.io/gorm"
)

// QuestionRepository interface for question-specific operations
type QuestionRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	Update(ctx context.Context, tx *gorm.DB, question *models.Question) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// Bulk operations
	CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error)

	// Query operations
	List(ctx context.Context, tx *gorm.DB, filters QuestionFilters) ([]*models.Question, int64, error)

	// Pool loading for variation generation. Pools are scoped to the owner's
	// question bank. Questions come back ordered by ascending usage count,
	// then by newest first, so least-used questions are considered before
	// heavily recycled ones.
	GetPool(ctx context.Context, tx *gorm.DB, subjectIDs []uint, ownerID string, difficulty models.DifficultyLevel) ([]*models.Question, error)
	CountPool(ctx context.Context, tx *gorm.DB, subjectIDs []uint, ownerID string) (map[models.DifficultyLevel]int, error)

	// Usage tracking. times_used counts the persisted variations that
	// currently include a question, so delta carries the multiplicity and
	// may be negative when a variation set is dropped.
	IncrementUsage(ctx context.Context, tx *gorm.DB, ids []uint, delta int) error
	RecordOutcome(ctx context.Context, tx *gorm.DB, outcomes []QuestionOutcome) error

	// Statistics
	GetUsageStats(ctx context.Context, tx *gorm.DB, subjectID uint) (*QuestionUsageStats, error)
}

// SubjectRepository interface for subject operations
type SubjectRepository interface {
	Create(ctx context.Context, tx *gorm.DB, subject *models.Subject) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Subject, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Subject, error)
	List(ctx context.Context, tx *gorm.DB) ([]*models.Subject, error)
}
