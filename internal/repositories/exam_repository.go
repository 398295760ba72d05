package repositories

import (
	"context"

	"github.com/examforge/variation-engine/internal/models"
	"gorm.io/gorm"
)

// ExamRepository interface for exam-specific operations
type ExamRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) // Include subjects, variations
	Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// Query operations
	List(ctx context.Context, tx *gorm.DB, filters ExamFilters) ([]*models.Exam, int64, error)
	GetByCreator(ctx context.Context, tx *gorm.DB, creatorID string, filters ExamFilters) ([]*models.Exam, int64, error)

	// Lifecycle
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.ExamStatus) error

	// Validation
	HasResults(ctx context.Context, tx *gorm.DB, id uint) (bool, error)
}

// VariationRepository interface for variation persistence
type VariationRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, variation *models.Variation) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Variation, error)
	GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Variation, error)
	GetByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Variation, error)
	DeleteByExam(ctx context.Context, tx *gorm.DB, examID uint) error

	// QR payload is written in two steps: the row is created first so the
	// payload can embed the generated variation id, then patched.
	UpdateQRPayload(ctx context.Context, tx *gorm.DB, id uint, payload []byte) error

	// Link operations
	CreateQuestionLinks(ctx context.Context, tx *gorm.DB, links []*models.VariationQuestion) error
	GetQuestionLinks(ctx context.Context, tx *gorm.DB, variationID uint) ([]*models.VariationQuestion, error)
	CountQuestionUsage(ctx context.Context, tx *gorm.DB, examID uint) (map[uint]int, error)

	// Statistics
	CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error)
}
