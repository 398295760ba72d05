package repositories

import (
	"context"

	"github.com/examforge/variation-engine/internal/models"
	"gorm.io/gorm"
)

// ResultRepository interface for scored submission storage
type ResultRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, result *models.Result) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Result, error)
	GetBySubmissionKey(ctx context.Context, tx *gorm.DB, key string) (*models.Result, error)

	// Query operations
	GetByExam(ctx context.Context, tx *gorm.DB, examID uint, filters ResultFilters) ([]*models.Result, int64, error)
	GetByVariation(ctx context.Context, tx *gorm.DB, variationID uint) ([]*models.Result, error)
	GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters ResultFilters) ([]*models.Result, int64, error)

	// Aggregation input: every result for an exam, details included,
	// without pagination. Statistics are computed in the service layer.
	GetAllByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Result, error)

	// Validation
	ExistsForExam(ctx context.Context, tx *gorm.DB, examID uint) (bool, error)
}
