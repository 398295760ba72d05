package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/examforge/variation-engine/internal/cache"
	"github.com/examforge/variation-engine/internal/models"
	"github.com/examforge/variation-engine/internal/repositories"
)

type ResultPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewResultPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ResultRepository {
	return &ResultPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// Create persists a scored submission and drops the exam's stale aggregates
func (r *ResultPostgreSQL) Create(ctx context.Context, tx *gorm.DB, result *models.Result) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Create(result).Error; err != nil {
		return fmt.Errorf("failed to create result: %w", err)
	}

	cache.InvalidateStatsCache(ctx, r.cacheManager, result.ExamID)

	return nil
}

// GetByID retrieves a result by ID
func (r *ResultPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Result, error) {
	db := r.getDB(tx)
	var result models.Result
	if err := db.WithContext(ctx).First(&result, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("result not found with ID %d", id)
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return &result, nil
}

// GetBySubmissionKey retrieves a previously scored submission by its dedup key.
// Returns gorm.ErrRecordNotFound wrapped when no prior scoring happened.
func (r *ResultPostgreSQL) GetBySubmissionKey(ctx context.Context, tx *gorm.DB, key string) (*models.Result, error) {
	db := r.getDB(tx)
	var result models.Result
	if err := db.WithContext(ctx).Where("submission_key = ?", key).First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get result by submission key: %w", err)
	}
	return &result, nil
}

// GetByExam retrieves results of an exam with filters and pagination
func (r *ResultPostgreSQL) GetByExam(ctx context.Context, tx *gorm.DB, examID uint, filters repositories.ResultFilters) ([]*models.Result, int64, error) {
	db := r.getDB(tx)
	query := db.WithContext(ctx).Model(&models.Result{}).Where("exam_id = ?", examID)
	query = r.helpers.ApplyResultFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count results: %w", err)
	}

	query = r.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var results []*models.Result
	if err := query.Find(&results).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get results for exam %d: %w", examID, err)
	}

	return results, total, nil
}

// GetByVariation retrieves every result scored against one variation
func (r *ResultPostgreSQL) GetByVariation(ctx context.Context, tx *gorm.DB, variationID uint) ([]*models.Result, error) {
	db := r.getDB(tx)
	var results []*models.Result
	if err := db.WithContext(ctx).
		Where("variation_id = ?", variationID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to get results for variation %d: %w", variationID, err)
	}
	return results, nil
}

// GetByStudent retrieves a student's results with filters and pagination
func (r *ResultPostgreSQL) GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters repositories.ResultFilters) ([]*models.Result, int64, error) {
	db := r.getDB(tx)
	query := db.WithContext(ctx).Model(&models.Result{}).Where("student_id = ?", studentID)
	query = r.helpers.ApplyResultFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count student results: %w", err)
	}

	query = r.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var results []*models.Result
	if err := query.Find(&results).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get results for student %s: %w", studentID, err)
	}

	return results, total, nil
}

// GetAllByExam retrieves every result of an exam without pagination.
// This is the aggregation input for exam statistics.
func (r *ResultPostgreSQL) GetAllByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Result, error) {
	db := r.getDB(tx)
	var results []*models.Result
	if err := db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to get all results for exam %d: %w", examID, err)
	}
	return results, nil
}

// ExistsForExam reports whether any result exists for the exam
func (r *ResultPostgreSQL) ExistsForExam(ctx context.Context, tx *gorm.DB, examID uint) (bool, error) {
	db := r.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.Result{}).
		Where("exam_id = ?", examID).
		Limit(1).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check results for exam %d: %w", examID, err)
	}
	return count > 0, nil
}

func (r *ResultPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
