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

type ExamPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewExamPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ExamRepository {
	return &ExamPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// ===== BASIC CRUD OPERATIONS =====

// Create creates a new exam and invalidates cache
func (e *ExamPostgreSQL) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	db := e.getDB(tx)
	if err := db.WithContext(ctx).Create(exam).Error; err != nil {
		return fmt.Errorf("failed to create exam: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, e.cacheManager.Exam, fmt.Sprintf("creator:%s:*", exam.CreatedBy))
	cache.SafeInvalidatePattern(ctx, e.cacheManager.Exam, "list:*")

	return nil
}

// GetByID retrieves an exam by ID with caching
func (e *ExamPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	db := e.getDB(tx)
	cacheKey := fmt.Sprintf("id:%d", id)
	var exam models.Exam

	err := e.cacheManager.Exam.CacheOrExecute(ctx, cacheKey, &exam, cache.ExamCacheConfig.TTL, func() (interface{}, error) {
		var dbExam models.Exam
		if err := db.WithContext(ctx).First(&dbExam, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("exam not found with ID %d", id)
			}
			return nil, fmt.Errorf("failed to get exam: %w", err)
		}
		return &dbExam, nil
	})

	if err != nil {
		return nil, err
	}

	return &exam, nil
}

// GetByIDWithDetails retrieves an exam with subjects and variations preloaded
func (e *ExamPostgreSQL) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	db := e.getDB(tx)
	var exam models.Exam
	if err := db.WithContext(ctx).
		Preload("Subjects").
		Preload("Variations").
		First(&exam, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("exam not found with ID %d", id)
		}
		return nil, fmt.Errorf("failed to get exam with details: %w", err)
	}
	return &exam, nil
}

// Update updates an exam
func (e *ExamPostgreSQL) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	db := e.getDB(tx)
	if err := db.WithContext(ctx).Save(exam).Error; err != nil {
		return fmt.Errorf("failed to update exam: %w", err)
	}

	cache.InvalidateExamCache(ctx, e.cacheManager, exam.ID, exam.CreatedBy)

	return nil
}

// Delete soft deletes an exam
func (e *ExamPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := e.getDB(tx)

	var exam models.Exam
	if err := db.WithContext(ctx).Select("id, created_by").First(&exam, id).Error; err != nil {
		return fmt.Errorf("failed to get exam before delete: %w", err)
	}

	if err := db.WithContext(ctx).Delete(&models.Exam{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete exam: %w", err)
	}

	cache.InvalidateExamCache(ctx, e.cacheManager, id, exam.CreatedBy)

	return nil
}

// ===== QUERY OPERATIONS =====

// List retrieves exams with filters and pagination
func (e *ExamPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	db := e.getDB(tx)
	query := db.WithContext(ctx).Model(&models.Exam{})
	query = e.helpers.ApplyExamFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count exams: %w", err)
	}

	query = e.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var exams []*models.Exam
	if err := query.Preload("Subjects").Find(&exams).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list exams: %w", err)
	}

	return exams, total, nil
}

// GetByCreator retrieves exams created by a specific user
func (e *ExamPostgreSQL) GetByCreator(ctx context.Context, tx *gorm.DB, creatorID string, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	filters.CreatedBy = &creatorID
	return e.List(ctx, tx, filters)
}

// ===== LIFECYCLE =====

// UpdateStatus transitions an exam to a new lifecycle status
func (e *ExamPostgreSQL) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.ExamStatus) error {
	db := e.getDB(tx)

	var exam models.Exam
	if err := db.WithContext(ctx).Select("id, created_by").First(&exam, id).Error; err != nil {
		return fmt.Errorf("failed to get exam before status update: %w", err)
	}

	if err := db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ?", id).
		Update("status", status).Error; err != nil {
		return fmt.Errorf("failed to update exam status: %w", err)
	}

	cache.InvalidateExamCache(ctx, e.cacheManager, id, exam.CreatedBy)

	return nil
}

// ===== VALIDATION =====

// HasResults reports whether any submissions were scored against this exam
func (e *ExamPostgreSQL) HasResults(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	db := e.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.Result{}).
		Where("exam_id = ?", id).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check exam results: %w", err)
	}
	return count > 0, nil
}

func (e *ExamPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return e.db
}
