package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/examforge/variation-engine/internal/cache"
	"github.com/examforge/variation-engine/internal/models"
	"github.com/examforge/variation-engine/internal/repositories"
)

type VariationPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewVariationPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.VariationRepository {
	return &VariationPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// Create inserts a variation row. QR payload is patched afterwards once the
// generated id is known, see UpdateQRPayload.
func (v *VariationPostgreSQL) Create(ctx context.Context, tx *gorm.DB, variation *models.Variation) error {
	db := v.getDB(tx)
	if err := db.WithContext(ctx).Create(variation).Error; err != nil {
		return fmt.Errorf("failed to create variation: %w", err)
	}
	return nil
}

// GetByID retrieves a variation by ID with caching
func (v *VariationPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Variation, error) {
	db := v.getDB(tx)
	cacheKey := fmt.Sprintf("id:%d", id)
	var variation models.Variation

	err := v.cacheManager.Variation.CacheOrExecute(ctx, cacheKey, &variation, cache.VariationCacheConfig.TTL, func() (interface{}, error) {
		var dbVariation models.Variation
		if err := db.WithContext(ctx).First(&dbVariation, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("variation not found with ID %d", id)
			}
			return nil, fmt.Errorf("failed to get variation: %w", err)
		}
		return &dbVariation, nil
	})

	if err != nil {
		return nil, err
	}

	return &variation, nil
}

// GetByIDWithQuestions retrieves a variation with its ordered question links
func (v *VariationPostgreSQL) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Variation, error) {
	db := v.getDB(tx)
	var variation models.Variation
	if err := db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("variation_questions.order ASC")
		}).
		Preload("Questions.Question").
		First(&variation, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("variation not found with ID %d", id)
		}
		return nil, fmt.Errorf("failed to get variation with questions: %w", err)
	}
	return &variation, nil
}

// GetByExam retrieves all variations of one exam ordered by variation number
func (v *VariationPostgreSQL) GetByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Variation, error) {
	db := v.getDB(tx)
	var variations []*models.Variation
	if err := db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("variation_number ASC").
		Find(&variations).Error; err != nil {
		return nil, fmt.Errorf("failed to get variations for exam %d: %w", examID, err)
	}
	return variations, nil
}

// DeleteByExam removes all variations and question links of an exam.
// Used before regeneration; callers hold a transaction.
func (v *VariationPostgreSQL) DeleteByExam(ctx context.Context, tx *gorm.DB, examID uint) error {
	db := v.getDB(tx)

	if err := db.WithContext(ctx).
		Where("variation_id IN (?)", db.Model(&models.Variation{}).Select("id").Where("exam_id = ?", examID)).
		Delete(&models.VariationQuestion{}).Error; err != nil {
		return fmt.Errorf("failed to delete variation question links: %w", err)
	}

	if err := db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Delete(&models.Variation{}).Error; err != nil {
		return fmt.Errorf("failed to delete variations: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, v.cacheManager.Variation, "*")

	return nil
}

// UpdateQRPayload patches the QR payload of an existing variation row
func (v *VariationPostgreSQL) UpdateQRPayload(ctx context.Context, tx *gorm.DB, id uint, payload []byte) error {
	db := v.getDB(tx)
	if err := db.WithContext(ctx).
		Model(&models.Variation{}).
		Where("id = ?", id).
		Update("qr_payload", datatypes.JSON(payload)).Error; err != nil {
		return fmt.Errorf("failed to update QR payload for variation %d: %w", id, err)
	}

	cache.SafeDelete(ctx, v.cacheManager.Variation, fmt.Sprintf("id:%d", id))

	return nil
}

// CreateQuestionLinks inserts the ordered question links for a variation in batch
func (v *VariationPostgreSQL) CreateQuestionLinks(ctx context.Context, tx *gorm.DB, links []*models.VariationQuestion) error {
	if len(links) == 0 {
		return nil
	}

	db := v.getDB(tx)
	if err := db.WithContext(ctx).CreateInBatches(links, 100).Error; err != nil {
		return fmt.Errorf("failed to create variation question links: %w", err)
	}
	return nil
}

// GetQuestionLinks retrieves the ordered question links of a variation
func (v *VariationPostgreSQL) GetQuestionLinks(ctx context.Context, tx *gorm.DB, variationID uint) ([]*models.VariationQuestion, error) {
	db := v.getDB(tx)
	var links []*models.VariationQuestion
	if err := db.WithContext(ctx).
		Where("variation_id = ?", variationID).
		Order(`"order" ASC`).
		Preload("Question").
		Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to get question links for variation %d: %w", variationID, err)
	}
	return links, nil
}

// CountQuestionUsage tallies, per question, how many of the exam's persisted
// variations include it. Used to unwind usage counters before regeneration.
func (v *VariationPostgreSQL) CountQuestionUsage(ctx context.Context, tx *gorm.DB, examID uint) (map[uint]int, error) {
	db := v.getDB(tx)

	type usageRow struct {
		QuestionID uint
		Count      int
	}

	var rows []usageRow
	if err := db.WithContext(ctx).
		Model(&models.VariationQuestion{}).
		Select("question_id, COUNT(*) as count").
		Where("variation_id IN (?)", db.Model(&models.Variation{}).Select("id").Where("exam_id = ?", examID)).
		Group("question_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count question usage for exam %d: %w", examID, err)
	}

	usage := make(map[uint]int, len(rows))
	for _, row := range rows {
		usage[row.QuestionID] = row.Count
	}
	return usage, nil
}

// CountByExam counts variations of an exam
func (v *VariationPostgreSQL) CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error) {
	db := v.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.Variation{}).
		Where("exam_id = ?", examID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count variations for exam %d: %w", examID, err)
	}
	return count, nil
}

func (v *VariationPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return v.db
}
