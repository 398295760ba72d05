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

type QuestionPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// ===== BASIC CRUD OPERATIONS =====

// Create creates a new question and invalidates cache
func (q *QuestionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	db := q.getDB(tx)
	if err := db.WithContext(ctx).Create(question).Error; err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, q.cacheManager.Question, fmt.Sprintf("creator:%s:*", question.CreatedBy))
	cache.SafeInvalidatePattern(ctx, q.cacheManager.Question, "list:*")
	cache.SafeInvalidatePattern(ctx, q.cacheManager.Question, "pool:*")

	return nil
}

// GetByID retrieves a question by ID with caching
func (q *QuestionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	db := q.getDB(tx)
	cacheKey := fmt.Sprintf("id:%d", id)
	var question models.Question

	err := q.cacheManager.Question.CacheOrExecute(ctx, cacheKey, &question, cache.QuestionCacheConfig.TTL, func() (interface{}, error) {
		var dbQuestion models.Question
		if err := db.WithContext(ctx).First(&dbQuestion, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("question not found with ID %d", id)
			}
			return nil, fmt.Errorf("failed to get question: %w", err)
		}
		return &dbQuestion, nil
	})

	if err != nil {
		return nil, err
	}

	return &question, nil
}

// Update updates a question
func (q *QuestionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	db := q.getDB(tx)
	if err := db.WithContext(ctx).Save(question).Error; err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}

	cache.InvalidateQuestionCache(ctx, q.cacheManager, question.ID, question.CreatedBy)

	return nil
}

// Delete deactivates a question so existing variation links stay intact
func (q *QuestionPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := q.getDB(tx)

	var question models.Question
	if err := db.WithContext(ctx).Select("id, created_by").First(&question, id).Error; err != nil {
		return fmt.Errorf("failed to get question before delete: %w", err)
	}

	if err := db.WithContext(ctx).
		Model(&models.Question{}).
		Where("id = ?", id).
		Update("active", false).Error; err != nil {
		return fmt.Errorf("failed to deactivate question: %w", err)
	}

	cache.InvalidateQuestionCache(ctx, q.cacheManager, id, question.CreatedBy)

	return nil
}

// ===== BULK OPERATIONS =====

// CreateBatch creates multiple questions in a batch
func (q *QuestionPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}

	db := q.getDB(tx)
	if err := db.WithContext(ctx).CreateInBatches(questions, 100).Error; err != nil {
		return fmt.Errorf("failed to create questions batch: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, q.cacheManager.Question, "pool:*")
	return nil
}

// GetByIDs retrieves multiple questions by their IDs
func (q *QuestionPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	if len(ids) == 0 {
		return []*models.Question{}, nil
	}

	db := q.getDB(tx)
	var questions []*models.Question
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to get questions by IDs: %w", err)
	}
	return questions, nil
}

// ===== QUERY OPERATIONS =====

// List retrieves questions with filters and pagination
func (q *QuestionPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	db := q.getDB(tx)
	query := db.WithContext(ctx).Model(&models.Question{})
	query = q.helpers.ApplyQuestionFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count questions: %w", err)
	}

	query = q.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var questions []*models.Question
	if err := query.Find(&questions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list questions: %w", err)
	}

	return questions, total, nil
}

// GetPool loads the active candidate pool for one difficulty tier, limited
// to the owner's question bank. Ordering is ascending usage count, then
// newest first, so the generator considers the least recycled questions
// before worn ones.
func (q *QuestionPostgreSQL) GetPool(ctx context.Context, tx *gorm.DB, subjectIDs []uint, ownerID string, difficulty models.DifficultyLevel) ([]*models.Question, error) {
	db := q.getDB(tx)

	query := db.WithContext(ctx).
		Model(&models.Question{}).
		Where("difficulty = ? AND active = ? AND created_by = ?", difficulty, true, ownerID)
	if len(subjectIDs) > 0 {
		query = query.Where("subject_id IN ?", subjectIDs)
	}

	var questions []*models.Question
	if err := query.
		Order("times_used ASC").
		Order("created_at DESC").
		Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to load question pool: %w", err)
	}

	return questions, nil
}

// CountPool counts the owner's available active questions per difficulty tier
func (q *QuestionPostgreSQL) CountPool(ctx context.Context, tx *gorm.DB, subjectIDs []uint, ownerID string) (map[models.DifficultyLevel]int, error) {
	db := q.getDB(tx)

	type diffCount struct {
		Difficulty models.DifficultyLevel
		Count      int
	}

	query := db.WithContext(ctx).
		Model(&models.Question{}).
		Select("difficulty, COUNT(*) as count").
		Where("active = ? AND created_by = ?", true, ownerID)
	if len(subjectIDs) > 0 {
		query = query.Where("subject_id IN ?", subjectIDs)
	}

	var rows []diffCount
	if err := query.Group("difficulty").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count question pool: %w", err)
	}

	counts := make(map[models.DifficultyLevel]int, len(models.Difficulties))
	for _, level := range models.Difficulties {
		counts[level] = 0
	}
	for _, row := range rows {
		counts[row.Difficulty] = row.Count
	}

	return counts, nil
}

// ===== USAGE TRACKING =====

// IncrementUsage applies one usage delta to a batch of questions in a single
// statement. Callers group ids by delta, so a question selected by several
// variations is counted once per variation.
func (q *QuestionPostgreSQL) IncrementUsage(ctx context.Context, tx *gorm.DB, ids []uint, delta int) error {
	if len(ids) == 0 || delta == 0 {
		return nil
	}

	db := q.getDB(tx)
	if err := db.WithContext(ctx).
		Model(&models.Question{}).
		Where("id IN ?", ids).
		UpdateColumn("times_used", gorm.Expr("GREATEST(times_used + ?, 0)", delta)).Error; err != nil {
		return fmt.Errorf("failed to increment question usage: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, q.cacheManager.Question, "pool:*")
	for _, id := range ids {
		cache.SafeDelete(ctx, q.cacheManager.Question, fmt.Sprintf("id:%d", id))
	}

	return nil
}

// RecordOutcome folds scored answers into each question's running average
func (q *QuestionPostgreSQL) RecordOutcome(ctx context.Context, tx *gorm.DB, outcomes []repositories.QuestionOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	db := q.getDB(tx)
	for _, outcome := range outcomes {
		err := db.WithContext(ctx).
			Model(&models.Question{}).
			Where("id = ?", outcome.QuestionID).
			Updates(map[string]interface{}{
				"avg_score": gorm.Expr("(avg_score * answered + ?) / (answered + 1)", outcome.Score),
				"answered":  gorm.Expr("answered + 1"),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to record outcome for question %d: %w", outcome.QuestionID, err)
		}
	}

	return nil
}

// ===== STATISTICS =====

// GetUsageStats returns usage statistics for a subject's question bank
func (q *QuestionPostgreSQL) GetUsageStats(ctx context.Context, tx *gorm.DB, subjectID uint) (*repositories.QuestionUsageStats, error) {
	db := q.getDB(tx)

	stats := &repositories.QuestionUsageStats{
		QuestionsByDiff: make(map[models.DifficultyLevel]int),
	}

	type diffCount struct {
		Difficulty models.DifficultyLevel
		Count      int
	}
	var rows []diffCount
	if err := db.WithContext(ctx).
		Model(&models.Question{}).
		Select("difficulty, COUNT(*) as count").
		Where("subject_id = ? AND active = ?", subjectID, true).
		Group("difficulty").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get question counts: %w", err)
	}
	for _, row := range rows {
		stats.QuestionsByDiff[row.Difficulty] = row.Count
		stats.TotalQuestions += row.Count
	}

	var top []*models.Question
	if err := db.WithContext(ctx).
		Where("subject_id = ? AND active = ?", subjectID, true).
		Order("times_used DESC").
		Limit(10).
		Find(&top).Error; err != nil {
		return nil, fmt.Errorf("failed to get most used questions: %w", err)
	}
	for _, question := range top {
		stats.MostUsedQuestions = append(stats.MostUsedQuestions, &repositories.QuestionUsageStat{
			QuestionID: question.ID,
			Text:       question.Text,
			UsageCount: question.TimesUsed,
			AvgScore:   question.AvgScore,
		})
	}

	return stats, nil
}

func (q *QuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}

// SubjectPostgreSQL implements SubjectRepository
type SubjectPostgreSQL struct {
	db *gorm.DB
}

func NewSubjectPostgreSQL(db *gorm.DB) repositories.SubjectRepository {
	return &SubjectPostgreSQL{db: db}
}

func (s *SubjectPostgreSQL) Create(ctx context.Context, tx *gorm.DB, subject *models.Subject) error {
	db := s.getDB(tx)
	if err := db.WithContext(ctx).Create(subject).Error; err != nil {
		return fmt.Errorf("failed to create subject: %w", err)
	}
	return nil
}

func (s *SubjectPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Subject, error) {
	db := s.getDB(tx)
	var subject models.Subject
	if err := db.WithContext(ctx).First(&subject, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("subject not found with ID %d", id)
		}
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}
	return &subject, nil
}

func (s *SubjectPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Subject, error) {
	if len(ids) == 0 {
		return []*models.Subject{}, nil
	}

	db := s.getDB(tx)
	var subjects []*models.Subject
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&subjects).Error; err != nil {
		return nil, fmt.Errorf("failed to get subjects by IDs: %w", err)
	}
	return subjects, nil
}

func (s *SubjectPostgreSQL) List(ctx context.Context, tx *gorm.DB) ([]*models.Subject, error) {
	db := s.getDB(tx)
	var subjects []*models.Subject
	if err := db.WithContext(ctx).Order("name ASC").Find(&subjects).Error; err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	return subjects, nil
}

func (s *SubjectPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}
