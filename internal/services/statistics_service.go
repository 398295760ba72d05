package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/examforge/variation-engine/internal/cache"
	"github.com/examforge/variation-engine/internal/models"
	"github.com/examforge/variation-engine/internal/repositories"
)

type statisticsService struct {
	repo         repositories.Repository
	db           *gorm.DB
	logger       *slog.Logger
	cacheManager *cache.CacheManager
}

func NewStatisticsService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, redisClient *redis.Client) StatisticsService {
	return &statisticsService{
		repo:         repo,
		db:           db,
		logger:       logger,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// GetExamStatistics loads all results of an exam and folds them into the
// aggregate views, with cache-aside on the stats cache.
func (s *statisticsService) GetExamStatistics(ctx context.Context, examID uint, userID string) (*ExamStatistics, error) {
	cacheKey := fmt.Sprintf("exam:%d:summary", examID)
	var stats ExamStatistics

	err := s.cacheManager.Stats.CacheOrExecute(ctx, cacheKey, &stats, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		results, err := s.repo.Result().GetAllByExam(ctx, nil, examID)
		if err != nil {
			return nil, err
		}

		computed, err := s.Aggregate(examID, results)
		if err != nil {
			return nil, err
		}

		// Variation letters come from the variation rows, not the results
		variations, err := s.repo.Variation().GetByExam(ctx, nil, examID)
		if err != nil {
			return nil, err
		}
		letters := make(map[uint]string, len(variations))
		for _, v := range variations {
			letters[v.ID] = v.VariationLetter
		}
		for i := range computed.PerVariation {
			computed.PerVariation[i].VariationLetter = letters[computed.PerVariation[i].VariationID]
		}

		return computed, nil
	})
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

// Aggregate folds an in-memory result set into the four views. It is a
// pure function of the input: no storage access, safe to recompute.
func (s *statisticsService) Aggregate(examID uint, results []*models.Result) (*ExamStatistics, error) {
	stats := &ExamStatistics{
		ExamID:                examID,
		Overall:               aggregateOverall(results),
		PerVariation:          aggregatePerVariation(results),
		ScoreDistribution:     aggregateScoreDistribution(results),
		DifficultyPerformance: nil,
		ComputedAt:            time.Now(),
	}

	difficulty, err := aggregateDifficultyPerformance(results)
	if err != nil {
		return nil, err
	}
	stats.DifficultyPerformance = difficulty

	return stats, nil
}

// aggregateOverall computes count, average/min/max score, pass rate and
// average time. An empty result set yields all zeroes, never an error.
func aggregateOverall(results []*models.Result) OverallStats {
	stats := OverallStats{}
	if len(results) == 0 {
		return stats
	}

	stats.Count = len(results)
	stats.MinScore = results[0].Score
	stats.MaxScore = results[0].Score

	var scoreSum, timeSum float64
	for _, r := range results {
		scoreSum += r.Score
		timeSum += float64(r.TimeSpent)
		if r.Score < stats.MinScore {
			stats.MinScore = r.Score
		}
		if r.Score > stats.MaxScore {
			stats.MaxScore = r.Score
		}
		if r.Passed {
			stats.PassedCount++
		}
	}

	stats.AverageScore = roundFloat(scoreSum/float64(stats.Count), 2)
	stats.PassRate = roundFloat(float64(stats.PassedCount)/float64(stats.Count)*100, 2)
	stats.AverageTime = roundFloat(timeSum/float64(stats.Count), 1)

	return stats
}

// aggregatePerVariation groups results by variation and computes the same
// metrics as the overall view per group, ordered by variation id.
func aggregatePerVariation(results []*models.Result) []VariationStats {
	grouped := make(map[uint][]*models.Result)
	for _, r := range results {
		grouped[r.VariationID] = append(grouped[r.VariationID], r)
	}

	ids := make([]uint, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	stats := make([]VariationStats, 0, len(ids))
	for _, id := range ids {
		stats = append(stats, VariationStats{
			VariationID:  id,
			OverallStats: aggregateOverall(grouped[id]),
		})
	}
	return stats
}

// aggregateScoreDistribution buckets results by percentage decile. A
// perfect score lands in the top bucket rather than a bucket of its own.
func aggregateScoreDistribution(results []*models.Result) []ScoreBucket {
	counts := make(map[int]int)
	for _, r := range results {
		bucket := int(r.Percentage / 10)
		if bucket > 9 {
			bucket = 9
		}
		counts[bucket]++
	}

	buckets := make([]ScoreBucket, 0, len(counts))
	for bucket, count := range counts {
		buckets = append(buckets, ScoreBucket{
			Bucket: bucket,
			Label:  fmt.Sprintf("%d-%d", bucket*10, bucket*10+10),
			Count:  count,
		})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Bucket < buckets[j].Bucket })

	return buckets
}

// aggregateDifficultyPerformance tallies correct/total per difficulty
// across every result's detail list.
func aggregateDifficultyPerformance(results []*models.Result) ([]DifficultyStats, error) {
	totals := make(map[models.DifficultyLevel]int)
	corrects := make(map[models.DifficultyLevel]int)

	for _, r := range results {
		details, err := r.AnswerDetails()
		if err != nil {
			return nil, fmt.Errorf("failed to decode details for result %d: %w", r.ID, err)
		}
		for _, d := range details {
			totals[d.Difficulty]++
			if d.IsCorrect {
				corrects[d.Difficulty]++
			}
		}
	}

	stats := make([]DifficultyStats, 0, len(models.Difficulties))
	for _, level := range models.Difficulties {
		entry := DifficultyStats{
			Difficulty: level,
			Total:      totals[level],
			Correct:    corrects[level],
		}
		if entry.Total > 0 {
			entry.Percentage = roundFloat(float64(entry.Correct)/float64(entry.Total)*100, 2)
		}
		stats = append(stats, entry)
	}

	return stats, nil
}

func roundFloat(val float64, precision int) float64 {
	ratio := 1.0
	for i := 0; i < precision; i++ {
		ratio *= 10
	}
	return float64(int(val*ratio+0.5)) / ratio
}
