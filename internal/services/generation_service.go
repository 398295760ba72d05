package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/examforge/variation-engine/internal/events"
	"github.com/examforge/variation-engine/internal/models"
	"github.com/examforge/variation-engine/internal/repositories"
	"github.com/examforge/variation-engine/internal/validator"
)

// defaultGenerationBudget caps the wall-clock time of one generation run.
// Exceeding it rolls the transaction back and surfaces a retryable error.
const defaultGenerationBudget = 30 * time.Second

type generationService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher

	// newRand supplies the per-run random source; injectable for tests
	newRand func() *rand.Rand
	budget  time.Duration
}

func NewGenerationService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher) GenerationService {
	return &generationService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
		publisher: publisher,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
		budget: defaultGenerationBudget,
	}
}

// ===== AVAILABILITY =====

// CheckAvailability compares the active pool sizes against the requested
// distribution and, on shortfall, proposes a reallocation proportional to
// what each difficulty actually has.
func (s *generationService) CheckAvailability(ctx context.Context, subjectIDs []uint, ownerID string, distribution models.Distribution) (*AvailabilityReport, error) {
	if len(subjectIDs) == 0 {
		return nil, NewValidationError("subject_ids", "at least one subject is required", subjectIDs)
	}

	available, err := s.repo.Question().CountPool(ctx, nil, subjectIDs, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count question pool: %w", err)
	}

	report := &AvailabilityReport{
		CanCreate: true,
		Required:  make(map[models.DifficultyLevel]int),
		Available: available,
		Missing:   make(map[models.DifficultyLevel]int),
	}

	for _, level := range models.Difficulties {
		required := distribution.Count(level)
		report.Required[level] = required
		if available[level] < required {
			report.CanCreate = false
			report.Missing[level] = required - available[level]
		} else {
			report.Missing[level] = 0
		}
	}

	if !report.CanCreate {
		report.Suggestions = suggestRedistribution(report.Required, report.Available)
	}

	return report, nil
}

// suggestRedistribution reallocates the total requested count across
// difficulties proportionally to availability, capped per difficulty.
// Returns nil when the pool cannot cover the total at all.
func suggestRedistribution(required, available map[models.DifficultyLevel]int) map[models.DifficultyLevel]int {
	totalRequired := 0
	totalAvailable := 0
	for _, level := range models.Difficulties {
		totalRequired += required[level]
		totalAvailable += available[level]
	}
	if totalAvailable < totalRequired || totalRequired == 0 {
		return nil
	}

	suggestions := make(map[models.DifficultyLevel]int, len(models.Difficulties))
	allocated := 0
	for _, level := range models.Difficulties {
		share := totalRequired * available[level] / totalAvailable
		if share > available[level] {
			share = available[level]
		}
		suggestions[level] = share
		allocated += share
	}

	// Rounding leftovers go wherever capacity remains
	for _, level := range models.Difficulties {
		for allocated < totalRequired && suggestions[level] < available[level] {
			suggestions[level]++
			allocated++
		}
	}

	return suggestions
}

// ===== GENERATION =====

// GenerateVariations builds the full variation set of an exam inside one
// transaction. A previous set, if any, is replaced wholesale.
func (s *generationService) GenerateVariations(ctx context.Context, examID uint, userID string) (*GenerateVariationsResponse, error) {
	started := time.Now()

	exam, err := s.repo.Exam().GetByIDWithDetails(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to load exam: %w", err)
	}

	if exam.CreatedBy != userID {
		return nil, NewValidationError("user_id", "only the exam owner can generate variations", userID)
	}
	if !exam.CanRegenerate() {
		return nil, ErrExamPublished
	}

	distribution := exam.Distribution()
	if distribution.Total() != exam.TotalQuestions {
		return nil, NewValidationError("distribution",
			fmt.Sprintf("difficulty counts sum to %d, expected %d", distribution.Total(), exam.TotalQuestions),
			distribution.Total())
	}
	if exam.TotalVariations < 1 || exam.TotalVariations > 50 {
		return nil, NewValidationError("total_variations", "must be between 1 and 50", exam.TotalVariations)
	}

	subjectIDs := exam.SubjectIDs()
	report, err := s.CheckAvailability(ctx, subjectIDs, userID, distribution)
	if err != nil {
		return nil, err
	}
	if !report.CanCreate {
		return nil, &InsufficientQuestionsError{
			Required:    report.Required,
			Available:   report.Available,
			Missing:     report.Missing,
			Suggestions: report.Suggestions,
		}
	}

	rng := s.newRand()
	deadline := started.Add(s.budget)

	var variations []*models.Variation
	var fallbackEvents []*events.SignatureFallbackEvent
	totalQuestions := 0

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		// Load pools inside the transaction so selection and counter
		// increments see one consistent snapshot.
		pools := make(map[models.DifficultyLevel][]*models.Question, len(models.Difficulties))
		for _, level := range models.Difficulties {
			if distribution.Count(level) == 0 {
				continue
			}
			pool, err := txRepo.Question().GetPool(ctx, nil, subjectIDs, userID, level)
			if err != nil {
				return err
			}
			pools[level] = pool
		}

		index := NewPoolIndex(pools, rng)
		if !index.Satisfies(distribution) {
			return &InsufficientQuestionsError{
				Required:  report.Required,
				Available: report.Available,
				Missing:   report.Missing,
			}
		}

		// times_used tracks how many persisted variations include each
		// question, so replacing a set unwinds the old links first.
		usage := make(map[uint]int)
		previous, err := txRepo.Variation().CountQuestionUsage(ctx, nil, examID)
		if err != nil {
			return err
		}
		for id, count := range previous {
			usage[id] -= count
		}

		if err := txRepo.Variation().DeleteByExam(ctx, nil, examID); err != nil {
			return err
		}

		sel := newSelector(rng)

		for i := 0; i < exam.TotalVariations; i++ {
			if time.Now().After(deadline) {
				return &GenerationTimeoutError{
					ExamID:  examID,
					Elapsed: time.Since(started).Round(time.Millisecond).String(),
				}
			}

			picked, fallback, attempts := sel.Select(i, index, distribution)
			if fallback {
				fallbackEvents = append(fallbackEvents, &events.SignatureFallbackEvent{
					ExamID:          examID,
					VariationNumber: i + 1,
					PoolSize:        index.Size(models.DifficultyEasy) + index.Size(models.DifficultyMedium) + index.Size(models.DifficultyHard),
					Attempts:        attempts,
				})
				s.logger.WarnContext(ctx, "Variation kept duplicate question combination",
					"exam_id", examID,
					"variation_number", i+1,
					"attempts", attempts)
			}

			if exam.RandomizeQuestions {
				shuffleQuestions(rng, picked)
			}

			variation, err := s.persistVariation(ctx, txRepo, exam, i, picked)
			if err != nil {
				return err
			}

			for _, q := range picked {
				usage[q.ID]++
			}
			totalQuestions += len(picked)
			variations = append(variations, variation)
		}

		// Counters bump once per variation that selects a question,
		// batched into one statement per distinct net delta.
		byDelta := make(map[int][]uint)
		for id, delta := range usage {
			if delta == 0 {
				continue
			}
			byDelta[delta] = append(byDelta[delta], id)
		}
		for delta, ids := range byDelta {
			if err := txRepo.Question().IncrementUsage(ctx, nil, ids, delta); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	duration := time.Since(started)

	s.publishGenerationEvents(ctx, examID, userID, len(variations), totalQuestions, duration, fallbackEvents)

	s.logger.InfoContext(ctx, "Variations generated",
		"exam_id", examID,
		"variation_count", len(variations),
		"fallbacks", len(fallbackEvents),
		"duration_ms", duration.Milliseconds())

	return &GenerateVariationsResponse{
		ExamID:     examID,
		Variations: variations,
		Fallbacks:  len(fallbackEvents),
		Duration:   duration,
	}, nil
}

// persistVariation writes one variation and its question links. The QR
// payload embeds the variation's own id, so the row is created with a
// placeholder first and patched after insert.
func (s *generationService) persistVariation(ctx context.Context, txRepo repositories.Repository, exam *models.Exam, index int, picked []*models.Question) (*models.Variation, error) {
	letter := models.VariationLetterFor(index)

	variation := &models.Variation{
		ExamID:          exam.ID,
		VariationNumber: index + 1,
		VariationLetter: letter,
		QRPayload:       datatypes.JSON([]byte("{}")),
	}
	if err := txRepo.Variation().Create(ctx, nil, variation); err != nil {
		return nil, err
	}

	payload := models.QRPayload{
		ExamID:          exam.ID,
		VariationID:     variation.ID,
		VariationLetter: letter,
		Type:            models.QRPayloadType,
		Timestamp:       time.Now().Unix(),
		Nonce:           uuid.New().String(),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR payload: %w", err)
	}
	if err := txRepo.Variation().UpdateQRPayload(ctx, nil, variation.ID, encoded); err != nil {
		return nil, err
	}
	variation.QRPayload = datatypes.JSON(encoded)

	links := make([]*models.VariationQuestion, len(picked))
	for pos, question := range picked {
		links[pos] = &models.VariationQuestion{
			VariationID: variation.ID,
			QuestionID:  question.ID,
			Order:       pos + 1,
			Points:      question.ResolvedPoints(),
		}
	}
	if err := txRepo.Variation().CreateQuestionLinks(ctx, nil, links); err != nil {
		return nil, err
	}
	variation.Questions = make([]models.VariationQuestion, len(links))
	for pos, link := range links {
		variation.Questions[pos] = *link
	}

	return variation, nil
}

// publishGenerationEvents emits completion and fallback events after commit
func (s *generationService) publishGenerationEvents(ctx context.Context, examID uint, userID string, variationCount, questionCount int, duration time.Duration, fallbacks []*events.SignatureFallbackEvent) {
	if s.publisher == nil {
		return
	}

	event := events.NewEvent(events.TypeVariationsGenerated, &events.VariationsGeneratedEvent{
		ExamID:         examID,
		VariationCount: variationCount,
		QuestionCount:  questionCount,
		DurationMS:     duration.Milliseconds(),
		TriggeredBy:    userID,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish generation event", "error", err, "exam_id", examID)
	}

	for _, fb := range fallbacks {
		if err := s.publisher.Publish(ctx, events.NewEvent(events.TypeSignatureFallback, fb)); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish fallback event", "error", err, "exam_id", examID)
		}
	}
}

// ===== READ OPERATIONS =====

func (s *generationService) GetVariation(ctx context.Context, variationID uint, userID string) (*VariationResponse, error) {
	variation, err := s.repo.Variation().GetByIDWithQuestions(ctx, nil, variationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get variation: %w", err)
	}

	return &VariationResponse{
		Variation:     variation,
		QuestionCount: len(variation.Questions),
	}, nil
}

func (s *generationService) GetVariationsByExam(ctx context.Context, examID uint, userID string) ([]*VariationResponse, error) {
	variations, err := s.repo.Variation().GetByExam(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get variations: %w", err)
	}

	responses := make([]*VariationResponse, len(variations))
	for i, variation := range variations {
		responses[i] = &VariationResponse{
			Variation:     variation,
			QuestionCount: len(variation.Questions),
		}
	}
	return responses, nil
}
