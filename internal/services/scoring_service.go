package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/examforge/variation-engine/internal/events"
	"github.com/examforge/variation-engine/internal/models"
	"github.com/examforge/variation-engine/internal/repositories"
	"github.com/examforge/variation-engine/internal/validator"
)

type scoringService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
}

func NewScoringService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher) ScoringService {
	return &scoringService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
		publisher: publisher,
	}
}

// ScoreSubmission scores one submission against one variation's answer key.
// The variation is never mutated, so re-scoring the same submission is
// idempotent; a duplicate request returns the previously stored result.
func (s *scoringService) ScoreSubmission(ctx context.Context, req *ScoreSubmissionRequest) (*ScoreResponse, error) {
	if verrs := s.validator.Validate(req); len(verrs) > 0 {
		return nil, NewValidationError(verrs[0].Field, verrs[0].Message, verrs[0].Value)
	}

	variation, err := s.repo.Variation().GetByIDWithQuestions(ctx, nil, req.VariationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load variation: %w", err)
	}

	// Shape check happens before any scoring; malformed submissions get
	// no partial credit and no stored result.
	if len(req.Answers) != len(variation.Questions) {
		return nil, &AnswerCountMismatchError{
			Expected: len(variation.Questions),
			Got:      len(req.Answers),
		}
	}

	exam, err := s.repo.Exam().GetByID(ctx, nil, variation.ExamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load exam: %w", err)
	}

	submissionKey := submissionKeyFor(req.VariationID, req.StudentID, req.Answers)
	if existing, err := s.repo.Result().GetBySubmissionKey(ctx, nil, submissionKey); err == nil {
		details, derr := existing.AnswerDetails()
		if derr != nil {
			return nil, fmt.Errorf("failed to decode stored details: %w", derr)
		}
		s.logger.InfoContext(ctx, "Duplicate submission, returning stored result",
			"result_id", existing.ID,
			"variation_id", req.VariationID)
		return &ScoreResponse{Result: existing, Details: details}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	details, correctCount, outcomes := scoreAnswers(variation.Questions, req.Answers)

	total := len(variation.Questions)
	score := roundFloat(float64(correctCount)/float64(total)*10, 1)
	percentage := roundFloat(float64(correctCount)/float64(total)*100, 1)
	passed := score >= exam.PassingScore

	answersJSON, err := json.Marshal(req.Answers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answers: %w", err)
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("failed to encode details: %w", err)
	}

	result := &models.Result{
		ExamID:         variation.ExamID,
		VariationID:    variation.ID,
		StudentID:      req.StudentID,
		SubmissionKey:  submissionKey,
		Answers:        datatypes.JSON(answersJSON),
		Details:        datatypes.JSON(detailsJSON),
		CorrectCount:   correctCount,
		TotalQuestions: total,
		Score:          score,
		Percentage:     percentage,
		Passed:         passed,
		TimeSpent:      req.TimeSpent,
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Result().Create(ctx, nil, result); err != nil {
			return err
		}
		return txRepo.Question().RecordOutcome(ctx, nil, outcomes)
	})
	if err != nil {
		return nil, err
	}

	s.publishScoredEvent(ctx, result)

	s.logger.InfoContext(ctx, "Submission scored",
		"result_id", result.ID,
		"variation_id", variation.ID,
		"score", score,
		"passed", passed)

	return &ScoreResponse{Result: result, Details: details}, nil
}

// scoreAnswers compares the submitted sequence against the answer key
// position by position.
func scoreAnswers(links []models.VariationQuestion, answers []int) ([]models.AnswerDetail, int, []repositories.QuestionOutcome) {
	details := make([]models.AnswerDetail, len(links))
	outcomes := make([]repositories.QuestionOutcome, len(links))
	correctCount := 0

	for k, link := range links {
		isCorrect := answers[k] == link.Question.CorrectIndex
		if isCorrect {
			correctCount++
		}

		details[k] = models.AnswerDetail{
			QuestionID:      link.QuestionID,
			SubmittedAnswer: answers[k],
			IsCorrect:       isCorrect,
			Difficulty:      link.Question.Difficulty,
		}

		outcome := 0.0
		if isCorrect {
			outcome = 1.0
		}
		outcomes[k] = repositories.QuestionOutcome{
			QuestionID: link.QuestionID,
			Score:      outcome,
		}
	}

	return details, correctCount, outcomes
}

// submissionKeyFor derives the dedup key for a submission
func submissionKeyFor(variationID uint, studentID string, answers []int) string {
	parts := make([]string, 0, len(answers)+2)
	parts = append(parts, strconv.FormatUint(uint64(variationID), 10), studentID)
	for _, a := range answers {
		parts = append(parts, strconv.Itoa(a))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func (s *scoringService) publishScoredEvent(ctx context.Context, result *models.Result) {
	if s.publisher == nil {
		return
	}

	event := events.NewEvent(events.TypeResultScored, &events.ResultScoredEvent{
		ResultID:    result.ID,
		ExamID:      result.ExamID,
		VariationID: result.VariationID,
		StudentID:   result.StudentID,
		Score:       result.Score,
		Passed:      result.Passed,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish scored event", "error", err, "result_id", result.ID)
	}
}

// ===== READ OPERATIONS =====

func (s *scoringService) GetResult(ctx context.Context, resultID uint, userID string) (*ScoreResponse, error) {
	result, err := s.repo.Result().GetByID(ctx, nil, resultID)
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	details, err := result.AnswerDetails()
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored details: %w", err)
	}

	return &ScoreResponse{Result: result, Details: details}, nil
}

func (s *scoringService) GetResultsByExam(ctx context.Context, examID uint, filters repositories.ResultFilters, userID string) ([]*models.Result, int64, error) {
	return s.repo.Result().GetByExam(ctx, nil, examID, filters)
}

func (s *scoringService) GetResultsByStudent(ctx context.Context, studentID string, filters repositories.ResultFilters) ([]*models.Result, int64, error) {
	return s.repo.Result().GetByStudent(ctx, nil, studentID, filters)
}
