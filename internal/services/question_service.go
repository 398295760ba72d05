package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/examforge/variation-engine/internal/models"
	"github.com/examforge/variation-engine/internal/repositories"
	"github.com/examforge/variation-engine/internal/validator"
)

type questionService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewQuestionService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator) QuestionService {
	return &questionService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
	}
}

func (s *questionService) Create(ctx context.Context, req *CreateQuestionRequest, creatorID string) (*QuestionResponse, error) {
	if verrs := s.validator.ValidateQuestionCreate(req); len(verrs) > 0 {
		return nil, NewValidationError(verrs[0].Field, verrs[0].Message, verrs[0].Value)
	}

	if _, err := s.repo.Subject().GetByID(ctx, nil, req.SubjectID); err != nil {
		return nil, NewValidationError("subject_id", "subject does not exist", req.SubjectID)
	}

	alternatives := make([]models.Alternative, len(req.Alternatives))
	for i, alt := range req.Alternatives {
		alternatives[i] = models.Alternative{Text: alt.Text, Explanation: alt.Explanation}
	}
	altJSON, err := json.Marshal(alternatives)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alternatives: %w", err)
	}

	points := 0
	if req.Points != nil {
		points = *req.Points
	}

	question := &models.Question{
		Text:         req.Text,
		Alternatives: datatypes.JSON(altJSON),
		CorrectIndex: req.CorrectIndex,
		Difficulty:   req.Difficulty,
		Points:       points,
		SubjectID:    req.SubjectID,
		Active:       true,
		CreatedBy:    creatorID,
	}

	if err := s.repo.Question().Create(ctx, nil, question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	s.logger.InfoContext(ctx, "Question created",
		"question_id", question.ID,
		"subject_id", question.SubjectID,
		"difficulty", question.Difficulty)

	return s.toResponse(question, creatorID), nil
}

func (s *questionService) GetByID(ctx context.Context, id uint, userID string) (*QuestionResponse, error) {
	question, err := s.repo.Question().GetByID(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return s.toResponse(question, userID), nil
}

// Delete deactivates the question instead of removing the row, so existing
// variation links stay resolvable.
func (s *questionService) Delete(ctx context.Context, id uint, userID string) error {
	question, err := s.repo.Question().GetByID(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("failed to get question: %w", err)
	}
	if question.CreatedBy != userID {
		return NewValidationError("user_id", "only the question owner can delete it", userID)
	}

	if err := s.repo.Question().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}

	s.logger.InfoContext(ctx, "Question deactivated", "question_id", id, "user_id", userID)
	return nil
}

func (s *questionService) List(ctx context.Context, filters repositories.QuestionFilters, userID string) (*QuestionListResponse, error) {
	questions, total, err := s.repo.Question().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	responses := make([]*QuestionResponse, len(questions))
	for i, question := range questions {
		responses[i] = s.toResponse(question, userID)
	}

	page := 1
	if filters.Limit > 0 {
		page = filters.Offset/filters.Limit + 1
	}

	return &QuestionListResponse{
		Questions: responses,
		Total:     total,
		Page:      page,
		Size:      len(responses),
	}, nil
}

func (s *questionService) GetUsageStats(ctx context.Context, subjectID uint, userID string) (*repositories.QuestionUsageStats, error) {
	stats, err := s.repo.Question().GetUsageStats(ctx, nil, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get question usage stats: %w", err)
	}
	return stats, nil
}

func (s *questionService) toResponse(question *models.Question, userID string) *QuestionResponse {
	isOwner := question.CreatedBy == userID
	return &QuestionResponse{
		Question:  question,
		CanEdit:   isOwner && question.Active,
		CanDelete: isOwner && question.Active,
	}
}
