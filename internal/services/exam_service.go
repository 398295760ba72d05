package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/examforge/variation-engine/internal/events"
	"github.com/examforge/variation-engine/internal/models"
	"github.com/examforge/variation-engine/internal/repositories"
	"github.com/examforge/variation-engine/internal/validator"
)

// defaultPassingScore applies when an exam is created without one (0-10 scale)
const defaultPassingScore = 6.0

type examService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
}

func NewExamService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher) ExamService {
	return &examService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
		publisher: publisher,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *examService) Create(ctx context.Context, req *CreateExamRequest, creatorID string) (*ExamResponse, error) {
	if verrs := s.validator.ValidateExamCreate(req); len(verrs) > 0 {
		return nil, NewValidationError(verrs[0].Field, verrs[0].Message, verrs[0].Value)
	}

	subjects, err := s.repo.Subject().GetByIDs(ctx, nil, req.SubjectIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load subjects: %w", err)
	}
	if len(subjects) != len(req.SubjectIDs) {
		return nil, NewValidationError("subject_ids", "one or more subjects do not exist", req.SubjectIDs)
	}

	passingScore := defaultPassingScore
	if req.PassingScore != nil {
		passingScore = *req.PassingScore
	}

	exam := &models.Exam{
		Title:                 req.Title,
		Description:           req.Description,
		Status:                models.ExamDraft,
		TotalQuestions:        req.TotalQuestions,
		EasyCount:             req.EasyCount,
		MediumCount:           req.MediumCount,
		HardCount:             req.HardCount,
		TotalVariations:       req.TotalVariations,
		PassingScore:          passingScore,
		RandomizeQuestions:    req.RandomizeQuestions,
		RandomizeAlternatives: req.RandomizeAlternatives,
		ExpiresAt:             req.ExpiresAt,
		CreatedBy:             creatorID,
	}
	for _, subject := range subjects {
		exam.Subjects = append(exam.Subjects, *subject)
	}

	if err := s.repo.Exam().Create(ctx, nil, exam); err != nil {
		return nil, fmt.Errorf("failed to create exam: %w", err)
	}

	s.logger.InfoContext(ctx, "Exam created",
		"exam_id", exam.ID,
		"creator_id", creatorID,
		"total_variations", exam.TotalVariations)

	return s.toResponse(exam, creatorID), nil
}

func (s *examService) GetByID(ctx context.Context, id uint, userID string) (*ExamResponse, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	return s.toResponse(exam, userID), nil
}

func (s *examService) GetByIDWithDetails(ctx context.Context, id uint, userID string) (*ExamResponse, error) {
	exam, err := s.repo.Exam().GetByIDWithDetails(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	return s.toResponse(exam, userID), nil
}

func (s *examService) Update(ctx context.Context, id uint, req *UpdateExamRequest, userID string) (*ExamResponse, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if exam.CreatedBy != userID {
		return nil, NewValidationError("user_id", "only the exam owner can update it", userID)
	}

	if verrs := s.validator.ValidateExamUpdate(req, exam); len(verrs) > 0 {
		return nil, NewValidationError(verrs[0].Field, verrs[0].Message, verrs[0].Value)
	}

	applyExamUpdate(exam, req)

	if err := s.repo.Exam().Update(ctx, nil, exam); err != nil {
		return nil, fmt.Errorf("failed to update exam: %w", err)
	}

	return s.toResponse(exam, userID), nil
}

func (s *examService) Delete(ctx context.Context, id uint, userID string) error {
	exam, err := s.repo.Exam().GetByID(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("failed to get exam: %w", err)
	}
	if exam.CreatedBy != userID {
		return NewValidationError("user_id", "only the exam owner can delete it", userID)
	}

	hasResults, err := s.repo.Exam().HasResults(ctx, nil, id)
	if err != nil {
		return err
	}
	if verrs := s.validator.ValidateDeletePermission(hasResults, exam.Status); len(verrs) > 0 {
		return NewValidationError(verrs[0].Field, verrs[0].Message, verrs[0].Value)
	}

	if err := s.repo.Exam().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete exam: %w", err)
	}

	s.logger.InfoContext(ctx, "Exam deleted", "exam_id", id, "user_id", userID)
	return nil
}

// ===== LIST OPERATIONS =====

func (s *examService) List(ctx context.Context, filters repositories.ExamFilters, userID string) (*ExamListResponse, error) {
	exams, total, err := s.repo.Exam().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}
	return s.toListResponse(exams, total, filters, userID), nil
}

func (s *examService) GetByCreator(ctx context.Context, creatorID string, filters repositories.ExamFilters) (*ExamListResponse, error) {
	exams, total, err := s.repo.Exam().GetByCreator(ctx, nil, creatorID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams by creator: %w", err)
	}
	return s.toListResponse(exams, total, filters, creatorID), nil
}

// ===== LIFECYCLE MANAGEMENT =====

func (s *examService) Publish(ctx context.Context, id uint, userID string) error {
	if err := s.transition(ctx, id, userID, models.ExamPublished); err != nil {
		return err
	}

	if s.publisher != nil {
		event := events.NewEvent(events.TypeExamPublished, &events.ExamPublishedEvent{
			ExamID:      id,
			PublishedBy: userID,
		})
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish exam event", "error", err, "exam_id", id)
		}
	}

	return nil
}

func (s *examService) Unpublish(ctx context.Context, id uint, userID string) error {
	return s.transition(ctx, id, userID, models.ExamUnpublished)
}

func (s *examService) Archive(ctx context.Context, id uint, userID string) error {
	return s.transition(ctx, id, userID, models.ExamArchived)
}

func (s *examService) transition(ctx context.Context, id uint, userID string, newStatus models.ExamStatus) error {
	exam, err := s.repo.Exam().GetByID(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("failed to get exam: %w", err)
	}
	if exam.CreatedBy != userID {
		return NewValidationError("user_id", "only the exam owner can change its status", userID)
	}

	variationCount, err := s.repo.Variation().CountByExam(ctx, nil, id)
	if err != nil {
		return err
	}

	if verrs := s.validator.ValidateStatusTransition(exam.Status, newStatus, int(variationCount)); len(verrs) > 0 {
		return NewValidationError(verrs[0].Field, verrs[0].Message, verrs[0].Value)
	}

	if err := s.repo.Exam().UpdateStatus(ctx, nil, id, newStatus); err != nil {
		return fmt.Errorf("failed to update exam status: %w", err)
	}

	s.logger.InfoContext(ctx, "Exam status changed",
		"exam_id", id,
		"from", exam.Status,
		"to", newStatus,
		"user_id", userID)

	return nil
}

// ===== HELPERS =====

func (s *examService) toResponse(exam *models.Exam, userID string) *ExamResponse {
	isOwner := exam.CreatedBy == userID
	return &ExamResponse{
		Exam:          exam,
		CanEdit:       isOwner && exam.Status != models.ExamArchived,
		CanDelete:     isOwner && exam.Status != models.ExamPublished,
		CanRegenerate: isOwner && exam.CanRegenerate(),
	}
}

func (s *examService) toListResponse(exams []*models.Exam, total int64, filters repositories.ExamFilters, userID string) *ExamListResponse {
	responses := make([]*ExamResponse, len(exams))
	for i, exam := range exams {
		responses[i] = s.toResponse(exam, userID)
	}

	page := 1
	if filters.Limit > 0 {
		page = filters.Offset/filters.Limit + 1
	}

	return &ExamListResponse{
		Exams: responses,
		Total: total,
		Page:  page,
		Size:  len(responses),
	}
}

func applyExamUpdate(exam *models.Exam, req *UpdateExamRequest) {
	if req.Title != nil {
		exam.Title = *req.Title
	}
	if req.Description != nil {
		exam.Description = req.Description
	}
	if req.TotalQuestions != nil {
		exam.TotalQuestions = *req.TotalQuestions
	}
	if req.EasyCount != nil {
		exam.EasyCount = *req.EasyCount
	}
	if req.MediumCount != nil {
		exam.MediumCount = *req.MediumCount
	}
	if req.HardCount != nil {
		exam.HardCount = *req.HardCount
	}
	if req.TotalVariations != nil {
		exam.TotalVariations = *req.TotalVariations
	}
	if req.PassingScore != nil {
		exam.PassingScore = *req.PassingScore
	}
	if req.RandomizeQuestions != nil {
		exam.RandomizeQuestions = *req.RandomizeQuestions
	}
	if req.RandomizeAlternatives != nil {
		exam.RandomizeAlternatives = *req.RandomizeAlternatives
	}
	if req.ExpiresAt != nil {
		exam.ExpiresAt = req.ExpiresAt
	}
}
