package services

import (
	"context"
	"testing"

	"github.com/examforge/variation-engine/internal/models"
	"github.com/examforge/variation-engine/internal/validator"
)

func TestQuestionService_Create(t *testing.T) {
	ctx := context.Background()

	valid := func() *CreateQuestionRequest {
		return &CreateQuestionRequest{
			Text: "Which layer does TCP operate on?",
			Alternatives: []validator.AlternativeRequest{
				{Text: "Transport"}, {Text: "Network"}, {Text: "Application"},
			},
			CorrectIndex: 0,
			Difficulty:   models.DifficultyMedium,
			SubjectID:    1,
		}
	}

	t.Run("Valid", func(t *testing.T) {
		repo := newMockRepository()
		repo.subject.subjects[1] = &models.Subject{ID: 1, Name: "Networking"}
		service := NewQuestionService(repo, nil, newTestLogger(), validator.New())

		resp, err := service.Create(ctx, valid(), "teacher-1")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		if !resp.Active {
			t.Error("new question must be active")
		}
		if resp.Points != 0 {
			t.Errorf("points = %d, want 0 (difficulty default applies at link time)", resp.Points)
		}
		if resp.ResolvedPoints() != 2 {
			t.Errorf("resolved points = %d, want 2 for medium", resp.ResolvedPoints())
		}
		alts, err := resp.AlternativeList()
		if err != nil || len(alts) != 3 {
			t.Errorf("alternatives = %v (%v), want 3", alts, err)
		}
		if !resp.CanEdit || !resp.CanDelete {
			t.Error("owner flags should be set on an active question")
		}
	})

	t.Run("UnknownSubject", func(t *testing.T) {
		service := NewQuestionService(newMockRepository(), nil, newTestLogger(), validator.New())
		if _, err := service.Create(ctx, valid(), "teacher-1"); !IsValidationError(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("CorrectIndexOutOfBounds", func(t *testing.T) {
		repo := newMockRepository()
		repo.subject.subjects[1] = &models.Subject{ID: 1, Name: "Networking"}
		service := NewQuestionService(repo, nil, newTestLogger(), validator.New())

		req := valid()
		req.CorrectIndex = 5
		if _, err := service.Create(ctx, req, "teacher-1"); !IsValidationError(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}

func TestQuestionService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("DeactivatesInsteadOfRemoving", func(t *testing.T) {
		repo := newMockRepository()
		repo.question.questions[1] = &models.Question{ID: 1, Active: true, CreatedBy: "teacher-1"}
		service := NewQuestionService(repo, nil, newTestLogger(), validator.New())

		if err := service.Delete(ctx, 1, "teacher-1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		question, ok := repo.question.questions[1]
		if !ok {
			t.Fatal("question row removed, expected deactivation")
		}
		if question.Active {
			t.Error("question still active after delete")
		}
	})

	t.Run("NonOwnerRejected", func(t *testing.T) {
		repo := newMockRepository()
		repo.question.questions[1] = &models.Question{ID: 1, Active: true, CreatedBy: "teacher-1"}
		service := NewQuestionService(repo, nil, newTestLogger(), validator.New())

		if err := service.Delete(ctx, 1, "someone-else"); !IsValidationError(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}
