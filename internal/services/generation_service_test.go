package services

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/examforge/variation-engine/internal/events"
	"github.com/examforge/variation-engine/internal/models"
	"github.com/examforge/variation-engine/internal/validator"
)

func newTestGenerationService(repo *mockRepository, publisher events.EventPublisher, seed int64) *generationService {
	return &generationService{
		repo:      repo,
		logger:    newTestLogger(),
		validator: validator.New(),
		publisher: publisher,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(seed))
		},
		budget: 30 * time.Second,
	}
}

func seedExam(repo *mockRepository, exam *models.Exam) *models.Exam {
	subject := &models.Subject{ID: 1, Name: "Networking", CreatedBy: exam.CreatedBy}
	repo.subject.subjects[1] = subject
	exam.Subjects = []models.Subject{*subject}
	repo.exam.exams[exam.ID] = exam
	return exam
}

func seedPools(repo *mockRepository, easy, medium, hard int) {
	repo.question.pools[models.DifficultyEasy] = makePool(models.DifficultyEasy, 1, easy)
	repo.question.pools[models.DifficultyMedium] = makePool(models.DifficultyMedium, 1000, medium)
	repo.question.pools[models.DifficultyHard] = makePool(models.DifficultyHard, 2000, hard)
}

func TestGenerationService_CheckAvailability(t *testing.T) {
	ctx := context.Background()

	t.Run("Shortfall", func(t *testing.T) {
		repo := newMockRepository()
		seedPools(repo, 2, 10, 10)
		service := newTestGenerationService(repo, nil, 1)

		report, err := service.CheckAvailability(ctx, []uint{1}, "teacher-1", models.Distribution{Easy: 5, Medium: 3, Hard: 2})
		if err != nil {
			t.Fatalf("CheckAvailability failed: %v", err)
		}

		if report.CanCreate {
			t.Error("expected CanCreate=false with only 2 easy questions")
		}
		if report.Required[models.DifficultyEasy] != 5 {
			t.Errorf("required easy = %d, want 5", report.Required[models.DifficultyEasy])
		}
		if report.Available[models.DifficultyEasy] != 2 {
			t.Errorf("available easy = %d, want 2", report.Available[models.DifficultyEasy])
		}
		if report.Missing[models.DifficultyEasy] != 3 {
			t.Errorf("missing easy = %d, want 3", report.Missing[models.DifficultyEasy])
		}

		// Enough total capacity, so a redistribution must be proposed
		if report.Suggestions == nil {
			t.Fatal("expected redistribution suggestions")
		}
		total := 0
		for _, level := range models.Difficulties {
			if report.Suggestions[level] > report.Available[level] {
				t.Errorf("suggestion for %s exceeds availability: %d > %d",
					level, report.Suggestions[level], report.Available[level])
			}
			total += report.Suggestions[level]
		}
		if total != 10 {
			t.Errorf("suggestions sum to %d, want 10", total)
		}
	})

	t.Run("Sufficient", func(t *testing.T) {
		repo := newMockRepository()
		seedPools(repo, 10, 10, 10)
		service := newTestGenerationService(repo, nil, 1)

		report, err := service.CheckAvailability(ctx, []uint{1}, "teacher-1", models.Distribution{Easy: 5, Medium: 3, Hard: 2})
		if err != nil {
			t.Fatalf("CheckAvailability failed: %v", err)
		}
		if !report.CanCreate {
			t.Error("expected CanCreate=true")
		}
		if report.Suggestions != nil {
			t.Error("no suggestions expected when the distribution fits")
		}
	})

	t.Run("ScopedToOwner", func(t *testing.T) {
		repo := newMockRepository()
		seedPools(repo, 2, 3, 3)
		foreign := makePool(models.DifficultyEasy, 5000, 8)
		for _, q := range foreign {
			q.CreatedBy = "teacher-2"
		}
		repo.question.pools[models.DifficultyEasy] = append(repo.question.pools[models.DifficultyEasy], foreign...)
		service := newTestGenerationService(repo, nil, 1)

		report, err := service.CheckAvailability(ctx, []uint{1}, "teacher-1", models.Distribution{Easy: 5, Medium: 3, Hard: 2})
		if err != nil {
			t.Fatalf("CheckAvailability failed: %v", err)
		}
		if report.Available[models.DifficultyEasy] != 2 {
			t.Errorf("available easy = %d, want 2: another creator's questions leaked in", report.Available[models.DifficultyEasy])
		}
		if report.CanCreate {
			t.Error("another creator's questions must not satisfy availability")
		}
	})

	t.Run("NoSubjects", func(t *testing.T) {
		service := newTestGenerationService(newMockRepository(), nil, 1)
		_, err := service.CheckAvailability(ctx, nil, "teacher-1", models.Distribution{Easy: 1})
		if !IsValidationError(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}

func TestSuggestRedistribution(t *testing.T) {
	t.Run("ProportionalWithinCaps", func(t *testing.T) {
		required := map[models.DifficultyLevel]int{
			models.DifficultyEasy: 5, models.DifficultyMedium: 3, models.DifficultyHard: 2,
		}
		available := map[models.DifficultyLevel]int{
			models.DifficultyEasy: 2, models.DifficultyMedium: 10, models.DifficultyHard: 10,
		}

		suggestions := suggestRedistribution(required, available)
		if suggestions == nil {
			t.Fatal("expected suggestions")
		}

		total := 0
		for _, level := range models.Difficulties {
			if suggestions[level] > available[level] {
				t.Errorf("%s suggestion %d exceeds availability %d", level, suggestions[level], available[level])
			}
			total += suggestions[level]
		}
		if total != 10 {
			t.Errorf("suggestions sum to %d, want 10", total)
		}
	})

	t.Run("TotalShortfallReturnsNil", func(t *testing.T) {
		required := map[models.DifficultyLevel]int{models.DifficultyEasy: 10}
		available := map[models.DifficultyLevel]int{models.DifficultyEasy: 4}
		if got := suggestRedistribution(required, available); got != nil {
			t.Errorf("expected nil when total availability cannot cover the request, got %v", got)
		}
	})
}

func TestGenerationService_GenerateVariations(t *testing.T) {
	ctx := context.Background()

	t.Run("HappyPath", func(t *testing.T) {
		repo := newMockRepository()
		seedPools(repo, 10, 10, 10)
		exam := seedExam(repo, &models.Exam{
			ID:              1,
			Title:           "Midterm",
			Status:          models.ExamDraft,
			TotalQuestions:  5,
			EasyCount:       2,
			MediumCount:     2,
			HardCount:       1,
			TotalVariations: 4,
			PassingScore:    6,
			CreatedBy:       "teacher-1",
		})
		publisher := events.NewMockEventPublisher(newTestLogger())
		service := newTestGenerationService(repo, publisher, 42)

		resp, err := service.GenerateVariations(ctx, exam.ID, "teacher-1")
		if err != nil {
			t.Fatalf("GenerateVariations failed: %v", err)
		}

		if len(resp.Variations) != 4 {
			t.Fatalf("expected 4 variations, got %d", len(resp.Variations))
		}
		if resp.Fallbacks != 0 {
			t.Errorf("expected no fallbacks with a 30-question pool, got %d", resp.Fallbacks)
		}

		wantLetters := []string{"A", "B", "C", "D"}
		for i, variation := range resp.Variations {
			if variation.VariationNumber != i+1 {
				t.Errorf("variation %d: number = %d, want %d", i, variation.VariationNumber, i+1)
			}
			if variation.VariationLetter != wantLetters[i] {
				t.Errorf("variation %d: letter = %s, want %s", i, variation.VariationLetter, wantLetters[i])
			}

			links := repo.variation.links[variation.ID]
			if len(links) != 5 {
				t.Fatalf("variation %d: expected 5 question links, got %d", i, len(links))
			}
			for pos, link := range links {
				if link.Order != pos+1 {
					t.Errorf("variation %d link %d: order = %d, want %d", i, pos, link.Order, pos+1)
				}
				if link.Points < 1 || link.Points > 3 {
					t.Errorf("variation %d link %d: unresolved points %d", i, pos, link.Points)
				}
			}

			// QR payload must be patched with the real variation id
			payload := repo.variation.qrPayloads[variation.ID]
			if payload == nil {
				t.Fatalf("variation %d: QR payload never patched", i)
			}
			var qr models.QRPayload
			if err := json.Unmarshal(payload, &qr); err != nil {
				t.Fatalf("variation %d: invalid QR payload: %v", i, err)
			}
			if qr.VariationID != variation.ID || qr.ExamID != exam.ID {
				t.Errorf("variation %d: QR payload ids mismatch: %+v", i, qr)
			}
			if qr.Type != models.QRPayloadType {
				t.Errorf("variation %d: QR type = %s", i, qr.Type)
			}
			if qr.Nonce == "" {
				t.Errorf("variation %d: QR nonce empty", i)
			}
		}

		// Counter deltas must match each question's occurrence count
		// across the persisted set
		wantUsage := make(map[uint]int)
		for _, links := range repo.variation.links {
			for _, link := range links {
				wantUsage[link.QuestionID]++
			}
		}
		gotUsage := repo.question.usageTotals()
		if len(gotUsage) != len(wantUsage) {
			t.Errorf("usage recorded for %d questions, want %d", len(gotUsage), len(wantUsage))
		}
		for id, want := range wantUsage {
			if gotUsage[id] != want {
				t.Errorf("question %d: usage delta = %d, want %d", id, gotUsage[id], want)
			}
		}

		published := publisher.GetPublishedEvents()
		if len(published) != 1 {
			t.Fatalf("expected 1 generation event, got %d", len(published))
		}
		if published[0].Type != events.TypeVariationsGenerated {
			t.Errorf("event type = %s, want %s", published[0].Type, events.TypeVariationsGenerated)
		}
	})

	t.Run("SharedQuestionCountedPerVariation", func(t *testing.T) {
		repo := newMockRepository()
		// Pool exactly covers the distribution, so every variation
		// falls back to the same five questions
		seedPools(repo, 2, 2, 1)
		exam := seedExam(repo, &models.Exam{
			ID:              7,
			Status:          models.ExamDraft,
			TotalQuestions:  5,
			EasyCount:       2,
			MediumCount:     2,
			HardCount:       1,
			TotalVariations: 4,
			CreatedBy:       "teacher-1",
		})
		service := newTestGenerationService(repo, nil, 42)

		if _, err := service.GenerateVariations(ctx, exam.ID, "teacher-1"); err != nil {
			t.Fatalf("GenerateVariations failed: %v", err)
		}

		totals := repo.question.usageTotals()
		if len(totals) != 5 {
			t.Fatalf("expected usage deltas for 5 questions, got %d", len(totals))
		}
		for id, delta := range totals {
			if delta != 4 {
				t.Errorf("question %d included in 4 variations but counted %d time(s)", id, delta)
			}
		}
		// Uniform delta collapses into a single batched statement
		if len(repo.question.incremented) != 1 {
			t.Errorf("expected one batched usage statement, got %d", len(repo.question.incremented))
		}
	})

	t.Run("OnlyOwnerQuestionsSelected", func(t *testing.T) {
		repo := newMockRepository()
		seedPools(repo, 4, 4, 2)
		for i, level := range models.Difficulties {
			foreign := makePool(level, uint(5000+1000*i), 6)
			for _, q := range foreign {
				q.CreatedBy = "teacher-2"
			}
			repo.question.pools[level] = append(repo.question.pools[level], foreign...)
		}
		exam := seedExam(repo, &models.Exam{
			ID:              8,
			Status:          models.ExamDraft,
			TotalQuestions:  5,
			EasyCount:       2,
			MediumCount:     2,
			HardCount:       1,
			TotalVariations: 2,
			CreatedBy:       "teacher-1",
		})
		service := newTestGenerationService(repo, nil, 42)

		resp, err := service.GenerateVariations(ctx, exam.ID, "teacher-1")
		if err != nil {
			t.Fatalf("GenerateVariations failed: %v", err)
		}

		for _, variation := range resp.Variations {
			for _, link := range repo.variation.links[variation.ID] {
				if link.QuestionID >= 5000 {
					t.Errorf("variation %s picked question %d from another creator's bank",
						variation.VariationLetter, link.QuestionID)
				}
			}
		}
	})

	t.Run("InsufficientQuestions", func(t *testing.T) {
		repo := newMockRepository()
		seedPools(repo, 2, 10, 10)
		exam := seedExam(repo, &models.Exam{
			ID:              2,
			Status:          models.ExamDraft,
			TotalQuestions:  10,
			EasyCount:       5,
			MediumCount:     3,
			HardCount:       2,
			TotalVariations: 3,
			CreatedBy:       "teacher-1",
		})
		service := newTestGenerationService(repo, nil, 1)

		_, err := service.GenerateVariations(ctx, exam.ID, "teacher-1")
		if !IsInsufficientQuestions(err) {
			t.Fatalf("expected InsufficientQuestionsError, got %v", err)
		}

		var insufficient *InsufficientQuestionsError
		if !errors.As(err, &insufficient) {
			t.Fatal("failed to unwrap error")
		}
		if insufficient.Missing[models.DifficultyEasy] != 3 {
			t.Errorf("missing easy = %d, want 3", insufficient.Missing[models.DifficultyEasy])
		}
		if len(repo.variation.variations) != 0 {
			t.Error("no variations may be persisted on shortfall")
		}
	})

	t.Run("PublishedExamRejected", func(t *testing.T) {
		repo := newMockRepository()
		seedPools(repo, 10, 10, 10)
		exam := seedExam(repo, &models.Exam{
			ID:              3,
			Status:          models.ExamPublished,
			TotalQuestions:  5,
			EasyCount:       2,
			MediumCount:     2,
			HardCount:       1,
			TotalVariations: 2,
			CreatedBy:       "teacher-1",
		})
		service := newTestGenerationService(repo, nil, 1)

		_, err := service.GenerateVariations(ctx, exam.ID, "teacher-1")
		if err != ErrExamPublished {
			t.Errorf("expected ErrExamPublished, got %v", err)
		}
	})

	t.Run("NotOwnerRejected", func(t *testing.T) {
		repo := newMockRepository()
		seedPools(repo, 10, 10, 10)
		exam := seedExam(repo, &models.Exam{
			ID:              4,
			Status:          models.ExamDraft,
			TotalQuestions:  5,
			EasyCount:       2,
			MediumCount:     2,
			HardCount:       1,
			TotalVariations: 2,
			CreatedBy:       "teacher-1",
		})
		service := newTestGenerationService(repo, nil, 1)

		_, err := service.GenerateVariations(ctx, exam.ID, "someone-else")
		if !IsValidationError(err) {
			t.Errorf("expected validation error for non-owner, got %v", err)
		}
	})

	t.Run("RegenerationReplacesPreviousSet", func(t *testing.T) {
		repo := newMockRepository()
		seedPools(repo, 10, 10, 10)
		exam := seedExam(repo, &models.Exam{
			ID:              5,
			Status:          models.ExamDraft,
			TotalQuestions:  5,
			EasyCount:       2,
			MediumCount:     2,
			HardCount:       1,
			TotalVariations: 3,
			CreatedBy:       "teacher-1",
		})
		service := newTestGenerationService(repo, nil, 42)

		if _, err := service.GenerateVariations(ctx, exam.ID, "teacher-1"); err != nil {
			t.Fatalf("first generation failed: %v", err)
		}
		if _, err := service.GenerateVariations(ctx, exam.ID, "teacher-1"); err != nil {
			t.Fatalf("regeneration failed: %v", err)
		}

		variations, _ := repo.variation.GetByExam(ctx, nil, exam.ID)
		if len(variations) != 3 {
			t.Errorf("expected the old set replaced, got %d variations", len(variations))
		}
		if len(repo.variation.deletes) != 2 {
			t.Errorf("expected DeleteByExam per run, got %d calls", len(repo.variation.deletes))
		}

		// Dropping the first set unwinds its counters, so the net deltas
		// reflect only the surviving variations
		wantUsage := make(map[uint]int)
		for _, links := range repo.variation.links {
			for _, link := range links {
				wantUsage[link.QuestionID]++
			}
		}
		for id, got := range repo.question.usageTotals() {
			if got != wantUsage[id] {
				t.Errorf("question %d: net usage = %d, want %d", id, got, wantUsage[id])
			}
			if got < 0 {
				t.Errorf("question %d: negative net usage %d", id, got)
			}
		}
	})

	t.Run("TimeoutRollsBack", func(t *testing.T) {
		repo := newMockRepository()
		seedPools(repo, 10, 10, 10)
		exam := seedExam(repo, &models.Exam{
			ID:              6,
			Status:          models.ExamDraft,
			TotalQuestions:  5,
			EasyCount:       2,
			MediumCount:     2,
			HardCount:       1,
			TotalVariations: 10,
			CreatedBy:       "teacher-1",
		})
		service := newTestGenerationService(repo, nil, 1)
		service.budget = -time.Second // already past the deadline

		_, err := service.GenerateVariations(ctx, exam.ID, "teacher-1")
		if !IsGenerationTimeout(err) {
			t.Fatalf("expected GenerationTimeoutError, got %v", err)
		}
	})
}
