package services

import (
	"context"
	"time"

	"github.com/examforge/variation-engine/internal/models"
	"github.com/examforge/variation-engine/internal/repositories"
	"github.com/examforge/variation-engine/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use business validator types
type CreateExamRequest = validator.ExamCreateRequest
type UpdateExamRequest = validator.ExamUpdateRequest
type CreateQuestionRequest = validator.QuestionCreateRequest
type ScoreSubmissionRequest = validator.ScoreSubmissionRequest

type ExamResponse struct {
	*models.Exam
	CanEdit       bool `json:"can_edit"`
	CanDelete     bool `json:"can_delete"`
	CanRegenerate bool `json:"can_regenerate"`
}

type ExamListResponse struct {
	Exams []*ExamResponse `json:"exams"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Size  int             `json:"size"`
}

type QuestionResponse struct {
	*models.Question
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

type QuestionListResponse struct {
	Questions []*QuestionResponse `json:"questions"`
	Total     int64               `json:"total"`
	Page      int                 `json:"page"`
	Size      int                 `json:"size"`
}

// ===== GENERATION RELATED DTOs =====

// AvailabilityReport is the precondition check result for generation
type AvailabilityReport struct {
	CanCreate   bool                           `json:"can_create"`
	Required    map[models.DifficultyLevel]int `json:"required"`
	Available   map[models.DifficultyLevel]int `json:"available"`
	Missing     map[models.DifficultyLevel]int `json:"missing"`
	Suggestions map[models.DifficultyLevel]int `json:"suggestions,omitempty"`
}

type GenerateVariationsResponse struct {
	ExamID     uint                `json:"exam_id"`
	Variations []*models.Variation `json:"variations"`
	Fallbacks  int                 `json:"fallbacks"` // variations that kept a duplicate signature
	Duration   time.Duration       `json:"duration"`
}

type VariationResponse struct {
	*models.Variation
	QuestionCount int `json:"question_count"`
}

// ===== SCORING RELATED DTOs =====

type ScoreResponse struct {
	*models.Result
	Details []models.AnswerDetail `json:"answer_details"`
}

// ===== STATISTICS RELATED DTOs =====

type OverallStats struct {
	Count        int     `json:"count"`
	AverageScore float64 `json:"average_score"`
	MinScore     float64 `json:"min_score"`
	MaxScore     float64 `json:"max_score"`
	PassedCount  int     `json:"passed_count"`
	PassRate     float64 `json:"pass_rate"`
	AverageTime  float64 `json:"average_time"` // seconds
}

type VariationStats struct {
	VariationID     uint   `json:"variation_id"`
	VariationLetter string `json:"variation_letter"`
	OverallStats
}

type ScoreBucket struct {
	Bucket int    `json:"bucket"`
	Label  string `json:"label"` // e.g. "70-80"
	Count  int    `json:"count"`
}

type DifficultyStats struct {
	Difficulty models.DifficultyLevel `json:"difficulty"`
	Total      int                    `json:"total"`
	Correct    int                    `json:"correct"`
	Percentage float64                `json:"percentage"`
}

type ExamStatistics struct {
	ExamID                uint              `json:"exam_id"`
	Overall               OverallStats      `json:"overall"`
	PerVariation          []VariationStats  `json:"per_variation"`
	ScoreDistribution     []ScoreBucket     `json:"score_distribution"`
	DifficultyPerformance []DifficultyStats `json:"difficulty_performance"`
	ComputedAt            time.Time         `json:"computed_at"`
}

// ===== SERVICE INTERFACES =====

type ExamService interface {
	// Core CRUD operations
	Create(ctx context.Context, req *CreateExamRequest, creatorID string) (*ExamResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*ExamResponse, error)
	GetByIDWithDetails(ctx context.Context, id uint, userID string) (*ExamResponse, error)
	Update(ctx context.Context, id uint, req *UpdateExamRequest, userID string) (*ExamResponse, error)
	Delete(ctx context.Context, id uint, userID string) error

	// List operations
	List(ctx context.Context, filters repositories.ExamFilters, userID string) (*ExamListResponse, error)
	GetByCreator(ctx context.Context, creatorID string, filters repositories.ExamFilters) (*ExamListResponse, error)

	// Lifecycle management
	Publish(ctx context.Context, id uint, userID string) error
	Unpublish(ctx context.Context, id uint, userID string) error
	Archive(ctx context.Context, id uint, userID string) error
}

type QuestionService interface {
	// Core CRUD operations
	Create(ctx context.Context, req *CreateQuestionRequest, creatorID string) (*QuestionResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*QuestionResponse, error)
	Delete(ctx context.Context, id uint, userID string) error

	// List operations
	List(ctx context.Context, filters repositories.QuestionFilters, userID string) (*QuestionListResponse, error)

	// Statistics
	GetUsageStats(ctx context.Context, subjectID uint, userID string) (*repositories.QuestionUsageStats, error)
}

type GenerationService interface {
	// CheckAvailability reports whether the pools can satisfy the exam's
	// distribution, with redistribution suggestions on shortfall.
	CheckAvailability(ctx context.Context, subjectIDs []uint, ownerID string, distribution models.Distribution) (*AvailabilityReport, error)

	// GenerateVariations builds and persists all variations of an exam in
	// one transaction. Regeneration replaces the previous variation set.
	GenerateVariations(ctx context.Context, examID uint, userID string) (*GenerateVariationsResponse, error)

	// Read operations
	GetVariation(ctx context.Context, variationID uint, userID string) (*VariationResponse, error)
	GetVariationsByExam(ctx context.Context, examID uint, userID string) ([]*VariationResponse, error)
}

type ScoringService interface {
	// ScoreSubmission scores one submission against one variation's
	// answer key. Idempotent per (variation, student, answers) tuple.
	ScoreSubmission(ctx context.Context, req *ScoreSubmissionRequest) (*ScoreResponse, error)

	// Read operations
	GetResult(ctx context.Context, resultID uint, userID string) (*ScoreResponse, error)
	GetResultsByExam(ctx context.Context, examID uint, filters repositories.ResultFilters, userID string) ([]*models.Result, int64, error)
	GetResultsByStudent(ctx context.Context, studentID string, filters repositories.ResultFilters) ([]*models.Result, int64, error)
}

type StatisticsService interface {
	// GetExamStatistics folds all results of an exam into the four
	// aggregate views. Pure with respect to the result set; cached.
	GetExamStatistics(ctx context.Context, examID uint, userID string) (*ExamStatistics, error)

	// Aggregate computes statistics from an in-memory result set without
	// touching storage. Exposed for recomputation and testing.
	Aggregate(examID uint, results []*models.Result) (*ExamStatistics, error)
}

type ExportService interface {
	// ExportExamStatistics renders an exam's statistics as an Excel workbook
	ExportExamStatistics(ctx context.Context, examID uint, userID string) ([]byte, string, error)

	// ExportResults renders an exam's raw result list as an Excel workbook
	ExportResults(ctx context.Context, examID uint, userID string) ([]byte, string, error)
}

// ServiceManager provides access to all services with lifecycle management
type ServiceManager interface {
	Exam() ExamService
	Question() QuestionService
	Generation() GenerationService
	Scoring() ScoringService
	Statistics() StatisticsService
	Export() ExportService

	Initialize(ctx context.Context) error
	IsInitialized() bool
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
