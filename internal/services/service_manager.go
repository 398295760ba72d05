package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/examforge/variation-engine/internal/events"
	"github.com/examforge/variation-engine/internal/repositories"
	"github.com/examforge/variation-engine/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	// Logging configuration
	EnableDebugLogging bool
	LogLevel           slog.Level

	// Service-specific configurations
	Exam       ServiceConfig
	Question   ServiceConfig
	Generation ServiceConfig
	Scoring    ServiceConfig
	Statistics ServiceConfig

	// Global settings
	DefaultTimeout   time.Duration
	GenerationBudget time.Duration
}

type ServiceConfig struct {
	Enabled      bool
	CacheEnabled bool
	CacheTTL     time.Duration
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	db          *gorm.DB
	repo        repositories.Repository
	logger      *slog.Logger
	validator   *validator.Validator
	redisClient *redis.Client
	publisher   events.EventPublisher
	config      ServiceManagerConfig

	// Service instances
	examService       ExamService
	questionService   QuestionService
	generationService GenerationService
	scoringService    ScoringService
	statisticsService StatisticsService
	exportService     ExportService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, v *validator.Validator, redisClient *redis.Client, publisher events.EventPublisher, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{
		db:          db,
		repo:        repo,
		logger:      logger,
		validator:   v,
		redisClient: redisClient,
		publisher:   publisher,
		config:      config,
	}
}

// NewDefaultServiceManager creates a service manager with default configuration
func NewDefaultServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, v *validator.Validator, redisClient *redis.Client, publisher events.EventPublisher) ServiceManager {
	return NewServiceManager(db, repo, logger, v, redisClient, publisher, DefaultServiceManagerConfig())
}

// DefaultServiceManagerConfig returns the baseline configuration; callers
// may override individual fields before passing it to NewServiceManager.
func DefaultServiceManagerConfig() ServiceManagerConfig {
	return ServiceManagerConfig{
		EnableDebugLogging: false,
		LogLevel:           slog.LevelInfo,

		Exam: ServiceConfig{
			Enabled:      true,
			CacheEnabled: true,
			CacheTTL:     10 * time.Minute,
		},
		Question: ServiceConfig{
			Enabled:      true,
			CacheEnabled: true,
			CacheTTL:     10 * time.Minute,
		},
		Generation: ServiceConfig{
			Enabled:      true,
			CacheEnabled: false,
			CacheTTL:     0,
		},
		Scoring: ServiceConfig{
			Enabled:      true,
			CacheEnabled: false,
			CacheTTL:     0,
		},
		Statistics: ServiceConfig{
			Enabled:      true,
			CacheEnabled: true,
			CacheTTL:     5 * time.Minute,
		},

		DefaultTimeout:   30 * time.Second,
		GenerationBudget: defaultGenerationBudget,
	}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	if err := sm.initializeServices(ctx); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

func (sm *serviceManager) initializeServices(ctx context.Context) error {
	if sm.config.Exam.Enabled {
		sm.examService = NewExamService(sm.repo, sm.db, sm.logger, sm.validator, sm.publisher)
		sm.logger.Info("Exam service initialized")
	}

	if sm.config.Question.Enabled {
		sm.questionService = NewQuestionService(sm.repo, sm.db, sm.logger, sm.validator)
		sm.logger.Info("Question service initialized")
	}

	if sm.config.Generation.Enabled {
		generation := NewGenerationService(sm.repo, sm.db, sm.logger, sm.validator, sm.publisher)
		if sm.config.GenerationBudget > 0 {
			if svc, ok := generation.(*generationService); ok {
				svc.budget = sm.config.GenerationBudget
			}
		}
		sm.generationService = generation
		sm.logger.Info("Generation service initialized",
			"budget", sm.config.GenerationBudget)
	}

	if sm.config.Scoring.Enabled {
		sm.scoringService = NewScoringService(sm.repo, sm.db, sm.logger, sm.validator, sm.publisher)
		sm.logger.Info("Scoring service initialized")
	}

	if sm.config.Statistics.Enabled {
		sm.statisticsService = NewStatisticsService(sm.repo, sm.db, sm.logger, sm.redisClient)
		sm.logger.Info("Statistics service initialized")

		sm.exportService = NewExportService(sm.repo, sm.logger, sm.statisticsService)
		sm.logger.Info("Export service initialized")
	}

	return nil
}

// Service getters
func (sm *serviceManager) Exam() ExamService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	if sm.config.Exam.Enabled && sm.examService != nil {
		return sm.examService
	}

	panic("exam service not enabled or not initialized")
}

func (sm *serviceManager) Question() QuestionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	if sm.config.Question.Enabled && sm.questionService != nil {
		return sm.questionService
	}

	panic("question service not enabled or not initialized")
}

func (sm *serviceManager) Generation() GenerationService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	if sm.config.Generation.Enabled && sm.generationService != nil {
		return sm.generationService
	}

	panic("generation service not enabled or not initialized")
}

func (sm *serviceManager) Scoring() ScoringService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	if sm.config.Scoring.Enabled && sm.scoringService != nil {
		return sm.scoringService
	}

	panic("scoring service not enabled or not initialized")
}

func (sm *serviceManager) Statistics() StatisticsService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	if sm.statisticsService != nil {
		return sm.statisticsService
	}

	panic("statistics service not initialized")
}

func (sm *serviceManager) Export() ExportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	if sm.exportService != nil {
		return sm.exportService
	}

	panic("export service not initialized")
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}

	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.publisher != nil {
		if err := sm.publisher.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
		}
	}

	if err := sm.repo.Close(); err != nil {
		sm.logger.Error("Failed to close repository", "error", err)
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")

	return nil
}

// ===== UTILITY METHODS =====

// IsInitialized returns whether the service manager has been initialized
func (sm *serviceManager) IsInitialized() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.initialized
}

// WithTimeout creates a context with the default timeout
func (sm *serviceManager) WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, sm.config.DefaultTimeout)
}
