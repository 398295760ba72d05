package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/examforge/variation-engine/internal/services"
)

type HandlerManager struct {
	examHandler       *ExamHandler
	questionHandler   *QuestionHandler
	generationHandler *GenerationHandler
	scoringHandler    *ScoringHandler
	statisticsHandler *StatisticsHandler
}

func NewHandlerManager(serviceManager services.ServiceManager, logger *slog.Logger) *HandlerManager {
	return &HandlerManager{
		examHandler:       NewExamHandler(serviceManager.Exam(), logger),
		questionHandler:   NewQuestionHandler(serviceManager.Question(), logger),
		generationHandler: NewGenerationHandler(serviceManager.Generation(), logger),
		scoringHandler:    NewScoringHandler(serviceManager.Scoring(), logger),
		statisticsHandler: NewStatisticsHandler(serviceManager.Statistics(), serviceManager.Export(), logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.Use(IdentityMiddleware())
	{
		// Exam routes
		exams := v1.Group("/exams")
		{
			exams.POST("", hm.examHandler.CreateExam)
			exams.GET("", hm.examHandler.ListExams)
			exams.GET("/:id", hm.examHandler.GetExam)
			exams.GET("/:id/details", hm.examHandler.GetExamWithDetails)
			exams.PUT("/:id", hm.examHandler.UpdateExam)
			exams.DELETE("/:id", hm.examHandler.DeleteExam)

			// Lifecycle
			exams.POST("/:id/publish", hm.examHandler.PublishExam)
			exams.POST("/:id/unpublish", hm.examHandler.UnpublishExam)
			exams.POST("/:id/archive", hm.examHandler.ArchiveExam)

			// Variations
			exams.POST("/:id/variations/generate", hm.generationHandler.GenerateVariations)
			exams.GET("/:id/variations", hm.generationHandler.GetVariationsByExam)

			// Results and statistics
			exams.GET("/:id/results", hm.scoringHandler.GetResultsByExam)
			exams.GET("/:id/results/export", hm.statisticsHandler.ExportResults)
			exams.GET("/:id/statistics", hm.statisticsHandler.GetExamStatistics)
			exams.GET("/:id/statistics/export", hm.statisticsHandler.ExportStatistics)

			// Creator-specific routes
			exams.GET("/creator/:creator_id", hm.examHandler.GetExamsByCreator)
		}

		// Question routes
		questions := v1.Group("/questions")
		{
			questions.POST("", hm.questionHandler.CreateQuestion)
			questions.GET("", hm.questionHandler.ListQuestions)
			questions.GET("/:id", hm.questionHandler.GetQuestion)
			questions.DELETE("/:id", hm.questionHandler.DeleteQuestion)
			questions.GET("/subject/:subject_id/usage-stats", hm.questionHandler.GetQuestionUsageStats)
		}

		// Generation routes
		generation := v1.Group("/generation")
		{
			generation.POST("/check-availability", hm.generationHandler.CheckAvailability)
		}

		// Variation routes
		variations := v1.Group("/variations")
		{
			variations.GET("/:id", hm.generationHandler.GetVariation)
		}

		// Scoring routes
		submissions := v1.Group("/submissions")
		{
			submissions.POST("/score", hm.scoringHandler.ScoreSubmission)
		}

		results := v1.Group("/results")
		{
			results.GET("/:id", hm.scoringHandler.GetResult)
			results.GET("/student/:student_id", hm.scoringHandler.GetResultsByStudent)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "variation-engine",
		})
	})
}
