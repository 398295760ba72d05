package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/examforge/variation-engine/internal/repositories"
	"github.com/examforge/variation-engine/internal/services"
)

type ScoringHandler struct {
	BaseHandler
	scoringService services.ScoringService
}

func NewScoringHandler(scoringService services.ScoringService, logger *slog.Logger) *ScoringHandler {
	return &ScoringHandler{
		BaseHandler:    NewBaseHandler(logger),
		scoringService: scoringService,
	}
}

// ScoreSubmission scores one submission against a variation's answer key
// @Summary Score submission
// @Tags scoring
// @Accept json
// @Produce json
// @Param submission body services.ScoreSubmissionRequest true "Submission data"
// @Success 201 {object} services.ScoreResponse
// @Failure 400 {object} ErrorResponse
// @Router /submissions/score [post]
func (h *ScoringHandler) ScoreSubmission(c *gin.Context) {
	var req services.ScoreSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Scoring submission",
		"variation_id", req.VariationID,
		"student_id", req.StudentID)

	result, err := h.scoringService.ScoreSubmission(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// GetResult retrieves one scored result
// @Summary Get result
// @Tags scoring
// @Produce json
// @Param id path uint true "Result ID"
// @Success 200 {object} services.ScoreResponse
// @Failure 404 {object} ErrorResponse
// @Router /results/{id} [get]
func (h *ScoringHandler) GetResult(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	result, err := h.scoringService.GetResult(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetResultsByExam lists all results of an exam
// @Summary List exam results
// @Tags scoring
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} gin.H
// @Router /exams/{id}/results [get]
func (h *ScoringHandler) GetResultsByExam(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	results, total, err := h.scoringService.GetResultsByExam(c.Request.Context(), examID, h.parseResultFilters(c), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"total":   total,
	})
}

// GetResultsByStudent lists all results of a student
// @Summary List student results
// @Tags scoring
// @Produce json
// @Param student_id path string true "Student ID"
// @Success 200 {object} gin.H
// @Router /results/student/{student_id} [get]
func (h *ScoringHandler) GetResultsByStudent(c *gin.Context) {
	studentID := c.Param("student_id")
	if studentID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid student_id"})
		return
	}

	results, total, err := h.scoringService.GetResultsByStudent(c.Request.Context(), studentID, h.parseResultFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"total":   total,
	})
}

func (h *ScoringHandler) parseResultFilters(c *gin.Context) repositories.ResultFilters {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 10)

	filters := repositories.ResultFilters{
		Limit:  size,
		Offset: (page - 1) * size,
	}

	if passed := c.Query("passed"); passed == "true" || passed == "false" {
		value := passed == "true"
		filters.Passed = &value
	}

	return filters
}
