package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/examforge/variation-engine/internal/models"
	"github.com/examforge/variation-engine/internal/repositories"
	"github.com/examforge/variation-engine/internal/services"
)

type ExamHandler struct {
	BaseHandler
	examService services.ExamService
}

func NewExamHandler(examService services.ExamService, logger *slog.Logger) *ExamHandler {
	return &ExamHandler{
		BaseHandler: NewBaseHandler(logger),
		examService: examService,
	}
}

// CreateExam creates a new exam
// @Summary Create exam
// @Tags exams
// @Accept json
// @Produce json
// @Param exam body services.CreateExamRequest true "Exam data"
// @Success 201 {object} services.ExamResponse
// @Failure 400 {object} ErrorResponse
// @Router /exams [post]
func (h *ExamHandler) CreateExam(c *gin.Context) {
	var req services.CreateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, exam)
}

// GetExam retrieves an exam by ID
// @Summary Get exam
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} services.ExamResponse
// @Failure 404 {object} ErrorResponse
// @Router /exams/{id} [get]
func (h *ExamHandler) GetExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// GetExamWithDetails retrieves an exam with subjects and variations
// @Summary Get exam with details
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} services.ExamResponse
// @Failure 404 {object} ErrorResponse
// @Router /exams/{id}/details [get]
func (h *ExamHandler) GetExamWithDetails(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	exam, err := h.examService.GetByIDWithDetails(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// UpdateExam updates an existing exam
// @Summary Update exam
// @Tags exams
// @Accept json
// @Produce json
// @Param id path uint true "Exam ID"
// @Param exam body services.UpdateExamRequest true "Exam update data"
// @Success 200 {object} services.ExamResponse
// @Failure 400 {object} ErrorResponse
// @Router /exams/{id} [put]
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.UpdateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	exam, err := h.examService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// DeleteExam deletes an exam
// @Summary Delete exam
// @Tags exams
// @Param id path uint true "Exam ID"
// @Success 200 {object} SuccessResponse
// @Failure 409 {object} ErrorResponse
// @Router /exams/{id} [delete]
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.examService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Exam deleted successfully"})
}

// ListExams lists exams with filters
// @Summary List exams
// @Tags exams
// @Produce json
// @Param page query int false "Page number"
// @Param size query int false "Page size"
// @Param status query string false "Exam status filter"
// @Success 200 {object} services.ExamListResponse
// @Router /exams [get]
func (h *ExamHandler) ListExams(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	exams, err := h.examService.List(c.Request.Context(), h.parseExamFilters(c), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exams)
}

// GetExamsByCreator lists exams owned by a creator
// @Summary List exams by creator
// @Tags exams
// @Produce json
// @Param creator_id path string true "Creator ID"
// @Success 200 {object} services.ExamListResponse
// @Router /exams/creator/{creator_id} [get]
func (h *ExamHandler) GetExamsByCreator(c *gin.Context) {
	creatorID := c.Param("creator_id")
	if creatorID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid creator_id"})
		return
	}

	exams, err := h.examService.GetByCreator(c.Request.Context(), creatorID, h.parseExamFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exams)
}

// PublishExam transitions an exam to published
// @Summary Publish exam
// @Tags exams
// @Param id path uint true "Exam ID"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /exams/{id}/publish [post]
func (h *ExamHandler) PublishExam(c *gin.Context) {
	h.lifecycle(c, h.examService.Publish, "Exam published successfully")
}

// UnpublishExam transitions an exam back to unpublished
// @Summary Unpublish exam
// @Tags exams
// @Param id path uint true "Exam ID"
// @Success 200 {object} SuccessResponse
// @Router /exams/{id}/unpublish [post]
func (h *ExamHandler) UnpublishExam(c *gin.Context) {
	h.lifecycle(c, h.examService.Unpublish, "Exam unpublished successfully")
}

// ArchiveExam transitions an exam to archived
// @Summary Archive exam
// @Tags exams
// @Param id path uint true "Exam ID"
// @Success 200 {object} SuccessResponse
// @Router /exams/{id}/archive [post]
func (h *ExamHandler) ArchiveExam(c *gin.Context) {
	h.lifecycle(c, h.examService.Archive, "Exam archived successfully")
}

func (h *ExamHandler) lifecycle(c *gin.Context, op func(ctx context.Context, id uint, userID string) error, message string) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := op(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: message})
}

func (h *ExamHandler) parseExamFilters(c *gin.Context) repositories.ExamFilters {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 10)

	filters := repositories.ExamFilters{
		Limit:  size,
		Offset: (page - 1) * size,
	}

	if status := c.Query("status"); status != "" {
		examStatus := models.ExamStatus(status)
		filters.Status = &examStatus
	}

	if creatorID := c.Query("creator_id"); creatorID != "" {
		filters.CreatedBy = &creatorID
	}

	if subjectID := h.parseIntQuery(c, "subject_id", 0); subjectID > 0 {
		id := uint(subjectID)
		filters.SubjectID = &id
	}

	return filters
}
