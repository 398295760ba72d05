package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/examforge/variation-engine/internal/models"
	"github.com/examforge/variation-engine/internal/services"
)

type GenerationHandler struct {
	BaseHandler
	generationService services.GenerationService
}

func NewGenerationHandler(generationService services.GenerationService, logger *slog.Logger) *GenerationHandler {
	return &GenerationHandler{
		BaseHandler:       NewBaseHandler(logger),
		generationService: generationService,
	}
}

// AvailabilityRequest asks whether the pools can satisfy a distribution
type AvailabilityRequest struct {
	SubjectIDs  []uint `json:"subject_ids" binding:"required,min=1"`
	EasyCount   int    `json:"easy_count" binding:"min=0"`
	MediumCount int    `json:"medium_count" binding:"min=0"`
	HardCount   int    `json:"hard_count" binding:"min=0"`
}

// CheckAvailability reports whether the question pools can satisfy a
// distribution, with redistribution suggestions on shortfall.
// @Summary Check question availability
// @Tags generation
// @Accept json
// @Produce json
// @Param request body AvailabilityRequest true "Distribution to check"
// @Success 200 {object} services.AvailabilityReport
// @Failure 400 {object} ErrorResponse
// @Router /generation/check-availability [post]
func (h *GenerationHandler) CheckAvailability(c *gin.Context) {
	var req AvailabilityRequest
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

	distribution := models.Distribution{
		Easy:   req.EasyCount,
		Medium: req.MediumCount,
		Hard:   req.HardCount,
	}

	report, err := h.generationService.CheckAvailability(c.Request.Context(), req.SubjectIDs, userID, distribution)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// GenerateVariations builds the full variation set for an exam
// @Summary Generate exam variations
// @Tags generation
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 201 {object} services.GenerateVariationsResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /exams/{id}/variations/generate [post]
func (h *GenerationHandler) GenerateVariations(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Generating variations", "exam_id", examID)

	result, err := h.generationService.GenerateVariations(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// GetVariation retrieves one variation with its ordered questions
// @Summary Get variation
// @Tags generation
// @Produce json
// @Param id path uint true "Variation ID"
// @Success 200 {object} services.VariationResponse
// @Failure 404 {object} ErrorResponse
// @Router /variations/{id} [get]
func (h *GenerationHandler) GetVariation(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	variation, err := h.generationService.GetVariation(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, variation)
}

// GetVariationsByExam lists all variations of an exam
// @Summary List exam variations
// @Tags generation
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {array} services.VariationResponse
// @Failure 404 {object} ErrorResponse
// @Router /exams/{id}/variations [get]
func (h *GenerationHandler) GetVariationsByExam(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	variations, err := h.generationService.GetVariationsByExam(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, variations)
}
