package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/examforge/variation-engine/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type StatisticsHandler struct {
	BaseHandler
	statisticsService services.StatisticsService
	exportService     services.ExportService
}

func NewStatisticsHandler(statisticsService services.StatisticsService, exportService services.ExportService, logger *slog.Logger) *StatisticsHandler {
	return &StatisticsHandler{
		BaseHandler:       NewBaseHandler(logger),
		statisticsService: statisticsService,
		exportService:     exportService,
	}
}

// GetExamStatistics returns the aggregate views for an exam
// @Summary Get exam statistics
// @Tags statistics
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} services.ExamStatistics
// @Failure 404 {object} ErrorResponse
// @Router /exams/{id}/statistics [get]
func (h *StatisticsHandler) GetExamStatistics(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	stats, err := h.statisticsService.GetExamStatistics(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ExportStatistics downloads the statistics workbook
// @Summary Export exam statistics
// @Tags statistics
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Exam ID"
// @Success 200 {file} file
// @Router /exams/{id}/statistics/export [get]
func (h *StatisticsHandler) ExportStatistics(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	data, filename, err := h.exportService.ExportExamStatistics(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// ExportResults downloads the raw result list workbook
// @Summary Export exam results
// @Tags statistics
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Exam ID"
// @Success 200 {file} file
// @Router /exams/{id}/results/export [get]
func (h *StatisticsHandler) ExportResults(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	data, filename, err := h.exportService.ExportResults(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, xlsxContentType, data)
}
