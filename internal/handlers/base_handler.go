package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/examforge/variation-engine/internal/services"
)

type ErrorResponse struct {
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// BaseHandler carries helpers shared by all route handlers.
type BaseHandler struct {
	logger *slog.Logger
}

func NewBaseHandler(logger *slog.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	args = append(args, "path", c.Request.URL.Path, "method", c.Request.Method)
	h.logger.InfoContext(c.Request.Context(), msg, args...)
}

func (h *BaseHandler) getUserID(c *gin.Context) string {
	userID, exists := c.Get("user_id")
	if !exists {
		return ""
	}
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

func (h *BaseHandler) requireUserID(c *gin.Context) (string, bool) {
	userID := h.getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}
	return userID, true
}

func (h *BaseHandler) parseIDParam(c *gin.Context, param string) uint {
	idStr := c.Param(param)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: err.Error(),
		})
		return 0
	}
	return uint(id)
}

func (h *BaseHandler) parseIntQuery(c *gin.Context, param string, defaultValue int) int {
	valueStr := c.Query(param)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// handleServiceError maps service errors onto HTTP status codes.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	// Custom error types first
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Code:    "VALIDATION_FAILED",
			Details: validationErr,
		})
		return
	}

	var insufficientErr *services.InsufficientQuestionsError
	if errors.As(err, &insufficientErr) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Insufficient questions to satisfy the exam distribution",
			Code:    "INSUFFICIENT_QUESTIONS",
			Details: insufficientErr,
		})
		return
	}

	var mismatchErr *services.AnswerCountMismatchError
	if errors.As(err, &mismatchErr) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Answer count does not match the variation's question count",
			Code:    "ANSWER_COUNT_MISMATCH",
			Details: mismatchErr,
		})
		return
	}

	var timeoutErr *services.GenerationTimeoutError
	if errors.As(err, &timeoutErr) {
		// Retryable: the generation transaction rolled back
		c.Header("Retry-After", "5")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Message: "Variation generation timed out, please retry",
			Code:    "GENERATION_TIMEOUT",
			Details: timeoutErr,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrExamNotFound),
		errors.Is(err, services.ErrVariationNotFound),
		errors.Is(err, services.ErrQuestionNotFound),
		errors.Is(err, services.ErrResultNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Resource not found",
			Code:    "NOT_FOUND",
		})
	case errors.Is(err, services.ErrExamPublished):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Exam is published; variations are immutable",
			Code:    "EXAM_PUBLISHED",
		})
	case errors.Is(err, services.ErrExamExpired):
		c.JSON(http.StatusGone, ErrorResponse{
			Message: "Exam has expired",
			Code:    "EXAM_EXPIRED",
		})
	default:
		h.logger.ErrorContext(c.Request.Context(), "Unhandled service error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
			Code:    "INTERNAL_ERROR",
		})
	}
}
