package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
	"github.com/SAP-F-2025/quiz-engine/internal/services"
	"github.com/SAP-F-2025/quiz-engine/internal/session"
	"github.com/SAP-F-2025/quiz-engine/internal/utils"
	"github.com/gin-gonic/gin"
)

// AttemptHandler serves submitted-attempt reads: results, review mode,
// integrity events, and exports.
type AttemptHandler struct {
	BaseHandler
	manager   *session.Manager
	results   services.ResultsService
	validator *utils.Validator
}

func NewAttemptHandler(
	manager *session.Manager,
	results services.ResultsService,
	validator *utils.Validator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler: NewBaseHandler(logger),
		manager:     manager,
		results:     results,
		validator:   validator,
	}
}

// GetAttempt returns a single attempt with its frozen results.
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	attemptID := ParseUintParam(c, "id")
	if attemptID == 0 {
		return
	}

	attempt, err := h.results.GetAttempt(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Data: attempt})
}

// ListAttempts returns attempts matching the query filters. Students only
// ever see their own.
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := parseAttemptFilters(c)
	attempts, total, err := h.results.ListAttempts(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Data: gin.H{
			"attempts": attempts,
			"total":    total,
			"limit":    filters.Limit,
			"offset":   filters.Offset,
		},
	})
}

// GetIntegrityEvents returns the persisted focus-loss log for proctors.
func (h *AttemptHandler) GetIntegrityEvents(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	attemptID := ParseUintParam(c, "id")
	if attemptID == 0 {
		return
	}

	events, err := h.results.ListIntegrityEvents(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Data: events})
}

// ===== REVIEW MODE =====

// RequestExplanation serves the explanation for one address of a
// submitted attempt. Review-only and never metered.
func (h *AttemptHandler) RequestExplanation(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	attemptID := ParseUintParam(c, "id")
	if attemptID == 0 {
		return
	}

	var req AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
		return
	}

	sess, err := h.manager.OpenReview(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if err := sess.BeginReview(); err != nil {
		h.handleServiceError(c, err)
		return
	}

	entry, err := sess.RequestExplanation(c.Request.Context(), req.toAddress())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Data: entry})
}

// GetReviewResult re-derives the scored result for a submitted attempt.
func (h *AttemptHandler) GetReviewResult(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	attemptID := ParseUintParam(c, "id")
	if attemptID == 0 {
		return
	}

	sess, err := h.manager.OpenReview(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	result, err := sess.Result()
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Data: result})
}

// ===== EXPORT =====

// ExportQuizResults streams the submitted attempts of a quiz as a
// spreadsheet. Format query selects xlsx (default) or csv.
func (h *AttemptHandler) ExportQuizResults(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	quizID := ParseUintParam(c, "quiz_id")
	if quizID == 0 {
		return
	}

	h.LogRequest(c, "Exporting quiz results", "quiz_id", quizID)

	format := c.DefaultQuery("format", "xlsx")
	switch format {
	case "xlsx":
		data, err := h.results.ExportQuizResults(c.Request.Context(), quizID, userID)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="quiz_results.xlsx"`)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
	case "csv":
		data, err := h.results.ExportQuizResultsCSV(c.Request.Context(), quizID, userID)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="quiz_results.csv"`)
		c.Data(http.StatusOK, "text/csv", data)
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid format",
			Details: "format must be xlsx or csv",
		})
	}
}

// ===== HELPERS =====

func parseAttemptFilters(c *gin.Context) repositories.AttemptFilters {
	filters := repositories.AttemptFilters{
		SortBy:    c.DefaultQuery("sort_by", "created_at"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
		Limit:     20,
	}

	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 && limit <= 100 {
		filters.Limit = limit
	}
	if offset, err := strconv.Atoi(c.Query("offset")); err == nil && offset >= 0 {
		filters.Offset = offset
	}
	if status := c.Query("status"); status != "" {
		filters.Status = models.AttemptStatus(status)
	}
	if quizID, err := strconv.ParseUint(c.Query("quiz_id"), 10, 32); err == nil {
		id := uint(quizID)
		filters.QuizID = &id
	}
	if studentID := c.Query("student_id"); studentID != "" {
		filters.StudentID = &studentID
	}
	if from, err := time.Parse(time.RFC3339, c.Query("date_from")); err == nil {
		filters.DateFrom = &from
	}
	if to, err := time.Parse(time.RFC3339, c.Query("date_to")); err == nil {
		filters.DateTo = &to
	}
	return filters
}
