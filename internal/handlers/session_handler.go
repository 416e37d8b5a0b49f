package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/normalizer"
	"github.com/SAP-F-2025/quiz-engine/internal/services"
	"github.com/SAP-F-2025/quiz-engine/internal/session"
	"github.com/SAP-F-2025/quiz-engine/internal/utils"
	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	BaseHandler
	manager   *session.Manager
	results   services.ResultsService
	validator *utils.Validator
}

func NewSessionHandler(
	manager *session.Manager,
	results services.ResultsService,
	validator *utils.Validator,
	logger utils.Logger,
) *SessionHandler {
	return &SessionHandler{
		BaseHandler: NewBaseHandler(logger),
		manager:     manager,
		results:     results,
		validator:   validator,
	}
}

// ===== REQUEST / RESPONSE STRUCTURES =====

type StartSessionRequest struct {
	QuizID uint `json:"quiz_id" validate:"required,min=1"`
}

type AnswerRequest struct {
	FlatIndex int    `json:"flat_index" validate:"min=0"`
	SubKey    string `json:"sub_key"`
	Value     string `json:"value"`
}

type FlagRequest struct {
	FlatIndex int `json:"flat_index" validate:"min=0"`
}

type AddressRequest struct {
	FlatIndex int    `json:"flat_index" validate:"min=0"`
	Kind      string `json:"kind" validate:"omitempty,oneof=blanks dropZones matchingQuestions"`
	SubKey    string `json:"sub_key"`
}

type FocusLossRequest struct {
	EventType string `json:"event_type" validate:"required,integrity_event_type"`
}

// SessionView is the client-facing snapshot of a live session.
type SessionView struct {
	AttemptID    uint          `json:"attempt_id"`
	QuizID       uint          `json:"quiz_id"`
	State        session.State `json:"state"`
	UnitCount    int           `json:"unit_count"`
	CurrentIndex int           `json:"current_index"`
	TipsUsed     int           `json:"tips_used"`
	Violations   int           `json:"violations"`
}

func (r AddressRequest) toAddress() normalizer.Address {
	if r.SubKey == "" {
		return normalizer.UnitAddress(r.FlatIndex)
	}
	return normalizer.PartAddress(r.FlatIndex, normalizer.SubKeyKind(r.Kind), r.SubKey)
}

func sessionView(s *session.Session, quizID uint) SessionView {
	return SessionView{
		AttemptID:    s.AttemptID(),
		QuizID:       quizID,
		State:        s.State(),
		UnitCount:    s.UnitCount(),
		CurrentIndex: s.CurrentIndex(),
		TipsUsed:     s.TipsUsed(),
		Violations:   s.Monitor().Violations(),
	}
}

// ===== LIFECYCLE =====

// StartSession opens a new attempt, or resumes the learner's in-progress
// one. A 202 means the session is live but its record write is pending.
func (h *SessionHandler) StartSession(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	var req StartSessionRequest
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

	h.LogRequest(c, "Starting session", "quiz_id", req.QuizID)

	sess, err := h.manager.Start(c.Request.Context(), req.QuizID, userID)
	if err != nil && !session.IsRecoverable(err) {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if err != nil {
		status = http.StatusAccepted
	}
	c.JSON(status, SuccessResponse{
		Message: "Session started",
		Data:    sessionView(sess, req.QuizID),
	})
}

// ResumeSession reattaches to an in-progress attempt.
func (h *SessionHandler) ResumeSession(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	attemptID := ParseUintParam(c, "attempt_id")
	if attemptID == 0 {
		return
	}

	sess, err := h.manager.Resume(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Session resumed",
		Data:    sessionView(sess, 0),
	})
}

// GetSession returns the live session snapshot.
func (h *SessionHandler) GetSession(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	attemptID := ParseUintParam(c, "attempt_id")
	if attemptID == 0 {
		return
	}

	sess, err := h.manager.Resume(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Data: sessionView(sess, 0)})
}

// ===== ACTIVE-STATE ACTIONS =====

// SubmitAnswer stores one answer value in the live session.
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	sess, ok := h.liveSession(c)
	if !ok {
		return
	}

	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := sess.Answer(req.FlatIndex, req.SubKey, req.Value); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Answer recorded"})
}

// Next advances the navigation cursor.
func (h *SessionHandler) Next(c *gin.Context) {
	h.navigate(c, func(s *session.Session) error { return s.Next() })
}

// Previous moves the navigation cursor back.
func (h *SessionHandler) Previous(c *gin.Context) {
	h.navigate(c, func(s *session.Session) error { return s.Previous() })
}

func (h *SessionHandler) navigate(c *gin.Context, move func(*session.Session) error) {
	sess, ok := h.liveSession(c)
	if !ok {
		return
	}
	if err := move(sess); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Data: gin.H{"current_index": sess.CurrentIndex()}})
}

// ToggleFlag marks or unmarks a unit for revisit.
func (h *SessionHandler) ToggleFlag(c *gin.Context) {
	sess, ok := h.liveSession(c)
	if !ok {
		return
	}

	var req FlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := sess.ToggleFlag(req.FlatIndex); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Data: gin.H{"flagged": sess.Flagged(req.FlatIndex)}})
}

// Submit finalizes the attempt on the learner's explicit action.
func (h *SessionHandler) Submit(c *gin.Context) {
	sess, ok := h.liveSession(c)
	if !ok {
		return
	}
	attemptID := sess.AttemptID()

	h.LogRequest(c, "Submitting attempt", "attempt_id", attemptID)

	err := sess.Submit(c.Request.Context(), models.EndReasonLearner)
	if err != nil && !session.IsRecoverable(err) {
		h.handleServiceError(c, err)
		return
	}
	h.manager.Remove(attemptID)

	// Supplementary analysis runs in the background; the submission result
	// never waits on it.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := h.results.GenerateAnalysis(ctx, attemptID); err != nil {
			h.logger.Error("Background analysis failed", "attempt_id", attemptID, "error", err)
		}
	}()

	result, resultErr := sess.Result()
	if resultErr != nil {
		h.handleServiceError(c, resultErr)
		return
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusAccepted
	}
	c.JSON(status, SuccessResponse{
		Message: "Attempt submitted",
		Data:    result,
	})
}

// CloseSession force-submits whatever answers exist and drops the session.
func (h *SessionHandler) CloseSession(c *gin.Context) {
	sess, ok := h.liveSession(c)
	if !ok {
		return
	}
	attemptID := sess.AttemptID()

	err := sess.Close(c.Request.Context())
	h.manager.Remove(attemptID)
	if err != nil && !session.IsRecoverable(err) {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Session closed"})
}

// ===== ASSISTANCE =====

// RequestHint returns the hint for an address, metering the quota on
// first open.
func (h *SessionHandler) RequestHint(c *gin.Context) {
	sess, ok := h.liveSession(c)
	if !ok {
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

	entry, err := sess.RequestHint(c.Request.Context(), req.toAddress())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Data: gin.H{
			"entry":     entry,
			"tips_used": sess.TipsUsed(),
		},
	})
}

// ===== INTEGRITY =====

// ReportFocusLoss registers a focus violation for the active session.
func (h *SessionHandler) ReportFocusLoss(c *gin.Context) {
	sess, ok := h.liveSession(c)
	if !ok {
		return
	}

	var req FocusLossRequest
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

	violation, err := sess.Monitor().RecordFocusLoss(c.Request.Context(), models.IntegrityEventType(req.EventType))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Violation recorded",
		Data:    violation,
	})
}

// ===== HELPERS =====

// liveSession resolves the registered session for the attempt id in the
// path and checks ownership.
func (h *SessionHandler) liveSession(c *gin.Context) (*session.Session, bool) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return nil, false
	}
	attemptID := ParseUintParam(c, "attempt_id")
	if attemptID == 0 {
		return nil, false
	}

	sess, err := h.manager.Resume(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return nil, false
	}
	return sess, true
}
