package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/quiz-engine/internal/assist"
	"github.com/SAP-F-2025/quiz-engine/internal/auth"
	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/normalizer"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
	"github.com/SAP-F-2025/quiz-engine/internal/session"
	"github.com/SAP-F-2025/quiz-engine/internal/utils"
	"github.com/gin-gonic/gin"
)

// AssistHandler manages the stored hint and explanation entries of a
// quiz: teachers list, regenerate, edit, and delete them.
type AssistHandler struct {
	BaseHandler
	repo      repositories.Repository
	assists   *assist.Service
	roles     auth.RoleResolver
	validator *utils.Validator
}

func NewAssistHandler(
	repo repositories.Repository,
	assists *assist.Service,
	roles auth.RoleResolver,
	validator *utils.Validator,
	logger utils.Logger,
) *AssistHandler {
	return &AssistHandler{
		BaseHandler: NewBaseHandler(logger),
		repo:        repo,
		assists:     assists,
		roles:       roles,
		validator:   validator,
	}
}

type EditEntryRequest struct {
	FlatIndex int    `json:"flat_index" validate:"min=0"`
	Kind      string `json:"kind" validate:"omitempty,oneof=blanks dropZones matchingQuestions"`
	SubKey    string `json:"sub_key"`
	Advice    string `json:"advice" validate:"required,min=1"`
}

// ListEntries returns every stored entry of a phase for a quiz.
func (h *AssistHandler) ListEntries(c *gin.Context) {
	quizID, phase, ok := h.authorize(c)
	if !ok {
		return
	}

	entries, err := h.repo.Assist().ListByQuiz(c.Request.Context(), quizID, phase)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Data: entries})
}

// RegenerateEntry discards the stored entry for an address and generates
// a fresh one.
func (h *AssistHandler) RegenerateEntry(c *gin.Context) {
	quizID, phase, ok := h.authorize(c)
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

	addr := req.toAddress()
	unit, err := h.resolveUnit(c, quizID, addr)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Regenerating assist entry",
		"quiz_id", quizID, "phase", phase, "address", addr.Key())

	entry, err := h.assists.Regenerate(c.Request.Context(), quizID, phase, unit, addr)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Entry regenerated",
		Data:    entry,
	})
}

// EditEntry overwrites the stored advice for an address with hand-written
// text. Edited entries survive until explicitly regenerated.
func (h *AssistHandler) EditEntry(c *gin.Context) {
	quizID, phase, ok := h.authorize(c)
	if !ok {
		return
	}

	var req EditEntryRequest
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

	addr := AddressRequest{FlatIndex: req.FlatIndex, Kind: req.Kind, SubKey: req.SubKey}.toAddress()
	if err := h.assists.Edit(c.Request.Context(), quizID, phase, addr, assist.Entry{Advice: req.Advice}); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Entry updated"})
}

// DeleteEntry removes the stored entry so the next request regenerates it.
func (h *AssistHandler) DeleteEntry(c *gin.Context) {
	quizID, phase, ok := h.authorize(c)
	if !ok {
		return
	}

	addr, err := normalizer.ParseAddress(c.Query("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid address",
			Details: err.Error(),
		})
		return
	}

	if err := h.assists.Delete(c.Request.Context(), quizID, phase, addr); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Entry deleted"})
}

// ===== HELPERS =====

// authorize parses the quiz id and phase from the path and checks that the
// caller owns the quiz or holds a privileged role.
func (h *AssistHandler) authorize(c *gin.Context) (uint, models.AssistPhase, bool) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return 0, "", false
	}
	quizID := ParseUintParam(c, "quiz_id")
	if quizID == 0 {
		return 0, "", false
	}

	phase := models.AssistPhase(c.Param("phase"))
	if phase != models.PhaseHint && phase != models.PhaseExplanation {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid phase",
			Details: "phase must be hint or explanation",
		})
		return 0, "", false
	}

	quiz, err := h.repo.Quiz().GetByID(c.Request.Context(), quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			h.handleServiceError(c, session.ErrQuizNotFound)
		} else {
			h.handleServiceError(c, err)
		}
		return 0, "", false
	}

	if quiz.CreatedBy != userID {
		role, err := h.roles.Resolve(c.Request.Context(), userID)
		if err != nil || !role.IsPrivileged() {
			h.handleServiceError(c, session.NewPermissionError(
				userID, quizID, "quiz", "manage_assist", "not owner or insufficient permissions"))
			return 0, "", false
		}
	}
	return quizID, phase, true
}

// resolveUnit flattens the quiz's current questions and returns the unit
// the address points at.
func (h *AssistHandler) resolveUnit(c *gin.Context, quizID uint, addr normalizer.Address) (*normalizer.Unit, error) {
	quiz, err := h.repo.Quiz().GetByIDWithQuestions(c.Request.Context(), quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, session.ErrQuizNotFound
		}
		return nil, err
	}

	index := normalizer.NewIndex(quiz.Questions)
	unit := index.Unit(addr.FlatIndex)
	if unit == nil {
		return nil, session.ErrUnitOutOfRange
	}
	return unit, nil
}
