package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/quiz-engine/internal/assist"
	"github.com/SAP-F-2025/quiz-engine/internal/auth"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
	"github.com/SAP-F-2025/quiz-engine/internal/services"
	"github.com/SAP-F-2025/quiz-engine/internal/session"
	"github.com/SAP-F-2025/quiz-engine/internal/utils"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	sessionHandler *SessionHandler
	attemptHandler *AttemptHandler
	assistHandler  *AssistHandler
}

func NewHandlerManager(
	manager *session.Manager,
	results services.ResultsService,
	repo repositories.Repository,
	assists *assist.Service,
	roles auth.RoleResolver,
	validator *utils.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler: NewSessionHandler(manager, results, validator, logger),
		attemptHandler: NewAttemptHandler(manager, results, validator, logger),
		assistHandler:  NewAssistHandler(repo, assists, roles, validator, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "quiz-engine",
		})
	})

	v1 := router.Group("/api/v1")
	v1.Use(UserContext())
	{
		// Live session routes
		sessions := v1.Group("/sessions")
		{
			sessions.POST("/start", hm.sessionHandler.StartSession)
			sessions.GET("/:attempt_id", hm.sessionHandler.GetSession)
			sessions.POST("/:attempt_id/resume", hm.sessionHandler.ResumeSession)
			sessions.POST("/:attempt_id/answer", hm.sessionHandler.SubmitAnswer)
			sessions.POST("/:attempt_id/next", hm.sessionHandler.Next)
			sessions.POST("/:attempt_id/previous", hm.sessionHandler.Previous)
			sessions.POST("/:attempt_id/flag", hm.sessionHandler.ToggleFlag)
			sessions.POST("/:attempt_id/hint", hm.sessionHandler.RequestHint)
			sessions.POST("/:attempt_id/focus-loss", hm.sessionHandler.ReportFocusLoss)
			sessions.POST("/:attempt_id/submit", hm.sessionHandler.Submit)
			sessions.POST("/:attempt_id/close", hm.sessionHandler.CloseSession)
		}

		// Submitted attempt routes
		attempts := v1.Group("/attempts")
		{
			attempts.GET("", hm.attemptHandler.ListAttempts)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.GET("/:id/result", hm.attemptHandler.GetReviewResult)
			attempts.GET("/:id/integrity", hm.attemptHandler.GetIntegrityEvents)
			attempts.POST("/:id/explanation", hm.attemptHandler.RequestExplanation)
		}

		// Quiz-scoped routes: results export and assist management
		quizzes := v1.Group("/quizzes")
		{
			quizzes.GET("/:quiz_id/results/export", hm.attemptHandler.ExportQuizResults)

			quizzes.GET("/:quiz_id/assist/:phase", hm.assistHandler.ListEntries)
			quizzes.POST("/:quiz_id/assist/:phase/regenerate", hm.assistHandler.RegenerateEntry)
			quizzes.PUT("/:quiz_id/assist/:phase", hm.assistHandler.EditEntry)
			quizzes.DELETE("/:quiz_id/assist/:phase", hm.assistHandler.DeleteEntry)
		}
	}
}

// UserContext extracts the caller identity set by the gateway and stores
// it for handlers. The service trusts the header; authentication happens
// upstream.
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	}
}
