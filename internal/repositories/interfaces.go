package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"gorm.io/gorm"
)

// ===== SHARED FILTER STRUCTS =====

type AttemptFilters struct {
	Status    models.AttemptStatus `json:"status"`
	QuizID    *uint                `json:"quiz_id"`
	StudentID *string              `json:"student_id"`
	DateFrom  *time.Time           `json:"date_from"`
	DateTo    *time.Time           `json:"date_to"`
	Limit     int                  `json:"limit"`
	Offset    int                  `json:"offset"`
	SortBy    string               `json:"sort_by"`    // "created_at", "started_at", "score"
	SortOrder string               `json:"sort_order"` // "asc", "desc"
}

// ===== REPOSITORY INTERFACES =====

// QuizRepository reads authored quiz records. The engine never mutates
// authored content; generation results live in their own store.
type QuizRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Quiz, error)
	GetByIDWithQuestions(ctx context.Context, id uint) (*models.Quiz, error)
	List(ctx context.Context, createdBy string, limit, offset int) ([]*models.Quiz, int64, error)
}

// AttemptRepository owns QuizAttempt persistence.
type AttemptRepository interface {
	Create(ctx context.Context, attempt *models.QuizAttempt) error
	GetByID(ctx context.Context, id uint) (*models.QuizAttempt, error)
	GetByIDWithDetails(ctx context.Context, id uint) (*models.QuizAttempt, error)
	Update(ctx context.Context, attempt *models.QuizAttempt) error

	// Supplementary analysis is the one field mutable after submission.
	UpdateAnalysis(ctx context.Context, id uint, analysis string) error

	List(ctx context.Context, filters AttemptFilters) ([]*models.QuizAttempt, int64, error)
	GetByStudentAndQuiz(ctx context.Context, studentID string, quizID uint) ([]*models.QuizAttempt, error)
	GetActiveAttempt(ctx context.Context, studentID string, quizID uint) (*models.QuizAttempt, error)
	CountByStudentAndQuiz(ctx context.Context, studentID string, quizID uint) (int, error)
}

// AssistRepository stores generated assistive text one row per
// (quiz, phase, address), so writing one address never clobbers siblings.
type AssistRepository interface {
	Get(ctx context.Context, quizID uint, phase models.AssistPhase, address string) (*models.AssistEntry, error)
	Upsert(ctx context.Context, entry *models.AssistEntry) error
	Delete(ctx context.Context, quizID uint, phase models.AssistPhase, address string) error
	ListByQuiz(ctx context.Context, quizID uint, phase models.AssistPhase) ([]*models.AssistEntry, error)
}

// IntegrityRepository persists focus-loss events for proctor review.
type IntegrityRepository interface {
	Create(ctx context.Context, event *models.IntegrityEvent) error
	GetByAttempt(ctx context.Context, attemptID uint) ([]*models.IntegrityEvent, error)
}

// Repository aggregates the per-entity repositories.
type Repository interface {
	Quiz() QuizRepository
	Attempt() AttemptRepository
	Assist() AssistRepository
	Integrity() IntegrityRepository
}

// IsNotFoundError checks if error represents a missing record.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
