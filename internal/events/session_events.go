package events

import (
	"time"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
)

// EventType represents different types of session events
type EventType string

const (
	// Attempt lifecycle events
	EventAttemptStarted       EventType = "attempt.started"
	EventAttemptSubmitted     EventType = "attempt.submitted"
	EventAttemptAutoSubmitted EventType = "attempt.auto_submitted"

	// Integrity events
	EventIntegrityViolation EventType = "integrity.violation"
)

// SessionEvent is the base event structure for all session events
type SessionEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Attempt event payloads

type AttemptStartedEvent struct {
	AttemptID uint      `json:"attempt_id"`
	QuizID    uint      `json:"quiz_id"`
	QuizTitle string    `json:"quiz_title"`
	StudentID string    `json:"student_id"`
	StartedAt time.Time `json:"started_at"`
	TimeLimit int       `json:"time_limit"` // seconds
	UnitCount int       `json:"unit_count"`
}

type AttemptSubmittedEvent struct {
	AttemptID   uint             `json:"attempt_id"`
	QuizID      uint             `json:"quiz_id"`
	StudentID   string           `json:"student_id"`
	SubmittedAt time.Time        `json:"submitted_at"`
	EndReason   models.EndReason `json:"end_reason"`
	Score       int              `json:"score"`
	Total       int              `json:"total"`
	Percentage  int              `json:"percentage"`
	TimeSpent   int              `json:"time_spent"` // seconds
	TipsUsed    int              `json:"tips_used"`
}

type IntegrityViolationEvent struct {
	AttemptID      uint      `json:"attempt_id"`
	QuizID         uint      `json:"quiz_id"`
	StudentID      string    `json:"student_id"`
	ViolationCount int       `json:"violation_count"`
	WillAutoSubmit bool      `json:"will_auto_submit"`
	OccurredAt     time.Time `json:"occurred_at"`
}
