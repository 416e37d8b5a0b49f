package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
)

// EndReason records what triggered the final submission.
type EndReason string

const (
	EndReasonLearner   EndReason = "learner_submit"
	EndReasonTimeout   EndReason = "timeout"
	EndReasonIntegrity EndReason = "integrity_auto_submit"
	EndReasonAbandoned EndReason = "session_closed"
)

type QuizAttempt struct {
	ID        uint          `json:"id" gorm:"primaryKey"`
	QuizID    uint          `json:"quiz_id" gorm:"not null;index"`
	StudentID string        `json:"student_id" gorm:"not null;size:255;index"`
	Status    AttemptStatus `json:"status" gorm:"not null;default:in_progress;index"`

	// Timing
	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at"`
	EndTime     *time.Time `json:"end_time"`
	TimeLimit   int        `json:"time_limit"` // Seconds
	TimeSpent   *int       `json:"time_spent"` // Seconds

	// Scoring
	Score      int `json:"score"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
	TipsUsed   int `json:"tips_used"`

	EndReason *EndReason `json:"end_reason" gorm:"size:40"`

	// Answer map keyed by flatIndex; values are scalar or per-subKey maps.
	Answers datatypes.JSON `json:"answers" gorm:"type:jsonb"`

	// Seconds accumulated per flatIndex while the learner had the unit open.
	UnitTimes datatypes.JSON `json:"unit_times" gorm:"type:jsonb"`

	// Question list frozen at Start so authoring edits cannot shift
	// flatIndex meaning mid-attempt.
	QuizSnapshot datatypes.JSON `json:"-" gorm:"type:jsonb"`

	// Supplementary analysis written after submission; the only field
	// mutable once submitted.
	AIAnalysis *string `json:"ai_performance_analysis" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Quiz    Quiz `json:"quiz" gorm:"foreignKey:QuizID"`
	Student User `json:"student" gorm:"foreignKey:StudentID"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// ===== ANSWER MAP =====

// Answer is the learner's stored value for one atomic unit: a scalar for
// single-choice and passage sub-question units, or a subKey-keyed map for
// multi-part units (zones, blanks, pairs).
type Answer struct {
	Value string            `json:"-"`
	Parts map[string]string `json:"-"`
}

// Part returns the submitted value for subKey; the empty string marks an
// unanswered part.
func (a Answer) Part(subKey string) string {
	if a.Parts == nil {
		return ""
	}
	return a.Parts[subKey]
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.Parts != nil {
		return json.Marshal(a.Parts)
	}
	return json.Marshal(a.Value)
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	var scalar string
	if err := json.Unmarshal(data, &scalar); err == nil {
		a.Value = scalar
		a.Parts = nil
		return nil
	}
	var parts map[string]string
	if err := json.Unmarshal(data, &parts); err == nil {
		a.Value = ""
		a.Parts = parts
		return nil
	}
	return fmt.Errorf("answer must be a string or an object of strings")
}

// AnswerMap maps flatIndex to the learner's answer for that unit.
type AnswerMap map[int]Answer

// DecodeAnswers unmarshals the attempt's persisted answer map.
func (a *QuizAttempt) DecodeAnswers() (AnswerMap, error) {
	if len(a.Answers) == 0 {
		return AnswerMap{}, nil
	}
	var answers AnswerMap
	if err := json.Unmarshal(a.Answers, &answers); err != nil {
		return nil, fmt.Errorf("failed to decode answers for attempt %d: %w", a.ID, err)
	}
	return answers, nil
}

// DecodeSnapshot unmarshals the question list frozen at Start.
func (a *QuizAttempt) DecodeSnapshot() ([]Question, error) {
	if len(a.QuizSnapshot) == 0 {
		return nil, nil
	}
	var questions []Question
	if err := json.Unmarshal(a.QuizSnapshot, &questions); err != nil {
		return nil, fmt.Errorf("failed to decode quiz snapshot for attempt %d: %w", a.ID, err)
	}
	return questions, nil
}
