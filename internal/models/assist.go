package models

import (
	"time"

	"gorm.io/datatypes"
)

// AssistPhase separates the two caches that share one addressing scheme:
// hints are served during an active attempt, explanations during review.
type AssistPhase string

const (
	PhaseHint        AssistPhase = "hint"
	PhaseExplanation AssistPhase = "explanation"
)

// AssistSource records how an entry came to exist.
type AssistSource string

const (
	AssistGenerated AssistSource = "generated"
	AssistManual    AssistSource = "manual"
	AssistFallback  AssistSource = "fallback"
)

// AssistEntry is one cached piece of assistive text. Entries are stored one
// row per (quiz, phase, address) so a single address can be written without
// touching its siblings.
type AssistEntry struct {
	ID      uint        `json:"id" gorm:"primaryKey"`
	QuizID  uint        `json:"quiz_id" gorm:"not null;uniqueIndex:idx_assist_address"`
	Phase   AssistPhase `json:"phase" gorm:"not null;size:20;uniqueIndex:idx_assist_address" validate:"required,oneof=hint explanation"`
	Address string      `json:"address" gorm:"not null;size:120;uniqueIndex:idx_assist_address" validate:"required"`

	Advice string `json:"advice" gorm:"type:text;not null"`

	// Passage highlights keyed by passage id; present only for units that
	// reference reading passages.
	Passages datatypes.JSON `json:"passages" gorm:"type:jsonb"`

	Source AssistSource `json:"source" gorm:"not null;size:20;default:generated"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AssistEntry) TableName() string {
	return "assist_entries"
}
