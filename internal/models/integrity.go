package models

import (
	"time"

	"gorm.io/datatypes"
)

type IntegrityEventType string

const (
	EventFocusLoss  IntegrityEventType = "focus_loss"
	EventTabSwitch  IntegrityEventType = "tab_switch"
	EventWindowBlur IntegrityEventType = "window_blur"
)

// IntegrityEvent is the persisted record of a focus-loss violation, kept
// for proctor review. The enforcement counter that drives auto-submission
// is session-local and never read back from these rows.
type IntegrityEvent struct {
	ID        uint               `json:"id" gorm:"primaryKey"`
	AttemptID uint               `json:"attempt_id" gorm:"not null;index"`
	Type      IntegrityEventType `json:"type" gorm:"not null;size:30;index"`

	// Event data
	Data     datatypes.JSON `json:"data" gorm:"type:jsonb"`
	Severity int            `json:"severity" gorm:"default:1"` // 1-5 (low to critical)

	// Context
	FlatIndex  *int   `json:"flat_index"` // Unit open when focus was lost
	TimeOffset int    `json:"time_offset"` // Seconds from attempt start
	UserAgent  string `json:"user_agent" gorm:"type:text"`
	IPAddress  string `json:"ip_address" gorm:"size:45"`

	CreatedAt time.Time `json:"created_at"`

	// Relations
	Attempt QuizAttempt `json:"attempt" gorm:"foreignKey:AttemptID"`
}

func (IntegrityEvent) TableName() string {
	return "integrity_events"
}
