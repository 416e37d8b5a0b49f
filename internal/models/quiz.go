package models

import (
	"time"

	"gorm.io/gorm"
)

type QuizStatus string

const (
	QuizDraft    QuizStatus = "Draft"
	QuizActive   QuizStatus = "Active"
	QuizExpired  QuizStatus = "Expired"
	QuizArchived QuizStatus = "Archived"
)

type Quiz struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Title       string     `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description *string    `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	Duration    int        `json:"duration" gorm:"not null" validate:"required,min=5,max=300"` // Minutes
	Status      QuizStatus `json:"status" gorm:"default:Draft;index" validate:"omitempty,oneof=Draft Active Expired Archived"`
	MaxAttempts int        `json:"max_attempts" gorm:"default:1" validate:"min=1,max=10"`
	DueDate     *time.Time `json:"due_date"`

	// Hint settings
	TipsAllowed bool `json:"tips_allowed" gorm:"default:false"`
	TipsQuota   int  `json:"tips_quota" gorm:"default:3" validate:"min=0,max=20"`

	// Metadata
	CreatedBy string         `json:"created_by" gorm:"not null;size:255;index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Version control
	Version int `json:"version" gorm:"default:1"`

	// Relations
	Questions []Question    `json:"questions" gorm:"foreignKey:QuizID"`
	Attempts  []QuizAttempt `json:"attempts" gorm:"foreignKey:QuizID"`
	Creator   User          `json:"creator" gorm:"foreignKey:CreatedBy"`

	// Computed fields (not stored)
	QuestionsCount int `json:"questions_count" gorm:"-"`
	TotalPoints    int `json:"total_points" gorm:"-"`
	AttemptCount   int `json:"attempt_count" gorm:"-"`
}

func (Quiz) TableName() string {
	return "quizzes"
}
