package postgres

import (
	"context"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
	"gorm.io/gorm"
)

type IntegrityPostgreSQL struct {
	db *gorm.DB
}

func NewIntegrityPostgreSQL(db *gorm.DB) repositories.IntegrityRepository {
	return &IntegrityPostgreSQL{db: db}
}

func (i IntegrityPostgreSQL) Create(ctx context.Context, event *models.IntegrityEvent) error {
	return i.db.WithContext(ctx).Create(event).Error
}

func (i IntegrityPostgreSQL) GetByAttempt(ctx context.Context, attemptID uint) ([]*models.IntegrityEvent, error) {
	var events []*models.IntegrityEvent
	if err := i.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
