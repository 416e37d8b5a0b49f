package postgres

import (
	"context"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AssistPostgreSQL struct {
	db *gorm.DB
}

func NewAssistPostgreSQL(db *gorm.DB) repositories.AssistRepository {
	return &AssistPostgreSQL{db: db}
}

func (a AssistPostgreSQL) Get(ctx context.Context, quizID uint, phase models.AssistPhase, address string) (*models.AssistEntry, error) {
	var entry models.AssistEntry
	if err := a.db.WithContext(ctx).
		Where("quiz_id = ? AND phase = ? AND address = ?", quizID, phase, address).
		First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// Upsert merges one address without touching sibling rows; concurrent
// writers resolve last-write-wins on the unique (quiz, phase, address) key.
func (a AssistPostgreSQL) Upsert(ctx context.Context, entry *models.AssistEntry) error {
	return a.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "quiz_id"}, {Name: "phase"}, {Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{"advice", "passages", "source", "updated_at"}),
		}).
		Create(entry).Error
}

func (a AssistPostgreSQL) Delete(ctx context.Context, quizID uint, phase models.AssistPhase, address string) error {
	return a.db.WithContext(ctx).
		Where("quiz_id = ? AND phase = ? AND address = ?", quizID, phase, address).
		Delete(&models.AssistEntry{}).Error
}

func (a AssistPostgreSQL) ListByQuiz(ctx context.Context, quizID uint, phase models.AssistPhase) ([]*models.AssistEntry, error) {
	var entries []*models.AssistEntry
	if err := a.db.WithContext(ctx).
		Where("quiz_id = ? AND phase = ?", quizID, phase).
		Order("address ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
