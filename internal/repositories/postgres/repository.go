package postgres

import (
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
	"gorm.io/gorm"
)

type repository struct {
	quiz      repositories.QuizRepository
	attempt   repositories.AttemptRepository
	assist    repositories.AssistRepository
	integrity repositories.IntegrityRepository
}

// NewRepository wires the PostgreSQL implementations of every entity
// repository over one shared connection.
func NewRepository(db *gorm.DB) repositories.Repository {
	return &repository{
		quiz:      NewQuizPostgreSQL(db),
		attempt:   NewAttemptPostgreSQL(db),
		assist:    NewAssistPostgreSQL(db),
		integrity: NewIntegrityPostgreSQL(db),
	}
}

func (r *repository) Quiz() repositories.QuizRepository           { return r.quiz }
func (r *repository) Attempt() repositories.AttemptRepository     { return r.attempt }
func (r *repository) Assist() repositories.AssistRepository       { return r.assist }
func (r *repository) Integrity() repositories.IntegrityRepository { return r.integrity }
