// Package services holds the read-side operations that sit beside the
// live session engine: attempt listing, results export, and the
// post-submission performance analysis.
package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/quiz-engine/internal/assist"
	"github.com/SAP-F-2025/quiz-engine/internal/auth"
	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
	"github.com/SAP-F-2025/quiz-engine/internal/session"
)

// ResultsService exposes submitted-attempt data to teachers and proctors.
type ResultsService interface {
	GetAttempt(ctx context.Context, attemptID uint, userID string) (*models.QuizAttempt, error)
	ListAttempts(ctx context.Context, filters repositories.AttemptFilters, userID string) ([]*models.QuizAttempt, int64, error)
	ListIntegrityEvents(ctx context.Context, attemptID uint, userID string) ([]*models.IntegrityEvent, error)

	ExportQuizResults(ctx context.Context, quizID uint, userID string) ([]byte, error)
	ExportQuizResultsCSV(ctx context.Context, quizID uint, userID string) ([]byte, error)

	// GenerateAnalysis writes the supplementary performance narrative onto
	// a submitted attempt. Safe to run in the background after submit.
	GenerateAnalysis(ctx context.Context, attemptID uint) error
}

type resultsService struct {
	repo    repositories.Repository
	assists *assist.Service
	roles   auth.RoleResolver
	logger  *slog.Logger
}

func NewResultsService(repo repositories.Repository, assists *assist.Service, roles auth.RoleResolver, logger *slog.Logger) ResultsService {
	return &resultsService{
		repo:    repo,
		assists: assists,
		roles:   roles,
		logger:  logger,
	}
}

// ===== ATTEMPT ACCESS =====

func (s *resultsService) GetAttempt(ctx context.Context, attemptID uint, userID string) (*models.QuizAttempt, error) {
	attempt, err := s.repo.Attempt().GetByIDWithDetails(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, session.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.StudentID != userID {
		role, err := s.roles.Resolve(ctx, userID)
		if err != nil || !role.IsPrivileged() {
			return nil, session.NewPermissionError(userID, attemptID, "attempt", "read", "not the attempt owner")
		}
	}
	return attempt, nil
}

func (s *resultsService) ListAttempts(ctx context.Context, filters repositories.AttemptFilters, userID string) ([]*models.QuizAttempt, int64, error) {
	role, err := s.roles.Resolve(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to resolve role: %w", err)
	}

	// Students only see their own attempts regardless of the filter.
	if !role.IsPrivileged() {
		filters.StudentID = &userID
	}

	attempts, total, err := s.repo.Attempt().List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}
	return attempts, total, nil
}

func (s *resultsService) ListIntegrityEvents(ctx context.Context, attemptID uint, userID string) ([]*models.IntegrityEvent, error) {
	role, err := s.roles.Resolve(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve role: %w", err)
	}
	if !role.IsPrivileged() {
		return nil, session.NewPermissionError(userID, attemptID, "attempt", "read_integrity", "proctor access required")
	}

	events, err := s.repo.Integrity().GetByAttempt(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to get integrity events: %w", err)
	}
	return events, nil
}

// ===== RESULTS EXPORT =====

var resultHeaders = []string{
	"Student ID", "Status", "Started At", "Submitted At", "End Reason",
	"Score", "Total", "Percentage", "Tips Used", "Time Spent (minutes)",
}

func (s *resultsService) ExportQuizResults(ctx context.Context, quizID uint, userID string) ([]byte, error) {
	attempts, err := s.attemptsForExport(ctx, quizID, userID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheetName := "Results"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)

	for i, header := range resultHeaders {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, attempt := range attempts {
		for colIndex, value := range attemptRow(attempt) {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *resultsService) ExportQuizResultsCSV(ctx context.Context, quizID uint, userID string) ([]byte, error) {
	attempts, err := s.attemptsForExport(ctx, quizID, userID)
	if err != nil {
		return nil, err
	}

	var buf strings.Builder
	writer := csv.NewWriter(&buf)

	if err := writer.Write(resultHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, attempt := range attempts {
		row := make([]string, 0, len(resultHeaders))
		for _, value := range attemptRow(attempt) {
			row = append(row, fmt.Sprintf("%v", value))
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return []byte(buf.String()), nil
}

func (s *resultsService) attemptsForExport(ctx context.Context, quizID uint, userID string) ([]*models.QuizAttempt, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, session.ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	if quiz.CreatedBy != userID {
		role, err := s.roles.Resolve(ctx, userID)
		if err != nil || !role.IsPrivileged() {
			return nil, session.NewPermissionError(userID, quizID, "quiz", "export_results", "not owner or insufficient permissions")
		}
	}

	attempts, _, err := s.repo.Attempt().List(ctx, repositories.AttemptFilters{
		QuizID:    &quizID,
		Status:    models.AttemptSubmitted,
		SortBy:    "started_at",
		SortOrder: "asc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts for quiz %d: %w", quizID, err)
	}
	return attempts, nil
}

func attemptRow(attempt *models.QuizAttempt) []interface{} {
	row := []interface{}{
		attempt.StudentID,
		string(attempt.Status),
		attempt.StartedAt.Format("2006-01-02 15:04:05"),
	}

	if attempt.SubmittedAt != nil {
		row = append(row, attempt.SubmittedAt.Format("2006-01-02 15:04:05"))
	} else {
		row = append(row, "")
	}

	if attempt.EndReason != nil {
		row = append(row, string(*attempt.EndReason))
	} else {
		row = append(row, "")
	}

	row = append(row, attempt.Score, attempt.Total, attempt.Percentage, attempt.TipsUsed)

	if attempt.TimeSpent != nil {
		row = append(row, *attempt.TimeSpent/60)
	} else {
		row = append(row, 0)
	}
	return row
}

// ===== PERFORMANCE ANALYSIS =====

func (s *resultsService) GenerateAnalysis(ctx context.Context, attemptID uint) error {
	attempt, err := s.repo.Attempt().GetByIDWithDetails(ctx, attemptID)
	if err != nil {
		return fmt.Errorf("failed to get attempt %d: %w", attemptID, err)
	}
	if attempt.Status != models.AttemptSubmitted {
		return session.ErrNotSubmitted
	}
	if attempt.AIAnalysis != nil {
		return nil
	}

	analysis, err := s.assists.GeneratePerformanceAnalysis(ctx,
		attempt.Quiz.Title, attempt.Score, attempt.Total, attempt.Percentage)
	if err != nil {
		return err
	}

	if err := s.repo.Attempt().UpdateAnalysis(ctx, attemptID, analysis); err != nil {
		return fmt.Errorf("failed to store analysis for attempt %d: %w", attemptID, err)
	}

	s.logger.Info("Performance analysis stored", "attempt_id", attemptID)
	return nil
}
