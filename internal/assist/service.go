package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/normalizer"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
)

// Service is the persisted, regenerable cache of externally generated
// assistive text. One instance serves both phases; every operation is
// keyed by (quizID, phase, address).
type Service struct {
	repo     repositories.AssistRepository
	provider TextProvider
	logger   *slog.Logger

	mu       sync.Mutex
	inflight map[string]*inflightCall
}

type inflightCall struct {
	done  chan struct{}
	entry Entry
}

func NewService(repo repositories.AssistRepository, provider TextProvider, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		provider: provider,
		logger:   logger,
		inflight: make(map[string]*inflightCall),
	}
}

// Get returns the stored entry for the address, generating and storing one
// on first access. Generation is idempotent-by-default: repeat requests
// reuse the stored value until Regenerate or Delete. Concurrent requests
// for one address collapse onto a single generation call.
func (s *Service) Get(ctx context.Context, quizID uint, phase models.AssistPhase, unit *normalizer.Unit, addr normalizer.Address) (Entry, error) {
	if stored, err := s.repo.Get(ctx, quizID, phase, addr.Key()); err == nil && stored != nil {
		return toEntry(stored), nil
	} else if err != nil && !repositories.IsNotFoundError(err) {
		s.logger.Warn("Assist cache read failed, regenerating",
			"quiz_id", quizID, "phase", phase, "address", addr.Key(), "error", err)
	}

	key := cacheKey(quizID, phase, addr)

	s.mu.Lock()
	if call, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.entry, nil
		case <-ctx.Done():
			return Entry{}, ctx.Err()
		}
	}
	call := &inflightCall{done: make(chan struct{})}
	s.inflight[key] = call
	s.mu.Unlock()

	entry := s.generateAndStore(ctx, quizID, phase, unit, addr)

	s.mu.Lock()
	call.entry = entry
	delete(s.inflight, key)
	s.mu.Unlock()
	close(call.done)

	return entry, nil
}

// Regenerate unconditionally calls the collaborator and overwrites the
// stored entry.
func (s *Service) Regenerate(ctx context.Context, quizID uint, phase models.AssistPhase, unit *normalizer.Unit, addr normalizer.Address) (Entry, error) {
	return s.generateAndStore(ctx, quizID, phase, unit, addr), nil
}

// Delete removes the stored entry; the next Get regenerates it.
func (s *Service) Delete(ctx context.Context, quizID uint, phase models.AssistPhase, addr normalizer.Address) error {
	if err := s.repo.Delete(ctx, quizID, phase, addr.Key()); err != nil {
		return fmt.Errorf("failed to delete assist entry: %w", err)
	}
	return nil
}

// Edit stores an operator-supplied entry verbatim, bypassing generation.
func (s *Service) Edit(ctx context.Context, quizID uint, phase models.AssistPhase, addr normalizer.Address, entry Entry) error {
	record, err := toRecord(quizID, phase, addr, entry, models.AssistManual)
	if err != nil {
		return err
	}
	if err := s.repo.Upsert(ctx, record); err != nil {
		return fmt.Errorf("failed to store manual assist entry: %w", err)
	}
	return nil
}

func (s *Service) generateAndStore(ctx context.Context, quizID uint, phase models.AssistPhase, unit *normalizer.Unit, addr normalizer.Address) Entry {
	prompt := BuildPrompt(phase, unit, addr)

	var entry Entry
	source := models.AssistGenerated

	raw, err := s.provider.Generate(ctx, prompt)
	if err != nil || raw == "" {
		s.logger.Warn("Assist generation failed, storing fallback",
			"quiz_id", quizID, "phase", phase, "address", addr.Key(), "error", err)
		entry = Entry{Advice: FallbackAdvice}
		source = models.AssistFallback
	} else {
		entry = ParseResponse(raw)
	}
	entry.Source = string(source)

	record, err := toRecord(quizID, phase, addr, entry, source)
	if err != nil {
		s.logger.Error("Failed to encode assist entry", "address", addr.Key(), "error", err)
		return entry
	}
	// Last write wins on concurrent generation; the learner is never
	// blocked behind a failed cache write.
	if err := s.repo.Upsert(ctx, record); err != nil {
		s.logger.Error("Failed to persist assist entry",
			"quiz_id", quizID, "phase", phase, "address", addr.Key(), "error", err)
	}

	return entry
}

// GeneratePerformanceAnalysis asks the collaborator for a short narrative
// over a submitted attempt's scores. Unlike hint/explanation entries this
// is not cached per address; the caller stores it on the attempt.
func (s *Service) GeneratePerformanceAnalysis(ctx context.Context, quizTitle string, score, total, percentage int) (string, error) {
	prompt := fmt.Sprintf(
		"You are a study assistant. A learner finished the quiz %q scoring %d out of %d points (%d%%). "+
			"Write a short, encouraging performance analysis (3-4 sentences) naming strengths and what to review next. "+
			"Return plain text only.",
		quizTitle, score, total, percentage)

	raw, err := s.provider.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("performance analysis generation failed: %w", err)
	}
	return ParseResponse(raw).Advice, nil
}

func cacheKey(quizID uint, phase models.AssistPhase, addr normalizer.Address) string {
	return fmt.Sprintf("%d|%s|%s", quizID, phase, addr.Key())
}

func toEntry(record *models.AssistEntry) Entry {
	entry := Entry{Advice: record.Advice, Source: string(record.Source)}
	if len(record.Passages) > 0 {
		var passages map[string]string
		if err := json.Unmarshal(record.Passages, &passages); err == nil {
			entry.Passages = passages
		}
	}
	return entry
}

func toRecord(quizID uint, phase models.AssistPhase, addr normalizer.Address, entry Entry, source models.AssistSource) (*models.AssistEntry, error) {
	record := &models.AssistEntry{
		QuizID:  quizID,
		Phase:   phase,
		Address: addr.Key(),
		Advice:  entry.Advice,
		Source:  source,
	}
	if len(entry.Passages) > 0 {
		data, err := json.Marshal(entry.Passages)
		if err != nil {
			return nil, fmt.Errorf("failed to encode passages: %w", err)
		}
		record.Passages = data
	}
	return record, nil
}
