// Package session owns the attempt lifecycle: a strict
// NotStarted -> Active -> Submitted state machine with a transient
// Reviewing sub-mode, a countdown timer, the in-memory answer map, hint
// metering, and the focus-loss integrity policy.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/quiz-engine/internal/assist"
	"github.com/SAP-F-2025/quiz-engine/internal/events"
	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/normalizer"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
	"github.com/SAP-F-2025/quiz-engine/internal/scoring"
)

type State string

const (
	StateNotStarted State = "not_started"
	StateActive     State = "active"
	StateSubmitted  State = "submitted"
	StateReviewing  State = "reviewing"
)

// Session drives one learner's pass at a quiz. All state-changing calls
// are serialized by an internal mutex: learner actions arrive one at a
// time by design, but the countdown timer and the integrity monitor fire
// from background goroutines.
type Session struct {
	mu sync.Mutex

	state     State
	attempt   *models.QuizAttempt
	quiz      *models.Quiz
	role      models.UserRole
	questions []models.Question
	index     *normalizer.Index

	// In-memory answer state; persisted only at submit.
	answers  models.AnswerMap
	flagged  map[int]bool

	// Hint metering. An address counts against the quota only the first
	// time it is opened in this attempt.
	opened   map[string]bool
	tipsUsed int

	// Navigation and per-unit timing.
	currentIndex int
	enteredAt    time.Time
	unitTimes    map[int]int

	timer   *time.Timer
	monitor *Monitor

	engine    *scoring.Engine
	assists   *assist.Service
	repo      repositories.Repository
	publisher events.EventPublisher
	logger    *slog.Logger
	clock     Clock
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AttemptID returns the persisted attempt's id.
func (s *Session) AttemptID() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt.ID
}

// UnitCount returns the number of atomic units in the flattened quiz.
func (s *Session) UnitCount() int {
	return s.index.Len()
}

// CurrentIndex returns the navigation cursor.
func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIndex
}

// TipsUsed returns how many hint addresses have counted against the quota.
func (s *Session) TipsUsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tipsUsed
}

// Monitor exposes the integrity monitor composed into this session.
func (s *Session) Monitor() *Monitor {
	return s.monitor
}

// armTimer starts the countdown; expiry forces a timeout submit.
func (s *Session) armTimer(d time.Duration) {
	attemptID := s.attempt.ID
	s.timer = s.clock.AfterFunc(d, func() {
		if err := s.Submit(context.Background(), models.EndReasonTimeout); err != nil && !IsInvalidTransition(err) {
			s.logger.Error("Timeout auto-submit failed", "attempt_id", attemptID, "error", err)
		}
	})
}

// ===== ACTIVE-STATE OPERATIONS =====

// Answer overwrites the stored value at (flatIndex, subKey). Valid only
// while Active; answers are persisted at submit, not here.
func (s *Session) Answer(flatIndex int, subKey string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return ErrNotActive
	}
	if flatIndex < 0 || flatIndex >= s.index.Len() {
		return fmt.Errorf("%w: %d", ErrUnitOutOfRange, flatIndex)
	}

	if subKey == "" {
		s.answers[flatIndex] = models.Answer{Value: value}
		return nil
	}

	answer := s.answers[flatIndex]
	if answer.Parts == nil {
		answer.Parts = make(map[string]string)
	}
	answer.Parts[subKey] = value
	answer.Value = ""
	s.answers[flatIndex] = answer
	return nil
}

// Next advances the cursor; a no-op at the upper boundary. Each move
// banks the wall-clock time spent on the unit being left.
func (s *Session) Next() error {
	return s.move(+1)
}

// Previous moves the cursor back; a no-op at the lower boundary.
func (s *Session) Previous() error {
	return s.move(-1)
}

func (s *Session) move(delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return ErrNotActive
	}

	target := s.currentIndex + delta
	if target < 0 || target >= s.index.Len() {
		return nil
	}

	s.bankUnitTimeLocked()
	s.currentIndex = target
	return nil
}

func (s *Session) bankUnitTimeLocked() {
	now := s.clock.Now()
	elapsed := int(now.Sub(s.enteredAt).Seconds())
	if elapsed > 0 {
		s.unitTimes[s.currentIndex] += elapsed
	}
	s.enteredAt = now
}

// ToggleFlag marks or unmarks a unit for later revisit. Bookkeeping only.
func (s *Session) ToggleFlag(flatIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return ErrNotActive
	}
	if flatIndex < 0 || flatIndex >= s.index.Len() {
		return fmt.Errorf("%w: %d", ErrUnitOutOfRange, flatIndex)
	}

	if s.flagged[flatIndex] {
		delete(s.flagged, flatIndex)
	} else {
		s.flagged[flatIndex] = true
	}
	return nil
}

// Flagged reports whether a unit is marked for revisit.
func (s *Session) Flagged(flatIndex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flagged[flatIndex]
}

// ===== SUBMISSION =====

// Submit finalizes the attempt: scores the answer map, freezes the
// attempt record, and transitions to Submitted. One-way; a second call
// reports ErrAttemptAlreadySubmitted. Reachable from an explicit learner
// action, timer expiry, integrity enforcement, or session close.
//
// A failed persistence write is logged and returned as a recoverable
// PersistenceError; the in-memory transition still completes so the
// learner is never blocked by a backend hiccup.
func (s *Session) Submit(ctx context.Context, reason models.EndReason) error {
	s.mu.Lock()

	if s.state == StateSubmitted || s.state == StateReviewing {
		s.mu.Unlock()
		return ErrAttemptAlreadySubmitted
	}
	if s.state != StateActive {
		s.mu.Unlock()
		return ErrNotActive
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	s.bankUnitTimeLocked()

	result := s.engine.Score(s.index.Units(), s.answers)

	now := s.clock.Now()
	timeSpent := int(now.Sub(s.attempt.StartedAt).Seconds())

	s.attempt.Status = models.AttemptSubmitted
	s.attempt.SubmittedAt = &now
	s.attempt.TimeSpent = &timeSpent
	s.attempt.Score = result.Score
	s.attempt.Total = result.Total
	s.attempt.Percentage = result.Percentage
	s.attempt.TipsUsed = s.tipsUsed
	s.attempt.EndReason = &reason

	if data, err := json.Marshal(s.answers); err == nil {
		s.attempt.Answers = data
	}
	if data, err := json.Marshal(s.unitTimes); err == nil {
		s.attempt.UnitTimes = data
	}

	s.state = StateSubmitted
	attempt := s.attempt
	tipsUsed := s.tipsUsed
	s.mu.Unlock()

	s.logger.Info("Attempt submitted",
		"attempt_id", attempt.ID,
		"quiz_id", attempt.QuizID,
		"student_id", attempt.StudentID,
		"reason", reason,
		"score", result.Score,
		"total", result.Total,
		"percentage", result.Percentage)

	eventType := events.EventAttemptSubmitted
	if reason != models.EndReasonLearner {
		eventType = events.EventAttemptAutoSubmitted
	}
	if err := s.publisher.PublishSessionEvent(ctx, eventType, events.AttemptSubmittedEvent{
		AttemptID:   attempt.ID,
		QuizID:      attempt.QuizID,
		StudentID:   attempt.StudentID,
		SubmittedAt: now,
		EndReason:   reason,
		Score:       result.Score,
		Total:       result.Total,
		Percentage:  result.Percentage,
		TimeSpent:   timeSpent,
		TipsUsed:    tipsUsed,
	}); err != nil {
		s.logger.Warn("Failed to publish submission event", "attempt_id", attempt.ID, "error", err)
	}

	if err := s.repo.Attempt().Update(ctx, attempt); err != nil {
		s.logger.Error("Failed to persist submitted attempt",
			"attempt_id", attempt.ID, "error", err)
		return &PersistenceError{Op: "submit", Err: err}
	}

	return nil
}

// Close treats leaving an active session as an implicit forced submit with
// whatever answers exist. There is no discard path.
func (s *Session) Close(ctx context.Context) error {
	err := s.Submit(ctx, models.EndReasonAbandoned)
	if err == nil || IsInvalidTransition(err) {
		return nil
	}
	return err
}

// ===== REVIEW MODE =====

// BeginReview enters the read-only review sub-mode. Valid only from
// Submitted; answers stay frozen, only navigation works.
func (s *Session) BeginReview() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSubmitted {
		return ErrNotSubmitted
	}
	s.state = StateReviewing
	s.currentIndex = 0
	return nil
}

// EndReview returns from Reviewing to Submitted.
func (s *Session) EndReview() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReviewing {
		return ErrNotReviewing
	}
	s.state = StateSubmitted
	return nil
}

// ReviewNext moves the review cursor forward; no time is banked and no
// answer can change.
func (s *Session) ReviewNext() error {
	return s.reviewMove(+1)
}

// ReviewPrevious moves the review cursor back.
func (s *Session) ReviewPrevious() error {
	return s.reviewMove(-1)
}

func (s *Session) reviewMove(delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReviewing {
		return ErrNotReviewing
	}
	target := s.currentIndex + delta
	if target < 0 || target >= s.index.Len() {
		return nil
	}
	s.currentIndex = target
	return nil
}

// ===== ASSISTANCE =====

// RequestHint returns the cached or freshly generated hint for an address.
// Gated by the quiz's tips toggle and the per-attempt quota; an address
// meters against the quota only on its first open, and privileged roles
// are never metered. The generation call runs outside the session lock so
// a timer- or integrity-triggered submit is never blocked behind it.
func (s *Session) RequestHint(ctx context.Context, addr normalizer.Address) (assist.Entry, error) {
	s.mu.Lock()

	if s.state != StateActive {
		s.mu.Unlock()
		return assist.Entry{}, ErrNotActive
	}
	if !s.quiz.TipsAllowed && !s.role.IsPrivileged() {
		s.mu.Unlock()
		return assist.Entry{}, ErrTipsNotAllowed
	}

	unit := s.index.Unit(addr.FlatIndex)
	if unit == nil {
		s.mu.Unlock()
		return assist.Entry{}, fmt.Errorf("%w: %d", ErrUnitOutOfRange, addr.FlatIndex)
	}

	key := addr.Key()
	if !s.role.IsPrivileged() && !s.opened[key] {
		if s.tipsUsed >= s.quiz.TipsQuota {
			s.mu.Unlock()
			return assist.Entry{}, ErrTipsQuotaExceeded
		}
		s.opened[key] = true
		s.tipsUsed++
	}
	quizID := s.attempt.QuizID
	s.mu.Unlock()

	return s.assists.Get(ctx, quizID, models.PhaseHint, unit, addr)
}

// RequestExplanation returns the explanation for an address during review.
// Unmetered.
func (s *Session) RequestExplanation(ctx context.Context, addr normalizer.Address) (assist.Entry, error) {
	s.mu.Lock()

	if s.state != StateReviewing {
		s.mu.Unlock()
		return assist.Entry{}, ErrNotReviewing
	}
	unit := s.index.Unit(addr.FlatIndex)
	if unit == nil {
		s.mu.Unlock()
		return assist.Entry{}, fmt.Errorf("%w: %d", ErrUnitOutOfRange, addr.FlatIndex)
	}
	quizID := s.attempt.QuizID
	s.mu.Unlock()

	return s.assists.Get(ctx, quizID, models.PhaseExplanation, unit, addr)
}

// Result re-scores the frozen answer map. Valid once submitted; scoring
// is deterministic so this always reproduces the stored score.
func (s *Session) Result() (scoring.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSubmitted && s.state != StateReviewing {
		return scoring.Result{}, ErrNotSubmitted
	}
	return s.engine.Score(s.index.Units(), s.answers), nil
}
