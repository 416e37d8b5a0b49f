package session

import (
	"context"
	"time"

	"github.com/SAP-F-2025/quiz-engine/internal/events"
	"github.com/SAP-F-2025/quiz-engine/internal/models"
)

// MaxFocusViolations is the focus-loss count that triggers forced
// submission.
const MaxFocusViolations = 3

// DefaultAutoSubmitDelay is how long after the final violation the forced
// submit fires, giving the client a moment to surface the warning.
const DefaultAutoSubmitDelay = 5 * time.Second

// Violation is returned to the caller so the client can warn the learner.
type Violation struct {
	Count          int  `json:"count"`
	Remaining      int  `json:"remaining"`
	WillAutoSubmit bool `json:"will_auto_submit"`
}

// Monitor tracks loss-of-focus events for one active session and enforces
// the auto-submit policy. The violation counter is session-local: it is
// never read back from storage and resets only by starting a new attempt.
type Monitor struct {
	session *Session
	delay   time.Duration

	violations int
	scheduled  bool
}

func newMonitor(s *Session, delay time.Duration) *Monitor {
	if delay <= 0 {
		delay = DefaultAutoSubmitDelay
	}
	return &Monitor{session: s, delay: delay}
}

// Violations returns the current session-local count.
func (m *Monitor) Violations() int {
	m.session.mu.Lock()
	defer m.session.mu.Unlock()
	return m.violations
}

// RecordFocusLoss registers one focus-loss event. Only meaningful while
// the session is Active; privileged roles are exempt. On the third
// violation the monitor schedules a forced submit after a short fixed
// delay, regardless of completion state.
func (m *Monitor) RecordFocusLoss(ctx context.Context, eventType models.IntegrityEventType) (Violation, error) {
	s := m.session

	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return Violation{}, ErrNotActive
	}
	if s.role.IsPrivileged() {
		s.mu.Unlock()
		return Violation{}, nil
	}

	m.violations++
	count := m.violations
	autoSubmit := count >= MaxFocusViolations && !m.scheduled
	if autoSubmit {
		m.scheduled = true
	}

	attempt := s.attempt
	flatIndex := s.currentIndex
	offset := int(s.clock.Now().Sub(attempt.StartedAt).Seconds())
	s.mu.Unlock()

	s.logger.Warn("Focus violation recorded",
		"attempt_id", attempt.ID,
		"student_id", attempt.StudentID,
		"count", count,
		"auto_submit", autoSubmit)

	record := &models.IntegrityEvent{
		AttemptID:  attempt.ID,
		Type:       eventType,
		Severity:   count,
		FlatIndex:  &flatIndex,
		TimeOffset: offset,
	}
	if err := s.repo.Integrity().Create(ctx, record); err != nil {
		s.logger.Error("Failed to persist integrity event",
			"attempt_id", attempt.ID, "error", err)
	}

	if err := s.publisher.PublishSessionEvent(ctx, events.EventIntegrityViolation, events.IntegrityViolationEvent{
		AttemptID:      attempt.ID,
		QuizID:         attempt.QuizID,
		StudentID:      attempt.StudentID,
		ViolationCount: count,
		WillAutoSubmit: autoSubmit,
		OccurredAt:     s.clock.Now(),
	}); err != nil {
		s.logger.Warn("Failed to publish integrity event", "attempt_id", attempt.ID, "error", err)
	}

	if autoSubmit {
		s.clock.AfterFunc(m.delay, func() {
			if err := s.Submit(context.Background(), models.EndReasonIntegrity); err != nil && !IsInvalidTransition(err) {
				s.logger.Error("Integrity auto-submit failed",
					"attempt_id", attempt.ID, "error", err)
			}
		})
	}

	remaining := MaxFocusViolations - count
	if remaining < 0 {
		remaining = 0
	}
	return Violation{Count: count, Remaining: remaining, WillAutoSubmit: autoSubmit}, nil
}
