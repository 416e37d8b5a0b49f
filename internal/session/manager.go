package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/quiz-engine/internal/assist"
	"github.com/SAP-F-2025/quiz-engine/internal/auth"
	"github.com/SAP-F-2025/quiz-engine/internal/cache"
	"github.com/SAP-F-2025/quiz-engine/internal/events"
	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/normalizer"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
	"github.com/SAP-F-2025/quiz-engine/internal/scoring"
)

const snapshotCacheTTL = 6 * time.Hour

// Manager opens, resumes, and tracks live sessions. One session per
// attempt id; the registry holds only in-flight sessions, submitted ones
// are rebuilt from storage on demand.
type Manager struct {
	repo      repositories.Repository
	engine    *scoring.Engine
	assists   *assist.Service
	publisher events.EventPublisher
	cache     cache.CacheService
	roles     auth.RoleResolver
	logger    *slog.Logger
	clock     Clock

	autoSubmitDelay time.Duration

	mu       sync.Mutex
	sessions map[uint]*Session
}

type ManagerOption func(*Manager)

// WithClock substitutes the timer source; used by tests to drive the
// countdown and the integrity delay deterministically.
func WithClock(clock Clock) ManagerOption {
	return func(m *Manager) { m.clock = clock }
}

// WithAutoSubmitDelay overrides the grace period between the final focus
// violation and the forced submit.
func WithAutoSubmitDelay(delay time.Duration) ManagerOption {
	return func(m *Manager) { m.autoSubmitDelay = delay }
}

func NewManager(
	repo repositories.Repository,
	engine *scoring.Engine,
	assists *assist.Service,
	publisher events.EventPublisher,
	cacheService cache.CacheService,
	roles auth.RoleResolver,
	logger *slog.Logger,
	opts ...ManagerOption,
) *Manager {
	m := &Manager{
		repo:            repo,
		engine:          engine,
		assists:         assists,
		publisher:       publisher,
		cache:           cacheService,
		roles:           roles,
		logger:          logger,
		clock:           NewRealClock(),
		autoSubmitDelay: DefaultAutoSubmitDelay,
		sessions:        make(map[uint]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ===== LIFECYCLE ENTRY POINTS =====

// Start opens a new attempt at a quiz. An existing in-progress attempt by
// the same learner is resumed instead of refused. The attempt-count quota
// is checked before any state changes, so a refusal leaves no trace;
// privileged roles bypass the quota. The quiz's question list is frozen
// into the attempt at this moment.
//
// A failed attempt-record write does not block the learner: the session
// is returned fully usable alongside a recoverable PersistenceError.
func (m *Manager) Start(ctx context.Context, quizID uint, studentID string) (*Session, error) {
	role := m.resolveRole(ctx, studentID)

	quiz, err := m.repo.Quiz().GetByIDWithQuestions(ctx, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to load quiz %d: %w", quizID, err)
	}
	if quiz.Status != models.QuizActive {
		return nil, ErrQuizNotPublished
	}
	if quiz.DueDate != nil && m.clock.Now().After(*quiz.DueDate) {
		return nil, ErrQuizExpired
	}

	// An abandoned in-progress attempt is resumed, not duplicated.
	if active, err := m.repo.Attempt().GetActiveAttempt(ctx, studentID, quizID); err == nil && active != nil {
		return m.Resume(ctx, active.ID, studentID)
	}

	if !role.IsPrivileged() {
		count, err := m.repo.Attempt().CountByStudentAndQuiz(ctx, studentID, quizID)
		if err != nil {
			return nil, fmt.Errorf("failed to count attempts: %w", err)
		}
		if count >= quiz.MaxAttempts {
			return nil, ErrAttemptLimitExceeded
		}
	}

	index := normalizer.NewIndex(quiz.Questions)
	if index.Len() == 0 {
		return nil, ErrQuizHasNoUnits
	}

	snapshot, err := json.Marshal(quiz.Questions)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot quiz %d: %w", quizID, err)
	}

	now := m.clock.Now()
	timeLimit := quiz.Duration * 60
	endTime := now.Add(time.Duration(timeLimit) * time.Second)

	attempt := &models.QuizAttempt{
		QuizID:       quizID,
		StudentID:    studentID,
		Status:       models.AttemptInProgress,
		StartedAt:    now,
		EndTime:      &endTime,
		TimeLimit:    timeLimit,
		Total:        m.engine.TotalPoints(index.Units()),
		QuizSnapshot: snapshot,
	}

	var persistErr error
	if err := m.repo.Attempt().Create(ctx, attempt); err != nil {
		m.logger.Error("Failed to persist new attempt",
			"quiz_id", quizID, "student_id", studentID, "error", err)
		persistErr = &PersistenceError{Op: "start", Err: err}
	}

	session := m.buildSession(quiz, attempt, role, index, models.AnswerMap{}, map[int]int{}, 0)
	session.state = StateActive
	session.enteredAt = now
	session.armTimer(time.Duration(timeLimit) * time.Second)

	if attempt.ID != 0 {
		m.cacheSnapshot(ctx, attempt.ID, quiz.Questions)
		m.register(session)
	}

	m.logger.Info("Attempt started",
		"attempt_id", attempt.ID,
		"quiz_id", quizID,
		"student_id", studentID,
		"units", index.Len(),
		"time_limit", timeLimit)

	if err := m.publisher.PublishSessionEvent(ctx, events.EventAttemptStarted, events.AttemptStartedEvent{
		AttemptID: attempt.ID,
		QuizID:    quizID,
		QuizTitle: quiz.Title,
		StudentID: studentID,
		StartedAt: now,
		TimeLimit: timeLimit,
		UnitCount: index.Len(),
	}); err != nil {
		m.logger.Warn("Failed to publish start event", "attempt_id", attempt.ID, "error", err)
	}

	return session, persistErr
}

// Resume reattaches to an in-progress attempt, rebuilding the session
// from the frozen snapshot and the persisted answer map when it is no
// longer in the registry. An attempt whose time limit has already passed
// is auto-submitted with whatever answers were saved.
func (m *Manager) Resume(ctx context.Context, attemptID uint, userID string) (*Session, error) {
	if session, ok := m.Get(attemptID); ok {
		if err := m.authorize(session.attempt, userID, "resume"); err != nil {
			return nil, err
		}
		return session, nil
	}

	attempt, err := m.repo.Attempt().GetByID(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to load attempt %d: %w", attemptID, err)
	}
	if err := m.authorize(attempt, userID, "resume"); err != nil {
		return nil, err
	}
	if attempt.Status == models.AttemptSubmitted {
		return nil, ErrAttemptAlreadySubmitted
	}

	session, err := m.rebuild(ctx, attempt)
	if err != nil {
		return nil, err
	}
	session.role = m.resolveRole(ctx, userID)

	elapsed := m.clock.Now().Sub(attempt.StartedAt)
	remaining := time.Duration(attempt.TimeLimit)*time.Second - elapsed
	if remaining <= 0 {
		if err := session.Submit(ctx, models.EndReasonTimeout); err != nil && !IsInvalidTransition(err) {
			m.logger.Error("Failed to close expired attempt", "attempt_id", attemptID, "error", err)
		}
		return nil, ErrAttemptTimeExpired
	}

	session.armTimer(remaining)
	m.register(session)

	m.logger.Info("Attempt resumed",
		"attempt_id", attemptID,
		"student_id", attempt.StudentID,
		"remaining_seconds", int(remaining.Seconds()))
	return session, nil
}

// OpenReview builds a read-only session over a submitted attempt. The
// attempt's owner and privileged roles may review; the caller then enters
// review mode via BeginReview. A missing attempt is terminal, there is
// nothing to retry.
func (m *Manager) OpenReview(ctx context.Context, attemptID uint, userID string) (*Session, error) {
	attempt, err := m.repo.Attempt().GetByIDWithDetails(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to load attempt %d: %w", attemptID, err)
	}

	role := m.resolveRole(ctx, userID)
	if attempt.StudentID != userID && !role.IsPrivileged() {
		return nil, NewPermissionError(userID, attemptID, "attempt", "review", "not the attempt owner")
	}
	if attempt.Status != models.AttemptSubmitted {
		return nil, ErrNotSubmitted
	}

	session, err := m.rebuild(ctx, attempt)
	if err != nil {
		return nil, err
	}
	session.role = role
	session.state = StateSubmitted
	return session, nil
}

// ===== REGISTRY =====

// Get returns the live session for an attempt, if any.
func (m *Manager) Get(attemptID uint) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[attemptID]
	return session, ok
}

// Remove drops a session from the registry. Callers close or submit the
// session first; removal alone never mutates attempt state.
func (m *Manager) Remove(attemptID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, attemptID)
}

// Close force-submits every registered active session. Called on
// shutdown so no attempt is left dangling in-progress.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[uint]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		if err := s.Close(ctx); err != nil {
			m.logger.Error("Failed to close session on shutdown",
				"attempt_id", s.AttemptID(), "error", err)
		}
	}
}

func (m *Manager) register(session *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.attempt.ID] = session
}

// ===== INTERNALS =====

func (m *Manager) buildSession(
	quiz *models.Quiz,
	attempt *models.QuizAttempt,
	role models.UserRole,
	index *normalizer.Index,
	answers models.AnswerMap,
	unitTimes map[int]int,
	tipsUsed int,
) *Session {
	s := &Session{
		state:     StateNotStarted,
		attempt:   attempt,
		quiz:      quiz,
		role:      role,
		questions: quiz.Questions,
		index:     index,
		answers:   answers,
		flagged:   make(map[int]bool),
		opened:    make(map[string]bool),
		tipsUsed:  tipsUsed,
		unitTimes: unitTimes,
		engine:    m.engine,
		assists:   m.assists,
		repo:      m.repo,
		publisher: m.publisher,
		logger:    m.logger,
		clock:     m.clock,
	}
	s.monitor = newMonitor(s, m.autoSubmitDelay)
	return s
}

// rebuild reconstructs a session from storage: questions come from the
// frozen snapshot (cache first, attempt record second) so authoring edits
// after Start never shift unit addressing.
func (m *Manager) rebuild(ctx context.Context, attempt *models.QuizAttempt) (*Session, error) {
	quiz, err := m.repo.Quiz().GetByID(ctx, attempt.QuizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to load quiz %d: %w", attempt.QuizID, err)
	}

	questions, err := m.loadSnapshot(ctx, attempt)
	if err != nil {
		return nil, err
	}
	quiz.Questions = questions

	index := normalizer.NewIndex(questions)
	if index.Len() == 0 {
		return nil, ErrQuizHasNoUnits
	}

	answers, err := attempt.DecodeAnswers()
	if err != nil {
		m.logger.Warn("Discarding undecodable answer map", "attempt_id", attempt.ID, "error", err)
		answers = models.AnswerMap{}
	}

	unitTimes := make(map[int]int)
	if len(attempt.UnitTimes) > 0 {
		if err := json.Unmarshal(attempt.UnitTimes, &unitTimes); err != nil {
			m.logger.Warn("Discarding undecodable unit times", "attempt_id", attempt.ID, "error", err)
			unitTimes = make(map[int]int)
		}
	}

	session := m.buildSession(quiz, attempt, models.RoleStudent, index, answers, unitTimes, attempt.TipsUsed)
	session.state = StateActive
	session.enteredAt = m.clock.Now()
	return session, nil
}

func (m *Manager) loadSnapshot(ctx context.Context, attempt *models.QuizAttempt) ([]models.Question, error) {
	var questions []models.Question
	if err := m.cache.Get(ctx, snapshotCacheKey(attempt.ID), &questions); err == nil && len(questions) > 0 {
		return questions, nil
	}

	questions, err := attempt.DecodeSnapshot()
	if err != nil {
		return nil, err
	}
	if questions == nil {
		return nil, fmt.Errorf("attempt %d has no quiz snapshot", attempt.ID)
	}
	m.cacheSnapshot(ctx, attempt.ID, questions)
	return questions, nil
}

func (m *Manager) cacheSnapshot(ctx context.Context, attemptID uint, questions []models.Question) {
	if err := m.cache.Set(ctx, snapshotCacheKey(attemptID), questions, snapshotCacheTTL); err != nil {
		m.logger.Warn("Failed to cache quiz snapshot", "attempt_id", attemptID, "error", err)
	}
}

func (m *Manager) resolveRole(ctx context.Context, userID string) models.UserRole {
	role, err := m.roles.Resolve(ctx, userID)
	if err != nil {
		m.logger.Warn("Role resolution failed, treating user as student",
			"user_id", userID, "error", err)
		return models.RoleStudent
	}
	return role
}

func (m *Manager) authorize(attempt *models.QuizAttempt, userID, action string) error {
	if attempt.StudentID != userID {
		return NewPermissionError(userID, attempt.ID, "attempt", action, "not the attempt owner")
	}
	return nil
}

func snapshotCacheKey(attemptID uint) string {
	return fmt.Sprintf("quiz-engine:attempt:%d:snapshot", attemptID)
}
