package session

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/quiz-engine/internal/assist"
	"github.com/SAP-F-2025/quiz-engine/internal/auth"
	"github.com/SAP-F-2025/quiz-engine/internal/cache"
	"github.com/SAP-F-2025/quiz-engine/internal/events"
	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
	"github.com/SAP-F-2025/quiz-engine/internal/scoring"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ===== FAKE CLOCK =====

// fakeClock drives Now and timers by hand so countdowns and the integrity
// grace delay are deterministic.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	fireAt time.Time
	f      func()
	fired  bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) *time.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timers = append(c.timers, &fakeTimer{fireAt: c.now.Add(d), f: f})
	// The returned handle is never allowed to fire on its own.
	t := time.NewTimer(24 * time.Hour)
	t.Stop()
	return t
}

// Advance moves the clock and runs every timer that came due, in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.fired && !t.fireAt.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

// ===== IN-MEMORY REPOSITORIES =====

type memQuizRepo struct {
	mu      sync.Mutex
	quizzes map[uint]*models.Quiz
}

func (r *memQuizRepo) GetByID(_ context.Context, id uint) (*models.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if quiz, ok := r.quizzes[id]; ok {
		copied := *quiz
		copied.Questions = nil
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memQuizRepo) GetByIDWithQuestions(_ context.Context, id uint) (*models.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if quiz, ok := r.quizzes[id]; ok {
		copied := *quiz
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memQuizRepo) List(_ context.Context, createdBy string, limit, offset int) ([]*models.Quiz, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Quiz
	for _, quiz := range r.quizzes {
		if createdBy == "" || quiz.CreatedBy == createdBy {
			out = append(out, quiz)
		}
	}
	return out, int64(len(out)), nil
}

type memAttemptRepo struct {
	mu        sync.Mutex
	attempts  map[uint]*models.QuizAttempt
	nextID    uint
	createErr error
	updateErr error
}

func (r *memAttemptRepo) Create(_ context.Context, attempt *models.QuizAttempt) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	attempt.ID = r.nextID
	copied := *attempt
	r.attempts[attempt.ID] = &copied
	return nil
}

func (r *memAttemptRepo) GetByID(_ context.Context, id uint) (*models.QuizAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if attempt, ok := r.attempts[id]; ok {
		copied := *attempt
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memAttemptRepo) GetByIDWithDetails(ctx context.Context, id uint) (*models.QuizAttempt, error) {
	return r.GetByID(ctx, id)
}

func (r *memAttemptRepo) Update(_ context.Context, attempt *models.QuizAttempt) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *attempt
	r.attempts[attempt.ID] = &copied
	return nil
}

func (r *memAttemptRepo) UpdateAnalysis(_ context.Context, id uint, analysis string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if attempt, ok := r.attempts[id]; ok {
		attempt.AIAnalysis = &analysis
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (r *memAttemptRepo) List(_ context.Context, filters repositories.AttemptFilters) ([]*models.QuizAttempt, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.QuizAttempt
	for _, attempt := range r.attempts {
		if filters.QuizID != nil && attempt.QuizID != *filters.QuizID {
			continue
		}
		if filters.StudentID != nil && attempt.StudentID != *filters.StudentID {
			continue
		}
		if filters.Status != "" && attempt.Status != filters.Status {
			continue
		}
		out = append(out, attempt)
	}
	return out, int64(len(out)), nil
}

func (r *memAttemptRepo) GetByStudentAndQuiz(_ context.Context, studentID string, quizID uint) ([]*models.QuizAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.QuizAttempt
	for _, attempt := range r.attempts {
		if attempt.StudentID == studentID && attempt.QuizID == quizID {
			out = append(out, attempt)
		}
	}
	return out, nil
}

func (r *memAttemptRepo) GetActiveAttempt(_ context.Context, studentID string, quizID uint) (*models.QuizAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, attempt := range r.attempts {
		if attempt.StudentID == studentID && attempt.QuizID == quizID && attempt.Status == models.AttemptInProgress {
			copied := *attempt
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memAttemptRepo) CountByStudentAndQuiz(_ context.Context, studentID string, quizID uint) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, attempt := range r.attempts {
		if attempt.StudentID == studentID && attempt.QuizID == quizID {
			count++
		}
	}
	return count, nil
}

type memAssistRepo struct {
	mu      sync.Mutex
	entries map[string]*models.AssistEntry
}

func (r *memAssistRepo) key(quizID uint, phase models.AssistPhase, address string) string {
	return string(phase) + "|" + address
}

func (r *memAssistRepo) Get(_ context.Context, quizID uint, phase models.AssistPhase, address string) (*models.AssistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[r.key(quizID, phase, address)]; ok {
		return entry, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memAssistRepo) Upsert(_ context.Context, entry *models.AssistEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.key(entry.QuizID, entry.Phase, entry.Address)] = entry
	return nil
}

func (r *memAssistRepo) Delete(_ context.Context, quizID uint, phase models.AssistPhase, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, r.key(quizID, phase, address))
	return nil
}

func (r *memAssistRepo) ListByQuiz(_ context.Context, quizID uint, phase models.AssistPhase) ([]*models.AssistEntry, error) {
	return nil, nil
}

type memIntegrityRepo struct {
	mu     sync.Mutex
	events []*models.IntegrityEvent
}

func (r *memIntegrityRepo) Create(_ context.Context, event *models.IntegrityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *memIntegrityRepo) GetByAttempt(_ context.Context, attemptID uint) ([]*models.IntegrityEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.IntegrityEvent
	for _, event := range r.events {
		if event.AttemptID == attemptID {
			out = append(out, event)
		}
	}
	return out, nil
}

type memRepo struct {
	quiz      *memQuizRepo
	attempt   *memAttemptRepo
	assist    *memAssistRepo
	integrity *memIntegrityRepo
}

func newMemRepo() *memRepo {
	return &memRepo{
		quiz:      &memQuizRepo{quizzes: make(map[uint]*models.Quiz)},
		attempt:   &memAttemptRepo{attempts: make(map[uint]*models.QuizAttempt)},
		assist:    &memAssistRepo{entries: make(map[string]*models.AssistEntry)},
		integrity: &memIntegrityRepo{},
	}
}

func (r *memRepo) Quiz() repositories.QuizRepository           { return r.quiz }
func (r *memRepo) Attempt() repositories.AttemptRepository     { return r.attempt }
func (r *memRepo) Assist() repositories.AssistRepository       { return r.assist }
func (r *memRepo) Integrity() repositories.IntegrityRepository { return r.integrity }

// ===== FIXTURES =====

func mustContent(t *testing.T, v interface{}) datatypes.JSON {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal content: %v", err)
	}
	return data
}

// testQuiz has four units: single choice (1 pt), drag drop with two zones
// (2 pts), and a passage group expanding to two sub-question units (2 pts).
func testQuiz(t *testing.T) *models.Quiz {
	t.Helper()
	return &models.Quiz{
		ID:          1,
		Title:       "Geography Basics",
		Duration:    30,
		Status:      models.QuizActive,
		MaxAttempts: 2,
		TipsAllowed: true,
		TipsQuota:   1,
		CreatedBy:   "teacher-1",
		Questions: []models.Question{
			{
				ID: 1, QuizID: 1, Type: models.SingleChoice, Order: 0, Text: "Capital of France?",
				Content: mustContent(t, models.SingleChoiceContent{
					Options:       []string{"Paris", "Lyon"},
					CorrectAnswer: "Paris",
				}),
			},
			{
				ID: 2, QuizID: 1, Type: models.DragDropSingle, Order: 1, Text: "Place the rivers.",
				Content: mustContent(t, models.DragDropContent{
					Items: []string{"Seine", "Rhone"},
					Zones: []models.DropZone{
						{ID: "z1", CorrectAnswer: "Seine"},
						{ID: "z2", CorrectAnswer: "Rhone"},
					},
				}),
			},
			{
				ID: 3, QuizID: 1, Type: models.ReadingPassage, Order: 2, Text: "Read and answer.",
				Content: mustContent(t, models.ReadingPassageContent{
					Passages: map[string]string{"p1": "The Alps span eight countries."},
					SubQuestions: []models.SubQuestion{
						{Text: "How many countries?", Options: []string{"eight", "five"}, CorrectAnswer: "eight"},
						{Text: "Mountain range?", Options: []string{"Alps", "Andes"}, CorrectAnswer: "Alps"},
					},
				}),
			},
		},
	}
}

type testEnv struct {
	manager   *Manager
	repo      *memRepo
	publisher *events.MockEventPublisher
	provider  *assist.MockProvider
	clock     *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := newMemRepo()
	repo.quiz.quizzes[1] = testQuiz(t)

	publisher := events.NewMockEventPublisher(logger)
	provider := &assist.MockProvider{Response: `{"advice": "Look closer."}`}
	assists := assist.NewService(repo.Assist(), provider, logger)
	clock := newFakeClock()

	roles := &auth.StaticResolver{
		Roles:   map[string]models.UserRole{"teacher-1": models.RoleTeacher},
		Default: models.RoleStudent,
	}

	manager := NewManager(
		repo,
		scoring.NewEngine(),
		assists,
		publisher,
		cache.NoopCache{},
		roles,
		logger,
		WithClock(clock),
	)

	return &testEnv{
		manager:   manager,
		repo:      repo,
		publisher: publisher,
		provider:  provider,
		clock:     clock,
	}
}
