package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/normalizer"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// memAssistRepo is an in-memory AssistRepository keyed like the real one.
type memAssistRepo struct {
	entries   map[string]*models.AssistEntry
	upsertErr error
}

func newMemAssistRepo() *memAssistRepo {
	return &memAssistRepo{entries: make(map[string]*models.AssistEntry)}
}

func (r *memAssistRepo) key(quizID uint, phase models.AssistPhase, address string) string {
	return fmt.Sprintf("%d|%s|%s", quizID, phase, address)
}

func (r *memAssistRepo) Get(_ context.Context, quizID uint, phase models.AssistPhase, address string) (*models.AssistEntry, error) {
	if entry, ok := r.entries[r.key(quizID, phase, address)]; ok {
		return entry, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memAssistRepo) Upsert(_ context.Context, entry *models.AssistEntry) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.entries[r.key(entry.QuizID, entry.Phase, entry.Address)] = entry
	return nil
}

func (r *memAssistRepo) Delete(_ context.Context, quizID uint, phase models.AssistPhase, address string) error {
	delete(r.entries, r.key(quizID, phase, address))
	return nil
}

func (r *memAssistRepo) ListByQuiz(_ context.Context, quizID uint, phase models.AssistPhase) ([]*models.AssistEntry, error) {
	var out []*models.AssistEntry
	for _, entry := range r.entries {
		if entry.QuizID == quizID && entry.Phase == phase {
			out = append(out, entry)
		}
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testUnit(t *testing.T) *normalizer.Unit {
	t.Helper()
	content, err := json.Marshal(models.SingleChoiceContent{
		Options:       []string{"Paris", "Lyon"},
		CorrectAnswer: "Paris",
	})
	if err != nil {
		t.Fatalf("Failed to marshal content: %v", err)
	}
	q := &models.Question{ID: 1, Type: models.SingleChoice, Text: "Capital of France?", Content: datatypes.JSON(content)}
	return &normalizer.Unit{FlatIndex: 0, Question: q, SubIndex: -1}
}

func TestServiceGet(t *testing.T) {
	ctx := context.Background()
	addr := normalizer.UnitAddress(0)

	t.Run("Generates_Once_Then_Reuses", func(t *testing.T) {
		repo := newMemAssistRepo()
		provider := &MockProvider{Response: `{"advice": "Think about European capitals."}`}
		svc := NewService(repo, provider, testLogger())

		first, err := svc.Get(ctx, 1, models.PhaseHint, testUnit(t), addr)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if first.Advice != "Think about European capitals." {
			t.Errorf("Unexpected advice: %q", first.Advice)
		}
		if first.Source != string(models.AssistGenerated) {
			t.Errorf("Source = %q, want generated", first.Source)
		}

		second, err := svc.Get(ctx, 1, models.PhaseHint, testUnit(t), addr)
		if err != nil {
			t.Fatalf("Second get failed: %v", err)
		}
		if second.Advice != first.Advice {
			t.Error("Stored entry should be reused")
		}
		if len(provider.Prompts) != 1 {
			t.Errorf("Provider called %d times, want 1", len(provider.Prompts))
		}
	})

	t.Run("Phases_Do_Not_Collide", func(t *testing.T) {
		repo := newMemAssistRepo()
		provider := &MockProvider{Response: "advice text"}
		svc := NewService(repo, provider, testLogger())

		if _, err := svc.Get(ctx, 1, models.PhaseHint, testUnit(t), addr); err != nil {
			t.Fatalf("Hint get failed: %v", err)
		}
		if _, err := svc.Get(ctx, 1, models.PhaseExplanation, testUnit(t), addr); err != nil {
			t.Fatalf("Explanation get failed: %v", err)
		}
		if len(provider.Prompts) != 2 {
			t.Errorf("Expected one generation per phase, got %d", len(provider.Prompts))
		}
	})

	t.Run("Provider_Failure_Stores_Fallback", func(t *testing.T) {
		repo := newMemAssistRepo()
		provider := &MockProvider{Err: errors.New("model timeout")}
		svc := NewService(repo, provider, testLogger())

		entry, err := svc.Get(ctx, 1, models.PhaseHint, testUnit(t), addr)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if entry.Advice != FallbackAdvice {
			t.Errorf("Expected fallback advice, got %q", entry.Advice)
		}
		if entry.Source != string(models.AssistFallback) {
			t.Errorf("Source = %q, want fallback", entry.Source)
		}

		stored, err := repo.Get(ctx, 1, models.PhaseHint, addr.Key())
		if err != nil {
			t.Fatalf("Fallback should be stored: %v", err)
		}
		if stored.Source != models.AssistFallback {
			t.Errorf("Stored source = %q, want fallback", stored.Source)
		}
	})

	t.Run("Store_Failure_Still_Returns_Entry", func(t *testing.T) {
		repo := newMemAssistRepo()
		repo.upsertErr = errors.New("disk full")
		provider := &MockProvider{Response: "advice text"}
		svc := NewService(repo, provider, testLogger())

		entry, err := svc.Get(ctx, 1, models.PhaseHint, testUnit(t), addr)
		if err != nil {
			t.Fatalf("Get must not fail on a cache write error: %v", err)
		}
		if entry.Advice != "advice text" {
			t.Errorf("Unexpected advice: %q", entry.Advice)
		}
	})
}

func TestServiceEditAndDelete(t *testing.T) {
	ctx := context.Background()
	addr := normalizer.PartAddress(2, normalizer.SubKeyBlank, "b1")
	repo := newMemAssistRepo()
	provider := &MockProvider{Response: "generated advice"}
	svc := NewService(repo, provider, testLogger())

	if err := svc.Edit(ctx, 1, models.PhaseExplanation, addr, Entry{Advice: "Teacher-written explanation."}); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}

	entry, err := svc.Get(ctx, 1, models.PhaseExplanation, testUnit(t), addr)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Advice != "Teacher-written explanation." {
		t.Errorf("Edited entry should win, got %q", entry.Advice)
	}
	if entry.Source != string(models.AssistManual) {
		t.Errorf("Source = %q, want manual", entry.Source)
	}
	if len(provider.Prompts) != 0 {
		t.Error("Manual entry must not trigger generation")
	}

	if err := svc.Delete(ctx, 1, models.PhaseExplanation, addr); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	entry, err = svc.Get(ctx, 1, models.PhaseExplanation, testUnit(t), addr)
	if err != nil {
		t.Fatalf("Get after delete failed: %v", err)
	}
	if entry.Advice != "generated advice" {
		t.Errorf("Deleted address should regenerate, got %q", entry.Advice)
	}
}

func TestServiceRegenerate(t *testing.T) {
	ctx := context.Background()
	addr := normalizer.UnitAddress(0)
	repo := newMemAssistRepo()
	provider := &MockProvider{Response: "first version"}
	svc := NewService(repo, provider, testLogger())

	if _, err := svc.Get(ctx, 1, models.PhaseHint, testUnit(t), addr); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	provider.Response = "second version"
	entry, err := svc.Regenerate(ctx, 1, models.PhaseHint, testUnit(t), addr)
	if err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}
	if entry.Advice != "second version" {
		t.Errorf("Regenerate should overwrite, got %q", entry.Advice)
	}

	stored, err := svc.Get(ctx, 1, models.PhaseHint, testUnit(t), addr)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Advice != "second version" {
		t.Errorf("Stored entry should be the regenerated one, got %q", stored.Advice)
	}
}

func TestParseResponse(t *testing.T) {
	t.Run("Fenced_JSON", func(t *testing.T) {
		entry := ParseResponse("```json\n{\"advice\": \"Check the dates.\", \"passages\": {\"p1\": \"relevant line\"}}\n```")
		if entry.Advice != "Check the dates." {
			t.Errorf("Advice = %q", entry.Advice)
		}
		if entry.Passages["p1"] != "relevant line" {
			t.Errorf("Passages = %v", entry.Passages)
		}
	})

	t.Run("Bare_JSON", func(t *testing.T) {
		entry := ParseResponse(`{"advice": "Read again."}`)
		if entry.Advice != "Read again." || entry.Passages != nil {
			t.Errorf("Got %+v", entry)
		}
	})

	t.Run("Plain_Text", func(t *testing.T) {
		entry := ParseResponse("  Just a plain hint.\n")
		if entry.Advice != "Just a plain hint." {
			t.Errorf("Advice = %q", entry.Advice)
		}
	})
}

func TestBuildPromptPerPhase(t *testing.T) {
	unit := testUnit(t)
	addr := normalizer.UnitAddress(0)

	hint := BuildPrompt(models.PhaseHint, unit, addr)
	explanation := BuildPrompt(models.PhaseExplanation, unit, addr)

	if strings.Contains(hint, "Paris") && !strings.Contains(hint, "Lyon") {
		t.Error("Hint prompt must not single out the correct answer")
	}
	if !strings.Contains(explanation, "Paris") {
		t.Error("Explanation prompt should include the correct answer")
	}
	if hint == explanation {
		t.Error("Phases must produce different prompts")
	}
}
