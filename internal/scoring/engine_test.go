package scoring

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/normalizer"
	"gorm.io/datatypes"
)

func mustContent(t *testing.T, v interface{}) datatypes.JSON {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal content: %v", err)
	}
	return data
}

func singleChoice(t *testing.T, id uint, correct string) models.Question {
	t.Helper()
	return models.Question{
		ID:   id,
		Type: models.SingleChoice,
		Content: mustContent(t, models.SingleChoiceContent{
			Options:       []string{"a", "b", "c"},
			CorrectAnswer: correct,
		}),
	}
}

func TestScoreThreeUnitQuiz(t *testing.T) {
	// Three one-point units, two answered correctly: 2/3 rounds to 67.
	questions := []models.Question{
		singleChoice(t, 1, "a"),
		singleChoice(t, 2, "b"),
		singleChoice(t, 3, "c"),
	}
	units := normalizer.Flatten(questions)
	engine := NewEngine()

	result := engine.Score(units, models.AnswerMap{
		0: {Value: "a"},
		1: {Value: "b"},
		2: {Value: "wrong"},
	})

	if result.Total != 3 {
		t.Errorf("Total = %d, want 3", result.Total)
	}
	if result.Score != 2 {
		t.Errorf("Score = %d, want 2", result.Score)
	}
	if result.Percentage != 67 {
		t.Errorf("Percentage = %d, want 67", result.Percentage)
	}
	if !result.Units[0].Correct || !result.Units[1].Correct || result.Units[2].Correct {
		t.Error("Wrong per-unit correctness flags")
	}
}

func TestScoreDragDropPartialCredit(t *testing.T) {
	questions := []models.Question{
		{
			ID:   1,
			Type: models.DragDropDual,
			Content: mustContent(t, models.DragDropContent{
				Items:           []string{"x", "y", "z"},
				SecondPaneItems: []string{"q"},
				Zones: []models.DropZone{
					{ID: "z1", CorrectAnswer: "x"},
					{ID: "z2", CorrectAnswer: "y"},
					{ID: "z3", CorrectAnswer: "z"},
				},
			}),
		},
	}
	units := normalizer.Flatten(questions)
	engine := NewEngine()

	result := engine.Score(units, models.AnswerMap{
		0: {Parts: map[string]string{"z1": "x", "z2": "wrong", "z3": "z"}},
	})

	if result.Total != 3 || result.Score != 2 {
		t.Errorf("Got %d/%d, want 2/3", result.Score, result.Total)
	}
	if result.Units[0].Correct {
		t.Error("Partially correct unit must not be flagged correct")
	}
}

func TestScoreFillBlanksAndMatching(t *testing.T) {
	questions := []models.Question{
		{
			ID:   1,
			Type: models.FillBlanksShared,
			Content: mustContent(t, models.FillBlanksContent{
				Template:      "The {b1} sat on the {b2}.",
				SharedOptions: []string{"cat", "mat", "dog"},
				Blanks: []models.Blank{
					{ID: "b1", CorrectAnswer: "cat"},
					{ID: "b2", CorrectAnswer: "mat"},
				},
			}),
		},
		{
			ID:   2,
			Type: models.MatchingList,
			Content: mustContent(t, models.MatchingListContent{
				Options: []string{"1789", "1914"},
				Pairs: []models.MatchingPair{
					{ID: "m1", Prompt: "French Revolution", CorrectAnswer: "1789"},
					{ID: "m2", Prompt: "First World War", CorrectAnswer: "1914"},
				},
			}),
		},
	}
	units := normalizer.Flatten(questions)
	engine := NewEngine()

	result := engine.Score(units, models.AnswerMap{
		0: {Parts: map[string]string{"b1": "cat", "b2": "mat"}},
		1: {Parts: map[string]string{"m1": "1789"}},
	})

	if result.Total != 4 || result.Score != 3 {
		t.Errorf("Got %d/%d, want 3/4", result.Score, result.Total)
	}
	if !result.Units[0].Correct {
		t.Error("Fully answered blanks unit should be correct")
	}
	if result.Units[1].Correct {
		t.Error("Half-answered matching unit must not be correct")
	}
}

func TestScorePassageSubQuestions(t *testing.T) {
	questions := []models.Question{
		{
			ID:   1,
			Type: models.ReadingPassage,
			Content: mustContent(t, models.ReadingPassageContent{
				Passages: map[string]string{"p1": "text"},
				SubQuestions: []models.SubQuestion{
					{Text: "one", Options: []string{"a", "b"}, CorrectAnswer: "a"},
					{Text: "two", Options: []string{"a", "b"}, CorrectAnswer: "b"},
				},
			}),
		},
	}
	units := normalizer.Flatten(questions)
	engine := NewEngine()

	result := engine.Score(units, models.AnswerMap{
		0: {Value: "a"},
		1: {Value: "a"},
	})

	if result.Total != 2 || result.Score != 1 {
		t.Errorf("Got %d/%d, want 1/2", result.Score, result.Total)
	}
}

func TestLongResponseExcludedFromTotal(t *testing.T) {
	questions := []models.Question{
		singleChoice(t, 1, "a"),
		{ID: 2, Type: models.LongResponse, Content: mustContent(t, models.LongResponseContent{Guidance: "Discuss."})},
	}
	units := normalizer.Flatten(questions)
	engine := NewEngine()

	result := engine.Score(units, models.AnswerMap{
		0: {Value: "a"},
		1: {Value: "a long essay"},
	})

	if result.Total != 1 || result.Score != 1 {
		t.Errorf("Got %d/%d, want 1/1", result.Score, result.Total)
	}
	if len(result.Units) != 2 {
		t.Fatalf("Expected 2 unit results, got %d", len(result.Units))
	}
	if result.Units[1].AutoScored {
		t.Error("Long response must be marked not auto-scored")
	}
	if result.Units[1].Achievable != 0 || result.Units[1].Earned != 0 {
		t.Error("Long response must not contribute points")
	}
}

func TestScoreEmptyQuiz(t *testing.T) {
	engine := NewEngine()
	result := engine.Score(nil, models.AnswerMap{})
	if result.Total != 0 || result.Score != 0 || result.Percentage != 0 {
		t.Errorf("Empty quiz should score 0/0 at 0%%, got %d/%d at %d%%", result.Score, result.Total, result.Percentage)
	}
}

func TestScoreDeterministic(t *testing.T) {
	questions := []models.Question{
		singleChoice(t, 1, "a"),
		singleChoice(t, 2, "b"),
	}
	units := normalizer.Flatten(questions)
	answers := models.AnswerMap{0: {Value: "a"}}
	engine := NewEngine()

	first := engine.Score(units, answers)
	second := engine.Score(units, answers)
	if !reflect.DeepEqual(first, second) {
		t.Error("Scoring the same answers twice must produce identical results")
	}
}

func TestTotalPoints(t *testing.T) {
	questions := []models.Question{
		singleChoice(t, 1, "a"),
		{
			ID:   2,
			Type: models.DragDropSingle,
			Content: mustContent(t, models.DragDropContent{
				Items: []string{"x"},
				Zones: []models.DropZone{{ID: "z1", CorrectAnswer: "x"}, {ID: "z2", CorrectAnswer: "x"}},
			}),
		},
		{ID: 3, Type: models.LongResponse, Content: mustContent(t, models.LongResponseContent{})},
	}
	engine := NewEngine()
	if total := engine.TotalPoints(normalizer.Flatten(questions)); total != 3 {
		t.Errorf("TotalPoints = %d, want 3", total)
	}
}

func TestUndecodableContentScoresZero(t *testing.T) {
	questions := []models.Question{
		{ID: 1, Type: models.SingleChoice, Content: datatypes.JSON(`[1,2,3]`)},
	}
	units := normalizer.Flatten(questions)
	engine := NewEngine()

	result := engine.Score(units, models.AnswerMap{0: {Value: "a"}})
	if result.Total != 0 || result.Score != 0 {
		t.Errorf("Undecodable content should be worth nothing, got %d/%d", result.Score, result.Total)
	}
}
