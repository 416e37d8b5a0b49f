package normalizer

import (
	"encoding/json"
	"testing"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
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

func sampleQuestions(t *testing.T) []models.Question {
	t.Helper()
	return []models.Question{
		{
			ID:   1,
			Type: models.SingleChoice,
			Text: "Capital of France?",
			Content: mustContent(t, models.SingleChoiceContent{
				Options:       []string{"Paris", "Lyon"},
				CorrectAnswer: "Paris",
			}),
		},
		{
			ID:   2,
			Type: models.ReadingPassage,
			Text: "Read the passages and answer.",
			Content: mustContent(t, models.ReadingPassageContent{
				Passages: map[string]string{"p1": "First passage.", "p2": "Second passage."},
				SubQuestions: []models.SubQuestion{
					{Text: "Sub one?", Options: []string{"a", "b"}, CorrectAnswer: "a"},
					{Text: "Sub two?", Options: []string{"c", "d"}, CorrectAnswer: "d"},
				},
			}),
		},
		{
			ID:   3,
			Type: models.DragDropSingle,
			Text: "Place the items.",
			Content: mustContent(t, models.DragDropContent{
				Items: []string{"x", "y"},
				Zones: []models.DropZone{
					{ID: "z1", CorrectAnswer: "x"},
					{ID: "z2", CorrectAnswer: "y"},
				},
			}),
		},
	}
}

func TestFlatten(t *testing.T) {
	questions := sampleQuestions(t)

	t.Run("Passage_Groups_Expand_Per_SubQuestion", func(t *testing.T) {
		units := Flatten(questions)
		if len(units) != 4 {
			t.Fatalf("Expected 4 units, got %d", len(units))
		}

		for i, unit := range units {
			if unit.FlatIndex != i {
				t.Errorf("Unit %d has flat index %d", i, unit.FlatIndex)
			}
		}

		if units[0].IsPassageUnit() {
			t.Error("Single choice unit should not be a passage unit")
		}
		if !units[1].IsPassageUnit() || !units[2].IsPassageUnit() {
			t.Error("Expected units 1 and 2 to be passage units")
		}
		if units[1].SubIndex != 0 || units[2].SubIndex != 1 {
			t.Errorf("Wrong sub indices: %d, %d", units[1].SubIndex, units[2].SubIndex)
		}
		if units[1].SubQuestion.CorrectAnswer != "a" || units[2].SubQuestion.CorrectAnswer != "d" {
			t.Error("Sub-questions attached in wrong order")
		}
		if len(units[1].Passages) != 2 || units[1].Passages["p1"] != "First passage." {
			t.Error("Passage units should carry the parent group's passages")
		}
		if units[3].Question.Type != models.DragDropSingle {
			t.Errorf("Expected drag drop at flat index 3, got %s", units[3].Question.Type)
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		first := Flatten(questions)
		second := Flatten(questions)
		if len(first) != len(second) {
			t.Fatalf("Unit counts differ: %d vs %d", len(first), len(second))
		}
		for i := range first {
			if first[i].Question.ID != second[i].Question.ID || first[i].SubIndex != second[i].SubIndex {
				t.Errorf("Unit %d differs between runs", i)
			}
		}
	})

	t.Run("Empty_Passage_Group_Emits_Nothing", func(t *testing.T) {
		qs := []models.Question{
			{ID: 10, Type: models.ReadingPassage, Content: mustContent(t, models.ReadingPassageContent{})},
			{ID: 11, Type: models.LongResponse, Content: mustContent(t, models.LongResponseContent{})},
		}
		units := Flatten(qs)
		if len(units) != 1 {
			t.Fatalf("Expected 1 unit, got %d", len(units))
		}
		if units[0].Question.ID != 11 || units[0].FlatIndex != 0 {
			t.Error("Long response should take flat index 0 after the empty group")
		}
	})

	t.Run("Undecodable_Passage_Content_Skipped", func(t *testing.T) {
		qs := []models.Question{
			{ID: 20, Type: models.ReadingPassage, Content: datatypes.JSON(`"not an object"`)},
		}
		if units := Flatten(qs); len(units) != 0 {
			t.Errorf("Expected no units, got %d", len(units))
		}
	})
}

func TestIndex(t *testing.T) {
	ix := NewIndex(sampleQuestions(t))

	if ix.Len() != 4 {
		t.Fatalf("Expected 4 units, got %d", ix.Len())
	}
	if unit := ix.Unit(2); unit == nil || unit.SubIndex != 1 {
		t.Error("Unit(2) should be the second passage sub-question")
	}
	if ix.Unit(-1) != nil || ix.Unit(4) != nil {
		t.Error("Out-of-range lookups should return nil")
	}
}

func TestAddressKey(t *testing.T) {
	cases := []struct {
		addr Address
		key  string
	}{
		{UnitAddress(3), "3"},
		{PartAddress(3, SubKeyBlank, "b2"), "3.blanks.b2"},
		{PartAddress(0, SubKeyDropZone, "z1"), "0.dropZones.z1"},
		{PartAddress(7, SubKeyMatching, "m4"), "7.matchingQuestions.m4"},
	}

	for _, tc := range cases {
		if got := tc.addr.Key(); got != tc.key {
			t.Errorf("Key() = %q, want %q", got, tc.key)
		}
		parsed, err := ParseAddress(tc.key)
		if err != nil {
			t.Errorf("ParseAddress(%q) failed: %v", tc.key, err)
			continue
		}
		if parsed != tc.addr {
			t.Errorf("Round trip mismatch for %q: %+v", tc.key, parsed)
		}
	}
}

func TestParseAddressRejectsMalformed(t *testing.T) {
	for _, key := range []string{"", "abc", "1.zones.z1", "1.blanks", "1.blanks.", "1.2.3.4"} {
		if _, err := ParseAddress(key); err == nil {
			t.Errorf("ParseAddress(%q) should fail", key)
		}
	}
}
