// Package scoring computes per-unit correctness and aggregate scores over
// the normalizer's atomic units. Scoring is deterministic and side-effect
// free: re-running it on a submitted attempt's stored answers reproduces
// the stored score exactly.
package scoring

import (
	"math"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/normalizer"
)

// UnitResult is the outcome for a single atomic unit.
type UnitResult struct {
	FlatIndex  int  `json:"flat_index"`
	Achievable int  `json:"achievable"`
	Earned     int  `json:"earned"`
	Correct    bool `json:"correct"`

	// AutoScored is false for long-response units, which are excluded
	// from the total and left for qualitative marking elsewhere.
	AutoScored bool `json:"auto_scored"`
}

// Result aggregates the attempt's score.
type Result struct {
	Total      int          `json:"total"`
	Score      int          `json:"score"`
	Percentage int          `json:"percentage"`
	Units      []UnitResult `json:"units"`
}

// Strategy grades one unit of a given question type. Comparisons are
// closed-world: strict string equality, no case folding or fuzzy matching.
type Strategy interface {
	// Achievable returns the unit's maximum points.
	Achievable(unit *normalizer.Unit) int

	// Grade returns points earned for the learner's answer. A missing or
	// partly missing answer earns fewer points; it is never an error.
	Grade(unit *normalizer.Unit, answer models.Answer) int
}

// Engine routes each unit to the strategy for its type tag.
type Engine struct {
	strategies map[models.QuestionType]Strategy
}

// NewEngine installs the built-in strategies for the closed type set.
func NewEngine() *Engine {
	return &Engine{
		strategies: map[models.QuestionType]Strategy{
			models.SingleChoice:       singleChoiceStrategy{},
			models.ReadingPassage:     passageSubQuestionStrategy{},
			models.DragDropSingle:     dragDropStrategy{},
			models.DragDropDual:       dragDropStrategy{},
			models.FillBlanksSeparate: fillBlanksStrategy{},
			models.FillBlanksShared:   fillBlanksStrategy{},
			models.MatchingList:       matchingListStrategy{},
			models.LongResponse:       longResponseStrategy{},
		},
	}
}

// Score grades every unit against the answer map. Long-response units are
// excluded from the total; an empty total yields percentage 0.
func (e *Engine) Score(units []normalizer.Unit, answers models.AnswerMap) Result {
	result := Result{Units: make([]UnitResult, 0, len(units))}

	for i := range units {
		unit := &units[i]
		strategy, ok := e.strategies[unit.Question.Type]
		if !ok {
			continue
		}

		achievable := strategy.Achievable(unit)
		ur := UnitResult{
			FlatIndex:  unit.FlatIndex,
			Achievable: achievable,
			AutoScored: unit.Question.Type != models.LongResponse,
		}

		if ur.AutoScored {
			ur.Earned = strategy.Grade(unit, answers[unit.FlatIndex])
			ur.Correct = achievable > 0 && ur.Earned == achievable
			result.Total += achievable
			result.Score += ur.Earned
		}

		result.Units = append(result.Units, ur)
	}

	result.Percentage = percentage(result.Score, result.Total)
	return result
}

// TotalPoints returns the achievable total for an empty answer map, used
// when initializing a fresh attempt.
func (e *Engine) TotalPoints(units []normalizer.Unit) int {
	return e.Score(units, models.AnswerMap{}).Total
}

func percentage(score, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}
