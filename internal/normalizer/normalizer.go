// Package normalizer flattens a quiz's heterogeneous question list into an
// ordered sequence of atomic scorable units. Flattening is deterministic
// and order preserving: answers, caches and navigation all index by the
// flatIndex it assigns, so re-flattening an unchanged question list must
// always reproduce the same sequence.
package normalizer

import (
	"github.com/SAP-F-2025/quiz-engine/internal/models"
)

// Unit is one independently gradable piece of a quiz.
//
// A reading passage group with N sub-questions expands into N units, each
// carrying the parent's passages. Every other question type yields exactly
// one unit; its zones, blanks or pairs stay inside that unit and are scored
// as parts of it.
type Unit struct {
	FlatIndex int

	// Question is the original authored question this unit came from.
	Question *models.Question

	// SubIndex is the position within the parent's sub-question list for
	// passage units, -1 otherwise.
	SubIndex int

	// SubQuestion is set for passage units only.
	SubQuestion *models.SubQuestion

	// Passages carries the parent group's passage text for passage units.
	Passages map[string]string
}

// IsPassageUnit reports whether the unit is one sub-question of a reading
// passage group.
func (u *Unit) IsPassageUnit() bool {
	return u.SubIndex >= 0
}

// Address returns the unit's whole-unit address.
func (u *Unit) Address() Address {
	return UnitAddress(u.FlatIndex)
}

// Flatten expands questions, in authored order, into atomic units.
//
// Questions with undecodable content still emit their unit (with a nil
// payload resolved later by the scorer); a passage group with no
// sub-questions emits nothing. Flatten never fails: absent optional fields
// default to empty collections.
func Flatten(questions []models.Question) []Unit {
	units := make([]Unit, 0, len(questions))
	for i := range questions {
		q := &questions[i]
		if q.Type != models.ReadingPassage {
			units = append(units, Unit{
				FlatIndex: len(units),
				Question:  q,
				SubIndex:  -1,
			})
			continue
		}

		content, err := q.DecodeContent()
		if err != nil {
			continue
		}
		group := content.(*models.ReadingPassageContent)
		for si := range group.SubQuestions {
			units = append(units, Unit{
				FlatIndex:   len(units),
				Question:    q,
				SubIndex:    si,
				SubQuestion: &group.SubQuestions[si],
				Passages:    group.Passages,
			})
		}
	}
	return units
}

// Index maps flatIndex back to the originating question and sub-position.
type Index struct {
	units []Unit
}

// NewIndex flattens questions and retains the mapping.
func NewIndex(questions []models.Question) *Index {
	return &Index{units: Flatten(questions)}
}

// Unit returns the unit at flatIndex, or nil when out of range.
func (ix *Index) Unit(flatIndex int) *Unit {
	if flatIndex < 0 || flatIndex >= len(ix.units) {
		return nil
	}
	return &ix.units[flatIndex]
}

// Units returns the full ordered sequence.
func (ix *Index) Units() []Unit {
	return ix.units
}

// Len returns the unit count.
func (ix *Index) Len() int {
	return len(ix.units)
}
