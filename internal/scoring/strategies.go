package scoring

import (
	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/normalizer"
)

// Undecodable content grades as zero achievable points rather than failing;
// authoring validation keeps that from happening in practice.

type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Achievable(unit *normalizer.Unit) int {
	if _, err := unit.Question.DecodeContent(); err != nil {
		return 0
	}
	return 1
}

func (s singleChoiceStrategy) Grade(unit *normalizer.Unit, answer models.Answer) int {
	content, err := unit.Question.DecodeContent()
	if err != nil {
		return 0
	}
	sc := content.(*models.SingleChoiceContent)
	if answer.Value != "" && answer.Value == sc.CorrectAnswer {
		return 1
	}
	return 0
}

type passageSubQuestionStrategy struct{}

func (passageSubQuestionStrategy) Achievable(unit *normalizer.Unit) int {
	if unit.SubQuestion == nil {
		return 0
	}
	return 1
}

func (passageSubQuestionStrategy) Grade(unit *normalizer.Unit, answer models.Answer) int {
	if unit.SubQuestion == nil {
		return 0
	}
	if answer.Value != "" && answer.Value == unit.SubQuestion.CorrectAnswer {
		return 1
	}
	return 0
}

type dragDropStrategy struct{}

func (dragDropStrategy) Achievable(unit *normalizer.Unit) int {
	content, err := unit.Question.DecodeContent()
	if err != nil {
		return 0
	}
	return len(content.(*models.DragDropContent).Zones)
}

func (dragDropStrategy) Grade(unit *normalizer.Unit, answer models.Answer) int {
	content, err := unit.Question.DecodeContent()
	if err != nil {
		return 0
	}
	earned := 0
	for _, zone := range content.(*models.DragDropContent).Zones {
		if v := answer.Part(zone.ID); v != "" && v == zone.CorrectAnswer {
			earned++
		}
	}
	return earned
}

type fillBlanksStrategy struct{}

func (fillBlanksStrategy) Achievable(unit *normalizer.Unit) int {
	content, err := unit.Question.DecodeContent()
	if err != nil {
		return 0
	}
	return len(content.(*models.FillBlanksContent).Blanks)
}

func (fillBlanksStrategy) Grade(unit *normalizer.Unit, answer models.Answer) int {
	content, err := unit.Question.DecodeContent()
	if err != nil {
		return 0
	}
	earned := 0
	for _, blank := range content.(*models.FillBlanksContent).Blanks {
		if v := answer.Part(blank.ID); v != "" && v == blank.CorrectAnswer {
			earned++
		}
	}
	return earned
}

type matchingListStrategy struct{}

func (matchingListStrategy) Achievable(unit *normalizer.Unit) int {
	content, err := unit.Question.DecodeContent()
	if err != nil {
		return 0
	}
	return len(content.(*models.MatchingListContent).Pairs)
}

func (matchingListStrategy) Grade(unit *normalizer.Unit, answer models.Answer) int {
	content, err := unit.Question.DecodeContent()
	if err != nil {
		return 0
	}
	earned := 0
	for _, pair := range content.(*models.MatchingListContent).Pairs {
		if v := answer.Part(pair.ID); v != "" && v == pair.CorrectAnswer {
			earned++
		}
	}
	return earned
}

// longResponseStrategy never auto-scores; the stored free text is marked
// qualitatively by an external grader.
type longResponseStrategy struct{}

func (longResponseStrategy) Achievable(*normalizer.Unit) int { return 0 }

func (longResponseStrategy) Grade(*normalizer.Unit, models.Answer) int { return 0 }
