package assist

import (
	"fmt"
	"sort"
	"strings"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/normalizer"
)

const hintInstruction = `You are a study assistant. Give the learner a hint that points them
toward the right reasoning WITHOUT revealing the correct answer.
Respond as JSON: {"advice": "<hint>", "passages": {"<passage_id>": "<relevant excerpt>"}}.
Omit "passages" when no passage text is given. Return pure JSON only.`

const explanationInstruction = `You are a study assistant reviewing a completed quiz. Explain why the
correct answer is correct, clearly and concisely, for a learner reviewing
their attempt.
Respond as JSON: {"advice": "<explanation>", "passages": {"<passage_id>": "<relevant excerpt>"}}.
Omit "passages" when no passage text is given. Return pure JSON only.`

// BuildPrompt renders the deterministic prompt for a unit (or one part of
// it). The same address always produces the same prompt, which keeps
// generation idempotent-by-default.
func BuildPrompt(phase models.AssistPhase, unit *normalizer.Unit, addr normalizer.Address) string {
	var b strings.Builder

	if phase == models.PhaseHint {
		b.WriteString(hintInstruction)
	} else {
		b.WriteString(explanationInstruction)
	}
	b.WriteString("\n\n")

	if unit.IsPassageUnit() {
		writePassages(&b, unit.Passages)
		b.WriteString(fmt.Sprintf("Question: %s\n", unit.SubQuestion.Text))
		writeOptions(&b, unit.SubQuestion.Options)
		if phase == models.PhaseExplanation {
			b.WriteString(fmt.Sprintf("Correct answer: %s\n", unit.SubQuestion.CorrectAnswer))
		}
		return b.String()
	}

	b.WriteString(fmt.Sprintf("Question: %s\n", unit.Question.Text))
	content, err := unit.Question.DecodeContent()
	if err != nil {
		return b.String()
	}

	switch c := content.(type) {
	case *models.SingleChoiceContent:
		writeOptions(&b, c.Options)
		if phase == models.PhaseExplanation {
			b.WriteString(fmt.Sprintf("Correct answer: %s\n", c.CorrectAnswer))
		}
	case *models.DragDropContent:
		b.WriteString(fmt.Sprintf("Draggable items: %s\n", strings.Join(c.Items, ", ")))
		for _, zone := range c.Zones {
			if addr.Kind == normalizer.SubKeyDropZone && addr.SubKey != zone.ID {
				continue
			}
			b.WriteString(fmt.Sprintf("Drop zone %s (%s)", zone.ID, zone.Label))
			if phase == models.PhaseExplanation {
				b.WriteString(fmt.Sprintf(": correct item %s", zone.CorrectAnswer))
			}
			b.WriteString("\n")
		}
	case *models.FillBlanksContent:
		b.WriteString(fmt.Sprintf("Text: %s\n", c.Template))
		if len(c.SharedOptions) > 0 {
			b.WriteString(fmt.Sprintf("Options (shared): %s\n", strings.Join(c.SharedOptions, ", ")))
		}
		for _, blank := range c.Blanks {
			if addr.Kind == normalizer.SubKeyBlank && addr.SubKey != blank.ID {
				continue
			}
			b.WriteString(fmt.Sprintf("Blank %s", blank.ID))
			if len(blank.Options) > 0 {
				b.WriteString(fmt.Sprintf(" options: %s", strings.Join(blank.Options, ", ")))
			}
			if phase == models.PhaseExplanation {
				b.WriteString(fmt.Sprintf("; correct: %s", blank.CorrectAnswer))
			}
			b.WriteString("\n")
		}
	case *models.MatchingListContent:
		b.WriteString(fmt.Sprintf("Options: %s\n", strings.Join(c.Options, ", ")))
		for _, pair := range c.Pairs {
			if addr.Kind == normalizer.SubKeyMatching && addr.SubKey != pair.ID {
				continue
			}
			b.WriteString(fmt.Sprintf("Match %s: %s", pair.ID, pair.Prompt))
			if phase == models.PhaseExplanation {
				b.WriteString(fmt.Sprintf(" -> %s", pair.CorrectAnswer))
			}
			b.WriteString("\n")
		}
	case *models.LongResponseContent:
		if c.Guidance != "" {
			b.WriteString(fmt.Sprintf("Guidance: %s\n", c.Guidance))
		}
	}

	return b.String()
}

func writeOptions(b *strings.Builder, options []string) {
	if len(options) > 0 {
		b.WriteString(fmt.Sprintf("Options: %s\n", strings.Join(options, ", ")))
	}
}

func writePassages(b *strings.Builder, passages map[string]string) {
	ids := make([]string, 0, len(passages))
	for id := range passages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		b.WriteString(fmt.Sprintf("Passage %s:\n%s\n\n", id, passages[id]))
	}
}
