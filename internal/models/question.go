package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	SingleChoice       QuestionType = "single_choice"
	ReadingPassage     QuestionType = "reading_passage"
	DragDropSingle     QuestionType = "drag_drop_single"
	DragDropDual       QuestionType = "drag_drop_dual"
	FillBlanksSeparate QuestionType = "fill_blanks_separate"
	FillBlanksShared   QuestionType = "fill_blanks_shared"
	MatchingList       QuestionType = "matching_list"
	LongResponse       QuestionType = "long_response"
)

// AllQuestionTypes is the closed set of supported question types.
var AllQuestionTypes = []QuestionType{
	SingleChoice,
	ReadingPassage,
	DragDropSingle,
	DragDropDual,
	FillBlanksSeparate,
	FillBlanksShared,
	MatchingList,
	LongResponse,
}

type Question struct {
	ID     uint         `json:"id" gorm:"primaryKey"`
	QuizID uint         `json:"quiz_id" gorm:"not null;index"`
	Type   QuestionType `json:"type" gorm:"not null;size:30" validate:"required,question_type"`
	Text   string       `json:"text" gorm:"type:text;not null" validate:"required,min=1"`

	// Optional label used to group related questions in listings.
	QuestionName *string `json:"question_name" gorm:"size:200" validate:"omitempty,max=200"`

	// Authored position inside the quiz. The normalizer relies on this
	// ordering being stable.
	Order int `json:"order" gorm:"not null;default:0"`

	// Per-type payload (options, passages, zones, blanks, pairs).
	Content datatypes.JSON `json:"content" gorm:"type:jsonb;not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "quiz_questions"
}

// ===== PER-TYPE CONTENT PAYLOADS =====

type SingleChoiceContent struct {
	Options       []string `json:"options" validate:"required,min=2"`
	CorrectAnswer string   `json:"correct_answer" validate:"required"`
}

type SubQuestion struct {
	Text          string   `json:"text" validate:"required"`
	Options       []string `json:"options" validate:"required,min=2"`
	CorrectAnswer string   `json:"correct_answer" validate:"required"`
}

type ReadingPassageContent struct {
	// Passage text keyed by passage id; referenced by every unit the
	// group expands into.
	Passages     map[string]string `json:"passages"`
	SubQuestions []SubQuestion     `json:"sub_questions"`
}

type DropZone struct {
	ID            string `json:"id" validate:"required"`
	Label         string `json:"label"`
	CorrectAnswer string `json:"correct_answer" validate:"required"`
}

type DragDropContent struct {
	Items []string `json:"items" validate:"required,min=1"`
	// SecondPaneItems is populated for dual-pane drag and drop only.
	SecondPaneItems []string   `json:"second_pane_items,omitempty"`
	Zones           []DropZone `json:"zones" validate:"required,min=1"`
}

type Blank struct {
	ID            string `json:"id" validate:"required"`
	CorrectAnswer string `json:"correct_answer" validate:"required"`
	// Options is set per blank for the separate-options variant.
	Options []string `json:"options,omitempty"`
}

type FillBlanksContent struct {
	// Template with blank placeholders, rendered by the client.
	Template string  `json:"template" validate:"required"`
	Blanks   []Blank `json:"blanks" validate:"required,min=1"`
	// SharedOptions is set for the shared-options variant; every blank
	// draws from the same pool.
	SharedOptions []string `json:"shared_options,omitempty"`
}

type MatchingPair struct {
	ID            string `json:"id" validate:"required"`
	Prompt        string `json:"prompt" validate:"required"`
	CorrectAnswer string `json:"correct_answer" validate:"required"`
}

type MatchingListContent struct {
	Pairs   []MatchingPair `json:"pairs" validate:"required,min=1"`
	Options []string       `json:"options" validate:"required,min=1"`
}

type LongResponseContent struct {
	Guidance string `json:"guidance,omitempty"`
	MinWords int    `json:"min_words,omitempty"`
}

// ===== CONTENT DECODING =====

// DecodeContent unmarshals the question's jsonb payload into the struct
// matching its type tag.
func (q *Question) DecodeContent() (interface{}, error) {
	switch q.Type {
	case SingleChoice:
		return decodeContent[SingleChoiceContent](q)
	case ReadingPassage:
		return decodeContent[ReadingPassageContent](q)
	case DragDropSingle, DragDropDual:
		return decodeContent[DragDropContent](q)
	case FillBlanksSeparate, FillBlanksShared:
		return decodeContent[FillBlanksContent](q)
	case MatchingList:
		return decodeContent[MatchingListContent](q)
	case LongResponse:
		return decodeContent[LongResponseContent](q)
	default:
		return nil, fmt.Errorf("unknown question type: %s", q.Type)
	}
}

func decodeContent[T any](q *Question) (*T, error) {
	var content T
	if err := json.Unmarshal(q.Content, &content); err != nil {
		return nil, fmt.Errorf("failed to decode %s content for question %d: %w", q.Type, q.ID, err)
	}
	return &content, nil
}
