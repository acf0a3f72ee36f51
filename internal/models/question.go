package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
	Essay          QuestionType = "essay"
	Matching       QuestionType = "matching"
	FillInBlank    QuestionType = "fill_blank"
)

// QuestionTypes lists every question type the grader understands.
var QuestionTypes = []QuestionType{MultipleChoice, TrueFalse, ShortAnswer, Essay, Matching, FillInBlank}

func (t QuestionType) IsValid() bool {
	for _, known := range QuestionTypes {
		if t == known {
			return true
		}
	}
	return false
}

type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
)

type Question struct {
	ID   uint         `json:"id" gorm:"primaryKey"`
	Type QuestionType `json:"type" gorm:"not null;index;size:30"`
	Text string       `json:"text" gorm:"type:text;not null"`

	// Answer data stored as JSONB, shape depends on Type
	Options       datatypes.JSON `json:"options,omitempty" gorm:"type:jsonb"`        // []ChoiceOption
	CorrectAnswer datatypes.JSON `json:"correct_answer,omitempty" gorm:"type:jsonb"` // scalar, list, mapping or list of lists

	Explanation *string         `json:"explanation,omitempty" gorm:"type:text"`
	Difficulty  DifficultyLevel `json:"difficulty" gorm:"default:medium;size:20"`
	Tags        datatypes.JSON  `json:"tags,omitempty" gorm:"type:jsonb"` // []string

	CreatedBy string    `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

type ChoiceOption struct {
	Text      string  `json:"text"`
	IsCorrect bool    `json:"is_correct"`
	Feedback  *string `json:"feedback,omitempty"`
}

// ===== ANSWER KEYS =====

// AnswerKey is the decoded, type-specific answer key of a question.
// The set of implementations is closed; graders switch over it.
type AnswerKey interface {
	QuestionType() QuestionType
	answerKey()
}

// MultipleChoiceKey accepts a single option text or the exact set of correct option texts.
type MultipleChoiceKey struct {
	Options []ChoiceOption
}

// TrueFalseKey holds the JSON scalar the answer must strictly equal.
type TrueFalseKey struct {
	Correct any
}

// ShortAnswerKey holds every acceptable answer.
type ShortAnswerKey struct {
	Accepted []string
}

type EssayKey struct{}

// MatchingKey maps each left-hand key to its expected value.
type MatchingKey struct {
	Pairs map[string]any
}

// FillInBlankKey holds the acceptable alternatives per blank, in blank order.
// Valid is false when the stored key is not a list.
type FillInBlankKey struct {
	Blanks [][]string
	Valid  bool
}

// UnknownKey is produced for question types this service does not grade.
type UnknownKey struct {
	Type QuestionType
}

func (MultipleChoiceKey) QuestionType() QuestionType { return MultipleChoice }
func (TrueFalseKey) QuestionType() QuestionType      { return TrueFalse }
func (ShortAnswerKey) QuestionType() QuestionType    { return ShortAnswer }
func (EssayKey) QuestionType() QuestionType          { return Essay }
func (MatchingKey) QuestionType() QuestionType       { return Matching }
func (FillInBlankKey) QuestionType() QuestionType    { return FillInBlank }
func (k UnknownKey) QuestionType() QuestionType      { return k.Type }

func (MultipleChoiceKey) answerKey() {}
func (TrueFalseKey) answerKey()      {}
func (ShortAnswerKey) answerKey()    {}
func (EssayKey) answerKey()          {}
func (MatchingKey) answerKey()       {}
func (FillInBlankKey) answerKey()    {}
func (UnknownKey) answerKey()        {}

// CorrectTexts returns the texts of all options flagged correct.
func (k MultipleChoiceKey) CorrectTexts() []string {
	var texts []string
	for _, opt := range k.Options {
		if opt.IsCorrect {
			texts = append(texts, opt.Text)
		}
	}
	return texts
}

// AnswerKey decodes the stored answer data according to the question type.
// Malformed data yields an empty key that never matches rather than an error.
func (q *Question) AnswerKey() AnswerKey {
	switch q.Type {
	case MultipleChoice:
		var options []ChoiceOption
		if len(q.Options) > 0 {
			_ = json.Unmarshal(q.Options, &options)
		}
		return MultipleChoiceKey{Options: options}
	case TrueFalse:
		return TrueFalseKey{Correct: decodeJSON(q.CorrectAnswer)}
	case ShortAnswer:
		switch v := decodeJSON(q.CorrectAnswer).(type) {
		case string:
			return ShortAnswerKey{Accepted: []string{v}}
		case []any:
			return ShortAnswerKey{Accepted: stringsOf(v)}
		default:
			return ShortAnswerKey{}
		}
	case Essay:
		return EssayKey{}
	case Matching:
		pairs, _ := decodeJSON(q.CorrectAnswer).(map[string]any)
		return MatchingKey{Pairs: pairs}
	case FillInBlank:
		list, ok := decodeJSON(q.CorrectAnswer).([]any)
		if !ok {
			return FillInBlankKey{}
		}
		blanks := make([][]string, len(list))
		for i, blank := range list {
			switch v := blank.(type) {
			case []any:
				blanks[i] = stringsOf(v)
			case string:
				blanks[i] = []string{v}
			}
		}
		return FillInBlankKey{Blanks: blanks, Valid: true}
	default:
		return UnknownKey{Type: q.Type}
	}
}

// RedactAnswerKey removes everything that reveals the correct answer.
func (q *Question) RedactAnswerKey() {
	q.CorrectAnswer = nil
	q.Explanation = nil
	if len(q.Options) == 0 {
		return
	}
	var options []ChoiceOption
	if err := json.Unmarshal(q.Options, &options); err != nil {
		q.Options = nil
		return
	}
	for i := range options {
		options[i].IsCorrect = false
		options[i].Feedback = nil
	}
	redacted, err := json.Marshal(options)
	if err != nil {
		q.Options = nil
		return
	}
	q.Options = redacted
}

func decodeJSON(raw datatypes.JSON) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func stringsOf(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
