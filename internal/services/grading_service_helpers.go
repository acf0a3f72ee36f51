package services

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/SAP-F-2025/submission-service/internal/models"
)

const (
	feedbackCorrect      = "Correct!"
	feedbackIncorrect    = "Incorrect answer"
	feedbackEssayPending = "This answer will be graded by an instructor"
	feedbackMatchingAll  = "All matches correct!"
	feedbackMatchingSome = "Some matches were incorrect"
	feedbackBlanksAll    = "All blanks filled correctly!"
	feedbackBlanksSome   = "Some blanks were incorrect"
	feedbackUnknownType  = "Unknown question type"
	feedbackNoAnswer     = "No answer provided"
)

// GradeResult is the outcome of grading one answer. Score is always within [0, weight].
type GradeResult struct {
	Score     float64 `json:"score"`
	IsCorrect bool    `json:"is_correct"`
	Feedback  string  `json:"feedback"`
}

// GradeMissing grades a question the learner did not answer.
func GradeMissing() GradeResult {
	return GradeResult{Score: 0, IsCorrect: false, Feedback: feedbackNoAnswer}
}

// GradeQuestion grades a submitted answer against the question's answer key.
// It is pure: the same inputs always produce the same result.
func GradeQuestion(question *models.Question, userAnswer json.RawMessage, weight float64) GradeResult {
	answer := decodeAnswer(userAnswer)

	switch key := question.AnswerKey().(type) {
	case models.MultipleChoiceKey:
		return binary(gradeMultipleChoice(answer, key), weight)
	case models.TrueFalseKey:
		return binary(strictEqual(answer, key.Correct), weight)
	case models.ShortAnswerKey:
		return binary(gradeShortAnswer(answer, key), weight)
	case models.EssayKey:
		return GradeResult{Score: 0, IsCorrect: false, Feedback: feedbackEssayPending}
	case models.MatchingKey:
		return partial(gradeMatching(answer, key), weight, feedbackMatchingAll, feedbackMatchingSome)
	case models.FillInBlankKey:
		return partial(gradeFillInBlank(answer, key), weight, feedbackBlanksAll, feedbackBlanksSome)
	default:
		// Legacy or unknown types never block grading of the rest of the submission
		return GradeResult{Score: 0, IsCorrect: false, Feedback: feedbackUnknownType}
	}
}

func binary(correct bool, weight float64) GradeResult {
	if correct {
		return GradeResult{Score: weight, IsCorrect: true, Feedback: feedbackCorrect}
	}
	return GradeResult{Score: 0, IsCorrect: false, Feedback: feedbackIncorrect}
}

func partial(ratio, weight float64, allCorrect, someIncorrect string) GradeResult {
	if ratio == 1 {
		return GradeResult{Score: weight, IsCorrect: true, Feedback: allCorrect}
	}
	return GradeResult{Score: ratio * weight, IsCorrect: false, Feedback: someIncorrect}
}

// gradeMultipleChoice compares a single value with the first correct option,
// or a list with the exact set of correct options.
func gradeMultipleChoice(answer any, key models.MultipleChoiceKey) bool {
	list, isList := answer.([]any)
	if !isList {
		for _, opt := range key.Options {
			if opt.IsCorrect {
				text, ok := answer.(string)
				return ok && text == opt.Text
			}
		}
		return false
	}

	correct := key.CorrectTexts()
	for _, submitted := range list {
		text, ok := submitted.(string)
		if !ok || !slices.Contains(correct, text) {
			return false
		}
	}
	for _, text := range correct {
		if !slices.ContainsFunc(list, func(v any) bool { return v == text }) {
			return false
		}
	}
	return true
}

func gradeShortAnswer(answer any, key models.ShortAnswerKey) bool {
	text, ok := answer.(string)
	if !ok {
		return false
	}
	normalized := normalize(text)
	for _, accepted := range key.Accepted {
		if normalized == normalize(accepted) {
			return true
		}
	}
	return false
}

// gradeMatching returns the share of submitted pairs that match the key.
func gradeMatching(answer any, key models.MatchingKey) float64 {
	pairs, ok := answer.(map[string]any)
	if !ok || len(pairs) == 0 {
		return 0
	}
	correct := 0
	for k, v := range pairs {
		expected, found := key.Pairs[k]
		if found && strictEqual(v, expected) {
			correct++
		}
	}
	return float64(correct) / float64(len(pairs))
}

// gradeFillInBlank compares blanks position by position up to the shorter list.
func gradeFillInBlank(answer any, key models.FillInBlankKey) float64 {
	blanks, ok := answer.([]any)
	if !ok || !key.Valid {
		return 0
	}
	compared := min(len(blanks), len(key.Blanks))
	if compared == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < compared; i++ {
		text, ok := blanks[i].(string)
		if !ok {
			continue
		}
		normalized := normalize(text)
		if slices.ContainsFunc(key.Blanks[i], func(alt string) bool { return normalize(alt) == normalized }) {
			correct++
		}
	}
	return float64(correct) / float64(compared)
}

// strictEqual compares JSON scalars by type and value. Lists, objects and
// absent values are never equal to anything.
func strictEqual(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return false
	}
}

func decodeAnswer(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
