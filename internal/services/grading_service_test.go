package services

import (
	"encoding/json"
	"testing"

	"github.com/SAP-F-2025/submission-service/internal/models"
)

func TestGradeQuestion(t *testing.T) {
	t.Parallel()

	singleChoice := question(models.MultipleChoice, "")
	singleChoice.Options = choiceOptions(t,
		models.ChoiceOption{Text: "Lyon"},
		models.ChoiceOption{Text: "Paris", IsCorrect: true},
	)
	multiChoice := question(models.MultipleChoice, "")
	multiChoice.Options = choiceOptions(t,
		models.ChoiceOption{Text: "2", IsCorrect: true},
		models.ChoiceOption{Text: "4"},
		models.ChoiceOption{Text: "3", IsCorrect: true},
	)
	trueFalse := question(models.TrueFalse, `true`)
	shortAnswer := question(models.ShortAnswer, `["Mitochondria", "the mitochondria"]`)
	shortSingle := question(models.ShortAnswer, `"Oxygen"`)
	essay := question(models.Essay, "")
	matching := question(models.Matching, `{"a":"x","b":"y"}`)
	blanks := question(models.FillInBlank, `["paris","france"]`)
	blankAlternatives := question(models.FillInBlank, `[["colour","color"],"red"]`)
	brokenBlanks := question(models.FillInBlank, `"paris"`)
	legacy := question(models.QuestionType("hotspot"), `"x"`)

	tests := []struct {
		name     string
		question models.Question
		answer   string
		weight   float64
		want     GradeResult
	}{
		{"single choice correct", singleChoice, `"Paris"`, 2, GradeResult{2, true, feedbackCorrect}},
		{"single choice wrong", singleChoice, `"Lyon"`, 2, GradeResult{0, false, feedbackIncorrect}},
		{"single choice is case sensitive", singleChoice, `"paris"`, 2, GradeResult{0, false, feedbackIncorrect}},
		{"single choice non-string", singleChoice, `1`, 2, GradeResult{0, false, feedbackIncorrect}},
		{"multi choice exact set", multiChoice, `["3","2"]`, 1, GradeResult{1, true, feedbackCorrect}},
		{"multi choice missing one", multiChoice, `["2"]`, 1, GradeResult{0, false, feedbackIncorrect}},
		{"multi choice extra wrong", multiChoice, `["2","3","4"]`, 1, GradeResult{0, false, feedbackIncorrect}},
		{"multi choice empty list", multiChoice, `[]`, 1, GradeResult{0, false, feedbackIncorrect}},
		{"true false strict bool", trueFalse, `true`, 1, GradeResult{1, true, feedbackCorrect}},
		{"true false string is not bool", trueFalse, `"true"`, 1, GradeResult{0, false, feedbackIncorrect}},
		{"true false wrong", trueFalse, `false`, 1, GradeResult{0, false, feedbackIncorrect}},
		{"true false null", trueFalse, `null`, 1, GradeResult{0, false, feedbackIncorrect}},
		{"short answer normalized", shortAnswer, `"  THE Mitochondria "`, 3, GradeResult{3, true, feedbackCorrect}},
		{"short answer single key", shortSingle, `"oxygen"`, 1, GradeResult{1, true, feedbackCorrect}},
		{"short answer wrong", shortAnswer, `"nucleus"`, 3, GradeResult{0, false, feedbackIncorrect}},
		{"short answer non-string", shortAnswer, `42`, 3, GradeResult{0, false, feedbackIncorrect}},
		{"essay awaits instructor", essay, `"A long answer"`, 5, GradeResult{0, false, feedbackEssayPending}},
		{"matching all", matching, `{"a":"x","b":"y"}`, 2, GradeResult{2, true, feedbackMatchingAll}},
		{"matching half", matching, `{"a":"x","b":"z"}`, 2, GradeResult{1, false, feedbackMatchingSome}},
		{"matching unknown key", matching, `{"a":"x","c":"y"}`, 4, GradeResult{2, false, feedbackMatchingSome}},
		{"matching subset counts submitted pairs", matching, `{"a":"x"}`, 2, GradeResult{2, true, feedbackMatchingAll}},
		{"matching empty object", matching, `{}`, 2, GradeResult{0, false, feedbackMatchingSome}},
		{"matching array", matching, `["x","y"]`, 2, GradeResult{0, false, feedbackMatchingSome}},
		{"blanks normalized", blanks, `["Paris"," FRANCE "]`, 1, GradeResult{1, true, feedbackBlanksAll}},
		{"blanks half", blanks, `["paris","spain"]`, 2, GradeResult{1, false, feedbackBlanksSome}},
		{"blanks shorter answer", blanks, `["paris"]`, 2, GradeResult{2, true, feedbackBlanksAll}},
		{"blanks alternatives", blankAlternatives, `["Color","RED"]`, 1, GradeResult{1, true, feedbackBlanksAll}},
		{"blanks empty answer", blanks, `[]`, 1, GradeResult{0, false, feedbackBlanksSome}},
		{"blanks non-list answer", blanks, `"paris"`, 1, GradeResult{0, false, feedbackBlanksSome}},
		{"blanks non-list key", brokenBlanks, `["paris"]`, 1, GradeResult{0, false, feedbackBlanksSome}},
		{"unknown type", legacy, `"x"`, 1, GradeResult{0, false, feedbackUnknownType}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := GradeQuestion(&tt.question, raw(tt.answer), tt.weight)
			if got != tt.want {
				t.Errorf("GradeQuestion() = %+v, want %+v", got, tt.want)
			}
			if got.Score < 0 || got.Score > tt.weight {
				t.Errorf("score %v outside [0, %v]", got.Score, tt.weight)
			}
			if again := GradeQuestion(&tt.question, raw(tt.answer), tt.weight); again != got {
				t.Errorf("second grading = %+v, first = %+v", again, got)
			}
		})
	}
}

func TestGradeSubmission(t *testing.T) {
	t.Parallel()

	assessment := &models.Assessment{
		PassingScore: 50,
		Questions: []models.AssessmentQuestion{
			{ID: 11, QuestionID: 1, Position: 1, Question: models.Question{ID: 1, Type: models.TrueFalse, CorrectAnswer: []byte(`true`)}},
			{ID: 12, QuestionID: 2, Position: 2, Weight: ptr(0.0), Question: models.Question{ID: 2, Type: models.ShortAnswer, CorrectAnswer: []byte(`"cell"`)}},
			{ID: 13, QuestionID: 3, Position: 3, Weight: ptr(5.0), Question: models.Question{ID: 3, Type: models.Essay}},
			{ID: 14, QuestionID: 4, Position: 4, Weight: ptr(2.0), Question: models.Question{ID: 4, Type: models.TrueFalse, CorrectAnswer: []byte(`false`)}},
		},
	}
	answers := map[string]json.RawMessage{
		"1":  raw(`true`),
		"2":  raw(`"Cell"`),
		"3":  raw(`"essay text"`),
		"4":  raw(`null`),
		"99": raw(`"ignored"`),
	}

	graded := GradeSubmission(assessment, answers)
	if len(graded) != 4 {
		t.Fatalf("GradeSubmission() returned %d answers, want 4", len(graded))
	}

	tests := []struct {
		idx      int
		weight   float64
		score    float64
		answered bool
		feedback string
	}{
		{0, 1, 1, true, feedbackCorrect},
		{1, 1, 1, true, feedbackCorrect}, // zero weight counts as one
		{2, 5, 0, true, feedbackEssayPending},
		{3, 2, 0, true, feedbackIncorrect}, // explicit null is an answer, and a wrong one
	}
	for _, tt := range tests {
		got := graded[tt.idx]
		if got.Weight != tt.weight || got.Score != tt.score || got.Answered != tt.answered || got.Feedback != tt.feedback {
			t.Errorf("graded[%d] = %+v, want weight %v score %v answered %v feedback %q",
				tt.idx, got, tt.weight, tt.score, tt.answered, tt.feedback)
		}
		if got.AssessmentQuestionID != assessment.Questions[tt.idx].ID || got.QuestionID != assessment.Questions[tt.idx].QuestionID {
			t.Errorf("graded[%d] ids = %d/%d", tt.idx, got.AssessmentQuestionID, got.QuestionID)
		}
	}

	missing := GradeSubmission(assessment, map[string]json.RawMessage{})
	for i, a := range missing {
		if a.Answered || a.Score != 0 || a.Feedback != feedbackNoAnswer || a.UserAnswer != nil {
			t.Errorf("missing[%d] = %+v", i, a)
		}
	}
}

func TestQuestionKey(t *testing.T) {
	if got := QuestionKey(42); got != "42" {
		t.Errorf("QuestionKey(42) = %q", got)
	}
}
