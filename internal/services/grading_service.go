package services

import (
	"encoding/json"
	"strconv"

	"github.com/SAP-F-2025/submission-service/internal/models"
)

// GradedAnswer is one question of an assessment after grading, in assessment order.
type GradedAnswer struct {
	AssessmentQuestionID uint
	QuestionID           uint
	Question             *models.Question
	Position             int
	Weight               float64

	// UserAnswer is nil when the learner gave no answer for the question
	UserAnswer json.RawMessage
	Answered   bool

	GradeResult
}

// GradeSubmission grades every question of the assessment against the submitted answers,
// which are keyed by question ID. Questions without an entry are graded as missing.
func GradeSubmission(assessment *models.Assessment, answers map[string]json.RawMessage) []GradedAnswer {
	graded := make([]GradedAnswer, 0, len(assessment.Questions))

	for i := range assessment.Questions {
		item := &assessment.Questions[i]
		weight := item.EffectiveWeight()

		result := GradedAnswer{
			AssessmentQuestionID: item.ID,
			QuestionID:           item.QuestionID,
			Question:             &item.Question,
			Position:             item.Position,
			Weight:               weight,
		}

		raw, ok := answers[QuestionKey(item.QuestionID)]
		if !ok {
			result.GradeResult = GradeMissing()
		} else {
			result.Answered = true
			result.UserAnswer = raw
			result.GradeResult = GradeQuestion(&item.Question, raw, weight)
		}

		graded = append(graded, result)
	}

	return graded
}

// QuestionKey is the key under which a question's answer is submitted.
func QuestionKey(questionID uint) string {
	return strconv.FormatUint(uint64(questionID), 10)
}
