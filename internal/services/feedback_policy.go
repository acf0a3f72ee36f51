package services

import "github.com/SAP-F-2025/submission-service/internal/models"

// SelectFeedback returns per-question feedback when the assessment's policy allows it, nil otherwise.
// on_completion only reveals feedback on the learner's last allowed attempt.
func SelectFeedback(mode models.FeedbackMode, attemptNumber, maxAttempts int, answers []GradedAnswer) []AnswerFeedback {
	switch mode {
	case models.FeedbackAlways:
	case models.FeedbackOnCompletion:
		if attemptNumber < maxAttempts {
			return nil
		}
	default:
		return nil
	}

	feedback := make([]AnswerFeedback, 0, len(answers))
	for _, a := range answers {
		item := AnswerFeedback{
			QuestionID: a.QuestionID,
			IsCorrect:  a.IsCorrect,
			Feedback:   a.Feedback,
		}
		if a.Answered {
			item.UserAnswer = a.UserAnswer
		}
		feedback = append(feedback, item)
	}
	return feedback
}
