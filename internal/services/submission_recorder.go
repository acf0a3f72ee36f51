package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"gorm.io/datatypes"

	"github.com/SAP-F-2025/submission-service/internal/models"
	"github.com/SAP-F-2025/submission-service/internal/repositories"
)

// SubmissionRecorder turns graded answers into a stored, immutable submission.
type SubmissionRecorder struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewSubmissionRecorder(repo repositories.Repository, logger *slog.Logger) *SubmissionRecorder {
	return &SubmissionRecorder{repo: repo, logger: logger}
}

// Record persists the submission and its answers atomically. A lost race for the attempt
// slot surfaces as ErrMaxAttemptsExceeded; any other store failure as ErrPersistence.
func (r *SubmissionRecorder) Record(ctx context.Context, user *models.User, assessment *models.Assessment, answers []GradedAnswer, aggregate Aggregate, attemptNumber int, timing Timing) (*models.Submission, error) {
	submission := BuildSubmission(user, assessment, answers, aggregate, attemptNumber, timing)

	if err := r.repo.Submission().Create(ctx, nil, submission); err != nil {
		if repositories.IsDuplicateKeyError(err) {
			r.logger.Warn("Attempt slot already taken",
				"user_id", user.ID,
				"assessment_id", assessment.ID,
				"attempt_number", attemptNumber)
			return nil, fmt.Errorf("attempt %d already recorded: %w", attemptNumber, ErrMaxAttemptsExceeded)
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	r.logger.Info("Submission recorded",
		"submission_id", submission.ID,
		"user_id", user.ID,
		"assessment_id", assessment.ID,
		"attempt_number", attemptNumber,
		"score", submission.Score,
		"max_score", submission.MaxScore)

	return submission, nil
}

// BuildSubmission assembles the submission entity without persisting it.
func BuildSubmission(user *models.User, assessment *models.Assessment, answers []GradedAnswer, aggregate Aggregate, attemptNumber int, timing Timing) *models.Submission {
	submission := &models.Submission{
		UserID:        user.ID,
		AssessmentID:  assessment.ID,
		AttemptNumber: attemptNumber,
		Score:         aggregate.Score,
		MaxScore:      aggregate.MaxScore,
		Percentage:    aggregate.Percentage,
		Passed:        aggregate.Passed,
		StartTime:     timing.SubmittedAt,
		SubmittedAt:   timing.SubmittedAt,
		TimeSpent:     TimeSpent(timing),
		Version:       1,
		Answers:       make([]models.SubmissionAnswer, 0, len(answers)),
	}
	if timing.StartTime != nil {
		submission.StartTime = *timing.StartTime
	}

	for _, a := range answers {
		answer := models.SubmissionAnswer{
			AssessmentQuestionID: a.AssessmentQuestionID,
			QuestionID:           a.QuestionID,
			Position:             a.Position,
			IsCorrect:            a.IsCorrect,
			Score:                a.Score,
			MaxScore:             a.Weight,
			Feedback:             a.Feedback,
		}
		if a.Question != nil {
			answer.QuestionType = a.Question.Type
		}
		if a.Answered {
			answer.UserAnswer = datatypes.JSON(a.UserAnswer)
		}
		submission.Answers = append(submission.Answers, answer)
	}

	return submission
}

// TimeSpent is the whole number of seconds between start and submission, nil without a start time.
func TimeSpent(timing Timing) *int {
	if timing.StartTime == nil {
		return nil
	}
	ms := timing.SubmittedAt.Sub(*timing.StartTime).Milliseconds()
	seconds := int(math.Floor(float64(ms) / 1000))
	return &seconds
}
