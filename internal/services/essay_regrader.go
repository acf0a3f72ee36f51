package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/submission-service/internal/cache"
	"github.com/SAP-F-2025/submission-service/internal/events"
	"github.com/SAP-F-2025/submission-service/internal/metrics"
	"github.com/SAP-F-2025/submission-service/internal/models"
	"github.com/SAP-F-2025/submission-service/internal/repositories"
	"github.com/SAP-F-2025/submission-service/internal/validator"
)

const (
	defaultRegradeLockTTL = 10 * time.Second

	// eventPublishTimeout bounds how long a broker may hold up a request after the write committed.
	eventPublishTimeout = 5 * time.Second
)

// EssayRegrader applies an instructor score to one answer and recomputes the submission totals.
// Re-grades of the same submission are serialized by a lock and checked against the row version.
type EssayRegrader struct {
	repo      repositories.Repository
	locker    cache.Locker
	lockTTL   time.Duration
	publisher events.EventPublisher
	topic     string
	validator *validator.BusinessValidator
	logger    *slog.Logger

	publishTimeout time.Duration
	now            func() time.Time
}

type EssayRegraderConfig struct {
	LockTTL   time.Duration
	Publisher events.EventPublisher
	Topic     string
}

func NewEssayRegrader(repo repositories.Repository, locker cache.Locker, logger *slog.Logger, config EssayRegraderConfig) *EssayRegrader {
	if config.LockTTL <= 0 {
		config.LockTTL = defaultRegradeLockTTL
	}
	return &EssayRegrader{
		repo:      repo,
		locker:    locker,
		lockTTL:   config.LockTTL,
		publisher: config.Publisher,
		topic:     config.Topic,
		validator: validator.NewBusinessValidator(),
		logger:    logger,

		publishTimeout: eventPublishTimeout,
		now:            time.Now,
	}
}

// RegradeEssay overwrites the answer's score and feedback, then recomputes score, percentage
// and passed. Percentage uses the stored max score, not the assessment's current weights.
func (r *EssayRegrader) RegradeEssay(ctx context.Context, submissionID, questionID uint, newScore float64, feedback *string, graderID string) (*models.Submission, error) {
	release, err := r.locker.Acquire(ctx, fmt.Sprintf("submission:%d", submissionID), r.lockTTL)
	if err != nil {
		metrics.RegradesTotal.WithLabelValues("conflict").Inc()
		return nil, fmt.Errorf("failed to lock submission %d: %w: %w", submissionID, ErrSubmissionConflict, err)
	}
	defer release()

	submission, err := r.repo.Submission().GetByIDWithDetails(ctx, nil, submissionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			metrics.RegradesTotal.WithLabelValues("not_found").Inc()
			return nil, ErrSubmissionNotFound
		}
		metrics.RegradesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	answer := submission.AnswerFor(questionID)
	if answer == nil {
		metrics.RegradesTotal.WithLabelValues("not_found").Inc()
		return nil, ErrAnswerNotFound
	}

	if errs := r.validator.ValidateRegradeScore(newScore, answer.MaxScore); len(errs) > 0 {
		metrics.RegradesTotal.WithLabelValues("invalid").Inc()
		return nil, errs
	}

	passingScore, err := r.passingScore(ctx, submission)
	if err != nil {
		metrics.RegradesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	previousScore := answer.Score
	gradedAt := r.now().UTC()
	answer.Score = newScore
	answer.Feedback = ""
	if feedback != nil {
		answer.Feedback = *feedback
	}
	answer.GradedBy = &graderID
	answer.GradedAt = &gradedAt

	total := 0.0
	for _, a := range submission.Answers {
		total += a.Score
	}
	pct := percentage(total, submission.MaxScore)

	grade := repositories.SubmissionGrade{
		SubmissionID: submission.ID,
		AnswerID:     answer.ID,
		Score:        answer.Score,
		Feedback:     answer.Feedback,
		GradedBy:     graderID,
		GradedAt:     gradedAt,
		TotalScore:   total,
		Percentage:   pct,
		Passed:       passed(pct, passingScore),
	}
	if err := r.repo.Submission().UpdateGrade(ctx, nil, grade, submission.Version); err != nil {
		if errors.Is(err, repositories.ErrVersionConflict) {
			metrics.RegradesTotal.WithLabelValues("conflict").Inc()
			return nil, fmt.Errorf("submission %d: %w", submission.ID, ErrSubmissionConflict)
		}
		if repositories.IsNotFoundError(err) {
			metrics.RegradesTotal.WithLabelValues("not_found").Inc()
			return nil, ErrAnswerNotFound
		}
		metrics.RegradesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to update grade: %w", err)
	}

	submission.Score = grade.TotalScore
	submission.Percentage = grade.Percentage
	submission.Passed = grade.Passed
	submission.Version++
	metrics.RegradesTotal.WithLabelValues("success").Inc()

	r.logger.Info("Answer re-graded",
		"submission_id", submission.ID,
		"question_id", questionID,
		"graded_by", graderID,
		"previous_score", previousScore,
		"score", newScore,
		"total_score", submission.Score)

	r.publishRegraded(ctx, submission, questionID, graderID)
	return submission, nil
}

func (r *EssayRegrader) passingScore(ctx context.Context, submission *models.Submission) (int, error) {
	if submission.Assessment != nil {
		return submission.Assessment.PassingScore, nil
	}
	assessment, err := r.repo.Assessment().GetByID(ctx, nil, submission.AssessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return 0, ErrAssessmentNotFound
		}
		return 0, fmt.Errorf("failed to get assessment: %w", err)
	}
	return assessment.PassingScore, nil
}

func (r *EssayRegrader) publishRegraded(ctx context.Context, submission *models.Submission, questionID uint, graderID string) {
	if r.publisher == nil {
		return
	}
	event := events.NewEvent(events.SubmissionRegraded, submission.UserID, events.SubmissionRegradedEvent{
		SubmissionID: submission.ID,
		QuestionID:   questionID,
		GradedBy:     graderID,
		Score:        submission.Score,
		Percentage:   submission.Percentage,
		Passed:       submission.Passed,
	})
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.publishTimeout)
	defer cancel()
	if err := r.publisher.Publish(ctx, r.topic, event); err != nil {
		r.logger.Warn("Failed to publish regrade event", "submission_id", submission.ID, "error", err)
	}
}
