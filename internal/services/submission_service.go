package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/submission-service/internal/events"
	"github.com/SAP-F-2025/submission-service/internal/metrics"
	"github.com/SAP-F-2025/submission-service/internal/models"
	"github.com/SAP-F-2025/submission-service/internal/repositories"
	"github.com/SAP-F-2025/submission-service/internal/validator"
)

// SubmissionDependencies are the collaborators of the submission pipeline.
// Telemetry, Publisher and Regrader may be nil.
type SubmissionDependencies struct {
	Telemetry *TelemetryEmitter
	Regrader  *EssayRegrader
	Publisher events.EventPublisher
	Topic     string
}

type submissionService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator

	governor  *AttemptGovernor
	recorder  *SubmissionRecorder
	telemetry *TelemetryEmitter
	regrader  *EssayRegrader
	publisher events.EventPublisher
	topic     string

	publishTimeout time.Duration
	now            func() time.Time
}

func NewSubmissionService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, deps SubmissionDependencies) SubmissionService {
	return &submissionService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		governor:  NewAttemptGovernor(repo),
		recorder:  NewSubmissionRecorder(repo, logger),
		telemetry: deps.Telemetry,
		regrader:  deps.Regrader,
		publisher: deps.Publisher,
		topic:     deps.Topic,

		publishTimeout: eventPublishTimeout,
		now:            time.Now,
	}
}

// Submit grades the answers, records the attempt and reports the result.
// Telemetry and events are best effort and never change the outcome.
func (s *submissionService) Submit(ctx context.Context, assessmentID uint, req *SubmitRequest, user *models.User) (*SubmitResponse, error) {
	s.logger.Info("Submitting assessment", "assessment_id", assessmentID, "user_id", user.ID)

	if err := s.validator.Validate(req); err != nil {
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, err
	}

	assessment, err := s.repo.Assessment().GetByIDWithQuestions(ctx, nil, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
			return nil, ErrAssessmentNotFound
		}
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	attemptNumber, err := s.governor.NextAttempt(ctx, user, assessment)
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}

	timing := Timing{StartTime: req.StartTime, SubmittedAt: s.now()}

	started := time.Now()
	graded := GradeSubmission(assessment, req.Answers)
	aggregate := AggregateScore(graded, assessment)
	metrics.GradingDuration.Observe(time.Since(started).Seconds())

	submission, err := s.recorder.Record(ctx, user, assessment, graded, aggregate, attemptNumber, timing)
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}

	if submission.Passed {
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomePassed).Inc()
	} else {
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
	}

	s.emitTelemetry(user, assessment, graded, aggregate)
	s.publishRecorded(ctx, submission)

	return &SubmitResponse{
		SubmissionID:  submission.ID,
		Score:         submission.Score,
		MaxScore:      submission.MaxScore,
		Percentage:    FormatPercentage(submission.Percentage),
		Passed:        submission.Passed,
		AttemptNumber: submission.AttemptNumber,
		TimeSpent:     submission.TimeSpent,
		Feedback:      SelectFeedback(assessment.ShowFeedback, attemptNumber, assessment.EffectiveMaxAttempts(), graded),
	}, nil
}

func (s *submissionService) recordFailure(err error) {
	if errors.Is(err, ErrMaxAttemptsExceeded) {
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		return
	}
	metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeError).Inc()
}

// emitTelemetry queues one answered statement per answered question and one completed
// statement, for assessments that produce telemetry at all.
func (s *submissionService) emitTelemetry(user *models.User, assessment *models.Assessment, graded []GradedAnswer, aggregate Aggregate) {
	if s.telemetry == nil || !assessment.EmitsTelemetry() {
		return
	}
	for _, a := range graded {
		if !a.Answered || a.Question == nil {
			continue
		}
		s.telemetry.EmitAnswered(user, a.Question, assessment, a.UserAnswer, a.IsCorrect)
	}
	s.telemetry.EmitCompleted(user, assessment, aggregate.Score, aggregate.MaxScore, aggregate.Passed)
}

func (s *submissionService) publishRecorded(ctx context.Context, submission *models.Submission) {
	if s.publisher == nil {
		return
	}
	event := events.NewEvent(events.SubmissionRecorded, submission.UserID, events.SubmissionRecordedEvent{
		SubmissionID:  submission.ID,
		AssessmentID:  submission.AssessmentID,
		UserID:        submission.UserID,
		AttemptNumber: submission.AttemptNumber,
		Score:         submission.Score,
		MaxScore:      submission.MaxScore,
		Percentage:    submission.Percentage,
		Passed:        submission.Passed,
	})
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, s.topic, event); err != nil {
		s.logger.Warn("Failed to publish submission event", "submission_id", submission.ID, "error", err)
	}
}

func (s *submissionService) ListMine(ctx context.Context, assessmentID uint, user *models.User) ([]*models.Submission, error) {
	if _, err := s.getAssessment(ctx, assessmentID); err != nil {
		return nil, err
	}

	submissions, err := s.repo.Submission().ListByUserAndAssessment(ctx, nil, user.ID, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return submissions, nil
}

func (s *submissionService) ListByAssessment(ctx context.Context, assessmentID uint, filters repositories.SubmissionFilters, user *models.User) (*SubmissionListResponse, error) {
	if !user.CanReviewSubmissions() {
		return nil, NewPermissionError(user.ID, assessmentID, "assessment", "list_submissions", "insufficient role permissions")
	}
	if _, err := s.getAssessment(ctx, assessmentID); err != nil {
		return nil, err
	}

	submissions, total, err := s.repo.Submission().ListByAssessment(ctx, nil, assessmentID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	s.attachUsers(ctx, submissions)

	page, size := pageOf(filters.Limit, filters.Offset)
	return &SubmissionListResponse{
		Submissions: submissions,
		Total:       total,
		Page:        page,
		Size:        size,
	}, nil
}

// GetDetails returns a submission with its answers to its owner or a reviewer.
// Owners see the questions without answer keys.
func (s *submissionService) GetDetails(ctx context.Context, submissionID uint, user *models.User) (*models.Submission, error) {
	submission, err := s.repo.Submission().GetByIDWithDetails(ctx, nil, submissionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	reviewer := user.CanReviewSubmissions()
	if submission.UserID != user.ID && !reviewer {
		return nil, NewPermissionError(user.ID, submissionID, "submission", "read", "not owner or insufficient permissions")
	}

	if !reviewer {
		for i := range submission.Answers {
			if submission.Answers[i].Question != nil {
				submission.Answers[i].Question.RedactAnswerKey()
			}
		}
	}

	s.attachUsers(ctx, []*models.Submission{submission})
	return submission, nil
}

func (s *submissionService) RegradeEssay(ctx context.Context, submissionID, questionID uint, req *RegradeRequest, user *models.User) (*models.Submission, error) {
	if !user.CanReviewSubmissions() {
		return nil, NewPermissionError(user.ID, submissionID, "submission", "regrade", "insufficient role permissions")
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if s.regrader == nil {
		return nil, fmt.Errorf("regrading is not configured")
	}

	return s.regrader.RegradeEssay(ctx, submissionID, questionID, *req.Score, req.Feedback, user.ID)
}

func (s *submissionService) getAssessment(ctx context.Context, assessmentID uint) (*models.Assessment, error) {
	assessment, err := s.repo.Assessment().GetByID(ctx, nil, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	return assessment, nil
}

// attachUsers fills Submission.User from the identity provider when one is configured.
func (s *submissionService) attachUsers(ctx context.Context, submissions []*models.Submission) {
	users := s.repo.User()
	if users == nil || len(submissions) == 0 {
		return
	}

	ids := make([]string, 0, len(submissions))
	for _, sub := range submissions {
		ids = append(ids, sub.UserID)
	}
	resolved, err := users.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("Failed to resolve submission users", "error", err)
		return
	}

	byID := make(map[string]*models.User, len(resolved))
	for _, u := range resolved {
		byID[u.ID] = u
	}
	for _, sub := range submissions {
		sub.User = byID[sub.UserID]
	}
}

func pageOf(limit, offset int) (page, size int) {
	size = limit
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return offset/size + 1, size
}
