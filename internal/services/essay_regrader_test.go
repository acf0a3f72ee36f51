package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/submission-service/internal/cache"
	"github.com/SAP-F-2025/submission-service/internal/events"
	"github.com/SAP-F-2025/submission-service/internal/models"
	"github.com/SAP-F-2025/submission-service/internal/repositories"
)

// essaySubmission stores an assessment with a true/false question (weight 1) and an
// essay (weight 5), and one submission that got the true/false right.
func essaySubmission(t *testing.T, repo repositories.Repository, passingScore int) (*models.Assessment, *SubmitResponse) {
	t.Helper()
	assessment := seedAssessment(t, repo, &models.Assessment{
		Title:        "Cell biology",
		Type:         models.AssessmentTest,
		PassingScore: passingScore,
		MaxAttempts:  1,
		ShowFeedback: models.FeedbackAlways,
		Questions: []models.AssessmentQuestion{
			{Weight: ptr(1.0), Question: question(models.TrueFalse, `true`)},
			{Weight: ptr(5.0), Question: question(models.Essay, "")},
		},
	})
	svc := newTestSubmissionService(repo, SubmissionDependencies{})
	resp, err := svc.Submit(context.Background(), assessment.ID, &SubmitRequest{
		Answers: answersFor(assessment, `true`, `"Osmosis moves water across membranes"`),
	}, student)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if resp.Feedback[1].Feedback != feedbackEssayPending || resp.Score != 1 {
		t.Fatalf("essay graded before review: %+v", resp)
	}
	return assessment, resp
}

func TestEssayRegrader_RegradeEssay(t *testing.T) {
	repo := newTestRepository(t)
	assessment, resp := essaySubmission(t, repo, 60)
	publisher := events.NewMockEventPublisher(testLogger())
	regrader := NewEssayRegrader(repo, cache.NewLocalLocker(), testLogger(), EssayRegraderConfig{
		Publisher: publisher,
		Topic:     "lms.submissions",
	})
	ctx := context.Background()
	essayID := assessment.Questions[1].QuestionID

	feedback := "Good explanation"
	got, err := regrader.RegradeEssay(ctx, resp.SubmissionID, essayID, 3, &feedback, teacher.ID)
	if err != nil {
		t.Fatalf("RegradeEssay() error = %v", err)
	}

	// 1 + 3 of 6
	if got.Score != 4 || got.MaxScore != 6 || math.Abs(got.Percentage-400.0/6) > 1e-9 || !got.Passed || got.Version != 2 {
		t.Errorf("RegradeEssay() = score %v max %v pct %v passed %v version %d",
			got.Score, got.MaxScore, got.Percentage, got.Passed, got.Version)
	}

	stored, err := repo.Submission().GetByIDWithDetails(ctx, nil, resp.SubmissionID)
	if err != nil {
		t.Fatalf("GetByIDWithDetails() error = %v", err)
	}
	answer := stored.AnswerFor(essayID)
	if stored.Score != 4 || answer.Score != 3 || answer.Feedback != feedback || answer.GradedBy == nil || *answer.GradedBy != teacher.ID || answer.GradedAt == nil {
		t.Errorf("stored after regrade: score %v answer %+v", stored.Score, answer)
	}

	// Lowering the score moves the total by the difference and can fail the submission
	got, err = regrader.RegradeEssay(ctx, resp.SubmissionID, essayID, 1, nil, admin.ID)
	if err != nil {
		t.Fatalf("second RegradeEssay() error = %v", err)
	}
	if got.Score != 2 || got.Passed || got.Version != 3 {
		t.Errorf("second RegradeEssay() = score %v passed %v version %d", got.Score, got.Passed, got.Version)
	}

	published := publisher.GetPublishedEvents()
	if len(published) != 2 || published[0].Type != events.SubmissionRegraded {
		t.Fatalf("published = %+v", published)
	}
	data, ok := published[1].Data.(events.SubmissionRegradedEvent)
	if !ok || data.GradedBy != admin.ID || data.Score != 2 || data.QuestionID != essayID {
		t.Errorf("regrade event = %+v", published[1].Data)
	}
}

func TestEssayRegrader_KeepsStoredMaxScore(t *testing.T) {
	repo, db := newTestRepositoryWithDB(t)
	assessment, resp := essaySubmission(t, repo, 60)
	essay := assessment.Questions[1]

	// Reweighting the essay after submission must not move the submission's denominator
	if err := db.Model(&models.AssessmentQuestion{}).Where("id = ?", essay.ID).Update("weight", 50.0).Error; err != nil {
		t.Fatalf("failed to reweight essay: %v", err)
	}

	regrader := NewEssayRegrader(repo, cache.NewLocalLocker(), testLogger(), EssayRegraderConfig{})
	got, err := regrader.RegradeEssay(context.Background(), resp.SubmissionID, essay.QuestionID, 3, nil, teacher.ID)
	if err != nil {
		t.Fatalf("RegradeEssay() error = %v", err)
	}
	if got.Score != 4 || got.MaxScore != 6 || math.Abs(got.Percentage-400.0/6) > 1e-9 || !got.Passed {
		t.Errorf("RegradeEssay() = score %v max %v pct %v passed %v", got.Score, got.MaxScore, got.Percentage, got.Passed)
	}

	// The answer's own ceiling is the weight at submission time
	if _, err := regrader.RegradeEssay(context.Background(), resp.SubmissionID, essay.QuestionID, 10, nil, teacher.ID); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("RegradeEssay() above stored weight error = %v, want ErrValidationFailed", err)
	}
}

func TestEssayRegrader_Errors(t *testing.T) {
	repo := newTestRepository(t)
	assessment, resp := essaySubmission(t, repo, 60)
	essayID := assessment.Questions[1].QuestionID
	ctx := context.Background()

	tests := []struct {
		name         string
		repo         repositories.Repository
		submissionID uint
		questionID   uint
		score        float64
		wantErr      error
	}{
		{"unknown submission", repo, 9999, essayID, 1, ErrSubmissionNotFound},
		{"question not in submission", repo, resp.SubmissionID, 9999, 1, ErrAnswerNotFound},
		{"score above weight", repo, resp.SubmissionID, essayID, 5.5, ErrValidationFailed},
		{"negative score", repo, resp.SubmissionID, essayID, -1, ErrValidationFailed},
		{"stale version", &failingSubmissions{Repository: repo, updateGradeErr: repositories.ErrVersionConflict}, resp.SubmissionID, essayID, 2, ErrSubmissionConflict},
		{"answer vanished", &failingSubmissions{Repository: repo, updateGradeErr: repositories.ErrNotFound}, resp.SubmissionID, essayID, 2, ErrAnswerNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			regrader := NewEssayRegrader(tt.repo, cache.NewLocalLocker(), testLogger(), EssayRegraderConfig{})
			_, err := regrader.RegradeEssay(ctx, tt.submissionID, tt.questionID, tt.score, nil, teacher.ID)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("RegradeEssay() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	stored, _ := repo.Submission().GetByID(ctx, nil, resp.SubmissionID)
	if stored.Score != 1 || stored.Version != 1 {
		t.Errorf("failed re-grades changed the submission: score %v version %d", stored.Score, stored.Version)
	}
}

func TestEssayRegrader_ConcurrentRegrades(t *testing.T) {
	repo := newTestRepository(t)
	assessment, resp := essaySubmission(t, repo, 60)
	essayID := assessment.Questions[1].QuestionID

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	regrader := NewEssayRegrader(repo, cache.NewLocker(client), testLogger(), EssayRegraderConfig{})

	var wg sync.WaitGroup
	for _, score := range []float64{1, 2, 3, 4, 5} {
		wg.Add(1)
		go func(score float64) {
			defer wg.Done()
			if _, err := regrader.RegradeEssay(context.Background(), resp.SubmissionID, essayID, score, nil, teacher.ID); err != nil {
				t.Errorf("RegradeEssay(%v) error = %v", score, err)
			}
		}(score)
	}
	wg.Wait()

	stored, err := repo.Submission().GetByIDWithDetails(context.Background(), nil, resp.SubmissionID)
	if err != nil {
		t.Fatalf("GetByIDWithDetails() error = %v", err)
	}
	// Serialized re-grades: every one applied, and the total matches the final answer scores
	if stored.Version != 6 {
		t.Errorf("Version = %d, want 6", stored.Version)
	}
	var sum float64
	for _, a := range stored.Answers {
		sum += a.Score
	}
	if sum != stored.Score {
		t.Errorf("answers sum to %v, submission score %v", sum, stored.Score)
	}
}

func TestSubmissionService_RegradeEssay(t *testing.T) {
	repo := newTestRepository(t)
	assessment, resp := essaySubmission(t, repo, 60)
	essayID := assessment.Questions[1].QuestionID
	svc := newTestSubmissionService(repo, SubmissionDependencies{
		Regrader: NewEssayRegrader(repo, cache.NewLocalLocker(), testLogger(), EssayRegraderConfig{}),
	})
	ctx := context.Background()

	if _, err := svc.RegradeEssay(ctx, resp.SubmissionID, essayID, &RegradeRequest{Score: ptr(3.0)}, student); !errors.Is(err, ErrForbidden) {
		t.Errorf("RegradeEssay() as student error = %v, want ErrForbidden", err)
	}
	if _, err := svc.RegradeEssay(ctx, resp.SubmissionID, essayID, &RegradeRequest{}, teacher); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("RegradeEssay() without score error = %v, want ErrValidationFailed", err)
	}
	got, err := svc.RegradeEssay(ctx, resp.SubmissionID, essayID, &RegradeRequest{Score: ptr(5.0)}, teacher)
	if err != nil || got.Score != 6 || got.Percentage != 100 {
		t.Errorf("RegradeEssay() = %+v, %v", got, err)
	}
}
