package services

import (
	"context"
	"testing"
	"time"

	"github.com/SAP-F-2025/submission-service/internal/events"
	"github.com/SAP-F-2025/submission-service/internal/models"
	"github.com/SAP-F-2025/submission-service/internal/repositories"
	"github.com/SAP-F-2025/submission-service/internal/validator"
)

func TestServiceManager_Lifecycle(t *testing.T) {
	repo := newTestRepository(t)
	publisher := events.NewMockEventPublisher(testLogger())
	sm := NewServiceManager(repo, nil, testLogger(), validator.New(), ServiceManagerConfig{
		Publisher:         publisher,
		StatementTopic:    "lms.xapi.statements",
		SubmissionTopic:   "lms.submissions",
		XAPIBaseURL:       "http://lms.test",
		PersistStatements: true,
	})
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Error("Submission() before Initialize did not panic")
			}
		}()
		sm.Submission()
	}()
	if err := sm.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() before Initialize succeeded")
	}

	if err := sm.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := sm.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}
	if err := sm.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	assessment := twoChoiceAssessment(t, repo, 50, 1, models.FeedbackAlways)
	if _, err := sm.Submission().Submit(ctx, assessment.ID, &SubmitRequest{Answers: answersFor(assessment, `"Paris"`, `"Madrid"`)}, student); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sm.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := sm.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() after Shutdown succeeded")
	}

	// Shutdown drained telemetry: two answered statements and one completion were stored
	_, total, err := repo.XAPIStatement().List(ctx, nil, repositories.XAPIStatementFilters{UserID: &student.ID})
	if err != nil || total != 3 {
		t.Errorf("stored statements = %d, %v", total, err)
	}

	topics := map[string]int{}
	for _, topic := range publisher.GetTopics() {
		topics[topic]++
	}
	if topics["lms.submissions"] != 1 || topics["lms.xapi.statements"] != 3 {
		t.Errorf("published per topic = %v", topics)
	}
}
