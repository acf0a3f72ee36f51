package services

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/SAP-F-2025/submission-service/internal/models"
	"github.com/SAP-F-2025/submission-service/internal/repositories"
	"github.com/SAP-F-2025/submission-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use business validator types
type SubmitRequest = validator.SubmitRequest
type CreateAssessmentRequest = validator.AssessmentCreateRequest
type AssessmentQuestionRequest = validator.AssessmentQuestionRequest
type UpdateSettingsRequest = validator.AssessmentSettingsRequest
type RegradeRequest = validator.RegradeRequest
type CreateStatementRequest = validator.XAPIStatementRequest

// SubmitResponse is returned to the learner after a submission is graded and stored.
type SubmitResponse struct {
	SubmissionID  uint             `json:"submission_id"`
	Score         float64          `json:"score"`
	MaxScore      float64          `json:"max_score"`
	Percentage    string           `json:"percentage"`
	Passed        bool             `json:"passed"`
	AttemptNumber int              `json:"attempt_number"`
	TimeSpent     *int             `json:"time_spent"`
	Feedback      []AnswerFeedback `json:"feedback,omitempty"`
}

// AnswerFeedback is the per-question detail exposed by the feedback policy.
type AnswerFeedback struct {
	QuestionID uint            `json:"question_id"`
	UserAnswer json.RawMessage `json:"user_answer"`
	IsCorrect  bool            `json:"is_correct"`
	Feedback   string          `json:"feedback"`
}

type SubmissionListResponse struct {
	Submissions []*models.Submission `json:"submissions"`
	Total       int64                `json:"total"`
	Page        int                  `json:"page"`
	Size        int                  `json:"size"`
}

type AssessmentListResponse struct {
	Assessments []*models.Assessment `json:"assessments"`
	Total       int64                `json:"total"`
	Page        int                  `json:"page"`
	Size        int                  `json:"size"`
}

type StatementListResponse struct {
	Statements []*models.XAPIStatement `json:"statements"`
	Total      int64                   `json:"total"`
	Page       int                     `json:"page"`
	Size       int                     `json:"size"`
}

// Timing carries the caller-supplied start time and the server-side submission time.
type Timing struct {
	StartTime   *time.Time
	SubmittedAt time.Time
}

// ===== SERVICE INTERFACES =====

type SubmissionService interface {
	// Learner flow
	Submit(ctx context.Context, assessmentID uint, req *SubmitRequest, user *models.User) (*SubmitResponse, error)
	ListMine(ctx context.Context, assessmentID uint, user *models.User) ([]*models.Submission, error)

	// Review
	ListByAssessment(ctx context.Context, assessmentID uint, filters repositories.SubmissionFilters, user *models.User) (*SubmissionListResponse, error)
	GetDetails(ctx context.Context, submissionID uint, user *models.User) (*models.Submission, error)
	RegradeEssay(ctx context.Context, submissionID, questionID uint, req *RegradeRequest, user *models.User) (*models.Submission, error)

	// Export
	ExportGradebook(ctx context.Context, assessmentID uint, user *models.User, w io.Writer) error
}

type AssessmentService interface {
	Create(ctx context.Context, req *CreateAssessmentRequest, user *models.User) (*models.Assessment, error)
	Get(ctx context.Context, id uint, user *models.User) (*models.Assessment, error)
	List(ctx context.Context, filters repositories.AssessmentFilters) (*AssessmentListResponse, error)
	UpdateSettings(ctx context.Context, id uint, req *UpdateSettingsRequest, user *models.User) (*models.Assessment, error)
}

type XAPIService interface {
	Create(ctx context.Context, req *CreateStatementRequest, user *models.User) (*models.XAPIStatement, error)
	GetByID(ctx context.Context, id string) (*models.XAPIStatement, error)
	List(ctx context.Context, filters repositories.XAPIStatementFilters) (*StatementListResponse, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	// Core service getters
	Submission() SubmissionService
	Assessment() AssessmentService
	XAPI() XAPIService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
