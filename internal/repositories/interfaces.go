package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/submission-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type AssessmentFilters struct {
	CourseID  *uint                  `json:"course_id"`
	LessonID  *uint                  `json:"lesson_id"`
	Type      *models.AssessmentType `json:"type"`
	CreatedBy *string                `json:"created_by"`
	Limit     int                    `json:"limit"`
	Offset    int                    `json:"offset"`
	SortBy    string                 `json:"sort_by"`    // "created_at", "title"
	SortOrder string                 `json:"sort_order"` // "asc", "desc"
}

type SubmissionFilters struct {
	UserID   *string    `json:"user_id"`
	Passed   *bool      `json:"passed"`
	DateFrom *time.Time `json:"date_from"`
	DateTo   *time.Time `json:"date_to"`
	Limit    int        `json:"limit"`
	Offset   int        `json:"offset"`
}

type XAPIStatementFilters struct {
	OrganizationID *string    `json:"organization_id"`
	UserID         *string    `json:"user_id"`
	CourseID       *uint      `json:"course_id"`
	LessonID       *uint      `json:"lesson_id"`
	AssessmentID   *uint      `json:"assessment_id"`
	VerbID         *string    `json:"verb_id"`
	Since          *time.Time `json:"since"`
	Until          *time.Time `json:"until"`
	Limit          int        `json:"limit"`
	Offset         int        `json:"offset"`
}

// SubmissionGrade is the re-graded state of one answer together with the new submission totals.
type SubmissionGrade struct {
	SubmissionID uint
	AnswerID     uint
	Score        float64
	Feedback     string
	GradedBy     string
	GradedAt     time.Time

	TotalScore float64
	Percentage float64
	Passed     bool
}

// ===== REPOSITORY INTERFACES =====

type AssessmentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, assessment *models.Assessment) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Assessment, error)
	// GetByIDWithQuestions loads questions ordered by position, with answer keys.
	GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Assessment, error)
	UpdateSettings(ctx context.Context, tx *gorm.DB, assessment *models.Assessment) error
	List(ctx context.Context, tx *gorm.DB, filters AssessmentFilters) ([]*models.Assessment, int64, error)
}

type SubmissionRepository interface {
	// Create inserts the submission and its answers. A second row for the same
	// (user, assessment, attempt number) fails with ErrDuplicateKey.
	Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error)
	// GetByIDWithDetails loads answers ordered by position, their questions and the assessment.
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error)
	CountByUserAndAssessment(ctx context.Context, tx *gorm.DB, userID string, assessmentID uint) (int64, error)
	ListByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint, filters SubmissionFilters) ([]*models.Submission, int64, error)
	ListByUserAndAssessment(ctx context.Context, tx *gorm.DB, userID string, assessmentID uint) ([]*models.Submission, error)
	// UpdateGrade applies a re-grade when the stored version still equals expectedVersion,
	// otherwise it fails with ErrVersionConflict.
	UpdateGrade(ctx context.Context, tx *gorm.DB, grade SubmissionGrade, expectedVersion int) error
}

type XAPIStatementRepository interface {
	Create(ctx context.Context, tx *gorm.DB, statement *models.XAPIStatement) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.XAPIStatement, error)
	List(ctx context.Context, tx *gorm.DB, filters XAPIStatementFilters) ([]*models.XAPIStatement, int64, error)
	MarkProcessed(ctx context.Context, tx *gorm.DB, ids []string) error
}
