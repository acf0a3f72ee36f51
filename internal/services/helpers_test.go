package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SAP-F-2025/submission-service/internal/events"
	"github.com/SAP-F-2025/submission-service/internal/models"
	"github.com/SAP-F-2025/submission-service/internal/repositories"
	"github.com/SAP-F-2025/submission-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/submission-service/internal/validator"
)

var (
	student = &models.User{ID: "student-1", FullName: "Ada Student", Email: "ada@example.com", Organization: "lms", Role: models.RoleStudent}
	teacher = &models.User{ID: "teacher-1", FullName: "Tom Teacher", Email: "tom@example.com", Organization: "lms", Role: models.RoleTeacher}
	admin   = &models.User{ID: "admin-1", FullName: "Ann Admin", Role: models.RoleAdmin}
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRepository(t *testing.T) repositories.Repository {
	t.Helper()
	repo, _ := newTestRepositoryWithDB(t)
	return repo
}

// newTestRepositoryWithDB also returns the database so tests can edit rows behind the repository.
func newTestRepositoryWithDB(t *testing.T) (repositories.Repository, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "services.db")+"?_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&models.Question{},
		&models.Assessment{},
		&models.AssessmentQuestion{},
		&models.Submission{},
		&models.SubmissionAnswer{},
		&models.XAPIStatement{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	repo := postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{
		DB:             db,
		UserRepository: staticUsers{student, teacher, admin},
	})
	t.Cleanup(func() { _ = repo.Close() })
	return repo, db
}

// staticUsers resolves identities from a fixed list.
type staticUsers []*models.User

func (s staticUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	for _, u := range s {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s staticUsers) GetByIDs(_ context.Context, ids []string) ([]*models.User, error) {
	var out []*models.User
	for _, id := range ids {
		if u, err := s.GetByID(context.Background(), id); err == nil {
			out = append(out, u)
		}
	}
	return out, nil
}

func ptr[T any](v T) *T { return &v }

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func choiceOptions(t *testing.T, options ...models.ChoiceOption) datatypes.JSON {
	t.Helper()
	encoded, err := json.Marshal(options)
	if err != nil {
		t.Fatalf("failed to encode options: %v", err)
	}
	return encoded
}

func question(qType models.QuestionType, correct string) models.Question {
	q := models.Question{Type: qType, Text: string(qType) + " question", CreatedBy: teacher.ID}
	if correct != "" {
		q.CorrectAnswer = datatypes.JSON(correct)
	}
	return q
}

// seedAssessment stores an assessment whose questions are placed in the given order.
func seedAssessment(t *testing.T, repo repositories.Repository, assessment *models.Assessment) *models.Assessment {
	t.Helper()
	if assessment.CreatedBy == "" {
		assessment.CreatedBy = teacher.ID
	}
	if assessment.CourseID == 0 {
		assessment.CourseID = 1
	}
	for i := range assessment.Questions {
		if assessment.Questions[i].Position == 0 {
			assessment.Questions[i].Position = i + 1
		}
	}
	if err := repo.Assessment().Create(context.Background(), nil, assessment); err != nil {
		t.Fatalf("failed to seed assessment: %v", err)
	}
	return assessment
}

// twoChoiceAssessment has two single-answer multiple choice questions of weight 1.
func twoChoiceAssessment(t *testing.T, repo repositories.Repository, passingScore, maxAttempts int, mode models.FeedbackMode) *models.Assessment {
	t.Helper()
	mc := func(text, correct, wrong string) models.AssessmentQuestion {
		q := question(models.MultipleChoice, "")
		q.Text = text
		q.Options = choiceOptions(t,
			models.ChoiceOption{Text: wrong},
			models.ChoiceOption{Text: correct, IsCorrect: true},
		)
		return models.AssessmentQuestion{Weight: ptr(1.0), Question: q}
	}
	return seedAssessment(t, repo, &models.Assessment{
		Title:        "Capitals",
		Type:         models.AssessmentQuiz,
		PassingScore: passingScore,
		MaxAttempts:  maxAttempts,
		ShowFeedback: mode,
		Questions: []models.AssessmentQuestion{
			mc("Capital of France?", "Paris", "Lyon"),
			mc("Capital of Spain?", "Madrid", "Seville"),
		},
	})
}

func answersFor(assessment *models.Assessment, values ...string) map[string]json.RawMessage {
	answers := make(map[string]json.RawMessage)
	for i, v := range values {
		if v == "" {
			continue
		}
		answers[QuestionKey(assessment.Questions[i].QuestionID)] = raw(v)
	}
	return answers
}

func newTestSubmissionService(repo repositories.Repository, deps SubmissionDependencies) *submissionService {
	return NewSubmissionService(repo, testLogger(), validator.New(), deps).(*submissionService)
}

// failingSubmissions wraps a repository and makes selected submission calls fail.
type failingSubmissions struct {
	repositories.Repository
	createErr      error
	updateGradeErr error
}

func (f *failingSubmissions) Submission() repositories.SubmissionRepository {
	return &failingSubmissionRepo{SubmissionRepository: f.Repository.Submission(), parent: f}
}

type failingSubmissionRepo struct {
	repositories.SubmissionRepository
	parent *failingSubmissions
}

func (r *failingSubmissionRepo) Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	if r.parent.createErr != nil {
		return r.parent.createErr
	}
	return r.SubmissionRepository.Create(ctx, tx, submission)
}

func (r *failingSubmissionRepo) UpdateGrade(ctx context.Context, tx *gorm.DB, grade repositories.SubmissionGrade, expectedVersion int) error {
	if r.parent.updateGradeErr != nil {
		return r.parent.updateGradeErr
	}
	return r.SubmissionRepository.UpdateGrade(ctx, tx, grade, expectedVersion)
}

// stalledPublisher blocks every publish until its context ends, like an unreachable broker.
type stalledPublisher struct {
	mu        sync.Mutex
	deadlines []bool
}

func (p *stalledPublisher) Publish(ctx context.Context, _ string, _ *events.Event) error {
	_, hasDeadline := ctx.Deadline()
	p.mu.Lock()
	p.deadlines = append(p.deadlines, hasDeadline)
	p.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (p *stalledPublisher) Close() error { return nil }

func (p *stalledPublisher) calls() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.deadlines...)
}
