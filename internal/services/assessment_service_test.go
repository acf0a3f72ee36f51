package services

import (
	"context"
	"errors"
	"testing"

	"github.com/SAP-F-2025/submission-service/internal/models"
	"github.com/SAP-F-2025/submission-service/internal/repositories"
	"github.com/SAP-F-2025/submission-service/internal/validator"
)

func newTestAssessmentService(repo repositories.Repository) AssessmentService {
	return NewAssessmentService(repo, testLogger(), validator.New())
}

func validCreateRequest() *CreateAssessmentRequest {
	return &CreateAssessmentRequest{
		CourseID:     1,
		Title:        "Geography basics",
		PassingScore: ptr(0),
		MaxAttempts:  ptr(2),
		ShowFeedback: models.FeedbackAlways,
		Questions: []AssessmentQuestionRequest{
			{
				Type: models.MultipleChoice,
				Text: "Capital of France?",
				Options: []models.ChoiceOption{
					{Text: "Paris", IsCorrect: true},
					{Text: "Lyon"},
				},
			},
			{Type: models.TrueFalse, Text: "The Nile is in Africa", CorrectAnswer: raw(`true`), Weight: ptr(2.0)},
			{Type: models.FillInBlank, Text: "___ is the capital of ___", CorrectAnswer: raw(`["Rome","Italy"]`)},
			{Type: models.Essay, Text: "Describe a river delta", Weight: ptr(5.0)},
		},
	}
}

func TestAssessmentService_Create(t *testing.T) {
	repo := newTestRepository(t)
	svc := newTestAssessmentService(repo)
	ctx := context.Background()

	t.Run("teacher creates with defaults", func(t *testing.T) {
		created, err := svc.Create(ctx, validCreateRequest(), teacher)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if created.Type != models.AssessmentQuiz || created.PassingScore != 0 || created.MaxAttempts != 2 || created.CreatedBy != teacher.ID {
			t.Errorf("Create() = %+v", created)
		}
		if created.QuestionsCount != 4 || created.TotalWeight != 9 {
			t.Errorf("totals = %d questions, weight %v", created.QuestionsCount, created.TotalWeight)
		}

		loaded, err := repo.Assessment().GetByIDWithQuestions(ctx, nil, created.ID)
		if err != nil {
			t.Fatalf("GetByIDWithQuestions() error = %v", err)
		}
		if loaded.PassingScore != 0 {
			t.Errorf("stored passing score = %d, want 0", loaded.PassingScore)
		}
		for i, q := range loaded.Questions {
			if q.Position != i+1 {
				t.Errorf("question %d position = %d", i, q.Position)
			}
		}
		if loaded.Questions[0].Question.Difficulty != models.DifficultyMedium {
			t.Errorf("difficulty default = %q", loaded.Questions[0].Question.Difficulty)
		}
	})

	tests := []struct {
		name    string
		mutate  func(*CreateAssessmentRequest)
		user    *models.User
		wantErr error
	}{
		{"student cannot create", func(*CreateAssessmentRequest) {}, student, ErrForbidden},
		{"blank title", func(r *CreateAssessmentRequest) { r.Title = "   " }, teacher, ErrValidationFailed},
		{"no questions", func(r *CreateAssessmentRequest) { r.Questions = nil }, teacher, ErrValidationFailed},
		{"passing score above 100", func(r *CreateAssessmentRequest) { r.PassingScore = ptr(101) }, teacher, ErrValidationFailed},
		{"zero attempts", func(r *CreateAssessmentRequest) { r.MaxAttempts = ptr(0) }, teacher, ErrValidationFailed},
		{"unknown feedback mode", func(r *CreateAssessmentRequest) { r.ShowFeedback = "sometimes" }, teacher, ErrValidationFailed},
		{"no correct option", func(r *CreateAssessmentRequest) { r.Questions[0].Options[0].IsCorrect = false }, teacher, ErrValidationFailed},
		{"true false key not bool", func(r *CreateAssessmentRequest) { r.Questions[1].CorrectAnswer = raw(`"yes"`) }, teacher, ErrValidationFailed},
		{"negative weight", func(r *CreateAssessmentRequest) { r.Questions[1].Weight = ptr(-1.0) }, teacher, ErrValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(req)
			if _, err := svc.Create(ctx, req, tt.user); !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAssessmentService_Get(t *testing.T) {
	repo := newTestRepository(t)
	svc := newTestAssessmentService(repo)
	ctx := context.Background()

	req := validCreateRequest()
	req.ShuffleQuestions = true
	created, err := svc.Create(ctx, req, teacher)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	forTeacher, err := svc.Get(ctx, created.ID, teacher)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	for i, q := range forTeacher.Questions {
		if q.Position != i+1 {
			t.Errorf("reviewer sees shuffled order at %d", i)
		}
	}
	if len(forTeacher.Questions[1].Question.CorrectAnswer) == 0 {
		t.Error("reviewer lost the answer key")
	}

	first, err := svc.Get(ctx, created.ID, student)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	second, _ := svc.Get(ctx, created.ID, student)
	for i := range first.Questions {
		if first.Questions[i].QuestionID != second.Questions[i].QuestionID {
			t.Fatalf("order for the same learner changed between reads")
		}
		if len(first.Questions[i].Question.CorrectAnswer) != 0 {
			t.Errorf("learner sees answer key of question %d", first.Questions[i].QuestionID)
		}
	}

	if _, err := svc.Get(ctx, 9999, student); !errors.Is(err, ErrAssessmentNotFound) {
		t.Errorf("Get() missing error = %v", err)
	}
}

func TestShuffleQuestions(t *testing.T) {
	build := func() *models.Assessment {
		a := &models.Assessment{ID: 5}
		for i := 1; i <= 8; i++ {
			a.Questions = append(a.Questions, models.AssessmentQuestion{QuestionID: uint(i), Position: i})
		}
		return a
	}
	order := func(a *models.Assessment) []uint {
		ids := make([]uint, len(a.Questions))
		for i, q := range a.Questions {
			ids[i] = q.QuestionID
		}
		return ids
	}

	a, b := build(), build()
	shuffleQuestions(a, "student-1")
	shuffleQuestions(b, "student-1")
	if got, want := order(a), order(b); !equalIDs(got, want) {
		t.Errorf("same learner got %v then %v", got, want)
	}

	seen := map[uint]bool{}
	for _, id := range order(a) {
		seen[id] = true
	}
	if len(seen) != 8 {
		t.Errorf("shuffle lost questions: %v", order(a))
	}
}

func equalIDs(a, b []uint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAssessmentService_UpdateSettings(t *testing.T) {
	repo := newTestRepository(t)
	svc := newTestAssessmentService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, validCreateRequest(), teacher)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	otherTeacher := &models.User{ID: "teacher-2", Role: models.RoleTeacher}

	tests := []struct {
		name    string
		id      uint
		req     *UpdateSettingsRequest
		user    *models.User
		wantErr error
	}{
		{"empty update", created.ID, &UpdateSettingsRequest{}, teacher, ErrValidationFailed},
		{"invalid attempts", created.ID, &UpdateSettingsRequest{MaxAttempts: ptr(0)}, teacher, ErrValidationFailed},
		{"student", created.ID, &UpdateSettingsRequest{PassingScore: ptr(80)}, student, ErrForbidden},
		{"another teacher", created.ID, &UpdateSettingsRequest{PassingScore: ptr(80)}, otherTeacher, ErrForbidden},
		{"missing assessment", 9999, &UpdateSettingsRequest{PassingScore: ptr(80)}, teacher, ErrAssessmentNotFound},
		{"owner", created.ID, &UpdateSettingsRequest{PassingScore: ptr(80), ShowFeedback: ptr(models.FeedbackNever)}, teacher, nil},
		{"admin", created.ID, &UpdateSettingsRequest{MaxAttempts: ptr(5)}, admin, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateSettings(ctx, tt.id, tt.req, tt.user)
			if tt.wantErr == nil && err != nil || tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("UpdateSettings() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	updated, err := repo.Assessment().GetByID(ctx, nil, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if updated.PassingScore != 80 || updated.ShowFeedback != models.FeedbackNever || updated.MaxAttempts != 5 {
		t.Errorf("settings after update = %d %s %d", updated.PassingScore, updated.ShowFeedback, updated.MaxAttempts)
	}
}

func TestAssessmentService_List(t *testing.T) {
	repo := newTestRepository(t)
	svc := newTestAssessmentService(repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, validCreateRequest(), teacher); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	list, err := svc.List(ctx, repositories.AssessmentFilters{Limit: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if list.Total != 3 || len(list.Assessments) != 2 || list.Size != 2 {
		t.Errorf("List() = total %d items %d size %d", list.Total, len(list.Assessments), list.Size)
	}
}
