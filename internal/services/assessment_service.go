package services

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand"

	"gorm.io/datatypes"

	"github.com/SAP-F-2025/submission-service/internal/models"
	"github.com/SAP-F-2025/submission-service/internal/repositories"
	"github.com/SAP-F-2025/submission-service/internal/validator"
)

type assessmentService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewAssessmentService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) AssessmentService {
	return &assessmentService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

// ===== CORE OPERATIONS =====

func (s *assessmentService) Create(ctx context.Context, req *CreateAssessmentRequest, user *models.User) (*models.Assessment, error) {
	s.logger.Info("Creating assessment", "creator_id", user.ID, "title", req.Title)

	if !user.CanReviewSubmissions() {
		return nil, NewPermissionError(user.ID, 0, "assessment", "create", "insufficient role permissions")
	}

	// Validate request with business rules
	if errors := s.validator.GetBusinessValidator().ValidateAssessmentCreate(req); len(errors) > 0 {
		return nil, errors
	}

	assessment, err := buildAssessment(req, user.ID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Assessment().Create(ctx, nil, assessment); err != nil {
		return nil, fmt.Errorf("failed to create assessment: %w", err)
	}
	assessment.ComputeTotals()

	s.logger.Info("Assessment created successfully",
		"assessment_id", assessment.ID,
		"questions", assessment.QuestionsCount)
	return assessment, nil
}

// Get returns the assessment with its questions. Learners get it without answer keys and,
// when shuffling is on, in an order that is stable per learner.
func (s *assessmentService) Get(ctx context.Context, id uint, user *models.User) (*models.Assessment, error) {
	assessment, err := s.repo.Assessment().GetByIDWithQuestions(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	if user.CanReviewSubmissions() {
		return assessment, nil
	}

	assessment.RedactAnswerKeys()
	if assessment.ShuffleQuestions {
		shuffleQuestions(assessment, user.ID)
	}
	return assessment, nil
}

func (s *assessmentService) List(ctx context.Context, filters repositories.AssessmentFilters) (*AssessmentListResponse, error) {
	assessments, total, err := s.repo.Assessment().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}

	page, size := pageOf(filters.Limit, filters.Offset)
	return &AssessmentListResponse{
		Assessments: assessments,
		Total:       total,
		Page:        page,
		Size:        size,
	}, nil
}

// UpdateSettings changes the scoring policy. Existing submissions keep their stored results.
func (s *assessmentService) UpdateSettings(ctx context.Context, id uint, req *UpdateSettingsRequest, user *models.User) (*models.Assessment, error) {
	if errors := s.validator.GetBusinessValidator().ValidateSettingsUpdate(req); len(errors) > 0 {
		return nil, errors
	}

	assessment, err := s.repo.Assessment().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	if !canEditAssessment(assessment, user) {
		return nil, NewPermissionError(user.ID, id, "assessment", "update", "not owner or insufficient permissions")
	}

	applySettings(assessment, req)
	if err := s.repo.Assessment().UpdateSettings(ctx, nil, assessment); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to update assessment: %w", err)
	}

	s.logger.Info("Assessment settings updated",
		"assessment_id", id,
		"user_id", user.ID,
		"passing_score", assessment.PassingScore,
		"max_attempts", assessment.MaxAttempts,
		"show_feedback", assessment.ShowFeedback)
	return assessment, nil
}

// ===== HELPERS =====

func canEditAssessment(assessment *models.Assessment, user *models.User) bool {
	if user == nil {
		return false
	}
	if user.Role == models.RoleAdmin {
		return true
	}
	return user.Role == models.RoleTeacher && assessment.CreatedBy == user.ID
}

func buildAssessment(req *CreateAssessmentRequest, creatorID string) (*models.Assessment, error) {
	assessment := &models.Assessment{
		CourseID:         req.CourseID,
		LessonID:         req.LessonID,
		Title:            req.Title,
		Description:      req.Description,
		Type:             models.AssessmentQuiz,
		PassingScore:     models.DefaultPassingScore,
		MaxAttempts:      models.DefaultMaxAttempts,
		ShowFeedback:     models.FeedbackOnCompletion,
		ShuffleQuestions: req.ShuffleQuestions,
		CreatedBy:        creatorID,
		Questions:        make([]models.AssessmentQuestion, 0, len(req.Questions)),
	}
	if req.Type != "" {
		assessment.Type = req.Type
	}
	if req.PassingScore != nil {
		assessment.PassingScore = *req.PassingScore
	}
	if req.MaxAttempts != nil {
		assessment.MaxAttempts = *req.MaxAttempts
	}
	if req.ShowFeedback != "" {
		assessment.ShowFeedback = req.ShowFeedback
	}

	for i, q := range req.Questions {
		question, err := buildQuestion(&q, creatorID)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		assessment.Questions = append(assessment.Questions, models.AssessmentQuestion{
			Position: i + 1,
			Weight:   q.Weight,
			Question: *question,
		})
	}
	return assessment, nil
}

func buildQuestion(req *AssessmentQuestionRequest, creatorID string) (*models.Question, error) {
	question := &models.Question{
		Type:        req.Type,
		Text:        req.Text,
		Explanation: req.Explanation,
		Difficulty:  models.DifficultyMedium,
		CreatedBy:   creatorID,
	}
	if req.Difficulty != "" {
		question.Difficulty = req.Difficulty
	}
	if len(req.CorrectAnswer) > 0 {
		question.CorrectAnswer = datatypes.JSON(req.CorrectAnswer)
	}
	if len(req.Options) > 0 {
		options, err := json.Marshal(req.Options)
		if err != nil {
			return nil, fmt.Errorf("failed to encode options: %w", err)
		}
		question.Options = options
	}
	if len(req.Tags) > 0 {
		tags, err := json.Marshal(req.Tags)
		if err != nil {
			return nil, fmt.Errorf("failed to encode tags: %w", err)
		}
		question.Tags = tags
	}
	return question, nil
}

func applySettings(assessment *models.Assessment, req *UpdateSettingsRequest) {
	if req.Title != nil {
		assessment.Title = *req.Title
	}
	if req.Description != nil {
		assessment.Description = req.Description
	}
	if req.Type != nil {
		assessment.Type = *req.Type
	}
	if req.PassingScore != nil {
		assessment.PassingScore = *req.PassingScore
	}
	if req.MaxAttempts != nil {
		assessment.MaxAttempts = *req.MaxAttempts
	}
	if req.ShowFeedback != nil {
		assessment.ShowFeedback = *req.ShowFeedback
	}
	if req.ShuffleQuestions != nil {
		assessment.ShuffleQuestions = *req.ShuffleQuestions
	}
}

// shuffleQuestions reorders delivery deterministically per (assessment, user).
// Grading does not depend on this order.
func shuffleQuestions(assessment *models.Assessment, userID string) {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%s", assessment.ID, userID)
	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	rng.Shuffle(len(assessment.Questions), func(i, j int) {
		assessment.Questions[i], assessment.Questions[j] = assessment.Questions[j], assessment.Questions[i]
	})
}
