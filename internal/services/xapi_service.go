package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/SAP-F-2025/submission-service/internal/models"
	"github.com/SAP-F-2025/submission-service/internal/repositories"
	"github.com/SAP-F-2025/submission-service/internal/validator"
	"github.com/SAP-F-2025/submission-service/internal/xapi"
)

type xapiService struct {
	repo      repositories.Repository
	sink      *StatementSink
	logger    *slog.Logger
	validator *validator.Validator
}

// NewXAPIService stores client statements through the same sink the telemetry emitter uses.
func NewXAPIService(repo repositories.Repository, sink *StatementSink, logger *slog.Logger, validator *validator.Validator) XAPIService {
	return &xapiService{
		repo:      repo,
		sink:      sink,
		logger:    logger,
		validator: validator,
	}
}

// Create stores a client statement. The actor defaults to the calling user.
func (s *xapiService) Create(ctx context.Context, req *CreateStatementRequest, user *models.User) (*models.XAPIStatement, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	record, err := buildStatement(req, user)
	if err != nil {
		return nil, err
	}

	if err := s.sink.persist(ctx, record); err != nil {
		if repositories.IsDuplicateKeyError(err) {
			return nil, NewValidationError("id", "statement already exists", record.ID)
		}
		return nil, err
	}
	if err := s.sink.publish(ctx, record); err != nil {
		s.logger.Warn("Failed to stream xAPI statement", "statement_id", record.ID, "error", err)
	}

	s.logger.Info("xAPI statement stored",
		"statement_id", record.ID,
		"user_id", user.ID,
		"verb", record.VerbID)
	return record, nil
}

func (s *xapiService) GetByID(ctx context.Context, id string) (*models.XAPIStatement, error) {
	statement, err := s.repo.XAPIStatement().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrStatementNotFound
		}
		return nil, fmt.Errorf("failed to get statement: %w", err)
	}
	return statement, nil
}

func (s *xapiService) List(ctx context.Context, filters repositories.XAPIStatementFilters) (*StatementListResponse, error) {
	statements, total, err := s.repo.XAPIStatement().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list statements: %w", err)
	}

	page, size := pageOf(filters.Limit, filters.Offset)
	return &StatementListResponse{
		Statements: statements,
		Total:      total,
		Page:       page,
		Size:       size,
	}, nil
}

func buildStatement(req *CreateStatementRequest, user *models.User) (*models.XAPIStatement, error) {
	record := &models.XAPIStatement{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		CourseID:     req.CourseID,
		LessonID:     req.LessonID,
		AssessmentID: req.AssessmentID,
		VerbID:       req.Verb.ID,
		Object:       datatypes.JSON(req.Object),
		Timestamp:    time.Now().UTC(),
	}
	if req.ID != nil {
		record.ID = *req.ID
	}
	if req.Timestamp != nil {
		record.Timestamp = req.Timestamp.UTC()
	}
	if user.Organization != "" {
		org := user.Organization
		record.OrganizationID = &org
	}

	actor := json.RawMessage(req.Actor)
	if len(actor) == 0 {
		encoded, err := json.Marshal(xapi.NewActor(user))
		if err != nil {
			return nil, fmt.Errorf("failed to encode actor: %w", err)
		}
		actor = encoded
	}
	record.Actor = datatypes.JSON(actor)

	verb, err := json.Marshal(req.Verb)
	if err != nil {
		return nil, fmt.Errorf("failed to encode verb: %w", err)
	}
	record.Verb = verb

	if len(req.Result) > 0 {
		record.Result = datatypes.JSON(req.Result)
	}
	if len(req.Context) > 0 {
		record.Context = datatypes.JSON(req.Context)
	}
	return record, nil
}
