package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/submission-service/internal/cache"
	"github.com/SAP-F-2025/submission-service/internal/models"
	"github.com/SAP-F-2025/submission-service/internal/repositories"
)

type SubmissionPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewSubmissionPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.SubmissionRepository {
	return &SubmissionPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cacheManager,
	}
}

func (s *SubmissionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

// Create inserts the submission row first so the unique attempt index decides the race,
// then its answers.
func (s *SubmissionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	err := s.getDB(tx).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Answers", "Assessment").Create(submission).Error; err != nil {
			return translateError(err, "create submission")
		}

		if len(submission.Answers) == 0 {
			return nil
		}
		for i := range submission.Answers {
			submission.Answers[i].SubmissionID = submission.ID
		}
		if err := tx.Omit("Question").CreateInBatches(&submission.Answers, 100).Error; err != nil {
			return translateError(err, "create submission answers")
		}
		return nil
	})
	if err != nil {
		return err
	}

	cache.InvalidateSubmissionCache(ctx, s.cacheManager, submission.AssessmentID, submission.UserID)
	return nil
}

func (s *SubmissionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error) {
	var submission models.Submission
	if err := s.getDB(tx).WithContext(ctx).First(&submission, id).Error; err != nil {
		return nil, translateError(err, "get submission")
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error) {
	var submission models.Submission
	err := s.getDB(tx).WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("submission_answers.position ASC")
		}).
		Preload("Answers.Question").
		Preload("Assessment").
		First(&submission, id).Error
	if err != nil {
		return nil, translateError(err, "get submission details")
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) CountByUserAndAssessment(ctx context.Context, tx *gorm.DB, userID string, assessmentID uint) (int64, error) {
	var count int64
	err := s.getDB(tx).WithContext(ctx).
		Model(&models.Submission{}).
		Where("user_id = ? AND assessment_id = ?", userID, assessmentID).
		Count(&count).Error
	if err != nil {
		return 0, translateError(err, "count submissions")
	}
	return count, nil
}

func (s *SubmissionPostgreSQL) ListByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	query := s.getDB(tx).WithContext(ctx).
		Model(&models.Submission{}).
		Where("assessment_id = ?", assessmentID)

	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.Passed != nil {
		query = query.Where("passed = ?", *filters.Passed)
	}
	if filters.DateFrom != nil {
		query = query.Where("submitted_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("submitted_at <= ?", *filters.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "count submissions")
	}

	var submissions []*models.Submission
	query = s.helpers.ApplyPagination(query.Order("submitted_at DESC, id DESC"), filters.Limit, filters.Offset)
	if err := query.Find(&submissions).Error; err != nil {
		return nil, 0, translateError(err, "list submissions")
	}
	return submissions, total, nil
}

func (s *SubmissionPostgreSQL) ListByUserAndAssessment(ctx context.Context, tx *gorm.DB, userID string, assessmentID uint) ([]*models.Submission, error) {
	var submissions []*models.Submission

	err := s.cacheManager.Submission.CacheOrExecute(ctx, cache.UserSubmissionsKey(assessmentID, userID), &submissions, cache.SubmissionCacheConfig.TTL, func() (interface{}, error) {
		var dbSubmissions []*models.Submission
		err := s.getDB(tx).WithContext(ctx).
			Where("user_id = ? AND assessment_id = ?", userID, assessmentID).
			Order("submitted_at DESC, id DESC").
			Find(&dbSubmissions).Error
		if err != nil {
			return nil, translateError(err, "list user submissions")
		}
		return dbSubmissions, nil
	})
	if err != nil {
		return nil, err
	}
	return submissions, nil
}

// UpdateGrade bumps the submission version only if nobody else changed it since it was read.
func (s *SubmissionPostgreSQL) UpdateGrade(ctx context.Context, tx *gorm.DB, grade repositories.SubmissionGrade, expectedVersion int) error {
	var submission models.Submission

	err := s.getDB(tx).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Submission{}).
			Where("id = ? AND version = ?", grade.SubmissionID, expectedVersion).
			Updates(map[string]interface{}{
				"score":      grade.TotalScore,
				"percentage": grade.Percentage,
				"passed":     grade.Passed,
				"version":    gorm.Expr("version + 1"),
			})
		if result.Error != nil {
			return translateError(result.Error, "update submission grade")
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("failed to update submission %d: %w", grade.SubmissionID, repositories.ErrVersionConflict)
		}

		result = tx.Model(&models.SubmissionAnswer{}).
			Where("id = ? AND submission_id = ?", grade.AnswerID, grade.SubmissionID).
			Updates(map[string]interface{}{
				"score":     grade.Score,
				"feedback":  grade.Feedback,
				"graded_by": grade.GradedBy,
				"graded_at": grade.GradedAt,
			})
		if result.Error != nil {
			return translateError(result.Error, "update answer grade")
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("failed to update answer %d: %w", grade.AnswerID, repositories.ErrNotFound)
		}

		return tx.Select("id, user_id, assessment_id").First(&submission, grade.SubmissionID).Error
	})
	if err != nil {
		return err
	}

	cache.InvalidateSubmissionCache(ctx, s.cacheManager, submission.AssessmentID, submission.UserID)
	return nil
}
