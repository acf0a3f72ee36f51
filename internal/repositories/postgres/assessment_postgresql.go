package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/submission-service/internal/cache"
	"github.com/SAP-F-2025/submission-service/internal/models"
	"github.com/SAP-F-2025/submission-service/internal/repositories"
)

var assessmentSortColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"id":         true,
	"title":      true,
	"type":       true,
}

type AssessmentPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewAssessmentPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.AssessmentRepository {
	return &AssessmentPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cacheManager,
	}
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (a *AssessmentPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

// Create inserts the assessment together with its questions and their placements.
func (a *AssessmentPostgreSQL) Create(ctx context.Context, tx *gorm.DB, assessment *models.Assessment) error {
	if err := a.getDB(tx).WithContext(ctx).Create(assessment).Error; err != nil {
		return translateError(err, "create assessment")
	}
	cache.SafeInvalidatePattern(ctx, a.cacheManager.Assessment, "list:*")
	return nil
}

func (a *AssessmentPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Assessment, error) {
	var assessment models.Assessment

	err := a.cacheManager.Assessment.CacheOrExecute(ctx, cache.AssessmentKey(id), &assessment, cache.AssessmentCacheConfig.TTL, func() (interface{}, error) {
		var dbAssessment models.Assessment
		if err := a.getDB(tx).WithContext(ctx).First(&dbAssessment, id).Error; err != nil {
			return nil, translateError(err, "get assessment")
		}
		return &dbAssessment, nil
	})
	if err != nil {
		return nil, err
	}
	return &assessment, nil
}

// GetByIDWithQuestions is on the submit path, so the full definition is cached.
func (a *AssessmentPostgreSQL) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Assessment, error) {
	var assessment models.Assessment

	err := a.cacheManager.Assessment.CacheOrExecute(ctx, cache.AssessmentWithQuestionsKey(id), &assessment, cache.AssessmentCacheConfig.TTL, func() (interface{}, error) {
		var dbAssessment models.Assessment
		err := a.getDB(tx).WithContext(ctx).
			Preload("Questions", func(db *gorm.DB) *gorm.DB {
				return db.Order("assessment_questions.position ASC, assessment_questions.id ASC")
			}).
			Preload("Questions.Question").
			First(&dbAssessment, id).Error
		if err != nil {
			return nil, translateError(err, "get assessment with questions")
		}
		dbAssessment.ComputeTotals()
		return &dbAssessment, nil
	})
	if err != nil {
		return nil, err
	}
	return &assessment, nil
}

// UpdateSettings writes the scoring policy fields and drops cached copies.
func (a *AssessmentPostgreSQL) UpdateSettings(ctx context.Context, tx *gorm.DB, assessment *models.Assessment) error {
	result := a.getDB(tx).WithContext(ctx).
		Model(&models.Assessment{}).
		Where("id = ?", assessment.ID).
		Updates(map[string]interface{}{
			"title":             assessment.Title,
			"description":       assessment.Description,
			"type":              assessment.Type,
			"passing_score":     assessment.PassingScore,
			"max_attempts":      assessment.MaxAttempts,
			"show_feedback":     assessment.ShowFeedback,
			"shuffle_questions": assessment.ShuffleQuestions,
		})
	if result.Error != nil {
		return translateError(result.Error, "update assessment")
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to update assessment: %w", repositories.ErrNotFound)
	}

	cache.InvalidateAssessmentCache(ctx, a.cacheManager, assessment.ID)
	return nil
}

func (a *AssessmentPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.AssessmentFilters) ([]*models.Assessment, int64, error) {
	query := a.applyFilters(a.getDB(tx).WithContext(ctx).Model(&models.Assessment{}), filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "count assessments")
	}

	var assessments []*models.Assessment
	query = a.helpers.ApplyPaginationAndSort(query, assessmentSortColumns, filters.SortBy, "created_at", filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Find(&assessments).Error; err != nil {
		return nil, 0, translateError(err, "list assessments")
	}

	if err := a.loadQuestionCounts(ctx, tx, assessments); err != nil {
		return nil, 0, err
	}
	return assessments, total, nil
}

func (a *AssessmentPostgreSQL) applyFilters(query *gorm.DB, filters repositories.AssessmentFilters) *gorm.DB {
	if filters.CourseID != nil {
		query = query.Where("course_id = ?", *filters.CourseID)
	}
	if filters.LessonID != nil {
		query = query.Where("lesson_id = ?", *filters.LessonID)
	}
	if filters.Type != nil {
		query = query.Where("type = ?", *filters.Type)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	return query
}

func (a *AssessmentPostgreSQL) loadQuestionCounts(ctx context.Context, tx *gorm.DB, assessments []*models.Assessment) error {
	if len(assessments) == 0 {
		return nil
	}

	ids := make([]uint, len(assessments))
	for i, assessment := range assessments {
		ids[i] = assessment.ID
	}

	var rows []struct {
		AssessmentID uint
		Count        int
	}
	err := a.getDB(tx).WithContext(ctx).
		Model(&models.AssessmentQuestion{}).
		Select("assessment_id, COUNT(*) AS count").
		Where("assessment_id IN ?", ids).
		Group("assessment_id").
		Scan(&rows).Error
	if err != nil {
		return translateError(err, "count assessment questions")
	}

	counts := make(map[uint]int, len(rows))
	for _, row := range rows {
		counts[row.AssessmentID] = row.Count
	}
	for _, assessment := range assessments {
		assessment.QuestionsCount = counts[assessment.ID]
	}
	return nil
}
