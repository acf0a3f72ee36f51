package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/submission-service/internal/models"
	"github.com/SAP-F-2025/submission-service/internal/repositories"
)

type XAPIStatementPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewXAPIStatementPostgreSQL(db *gorm.DB) repositories.XAPIStatementRepository {
	return &XAPIStatementPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (x *XAPIStatementPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return x.db
}

func (x *XAPIStatementPostgreSQL) Create(ctx context.Context, tx *gorm.DB, statement *models.XAPIStatement) error {
	if err := x.getDB(tx).WithContext(ctx).Create(statement).Error; err != nil {
		return translateError(err, "create xapi statement")
	}
	return nil
}

func (x *XAPIStatementPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.XAPIStatement, error) {
	var statement models.XAPIStatement
	if err := x.getDB(tx).WithContext(ctx).Where("id = ?", id).First(&statement).Error; err != nil {
		return nil, translateError(err, "get xapi statement")
	}
	return &statement, nil
}

// List returns matching statements, newest first.
func (x *XAPIStatementPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.XAPIStatementFilters) ([]*models.XAPIStatement, int64, error) {
	query := x.getDB(tx).WithContext(ctx).Model(&models.XAPIStatement{})

	if filters.OrganizationID != nil {
		query = query.Where("organization_id = ?", *filters.OrganizationID)
	}
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.CourseID != nil {
		query = query.Where("course_id = ?", *filters.CourseID)
	}
	if filters.LessonID != nil {
		query = query.Where("lesson_id = ?", *filters.LessonID)
	}
	if filters.AssessmentID != nil {
		query = query.Where("assessment_id = ?", *filters.AssessmentID)
	}
	if filters.VerbID != nil {
		query = query.Where("verb_id = ?", *filters.VerbID)
	}
	if filters.Since != nil {
		query = query.Where("timestamp >= ?", *filters.Since)
	}
	if filters.Until != nil {
		query = query.Where("timestamp <= ?", *filters.Until)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "count xapi statements")
	}

	var statements []*models.XAPIStatement
	query = x.helpers.ApplyPagination(query.Order("timestamp DESC"), filters.Limit, filters.Offset)
	if err := query.Find(&statements).Error; err != nil {
		return nil, 0, translateError(err, "list xapi statements")
	}
	return statements, total, nil
}

// MarkProcessed flags statements that reached the event stream.
func (x *XAPIStatementPostgreSQL) MarkProcessed(ctx context.Context, tx *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := x.getDB(tx).WithContext(ctx).
		Model(&models.XAPIStatement{}).
		Where("id IN ?", ids).
		Update("processed", true).Error
	if err != nil {
		return translateError(err, "mark xapi statements processed")
	}
	return nil
}
