package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	VerbAnswered  = "http://adlnet.gov/expapi/verbs/answered"
	VerbCompleted = "http://adlnet.gov/expapi/verbs/completed"
)

// XAPIStatement is a stored learning-record statement (actor, verb, object, result, context).
type XAPIStatement struct {
	ID             string  `json:"id" gorm:"primaryKey;size:36"`
	OrganizationID *string `json:"organization_id" gorm:"size:255;index"`
	UserID         string  `json:"user_id" gorm:"not null;size:255;index"`
	CourseID       *uint   `json:"course_id" gorm:"index"`
	LessonID       *uint   `json:"lesson_id" gorm:"index"`
	AssessmentID   *uint   `json:"assessment_id" gorm:"index"`
	VerbID         string  `json:"verb_id" gorm:"not null;size:255;index"`

	Actor   datatypes.JSON `json:"actor" gorm:"type:jsonb;not null"`
	Verb    datatypes.JSON `json:"verb" gorm:"type:jsonb;not null"`
	Object  datatypes.JSON `json:"object" gorm:"type:jsonb;not null"`
	Result  datatypes.JSON `json:"result,omitempty" gorm:"type:jsonb"`
	Context datatypes.JSON `json:"context,omitempty" gorm:"type:jsonb"`

	Timestamp time.Time `json:"timestamp" gorm:"not null;index"`
	Processed bool      `json:"processed" gorm:"not null;default:false;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (XAPIStatement) TableName() string {
	return "xapi_statements"
}
