package models

import (
	"time"

	"gorm.io/gorm"
)

type AssessmentType string

const (
	AssessmentQuiz       AssessmentType = "quiz"
	AssessmentTest       AssessmentType = "test"
	AssessmentAssignment AssessmentType = "assignment"
	AssessmentSurvey     AssessmentType = "survey"
)

// FeedbackMode controls whether per-question correctness is returned after a submission.
type FeedbackMode string

const (
	FeedbackAlways       FeedbackMode = "always"
	FeedbackOnCompletion FeedbackMode = "on_completion"
	FeedbackNever        FeedbackMode = "never"
)

const (
	DefaultPassingScore = 70
	DefaultMaxAttempts  = 1
	DefaultWeight       = 1.0
)

type Assessment struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	CourseID    uint           `json:"course_id" gorm:"not null;index"`
	LessonID    *uint          `json:"lesson_id" gorm:"index"`
	Title       string         `json:"title" gorm:"not null;size:200;index"`
	Description *string        `json:"description" gorm:"type:text"`
	Type        AssessmentType `json:"type" gorm:"not null;size:20;default:quiz"`

	// Scoring policy
	PassingScore     int          `json:"passing_score" gorm:"not null"` // 0 is a valid threshold
	MaxAttempts      int          `json:"max_attempts" gorm:"not null;default:1"`
	ShowFeedback     FeedbackMode `json:"show_feedback" gorm:"not null;size:20;default:on_completion"`
	ShuffleQuestions bool         `json:"shuffle_questions" gorm:"not null;default:false"`

	// Metadata
	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions []AssessmentQuestion `json:"questions,omitempty" gorm:"foreignKey:AssessmentID"`

	// Computed fields (not stored)
	QuestionsCount int     `json:"questions_count" gorm:"-"`
	TotalWeight    float64 `json:"total_weight" gorm:"-"`
}

// AssessmentQuestion places a question inside an assessment with its weight.
type AssessmentQuestion struct {
	ID           uint     `json:"id" gorm:"primaryKey"`
	AssessmentID uint     `json:"assessment_id" gorm:"not null;index"`
	QuestionID   uint     `json:"question_id" gorm:"not null;index"`
	Position     int      `json:"position" gorm:"not null"`
	Weight       *float64 `json:"weight"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Question Question `json:"question" gorm:"foreignKey:QuestionID"`
}

func (Assessment) TableName() string {
	return "assessments"
}

func (AssessmentQuestion) TableName() string {
	return "assessment_questions"
}

// EffectiveWeight returns the configured weight, falling back to 1 when unset or zero.
func (aq *AssessmentQuestion) EffectiveWeight() float64 {
	if aq.Weight == nil || *aq.Weight == 0 {
		return DefaultWeight
	}
	return *aq.Weight
}

// EffectiveMaxAttempts returns the attempt limit, treating values below 1 as the default.
func (a *Assessment) EffectiveMaxAttempts() int {
	if a.MaxAttempts < 1 {
		return DefaultMaxAttempts
	}
	return a.MaxAttempts
}

// EmitsTelemetry reports whether xAPI statements are produced for submissions of this assessment.
func (a *Assessment) EmitsTelemetry() bool {
	return a.Type == AssessmentQuiz || a.ShowFeedback != FeedbackNever
}

// ComputeTotals fills the computed question count and total weight.
func (a *Assessment) ComputeTotals() {
	a.QuestionsCount = len(a.Questions)
	a.TotalWeight = 0
	for i := range a.Questions {
		a.TotalWeight += a.Questions[i].EffectiveWeight()
	}
}

// RedactAnswerKeys strips correct answers so the assessment can be shown to a learner.
func (a *Assessment) RedactAnswerKeys() {
	for i := range a.Questions {
		a.Questions[i].Question.RedactAnswerKey()
	}
}
