package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission is one graded attempt of a user at an assessment.
// Rows are immutable except for the essay re-grade path, which bumps Version.
type Submission struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	UserID        string `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_submission_attempt,priority:1;index"`
	AssessmentID  uint   `json:"assessment_id" gorm:"not null;uniqueIndex:idx_submission_attempt,priority:2;index"`
	AttemptNumber int    `json:"attempt_number" gorm:"not null;uniqueIndex:idx_submission_attempt,priority:3"`

	// Scoring
	Score      float64 `json:"score" gorm:"not null"`
	MaxScore   float64 `json:"max_score" gorm:"not null"`
	Percentage float64 `json:"percentage" gorm:"not null"`
	Passed     bool    `json:"passed" gorm:"not null;index"`

	// Timing
	StartTime   time.Time `json:"start_time" gorm:"not null"`
	SubmittedAt time.Time `json:"submitted_at" gorm:"not null;index"`
	TimeSpent   *int      `json:"time_spent"` // seconds

	Version   int       `json:"version" gorm:"not null;default:1"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Answers    []SubmissionAnswer `json:"answers,omitempty" gorm:"foreignKey:SubmissionID"`
	Assessment *Assessment        `json:"assessment,omitempty" gorm:"foreignKey:AssessmentID"`

	// Populated from the identity provider, not stored
	User *User `json:"user,omitempty" gorm:"-"`
}

// SubmissionAnswer is the graded answer to one question of the assessment.
type SubmissionAnswer struct {
	ID                   uint         `json:"id" gorm:"primaryKey"`
	SubmissionID         uint         `json:"submission_id" gorm:"not null;index"`
	AssessmentQuestionID uint         `json:"assessment_question_id" gorm:"not null"`
	QuestionID           uint         `json:"question_id" gorm:"not null;index"`
	QuestionType         QuestionType `json:"question_type" gorm:"not null;size:30"`
	Position             int          `json:"position" gorm:"not null"`

	// Raw submitted value, null when no answer was provided
	UserAnswer datatypes.JSON `json:"user_answer" gorm:"type:jsonb"`

	// Grading
	IsCorrect bool       `json:"is_correct"`
	Score     float64    `json:"score" gorm:"not null"`
	MaxScore  float64    `json:"max_score" gorm:"not null"`
	Feedback  string     `json:"feedback" gorm:"type:text"`
	GradedBy  *string    `json:"graded_by,omitempty" gorm:"size:255"`
	GradedAt  *time.Time `json:"graded_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Question *Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
}

func (Submission) TableName() string {
	return "submissions"
}

func (SubmissionAnswer) TableName() string {
	return "submission_answers"
}

// AnswerFor returns the answer recorded for the given question, if any.
func (s *Submission) AnswerFor(questionID uint) *SubmissionAnswer {
	for i := range s.Answers {
		if s.Answers[i].QuestionID == questionID {
			return &s.Answers[i]
		}
	}
	return nil
}
