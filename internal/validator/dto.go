package validator

import (
	"encoding/json"
	"time"

	"github.com/SAP-F-2025/submission-service/internal/models"
)

// SubmitRequest carries a learner's answers keyed by question ID
type SubmitRequest struct {
	Answers   map[string]json.RawMessage `json:"answers" validate:"required"`
	StartTime *time.Time                 `json:"start_time"`
}

// AssessmentCreateRequest represents the request structure for creating assessments
type AssessmentCreateRequest struct {
	CourseID         uint                        `json:"course_id" validate:"required"`
	LessonID         *uint                       `json:"lesson_id"`
	Title            string                      `json:"title" validate:"required,not_blank,max=200"`
	Description      *string                     `json:"description" validate:"omitempty,max=2000"`
	Type             models.AssessmentType       `json:"type" validate:"omitempty,assessment_type"`
	PassingScore     *int                        `json:"passing_score" validate:"omitempty,passing_score"`
	MaxAttempts      *int                        `json:"max_attempts" validate:"omitempty,max_attempts"`
	ShowFeedback     models.FeedbackMode         `json:"show_feedback" validate:"omitempty,feedback_mode"`
	ShuffleQuestions bool                        `json:"shuffle_questions"`
	Questions        []AssessmentQuestionRequest `json:"questions" validate:"required,min=1,max=200,dive"`
}

// AssessmentQuestionRequest is one inline question with its weight in the assessment
type AssessmentQuestionRequest struct {
	Type          models.QuestionType    `json:"type" validate:"required,question_type"`
	Text          string                 `json:"text" validate:"required,not_blank,max=2000"`
	Options       []models.ChoiceOption  `json:"options" validate:"omitempty,max=20"`
	CorrectAnswer json.RawMessage        `json:"correct_answer"`
	Explanation   *string                `json:"explanation" validate:"omitempty,max=1000"`
	Difficulty    models.DifficultyLevel `json:"difficulty" validate:"omitempty,difficulty_level"`
	Tags          []string               `json:"tags" validate:"omitempty,max=10,dive,max=50"`
	Weight        *float64               `json:"weight" validate:"omitempty,weight_range"`
}

// AssessmentSettingsRequest updates the scoring policy; nil fields are left unchanged
type AssessmentSettingsRequest struct {
	Title            *string                `json:"title" validate:"omitempty,not_blank,max=200"`
	Description      *string                `json:"description" validate:"omitempty,max=2000"`
	Type             *models.AssessmentType `json:"type" validate:"omitempty,assessment_type"`
	PassingScore     *int                   `json:"passing_score" validate:"omitempty,passing_score"`
	MaxAttempts      *int                   `json:"max_attempts" validate:"omitempty,max_attempts"`
	ShowFeedback     *models.FeedbackMode   `json:"show_feedback" validate:"omitempty,feedback_mode"`
	ShuffleQuestions *bool                  `json:"shuffle_questions"`
}

// RegradeRequest sets an instructor score for one answer
type RegradeRequest struct {
	Score    *float64 `json:"score" validate:"required,min=0"`
	Feedback *string  `json:"feedback" validate:"omitempty,max=5000"`
}

// XAPIVerbRequest identifies the statement verb
type XAPIVerbRequest struct {
	ID      string            `json:"id" validate:"required,uri"`
	Display map[string]string `json:"display"`
}

// XAPIStatementRequest is a client-posted learning record
type XAPIStatementRequest struct {
	ID           *string         `json:"id" validate:"omitempty,uuid"`
	Actor        json.RawMessage `json:"actor"`
	Verb         XAPIVerbRequest `json:"verb"`
	Object       json.RawMessage `json:"object" validate:"required"`
	Result       json.RawMessage `json:"result"`
	Context      json.RawMessage `json:"context"`
	Timestamp    *time.Time      `json:"timestamp"`
	CourseID     *uint           `json:"course_id"`
	LessonID     *uint           `json:"lesson_id"`
	AssessmentID *uint           `json:"assessment_id"`
}
