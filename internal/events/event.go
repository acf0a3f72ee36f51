package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventSource  = "submission-service"
	EventVersion = "1.0"
)

// Event types
const (
	SubmissionRecorded = "submission.recorded"
	SubmissionRegraded = "submission.regraded"
	XAPIStatementAdded = "xapi.statement"
)

// Event is the envelope published for every domain event.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Key       string      `json:"-"` // partition key, usually the user id
	Data      interface{} `json:"data"`
}

func NewEvent(eventType, key string, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    EventSource,
		Version:   EventVersion,
		Timestamp: time.Now().UTC(),
		Key:       key,
		Data:      data,
	}
}

type SubmissionRecordedEvent struct {
	SubmissionID  uint    `json:"submission_id"`
	AssessmentID  uint    `json:"assessment_id"`
	UserID        string  `json:"user_id"`
	AttemptNumber int     `json:"attempt_number"`
	Score         float64 `json:"score"`
	MaxScore      float64 `json:"max_score"`
	Percentage    float64 `json:"percentage"`
	Passed        bool    `json:"passed"`
}

type SubmissionRegradedEvent struct {
	SubmissionID uint    `json:"submission_id"`
	QuestionID   uint    `json:"question_id"`
	GradedBy     string  `json:"graded_by"`
	Score        float64 `json:"score"`
	Percentage   float64 `json:"percentage"`
	Passed       bool    `json:"passed"`
}
