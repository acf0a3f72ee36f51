package xapi

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/submission-service/internal/models"
)

const (
	DefaultBaseURL = "http://localhost:5000"

	ActivityQuestion   = "http://adlnet.gov/expapi/activities/question"
	ActivityAssessment = "http://adlnet.gov/expapi/activities/assessment"
	ActivityLesson     = "http://adlnet.gov/expapi/activities/lesson"
	ActivityCourse     = "http://adlnet.gov/expapi/activities/course"

	langEnUS = "en-US"
)

type LanguageMap map[string]string

type Actor struct {
	Name       string `json:"name"`
	Mbox       string `json:"mbox"`
	ObjectType string `json:"objectType"`
}

type Verb struct {
	ID      string      `json:"id"`
	Display LanguageMap `json:"display"`
}

type ActivityDefinition struct {
	Name        LanguageMap `json:"name,omitempty"`
	Description LanguageMap `json:"description,omitempty"`
	Type        string      `json:"type"`
}

type Activity struct {
	ID         string              `json:"id"`
	Definition *ActivityDefinition `json:"definition,omitempty"`
	ObjectType string              `json:"objectType,omitempty"`
}

type Score struct {
	Scaled float64 `json:"scaled"`
	Raw    float64 `json:"raw"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

type Result struct {
	Score      *Score `json:"score,omitempty"`
	Success    bool   `json:"success"`
	Completion bool   `json:"completion"`
	Response   string `json:"response,omitempty"`
}

type ContextActivities struct {
	Parent   []Activity `json:"parent,omitempty"`
	Grouping []Activity `json:"grouping,omitempty"`
}

type Context struct {
	ContextActivities ContextActivities `json:"contextActivities"`
}

// Statement is an xAPI statement before it is persisted or published.
type Statement struct {
	ID        string    `json:"id"`
	Actor     Actor     `json:"actor"`
	Verb      Verb      `json:"verb"`
	Object    Activity  `json:"object"`
	Result    *Result   `json:"result,omitempty"`
	Context   *Context  `json:"context,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Routing data, not part of the xAPI document
	UserID         string  `json:"-"`
	OrganizationID *string `json:"-"`
	CourseID       *uint   `json:"-"`
	LessonID       *uint   `json:"-"`
	AssessmentID   *uint   `json:"-"`
}

// Builder creates statements whose activity IRIs are rooted at the public API base URL.
type Builder struct {
	baseURL string
	now     func() time.Time
}

func NewBuilder(baseURL string) *Builder {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Builder{baseURL: baseURL, now: time.Now}
}

// Answered builds the statement for one graded question.
func (b *Builder) Answered(user *models.User, question *models.Question, assessment *models.Assessment, userAnswer json.RawMessage, correct bool) Statement {
	stmt := b.base(user, assessment, models.VerbAnswered, "answered")
	stmt.Object = Activity{
		ID: b.url("questions", question.ID),
		Definition: &ActivityDefinition{
			Name:        LanguageMap{langEnUS: question.Text},
			Description: LanguageMap{langEnUS: fmt.Sprintf("Question in %s", assessment.Title)},
			Type:        ActivityQuestion,
		},
		ObjectType: "Activity",
	}
	stmt.Result = &Result{
		Success:    correct,
		Completion: true,
		Response:   ResponseText(userAnswer),
	}
	stmt.Context = &Context{ContextActivities: ContextActivities{
		Parent: []Activity{{
			ID: b.url("assessments", assessment.ID),
			Definition: &ActivityDefinition{
				Name: LanguageMap{langEnUS: assessment.Title},
				Type: ActivityAssessment,
			},
		}},
		Grouping: b.courseGrouping(assessment),
	}}
	return stmt
}

// Completed builds the statement for a finished submission.
func (b *Builder) Completed(user *models.User, assessment *models.Assessment, score, total float64, success bool) Statement {
	stmt := b.base(user, assessment, models.VerbCompleted, "completed")

	description := "Assessment"
	if assessment.Description != nil && *assessment.Description != "" {
		description = *assessment.Description
	}
	stmt.Object = Activity{
		ID: b.url("assessments", assessment.ID),
		Definition: &ActivityDefinition{
			Name:        LanguageMap{langEnUS: assessment.Title},
			Description: LanguageMap{langEnUS: description},
			Type:        ActivityAssessment,
		},
		ObjectType: "Activity",
	}

	scaled := 0.0
	if total > 0 {
		scaled = score / total
	}
	stmt.Result = &Result{
		Score:      &Score{Scaled: scaled, Raw: score, Min: 0, Max: total},
		Success:    success,
		Completion: true,
	}

	ctx := &Context{ContextActivities: ContextActivities{Grouping: b.courseGrouping(assessment)}}
	if assessment.LessonID != nil {
		ctx.ContextActivities.Parent = []Activity{{
			ID:         b.url("lessons", *assessment.LessonID),
			Definition: &ActivityDefinition{Type: ActivityLesson},
		}}
	}
	stmt.Context = ctx
	return stmt
}

// ToModel converts the statement into its stored form.
func (s Statement) ToModel() (*models.XAPIStatement, error) {
	actor, err := json.Marshal(s.Actor)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal actor: %w", err)
	}
	verb, err := json.Marshal(s.Verb)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal verb: %w", err)
	}
	object, err := json.Marshal(s.Object)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal object: %w", err)
	}

	record := &models.XAPIStatement{
		ID:             s.ID,
		OrganizationID: s.OrganizationID,
		UserID:         s.UserID,
		CourseID:       s.CourseID,
		LessonID:       s.LessonID,
		AssessmentID:   s.AssessmentID,
		VerbID:         s.Verb.ID,
		Actor:          actor,
		Verb:           verb,
		Object:         object,
		Timestamp:      s.Timestamp,
	}
	if s.Result != nil {
		if record.Result, err = json.Marshal(s.Result); err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
	}
	if s.Context != nil {
		if record.Context, err = json.Marshal(s.Context); err != nil {
			return nil, fmt.Errorf("failed to marshal context: %w", err)
		}
	}
	return record, nil
}

// ResponseText renders a submitted answer as the xAPI response string.
// Strings are used verbatim, anything else as compact JSON.
func ResponseText(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "null"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	compact, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(compact)
}

func (b *Builder) base(user *models.User, assessment *models.Assessment, verbID, verbName string) Statement {
	stmt := Statement{
		ID:        uuid.NewString(),
		Actor:     NewActor(user),
		Verb:      Verb{ID: verbID, Display: LanguageMap{langEnUS: verbName}},
		Timestamp: b.now().UTC(),
		UserID:    user.ID,
	}
	if user.Organization != "" {
		org := user.Organization
		stmt.OrganizationID = &org
	}
	courseID := assessment.CourseID
	assessmentID := assessment.ID
	stmt.CourseID = &courseID
	stmt.AssessmentID = &assessmentID
	stmt.LessonID = assessment.LessonID
	return stmt
}

// NewActor describes a user as an xAPI agent.
func NewActor(user *models.User) Actor {
	return Actor{
		Name:       user.FullName,
		Mbox:       "mailto:" + user.Email,
		ObjectType: "Agent",
	}
}

func (b *Builder) courseGrouping(assessment *models.Assessment) []Activity {
	return []Activity{{
		ID:         b.url("courses", assessment.CourseID),
		Definition: &ActivityDefinition{Type: ActivityCourse},
	}}
}

func (b *Builder) url(collection string, id uint) string {
	return fmt.Sprintf("%s/api/v1/%s/%d", b.baseURL, collection, id)
}
