package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/SAP-F-2025/submission-service/internal/events"
	"github.com/SAP-F-2025/submission-service/internal/models"
	"github.com/SAP-F-2025/submission-service/internal/repositories"
	"github.com/SAP-F-2025/submission-service/internal/validator"
)

func newTestXAPIService(repo repositories.Repository, publisher events.EventPublisher) XAPIService {
	return NewXAPIService(repo, NewStatementSink(repo, publisher, "lms.xapi.statements"), testLogger(), validator.New())
}

func statementRequest() *CreateStatementRequest {
	return &CreateStatementRequest{
		Verb:     validator.XAPIVerbRequest{ID: "http://adlnet.gov/expapi/verbs/experienced", Display: map[string]string{"en-US": "experienced"}},
		Object:   raw(`{"id":"http://lms.test/lessons/4","objectType":"Activity"}`),
		CourseID: ptr(uint(3)),
		LessonID: ptr(uint(4)),
	}
}

func TestXAPIService_Create(t *testing.T) {
	repo := newTestRepository(t)
	publisher := events.NewMockEventPublisher(testLogger())
	svc := newTestXAPIService(repo, publisher)
	ctx := context.Background()

	created, err := svc.Create(ctx, statementRequest(), student)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == "" || created.UserID != student.ID || created.OrganizationID == nil || *created.OrganizationID != "lms" {
		t.Errorf("Create() = %+v", created)
	}

	var actor struct {
		Name string `json:"name"`
		Mbox string `json:"mbox"`
	}
	if err := json.Unmarshal(created.Actor, &actor); err != nil || actor.Name != student.FullName || actor.Mbox != "mailto:"+student.Email {
		t.Errorf("default actor = %s, %v", created.Actor, err)
	}

	stored, err := svc.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !stored.Processed || stored.VerbID != "http://adlnet.gov/expapi/verbs/experienced" {
		t.Errorf("stored = %+v", stored)
	}
	if len(publisher.GetPublishedEvents()) != 1 {
		t.Errorf("published %d events, want 1", len(publisher.GetPublishedEvents()))
	}

	t.Run("client id is kept and must be unique", func(t *testing.T) {
		req := statementRequest()
		req.ID = ptr("6f1c2b1e-8f3a-4d55-9a57-2f0d7b1c9e21")
		if _, err := svc.Create(ctx, req, student); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if _, err := svc.Create(ctx, req, student); !errors.Is(err, ErrValidationFailed) {
			t.Errorf("duplicate Create() error = %v, want ErrValidationFailed", err)
		}
	})

	t.Run("invalid requests", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*CreateStatementRequest)
		}{
			{"missing object", func(r *CreateStatementRequest) { r.Object = nil }},
			{"verb is not an IRI", func(r *CreateStatementRequest) { r.Verb.ID = "experienced" }},
			{"id is not a uuid", func(r *CreateStatementRequest) { r.ID = ptr("statement-1") }},
		}
		for _, tt := range tests {
			req := statementRequest()
			tt.mutate(req)
			if _, err := svc.Create(ctx, req, student); !errors.Is(err, ErrValidationFailed) {
				t.Errorf("%s: Create() error = %v", tt.name, err)
			}
		}
	})

	t.Run("broker failure keeps the statement", func(t *testing.T) {
		publisher.Err = errors.New("broker down")
		defer func() { publisher.Err = nil }()
		created, err := svc.Create(ctx, statementRequest(), student)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		stored, err := svc.GetByID(ctx, created.ID)
		if err != nil || stored.Processed {
			t.Errorf("GetByID() = %+v, %v", stored, err)
		}
	})
}

func TestXAPIService_Reads(t *testing.T) {
	repo := newTestRepository(t)
	svc := newTestXAPIService(repo, nil)
	ctx := context.Background()

	for _, user := range []*models.User{student, student, teacher} {
		if _, err := svc.Create(ctx, statementRequest(), user); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	list, err := svc.List(ctx, repositories.XAPIStatementFilters{UserID: &student.ID})
	if err != nil || list.Total != 2 || len(list.Statements) != 2 {
		t.Errorf("List() = %+v, %v", list, err)
	}

	if _, err := svc.GetByID(ctx, "missing"); !errors.Is(err, ErrStatementNotFound) {
		t.Errorf("GetByID() missing error = %v", err)
	}
}
