package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(SubmissionRecorded, "user-1", SubmissionRecordedEvent{SubmissionID: 9})

	if event.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if event.Source != "submission-service" {
		t.Errorf("Expected source 'submission-service', got '%s'", event.Source)
	}
	if event.Version != "1.0" {
		t.Errorf("Expected version '1.0', got '%s'", event.Version)
	}
	if event.Timestamp.IsZero() {
		t.Error("Event timestamp should not be zero")
	}
	if event.Key != "user-1" {
		t.Errorf("Expected key 'user-1', got '%s'", event.Key)
	}
}

func TestWatermillEventPublisher_GoChannel(t *testing.T) {
	logger := newTestLogger()
	publisher, pubSub := NewChannelEventPublisher(logger)
	defer publisher.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, "lms.submissions")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	event := NewEvent(SubmissionRecorded, "user-42", SubmissionRecordedEvent{
		SubmissionID:  1,
		AssessmentID:  2,
		UserID:        "user-42",
		AttemptNumber: 1,
		Score:         3,
		MaxScore:      4,
		Percentage:    75,
		Passed:        true,
	})
	if err := publisher.Publish(ctx, "lms.submissions", event); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-messages:
		msg.Ack()
		if msg.UUID != event.ID {
			t.Errorf("message UUID = %s, want %s", msg.UUID, event.ID)
		}
		if got := msg.Metadata.Get("event_type"); got != SubmissionRecorded {
			t.Errorf("event_type metadata = %s", got)
		}
		decoded, err := DecodeEvent(msg)
		if err != nil {
			t.Fatalf("DecodeEvent() error = %v", err)
		}
		if decoded.Type != SubmissionRecorded || decoded.Key != "user-42" {
			t.Errorf("decoded event = %+v", decoded)
		}
		data, ok := decoded.Data.(map[string]interface{})
		if !ok || data["percentage"] != float64(75) {
			t.Errorf("decoded data = %#v", decoded.Data)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestMockEventPublisher(t *testing.T) {
	mock := NewMockEventPublisher(newTestLogger())
	ctx := context.Background()

	_ = mock.Publish(ctx, "a", NewEvent(SubmissionRecorded, "", nil))
	_ = mock.Publish(ctx, "b", NewEvent(SubmissionRegraded, "", nil))

	if got := mock.GetPublishedEvents(); len(got) != 2 || got[1].Type != SubmissionRegraded {
		t.Fatalf("GetPublishedEvents() = %v", got)
	}
	if topics := mock.GetTopics(); topics[0] != "a" || topics[1] != "b" {
		t.Errorf("GetTopics() = %v", topics)
	}

	mock.ClearEvents()
	if len(mock.GetPublishedEvents()) != 0 {
		t.Error("ClearEvents() did not clear")
	}

	mock.Err = errors.New("broker down")
	if err := mock.Publish(ctx, "a", NewEvent(SubmissionRecorded, "", nil)); err == nil {
		t.Error("Publish() with Err set should fail")
	}
}
