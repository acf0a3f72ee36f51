package services

import (
	"testing"
	"time"

	"github.com/SAP-F-2025/submission-service/internal/models"
)

func graded(weights, scores []float64) []GradedAnswer {
	out := make([]GradedAnswer, len(weights))
	for i := range weights {
		out[i] = GradedAnswer{QuestionID: uint(i + 1), Weight: weights[i], Answered: true, GradeResult: GradeResult{Score: scores[i]}}
	}
	return out
}

func TestAggregateScore(t *testing.T) {
	tests := []struct {
		name         string
		weights      []float64
		scores       []float64
		passingScore int
		want         Aggregate
		wantPct      string
	}{
		{"all correct", []float64{1, 1}, []float64{1, 1}, 50, Aggregate{2, 2, 100, true}, "100.00"},
		{"exact threshold passes", []float64{1, 1}, []float64{1, 0}, 50, Aggregate{1, 2, 50, true}, "50.00"},
		{"just below threshold", []float64{1, 1, 1}, []float64{1, 0, 0}, 34, Aggregate{1, 3, 100.0 / 3, false}, "33.33"},
		{"two thirds", []float64{1, 1, 1}, []float64{1, 1, 0}, 70, Aggregate{2, 3, 200.0 / 3, false}, "66.67"},
		{"partial credit", []float64{2, 2}, []float64{1, 2}, 70, Aggregate{3, 4, 75, true}, "75.00"},
		{"no questions", nil, nil, 0, Aggregate{0, 0, 0, true}, "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AggregateScore(graded(tt.weights, tt.scores), &models.Assessment{PassingScore: tt.passingScore})
			if got != tt.want {
				t.Errorf("AggregateScore() = %+v, want %+v", got, tt.want)
			}
			if pct := FormatPercentage(got.Percentage); pct != tt.wantPct {
				t.Errorf("FormatPercentage() = %q, want %q", pct, tt.wantPct)
			}
			if got.Score > got.MaxScore && got.MaxScore > 0 {
				t.Errorf("score %v exceeds max %v", got.Score, got.MaxScore)
			}
		})
	}
}

func TestTimeSpent(t *testing.T) {
	submitted := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		start *time.Time
		want  *int
	}{
		{"no start time", nil, nil},
		{"whole seconds", ptr(submitted.Add(-90 * time.Second)), ptr(90)},
		{"fraction truncated", ptr(submitted.Add(-1999 * time.Millisecond)), ptr(1)},
		{"same instant", ptr(submitted), ptr(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TimeSpent(Timing{StartTime: tt.start, SubmittedAt: submitted})
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("TimeSpent() = %d, want nil", *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("TimeSpent() = %v, want %d", got, *tt.want)
			}
		})
	}
}

func TestSelectFeedback(t *testing.T) {
	answers := []GradedAnswer{
		{QuestionID: 1, Answered: true, UserAnswer: raw(`"Paris"`), GradeResult: GradeResult{Score: 1, IsCorrect: true, Feedback: feedbackCorrect}},
		{QuestionID: 2, GradeResult: GradeMissing()},
	}

	tests := []struct {
		name        string
		mode        models.FeedbackMode
		attempt     int
		maxAttempts int
		wantShown   bool
	}{
		{"always on first attempt", models.FeedbackAlways, 1, 3, true},
		{"never on last attempt", models.FeedbackNever, 3, 3, false},
		{"on completion before last attempt", models.FeedbackOnCompletion, 1, 3, false},
		{"on completion at last attempt", models.FeedbackOnCompletion, 3, 3, true},
		{"on completion single attempt", models.FeedbackOnCompletion, 1, 1, true},
		{"unknown mode", models.FeedbackMode("sometimes"), 1, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectFeedback(tt.mode, tt.attempt, tt.maxAttempts, answers)
			if !tt.wantShown {
				if got != nil {
					t.Errorf("SelectFeedback() = %+v, want nil", got)
				}
				return
			}
			if len(got) != 2 {
				t.Fatalf("SelectFeedback() returned %d items, want 2", len(got))
			}
			if got[0].QuestionID != 1 || !got[0].IsCorrect || string(got[0].UserAnswer) != `"Paris"` {
				t.Errorf("answered feedback = %+v", got[0])
			}
			if got[1].UserAnswer != nil || got[1].Feedback != feedbackNoAnswer {
				t.Errorf("missing feedback = %+v", got[1])
			}
		})
	}
}
