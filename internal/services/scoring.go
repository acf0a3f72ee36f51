package services

import (
	"strconv"

	"github.com/SAP-F-2025/submission-service/internal/models"
)

// Aggregate is the submission-level score derived from graded answers.
type Aggregate struct {
	Score      float64
	MaxScore   float64
	Percentage float64
	Passed     bool
}

// AggregateScore sums scores and weights. Unanswered questions still count toward MaxScore.
func AggregateScore(answers []GradedAnswer, assessment *models.Assessment) Aggregate {
	var agg Aggregate
	for _, a := range answers {
		agg.Score += a.Score
		agg.MaxScore += a.Weight
	}
	agg.Percentage = percentage(agg.Score, agg.MaxScore)
	agg.Passed = passed(agg.Percentage, assessment.PassingScore)
	return agg
}

func percentage(score, maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	return 100 * score / maxScore
}

// passed is inclusive: a percentage equal to the passing score passes.
func passed(pct float64, passingScore int) bool {
	return pct >= float64(passingScore)
}

// FormatPercentage renders a percentage with two decimals, e.g. "66.67".
func FormatPercentage(pct float64) string {
	return strconv.FormatFloat(pct, 'f', 2, 64)
}
