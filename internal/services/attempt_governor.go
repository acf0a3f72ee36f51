package services

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/submission-service/internal/models"
	"github.com/SAP-F-2025/submission-service/internal/repositories"
)

// AttemptGovernor decides whether a user may submit again and which attempt number to use.
// It only reads; the unique attempt index settles races at insert time.
type AttemptGovernor struct {
	repo repositories.Repository
}

func NewAttemptGovernor(repo repositories.Repository) *AttemptGovernor {
	return &AttemptGovernor{repo: repo}
}

// NextAttempt returns count+1, or ErrMaxAttemptsExceeded once the limit is reached.
func (g *AttemptGovernor) NextAttempt(ctx context.Context, user *models.User, assessment *models.Assessment) (int, error) {
	count, err := g.repo.Submission().CountByUserAndAssessment(ctx, nil, user.ID, assessment.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	maxAttempts := assessment.EffectiveMaxAttempts()
	if int(count) >= maxAttempts {
		return 0, fmt.Errorf("user %s used %d of %d attempts: %w", user.ID, count, maxAttempts, ErrMaxAttemptsExceeded)
	}

	return int(count) + 1, nil
}
