package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// Key builders shared by repositories and invalidation.

func AssessmentKey(assessmentID uint) string {
	return fmt.Sprintf("id:%d", assessmentID)
}

func AssessmentWithQuestionsKey(assessmentID uint) string {
	return fmt.Sprintf("details:%d", assessmentID)
}

func UserSubmissionsKey(assessmentID uint, userID string) string {
	return fmt.Sprintf("assessment:%d:user:%s", assessmentID, userID)
}

// SafeInvalidatePattern invalidates a pattern, logging instead of returning failures.
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete deletes keys, logging instead of returning failures.
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateAssessmentCache drops the cached definition of an assessment and every listing.
func InvalidateAssessmentCache(ctx context.Context, cm *CacheManager, assessmentID uint) {
	SafeDelete(ctx, cm.Assessment,
		AssessmentKey(assessmentID),
		AssessmentWithQuestionsKey(assessmentID))
	SafeInvalidatePattern(ctx, cm.Assessment, "list:*")
}

// InvalidateSubmissionCache drops cached submission listings after a submit or re-grade.
func InvalidateSubmissionCache(ctx context.Context, cm *CacheManager, assessmentID uint, userID string) {
	SafeDelete(ctx, cm.Submission, UserSubmissionsKey(assessmentID, userID))
}
