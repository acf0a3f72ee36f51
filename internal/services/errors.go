package services

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/submission-service/internal/validator"
)

var (
	ErrAssessmentNotFound  = errors.New("assessment not found")
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrAnswerNotFound      = errors.New("answer not found in submission")
	ErrStatementNotFound   = errors.New("xapi statement not found")
	ErrMaxAttemptsExceeded = errors.New("maximum attempts exceeded")
	ErrSubmissionConflict  = errors.New("submission was modified concurrently")
	ErrPersistence         = errors.New("failed to persist submission")

	ErrValidationFailed = validator.ErrValidationFailed
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
)

// Use business validator types
type ValidationError = validator.ValidationError
type ValidationErrors = validator.ValidationErrors

func NewValidationError(field, message string, value interface{}) ValidationErrors {
	return ValidationErrors{{
		Field:   field,
		Message: message,
		Value:   value,
		Rule:    "business_logic",
	}}
}

// PermissionError reports that a user may not perform an action on a resource.
type PermissionError struct {
	UserID     string
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func (e *PermissionError) Is(target error) bool {
	return target == ErrForbidden
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}
