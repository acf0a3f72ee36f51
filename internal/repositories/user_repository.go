package repositories

import (
	"context"

	"github.com/SAP-F-2025/submission-service/internal/models"
)

// UserRepository reads users from the identity provider. This service never writes them.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByIDs skips ids that cannot be resolved.
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
}
