package postgres

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/submission-service/internal/repositories"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// SharedHelpers contains query helpers used by every repository
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

// ApplyPaginationAndSort orders by a whitelisted column and clamps the page size.
func (h *SharedHelpers) ApplyPaginationAndSort(query *gorm.DB, allowed map[string]bool, sortBy, defaultSort, sortOrder string, limit, offset int) *gorm.DB {
	if sortBy == "" || !allowed[sortBy] {
		sortBy = defaultSort
	}

	if strings.EqualFold(sortOrder, "asc") {
		sortOrder = "ASC"
	} else {
		sortOrder = "DESC"
	}

	return h.ApplyPagination(query.Order(sortBy+" "+sortOrder+", id "+sortOrder), limit, offset)
}

func (h *SharedHelpers) ApplyPagination(query *gorm.DB, limit, offset int) *gorm.DB {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	query = query.Limit(limit)
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}

// translateError maps driver errors onto the repository sentinels, keeping the original in the chain.
func translateError(err error, action string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to %s: %w", action, repositories.ErrNotFound)
	}
	if repositories.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to %s: %w: %w", action, repositories.ErrDuplicateKey, err)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}
