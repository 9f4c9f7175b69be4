// Package policy serves per-category lifecycle policies: the waste
// classification used at disposal time and the days-before-expiry
// threshold at which discounting begins. Policies are read-mostly, so the
// production wiring layers a Redis cache over the PostgreSQL store.
package policy

import (
	"context"

	"freshtrack/internal/models"
)

// Store resolves category policies by name.
type Store interface {
	// GetByName returns the policy for a category, or store.ErrNotFound
	// when the category has no policy row. Callers fall back to
	// models.DefaultDiscountThreshold on a miss.
	GetByName(ctx context.Context, name string) (*models.CategoryPolicy, error)
	List(ctx context.Context) ([]models.CategoryPolicy, error)

	// Upsert inserts or refreshes a policy row keyed by category name.
	Upsert(ctx context.Context, p *models.CategoryPolicy) error
}
