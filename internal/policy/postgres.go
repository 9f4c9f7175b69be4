// internal/policy/postgres.go
package policy

import (
	"context"
	"database/sql"
	"fmt"

	"freshtrack/internal/models"
	"freshtrack/internal/store"
)

// PostgresStore implements Store on the categories table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const categoryColumns = `id, name, description, waste_type, recyclable, discount_threshold, created_at`

func (s *PostgresStore) GetByName(ctx context.Context, name string) (*models.CategoryPolicy, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE name = $1`

	var p models.CategoryPolicy
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&p.ID, &p.Name, &p.Description, &p.WasteType, &p.Recyclable,
		&p.DiscountThreshold, &p.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category policy %q: %w", name, err)
	}
	return &p, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.CategoryPolicy, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list category policies: %w", err)
	}
	defer rows.Close()

	var policies []models.CategoryPolicy
	for rows.Next() {
		var p models.CategoryPolicy
		err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.WasteType, &p.Recyclable,
			&p.DiscountThreshold, &p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category policy row: %w", err)
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("category policy iteration failed: %w", err)
	}
	return policies, nil
}

// Upsert inserts or refreshes a policy row keyed by category name. Used by
// the seed loader at startup.
func (s *PostgresStore) Upsert(ctx context.Context, p *models.CategoryPolicy) error {
	query := `INSERT INTO categories (name, description, waste_type, recyclable, discount_threshold)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			waste_type = EXCLUDED.waste_type,
			recyclable = EXCLUDED.recyclable,
			discount_threshold = EXCLUDED.discount_threshold
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query,
		p.Name, p.Description, p.WasteType, p.Recyclable, p.DiscountThreshold,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert category policy %q: %w", p.Name, err)
	}
	return nil
}
