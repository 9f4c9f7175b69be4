// internal/store/postgres/purchases.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"freshtrack/internal/models"
)

// PurchaseRepo implements store.PurchaseStore on PostgreSQL.
type PurchaseRepo struct {
	db *sql.DB
}

func NewPurchaseRepo(db *sql.DB) *PurchaseRepo {
	return &PurchaseRepo{db: db}
}

func (r *PurchaseRepo) Create(ctx context.Context, p *models.PurchaseHistory) error {
	query := `INSERT INTO purchase_history (customer_id, product_id, quantity, purchase_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		p.CustomerID, p.ProductID, p.Quantity, p.PurchaseDate,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create purchase: %w", err)
	}
	return nil
}

func (r *PurchaseRepo) List(ctx context.Context) ([]models.PurchaseHistory, error) {
	query := `SELECT id, customer_id, product_id, quantity, purchase_date, created_at
		FROM purchase_history ORDER BY purchase_date DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []models.PurchaseHistory
	for rows.Next() {
		var p models.PurchaseHistory
		err := rows.Scan(&p.ID, &p.CustomerID, &p.ProductID, &p.Quantity, &p.PurchaseDate, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase row: %w", err)
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("purchase row iteration failed: %w", err)
	}
	return purchases, nil
}

func (r *PurchaseRepo) DistinctCustomerIDs(ctx context.Context, productID int64) ([]int64, error) {
	query := `SELECT DISTINCT customer_id FROM purchase_history WHERE product_id = $1 ORDER BY customer_id`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchasers for product %d: %w", productID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan purchaser row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("purchaser row iteration failed: %w", err)
	}
	return ids, nil
}
