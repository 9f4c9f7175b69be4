// internal/store/postgres/products.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"freshtrack/internal/models"
	"freshtrack/internal/store"
)

// ProductRepo implements store.ProductStore on PostgreSQL.
type ProductRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) *ProductRepo {
	return &ProductRepo{db: db}
}

const productColumns = `id, name, barcode, category, expiry_date, manufacture_date,
	quantity, unit, price, discounted_price, location, status, created_at, updated_at`

func (r *ProductRepo) Create(ctx context.Context, p *models.Product) error {
	query := `INSERT INTO products
		(name, barcode, category, expiry_date, manufacture_date, quantity, unit, price, location, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	if p.Status == "" {
		p.Status = models.StatusActive
	}

	err := r.db.QueryRowContext(ctx, query,
		p.Name, p.Barcode, p.Category, p.ExpiryDate, p.ManufactureDate,
		p.Quantity, p.Unit, p.Price, p.Location, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (r *ProductRepo) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	var p models.Product
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Barcode, &p.Category, &p.ExpiryDate, &p.ManufactureDate,
		&p.Quantity, &p.Unit, &p.Price, &p.DiscountedPrice, &p.Location, &p.Status,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return &p, nil
}

func (r *ProductRepo) List(ctx context.Context, filter store.ProductFilter) ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`

	var conditions []string
	var args []interface{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.ExpiringWithinDays > 0 {
		args = append(args, filter.ExpiringWithinDays)
		conditions = append(conditions, fmt.Sprintf("expiry_date <= NOW() + ($%d || ' days')::interval", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (r *ProductRepo) Update(ctx context.Context, p *models.Product) error {
	query := `UPDATE products
		SET name = $2, barcode = $3, category = $4, expiry_date = $5,
			manufacture_date = $6, quantity = $7, unit = $8, price = $9,
			location = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		p.ID, p.Name, p.Barcode, p.Category, p.ExpiryDate, p.ManufactureDate,
		p.Quantity, p.Unit, p.Price, p.Location,
	).Scan(&p.UpdatedAt)
	if err == sql.ErrNoRows {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update product %d: %w", p.ID, err)
	}
	return nil
}

func (r *ProductRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *ProductRepo) DecrementQuantity(ctx context.Context, id int64, qty int) (bool, error) {
	// Conditional update so a sale never drives stock negative.
	query := `UPDATE products
		SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2`

	result, err := r.db.ExecContext(ctx, query, id, qty)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock for product %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected == 1, nil
}

func (r *ProductRepo) ListByStatus(ctx context.Context, statuses ...models.ProductStatus) ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE status = ANY($1) ORDER BY id`

	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	rows, err := r.db.QueryContext(ctx, query, pq.Array(values))
	if err != nil {
		return nil, fmt.Errorf("failed to list products by status: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (r *ProductRepo) UpdateLifecycle(ctx context.Context, id int64, status models.ProductStatus, discountedPrice *float64) error {
	query := `UPDATE products
		SET status = $2, discounted_price = $3, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status, discountedPrice)
	if err != nil {
		return fmt.Errorf("failed to update product %d lifecycle: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *ProductRepo) MarkDisposed(ctx context.Context, id int64) (bool, error) {
	// Conditional update so concurrent sweeps cannot dispose the same
	// product twice. Disposed stock is gone, so quantity drops to zero in
	// the same statement.
	query := `UPDATE products
		SET status = $2, quantity = 0, updated_at = NOW()
		WHERE id = $1 AND status <> $2`

	result, err := r.db.ExecContext(ctx, query, id, models.StatusDisposed)
	if err != nil {
		return false, fmt.Errorf("failed to mark product %d disposed: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected == 1, nil
}

func scanProducts(rows *sql.Rows) ([]models.Product, error) {
	var products []models.Product
	for rows.Next() {
		var p models.Product
		err := rows.Scan(
			&p.ID, &p.Name, &p.Barcode, &p.Category, &p.ExpiryDate, &p.ManufactureDate,
			&p.Quantity, &p.Unit, &p.Price, &p.DiscountedPrice, &p.Location, &p.Status,
			&p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("product row iteration failed: %w", err)
	}
	return products, nil
}
