// internal/store/postgres/customers.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"freshtrack/internal/models"
	"freshtrack/internal/store"
)

// CustomerRepo implements store.CustomerStore on PostgreSQL.
type CustomerRepo struct {
	db *sql.DB
}

func NewCustomerRepo(db *sql.DB) *CustomerRepo {
	return &CustomerRepo{db: db}
}

func (r *CustomerRepo) Create(ctx context.Context, c *models.Customer) error {
	query := `INSERT INTO customers (name, email, phone, notification_preference)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	if c.NotificationPreference == "" {
		c.NotificationPreference = models.ChannelEmail
	}

	err := r.db.QueryRowContext(ctx, query,
		c.Name, c.Email, c.Phone, c.NotificationPreference,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

func (r *CustomerRepo) GetByID(ctx context.Context, id int64) (*models.Customer, error) {
	query := `SELECT id, name, email, phone, notification_preference, created_at, updated_at
		FROM customers WHERE id = $1`

	var c models.Customer
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.NotificationPreference,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer %d: %w", id, err)
	}
	return &c, nil
}

func (r *CustomerRepo) Update(ctx context.Context, c *models.Customer) error {
	query := `UPDATE customers
		SET name = $2, email = $3, phone = $4, notification_preference = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		c.ID, c.Name, c.Email, c.Phone, c.NotificationPreference,
	).Scan(&c.UpdatedAt)
	if err == sql.ErrNoRows {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update customer %d: %w", c.ID, err)
	}
	return nil
}

func (r *CustomerRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete customer %d: %w", id, err)
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

func (r *CustomerRepo) List(ctx context.Context) ([]models.Customer, error) {
	query := `SELECT id, name, email, phone, notification_preference, created_at, updated_at
		FROM customers ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var customers []models.Customer
	for rows.Next() {
		var c models.Customer
		err := rows.Scan(
			&c.ID, &c.Name, &c.Email, &c.Phone, &c.NotificationPreference,
			&c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer row: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("customer row iteration failed: %w", err)
	}
	return customers, nil
}
