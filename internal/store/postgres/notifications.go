// internal/store/postgres/notifications.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"freshtrack/internal/models"
	"freshtrack/internal/store"
)

// NotificationRepo implements store.NotificationStore on PostgreSQL.
type NotificationRepo struct {
	db *sql.DB
}

func NewNotificationRepo(db *sql.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

const notificationColumns = `id, customer_id, product_id, notification_date, channel, status, created_at`

func (r *NotificationRepo) Create(ctx context.Context, n *models.DiscountNotification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Status == "" {
		n.Status = models.NotificationPending
	}
	if n.NotificationDate.IsZero() {
		n.NotificationDate = time.Now()
	}

	query := `INSERT INTO discount_notifications
		(id, customer_id, product_id, notification_date, channel, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		n.ID, n.CustomerID, n.ProductID, n.NotificationDate, n.Channel, n.Status,
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *NotificationRepo) HasPending(ctx context.Context, customerID, productID int64) (bool, error) {
	query := `SELECT EXISTS(
		SELECT 1 FROM discount_notifications
		WHERE customer_id = $1 AND product_id = $2 AND status = $3)`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, customerID, productID, models.NotificationPending).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check pending notification: %w", err)
	}
	return exists, nil
}

func (r *NotificationRepo) ListPending(ctx context.Context) ([]models.DiscountNotification, error) {
	query := `SELECT ` + notificationColumns + ` FROM discount_notifications
		WHERE status = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, models.NotificationPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

func (r *NotificationRepo) List(ctx context.Context) ([]models.DiscountNotification, error) {
	query := `SELECT ` + notificationColumns + ` FROM discount_notifications ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

func (r *NotificationRepo) ListByStatus(ctx context.Context, status models.NotificationStatus) ([]models.DiscountNotification, error) {
	query := `SELECT ` + notificationColumns + ` FROM discount_notifications
		WHERE status = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s notifications: %w", status, err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

func (r *NotificationRepo) MarkStatus(ctx context.Context, id string, status models.NotificationStatus) error {
	query := `UPDATE discount_notifications SET status = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to mark notification %s %s: %w", id, status, err)
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

func scanNotifications(rows *sql.Rows) ([]models.DiscountNotification, error) {
	var notifications []models.DiscountNotification
	for rows.Next() {
		var n models.DiscountNotification
		err := rows.Scan(
			&n.ID, &n.CustomerID, &n.ProductID, &n.NotificationDate,
			&n.Channel, &n.Status, &n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notification row iteration failed: %w", err)
	}
	return notifications, nil
}
