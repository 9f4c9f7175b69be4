// internal/store/postgres/waste.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"freshtrack/internal/models"
)

// WasteRepo implements store.WasteStore on PostgreSQL.
type WasteRepo struct {
	db *sql.DB
}

func NewWasteRepo(db *sql.DB) *WasteRepo {
	return &WasteRepo{db: db}
}

func (r *WasteRepo) Create(ctx context.Context, w *models.WasteRecord) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	if w.DisposalDate.IsZero() {
		w.DisposalDate = time.Now()
	}

	query := `INSERT INTO waste_records
		(id, product_id, quantity, waste_type, recyclable, disposal_method, disposal_date, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		w.ID, w.ProductID, w.Quantity, w.WasteType, w.Recyclable,
		w.DisposalMethod, w.DisposalDate, w.Notes,
	).Scan(&w.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create waste record: %w", err)
	}
	return nil
}

func (r *WasteRepo) List(ctx context.Context) ([]models.WasteRecord, error) {
	query := `SELECT id, product_id, quantity, waste_type, recyclable, disposal_method,
		disposal_date, notes, created_at
		FROM waste_records ORDER BY disposal_date DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list waste records: %w", err)
	}
	defer rows.Close()

	return scanWasteRecords(rows)
}

func scanWasteRecords(rows *sql.Rows) ([]models.WasteRecord, error) {
	var records []models.WasteRecord
	for rows.Next() {
		var w models.WasteRecord
		err := rows.Scan(
			&w.ID, &w.ProductID, &w.Quantity, &w.WasteType, &w.Recyclable,
			&w.DisposalMethod, &w.DisposalDate, &w.Notes, &w.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan waste row: %w", err)
		}
		records = append(records, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("waste row iteration failed: %w", err)
	}
	return records, nil
}

func (r *WasteRepo) ListRange(ctx context.Context, start, end time.Time) ([]models.WasteRecord, error) {
	query := `SELECT id, product_id, quantity, waste_type, recyclable, disposal_method,
		disposal_date, notes, created_at
		FROM waste_records
		WHERE disposal_date >= $1 AND disposal_date < $2
		ORDER BY disposal_date DESC`

	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list waste records in range: %w", err)
	}
	defer rows.Close()

	return scanWasteRecords(rows)
}

func (r *WasteRepo) Statistics(ctx context.Context, start, end time.Time) (*models.WasteStatistics, error) {
	query := `SELECT quantity, recyclable, waste_type, disposal_date
		FROM waste_records
		WHERE disposal_date >= $1 AND disposal_date < $2`

	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query waste statistics: %w", err)
	}
	defer rows.Close()

	stats := &models.WasteStatistics{
		WasteByType: make(map[string]int),
		WasteByDate: make(map[string]int),
		StartDate:   start.Format("2006-01-02"),
		EndDate:     end.Format("2006-01-02"),
	}

	for rows.Next() {
		var (
			quantity     int
			recyclable   bool
			wasteType    models.WasteType
			disposalDate time.Time
		)
		if err := rows.Scan(&quantity, &recyclable, &wasteType, &disposalDate); err != nil {
			return nil, fmt.Errorf("failed to scan waste statistics row: %w", err)
		}

		stats.TotalWaste += quantity
		if recyclable {
			stats.RecyclableWaste += quantity
		} else {
			stats.NonRecyclableWaste += quantity
		}
		stats.WasteByType[string(wasteType)] += quantity
		stats.WasteByDate[disposalDate.Format("2006-01-02")] += quantity
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("waste statistics iteration failed: %w", err)
	}

	if stats.TotalWaste > 0 {
		stats.RecyclablePercentage = float64(stats.RecyclableWaste) / float64(stats.TotalWaste) * 100
	}
	return stats, nil
}
