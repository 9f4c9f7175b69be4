// Package store defines the persistence interfaces for the lifecycle
// engine. The postgres subpackage provides the production implementation.
package store

import (
	"context"
	"errors"
	"time"

	"freshtrack/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// ProductFilter narrows a product listing. Zero fields are ignored.
type ProductFilter struct {
	Status             models.ProductStatus
	Category           string
	ExpiringWithinDays int
}

// ProductStore provides access to the product inventory.
type ProductStore interface {
	Create(ctx context.Context, p *models.Product) error
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	ListByStatus(ctx context.Context, statuses ...models.ProductStatus) ([]models.Product, error)
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id int64) error

	// DecrementQuantity atomically reduces stock. Returns false when the
	// product does not have qty units left.
	DecrementQuantity(ctx context.Context, id int64, qty int) (bool, error)

	// UpdateLifecycle persists a status transition and the discounted
	// price computed for it. A nil price clears the column.
	UpdateLifecycle(ctx context.Context, id int64, status models.ProductStatus, discountedPrice *float64) error

	// MarkDisposed atomically moves a product into the disposed state.
	// Returns false when the product was already disposed, so exactly one
	// caller wins per product.
	MarkDisposed(ctx context.Context, id int64) (bool, error)
}

// CustomerStore provides access to registered customers.
type CustomerStore interface {
	Create(ctx context.Context, c *models.Customer) error
	GetByID(ctx context.Context, id int64) (*models.Customer, error)
	List(ctx context.Context) ([]models.Customer, error)
	Update(ctx context.Context, c *models.Customer) error
	Delete(ctx context.Context, id int64) error
}

// PurchaseStore records purchases and derives notification audiences.
type PurchaseStore interface {
	Create(ctx context.Context, p *models.PurchaseHistory) error
	List(ctx context.Context) ([]models.PurchaseHistory, error)

	// DistinctCustomerIDs returns each customer that has ever purchased
	// the product, once.
	DistinctCustomerIDs(ctx context.Context, productID int64) ([]int64, error)
}

// NotificationStore manages the discount notification queue.
type NotificationStore interface {
	Create(ctx context.Context, n *models.DiscountNotification) error
	HasPending(ctx context.Context, customerID, productID int64) (bool, error)
	ListPending(ctx context.Context) ([]models.DiscountNotification, error)
	List(ctx context.Context) ([]models.DiscountNotification, error)
	ListByStatus(ctx context.Context, status models.NotificationStatus) ([]models.DiscountNotification, error)
	MarkStatus(ctx context.Context, id string, status models.NotificationStatus) error
}

// WasteStore is the append-only disposal ledger.
type WasteStore interface {
	Create(ctx context.Context, w *models.WasteRecord) error
	List(ctx context.Context) ([]models.WasteRecord, error)
	ListRange(ctx context.Context, start, end time.Time) ([]models.WasteRecord, error)
	Statistics(ctx context.Context, start, end time.Time) (*models.WasteStatistics, error)
}
