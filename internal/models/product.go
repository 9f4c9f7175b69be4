// internal/models/product.go
package models

import "time"

// ProductStatus is the lifecycle state of a product. Transitions only move
// forward: active -> discounted -> expired -> disposed.
type ProductStatus string

const (
	StatusActive     ProductStatus = "active"
	StatusDiscounted ProductStatus = "discounted"
	StatusExpired    ProductStatus = "expired"
	StatusDisposed   ProductStatus = "disposed"
)

var statusRank = map[ProductStatus]int{
	StatusActive:     0,
	StatusDiscounted: 1,
	StatusExpired:    2,
	StatusDisposed:   3,
}

// Valid reports whether s is a known lifecycle status.
func (s ProductStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Staying in place counts as allowed (re-evaluation is a no-op), backward
// moves are rejected.
func (s ProductStatus) CanTransitionTo(next ProductStatus) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to >= from
}

// Terminal reports whether no further transition is possible.
func (s ProductStatus) Terminal() bool {
	return s == StatusDisposed
}

// Product is a perishable inventory item.
type Product struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	Barcode         string         `json:"barcode"`
	Category        string         `json:"category"`
	ExpiryDate      time.Time      `json:"expiry_date"`
	ManufactureDate time.Time      `json:"manufacture_date"`
	Quantity        int            `json:"quantity"`
	Unit            string         `json:"unit"`
	Price           float64        `json:"price"`
	DiscountedPrice *float64       `json:"discounted_price,omitempty"`
	Location        string         `json:"location"`
	Status          ProductStatus  `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// DaysUntilExpiry returns the whole calendar days between today and the
// expiry date. Negative when the product is past expiry. Time-of-day
// components on either side are ignored.
func (p *Product) DaysUntilExpiry(today time.Time) int {
	expiry := dateOnly(p.ExpiryDate)
	now := dateOnly(today)
	return int(expiry.Sub(now).Hours() / 24)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
