// internal/models/category.go
package models

import "time"

// WasteType classifies what a category's stock becomes once disposed.
type WasteType string

const (
	WasteOrganic       WasteType = "Organic"
	WasteRecyclable    WasteType = "Recyclable"
	WasteNonRecyclable WasteType = "Non-recyclable"
	WasteMixed         WasteType = "Mixed"
)

func (w WasteType) Valid() bool {
	switch w {
	case WasteOrganic, WasteRecyclable, WasteNonRecyclable, WasteMixed:
		return true
	}
	return false
}

// DefaultDiscountThreshold is applied when a product's category has no
// policy row.
const DefaultDiscountThreshold = 7

// CategoryPolicy holds the per-category waste classification and the
// days-before-expiry threshold at which discounting begins. The engine
// only ever reads these.
type CategoryPolicy struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	WasteType         WasteType `json:"waste_type"`
	Recyclable        bool      `json:"recyclable"`
	DiscountThreshold int       `json:"discount_threshold"`
	CreatedAt         time.Time `json:"created_at"`
}
