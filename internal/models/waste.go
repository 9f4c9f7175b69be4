// internal/models/waste.go
package models

import "time"

// Disposal methods derived from the category's recyclable flag.
const (
	DisposalRecycle  = "Recycle"
	DisposalLandfill = "Landfill"
)

// WasteRecord is an append-only ledger entry created exactly once when a
// product transitions into the disposed state. Never mutated afterward.
type WasteRecord struct {
	ID             string    `json:"id"`
	ProductID      int64     `json:"product_id"`
	Quantity       int       `json:"quantity"`
	WasteType      WasteType `json:"waste_type"`
	Recyclable     bool      `json:"recyclable"`
	DisposalMethod string    `json:"disposal_method"`
	DisposalDate   time.Time `json:"disposal_date"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// WasteStatistics aggregates the ledger over a date range.
type WasteStatistics struct {
	TotalWaste           int            `json:"total_waste"`
	RecyclableWaste      int            `json:"recyclable_waste"`
	NonRecyclableWaste   int            `json:"non_recyclable_waste"`
	RecyclablePercentage float64        `json:"recyclable_percentage"`
	WasteByType          map[string]int `json:"waste_by_type"`
	WasteByDate          map[string]int `json:"waste_by_date"`
	StartDate            string         `json:"start_date"`
	EndDate              string         `json:"end_date"`
}
