// Package postgres implements the store interfaces on PostgreSQL using
// database/sql and lib/pq.
package postgres

import "database/sql"

// Stores bundles the per-entity repositories over one connection pool.
type Stores struct {
	Products      *ProductRepo
	Customers     *CustomerRepo
	Purchases     *PurchaseRepo
	Notifications *NotificationRepo
	Waste         *WasteRepo
}

func NewStores(db *sql.DB) *Stores {
	return &Stores{
		Products:      NewProductRepo(db),
		Customers:     NewCustomerRepo(db),
		Purchases:     NewPurchaseRepo(db),
		Notifications: NewNotificationRepo(db),
		Waste:         NewWasteRepo(db),
	}
}
