// internal/models/notification.go
package models

import "time"

// NotificationStatus is the delivery state of a discount notification.
// Pending entries are the only ones a dispatch pass touches; sent is
// terminal, failed is terminal unless explicitly requeued.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

func (s NotificationStatus) Valid() bool {
	switch s {
	case NotificationPending, NotificationSent, NotificationFailed:
		return true
	}
	return false
}

// DiscountNotification links a customer to a product that became
// discounted. At most one pending entry may exist per (customer, product)
// pair at any time.
type DiscountNotification struct {
	ID               string              `json:"id"`
	CustomerID       int64               `json:"customer_id"`
	ProductID        int64               `json:"product_id"`
	NotificationDate time.Time           `json:"notification_date"`
	Channel          NotificationChannel `json:"channel"`
	Status           NotificationStatus  `json:"status"`
	CreatedAt        time.Time           `json:"created_at"`
}
