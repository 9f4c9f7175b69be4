// internal/models/customer.go
package models

import "time"

// NotificationChannel is a customer's preferred delivery channel.
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
	ChannelBoth  NotificationChannel = "both"
)

func (c NotificationChannel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelBoth:
		return true
	}
	return false
}

type Customer struct {
	ID                     int64               `json:"id"`
	Name                   string              `json:"name"`
	Email                  string              `json:"email"`
	Phone                  string              `json:"phone,omitempty"`
	NotificationPreference NotificationChannel `json:"notification_preference"`
	CreatedAt              time.Time           `json:"created_at"`
	UpdatedAt              time.Time           `json:"updated_at"`
}

// PurchaseHistory is an append-only log; it exists solely to derive the
// notification audience for a product.
type PurchaseHistory struct {
	ID           int64     `json:"id"`
	CustomerID   int64     `json:"customer_id"`
	ProductID    int64     `json:"product_id"`
	Quantity     int       `json:"quantity"`
	PurchaseDate time.Time `json:"purchase_date"`
	CreatedAt    time.Time `json:"created_at"`
}
