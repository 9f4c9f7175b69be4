// Package notify implements the discount notification queue: fan-out when
// a product becomes discounted, and batch dispatch of pending entries over
// the configured email and SMS transports.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	stderrors "freshtrack/internal/common/errors"
	"freshtrack/internal/common/logger"
	"freshtrack/internal/common/mail"
	"freshtrack/internal/common/metrics"
	"freshtrack/internal/models"
	"freshtrack/internal/store"
)

// DispatchResult summarizes one dispatch pass over the pending queue.
type DispatchResult struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Dispatcher owns the notification queue.
type Dispatcher struct {
	notifications store.NotificationStore
	customers     store.CustomerStore
	purchases     store.PurchaseStore
	products      store.ProductStore
	email         mail.EmailSender
	sms           mail.SMSSender
	logger        logger.Logger
}

func NewDispatcher(
	notifications store.NotificationStore,
	customers store.CustomerStore,
	purchases store.PurchaseStore,
	products store.ProductStore,
	email mail.EmailSender,
	sms mail.SMSSender,
	log logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		notifications: notifications,
		customers:     customers,
		purchases:     purchases,
		products:      products,
		email:         email,
		sms:           sms,
		logger:        log,
	}
}

// FanOut enqueues one pending notification per distinct past purchaser of
// the product. A customer that already has a pending entry for this
// product is skipped, so repeated discount evaluations never pile up
// duplicates. Returns the number of entries created.
func (d *Dispatcher) FanOut(ctx context.Context, product *models.Product) (int, error) {
	customerIDs, err := d.purchases.DistinctCustomerIDs(ctx, product.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve audience for product %d: %w", product.ID, err)
	}

	enqueued := 0
	for _, customerID := range customerIDs {
		pending, err := d.notifications.HasPending(ctx, customerID, product.ID)
		if err != nil {
			return enqueued, err
		}
		if pending {
			continue
		}

		customer, err := d.customers.GetByID(ctx, customerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				d.logger.Warn("Purchaser no longer exists, skipping", map[string]interface{}{
					"customerId": customerID,
					"productId":  product.ID,
				})
				continue
			}
			return enqueued, err
		}

		channel := customer.NotificationPreference
		if !channel.Valid() {
			channel = models.ChannelEmail
		}

		n := &models.DiscountNotification{
			CustomerID:       customerID,
			ProductID:        product.ID,
			NotificationDate: time.Now(),
			Channel:          channel,
			Status:           models.NotificationPending,
		}
		if err := d.notifications.Create(ctx, n); err != nil {
			return enqueued, err
		}
		enqueued++
		metrics.NotificationsEnqueued.Inc()
	}

	if enqueued > 0 {
		d.logger.Info("Discount notifications enqueued", map[string]interface{}{
			"productId": product.ID,
			"product":   product.Name,
			"enqueued":  enqueued,
		})
	}
	return enqueued, nil
}

// DispatchPending delivers every pending notification once. Each entry is
// settled to sent or failed independently; one transport failure never
// aborts the batch. Entries already sent or failed are untouched, so a
// re-run only picks up queue growth.
func (d *Dispatcher) DispatchPending(ctx context.Context) (*DispatchResult, error) {
	pending, err := d.notifications.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}

	result := &DispatchResult{Total: len(pending)}
	for _, n := range pending {
		if err := d.deliver(ctx, &n); err != nil {
			result.Failed++
			metrics.NotificationsDispatched.WithLabelValues("failed").Inc()
			d.logger.Error("Notification delivery failed", map[string]interface{}{
				"notificationId": n.ID,
				"customerId":     n.CustomerID,
				"productId":      n.ProductID,
				"error":          err.Error(),
			})
			if markErr := d.notifications.MarkStatus(ctx, n.ID, models.NotificationFailed); markErr != nil {
				d.logger.Error("Failed to mark notification failed", map[string]interface{}{
					"notificationId": n.ID,
					"error":          markErr.Error(),
				})
			}
			continue
		}

		if err := d.notifications.MarkStatus(ctx, n.ID, models.NotificationSent); err != nil {
			return result, err
		}
		result.Sent++
		metrics.NotificationsDispatched.WithLabelValues("sent").Inc()
	}

	d.logger.Info("Notification dispatch completed", map[string]interface{}{
		"total":  result.Total,
		"sent":   result.Sent,
		"failed": result.Failed,
	})
	return result, nil
}

func (d *Dispatcher) deliver(ctx context.Context, n *models.DiscountNotification) error {
	customer, err := d.customers.GetByID(ctx, n.CustomerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return stderrors.NewDataIntegrityError("customer", n.CustomerID)
		}
		return err
	}

	product, err := d.products.GetByID(ctx, n.ProductID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return stderrors.NewDataIntegrityError("product", n.ProductID)
		}
		return err
	}

	subject, body := RenderMessage(product, customer)

	switch n.Channel {
	case models.ChannelEmail:
		if err := d.email.Send(ctx, customer.Email, subject, body); err != nil {
			return stderrors.NewTransportFailureError("email", err)
		}
	case models.ChannelSMS:
		if err := d.sms.Send(ctx, customer.Phone, subject); err != nil {
			return stderrors.NewTransportFailureError("sms", err)
		}
	case models.ChannelBoth:
		if err := d.email.Send(ctx, customer.Email, subject, body); err != nil {
			return stderrors.NewTransportFailureError("email", err)
		}
		if err := d.sms.Send(ctx, customer.Phone, subject); err != nil {
			return stderrors.NewTransportFailureError("sms", err)
		}
	default:
		return stderrors.NewValidationFailedError(fmt.Sprintf("unknown notification channel %q", n.Channel))
	}
	return nil
}

// RenderMessage builds the customer-facing subject and body for a
// discount notification.
func RenderMessage(product *models.Product, customer *models.Customer) (subject, body string) {
	price := product.Price
	if product.DiscountedPrice != nil {
		price = *product.DiscountedPrice
	}

	subject = fmt.Sprintf("Discount Alert: %s now at $%.2f", product.Name, price)
	body = fmt.Sprintf(
		"Hi %s,\n\n%s is now discounted from $%.2f to $%.2f.\nIt is best before %s, so grab it while it lasts.\n\nYour store",
		customer.Name, product.Name, product.Price, price,
		product.ExpiryDate.Format("2006-01-02"),
	)
	return subject, body
}
