package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freshtrack/internal/common/logger"
	"freshtrack/internal/models"
	"freshtrack/internal/store"
)

// ==========================
// In-memory fakes
// ==========================

type fakeNotificationStore struct {
	entries []*models.DiscountNotification
	nextID  int
}

func (f *fakeNotificationStore) Create(ctx context.Context, n *models.DiscountNotification) error {
	f.nextID++
	if n.ID == "" {
		n.ID = fmt.Sprintf("n-%d", f.nextID)
	}
	if n.Status == "" {
		n.Status = models.NotificationPending
	}
	clone := *n
	f.entries = append(f.entries, &clone)
	return nil
}

func (f *fakeNotificationStore) HasPending(ctx context.Context, customerID, productID int64) (bool, error) {
	for _, n := range f.entries {
		if n.CustomerID == customerID && n.ProductID == productID && n.Status == models.NotificationPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeNotificationStore) ListPending(ctx context.Context) ([]models.DiscountNotification, error) {
	var out []models.DiscountNotification
	for _, n := range f.entries {
		if n.Status == models.NotificationPending {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (f *fakeNotificationStore) List(ctx context.Context) ([]models.DiscountNotification, error) {
	var out []models.DiscountNotification
	for _, n := range f.entries {
		out = append(out, *n)
	}
	return out, nil
}

func (f *fakeNotificationStore) MarkStatus(ctx context.Context, id string, status models.NotificationStatus) error {
	for _, n := range f.entries {
		if n.ID == id {
			n.Status = status
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeNotificationStore) ListByStatus(ctx context.Context, status models.NotificationStatus) ([]models.DiscountNotification, error) {
	var out []models.DiscountNotification
	for _, n := range f.entries {
		if n.Status == status {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (f *fakeNotificationStore) countByStatus(status models.NotificationStatus) int {
	count := 0
	for _, n := range f.entries {
		if n.Status == status {
			count++
		}
	}
	return count
}

type fakeCustomerStore struct {
	customers map[int64]*models.Customer
}

func (f *fakeCustomerStore) Create(ctx context.Context, c *models.Customer) error {
	f.customers[c.ID] = c
	return nil
}

func (f *fakeCustomerStore) GetByID(ctx context.Context, id int64) (*models.Customer, error) {
	if c, ok := f.customers[id]; ok {
		return c, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeCustomerStore) List(ctx context.Context) ([]models.Customer, error) {
	var out []models.Customer
	for _, c := range f.customers {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeCustomerStore) Update(ctx context.Context, c *models.Customer) error { return nil }

func (f *fakeCustomerStore) Delete(ctx context.Context, id int64) error { return nil }

type fakePurchaseStore struct {
	purchasers map[int64][]int64 // productID -> customer IDs
}

func (f *fakePurchaseStore) Create(ctx context.Context, p *models.PurchaseHistory) error {
	f.purchasers[p.ProductID] = append(f.purchasers[p.ProductID], p.CustomerID)
	return nil
}

func (f *fakePurchaseStore) List(ctx context.Context) ([]models.PurchaseHistory, error) {
	return nil, nil
}

func (f *fakePurchaseStore) DistinctCustomerIDs(ctx context.Context, productID int64) ([]int64, error) {
	seen := map[int64]bool{}
	var out []int64
	for _, id := range f.purchasers[productID] {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

type fakeProductStore struct {
	products map[int64]*models.Product
}

func (f *fakeProductStore) Create(ctx context.Context, p *models.Product) error { return nil }

func (f *fakeProductStore) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	if p, ok := f.products[id]; ok {
		return p, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeProductStore) List(ctx context.Context, filter store.ProductFilter) ([]models.Product, error) {
	return nil, nil
}

func (f *fakeProductStore) ListByStatus(ctx context.Context, statuses ...models.ProductStatus) ([]models.Product, error) {
	return nil, nil
}

func (f *fakeProductStore) Update(ctx context.Context, p *models.Product) error { return nil }

func (f *fakeProductStore) Delete(ctx context.Context, id int64) error { return nil }

func (f *fakeProductStore) DecrementQuantity(ctx context.Context, id int64, qty int) (bool, error) {
	return true, nil
}

func (f *fakeProductStore) UpdateLifecycle(ctx context.Context, id int64, status models.ProductStatus, discountedPrice *float64) error {
	return nil
}

func (f *fakeProductStore) MarkDisposed(ctx context.Context, id int64) (bool, error) {
	return true, nil
}

type fakeEmailSender struct {
	sent    []string
	failFor map[string]bool
}

func (f *fakeEmailSender) Send(ctx context.Context, to, subject, body string) error {
	if f.failFor[to] {
		return errors.New("smtp connection refused")
	}
	f.sent = append(f.sent, to)
	return nil
}

type fakeSMSSender struct {
	sent []string
}

func (f *fakeSMSSender) Send(ctx context.Context, phone, message string) error {
	f.sent = append(f.sent, phone)
	return nil
}

// ==========================
// Fixture
// ==========================

type fixture struct {
	dispatcher    *Dispatcher
	notifications *fakeNotificationStore
	customers     *fakeCustomerStore
	purchases     *fakePurchaseStore
	products      *fakeProductStore
	email         *fakeEmailSender
	sms           *fakeSMSSender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	discounted := 1.02
	f := &fixture{
		notifications: &fakeNotificationStore{},
		customers: &fakeCustomerStore{customers: map[int64]*models.Customer{
			1: {ID: 1, Name: "Ana", Email: "ana@example.com", NotificationPreference: models.ChannelEmail},
			2: {ID: 2, Name: "Ben", Email: "ben@example.com", Phone: "+15550002", NotificationPreference: models.ChannelSMS},
			3: {ID: 3, Name: "Cora", Email: "cora@example.com", Phone: "+15550003", NotificationPreference: models.ChannelBoth},
		}},
		purchases: &fakePurchaseStore{purchasers: map[int64][]int64{}},
		products: &fakeProductStore{products: map[int64]*models.Product{
			42: {
				ID: 42, Name: "Whole Milk", Category: "Dairy", Price: 2.49,
				DiscountedPrice: &discounted,
				ExpiryDate:      time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC),
				Status:          models.StatusDiscounted,
			},
		}},
		email: &fakeEmailSender{failFor: map[string]bool{}},
		sms:   &fakeSMSSender{},
	}

	f.dispatcher = NewDispatcher(
		f.notifications, f.customers, f.purchases, f.products,
		f.email, f.sms, logger.NewTestLogger(),
	)
	return f
}

// ==========================
// Tests
// ==========================

func TestFanOutEnqueuesDistinctPurchasers(t *testing.T) {
	f := newFixture(t)
	// Customer 1 bought the product twice, still only one notification.
	f.purchases.purchasers[42] = []int64{1, 1, 2}

	enqueued, err := f.dispatcher.FanOut(context.Background(), f.products.products[42])
	require.NoError(t, err)
	assert.Equal(t, 2, enqueued)
	assert.Equal(t, 2, f.notifications.countByStatus(models.NotificationPending))
}

func TestFanOutSkipsExistingPending(t *testing.T) {
	f := newFixture(t)
	f.purchases.purchasers[42] = []int64{1, 2}

	_, err := f.dispatcher.FanOut(context.Background(), f.products.products[42])
	require.NoError(t, err)

	// Second evaluation of the same discounted product must not duplicate.
	enqueued, err := f.dispatcher.FanOut(context.Background(), f.products.products[42])
	require.NoError(t, err)
	assert.Equal(t, 0, enqueued)
	assert.Equal(t, 2, f.notifications.countByStatus(models.NotificationPending))
}

func TestFanOutUsesCustomerChannel(t *testing.T) {
	f := newFixture(t)
	f.purchases.purchasers[42] = []int64{2}

	_, err := f.dispatcher.FanOut(context.Background(), f.products.products[42])
	require.NoError(t, err)
	require.Len(t, f.notifications.entries, 1)
	assert.Equal(t, models.ChannelSMS, f.notifications.entries[0].Channel)
}

func TestDispatchPendingSettlesEveryEntry(t *testing.T) {
	f := newFixture(t)
	f.purchases.purchasers[42] = []int64{1, 2, 3}
	_, err := f.dispatcher.FanOut(context.Background(), f.products.products[42])
	require.NoError(t, err)

	result, err := f.dispatcher.DispatchPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Sent)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 0, f.notifications.countByStatus(models.NotificationPending))
	// Ana by email, Ben by SMS, Cora by both.
	assert.Equal(t, []string{"ana@example.com", "cora@example.com"}, f.email.sent)
	assert.Equal(t, []string{"+15550002", "+15550003"}, f.sms.sent)
}

func TestDispatchPendingIsolatesTransportFailures(t *testing.T) {
	f := newFixture(t)
	f.purchases.purchasers[42] = []int64{1, 2, 3}
	_, err := f.dispatcher.FanOut(context.Background(), f.products.products[42])
	require.NoError(t, err)

	f.email.failFor["ana@example.com"] = true

	result, err := f.dispatcher.DispatchPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, f.notifications.countByStatus(models.NotificationFailed))
	assert.Equal(t, 2, f.notifications.countByStatus(models.NotificationSent))
}

func TestDispatchPendingLeavesSettledEntriesAlone(t *testing.T) {
	f := newFixture(t)
	f.purchases.purchasers[42] = []int64{1, 2}
	_, err := f.dispatcher.FanOut(context.Background(), f.products.products[42])
	require.NoError(t, err)

	_, err = f.dispatcher.DispatchPending(context.Background())
	require.NoError(t, err)

	// Nothing pending, so a re-run delivers nothing new.
	result, err := f.dispatcher.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)
	assert.Len(t, f.email.sent, 1)
	assert.Len(t, f.sms.sent, 1)
}

func TestDispatchPendingMissingCustomerFails(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.notifications.Create(context.Background(), &models.DiscountNotification{
		CustomerID: 999,
		ProductID:  42,
		Channel:    models.ChannelEmail,
	}))

	result, err := f.dispatcher.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, 1, f.notifications.countByStatus(models.NotificationFailed))
}

func TestRenderMessage(t *testing.T) {
	discounted := 1.02
	product := &models.Product{
		Name:            "Whole Milk",
		Price:           2.49,
		DiscountedPrice: &discounted,
		ExpiryDate:      time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC),
	}
	customer := &models.Customer{Name: "Ana"}

	subject, body := RenderMessage(product, customer)
	assert.Equal(t, "Discount Alert: Whole Milk now at $1.02", subject)
	assert.Contains(t, body, "Hi Ana")
	assert.Contains(t, body, "$2.49")
	assert.Contains(t, body, "2026-09-03")
}
