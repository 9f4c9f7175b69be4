package engine

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freshtrack/internal/common/logger"
	"freshtrack/internal/models"
	"freshtrack/internal/notify"
	"freshtrack/internal/store"
)

var testToday = time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)

func daysFromToday(days int) time.Time {
	return time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
}

// ==========================
// In-memory fakes
// ==========================

type fakeProducts struct {
	mu       sync.Mutex
	byID     map[int64]*models.Product
	listErr  error
	panicVal interface{}
}

func newFakeProducts(products ...*models.Product) *fakeProducts {
	f := &fakeProducts{byID: map[int64]*models.Product{}}
	for _, p := range products {
		f.byID[p.ID] = p
	}
	return f
}

func (f *fakeProducts) Create(ctx context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[p.ID] = p
	return nil
}

func (f *fakeProducts) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.byID[id]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeProducts) List(ctx context.Context, filter store.ProductFilter) ([]models.Product, error) {
	return f.ListByStatus(ctx,
		models.StatusActive, models.StatusDiscounted, models.StatusExpired, models.StatusDisposed)
}

func (f *fakeProducts) Update(ctx context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[p.ID]; !ok {
		return store.ErrNotFound
	}
	clone := *p
	f.byID[p.ID] = &clone
	return nil
}

func (f *fakeProducts) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeProducts) DecrementQuantity(ctx context.Context, id int64, qty int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if p.Quantity < qty {
		return false, nil
	}
	p.Quantity -= qty
	return true, nil
}

func (f *fakeProducts) ListByStatus(ctx context.Context, statuses ...models.ProductStatus) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicVal != nil {
		v := f.panicVal
		f.panicVal = nil
		panic(v)
	}
	if f.listErr != nil {
		return nil, f.listErr
	}

	want := map[models.ProductStatus]bool{}
	for _, s := range statuses {
		want[s] = true
	}
	var out []models.Product
	for _, p := range f.byID {
		if want[p.Status] {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeProducts) UpdateLifecycle(ctx context.Context, id int64, status models.ProductStatus, discountedPrice *float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Status = status
	p.DiscountedPrice = discountedPrice
	return nil
}

func (f *fakeProducts) MarkDisposed(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if p.Status == models.StatusDisposed {
		return false, nil
	}
	p.Status = models.StatusDisposed
	p.Quantity = 0
	return true, nil
}

type fakeWaste struct {
	mu      sync.Mutex
	records []*models.WasteRecord
}

func (f *fakeWaste) Create(ctx context.Context, w *models.WasteRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *w
	f.records = append(f.records, &clone)
	return nil
}

func (f *fakeWaste) List(ctx context.Context) ([]models.WasteRecord, error) { return nil, nil }

func (f *fakeWaste) ListRange(ctx context.Context, start, end time.Time) ([]models.WasteRecord, error) {
	return nil, nil
}

func (f *fakeWaste) Statistics(ctx context.Context, start, end time.Time) (*models.WasteStatistics, error) {
	return &models.WasteStatistics{}, nil
}

type fakePolicies struct {
	byName map[string]*models.CategoryPolicy
}

func (f *fakePolicies) GetByName(ctx context.Context, name string) (*models.CategoryPolicy, error) {
	if p, ok := f.byName[name]; ok {
		return p, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakePolicies) List(ctx context.Context) ([]models.CategoryPolicy, error) { return nil, nil }

func (f *fakePolicies) Upsert(ctx context.Context, p *models.CategoryPolicy) error {
	f.byName[p.Name] = p
	return nil
}

type fakeCustomers struct {
	byID map[int64]*models.Customer
}

func (f *fakeCustomers) Create(ctx context.Context, c *models.Customer) error { return nil }

func (f *fakeCustomers) GetByID(ctx context.Context, id int64) (*models.Customer, error) {
	if c, ok := f.byID[id]; ok {
		return c, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeCustomers) List(ctx context.Context) ([]models.Customer, error) { return nil, nil }

func (f *fakeCustomers) Update(ctx context.Context, c *models.Customer) error { return nil }

func (f *fakeCustomers) Delete(ctx context.Context, id int64) error { return nil }

type fakePurchases struct {
	purchasers map[int64][]int64
}

func (f *fakePurchases) Create(ctx context.Context, p *models.PurchaseHistory) error { return nil }

func (f *fakePurchases) List(ctx context.Context) ([]models.PurchaseHistory, error) { return nil, nil }

func (f *fakePurchases) DistinctCustomerIDs(ctx context.Context, productID int64) ([]int64, error) {
	return f.purchasers[productID], nil
}

type fakeNotifications struct {
	mu      sync.Mutex
	entries []*models.DiscountNotification
}

func (f *fakeNotifications) Create(ctx context.Context, n *models.DiscountNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *n
	if clone.ID == "" {
		clone.ID = time.Now().Format(time.RFC3339Nano)
	}
	f.entries = append(f.entries, &clone)
	return nil
}

func (f *fakeNotifications) HasPending(ctx context.Context, customerID, productID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.entries {
		if n.CustomerID == customerID && n.ProductID == productID && n.Status == models.NotificationPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeNotifications) ListPending(ctx context.Context) ([]models.DiscountNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.DiscountNotification
	for _, n := range f.entries {
		if n.Status == models.NotificationPending {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (f *fakeNotifications) List(ctx context.Context) ([]models.DiscountNotification, error) {
	return f.ListPending(ctx)
}

func (f *fakeNotifications) ListByStatus(ctx context.Context, status models.NotificationStatus) ([]models.DiscountNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.DiscountNotification
	for _, n := range f.entries {
		if n.Status == status {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (f *fakeNotifications) MarkStatus(ctx context.Context, id string, status models.NotificationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.entries {
		if n.ID == id {
			n.Status = status
			return nil
		}
	}
	return store.ErrNotFound
}

type nullEmail struct{}

func (nullEmail) Send(ctx context.Context, to, subject, body string) error { return nil }

type nullSMS struct{}

func (nullSMS) Send(ctx context.Context, phone, message string) error { return nil }

// ==========================
// Fixture
// ==========================

type engineFixture struct {
	service       *Service
	products      *fakeProducts
	waste         *fakeWaste
	policies      *fakePolicies
	notifications *fakeNotifications
	purchases     *fakePurchases
}

func newEngineFixture(t *testing.T, products ...*models.Product) *engineFixture {
	t.Helper()

	f := &engineFixture{
		products: newFakeProducts(products...),
		waste:    &fakeWaste{},
		policies: &fakePolicies{byName: map[string]*models.CategoryPolicy{
			"Dairy": {ID: 1, Name: "Dairy", WasteType: models.WasteOrganic,
				Recyclable: false, DiscountThreshold: 7},
			"Beverages": {ID: 2, Name: "Beverages", WasteType: models.WasteRecyclable,
				Recyclable: true, DiscountThreshold: 14},
		}},
		notifications: &fakeNotifications{},
		purchases:     &fakePurchases{purchasers: map[int64][]int64{}},
	}

	customers := &fakeCustomers{byID: map[int64]*models.Customer{
		1: {ID: 1, Name: "Ana", Email: "ana@example.com", NotificationPreference: models.ChannelEmail},
	}}

	dispatcher := notify.NewDispatcher(
		f.notifications, customers, f.purchases, f.products,
		nullEmail{}, nullSMS{}, logger.NewTestLogger(),
	)

	f.service = NewService(f.products, f.waste, f.policies, dispatcher, logger.NewTestLogger()).
		WithClock(func() time.Time { return testToday })
	return f
}

// ==========================
// Tests
// ==========================

func TestEvaluateAndApplyDiscountsAndNotifies(t *testing.T) {
	f := newEngineFixture(t, &models.Product{
		ID: 42, Name: "Whole Milk", Category: "Dairy", Price: 2.49,
		ExpiryDate: daysFromToday(2), Status: models.StatusActive, Quantity: 6,
	})
	f.purchases.purchasers[42] = []int64{1}

	p, err := f.service.EvaluateAndApply(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, models.StatusDiscounted, p.Status)
	require.NotNil(t, p.DiscountedPrice)
	assert.InDelta(t, 1.02, *p.DiscountedPrice, 0.001)
	require.Len(t, f.notifications.entries, 1)
	assert.Equal(t, int64(1), f.notifications.entries[0].CustomerID)
}

func TestEvaluateAndApplyOutsideWindowIsNoOp(t *testing.T) {
	f := newEngineFixture(t, &models.Product{
		ID: 42, Name: "Whole Milk", Category: "Dairy", Price: 2.49,
		ExpiryDate: daysFromToday(30), Status: models.StatusActive,
	})

	p, err := f.service.EvaluateAndApply(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, p.Status)
	assert.Nil(t, p.DiscountedPrice)
	assert.Empty(t, f.notifications.entries)
}

func TestEvaluateAndApplyUnknownCategoryUsesDefaultThreshold(t *testing.T) {
	f := newEngineFixture(t, &models.Product{
		ID: 9, Name: "Mystery Jar", Category: "Exotic", Price: 10.00,
		ExpiryDate: daysFromToday(7), Status: models.StatusActive,
	})

	p, err := f.service.EvaluateAndApply(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDiscounted, p.Status)
	require.NotNil(t, p.DiscountedPrice)
	assert.InDelta(t, 7.00, *p.DiscountedPrice, 0.001)
}

func TestSweepAllExpiring(t *testing.T) {
	discounted := 0.99
	f := newEngineFixture(t,
		&models.Product{ID: 1, Name: "Milk", Category: "Dairy", Price: 2.49,
			ExpiryDate: daysFromToday(2), Status: models.StatusActive},
		&models.Product{ID: 2, Name: "Yogurt", Category: "Dairy", Price: 1.99,
			ExpiryDate: daysFromToday(0), Status: models.StatusActive},
		&models.Product{ID: 3, Name: "Juice", Category: "Beverages", Price: 3.50,
			ExpiryDate: daysFromToday(-1), Status: models.StatusDiscounted, DiscountedPrice: &discounted},
		&models.Product{ID: 4, Name: "Cheese", Category: "Dairy", Price: 5.99,
			ExpiryDate: daysFromToday(60), Status: models.StatusActive},
	)
	f.purchases.purchasers[1] = []int64{1}

	summary, err := f.service.SweepAllExpiring(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Scanned)
	assert.Equal(t, 1, summary.Discounted)
	assert.Equal(t, 2, summary.Expired)
	assert.Equal(t, 1, summary.Enqueued)
	assert.Equal(t, 0, summary.Errors)

	require.Len(t, summary.Transitions, 3)
	assert.Contains(t, summary.Transitions, StatusTransition{
		ProductID: 1, Product: "Milk",
		From: models.StatusActive, To: models.StatusDiscounted,
	})

	milk, _ := f.products.GetByID(context.Background(), 1)
	assert.Equal(t, models.StatusDiscounted, milk.Status)
	juice, _ := f.products.GetByID(context.Background(), 3)
	assert.Equal(t, models.StatusExpired, juice.Status)
	cheese, _ := f.products.GetByID(context.Background(), 4)
	assert.Equal(t, models.StatusActive, cheese.Status)
}

func TestSweepReDiscountDoesNotReNotify(t *testing.T) {
	price := 1.02
	f := newEngineFixture(t, &models.Product{
		ID: 1, Name: "Milk", Category: "Dairy", Price: 2.49,
		ExpiryDate: daysFromToday(1), Status: models.StatusDiscounted, DiscountedPrice: &price,
	})
	f.purchases.purchasers[1] = []int64{1}

	summary, err := f.service.SweepAllExpiring(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Enqueued)
	assert.Empty(t, f.notifications.entries)

	// Price was recomputed for the closer expiry date.
	milk, _ := f.products.GetByID(context.Background(), 1)
	require.NotNil(t, milk.DiscountedPrice)
	assert.InDelta(t, 0.90, *milk.DiscountedPrice, 0.001)
}

func TestDisposeAllExpired(t *testing.T) {
	f := newEngineFixture(t,
		&models.Product{ID: 1, Name: "Old Milk", Category: "Dairy", Quantity: 6,
			ExpiryDate: daysFromToday(-2), Status: models.StatusExpired},
		&models.Product{ID: 2, Name: "Old Juice", Category: "Beverages", Quantity: 3,
			ExpiryDate: daysFromToday(-1), Status: models.StatusExpired},
		// Expired today: stays until tomorrow's sweep.
		&models.Product{ID: 3, Name: "Today Yogurt", Category: "Dairy", Quantity: 1,
			ExpiryDate: daysFromToday(0), Status: models.StatusExpired},
	)

	summary, err := f.service.DisposeAllExpired(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Scanned)
	assert.Equal(t, 2, summary.Disposed)
	assert.Empty(t, summary.Unresolved)

	require.Len(t, f.waste.records, 2)
	byProduct := map[int64]*models.WasteRecord{}
	for _, r := range f.waste.records {
		byProduct[r.ProductID] = r
	}
	assert.Equal(t, models.DisposalLandfill, byProduct[1].DisposalMethod)
	assert.Equal(t, models.WasteOrganic, byProduct[1].WasteType)
	assert.Equal(t, 6, byProduct[1].Quantity)
	assert.Equal(t, models.DisposalRecycle, byProduct[2].DisposalMethod)
	assert.True(t, byProduct[2].Recyclable)

	require.Len(t, summary.Disposals, 2)
	for _, d := range summary.Disposals {
		assert.Equal(t, models.StatusDisposed, d.Product.Status)
		assert.Equal(t, 0, d.Product.Quantity)
		assert.Equal(t, d.Product.ID, d.Record.ProductID)
	}

	// Disposed stock is zeroed; the waste record keeps the disposed amount.
	milk, _ := f.products.GetByID(context.Background(), 1)
	assert.Equal(t, models.StatusDisposed, milk.Status)
	assert.Equal(t, 0, milk.Quantity)

	yogurt, _ := f.products.GetByID(context.Background(), 3)
	assert.Equal(t, models.StatusExpired, yogurt.Status)
	assert.Equal(t, 1, yogurt.Quantity)
}

func TestDisposeAllExpiredExactlyOnce(t *testing.T) {
	f := newEngineFixture(t, &models.Product{
		ID: 1, Name: "Old Milk", Category: "Dairy", Quantity: 6,
		ExpiryDate: daysFromToday(-2), Status: models.StatusExpired,
	})

	_, err := f.service.DisposeAllExpired(context.Background())
	require.NoError(t, err)

	// A second sweep finds nothing expired and writes nothing.
	summary, err := f.service.DisposeAllExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Disposed)
	assert.Len(t, f.waste.records, 1)
}

func TestDisposeAllExpiredUnresolvedPolicy(t *testing.T) {
	f := newEngineFixture(t, &models.Product{
		ID: 1, Name: "Mystery Jar", Category: "Exotic", Quantity: 2,
		ExpiryDate: daysFromToday(-3), Status: models.StatusExpired,
	})

	summary, err := f.service.DisposeAllExpired(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Disposed)
	assert.Equal(t, []int64{1}, summary.Unresolved)
	assert.Empty(t, f.waste.records)

	// The product was not silently disposed.
	jar, _ := f.products.GetByID(context.Background(), 1)
	assert.Equal(t, models.StatusExpired, jar.Status)
}

func TestOrderForDisposalPriority(t *testing.T) {
	f := newEngineFixture(t,
		&models.Product{ID: 1, Name: "Milk", Category: "Dairy",
			ExpiryDate: daysFromToday(10), Status: models.StatusActive},
		&models.Product{ID: 2, Name: "Yogurt", Category: "Dairy",
			ExpiryDate: daysFromToday(3), Status: models.StatusDiscounted},
		&models.Product{ID: 3, Name: "Old Cheese", Category: "Dairy",
			ExpiryDate: daysFromToday(-1), Status: models.StatusExpired},
	)

	grouped, err := f.service.OrderForDisposalPriority(context.Background())
	require.NoError(t, err)

	require.Len(t, grouped["Dairy"], 2)
	assert.Equal(t, int64(2), grouped["Dairy"][0].ID)
	assert.Equal(t, int64(1), grouped["Dairy"][1].ID)
}

func TestRunCycleCollectsStageFailures(t *testing.T) {
	f := newEngineFixture(t)
	f.products.listErr = assert.AnError

	err := f.service.RunCycle(context.Background())
	require.Error(t, err)
}

func TestRunCycleFullPass(t *testing.T) {
	f := newEngineFixture(t,
		&models.Product{ID: 1, Name: "Milk", Category: "Dairy", Price: 2.49, Quantity: 6,
			ExpiryDate: daysFromToday(2), Status: models.StatusActive},
		&models.Product{ID: 2, Name: "Old Juice", Category: "Beverages", Quantity: 3,
			ExpiryDate: daysFromToday(-1), Status: models.StatusExpired},
	)
	f.purchases.purchasers[1] = []int64{1}

	require.NoError(t, f.service.RunCycle(context.Background()))

	// Discount applied, notification delivered, expired stock disposed.
	milk, _ := f.products.GetByID(context.Background(), 1)
	assert.Equal(t, models.StatusDiscounted, milk.Status)
	juice, _ := f.products.GetByID(context.Background(), 2)
	assert.Equal(t, models.StatusDisposed, juice.Status)
	assert.Len(t, f.waste.records, 1)

	pending, _ := f.notifications.ListPending(context.Background())
	assert.Empty(t, pending)
	require.Len(t, f.notifications.entries, 1)
	assert.Equal(t, models.NotificationSent, f.notifications.entries[0].Status)
}
