package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freshtrack/internal/models"
)

var testToday = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func productExpiringIn(days int, status models.ProductStatus, price float64) *models.Product {
	return &models.Product{
		ID:         1,
		Name:       "Whole Milk",
		Category:   "Dairy",
		ExpiryDate: testToday.AddDate(0, 0, days),
		Price:      price,
		Status:     status,
	}
}

func dairyPolicy(threshold int) *models.CategoryPolicy {
	return &models.CategoryPolicy{
		Name:              "Dairy",
		WasteType:         models.WasteOrganic,
		Recyclable:        false,
		DiscountThreshold: threshold,
	}
}

func TestEvaluate_Expiry(t *testing.T) {
	tests := []struct {
		name     string
		daysLeft int
		status   models.ProductStatus
		want     models.ProductStatus
	}{
		{"active past expiry", -3, models.StatusActive, models.StatusExpired},
		{"active expires today", 0, models.StatusActive, models.StatusExpired},
		{"discounted past expiry", -1, models.StatusDiscounted, models.StatusExpired},
		{"already expired is untouched", -5, models.StatusExpired, models.StatusExpired},
		{"disposed is untouched", -10, models.StatusDisposed, models.StatusDisposed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := productExpiringIn(tt.daysLeft, tt.status, 4.99)
			res := Evaluate(p, dairyPolicy(7), testToday)
			assert.Equal(t, tt.want, res.Status)
			assert.False(t, res.Notify)
		})
	}
}

func TestEvaluate_DiscountWindow(t *testing.T) {
	p := productExpiringIn(2, models.StatusActive, 2.49)
	res := Evaluate(p, dairyPolicy(7), testToday)

	assert.Equal(t, models.StatusDiscounted, res.Status)
	assert.True(t, res.Notify)
	require.NotNil(t, res.DiscountedPrice)
	// days_left 2, threshold 7: pct = round(30 + 40*(1 - 2/7)) = 59
	assert.InDelta(t, 1.02, *res.DiscountedPrice, 1e-9)
}

func TestEvaluate_OutsideWindowNoChange(t *testing.T) {
	p := productExpiringIn(20, models.StatusActive, 2.49)
	res := Evaluate(p, dairyPolicy(7), testToday)

	assert.Equal(t, models.StatusActive, res.Status)
	assert.Nil(t, res.DiscountedPrice)
	assert.False(t, res.Notify)
	assert.False(t, res.Changed(p))
}

func TestEvaluate_AtThresholdBoundary(t *testing.T) {
	p := productExpiringIn(7, models.StatusActive, 10.00)
	res := Evaluate(p, dairyPolicy(7), testToday)

	assert.Equal(t, models.StatusDiscounted, res.Status)
	require.NotNil(t, res.DiscountedPrice)
	// fraction 1.0 means minimum discount of 30%
	assert.InDelta(t, 7.00, *res.DiscountedPrice, 1e-9)
}

func TestEvaluate_RediscountIsIdempotent(t *testing.T) {
	p := productExpiringIn(2, models.StatusActive, 2.49)
	first := Evaluate(p, dairyPolicy(7), testToday)
	require.NotNil(t, first.DiscountedPrice)

	p.Status = first.Status
	p.DiscountedPrice = first.DiscountedPrice

	second := Evaluate(p, dairyPolicy(7), testToday)
	assert.Equal(t, models.StatusDiscounted, second.Status)
	require.NotNil(t, second.DiscountedPrice)
	assert.Equal(t, *first.DiscountedPrice, *second.DiscountedPrice)
	// no notification on a re-evaluation, and nothing changed
	assert.False(t, second.Notify)
	assert.False(t, second.Changed(p))
}

func TestEvaluate_DiscountDeepensAsExpiryApproaches(t *testing.T) {
	threshold := 7
	prev := MaxDiscountPct + 1
	for daysLeft := 1; daysLeft <= threshold; daysLeft++ {
		pct := DiscountPercent(daysLeft, threshold)
		assert.GreaterOrEqual(t, pct, BaseDiscountPct)
		assert.LessOrEqual(t, pct, MaxDiscountPct)
		assert.LessOrEqual(t, pct, prev, "discount must not increase with more days left")
		prev = pct
	}
}

func TestEvaluate_MissingPolicyUsesDefaultThreshold(t *testing.T) {
	inside := productExpiringIn(models.DefaultDiscountThreshold, models.StatusActive, 5.00)
	res := Evaluate(inside, nil, testToday)
	assert.Equal(t, models.StatusDiscounted, res.Status)

	outside := productExpiringIn(models.DefaultDiscountThreshold+1, models.StatusActive, 5.00)
	res = Evaluate(outside, nil, testToday)
	assert.Equal(t, models.StatusActive, res.Status)
}
