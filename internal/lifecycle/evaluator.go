// internal/lifecycle/evaluator.go

// Package lifecycle holds the pure expiry-driven state machine: status
// derivation, progressive discount pricing and FEFO ordering. No I/O.
package lifecycle

import (
	"math"
	"time"

	"freshtrack/internal/models"
)

// Discount percentage bounds. At the threshold day the discount starts at
// the base and climbs linearly toward the max as expiry approaches.
const (
	BaseDiscountPct = 30.0
	MaxDiscountPct  = 70.0
)

// Result is the outcome of evaluating one product against its category
// policy at a given date.
type Result struct {
	Status          models.ProductStatus
	DiscountedPrice *float64
	// Notify is set on the active -> discounted transition only; the caller
	// is responsible for fanning out notifications to past purchasers.
	Notify bool
}

// Changed reports whether applying the result would mutate the product.
func (r Result) Changed(p *models.Product) bool {
	if r.Status != p.Status {
		return true
	}
	if r.DiscountedPrice == nil {
		return p.DiscountedPrice != nil
	}
	return p.DiscountedPrice == nil || *p.DiscountedPrice != *r.DiscountedPrice
}

// Evaluate derives a product's next status and, when inside the discount
// window, its discounted price. Deterministic and side-effect free.
//
// Rules, in order:
//   - disposed and expired products are untouched;
//   - zero or negative days left forces expired;
//   - inside the discount window an active product becomes discounted
//     (with Notify set) and a discounted product has its price recomputed;
//   - otherwise nothing changes.
func Evaluate(p *models.Product, policy *models.CategoryPolicy, today time.Time) Result {
	current := Result{Status: p.Status, DiscountedPrice: p.DiscountedPrice}

	if p.Status == models.StatusDisposed || p.Status == models.StatusExpired {
		return current
	}

	threshold := models.DefaultDiscountThreshold
	if policy != nil && policy.DiscountThreshold > 0 {
		threshold = policy.DiscountThreshold
	}

	daysLeft := p.DaysUntilExpiry(today)

	if daysLeft <= 0 {
		return Result{Status: models.StatusExpired, DiscountedPrice: p.DiscountedPrice}
	}

	if daysLeft <= threshold {
		price := DiscountPrice(p.Price, daysLeft, threshold)
		return Result{
			Status:          models.StatusDiscounted,
			DiscountedPrice: &price,
			Notify:          p.Status == models.StatusActive,
		}
	}

	return current
}

// DiscountPercent computes the whole-number discount percentage for a
// product daysLeft days from expiry under the given threshold. The result
// is clamped to [BaseDiscountPct, MaxDiscountPct].
func DiscountPercent(daysLeft, threshold int) float64 {
	fraction := float64(daysLeft) / float64(threshold)
	pct := math.Round(BaseDiscountPct + (MaxDiscountPct-BaseDiscountPct)*(1-fraction))
	if pct < BaseDiscountPct {
		pct = BaseDiscountPct
	}
	if pct > MaxDiscountPct {
		pct = MaxDiscountPct
	}
	return pct
}

// DiscountPrice applies the progressive discount to price, rounded to
// cents.
func DiscountPrice(price float64, daysLeft, threshold int) float64 {
	pct := DiscountPercent(daysLeft, threshold)
	return math.Round(price*(1-pct/100)*100) / 100
}
