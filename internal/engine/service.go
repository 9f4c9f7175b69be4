// Package engine orchestrates the lifecycle sweeps: status evaluation,
// waste disposal, FEFO ordering and notification dispatch. The pure rules
// live in internal/lifecycle; the engine wires them to the stores, the
// policy cache and the notification queue.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	stderrors "freshtrack/internal/common/errors"
	"freshtrack/internal/common/logger"
	"freshtrack/internal/common/metrics"
	"freshtrack/internal/lifecycle"
	"freshtrack/internal/models"
	"freshtrack/internal/notify"
	"freshtrack/internal/policy"
	"freshtrack/internal/store"
)

// StatusTransition records one product moving between lifecycle states.
type StatusTransition struct {
	ProductID int64                `json:"product_id"`
	Product   string               `json:"product"`
	From      models.ProductStatus `json:"from"`
	To        models.ProductStatus `json:"to"`
}

// SweepSummary reports one pass of SweepAllExpiring.
type SweepSummary struct {
	Scanned     int                `json:"scanned"`
	Discounted  int                `json:"discounted"`
	Expired     int                `json:"expired"`
	Enqueued    int                `json:"enqueued"`
	Errors      int                `json:"errors"`
	Transitions []StatusTransition `json:"transitions,omitempty"`
}

// Disposal pairs a disposed product with the waste record written for it.
type Disposal struct {
	Product models.Product     `json:"product"`
	Record  models.WasteRecord `json:"record"`
}

// DisposalSummary reports one pass of DisposeAllExpired. Unresolved lists
// the ids of products left expired because their category has no policy.
type DisposalSummary struct {
	Scanned    int        `json:"scanned"`
	Disposed   int        `json:"disposed"`
	Unresolved []int64    `json:"unresolved,omitempty"`
	Errors     int        `json:"errors"`
	Disposals  []Disposal `json:"disposals,omitempty"`
}

// Service runs the lifecycle operations against the stores.
type Service struct {
	products   store.ProductStore
	waste      store.WasteStore
	policies   policy.Store
	dispatcher *notify.Dispatcher
	logger     logger.Logger

	now   func() time.Time
	cycle atomic.Uint64
}

func NewService(
	products store.ProductStore,
	waste store.WasteStore,
	policies policy.Store,
	dispatcher *notify.Dispatcher,
	log logger.Logger,
) *Service {
	return &Service{
		products:   products,
		waste:      waste,
		policies:   policies,
		dispatcher: dispatcher,
		logger:     log,
		now:        time.Now,
	}
}

// WithClock overrides the time source, used in tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// EvaluateAndApply re-evaluates a single product and persists any status
// or price change. When the product enters the discount window from
// active, past purchasers are enqueued for notification. Returns the
// product in its post-evaluation state.
func (s *Service) EvaluateAndApply(ctx context.Context, productID int64) (*models.Product, error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	pol, err := s.policyFor(ctx, p.Category)
	if err != nil {
		return nil, err
	}

	result := lifecycle.Evaluate(p, pol, s.now())
	if !result.Changed(p) {
		return p, nil
	}

	if err := s.products.UpdateLifecycle(ctx, p.ID, result.Status, result.DiscountedPrice); err != nil {
		return nil, err
	}
	metrics.ProductTransitions.WithLabelValues(string(result.Status)).Inc()

	s.logger.Info("Product lifecycle updated", map[string]interface{}{
		"productId": p.ID,
		"product":   p.Name,
		"from":      string(p.Status),
		"to":        string(result.Status),
	})

	p.Status = result.Status
	p.DiscountedPrice = result.DiscountedPrice

	if result.Notify {
		if _, err := s.dispatcher.FanOut(ctx, p); err != nil {
			// The transition is already persisted; surface the fan-out
			// failure without rolling it back.
			return p, err
		}
	}
	return p, nil
}

// SweepAllExpiring evaluates every active and discounted product.
// Per-product failures are counted and logged, never abort the sweep.
func (s *Service) SweepAllExpiring(ctx context.Context) (*SweepSummary, error) {
	candidates, err := s.products.ListByStatus(ctx, models.StatusActive, models.StatusDiscounted)
	if err != nil {
		return nil, stderrors.NewStoreUnavailableError(err)
	}

	today := s.now()
	summary := &SweepSummary{Scanned: len(candidates)}

	for i := range candidates {
		p := &candidates[i]

		pol, err := s.policyFor(ctx, p.Category)
		if err != nil {
			summary.Errors++
			s.logger.Error("Policy lookup failed during sweep", map[string]interface{}{
				"productId": p.ID,
				"category":  p.Category,
				"error":     err.Error(),
			})
			continue
		}

		result := lifecycle.Evaluate(p, pol, today)
		if !result.Changed(p) {
			continue
		}

		if err := s.products.UpdateLifecycle(ctx, p.ID, result.Status, result.DiscountedPrice); err != nil {
			summary.Errors++
			s.logger.Error("Failed to apply lifecycle transition", map[string]interface{}{
				"productId": p.ID,
				"to":        string(result.Status),
				"error":     err.Error(),
			})
			continue
		}
		metrics.ProductTransitions.WithLabelValues(string(result.Status)).Inc()
		summary.Transitions = append(summary.Transitions, StatusTransition{
			ProductID: p.ID,
			Product:   p.Name,
			From:      p.Status,
			To:        result.Status,
		})

		switch result.Status {
		case models.StatusExpired:
			summary.Expired++
		case models.StatusDiscounted:
			if p.Status == models.StatusActive {
				summary.Discounted++
			}
		}

		if result.Notify {
			p.Status = result.Status
			p.DiscountedPrice = result.DiscountedPrice
			enqueued, err := s.dispatcher.FanOut(ctx, p)
			if err != nil {
				summary.Errors++
				s.logger.Error("Notification fan-out failed", map[string]interface{}{
					"productId": p.ID,
					"error":     err.Error(),
				})
				continue
			}
			summary.Enqueued += enqueued
		}
	}

	s.logger.Info("Expiry sweep completed", map[string]interface{}{
		"scanned":    summary.Scanned,
		"discounted": summary.Discounted,
		"expired":    summary.Expired,
		"enqueued":   summary.Enqueued,
		"errors":     summary.Errors,
	})
	return summary, nil
}

// DisposeAllExpired moves every expired product whose expiry date is
// strictly before today into the disposed state and writes exactly one
// waste record per disposal. Products whose category has no policy are
// skipped and reported in Unresolved rather than guessed at.
func (s *Service) DisposeAllExpired(ctx context.Context) (*DisposalSummary, error) {
	expired, err := s.products.ListByStatus(ctx, models.StatusExpired)
	if err != nil {
		return nil, stderrors.NewStoreUnavailableError(err)
	}

	today := s.now()
	summary := &DisposalSummary{}

	for i := range expired {
		p := &expired[i]

		// Same-day expiries stay on the shelf until the next day's sweep.
		if p.DaysUntilExpiry(today) >= 0 {
			continue
		}
		summary.Scanned++

		pol, err := s.policies.GetByName(ctx, p.Category)
		if errors.Is(err, store.ErrNotFound) {
			metrics.PolicyMisses.Inc()
			summary.Unresolved = append(summary.Unresolved, p.ID)
			s.logger.Warn("No waste policy for category, skipping disposal", map[string]interface{}{
				"productId": p.ID,
				"category":  p.Category,
			})
			continue
		}
		if err != nil {
			summary.Errors++
			s.logger.Error("Policy lookup failed during disposal", map[string]interface{}{
				"productId": p.ID,
				"category":  p.Category,
				"error":     err.Error(),
			})
			continue
		}

		won, err := s.products.MarkDisposed(ctx, p.ID)
		if err != nil {
			summary.Errors++
			s.logger.Error("Failed to mark product disposed", map[string]interface{}{
				"productId": p.ID,
				"error":     err.Error(),
			})
			continue
		}
		if !won {
			// Another sweep got here first; the waste record already exists.
			continue
		}
		metrics.ProductTransitions.WithLabelValues(string(models.StatusDisposed)).Inc()

		method := models.DisposalLandfill
		if pol.Recyclable {
			method = models.DisposalRecycle
		}

		record := &models.WasteRecord{
			ProductID:      p.ID,
			Quantity:       p.Quantity,
			WasteType:      pol.WasteType,
			Recyclable:     pol.Recyclable,
			DisposalMethod: method,
			DisposalDate:   today,
			Notes:          fmt.Sprintf("Disposed after expiry on %s", p.ExpiryDate.Format("2006-01-02")),
		}
		if err := s.waste.Create(ctx, record); err != nil {
			summary.Errors++
			s.logger.Error("Failed to write waste record", map[string]interface{}{
				"productId": p.ID,
				"error":     err.Error(),
			})
			continue
		}
		metrics.WasteRecordsCreated.Inc()
		summary.Disposed++
		p.Status = models.StatusDisposed
		p.Quantity = 0
		summary.Disposals = append(summary.Disposals, Disposal{Product: *p, Record: *record})
	}

	s.logger.Info("Disposal sweep completed", map[string]interface{}{
		"scanned":    summary.Scanned,
		"disposed":   summary.Disposed,
		"unresolved": summary.Unresolved,
		"errors":     summary.Errors,
	})
	return summary, nil
}

// OrderForDisposalPriority returns sellable inventory grouped by category
// in First-Expiry-First-Out order.
func (s *Service) OrderForDisposalPriority(ctx context.Context) (map[string][]models.Product, error) {
	products, err := s.products.ListByStatus(ctx, models.StatusActive, models.StatusDiscounted)
	if err != nil {
		return nil, stderrors.NewStoreUnavailableError(err)
	}
	return lifecycle.OrderFEFO(products), nil
}

// DispatchPendingNotifications delivers the pending notification queue.
func (s *Service) DispatchPendingNotifications(ctx context.Context) (*notify.DispatchResult, error) {
	return s.dispatcher.DispatchPending(ctx)
}

// RunCycle is one full scheduled pass: expiry sweep, disposal sweep,
// notification dispatch. Stage failures are collected into a single cycle
// error; later stages still run.
func (s *Service) RunCycle(ctx context.Context) error {
	cycle := s.cycle.Add(1)
	var failures []error

	if _, err := s.SweepAllExpiring(ctx); err != nil {
		failures = append(failures, fmt.Errorf("expiry sweep: %w", err))
	}
	if _, err := s.DisposeAllExpired(ctx); err != nil {
		failures = append(failures, fmt.Errorf("disposal sweep: %w", err))
	}
	if _, err := s.DispatchPendingNotifications(ctx); err != nil {
		failures = append(failures, fmt.Errorf("notification dispatch: %w", err))
	}

	if len(failures) > 0 {
		return stderrors.NewCycleError(cycle, errors.Join(failures...))
	}
	return nil
}

func (s *Service) policyFor(ctx context.Context, category string) (*models.CategoryPolicy, error) {
	pol, err := s.policies.GetByName(ctx, category)
	if errors.Is(err, store.ErrNotFound) {
		// Evaluation falls back to the default threshold on a miss;
		// disposal handles misses itself.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return pol, nil
}
