// internal/engine/scheduler.go
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"freshtrack/internal/common/logger"
	"freshtrack/internal/common/metrics"
	"freshtrack/internal/common/observability"
)

// Scheduler drives Service.RunCycle on a fixed interval. The first cycle
// runs immediately on Start. A failed or panicking cycle is logged and the
// loop keeps its cadence.
type Scheduler struct {
	service  *Service
	interval time.Duration
	logger   logger.Logger
	obs      *observability.Observability

	stop chan struct{}
	done sync.WaitGroup
	once sync.Once
}

func NewScheduler(service *Service, interval time.Duration, log logger.Logger, obs *observability.Observability) *Scheduler {
	return &Scheduler{
		service:  service,
		interval: interval,
		logger:   log,
		obs:      obs,
		stop:     make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine. It returns
// immediately; use Stop for a graceful shutdown.
func (s *Scheduler) Start(ctx context.Context) {
	s.done.Add(1)
	go s.run(ctx)

	s.logger.Info("Scheduler started", map[string]interface{}{
		"interval": s.interval.String(),
	})
}

// Stop terminates the loop and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.done.Wait()
	s.logger.Info("Scheduler stopped", nil)
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.done.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runCycle(ctx)

	for {
		select {
		case <-ticker.C:
			s.runCycle(ctx)
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	start := time.Now()
	outcome := "success"

	err := s.safeRunCycle(ctx)
	if err != nil {
		outcome = "error"
		s.logger.Error("Scheduled cycle failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	elapsed := time.Since(start)
	metrics.SweepCyclesTotal.WithLabelValues(outcome).Inc()
	metrics.SweepCycleDuration.Observe(elapsed.Seconds())
	if s.obs != nil {
		s.obs.RecordCycle(ctx, outcome)
		s.obs.RecordCycleDuration(ctx, elapsed, outcome)
	}
}

// safeRunCycle converts a panicking cycle into an error so one bad pass
// cannot take the loop down.
func (s *Scheduler) safeRunCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
		}
	}()
	return s.service.RunCycle(ctx)
}
