// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SweepCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_sweep_cycles_total",
			Help: "Total number of scheduler cycles, by outcome",
		},
		[]string{"outcome"},
	)

	SweepCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "lifecycle_sweep_cycle_duration_seconds",
			Help: "Duration of a full scheduler cycle in seconds",
		},
	)

	ProductTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_product_transitions_total",
			Help: "Product status transitions applied by the engine",
		},
		[]string{"to_status"},
	)

	WasteRecordsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lifecycle_waste_records_created_total",
			Help: "Waste records written by the disposal sweep",
		},
	)

	PolicyMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lifecycle_policy_misses_total",
			Help: "Disposal candidates skipped because their category has no policy",
		},
	)

	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_notifications_dispatched_total",
			Help: "Discount notifications dispatched, by result",
		},
		[]string{"result"},
	)

	NotificationsEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lifecycle_notifications_enqueued_total",
			Help: "Pending discount notifications created by fan-out",
		},
	)
)
