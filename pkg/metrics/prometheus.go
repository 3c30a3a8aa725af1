package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch outcomes
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	NotificationsScheduled *prometheus.CounterVec
	DispatchOutcomes       *prometheus.CounterVec
	DispatchDuration       prometheus.Histogram
	FlightUpdates          *prometheus.CounterVec
	ErrorsCount            *prometheus.CounterVec
}

// NewMetrics creates metrics registered against reg
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		NotificationsScheduled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_scheduled_total",
			Help:      "The total number of notifications scheduled",
		}, []string{"kind"}),
		DispatchOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_outcomes_total",
			Help:      "The total number of dispatched notifications by outcome",
		}, []string{"outcome"}),
		DispatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time taken by one dispatcher run",
			Buckets:   prometheus.DefBuckets,
		}),
		FlightUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flight_updates_total",
			Help:      "The total number of applied flight status updates",
		}, []string{"status"}),
		ErrorsCount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "The total number of errors",
		}, []string{"operation"}),
	}
}
