package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
	"github.com/Matthias0x44/RyUnfair/internal/domain/repository"
	"github.com/Matthias0x44/RyUnfair/pkg/logger"
	"github.com/Matthias0x44/RyUnfair/pkg/metrics"
)

const (
	trackingBatchSize = 100

	// estimateRefreshWindow is how long after the flight date a completion
	// that was only estimated keeps being polled for a real observation.
	estimateRefreshWindow = 14 * 24 * time.Hour
)

// FlightTracker polls the flight data source for flights still in tracking
// and for recent completions that were only estimated
type FlightTracker struct {
	flights   repository.FlightRecordRepository
	lifecycle *LifecycleManager
	metrics   *metrics.Metrics
	logger    logger.Logger
	now       func() time.Time
}

// NewFlightTracker creates a new flight tracker
func NewFlightTracker(flights repository.FlightRecordRepository, lifecycle *LifecycleManager, m *metrics.Metrics, logger logger.Logger) *FlightTracker {
	return &FlightTracker{
		flights:   flights,
		lifecycle: lifecycle,
		metrics:   m,
		logger:    logger.With("component", "tracker"),
		now:       time.Now,
	}
}

// RefreshTracking refreshes one batch of pollable flights and returns how
// many were refreshed. A failing flight does not stop the rest.
func (t *FlightTracker) RefreshTracking(ctx context.Context) (int, error) {
	since := t.now().UTC().Add(-estimateRefreshWindow).Format(entity.FlightDateLayout)
	records, err := t.flights.FindForRefresh(ctx, since, trackingBatchSize)
	if err != nil {
		return 0, fmt.Errorf("find flights to refresh: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	t.logger.Info("Refreshing tracked flights", "count", len(records))

	refreshed := 0
	for _, record := range records {
		if ctx.Err() != nil {
			break
		}
		if _, err := t.lifecycle.RefreshFlight(ctx, record.ID); err != nil {
			t.metrics.ErrorsCount.WithLabelValues("refresh_flight").Inc()
			t.logger.Error("Failed to refresh flight", "flightID", record.ID, "error", err)
			continue
		}
		refreshed++
	}
	return refreshed, nil
}
