package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
	"github.com/Matthias0x44/RyUnfair/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshTracking(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	tracked := f.track(t)

	// A tracked flight whose airport data went missing fails on its own.
	broken := &entity.FlightRecord{ID: "f0000", UserID: "u1", FlightNumber: "FR9", FlightDate: "2026-03-01",
		DistanceKm: -1, Status: entity.FlightTracking}
	f.flights.records[broken.ID] = broken
	f.flights.records["f9999"] = &entity.FlightRecord{ID: "f9999", UserID: "u1", Status: entity.FlightClaimed}

	f.provider.report = entity.FlightStatusReport{Status: entity.FlightCompleted, DelayMinutes: 240}
	tracker := NewFlightTracker(f.flights, f.lm, newTestMetrics(), logger.NewNop())

	refreshed, err := tracker.RefreshTracking(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed)

	stored, err := f.flights.FindByID(ctx, tracked.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.FlightCompleted, stored.Status)
	assert.Len(t, f.notifications.byKind(entity.KindEligibilityResult), 1)

	again, err := tracker.RefreshTracking(ctx)
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestRefreshTracking_EstimatedCompletionStaysPolled(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	f.provider.report = entity.FlightStatusReport{Status: entity.FlightCompleted, Synthetic: true}
	estimated := f.track(t)
	require.Equal(t, entity.FlightCompleted, estimated.Status)
	require.True(t, estimated.Estimated)
	assert.False(t, estimated.Compensation.Eligible)

	tracker := NewFlightTracker(f.flights, f.lm, newTestMetrics(), logger.NewNop())
	tracker.now = fixedClock(baseTime.Add(24 * time.Hour))

	// Still only an estimate: polled, nothing changes.
	refreshed, err := tracker.RefreshTracking(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed)
	assert.Empty(t, f.notifications.byKind(entity.KindEligibilityResult))

	f.provider.report = entity.FlightStatusReport{Status: entity.FlightCompleted, DelayMinutes: 240}
	refreshed, err = tracker.RefreshTracking(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed)

	stored, err := f.flights.FindByID(ctx, estimated.ID)
	require.NoError(t, err)
	assert.False(t, stored.Estimated)
	assert.Equal(t, 240, stored.DelayMinutes)
	assert.True(t, stored.Compensation.Eligible)
	assert.Len(t, f.notifications.byKind(entity.KindEligibilityResult), 1)

	// An observed completion is final.
	again, err := tracker.RefreshTracking(ctx)
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestRefreshTracking_EstimateOutsideWindowNotPolled(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	f.provider.report = entity.FlightStatusReport{Status: entity.FlightCompleted, Synthetic: true}
	f.track(t)

	tracker := NewFlightTracker(f.flights, f.lm, newTestMetrics(), logger.NewNop())
	tracker.now = fixedClock(baseTime.Add(20 * 24 * time.Hour))

	calls := f.provider.calls
	refreshed, err := tracker.RefreshTracking(ctx)
	require.NoError(t, err)
	assert.Zero(t, refreshed)
	assert.Equal(t, calls, f.provider.calls)
}
