package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Matthias0x44/RyUnfair/internal/domain/eligibility"
	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
	"github.com/Matthias0x44/RyUnfair/internal/domain/repository"
	"github.com/Matthias0x44/RyUnfair/pkg/logger"
	"github.com/Matthias0x44/RyUnfair/pkg/metrics"
	"github.com/Matthias0x44/RyUnfair/pkg/utils"
)

// LifecycleConfig holds the offsets of the post-eligibility follow-ups
type LifecycleConfig struct {
	FollowupFirst time.Duration
	FollowupFinal time.Duration
}

// TrackFlightInput identifies a flight a user wants tracked
type TrackFlightInput struct {
	UserID           string `json:"userId"`
	FlightNumber     string `json:"flightNumber"`
	FlightDate       string `json:"flightDate"`
	DepartureAirport string `json:"departureAirport"`
	ArrivalAirport   string `json:"arrivalAirport"`
}

// LifecycleManager owns flight status transitions and the notifications they schedule
type LifecycleManager struct {
	flights       repository.FlightRecordRepository
	notifications repository.NotificationRepository
	users         repository.UserRepository
	airports      repository.AirportRepository
	provider      repository.FlightStatusProvider
	metrics       *metrics.Metrics
	logger        logger.Logger
	cfg           LifecycleConfig
	now           func() time.Time
}

// NewLifecycleManager creates a new lifecycle manager
func NewLifecycleManager(
	flights repository.FlightRecordRepository,
	notifications repository.NotificationRepository,
	users repository.UserRepository,
	airports repository.AirportRepository,
	provider repository.FlightStatusProvider,
	m *metrics.Metrics,
	logger logger.Logger,
	cfg LifecycleConfig,
) *LifecycleManager {
	return &LifecycleManager{
		flights:       flights,
		notifications: notifications,
		users:         users,
		airports:      airports,
		provider:      provider,
		metrics:       m,
		logger:        logger.With("component", "lifecycle"),
		cfg:           cfg,
		now:           time.Now,
	}
}

// TrackFlight starts tracking a flight for a user. Tracking the same
// (user, flight number, date) again returns the existing record.
func (lm *LifecycleManager) TrackFlight(ctx context.Context, in TrackFlightInput) (*entity.FlightRecord, error) {
	flightNumber := utils.NormalizeFlightNumber(in.FlightNumber)
	if !utils.ValidFlightNumber(flightNumber) {
		return nil, fmt.Errorf("%w: flight number %q", entity.ErrInvalidInput, in.FlightNumber)
	}
	if _, err := time.Parse(entity.FlightDateLayout, in.FlightDate); err != nil {
		return nil, fmt.Errorf("%w: flight date %q must be YYYY-MM-DD", entity.ErrInvalidInput, in.FlightDate)
	}
	from := strings.ToUpper(strings.TrimSpace(in.DepartureAirport))
	to := strings.ToUpper(strings.TrimSpace(in.ArrivalAirport))
	if from == "" || to == "" || from == to {
		return nil, fmt.Errorf("%w: departure and arrival airports must be two different codes", entity.ErrInvalidInput)
	}

	user, err := lm.users.FindByID(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", in.UserID, err)
	}

	existing, err := lm.flights.FindByKey(ctx, user.ID, flightNumber, in.FlightDate)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, entity.ErrNotFound) {
		return nil, fmt.Errorf("find flight: %w", err)
	}

	dep, err := lm.airport(ctx, from)
	if err != nil {
		return nil, err
	}
	arr, err := lm.airport(ctx, to)
	if err != nil {
		return nil, err
	}

	report, err := lm.provider.Lookup(ctx, flightNumber, in.FlightDate)
	if err != nil {
		return nil, fmt.Errorf("lookup flight status: %w", err)
	}

	now := lm.now().UTC()
	record := &entity.FlightRecord{
		UserID:           user.ID,
		FlightNumber:     flightNumber,
		FlightDate:       in.FlightDate,
		DepartureAirport: dep.Code,
		ArrivalAirport:   arr.Code,
		DepartureCountry: dep.CountryCode,
		ArrivalCountry:   arr.CountryCode,
		DistanceKm:       utils.GreatCircleKm(dep.Latitude, dep.Longitude, arr.Latitude, arr.Longitude),
		DelayMinutes:     report.DelayMinutes,
		Status:           entity.FlightTracking,
		Estimated:        report.Synthetic,
	}
	if report.Status == entity.FlightCompleted {
		record.Status = entity.FlightCompleted
		record.CompletedAt = &now
	}
	if err := lm.evaluate(record); err != nil {
		return nil, err
	}

	if err := lm.flights.Create(ctx, record); err != nil {
		if !errors.Is(err, entity.ErrDuplicateFlight) {
			return nil, fmt.Errorf("create flight: %w", err)
		}
		// Lost a race with a concurrent request for the same key.
		return lm.flights.FindByKey(ctx, user.ID, flightNumber, in.FlightDate)
	}

	lm.logger.Info("Tracking flight",
		"flightID", record.ID,
		"userID", record.UserID,
		"flightNumber", record.FlightNumber,
		"status", record.Status,
		"synthetic", report.Synthetic)
	lm.metrics.FlightUpdates.WithLabelValues(string(record.Status)).Inc()

	if err := lm.scheduleIfEligible(ctx, record); err != nil {
		return record, err
	}
	return record, nil
}

func (lm *LifecycleManager) airport(ctx context.Context, code string) (*entity.Airport, error) {
	a, err := lm.airports.GetByCode(ctx, code)
	if errors.Is(err, entity.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown airport %q", entity.ErrInvalidInput, code)
	}
	if err != nil {
		return nil, fmt.Errorf("find airport %s: %w", code, err)
	}
	return a, nil
}

// ApplyFlightUpdate records a status observation for a flight. The verdict is
// always recomputed from the stored inputs; completed never returns to
// tracking, and claimed/expired flights ignore further updates. A flight
// that stops being eligible has its pending notifications cancelled.
func (lm *LifecycleManager) ApplyFlightUpdate(ctx context.Context, flightID string, update entity.FlightStatusReport) (*entity.FlightRecord, error) {
	if update.DelayMinutes < 0 {
		return nil, fmt.Errorf("%w: delay must be non-negative, got %d", entity.ErrInvalidInput, update.DelayMinutes)
	}
	switch update.Status {
	case entity.FlightTracking, entity.FlightCompleted, entity.FlightClaimed, entity.FlightExpired:
	default:
		return nil, fmt.Errorf("%w: unknown flight status %q", entity.ErrInvalidInput, update.Status)
	}

	record, err := lm.flights.FindByID(ctx, flightID)
	if err != nil {
		return nil, fmt.Errorf("find flight %s: %w", flightID, err)
	}

	if record.Status.IsTerminal() {
		lm.logger.Info("Ignoring update for closed flight", "flightID", record.ID, "status", record.Status)
		return record, nil
	}

	// Claimed and expired only annotate the flight; delay and verdict stay.
	if update.Status.IsTerminal() {
		record.Status = update.Status
		if err := lm.flights.Update(ctx, record); err != nil {
			return nil, fmt.Errorf("update flight %s: %w", record.ID, err)
		}
		lm.metrics.FlightUpdates.WithLabelValues(string(record.Status)).Inc()
		lm.logger.Info("Flight closed", "flightID", record.ID, "status", record.Status)
		return record, nil
	}

	wasEligible := record.Compensation.Eligible
	if update.Status == entity.FlightCompleted && record.Status != entity.FlightCompleted {
		now := lm.now().UTC()
		record.Status = entity.FlightCompleted
		record.CompletedAt = &now
		if update.Synthetic {
			record.Estimated = true
		}
	}
	// An estimate never overwrites an observed delay; a real observation
	// replaces any estimate.
	if !update.Synthetic {
		record.DelayMinutes = update.DelayMinutes
		record.Estimated = false
	} else if record.DelayMinutes == 0 {
		record.DelayMinutes = update.DelayMinutes
	}

	if err := lm.evaluate(record); err != nil {
		return nil, err
	}
	if err := lm.flights.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("update flight %s: %w", record.ID, err)
	}
	lm.metrics.FlightUpdates.WithLabelValues(string(record.Status)).Inc()

	lm.logger.Info("Flight updated",
		"flightID", record.ID,
		"status", record.Status,
		"delayMinutes", record.DelayMinutes,
		"eligible", record.Compensation.Eligible)

	if wasEligible && !record.Compensation.Eligible {
		return record, lm.revokeSchedule(ctx, record)
	}
	if err := lm.scheduleIfEligible(ctx, record); err != nil {
		return record, err
	}
	return record, nil
}

// RefreshFlight pulls the latest observation from the flight data source
func (lm *LifecycleManager) RefreshFlight(ctx context.Context, flightID string) (*entity.FlightRecord, error) {
	record, err := lm.flights.FindByID(ctx, flightID)
	if err != nil {
		return nil, fmt.Errorf("find flight %s: %w", flightID, err)
	}
	if record.Status.IsTerminal() {
		return record, nil
	}

	report, err := lm.provider.Lookup(ctx, record.FlightNumber, record.FlightDate)
	if err != nil {
		return nil, fmt.Errorf("lookup flight status: %w", err)
	}
	return lm.ApplyFlightUpdate(ctx, record.ID, *report)
}

func (lm *LifecycleManager) evaluate(record *entity.FlightRecord) error {
	verdict, err := eligibility.Evaluate(
		record.DistanceKm,
		record.DelayMinutes,
		eligibility.CountryCode(record.DepartureCountry),
		eligibility.CountryCode(record.ArrivalCountry),
	)
	if err != nil {
		return fmt.Errorf("evaluate flight %s: %w", record.FlightNumber, err)
	}
	record.Compensation = entity.Compensation{
		Eligible: verdict.Eligible,
		Amount:   verdict.Amount,
		Currency: string(verdict.Currency),
		Reason:   verdict.Reason,
	}
	return nil
}

// revokeSchedule cancels whatever is still pending for a flight that is no
// longer eligible. Notices already sent stay sent.
func (lm *LifecycleManager) revokeSchedule(ctx context.Context, record *entity.FlightRecord) error {
	cancelled, err := lm.notifications.CancelPendingByFlight(ctx, record.ID, lm.now().UTC())
	if err != nil {
		lm.metrics.ErrorsCount.WithLabelValues("cancel_notifications").Inc()
		return fmt.Errorf("cancel notifications for flight %s: %w", record.ID, err)
	}
	lm.logger.Info("Flight no longer eligible, pending notifications cancelled",
		"flightID", record.ID,
		"delayMinutes", record.DelayMinutes,
		"count", cancelled)
	return nil
}

// ScheduleForUser schedules the chain of every completed, eligible flight of
// a user. It runs once the user's address is verified, since scheduling is
// held back until then.
func (lm *LifecycleManager) ScheduleForUser(ctx context.Context, userID string) error {
	records, err := lm.flights.FindByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("find flights of user %s: %w", userID, err)
	}
	var errs []error
	for _, record := range records {
		if err := lm.scheduleIfEligible(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// scheduleIfEligible creates the eligibility notice and both follow-ups for a
// completed, eligible flight of a verified user. Kinds already scheduled are
// left alone, so the call is safe to repeat and repairs a chain a crash left
// half-written. The chain starts at completion, or at verification when the
// user confirmed their address later.
func (lm *LifecycleManager) scheduleIfEligible(ctx context.Context, record *entity.FlightRecord) error {
	if record.Status != entity.FlightCompleted || !record.Compensation.Eligible {
		return nil
	}

	user, err := lm.users.FindByID(ctx, record.UserID)
	if err != nil {
		return fmt.Errorf("find user %s: %w", record.UserID, err)
	}
	if user.UnsubscribedAt != nil || user.DeletedAt != nil {
		lm.logger.Info("Not scheduling for opted-out user", "flightID", record.ID, "userID", user.ID)
		return nil
	}
	if !user.EmailVerified {
		lm.logger.Info("Scheduling held until email is verified", "flightID", record.ID, "userID", user.ID)
		return nil
	}

	base := lm.now().UTC()
	if record.CompletedAt != nil {
		base = record.CompletedAt.UTC()
	}
	if user.VerifiedAt != nil && user.VerifiedAt.After(base) {
		base = user.VerifiedAt.UTC()
	}

	chain := []struct {
		kind   entity.NotificationKind
		offset time.Duration
	}{
		{entity.KindEligibilityResult, 0},
		{entity.KindFollowupFirst, lm.cfg.FollowupFirst},
		{entity.KindFollowupFinal, lm.cfg.FollowupFinal},
	}

	var errs []error
	for _, step := range chain {
		flightID := record.ID
		n := &entity.Notification{
			UserID:       record.UserID,
			FlightID:     &flightID,
			Kind:         step.kind,
			ScheduledFor: base.Add(step.offset),
			Status:       entity.NotificationPending,
			DedupeKey:    entity.DedupeKeyFor(record.UserID, flightID, step.kind),
		}
		err := lm.notifications.Create(ctx, n)
		switch {
		case err == nil:
			lm.metrics.NotificationsScheduled.WithLabelValues(string(step.kind)).Inc()
			lm.logger.Info("Notification scheduled",
				"notificationID", n.ID,
				"flightID", record.ID,
				"kind", step.kind,
				"scheduledFor", n.ScheduledFor)
		case errors.Is(err, entity.ErrDuplicateSchedule):
			lm.logger.Debug("Notification already scheduled", "flightID", record.ID, "kind", step.kind)
		default:
			lm.metrics.ErrorsCount.WithLabelValues("schedule_notification").Inc()
			errs = append(errs, fmt.Errorf("schedule %s for flight %s: %w", step.kind, record.ID, err))
		}
	}
	return errors.Join(errs...)
}
