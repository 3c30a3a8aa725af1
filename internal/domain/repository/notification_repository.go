package repository

import (
	"context"
	"time"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
)

// NotificationRepository stores scheduled notifications.
type NotificationRepository interface {
	// Create inserts n, returning entity.ErrDuplicateSchedule when a
	// non-cancelled record with the same dedupe key exists.
	Create(ctx context.Context, n *entity.Notification) error
	FindByID(ctx context.Context, id string) (*entity.Notification, error)
	// FindDue returns pending records with scheduledFor <= now that sort
	// after the cursor, in (scheduledFor, id) order. A nil cursor starts
	// at the oldest record.
	FindDue(ctx context.Context, now time.Time, after *entity.DueCursor, limit int) ([]*entity.Notification, error)
	// Claim moves a record from pending to sending. It reports false when
	// the record was no longer pending.
	Claim(ctx context.Context, id string, now time.Time) (bool, error)
	MarkSent(ctx context.Context, id, externalID string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id, reason string, failedAt time.Time) error
	// CancelPendingByUser cancels every pending record of the user.
	CancelPendingByUser(ctx context.Context, userID string, now time.Time) (int64, error)
	// CancelPendingByFlight cancels every pending record of the flight.
	CancelPendingByFlight(ctx context.Context, flightID string, now time.Time) (int64, error)
	// FailStaleClaims fails records stuck in sending since before cutoff.
	FailStaleClaims(ctx context.Context, cutoff time.Time) (int64, error)
	// Requeue moves a failed record back to pending, due at now.
	Requeue(ctx context.Context, id string, now time.Time) error
}
