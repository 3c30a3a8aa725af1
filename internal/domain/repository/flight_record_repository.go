package repository

import (
	"context"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
)

// FlightRecordRepository defines the interface for flight record operations.
// Implementations enforce uniqueness of (userID, flightNumber, flightDate)
// and return entity.ErrDuplicateFlight on violation.
type FlightRecordRepository interface {
	FindByID(ctx context.Context, id string) (*entity.FlightRecord, error)
	FindByKey(ctx context.Context, userID, flightNumber, flightDate string) (*entity.FlightRecord, error)
	FindByUser(ctx context.Context, userID string) ([]*entity.FlightRecord, error)
	// FindForRefresh returns flights still worth polling: every tracking
	// flight, and completed flights whose data is only an estimate and
	// whose date is on or after estimatedSince (YYYY-MM-DD).
	FindForRefresh(ctx context.Context, estimatedSince string, limit int) ([]*entity.FlightRecord, error)
	Create(ctx context.Context, record *entity.FlightRecord) error
	Update(ctx context.Context, record *entity.FlightRecord) error
}
