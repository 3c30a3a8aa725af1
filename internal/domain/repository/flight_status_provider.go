package repository

import (
	"context"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
)

// FlightStatusProvider looks up the current delay and status of a flight
type FlightStatusProvider interface {
	Lookup(ctx context.Context, flightNumber, flightDate string) (*entity.FlightStatusReport, error)
}
