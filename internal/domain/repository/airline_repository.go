package repository

import (
	"context"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
)

// AirlineRepository defines the interface for airline operations
type AirlineRepository interface {
	GetByCode(ctx context.Context, code string) (*entity.Airline, error)
}
