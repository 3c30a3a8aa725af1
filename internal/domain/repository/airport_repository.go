package repository

import (
	"context"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
)

// AirportRepository resolves IATA airport codes to reference data
type AirportRepository interface {
	GetByCode(ctx context.Context, code string) (*entity.Airport, error)
}
