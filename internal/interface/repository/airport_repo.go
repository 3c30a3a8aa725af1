package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
	"github.com/Matthias0x44/RyUnfair/internal/domain/repository"

	"gorm.io/gorm"
)

// GormAirportRepository implements the AirportRepository interface
type GormAirportRepository struct {
	db *gorm.DB
}

// NewGormAirportRepository creates a new GORM airport repository
func NewGormAirportRepository(db *gorm.DB) *GormAirportRepository {
	return &GormAirportRepository{
		db: db,
	}
}

var _ repository.AirportRepository = (*GormAirportRepository)(nil)

// Airports GORM model for database mapping
type Airports struct {
	ID          uint    `gorm:"primaryKey"`
	Code        string  `gorm:"column:code;unique"`
	Name        string  `gorm:"column:name"`
	CityName    string  `gorm:"column:city"`
	CountryCode string  `gorm:"column:country_code"`
	Latitude    float64 `gorm:"column:latitude"`
	Longitude   float64 `gorm:"column:longitude"`
	TzName      string  `gorm:"column:tz_name"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName overrides the default table name
func (Airports) TableName() string {
	return "m_airports"
}

// GetByCode finds an airport by its IATA code
func (r *GormAirportRepository) GetByCode(ctx context.Context, code string) (*entity.Airport, error) {
	var airport Airports
	result := r.db.WithContext(ctx).Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&airport)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, entity.ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}

	return &entity.Airport{
		ID:          airport.ID,
		Code:        airport.Code,
		Name:        airport.Name,
		CityName:    airport.CityName,
		CountryCode: airport.CountryCode,
		Latitude:    airport.Latitude,
		Longitude:   airport.Longitude,
		TzName:      airport.TzName,
		CreatedAt:   airport.CreatedAt,
		UpdatedAt:   airport.UpdatedAt,
	}, nil
}
