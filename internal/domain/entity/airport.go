package entity

import (
	"time"
)

// Airport holds the reference data needed for distance and jurisdiction.
type Airport struct {
	ID          uint
	Code        string
	Name        string
	CityName    string
	CountryCode string
	Latitude    float64
	Longitude   float64
	TzName      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
