// internal/domain/entity/flight_record.go
package entity

import (
	"time"
)

// FlightStatus is the lifecycle status of a tracked flight.
type FlightStatus string

const (
	FlightTracking  FlightStatus = "tracking"
	FlightCompleted FlightStatus = "completed"
	FlightClaimed   FlightStatus = "claimed"
	FlightExpired   FlightStatus = "expired"
)

// IsTerminal reports whether the status is an externally set annotation
// that the tracker must no longer change.
func (s FlightStatus) IsTerminal() bool {
	return s == FlightClaimed || s == FlightExpired
}

// FlightDateLayout is the layout of FlightRecord.FlightDate.
const FlightDateLayout = "2006-01-02"

// Compensation is the persisted form of an eligibility verdict.
type Compensation struct {
	Eligible bool   `bson:"eligible" json:"eligible"`
	Amount   int    `bson:"amount" json:"amount"`
	Currency string `bson:"currency" json:"currency"`
	Reason   string `bson:"reason" json:"reason"`
}

// FlightRecord is unique per (UserID, FlightNumber, FlightDate).
type FlightRecord struct {
	ID               string       `bson:"_id,omitempty" json:"id"`
	UserID           string       `bson:"userId" json:"userId"`
	FlightNumber     string       `bson:"flightNumber" json:"flightNumber"`
	FlightDate       string       `bson:"flightDate" json:"flightDate"`
	DepartureAirport string       `bson:"departureAirport" json:"departureAirport"`
	ArrivalAirport   string       `bson:"arrivalAirport" json:"arrivalAirport"`
	DepartureCountry string       `bson:"departureCountry" json:"departureCountry"`
	ArrivalCountry   string       `bson:"arrivalCountry" json:"arrivalCountry"`
	DistanceKm       float64      `bson:"distanceKm" json:"distanceKm"`
	DelayMinutes     int          `bson:"delayMinutes" json:"delayMinutes"`
	Compensation     Compensation `bson:"compensation" json:"compensation"`
	Status           FlightStatus `bson:"status" json:"status"`
	CompletedAt      *time.Time   `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	// Estimated is set while the delay and status come from a synthetic
	// estimate rather than an observation.
	Estimated bool      `bson:"estimated" json:"estimated"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// FlightStatusReport is what a flight data source returns for one flight.
type FlightStatusReport struct {
	DelayMinutes int
	Status       FlightStatus
	Synthetic    bool
}
