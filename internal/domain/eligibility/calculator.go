// Package eligibility maps a flight's distance, arrival delay and jurisdiction
// to the fixed compensation owed under EU261 / UK261.
package eligibility

import (
	"fmt"
	"math"
	"strings"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
)

// Currency is the currency a verdict is paid in.
type Currency string

const (
	EUR Currency = "EUR"
	GBP Currency = "GBP"
)

// Regulation names the applicable statute for a currency.
func (c Currency) Regulation() string {
	if c == GBP {
		return "UK261"
	}
	return "EU261"
}

// CountryCode is an ISO 3166-1 alpha-2 country code.
type CountryCode string

// Normalize trims and upper-cases the code.
func (c CountryCode) Normalize() CountryCode {
	return CountryCode(strings.ToUpper(strings.TrimSpace(string(c))))
}

// IsUK reports whether the code designates the United Kingdom.
func (c CountryCode) IsUK() bool {
	n := c.Normalize()
	return n == "GB" || n == "UK"
}

const (
	// ThresholdMinutes is the statutory minimum arrival delay.
	ThresholdMinutes = 180
	// LongHaulFullMinutes is the delay from which long-haul flights get the full amount.
	LongHaulFullMinutes = 240

	shortHaulMaxKm  = 1500.0
	mediumHaulMaxKm = 3500.0
)

type tier struct {
	eur int
	gbp int
}

var (
	shortHaul       = tier{eur: 250, gbp: 220}
	mediumHaul      = tier{eur: 400, gbp: 350}
	longHaulReduced = tier{eur: 300, gbp: 260}
	longHaulFull    = tier{eur: 600, gbp: 520}
)

// Verdict is the outcome of an eligibility evaluation.
type Verdict struct {
	Eligible bool
	Amount   int
	Currency Currency
	Reason   string
}

// Regulation returns the statute the verdict was computed under.
func (v Verdict) Regulation() string {
	return v.Currency.Regulation()
}

// Evaluate computes the compensation verdict. It is total over valid inputs
// and returns entity.ErrInvalidInput for negative or non-finite values.
func Evaluate(distanceKm float64, delayMinutes int, departure, arrival CountryCode) (Verdict, error) {
	if math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) || distanceKm < 0 {
		return Verdict{}, fmt.Errorf("%w: distance must be a finite non-negative number, got %v", entity.ErrInvalidInput, distanceKm)
	}
	if delayMinutes < 0 {
		return Verdict{}, fmt.Errorf("%w: delay must be non-negative, got %d", entity.ErrInvalidInput, delayMinutes)
	}

	currency := EUR
	if departure.IsUK() || arrival.IsUK() {
		currency = GBP
	}

	km := int(math.Round(distanceKm))
	if delayMinutes < ThresholdMinutes {
		return Verdict{
			Eligible: false,
			Amount:   0,
			Currency: currency,
			Reason: fmt.Sprintf("Delay of %s is under the 3-hour statutory threshold; no compensation is due for this %d km flight.",
				FormatDelay(delayMinutes), km),
		}, nil
	}

	t := tierFor(distanceKm, delayMinutes)
	amount := t.eur
	if currency == GBP {
		amount = t.gbp
	}

	return Verdict{
		Eligible: true,
		Amount:   amount,
		Currency: currency,
		Reason: fmt.Sprintf("Delay of %s on a %d km flight qualifies for %d %s under %s.",
			FormatDelay(delayMinutes), km, amount, currency, currency.Regulation()),
	}, nil
}

// tierFor assumes delayMinutes has already passed the statutory threshold.
func tierFor(distanceKm float64, delayMinutes int) tier {
	switch {
	case distanceKm < shortHaulMaxKm:
		return shortHaul
	case distanceKm <= mediumHaulMaxKm:
		return mediumHaul
	case delayMinutes >= LongHaulFullMinutes:
		return longHaulFull
	default:
		return longHaulReduced
	}
}

// FormatDelay renders minutes as "Xh Ym".
func FormatDelay(minutes int) string {
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
