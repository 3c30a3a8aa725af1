package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var flightNumberPattern = regexp.MustCompile(`^([A-Z0-9]{2})([0-9]{1,4}[A-Z]?)$`)

// NormalizeFlightNumber upper-cases and strips spaces and slashes, e.g. "fr 1234" -> "FR1234".
func NormalizeFlightNumber(flightNo string) string {
	replacer := strings.NewReplacer(" ", "", "/", "", "-", "")
	return strings.ToUpper(replacer.Replace(strings.TrimSpace(flightNo)))
}

// ValidFlightNumber reports whether flightNo is an IATA designator plus number.
func ValidFlightNumber(flightNo string) bool {
	return flightNumberPattern.MatchString(NormalizeFlightNumber(flightNo))
}

// AirlineCode returns the two-character IATA prefix of a flight number.
func AirlineCode(flightNo string) string {
	prefix := NormalizeFlightNumber(flightNo)
	if len(prefix) >= 2 {
		prefix = prefix[:2]
	}
	return prefix
}

// PercentOf formats pct percent of amount with two decimals, e.g. (5, 250) -> "12.50".
func PercentOf(pct float64, amount int) string {
	return fmt.Sprintf("%.2f", float64(amount)*pct/100)
}
