package entity

import (
	"fmt"
	"sort"
	"strings"
)

// MessageContext is the typed data a template renders. Each notification
// kind has exactly one context type.
type MessageContext interface {
	Kind() NotificationKind
	Recipient() string
	Validate() error
}

// VerificationMessage is rendered for KindVerification.
type VerificationMessage struct {
	Email     string
	VerifyURL string
}

func (m VerificationMessage) Kind() NotificationKind { return KindVerification }
func (m VerificationMessage) Recipient() string      { return m.Email }

func (m VerificationMessage) Validate() error {
	return requireFields(m.Kind(), map[string]string{
		"email":     m.Email,
		"verifyURL": m.VerifyURL,
	})
}

// FlightSummary carries the flight fields shared by post-eligibility messages.
type FlightSummary struct {
	FlightNumber     string
	FlightDate       string
	Airline          string
	DepartureAirport string
	ArrivalAirport   string
	Delay            string
	DistanceKm       int
	Amount           int
	Currency         string
	Regulation       string
	Reason           string
}

func (f FlightSummary) fields() map[string]string {
	return map[string]string{
		"flightNumber":     f.FlightNumber,
		"flightDate":       f.FlightDate,
		"departureAirport": f.DepartureAirport,
		"arrivalAirport":   f.ArrivalAirport,
		"delay":            f.Delay,
		"currency":         f.Currency,
		"regulation":       f.Regulation,
		"reason":           f.Reason,
	}
}

// EligibilityMessage is rendered for KindEligibilityResult.
type EligibilityMessage struct {
	Email          string
	Flight         FlightSummary
	UnsubscribeURL string
}

func (m EligibilityMessage) Kind() NotificationKind { return KindEligibilityResult }
func (m EligibilityMessage) Recipient() string      { return m.Email }

func (m EligibilityMessage) Validate() error {
	fields := m.Flight.fields()
	fields["email"] = m.Email
	fields["unsubscribeURL"] = m.UnsubscribeURL
	if err := requireFields(m.Kind(), fields); err != nil {
		return err
	}
	if m.Flight.Amount <= 0 {
		return fmt.Errorf("%w: %s: amount must be positive", ErrInvalidMessage, m.Kind())
	}
	return nil
}

// FollowupMessage is rendered for KindFollowupFirst and KindFollowupFinal.
type FollowupMessage struct {
	Stage             NotificationKind
	Email             string
	Flight            FlightSummary
	SuggestedDonation string
	UnsubscribeURL    string
}

func (m FollowupMessage) Kind() NotificationKind { return m.Stage }
func (m FollowupMessage) Recipient() string      { return m.Email }

func (m FollowupMessage) Validate() error {
	if m.Stage != KindFollowupFirst && m.Stage != KindFollowupFinal {
		return fmt.Errorf("%w: %q is not a follow-up kind", ErrInvalidMessage, m.Stage)
	}
	fields := m.Flight.fields()
	fields["email"] = m.Email
	fields["suggestedDonation"] = m.SuggestedDonation
	fields["unsubscribeURL"] = m.UnsubscribeURL
	if err := requireFields(m.Kind(), fields); err != nil {
		return err
	}
	if m.Flight.Amount <= 0 {
		return fmt.Errorf("%w: %s: amount must be positive", ErrInvalidMessage, m.Kind())
	}
	return nil
}

func requireFields(kind NotificationKind, fields map[string]string) error {
	var missing []string
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %s: missing %s", ErrInvalidMessage, kind, strings.Join(missing, ", "))
}

// OutboundEmail is a rendered message ready for a delivery provider.
type OutboundEmail struct {
	To      string
	Subject string
	HTML    string
}
