package templates

import (
	"testing"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flightSummary() entity.FlightSummary {
	return entity.FlightSummary{
		FlightNumber:     "FR1234",
		FlightDate:       "2026-03-01",
		Airline:          "Ryanair",
		DepartureAirport: "STN",
		ArrivalAirport:   "DUB",
		Delay:            "3h 20m",
		DistanceKm:       471,
		Amount:           220,
		Currency:         "GBP",
		Regulation:       "UK261",
		Reason:           "Delay of 3h 20m on a 471 km flight qualifies for 220 GBP under UK261.",
	}
}

func TestVerification_Render(t *testing.T) {
	subject, html, err := Verification().Render(entity.VerificationMessage{
		Email:     "a@example.com",
		VerifyURL: "https://ryunfair.example/api/v1/users/verify?token=abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "Confirm your email for RyUnfair", subject)
	assert.Contains(t, html, `href="https://ryunfair.example/api/v1/users/verify?token=abc"`)
	assert.Contains(t, html, "<title>Confirm your email</title>")
	assert.NotContains(t, html, "Unsubscribe")
}

func TestEligibilityResult_Render(t *testing.T) {
	subject, html, err := EligibilityResult().Render(entity.EligibilityMessage{
		Email:          "a@example.com",
		Flight:         flightSummary(),
		UnsubscribeURL: "https://ryunfair.example/api/v1/users/unsubscribe?token=abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "Flight FR1234 qualifies for 220 GBP", subject)
	assert.Contains(t, html, "<strong>220 GBP</strong> under UK261")
	assert.Contains(t, html, "STN &rarr; DUB, 471 km")
	assert.Contains(t, html, "(Ryanair)")
	assert.Contains(t, html, `href="https://ryunfair.example/api/v1/users/unsubscribe?token=abc"`)
}

func TestFollowups_Render(t *testing.T) {
	msg := entity.FollowupMessage{
		Stage:             entity.KindFollowupFirst,
		Email:             "a@example.com",
		Flight:            flightSummary(),
		SuggestedDonation: "11.00",
		UnsubscribeURL:    "https://ryunfair.example/u",
	}

	subject, html, err := FollowupFirst().Render(msg)
	require.NoError(t, err)
	assert.Equal(t, "Did you claim your 220 GBP for FR1234?", subject)
	assert.Contains(t, html, "donation of 11.00 GBP")

	msg.Stage = entity.KindFollowupFinal
	subject, html, err = FollowupFinal().Render(msg)
	require.NoError(t, err)
	assert.Equal(t, "Last reminder: FR1234 compensation", subject)
	assert.Contains(t, html, "We will not email you about this flight again.")

	// A first-stage context must not render with the final template.
	msg.Stage = entity.KindFollowupFirst
	_, _, err = FollowupFinal().Render(msg)
	assert.ErrorIs(t, err, entity.ErrInvalidMessage)

	// No reminder about a claim worth nothing.
	msg.Flight.Amount = 0
	_, _, err = FollowupFirst().Render(msg)
	assert.ErrorIs(t, err, entity.ErrInvalidMessage)
}

func TestRender_EscapesContent(t *testing.T) {
	f := flightSummary()
	f.Airline = `<script>alert(1)</script>`
	_, html, err := EligibilityResult().Render(entity.EligibilityMessage{Email: "a@example.com", Flight: f, UnsubscribeURL: "https://x"})
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestRender_RejectsWrongContext(t *testing.T) {
	_, _, err := EligibilityResult().Render(entity.VerificationMessage{Email: "a@example.com", VerifyURL: "https://x"})
	assert.ErrorIs(t, err, entity.ErrInvalidMessage)

	_, _, err = Verification().Render(nil)
	assert.ErrorIs(t, err, entity.ErrInvalidMessage)
}

func TestAll_CoversEveryKind(t *testing.T) {
	kinds := map[entity.NotificationKind]bool{}
	for _, tmpl := range All() {
		kinds[tmpl.Kind()] = true
	}
	assert.Equal(t, map[entity.NotificationKind]bool{
		entity.KindVerification:      true,
		entity.KindEligibilityResult: true,
		entity.KindFollowupFirst:     true,
		entity.KindFollowupFinal:     true,
	}, kinds)
}
