package templates

import (
	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
)

const verificationContent = `{{define "title"}}Confirm your email{{end}}
{{define "content"}}<p>Thanks for signing up to RyUnfair.</p>
<p>Please confirm this address so we can tell you when one of your delayed flights qualifies for compensation.</p>
<p><a href="{{.VerifyURL}}" style="background:#073590;color:#fff;padding:10px 18px;border-radius:4px;text-decoration:none">Confirm my email</a></p>
<p style="font-size:12px">If you did not sign up, ignore this email and nothing further will be sent.</p>{{end}}`

const flightTable = `{{define "flight"}}<table style="border-collapse:collapse;margin:16px 0">
<tr><td style="padding:4px 12px 4px 0">Flight</td><td><strong>{{.FlightNumber}}</strong> ({{.Airline}}) on {{.FlightDate}}</td></tr>
<tr><td style="padding:4px 12px 4px 0">Route</td><td>{{.DepartureAirport}} &rarr; {{.ArrivalAirport}}, {{.DistanceKm}} km</td></tr>
<tr><td style="padding:4px 12px 4px 0">Arrival delay</td><td>{{.Delay}}</td></tr>
<tr><td style="padding:4px 12px 4px 0">Compensation</td><td><strong>{{.Amount}} {{.Currency}}</strong> under {{.Regulation}}</td></tr>
</table>{{end}}`

const eligibilityContent = flightTable + `{{define "title"}}Your flight qualifies for compensation{{end}}
{{define "content"}}<p>Good news: your flight {{.Flight.FlightNumber}} qualifies for compensation.</p>
{{template "flight" .Flight}}
<p>{{.Flight.Reason}}</p>
<p>You can claim directly from the airline. Quote {{.Flight.Regulation}} and your flight details in the claim form; airlines must pay the fixed amount above for delays at arrival of three hours or more unless extraordinary circumstances apply.</p>{{end}}`

const followupFirstContent = flightTable + `{{define "title"}}Did you claim your compensation?{{end}}
{{define "content"}}<p>Two weeks ago we let you know that flight {{.Flight.FlightNumber}} qualified for {{.Flight.Amount}} {{.Flight.Currency}}.</p>
{{template "flight" .Flight}}
<p>If you have not claimed yet, there is still time. If the airline has paid out, we would be grateful for a donation of {{.SuggestedDonation}} {{.Flight.Currency}} to keep RyUnfair free.</p>{{end}}`

const followupFinalContent = flightTable + `{{define "title"}}Last reminder about your compensation{{end}}
{{define "content"}}<p>This is our last email about flight {{.Flight.FlightNumber}} on {{.Flight.FlightDate}}.</p>
{{template "flight" .Flight}}
<p>If you received your {{.Flight.Amount}} {{.Flight.Currency}}, a donation of {{.SuggestedDonation}} {{.Flight.Currency}} helps us keep tracking flights for everyone.</p>
<p>We will not email you about this flight again.</p>{{end}}`

// Verification renders the address confirmation email
func Verification() *Template {
	return newTemplate(entity.KindVerification,
		`Confirm your email for RyUnfair`,
		verificationContent,
		func(m entity.MessageContext) bool { _, ok := m.(entity.VerificationMessage); return ok })
}

// EligibilityResult renders the notice that a flight qualifies
func EligibilityResult() *Template {
	return newTemplate(entity.KindEligibilityResult,
		`Flight {{.Flight.FlightNumber}} qualifies for {{.Flight.Amount}} {{.Flight.Currency}}`,
		eligibilityContent,
		func(m entity.MessageContext) bool { _, ok := m.(entity.EligibilityMessage); return ok })
}

// FollowupFirst renders the first donation follow-up
func FollowupFirst() *Template {
	return newTemplate(entity.KindFollowupFirst,
		`Did you claim your {{.Flight.Amount}} {{.Flight.Currency}} for {{.Flight.FlightNumber}}?`,
		followupFirstContent,
		isFollowup)
}

// FollowupFinal renders the last donation follow-up
func FollowupFinal() *Template {
	return newTemplate(entity.KindFollowupFinal,
		`Last reminder: {{.Flight.FlightNumber}} compensation`,
		followupFinalContent,
		isFollowup)
}

func isFollowup(m entity.MessageContext) bool {
	_, ok := m.(entity.FollowupMessage)
	return ok
}
