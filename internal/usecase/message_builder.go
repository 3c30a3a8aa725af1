package usecase

import (
	"context"
	"fmt"
	"math"
	"net/url"

	"github.com/Matthias0x44/RyUnfair/internal/domain/eligibility"
	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
	"github.com/Matthias0x44/RyUnfair/internal/domain/repository"
	"github.com/Matthias0x44/RyUnfair/pkg/logger"
	"github.com/Matthias0x44/RyUnfair/pkg/utils"
)

// MessageBuilder assembles the typed context a notification is rendered from
type MessageBuilder struct {
	flights         repository.FlightRecordRepository
	airlines        repository.AirlineRepository
	publicBaseURL   string
	donationPercent float64
	logger          logger.Logger
}

// NewMessageBuilder creates a new message builder
func NewMessageBuilder(
	flights repository.FlightRecordRepository,
	airlines repository.AirlineRepository,
	publicBaseURL string,
	donationPercent float64,
	logger logger.Logger,
) *MessageBuilder {
	return &MessageBuilder{
		flights:         flights,
		airlines:        airlines,
		publicBaseURL:   publicBaseURL,
		donationPercent: donationPercent,
		logger:          logger.With("component", "message_builder"),
	}
}

// Build returns the context for n addressed to user. The result is not yet validated.
func (b *MessageBuilder) Build(ctx context.Context, n *entity.Notification, user *entity.User) (entity.MessageContext, error) {
	if n.Kind == entity.KindVerification {
		return entity.VerificationMessage{
			Email:     user.Email,
			VerifyURL: b.link("/api/v1/users/verify", user.VerificationToken),
		}, nil
	}

	if n.FlightID == nil || *n.FlightID == "" {
		return nil, fmt.Errorf("%w: %s notification %s has no flight", entity.ErrInvalidMessage, n.Kind, n.ID)
	}
	record, err := b.flights.FindByID(ctx, *n.FlightID)
	if err != nil {
		return nil, fmt.Errorf("load flight %s: %w", *n.FlightID, err)
	}

	summary := b.summary(ctx, record)
	unsubscribe := b.link("/api/v1/users/unsubscribe", user.VerificationToken)

	switch n.Kind {
	case entity.KindEligibilityResult:
		return entity.EligibilityMessage{
			Email:          user.Email,
			Flight:         summary,
			UnsubscribeURL: unsubscribe,
		}, nil
	case entity.KindFollowupFirst, entity.KindFollowupFinal:
		return entity.FollowupMessage{
			Stage:             n.Kind,
			Email:             user.Email,
			Flight:            summary,
			SuggestedDonation: utils.PercentOf(b.donationPercent, record.Compensation.Amount),
			UnsubscribeURL:    unsubscribe,
		}, nil
	default:
		return nil, fmt.Errorf("%w: no message context for kind %q", entity.ErrInvalidMessage, n.Kind)
	}
}

func (b *MessageBuilder) summary(ctx context.Context, record *entity.FlightRecord) entity.FlightSummary {
	airline := utils.AirlineCode(record.FlightNumber)
	if a, err := b.airlines.GetByCode(ctx, airline); err == nil {
		airline = a.Name
	} else {
		b.logger.Debug("Airline lookup failed, using code", "code", airline, "error", err)
	}

	return entity.FlightSummary{
		FlightNumber:     record.FlightNumber,
		FlightDate:       record.FlightDate,
		Airline:          airline,
		DepartureAirport: record.DepartureAirport,
		ArrivalAirport:   record.ArrivalAirport,
		Delay:            eligibility.FormatDelay(record.DelayMinutes),
		DistanceKm:       int(math.Round(record.DistanceKm)),
		Amount:           record.Compensation.Amount,
		Currency:         record.Compensation.Currency,
		Regulation:       eligibility.Currency(record.Compensation.Currency).Regulation(),
		Reason:           record.Compensation.Reason,
	}
}

// link returns "" without a token so validation reports the missing field.
func (b *MessageBuilder) link(path, token string) string {
	if token == "" {
		return ""
	}
	return b.publicBaseURL + path + "?token=" + url.QueryEscape(token)
}
