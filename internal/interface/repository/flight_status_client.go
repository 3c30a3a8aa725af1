package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
	"github.com/Matthias0x44/RyUnfair/internal/domain/repository"
	"github.com/Matthias0x44/RyUnfair/pkg/logger"
)

// HTTPFlightStatusClient queries an aviationstack-compatible flights endpoint
type HTTPFlightStatusClient struct {
	logger  logger.Logger
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPFlightStatusClient creates a flight data client
func NewHTTPFlightStatusClient(baseURL, apiKey string, timeout time.Duration, logger logger.Logger) *HTTPFlightStatusClient {
	return &HTTPFlightStatusClient{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

var _ repository.FlightStatusProvider = (*HTTPFlightStatusClient)(nil)

type flightsResponse struct {
	Data []struct {
		FlightDate   string `json:"flight_date"`
		FlightStatus string `json:"flight_status"`
		Arrival      struct {
			IATA  string `json:"iata"`
			Delay *int   `json:"delay"`
		} `json:"arrival"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Lookup returns the arrival delay and status the data source reports for a flight
func (c *HTTPFlightStatusClient) Lookup(ctx context.Context, flightNumber, flightDate string) (*entity.FlightStatusReport, error) {
	q := url.Values{}
	q.Set("flight_iata", flightNumber)
	q.Set("flight_date", flightDate)
	if c.apiKey != "" {
		q.Set("access_key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/flights?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("flight data source returned status %d", resp.StatusCode)
	}

	var body flightsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if body.Error != nil {
		return nil, fmt.Errorf("flight data source error %s: %s", body.Error.Code, body.Error.Message)
	}
	if len(body.Data) == 0 {
		return nil, fmt.Errorf("%w: no data for %s on %s", entity.ErrNotFound, flightNumber, flightDate)
	}

	f := body.Data[0]
	report := &entity.FlightStatusReport{Status: entity.FlightTracking}
	if f.Arrival.Delay != nil && *f.Arrival.Delay > 0 {
		report.DelayMinutes = *f.Arrival.Delay
	}
	if strings.EqualFold(f.FlightStatus, "landed") {
		report.Status = entity.FlightCompleted
	}

	c.logger.Debug("Flight status fetched",
		"flightNumber", flightNumber,
		"flightDate", flightDate,
		"status", f.FlightStatus,
		"delayMinutes", report.DelayMinutes)

	return report, nil
}

// FallbackFlightStatusProvider answers with a synthetic estimate when the primary source fails
type FallbackFlightStatusProvider struct {
	primary repository.FlightStatusProvider
	logger  logger.Logger
	now     func() time.Time
}

// NewFallbackFlightStatusProvider wraps primary; a nil primary always yields estimates
func NewFallbackFlightStatusProvider(primary repository.FlightStatusProvider, logger logger.Logger) *FallbackFlightStatusProvider {
	return &FallbackFlightStatusProvider{
		primary: primary,
		logger:  logger,
		now:     time.Now,
	}
}

// Lookup delegates to the primary source. The estimate reports no delay and
// treats the flight as completed once its date has passed.
func (p *FallbackFlightStatusProvider) Lookup(ctx context.Context, flightNumber, flightDate string) (*entity.FlightStatusReport, error) {
	if p.primary != nil {
		report, err := p.primary.Lookup(ctx, flightNumber, flightDate)
		if err == nil {
			return report, nil
		}
		p.logger.Warn("Flight data source unavailable, using estimate",
			"flightNumber", flightNumber,
			"flightDate", flightDate,
			"error", err)
	}

	date, err := time.Parse(entity.FlightDateLayout, flightDate)
	if err != nil {
		return nil, fmt.Errorf("%w: flight date %q", entity.ErrInvalidInput, flightDate)
	}

	today := p.now().UTC().Truncate(24 * time.Hour)
	status := entity.FlightTracking
	if date.Before(today) {
		status = entity.FlightCompleted
	}
	return &entity.FlightStatusReport{
		DelayMinutes: 0,
		Status:       status,
		Synthetic:    true,
	}, nil
}
