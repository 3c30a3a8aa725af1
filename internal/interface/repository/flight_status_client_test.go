package repository

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
	"github.com/Matthias0x44/RyUnfair/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flightServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/flights", r.URL.Path)
		assert.Equal(t, "FR1234", r.URL.Query().Get("flight_iata"))
		assert.Equal(t, "2026-03-01", r.URL.Query().Get("flight_date"))
		assert.Equal(t, "key-1", r.URL.Query().Get("access_key"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPFlightStatusClient_Lookup(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus entity.FlightStatus
		wantDelay  int
		wantErr    bool
	}{
		{
			name:       "landed late",
			status:     http.StatusOK,
			body:       `{"data":[{"flight_date":"2026-03-01","flight_status":"landed","arrival":{"iata":"DUB","delay":195}}]}`,
			wantStatus: entity.FlightCompleted,
			wantDelay:  195,
		},
		{
			name:       "airborne without delay",
			status:     http.StatusOK,
			body:       `{"data":[{"flight_date":"2026-03-01","flight_status":"active","arrival":{"iata":"DUB","delay":null}}]}`,
			wantStatus: entity.FlightTracking,
			wantDelay:  0,
		},
		{name: "no data", status: http.StatusOK, body: `{"data":[]}`, wantErr: true},
		{name: "api error", status: http.StatusOK, body: `{"error":{"code":"usage_limit_reached","message":"limit"}}`, wantErr: true},
		{name: "server error", status: http.StatusBadGateway, body: `oops`, wantErr: true},
		{name: "bad json", status: http.StatusOK, body: `{`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := flightServer(t, tt.status, tt.body)
			c := NewHTTPFlightStatusClient(srv.URL+"/", "key-1", time.Second, logger.NewNop())

			got, err := c.Lookup(context.Background(), "FR1234", "2026-03-01")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantDelay, got.DelayMinutes)
			assert.False(t, got.Synthetic)
		})
	}
}

func TestHTTPFlightStatusClient_NoDataIsNotFound(t *testing.T) {
	srv := flightServer(t, http.StatusOK, `{"data":[]}`)
	c := NewHTTPFlightStatusClient(srv.URL, "key-1", time.Second, logger.NewNop())

	_, err := c.Lookup(context.Background(), "FR1234", "2026-03-01")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

type failingProvider struct{}

func (failingProvider) Lookup(context.Context, string, string) (*entity.FlightStatusReport, error) {
	return nil, errors.New("timeout")
}

func TestFallbackFlightStatusProvider(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	p := NewFallbackFlightStatusProvider(failingProvider{}, logger.NewNop())
	p.now = func() time.Time { return now }

	past, err := p.Lookup(context.Background(), "FR1234", "2026-03-04")
	require.NoError(t, err)
	assert.True(t, past.Synthetic)
	assert.Equal(t, entity.FlightCompleted, past.Status)
	assert.Zero(t, past.DelayMinutes)

	today, err := p.Lookup(context.Background(), "FR1234", "2026-03-05")
	require.NoError(t, err)
	assert.Equal(t, entity.FlightTracking, today.Status)

	_, err = p.Lookup(context.Background(), "FR1234", "05/03/2026")
	assert.ErrorIs(t, err, entity.ErrInvalidInput)
}

func TestFallbackFlightStatusProvider_PrimaryWins(t *testing.T) {
	srv := flightServer(t, http.StatusOK, `{"data":[{"flight_status":"landed","arrival":{"delay":240}}]}`)
	p := NewFallbackFlightStatusProvider(NewHTTPFlightStatusClient(srv.URL, "key-1", time.Second, logger.NewNop()), logger.NewNop())

	got, err := p.Lookup(context.Background(), "FR1234", "2026-03-01")
	require.NoError(t, err)
	assert.False(t, got.Synthetic)
	assert.Equal(t, 240, got.DelayMinutes)
}

func TestFallbackFlightStatusProvider_NoPrimary(t *testing.T) {
	p := NewFallbackFlightStatusProvider(nil, logger.NewNop())
	got, err := p.Lookup(context.Background(), "FR1234", "2000-01-01")
	require.NoError(t, err)
	assert.True(t, got.Synthetic)
	assert.Equal(t, entity.FlightCompleted, got.Status)
}
