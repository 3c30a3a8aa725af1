// Package api exposes accounts, flight tracking and the dispatcher over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Matthias0x44/RyUnfair/internal/domain/eligibility"
	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
	"github.com/Matthias0x44/RyUnfair/internal/usecase"
	"github.com/Matthias0x44/RyUnfair/pkg/logger"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

// Accounts is the subscriber surface of usecase.AccountService
type Accounts interface {
	RegisterUser(ctx context.Context, email string) (*entity.User, error)
	VerifyEmail(ctx context.Context, token string) (*entity.User, error)
	Unsubscribe(ctx context.Context, userID string) (int64, error)
	UnsubscribeByToken(ctx context.Context, token string) (int64, error)
	EraseUser(ctx context.Context, userID string) (int64, error)
}

// Flights is the tracking surface of usecase.LifecycleManager
type Flights interface {
	TrackFlight(ctx context.Context, in usecase.TrackFlightInput) (*entity.FlightRecord, error)
	RefreshFlight(ctx context.Context, flightID string) (*entity.FlightRecord, error)
	ApplyFlightUpdate(ctx context.Context, flightID string, update entity.FlightStatusReport) (*entity.FlightRecord, error)
}

// Dispatch is the operator surface of usecase.Dispatcher
type Dispatch interface {
	RunOnce(ctx context.Context) (entity.BatchResult, error)
	Requeue(ctx context.Context, notificationID string) error
}

// Handler holds the collaborators of every endpoint
type Handler struct {
	accounts Accounts
	flights  Flights
	dispatch Dispatch
	logger   logger.Logger
	version  string
}

// NewHandler creates a new handler
func NewHandler(accounts Accounts, flights Flights, dispatch Dispatch, logger logger.Logger, version string) *Handler {
	return &Handler{
		accounts: accounts,
		flights:  flights,
		dispatch: dispatch,
		logger:   logger.With("component", "api"),
		version:  version,
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request error", "path", r.URL.Path, "error", err)
		message = "internal server error"
	}
	writeError(w, status, code, message)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "request body must be valid JSON")
		return false
	}
	return true
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type registerRequest struct {
	Email string `json:"email"`
}

type userResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
}

func toUserResponse(u *entity.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, EmailVerified: u.EmailVerified}
}

// RegisterUser handles POST /api/v1/users
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := h.accounts.RegisterUser(r.Context(), req.Email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// VerifyEmail handles GET /api/v1/users/verify?token=
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil && user == nil {
		h.fail(w, r, err)
		return
	}
	if err != nil {
		h.logger.Warn("Email verified with scheduling errors", "userID", user.ID, "error", err)
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

type unsubscribeResponse struct {
	Cancelled int64 `json:"cancelled"`
}

// UnsubscribeByToken handles GET /api/v1/users/unsubscribe?token=, the link in every email
func (h *Handler) UnsubscribeByToken(w http.ResponseWriter, r *http.Request) {
	cancelled, err := h.accounts.UnsubscribeByToken(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, unsubscribeResponse{Cancelled: cancelled})
}

// Unsubscribe handles POST /api/v1/users/{userID}/unsubscribe
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	cancelled, err := h.accounts.Unsubscribe(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, unsubscribeResponse{Cancelled: cancelled})
}

// EraseUser handles DELETE /api/v1/users/{userID}
func (h *Handler) EraseUser(w http.ResponseWriter, r *http.Request) {
	cancelled, err := h.accounts.EraseUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, unsubscribeResponse{Cancelled: cancelled})
}

// TrackFlight handles POST /api/v1/flights
func (h *Handler) TrackFlight(w http.ResponseWriter, r *http.Request) {
	var req usecase.TrackFlightInput
	if !decode(w, r, &req) {
		return
	}
	record, err := h.flights.TrackFlight(r.Context(), req)
	if err != nil && record == nil {
		h.fail(w, r, err)
		return
	}
	if err != nil {
		// The flight is stored; scheduling is repaired by the next update.
		h.logger.Warn("Flight tracked with scheduling errors", "flightID", record.ID, "error", err)
	}
	writeJSON(w, http.StatusCreated, record)
}

// RefreshFlight handles POST /api/v1/flights/{flightID}/refresh
func (h *Handler) RefreshFlight(w http.ResponseWriter, r *http.Request) {
	record, err := h.flights.RefreshFlight(r.Context(), chi.URLParam(r, "flightID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type statusUpdateRequest struct {
	Status       entity.FlightStatus `json:"status"`
	DelayMinutes int                 `json:"delayMinutes"`
}

// UpdateFlightStatus handles POST /api/v1/flights/{flightID}/status
func (h *Handler) UpdateFlightStatus(w http.ResponseWriter, r *http.Request) {
	var req statusUpdateRequest
	if !decode(w, r, &req) {
		return
	}
	record, err := h.flights.ApplyFlightUpdate(r.Context(), chi.URLParam(r, "flightID"), entity.FlightStatusReport{
		Status:       req.Status,
		DelayMinutes: req.DelayMinutes,
	})
	if err != nil && record == nil {
		h.fail(w, r, err)
		return
	}
	if err != nil {
		h.logger.Warn("Flight updated with scheduling errors", "flightID", record.ID, "error", err)
	}
	writeJSON(w, http.StatusOK, record)
}

type verdictResponse struct {
	Eligible   bool   `json:"eligible"`
	Amount     int    `json:"amount"`
	Currency   string `json:"currency"`
	Regulation string `json:"regulation"`
	Reason     string `json:"reason"`
}

// Eligibility handles GET /api/v1/eligibility?distanceKm=&delayMinutes=&departure=&arrival=
func (h *Handler) Eligibility(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	distance, err := strconv.ParseFloat(q.Get("distanceKm"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "distanceKm must be a number")
		return
	}
	delay, err := strconv.Atoi(q.Get("delayMinutes"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "delayMinutes must be an integer")
		return
	}

	v, err := eligibility.Evaluate(distance, delay,
		eligibility.CountryCode(q.Get("departure")), eligibility.CountryCode(q.Get("arrival")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verdictResponse{
		Eligible:   v.Eligible,
		Amount:     v.Amount,
		Currency:   string(v.Currency),
		Regulation: v.Regulation(),
		Reason:     v.Reason,
	})
}

// Dispatch handles POST /api/v1/dispatch
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	result, err := h.dispatch.RunOnce(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Requeue handles POST /api/v1/notifications/{notificationID}/requeue
func (h *Handler) Requeue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "notificationID")
	if err := h.dispatch.Requeue(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(entity.NotificationPending)})
}
