package api

import (
	"net/http"
	"time"

	"github.com/Matthias0x44/RyUnfair/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	corslib "github.com/rs/cors"
)

// RouterConfig holds the settings the router needs besides the handler
type RouterConfig struct {
	AllowedOrigins []string
	DispatchSecret string
	// DispatchTimeout is the write deadline of POST /dispatch, which may
	// run longer than the server's WriteTimeout.
	DispatchTimeout time.Duration
	Gatherer        prometheus.Gatherer
}

// NewRouter creates the chi router with all middleware and routes
func NewRouter(h *Handler, log logger.Logger, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)

	c := corslib.New(corslib.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
	})
	r.Use(c.Handler)

	r.Get("/health", h.Health)

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/eligibility", h.Eligibility)

		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.RegisterUser)
			r.Get("/verify", h.VerifyEmail)
			r.Get("/unsubscribe", h.UnsubscribeByToken)

			r.Group(func(r chi.Router) {
				r.Use(RequireSecret(cfg.DispatchSecret))
				r.Post("/{userID}/unsubscribe", h.Unsubscribe)
				r.Delete("/{userID}", h.EraseUser)
			})
		})

		r.Route("/flights", func(r chi.Router) {
			r.Post("/", h.TrackFlight)
			r.Post("/{flightID}/refresh", h.RefreshFlight)
			r.With(RequireSecret(cfg.DispatchSecret)).Post("/{flightID}/status", h.UpdateFlightStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireSecret(cfg.DispatchSecret))
			r.With(WriteDeadline(cfg.DispatchTimeout)).Post("/dispatch", h.Dispatch)
			r.Post("/notifications/{notificationID}/requeue", h.Requeue)
		})
	})

	return r
}
