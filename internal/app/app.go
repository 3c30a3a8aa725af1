// Package app constructs every collaborator once per process and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Matthias0x44/RyUnfair/internal/domain/repository"
	"github.com/Matthias0x44/RyUnfair/internal/infrastructure/config"
	"github.com/Matthias0x44/RyUnfair/internal/infrastructure/lock"
	"github.com/Matthias0x44/RyUnfair/internal/infrastructure/oauth"
	"github.com/Matthias0x44/RyUnfair/internal/infrastructure/persistence"
	"github.com/Matthias0x44/RyUnfair/internal/infrastructure/router"
	"github.com/Matthias0x44/RyUnfair/internal/interface/api"
	"github.com/Matthias0x44/RyUnfair/internal/interface/gmail"
	repo "github.com/Matthias0x44/RyUnfair/internal/interface/repository"
	"github.com/Matthias0x44/RyUnfair/internal/interface/ses"
	"github.com/Matthias0x44/RyUnfair/internal/usecase"
	"github.com/Matthias0x44/RyUnfair/pkg/logger"
	"github.com/Matthias0x44/RyUnfair/pkg/metrics"
	"github.com/Matthias0x44/RyUnfair/templates"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	metricsNamespace = "ryunfair"
	dispatchLockKey  = "ryunfair:dispatch:lock"
)

// App holds the wired services of one process
type App struct {
	Accounts   *usecase.AccountService
	Lifecycle  *usecase.LifecycleManager
	Dispatcher *usecase.Dispatcher
	Tracker    *usecase.FlightTracker
	Handler    http.Handler
	Registry   *prometheus.Registry

	closers []func(ctx context.Context) error
	logger  logger.Logger
}

// Build connects to every store and wires the services. On error everything
// opened so far is closed again.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	a := &App{logger: log}
	if err := a.wire(ctx, cfg, log); err != nil {
		a.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	log.Info("Connecting to MongoDB")
	mongoClient, db, err := persistence.OpenMongo(ctx, persistence.MongoSettings{
		URI:      cfg.MongoURI,
		Database: cfg.MongoDB,
		Username: cfg.MongoUser,
		Password: cfg.MongoPassword,
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, mongoClient.Disconnect)

	log.Info("Connecting to PostgreSQL")
	gormDB, err := persistence.OpenPostgres(ctx, cfg.PostgresURI)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func(context.Context) error { return persistence.ClosePostgres(gormDB) })

	flights := repo.NewMongoFlightRecordRepository(db)
	notifications := repo.NewMongoNotificationRepository(db)
	if err := flights.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := notifications.EnsureIndexes(ctx); err != nil {
		return err
	}
	users := repo.NewGormUserRepository(gormDB)
	airports := repo.NewGormAirportRepository(gormDB)
	airlines := repo.NewGormAirlineRepository(gormDB)

	sender, err := newSender(ctx, cfg, log)
	if err != nil {
		return err
	}

	runLock, err := a.newRunLock(ctx, cfg, log)
	if err != nil {
		return err
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(metricsNamespace, a.Registry)

	kinds := router.NewKindRouter(log)
	for _, tmpl := range templates.All() {
		kinds.Register(tmpl)
	}

	a.Lifecycle = usecase.NewLifecycleManager(flights, notifications, users, airports, newFlightStatusProvider(cfg, log), m, log,
		usecase.LifecycleConfig{
			FollowupFirst: time.Duration(cfg.FollowupFirstDays) * 24 * time.Hour,
			FollowupFinal: time.Duration(cfg.FollowupFinalDays) * 24 * time.Hour,
		})
	a.Accounts = usecase.NewAccountService(users, notifications, a.Lifecycle, m, log)
	a.Tracker = usecase.NewFlightTracker(flights, a.Lifecycle, m, log)

	builder := usecase.NewMessageBuilder(flights, airlines, cfg.PublicBaseURL, cfg.DonationPercent, log)
	a.Dispatcher = usecase.NewDispatcher(notifications, users, kinds, builder, sender, runLock, m, log,
		usecase.DispatcherConfig{
			BatchSize:         cfg.DispatchBatchSize,
			SendTimeout:       cfg.SendTimeout,
			ClaimStaleAfter:   cfg.ClaimStaleAfter,
			SendRatePerSecond: cfg.SendRatePerSecond,
		})

	h := api.NewHandler(a.Accounts, a.Lifecycle, a.Dispatcher, log, cfg.AppVersion)
	a.Handler = api.NewRouter(h, log, api.RouterConfig{
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		DispatchSecret:  cfg.DispatchSecret,
		DispatchTimeout: cfg.DispatchRunTimeout(),
		Gatherer:        a.Registry,
	})
	return nil
}

func newSender(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.EmailSender, error) {
	switch cfg.EmailProvider {
	case config.EmailProviderGmail:
		auth := oauth.NewGmailOAuth(cfg.GmailClientID, cfg.GmailClientSecret, cfg.GmailRefreshToken, log)
		return gmail.NewSender(ctx, auth.TokenSource(ctx), cfg.EmailFrom, log)
	case config.EmailProviderSES:
		return ses.NewSender(ctx, cfg.SESRegion, cfg.EmailFrom, log)
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.EmailProvider)
	}
}

// newFlightStatusProvider returns the estimate-only provider when no flight API is configured.
func newFlightStatusProvider(cfg *config.Config, log logger.Logger) repository.FlightStatusProvider {
	if cfg.FlightAPIURL == "" {
		log.Warn("FLIGHT_API_URL not set, flight status will be estimated")
		return repo.NewFallbackFlightStatusProvider(nil, log)
	}
	client := repo.NewHTTPFlightStatusClient(cfg.FlightAPIURL, cfg.FlightAPIKey, cfg.FlightAPITimeout, log)
	return repo.NewFallbackFlightStatusProvider(client, log)
}

func (a *App) newRunLock(ctx context.Context, cfg *config.Config, log logger.Logger) (usecase.RunLock, error) {
	client, err := persistence.OpenRedis(ctx, persistence.RedisSettings{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, err
	}
	if client == nil {
		log.Info("REDIS_ADDR not set, dispatcher runs are guarded in-process only")
		return lock.NewLocalLock(), nil
	}
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	return lock.NewRedisLock(client, dispatchLockKey, cfg.DispatchRunTimeout()), nil
}

// Close releases every connection in reverse order of opening
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Error("Failed to close resource", "error", err)
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
