package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Matthias0x44/RyUnfair/internal/app"
	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
	"github.com/Matthias0x44/RyUnfair/internal/infrastructure/config"
	"github.com/Matthias0x44/RyUnfair/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger("info").Fatal("Failed to load config", "error", err)
	}

	log := logger.NewLogger(cfg.LogLevel)
	defer log.Sync()
	log.Info("Starting RyUnfair service", "version", cfg.AppVersion)

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to start", "error", err)
	}

	// Dispatcher loop
	go func() {
		ticker := time.NewTicker(cfg.DispatchInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("Dispatcher stopped")
				return
			case <-ticker.C:
				result, err := application.Dispatcher.RunOnce(ctx)
				switch {
				case errors.Is(err, entity.ErrRunInProgress):
					log.Info("Dispatch run skipped, another run holds the lock")
				case err != nil:
					log.Error("Dispatch run failed", "error", err)
				default:
					log.Debug("Dispatch run complete", "processed", result.Processed)
				}
			}
		}
	}()

	// Flight tracking loop
	go func() {
		ticker := time.NewTicker(cfg.TrackPollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("Flight tracker stopped")
				return
			case <-ticker.C:
				if _, err := application.Tracker.RefreshTracking(ctx); err != nil {
					log.Error("Error refreshing tracked flights", "error", err)
				}
			}
		}
	}()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      application.Handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	cancel()

	if err := application.Close(shutdownCtx); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	log.Info("RyUnfair service stopped")
}
