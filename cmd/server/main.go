// Package main is the entry point for the StockLens market data service.
// It serves stock quotes and price history to the mobile app through a
// two-tier cache (in-process memory over SQLite), going to the upstream
// provider only on a true miss and refreshing stale data in the background.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/AhmedIkram05/StockLens-sub001/internal/clients/alphavantage"
	"github.com/AhmedIkram05/StockLens-sub001/internal/config"
	"github.com/AhmedIkram05/StockLens-sub001/internal/database"
	"github.com/AhmedIkram05/StockLens-sub001/internal/events"
	"github.com/AhmedIkram05/StockLens-sub001/internal/marketdata"
	"github.com/AhmedIkram05/StockLens-sub001/internal/marketstore"
	"github.com/AhmedIkram05/StockLens-sub001/internal/server"
	"github.com/AhmedIkram05/StockLens-sub001/pkg/logger"
)

func main() {
	// Load configuration first to get log level. A missing API key is not
	// fatal here: cached data keeps being served without one.
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting StockLens market data service")

	if cfg.AlphaVantageAPIKey == "" {
		log.Warn().Msg("ALPHAVANTAGE_API_KEY not set - serving cached data only, fetches will fail")
	}

	// Cache database: every row can be refetched from upstream, so the
	// cache profile trades durability guarantees for speed
	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "market_data.db"),
		Profile: database.ProfileCache,
		Name:    "market_data",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	repo := marketstore.NewRepository(cacheDB.Conn())
	if err := repo.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate cache database")
	}

	// Upstream client
	avClient := alphavantage.NewClient(cfg.AlphaVantageAPIKey, log)
	if cfg.AlphaVantageURL != "" {
		avClient.SetBaseURL(cfg.AlphaVantageURL)
		log.Info().Str("base_url", cfg.AlphaVantageURL).Msg("Using custom upstream base URL")
	}

	// Event bus and cache facade
	eventBus := events.NewBus(log)
	marketService := marketdata.NewService(avClient, repo, eventBus, log)

	// Scheduled maintenance: retention cleanup, WAL truncation and an
	// integrity check nightly; request budget reset at the upstream's
	// midnight-UTC quota rollover
	cleanupJob := marketstore.NewCleanupJob(repo, log)
	scheduler := cron.New(cron.WithLocation(time.UTC))
	if _, err := scheduler.AddFunc("0 4 * * *", func() {
		if err := cleanupJob.Run(); err != nil {
			log.Error().Err(err).Str("job", cleanupJob.Name()).Msg("Scheduled job failed")
		}
		if err := cacheDB.WALCheckpoint("TRUNCATE"); err != nil {
			log.Error().Err(err).Msg("WAL checkpoint failed")
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := cacheDB.HealthCheck(ctx); err != nil {
			log.Error().Err(err).Msg("Database integrity check failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule cleanup job")
	}
	if _, err := scheduler.AddFunc("0 0 * * *", avClient.ResetDailyCounter); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule request counter reset")
	}
	scheduler.Start()

	// HTTP server
	srv := server.New(server.Config{
		Log:        log,
		CacheDB:    cacheDB,
		MarketData: marketService,
		Store:      repo,
		Client:     avClient,
		EventBus:   eventBus,
		Port:       cfg.Port,
		DevMode:    cfg.DevMode,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	// Wait for shutdown signal or server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server stopped unexpectedly")
	}

	// Graceful shutdown: stop scheduling new jobs, drain in-flight HTTP
	// requests, then close the database so WAL checkpoints are written
	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("StockLens market data service stopped")
}
