package marketstore

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/AhmedIkram05/StockLens-sub001/internal/marketdata"
)

// Retention windows per data class. Deliberately much longer than the
// freshness TTLs so stale rows survive long enough to be served while a
// refresh runs.
const (
	retentionMonthly = 365 * 24 * time.Hour
	retentionDaily   = 30 * 24 * time.Hour
	retentionQuote   = 7 * 24 * time.Hour
)

// CleanupJob removes market data rows older than their class's retention
// window. It should be scheduled to run daily.
type CleanupJob struct {
	repo *Repository
	log  zerolog.Logger
}

// NewCleanupJob creates a new market data cleanup job.
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo: repo,
		log:  log.With().Str("job", "market_data_cleanup").Logger(),
	}
}

// Run executes the cleanup job, removing rows past retention in every class.
func (j *CleanupJob) Run() error {
	now := time.Now()

	retention := map[marketdata.DataClass]time.Duration{
		marketdata.ClassMonthly: retentionMonthly,
		marketdata.ClassDaily:   retentionDaily,
		marketdata.ClassQuote:   retentionQuote,
	}

	var totalDeleted int64
	for class, window := range retention {
		deleted, err := j.repo.DeleteStale(class, now.Add(-window))
		if err != nil {
			j.log.Error().Err(err).Str("class", string(class)).Msg("Failed to delete stale market data")
			return err
		}
		if deleted > 0 {
			j.log.Info().
				Str("class", string(class)).
				Int64("deleted", deleted).
				Msg("Cleaned up stale market data rows")
			totalDeleted += deleted
		}
	}

	if totalDeleted > 0 {
		j.log.Info().
			Int64("total_deleted", totalDeleted).
			Msg("Market data cleanup completed")
	}

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "market_data_cleanup"
}
