package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/AhmedIkram05/StockLens-sub001/internal/clients/alphavantage"
	"github.com/AhmedIkram05/StockLens-sub001/internal/database"
	"github.com/AhmedIkram05/StockLens-sub001/internal/marketstore"
)

// SystemHandlers serves system monitoring endpoints.
type SystemHandlers struct {
	log       zerolog.Logger
	cacheDB   *database.DB
	store     *marketstore.Repository
	client    *alphavantage.Client
	startTime time.Time
}

// NewSystemHandlers creates system monitoring handlers.
func NewSystemHandlers(log zerolog.Logger, cacheDB *database.DB, store *marketstore.Repository, client *alphavantage.Client) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("component", "system_handlers").Logger(),
		cacheDB:   cacheDB,
		store:     store,
		client:    client,
		startTime: time.Now(),
	}
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":         "running",
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"timestamp":      time.Now().Format(time.RFC3339),
	}

	// CPU usage (sampled over 100ms)
	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		status["cpu_percent"] = cpuPercent[0]
	}

	// Memory usage
	if vmStat, err := mem.VirtualMemory(); err == nil {
		status["memory"] = map[string]interface{}{
			"total_mb":     vmStat.Total / 1024 / 1024,
			"used_mb":      vmStat.Used / 1024 / 1024,
			"used_percent": vmStat.UsedPercent,
		}
	}

	// Cache contents per data class
	if cacheStats, err := h.store.Stats(); err == nil {
		status["cache_rows"] = cacheStats
	} else {
		h.log.Warn().Err(err).Msg("Failed to read cache stats")
	}

	// Upstream request budget
	status["upstream"] = map[string]interface{}{
		"remaining_requests": h.client.GetRemainingRequests(),
	}

	// Database health (quick ping only, integrity check is too expensive
	// for a status endpoint)
	dbHealthy := h.cacheDB.QuickCheck(r.Context()) == nil
	status["database_healthy"] = dbHealthy

	writeJSON(w, http.StatusOK, status)
}

// HandleDatabaseStats handles GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cacheDB.GetStats()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get database stats")
		writeError(w, http.StatusInternalServerError, "failed to get database stats")
		return
	}

	rows, err := h.store.Stats()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get cache row stats")
		writeError(w, http.StatusInternalServerError, "failed to get cache row stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":           h.cacheDB.Name(),
		"path":           h.cacheDB.Path(),
		"profile":        string(h.cacheDB.Profile()),
		"size_bytes":     stats.SizeBytes,
		"wal_size_bytes": stats.WALSizeBytes,
		"page_count":     stats.PageCount,
		"page_size":      stats.PageSize,
		"rows_per_class": rows,
	})
}
