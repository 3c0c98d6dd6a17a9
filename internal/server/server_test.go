package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AhmedIkram05/StockLens-sub001/internal/clients/alphavantage"
	"github.com/AhmedIkram05/StockLens-sub001/internal/database"
	"github.com/AhmedIkram05/StockLens-sub001/internal/events"
	"github.com/AhmedIkram05/StockLens-sub001/internal/marketdata"
	"github.com/AhmedIkram05/StockLens-sub001/internal/marketstore"
)

// newTestServer wires a full server over a real temp-file database.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "market_data.db"),
		Profile: database.ProfileCache,
		Name:    "market_data",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := marketstore.NewRepository(db.Conn())
	require.NoError(t, repo.Migrate())

	bus := events.NewBus(zerolog.Nop())
	client := alphavantage.NewClient("test-key", zerolog.Nop())
	svc := marketdata.NewService(client, repo, bus, zerolog.Nop())

	return New(Config{
		Log:        zerolog.Nop(),
		CacheDB:    db,
		MarketData: svc,
		Store:      repo,
		Client:     client,
		EventBus:   bus,
		Port:       0,
	})
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "stocklens", body["service"])
}

func TestHandleHealthUnhealthyDatabase(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.cacheDB.Close())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body["status"])
}

func TestHandleSystemStatus(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/system/status", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, true, body["database_healthy"])

	upstream, ok := body["upstream"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(25), upstream["remaining_requests"])
}

func TestHandleDatabaseStats(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/system/database/stats", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "market_data", body["name"])
	assert.Equal(t, "cache", body["profile"])
	assert.NotEmpty(t, body["path"])
	assert.Greater(t, body["page_count"], float64(0))
}
