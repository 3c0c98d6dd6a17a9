package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AhmedIkram05/StockLens-sub001/internal/clients/alphavantage"
	"github.com/AhmedIkram05/StockLens-sub001/internal/events"
	"github.com/AhmedIkram05/StockLens-sub001/internal/marketdata"
)

// stubProvider is a minimal Provider for handler tests.
type stubProvider struct {
	payload  []byte
	fetchErr error
	decoded  interface{}
}

func (p *stubProvider) Fetch(ctx context.Context, symbol string, class marketdata.DataClass) ([]byte, error) {
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return p.payload, nil
}

func (p *stubProvider) Decode(class marketdata.DataClass, payload []byte) (interface{}, error) {
	return p.decoded, nil
}

// stubStore is an always-empty Store.
type stubStore struct{}

func (s *stubStore) Get(key marketdata.Key) (marketdata.Record, bool, error) {
	return marketdata.Record{}, false, nil
}

func (s *stubStore) Put(rec marketdata.Record) error {
	return nil
}

func newTestRouter(provider marketdata.Provider) *chi.Mux {
	bus := events.NewBus(zerolog.Nop())
	svc := marketdata.NewService(provider, &stubStore{}, bus, zerolog.Nop())
	handlers := NewMarketHandlers(svc, zerolog.Nop())

	r := chi.NewRouter()
	r.Route("/api/market/{symbol}", func(r chi.Router) {
		r.Get("/monthly", handlers.HandleMonthly)
		r.Get("/daily", handlers.HandleDaily)
		r.Get("/quote", handlers.HandleQuote)
	})
	return r
}

func TestHandleQuote(t *testing.T) {
	provider := &stubProvider{
		payload: []byte(`{"raw": true}`),
		decoded: marketdata.Quote{Symbol: "AAPL", Price: 185.50},
	}
	router := newTestRouter(provider)

	req := httptest.NewRequest(http.MethodGet, "/api/market/aapl/quote", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Symbol   string           `json:"symbol"`
		Interval string           `json:"interval"`
		Data     marketdata.Quote `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "AAPL", body.Symbol, "symbol is normalized to upper case")
	assert.Equal(t, "quote", body.Interval)
	assert.Equal(t, 185.50, body.Data.Price)
}

func TestHandleMonthly(t *testing.T) {
	provider := &stubProvider{
		payload: []byte(`{"raw": true}`),
		decoded: marketdata.Series{{Close: 184.40}},
	}
	router := newTestRouter(provider)

	req := httptest.NewRequest(http.MethodGet, "/api/market/AAPL/monthly", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Interval string            `json:"interval"`
		Data     marketdata.Series `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "monthly", body.Interval)
	require.Len(t, body.Data, 1)
	assert.Equal(t, 184.40, body.Data[0].Close)
}

func TestHandleFetchUpstreamFailure(t *testing.T) {
	provider := &stubProvider{fetchErr: errors.New("connection refused")}
	router := newTestRouter(provider)

	req := httptest.NewRequest(http.MethodGet, "/api/market/AAPL/daily", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"missing API key", alphavantage.ErrMissingAPIKey{}, http.StatusServiceUnavailable},
		{"rate limit", alphavantage.ErrRateLimitExceeded{}, http.StatusTooManyRequests},
		{"API error", alphavantage.APIError{Message: "bad symbol"}, http.StatusBadGateway},
		{"generic", errors.New("boom"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, statusForError(tt.err))
		})
	}
}
