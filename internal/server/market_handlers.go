package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/AhmedIkram05/StockLens-sub001/internal/clients/alphavantage"
	"github.com/AhmedIkram05/StockLens-sub001/internal/marketdata"
)

// MarketHandlers serves cached market data over HTTP.
type MarketHandlers struct {
	svc *marketdata.Service
	log zerolog.Logger
}

// NewMarketHandlers creates market data handlers.
func NewMarketHandlers(svc *marketdata.Service, log zerolog.Logger) *MarketHandlers {
	return &MarketHandlers{
		svc: svc,
		log: log.With().Str("component", "market_handlers").Logger(),
	}
}

// HandleMonthly handles GET /api/market/{symbol}/monthly
func (h *MarketHandlers) HandleMonthly(w http.ResponseWriter, r *http.Request) {
	h.handleFetch(w, r, marketdata.ClassMonthly)
}

// HandleDaily handles GET /api/market/{symbol}/daily
func (h *MarketHandlers) HandleDaily(w http.ResponseWriter, r *http.Request) {
	h.handleFetch(w, r, marketdata.ClassDaily)
}

// HandleQuote handles GET /api/market/{symbol}/quote
func (h *MarketHandlers) HandleQuote(w http.ResponseWriter, r *http.Request) {
	h.handleFetch(w, r, marketdata.ClassQuote)
}

func (h *MarketHandlers) handleFetch(w http.ResponseWriter, r *http.Request, class marketdata.DataClass) {
	symbol := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	value, err := h.svc.Fetch(r.Context(), symbol, class)
	if err != nil {
		h.log.Error().Err(err).
			Str("symbol", symbol).
			Str("interval", string(class)).
			Msg("Failed to fetch market data")
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":   symbol,
		"interval": string(class),
		"data":     value,
	})
}

// statusForError maps upstream failure modes to HTTP statuses. Errors only
// reach a handler when no cached data existed, so all of these are genuine
// fetch failures.
func statusForError(err error) int {
	switch {
	case errors.As(err, &alphavantage.ErrMissingAPIKey{}):
		return http.StatusServiceUnavailable
	case errors.As(err, &alphavantage.ErrRateLimitExceeded{}):
		return http.StatusTooManyRequests
	case errors.As(err, &alphavantage.APIError{}):
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}
