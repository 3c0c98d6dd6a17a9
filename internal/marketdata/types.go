// Package marketdata implements the two-tier read-through cache that sits
// between the app and the upstream quote/history provider. It serves parsed
// market data from memory when possible, falls back to the durable store,
// and only goes to the network on a true miss - stale data is served
// immediately while a deduplicated background refresh brings it up to date.
package marketdata

import (
	"context"
	"fmt"
	"time"
)

// DataClass identifies the kind of market data a cache entry holds.
// The string values appear verbatim as the "interval" field of events.
type DataClass string

const (
	ClassMonthly DataClass = "monthly"
	ClassDaily   DataClass = "daily"
	ClassQuote   DataClass = "quote"
)

// Valid reports whether the class is one of the known data classes.
func (c DataClass) Valid() bool {
	switch c {
	case ClassMonthly, ClassDaily, ClassQuote:
		return true
	}
	return false
}

// Key is the composite cache key. Keys are opaque and stable: the same key
// addresses the memory tier, the durable tier and the in-flight registry.
type Key struct {
	Symbol string
	Class  DataClass
	Params string // reserved for future query variants
}

// String returns the stable composite form used for map lookups and logs.
func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Symbol, k.Class, k.Params)
}

// Record is the durable representation of a cached upstream response.
// Payload is the raw response body and the single source of truth - parsed
// views are always re-derivable from it, so decode logic can change without
// invalidating the durable cache.
type Record struct {
	Key       Key
	Payload   []byte
	FetchedAt time.Time
}

// PricePoint is one bar of an OHLCV series.
type PricePoint struct {
	Date          time.Time `json:"date"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	AdjustedClose float64   `json:"adjusted_close"`
	Volume        int64     `json:"volume"`
}

// Series is a parsed time series, sorted newest first.
type Series []PricePoint

// Quote is a parsed real-time quote. Change and ChangePercent are nil when
// the upstream has no previous session to compare against (new listings).
type Quote struct {
	Symbol           string    `json:"symbol"`
	Price            float64   `json:"price"`
	Open             float64   `json:"open"`
	High             float64   `json:"high"`
	Low              float64   `json:"low"`
	Volume           int64     `json:"volume"`
	LatestTradingDay time.Time `json:"latest_trading_day"`
	PreviousClose    float64   `json:"previous_close"`
	Change           *float64  `json:"change"`
	ChangePercent    *float64  `json:"change_percent"`
}

// Provider is the upstream client as the cache sees it: it fetches raw
// payloads and knows how to decode them into parsed views.
type Provider interface {
	// Fetch retrieves the raw response body for a symbol and data class.
	Fetch(ctx context.Context, symbol string, class DataClass) ([]byte, error)

	// Decode parses a raw payload into a Series (monthly/daily) or Quote.
	Decode(class DataClass, payload []byte) (interface{}, error)
}

// Store is the durable tier: a persisted key -> record table that survives
// process restarts.
type Store interface {
	// Get returns the record for a key and whether one exists.
	Get(key Key) (Record, bool, error)

	// Put upserts a record, replacing any previous record for its key.
	Put(rec Record) error
}
