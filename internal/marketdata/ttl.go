package marketdata

import "time"

// TTL constants per data class. These define how long a fetched payload is
// considered fresh; after that it is served stale while a background
// refresh runs. The policy is global and immutable at runtime.
const (
	// Monthly bars only gain a new data point once a month
	TTLMonthly = 30 * 24 * time.Hour

	// Daily bars gain a new data point once per trading day
	TTLDaily = 24 * time.Hour

	// Quotes move constantly; 5 minutes is fresh enough for an expense app
	TTLQuote = 5 * time.Minute
)

// TTLFor returns the freshness window for a data class.
func TTLFor(class DataClass) time.Duration {
	switch class {
	case ClassMonthly:
		return TTLMonthly
	case ClassDaily:
		return TTLDaily
	case ClassQuote:
		return TTLQuote
	default:
		// Unknown classes are never considered fresh
		return 0
	}
}
