package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/AhmedIkram05/StockLens-sub001/internal/events"
)

// refreshTimeout bounds a background refresh, which outlives the request
// that scheduled it and therefore cannot inherit a caller context.
const refreshTimeout = 30 * time.Second

// Service is the cache facade. It orchestrates the memory tier, the durable
// store, the upstream provider and the refresh coordinator into the three
// public fetch operations, applying the per-class TTL policy.
//
// A caller only ever receives an error when no cached data exists (fresh or
// stale) and the synchronous upstream fetch also failed; in every other
// case stale data is preferred over surfacing an error.
type Service struct {
	provider Provider
	store    Store
	memory   *MemoryCache
	refresh  *Coordinator
	bus      *events.Bus
	log      zerolog.Logger
}

// NewService creates the cache facade. Construct once at startup and share:
// the memory tier and the in-flight registry are the process-wide state.
func NewService(provider Provider, store Store, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		provider: provider,
		store:    store,
		memory:   NewMemoryCache(),
		refresh:  NewCoordinator(bus, log),
		bus:      bus,
		log:      log.With().Str("component", "marketdata").Logger(),
	}
}

// FetchMonthly returns the monthly price series for a symbol.
func (s *Service) FetchMonthly(ctx context.Context, symbol string) (Series, error) {
	value, err := s.Fetch(ctx, symbol, ClassMonthly)
	if err != nil {
		return nil, err
	}
	return value.(Series), nil
}

// FetchDaily returns the daily price series for a symbol.
func (s *Service) FetchDaily(ctx context.Context, symbol string) (Series, error) {
	value, err := s.Fetch(ctx, symbol, ClassDaily)
	if err != nil {
		return nil, err
	}
	return value.(Series), nil
}

// FetchQuote returns the current quote for a symbol.
func (s *Service) FetchQuote(ctx context.Context, symbol string) (Quote, error) {
	value, err := s.Fetch(ctx, symbol, ClassQuote)
	if err != nil {
		return Quote{}, err
	}
	return value.(Quote), nil
}

// Fetch serves (symbol, class) through the cache tiers:
//
//  1. Unexpired memory entry: returned immediately, no I/O.
//  2. No durable record: synchronous upstream fetch populating both tiers;
//     a failure here is returned to the caller.
//  3. Fresh durable record: decoded, memory populated, returned.
//  4. Stale durable record: returned immediately while a deduplicated
//     background refresh is scheduled. The caller never blocks on it.
//
// A corrupt durable payload and a failed store read are both treated as a
// miss (fail open).
func (s *Service) Fetch(ctx context.Context, symbol string, class DataClass) (interface{}, error) {
	if !class.Valid() {
		return nil, fmt.Errorf("unknown data class: %q", class)
	}

	key := Key{Symbol: symbol, Class: class}
	now := time.Now()

	// Fast path: unexpired memory entry
	if value, ok := s.memory.Get(key); ok {
		s.publishCacheHit(key, false)
		return value, nil
	}

	rec, found, err := s.store.Get(key)
	if err != nil {
		// Fail open: prefer a network fetch over blocking on storage errors
		s.log.Warn().Err(err).Str("key", key.String()).Msg("Durable store read failed, treating as miss")
		found = false
	}
	if !found {
		return s.fetchSync(ctx, key, now)
	}

	ttl := TTLFor(class)
	expiresAt := rec.FetchedAt.Add(ttl)

	if now.Sub(rec.FetchedAt) < ttl {
		value, decodeErr := s.provider.Decode(class, rec.Payload)
		if decodeErr != nil {
			s.log.Warn().Err(decodeErr).Str("key", key.String()).Msg("Cached payload failed to decode, refetching")
			return s.fetchSync(ctx, key, now)
		}
		s.memory.Set(key, value, expiresAt)
		s.publishCacheHit(key, false)
		return value, nil
	}

	// Stale record. Reuse the already-decoded value when the memory tier
	// still holds this payload's generation; decode at most once otherwise.
	value, memExpiry, ok := s.memory.GetStale(key)
	if !ok || !memExpiry.Equal(expiresAt) {
		var decodeErr error
		value, decodeErr = s.provider.Decode(class, rec.Payload)
		if decodeErr != nil {
			s.log.Warn().Err(decodeErr).Str("key", key.String()).Msg("Stale payload failed to decode, refetching")
			return s.fetchSync(ctx, key, now)
		}
		// Keep the old expiry so the entry stays marked stale
		s.memory.Set(key, value, expiresAt)
	}

	s.publishCacheHit(key, true)
	s.refresh.Schedule(key, s.refreshFn(key))

	return value, nil
}

// fetchSync performs the synchronous miss path: upstream fetch, decode and
// population of both tiers. A failed durable write is non-fatal because the
// in-memory value remains valid for this process's lifetime.
func (s *Service) fetchSync(ctx context.Context, key Key, now time.Time) (interface{}, error) {
	payload, err := s.provider.Fetch(ctx, key.Symbol, key.Class)
	if err != nil {
		return nil, err
	}

	value, err := s.provider.Decode(key.Class, payload)
	if err != nil {
		return nil, fmt.Errorf("decode upstream response for %s: %w", key.String(), err)
	}

	if err := s.store.Put(Record{Key: key, Payload: payload, FetchedAt: now}); err != nil {
		s.log.Warn().Err(err).Str("key", key.String()).Msg("Durable store write failed, serving from memory only")
	}

	s.memory.Set(key, value, now.Add(TTLFor(key.Class)))

	s.log.Info().
		Str("symbol", key.Symbol).
		Str("interval", string(key.Class)).
		Msg("Fetched from upstream")

	return value, nil
}

// refreshFn builds the work a background refresh performs for a key.
func (s *Service) refreshFn(key Key) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		payload, err := s.provider.Fetch(ctx, key.Symbol, key.Class)
		if err != nil {
			return err
		}

		value, err := s.provider.Decode(key.Class, payload)
		if err != nil {
			return err
		}

		now := time.Now()
		if err := s.store.Put(Record{Key: key, Payload: payload, FetchedAt: now}); err != nil {
			// Non-fatal: readers still see the refreshed value via memory
			s.log.Warn().Err(err).Str("key", key.String()).Msg("Durable store write failed during refresh")
		}

		s.memory.Set(key, value, now.Add(TTLFor(key.Class)))
		return nil
	}
}

func (s *Service) publishCacheHit(key Key, stale bool) {
	s.bus.Publish(events.CacheHit, "marketdata", &events.CacheHitData{
		Symbol:   key.Symbol,
		Interval: string(key.Class),
		Stale:    stale,
	})
}
