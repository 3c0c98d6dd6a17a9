package marketdata

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/AhmedIkram05/StockLens-sub001/internal/events"
)

// Refresh is the handle for one background refresh operation.
type Refresh struct {
	ID  string
	Key Key

	done chan struct{}
	err  error // written once before done is closed
}

// Done returns a channel that is closed when the refresh completes,
// whether it succeeded or failed.
func (r *Refresh) Done() <-chan struct{} {
	return r.done
}

// Err returns the refresh error. Only valid after Done is closed.
func (r *Refresh) Err() error {
	return r.err
}

// Coordinator deduplicates concurrent background refreshes: for any key, at
// most one upstream refresh is in flight at any instant, no matter how many
// callers observed stale data concurrently.
type Coordinator struct {
	mu       sync.Mutex
	inflight map[string]*Refresh
	bus      *events.Bus
	log      zerolog.Logger
}

// NewCoordinator creates a refresh coordinator publishing completion events
// on the given bus.
func NewCoordinator(bus *events.Bus, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		inflight: make(map[string]*Refresh),
		bus:      bus,
		log:      log.With().Str("component", "refresh_coordinator").Logger(),
	}
}

// Schedule runs refreshFn for a key on a background goroutine. If a refresh
// for the key is already in flight the existing handle is returned and no
// new work is attached. The registry entry is removed unconditionally when
// the refresh completes; on success a HistoricalUpdated event is published.
//
// Refreshes are fire-and-forget from the caller's perspective: nobody is
// expected to await the handle, failures are logged rather than returned.
func (c *Coordinator) Schedule(key Key, refreshFn func() error) *Refresh {
	c.mu.Lock()
	if existing, ok := c.inflight[key.String()]; ok {
		c.mu.Unlock()
		return existing
	}

	refresh := &Refresh{
		ID:   uuid.NewString(),
		Key:  key,
		done: make(chan struct{}),
	}
	c.inflight[key.String()] = refresh
	c.mu.Unlock()

	c.log.Debug().
		Str("refresh_id", refresh.ID).
		Str("key", key.String()).
		Msg("Background refresh scheduled")

	go c.run(refresh, refreshFn)

	return refresh
}

// InFlight reports whether a refresh is currently running for the key.
func (c *Coordinator) InFlight(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.inflight[key.String()]
	return ok
}

// run executes one refresh to completion. Refreshes are not cancellable
// once started; the registry entry is cleared on every exit path.
func (c *Coordinator) run(refresh *Refresh, refreshFn func() error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().
				Str("refresh_id", refresh.ID).
				Str("key", refresh.Key.String()).
				Interface("panic", r).
				Msg("Background refresh panicked")
		}

		c.mu.Lock()
		delete(c.inflight, refresh.Key.String())
		c.mu.Unlock()

		close(refresh.done)
	}()

	if err := refreshFn(); err != nil {
		refresh.err = err
		c.log.Warn().
			Err(err).
			Str("refresh_id", refresh.ID).
			Str("key", refresh.Key.String()).
			Msg("Background refresh failed")
		return
	}

	c.log.Info().
		Str("refresh_id", refresh.ID).
		Str("symbol", refresh.Key.Symbol).
		Str("interval", string(refresh.Key.Class)).
		Msg("Background refresh completed")

	c.bus.Publish(events.HistoricalUpdated, "marketdata", &events.HistoricalUpdatedData{
		Symbol:   refresh.Key.Symbol,
		Interval: string(refresh.Key.Class),
	})
}
