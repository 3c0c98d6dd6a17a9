package marketdata

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AhmedIkram05/StockLens-sub001/internal/events"
)

func waitDone(t *testing.T, r *Refresh) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not complete in time")
	}
}

func TestScheduleRunsAndClearsRegistry(t *testing.T) {
	coord := NewCoordinator(events.NewBus(zerolog.Nop()), zerolog.Nop())
	key := Key{Symbol: "AAPL", Class: ClassMonthly}

	ran := make(chan struct{})
	refresh := coord.Schedule(key, func() error {
		close(ran)
		return nil
	})

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh function never ran")
	}

	waitDone(t, refresh)
	assert.NoError(t, refresh.Err())
	assert.False(t, coord.InFlight(key))
	assert.NotEmpty(t, refresh.ID)
}

func TestScheduleDeduplicates(t *testing.T) {
	coord := NewCoordinator(events.NewBus(zerolog.Nop()), zerolog.Nop())
	key := Key{Symbol: "AAPL", Class: ClassDaily}

	gate := make(chan struct{})
	calls := 0

	first := coord.Schedule(key, func() error {
		calls++
		<-gate
		return nil
	})
	second := coord.Schedule(key, func() error {
		calls++
		return nil
	})

	assert.Same(t, first, second, "concurrent schedules for one key share the handle")
	assert.True(t, coord.InFlight(key))

	close(gate)
	waitDone(t, first)
	assert.Equal(t, 1, calls)
	assert.False(t, coord.InFlight(key))
}

func TestScheduleDistinctKeysRunIndependently(t *testing.T) {
	coord := NewCoordinator(events.NewBus(zerolog.Nop()), zerolog.Nop())

	first := coord.Schedule(Key{Symbol: "AAPL", Class: ClassQuote}, func() error { return nil })
	second := coord.Schedule(Key{Symbol: "MSFT", Class: ClassQuote}, func() error { return nil })

	assert.NotSame(t, first, second)
	waitDone(t, first)
	waitDone(t, second)
}

func TestScheduleAfterCompletionStartsNewRefresh(t *testing.T) {
	coord := NewCoordinator(events.NewBus(zerolog.Nop()), zerolog.Nop())
	key := Key{Symbol: "IBM", Class: ClassMonthly}

	first := coord.Schedule(key, func() error { return nil })
	waitDone(t, first)

	second := coord.Schedule(key, func() error { return nil })
	assert.NotSame(t, first, second)
	waitDone(t, second)
}

func TestFailedRefreshClearsRegistry(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	updated := make(chan *events.Event, 1)
	bus.Subscribe(events.HistoricalUpdated, func(e *events.Event) {
		updated <- e
	})

	coord := NewCoordinator(bus, zerolog.Nop())
	key := Key{Symbol: "AAPL", Class: ClassMonthly}

	refresh := coord.Schedule(key, func() error {
		return errors.New("upstream unavailable")
	})
	waitDone(t, refresh)

	assert.EqualError(t, refresh.Err(), "upstream unavailable")
	assert.False(t, coord.InFlight(key))

	select {
	case <-updated:
		t.Fatal("no update event should be published for a failed refresh")
	default:
	}
}

func TestSuccessfulRefreshPublishesUpdate(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	updated := make(chan *events.Event, 1)
	bus.Subscribe(events.HistoricalUpdated, func(e *events.Event) {
		updated <- e
	})

	coord := NewCoordinator(bus, zerolog.Nop())
	refresh := coord.Schedule(Key{Symbol: "AAPL", Class: ClassMonthly}, func() error { return nil })
	waitDone(t, refresh)

	select {
	case e := <-updated:
		data, ok := e.Data.(*events.HistoricalUpdatedData)
		require.True(t, ok)
		assert.Equal(t, "AAPL", data.Symbol)
		assert.Equal(t, "monthly", data.Interval)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a historical-updated event")
	}
}

func TestPanickingRefreshClearsRegistry(t *testing.T) {
	coord := NewCoordinator(events.NewBus(zerolog.Nop()), zerolog.Nop())
	key := Key{Symbol: "AAPL", Class: ClassQuote}

	refresh := coord.Schedule(key, func() error {
		panic("boom")
	})
	waitDone(t, refresh)

	assert.False(t, coord.InFlight(key))
}
