package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/feedengine/calendar"
	"github.com/quantforge/feedengine/model"
	"github.com/quantforge/feedengine/reader"
)

var _ reader.SubscriptionReader = (*fakeReader)(nil)

// fakeReader is a SubscriptionReader over an in-memory, per-day fixture,
// mirroring reader.CSVReader's RefreshSource/MoveNext contract exactly
// (prime Current on a successful refresh, leave Current/Previous stale
// once EndOfStream latches) so the engine is exercised against the same
// cursor semantics the real reader gives it.
type fakeReader struct {
	symbol string
	cal    calendar.Calendar
	byDay  map[string][]model.DataPoint

	rows        []model.DataPoint
	pos         int
	previous    model.DataPoint
	current     model.DataPoint
	haveCurrent bool
	endOfStream bool

	mu       sync.Mutex
	disposed bool
}

func newFakeReader(symbol string, cal calendar.Calendar, points ...model.DataPoint) *fakeReader {
	byDay := make(map[string][]model.DataPoint)
	for _, p := range points {
		key := p.Time.UTC().Format("2006-01-02")
		byDay[key] = append(byDay[key], p)
	}
	return &fakeReader{symbol: symbol, cal: cal, byDay: byDay}
}

func (r *fakeReader) RefreshSource(date time.Time) bool {
	r.previous = model.DataPoint{}
	r.current = model.DataPoint{}
	r.haveCurrent = false
	r.endOfStream = false
	r.pos = 0

	rows, ok := r.byDay[date.UTC().Format("2006-01-02")]
	r.rows = rows
	if !ok || len(rows) == 0 {
		return false
	}
	return r.MoveNext()
}

func (r *fakeReader) MoveNext() bool {
	if r.pos >= len(r.rows) {
		r.endOfStream = true
		r.haveCurrent = false
		return false
	}
	dp := r.rows[r.pos]
	r.pos++
	if r.haveCurrent {
		r.previous = r.current
	}
	r.current = dp
	r.haveCurrent = true
	return true
}

func (r *fakeReader) Current() model.DataPoint  { return r.current }
func (r *fakeReader) Previous() model.DataPoint { return r.previous }
func (r *fakeReader) EndOfStream() bool         { return r.endOfStream }

func (r *fakeReader) MarketOpen(t time.Time) bool         { return r.cal.MarketOpen(r.symbol, t) }
func (r *fakeReader) ExtendedMarketOpen(t time.Time) bool { return r.cal.ExtendedMarketOpen(r.symbol, t) }

func (r *fakeReader) Dispose() {
	r.mu.Lock()
	r.disposed = true
	r.mu.Unlock()
}

func (r *fakeReader) wasDisposed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disposed
}

func day(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

// drainedBatches runs e to completion, draining every stream's bridge
// concurrently (required: the termination drain only latches once every
// bridge is empty, so a test that waits for Run to return before
// dequeuing anything would deadlock it against itself).
func drainedBatches(t *testing.T, e *Engine, n int) [][]model.Batch {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	collected := make([][]model.Batch, n)
	stopDrain := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			progressed := false
			for i := 0; i < n; i++ {
				b, err := e.Bridge(i)
				require.NoError(t, err)
				for {
					batch, ok := b.TryDequeue()
					if !ok {
						break
					}
					collected[i] = append(collected[i], batch)
					progressed = true
				}
			}
			select {
			case <-stopDrain:
				return
			default:
			}
			if !progressed {
				time.Sleep(time.Millisecond)
			}
		}
	}()

	err := e.Run(ctx)
	require.NoError(t, err)
	close(stopDrain)
	wg.Wait()
	return collected
}

func assertNonDecreasing(t *testing.T, batches []model.Batch) {
	t.Helper()
	var last time.Time
	have := false
	for _, b := range batches {
		var within time.Time
		withinSet := false
		for _, dp := range b {
			if withinSet {
				assert.False(t, dp.Time.Before(within), "times within a batch must be non-decreasing")
			}
			within = dp.Time
			withinSet = true
		}
		if have {
			assert.False(t, b[0].Time.Before(last), "batch[i].first must not precede batch[i-1].last")
		}
		last = b[len(b)-1].Time
		have = true
	}
}

// TestEngineSingleDailyStreamNoGaps is spec scenario S1: one daily
// subscription, fillDataForward=false, three consecutive trading days
// each with one point. Expect three singleton batches in order and a
// loadedDataFrontier past the last day.
func TestEngineSingleDailyStreamNoGaps(t *testing.T) {
	cal := calendar.NewSimpleCalendar(calendar.DefaultHours())
	start := day(2013, 5, 1, 0, 0)

	r := newFakeReader("ABC", cal,
		model.DataPoint{Symbol: "ABC", Kind: model.KindTradeBar, Time: day(2013, 5, 1, 0, 0), Close: 100},
		model.DataPoint{Symbol: "ABC", Kind: model.KindTradeBar, Time: day(2013, 5, 2, 0, 0), Close: 101},
		model.DataPoint{Symbol: "ABC", Kind: model.KindTradeBar, Time: day(2013, 5, 3, 0, 0), Close: 102},
	)

	cfg := model.SubscriptionConfig{Symbol: "ABC", Resolution: model.Daily}
	e, err := New([]model.SubscriptionConfig{cfg}, cal,
		func(model.SubscriptionConfig) reader.SubscriptionReader { return r },
		start, start.Add(3*24*time.Hour+time.Second))
	require.NoError(t, err)

	collected := drainedBatches(t, e, 1)
	batches := collected[0]

	require.Len(t, batches, 3)
	for i, expected := range []float64{100, 101, 102} {
		require.Len(t, batches[i], 1)
		assert.Equal(t, expected, batches[i][0].Close)
		assert.False(t, batches[i][0].Synthetic)
	}
	assertNonDecreasing(t, batches)
	assert.True(t, r.wasDisposed())
	assert.False(t, e.IsActive())
	assert.True(t, e.LoadedDataFrontier().After(day(2013, 5, 3, 0, 0)))
}

// TestEngineMinuteStreamFillsForwardGap is spec scenario S2: a minute
// stream with fillDataForward=true jumps from 09:31 to 09:35 inside one
// session. Expect the real 09:31 batch, three synthetic bars at 09:32,
// 09:33, 09:34 cloned from 09:31, then the real 09:35 batch.
func TestEngineMinuteStreamFillsForwardGap(t *testing.T) {
	cal := calendar.NewSimpleCalendar(calendar.DefaultHours())
	start := day(2013, 5, 1, 0, 0)

	r := newFakeReader("ABC", cal,
		model.DataPoint{Symbol: "ABC", Kind: model.KindTradeBar, Time: day(2013, 5, 1, 9, 31), Close: 150.0},
		model.DataPoint{Symbol: "ABC", Kind: model.KindTradeBar, Time: day(2013, 5, 1, 9, 35), Close: 151.0},
	)

	cfg := model.SubscriptionConfig{Symbol: "ABC", Resolution: model.Minute, FillDataForward: true}
	e, err := New([]model.SubscriptionConfig{cfg}, cal,
		func(model.SubscriptionConfig) reader.SubscriptionReader { return r },
		start, start.Add(24*time.Hour+time.Second))
	require.NoError(t, err)

	collected := drainedBatches(t, e, 1)
	batches := collected[0]
	require.True(t, len(batches) >= 5, "expected at least the 5 S2 batches, got %d", len(batches))

	require.Len(t, batches[0], 1)
	assert.Equal(t, day(2013, 5, 1, 9, 31), batches[0][0].Time)
	assert.False(t, batches[0][0].Synthetic)
	assert.Equal(t, 150.0, batches[0][0].Close)

	expectedSynthetic := []time.Time{
		day(2013, 5, 1, 9, 32),
		day(2013, 5, 1, 9, 33),
		day(2013, 5, 1, 9, 34),
	}
	for i, want := range expectedSynthetic {
		batch := batches[i+1]
		require.Len(t, batch, 1)
		assert.Equal(t, want, batch[0].Time)
		assert.True(t, batch[0].Synthetic)
		assert.Equal(t, 150.0, batch[0].Close)
	}

	require.Len(t, batches[4], 1)
	assert.Equal(t, day(2013, 5, 1, 9, 35), batches[4][0].Time)
	assert.False(t, batches[4][0].Synthetic)
	assert.Equal(t, 151.0, batches[4][0].Close)

	assertNonDecreasing(t, batches)
}

// TestEngineExitDuringBackpressureStopsPromptly is spec scenario S6.
// With no consumer draining, a small totalBridgeMax forces the second
// day's backpressure gate to block; calling Exit mid-pause must bring
// the run down quickly with every bridge cleared and every reader
// disposed.
func TestEngineExitDuringBackpressureStopsPromptly(t *testing.T) {
	cal := calendar.NewSimpleCalendar(calendar.DefaultHours())
	start := day(2013, 5, 1, 0, 0)

	r := newFakeReader("ABC", cal,
		model.DataPoint{Symbol: "ABC", Kind: model.KindTradeBar, Time: day(2013, 5, 1, 9, 31), Close: 1},
		model.DataPoint{Symbol: "ABC", Kind: model.KindTradeBar, Time: day(2013, 5, 1, 9, 40), Close: 2},
		model.DataPoint{Symbol: "ABC", Kind: model.KindTradeBar, Time: day(2013, 5, 2, 9, 31), Close: 3},
	)

	cfg := model.SubscriptionConfig{Symbol: "ABC", Resolution: model.Minute}
	e, err := New([]model.SubscriptionConfig{cfg}, cal,
		func(model.SubscriptionConfig) reader.SubscriptionReader { return r },
		start, start.Add(2*24*time.Hour+time.Second),
		WithTotalBridgeMax(2))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	exitAt := time.Now()
	e.Exit()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop within 2s of Exit")
	}
	assert.True(t, time.Since(exitAt) < time.Second)

	assert.False(t, e.IsActive())
	assert.True(t, r.wasDisposed())

	b, err := e.Bridge(0)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Count())
}
