// Package engine implements the FeedEngine Run loop (spec §4.5): the day
// loop, backpressure gate, frontier loop, termination drain and cleanup
// that turn a set of SubscriptionReaders into ordered BoundedBridge
// output.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/StudioSol/set"

	"github.com/quantforge/feedengine/bridge"
	"github.com/quantforge/feedengine/calendar"
	"github.com/quantforge/feedengine/fillforward"
	"github.com/quantforge/feedengine/model"
	"github.com/quantforge/feedengine/reader"
	"github.com/quantforge/feedengine/tools/log"
)

// ErrNoSubscriptions and ErrEmptyPeriod are configuration errors, returned
// by New before the day loop starts (spec §7). ErrSubscriptionNotFound is
// returned by the per-stream accessors for an out-of-range index.
var (
	ErrNoSubscriptions      = errors.New("engine: no subscriptions configured")
	ErrEmptyPeriod          = errors.New("engine: period finish is not after period start")
	ErrSubscriptionNotFound = errors.New("engine: subscription index out of range")
)

const defaultTotalBridgeMax = 500_000

const (
	backpressurePause = 5 * time.Millisecond
	terminationPause  = 100 * time.Millisecond
)

// ReaderFactory builds the SubscriptionReader for one subscription.
type ReaderFactory func(cfg model.SubscriptionConfig) reader.SubscriptionReader

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithTotalBridgeMax overrides the default 500,000 aggregate bridge
// capacity that gets divided evenly across subscriptions.
func WithTotalBridgeMax(n int) Option {
	return func(e *Engine) { e.totalBridgeMax = n }
}

// stream bundles one subscription's full runtime state. endOfBridge is
// written by the producer (Run) and read by both the producer and any
// consumer observing EndOfBridge/EndOfBridges, so it's guarded by its
// own mutex rather than relied on as a lock-free monotonic flag — unlike
// exitRequested/loadedDataFrontier, it can flip back to false at the
// start of a new day.
type stream struct {
	cfg    model.SubscriptionConfig
	reader reader.SubscriptionReader
	bridge *bridge.BoundedBridge
	synth  *fillforward.Synthesizer
	stats  *statTracker
	hours  streamHours

	mu          sync.Mutex
	endOfBridge bool
}

func (s *stream) setEndOfBridge(v bool) {
	s.mu.Lock()
	s.endOfBridge = v
	s.mu.Unlock()
}

func (s *stream) isEndOfBridge() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endOfBridge
}

type streamHours struct {
	cal    calendar.Calendar
	symbol string
}

func (h streamHours) MarketOpen(t time.Time) bool         { return h.cal.MarketOpen(h.symbol, t) }
func (h streamHours) ExtendedMarketOpen(t time.Time) bool { return h.cal.ExtendedMarketOpen(h.symbol, t) }

// Engine is the FeedEngine: one producer goroutine reading from N
// SubscriptionReaders into N BoundedBridges, driven by Run and steered
// by the ControlSurface methods (Exit, PurgeData, the observable flags).
type Engine struct {
	streams        []*stream
	cal            calendar.Calendar
	periodStart    time.Time
	periodFinish   time.Time
	totalBridgeMax int
	perBridgeMax   int
	barIncrement   time.Duration
	frontierIncr   time.Duration

	mu                 sync.Mutex
	exitRequested      bool
	loadingComplete    bool
	isActive           bool
	endOfStreams       bool
	loadedDataFrontier time.Time
}

// New builds an Engine for the given subscriptions over [periodStart,
// periodFinish]. newReader constructs one SubscriptionReader per
// subscription, in order; the subscription's index is that stream's
// stable bridge index.
func New(subs []model.SubscriptionConfig, cal calendar.Calendar, newReader ReaderFactory,
	periodStart, periodFinish time.Time, opts ...Option) (*Engine, error) {

	if len(subs) == 0 {
		return nil, ErrNoSubscriptions
	}
	if !periodFinish.After(periodStart) {
		return nil, ErrEmptyPeriod
	}

	e := &Engine{
		cal:            cal,
		periodStart:    periodStart,
		periodFinish:   periodFinish,
		totalBridgeMax: defaultTotalBridgeMax,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.perBridgeMax = e.totalBridgeMax / len(subs)
	if e.perBridgeMax < 1 {
		e.perBridgeMax = 1
	}
	e.barIncrement, e.frontierIncr = computeIncrements(subs)

	e.streams = make([]*stream, len(subs))
	for i, cfg := range subs {
		e.streams[i] = &stream{
			cfg:    cfg,
			reader: newReader(cfg),
			bridge: bridge.New(e.perBridgeMax),
			synth:  fillforward.New(cfg.FillDataForward, cfg.ExtendedMarketHours),
			stats:  &statTracker{symbol: cfg.Symbol},
			hours:  streamHours{cal: cal, symbol: cfg.Symbol},
		}
	}

	return e, nil
}

// computeIncrements derives barIncrement (smallest bar duration across
// non-tick subscriptions, defaulting to one minute if there are none)
// and frontierIncrement (same, but tick subscriptions contribute 1ms),
// per spec §4.5.
func computeIncrements(subs []model.SubscriptionConfig) (bar, frontier time.Duration) {
	const tickFrontierStep = time.Millisecond
	haveBar := false

	for _, cfg := range subs {
		d, ok := cfg.BarDuration()
		if !ok {
			if frontier == 0 || tickFrontierStep < frontier {
				frontier = tickFrontierStep
			}
			continue
		}
		if !haveBar || d < bar {
			bar = d
			haveBar = true
		}
		if frontier == 0 || d < frontier {
			frontier = d
		}
	}

	if !haveBar {
		bar = time.Minute
	}
	if frontier == 0 {
		frontier = tickFrontierStep
	}
	return bar, frontier
}

// securities returns the deduplicated, subscription-order-preserving
// symbol list the calendar needs — a *set.LinkedHashSetString the way
// the teacher tracks subscribed pairs in exchange/exchange.go, so two
// subscriptions on the same symbol at different resolutions still
// contribute one calendar entry.
func (e *Engine) securities() []string {
	seen := set.NewLinkedHashSetString()
	for _, st := range e.streams {
		seen.Add(st.cfg.Symbol)
	}
	symbols := make([]string, 0, seen.Size())
	for s := range seen.Iter() {
		symbols = append(symbols, s)
	}
	return symbols
}

// Run is the blocking ControlSurface entry point. It returns when the
// period is exhausted, exit() is called, or ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.setActive(true)
	defer e.cleanup()

	for date := range e.cal.TradeableDays(ctx, e.securities(), e.periodStart, e.periodFinish) {
		if e.isExitRequested() {
			break
		}
		e.runDay(ctx, date)
		if e.isExitRequested() {
			break
		}
	}

	e.drainTermination(ctx)
	return nil
}

func (e *Engine) runDay(ctx context.Context, date time.Time) {
	frontier := date.Add(e.frontierIncr)

	for _, st := range e.streams {
		if !st.reader.RefreshSource(date) {
			st.setEndOfBridge(true)
			log.Debugf("feedengine: no source for %s on %s", st.cfg.Symbol, date.Format("2006-01-02"))
		} else {
			st.setEndOfBridge(false)
		}
	}

	e.backpressureGate(ctx)
	if e.isExitRequested() {
		return
	}

	for sameDayOrNextMidnight(frontier, date) && !e.isExitRequested() {
		active := 0
		for _, st := range e.streams {
			if st.isEndOfBridge() {
				continue
			}
			if st.reader.EndOfStream() {
				st.setEndOfBridge(true)
				log.Debugf("feedengine: %s reached end of stream for %s", st.cfg.Symbol, date.Format("2006-01-02"))
				continue
			}
			active++
		}
		if active == 0 {
			frontier = date.AddDate(0, 0, 1)
			break
		}

		var earlyBird time.Time
		haveEarlyBird := false

		for _, st := range e.streams {
			if st.isEndOfBridge() {
				continue
			}

			var cache model.Batch
			for {
				cur := st.reader.Current()
				if cur.Empty() || !cur.Time.Before(frontier) {
					break
				}
				cache = append(cache, cur)
				st.stats.recordReal(cur)
				if !st.reader.MoveNext() {
					break
				}
			}

			if len(cache) > 0 {
				st.synth.Advance(cache[0].Time)
				st.bridge.Enqueue(cache)
				st.stats.noteBridgeDepth(st.bridge.Count())
			}
			st.synth.Step(readerAdapter{st.reader}, st.hours, synthSink{st}, e.barIncrement)

			if cur := st.reader.Current(); !cur.Empty() && !st.reader.EndOfStream() {
				if !haveEarlyBird || cur.Time.Before(earlyBird) {
					earlyBird = cur.Time
					haveEarlyBird = true
				}
			}
		}

		e.setLoadedDataFrontier(frontier)

		if haveEarlyBird && earlyBird.After(frontier) {
			frontier = roundDown(earlyBird, e.frontierIncr).Add(e.frontierIncr)
		} else {
			frontier = frontier.Add(e.frontierIncr)
		}
	}
}

// sameDayOrNextMidnight mirrors "frontier.date = date ∨ frontier = date + 1 day".
func sameDayOrNextMidnight(frontier, date time.Time) bool {
	nextMidnight := date.AddDate(0, 0, 1)
	if frontier.Equal(nextMidnight) {
		return true
	}
	y1, m1, d1 := frontier.Date()
	y2, m2, d2 := date.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func roundDown(t time.Time, step time.Duration) time.Time {
	if step <= 0 {
		return t
	}
	return t.Add(-time.Duration(t.UnixNano() % int64(step)))
}

// backpressureGate pauses the producer while every inactive stream's
// bridge is empty yet some active bridge is already full — i.e. the
// consumer is genuinely behind, not merely starved of new data.
func (e *Engine) backpressureGate(ctx context.Context) {
	for !e.isExitRequested() {
		full, empty, active := 0, 0, 0
		for _, st := range e.streams {
			if st.bridge.Full() {
				full++
			}
			if st.bridge.Count() == 0 {
				empty++
			}
			if !st.isEndOfBridge() {
				active++
			}
		}
		n := len(e.streams)
		if !(full > 0 && (n-active) == empty) {
			return
		}
		select {
		case <-ctx.Done():
			e.Exit()
			return
		case <-time.After(backpressurePause):
		}
	}
}

// drainTermination is the termination drain (spec §4.5): once every
// reader is EOS and every bridge has drained, endOfBridges latches.
func (e *Engine) drainTermination(ctx context.Context) {
	e.mu.Lock()
	e.loadingComplete = true
	e.mu.Unlock()

	for !e.isExitRequested() {
		active := 0
		for _, st := range e.streams {
			if st.bridge.Count() == 0 && st.reader.EndOfStream() {
				st.setEndOfBridge(true)
			}
			if !st.isEndOfBridge() {
				active++
			}
		}
		if active == 0 {
			e.mu.Lock()
			e.endOfStreams = true
			e.mu.Unlock()
		}
		if e.endOfBridges() {
			return
		}
		select {
		case <-ctx.Done():
			e.Exit()
			return
		case <-time.After(terminationPause):
		}
	}
}

func (e *Engine) cleanup() {
	for _, st := range e.streams {
		st.reader.Dispose()
	}
	e.setActive(false)
}

func (e *Engine) setActive(v bool) {
	e.mu.Lock()
	e.isActive = v
	e.mu.Unlock()
}

func (e *Engine) setLoadedDataFrontier(t time.Time) {
	e.mu.Lock()
	e.loadedDataFrontier = t
	e.mu.Unlock()
}

func (e *Engine) isExitRequested() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exitRequested
}

// readerAdapter narrows reader.SubscriptionReader to fillforward.StreamReader.
type readerAdapter struct {
	r reader.SubscriptionReader
}

func (a readerAdapter) Current() model.DataPoint  { return a.r.Current() }
func (a readerAdapter) Previous() model.DataPoint { return a.r.Previous() }
func (a readerAdapter) EndOfStream() bool         { return a.r.EndOfStream() }

// synthSink routes the synthesizer's output to one stream's bridge and
// records synthetic points in that stream's stats.
type synthSink struct {
	st *stream
}

func (s synthSink) Enqueue(batch model.Batch) {
	s.st.bridge.Enqueue(batch)
	s.st.stats.noteBridgeDepth(s.st.bridge.Count())
	for _, dp := range batch {
		s.st.stats.recordSynthetic(dp)
	}
}
