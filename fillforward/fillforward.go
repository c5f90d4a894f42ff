// Package fillforward implements the FillForwardSynthesizer (spec §4.4):
// the per-stream step that reproduces the last known bar at barIncrement
// spacing to cover gaps in a reader's output.
package fillforward

import (
	"time"

	"github.com/quantforge/feedengine/model"
)

// MarketHours is the subset of the calendar a single stream's synthesizer
// needs, already bound to that stream's symbol.
type MarketHours interface {
	MarketOpen(t time.Time) bool
	ExtendedMarketOpen(t time.Time) bool
}

// StreamReader is the subset of reader.SubscriptionReader the synthesizer
// consumes. Declared locally to avoid a dependency on the reader package.
type StreamReader interface {
	Current() model.DataPoint
	Previous() model.DataPoint
	EndOfStream() bool
}

// Sink receives the synthetic batches the synthesizer produces — in
// practice a single stream's *bridge.BoundedBridge.
type Sink interface {
	Enqueue(batch model.Batch)
}

// Synthesizer holds one stream's fillForwardFrontier across successive
// Step calls; the engine owns one instance per subscription.
type Synthesizer struct {
	fillDataForward     bool
	extendedMarketHours bool

	frontier time.Time
}

// New builds a synthesizer for one subscription's fill-forward policy.
func New(fillDataForward, extendedMarketHours bool) *Synthesizer {
	return &Synthesizer{
		fillDataForward:     fillDataForward,
		extendedMarketHours: extendedMarketHours,
	}
}

// Frontier exposes the current fillForwardFrontier, mainly for tests.
func (s *Synthesizer) Frontier() time.Time {
	return s.frontier
}

// Advance sets fillForwardFrontier directly. The engine calls this with
// cache[i][0].time whenever it enqueues a non-empty real batch for this
// stream (spec §4.5 step 3d), before invoking Step — this takes priority
// over Step's own lazy zero-value initialization.
func (s *Synthesizer) Advance(t time.Time) {
	s.frontier = t
}

// Step runs one frontier-step invocation of the synthesizer for its
// stream: it inspects the reader's current state and emits whatever
// synthetic bars are due onto sink, consulting hours for
// MarketOpen/ExtendedMarketOpen queries.
func (s *Synthesizer) Step(r StreamReader, hours MarketHours, sink Sink, barIncrement time.Duration) {
	if !s.fillDataForward {
		return
	}
	previous := r.Previous()
	if previous.Empty() {
		return
	}
	if s.frontier.IsZero() {
		s.frontier = previous.Time
	}

	if r.EndOfStream() {
		s.regimeA(r, hours, sink, barIncrement)
		return
	}
	s.regimeB(r, hours, sink, barIncrement)
}

// regimeA covers premature end-of-stream while the market is still open:
// keep synthesizing bars from the last known point until the market
// closes.
func (s *Synthesizer) regimeA(r StreamReader, hours MarketHours, sink Sink, barIncrement time.Duration) {
	last := r.Current()
	date := s.frontier.Add(barIncrement)
	for hours.MarketOpen(date) {
		s.emit(last, date, sink)
		date = date.Add(barIncrement)
	}
}

// regimeB covers a gap between two known points, skipping closed-hours
// spans without emitting spurious bars inside them.
func (s *Synthesizer) regimeB(r StreamReader, hours MarketHours, sink Sink, barIncrement time.Duration) {
	previous := r.Previous()
	current := r.Current()
	date := s.frontier.Add(barIncrement)

	for date.Before(current.Time) {
		if !s.extendedMarketHours {
			if !hours.MarketOpen(date) {
				date = rewindToSessionStart(date, current.Time, barIncrement, hours)
				continue
			}
		} else if !hours.ExtendedMarketOpen(date) {
			date = date.Add(barIncrement)
			continue
		}

		s.emit(previous, date, sink)
		date = date.Add(barIncrement)
	}
}

// rewindToSessionStart implements the spec's "rewind by decrement": jump
// to the next known point's time (which is inside an open session by
// construction) and walk backward one barIncrement at a time while the
// market is still open, landing on the earliest open bar of that
// session rather than querying the calendar for the session boundary
// directly. Preserved as specified rather than simplified.
func rewindToSessionStart(_ time.Time, knownTime time.Time, barIncrement time.Duration, hours MarketHours) time.Time {
	date := knownTime
	for {
		candidate := date.Add(-barIncrement)
		if !hours.MarketOpen(candidate) {
			return date
		}
		date = candidate
	}
}

func (s *Synthesizer) emit(source model.DataPoint, at time.Time, sink Sink) {
	clone := source.Clone()
	clone.Time = at
	clone.Synthetic = true
	sink.Enqueue(model.Batch{clone})
	s.frontier = at
}
