// Package model defines the data types shared by every component of the
// feed engine: subscription configuration, the tagged DataPoint variant
// produced by readers and the synthesizer, and small time-series helpers
// reused across the engine.
package model

import (
	"fmt"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
)

// Resolution is the bar size a subscription is registered at.
type Resolution string

const (
	Tick   Resolution = "tick"
	Second Resolution = "second"
	Minute Resolution = "minute"
	Hour   Resolution = "hour"
	Daily  Resolution = "daily"
)

// defaultBarDurations mirrors the {Day, Hour, Minute, Second} table from
// the engine's increment computation (spec §4.5); Tick has no bar duration
// of its own, it only contributes to the frontier increment.
var defaultBarDurations = map[Resolution]time.Duration{
	Second: time.Second,
	Minute: time.Minute,
	Hour:   time.Hour,
	Daily:  24 * time.Hour,
}

// SubscriptionConfig is the immutable description of one subscription:
// a symbol at a resolution, plus the fill-forward and extended-hours
// policy the engine must honor for that stream.
type SubscriptionConfig struct {
	Symbol              string
	Resolution          Resolution
	FillDataForward     bool
	ExtendedMarketHours bool

	// SourceRoot is opaque to the engine; readers use it to locate the
	// per-day files for this subscription (e.g. a directory template).
	SourceRoot string

	// DurationOverride, when set, replaces the resolution's default bar
	// duration; parsed with str2duration so operators can express it the
	// same way the teacher's timeframe strings are parsed ("1h", "90s").
	DurationOverride string
}

// BarDuration returns the bar increment for this subscription. Tick
// subscriptions have no bar duration and return ok=false; the caller
// (engine increment computation) excludes them from barIncrement and
// treats them as 1ms contributions to frontierIncrement instead.
func (c SubscriptionConfig) BarDuration() (time.Duration, bool) {
	if c.DurationOverride != "" {
		d, err := str2duration.ParseDuration(c.DurationOverride)
		if err != nil {
			return 0, false
		}
		return d, true
	}
	d, ok := defaultBarDurations[c.Resolution]
	return d, ok
}

// Kind tags which payload a DataPoint carries.
type Kind int

const (
	KindTick Kind = iota
	KindTradeBar
	KindQuoteBar
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindTick:
		return "tick"
	case KindTradeBar:
		return "trade_bar"
	case KindQuoteBar:
		return "quote_bar"
	case KindCustom:
		return "custom"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DataPoint is the base record produced by a reader. It models the
// "tagged variant" design from spec §9 as a single flat struct: Kind picks
// which of the payload fields are meaningful, avoiding a type-switch-heavy
// inheritance hierarchy while still supporting a variant-aware Clone.
type DataPoint struct {
	Kind   Kind
	Time   time.Time
	Symbol string

	// Trade/quote bar payload.
	Open, High, Low, Close, Volume float64

	// Tick payload.
	Price    float64
	BidPrice float64
	AskPrice float64
	BidSize  float64
	AskSize  float64

	// Custom payload, keyed by field name (mirrors the teacher's
	// Candle.Metadata for CSV columns beyond the fixed OHLCV set).
	Metadata map[string]float64

	// Synthetic is true for bars emitted by the FillForwardSynthesizer
	// rather than produced by a reader.
	Synthetic bool
}

// Clone performs the deep copy fill-forward needs: the synthesizer clones
// the last known point and only changes Time (and Synthetic), so every
// other field — including the Metadata map — must be independent of the
// original.
func (d DataPoint) Clone() DataPoint {
	clone := d
	if d.Metadata != nil {
		clone.Metadata = make(map[string]float64, len(d.Metadata))
		for k, v := range d.Metadata {
			clone.Metadata[k] = v
		}
	}
	return clone
}

// Empty reports whether d is the zero value, used by readers to signal
// "no current point yet" without a pointer.
func (d DataPoint) Empty() bool {
	return d.Symbol == "" && d.Time.IsZero()
}

// Batch is an ordered sequence of DataPoints sharing a frontier window —
// the unit a BoundedBridge queues (spec §3, Bridge).
type Batch []DataPoint
