// Package reader defines the SubscriptionReader boundary (spec §4.2) — the
// only file-format-aware collaborator the engine talks to — plus a CSV
// implementation and a retry decorator.
package reader

import (
	"errors"
	"time"

	"github.com/quantforge/feedengine/model"
)

// Sentinel errors for reader implementations. RefreshSource and MoveNext
// report only a bool, so neither value reaches the engine: CSVReader wraps
// row-parse failures in ErrMalformedPoint internally and MoveNext turns
// them into end of stream. No reader in this package returns ErrNoSource.
var (
	ErrNoSource       = errors.New("reader: no source for date")
	ErrMalformedPoint = errors.New("reader: malformed data point")
)

// SubscriptionReader is one stream's cursor over its own data. The engine
// drives it exclusively from the producer goroutine; it is never called
// concurrently.
type SubscriptionReader interface {
	// RefreshSource opens the source for date and primes Current. It
	// returns false when there is no data for date at all (weekend,
	// holiday, missing file) — the engine treats that as "no data today",
	// not an error.
	RefreshSource(date time.Time) bool

	// MoveNext advances the cursor. Previous becomes the prior Current;
	// Current becomes the next point. Returns false (and sets EndOfStream)
	// once the source is exhausted.
	MoveNext() bool

	Current() model.DataPoint
	Previous() model.DataPoint
	EndOfStream() bool

	// MarketOpen and ExtendedMarketOpen delegate to the calendar bound to
	// this reader's symbol.
	MarketOpen(t time.Time) bool
	ExtendedMarketOpen(t time.Time) bool

	// Dispose releases file handles. Safe to call more than once.
	Dispose()
}
