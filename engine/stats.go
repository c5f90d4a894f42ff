package engine

import (
	"sync"

	"github.com/quantforge/feedengine/model"
)

const statsHistoryLimit = 64

// statTracker is one subscription's mutable running replay statistics:
// counts of real vs synthetic bars delivered, the bridge high-water
// mark, and a short history of recent close/price values. Purely
// observational — nothing here feeds back into engine semantics.
// Grounded on the teacher's order.Controller.Results summary
// accumulation pattern, adapted from trade P&L counters to feed replay
// counters.
type statTracker struct {
	symbol string

	mu              sync.Mutex
	real            int
	synthetic       int
	bridgeHighWater int
	recent          model.Series[float64]
}

func (s *statTracker) recordReal(dp model.DataPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.real++
	s.appendRecent(valueOf(dp))
}

func (s *statTracker) recordSynthetic(dp model.DataPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synthetic++
	s.appendRecent(valueOf(dp))
}

// noteBridgeDepth updates the high-water mark observed for this stream's
// bridge; called by the engine after every enqueue.
func (s *statTracker) noteBridgeDepth(depth int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if depth > s.bridgeHighWater {
		s.bridgeHighWater = depth
	}
}

func (s *statTracker) appendRecent(v float64) {
	s.recent = append(s.recent, v)
	if s.recent.Len() > statsHistoryLimit {
		s.recent = s.recent[s.recent.Len()-statsHistoryLimit:]
	}
}

func valueOf(dp model.DataPoint) float64 {
	if dp.Kind == model.KindTick {
		return dp.Price
	}
	return dp.Close
}

// snapshot copies the current counters out from under the lock into a
// plain value safe to hand to a caller on another goroutine.
func (s *statTracker) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Symbol:          s.symbol,
		Real:            s.real,
		Synthetic:       s.synthetic,
		BridgeHighWater: s.bridgeHighWater,
		Recent:          append([]float64{}, s.recent.Values()...),
	}
}

// Stats is an immutable snapshot of one subscription's replay
// statistics, returned by ControlSurface.Stats(i).
type Stats struct {
	Symbol          string
	Real            int
	Synthetic       int
	BridgeHighWater int
	Recent          []float64
}
