package engine

import (
	"time"

	"github.com/quantforge/feedengine/bridge"
)

// Exit implements ControlSurface.exit(): requests cooperative shutdown
// and immediately purges every bridge. Observed within one frontier
// iteration (backpressure gate, frontier-loop head) and the termination
// drain, per spec §5.
func (e *Engine) Exit() {
	e.mu.Lock()
	e.exitRequested = true
	e.mu.Unlock()
	e.PurgeData()
}

// PurgeData clears every bridge without emitting its contents. Safe to
// call concurrently with the producer; the spec accepts the resulting
// race (a batch enqueued just after a clear survives) as data loss that
// is acceptable once exit has been requested.
func (e *Engine) PurgeData() {
	for _, st := range e.streams {
		st.bridge.Clear()
	}
}

// IsActive reports whether Run is still executing (false once cleanup
// has disposed every reader).
func (e *Engine) IsActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isActive
}

// LoadingComplete reports whether the day loop has finished and the
// engine has entered the termination drain.
func (e *Engine) LoadingComplete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadingComplete
}

// LoadedDataFrontier is the monotonic upper bound on data the consumer
// may treat as "the whole cross-section up to T has arrived".
func (e *Engine) LoadedDataFrontier() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadedDataFrontier
}

// endOfStreamsLatched reports whether every stream has reached EOB, the
// terminal condition for EndOfBridges.
func (e *Engine) endOfStreamsLatched() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.endOfStreams
}

// endOfBridges ≡ every bridge empty ∧ every stream EOB ∧ endOfStreams
// latched (spec §4.5 termination drain).
func (e *Engine) endOfBridges() bool {
	if !e.endOfStreamsLatched() {
		return false
	}
	for _, st := range e.streams {
		if !st.isEndOfBridge() || st.bridge.Count() != 0 {
			return false
		}
	}
	return true
}

// EndOfBridges is the exported observable flag mirroring endOfBridges.
func (e *Engine) EndOfBridges() bool {
	return e.endOfBridges()
}

// EndOfBridge reports whether stream i will produce no more batches.
func (e *Engine) EndOfBridge(i int) (bool, error) {
	if i < 0 || i >= len(e.streams) {
		return false, ErrSubscriptionNotFound
	}
	return e.streams[i].isEndOfBridge(), nil
}

// Bridge exposes stream i's bridge to the consumer side.
func (e *Engine) Bridge(i int) (*bridge.BoundedBridge, error) {
	if i < 0 || i >= len(e.streams) {
		return nil, ErrSubscriptionNotFound
	}
	return e.streams[i].bridge, nil
}

// Stats returns a snapshot of stream i's replay statistics.
func (e *Engine) Stats(i int) (Stats, error) {
	if i < 0 || i >= len(e.streams) {
		return Stats{}, ErrSubscriptionNotFound
	}
	return e.streams[i].stats.snapshot(), nil
}
