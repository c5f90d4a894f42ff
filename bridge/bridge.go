// Package bridge implements the BoundedBridge (spec §4.3): a single
// producer / single consumer FIFO of batches with an advisory capacity.
package bridge

import (
	"sync"

	"github.com/quantforge/feedengine/model"
)

// BoundedBridge queues model.Batch values between the engine (producer)
// and the algorithm consumer. Capacity is advisory: Enqueue never blocks
// or drops; the engine instead reads Count to decide whether to pause in
// its backpressure gate (spec §4.5 step 2).
type BoundedBridge struct {
	mu       sync.Mutex
	batches  []model.Batch
	capacity int
}

// New builds a bridge with the given soft capacity (perBridgeMax).
func New(capacity int) *BoundedBridge {
	return &BoundedBridge{capacity: capacity}
}

// Enqueue appends a batch. Always succeeds; capacity is advisory only.
func (b *BoundedBridge) Enqueue(batch model.Batch) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches = append(b.batches, batch)
}

// TryDequeue removes and returns the oldest batch, or (nil, false) if
// the bridge is empty.
func (b *BoundedBridge) TryDequeue() (model.Batch, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.batches) == 0 {
		return nil, false
	}
	batch := b.batches[0]
	b.batches = b.batches[1:]
	return batch, true
}

// Count returns the number of queued batches.
func (b *BoundedBridge) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.batches)
}

// Capacity returns the soft capacity this bridge was built with.
func (b *BoundedBridge) Capacity() int {
	return b.capacity
}

// Full reports whether Count has reached Capacity.
func (b *BoundedBridge) Full() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.batches) >= b.capacity
}

// Clear drains every queued batch without emitting it, for purgeData.
func (b *BoundedBridge) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches = nil
}
