package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/feedengine/model"
)

func TestBoundedBridgeFIFOOrder(t *testing.T) {
	b := New(10)
	b.Enqueue(model.Batch{{Symbol: "SPY", Time: time.Unix(1, 0)}})
	b.Enqueue(model.Batch{{Symbol: "SPY", Time: time.Unix(2, 0)}})

	first, ok := b.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, time.Unix(1, 0), first[0].Time)

	second, ok := b.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, time.Unix(2, 0), second[0].Time)

	_, ok = b.TryDequeue()
	assert.False(t, ok)
}

func TestBoundedBridgeCountAndFullAreAdvisory(t *testing.T) {
	b := New(2)
	assert.False(t, b.Full())

	b.Enqueue(model.Batch{{Symbol: "SPY"}})
	b.Enqueue(model.Batch{{Symbol: "SPY"}})
	assert.Equal(t, 2, b.Count())
	assert.True(t, b.Full())

	// Enqueue never blocks or rejects even past capacity.
	b.Enqueue(model.Batch{{Symbol: "SPY"}})
	assert.Equal(t, 3, b.Count())
}

func TestBoundedBridgeClear(t *testing.T) {
	b := New(5)
	b.Enqueue(model.Batch{{Symbol: "SPY"}})
	b.Clear()
	assert.Equal(t, 0, b.Count())
	_, ok := b.TryDequeue()
	assert.False(t, ok)
}
