package reader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantforge/feedengine/model"
)

type flakyReader struct {
	failsBeforeSuccess int
	calls              int
}

func (f *flakyReader) RefreshSource(time.Time) bool {
	f.calls++
	return f.calls > f.failsBeforeSuccess
}
func (f *flakyReader) MoveNext() bool                    { return false }
func (f *flakyReader) Current() model.DataPoint          { return model.DataPoint{} }
func (f *flakyReader) Previous() model.DataPoint         { return model.DataPoint{} }
func (f *flakyReader) EndOfStream() bool                 { return true }
func (f *flakyReader) MarketOpen(time.Time) bool         { return true }
func (f *flakyReader) ExtendedMarketOpen(time.Time) bool { return true }
func (f *flakyReader) Dispose()                          {}

func TestRetryReaderSucceedsWithinAttempts(t *testing.T) {
	inner := &flakyReader{failsBeforeSuccess: 2}
	r := NewRetryReader(inner, 5, time.Millisecond, 2*time.Millisecond)

	ok := r.RefreshSource(time.Now())
	assert.True(t, ok)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryReaderExhaustsAttempts(t *testing.T) {
	inner := &flakyReader{failsBeforeSuccess: 100}
	r := NewRetryReader(inner, 3, time.Millisecond, 2*time.Millisecond)

	ok := r.RefreshSource(time.Now())
	assert.False(t, ok)
	assert.Equal(t, 3, inner.calls)
}
