package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(ctx context.Context, ch <-chan time.Time) []time.Time {
	var out []time.Time
	for d := range ch {
		out = append(out, d)
	}
	return out
}

func TestSimpleCalendarMarketOpen(t *testing.T) {
	cal := NewSimpleCalendar(DefaultHours())

	monday930 := time.Date(2013, 5, 6, 9, 30, 0, 0, time.UTC)
	assert.True(t, cal.MarketOpen("SPY", monday930))

	mondayPreMarket := time.Date(2013, 5, 6, 7, 0, 0, 0, time.UTC)
	assert.False(t, cal.MarketOpen("SPY", mondayPreMarket))
	assert.True(t, cal.ExtendedMarketOpen("SPY", mondayPreMarket))

	saturday := time.Date(2013, 5, 4, 12, 0, 0, 0, time.UTC)
	assert.False(t, cal.MarketOpen("SPY", saturday))
	assert.False(t, cal.ExtendedMarketOpen("SPY", saturday))
}

func TestSimpleCalendarHoliday(t *testing.T) {
	hours := DefaultHours()
	hours.Holidays["2013-05-06"] = true
	cal := NewSimpleCalendar(hours)

	monday := time.Date(2013, 5, 6, 10, 0, 0, 0, time.UTC)
	assert.False(t, cal.MarketOpen("SPY", monday))
}

func TestSimpleCalendarPerSymbolHours(t *testing.T) {
	cal := NewSimpleCalendar(DefaultHours())
	cal.SetHours("BTCUSD", Hours{
		Open: 0, Close: 24 * time.Hour,
		ExtendedOpen: 0, ExtendedClose: 24 * time.Hour,
		Weekdays: map[time.Weekday]bool{
			time.Sunday: true, time.Monday: true, time.Tuesday: true, time.Wednesday: true,
			time.Thursday: true, time.Friday: true, time.Saturday: true,
		},
	})

	saturday := time.Date(2013, 5, 4, 3, 0, 0, 0, time.UTC)
	assert.False(t, cal.MarketOpen("SPY", saturday))
	assert.True(t, cal.MarketOpen("BTCUSD", saturday))
}

func TestTradeableDaysUnionsAndDedupes(t *testing.T) {
	cal := NewSimpleCalendar(DefaultHours())
	cal.SetHours("BTCUSD", Hours{
		Open: 0, Close: 24 * time.Hour,
		ExtendedOpen: 0, ExtendedClose: 24 * time.Hour,
		Weekdays: map[time.Weekday]bool{
			time.Sunday: true, time.Monday: true, time.Tuesday: true, time.Wednesday: true,
			time.Thursday: true, time.Friday: true, time.Saturday: true,
		},
	})

	start := time.Date(2013, 5, 3, 0, 0, 0, 0, time.UTC) // Friday
	finish := time.Date(2013, 5, 6, 0, 0, 0, 0, time.UTC) // Monday

	ctx := context.Background()
	days := drain(ctx, cal.TradeableDays(ctx, []string{"SPY", "BTCUSD", "BTCUSD"}, start, finish))

	require.Len(t, days, 4) // Fri, Sat, Sun, Mon — Sat/Sun only via BTCUSD, still one entry each
	assert.Equal(t, time.Date(2013, 5, 3, 0, 0, 0, 0, time.UTC), days[0])
	assert.Equal(t, time.Date(2013, 5, 4, 0, 0, 0, 0, time.UTC), days[1])
	assert.Equal(t, time.Date(2013, 5, 5, 0, 0, 0, 0, time.UTC), days[2])
	assert.Equal(t, time.Date(2013, 5, 6, 0, 0, 0, 0, time.UTC), days[3])
}

func TestTradeableDaysRespectsContextCancellation(t *testing.T) {
	cal := NewSimpleCalendar(DefaultHours())
	start := time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC)
	finish := start.AddDate(5, 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	ch := cal.TradeableDays(ctx, []string{"SPY"}, start, finish)

	<-ch
	cancel()

	for range ch {
		// drain until the goroutine observes cancellation and closes the channel
	}
}
