// Package calendar is the feed engine's external market-hours collaborator
// (spec §4.1). The engine never owns calendar state; it only asks
// "is this day tradeable" and "is the market open at this instant".
package calendar

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/quantforge/feedengine/model"
)

// Calendar answers the two questions the engine and the fill-forward
// synthesizer need: which days are worth opening a reader for, and
// whether a given instant falls inside (extended) market hours.
type Calendar interface {
	// TradeableDays streams ascending dates, one per tradeable day, across
	// the union of securities — a day is tradeable if at least one of the
	// given securities trades that day. The channel closes when the
	// sequence is exhausted or ctx is cancelled.
	TradeableDays(ctx context.Context, securities []string, start, finish time.Time) <-chan time.Time
	MarketOpen(symbol string, t time.Time) bool
	ExtendedMarketOpen(symbol string, t time.Time) bool
}

// Hours describes one symbol's trading schedule as offsets from UTC
// midnight, plus which weekdays it trades and which calendar dates are
// holidays (closed all day).
type Hours struct {
	Open, Close                 time.Duration
	ExtendedOpen, ExtendedClose time.Duration
	Weekdays                    map[time.Weekday]bool
	Holidays                    map[string]bool // "2006-01-02"
}

// DefaultHours models a conventional equities session: 09:30-16:00 regular,
// 04:00-20:00 extended, Monday through Friday.
func DefaultHours() Hours {
	return Hours{
		Open:          9*time.Hour + 30*time.Minute,
		Close:         16 * time.Hour,
		ExtendedOpen:  4 * time.Hour,
		ExtendedClose: 20 * time.Hour,
		Weekdays: map[time.Weekday]bool{
			time.Monday:    true,
			time.Tuesday:   true,
			time.Wednesday: true,
			time.Thursday:  true,
			time.Friday:    true,
		},
		Holidays: map[string]bool{},
	}
}

// SimpleCalendar is a reference Calendar implementation: a fixed weekly
// schedule plus a holiday set, configurable per symbol.
type SimpleCalendar struct {
	defaultHours Hours
	hours        map[string]Hours
}

// NewSimpleCalendar builds a calendar that uses defaultHours for any symbol
// without a more specific schedule registered via SetHours.
func NewSimpleCalendar(defaultHours Hours) *SimpleCalendar {
	return &SimpleCalendar{
		defaultHours: defaultHours,
		hours:        make(map[string]Hours),
	}
}

// SetHours registers a symbol-specific schedule, overriding the default.
func (c *SimpleCalendar) SetHours(symbol string, h Hours) {
	c.hours[symbol] = h
}

func (c *SimpleCalendar) hoursFor(symbol string) Hours {
	if h, ok := c.hours[symbol]; ok {
		return h
	}
	return c.defaultHours
}

func midnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func (c *SimpleCalendar) isTradingDay(symbol string, day time.Time) bool {
	h := c.hoursFor(symbol)
	day = midnight(day)
	if h.Weekdays != nil && !h.Weekdays[day.Weekday()] {
		return false
	}
	if h.Holidays != nil && h.Holidays[day.Format("2006-01-02")] {
		return false
	}
	return true
}

// MarketOpen reports whether t falls within symbol's regular trading hours.
func (c *SimpleCalendar) MarketOpen(symbol string, t time.Time) bool {
	if !c.isTradingDay(symbol, t) {
		return false
	}
	h := c.hoursFor(symbol)
	offset := t.UTC().Sub(midnight(t))
	return offset >= h.Open && offset < h.Close
}

// ExtendedMarketOpen reports whether t falls within symbol's extended
// trading window (which is defined to encompass regular hours).
func (c *SimpleCalendar) ExtendedMarketOpen(symbol string, t time.Time) bool {
	if !c.isTradingDay(symbol, t) {
		return false
	}
	h := c.hoursFor(symbol)
	offset := t.UTC().Sub(midnight(t))
	return offset >= h.ExtendedOpen && offset < h.ExtendedClose
}

// nextTradingDay scans forward from `from` (inclusive) for the next day
// symbol trades, capped to avoid spinning forever on a misconfigured
// all-holiday schedule.
func (c *SimpleCalendar) nextTradingDay(symbol string, from time.Time) (time.Time, bool) {
	day := midnight(from)
	const maxScan = 3650
	for i := 0; i < maxScan; i++ {
		if c.isTradingDay(symbol, day) {
			return day, true
		}
		day = day.AddDate(0, 0, 1)
	}
	return time.Time{}, false
}

// dayCursor is one security's position in its own ascending tradeable-day
// sequence; it's the Item the merge heap in TradeableDays orders.
type dayCursor struct {
	symbol string
	day    time.Time
}

func (d *dayCursor) Less(other model.Item) bool {
	o := other.(*dayCursor)
	if !d.day.Equal(o.day) {
		return d.day.Before(o.day)
	}
	return d.symbol < o.symbol
}

// TradeableDays unions the per-security tradeable-day sequences using a
// min-heap merge (model.PriorityQueue), so at any instant only one pending
// day per security needs to be held in memory rather than materializing
// every security's full calendar up front.
func (c *SimpleCalendar) TradeableDays(ctx context.Context, securities []string, start, finish time.Time) <-chan time.Time {
	out := make(chan time.Time)

	securities = lo.Uniq(securities)
	sort.Strings(securities)

	go func() {
		defer close(out)

		pq := model.NewPriorityQueue(nil)
		for _, sym := range securities {
			if day, ok := c.nextTradingDay(sym, start); ok && !day.After(finish) {
				pq.Push(&dayCursor{symbol: sym, day: day})
			}
		}

		var lastEmitted time.Time
		emitted := false
		for pq.Len() > 0 {
			select {
			case <-ctx.Done():
				return
			default:
			}

			cur := pq.Pop().(*dayCursor)
			if !emitted || !cur.day.Equal(lastEmitted) {
				select {
				case out <- cur.day:
				case <-ctx.Done():
					return
				}
				lastEmitted = cur.day
				emitted = true
			}

			if next, ok := c.nextTradingDay(cur.symbol, cur.day.AddDate(0, 0, 1)); ok && !next.After(finish) {
				cur.day = next
				pq.Push(cur)
			}
		}
	}()

	return out
}
