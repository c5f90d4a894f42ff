package reader

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/quantforge/feedengine/calendar"
	"github.com/quantforge/feedengine/model"
)

// csvHeaderIndex mirrors the teacher's fixed OHLCV header map, extended
// with the tick columns this domain also needs.
var csvHeaderIndex = map[string]int{
	"time": 0, "open": 1, "high": 2, "low": 3, "close": 4, "volume": 5,
	"price": 6, "bid_price": 7, "ask_price": 8, "bid_size": 9, "ask_size": 10,
}

// PathFunc locates the day file for a subscription. The default,
// DefaultPathFunc, lays files out as SourceRoot/SYMBOL/YYYY-MM-DD.csv.
type PathFunc func(cfg model.SubscriptionConfig, date time.Time) string

// DefaultPathFunc is the layout convention CSVReader uses when the caller
// doesn't supply one.
func DefaultPathFunc(cfg model.SubscriptionConfig, date time.Time) string {
	return filepath.Join(cfg.SourceRoot, cfg.Symbol, date.Format("2006-01-02")+".csv")
}

// CSVReader is a SubscriptionReader backed by one CSV file per tradeable
// day. It is grounded on the teacher's exchange/csvfeed.go header parsing
// and row decoding, adapted from "load one file up front" to "rotate a new
// file per RefreshSource(date) call", which is what the engine's day loop
// needs.
type CSVReader struct {
	cfg     model.SubscriptionConfig
	cal     calendar.Calendar
	pathFor PathFunc

	file *os.File
	rows [][]string
	pos  int

	previous    model.DataPoint
	current     model.DataPoint
	haveCurrent bool
	endOfStream bool
}

// NewCSVReader builds a reader for one subscription. pathFor may be nil,
// in which case DefaultPathFunc is used.
func NewCSVReader(cfg model.SubscriptionConfig, cal calendar.Calendar, pathFor PathFunc) *CSVReader {
	if pathFor == nil {
		pathFor = DefaultPathFunc
	}
	return &CSVReader{cfg: cfg, cal: cal, pathFor: pathFor}
}

// RefreshSource implements SubscriptionReader.
func (r *CSVReader) RefreshSource(date time.Time) bool {
	r.closeFile()
	r.previous = model.DataPoint{}
	r.current = model.DataPoint{}
	r.haveCurrent = false
	r.endOfStream = false
	r.rows = nil
	r.pos = 0

	path := r.pathFor(r.cfg, date)
	f, err := os.Open(path)
	if err != nil {
		// Missing file is "no data today", not a fault — weekends and
		// holidays are expected to be absent from the source tree.
		return false
	}
	r.file = f

	lines, err := csv.NewReader(f).ReadAll()
	if err != nil || len(lines) == 0 {
		r.closeFile()
		return false
	}

	start := 0
	if _, atoiErr := strconv.Atoi(lines[0][0]); atoiErr != nil {
		// First column isn't a timestamp: this is a header row, skip it.
		start = 1
	}
	r.rows = lines[start:]

	return r.MoveNext()
}

// MoveNext implements SubscriptionReader.
func (r *CSVReader) MoveNext() bool {
	if r.pos >= len(r.rows) {
		r.endOfStream = true
		r.haveCurrent = false
		return false
	}

	row := r.rows[r.pos]
	r.pos++

	dp, err := r.parseRow(row)
	if err != nil {
		r.endOfStream = true
		r.haveCurrent = false
		return false
	}

	if r.haveCurrent {
		r.previous = r.current
	}
	r.current = dp
	r.haveCurrent = true
	return true
}

func (r *CSVReader) parseRow(row []string) (model.DataPoint, error) {
	get := func(col string) (string, bool) {
		idx, ok := csvHeaderIndex[col]
		if !ok || idx >= len(row) {
			return "", false
		}
		return row[idx], true
	}

	tsField, ok := get("time")
	if !ok {
		return model.DataPoint{}, fmt.Errorf("%w: missing time column", ErrMalformedPoint)
	}
	ts, err := strconv.ParseInt(tsField, 10, 64)
	if err != nil {
		return model.DataPoint{}, fmt.Errorf("%w: %v", ErrMalformedPoint, err)
	}

	dp := model.DataPoint{
		Time:   time.Unix(ts, 0).UTC(),
		Symbol: r.cfg.Symbol,
	}

	parseField := func(col string) float64 {
		v, ok := get(col)
		if !ok {
			return 0
		}
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}

	if r.cfg.Resolution == model.Tick {
		dp.Kind = model.KindTick
		dp.Price = parseField("price")
		dp.BidPrice = parseField("bid_price")
		dp.AskPrice = parseField("ask_price")
		dp.BidSize = parseField("bid_size")
		dp.AskSize = parseField("ask_size")
	} else {
		dp.Kind = model.KindTradeBar
		dp.Open = parseField("open")
		dp.High = parseField("high")
		dp.Low = parseField("low")
		dp.Close = parseField("close")
		dp.Volume = parseField("volume")
	}

	return dp, nil
}

func (r *CSVReader) Current() model.DataPoint  { return r.current }
func (r *CSVReader) Previous() model.DataPoint { return r.previous }
func (r *CSVReader) EndOfStream() bool         { return r.endOfStream }

func (r *CSVReader) MarketOpen(t time.Time) bool {
	return r.cal.MarketOpen(r.cfg.Symbol, t)
}

func (r *CSVReader) ExtendedMarketOpen(t time.Time) bool {
	return r.cal.ExtendedMarketOpen(r.cfg.Symbol, t)
}

func (r *CSVReader) Dispose() {
	r.closeFile()
}

func (r *CSVReader) closeFile() {
	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
	}
}
