// Command feedreplay drives the feed engine end-to-end against a
// directory of per-symbol, per-day CSV files and prints a per-subscription
// statistics table once the replay drains to completion.
//
// Grounded on the teacher's cmd/ninjabot/ninjabot.go: same urfave/cli App
// with one subcommand, same flag shapes (pair/timeframe as
// StringFlag+Aliases, start/end as TimestampFlag), same
// progressbar.Default + tablewriter.Render output pair as ninjabot.go's
// backtestCandles/Summary methods.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"github.com/quantforge/feedengine/calendar"
	"github.com/quantforge/feedengine/engine"
	"github.com/quantforge/feedengine/model"
	"github.com/quantforge/feedengine/reader"
	"github.com/quantforge/feedengine/tools/log"
)

func init() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
}

func main() {
	app := &cli.App{
		Name:     "feedreplay",
		HelpName: "feedreplay",
		Usage:    "Replay historical market data through the feed engine",
		Commands: []*cli.Command{
			{
				Name:     "replay",
				HelpName: "replay",
				Usage:    "Replay one or more symbols over a date range",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "symbols",
						Aliases:  []string{"s"},
						Usage:    "comma-separated, eg. AAPL,MSFT",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "resolution",
						Aliases:  []string{"r"},
						Usage:    "tick, second, minute, hour, or daily",
						Value:    "minute",
						Required: false,
					},
					&cli.StringFlag{
						Name:     "source",
						Aliases:  []string{"d"},
						Usage:    "eg. ./data (SourceRoot/SYMBOL/YYYY-MM-DD.csv)",
						Required: true,
					},
					&cli.TimestampFlag{
						Name:     "start",
						Usage:    "eg. 2013-05-01",
						Layout:   "2006-01-02",
						Required: true,
					},
					&cli.TimestampFlag{
						Name:     "end",
						Usage:    "eg. 2013-05-10",
						Layout:   "2006-01-02",
						Required: true,
					},
					&cli.BoolFlag{
						Name:     "fill-forward",
						Aliases:  []string{"f"},
						Usage:    "synthesize bars across gaps",
						Value:    true,
						Required: false,
					},
					&cli.BoolFlag{
						Name:     "extended-hours",
						Aliases:  []string{"x"},
						Usage:    "include pre/post market session",
						Value:    false,
						Required: false,
					},
					&cli.IntFlag{
						Name:     "total-bridge-max",
						Usage:    "advisory cross-subscription queue capacity",
						Value:    0,
						Required: false,
					},
					&cli.IntFlag{
						Name:     "retry-attempts",
						Usage:    "RefreshSource attempts per day before giving up",
						Value:    3,
						Required: false,
					},
				},
				Action: runReplay,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runReplay(c *cli.Context) error {
	symbols := strings.Split(c.String("symbols"), ",")
	for i := range symbols {
		symbols[i] = strings.TrimSpace(symbols[i])
	}

	resolution := model.Resolution(strings.ToLower(c.String("resolution")))
	sourceRoot := c.String("source")

	start := c.Timestamp("start")
	end := c.Timestamp("end")
	if start == nil || end == nil || start.IsZero() || end.IsZero() {
		log.Fatal("START and END must both be informed")
	}

	cal := calendar.NewSimpleCalendar(calendar.DefaultHours())

	subs := make([]model.SubscriptionConfig, len(symbols))
	for i, sym := range symbols {
		subs[i] = model.SubscriptionConfig{
			Symbol:              sym,
			Resolution:          resolution,
			FillDataForward:     c.Bool("fill-forward"),
			ExtendedMarketHours: c.Bool("extended-hours"),
			SourceRoot:          sourceRoot,
		}
	}

	var opts []engine.Option
	if n := c.Int("total-bridge-max"); n > 0 {
		opts = append(opts, engine.WithTotalBridgeMax(n))
	}

	attempts := c.Int("retry-attempts")
	newReader := func(cfg model.SubscriptionConfig) reader.SubscriptionReader {
		base := reader.NewCSVReader(cfg, cal, nil)
		if attempts <= 1 {
			return base
		}
		return reader.NewRetryReader(base, attempts, 50*time.Millisecond, 2*time.Second)
	}

	e, err := engine.New(subs, cal, newReader, *start, *end, opts...)
	if err != nil {
		return err
	}

	log.Info("[SETUP] Starting replay")
	drainAndReport(c.Context, e, subs)
	return nil
}

// drainAndReport runs the engine to completion while concurrently
// draining every bridge (required: the termination drain only latches
// once every bridge is empty) and tallying per-subscription progress on
// an indeterminate progress bar, then prints a summary table.
func drainAndReport(ctx context.Context, e *engine.Engine, subs []model.SubscriptionConfig) {
	bar := progressbar.Default(-1, "replaying")

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			progressed := false
			for i := range subs {
				b, err := e.Bridge(i)
				if err != nil {
					continue
				}
				for {
					if _, ok := b.TryDequeue(); !ok {
						break
					}
					progressed = true
					if err := bar.Add(1); err != nil {
						log.Warnf("update progressbar fail: %v", err)
					}
				}
			}
			select {
			case <-stop:
				return
			default:
			}
			if !progressed {
				time.Sleep(time.Millisecond)
			}
		}
	}()

	if err := e.Run(ctx); err != nil {
		log.Errorf("replay failed: %v", err)
	}
	close(stop)
	wg.Wait()
	_ = bar.Finish()

	summary(e, subs)
}

// summary renders one row per subscription plus a TOTAL footer, grounded
// on the teacher's NinjaBot.Summary table layout (headers/footer built
// with olekukonko/tablewriter), adapted from trade P&L columns to replay
// delivery counters.
func summary(e *engine.Engine, subs []model.SubscriptionConfig) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Symbol", "Real", "Synthetic", "Total", "% Synthetic", "Bridge High-Water"})
	table.SetFooterAlignment(tablewriter.ALIGN_RIGHT)

	var totalReal, totalSynthetic, totalHighWater int
	for i := range subs {
		st, err := e.Stats(i)
		if err != nil {
			continue
		}
		total := st.Real + st.Synthetic
		pctSynthetic := 0.0
		if total > 0 {
			pctSynthetic = float64(st.Synthetic) / float64(total) * 100
		}
		table.Append([]string{
			st.Symbol,
			fmt.Sprintf("%d", st.Real),
			fmt.Sprintf("%d", st.Synthetic),
			fmt.Sprintf("%d", total),
			fmt.Sprintf("%.1f %%", pctSynthetic),
			fmt.Sprintf("%d", st.BridgeHighWater),
		})
		totalReal += st.Real
		totalSynthetic += st.Synthetic
		if st.BridgeHighWater > totalHighWater {
			totalHighWater = st.BridgeHighWater
		}
	}

	grandTotal := totalReal + totalSynthetic
	pctTotal := 0.0
	if grandTotal > 0 {
		pctTotal = float64(totalSynthetic) / float64(grandTotal) * 100
	}
	table.SetFooter([]string{
		"TOTAL",
		fmt.Sprintf("%d", totalReal),
		fmt.Sprintf("%d", totalSynthetic),
		fmt.Sprintf("%d", grandTotal),
		fmt.Sprintf("%.1f %%", pctTotal),
		fmt.Sprintf("%d", totalHighWater),
	})
	table.Render()
}
