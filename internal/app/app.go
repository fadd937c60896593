// Package app wires configuration, collaborators and activities together and
// runs them until the process context ends.
package app

import (
	"context"
	"fmt"
	"time"

	"exalted/internal/config"
	"exalted/internal/housekeeping"
	"exalted/internal/ingest"
	"exalted/internal/logger"
	"exalted/internal/market"
	"exalted/internal/metrics"
	"exalted/internal/risk"
	"exalted/internal/scheduler"
	"exalted/internal/state"
	"exalted/internal/trading"
	statushttp "exalted/internal/transport/http/status"

	"golang.org/x/sync/errgroup"
)

// App owns the long-running activities.
type App struct {
	cfg      *config.Config
	clock    *market.Clock
	broker   trading.Broker
	board    *trading.Board
	metrics  *metrics.Metrics
	tokens   *scheduler.Tokens
	trigger  *ingest.Trigger
	cursor   *state.Cursor
	extremes *state.ExtremesFile

	ingest *ingest.Loop
	risk   *risk.Manager
	stale  *housekeeping.StaleCanceller
	window *housekeeping.WindowCanceller
	sweep  *housekeeping.ThresholdSweep
	http   *statushttp.Server

	Summary *StartupSummary
}

// NewApp builds the application from cfg (not started).
func NewApp(cfg *config.Config, opts ...AppBuilderOption) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return NewAppBuilder(cfg, opts...).Build()
}

// periodic is one scheduled activity.
type periodic struct {
	name     string
	interval time.Duration
	run      func(context.Context) *trading.Report
}

func (a *App) periodics() []periodic {
	s := a.cfg.Schedule
	return []periodic{
		{risk.Activity, s.RiskInterval(), a.risk.RunCycle},
		{housekeeping.ActivityStaleOrders, s.StaleOrdersInterval(), a.stale.Run},
		{housekeeping.ActivityWindowOrders, s.WindowOrdersInterval(), a.window.Run},
		{housekeeping.ActivitySweep, s.SweepInterval(), a.sweep.Run},
	}
}

// Run starts every activity and blocks until ctx ends or one fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}

	group, ctx := errgroup.WithContext(ctx)

	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(ctx); err != nil {
				return fmt.Errorf("status http server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error { return a.ingest.Run(ctx, a.trigger) })
	group.Go(func() error { return ingest.Poll(ctx, a.cfg.Ingest.PollInterval(), a) })
	if a.cfg.Ingest.Watch {
		group.Go(func() error {
			if err := ingest.Watch(ctx, a.cfg.Files.Signals, a); err != nil {
				logger.Warnf("ingest: file watch unavailable, relying on polling: %v", err)
			}
			return nil
		})
	}

	for _, p := range a.periodics() {
		p := p
		sched := scheduler.NewIntervalScheduler(p.name, p.interval, a.tokens)
		sched.RunImmediately = true
		group.Go(func() error {
			return sched.Start(ctx, func(ctx context.Context) { a.publish(p.run(ctx)) })
		})
	}

	err := group.Wait()
	logger.Infof("engine stopped, cursor=%d", a.cursor.Value())
	return err
}

// Fire queues an ingestion pass and counts coalesced requests.
func (a *App) Fire(reason string) bool {
	if a.trigger.Fire(reason) {
		return true
	}
	a.metrics.TriggerDropped()
	return false
}

// publish records a finished iteration on the board and in metrics.
func (a *App) publish(r *trading.Report) {
	if r == nil {
		return
	}
	a.board.Publish(r)
	a.metrics.ObserveReport(r)
	if r.Activity == ingest.Activity {
		a.metrics.SetCursor(a.cursor.Value())
	}
	counts := r.Counts()
	if r.Err != nil {
		logger.Warnf("%s: abandoned after %d outcome(s): %v", r.Activity, len(r.Outcomes), r.Err)
		return
	}
	if len(r.Outcomes) > 0 {
		logger.Infof("%s: success=%d skipped=%d failed=%d",
			r.Activity, counts[trading.StatusSuccess], counts[trading.StatusSkipped], counts[trading.StatusFailed])
	}
}

func (a *App) Board() *trading.Board { return a.board }

func (a *App) Metrics() *metrics.Metrics { return a.metrics }
