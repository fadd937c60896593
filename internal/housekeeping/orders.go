// Package housekeeping holds the periodic order and position clean-up tasks
// that run beside the risk manager.
package housekeeping

import (
	"context"
	"fmt"
	"time"

	"exalted/internal/logger"
	"exalted/internal/trading"
)

const (
	ActivityStaleOrders  = "stale_orders"
	ActivityWindowOrders = "window_orders"

	actionCancel = "cancel"
)

// StaleCanceller cancels open orders that have been working for too long.
type StaleCanceller struct {
	Broker trading.Broker
	MaxAge time.Duration
	Now    func() time.Time
}

func (s *StaleCanceller) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Run cancels every open order older than MaxAge.
func (s *StaleCanceller) Run(ctx context.Context) *trading.Report {
	now := s.now()
	report := trading.NewReport(ActivityStaleOrders, now)
	orders, err := s.Broker.OpenOrders(ctx)
	if err != nil {
		logger.Warnf("stale orders: list failed: %v", err)
		report.Abandon(fmt.Errorf("list open orders: %w", err))
		return report.Finish(s.now())
	}
	for _, o := range orders {
		if o.CreatedAt.IsZero() {
			continue
		}
		age := now.Sub(o.CreatedAt)
		if age <= s.MaxAge {
			continue
		}
		report.Add(cancel(ctx, s.Broker, o, fmt.Sprintf("open for %s", age.Truncate(time.Second))))
	}
	return report.Finish(s.now())
}

// Window reports whether orders may keep working at a given time.
type Window interface {
	Now() time.Time
	InWindow(t time.Time) bool
}

// WindowCanceller cancels orders that should not stay open outside the
// trading window: every buy, and every sell larger than the long it would close.
type WindowCanceller struct {
	Broker trading.Broker
	Window Window
}

func (w *WindowCanceller) Run(ctx context.Context) *trading.Report {
	now := w.Window.Now()
	report := trading.NewReport(ActivityWindowOrders, now)
	if w.Window.InWindow(now) {
		return report.Finish(w.Window.Now())
	}
	orders, err := w.Broker.OpenOrders(ctx)
	if err != nil {
		logger.Warnf("window orders: list failed: %v", err)
		report.Abandon(fmt.Errorf("list open orders: %w", err))
		return report.Finish(w.Window.Now())
	}
	if len(orders) == 0 {
		return report.Finish(w.Window.Now())
	}
	positions, err := w.Broker.Positions(ctx)
	if err != nil {
		logger.Warnf("window orders: positions failed: %v", err)
		report.Abandon(fmt.Errorf("fetch positions: %w", err))
		return report.Finish(w.Window.Now())
	}
	held := make(map[string]float64, len(positions))
	for _, p := range positions {
		held[trading.NormalizeSymbol(p.Symbol)] = p.Qty
	}

	for _, o := range orders {
		switch o.Side {
		case trading.SideBuy:
			report.Add(cancel(ctx, w.Broker, o, "buy outside trading window"))
		case trading.SideSell:
			if qty := held[o.Symbol]; o.Qty > qty {
				report.Add(cancel(ctx, w.Broker, o,
					fmt.Sprintf("sell of %g exceeds held %g outside trading window", o.Qty, qty)))
			}
		}
	}
	return report.Finish(w.Window.Now())
}

func cancel(ctx context.Context, broker trading.Broker, o trading.OpenOrder, reason string) trading.Outcome {
	if err := broker.CancelOrder(ctx, o.ID); err != nil {
		logger.Warnf("cancel %s %s %g (%s): %v", o.Side, o.Symbol, o.Qty, o.ID, err)
		return trading.Failed("", o.Symbol, actionCancel, fmt.Errorf("cancel %s: %w", o.ID, err))
	}
	logger.Infof("cancelled %s %s %g (%s): %s", o.Side, o.Symbol, o.Qty, o.ID, reason)
	out := trading.Success("", o.Symbol, actionCancel, nil)
	out.Reason = reason
	return out
}
