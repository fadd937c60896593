// Package risk runs the periodic position control loop: margin buffer trims,
// trailing stops with open-order reconciliation, and upkeep of the extremes log.
package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"exalted/internal/config"
	"exalted/internal/gateway/notifier"
	"exalted/internal/logger"
	"exalted/internal/pkg/pricing"
	"exalted/internal/state"
	"exalted/internal/trader"
	"exalted/internal/trading"
)

const (
	Activity = "risk"

	ActionTrim         = "margin_trim"
	ActionTrailingStop = "trailing_stop"
	ActionPersist      = "persist_extremes"
)

// PositionEvaluator picks the price each held position is judged at and
// drops the ones that cannot be priced now.
type PositionEvaluator interface {
	Evaluate(positions []trading.Position) []trading.Position
}

type Deps struct {
	Broker   trading.Broker
	Pricer   PositionEvaluator
	Extremes *state.ExtremesFile
	Config   config.RiskConfig
	Notifier notifier.TextNotifier
	Now      func() time.Time
}

// Manager is the position risk manager. RunCycle is not reentrant; the
// scheduler guarantees a single cycle at a time.
type Manager struct {
	deps  Deps
	exits trader.Exits
}

func NewManager(deps Deps) *Manager {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Notifier == nil {
		deps.Notifier = notifier.Nop{}
	}
	return &Manager{deps: deps, exits: trader.Exits{Broker: deps.Broker}}
}

// cycle carries the per-run snapshot.
type cycle struct {
	report *trading.Report
	acct   trading.AccountSnapshot
	held   []trading.Position
	priced []trading.Position
	log    *state.ExtremesLog

	openOrders []trading.OpenOrder
	ordersRead bool
}

// RunCycle evaluates every held position once and returns what it did.
func (m *Manager) RunCycle(ctx context.Context) *trading.Report {
	c := &cycle{report: trading.NewReport(Activity, m.deps.Now())}

	acct, err := m.deps.Broker.Account(ctx)
	if err != nil {
		logger.Warnf("risk: account fetch failed, skipping cycle: %v", err)
		c.report.Abandon(fmt.Errorf("fetch account: %w", err))
		return c.report.Finish(m.deps.Now())
	}
	held, err := m.deps.Broker.Positions(ctx)
	if err != nil {
		logger.Warnf("risk: positions fetch failed, skipping cycle: %v", err)
		c.report.Abandon(fmt.Errorf("fetch positions: %w", err))
		return c.report.Finish(m.deps.Now())
	}
	c.acct = acct
	c.held = held
	c.priced = m.deps.Pricer.Evaluate(held)
	c.log = m.deps.Extremes.Load()

	logger.Infof("risk: equity=%.2f regt=%.2f position_mv=%.2f unspent=%.2f%% held=%d priced=%d",
		acct.Equity, acct.RegTBuyingPower(), acct.PositionMarketValue, acct.UnspentPct(), len(held), len(c.priced))

	m.marginBuffer(ctx, c)
	for _, pos := range c.priced {
		if ctx.Err() != nil {
			c.report.Abandon(ctx.Err())
			break
		}
		m.trailingStop(ctx, c, pos)
	}

	symbols := make([]string, 0, len(held))
	for _, pos := range held {
		symbols = append(symbols, pos.Symbol)
	}
	if removed := c.log.Prune(symbols); len(removed) > 0 {
		logger.Infof("risk: pruned extremes for %v", removed)
	}
	if err := m.deps.Extremes.Save(c.log); err != nil {
		logger.Errorf("risk: %v", err)
		c.report.Add(trading.Failed(Activity, "", ActionPersist, err))
	}

	c.report.Finish(m.deps.Now())
	m.notify(ctx, c.report)
	return c.report
}

func (m *Manager) bufferThreshold(acct trading.AccountSnapshot) float64 {
	if m.deps.Config.BufferRatio > 0 {
		return acct.RegTBuyingPower() * m.deps.Config.BufferRatio
	}
	return acct.BufferThreshold()
}

// marginBuffer trims the weakest position when committed market value is
// within the buffer of the RegT ceiling.
func (m *Manager) marginBuffer(ctx context.Context, c *cycle) {
	threshold := m.bufferThreshold(c.acct)
	if !(c.acct.PositionMarketValue > threshold) {
		return
	}
	logger.Warnf("risk: position market value %.2f above buffer %.2f", c.acct.PositionMarketValue, threshold)

	var (
		weakest trading.Position
		lowest  = math.Inf(1)
		found   bool
	)
	for _, pos := range c.priced {
		// unlogged symbols rank at zero gain
		ext := c.log.Get(pos.Symbol, pos.CurrentPrice)
		gain := pricing.Gain(pos.IsShort(), ext.Highest, ext.Lowest, pos.CurrentPrice)
		if gain < lowest {
			weakest, lowest, found = pos, gain, true
		}
	}
	if !found {
		c.report.Add(trading.Skipped(Activity, "", ActionTrim, "no priced position to trim", nil))
		return
	}

	slice := c.acct.RegTBuyingPower() * m.trimFraction()
	cur := weakest.CurrentPrice
	qty := weakest.AbsQty()
	if marketValue := math.Abs(weakest.MarketValue); !(marketValue < slice) {
		qty = slice / cur
	}
	limit := pricing.ExitLimit(weakest.IsShort(), cur)
	reason := fmt.Sprintf("gain %.4f, market value %.2f above buffer %.2f", lowest, c.acct.PositionMarketValue, threshold)

	req, err := m.exits.Close(ctx, weakest, qty, limit)
	if err != nil {
		logger.Warnf("risk: trim %s failed: %v", weakest.Symbol, err)
		c.report.Add(exitFailure(weakest.Symbol, ActionTrim, err))
		return
	}
	out := trading.Success(Activity, weakest.Symbol, ActionTrim, &req)
	out.Reason = reason
	c.report.Add(out)
}

func (m *Manager) trimFraction() float64 {
	if m.deps.Config.TrimFraction > 0 {
		return m.deps.Config.TrimFraction
	}
	return 0.02
}

func (m *Manager) stopPct() float64 {
	if m.deps.Config.TrailingStopPct > 0 {
		return m.deps.Config.TrailingStopPct
	}
	return 0.05
}

// trailingStop updates the symbol's extremes and exits the part of the
// position not already covered by working exit orders once the retracement
// reaches the stop.
func (m *Manager) trailingStop(ctx context.Context, c *cycle, pos trading.Position) {
	short := pos.IsShort()
	cur := pos.CurrentPrice
	ext, changed := c.log.Update(pos.Symbol, pos.AvgEntryPrice, cur)
	if changed {
		logger.Debugf("risk: %s extremes now high=%.4f low=%.4f", pos.Symbol, ext.Highest, ext.Lowest)
	}
	adverse := pricing.AdverseMove(short, ext.Highest, ext.Lowest, cur)
	if !pricing.AtLeast(adverse, m.stopPct()) {
		return
	}

	orders, err := c.orders(ctx, m.deps.Broker)
	if err != nil {
		logger.Warnf("risk: open orders for %s: %v", pos.Symbol, err)
		c.report.Add(trading.Failed(Activity, pos.Symbol, ActionTrailingStop, fmt.Errorf("open orders: %w", err)))
		return
	}
	side := pos.ExitSide()
	sym := trading.NormalizeSymbol(pos.Symbol)
	var ordered float64
	for _, o := range orders {
		if o.Symbol == sym && o.Side == side {
			ordered += o.Qty
		}
	}
	remaining := pos.AbsQty() - ordered
	reason := fmt.Sprintf("adverse move %.4f from high=%.4f low=%.4f", adverse, ext.Highest, ext.Lowest)
	if !(remaining > 0) {
		logger.Infof("risk: %s stop hit but %g already ordered", sym, ordered)
		c.report.Add(trading.Skipped(Activity, sym, ActionTrailingStop, "exit already working", nil))
		return
	}

	limit := pricing.FloorCents(pricing.ExitLimit(short, cur))
	req := trading.NewLimitOrder(sym, side, remaining, limit)
	logger.Warnf("risk: %s trailing stop, %s", sym, reason)
	if _, err := m.exits.Submit(ctx, req); err != nil {
		logger.Errorf("risk: trailing stop %s failed: %v", req, err)
		c.report.Add(exitFailure(sym, ActionTrailingStop, err))
		return
	}
	out := trading.Success(Activity, sym, ActionTrailingStop, &req)
	out.Reason = reason
	c.report.Add(out)
}

// orders reads the open orders once per cycle, after any trim was placed.
func (c *cycle) orders(ctx context.Context, broker trading.Broker) ([]trading.OpenOrder, error) {
	if c.ordersRead {
		return c.openOrders, nil
	}
	orders, err := broker.OpenOrders(ctx)
	if err != nil {
		return nil, err
	}
	c.openOrders, c.ordersRead = orders, true
	return orders, nil
}

func exitFailure(symbol, action string, err error) trading.Outcome {
	switch {
	case errors.Is(err, trading.ErrInsufficientPosition), errors.Is(err, trader.ErrCoverPending):
		return trading.Skipped(Activity, symbol, action, err.Error(), err)
	default:
		return trading.Failed(Activity, symbol, action, err)
	}
}

func (m *Manager) notify(ctx context.Context, report *trading.Report) {
	if !m.deps.Config.NotifyForcedExit {
		return
	}
	msg, ok := notifier.ForcedExitMessage(report)
	if !ok {
		return
	}
	if err := m.deps.Notifier.SendText(ctx, msg.RenderMarkdown()); err != nil {
		logger.Warnf("risk: forced exit notification failed: %v", err)
	}
}
