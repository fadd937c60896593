package housekeeping

import (
	"context"
	"fmt"
	"time"

	"exalted/internal/logger"
	"exalted/internal/pkg/pricing"
	"exalted/internal/state"
	"exalted/internal/trading"
)

const (
	ActivitySweep = "threshold_sweep"
	actionExit    = "exit"
)

// Evaluator prices held positions for the sweep.
type Evaluator interface {
	Evaluate(positions []trading.Position) []trading.Position
}

// ThresholdSweep exits any whole position whose retracement from its logged
// extreme reached Threshold. It never writes the extremes log.
type ThresholdSweep struct {
	Broker    trading.Broker
	Pricer    Evaluator
	Extremes  *state.ExtremesFile
	Threshold float64
	Now       func() time.Time
}

func (s *ThresholdSweep) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *ThresholdSweep) Run(ctx context.Context) *trading.Report {
	report := trading.NewReport(ActivitySweep, s.now())
	held, err := s.Broker.Positions(ctx)
	if err != nil {
		logger.Warnf("sweep: positions failed: %v", err)
		report.Abandon(fmt.Errorf("fetch positions: %w", err))
		return report.Finish(s.now())
	}
	priced := s.Pricer.Evaluate(held)
	if len(priced) == 0 {
		return report.Finish(s.now())
	}
	log := s.Extremes.Load()

	for _, pos := range priced {
		if ctx.Err() != nil {
			report.Abandon(ctx.Err())
			break
		}
		short := pos.IsShort()
		cur := pos.CurrentPrice
		ext := log.Get(pos.Symbol, pos.AvgEntryPrice)
		move := pricing.AdverseMove(short, ext.Highest, ext.Lowest, cur)
		if !pricing.AtLeast(move, s.Threshold) {
			continue
		}
		req := trading.NewLimitOrder(pos.Symbol, pos.ExitSide(), pos.AbsQty(), pricing.ExitLimit(short, cur))
		reason := fmt.Sprintf("adverse move %.4f >= %.4f", move, s.Threshold)
		if _, err := s.Broker.SubmitOrder(ctx, req); err != nil {
			// a working exit from an earlier sweep or the risk manager is the usual cause
			logger.Infof("sweep: %s not placed: %v", req, err)
			report.Add(trading.Skipped("", req.Symbol, actionExit, "order not accepted", err))
			continue
		}
		logger.Warnf("sweep: placed %s, %s", req, reason)
		out := trading.Success("", req.Symbol, actionExit, &req)
		out.Reason = reason
		report.Add(out)
	}
	return report.Finish(s.now())
}
