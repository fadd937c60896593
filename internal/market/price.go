package market

import (
	"context"
	"fmt"

	"exalted/internal/logger"
	"exalted/internal/pkg/retry"
	"exalted/internal/trading"
)

// LatestTradeSource serves the last regular-session trade price.
type LatestTradeSource interface {
	LatestTrade(ctx context.Context, symbol string) (float64, error)
}

// ExtendedHoursSource serves pre/post market trade prices.
type ExtendedHoursSource interface {
	ExtendedHoursPrice(ctx context.Context, symbol string) (float64, error)
}

// PriceService picks the price source by session: latest trade inside the
// regular session, the extended-hours source outside it.
type PriceService struct {
	clock    *Clock
	session  LatestTradeSource
	extended ExtendedHoursSource
}

func NewPriceService(clock *Clock, session LatestTradeSource, extended ExtendedHoursSource) *PriceService {
	return &PriceService{clock: clock, session: session, extended: extended}
}

var _ trading.PriceSource = (*PriceService)(nil)

// CurrentPrice returns a positive price or an error. Failures that exhausted
// their retries (or hit an open breaker) are returned as is so callers can
// tell them apart from a plain ErrNoPrice.
func (s *PriceService) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	symbol = trading.NormalizeSymbol(symbol)
	var (
		price  float64
		err    error
		source string
	)
	if s.clock.InSession(s.clock.Now()) {
		source = "latest_trade"
		price, err = s.session.LatestTrade(ctx, symbol)
	} else {
		source = "extended_hours"
		price, err = s.extended.ExtendedHoursPrice(ctx, symbol)
	}
	if err != nil {
		if retry.Unavailable(err) {
			return 0, err
		}
		logger.Warnf("price %s via %s: %v", symbol, source, err)
		return 0, fmt.Errorf("%w: %s via %s: %v", trading.ErrNoPrice, symbol, source, err)
	}
	if !(price > 0) {
		return 0, fmt.Errorf("%w: %s via %s returned %v", trading.ErrNoPrice, symbol, source, price)
	}
	return price, nil
}

// PositionPricer chooses the evaluation price of held positions.
type PositionPricer struct {
	clock *Clock
	file  *AltPriceFile
}

func NewPositionPricer(clock *Clock, file *AltPriceFile) *PositionPricer {
	return &PositionPricer{clock: clock, file: file}
}

// Evaluate returns the positions that can be priced now. Inside the session
// the brokerage price is kept; outside it each price comes from the alternate
// hours file and positions missing from the file are left out.
func (p *PositionPricer) Evaluate(positions []trading.Position) []trading.Position {
	if p.clock.InSession(p.clock.Now()) {
		out := make([]trading.Position, 0, len(positions))
		for _, pos := range positions {
			if pos.CurrentPrice > 0 {
				out = append(out, pos)
			}
		}
		return out
	}
	prices := p.file.Load()
	out := make([]trading.Position, 0, len(positions))
	for _, pos := range positions {
		price, ok := prices[trading.NormalizeSymbol(pos.Symbol)]
		if !ok {
			logger.Debugf("position %s: no alternate-hours price, not evaluated", pos.Symbol)
			continue
		}
		pos.CurrentPrice = price
		out = append(out, pos)
	}
	return out
}
