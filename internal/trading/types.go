// Package trading holds the domain types shared by the ingestion loop, the
// trade sizing engine, the position risk manager and the housekeeping tasks.
package trading

import (
	"context"
	"math"
	"strings"
	"time"
)

// Side is the brokerage order side.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the side that closes a position opened with s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// ScoreSignal is one sentiment score for one ticker.
// Score is NaN when the source line carried an unparseable score.
type ScoreSignal struct {
	ID     int64
	Ticker string
	Score  float64
}

// Position is a brokerage position. Qty is signed: negative means short.
type Position struct {
	Symbol        string
	Qty           float64
	AvgEntryPrice float64
	CurrentPrice  float64
	MarketValue   float64
}

func (p Position) IsShort() bool { return p.Qty < 0 }

// AbsQty returns the unsigned share count.
func (p Position) AbsQty() float64 { return math.Abs(p.Qty) }

// ExitSide is the order side that reduces the position.
func (p Position) ExitSide() Side {
	if p.IsShort() {
		return SideBuy
	}
	return SideSell
}

// AccountSnapshot is a point-in-time view of the brokerage account.
type AccountSnapshot struct {
	Equity              float64
	BuyingPower         float64
	PositionMarketValue float64
}

// RegTBuyingPower is the 2:1 margin ceiling.
func (a AccountSnapshot) RegTBuyingPower() float64 { return a.Equity * 2 }

// BufferThreshold sits 2% below the RegT ceiling.
func (a AccountSnapshot) BufferThreshold() float64 { return a.RegTBuyingPower() * 0.98 }

// UnspentPct is the share of RegT buying power not committed to positions, in percent.
func (a AccountSnapshot) UnspentPct() float64 {
	regT := a.RegTBuyingPower()
	if regT <= 0 {
		return 0
	}
	return (regT - a.PositionMarketValue) / regT * 100
}

// OpenOrder is an order still working at the brokerage.
type OpenOrder struct {
	ID        string
	Symbol    string
	Side      Side
	Qty       float64
	CreatedAt time.Time
}

// Broker is the brokerage capability the engine consumes.
type Broker interface {
	Account(ctx context.Context) (AccountSnapshot, error)
	Positions(ctx context.Context) ([]Position, error)
	// Position returns ErrNoPosition when the symbol is not held.
	Position(ctx context.Context, symbol string) (Position, error)
	OpenOrders(ctx context.Context) ([]OpenOrder, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (string, error)
	CancelOrder(ctx context.Context, id string) error
}

// PriceSource resolves the current trade price of a symbol.
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// VolumeSource resolves the traded volume of the last completed session.
type VolumeSource interface {
	// PriorSessionVolume returns ErrNoLiquidity when nothing is found.
	PriorSessionVolume(ctx context.Context, symbol string) (float64, error)
}

// NormalizeSymbol upper-cases and trims a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
