// Package trader maps a sentiment score plus account and liquidity state to
// concrete limit orders and submits them.
package trader

import (
	"math"
	"regexp"
)

// Action is what a score asks for.
type Action string

const (
	ActionBuy   Action = "buy"
	ActionSell  Action = "sell"
	ActionShort Action = "short"
	ActionHold  Action = "hold"
)

var tickerPattern = regexp.MustCompile(`^[A-Z]+$`)

// ValidTicker reports whether s is a plain upper-case equity symbol.
func ValidTicker(s string) bool { return tickerPattern.MatchString(s) }

// Classify maps a score to an action: >=70 buy, <=30 short, (30,45] sell.
func Classify(score float64) Action {
	switch {
	case score >= 70:
		return ActionBuy
	case score <= 30:
		return ActionShort
	case score <= 45:
		return ActionSell
	default:
		return ActionHold
	}
}

// BuyFactor scales the per-trade budget by conviction.
func BuyFactor(score float64) float64 {
	switch {
	case score == 100:
		return 19
	case score >= 90:
		return 14
	case score >= 80:
		return 6
	case score >= 70:
		return 3
	default:
		return 0
	}
}

// ShortMultiplier scales the per-trade budget for shorts.
func ShortMultiplier(score float64) float64 {
	switch {
	case score == 0:
		return 15
	case score <= 10:
		return 9
	case score <= 20:
		return 4
	case score <= 30:
		return 2
	default:
		return 1
	}
}

// Sizer holds the account-relative sizing constants.
type Sizer struct {
	// EquityDivisor turns equity into the per-trade budget Y.
	EquityDivisor float64
	// MinNotional is the prior-session volume*price gate for buys and shorts.
	MinNotional float64
}

func (s Sizer) Budget(equity float64) float64 {
	if s.EquityDivisor <= 0 {
		return 0
	}
	return equity / s.EquityDivisor
}

// Liquid reports whether volume*price clears the notional gate.
func (s Sizer) Liquid(volume, price float64) bool {
	return volume*price >= s.MinNotional
}

// maxAffordable caps size at the 2:1 RegT headroom, (2*equity - equity)/price.
func maxAffordable(equity, price float64) float64 {
	return (equity*2 - equity) / price
}

// BuyQty is min(Y*factor/price, equity/price). Fractional shares are kept.
func (s Sizer) BuyQty(score, equity, price float64) float64 {
	if !(price > 0) {
		return 0
	}
	q := s.Budget(equity) * BuyFactor(score) / price
	return math.Max(0, math.Min(q, maxAffordable(equity, price)))
}

// ShortQty is floor(min(Y*multiplier/price, equity/price)); zero means the
// order cannot be placed.
func (s Sizer) ShortQty(score, equity, price float64) float64 {
	if !(price > 0) {
		return 0
	}
	q := math.Floor(s.Budget(equity) * ShortMultiplier(score) / price)
	return math.Max(0, math.Floor(math.Min(q, maxAffordable(equity, price))))
}

// SellQty halves a long, rounding up.
func SellQty(held float64) float64 {
	if !(held > 0) {
		return 0
	}
	return math.Ceil(held / 2)
}
