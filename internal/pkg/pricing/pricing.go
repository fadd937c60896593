// Package pricing provides cent-precision limit price and percentage-move helpers.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

// Limit price offsets relative to the current trade price.
const (
	BuyOffset        = 1.007
	SellOffset       = 0.99
	CoverOffset      = 1.01
	ShortOffset      = 0.993
	centPlaces int32 = 2
)

var decZero = decimal.Zero

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decZero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

// RoundCents rounds half away from zero to two decimals.
func RoundCents(p float64) float64 {
	return decToFloat(decFromFloat(p).Round(centPlaces))
}

// FloorCents truncates toward negative infinity at two decimals.
func FloorCents(p float64) float64 {
	return decToFloat(decFromFloat(p).RoundFloor(centPlaces))
}

// Offset returns price*factor rounded to cents.
func Offset(price, factor float64) float64 {
	return decToFloat(decFromFloat(price).Mul(decFromFloat(factor)).Round(centPlaces))
}

// ExitLimit is the market-adjacent limit for closing a position:
// below the market for a long, above it for a short.
func ExitLimit(short bool, current float64) float64 {
	if short {
		return Offset(current, CoverOffset)
	}
	return Offset(current, SellOffset)
}

// Gain is the signed move from the logged extreme in the position's favour.
// Long: (current - highest) / highest. Short: (lowest - current) / lowest.
// It is never positive for a long once highest tracks current.
func Gain(short bool, highest, lowest, current float64) float64 {
	var ref decimal.Decimal
	var diff decimal.Decimal
	cur := decFromFloat(current)
	if short {
		ref = decFromFloat(lowest)
		diff = ref.Sub(cur)
	} else {
		ref = decFromFloat(highest)
		diff = cur.Sub(ref)
	}
	if ref.Sign() <= 0 {
		return 0
	}
	return decToFloat(diff.Div(ref))
}

// AdverseMove is the retracement against the position as a positive fraction.
func AdverseMove(short bool, highest, lowest, current float64) float64 {
	return -Gain(short, highest, lowest, current)
}

// AtLeast compares two fractions at decimal precision so that a move of exactly
// the threshold counts as reaching it.
func AtLeast(value, threshold float64) bool {
	return decFromFloat(value).Round(10).Cmp(decFromFloat(threshold).Round(10)) >= 0
}
