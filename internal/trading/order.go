package trading

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	TimeInForceDay = "day"
	OrderTypeLimit = "limit"
)

// OrderRequest describes a day limit order eligible for extended hours.
type OrderRequest struct {
	Symbol        string
	Side          Side
	Qty           float64
	LimitPrice    float64
	TimeInForce   string
	ExtendedHours bool
	ClientOrderID string
}

// NewLimitOrder builds the only order shape the engine submits.
func NewLimitOrder(symbol string, side Side, qty, limitPrice float64) OrderRequest {
	return OrderRequest{
		Symbol:        NormalizeSymbol(symbol),
		Side:          side,
		Qty:           qty,
		LimitPrice:    limitPrice,
		TimeInForce:   TimeInForceDay,
		ExtendedHours: true,
		ClientOrderID: uuid.New().String(),
	}
}

// Validate rejects requests the brokerage would refuse anyway.
func (o OrderRequest) Validate() error {
	if o.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidSignal)
	}
	if o.Side != SideBuy && o.Side != SideSell {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidSignal, o.Side)
	}
	if !(o.Qty > 0) {
		return fmt.Errorf("%w: qty must be positive, got %v", ErrInvalidSignal, o.Qty)
	}
	if !(o.LimitPrice > 0) {
		return fmt.Errorf("%w: limit price must be positive, got %v", ErrInvalidSignal, o.LimitPrice)
	}
	return nil
}

func (o OrderRequest) Notional() float64 { return o.Qty * o.LimitPrice }

func (o OrderRequest) String() string {
	return fmt.Sprintf("%s %g %s @ %.2f", o.Side, o.Qty, o.Symbol, o.LimitPrice)
}
