package trader

import (
	"context"
	"errors"
	"fmt"

	"exalted/internal/logger"
	"exalted/internal/trading"
)

// ErrCoverPending means a buy order is already working on the symbol.
var ErrCoverPending = errors.New("cover order already open")

// Exits submits position-reducing orders with the brokerage-side guards the
// risk paths rely on.
type Exits struct {
	Broker trading.Broker
}

// Sell places a sell of qty after checking the held long covers it.
func (e Exits) Sell(ctx context.Context, symbol string, qty, limit float64) (trading.OrderRequest, error) {
	pos, err := e.Broker.Position(ctx, symbol)
	if err != nil && !errors.Is(err, trading.ErrNoPosition) {
		return trading.OrderRequest{}, err
	}
	if pos.Qty < qty {
		return trading.OrderRequest{}, fmt.Errorf("%w: %s held %g, want to sell %g",
			trading.ErrInsufficientPosition, symbol, pos.Qty, qty)
	}
	return e.submit(ctx, trading.NewLimitOrder(symbol, trading.SideSell, qty, limit))
}

// Cover places a buy-to-cover of qty unless a buy order is already open on
// the symbol.
func (e Exits) Cover(ctx context.Context, symbol string, qty, limit float64) (trading.OrderRequest, error) {
	orders, err := e.Broker.OpenOrders(ctx)
	if err != nil {
		return trading.OrderRequest{}, err
	}
	sym := trading.NormalizeSymbol(symbol)
	for _, o := range orders {
		if o.Symbol == sym && o.Side == trading.SideBuy {
			return trading.OrderRequest{}, fmt.Errorf("%w: %s order %s", ErrCoverPending, sym, o.ID)
		}
	}
	return e.submit(ctx, trading.NewLimitOrder(symbol, trading.SideBuy, qty, limit))
}

// Close reduces pos by qty on its exit side.
func (e Exits) Close(ctx context.Context, pos trading.Position, qty, limit float64) (trading.OrderRequest, error) {
	if pos.IsShort() {
		return e.Cover(ctx, pos.Symbol, qty, limit)
	}
	return e.Sell(ctx, pos.Symbol, qty, limit)
}

// Submit places req without guards.
func (e Exits) Submit(ctx context.Context, req trading.OrderRequest) (trading.OrderRequest, error) {
	return e.submit(ctx, req)
}

func (e Exits) submit(ctx context.Context, req trading.OrderRequest) (trading.OrderRequest, error) {
	id, err := e.Broker.SubmitOrder(ctx, req)
	if err != nil {
		return req, err
	}
	logger.Infof("order placed %s id=%s", req, id)
	return req, nil
}
