package trader

import (
	"context"
	"errors"
	"fmt"
	"math"

	"exalted/internal/logger"
	"exalted/internal/pkg/pricing"
	"exalted/internal/pkg/retry"
	"exalted/internal/trading"
)

const Activity = "trade"

type Deps struct {
	Broker trading.Broker
	Prices trading.PriceSource
	Volume trading.VolumeSource
	Sizer  Sizer
}

// Executor applies score signals.
type Executor struct {
	deps  Deps
	exits Exits
}

func NewExecutor(deps Deps) *Executor {
	return &Executor{deps: deps, exits: Exits{Broker: deps.Broker}}
}

// ExecuteSignal validates, sizes and submits the order a signal asks for.
// Brokerage rejections become failed outcomes; reads that could not reach
// their collaborator come back wrapped in trading.ErrDeferred.
func (e *Executor) ExecuteSignal(ctx context.Context, sig trading.ScoreSignal) trading.Outcome {
	symbol := sig.Ticker
	log := logger.With("signal", sig.ID, "symbol", symbol, "score", sig.Score)

	if !ValidTicker(symbol) {
		log.Info("invalid ticker, no trade")
		return trading.Skipped(Activity, symbol, "validate", "invalid ticker",
			fmt.Errorf("%w: ticker %q", trading.ErrInvalidSignal, symbol))
	}
	if math.IsNaN(sig.Score) || math.IsInf(sig.Score, 0) {
		log.Info("score is not a number, no trade")
		return trading.Skipped(Activity, symbol, "validate", "score is not a number",
			fmt.Errorf("%w: score %v", trading.ErrInvalidSignal, sig.Score))
	}

	action := Classify(sig.Score)
	switch action {
	case ActionBuy:
		return e.buy(ctx, sig)
	case ActionShort:
		return e.short(ctx, sig)
	case ActionSell:
		return e.sell(ctx, sig)
	default:
		log.Info("neutral score, holding")
		return trading.Skipped(Activity, symbol, string(ActionHold), "neutral score", nil)
	}
}

// quote is the market state shared by buys and shorts.
type quote struct {
	price  float64
	volume float64
	equity float64
}

func (e *Executor) liquidQuote(ctx context.Context, symbol string, action Action) (quote, *trading.Outcome) {
	volume, err := e.deps.Volume.PriorSessionVolume(ctx, symbol)
	if err != nil {
		out := readFailure(symbol, action, "volume", err, trading.ErrNoLiquidity)
		return quote{}, &out
	}
	price, err := e.deps.Prices.CurrentPrice(ctx, symbol)
	if err != nil {
		out := readFailure(symbol, action, "price", err, trading.ErrNoPrice)
		return quote{}, &out
	}
	if !e.deps.Sizer.Liquid(volume, price) {
		out := trading.Skipped(Activity, symbol, string(action),
			fmt.Sprintf("notional %.0f below %.0f", volume*price, e.deps.Sizer.MinNotional),
			fmt.Errorf("%w: %s notional %.0f", trading.ErrNoLiquidity, symbol, volume*price))
		return quote{}, &out
	}
	acct, err := e.deps.Broker.Account(ctx)
	if err != nil {
		out := readFailure(symbol, action, "account", err, nil)
		return quote{}, &out
	}
	logger.Infof("%s %s: notional=%.0f equity=%.2f buying_power=%.2f", action, symbol, volume*price, acct.Equity, acct.BuyingPower)
	return quote{price: price, volume: volume, equity: acct.Equity}, nil
}

func (e *Executor) buy(ctx context.Context, sig trading.ScoreSignal) trading.Outcome {
	q, out := e.liquidQuote(ctx, sig.Ticker, ActionBuy)
	if out != nil {
		return *out
	}
	qty := e.deps.Sizer.BuyQty(sig.Score, q.equity, q.price)
	if !(qty > 0) {
		return trading.Skipped(Activity, sig.Ticker, string(ActionBuy), "zero quantity", nil)
	}
	req := trading.NewLimitOrder(sig.Ticker, trading.SideBuy, qty, pricing.Offset(q.price, pricing.BuyOffset))
	return e.place(ctx, string(ActionBuy), req)
}

func (e *Executor) short(ctx context.Context, sig trading.ScoreSignal) trading.Outcome {
	q, out := e.liquidQuote(ctx, sig.Ticker, ActionShort)
	if out != nil {
		return *out
	}

	held, err := e.heldLong(ctx, sig.Ticker)
	if err != nil {
		return readFailure(sig.Ticker, ActionShort, "position", err, nil)
	}
	if held > 0 {
		if _, err := e.exits.Sell(ctx, sig.Ticker, held, pricing.RoundCents(q.price)); err != nil {
			logger.Warnf("short %s: liquidating long of %g failed: %v", sig.Ticker, held, err)
		}
	}

	qty := e.deps.Sizer.ShortQty(sig.Score, q.equity, q.price)
	if qty == 0 {
		logger.Infof("short %s: cannot short fractional shares, skipping", sig.Ticker)
		return trading.Skipped(Activity, sig.Ticker, string(ActionShort), "short quantity rounds to zero", nil)
	}
	req := trading.NewLimitOrder(sig.Ticker, trading.SideSell, qty, pricing.Offset(q.price, pricing.ShortOffset))
	return e.place(ctx, string(ActionShort), req)
}

// sell needs a prior session like every trade, but no notional floor.
func (e *Executor) sell(ctx context.Context, sig trading.ScoreSignal) trading.Outcome {
	if _, err := e.deps.Volume.PriorSessionVolume(ctx, sig.Ticker); err != nil {
		return readFailure(sig.Ticker, ActionSell, "volume", err, trading.ErrNoLiquidity)
	}
	held, err := e.heldLong(ctx, sig.Ticker)
	if err != nil {
		return readFailure(sig.Ticker, ActionSell, "position", err, nil)
	}
	qty := SellQty(held)
	if qty == 0 {
		return trading.Skipped(Activity, sig.Ticker, string(ActionSell), "no long position", nil)
	}
	price, err := e.deps.Prices.CurrentPrice(ctx, sig.Ticker)
	if err != nil {
		return readFailure(sig.Ticker, ActionSell, "price", err, trading.ErrNoPrice)
	}
	req := trading.NewLimitOrder(sig.Ticker, trading.SideSell, qty, pricing.Offset(price, pricing.SellOffset))
	return e.place(ctx, string(ActionSell), req)
}

// heldLong returns the long quantity held, 0 when flat or short.
func (e *Executor) heldLong(ctx context.Context, symbol string) (float64, error) {
	pos, err := e.deps.Broker.Position(ctx, symbol)
	if errors.Is(err, trading.ErrNoPosition) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return math.Max(pos.Qty, 0), nil
}

func (e *Executor) place(ctx context.Context, action string, req trading.OrderRequest) trading.Outcome {
	if _, err := e.exits.Submit(ctx, req); err != nil {
		logger.Errorf("%s %s failed: %v", action, req, err)
		return trading.Failed(Activity, req.Symbol, action, err)
	}
	return trading.Success(Activity, req.Symbol, action, &req)
}

// readFailure classifies a failed lookup: unreachable collaborators defer the
// signal, an answer matching noData skips it, anything else fails it.
func readFailure(symbol string, action Action, what string, err, noData error) trading.Outcome {
	if retry.Unavailable(err) {
		return trading.Failed(Activity, symbol, string(action),
			fmt.Errorf("%w: %s lookup for %s: %w", trading.ErrDeferred, what, symbol, err))
	}
	if noData != nil && errors.Is(err, noData) {
		return trading.Skipped(Activity, symbol, string(action), what+" unavailable", err)
	}
	return trading.Failed(Activity, symbol, string(action), fmt.Errorf("%s lookup for %s: %w", what, symbol, err))
}
