package trading

import "errors"

var (
	// ErrInvalidSignal marks a signal with a malformed ticker or a non-finite score.
	ErrInvalidSignal = errors.New("invalid signal")
	// ErrNoLiquidity covers missing volume data and notional below the threshold.
	ErrNoLiquidity = errors.New("insufficient liquidity")
	// ErrNoPrice means no current price could be resolved.
	ErrNoPrice = errors.New("price unavailable")
	// ErrNoPosition is returned by Broker.Position when the symbol is not held.
	ErrNoPosition = errors.New("position not found")
	// ErrInsufficientPosition aborts a sell or cover larger than what is held.
	ErrInsufficientPosition = errors.New("insufficient position")
	// ErrOrderRejected wraps a brokerage refusal to create or cancel an order.
	ErrOrderRejected = errors.New("order rejected")
)

// ErrDeferred marks a signal whose application was abandoned because a
// collaborator could not be reached; it should be attempted again later.
var ErrDeferred = errors.New("deferred: collaborator unavailable")
