package trader

import (
	"context"
	"fmt"
	"math"
	"testing"

	"exalted/internal/pkg/retry"
	"exalted/internal/trading"
	"exalted/internal/trading/tradingtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testSizer = Sizer{EquityDivisor: 500, MinNotional: 5_000_000}

func TestClassify(t *testing.T) {
	cases := map[float64]Action{
		100: ActionBuy, 70: ActionBuy, 69.9: ActionHold, 46: ActionHold,
		45: ActionSell, 30.5: ActionSell, 30: ActionShort, 0: ActionShort,
	}
	for score, want := range cases {
		assert.Equal(t, want, Classify(score), "score %v", score)
	}
}

func TestFactorsAndMultipliers(t *testing.T) {
	assert.Equal(t, 19.0, BuyFactor(100))
	assert.Equal(t, 14.0, BuyFactor(99.5))
	assert.Equal(t, 6.0, BuyFactor(80))
	assert.Equal(t, 3.0, BuyFactor(70))

	assert.Equal(t, 15.0, ShortMultiplier(0))
	assert.Equal(t, 9.0, ShortMultiplier(10))
	assert.Equal(t, 4.0, ShortMultiplier(20))
	assert.Equal(t, 2.0, ShortMultiplier(30))
}

func TestBuyQtyUsesBudgetAndCap(t *testing.T) {
	assert.Equal(t, 38.0, testSizer.BuyQty(100, 50_000, 50))
	// Y*factor above the RegT headroom is capped at equity/price
	assert.Equal(t, 10.0, Sizer{EquityDivisor: 1}.BuyQty(100, 1_000, 100))
}

func TestShortQty(t *testing.T) {
	assert.Equal(t, 75.0, testSizer.ShortQty(0, 50_000, 20))
	assert.Equal(t, 0.0, testSizer.ShortQty(30, 50_000, 250))
}

func TestSellQtyAndLiquidity(t *testing.T) {
	assert.Equal(t, 5.0, SellQty(9))
	assert.Equal(t, 0.0, SellQty(-3))
	assert.False(t, testSizer.Liquid(100_000, 40))
	assert.True(t, testSizer.Liquid(125_000, 40))
}

func TestValidTicker(t *testing.T) {
	assert.True(t, ValidTicker("AAPL"))
	assert.False(t, ValidTicker("BRK.B"))
	assert.False(t, ValidTicker("aapl"))
	assert.False(t, ValidTicker(""))
}

type fixture struct {
	broker *tradingtest.Broker
	prices *tradingtest.Prices
	volume *tradingtest.Volume
	exec   *Executor
}

func newFixture() *fixture {
	f := &fixture{
		broker: &tradingtest.Broker{},
		prices: &tradingtest.Prices{},
		volume: &tradingtest.Volume{},
	}
	f.exec = NewExecutor(Deps{Broker: f.broker, Prices: f.prices, Volume: f.volume, Sizer: testSizer})
	return f
}

func TestExecuteBuy(t *testing.T) {
	f := newFixture()
	f.volume.On("PriorSessionVolume", mock.Anything, "AAPL").Return(1_000_000.0, nil)
	f.prices.On("CurrentPrice", mock.Anything, "AAPL").Return(50.0, nil)
	f.broker.On("Account", mock.Anything).Return(trading.AccountSnapshot{Equity: 50_000}, nil)
	f.broker.On("SubmitOrder", mock.Anything, mock.Anything).Return("o1", nil)

	out := f.exec.ExecuteSignal(context.Background(), trading.ScoreSignal{ID: 1, Ticker: "AAPL", Score: 100})
	assert.Equal(t, trading.StatusSuccess, out.Status)

	orders := f.broker.Submitted()
	require.Len(t, orders, 1)
	assert.Equal(t, trading.SideBuy, orders[0].Side)
	assert.Equal(t, 38.0, orders[0].Qty)
	assert.Equal(t, 50.35, orders[0].LimitPrice)
	assert.True(t, orders[0].ExtendedHours)
	assert.Equal(t, trading.TimeInForceDay, orders[0].TimeInForce)
	assert.NotEmpty(t, orders[0].ClientOrderID)
}

func TestExecuteBuyRejectsIlliquid(t *testing.T) {
	f := newFixture()
	f.volume.On("PriorSessionVolume", mock.Anything, "THIN").Return(100_000.0, nil)
	f.prices.On("CurrentPrice", mock.Anything, "THIN").Return(40.0, nil)

	out := f.exec.ExecuteSignal(context.Background(), trading.ScoreSignal{ID: 1, Ticker: "THIN", Score: 95})
	assert.Equal(t, trading.StatusSkipped, out.Status)
	assert.True(t, out.Is(trading.ErrNoLiquidity))
	f.broker.AssertNotCalled(t, "SubmitOrder", mock.Anything, mock.Anything)
}

func TestExecuteShortLiquidatesLongFirst(t *testing.T) {
	f := newFixture()
	f.volume.On("PriorSessionVolume", mock.Anything, "TSLA").Return(1_000_000.0, nil)
	f.prices.On("CurrentPrice", mock.Anything, "TSLA").Return(20.004, nil)
	f.broker.On("Account", mock.Anything).Return(trading.AccountSnapshot{Equity: 50_000}, nil)
	f.broker.On("Position", mock.Anything, "TSLA").Return(trading.Position{Symbol: "TSLA", Qty: 12}, nil)
	f.broker.On("SubmitOrder", mock.Anything, mock.Anything).Return("o", nil)

	out := f.exec.ExecuteSignal(context.Background(), trading.ScoreSignal{ID: 2, Ticker: "TSLA", Score: 0})
	require.Equal(t, trading.StatusSuccess, out.Status)

	orders := f.broker.Submitted()
	require.Len(t, orders, 2)
	assert.Equal(t, trading.SideSell, orders[0].Side)
	assert.Equal(t, 12.0, orders[0].Qty)
	assert.Equal(t, 20.0, orders[0].LimitPrice)

	assert.Equal(t, trading.SideSell, orders[1].Side)
	assert.Equal(t, 74.0, orders[1].Qty) // floor(1500/20.004)
	assert.Equal(t, 19.86, orders[1].LimitPrice)
}

func TestExecuteShortZeroQuantity(t *testing.T) {
	f := newFixture()
	f.volume.On("PriorSessionVolume", mock.Anything, "BIG").Return(1_000_000.0, nil)
	f.prices.On("CurrentPrice", mock.Anything, "BIG").Return(250.0, nil)
	f.broker.On("Account", mock.Anything).Return(trading.AccountSnapshot{Equity: 50_000}, nil)
	f.broker.On("Position", mock.Anything, "BIG").Return(trading.Position{}, trading.ErrNoPosition)

	out := f.exec.ExecuteSignal(context.Background(), trading.ScoreSignal{ID: 3, Ticker: "BIG", Score: 30})
	assert.Equal(t, trading.StatusSkipped, out.Status)
	f.broker.AssertNotCalled(t, "SubmitOrder", mock.Anything, mock.Anything)
}

func TestExecuteSellHalvesLong(t *testing.T) {
	f := newFixture()
	f.volume.On("PriorSessionVolume", mock.Anything, "MSFT").Return(10.0, nil)
	f.broker.On("Position", mock.Anything, "MSFT").Return(trading.Position{Symbol: "MSFT", Qty: 9}, nil)
	f.prices.On("CurrentPrice", mock.Anything, "MSFT").Return(400.0, nil)
	f.broker.On("SubmitOrder", mock.Anything, mock.Anything).Return("o", nil)

	out := f.exec.ExecuteSignal(context.Background(), trading.ScoreSignal{ID: 4, Ticker: "MSFT", Score: 40})
	require.Equal(t, trading.StatusSuccess, out.Status)
	orders := f.broker.Submitted()
	require.Len(t, orders, 1)
	assert.Equal(t, 5.0, orders[0].Qty)
	assert.Equal(t, 396.0, orders[0].LimitPrice)
	f.volume.AssertCalled(t, "PriorSessionVolume", mock.Anything, "MSFT")
}

func TestExecuteSellWithoutVolumeIsNoop(t *testing.T) {
	f := newFixture()
	f.volume.On("PriorSessionVolume", mock.Anything, "MSFT").
		Return(0.0, fmt.Errorf("%w: no prior session volume for MSFT", trading.ErrNoLiquidity))

	out := f.exec.ExecuteSignal(context.Background(), trading.ScoreSignal{ID: 6, Ticker: "MSFT", Score: 40})
	assert.Equal(t, trading.StatusSkipped, out.Status)
	assert.True(t, out.Is(trading.ErrNoLiquidity))
	assert.Empty(t, f.broker.Calls)
	f.prices.AssertNotCalled(t, "CurrentPrice", mock.Anything, mock.Anything)
}

func TestExecuteSellDefersOnUnreachableVolume(t *testing.T) {
	f := newFixture()
	f.volume.On("PriorSessionVolume", mock.Anything, "MSFT").
		Return(0.0, fmt.Errorf("daily bars: %w", retry.ErrExhausted))

	out := f.exec.ExecuteSignal(context.Background(), trading.ScoreSignal{ID: 7, Ticker: "MSFT", Score: 40})
	assert.Equal(t, trading.StatusFailed, out.Status)
	assert.True(t, out.Is(trading.ErrDeferred))
	assert.Empty(t, f.broker.Calls)
}

func TestExecuteSellWithoutPosition(t *testing.T) {
	f := newFixture()
	f.volume.On("PriorSessionVolume", mock.Anything, "MSFT").Return(10.0, nil)
	f.broker.On("Position", mock.Anything, "MSFT").Return(trading.Position{}, trading.ErrNoPosition)
	out := f.exec.ExecuteSignal(context.Background(), trading.ScoreSignal{ID: 5, Ticker: "MSFT", Score: 35})
	assert.Equal(t, trading.StatusSkipped, out.Status)
	f.prices.AssertNotCalled(t, "CurrentPrice", mock.Anything, mock.Anything)
}

func TestExecuteValidationAndHold(t *testing.T) {
	f := newFixture()
	out := f.exec.ExecuteSignal(context.Background(), trading.ScoreSignal{ID: 1, Ticker: "BRK.B", Score: 90})
	assert.True(t, out.Is(trading.ErrInvalidSignal))
	out = f.exec.ExecuteSignal(context.Background(), trading.ScoreSignal{ID: 2, Ticker: "AAPL", Score: math.NaN()})
	assert.True(t, out.Is(trading.ErrInvalidSignal))
	out = f.exec.ExecuteSignal(context.Background(), trading.ScoreSignal{ID: 3, Ticker: "AAPL", Score: 55})
	assert.Equal(t, string(ActionHold), out.Action)
	assert.Empty(t, f.broker.Calls)
	assert.Empty(t, f.volume.Calls)
}

func TestExecuteRejectionIsFailedOutcome(t *testing.T) {
	f := newFixture()
	f.volume.On("PriorSessionVolume", mock.Anything, "AAPL").Return(1_000_000.0, nil)
	f.prices.On("CurrentPrice", mock.Anything, "AAPL").Return(50.0, nil)
	f.broker.On("Account", mock.Anything).Return(trading.AccountSnapshot{Equity: 50_000}, nil)
	f.broker.On("SubmitOrder", mock.Anything, mock.Anything).Return("", fmt.Errorf("%w: insufficient buying power", trading.ErrOrderRejected))

	out := f.exec.ExecuteSignal(context.Background(), trading.ScoreSignal{ID: 1, Ticker: "AAPL", Score: 75})
	assert.Equal(t, trading.StatusFailed, out.Status)
	assert.True(t, out.Is(trading.ErrOrderRejected))
	assert.False(t, out.Is(trading.ErrDeferred))
}

func TestExecuteDefersOnUnreachableRead(t *testing.T) {
	f := newFixture()
	f.volume.On("PriorSessionVolume", mock.Anything, "AAPL").Return(1_000_000.0, nil)
	f.prices.On("CurrentPrice", mock.Anything, "AAPL").Return(0.0, fmt.Errorf("latest trade: %w", retry.ErrExhausted))

	out := f.exec.ExecuteSignal(context.Background(), trading.ScoreSignal{ID: 1, Ticker: "AAPL", Score: 75})
	assert.Equal(t, trading.StatusFailed, out.Status)
	assert.True(t, out.Is(trading.ErrDeferred))
	assert.True(t, out.Is(retry.ErrExhausted))
}

func TestExitsGuards(t *testing.T) {
	b := &tradingtest.Broker{}
	b.On("Position", mock.Anything, "AAPL").Return(trading.Position{Symbol: "AAPL", Qty: 5}, nil)
	b.On("OpenOrders", mock.Anything).Return([]trading.OpenOrder{{ID: "x", Symbol: "TSLA", Side: trading.SideBuy, Qty: 1}}, nil)
	ex := Exits{Broker: b}

	_, err := ex.Sell(context.Background(), "AAPL", 6, 10)
	assert.ErrorIs(t, err, trading.ErrInsufficientPosition)

	_, err = ex.Cover(context.Background(), "TSLA", 3, 10)
	assert.ErrorIs(t, err, ErrCoverPending)
	b.AssertNotCalled(t, "SubmitOrder", mock.Anything, mock.Anything)
}
