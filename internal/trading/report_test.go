package trading

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountSnapshotDerivedValues(t *testing.T) {
	acct := AccountSnapshot{Equity: 10000, PositionMarketValue: 19700}
	assert.InDelta(t, 20000, acct.RegTBuyingPower(), 1e-9)
	assert.InDelta(t, 19600, acct.BufferThreshold(), 1e-9)
	assert.InDelta(t, 1.5, acct.UnspentPct(), 1e-9)
}

func TestPositionExitSide(t *testing.T) {
	assert.Equal(t, SideSell, Position{Qty: 10}.ExitSide())
	assert.Equal(t, SideBuy, Position{Qty: -10}.ExitSide())
	assert.Equal(t, 10.0, Position{Qty: -10}.AbsQty())
}

func TestNewLimitOrder(t *testing.T) {
	o := NewLimitOrder(" aapl ", SideBuy, 3, 101.25)
	assert.Equal(t, "AAPL", o.Symbol)
	assert.Equal(t, TimeInForceDay, o.TimeInForce)
	assert.True(t, o.ExtendedHours)
	assert.NotEmpty(t, o.ClientOrderID)
	require.NoError(t, o.Validate())

	other := NewLimitOrder("AAPL", SideBuy, 3, 101.25)
	assert.NotEqual(t, o.ClientOrderID, other.ClientOrderID)

	bad := NewLimitOrder("AAPL", SideSell, 0, 10)
	assert.ErrorIs(t, bad.Validate(), ErrInvalidSignal)
}

func TestReportCountsAndBoard(t *testing.T) {
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	r := NewReport("risk", now)
	order := NewLimitOrder("MSFT", SideSell, 5, 300)
	r.Add(Success("", "MSFT", "trailing_stop", &order))
	r.Add(Skipped("", "AAPL", "trailing_stop", "covered by open orders", nil))
	r.Add(Failed("", "TSLA", "trailing_stop", fmt.Errorf("submit: %w", ErrOrderRejected)))
	r.Finish(now.Add(time.Second))

	counts := r.Counts()
	assert.Equal(t, 1, counts[StatusSuccess])
	assert.Equal(t, 1, counts[StatusSkipped])
	assert.Equal(t, 1, counts[StatusFailed])
	assert.Len(t, r.Orders(), 1)
	assert.True(t, r.Outcomes[2].Is(ErrOrderRejected))
	assert.Equal(t, "risk", r.Outcomes[0].Activity)

	b := NewBoard()
	b.Publish(r)
	r.Add(Success("", "NVDA", "x", nil))
	got, ok := b.Latest("risk")
	require.True(t, ok)
	assert.Len(t, got.Outcomes, 3)

	r2 := NewReport("housekeeping.stale", now)
	r2.Abandon(errors.New("boom"))
	b.Publish(r2)
	snap := b.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "housekeeping.stale", snap[0].Activity)
	assert.Equal(t, "boom", snap[0].Error)
}
