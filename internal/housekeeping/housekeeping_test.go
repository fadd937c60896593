package housekeeping

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"exalted/internal/state"
	"exalted/internal/trading"
	"exalted/internal/trading/tradingtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC)

type fixedWindow struct{ open bool }

func (fixedWindow) Now() time.Time { return now }
func (w fixedWindow) InWindow(time.Time) bool { return w.open }

type passthrough struct{}

func (passthrough) Evaluate(p []trading.Position) []trading.Position { return p }

func TestStaleCancellerCancelsOldOrders(t *testing.T) {
	b := &tradingtest.Broker{}
	b.On("OpenOrders", mock.Anything).Return([]trading.OpenOrder{
		{ID: "old", Symbol: "AAPL", Side: trading.SideBuy, Qty: 1, CreatedAt: now.Add(-6 * time.Minute)},
		{ID: "edge", Symbol: "AAPL", Side: trading.SideBuy, Qty: 1, CreatedAt: now.Add(-5 * time.Minute)},
		{ID: "fresh", Symbol: "MSFT", Side: trading.SideSell, Qty: 1, CreatedAt: now.Add(-time.Minute)},
	}, nil)
	b.On("CancelOrder", mock.Anything, "old").Return(nil)

	s := &StaleCanceller{Broker: b, MaxAge: 5 * time.Minute, Now: func() time.Time { return now }}
	report := s.Run(context.Background())

	assert.Equal(t, []string{"old"}, b.Cancelled())
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, ActivityStaleOrders, report.Outcomes[0].Activity)
}

func TestStaleCancellerRecordsCancelFailure(t *testing.T) {
	b := &tradingtest.Broker{}
	b.On("OpenOrders", mock.Anything).Return([]trading.OpenOrder{
		{ID: "old", Symbol: "AAPL", Side: trading.SideBuy, Qty: 1, CreatedAt: now.Add(-time.Hour)},
	}, nil)
	b.On("CancelOrder", mock.Anything, "old").Return(errors.New("already filled"))

	s := &StaleCanceller{Broker: b, MaxAge: 5 * time.Minute, Now: func() time.Time { return now }}
	report := s.Run(context.Background())
	assert.Equal(t, 1, report.Counts()[trading.StatusFailed])
}

func TestWindowCancellerInsideWindowDoesNothing(t *testing.T) {
	b := &tradingtest.Broker{}
	w := &WindowCanceller{Broker: b, Window: fixedWindow{open: true}}
	w.Run(context.Background())
	assert.Empty(t, b.Calls)
}

func TestWindowCancellerOutsideWindow(t *testing.T) {
	b := &tradingtest.Broker{}
	b.On("OpenOrders", mock.Anything).Return([]trading.OpenOrder{
		{ID: "buy", Symbol: "AAPL", Side: trading.SideBuy, Qty: 1},
		{ID: "covered", Symbol: "AAPL", Side: trading.SideSell, Qty: 10},
		{ID: "oversell", Symbol: "MSFT", Side: trading.SideSell, Qty: 6},
		{ID: "naked", Symbol: "TSLA", Side: trading.SideSell, Qty: 2},
	}, nil)
	b.On("Positions", mock.Anything).Return([]trading.Position{
		{Symbol: "AAPL", Qty: 10},
		{Symbol: "MSFT", Qty: 5},
	}, nil)
	b.On("CancelOrder", mock.Anything, mock.Anything).Return(nil)

	w := &WindowCanceller{Broker: b, Window: fixedWindow{open: false}}
	report := w.Run(context.Background())

	assert.Equal(t, []string{"buy", "oversell", "naked"}, b.Cancelled())
	assert.Equal(t, 3, report.Counts()[trading.StatusSuccess])
}

func newSweep(t *testing.T, b *tradingtest.Broker) (*ThresholdSweep, *state.ExtremesFile) {
	t.Helper()
	file := state.NewExtremesFile(filepath.Join(t.TempDir(), "Positions.txt"))
	return &ThresholdSweep{
		Broker:    b,
		Pricer:    passthrough{},
		Extremes:  file,
		Threshold: 0.035,
		Now:       func() time.Time { return now },
	}, file
}

func TestThresholdSweepExitsWholePosition(t *testing.T) {
	b := &tradingtest.Broker{}
	b.On("Positions", mock.Anything).Return([]trading.Position{
		{Symbol: "AAPL", Qty: 8, AvgEntryPrice: 100, CurrentPrice: 96},
		{Symbol: "MSFT", Qty: 8, AvgEntryPrice: 100, CurrentPrice: 97},
		{Symbol: "TSLA", Qty: -4, AvgEntryPrice: 200, CurrentPrice: 207},
	}, nil)
	b.On("SubmitOrder", mock.Anything, mock.Anything).Return("o", nil)

	s, _ := newSweep(t, b)
	report := s.Run(context.Background())

	orders := b.Submitted()
	require.Len(t, orders, 2)
	assert.Equal(t, "AAPL", orders[0].Symbol)
	assert.Equal(t, trading.SideSell, orders[0].Side)
	assert.Equal(t, 8.0, orders[0].Qty)
	assert.Equal(t, 95.04, orders[0].LimitPrice)

	assert.Equal(t, "TSLA", orders[1].Symbol)
	assert.Equal(t, trading.SideBuy, orders[1].Side)
	assert.Equal(t, 4.0, orders[1].Qty)
	assert.Equal(t, 209.07, orders[1].LimitPrice)
	assert.Len(t, report.Orders(), 2)
}

func TestThresholdSweepUsesLoggedExtremesReadOnly(t *testing.T) {
	b := &tradingtest.Broker{}
	b.On("Positions", mock.Anything).Return([]trading.Position{
		{Symbol: "AAPL", Qty: 8, AvgEntryPrice: 100, CurrentPrice: 115},
	}, nil)
	b.On("SubmitOrder", mock.Anything, mock.Anything).Return("", errors.New("duplicate order"))

	s, file := newSweep(t, b)
	seed := state.NewExtremesLog()
	seed.Update("AAPL", 100, 120)
	require.NoError(t, file.Save(seed))

	report := s.Run(context.Background())
	require.Len(t, b.Submitted(), 1)
	assert.Equal(t, 1, report.Counts()[trading.StatusSkipped])

	ext, _ := file.Load().Lookup("AAPL")
	assert.Equal(t, 100.0, ext.Lowest)
	assert.Equal(t, 120.0, ext.Highest)
}
