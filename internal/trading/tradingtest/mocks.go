// Package tradingtest provides testify mocks of the trading collaborators.
package tradingtest

import (
	"context"

	"exalted/internal/trading"

	"github.com/stretchr/testify/mock"
)

type Broker struct{ mock.Mock }

var _ trading.Broker = (*Broker)(nil)

func (m *Broker) Account(ctx context.Context) (trading.AccountSnapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(trading.AccountSnapshot), args.Error(1)
}

func (m *Broker) Positions(ctx context.Context) ([]trading.Position, error) {
	args := m.Called(ctx)
	positions, _ := args.Get(0).([]trading.Position)
	return positions, args.Error(1)
}

func (m *Broker) Position(ctx context.Context, symbol string) (trading.Position, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(trading.Position), args.Error(1)
}

func (m *Broker) OpenOrders(ctx context.Context) ([]trading.OpenOrder, error) {
	args := m.Called(ctx)
	orders, _ := args.Get(0).([]trading.OpenOrder)
	return orders, args.Error(1)
}

func (m *Broker) SubmitOrder(ctx context.Context, req trading.OrderRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *Broker) CancelOrder(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// Submitted returns the order requests passed to SubmitOrder, in call order.
func (m *Broker) Submitted() []trading.OrderRequest {
	var out []trading.OrderRequest
	for _, c := range m.Calls {
		if c.Method == "SubmitOrder" {
			out = append(out, c.Arguments.Get(1).(trading.OrderRequest))
		}
	}
	return out
}

// Cancelled returns the order ids passed to CancelOrder, in call order.
func (m *Broker) Cancelled() []string {
	var out []string
	for _, c := range m.Calls {
		if c.Method == "CancelOrder" {
			out = append(out, c.Arguments.String(1))
		}
	}
	return out
}

type Prices struct{ mock.Mock }

var _ trading.PriceSource = (*Prices)(nil)

func (m *Prices) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

type Volume struct{ mock.Mock }

var _ trading.VolumeSource = (*Volume)(nil)

func (m *Volume) PriorSessionVolume(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}
