// Package broker adapts an Alpaca-compatible trading REST API to the
// trading.Broker interface.
package broker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"exalted/internal/config"
	"exalted/internal/gateway/rest"
	"exalted/internal/pkg/convert"
	"exalted/internal/pkg/retry"
	"exalted/internal/trading"
)

// Client talks to the brokerage.
type Client struct {
	rest *rest.Client
}

func NewClient(cfg config.BrokerConfig, retrier *retry.Retrier) (*Client, error) {
	rc, err := rest.NewClient("broker", cfg.BaseURL, cfg.Timeout(), retrier)
	if err != nil {
		return nil, err
	}
	rc.SetHeader("APCA-API-KEY-ID", strings.TrimSpace(cfg.APIKeyID))
	rc.SetHeader("APCA-API-SECRET-KEY", strings.TrimSpace(cfg.APISecretKey))
	return &Client{rest: rc}, nil
}

// REST exposes the underlying client, for tests.
func (c *Client) REST() *rest.Client { return c.rest }

var _ trading.Broker = (*Client)(nil)

type accountDTO struct {
	Equity              convert.Number `json:"equity"`
	BuyingPower         convert.Number `json:"buying_power"`
	PositionMarketValue convert.Number `json:"position_market_value"`
	LongMarketValue     convert.Number `json:"long_market_value"`
	ShortMarketValue    convert.Number `json:"short_market_value"`
}

type positionDTO struct {
	Symbol        string         `json:"symbol"`
	Qty           convert.Number `json:"qty"`
	Side          string         `json:"side"`
	AvgEntryPrice convert.Number `json:"avg_entry_price"`
	CurrentPrice  convert.Number `json:"current_price"`
	MarketValue   convert.Number `json:"market_value"`
}

type orderDTO struct {
	ID        string         `json:"id"`
	Symbol    string         `json:"symbol"`
	Side      string         `json:"side"`
	Qty       convert.Number `json:"qty"`
	CreatedAt time.Time      `json:"created_at"`
}

type orderPayload struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"time_in_force"`
	LimitPrice    string `json:"limit_price"`
	ExtendedHours bool   `json:"extended_hours"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

func (c *Client) Account(ctx context.Context) (trading.AccountSnapshot, error) {
	var dto accountDTO
	if err := c.rest.DoJSON(ctx, http.MethodGet, "/v2/account", nil, &dto); err != nil {
		return trading.AccountSnapshot{}, err
	}
	pmv := dto.PositionMarketValue.Float64()
	if pmv == 0 {
		pmv = dto.LongMarketValue.Float64() - dto.ShortMarketValue.Float64()
	}
	return trading.AccountSnapshot{
		Equity:              dto.Equity.Float64(),
		BuyingPower:         dto.BuyingPower.Float64(),
		PositionMarketValue: pmv,
	}, nil
}

func (c *Client) Positions(ctx context.Context) ([]trading.Position, error) {
	var dtos []positionDTO
	if err := c.rest.DoJSON(ctx, http.MethodGet, "/v2/positions", nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]trading.Position, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toPosition())
	}
	return out, nil
}

func (c *Client) Position(ctx context.Context, symbol string) (trading.Position, error) {
	symbol = trading.NormalizeSymbol(symbol)
	var dto positionDTO
	err := c.rest.DoJSON(ctx, http.MethodGet, "/v2/positions/"+url.PathEscape(symbol), nil, &dto)
	if err != nil {
		if rest.StatusOf(err) == http.StatusNotFound {
			return trading.Position{}, fmt.Errorf("%w: %s", trading.ErrNoPosition, symbol)
		}
		return trading.Position{}, err
	}
	return dto.toPosition(), nil
}

func (c *Client) OpenOrders(ctx context.Context) ([]trading.OpenOrder, error) {
	var dtos []orderDTO
	if err := c.rest.DoJSON(ctx, http.MethodGet, "/v2/orders?status=open&limit=500", nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]trading.OpenOrder, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, trading.OpenOrder{
			ID:        d.ID,
			Symbol:    trading.NormalizeSymbol(d.Symbol),
			Side:      trading.Side(strings.ToLower(d.Side)),
			Qty:       d.Qty.Float64(),
			CreatedAt: d.CreatedAt,
		})
	}
	return out, nil
}

// SubmitOrder creates a limit order and returns the brokerage order id.
// Client errors come back wrapped in trading.ErrOrderRejected.
func (c *Client) SubmitOrder(ctx context.Context, req trading.OrderRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	payload := orderPayload{
		Symbol:        req.Symbol,
		Qty:           strconv.FormatFloat(req.Qty, 'f', -1, 64),
		Side:          string(req.Side),
		Type:          trading.OrderTypeLimit,
		TimeInForce:   req.TimeInForce,
		LimitPrice:    strconv.FormatFloat(req.LimitPrice, 'f', 2, 64),
		ExtendedHours: req.ExtendedHours,
		ClientOrderID: req.ClientOrderID,
	}
	var dto orderDTO
	if err := c.rest.DoJSON(ctx, http.MethodPost, "/v2/orders", payload, &dto); err != nil {
		return "", rejection(err)
	}
	return dto.ID, nil
}

func (c *Client) CancelOrder(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: empty order id", trading.ErrOrderRejected)
	}
	if _, err := c.rest.Do(ctx, http.MethodDelete, "/v2/orders/"+url.PathEscape(id), nil); err != nil {
		return rejection(err)
	}
	return nil
}

func rejection(err error) error {
	var apiErr *rest.APIError
	if errors.As(err, &apiErr) && !apiErr.Transient() {
		return fmt.Errorf("%w: %w", trading.ErrOrderRejected, err)
	}
	return err
}

func (d positionDTO) toPosition() trading.Position {
	qty := d.Qty.Float64()
	if strings.EqualFold(d.Side, "short") && qty > 0 {
		qty = -qty
	}
	return trading.Position{
		Symbol:        trading.NormalizeSymbol(d.Symbol),
		Qty:           qty,
		AvgEntryPrice: d.AvgEntryPrice.Float64(),
		CurrentPrice:  d.CurrentPrice.Float64(),
		MarketValue:   d.MarketValue.Float64(),
	}
}
