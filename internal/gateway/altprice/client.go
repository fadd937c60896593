// Package altprice reads pre and post market trade prices from the
// Financial Modeling Prep API.
package altprice

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"exalted/internal/config"
	"exalted/internal/gateway/rest"
	"exalted/internal/market"
	"exalted/internal/pkg/retry"
	"exalted/internal/trading"

	"github.com/tidwall/gjson"
)

type Client struct {
	rest   *rest.Client
	apiKey string
}

func NewClient(cfg config.AltPriceConfig, retrier *retry.Retrier) (*Client, error) {
	rc, err := rest.NewClient("alt_price", cfg.BaseURL, cfg.Timeout(), retrier)
	if err != nil {
		return nil, err
	}
	return &Client{rest: rc, apiKey: cfg.APIKey}, nil
}

func (c *Client) REST() *rest.Client { return c.rest }

var _ market.ExtendedHoursSource = (*Client)(nil)

// ExtendedHoursPrice returns the price field of the pre/post market trade.
// The endpoint answers with either an object or a one-element array.
func (c *Client) ExtendedHoursPrice(ctx context.Context, symbol string) (float64, error) {
	symbol = trading.NormalizeSymbol(symbol)
	path := "/api/v4/pre-post-market-trade/" + url.PathEscape(symbol) + "?apikey=" + url.QueryEscape(c.apiKey)
	body, err := c.rest.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}
	doc := gjson.ParseBytes(body)
	if doc.IsArray() {
		doc = doc.Get("0")
	}
	p := doc.Get("price")
	if !p.Exists() {
		return 0, fmt.Errorf("extended hours %s: no price in response", symbol)
	}
	return p.Float(), nil
}
