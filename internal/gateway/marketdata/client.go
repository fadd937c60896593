// Package marketdata reads latest trades and daily bars from an
// Alpaca-compatible market data API.
package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"exalted/internal/config"
	"exalted/internal/gateway/rest"
	"exalted/internal/market"
	"exalted/internal/pkg/retry"
	"exalted/internal/trading"

	"github.com/tidwall/gjson"
)

type Client struct {
	rest *rest.Client
	feed string
}

// NewClient authenticates with the brokerage credentials, as the data API
// shares them.
func NewClient(cfg config.MarketDataConfig, creds config.BrokerConfig, retrier *retry.Retrier) (*Client, error) {
	rc, err := rest.NewClient("market_data", cfg.BaseURL, cfg.Timeout(), retrier)
	if err != nil {
		return nil, err
	}
	rc.SetHeader("APCA-API-KEY-ID", strings.TrimSpace(creds.APIKeyID))
	rc.SetHeader("APCA-API-SECRET-KEY", strings.TrimSpace(creds.APISecretKey))
	return &Client{rest: rc, feed: strings.TrimSpace(cfg.Feed)}, nil
}

func (c *Client) REST() *rest.Client { return c.rest }

var (
	_ market.LatestTradeSource = (*Client)(nil)
	_ market.DailyBarSource    = (*Client)(nil)
)

// LatestTrade returns trade.p of the latest trade.
func (c *Client) LatestTrade(ctx context.Context, symbol string) (float64, error) {
	symbol = trading.NormalizeSymbol(symbol)
	path := "/v2/stocks/" + url.PathEscape(symbol) + "/trades/latest"
	if c.feed != "" {
		path += "?feed=" + url.QueryEscape(c.feed)
	}
	body, err := c.rest.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}
	p := gjson.GetBytes(body, "trade.p")
	if !p.Exists() {
		return 0, fmt.Errorf("latest trade %s: no trade.p in response", symbol)
	}
	return p.Float(), nil
}

// DailyVolumes returns the v field of each 1Day bar in [start, end].
func (c *Client) DailyVolumes(ctx context.Context, symbol string, start, end time.Time) ([]float64, error) {
	symbol = trading.NormalizeSymbol(symbol)
	q := url.Values{}
	q.Set("timeframe", "1Day")
	q.Set("start", start.Format(time.RFC3339))
	q.Set("end", end.Format(time.RFC3339))
	q.Set("adjustment", "raw")
	if c.feed != "" {
		q.Set("feed", c.feed)
	}
	body, err := c.rest.Do(ctx, http.MethodGet, "/v2/stocks/"+url.PathEscape(symbol)+"/bars?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	bars := gjson.GetBytes(body, "bars")
	if !bars.IsArray() {
		return nil, nil
	}
	var out []float64
	bars.ForEach(func(_, bar gjson.Result) bool {
		out = append(out, bar.Get("v").Float())
		return true
	})
	return out, nil
}
