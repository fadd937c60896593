package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"exalted/internal/config"
	"exalted/internal/trading"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(config.BrokerConfig{BaseURL: srv.URL, APIKeyID: "id", APISecretKey: "secret", TimeoutSeconds: 5}, nil)
	require.NoError(t, err)
	return c
}

func TestAccountAndPositions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "id", r.Header.Get("APCA-API-KEY-ID"))
		assert.Equal(t, "secret", r.Header.Get("APCA-API-SECRET-KEY"))
		switch r.URL.Path {
		case "/v2/account":
			_, _ = w.Write([]byte(`{"equity":"10000","buying_power":"20000","position_market_value":"19700"}`))
		case "/v2/positions":
			_, _ = w.Write([]byte(`[
				{"symbol":"AAPL","qty":"10","side":"long","avg_entry_price":"100","current_price":"94","market_value":"940"},
				{"symbol":"TSLA","qty":"-4","side":"short","avg_entry_price":"50","current_price":"53.5","market_value":"-214"}
			]`))
		default:
			http.NotFound(w, r)
		}
	})

	acct, err := c.Account(context.Background())
	require.NoError(t, err)
	assert.Equal(t, trading.AccountSnapshot{Equity: 10000, BuyingPower: 20000, PositionMarketValue: 19700}, acct)

	positions, err := c.Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, 94.0, positions[0].CurrentPrice)
	assert.True(t, positions[1].IsShort())
	assert.Equal(t, -4.0, positions[1].Qty)
}

func TestAccountFallsBackToLongShortValues(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"equity":"100","buying_power":"200","long_market_value":"150","short_market_value":"-30"}`))
	})
	acct, err := c.Account(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 180.0, acct.PositionMarketValue)
}

func TestPositionNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":40410000,"message":"position does not exist"}`))
	})
	_, err := c.Position(context.Background(), "msft")
	assert.ErrorIs(t, err, trading.ErrNoPosition)
}

func TestSubmitOrderPayloadAndRejection(t *testing.T) {
	var got orderPayload
	reject := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if reject {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"insufficient buying power"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"ord-1"}`))
	})

	req := trading.NewLimitOrder("AAPL", trading.SideBuy, 38, 50.35)
	id, err := c.SubmitOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "ord-1", id)
	assert.Equal(t, orderPayload{
		Symbol:        "AAPL",
		Qty:           "38",
		Side:          "buy",
		Type:          "limit",
		TimeInForce:   "day",
		LimitPrice:    "50.35",
		ExtendedHours: true,
		ClientOrderID: req.ClientOrderID,
	}, got)

	reject = true
	_, err = c.SubmitOrder(context.Background(), req)
	assert.ErrorIs(t, err, trading.ErrOrderRejected)

	_, err = c.SubmitOrder(context.Background(), trading.NewLimitOrder("AAPL", trading.SideBuy, 0, 50))
	assert.ErrorIs(t, err, trading.ErrInvalidSignal)
}

func TestOpenOrdersAndCancel(t *testing.T) {
	var cancelled string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "open", r.URL.Query().Get("status"))
			_, _ = w.Write([]byte(`[{"id":"o1","symbol":"aapl","side":"sell","qty":"60","created_at":"2024-06-03T14:00:00Z"}]`))
		case http.MethodDelete:
			cancelled = r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		}
	})
	orders, err := c.OpenOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, trading.OpenOrder{ID: "o1", Symbol: "AAPL", Side: trading.SideSell, Qty: 60, CreatedAt: orders[0].CreatedAt}, orders[0])
	assert.Equal(t, 2024, orders[0].CreatedAt.Year())

	require.NoError(t, c.CancelOrder(context.Background(), "o1"))
	assert.Equal(t, "/v2/orders/o1", cancelled)
}
