package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"exalted/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(config.MarketDataConfig{BaseURL: srv.URL, Feed: "sip"}, config.BrokerConfig{APIKeyID: "id", APISecretKey: "s"}, nil)
	require.NoError(t, err)
	return c
}

func TestLatestTrade(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/stocks/AAPL/trades/latest", r.URL.Path)
		assert.Equal(t, "sip", r.URL.Query().Get("feed"))
		assert.Equal(t, "id", r.Header.Get("APCA-API-KEY-ID"))
		_, _ = w.Write([]byte(`{"symbol":"AAPL","trade":{"t":"2024-06-03T14:00:00Z","p":191.25,"s":100}}`))
	})
	p, err := c.LatestTrade(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, 191.25, p)
}

func TestLatestTradeMissingPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbol":"AAPL"}`))
	})
	_, err := c.LatestTrade(context.Background(), "AAPL")
	assert.Error(t, err)
}

func TestDailyVolumes(t *testing.T) {
	start := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	end := start.Add(24*time.Hour - time.Nanosecond)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/v2/stocks/AAPL/bars", r.URL.Path)
		assert.Equal(t, "1Day", q.Get("timeframe"))
		assert.Equal(t, "raw", q.Get("adjustment"))
		assert.Equal(t, start.Format(time.RFC3339), q.Get("start"))
		_, _ = w.Write([]byte(`{"bars":[{"t":"2024-05-31T04:00:00Z","o":1,"h":2,"l":1,"c":2,"v":1250000}],"symbol":"AAPL"}`))
	})
	vols, err := c.DailyVolumes(context.Background(), "AAPL", start, end)
	require.NoError(t, err)
	assert.Equal(t, []float64{1250000}, vols)
}

func TestDailyVolumesNullBars(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"bars":null,"symbol":"AAPL"}`))
	})
	vols, err := c.DailyVolumes(context.Background(), "AAPL", time.Now(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, vols)
}
