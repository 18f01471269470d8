package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domrepo "RSIBoard/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1m", r.URL.Query().Get("interval"))
		_, _ = w.Write([]byte(`[
			[1715000000000,"1","1","1","64000.10","1",1715000059999,"1",1,"1","1","0"],
			[1715000060000,"1","1","1","64000.20","1",1715000119999,"1",1,"1","1","0"]
		]`))
	}))
	defer srv.Close()

	c := New("", "", srv.URL, time.Second)
	to := time.UnixMilli(1715000120000)
	got, err := c.Candles(context.Background(), "BTCUSDT", "1m", to.Add(-time.Hour), to)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1715000000000), got[0].OpenTime.UnixMilli())
	assert.Equal(t, "64000.2", got[1].Close.String())
}

func TestCandles_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := New("", "", srv.URL, time.Second).
		Candles(context.Background(), "BTCUSDT", "1h", time.Now().Add(-time.Hour), time.Now())
	assert.ErrorIs(t, err, domrepo.ErrNoData)
}

func TestLastPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"64123.45000000"}`))
	}))
	defer srv.Close()

	p, err := New("", "", srv.URL, time.Second).LastPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "64123.45", p.String())
}
