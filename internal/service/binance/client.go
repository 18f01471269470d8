// Package binance reads spot klines and prices through go-binance.
package binance

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"RSIBoard/internal/domain/models"
	domrepo "RSIBoard/internal/domain/repository"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

const (
	pageLimit = 1000
	maxPages  = 20
)

type Client struct {
	api *gobinance.Client
}

// New builds a spot client. Empty keys are fine for market data.
// baseURL overrides the REST endpoint when set.
func New(apiKey, secretKey, baseURL string, timeout time.Duration) *Client {
	api := gobinance.NewClient(apiKey, secretKey)
	if baseURL != "" {
		api.BaseURL = baseURL
	}
	if timeout > 0 {
		api.HTTPClient = &http.Client{Timeout: timeout}
	}
	return &Client{api: api}
}

// Candles implements repository.CandleSource. Klines come oldest first;
// pages move forward from the last open time.
func (c *Client) Candles(ctx context.Context, id, interval string, from, to time.Time) ([]models.Candle, error) {
	start := from.UnixMilli()
	end := to.UnixMilli()

	var out []models.Candle
	for page := 0; page < maxPages && start <= end; page++ {
		klines, err := c.api.NewKlinesService().
			Symbol(id).
			Interval(interval).
			StartTime(start).
			EndTime(end).
			Limit(pageLimit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("binance klines %s/%s: %w", id, interval, err)
		}
		for _, k := range klines {
			closeVal, err := decimal.NewFromString(k.Close)
			if err != nil {
				return nil, fmt.Errorf("binance kline close %q: %w", k.Close, err)
			}
			out = append(out, models.Candle{OpenTime: time.UnixMilli(k.OpenTime).UTC(), Close: closeVal})
		}
		if len(klines) < pageLimit {
			break
		}
		start = klines[len(klines)-1].OpenTime + 1
	}

	if len(out) == 0 {
		return nil, domrepo.ErrNoData
	}
	slices.SortStableFunc(out, func(a, b models.Candle) int { return a.OpenTime.Compare(b.OpenTime) })
	return out, nil
}

// LastPrice implements repository.QuoteSource.
func (c *Client) LastPrice(ctx context.Context, id string) (decimal.Decimal, error) {
	prices, err := c.api.NewListPricesService().Symbol(id).Do(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance price %s: %w", id, err)
	}
	for _, p := range prices {
		if p.Symbol != id {
			continue
		}
		v, err := decimal.NewFromString(p.Price)
		if err != nil {
			return decimal.Zero, fmt.Errorf("binance price %q: %w", p.Price, err)
		}
		return v, nil
	}
	return decimal.Zero, domrepo.ErrNoQuote
}

var (
	_ domrepo.CandleSource = (*Client)(nil)
	_ domrepo.QuoteSource  = (*Client)(nil)
)
