// Package bybit reads spot/linear candles and last prices from the Bybit v5 REST API.
package bybit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"RSIBoard/internal/domain/models"
	domrepo "RSIBoard/internal/domain/repository"
	xhttp "RSIBoard/pkg/http"
	"RSIBoard/pkg/util"

	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL = "https://api.bybit.com"
	pageLimit      = 1000
	maxPages       = 20
)

type Client struct {
	http     *xhttp.Client
	baseURL  string
	category string
}

func New(hc *xhttp.Client, baseURL, category string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if category == "" {
		category = "spot"
	}
	return &Client{http: hc, baseURL: strings.TrimRight(baseURL, "/"), category: category}
}

type envelope[T any] struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  T      `json:"result"`
}

type klineResult struct {
	Symbol string     `json:"symbol"`
	List   [][]string `json:"list"` // [startMs, open, high, low, close, volume, turnover], newest first
}

type tickerResult struct {
	List []struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
	} `json:"list"`
}

func (c *Client) get(ctx context.Context, path string, q url.Values, dest interface{}) error {
	return c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      http.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: q,
	}, dest)
}

// Candles implements repository.CandleSource. Bybit pages backwards from
// end, so pages are fetched newest-first and the result is re-sorted.
func (c *Client) Candles(ctx context.Context, id, interval string, from, to time.Time) ([]models.Candle, error) {
	end := to.UnixMilli()
	start := from.UnixMilli()

	var out []models.Candle
	for page := 0; page < maxPages && end >= start; page++ {
		q := url.Values{
			"category": {c.category},
			"symbol":   {id},
			"interval": {interval},
			"start":    {strconv.FormatInt(start, 10)},
			"end":      {strconv.FormatInt(end, 10)},
			"limit":    {strconv.Itoa(pageLimit)},
		}
		var resp envelope[klineResult]
		if err := c.get(ctx, "/v5/market/kline", q, &resp); err != nil {
			return nil, fmt.Errorf("bybit kline %s/%s: %w", id, interval, err)
		}
		if resp.RetCode != 0 {
			return nil, fmt.Errorf("bybit kline %s/%s: %d %s", id, interval, resp.RetCode, resp.RetMsg)
		}

		oldest := end
		for _, row := range resp.Result.List {
			if len(row) < 5 {
				continue
			}
			ts, err := util.ParseUnixMillis(row[0])
			if err != nil {
				return nil, fmt.Errorf("bybit kline start %q: %w", row[0], err)
			}
			closeVal, err := decimal.NewFromString(row[4])
			if err != nil {
				return nil, fmt.Errorf("bybit kline close %q: %w", row[4], err)
			}
			out = append(out, models.Candle{OpenTime: ts, Close: closeVal})
			if ms := ts.UnixMilli(); ms < oldest {
				oldest = ms
			}
		}
		if len(resp.Result.List) < pageLimit {
			break
		}
		end = oldest - 1
	}

	if len(out) == 0 {
		return nil, domrepo.ErrNoData
	}
	slices.SortStableFunc(out, func(a, b models.Candle) int { return a.OpenTime.Compare(b.OpenTime) })
	return slices.CompactFunc(out, func(a, b models.Candle) bool { return a.OpenTime.Equal(b.OpenTime) }), nil
}

// LastPrice implements repository.QuoteSource.
func (c *Client) LastPrice(ctx context.Context, id string) (decimal.Decimal, error) {
	var resp envelope[tickerResult]
	q := url.Values{"category": {c.category}, "symbol": {id}}
	if err := c.get(ctx, "/v5/market/tickers", q, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("bybit tickers %s: %w", id, err)
	}
	if resp.RetCode != 0 {
		return decimal.Zero, fmt.Errorf("bybit tickers %s: %d %s", id, resp.RetCode, resp.RetMsg)
	}
	for _, t := range resp.Result.List {
		if t.Symbol != id || t.LastPrice == "" {
			continue
		}
		p, err := decimal.NewFromString(t.LastPrice)
		if err != nil {
			return decimal.Zero, fmt.Errorf("bybit lastPrice %q: %w", t.LastPrice, err)
		}
		return p, nil
	}
	return decimal.Zero, domrepo.ErrNoQuote
}

var (
	_ domrepo.CandleSource = (*Client)(nil)
	_ domrepo.QuoteSource  = (*Client)(nil)
)
