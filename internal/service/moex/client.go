// Package moex reads candles and last prices from the Moscow Exchange ISS API.
package moex

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"RSIBoard/internal/domain/models"
	domrepo "RSIBoard/internal/domain/repository"
	xhttp "RSIBoard/pkg/http"
	"RSIBoard/pkg/util"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://iss.moex.com"
	// ISS caps one candles page at 500 rows.
	pageSize = 500
	maxPages = 40
)

// Moscow is the zone ISS reports candle boundaries in.
var Moscow = util.FixedZone(3 * time.Hour)

// Client talks to ISS for the shares market.
type Client struct {
	http    *xhttp.Client
	baseURL string
	engine  string
	market  string
	board   string
	pacer   *rate.Limiter
}

// Option configures Client.
type Option func(*Client)

// WithBaseURL points the client at another ISS host (tests, mirrors).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithPacer makes every candles page after the first wait on l. The caller
// is expected to have waited for the first request itself.
func WithPacer(l *rate.Limiter) Option {
	return func(c *Client) { c.pacer = l }
}

// WithBoard selects the board whose LAST price is used as the live quote.
func WithBoard(board string) Option {
	return func(c *Client) { c.board = board }
}

func New(hc *xhttp.Client, opts ...Option) *Client {
	c := &Client{
		http:    hc,
		baseURL: DefaultBaseURL,
		engine:  "stock",
		market:  "shares",
		board:   "TQBR",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) securityURL(id, suffix string) string {
	return fmt.Sprintf("%s/iss/engines/%s/markets/%s/securities/%s%s",
		c.baseURL, c.engine, c.market, url.PathEscape(id), suffix)
}

// Candles implements repository.CandleSource. interval is an ISS code
// (1, 10, 60, 24, 7, 31, 4).
func (c *Client) Candles(ctx context.Context, id, interval string, from, to time.Time) ([]models.Candle, error) {
	q := url.Values{
		"from":     {from.In(Moscow).Format("2006-01-02")},
		"till":     {to.In(Moscow).Format("2006-01-02")},
		"interval": {interval},
		"iss.meta": {"off"},
	}

	var out []models.Candle
	for page := 0; page < maxPages; page++ {
		if page > 0 && c.pacer != nil {
			if err := c.pacer.Wait(ctx); err != nil {
				return nil, fmt.Errorf("moex candles %s/%s: %w", id, interval, err)
			}
		}
		q.Set("start", fmt.Sprint(page*pageSize))
		body, err := c.http.GetBytes(ctx, c.securityURL(id, "/candles.json"), q)
		if err != nil {
			return nil, fmt.Errorf("moex candles %s/%s: %w", id, interval, err)
		}
		rows, err := parseCandles(body)
		if err != nil {
			return nil, fmt.Errorf("moex candles %s/%s: %w", id, interval, err)
		}
		out = append(out, rows...)
		if len(rows) < pageSize {
			break
		}
	}

	if len(out) == 0 {
		return nil, domrepo.ErrNoData
	}
	slices.SortStableFunc(out, func(a, b models.Candle) int { return a.OpenTime.Compare(b.OpenTime) })
	return out, nil
}

// parseCandles reads the columnar {"candles":{"columns":[...],"data":[[...]]}} block.
func parseCandles(body []byte) ([]models.Candle, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid json payload")
	}
	block := gjson.GetBytes(body, "candles")
	if !block.Exists() {
		return nil, fmt.Errorf("no candles block")
	}
	cols := columnIndex(block.Get("columns"))
	ci, okC := cols["close"]
	bi, okB := cols["begin"]
	if !okC || !okB {
		return nil, fmt.Errorf("candles block lacks close/begin columns")
	}

	var (
		out  []models.Candle
		perr error
	)
	block.Get("data").ForEach(func(_, row gjson.Result) bool {
		cells := row.Array()
		if len(cells) <= ci || len(cells) <= bi {
			return true
		}
		closeVal, err := cellDecimal(cells[ci])
		if err != nil {
			perr = fmt.Errorf("close %q: %w", cells[ci].Raw, err)
			return false
		}
		begin, err := util.ParseLocal(cells[bi].String(), Moscow)
		if err != nil {
			perr = fmt.Errorf("begin %q: %w", cells[bi].Raw, err)
			return false
		}
		out = append(out, models.Candle{OpenTime: begin, Close: closeVal})
		return true
	})
	if perr != nil {
		return nil, perr
	}
	return out, nil
}

// LastPrice implements repository.QuoteSource using the marketdata LAST field.
func (c *Client) LastPrice(ctx context.Context, id string) (decimal.Decimal, error) {
	q := url.Values{
		"iss.only": {"marketdata"},
		"iss.meta": {"off"},
	}
	body, err := c.http.GetBytes(ctx, c.securityURL(id, ".json"), q)
	if err != nil {
		return decimal.Zero, fmt.Errorf("moex marketdata %s: %w", id, err)
	}
	return parseLast(body, c.board)
}

func parseLast(body []byte, board string) (decimal.Decimal, error) {
	block := gjson.GetBytes(body, "marketdata")
	cols := columnIndex(block.Get("columns"))
	li, ok := cols["last"]
	if !ok {
		return decimal.Zero, domrepo.ErrNoQuote
	}
	bi, hasBoard := cols["boardid"]

	var fallback, picked decimal.NullDecimal
	block.Get("data").ForEach(func(_, row gjson.Result) bool {
		cells := row.Array()
		if len(cells) <= li || cells[li].Type == gjson.Null {
			return true
		}
		v, err := cellDecimal(cells[li])
		if err != nil || !v.IsPositive() {
			return true
		}
		if hasBoard && len(cells) > bi && strings.EqualFold(cells[bi].String(), board) {
			picked = decimal.NullDecimal{Decimal: v, Valid: true}
			return false
		}
		if !fallback.Valid {
			fallback = decimal.NullDecimal{Decimal: v, Valid: true}
		}
		return true
	})
	switch {
	case picked.Valid:
		return picked.Decimal, nil
	case fallback.Valid:
		return fallback.Decimal, nil
	default:
		return decimal.Zero, domrepo.ErrNoQuote
	}
}

func columnIndex(cols gjson.Result) map[string]int {
	idx := make(map[string]int)
	for i, col := range cols.Array() {
		idx[strings.ToLower(col.String())] = i
	}
	return idx
}

func cellDecimal(v gjson.Result) (decimal.Decimal, error) {
	switch v.Type {
	case gjson.Number:
		return decimal.NewFromString(v.Raw)
	case gjson.String:
		return decimal.NewFromString(v.Str)
	default:
		return decimal.Zero, fmt.Errorf("not a number")
	}
}

var (
	_ domrepo.CandleSource = (*Client)(nil)
	_ domrepo.QuoteSource  = (*Client)(nil)
)
