package indicators

import (
	"time"

	"RSIBoard/internal/domain/models"

	"github.com/shopspring/decimal"
)

// Series is the price window handed to RSI.
type Series struct {
	Prices   []decimal.Decimal
	UsedLive bool
	// LastTime is the open time of the newest historical candle consumed.
	// Zero when the window ends with a live quote.
	LastTime time.Time
}

// BuildSeries assembles period+1 prices for RSI.
//
// With a live quote the trailing period closes are followed by the quote, so
// the value reflects the market right now. Otherwise (or when history is too
// short for that) the trailing period+1 closes are used. ok is false when
// neither gives period+1 points.
func BuildSeries(history []models.Candle, live decimal.NullDecimal, period int) (Series, bool) {
	if period < 1 {
		return Series{}, false
	}

	if live.Valid && len(history) >= period {
		tail := history[len(history)-period:]
		prices := make([]decimal.Decimal, 0, period+1)
		for _, c := range tail {
			prices = append(prices, c.Close)
		}
		prices = append(prices, live.Decimal)
		return Series{Prices: prices, UsedLive: true}, true
	}

	if len(history) >= period+1 {
		tail := history[len(history)-(period+1):]
		return Series{
			Prices:   models.Closes(tail),
			LastTime: tail[len(tail)-1].OpenTime,
		}, true
	}

	return Series{}, false
}

// Evaluate runs BuildSeries and RSI and stamps the result. now is used as the
// as-of time when the live quote closed the window.
func Evaluate(history []models.Candle, live decimal.NullDecimal, period int, now time.Time) models.RSIResult {
	s, ok := BuildSeries(history, live, period)
	if !ok {
		return models.Unavailable()
	}
	v, ok := RSI(s.Prices, period)
	if !ok {
		return models.Unavailable()
	}
	asOf := s.LastTime
	if s.UsedLive {
		asOf = now
	}
	return models.RSIResult{
		Value: decimal.NullDecimal{Decimal: v, Valid: true},
		AsOf:  asOf,
		Live:  s.UsedLive,
	}
}
