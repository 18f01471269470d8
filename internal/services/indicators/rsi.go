// Package indicators holds the pure price math of the service: candle
// resampling, series assembly and the RSI oscillator.
package indicators

import "github.com/shopspring/decimal"

// DefaultPeriod is the classic RSI lookback.
const DefaultPeriod = 14

var (
	hundred = decimal.NewFromInt(100)
	fifty   = decimal.NewFromInt(50)
)

// RSI computes Wilder's Relative Strength Index over the whole slice.
//
// The first period deltas seed the average gain/loss as plain means; every
// later delta updates them with avg = (avg*(period-1) + x) / period. The value
// is rounded to two decimals. ok is false when fewer than period+1 prices are
// given. With zero average loss the result is 100 if anything was gained and 50
// for a perfectly flat series.
func RSI(prices []decimal.Decimal, period int) (value decimal.Decimal, ok bool) {
	if period < 1 || len(prices) < period+1 {
		return decimal.Zero, false
	}

	p := decimal.NewFromInt(int64(period))
	pm1 := decimal.NewFromInt(int64(period - 1))

	var gain, loss decimal.Decimal
	for i := 1; i <= period; i++ {
		g, l := split(prices[i].Sub(prices[i-1]))
		gain = gain.Add(g)
		loss = loss.Add(l)
	}
	gain = gain.Div(p)
	loss = loss.Div(p)

	for i := period + 1; i < len(prices); i++ {
		g, l := split(prices[i].Sub(prices[i-1]))
		gain = gain.Mul(pm1).Add(g).Div(p)
		loss = loss.Mul(pm1).Add(l).Div(p)
	}

	if loss.IsZero() {
		if gain.IsPositive() {
			return hundred, true
		}
		return fifty, true
	}

	rs := gain.Div(loss)
	rsi := hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
	return rsi.Round(2), true
}

func split(delta decimal.Decimal) (gain, loss decimal.Decimal) {
	if delta.IsPositive() {
		return delta, decimal.Zero
	}
	return decimal.Zero, delta.Neg()
}
