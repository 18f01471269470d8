package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one bar of an upstream series. Only the close matters for RSI;
// OpenTime is the bar start as reported by the provider (UTC).
type Candle struct {
	OpenTime time.Time
	Close    decimal.Decimal
}

// Closes extracts the close prices in order.
func Closes(candles []Candle) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Instrument maps a display name to the identifier the upstream understands
// (a MOEX ticker, an exchange symbol, ...).
type Instrument struct {
	Name string `yaml:"name"`
	ID   string `yaml:"id"`
}
