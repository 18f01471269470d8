package repository

import (
	"fmt"
	"time"
)

// Timeframe describes how one RSI column is produced.
type Timeframe struct {
	Name     string        // display key, e.g. "5m"
	Interval string        // provider raw interval code
	Lookback time.Duration // history window requested per fetch
	Bucket   time.Duration // > 0: resample Interval candles into Bucket-wide bars
}

// Resampled reports whether the raw series is aggregated before use.
func (tf Timeframe) Resampled() bool { return tf.Bucket > 0 }

const day = 24 * time.Hour

// DefaultTimeframes returns the built-in table for a provider type.
func DefaultTimeframes(provider string) ([]Timeframe, error) {
	switch provider {
	case "moex":
		// ISS only serves 1, 10, 60, 24 (day), 7 (week), 31 and 4.
		return []Timeframe{
			{Name: "5m", Interval: "1", Lookback: 3 * day, Bucket: 5 * time.Minute},
			{Name: "15m", Interval: "1", Lookback: 7 * day, Bucket: 15 * time.Minute},
			{Name: "1h", Interval: "60", Lookback: 60 * day},
			{Name: "4h", Interval: "60", Lookback: 120 * day, Bucket: 4 * time.Hour},
			{Name: "1d", Interval: "24", Lookback: 365 * day},
			{Name: "1w", Interval: "7", Lookback: 5 * 365 * day},
		}, nil
	case "bybit":
		return []Timeframe{
			{Name: "5m", Interval: "1", Lookback: 1 * day, Bucket: 5 * time.Minute},
			{Name: "15m", Interval: "15", Lookback: 3 * day},
			{Name: "1h", Interval: "60", Lookback: 10 * day},
			{Name: "4h", Interval: "240", Lookback: 40 * day},
			{Name: "1d", Interval: "D", Lookback: 200 * day},
			{Name: "1w", Interval: "W", Lookback: 3 * 365 * day},
		}, nil
	case "binance":
		return []Timeframe{
			{Name: "5m", Interval: "1m", Lookback: 12 * time.Hour, Bucket: 5 * time.Minute},
			{Name: "15m", Interval: "15m", Lookback: 3 * day},
			{Name: "1h", Interval: "1h", Lookback: 10 * day},
			{Name: "4h", Interval: "4h", Lookback: 40 * day},
			{Name: "1d", Interval: "1d", Lookback: 200 * day},
			{Name: "1w", Interval: "1w", Lookback: 3 * 365 * day},
		}, nil
	case "clickhouse":
		// Tables hold 1m/1h/1d bars; everything else is resampled.
		return []Timeframe{
			{Name: "5m", Interval: "1m", Lookback: 1 * day, Bucket: 5 * time.Minute},
			{Name: "15m", Interval: "1m", Lookback: 2 * day, Bucket: 15 * time.Minute},
			{Name: "1h", Interval: "1h", Lookback: 10 * day},
			{Name: "4h", Interval: "1h", Lookback: 40 * day, Bucket: 4 * time.Hour},
			{Name: "1d", Interval: "1d", Lookback: 200 * day},
			{Name: "1w", Interval: "1d", Lookback: 3 * 365 * day, Bucket: 7 * day},
		}, nil
	default:
		return nil, fmt.Errorf("no default timeframes for provider %q", provider)
	}
}

// TimeframeNames returns the display keys in table order.
func TimeframeNames(tfs []Timeframe) []string {
	out := make([]string, len(tfs))
	for i, tf := range tfs {
		out[i] = tf.Name
	}
	return out
}

// FindTimeframe looks a timeframe up by display key.
func FindTimeframe(tfs []Timeframe, name string) (Timeframe, bool) {
	for _, tf := range tfs {
		if tf.Name == name {
			return tf, true
		}
	}
	return Timeframe{}, false
}
