package indicators

import (
	"time"

	"RSIBoard/internal/domain/models"
)

// BucketEnd returns the label of the right-closed bucket containing t:
// the smallest multiple of width (since the zero time, i.e. UTC-midnight
// aligned) that is >= t. A t sitting exactly on a boundary labels itself.
func BucketEnd(t time.Time, width time.Duration) time.Time {
	end := t.Truncate(width)
	if end.Equal(t) {
		return end
	}
	return end.Add(width)
}

// Aggregate resamples an ascending candle series into width-wide bars.
//
// Buckets are right-closed and right-labeled: a candle opening in
// (end-width, end] lands in the bar labeled end, and the bar close is the close
// of the last candle in it. Buckets without input emit nothing. Grouping is by
// timestamp, never by row count, so gaps in the input cannot shift labels.
func Aggregate(candles []models.Candle, width time.Duration) []models.Candle {
	if width <= 0 {
		return candles
	}
	out := make([]models.Candle, 0, len(candles))
	for _, c := range candles {
		label := BucketEnd(c.OpenTime, width)
		if n := len(out); n > 0 && out[n-1].OpenTime.Equal(label) {
			out[n-1].Close = c.Close
			continue
		}
		out = append(out, models.Candle{OpenTime: label, Close: c.Close})
	}
	return out
}
