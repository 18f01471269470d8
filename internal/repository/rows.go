package repository

import (
	"fmt"
	"time"

	"RSIBoard/internal/domain/models"

	"github.com/shopspring/decimal"
)

func candleFromRow(bucket time.Time, closeS string) (models.Candle, error) {
	c, err := decimal.NewFromString(closeS)
	if err != nil {
		return models.Candle{}, fmt.Errorf("candle close %q: %w", closeS, err)
	}
	return models.Candle{OpenTime: bucket.UTC(), Close: c}, nil
}
