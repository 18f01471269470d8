package repository

import (
	"context"
	"errors"
	"time"

	"RSIBoard/internal/domain/models"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoData is returned by a CandleSource when the upstream answered but had no rows.
	ErrNoData = errors.New("no candle data")
	// ErrNoQuote is returned by a QuoteSource when no recent price is known.
	ErrNoQuote = errors.New("no live quote")
)

// CandleSource fetches one ascending candle series per call.
// interval is the provider's own raw interval code.
type CandleSource interface {
	Candles(ctx context.Context, id, interval string, from, to time.Time) ([]models.Candle, error)
}

// QuoteSource returns the most recent traded price of an instrument.
type QuoteSource interface {
	LastPrice(ctx context.Context, id string) (decimal.Decimal, error)
}

// SnapshotStore holds the process-wide latest Snapshot.
type SnapshotStore interface {
	Latest() *models.Snapshot
	Publish(s *models.Snapshot)
}

// SnapshotPublisher fans a freshly published snapshot out to another system.
type SnapshotPublisher interface {
	Name() string
	PublishSnapshot(ctx context.Context, s *models.Snapshot) error
	Close() error
}

type Metrics interface {
	RecordCycle(seconds float64, unavailable int)
	RecordError(kind string)
	RecordRSI(instrument, timeframe string, value float64)
	RecordLatency(op string, seconds float64)
	RecordState(state string)
}
