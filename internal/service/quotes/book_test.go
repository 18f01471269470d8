package quotes

import (
	"context"
	"testing"
	"time"

	domrepo "RSIBoard/internal/domain/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBook_LastPriceAndStaleness(t *testing.T) {
	b := NewBook(2 * time.Minute)
	now := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	_, err := b.LastPrice(context.Background(), "SBER")
	assert.ErrorIs(t, err, domrepo.ErrNoQuote)

	b.Update(Tick{Symbol: "SBER", Price: decimal.RequireFromString("301.5"), Time: now.Add(-time.Minute)})
	p, err := b.LastPrice(context.Background(), "SBER")
	require.NoError(t, err)
	assert.Equal(t, "301.5", p.String())

	now = now.Add(2 * time.Minute)
	_, err = b.LastPrice(context.Background(), "SBER")
	assert.ErrorIs(t, err, domrepo.ErrNoQuote)
}

func TestBook_IgnoresOlderAndInvalidTicks(t *testing.T) {
	b := NewBook(0)
	t0 := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)

	b.Update(Tick{Symbol: "GAZP", Price: decimal.NewFromInt(150), Time: t0})
	b.Update(Tick{Symbol: "GAZP", Price: decimal.NewFromInt(140), Time: t0.Add(-time.Second)})
	b.Update(Tick{Symbol: "GAZP", Price: decimal.Zero, Time: t0.Add(time.Second)})
	b.Update(Tick{Price: decimal.NewFromInt(1), Time: t0})

	got, ok := b.Get("GAZP")
	require.True(t, ok)
	assert.Equal(t, "150", got.Price.String())
	assert.Equal(t, 1, b.Len())
}
