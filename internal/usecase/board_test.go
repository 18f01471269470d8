package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"RSIBoard/internal/domain/models"
	"RSIBoard/internal/repository"
	icache "RSIBoard/internal/service/cache"
	"RSIBoard/pkg/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedState RefreshState

func (s fixedState) State() RefreshState { return RefreshState(s) }

func newBoardFixture() (*BoardUseCase, *repository.MemorySnapshotStore) {
	tfs := []string{"5m", "1h"}
	store := repository.NewMemorySnapshotStore(testInstruments, tfs)
	layout := models.BoardLayout{
		Instruments: []string{"Sber", "Gazprom"},
		Timeframes:  tfs,
		Location:    util.FixedZone(3 * time.Hour),
	}
	return NewBoardUseCase(store, layout, icache.NewTTLCache(), fixedState(StateFetching)), store
}

func publishOne(store *repository.MemorySnapshotStore) {
	s := models.NewSnapshot(testInstruments, []string{"5m", "1h"})
	s.Cycle = 3
	s.UpdatedAt = time.Date(2024, 5, 6, 9, 30, 0, 0, time.UTC)
	s.Values["Sber"]["1h"] = models.RSIResult{
		Value: decimal.NullDecimal{Decimal: decimal.RequireFromString("55.5"), Valid: true},
		AsOf:  time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC),
	}
	store.Publish(s)
}

func TestBoardUseCase_SeededBoardHasEveryKey(t *testing.T) {
	uc, _ := newBoardFixture()
	b, err := uc.BoardJSON(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"Sber":    {"5m": {"RSI": "-", "time": "-"}, "1h": {"RSI": "-", "time": "-"}},
		"Gazprom": {"5m": {"RSI": "-", "time": "-"}, "1h": {"RSI": "-", "time": "-"}}
	}`, string(b))
}

func TestBoardUseCase_RendersLatestCycle(t *testing.T) {
	uc, store := newBoardFixture()
	_, err := uc.BoardJSON(context.Background())
	require.NoError(t, err)

	publishOne(store)
	b, err := uc.BoardJSON(context.Background())
	require.NoError(t, err)

	var got map[string]map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, 55.5, got["Sber"]["1h"]["RSI"])
	assert.Equal(t, "2024-05-06 12:00:00", got["Sber"]["1h"]["time"])
	assert.Contains(t, string(b), `"RSI":55.50`)
}

func TestBoardUseCase_Instrument(t *testing.T) {
	uc, store := newBoardFixture()
	publishOne(store)

	row, err := uc.Instrument("Sber", "")
	require.NoError(t, err)
	b, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t, `{"5m":{"RSI":"-","time":"-"},"1h":{"RSI":55.50,"time":"2024-05-06 12:00:00"}}`, string(b))

	cell, err := uc.Instrument("Sber", "1h")
	require.NoError(t, err)
	assert.Equal(t, models.Cell{RSI: json.Number("55.50"), Time: "2024-05-06 12:00:00"}, cell)

	_, err = uc.Instrument("Tesla", "")
	assert.ErrorIs(t, err, ErrUnknownInstrument)
	_, err = uc.Instrument("Sber", "3m")
	assert.ErrorIs(t, err, ErrUnknownTimeframe)
}

func TestBoardUseCase_Health(t *testing.T) {
	uc, store := newBoardFixture()
	h := uc.Health()
	assert.Equal(t, Health{Status: "ok", UpdatedAt: "-", Cycle: 0, State: "fetching"}, h)

	publishOne(store)
	h = uc.Health()
	assert.Equal(t, uint64(3), h.Cycle)
	assert.Equal(t, "2024-05-06 12:30:00", h.UpdatedAt)
}

func TestBoardUseCase_RenderCacheHoldsOneBoard(t *testing.T) {
	store := repository.NewMemorySnapshotStore(testInstruments, []string{"5m", "1h"})
	layout := models.BoardLayout{
		Instruments: []string{"Sber", "Gazprom"},
		Timeframes:  []string{"5m", "1h"},
		Location:    util.FixedZone(3 * time.Hour),
	}
	cache := icache.NewTTLCache()
	uc := NewBoardUseCase(store, layout, cache, nil)

	for cycle := uint64(1); cycle <= 1440; cycle++ {
		s := models.NewSnapshot(testInstruments, []string{"5m", "1h"})
		s.Cycle = cycle
		s.Values["Sber"]["5m"] = models.RSIResult{
			Value: decimal.NullDecimal{Decimal: decimal.NewFromInt(int64(cycle % 100)), Valid: true},
			AsOf:  time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC),
		}
		store.Publish(s)

		first, err := uc.BoardJSON(context.Background())
		require.NoError(t, err)
		again, err := uc.BoardJSON(context.Background())
		require.NoError(t, err)
		require.Equal(t, string(first), string(again))
	}

	assert.Equal(t, 1, cache.Len())
	b, err := uc.BoardJSON(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(b), `"RSI":40.00`)
}
