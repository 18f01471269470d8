package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"RSIBoard/internal/domain/models"
	domrepo "RSIBoard/internal/domain/repository"
	"RSIBoard/internal/repository"
	applogger "RSIBoard/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)

type candleKey struct{ id, interval string }

type fakeCandles struct {
	mu    sync.Mutex
	data  map[candleKey][]models.Candle
	errs  map[candleKey]error
	panic map[candleKey]bool
	calls int
}

func (f *fakeCandles) Candles(_ context.Context, id, interval string, from, to time.Time) ([]models.Candle, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	k := candleKey{id, interval}
	if f.panic[k] {
		panic("decoder exploded")
	}
	if err := f.errs[k]; err != nil {
		return nil, err
	}
	if c, ok := f.data[k]; ok {
		return c, nil
	}
	return nil, domrepo.ErrNoData
}

type fakeQuotes map[string]decimal.Decimal

func (f fakeQuotes) LastPrice(_ context.Context, id string) (decimal.Decimal, error) {
	if p, ok := f[id]; ok {
		return p, nil
	}
	return decimal.Zero, domrepo.ErrNoQuote
}

type recordingPublisher struct {
	name string
	err  error
	got  []*models.Snapshot
}

func (p *recordingPublisher) Name() string { return p.name }
func (p *recordingPublisher) PublishSnapshot(_ context.Context, s *models.Snapshot) error {
	p.got = append(p.got, s)
	return p.err
}
func (p *recordingPublisher) Close() error { return p.err }

type stateMetrics struct {
	nopMetrics
	mu     sync.Mutex
	states []string
	errors map[string]int
}

func (m *stateMetrics) RecordState(s string) {
	m.mu.Lock()
	m.states = append(m.states, s)
	m.mu.Unlock()
}

func (m *stateMetrics) RecordError(kind string) {
	m.mu.Lock()
	if m.errors == nil {
		m.errors = map[string]int{}
	}
	m.errors[kind]++
	m.mu.Unlock()
}

// hourly returns closes as 1h candles ending at testNow-1h.
func hourly(closes ...float64) []models.Candle {
	out := make([]models.Candle, len(closes))
	start := testNow.Add(-time.Duration(len(closes)) * time.Hour)
	for i, c := range closes {
		out[i] = models.Candle{OpenTime: start.Add(time.Duration(i) * time.Hour), Close: decimal.NewFromFloat(c)}
	}
	return out
}

func minutes(n int, from float64) []models.Candle {
	out := make([]models.Candle, n)
	start := testNow.Add(-time.Duration(n) * time.Minute)
	for i := range out {
		out[i] = models.Candle{OpenTime: start.Add(time.Duration(i) * time.Minute), Close: decimal.NewFromFloat(from + float64(i))}
	}
	return out
}

var (
	testInstruments = []models.Instrument{{Name: "Sber", ID: "SBER"}, {Name: "Gazprom", ID: "GAZP"}}
	testTimeframes  = []domrepo.Timeframe{
		{Name: "5m", Interval: "1", Lookback: 24 * time.Hour, Bucket: 5 * time.Minute},
		{Name: "1h", Interval: "60", Lookback: 10 * 24 * time.Hour},
	}
	referenceCloses = []float64{
		44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.10, 45.42,
		45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28,
	}
)

func newTestRefresher(t *testing.T, candles domrepo.CandleSource, quotes domrepo.QuoteSource, pubs []domrepo.SnapshotPublisher, m domrepo.Metrics) (*RSIRefresher, *repository.MemorySnapshotStore) {
	t.Helper()
	store := repository.NewMemorySnapshotStore(testInstruments, domrepo.TimeframeNames(testTimeframes))
	r := NewRSIRefresher(RefresherConfig{
		Instruments:  testInstruments,
		Timeframes:   testTimeframes,
		Period:       14,
		Workers:      2,
		CycleTimeout: 5 * time.Second,
	}, candles, quotes, store, pubs, m, applogger.Nop())
	r.now = func() time.Time { return testNow }
	return r, store
}

func TestRSIRefresher_HistoryOnly(t *testing.T) {
	candles := &fakeCandles{data: map[candleKey][]models.Candle{
		{"SBER", "60"}: hourly(referenceCloses...),
		{"SBER", "1"}:  minutes(15*5, 100),
	}}
	pub := &recordingPublisher{name: "rec"}
	r, store := newTestRefresher(t, candles, nil, []domrepo.SnapshotPublisher{pub}, nil)

	snap := r.Refresh(context.Background())
	require.NotNil(t, snap)
	assert.Same(t, snap, store.Latest())
	assert.Equal(t, uint64(1), snap.Cycle)
	assert.Equal(t, testNow, snap.UpdatedAt)

	h := snap.Get("Sber", "1h")
	require.True(t, h.Available())
	assert.Equal(t, "70.46", h.Value.Decimal.StringFixed(2))
	assert.Equal(t, testNow.Add(-time.Hour), h.AsOf)
	assert.False(t, h.Live)

	m := snap.Get("Sber", "5m")
	require.True(t, m.Available(), "75 rising minute bars resample into 16 five-minute bars")
	assert.Equal(t, "100.00", m.Value.Decimal.StringFixed(2))

	assert.False(t, snap.Get("Gazprom", "1h").Available())
	assert.False(t, snap.Get("Gazprom", "5m").Available())
	assert.Len(t, snap.Values["Gazprom"], 2)

	require.Len(t, pub.got, 1)
	assert.Same(t, snap, pub.got[0])
	assert.Equal(t, StateIdle, r.State())
}

func TestRSIRefresher_LiveQuoteClosesWindow(t *testing.T) {
	candles := &fakeCandles{data: map[candleKey][]models.Candle{
		{"SBER", "60"}: hourly(referenceCloses...),
	}}
	r, _ := newTestRefresher(t, candles, fakeQuotes{"SBER": decimal.NewFromFloat(46.00)}, nil, nil)

	snap := r.Refresh(context.Background())
	h := snap.Get("Sber", "1h")
	require.True(t, h.Available())
	assert.True(t, h.Live)
	assert.Equal(t, testNow, h.AsOf)

	// Gazprom has no quote: history fallback, still unavailable for lack of candles.
	assert.False(t, snap.Get("Gazprom", "1h").Available())
}

func TestRSIRefresher_FailuresStayLocal(t *testing.T) {
	candles := &fakeCandles{
		data: map[candleKey][]models.Candle{
			{"SBER", "60"}: hourly(referenceCloses...),
			{"GAZP", "1"}:  minutes(15*5, 10),
		},
		errs:  map[candleKey]error{{"SBER", "1"}: errors.New("upstream 502")},
		panic: map[candleKey]bool{{"GAZP", "60"}: true},
	}
	m := &stateMetrics{}
	failing := &recordingPublisher{name: "broken", err: errors.New("broker down")}
	r, store := newTestRefresher(t, candles, nil, []domrepo.SnapshotPublisher{failing}, m)

	snap := r.Refresh(context.Background())
	assert.True(t, snap.Get("Sber", "1h").Available())
	assert.False(t, snap.Get("Sber", "5m").Available())
	assert.False(t, snap.Get("Gazprom", "1h").Available())
	assert.True(t, snap.Get("Gazprom", "5m").Available())
	assert.Same(t, snap, store.Latest(), "publisher failure does not block the store")

	assert.Equal(t, 1, m.errors["candles"])
	assert.Equal(t, 1, m.errors["panic"])
	assert.Equal(t, 1, m.errors["publish_broken"])
	assert.Equal(t, []string{"fetching", "publishing", "idle"}, m.states)
	assert.Error(t, r.Close())
}

func TestRSIRefresher_CyclesReplaceSnapshots(t *testing.T) {
	candles := &fakeCandles{data: map[candleKey][]models.Candle{}}
	r, store := newTestRefresher(t, candles, nil, nil, nil)

	first := r.Refresh(context.Background())
	candles.mu.Lock()
	candles.data[candleKey{"SBER", "60"}] = hourly(referenceCloses...)
	candles.mu.Unlock()
	second := r.Refresh(context.Background())

	assert.Equal(t, uint64(2), second.Cycle)
	assert.False(t, first.Get("Sber", "1h").Available(), "published snapshot is never mutated")
	assert.True(t, store.Latest().Get("Sber", "1h").Available())
	assert.Equal(t, 2*len(testInstruments)*len(testTimeframes), candles.calls)
}

func TestRSIRefresher_CancelledContext(t *testing.T) {
	candles := &fakeCandles{data: map[candleKey][]models.Candle{
		{"SBER", "60"}: hourly(referenceCloses...),
	}}
	r, _ := newTestRefresher(t, candles, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap := r.Refresh(ctx)
	for _, in := range testInstruments {
		for _, tf := range testTimeframes {
			assert.False(t, snap.Get(in.Name, tf.Name).Available(), fmt.Sprintf("%s/%s", in.Name, tf.Name))
		}
	}
	assert.Zero(t, candles.calls)
}

func TestRefreshState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "fetching", StateFetching.String())
	assert.Equal(t, "publishing", StatePublishing.String())
}
