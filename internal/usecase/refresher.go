package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"RSIBoard/internal/domain/models"
	domrepo "RSIBoard/internal/domain/repository"
	"RSIBoard/internal/services/indicators"
	applogger "RSIBoard/pkg/logger"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// RefreshState is the refresher's position in a cycle.
type RefreshState int32

const (
	StateIdle RefreshState = iota
	StateFetching
	StatePublishing
)

func (s RefreshState) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StatePublishing:
		return "publishing"
	default:
		return "idle"
	}
}

// RefresherConfig is the static shape of a refresh cycle.
type RefresherConfig struct {
	Instruments  []models.Instrument
	Timeframes   []domrepo.Timeframe
	Period       int
	Workers      int
	UpstreamRPS  float64
	CycleTimeout time.Duration
	// Limiter overrides the limiter built from UpstreamRPS so adapters can
	// pace their own paging against the same budget.
	Limiter *rate.Limiter
}

// RSIRefresher recomputes every (instrument, timeframe) RSI and publishes the
// result as one new snapshot.
type RSIRefresher struct {
	cfg        RefresherConfig
	candles    domrepo.CandleSource
	quotes     domrepo.QuoteSource
	store      domrepo.SnapshotStore
	publishers []domrepo.SnapshotPublisher
	limiter    *rate.Limiter
	metrics    domrepo.Metrics
	l          *applogger.Logger
	now        func() time.Time

	state atomic.Int32
	cycle atomic.Uint64
}

// NewRSIRefresher wires a refresher. quotes may be nil to disable live prices.
func NewRSIRefresher(
	cfg RefresherConfig,
	candles domrepo.CandleSource,
	quotes domrepo.QuoteSource,
	store domrepo.SnapshotStore,
	publishers []domrepo.SnapshotPublisher,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *RSIRefresher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Period < 1 {
		cfg.Period = indicators.DefaultPeriod
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = NewUpstreamLimiter(cfg.UpstreamRPS)
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &RSIRefresher{
		cfg:        cfg,
		candles:    candles,
		quotes:     quotes,
		store:      store,
		publishers: publishers,
		limiter:    limiter,
		metrics:    metrics,
		l:          l,
		now:        time.Now,
	}
}

// State returns the current cycle state.
func (r *RSIRefresher) State() RefreshState { return RefreshState(r.state.Load()) }

func (r *RSIRefresher) setState(s RefreshState) {
	r.state.Store(int32(s))
	r.metrics.RecordState(s.String())
}

// Refresh runs one full cycle and returns the published snapshot.
// Upstream failures never fail the cycle; they turn into unavailable pairs.
func (r *RSIRefresher) Refresh(ctx context.Context) *models.Snapshot {
	start := r.now()
	cycle := r.cycle.Add(1)
	if r.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.CycleTimeout)
		defer cancel()
	}

	r.setState(StateFetching)
	defer r.setState(StateIdle)

	rows := r.fetchAll(ctx)

	r.setState(StatePublishing)
	snap := &models.Snapshot{
		Values:    make(map[string]map[string]models.RSIResult, len(r.cfg.Instruments)),
		UpdatedAt: r.now().UTC(),
		Cycle:     cycle,
	}
	unavailable := 0
	for i, in := range r.cfg.Instruments {
		snap.Values[in.Name] = rows[i]
		for tf, res := range rows[i] {
			if !res.Available() {
				unavailable++
				continue
			}
			r.metrics.RecordRSI(in.Name, tf, res.Value.Decimal.InexactFloat64())
		}
	}
	r.store.Publish(snap)
	r.fanOut(ctx, snap)

	elapsed := r.now().Sub(start)
	r.metrics.RecordCycle(elapsed.Seconds(), unavailable)
	r.l.Info("rsi refresh cycle done",
		applogger.Uint64("cycle", cycle),
		applogger.Int("instruments", len(r.cfg.Instruments)),
		applogger.Int("unavailable", unavailable),
		applogger.Duration("duration_ms", elapsed),
	)
	return snap
}

// fetchAll computes one row per instrument on a bounded worker pool.
// rows[i] belongs to cfg.Instruments[i].
func (r *RSIRefresher) fetchAll(ctx context.Context) []map[string]models.RSIResult {
	rows := make([]map[string]models.RSIResult, len(r.cfg.Instruments))
	jobs := make(chan int)

	var wg sync.WaitGroup
	workers := r.cfg.Workers
	if workers > len(rows) {
		workers = len(rows)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rows[i] = r.instrumentRow(ctx, r.cfg.Instruments[i])
			}
		}()
	}
	for i := range rows {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return rows
}

func (r *RSIRefresher) instrumentRow(ctx context.Context, in models.Instrument) map[string]models.RSIResult {
	row := make(map[string]models.RSIResult, len(r.cfg.Timeframes))
	live := r.livePrice(ctx, in)
	for _, tf := range r.cfg.Timeframes {
		row[tf.Name] = r.pair(ctx, in, tf, live)
	}
	return row
}

// livePrice returns an invalid NullDecimal when live pricing is off or fails.
func (r *RSIRefresher) livePrice(ctx context.Context, in models.Instrument) (live decimal.NullDecimal) {
	if r.quotes == nil {
		return live
	}
	defer func() {
		if p := recover(); p != nil {
			r.metrics.RecordError("panic")
			r.l.Error("live quote panic",
				applogger.String("instrument", in.Name),
				applogger.Any("panic", p),
				applogger.String("stack", string(debug.Stack())),
			)
			live = decimal.NullDecimal{}
		}
	}()

	if err := r.limiter.Wait(ctx); err != nil {
		return live
	}
	start := time.Now()
	price, err := r.quotes.LastPrice(ctx, in.ID)
	r.metrics.RecordLatency("quote", time.Since(start).Seconds())
	if err != nil {
		if !errors.Is(err, domrepo.ErrNoQuote) {
			r.metrics.RecordError("quote")
		}
		r.l.Warn("live quote unavailable",
			applogger.String("instrument", in.Name),
			applogger.String("id", in.ID),
			applogger.Error(err),
		)
		return live
	}
	if !price.IsPositive() {
		return live
	}
	return decimal.NullDecimal{Decimal: price, Valid: true}
}

// pair computes one cell. Any error or panic yields an unavailable result.
func (r *RSIRefresher) pair(ctx context.Context, in models.Instrument, tf domrepo.Timeframe, live decimal.NullDecimal) (res models.RSIResult) {
	fields := []applogger.Field{
		applogger.String("instrument", in.Name),
		applogger.String("timeframe", tf.Name),
	}
	defer func() {
		if p := recover(); p != nil {
			r.metrics.RecordError("panic")
			r.l.Error("rsi pair panic", append(fields,
				applogger.Any("panic", p),
				applogger.String("stack", string(debug.Stack())),
			)...)
			res = models.Unavailable()
		}
	}()

	history, err := r.history(ctx, in, tf)
	if err != nil {
		kind := "candles"
		if errors.Is(err, domrepo.ErrNoData) {
			kind = "no_data"
		}
		r.metrics.RecordError(kind)
		r.l.Warn("candles unavailable", append(fields, applogger.Error(err))...)
		return models.Unavailable()
	}

	res = indicators.Evaluate(history, live, r.cfg.Period, r.now().UTC())
	if !res.Available() {
		r.l.Debug("not enough history for rsi", append(fields, applogger.Int("candles", len(history)))...)
	}
	return res
}

func (r *RSIRefresher) history(ctx context.Context, in models.Instrument, tf domrepo.Timeframe) ([]models.Candle, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	to := r.now().UTC()
	start := time.Now()
	candles, err := r.candles.Candles(ctx, in.ID, tf.Interval, to.Add(-tf.Lookback), to)
	r.metrics.RecordLatency("candles", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if tf.Resampled() {
		candles = indicators.Aggregate(candles, tf.Bucket)
	}
	return candles, nil
}

func (r *RSIRefresher) fanOut(ctx context.Context, snap *models.Snapshot) {
	for _, p := range r.publishers {
		if err := p.PublishSnapshot(ctx, snap); err != nil {
			r.metrics.RecordError("publish_" + p.Name())
			r.l.Warn("snapshot publish failed",
				applogger.String("publisher", p.Name()),
				applogger.Uint64("cycle", snap.Cycle),
				applogger.Error(err),
			)
		}
	}
}

// Close closes every publisher.
// NewUpstreamLimiter paces upstream requests at rps with no burst; rps <= 0
// disables pacing.
func NewUpstreamLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

func (r *RSIRefresher) Close() error {
	var errs []error
	for _, p := range r.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

type nopMetrics struct{}

func (nopMetrics) RecordCycle(float64, int)          {}
func (nopMetrics) RecordError(string)                {}
func (nopMetrics) RecordRSI(string, string, float64) {}
func (nopMetrics) RecordLatency(string, float64)     {}
func (nopMetrics) RecordState(string)                {}
