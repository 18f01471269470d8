package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// States a refresh cycle moves through; exported as a one-hot gauge.
var states = []string{"idle", "fetching", "publishing"}

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cycles        prometheus.Counter
	cycleDuration prometheus.Histogram
	unavailable   prometheus.Gauge
	errorsTotal   *prometheus.CounterVec
	rsiValue      *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
	state         *prometheus.GaugeVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder on reg (tests pass a fresh registry).
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cycles: f.NewCounter(prometheus.CounterOpts{
			Name: "rsiboard_refresh_cycles_total",
			Help: "Completed refresh cycles",
		}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rsiboard_refresh_cycle_seconds",
			Help:    "Wall time of one refresh cycle",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		}),
		unavailable: f.NewGauge(prometheus.GaugeOpts{
			Name: "rsiboard_unavailable_pairs",
			Help: "Instrument/timeframe pairs without a value in the latest snapshot",
		}),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rsiboard_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		rsiValue: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rsiboard_rsi",
				Help: "Latest RSI value per instrument and timeframe",
			},
			[]string{"instrument", "timeframe"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rsiboard_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		state: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rsiboard_refresh_state",
				Help: "1 for the refresher's current state, 0 otherwise",
			},
			[]string{"state"},
		),
	}
}

// RecordCycle records a finished cycle and how many pairs came out unavailable.
func (r *Recorder) RecordCycle(seconds float64, unavailable int) {
	r.cycles.Inc()
	r.cycleDuration.Observe(seconds)
	r.unavailable.Set(float64(unavailable))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordRSI sets the gauge for one pair.
func (r *Recorder) RecordRSI(instrument, timeframe string, value float64) {
	r.rsiValue.WithLabelValues(instrument, timeframe).Set(value)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordState flips the state gauge.
func (r *Recorder) RecordState(state string) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		r.state.WithLabelValues(s).Set(v)
	}
}
