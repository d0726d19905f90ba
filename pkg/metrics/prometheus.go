package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetchTotal   *prometheus.CounterVec
	candlesRows  *prometheus.GaugeVec
	errorsTotal  *prometheus.CounterVec
	lastClose    *prometheus.GaugeVec
	universeSize prometheus.Gauge
	stagePasses  *prometheus.CounterVec
	scanDuration prometheus.Histogram
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		fetchTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coilscan_fetch_total",
				Help: "Total number of candle fetch attempts by timeframe and result",
			},
			[]string{"timeframe", "result"},
		),
		candlesRows: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coilscan_candles_rows",
				Help: "Number of candle rows stored per timeframe",
			},
			[]string{"timeframe"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coilscan_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastClose: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coilscan_last_close",
				Help: "Last observed close price for a symbol",
			},
			[]string{"symbol"},
		),
		universeSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "coilscan_universe_size",
				Help: "Number of symbols in the resolved scan universe",
			},
		),
		stagePasses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coilscan_stage_pass_total",
				Help: "Total number of stage passes by stage",
			},
			[]string{"stage"},
		),
		scanDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "coilscan_scan_duration_seconds",
				Help:    "Duration of full scan runs in seconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
	}
}

// RecordFetch records one candle fetch attempt outcome.
func (r *Recorder) RecordFetch(timeframe, result string) {
	r.fetchTotal.WithLabelValues(timeframe, result).Inc()
}

// RecordCandles records the stored row count for a timeframe.
func (r *Recorder) RecordCandles(timeframe string, n int) {
	r.candlesRows.WithLabelValues(timeframe).Set(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastClose records the last close price for a symbol.
func (r *Recorder) RecordLastClose(symbol string, price float64) {
	r.lastClose.WithLabelValues(symbol).Set(price)
}

// RecordUniverseSize records the resolved universe size.
func (r *Recorder) RecordUniverseSize(n int) {
	r.universeSize.Set(float64(n))
}

// RecordStagePass records a passing stage evaluation.
func (r *Recorder) RecordStagePass(stage string) {
	r.stagePasses.WithLabelValues(stage).Inc()
}

// RecordScanDuration records the duration of a full scan run.
func (r *Recorder) RecordScanDuration(seconds float64) {
	r.scanDuration.Observe(seconds)
}
