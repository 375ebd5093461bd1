// Package metrics exposes compression activity as Prometheus metrics. All
// names are prefixed with "docpress_".
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dgallion1/docpress/internal/events"
)

// Metrics holds the collectors. It implements events.Observer.
//
// Metrics:
//   - docpress_runs_total{status} - finished jobs by final status
//   - docpress_chunks_total{type} - chunks summarized by chunk type
//   - docpress_strategy_total{strategy} - chunks by strategy actually used
//   - docpress_generator_fallbacks_total - generator failures recovered extractively
//   - docpress_document_truncations_total - document summaries cut to the word limit
//   - docpress_stage_duration_seconds{stage} - stage wall time
//   - docpress_stage_words{stage} - words produced per stage
type Metrics struct {
	Runs          *prometheus.CounterVec
	Chunks        *prometheus.CounterVec
	Strategies    *prometheus.CounterVec
	Fallbacks     prometheus.Counter
	Truncations   prometheus.Counter
	StageDuration *prometheus.HistogramVec
	StageWords    *prometheus.HistogramVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docpress_runs_total",
			Help: "Total number of compression jobs by final status",
		}, []string{"status"}),
		Chunks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docpress_chunks_total",
			Help: "Total number of chunks summarized by chunk type",
		}, []string{"type"}),
		Strategies: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docpress_strategy_total",
			Help: "Total number of chunk summaries by strategy used",
		}, []string{"strategy"}),
		Fallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "docpress_generator_fallbacks_total",
			Help: "Total number of generator failures recovered with extractive summaries",
		}),
		Truncations: f.NewCounter(prometheus.CounterOpts{
			Name: "docpress_document_truncations_total",
			Help: "Total number of document summaries truncated to the word limit",
		}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docpress_stage_duration_seconds",
			Help:    "Duration of compression stages in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8), // 1ms to ~16s
		}, []string{"stage"}),
		StageWords: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docpress_stage_words",
			Help:    "Words produced by each compression stage",
			Buckets: prometheus.ExponentialBuckets(50, 2, 10),
		}, []string{"stage"}),
	}
}

// Observe implements events.Observer.
func (m *Metrics) Observe(e events.Event) {
	switch e.Kind {
	case events.KindCompleted:
		m.StageDuration.WithLabelValues(string(e.Stage)).Observe(e.Duration.Seconds())
		if e.Stage != events.StageReport {
			m.StageWords.WithLabelValues(string(e.Stage)).Observe(float64(e.Words))
		}
	case events.KindChunkSummarized:
		m.Chunks.WithLabelValues(e.ChunkType).Inc()
		m.Strategies.WithLabelValues(e.Strategy).Inc()
	case events.KindFallback:
		m.Fallbacks.Inc()
	case events.KindTruncated:
		m.Truncations.Inc()
	}
}

// RunFinished counts one job reaching a final status.
func (m *Metrics) RunFinished(status string) {
	m.Runs.WithLabelValues(status).Inc()
}
