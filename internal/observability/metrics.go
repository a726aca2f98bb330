package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lightning"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// lightning pipeline.
type Metrics struct {
	PipelineRuns      *prometheus.CounterVec // labels: outcome={success,invalid_request,upstream,malformed,sink,error}
	WindowAdjustments *prometheus.CounterVec // labels: kind={clamped,rebased}
	Observations      prometheus.Counter
	PollerRunning     prometheus.Gauge

	// Upstream fetch metrics.
	FetchRequests *prometheus.CounterVec // labels: outcome={success,error,malformed}
	FetchDuration prometheus.Histogram

	// Sink metrics.
	SinkWrites   *prometheus.CounterVec // labels: sink, outcome={success,error}
	SinkRecords  *prometheus.CounterVec // labels: sink
	SinkDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PipelineRuns,
		m.WindowAdjustments,
		m.Observations,
		m.PollerRunning,
		m.FetchRequests,
		m.FetchDuration,
		m.SinkWrites,
		m.SinkRecords,
		m.SinkDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline invocations by outcome.",
		}, []string{"outcome"}),
		WindowAdjustments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "window_adjustments_total",
			Help:      "Requested windows rewritten by the normalizer, by kind.",
		}, []string{"kind"}),
		Observations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_total",
			Help:      "Total observations reassembled from upstream feeds.",
		}),
		PollerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poller_running",
			Help:      "1 when the poller is active, 0 when shut down.",
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Upstream WFS requests by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Upstream WFS request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		SinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_writes_total",
			Help:      "Batch writes to sinks by sink and outcome.",
		}, []string{"sink", "outcome"}),
		SinkRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_records_total",
			Help:      "Observations written to sinks.",
		}, []string{"sink"}),
		SinkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sink_write_duration_seconds",
			Help:      "Duration of one batch write per sink.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"sink"}),
	}
}
