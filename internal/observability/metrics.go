package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flood_sim"

// Metrics holds the Prometheus counters, histograms, and gauges for simulation runs.
type Metrics struct {
	SimulationsTotal   *prometheus.CounterVec // labels: outcome={success,invalid,failed}
	SimulationDuration prometheus.Histogram
	RunsInFlight       prometheus.Gauge

	// Engine and results.
	EngineDuration prometheus.Histogram
	FloodedNodes   prometheus.Histogram

	CacheLookups *prometheus.CounterVec // labels: result={hit,miss}
	SinkErrors   *prometheus.CounterVec // labels: sink={store,kafka}
	ModelLoaded  prometheus.Gauge
}

// NewMetrics creates and registers all simulation metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := NewMetricsForTesting()
	prometheus.MustRegister(
		m.SimulationsTotal,
		m.SimulationDuration,
		m.RunsInFlight,
		m.EngineDuration,
		m.FloodedNodes,
		m.CacheLookups,
		m.SinkErrors,
		m.ModelLoaded,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		SimulationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulations_total",
			Help:      "Simulation requests by outcome.",
		}, []string{"outcome"}),
		SimulationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "simulation_duration_seconds",
			Help:      "End-to-end duration of a simulation request, cache hits included.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		RunsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_flight",
			Help:      "Simulations currently executing.",
		}),
		EngineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_duration_seconds",
			Help:      "Wall time of the external engine process.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		FloodedNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flooded_nodes",
			Help:      "Number of flooded nodes per completed simulation.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by result.",
		}, []string{"result"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed writes of completed runs by sink.",
		}, []string{"sink"}),
		ModelLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vulnerability_model_loaded",
			Help:      "1 when a vulnerability model is loaded, 0 otherwise.",
		}),
	}
}
