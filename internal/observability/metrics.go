package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "collision_weather"

// Metrics holds the Prometheus counters, histograms, and gauges for a pipeline run.
type Metrics struct {
	PipelineRunning prometheus.Gauge
	StageDuration   *prometheus.HistogramVec // labels: stage={fetch,reconcile,normalize,load,merge,write}

	// Station retrieval metrics.
	StationMonths       *prometheus.CounterVec   // labels: station={primary,backup}, outcome={success,not_found,error}
	StationObservations *prometheus.GaugeVec     // labels: station={primary,backup}
	FetchDuration       *prometheus.HistogramVec // labels: station_id

	// Normalization metrics.
	GridHours   prometheus.Gauge
	FilledCells *prometheus.CounterVec // labels: step={forward,precip_zero,backward}

	// Join and output metrics.
	CollisionsLoaded prometheus.Counter
	EventsWritten    prometheus.Counter
	EventsUnmatched  prometheus.Counter
	CoverageRatio    prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PipelineRunning,
		m.StageDuration,
		m.StationMonths,
		m.StationObservations,
		m.FetchDuration,
		m.GridHours,
		m.FilledCells,
		m.CollisionsLoaded,
		m.EventsWritten,
		m.EventsUnmatched,
		m.CoverageRatio,
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
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress, 0 otherwise.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"stage"}),
		StationMonths: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_months_total",
			Help:      "Station-month retrievals by station and outcome.",
		}, []string{"station", "outcome"}),
		StationObservations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "station_observations",
			Help:      "Observations retrieved per station in the last run.",
		}, []string{"station"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Bulk climate data request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"station_id"}),
		GridHours: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grid_hours",
			Help:      "Rows in the normalized hourly weather grid.",
		}),
		FilledCells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filled_cells_total",
			Help:      "Weather attribute cells filled during normalization, by step.",
		}, []string{"step"}),
		CollisionsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collisions_loaded_total",
			Help:      "Collision events read from the input file.",
		}),
		EventsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_written_total",
			Help:      "Enriched collision events written to the output sink.",
		}),
		EventsUnmatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_unmatched_total",
			Help:      "Enriched collision events with no weather match.",
		}),
		CoverageRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coverage_ratio",
			Help:      "Fraction of collisions with a temperature reading; NaN when there were none.",
		}),
	}
}
