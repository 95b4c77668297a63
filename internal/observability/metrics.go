package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hinan"

// Metrics holds the Prometheus collectors for imports and place queries.
type Metrics struct {
	ImportRuns          *prometheus.CounterVec // labels: outcome={success,missing_file,error}
	RowsImported        *prometheus.CounterVec // labels: source
	RowsSkipped         *prometheus.CounterVec // labels: source
	ImportDuration      prometheus.Histogram
	LastImportTimestamp prometheus.Gauge
	PlaceRecords        prometheus.Gauge

	PlaceQueries       *prometheus.CounterVec // labels: endpoint={list,detail}
	PlaceQueryDuration prometheus.Histogram
}

func newMetrics() *Metrics {
	return &Metrics{
		ImportRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_runs_total",
			Help:      "Import runs by outcome.",
		}, []string{"outcome"}),
		RowsImported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_created_total",
			Help:      "Place records created by source.",
		}, []string{"source"}),
		RowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_skipped_total",
			Help:      "Malformed CSV lines skipped by source.",
		}, []string{"source"}),
		ImportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_duration_seconds",
			Help:      "Duration of a full three-source import run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		LastImportTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_import_timestamp_seconds",
			Help:      "Sync timestamp of the last successful import.",
		}),
		PlaceRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "place_records",
			Help:      "Place records stored after the last import.",
		}),
		PlaceQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "place_queries_total",
			Help:      "Place queries served by endpoint.",
		}, []string{"endpoint"}),
		PlaceQueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "place_query_duration_seconds",
			Help:      "Duration of filtered place list queries.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ImportRuns,
		m.RowsImported,
		m.RowsSkipped,
		m.ImportDuration,
		m.LastImportTimestamp,
		m.PlaceRecords,
		m.PlaceQueries,
		m.PlaceQueryDuration,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	reg := prometheus.NewRegistry()
	reg.MustRegister(m.collectors()...)
	return m
}
