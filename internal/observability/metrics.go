package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the sync
// and validation pipeline.
type Metrics struct {
	RowsFetched  *prometheus.CounterVec // labels: sensor
	RowsUpserted *prometheus.CounterVec // labels: sensor
	RowsDeleted  *prometheus.CounterVec // labels: sensor
	FetchErrors  *prometheus.CounterVec // labels: sensor
	StoreErrors  *prometheus.CounterVec // labels: sensor

	FiresValidated prometheus.Counter
	FiresInserted  prometheus.Counter
	RowsSkipped    prometheus.Counter
	AreaWipes      prometheus.Counter
	RunsRejected   prometheus.Counter

	RunInProgress prometheus.Gauge
	RunDuration   prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RowsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firesync",
			Name:      "rows_fetched_total",
			Help:      "Detections returned by the FIRMS area API per sensor.",
		}, []string{"sensor"}),
		RowsUpserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firesync",
			Name:      "rows_upserted_total",
			Help:      "Detections staged into sensor tables per reconciliation.",
		}, []string{"sensor"}),
		RowsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firesync",
			Name:      "rows_deleted_total",
			Help:      "Stale detections removed inside the recency window.",
		}, []string{"sensor"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firesync",
			Name:      "fetch_errors_total",
			Help:      "Failed FIRMS fetches per sensor.",
		}, []string{"sensor"}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firesync",
			Name:      "store_errors_total",
			Help:      "Rolled-back reconciliations per sensor.",
		}, []string{"sensor"}),
		FiresValidated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firesync",
			Name:      "fires_validated_total",
			Help:      "Primary detections corroborated by at least one secondary sensor.",
		}),
		FiresInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firesync",
			Name:      "fires_inserted_total",
			Help:      "Validated fires newly persisted (conflicts excluded).",
		}),
		RowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firesync",
			Name:      "rows_skipped_total",
			Help:      "Detections excluded from matching due to unparsable date/time.",
		}),
		AreaWipes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firesync",
			Name:      "area_wipes_total",
			Help:      "Full table wipes triggered by an area-of-interest change.",
		}),
		RunsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firesync",
			Name:      "runs_rejected_total",
			Help:      "Run requests rejected because a run was already in progress.",
		}),
		RunInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "firesync",
			Name:      "run_in_progress",
			Help:      "1 while a pipeline run is executing, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "firesync",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete guard-reconcile-validate-persist run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}

	prometheus.MustRegister(
		m.RowsFetched,
		m.RowsUpserted,
		m.RowsDeleted,
		m.FetchErrors,
		m.StoreErrors,
		m.FiresValidated,
		m.FiresInserted,
		m.RowsSkipped,
		m.AreaWipes,
		m.RunsRejected,
		m.RunInProgress,
		m.RunDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RowsFetched:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "firesync", Name: "rows_fetched_total"}, []string{"sensor"}),
		RowsUpserted:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "firesync", Name: "rows_upserted_total"}, []string{"sensor"}),
		RowsDeleted:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "firesync", Name: "rows_deleted_total"}, []string{"sensor"}),
		FetchErrors:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "firesync", Name: "fetch_errors_total"}, []string{"sensor"}),
		StoreErrors:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "firesync", Name: "store_errors_total"}, []string{"sensor"}),
		FiresValidated: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "firesync", Name: "fires_validated_total"}),
		FiresInserted:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "firesync", Name: "fires_inserted_total"}),
		RowsSkipped:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "firesync", Name: "rows_skipped_total"}),
		AreaWipes:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "firesync", Name: "area_wipes_total"}),
		RunsRejected:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "firesync", Name: "runs_rejected_total"}),
		RunInProgress:  prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "firesync", Name: "run_in_progress"}),
		RunDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "firesync", Name: "run_duration_seconds"}),
	}
}
