package metrics

import "github.com/prometheus/client_golang/prometheus"

// RetentionMetrics tracks purge runs and scheduler leadership.
type RetentionMetrics struct {
	Runs         *prometheus.CounterVec
	RowsDeleted  prometheus.Counter
	Duration     prometheus.Histogram
	LeaderStatus prometheus.Gauge
}

func NewRetentionMetrics(reg prometheus.Registerer) *RetentionMetrics {
	m := &RetentionMetrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "runs_total",
			Help:      "Total number of retention purges, by status (success, error, skipped).",
		}, []string{"status"}),
		RowsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "rows_deleted_total",
			Help:      "Total number of screen session rows deleted by retention.",
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "duration_seconds",
			Help:      "Duration of retention purges in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		LeaderStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "leader",
			Help:      "1 if this instance holds the retention leader lease, 0 otherwise.",
		}),
	}

	reg.MustRegister(m.Runs, m.RowsDeleted, m.Duration, m.LeaderStatus)
	return m
}
