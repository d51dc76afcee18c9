package metrics

import "github.com/prometheus/client_golang/prometheus"

// IngestMetrics tracks the ingest endpoint.
type IngestMetrics struct {
	SessionsIngested *prometheus.CounterVec
	BatchSize        prometheus.Histogram
	Rejected         prometheus.Counter
}

func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	m := &IngestMetrics{
		SessionsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ingested_total",
			Help:      "Total number of screen sessions stored, by result (created, updated, error).",
		}, []string{"result"}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_batch_size",
			Help:      "Number of sessions per ingest request.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_rejected_total",
			Help:      "Total number of ingest requests rejected as invalid.",
		}),
	}

	reg.MustRegister(m.SessionsIngested, m.BatchSize, m.Rejected)
	return m
}
