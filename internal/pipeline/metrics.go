package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/insightdelivered/spendsense/internal/models"
)

// Metrics are the pipeline's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	documents *prometheus.CounterVec
	rows      *prometheus.CounterVec
	duration  prometheus.Histogram
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spendsense",
			Name:      "documents_processed_total",
			Help:      "Documents processed, by detected format and outcome.",
		}, []string{"format", "outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spendsense",
			Name:      "rows_total",
			Help:      "Transaction rows seen, by format and whether they were kept or skipped.",
		}, []string{"format", "status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spendsense",
			Name:      "processing_duration_seconds",
			Help:      "Wall-clock time spent processing one document.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
	reg.MustRegister(m.documents, m.rows, m.duration)
	return m
}

func (m *Metrics) observe(format models.FormatType, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if format == "" {
		format = models.FormatUnknown
	}
	m.documents.WithLabelValues(string(format), outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) rowsSeen(format models.FormatType, kept, skipped int) {
	if m == nil {
		return
	}
	m.rows.WithLabelValues(string(format), "kept").Add(float64(kept))
	m.rows.WithLabelValues(string(format), "skipped").Add(float64(skipped))
}
