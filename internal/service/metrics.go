package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments the slug and logo pipelines. A nil *Metrics is a no-op.
type Metrics struct {
	slugRetries  prometheus.Counter
	logoDuration *prometheus.HistogramVec
	importRows   *prometheus.CounterVec
}

// NewMetrics registers the service collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		slugRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brand_slug_conflict_retries_total",
			Help: "Brand inserts retried after a concurrent writer took the generated slug.",
		}),
		logoDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "brand_logo_processing_duration_seconds",
			Help:    "Time spent validating, resizing and storing a logo.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"result"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brand_import_rows_total",
			Help: "CSV import rows by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.slugRetries, m.logoDuration, m.importRows)
	return m
}

func (m *Metrics) slugRetry() {
	if m != nil {
		m.slugRetries.Inc()
	}
}

func (m *Metrics) logo(start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.logoDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
}

func (m *Metrics) importRow(outcome string) {
	if m != nil {
		m.importRows.WithLabelValues(outcome).Inc()
	}
}
