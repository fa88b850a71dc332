package kafka

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the producer's collectors.
type Metrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewMetrics registers producer metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_producer_messages_published_total",
			Help: "Kafka messages published.",
		}, []string{"topic", "event_type"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_producer_publish_errors_total",
			Help: "Kafka publish failures.",
		}, []string{"topic", "event_type"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kafka_producer_publish_duration_seconds",
			Help:    "Kafka publish latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
	}
	reg.MustRegister(m.published, m.failed, m.duration)
	return m
}
