package echo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the echo service's Prometheus collectors.
type Metrics struct {
	Connections       prometheus.Counter
	ActiveConnections prometheus.Gauge
	Messages          *prometheus.CounterVec
	Bytes             *prometheus.CounterVec
	ReadSubOperations prometheus.Histogram
	Errors            *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Connections: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "npipe_echo_connections_total",
				Help: "Total number of accepted pipe clients",
			},
		),
		ActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "npipe_echo_connections_active",
				Help: "Number of currently connected pipe clients",
			},
		),
		Messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "npipe_echo_messages_total",
				Help: "Total number of messages by direction",
			},
			[]string{"direction"},
		),
		Bytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "npipe_echo_bytes_total",
				Help: "Total number of payload bytes by direction",
			},
			[]string{"direction"},
		),
		ReadSubOperations: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "npipe_echo_read_sub_operations",
				Help:    "Kernel reads issued per received message",
				Buckets: []float64{1, 2, 4, 8, 16, 64, 256},
			},
		),
		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "npipe_echo_errors_total",
				Help: "Total number of failed pipe operations",
			},
			[]string{"op"},
		),
	}
}

func (m *Metrics) received(n, subOps int) {
	m.Messages.WithLabelValues("in").Inc()
	m.Bytes.WithLabelValues("in").Add(float64(n))
	m.ReadSubOperations.Observe(float64(subOps))
}

func (m *Metrics) sent(n int) {
	m.Messages.WithLabelValues("out").Inc()
	m.Bytes.WithLabelValues("out").Add(float64(n))
}
