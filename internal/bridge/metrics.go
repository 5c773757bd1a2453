package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "serialbridge"

// Metrics holds the bridge's Prometheus collectors.
type Metrics struct {
	ConnectAttempts prometheus.Counter
	ConnectFailures prometheus.Counter
	Disconnects     prometheus.Counter
	Records         *prometheus.CounterVec
	Faults          prometheus.Counter
	PublishErrors   prometheus.Counter
	Value           prometheus.Gauge
	Stale           prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg when reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connect_attempts_total",
			Help:      "Serial device open attempts.",
		}),
		ConnectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connect_failures_total",
			Help:      "Failed serial device open attempts.",
		}),
		Disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "disconnects_total",
			Help:      "Device connections closed.",
		}),
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "records_total",
			Help:      "Records received, by result.",
		}, []string{"result"}),
		Faults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "faults_total",
			Help:      "Transitions into the stale state.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "publish_errors_total",
			Help:      "Failed output writes.",
		}),
		Value: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "published_millidegrees",
			Help:      "Last value successfully published.",
		}),
		Stale: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "stale",
			Help:      "1 while the published value is the fault sentinel.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ConnectAttempts,
			m.ConnectFailures,
			m.Disconnects,
			m.Records,
			m.Faults,
			m.PublishErrors,
			m.Value,
			m.Stale,
		)
	}
	return m
}
