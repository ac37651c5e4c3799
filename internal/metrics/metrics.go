// Package metrics holds the Prometheus collectors exported by the harness.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "harness"

// Metrics groups every collector. Build one per process with New.
type Metrics struct {
	Instances        prometheus.Gauge
	InstancesCreated prometheus.Counter
	InstancesDeleted prometheus.Counter
	InstancesEvicted prometheus.Counter
	LoginFailures    *prometheus.CounterVec

	EventsApplied *prometheus.CounterVec
	MessagesSent  *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers all collectors on registerer.
func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		Instances: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "instances",
			Help:      "Instances currently held by the registry",
		}),
		InstancesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instances_created_total",
			Help:      "Instances created after a successful login",
		}),
		InstancesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instances_deleted_total",
			Help:      "Instances removed by explicit delete",
		}),
		InstancesEvicted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instances_evicted_total",
			Help:      "Instances dropped because the registry was at capacity",
		}),
		LoginFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_failures_total",
			Help:      "Failed instance logins",
		}, []string{"backend"}),
		EventsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_applied_total",
			Help:      "Inbound events processed by the correlator",
		}, []string{"kind", "outcome"}),
		MessagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Outbound payloads accepted by the backend",
		}, []string{"kind"}),
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"method", "route"}),
	}
}

// NewNop returns collectors registered on a private registry, for tests and defaults.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
