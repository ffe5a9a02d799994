// Package metrics defines the Prometheus collectors exported by the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for ReservationsTotal.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
)

// Operation labels for ReservationsTotal.
const (
	OperationReserve = "reserve"
	OperationCancel  = "cancel"
)

type Metrics struct {
	// HTTP requests by method, route and status code
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP latency by method and route
	HTTPRequestDuration *prometheus.HistogramVec
	// seat operations by operation (reserve, cancel) and outcome (success, rejected)
	ReservationsTotal *prometheus.CounterVec
	// seats that can currently be reserved
	SeatsAvailable prometheus.Gauge
	// seat events that could not be published
	EventPublishFailures prometheus.Counter
}

// New registers the collectors on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors on reg.  Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration panics.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "path"},
		),
		ReservationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservations_total",
				Help: "Seat reserve and cancel attempts by outcome",
			},
			[]string{"operation", "outcome"},
		),
		SeatsAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "seats_available",
			Help: "Number of seats that can currently be reserved",
		}),
		EventPublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seat_event_publish_failures_total",
			Help: "Seat events that could not be delivered to the broker",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReservationsTotal,
		m.SeatsAvailable,
		m.EventPublishFailures,
	)
	return m
}

// ObserveSeatOperation counts one reserve or cancel attempt.
func (m *Metrics) ObserveSeatOperation(operation string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeRejected
	}
	m.ReservationsTotal.WithLabelValues(operation, outcome).Inc()
}
