package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by route and status code.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gitdeposit",
		Name:      "http_requests_total",
		Help:      "The total number of HTTP requests served.",
	}, []string{"route", "method", "code"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gitdeposit",
		Name:      "http_request_duration_seconds",
		Help:      "The time spent serving HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2.5, 10),
	}, []string{"route"})

	// GateDecisions counts access gate outcomes per service.
	GateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gitdeposit",
		Name:      "gate_decisions_total",
		Help:      "The total number of access gate decisions.",
	}, []string{"service", "decision"})

	// ServiceBytes measures pack payload sizes per service and direction.
	ServiceBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gitdeposit",
		Name:      "service_bytes_total",
		Help:      "The total number of bytes moved through git services.",
	}, []string{"service", "direction"})

	// Pushes counts successful receive-pack calls.
	Pushes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gitdeposit",
		Name:      "pushes_total",
		Help:      "The total number of successful pushes.",
	})
)
