package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "paname"

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// RendezvousTransitions action: book | confirm | complete | cancel | delete
	// result: ok 或错误类别
	RendezvousTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rendezvous_transitions_total",
			Help:      "Rendezvous lifecycle operations by action and result",
		},
		[]string{"action", "result"},
	)

	ProcedureStepUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "procedure_step_updates_total",
			Help:      "Procedure step updates by step, requested status and result",
		},
		[]string{"step", "status", "result"},
	)

	SlotCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_cache_lookups_total",
			Help:      "Occupied-slot cache lookups by outcome",
		},
		[]string{"outcome"}, // hit | miss | error
	)
)
