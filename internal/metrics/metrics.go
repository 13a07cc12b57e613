// Package metrics holds the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OracleRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autoapply",
		Name:      "oracle_requests_total",
		Help:      "Oracle calls by provider and outcome.",
	}, []string{"provider", "outcome"})

	OracleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "autoapply",
		Name:      "oracle_request_seconds",
		Help:      "Oracle call latency.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 90},
	}, []string{"provider"})

	Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autoapply",
		Name:      "resolutions_total",
		Help:      "Element lookups by winning strategy (or none) and source.",
	}, []string{"strategy", "source"})

	PipelineEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autoapply",
		Name:      "pipeline_events_total",
		Help:      "Events emitted by the pipeline driver.",
	}, []string{"kind"})

	SiteRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autoapply",
		Name:      "site_runs_total",
		Help:      "Site sessions by final navigator state.",
	}, []string{"state"})
)
