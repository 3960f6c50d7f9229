package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealfeed_http_requests_total",
		Help: "HTTP requests served, by route pattern and status code.",
	}, []string{"path", "status"})

	sourceDegradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealfeed_source_degraded_total",
		Help: "Fetches where a source contributed nothing because it failed.",
	}, []string{"source"})

	snapshotFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dealfeed_snapshot_fallbacks_total",
		Help: "Feed requests answered from the last-known-good snapshot.",
	})

	redirectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealfeed_redirects_total",
		Help: "Outbound redirects issued, by response mode.",
	}, []string{"mode"})
)
