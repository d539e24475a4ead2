package drivetime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	routingBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivetime_routing_batches_total",
			Help: "Routing table batches by outcome",
		},
		[]string{"outcome"},
	)

	routingBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "drivetime_routing_batch_duration_seconds",
			Help:    "Wall time of a single routing table batch",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8},
		},
	)

	fallbackEstimatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivetime_fallback_estimates_total",
			Help: "Destinations answered by the heuristic estimator instead of the routing service",
		},
		[]string{"reason"},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivetime_cache_lookups_total",
			Help: "Cache lookups by result (hit, partial, miss)",
		},
		[]string{"result"},
	)

	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "drivetime_cache_entries",
			Help: "Origin entries currently held in the driving-time cache",
		},
	)
)

const (
	batchOutcomeOK       = "ok"
	batchOutcomeFailed   = "failed"
	batchOutcomeRejected = "rejected"
	batchOutcomeTimeout  = "timeout"

	fallbackReasonUnroutable = "unroutable"
	fallbackReasonBatch      = "batch_failed"
	fallbackReasonLimit      = "batch_limit"
	fallbackReasonRouter     = "router_error"
	fallbackReasonDisabled   = "routing_disabled"

	lookupHit     = "hit"
	lookupPartial = "partial"
	lookupMiss    = "miss"
)
