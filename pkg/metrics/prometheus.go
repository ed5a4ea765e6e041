package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procure_events_processed_total",
			Help: "Total number of queue events processed by terminal status",
		},
		[]string{"event_type", "status"},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "procure_worker_cycle_seconds",
			Help:    "Worker poll cycle duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	MatchConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "procure_match_confidence",
			Help:    "Final confidence score of invoice match decisions",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	AliasHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "procure_alias_hits_total",
			Help: "Invoice matches resolved by a learned alias without an AI call",
		},
	)

	AliasesLearned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "procure_aliases_learned_total",
			Help: "Vendor aliases stored after human approval",
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "procure_queue_depth",
			Help: "Number of events claimed in the most recent worker cycle",
		},
	)

	ScanErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procure_scan_errors_total",
			Help: "Failures of the periodic stock and ingestion scans",
		},
		[]string{"scan"},
	)
)
